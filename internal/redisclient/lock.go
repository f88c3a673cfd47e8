package redisclient

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var (
	ErrLockNotAcquired  = errors.New("lock not acquired")
	ErrLeaseNotAcquired = errors.New("lease not acquired")
)

// Locker guards critical sections keyed by an arbitrary resource id, such as
// the availability window a booking is racing for.
type Locker interface {
	WithLock(ctx context.Context, key string, fn func(ctx context.Context) error) error
}

// Leaser hands out a short-lived exclusive lease. The reminder sweep uses it
// so that overlapping sweep runs never execute, across instances included.
type Leaser interface {
	TryLease(ctx context.Context, key string, ttl time.Duration) (release func(), err error)
}

type redisLocker struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisLocker creates a locker that uses one Redis key per resource.
func NewRedisLocker(client *redis.Client, ttl time.Duration) Locker {
	return &redisLocker{
		client: client,
		ttl:    ttl,
	}
}

func (l *redisLocker) WithLock(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	redisKey := "lock:" + key
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, redisKey, token, l.ttl).Result()
	if err != nil {
		return fmt.Errorf("acquire lock %s: %w", key, err)
	}
	if !ok {
		return ErrLockNotAcquired
	}

	defer func() {
		_ = release(ctx, l.client, redisKey, token)
	}()

	ctxWithTimeout, cancel := context.WithTimeout(ctx, l.ttl)
	defer cancel()

	return fn(ctxWithTimeout)
}

type redisLeaser struct {
	client *redis.Client
}

// NewRedisLeaser creates a leaser backed by SetNX with the caller's TTL.
func NewRedisLeaser(client *redis.Client) Leaser {
	return &redisLeaser{client: client}
}

func (l *redisLeaser) TryLease(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	redisKey := "lease:" + key
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, redisKey, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire lease %s: %w", key, err)
	}
	if !ok {
		return nil, ErrLeaseNotAcquired
	}

	return func() {
		_ = release(context.WithoutCancel(ctx), l.client, redisKey, token)
	}, nil
}

var unlockScript = redis.NewScript(`
local val = redis.call("GET", KEYS[1])
if val == ARGV[1] then
  return redis.call("DEL", KEYS[1])
else
  return 0
end
`)

func release(ctx context.Context, client *redis.Client, key, token string) error {
	_, err := unlockScript.Run(ctx, client, []string{key}, token).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("release %s: %w", key, err)
	}
	return nil
}
