package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/hajri-aziz/Backend-sub000/internal/config"
	"github.com/hajri-aziz/Backend-sub000/internal/db"
	"github.com/hajri-aziz/Backend-sub000/internal/notify"
	"github.com/hajri-aziz/Backend-sub000/internal/redisclient"
	"github.com/hajri-aziz/Backend-sub000/internal/scheduling"
)

func main() {
	logger := zerolog.New(os.Stdout).With().Timestamp().Str("service", "reminder-worker").Logger()
	logger.Info().Msg("reminder-worker starting up")

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("config load error")
	}

	logger.Info().
		Str("env", cfg.Env).
		Dur("interval", cfg.SweepInterval).
		Int("max_attempts", cfg.MaxSendAttempts).
		Msg("running reminder worker")

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN)
	cancelPg()
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres connection error")
	}
	defer pgPool.Close()
	logger.Info().Msg("connected to Postgres")

	rdb, err := redisclient.NewClient(rootCtx, cfg.RedisAddr, cfg.RedisUsername, cfg.RedisPassword)
	if err != nil {
		logger.Fatal().Err(err).Msg("redis connection error")
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			logger.Error().Err(err).Msg("error closing redis")
		}
	}()
	logger.Info().Msg("connected to Redis")

	var mailer notify.Mailer
	if cfg.SMTP.Enabled {
		mailer = notify.NewSMTPMailer(cfg.SMTP)
	} else {
		mailer = notify.LogMailer{Logger: logger}
	}

	repo := scheduling.NewPgRepository(pgPool)
	leaser := redisclient.NewRedisLeaser(rdb)
	sweeper := scheduling.NewSweeper(repo, mailer, leaser, cfg.SweepLeaseTTL, cfg.MaxSendAttempts, logger)

	// Run once at startup
	runOnce(rootCtx, sweeper, logger)

	ticker := time.NewTicker(cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rootCtx.Done():
			logger.Info().Msg("shutdown signal received, stopping reminder worker")
			return
		case <-ticker.C:
			runOnce(rootCtx, sweeper, logger)
		}
	}
}

func runOnce(ctx context.Context, sweeper *scheduling.Sweeper, logger zerolog.Logger) {
	runCtx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()

	start := time.Now()
	stats, err := sweeper.RunReminderSweep(runCtx, time.Now())
	if err != nil {
		logger.Error().Err(err).Msg("sweep run error")
		return
	}
	logger.Info().
		Int("due", stats.Due).
		Int("delivered", stats.Delivered).
		Int("skipped", stats.Skipped).
		Int("failed", stats.Failed).
		Dur("took", time.Since(start)).
		Msg("sweep run complete")
}
