package main

import (
	"context"
	"os"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/hajri-aziz/Backend-sub000/internal/db"
)

var logger = zerolog.New(os.Stdout).With().Timestamp().Str("service", "seed").Logger()

func main() {
	logger.Info().Msg("seed starting")

	dsn := os.Getenv("POSTGRES_DSN")
	if dsn == "" {
		logger.Fatal().Msg("POSTGRES_DSN is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, dsn)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect postgres")
	}
	defer pool.Close()

	if dir := os.Getenv("MIGRATIONS_DIR"); dir != "" {
		if err := db.RunMigrations(context.Background(), pool, dir); err != nil {
			logger.Fatal().Err(err).Msg("run migrations")
		}
		logger.Info().Str("dir", dir).Msg("migrations applied")
	}

	gofakeit.Seed(time.Now().UnixNano())

	psychologists, err := seedPsychologists(context.Background(), pool, 40)
	if err != nil {
		logger.Fatal().Err(err).Msg("seed psychologists")
	}
	if err := seedPatients(context.Background(), pool, 2000); err != nil {
		logger.Fatal().Err(err).Msg("seed patients")
	}
	if err := seedWindows(context.Background(), pool, psychologists, 14); err != nil {
		logger.Fatal().Err(err).Msg("seed availability windows")
	}
	if err := seedEvents(context.Background(), pool, 25); err != nil {
		logger.Fatal().Err(err).Msg("seed events")
	}
	if err := seedCourseSessions(context.Background(), pool, 15); err != nil {
		logger.Fatal().Err(err).Msg("seed course sessions")
	}

	logger.Info().Msg("seed complete")
}

func seedPsychologists(ctx context.Context, pool *pgxpool.Pool, count int) ([]uuid.UUID, error) {
	logger.Info().Int("count", count).Msg("seeding psychologists")

	specialties := []string{
		"Clinical Psychology",
		"Child & Adolescent",
		"Cognitive Behavioral Therapy",
		"Family Therapy",
		"Neuropsychology",
		"Addiction",
		"Trauma",
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	ids := make([]uuid.UUID, 0, count)
	for i := 0; i < count; i++ {
		id := uuid.New()
		name := gofakeit.Name()
		email := gofakeit.Email()
		spec := specialties[gofakeit.Number(0, len(specialties)-1)]

		_, err := tx.Exec(ctx, `
			INSERT INTO psychologists (id, name, email, specialty, created_at, updated_at)
			VALUES ($1, $2, $3, $4, now(), now())
		`, id, name, email, spec)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	logger.Info().Msg("psychologists seeded")
	return ids, nil
}

func seedPatients(ctx context.Context, pool *pgxpool.Pool, count int) error {
	logger.Info().Int("count", count).Msg("seeding patients")

	const batchSize = 500

	for offset := 0; offset < count; offset += batchSize {
		end := offset + batchSize
		if end > count {
			end = count
		}

		tx, err := pool.Begin(ctx)
		if err != nil {
			return err
		}

		for i := offset; i < end; i++ {
			_, err := tx.Exec(ctx, `
				INSERT INTO patients (id, name, email, created_at, updated_at)
				VALUES ($1, $2, $3, now(), now())
			`, uuid.New(), gofakeit.Name(), gofakeit.Email())
			if err != nil {
				_ = tx.Rollback(ctx)
				return err
			}
		}

		if err := tx.Commit(ctx); err != nil {
			return err
		}

		logger.Info().Int("done", end).Int("total", count).Msg("patients seeded")
	}

	return nil
}

// seedWindows gives each psychologist hourly windows 09:00-17:00 for the
// next `days` weekdays.
func seedWindows(ctx context.Context, pool *pgxpool.Pool, psychologists []uuid.UUID, days int) error {
	logger.Info().Int("psychologists", len(psychologists)).Int("days", days).Msg("seeding availability windows")

	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	day := time.Now().UTC().Truncate(24 * time.Hour)
	seeded := 0
	for d := 0; seeded < days; d++ {
		cur := day.AddDate(0, 0, d)
		if wd := cur.Weekday(); wd == time.Saturday || wd == time.Sunday {
			continue
		}
		seeded++

		for _, pid := range psychologists {
			for h := 9; h < 17; h++ {
				start := time.Date(2000, 1, 1, h, 0, 0, 0, time.UTC).Format("15:04")
				end := time.Date(2000, 1, 1, h+1, 0, 0, 0, time.UTC).Format("15:04")
				_, err := tx.Exec(ctx, `
					INSERT INTO availability_windows (id, psychologist_id, day, start_time, end_time, status, created_at, updated_at)
					VALUES ($1, $2, $3, $4, $5, 'free', now(), now())
				`, uuid.New(), pid, cur, start, end)
				if err != nil {
					return err
				}
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}

	logger.Info().Msg("availability windows seeded")
	return nil
}

func seedEvents(ctx context.Context, pool *pgxpool.Pool, count int) error {
	logger.Info().Int("count", count).Msg("seeding events")

	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for i := 0; i < count; i++ {
		day := time.Now().UTC().AddDate(0, 0, gofakeit.Number(1, 30)).Truncate(24 * time.Hour)
		start := time.Date(2000, 1, 1, gofakeit.Number(9, 18), 0, 0, 0, time.UTC).Format("15:04")

		_, err := tx.Exec(ctx, `
			INSERT INTO events (id, title, description, day, start_time, duration_minutes, capacity, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, now(), now())
		`, uuid.New(), gofakeit.Sentence(4), gofakeit.Paragraph(1, 3, 8, " "),
			day, start, gofakeit.Number(30, 120), gofakeit.Number(5, 50))
		if err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}

	logger.Info().Msg("events seeded")
	return nil
}

func seedCourseSessions(ctx context.Context, pool *pgxpool.Pool, count int) error {
	logger.Info().Int("count", count).Msg("seeding course sessions")

	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for i := 0; i < count; i++ {
		starts := time.Now().UTC().
			AddDate(0, 0, gofakeit.Number(1, 45)).
			Truncate(24 * time.Hour).
			Add(time.Duration(gofakeit.Number(9, 17)) * time.Hour)
		ends := starts.Add(time.Duration(gofakeit.Number(1, 3)) * time.Hour)

		_, err := tx.Exec(ctx, `
			INSERT INTO course_sessions (id, title, course_id, starts_at, ends_at, location, capacity, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, now(), now())
		`, uuid.New(), gofakeit.Sentence(3), uuid.New(),
			starts, ends, "Room "+gofakeit.LetterN(1), gofakeit.Number(8, 30))
		if err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}

	logger.Info().Msg("course sessions seeded")
	return nil
}
