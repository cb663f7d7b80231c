package main

import (
	"context"
	"os"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/medcore/clinic-scheduling/internal/appointment"
	"github.com/medcore/clinic-scheduling/internal/config"
	"github.com/medcore/clinic-scheduling/internal/db"
	"github.com/medcore/clinic-scheduling/internal/schedule"
)

func main() {
	logger := zerolog.New(os.Stdout).With().Timestamp().Str("service", "seed").Logger()
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

	gofakeit.Seed(time.Now().UnixNano())

	if err := seedPatients(context.Background(), pool, 2000, logger); err != nil {
		logger.Fatal().Err(err).Msg("seed patients")
	}
	if err := seedSchedule(context.Background(), pool, logger); err != nil {
		logger.Fatal().Err(err).Msg("seed schedule")
	}

	logger.Info().Msg("seed complete")
}

func seedPatients(ctx context.Context, pool *pgxpool.Pool, count int, logger zerolog.Logger) error {
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
			id := uuid.New()
			name := gofakeit.Name()
			email := gofakeit.Email()

			_, err := tx.Exec(ctx, `
				INSERT INTO patients (id, name, email, created_at, updated_at)
				VALUES ($1, $2, $3, now(), now())
			`, id, name, email)
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

// seedSchedule creates the settings singleton and materializes the
// availability calendar for the next 14 local days.
func seedSchedule(ctx context.Context, pool *pgxpool.Pool, logger zerolog.Logger) error {
	clinic := schedule.ResolveClinicTime(config.DefaultClinicZones)
	repo := appointment.NewPgRepository(pool)

	settings, err := repo.EnsureSettings(ctx, appointment.DefaultMaxPerHour)
	if err != nil {
		return err
	}
	logger.Info().Int("max_per_hour", settings.MaxPatientsPerHour).Msg("settings ready")

	resolver := appointment.NewCapacityResolver(repo, clinic)
	today := clinic.ToLocal(time.Now())

	buckets := 0
	for bucket := range clinic.WorkingHourBuckets(today, 14) {
		if err := resolver.EnsureGenericAvailability(ctx, bucket, settings.MaxPatientsPerHour, nil); err != nil {
			return err
		}
		buckets++
	}

	logger.Info().Int("buckets", buckets).Msg("availability calendar seeded")
	return nil
}
