package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/medcore/clinic-scheduling/internal/appointment"
	"github.com/medcore/clinic-scheduling/internal/config"
	"github.com/medcore/clinic-scheduling/internal/db"
	redisclient "github.com/medcore/clinic-scheduling/internal/redis"
	"github.com/medcore/clinic-scheduling/internal/schedule"
)

// The calendar worker pre-materializes generic availability rows for the
// upcoming working hours, so the admin calendar shows every bookable bucket
// before any explicit override exists.

func main() {
	logger := zerolog.New(os.Stdout).With().Timestamp().Str("service", "calendar-worker").Logger()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("config load error")
	}

	logger.Info().
		Str("env", cfg.Env).
		Dur("interval", cfg.WorkerInterval).
		Int("days", cfg.CalendarDays).
		Msg("calendar worker starting up")

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

	rdb, err := redisclient.NewRedisClient(cfg.RedisAddr, cfg.RedisUsername, cfg.RedisPassword)
	if err != nil {
		logger.Fatal().Err(err).Msg("redis connection error")
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			logger.Error().Err(err).Msg("error closing redis")
		}
	}()

	clinic := schedule.ResolveClinicTime(cfg.ClinicZones)
	repo := appointment.NewPgRepository(pgPool)
	locker := redisclient.NewRedisBucketLocker(rdb, cfg.LockTTL)
	svc := appointment.NewService(repo, locker, clinic, logger)

	// Run once at startup
	runOnce(rootCtx, svc, clinic, cfg.CalendarDays, logger)

	ticker := time.NewTicker(cfg.WorkerInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rootCtx.Done():
			logger.Info().Msg("shutdown signal received, stopping calendar worker")
			return
		case <-ticker.C:
			runOnce(rootCtx, svc, clinic, cfg.CalendarDays, logger)
		}
	}
}

func runOnce(ctx context.Context, svc *appointment.Service, clinic *schedule.ClinicTime, days int, logger zerolog.Logger) {
	runCtx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()

	start := time.Now()
	today := clinic.ToLocal(start)
	if err := svc.MaterializeCalendar(runCtx, today, days); err != nil {
		logger.Error().Err(err).Msg("calendar run error")
		return
	}
	logger.Info().Dur("took", time.Since(start)).Msg("calendar run complete")
}
