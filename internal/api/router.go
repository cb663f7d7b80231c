package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/medcore/clinic-scheduling/internal/appointment"
	"github.com/medcore/clinic-scheduling/internal/schedule"
)

type RouterConfig struct {
	Service *appointment.Service
	Clinic  *schedule.ClinicTime
	PgPool  *pgxpool.Pool
	Redis   *redis.Client
	Logger  zerolog.Logger
	Env     string
	Version string
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(cfg.Logger))

	health := NewHealthHandler(cfg.PgPool, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	h := NewHandlers(cfg.Service, cfg.Clinic)

	r.Post("/appointments", h.BookAppointment)
	r.Get("/appointments", h.ListAppointments)
	r.Get("/appointments/{id}", h.GetAppointment)
	r.Delete("/appointments/{id}", h.DeleteAppointment)
	r.Post("/appointments/{id}/reschedule", h.RescheduleAppointment)
	r.Post("/appointments/{id}/status", h.ChangeStatus)
	r.Post("/appointments/{id}/revert", h.RevertStatus)
	r.Get("/appointments/{id}/history", h.StatusHistory)

	r.Get("/calendar", h.Calendar)
	r.Get("/buckets", h.BucketLoad)
	r.Put("/availability", h.UpsertAvailability)
	r.Delete("/availability", h.DeleteAvailability)

	r.Get("/settings", h.GetSettings)
	r.Put("/settings", h.UpdateSettings)

	return r
}
