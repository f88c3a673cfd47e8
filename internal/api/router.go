package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/hajri-aziz/Backend-sub000/internal/scheduling"
)

type RouterConfig struct {
	Service *scheduling.Service
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

	// Health endpoints
	health := NewHealthHandler(cfg.PgPool, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	// Availability (administrative)
	r.Post("/availability", createWindowHandler(cfg.Service))
	r.Get("/availability", listWindowsHandler(cfg.Service))

	// Appointments
	r.Post("/appointments", bookAppointmentHandler(cfg.Service))
	r.Post("/appointments/{id}/confirm", confirmAppointmentHandler(cfg.Service))
	r.Post("/appointments/{id}/cancel", cancelAppointmentHandler(cfg.Service))

	// Events
	r.Post("/events/{id}/registrations", registerForEventHandler(cfg.Service))
	r.Delete("/events/{id}/registrations/{patientID}", cancelEventRegistrationHandler(cfg.Service))

	// Course sessions
	r.Post("/sessions/{id}/enrollments", enrollInSessionHandler(cfg.Service))
	r.Patch("/sessions/{id}/schedule", rescheduleSessionHandler(cfg.Service))

	return r
}
