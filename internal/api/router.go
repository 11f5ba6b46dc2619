package api

import (
	"net/http"
	"net/netip"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/hackgods/appointment-engine/internal/auth"
)

type RouterConfig struct {
	Service        AppointmentService
	Auth           *auth.Issuer
	Limiter        Limiter
	Logger         *zap.Logger
	PgPool         *pgxpool.Pool
	Redis          *redis.Client
	CORSOrigins    []string
	TrustedProxies []netip.Prefix
	Env            string
	Version        string
}

func NewRouter(cfg RouterConfig) http.Handler {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}

	r := chi.NewRouter()

	// Apply middleware
	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(log))
	r.Use(cors.New(cors.Options{
		AllowedOrigins: cfg.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Authorization", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
	}).Handler)

	// Health endpoints
	health := NewHealthHandler(cfg.PgPool, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	// Appointment endpoints
	r.Route("/appointments", func(r chi.Router) {
		if cfg.Limiter != nil {
			r.With(RateLimitMiddleware(cfg.Limiter, cfg.TrustedProxies, log)).Get("/availability", checkAvailabilityHandler(cfg.Service, log))
		} else {
			r.Get("/availability", checkAvailabilityHandler(cfg.Service, log))
		}

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireAuth(cfg.Auth))

			r.Post("/", createAppointmentHandler(cfg.Service, log))
			r.Get("/", listAppointmentsHandler(cfg.Service, log))
			r.With(auth.RequireRole(auth.RoleAdmin)).Get("/stats", statsHandler(cfg.Service, log))
			r.Get("/{id}", getAppointmentHandler(cfg.Service, log))
			r.Put("/{id}/status", updateStatusHandler(cfg.Service, log))
		})
	})

	return r
}
