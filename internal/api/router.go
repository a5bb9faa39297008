package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/hackgods/booking-lifecycle/internal/appointment"
)

type RouterConfig struct {
	Service     *appointment.Service
	Checks      []HealthCheck
	JWTSecret   string
	CORSOrigins []string
	// RateLimiter guards write endpoints; nil disables limiting.
	RateLimiter *RateLimiter
	Env         string
	Version     string
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID", "Retry-After"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	h := &handlers{svc: cfg.Service}
	limit := func(next http.Handler) http.Handler { return next }
	if cfg.RateLimiter != nil {
		limit = cfg.RateLimiter.Middleware
	}

	health := NewHealthHandler(cfg.Checks, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	r.Get("/professionals", h.listProfessionals)
	r.Get("/professionals/{id}/feedbacks", h.listProfessionalFeedback)

	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(cfg.JWTSecret, cfg.Service))

		r.With(limit).Post("/appointments", h.createAppointment)
		r.Get("/appointments", h.listAppointments)
		r.Get("/appointments/{id}", h.getAppointment)
		r.With(limit).Patch("/appointments/{id}/status", h.updateStatus)

		r.With(limit).Post("/feedbacks", h.submitFeedback)

		r.Get("/stats/monthly", h.monthlyStats)
		r.Get("/stats/summary", h.periodSummary)
	})

	return r
}
