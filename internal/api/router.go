package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/Jayesh445/VeriChain-sub000/internal/identity"
	"github.com/Jayesh445/VeriChain-sub000/internal/metrics"
	"github.com/Jayesh445/VeriChain-sub000/internal/middleware"
)

// RouterConfig collects what the HTTP surface is built from.
type RouterConfig struct {
	Handler     *Handler
	Health      *HealthHandler
	Events      http.Handler
	CORSOrigins []string
}

// NewRouter builds the chi router with global middleware and all routes.
func NewRouter(cfg RouterConfig) chi.Router {
	r := chi.NewRouter()

	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(middleware.CORS(cfg.CORSOrigins))
	r.Use(identity.Middleware)

	if cfg.Health != nil {
		cfg.Health.RegisterHealth(r)
	}
	r.Handle("/metrics", metrics.Handler())

	if cfg.Events != nil {
		r.Get("/ws/events", cfg.Events.ServeHTTP)
	}

	// The websocket stream is long-lived; only the JSON API gets a timeout.
	r.Group(func(r chi.Router) {
		r.Use(chiMiddleware.Timeout(60 * time.Second))
		cfg.Handler.RegisterRoutes(r)
	})

	return r
}
