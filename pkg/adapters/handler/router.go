package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/wadjakorntonsri/tinylinks/pkg/config"
	"github.com/wadjakorntonsri/tinylinks/pkg/ports"
)

// NewRouter creates and configures the main application router
func NewRouter(cfg *config.Config, service ports.LinkService, pinger Pinger, log zerolog.Logger) http.Handler {
	h := NewHTTPHandler(service, pinger, cfg.BaseURL, log)
	mw := NewMiddleware(cfg, log)
	authHandler := NewAuthHandler(cfg, log)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger(log))
	r.Use(middleware.Recoverer)

	// Public Routes
	r.Get("/healthz", h.Healthz)
	r.Get("/404", h.NotFound)
	r.Get("/auth/google/login", authHandler.Login)
	r.Get("/auth/google/callback", authHandler.Callback)
	r.Get("/auth/logout", authHandler.Logout)

	// Protected Routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(mw.AuthMiddleware)

		r.Post("/links", h.Create)
		r.Get("/links", h.List)
		r.Get("/links/{id}", h.Get)
		r.Put("/links/{id}", h.Update)
		r.Delete("/links/{id}", h.Delete)
		r.Post("/links/{id}/validate", h.Validate)
		r.Get("/statistics", h.Statistics)
	})

	r.Get("/{short_url}", h.Redirect)
	r.NotFound(h.NotFound)

	return r
}
