// Package router assembles the HTTP surface of the clinic agent.
package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/assigny/clinic-agent/internal/agent"
	"github.com/assigny/clinic-agent/pkg/logging"
)

// Config holds the router's handlers.
type Config struct {
	Logger         *logging.Logger
	AgentHandler   *agent.Handler
	MetricsHandler http.Handler
}

// New builds the chi router with all routes configured.
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	r.Route("/agent", func(r chi.Router) {
		r.Post("/chat", cfg.AgentHandler.Chat)
		r.Get("/history", cfg.AgentHandler.History)
	})

	return r
}
