package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/MikeSquared-Agency/Consensus/internal/fairness"
	"github.com/MikeSquared-Agency/Consensus/internal/hermes"
	"github.com/MikeSquared-Agency/Consensus/internal/store"
)

// Options are the router settings that come from configuration.
type Options struct {
	AdminToken    string
	RateLimit     int
	DefaultMode   fairness.Mode
	MaxCandidates int
}

func NewRouter(s store.Store, h hermes.Client, sel *fairness.Selector, opts Options, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.RequestID)
	r.Use(RequestLogger(logger))
	r.Use(RateLimitMiddleware(opts.RateLimit))

	recs := NewRecommendationsHandler(s, h, sel, opts.DefaultMode, opts.MaxCandidates, logger)
	profiles := NewProfilesHandler(s, h, logger)

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/recommendations", recs.Create)
		r.Get("/recommendations/{id}", recs.Get)

		r.Get("/profiles/{user_id}", profiles.Get)
		r.Get("/profiles/{user_id}/summary", profiles.Summary)
		r.Post("/profiles/{user_id}/preferences", profiles.UpdatePreferences)
		r.Post("/profiles/{user_id}/actions", profiles.ApplyActions)

		r.Group(func(r chi.Router) {
			r.Use(AdminAuthMiddleware(opts.AdminToken))
			r.Delete("/profiles/{user_id}", profiles.Delete)
		})
	})

	return r
}

func NewMetricsRouter() http.Handler {
	r := chi.NewRouter()
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())
	return r
}
