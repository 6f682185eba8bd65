package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/flightdeck/extractor-gateway/internal/config"
	"github.com/flightdeck/extractor-gateway/internal/handlers"
	"github.com/flightdeck/extractor-gateway/internal/identity"
	"github.com/flightdeck/extractor-gateway/internal/problem"
	"github.com/flightdeck/extractor-gateway/internal/ratelimit"
	"github.com/flightdeck/extractor-gateway/internal/server"
)

// mountRoutes attaches the gateway surface. Every route carries a rate
// class: the API groups bind their own, and everything else (health probes,
// metrics, unmatched paths) falls into the default class, so limiter
// headers appear on every response.
func mountRoutes(router *chi.Mux, h *handlers.Handler, limiter *ratelimit.Limiter, verifier identity.Verifier, cfg *config.Config) {
	cors := server.CORS(cfg.CORS.AllowedOrigins, http.MethodGet, http.MethodPost, http.MethodOptions)
	auth := server.Authenticate(verifier)
	defaultLimit := server.RateLimit(limiter, ratelimit.ClassDefault)

	router.Route("/api/v1", func(r chi.Router) {
		r.Route("/extractor", func(r chi.Router) {
			r.With(cors, server.RateLimit(limiter, ratelimit.ClassUpload), auth).
				Post("/extract", h.Extract)
			r.With(cors).Options("/extract", preflight)

			r.With(cors, server.RateLimit(limiter, ratelimit.ClassResults), auth).
				Get("/results/{batchID}", h.Results)
			r.With(cors).Options("/results/{batchID}", preflight)
		})

		r.Route("/auth", func(r chi.Router) {
			r.Use(cors, server.RateLimit(limiter, ratelimit.ClassAuth))
			r.With(auth).Get("/session", h.Session)
			r.With(auth).Post("/refresh", h.Refresh)
			r.Post("/clerk/webhook", h.ClerkWebhook)
			r.Get("/status", h.AuthStatus)
		})
	})

	router.With(defaultLimit).Get("/health/live", h.Live)
	router.With(defaultLimit).Get("/health/ready", h.Ready)
	router.With(defaultLimit).Handle("/metrics", promhttp.Handler())

	router.NotFound(defaultLimit(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		problem.WriteError(w, problem.New(problem.CodeNotFound, "no such endpoint"), server.RequestID(r.Context()))
	})).ServeHTTP)
}

// preflight exists so OPTIONS routes match; the CORS middleware terminates
// the request before this runs.
func preflight(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}
