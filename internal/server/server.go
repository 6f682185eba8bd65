// Package server assembles the gateway's middleware pipeline around a chi
// router. Per request the order is fixed: request ID, logging, metrics,
// security headers, then per-route rate limiting and authentication, then
// the handler, with panic recovery converting anything uncaught into a
// normalized problem.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// timeNow is swapped in tests.
var timeNow = time.Now

type Server struct {
	Router *chi.Mux
	logger *slog.Logger
	http   *http.Server
}

// New builds the router with the ambient middleware chain. Route-specific
// middleware (rate class, auth, CORS) is attached where routes are mounted.
func New(port int, timeout time.Duration, logger *slog.Logger) *Server {
	r := chi.NewRouter()

	r.Use(func(next http.Handler) http.Handler {
		return otelhttp.NewHandler(next, "extractor-gateway")
	})
	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(logger))
	r.Use(MetricsMiddleware)
	r.Use(SecurityHeadersMiddleware)
	r.Use(TimeoutMiddleware(timeout))
	r.Use(RecoverMiddleware(logger))

	return &Server{
		Router: r,
		logger: logger,
		http: &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: r,
		},
	}
}

// Start serves until the listener fails or Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info("starting server", slog.String("addr", s.http.Addr))
	if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests within the context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}
