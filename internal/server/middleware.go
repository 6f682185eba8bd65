package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/flightdeck/extractor-gateway/internal/identity"
	"github.com/flightdeck/extractor-gateway/internal/problem"
)

type contextKey struct{ name string }

var (
	requestIDKey = contextKey{"request_id"}
	subjectKey   = contextKey{"subject"}
	logFieldsKey = contextKey{"log_fields"}
)

// RequestIDMiddleware tags each request with a unique ID, echoed in the
// X-Request-ID header and used as the problem instance on errors.
func RequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := uuid.New().String()
		ctx := context.WithValue(r.Context(), requestIDKey, requestID)
		w.Header().Set("X-Request-ID", requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequestID returns the request's ID, or "" outside the middleware chain.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// LoggingMiddleware logs each request with structured fields. Handlers can
// enrich the completion line via AddLogField.
func LoggingMiddleware(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			fields := make(map[string]string)
			ctx := context.WithValue(r.Context(), logFieldsKey, fields)

			wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(wrapped, r.WithContext(ctx))

			attrs := []slog.Attr{
				slog.String("request_id", RequestID(ctx)),
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", wrapped.statusCode),
				slog.Duration("duration", time.Since(start)),
			}
			for k, v := range fields {
				attrs = append(attrs, slog.String(k, v))
			}

			logger.LogAttrs(ctx, slog.LevelInfo, "request completed", attrs...)
		})
	}
}

// AddLogField attaches a key/value to the request's completion log line.
// No-op when the logging middleware isn't present.
func AddLogField(ctx context.Context, key, value string) {
	if value == "" {
		return
	}
	if fields, ok := ctx.Value(logFieldsKey).(map[string]string); ok {
		fields[key] = value
	}
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// SecurityHeadersMiddleware attaches the baseline security headers to every
// response, success or failure.
func SecurityHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		next.ServeHTTP(w, r)
	})
}

// RecoverMiddleware converts handler panics into a normalized internal
// error. The panic value is logged server-side and never reaches the client.
func RecoverMiddleware(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					logger.Error("handler panicked",
						slog.String("request_id", RequestID(r.Context())),
						slog.String("path", r.URL.Path),
						slog.Any("panic", rec),
					)
					problem.WriteError(w, problem.New(problem.CodeInternalError, "an unexpected error occurred"), RequestID(r.Context()))
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// TimeoutMiddleware bounds the handler's context lifetime.
func TimeoutMiddleware(timeout time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), timeout)
			defer cancel()
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Authenticate gates a route on the identity provider. No subject means 401
// with a fixed code; provider errors are treated identically to no identity
// and never surface as 500s.
func Authenticate(verifier identity.Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				problem.WriteError(w, problem.New(problem.CodeUnauthorized, "authentication required"), RequestID(r.Context()))
				return
			}

			sub, err := verifier.Verify(r.Context(), token)
			if err != nil || sub == nil || sub.ID == "" {
				problem.WriteError(w, problem.New(problem.CodeUnauthorized, "invalid or expired credentials"), RequestID(r.Context()))
				return
			}

			AddLogField(r.Context(), "subject", sub.ID)
			ctx := context.WithValue(r.Context(), subjectKey, sub)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// SubjectFrom returns the authenticated subject, or nil on public routes.
func SubjectFrom(ctx context.Context) *identity.Subject {
	sub, _ := ctx.Value(subjectKey).(*identity.Subject)
	return sub
}

func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(auth) > len(prefix) && auth[:len(prefix)] == prefix {
		return auth[len(prefix):]
	}
	return ""
}
