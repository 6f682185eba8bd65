package server

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/flightdeck/extractor-gateway/internal/identity"
	"github.com/flightdeck/extractor-gateway/internal/problem"
	"github.com/flightdeck/extractor-gateway/internal/ratelimit"
)

func checkHeader(t *testing.T, rec *httptest.ResponseRecorder, key, want string) {
	t.Helper()
	if got := rec.Header().Get(key); got != want {
		t.Errorf("header %s = %q, want %q", key, got, want)
	}
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func decodeProblem(t *testing.T, rec *httptest.ResponseRecorder) problem.Problem {
	t.Helper()
	var p problem.Problem
	if err := json.Unmarshal(rec.Body.Bytes(), &p); err != nil {
		t.Fatalf("body is not problem JSON: %v (%s)", err, rec.Body.String())
	}
	return p
}

func TestRequestIDMiddleware(t *testing.T) {
	var seen string
	handler := RequestIDMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestID(r.Context())
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))

	if seen == "" {
		t.Fatal("no request ID in context")
	}
	checkHeader(t, rec, "X-Request-ID", seen)
}

func TestSecurityHeadersMiddleware(t *testing.T) {
	tests := []struct {
		name    string
		handler http.Handler
	}{
		{"success response", okHandler()},
		{"error response", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			SecurityHeadersMiddleware(tt.handler).ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))

			checkHeader(t, rec, "X-Content-Type-Options", "nosniff")
			checkHeader(t, rec, "X-Frame-Options", "DENY")
			checkHeader(t, rec, "Referrer-Policy", "strict-origin-when-cross-origin")
		})
	}
}

func TestRecoverMiddleware(t *testing.T) {
	handler := RecoverMiddleware(testLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("secret database password: hunter2")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
	p := decodeProblem(t, rec)
	if p.Code() != problem.CodeInternalError {
		t.Errorf("code = %q, want internal_error", p.Code())
	}
	if strings.Contains(rec.Body.String(), "hunter2") {
		t.Error("panic detail leaked to client")
	}
}

func TestAuthenticate(t *testing.T) {
	verifier := identity.StaticVerifier{
		"good-token": identity.Subject{ID: "user-1", Email: "u@example.com"},
	}

	var gotSubject *identity.Subject
	handler := Authenticate(verifier)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSubject = SubjectFrom(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	tests := []struct {
		name       string
		authHeader string
		wantStatus int
	}{
		{"valid token", "Bearer good-token", http.StatusOK},
		{"missing header", "", http.StatusUnauthorized},
		{"invalid token", "Bearer bad-token", http.StatusUnauthorized},
		{"wrong scheme", "Basic Zm9vOmJhcg==", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotSubject = nil
			req := httptest.NewRequest("GET", "/", nil)
			if tt.authHeader != "" {
				req.Header.Set("Authorization", tt.authHeader)
			}

			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if tt.wantStatus == http.StatusOK {
				if gotSubject == nil || gotSubject.ID != "user-1" {
					t.Errorf("subject = %+v, want user-1", gotSubject)
				}
			} else {
				p := decodeProblem(t, rec)
				if p.Code() != problem.CodeUnauthorized {
					t.Errorf("code = %q, want unauthorized", p.Code())
				}
			}
		})
	}
}

func TestRateLimit_HeadersAndRejection(t *testing.T) {
	limiter := ratelimit.New(map[ratelimit.Class]ratelimit.Limit{
		ratelimit.ClassUpload: {Window: time.Minute, Max: 2},
	})
	handler := RateLimit(limiter, ratelimit.ClassUpload)(okHandler())

	req := func() *http.Request {
		r := httptest.NewRequest("POST", "/extract", nil)
		r.RemoteAddr = "10.0.0.1:4000"
		return r
	}

	// First request: allowed with full headers.
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req())
	if rec.Code != http.StatusOK {
		t.Fatalf("request 1 status = %d", rec.Code)
	}
	checkHeader(t, rec, "X-RateLimit-Limit", "2")
	checkHeader(t, rec, "X-RateLimit-Remaining", "1")
	if rec.Header().Get("X-RateLimit-Reset") == "" {
		t.Error("missing X-RateLimit-Reset header")
	}

	// Exhaust the window.
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req())
	if rec.Code != http.StatusOK {
		t.Fatalf("request 2 status = %d", rec.Code)
	}

	// Third request: 429 with Retry-After and a normalized problem body.
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req())
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("request 3 status = %d, want 429", rec.Code)
	}
	checkHeader(t, rec, "X-RateLimit-Remaining", "0")
	if rec.Header().Get("Retry-After") == "" {
		t.Error("missing Retry-After on 429")
	}
	p := decodeProblem(t, rec)
	if p.Code() != problem.CodeRateLimitExceeded {
		t.Errorf("code = %q, want rate_limit_exceeded", p.Code())
	}
}

func TestRateLimit_ClientsAreIndependent(t *testing.T) {
	limiter := ratelimit.New(map[ratelimit.Class]ratelimit.Limit{
		ratelimit.ClassDefault: {Window: time.Minute, Max: 1},
	})
	handler := RateLimit(limiter, ratelimit.ClassDefault)(okHandler())

	reqA := httptest.NewRequest("GET", "/", nil)
	reqA.RemoteAddr = "10.0.0.1:1111"
	reqB := httptest.NewRequest("GET", "/", nil)
	reqB.RemoteAddr = "10.0.0.2:2222"

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, reqA)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, reqA)
	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("client A second request = %d, want 429", rec.Code)
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, reqB)
	if rec.Code != http.StatusOK {
		t.Errorf("client B first request = %d, want 200", rec.Code)
	}
}

func TestRateLimit_TokenIdentifiesClientAcrossIPs(t *testing.T) {
	limiter := ratelimit.New(map[ratelimit.Class]ratelimit.Limit{
		ratelimit.ClassDefault: {Window: time.Minute, Max: 1},
	})
	handler := RateLimit(limiter, ratelimit.ClassDefault)(okHandler())

	mkReq := func(addr string) *http.Request {
		r := httptest.NewRequest("GET", "/", nil)
		r.RemoteAddr = addr
		r.Header.Set("Authorization", "Bearer same-token")
		return r
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, mkReq("10.0.0.1:1111"))
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, mkReq("10.0.0.9:9999"))
	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("same token from new IP = %d, want 429", rec.Code)
	}
}

func TestCORS(t *testing.T) {
	allowed := []string{"https://app.example.com"}
	handler := CORS(allowed, http.MethodPost, http.MethodOptions)(okHandler())

	t.Run("allowed origin reflected", func(t *testing.T) {
		req := httptest.NewRequest("POST", "/", nil)
		req.Header.Set("Origin", "https://app.example.com")

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		checkHeader(t, rec, "Access-Control-Allow-Origin", "https://app.example.com")
		checkHeader(t, rec, "Access-Control-Allow-Methods", "POST, OPTIONS")
		checkHeader(t, rec, "Access-Control-Allow-Credentials", "true")
	})

	t.Run("unlisted origin gets no cors headers and no error", func(t *testing.T) {
		req := httptest.NewRequest("POST", "/", nil)
		req.Header.Set("Origin", "https://evil.example.com")

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Errorf("status = %d, want 200 (silent omission, not an error)", rec.Code)
		}
		checkHeader(t, rec, "Access-Control-Allow-Origin", "")
	})

	t.Run("preflight short-circuits", func(t *testing.T) {
		req := httptest.NewRequest("OPTIONS", "/", nil)
		req.Header.Set("Origin", "https://app.example.com")

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusNoContent {
			t.Errorf("preflight status = %d, want 204", rec.Code)
		}
	})
}

func TestAddLogField_NoMiddlewareIsNoop(t *testing.T) {
	// Must not panic without the logging middleware present.
	AddLogField(context.Background(), "key", "value")
}

func TestLoggingMiddleware_CapturesStatus(t *testing.T) {
	handler := LoggingMiddleware(testLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		AddLogField(r.Context(), "batch_id", "b-1")
		w.WriteHeader(http.StatusTeapot)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))

	if rec.Code != http.StatusTeapot {
		t.Errorf("status = %d, want 418", rec.Code)
	}
}
