package server

import (
	"crypto/sha256"
	"encoding/hex"
	"net"
	"net/http"
	"strconv"

	"github.com/flightdeck/extractor-gateway/internal/problem"
	"github.com/flightdeck/extractor-gateway/internal/ratelimit"
)

// RateLimit enforces the fixed-window budget for an endpoint class. It runs
// before authentication so unauthenticated floods are cheap to reject, and
// reports the window state on every response so clients can self-throttle.
func RateLimit(limiter *ratelimit.Limiter, class ratelimit.Class) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			res := limiter.Check(clientID(r), class)
			writeRateLimitHeaders(w, res)

			if !res.Allowed {
				retry := res.RetryAfter(timeNow())
				w.Header().Set("Retry-After", strconv.Itoa(retry))
				rateLimitRejections.WithLabelValues(string(class)).Inc()
				problem.WriteError(w,
					problem.Newf(problem.CodeRateLimitExceeded, "rate limit exceeded, retry in %d seconds", retry),
					RequestID(r.Context()))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func writeRateLimitHeaders(w http.ResponseWriter, res ratelimit.Result) {
	if res.Limit == 0 {
		return
	}
	h := w.Header()
	h.Set("X-RateLimit-Limit", strconv.Itoa(res.Limit))
	h.Set("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
	h.Set("X-RateLimit-Reset", strconv.FormatInt(res.ResetAt.Unix(), 10))
}

// clientID identifies a caller before authentication has run: a digest of
// the bearer token when one is present, else the remote IP. The token is
// never used raw so limiter keys cannot leak credentials.
func clientID(r *http.Request) string {
	if token := bearerToken(r); token != "" {
		sum := sha256.Sum256([]byte(token))
		return "tok:" + hex.EncodeToString(sum[:8])
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return "ip:" + r.RemoteAddr
	}
	return "ip:" + host
}
