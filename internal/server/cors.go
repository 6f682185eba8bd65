package server

import (
	"net/http"
	"strings"
)

// corsAllowHeaders is the fixed set of request headers browsers may send on
// cross-origin calls.
const corsAllowHeaders = "Authorization, Content-Type, Accept, X-Request-ID"

const corsMaxAge = "600"

// CORS validates a request's declared origin against the allow-list and
// reflects it back when listed. A non-listed origin gets no CORS headers at
// all, not an error: the browser blocks client-side, and the gateway does
// not reveal which origins it would accept.
func CORS(allowedOrigins []string, methods ...string) func(http.Handler) http.Handler {
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = true
	}
	allowMethods := strings.Join(methods, ", ")

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin != "" && allowed[origin] {
				h := w.Header()
				h.Set("Access-Control-Allow-Origin", origin)
				h.Set("Access-Control-Allow-Methods", allowMethods)
				h.Set("Access-Control-Allow-Headers", corsAllowHeaders)
				h.Set("Access-Control-Allow-Credentials", "true")
				h.Set("Access-Control-Max-Age", corsMaxAge)
				h.Add("Vary", "Origin")
			}

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
