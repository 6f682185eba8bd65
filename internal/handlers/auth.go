package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/flightdeck/extractor-gateway/internal/problem"
	"github.com/flightdeck/extractor-gateway/internal/proxy"
	"github.com/flightdeck/extractor-gateway/internal/server"
)

// Session proxies the authenticated session lookup upstream. The route is
// behind the auth gate, so an identity is guaranteed here.
func (h *Handler) Session(w http.ResponseWriter, r *http.Request) {
	requestID := server.RequestID(r.Context())

	res, err := h.forwarder.Do(r.Context(), http.MethodGet,
		"/api/v1/auth/session", r.Header, nil, h.cfg.Upstream.Timeout)
	if err != nil {
		problem.WriteError(w, err, requestID)
		return
	}
	proxy.Relay(w, res)
}

// Refresh proxies a token refresh upstream. Like Session it sits behind the
// auth gate; the upstream mints the replacement token.
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	requestID := server.RequestID(r.Context())

	res, err := h.forwarder.Do(r.Context(), http.MethodPost,
		"/api/v1/auth/refresh", r.Header, r.Body, h.cfg.Upstream.Timeout)
	if err != nil {
		problem.WriteError(w, err, requestID)
		return
	}
	proxy.Relay(w, res)
}

// ClerkWebhook relays identity-provider webhook deliveries upstream. The
// route is public: the upstream verifies the Svix signature headers, so the
// gateway forwards them untouched and never parses the payload itself.
func (h *Handler) ClerkWebhook(w http.ResponseWriter, r *http.Request) {
	requestID := server.RequestID(r.Context())

	res, err := h.forwarder.Do(r.Context(), http.MethodPost,
		"/api/v1/auth/clerk/webhook", r.Header, r.Body, h.cfg.Upstream.Timeout)
	if err != nil {
		problem.WriteError(w, err, requestID)
		return
	}
	proxy.Relay(w, res)
}

type authStatus struct {
	Authenticated bool   `json:"authenticated"`
	Subject       string `json:"subject,omitempty"`
}

// AuthStatus reports whether the request carries a valid identity. The route
// is public: an absent or invalid token yields authenticated=false, not 401.
func (h *Handler) AuthStatus(w http.ResponseWriter, r *http.Request) {
	status := authStatus{}

	auth := r.Header.Get("Authorization")
	if token, ok := strings.CutPrefix(auth, "Bearer "); ok && token != "" {
		if sub, err := h.verifier.Verify(r.Context(), token); err == nil && sub != nil {
			status.Authenticated = true
			status.Subject = sub.ID
		}
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(status)
}
