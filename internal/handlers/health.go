package handlers

import (
	"encoding/json"
	"net/http"
	"time"
)

// Live reports process liveness.
func (h *Handler) Live(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// Ready reports whether the upstream is reachable. A short probe timeout
// keeps the readiness check responsive during upstream distress.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	_, err := h.forwarder.Do(r.Context(), http.MethodGet, "/health", nil, nil, 3*time.Second)
	if err != nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "degraded", "upstream": "unreachable"})
		return
	}
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}
