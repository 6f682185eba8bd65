package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/flightdeck/extractor-gateway/internal/problem"
	"github.com/flightdeck/extractor-gateway/internal/proxy"
	"github.com/flightdeck/extractor-gateway/internal/server"
)

// Results proxies an extraction-results read for one batch upstream.
func (h *Handler) Results(w http.ResponseWriter, r *http.Request) {
	requestID := server.RequestID(r.Context())

	batchID := chi.URLParam(r, "batchID")
	if batchID == "" {
		problem.WriteError(w, problem.New(problem.CodeInvalidRequest, "batch ID is required"), requestID)
		return
	}
	server.AddLogField(r.Context(), "batch_id", batchID)

	res, err := h.forwarder.Do(r.Context(), http.MethodGet,
		"/api/v1/extractor/results/"+batchID, r.Header, nil, h.cfg.Upstream.Timeout)
	if err != nil {
		problem.WriteError(w, err, requestID)
		return
	}
	proxy.Relay(w, res)
}
