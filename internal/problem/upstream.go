package problem

import (
	"encoding/json"
	"net/http"
)

// legacyError is the simpler error shape some upstream endpoints still emit.
type legacyError struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// FromUpstream interprets an upstream error body. Bodies already in the
// problem shape pass through field-for-field; the legacy {error, message}
// shape is mapped onto a backend_error carrying the upstream message;
// anything else is treated as opaque and synthesized into a generic
// backend_error for the given status.
func FromUpstream(status int, body []byte) *Problem {
	var p Problem
	if err := json.Unmarshal(body, &p); err == nil && p.Title != "" && p.Status != 0 {
		return &p
	}

	var le legacyError
	if err := json.Unmarshal(body, &le); err == nil && (le.Error != "" || le.Message != "") {
		detail := le.Message
		if detail == "" {
			detail = le.Error
		}
		mapped := New(CodeBackendError, detail)
		mapped.Status = upstreamStatus(status)
		return mapped
	}

	mapped := Newf(CodeBackendError, "upstream returned status %d", status)
	mapped.Status = upstreamStatus(status)
	return mapped
}

// upstreamStatus clamps an upstream status into something safe to relay.
// Client errors pass through; server errors and anything malformed become 502.
func upstreamStatus(status int) int {
	if status >= 400 && status < 500 {
		return status
	}
	return http.StatusBadGateway
}
