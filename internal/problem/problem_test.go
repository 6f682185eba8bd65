package problem

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestNew_CodeStatusMapping(t *testing.T) {
	tests := []struct {
		code   Code
		status int
	}{
		{CodeUnauthorized, http.StatusUnauthorized},
		{CodeForbidden, http.StatusForbidden},
		{CodeValidationError, http.StatusBadRequest},
		{CodeRateLimitExceeded, http.StatusTooManyRequests},
		{CodeFileTooLarge, http.StatusRequestEntityTooLarge},
		{CodeUnsupportedFile, http.StatusUnsupportedMediaType},
		{CodeNoFileProvided, http.StatusBadRequest},
		{CodeResourceNotFound, http.StatusNotFound},
		{CodeBackendError, http.StatusBadGateway},
		{CodeRequestTimeout, http.StatusGatewayTimeout},
		{CodeInternalError, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			p := New(tt.code, "detail")
			if p.Status != tt.status {
				t.Errorf("status = %d, want %d", p.Status, tt.status)
			}
			if p.Title != string(tt.code) {
				t.Errorf("title = %q, want %q", p.Title, tt.code)
			}
			if want := "about:blank#" + string(tt.code); p.Type != want {
				t.Errorf("type = %q, want %q", p.Type, want)
			}
		})
	}
}

func TestProblem_JSONRoundTrip(t *testing.T) {
	orig := New(CodeRateLimitExceeded, "too many requests").WithInstance("req-123")

	data, err := json.Marshal(orig)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var got Problem
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if got != *orig {
		t.Errorf("round trip changed fields: got %+v, want %+v", got, *orig)
	}
}

func TestFrom_PassesThroughProblem(t *testing.T) {
	orig := New(CodeNotFound, "no such batch")
	wrapped := fmt.Errorf("handler failed: %w", orig)

	got := From(wrapped)
	if got != orig {
		t.Errorf("From did not unwrap to the original problem")
	}
}

func TestFrom_ScrubsUnknownErrors(t *testing.T) {
	got := From(errors.New("pq: password authentication failed for user admin"))

	if got.Code() != CodeInternalError {
		t.Errorf("code = %q, want internal_error", got.Code())
	}
	if got.Detail == "pq: password authentication failed for user admin" {
		t.Error("internal error detail leaked to client")
	}
}

func TestWrite(t *testing.T) {
	rec := httptest.NewRecorder()
	Write(rec, New(CodeUnsupportedFile, "extension not allowed"))

	if rec.Code != http.StatusUnsupportedMediaType {
		t.Errorf("status = %d, want 415", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("content type = %q", ct)
	}

	var p Problem
	if err := json.Unmarshal(rec.Body.Bytes(), &p); err != nil {
		t.Fatalf("body not valid problem JSON: %v", err)
	}
	if p.Title != "unsupported_file_type" {
		t.Errorf("title = %q", p.Title)
	}
}

func TestFromUpstream_ProblemShapePassesThrough(t *testing.T) {
	body := []byte(`{"type":"about:blank#resource_not_found","title":"resource_not_found","status":404,"detail":"batch not found","instance":"abc"}`)

	p := FromUpstream(404, body)
	if p.Code() != CodeResourceNotFound {
		t.Errorf("code = %q, want resource_not_found", p.Code())
	}
	if p.Detail != "batch not found" || p.Instance != "abc" {
		t.Errorf("fields not preserved: %+v", p)
	}
}

func TestFromUpstream_LegacyShapeMapped(t *testing.T) {
	body := []byte(`{"error":"maintenance","message":"down for maintenance"}`)

	p := FromUpstream(503, body)
	if p.Code() != CodeBackendError {
		t.Errorf("code = %q, want backend_error", p.Code())
	}
	if p.Detail != "down for maintenance" {
		t.Errorf("detail = %q, want upstream message preserved", p.Detail)
	}
	if p.Status != http.StatusBadGateway {
		t.Errorf("status = %d, want 502 for upstream 5xx", p.Status)
	}
}

func TestFromUpstream_OpaqueBodySynthesized(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       []byte
		wantStatus int
	}{
		{"html error page", 500, []byte("<html>Internal Server Error</html>"), http.StatusBadGateway},
		{"empty body", 503, nil, http.StatusBadGateway},
		{"client error relayed", 404, []byte("not json"), http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := FromUpstream(tt.status, tt.body)
			if p.Code() != CodeBackendError {
				t.Errorf("code = %q, want backend_error", p.Code())
			}
			if p.Status != tt.wantStatus {
				t.Errorf("status = %d, want %d", p.Status, tt.wantStatus)
			}
		})
	}
}
