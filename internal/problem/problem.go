// Package problem provides the canonical error format for the gateway.
// Every failure, regardless of origin, is normalized into a Problem before
// it reaches the client.
package problem

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// Code identifies a failure category. Codes are fixed and machine-readable;
// clients key off them, so they are never generated dynamically.
type Code string

const (
	CodeUnauthorized      Code = "unauthorized"
	CodeForbidden         Code = "forbidden"
	CodeValidationError   Code = "validation_error"
	CodeInvalidRequest    Code = "invalid_request"
	CodeRateLimitExceeded Code = "rate_limit_exceeded"
	CodeFileTooLarge      Code = "file_too_large"
	CodeUnsupportedFile   Code = "unsupported_file_type"
	CodeNoFileProvided    Code = "no_file_provided"
	CodeNotFound          Code = "not_found"
	CodeResourceNotFound  Code = "resource_not_found"
	CodeBackendError      Code = "backend_error"
	CodeRequestTimeout    Code = "request_timeout"
	CodeProcessingFailed  Code = "processing_failed"
	CodeInternalError     Code = "internal_error"
)

// statusFor maps each code to its HTTP status. The mapping is fixed; a code
// outside the table falls back to 500.
var statusFor = map[Code]int{
	CodeUnauthorized:      http.StatusUnauthorized,
	CodeForbidden:         http.StatusForbidden,
	CodeValidationError:   http.StatusBadRequest,
	CodeInvalidRequest:    http.StatusBadRequest,
	CodeRateLimitExceeded: http.StatusTooManyRequests,
	CodeFileTooLarge:      http.StatusRequestEntityTooLarge,
	CodeUnsupportedFile:   http.StatusUnsupportedMediaType,
	CodeNoFileProvided:    http.StatusBadRequest,
	CodeNotFound:          http.StatusNotFound,
	CodeResourceNotFound:  http.StatusNotFound,
	CodeBackendError:      http.StatusBadGateway,
	CodeRequestTimeout:    http.StatusGatewayTimeout,
	CodeProcessingFailed:  http.StatusUnprocessableEntity,
	CodeInternalError:     http.StatusInternalServerError,
}

// Problem is the wire error format. Type is always "about:blank#<code>" and
// Title mirrors the code, so the four fields round-trip losslessly.
type Problem struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Detail   string `json:"detail"`
	Instance string `json:"instance,omitempty"`
}

// New creates a Problem for the given code. The detail is the human-readable
// explanation; it must never contain internal error text verbatim for 5xx
// codes (callers scrub before constructing).
func New(code Code, detail string) *Problem {
	status, ok := statusFor[code]
	if !ok {
		status = http.StatusInternalServerError
	}
	return &Problem{
		Type:   fmt.Sprintf("about:blank#%s", code),
		Title:  string(code),
		Status: status,
		Detail: detail,
	}
}

// Newf creates a Problem with a formatted detail string.
func Newf(code Code, format string, args ...any) *Problem {
	return New(code, fmt.Sprintf(format, args...))
}

// WithInstance attaches a per-occurrence identifier used to correlate
// server-side logs with the client-visible error.
func (p *Problem) WithInstance(instance string) *Problem {
	p.Instance = instance
	return p
}

// Code returns the machine-readable code carried in Title.
func (p *Problem) Code() Code {
	return Code(p.Title)
}

// Error implements the error interface so a Problem can travel through
// ordinary error returns.
func (p *Problem) Error() string {
	return fmt.Sprintf("%s (%d): %s", p.Title, p.Status, p.Detail)
}

// From converts any error into a Problem. An error that already is (or
// wraps) a Problem passes through; anything else becomes a generic
// internal_error with a scrubbed detail.
func From(err error) *Problem {
	var p *Problem
	if errors.As(err, &p) {
		return p
	}
	return New(CodeInternalError, "an unexpected error occurred")
}

// Write serializes the Problem as JSON with the matching HTTP status.
func Write(w http.ResponseWriter, p *Problem) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(p.Status)
	_ = json.NewEncoder(w).Encode(p)
}

// WriteError normalizes err and writes it. The instance, if non-empty, is
// attached so clients can report it back.
func WriteError(w http.ResponseWriter, err error, instance string) {
	p := From(err)
	if p.Instance == "" && instance != "" {
		p = p.WithInstance(instance)
	}
	Write(w, p)
}
