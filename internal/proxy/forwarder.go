// Package proxy relays validated requests to the upstream extraction
// backend and folds every upstream failure mode into the gateway's
// normalized problem format. There are no retries here: retry policy
// belongs to the caller, and retrying during upstream distress only
// amplifies load.
package proxy

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/flightdeck/extractor-gateway/internal/problem"
)

// requestHeaders is the whitelist of inbound headers forwarded upstream.
// The Svix trio carries the identity provider's webhook signature, which
// the upstream verifies.
var requestHeaders = []string{
	"Authorization",
	"Content-Type",
	"Accept",
	"X-Request-ID",
	"Svix-Id",
	"Svix-Timestamp",
	"Svix-Signature",
}

// responseHeaders is the whitelist of upstream headers relayed back.
// Everything else is dropped, including the upstream's own rate-limit
// headers: the gateway's limiter already stamps X-RateLimit-* on every
// response, and echoing a second set would contradict it.
var responseHeaders = []string{
	"Content-Type",
	"Cache-Control",
	"ETag",
}

// Option configures the forwarder.
type Option func(*Forwarder)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(f *Forwarder) {
		f.client = c
	}
}

// Forwarder relays requests to a fixed upstream base URL.
type Forwarder struct {
	baseURL string
	client  *http.Client
}

// New creates a forwarder for the given base URL.
func New(baseURL string, opts ...Option) *Forwarder {
	f := &Forwarder{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  http.DefaultClient,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Result is a successful upstream response: relayed status, whitelisted
// headers, and the full body.
type Result struct {
	Status int
	Header http.Header
	Body   []byte
}

// Do sends one request upstream with a bounded timeout. On a non-success
// status the upstream error body is interpreted into a Problem; on network
// failure or timeout a 502/504-class Problem is synthesized. The in-flight
// call is abandoned on timeout.
func (f *Forwarder) Do(ctx context.Context, method, path string, header http.Header, body io.Reader, timeout time.Duration) (*Result, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, method, f.baseURL+path, body)
	if err != nil {
		return nil, problem.New(problem.CodeInternalError, "failed to build upstream request")
	}
	copyHeaders(req.Header, header, requestHeaders)

	resp, err := f.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, problem.New(problem.CodeRequestTimeout, "upstream request timed out")
		}
		return nil, problem.New(problem.CodeBackendError, "upstream is unreachable")
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, problem.New(problem.CodeRequestTimeout, "upstream response timed out")
		}
		return nil, problem.New(problem.CodeBackendError, "failed to read upstream response")
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, problem.FromUpstream(resp.StatusCode, respBody)
	}

	out := &Result{Status: resp.StatusCode, Header: make(http.Header), Body: respBody}
	copyHeaders(out.Header, resp.Header, responseHeaders)
	return out, nil
}

// Relay writes a successful upstream result to the client.
func Relay(w http.ResponseWriter, res *Result) {
	for key, vals := range res.Header {
		for _, v := range vals {
			w.Header().Add(key, v)
		}
	}
	w.WriteHeader(res.Status)
	_, _ = w.Write(res.Body)
}

func copyHeaders(dst, src http.Header, allow []string) {
	for _, key := range allow {
		for _, v := range src.Values(key) {
			dst.Add(key, v)
		}
	}
}
