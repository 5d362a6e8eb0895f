// Package httpkit builds the outbound HTTP clients the agent uses to
// reach the model API and webhook endpoints, so every caller shares the
// same pooling and timeout discipline.
package httpkit

import (
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/signal42/campaign-agent/internal/buildinfo"
)

const (
	dialTimeout      = 10 * time.Second
	tlsTimeout       = 10 * time.Second
	headerTimeout    = 15 * time.Second
	idleConnTimeout  = 90 * time.Second
	maxIdleConns     = 20
	maxIdlePerHost   = 5
	defaultReqWindow = 30 * time.Second
)

// NewTransport returns a pooled transport with per-phase timeouts.
// Callers that expect slow first bytes (model calls) raise
// ResponseHeaderTimeout on the returned value before building a client.
func NewTransport() *http.Transport {
	return &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   dialTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   tlsTimeout,
		ResponseHeaderTimeout: headerTimeout,
		IdleConnTimeout:       idleConnTimeout,
		MaxIdleConns:          maxIdleConns,
		MaxIdleConnsPerHost:   maxIdlePerHost,
		ForceAttemptHTTP2:     true,
	}
}

// NewClient wraps the transport in a client that stamps the build's
// User-Agent on every request. A zero timeout disables the whole-request
// deadline; streaming callers pass zero and bound requests with ctx.
func NewClient(timeout time.Duration, transport *http.Transport) *http.Client {
	if transport == nil {
		transport = NewTransport()
	}
	return &http.Client{
		Timeout:   timeout,
		Transport: &identifyingTransport{base: transport},
	}
}

// DefaultClient returns a client with the standard request window,
// suitable for fire-and-forget webhook calls.
func DefaultClient() *http.Client {
	return NewClient(defaultReqWindow, nil)
}

// identifyingTransport sets User-Agent when the caller has not.
type identifyingTransport struct {
	base http.RoundTripper
}

func (t *identifyingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Header.Get("User-Agent") == "" {
		// RoundTrippers must not mutate the caller's request.
		req = req.Clone(req.Context())
		req.Header.Set("User-Agent", buildinfo.UserAgent())
	}
	return t.base.RoundTrip(req)
}

// ReadErrorBody captures up to limit bytes of an error response for
// diagnostics, then drains and closes the body so the connection can be
// reused.
func ReadErrorBody(rc io.ReadCloser, limit int64) string {
	if rc == nil {
		return ""
	}
	body, err := io.ReadAll(io.LimitReader(rc, limit))
	_, _ = io.Copy(io.Discard, io.LimitReader(rc, 1024))
	rc.Close()
	if err != nil {
		return fmt.Sprintf("(failed to read error body: %v)", err)
	}
	return string(body)
}
