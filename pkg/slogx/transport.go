package slogx

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/aussiebroadwan/regconsole/pkg/idx"
)

// Transport is an http.RoundTripper that stamps every outbound request with
// a request id and logs the exchange. Bodies are never logged since they
// carry passwords, passcodes and tokens.
type Transport struct {
	Base   http.RoundTripper
	Logger *slog.Logger
}

// NewTransport wraps base (http.DefaultTransport when nil).
func NewTransport(base http.RoundTripper, logger *slog.Logger) *Transport {
	if base == nil {
		base = http.DefaultTransport
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Transport{Base: base, Logger: logger}
}

// RoundTrip implements http.RoundTripper.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	reqID := req.Header.Get(RequestIDHeader)
	if reqID == "" {
		// RoundTrippers must not mutate the caller's request.
		req = req.Clone(req.Context())
		reqID = idx.New().String()
		req.Header.Set(RequestIDHeader, reqID)
	}

	log := t.Logger.With(
		"req_id", reqID,
		"method", req.Method,
		"path", req.URL.Path,
	)

	start := time.Now()
	resp, err := t.Base.RoundTrip(req)
	duration := time.Since(start).Milliseconds()
	if err != nil {
		log.Warn("outbound_request_failed", "duration_ms", duration, "err", err)
		return nil, err
	}

	log.Debug("outbound_request", "status", resp.StatusCode, "duration_ms", duration)
	return resp, nil
}
