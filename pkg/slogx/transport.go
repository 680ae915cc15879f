package slogx

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/thienng-it/note-hub-sub001/pkg/idx"
)

// Transport is an http.RoundTripper that stamps every outgoing request with
// an X-Request-ID and logs its outcome, including how long a request waited
// since its ID was minted. Query strings and bodies are never
// logged since they may carry tokens or passwords.
type Transport struct {
	Base   http.RoundTripper
	Logger *slog.Logger
}

// NewTransport wraps base (http.DefaultTransport when nil).
func NewTransport(base http.RoundTripper, logger *slog.Logger) *Transport {
	if base == nil {
		base = http.DefaultTransport
	}
	return &Transport{Base: base, Logger: logger}
}

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()

	reqID := req.Header.Get(idx.RequestIDHeader)
	if reqID == "" {
		reqID = idx.New().String()
		// RoundTrippers must not modify the caller's request.
		req = req.Clone(req.Context())
		req.Header.Set(idx.RequestIDHeader, reqID)
	}

	logger := t.Logger
	if logger == nil {
		logger = FromContext(req.Context())
	}
	logger = logger.With(
		"req_id", reqID,
		"method", req.Method,
		"path", req.URL.Path,
	)

	// IDs are minted before the client-side rate limiter, so the gap to now
	// is time spent queued.
	if id, err := idx.Parse(reqID); err == nil {
		logger = logger.With("queued_ms", start.Sub(id.Time()).Milliseconds())
	}

	resp, err := t.Base.RoundTrip(req)
	duration := time.Since(start).Milliseconds()
	if err != nil {
		logger.Warn("http_request_failed", "duration_ms", duration, "error", err)
		return nil, err
	}

	logger.Debug("http_request",
		"status", resp.StatusCode,
		"duration_ms", duration,
	)
	return resp, nil
}
