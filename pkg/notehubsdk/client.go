package notehubsdk

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/thienng-it/note-hub-sub001/pkg/slogx"
	"golang.org/x/time/rate"
)

// SDKClient is a client for the notehub authentication service.
// It provides access to unauthenticated operations and can create authenticated Sessions.
type SDKClient struct {
	BaseURL    string
	HTTPClient *http.Client

	// Limiter throttles outgoing requests on the client side. The service
	// enforces its own limits (login is capped per minute, password recovery
	// per hour); throttling locally keeps a misbehaving front end from
	// burning through them. Nil disables throttling.
	Limiter *rate.Limiter
}

// Option configures an SDKClient.
type Option func(*SDKClient)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *SDKClient) { c.HTTPClient = hc }
}

// WithRateLimiter installs a client-side request limiter.
func WithRateLimiter(l *rate.Limiter) Option {
	return func(c *SDKClient) { c.Limiter = l }
}

// WithLogger wraps the HTTP client's transport with request logging.
func WithLogger(logger *slog.Logger) Option {
	return func(c *SDKClient) {
		base := c.HTTPClient.Transport
		hc := *c.HTTPClient
		hc.Transport = slogx.NewTransport(base, logger)
		c.HTTPClient = &hc
	}
}

// NewSDKClient creates a new auth service client. Options are applied in order.
func NewSDKClient(baseURL string, opts ...Option) *SDKClient {
	c := &SDKClient{
		BaseURL: strings.TrimSuffix(baseURL, "/"),
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NewSession creates an authenticated session that reads its tokens from src.
func (c *SDKClient) NewSession(src TokenSource) *Session {
	return &Session{
		client: c,
		tokens: src,
		now:    time.Now,
	}
}
