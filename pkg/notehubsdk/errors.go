package notehubsdk

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrTransport wraps failures that happened before the service produced
	// a response: DNS, connection resets, timeouts, cancelled contexts.
	ErrTransport = errors.New("transport failure")

	// ErrNotAuthenticated is returned by Session methods when the token
	// source holds no access token.
	ErrNotAuthenticated = errors.New("not authenticated")

	// ErrNoRefreshToken is returned when the access token has expired and
	// there is nothing to refresh it with.
	ErrNoRefreshToken = errors.New("access token expired and no refresh token available")
)

// APIError is a failure reported by the service. Message is the service's
// text and is meant to be shown as is; it may be empty when the response
// body was not the usual JSON error document.
type APIError struct {
	StatusCode int
	Message    string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("request failed with status %d", e.StatusCode)
	}
	return e.Message
}

// IsUnauthorized reports whether err is a 401 from the service.
func IsUnauthorized(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusUnauthorized
}

func transportErr(err error) error {
	return fmt.Errorf("%w: %w", ErrTransport, err)
}

// parseErrorResponse turns a non-2xx response body into an *APIError.
func parseErrorResponse(resp *http.Response, body []byte) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	var errResp ErrorResponse
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error != "" {
		return &APIError{
			StatusCode: resp.StatusCode,
			Message:    errResp.Error,
		}
	}

	return &APIError{StatusCode: resp.StatusCode}
}
