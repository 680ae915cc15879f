package notehubsdk

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// refreshLeeway is how long before expiry an access token is refreshed.
const refreshLeeway = 30 * time.Second

// TokenSource supplies tokens to a Session and receives refreshed access
// tokens. The refresh token is never rotated.
type TokenSource interface {
	AccessToken() string
	RefreshToken() string
	UpdateAccessToken(ctx context.Context, accessToken string) error
}

// Session represents an authenticated session with automatic token refresh.
type Session struct {
	client *SDKClient
	tokens TokenSource

	// mu serializes refreshes so concurrent callers don't each spend the
	// refresh token.
	mu  sync.Mutex
	now func() time.Time
}

// StaticTokens is a TokenSource over fixed tokens; refreshed access tokens
// replace the held one in memory only.
type StaticTokens struct {
	mu      sync.RWMutex
	access  string
	refresh string
}

// NewStaticTokens returns a StaticTokens holding access and refresh.
func NewStaticTokens(access, refresh string) *StaticTokens {
	return &StaticTokens{access: access, refresh: refresh}
}

func (s *StaticTokens) AccessToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.access
}

func (s *StaticTokens) RefreshToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.refresh
}

func (s *StaticTokens) UpdateAccessToken(_ context.Context, accessToken string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.access = accessToken
	return nil
}

// TokenExpiry returns the exp claim of a JWT without verifying its signature.
// Verification is the service's job; the client only needs to know when to
// refresh. ok is false for opaque tokens or tokens without exp.
func TokenExpiry(token string) (exp time.Time, ok bool) {
	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return time.Time{}, false
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}

// getValidToken returns an access token, refreshing it first when it is about
// to expire.
func (s *Session) getValidToken(ctx context.Context) (string, error) {
	token := s.tokens.AccessToken()
	if token == "" {
		return "", ErrNotAuthenticated
	}
	if !s.expiringSoon(token) {
		return token, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Another caller may have refreshed while we waited for the lock.
	token = s.tokens.AccessToken()
	if !s.expiringSoon(token) {
		return token, nil
	}

	refreshToken := s.tokens.RefreshToken()
	if refreshToken == "" {
		return "", ErrNoRefreshToken
	}

	tokenResp, err := s.client.RefreshGrant(ctx, refreshToken)
	if err != nil {
		return "", fmt.Errorf("failed to refresh token: %w", err)
	}
	if err := s.tokens.UpdateAccessToken(ctx, tokenResp.AccessToken); err != nil {
		return "", fmt.Errorf("failed to store refreshed token: %w", err)
	}

	return tokenResp.AccessToken, nil
}

func (s *Session) expiringSoon(token string) bool {
	exp, ok := TokenExpiry(token)
	if !ok {
		return false
	}
	return !s.now().Add(refreshLeeway).Before(exp)
}
