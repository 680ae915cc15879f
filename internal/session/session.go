// Package session holds the authenticated user's tokens and profile: the
// single answer to "is someone logged in, and who".
package session

import (
	"context"
	"errors"

	"github.com/thienng-it/note-hub-sub001/pkg/notehubsdk"
)

var (
	// ErrInvalidSession is returned when a session breaks the pairing rule:
	// an access token is present exactly when a user profile is.
	ErrInvalidSession = errors.New("session: access token and user must be set together")

	// ErrNoSession is returned by operations that need a logged-in user.
	ErrNoSession = errors.New("session: not logged in")

	// ErrNoUserSource is returned by RefreshUser when the store was built
	// without a way to fetch the profile.
	ErrNoUserSource = errors.New("session: no user source configured")
)

// Session pairs tokens with the profile of the user they belong to.
type Session struct {
	AccessToken  string
	RefreshToken string
	User         *notehubsdk.User
}

// Validate checks the pairing rule.
func (s Session) Validate() error {
	if (s.AccessToken == "") != (s.User == nil) {
		return ErrInvalidSession
	}
	if s.AccessToken == "" {
		return ErrInvalidSession
	}
	return nil
}

// Clone returns a deep copy.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	cp := *s
	cp.User = s.User.Clone()
	return &cp
}

// FromTokens builds a Session from a login response.
func FromTokens(tokens *notehubsdk.TokenResponse) Session {
	return Session{
		AccessToken:  tokens.AccessToken,
		RefreshToken: tokens.RefreshToken,
		User:         tokens.User.Clone(),
	}
}

// Persister is durable client storage for one session. Load returns nil and
// no error when nothing is stored. Save must write tokens and user together
// or not at all.
type Persister interface {
	Load(ctx context.Context) (*Session, error)
	Save(ctx context.Context, s Session) error
	Clear(ctx context.Context) error
}

// UserSource fetches the current profile from the service.
type UserSource interface {
	GetCurrentUser(ctx context.Context) (*notehubsdk.User, error)
}

// Listener is told about every session change; nil means logged out.
// Listeners receive their own copy.
type Listener func(*Session)
