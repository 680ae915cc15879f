package session

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"sync"

	"github.com/thienng-it/note-hub-sub001/pkg/notehubsdk"
	"github.com/thienng-it/note-hub-sub001/pkg/slogx"
)

const defaultWriteAttempts = 3

// Store is the process-wide session holder. Mutations persist first and only
// then update memory and notify listeners; a write that keeps failing leaves
// both views on the previous session.
type Store struct {
	persister Persister
	attempts  int
	logger    *slog.Logger

	mu        sync.Mutex
	current   *Session
	source    UserSource
	listeners map[int]Listener
	nextID    int
}

// Option configures a Store.
type Option func(*Store)

// WithWriteAttempts sets how many times a persistence write is tried.
func WithWriteAttempts(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.attempts = n
		}
	}
}

// WithLogger sets the store's logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// WithUserSource sets the profile source used by RefreshUser.
func WithUserSource(src UserSource) Option {
	return func(s *Store) { s.source = src }
}

// NewStore returns an empty store over p. Call Load to pick up a persisted
// session.
func NewStore(p Persister, opts ...Option) *Store {
	s := &Store{
		persister: p,
		attempts:  defaultWriteAttempts,
		logger:    slogx.Discard(),
		listeners: make(map[int]Listener),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetUserSource installs the profile source after construction. The SDK
// session that fetches profiles reads its tokens from this store, so the two
// are wired in two steps.
func (s *Store) SetUserSource(src UserSource) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.source = src
}

// Subscribe registers l and returns a function that removes it.
func (s *Store) Subscribe(l Listener) (unsubscribe func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextID
	s.nextID++
	s.listeners[id] = l

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.listeners, id)
	}
}

// Load reads the persisted session without touching the network. An expired
// token is only discovered by the first request that uses it. A persisted
// session that breaks the pairing rule is discarded.
func (s *Store) Load(ctx context.Context) (*Session, error) {
	loaded, err := s.persister.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}

	if loaded != nil && loaded.Validate() != nil {
		s.logger.Warn("discarding partial persisted session")
		if err := s.persister.Clear(ctx); err != nil {
			return nil, fmt.Errorf("clear partial session: %w", err)
		}
		loaded = nil
	}

	s.mu.Lock()
	s.current = loaded.Clone()
	notify := s.snapshotLocked()
	s.mu.Unlock()

	notify(loaded)
	return loaded.Clone(), nil
}

// Current returns a copy of the session, or nil when logged out.
func (s *Store) Current() *Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current.Clone()
}

// Set replaces the session.
func (s *Store) Set(ctx context.Context, next Session) error {
	if err := next.Validate(); err != nil {
		return err
	}
	return s.replace(ctx, next.Clone())
}

// Clear logs out.
func (s *Store) Clear(ctx context.Context) error {
	return s.replace(ctx, nil)
}

// RefreshUser fetches the profile and replaces the cached one. Tokens are
// left alone. Errors are returned untouched so the caller can decide whether
// to show them. A 401 means the tokens are dead, so the session is cleared
// and listeners see the logout.
func (s *Store) RefreshUser(ctx context.Context) (*notehubsdk.User, error) {
	s.mu.Lock()
	src := s.source
	loggedIn := s.current != nil
	s.mu.Unlock()

	if src == nil {
		return nil, ErrNoUserSource
	}
	if !loggedIn {
		return nil, ErrNoSession
	}

	user, err := src.GetCurrentUser(ctx)
	if err != nil {
		if notehubsdk.IsUnauthorized(err) {
			s.logger.Info("session rejected by service, logging out", "error", err)
			if cerr := s.Clear(ctx); cerr != nil {
				s.logger.Error("failed to clear rejected session", "error", cerr)
			}
		}
		return nil, err
	}
	if err := s.UpdateUser(ctx, user); err != nil {
		return nil, err
	}
	return user.Clone(), nil
}

// UpdateUser replaces the cached profile. An unchanged profile is a no-op.
func (s *Store) UpdateUser(ctx context.Context, user *notehubsdk.User) error {
	if user == nil {
		return ErrInvalidSession
	}
	return s.modify(ctx, func(cur *Session) bool {
		if reflect.DeepEqual(cur.User, user) {
			return false
		}
		cur.User = user.Clone()
		return true
	})
}

// AccessToken implements notehubsdk.TokenSource.
func (s *Store) AccessToken() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return ""
	}
	return s.current.AccessToken
}

// RefreshToken implements notehubsdk.TokenSource.
func (s *Store) RefreshToken() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return ""
	}
	return s.current.RefreshToken
}

// UpdateAccessToken implements notehubsdk.TokenSource.
func (s *Store) UpdateAccessToken(ctx context.Context, token string) error {
	if token == "" {
		return ErrInvalidSession
	}
	return s.modify(ctx, func(cur *Session) bool {
		if cur.AccessToken == token {
			return false
		}
		cur.AccessToken = token
		return true
	})
}

// modify applies fn to a copy of the current session and stores the result
// when fn reports a change.
func (s *Store) modify(ctx context.Context, fn func(cur *Session) bool) error {
	s.mu.Lock()
	if s.current == nil {
		s.mu.Unlock()
		return ErrNoSession
	}
	next := s.current.Clone()
	if !fn(next) {
		s.mu.Unlock()
		return nil
	}
	return s.commitLocked(ctx, next)
}

func (s *Store) replace(ctx context.Context, next *Session) error {
	s.mu.Lock()
	return s.commitLocked(ctx, next)
}

// commitLocked persists next, swaps it in and notifies. It is entered with
// s.mu held and releases it.
func (s *Store) commitLocked(ctx context.Context, next *Session) error {
	prev := s.current

	if err := s.writeWithRetry(ctx, next); err != nil {
		s.rollback(ctx, prev)
		s.mu.Unlock()
		return fmt.Errorf("persist session: %w", err)
	}

	s.current = next
	notify := s.snapshotLocked()
	s.mu.Unlock()

	notify(next)
	return nil
}

func (s *Store) writeWithRetry(ctx context.Context, next *Session) error {
	var err error
	for attempt := 1; attempt <= s.attempts; attempt++ {
		if next == nil {
			err = s.persister.Clear(ctx)
		} else {
			err = s.persister.Save(ctx, *next)
		}
		if err == nil {
			return nil
		}
		s.logger.Warn("session write failed", "attempt", attempt, "error", err)
		if ctx.Err() != nil {
			break
		}
	}
	return err
}

// rollback puts prev back into storage after a failed write, in case the
// failure left a partial record behind.
func (s *Store) rollback(ctx context.Context, prev *Session) {
	var err error
	if prev == nil {
		err = s.persister.Clear(ctx)
	} else {
		err = s.persister.Save(ctx, *prev)
	}
	if err != nil {
		s.logger.Error("session rollback failed", "error", err)
	}
}

// snapshotLocked returns a function that delivers a session to the
// listeners registered right now. It runs outside the lock so listeners may
// call back into the store.
func (s *Store) snapshotLocked() func(*Session) {
	ls := make([]Listener, 0, len(s.listeners))
	for _, l := range s.listeners {
		ls = append(ls, l)
	}
	return func(sess *Session) {
		for _, l := range ls {
			l(sess.Clone())
		}
	}
}
