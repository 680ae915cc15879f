// Package filestore persists the session as a single sealed JSON document.
// Every write replaces the whole file through a rename, so readers see the
// old document or the new one and never a mix.
package filestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/thienng-it/note-hub-sub001/internal/sealbox"
	"github.com/thienng-it/note-hub-sub001/internal/session"
	"github.com/thienng-it/note-hub-sub001/pkg/notehubsdk"
)

// SealPurpose is the sealbox purpose the document is sealed under.
const SealPurpose = "session-file"

var additional = []byte("notehub/session-file/v1")

// document is the on-disk layout.
type document struct {
	AccessToken  string            `json:"access_token,omitempty"`
	RefreshToken string            `json:"refresh_token,omitempty"`
	User         *notehubsdk.User  `json:"user,omitempty"`
	Preferences  map[string]string `json:"preferences,omitempty"`
}

type Store struct {
	path   string
	sealer *sealbox.Sealer

	// mu serializes read-modify-write cycles; session and preferences share
	// the file.
	mu sync.Mutex
}

var _ session.Persister = (*Store)(nil)

// New returns a Store writing to path. The parent directory is created on
// first write.
func New(path string, sealer *sealbox.Sealer) (*Store, error) {
	if sealer == nil {
		return nil, errors.New("filestore: sealer is required")
	}
	return &Store{path: path, sealer: sealer}, nil
}

// Load implements session.Persister.
func (s *Store) Load(context.Context) (*session.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.read()
	if err != nil {
		return nil, err
	}
	if doc.AccessToken == "" && doc.User == nil {
		return nil, nil
	}
	return &session.Session{
		AccessToken:  doc.AccessToken,
		RefreshToken: doc.RefreshToken,
		User:         doc.User,
	}, nil
}

// Save implements session.Persister.
func (s *Store) Save(_ context.Context, sess session.Session) error {
	return s.update(func(doc *document) {
		doc.AccessToken = sess.AccessToken
		doc.RefreshToken = sess.RefreshToken
		doc.User = sess.User
	})
}

// Clear implements session.Persister. Preferences are kept.
func (s *Store) Clear(context.Context) error {
	return s.update(func(doc *document) {
		doc.AccessToken = ""
		doc.RefreshToken = ""
		doc.User = nil
	})
}

// GetPreference returns the value stored under key.
func (s *Store) GetPreference(_ context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.read()
	if err != nil {
		return "", false, err
	}
	v, ok := doc.Preferences[key]
	return v, ok, nil
}

// SetPreference stores value under key.
func (s *Store) SetPreference(_ context.Context, key, value string) error {
	return s.update(func(doc *document) {
		if doc.Preferences == nil {
			doc.Preferences = make(map[string]string)
		}
		doc.Preferences[key] = value
	})
}

// DeletePreference removes key.
func (s *Store) DeletePreference(_ context.Context, key string) error {
	return s.update(func(doc *document) {
		delete(doc.Preferences, key)
	})
}

func (s *Store) update(fn func(doc *document)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.read()
	if err != nil {
		return err
	}
	fn(doc)
	return s.write(doc)
}

// read returns an empty document when the file does not exist.
func (s *Store) read() (*document, error) {
	sealed, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return &document{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read state file: %w", err)
	}

	plain, err := s.sealer.Open(sealed, additional)
	if err != nil {
		return nil, fmt.Errorf("open state file: %w", err)
	}

	var doc document
	if err := json.Unmarshal(plain, &doc); err != nil {
		return nil, fmt.Errorf("decode state file: %w", err)
	}
	return &doc, nil
}

func (s *Store) write(doc *document) error {
	plain, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode state file: %w", err)
	}
	sealed, err := s.sealer.Seal(plain, additional)
	if err != nil {
		return err
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".session-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }() // no-op after rename

	if _, err := tmp.Write(sealed); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}

	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("replace state file: %w", err)
	}
	return nil
}
