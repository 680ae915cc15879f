// Package sqlite persists the session in a local SQLite database. Tokens are
// sealed before they are written; the profile is stored as JSON.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/thienng-it/note-hub-sub001/internal/sealbox"
	"github.com/thienng-it/note-hub-sub001/internal/session"
	"github.com/thienng-it/note-hub-sub001/pkg/notehubsdk"
	_ "modernc.org/sqlite"
)

// SealPurpose is the sealbox purpose tokens are sealed under.
const SealPurpose = "session-tokens"

var (
	adAccess  = []byte("session/access")
	adRefresh = []byte("session/refresh")
)

type Store struct {
	db     *sql.DB
	sealer *sealbox.Sealer
	now    func() time.Time
}

var _ session.Persister = (*Store)(nil)

// NewStore opens the database at dsn. Call ApplyMigrations before use.
func NewStore(dsn string, sealer *sealbox.Sealer) (*Store, error) {
	if sealer == nil {
		return nil, errors.New("sqlite: sealer is required")
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}

	// One writer at a time; SQLite would serialize anyway.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(context.Background(), `PRAGMA busy_timeout = 5000;`); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db, sealer: sealer, now: time.Now}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// Ping verifies the database connection is still alive.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// WithTx runs fn in a transaction, committing when it returns nil.
func (s *Store) WithTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	defer func() {
		_ = tx.Rollback() // no-op after commit
	}()

	if err := fn(tx); err != nil {
		return err
	}

	return tx.Commit()
}

// Load implements session.Persister.
func (s *Store) Load(ctx context.Context) (*session.Session, error) {
	var (
		access, refresh []byte
		userJSON        string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT access_token, refresh_token, user_json FROM session WHERE id = 1`,
	).Scan(&access, &refresh, &userJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	accessToken, err := s.sealer.Open(access, adAccess)
	if err != nil {
		return nil, fmt.Errorf("open access token: %w", err)
	}
	refreshToken, err := s.sealer.Open(refresh, adRefresh)
	if err != nil {
		return nil, fmt.Errorf("open refresh token: %w", err)
	}

	var user *notehubsdk.User
	if err := json.Unmarshal([]byte(userJSON), &user); err != nil {
		return nil, fmt.Errorf("decode user: %w", err)
	}

	return &session.Session{
		AccessToken:  string(accessToken),
		RefreshToken: string(refreshToken),
		User:         user,
	}, nil
}

// Save implements session.Persister. Tokens and profile go into one row in
// one statement.
func (s *Store) Save(ctx context.Context, sess session.Session) error {
	access, err := s.sealer.Seal([]byte(sess.AccessToken), adAccess)
	if err != nil {
		return err
	}
	refresh, err := s.sealer.Seal([]byte(sess.RefreshToken), adRefresh)
	if err != nil {
		return err
	}
	userJSON, err := json.Marshal(sess.User)
	if err != nil {
		return fmt.Errorf("encode user: %w", err)
	}

	return s.WithTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO session (id, access_token, refresh_token, user_json, updated_at)
			VALUES (1, ?, ?, ?, ?)
			ON CONFLICT (id) DO UPDATE SET
				access_token  = excluded.access_token,
				refresh_token = excluded.refresh_token,
				user_json     = excluded.user_json,
				updated_at    = excluded.updated_at`,
			access, refresh, string(userJSON), s.now().Unix(),
		)
		return err
	})
}

// Clear implements session.Persister.
func (s *Store) Clear(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM session WHERE id = 1`)
	return err
}
