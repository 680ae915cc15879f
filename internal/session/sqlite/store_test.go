package sqlite_test

import (
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/thienng-it/note-hub-sub001/internal/sealbox"
	"github.com/thienng-it/note-hub-sub001/internal/session"
	"github.com/thienng-it/note-hub-sub001/internal/session/sqlite"
	"github.com/thienng-it/note-hub-sub001/pkg/notehubsdk"
	_ "modernc.org/sqlite"
)

func newSealer(t *testing.T, master string) *sealbox.Sealer {
	t.Helper()
	s, err := sealbox.New([]byte(master), sqlite.SealPurpose)
	require.NoError(t, err)
	return s
}

func openStore(t *testing.T, path, master string) *sqlite.Store {
	t.Helper()
	st, err := sqlite.NewStore(path, newSealer(t, master))
	require.NoError(t, err)
	require.NoError(t, st.ApplyMigrations())
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func sample() session.Session {
	return session.Session{
		AccessToken:  "access-token",
		RefreshToken: "refresh-token",
		User: &notehubsdk.User{
			ID:          7,
			Username:    "alice",
			Email:       "alice@example.com",
			Has2FA:      true,
			HiddenNotes: notehubsdk.HiddenNotes{3, 9},
		},
	}
}

func TestSaveLoadClear(t *testing.T) {
	t.Parallel()

	st := openStore(t, filepath.Join(t.TempDir(), "state.db"), "master")

	got, err := st.Load(t.Context())
	require.NoError(t, err)
	require.Nil(t, got)

	require.NoError(t, st.Save(t.Context(), sample()))
	got, err = st.Load(t.Context())
	require.NoError(t, err)
	require.Equal(t, sample(), *got)

	next := sample()
	next.AccessToken = "access-token-2"
	next.User.Has2FA = false
	require.NoError(t, st.Save(t.Context(), next))
	got, err = st.Load(t.Context())
	require.NoError(t, err)
	require.Equal(t, "access-token-2", got.AccessToken)
	require.False(t, got.User.Has2FA)

	require.NoError(t, st.Clear(t.Context()))
	got, err = st.Load(t.Context())
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestSurvivesReopen(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "state.db")
	first, err := sqlite.NewStore(path, newSealer(t, "master"))
	require.NoError(t, err)
	require.NoError(t, first.ApplyMigrations())
	require.NoError(t, first.Save(t.Context(), sample()))
	require.NoError(t, first.Close())

	second := openStore(t, path, "master")
	got, err := second.Load(t.Context())
	require.NoError(t, err)
	require.Equal(t, "alice", got.User.Username)
}

func TestTokensAreSealedOnDisk(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "state.db")
	st := openStore(t, path, "master")
	require.NoError(t, st.Save(t.Context(), sample()))

	raw, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = raw.Close() })

	var access []byte
	require.NoError(t, raw.QueryRowContext(t.Context(), `SELECT access_token FROM session`).Scan(&access))
	require.NotContains(t, string(access), "access-token")
}

func TestWrongMasterKeyFailsLoad(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "state.db")
	first := openStore(t, path, "master")
	require.NoError(t, first.Save(t.Context(), sample()))

	second := openStore(t, path, "other")
	_, err := second.Load(t.Context())
	require.Error(t, err)
}

func TestPreferences(t *testing.T) {
	t.Parallel()

	st := openStore(t, filepath.Join(t.TempDir(), "state.db"), "master")

	_, ok, err := st.GetPreference(t.Context(), "hidden_notes")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, st.SetPreference(t.Context(), "hidden_notes", "[1]"))
	require.NoError(t, st.SetPreference(t.Context(), "hidden_notes", "[1,2]"))
	v, ok, err := st.GetPreference(t.Context(), "hidden_notes")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "[1,2]", v)

	require.NoError(t, st.DeletePreference(t.Context(), "hidden_notes"))
	require.NoError(t, st.DeletePreference(t.Context(), "hidden_notes"))
	_, ok, err = st.GetPreference(t.Context(), "hidden_notes")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestApplyMigrationsIsIdempotent(t *testing.T) {
	t.Parallel()

	st := openStore(t, filepath.Join(t.TempDir(), "state.db"), "master")
	require.NoError(t, st.ApplyMigrations())
}

func TestNewStoreRequiresSealer(t *testing.T) {
	t.Parallel()

	_, err := sqlite.NewStore(filepath.Join(t.TempDir(), "state.db"), nil)
	require.Error(t, err)
}

func TestStoreBackedSessionStore(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "state.db")
	st := openStore(t, path, "master")
	store := session.NewStore(st)
	require.NoError(t, store.Set(t.Context(), sample()))
	require.NoError(t, store.UpdateAccessToken(t.Context(), "rotated"))

	reloaded := session.NewStore(openStore(t, path, "master"))
	got, err := reloaded.Load(t.Context())
	require.NoError(t, err)
	require.Equal(t, "rotated", got.AccessToken)
	require.Equal(t, "refresh-token", got.RefreshToken)
}
