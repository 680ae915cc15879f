package filestore_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/thienng-it/note-hub-sub001/internal/sealbox"
	"github.com/thienng-it/note-hub-sub001/internal/session"
	"github.com/thienng-it/note-hub-sub001/internal/session/filestore"
	"github.com/thienng-it/note-hub-sub001/pkg/notehubsdk"
)

func newStore(t *testing.T, path, master string) *filestore.Store {
	t.Helper()
	sealer, err := sealbox.New([]byte(master), filestore.SealPurpose)
	require.NoError(t, err)
	st, err := filestore.New(path, sealer)
	require.NoError(t, err)
	return st
}

func sample() session.Session {
	return session.Session{
		AccessToken:  "access-token",
		RefreshToken: "refresh-token",
		User:         &notehubsdk.User{ID: 1, Username: "alice", HiddenNotes: notehubsdk.HiddenNotes{}},
	}
}

func TestRoundTrip(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "nested", "session.json")
	st := newStore(t, path, "master")

	got, err := st.Load(t.Context())
	require.NoError(t, err)
	require.Nil(t, got)

	require.NoError(t, st.Save(t.Context(), sample()))

	got, err = newStore(t, path, "master").Load(t.Context())
	require.NoError(t, err)
	require.Equal(t, sample(), *got)

	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NotContains(t, string(raw), "access-token")
}

func TestClearKeepsPreferences(t *testing.T) {
	t.Parallel()

	st := newStore(t, filepath.Join(t.TempDir(), "session.json"), "master")
	require.NoError(t, st.Save(t.Context(), sample()))
	require.NoError(t, st.SetPreference(t.Context(), "hidden_notes", "[4]"))

	require.NoError(t, st.Clear(t.Context()))

	got, err := st.Load(t.Context())
	require.NoError(t, err)
	require.Nil(t, got)

	v, ok, err := st.GetPreference(t.Context(), "hidden_notes")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "[4]", v)

	require.NoError(t, st.DeletePreference(t.Context(), "hidden_notes"))
	_, ok, err = st.GetPreference(t.Context(), "hidden_notes")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestNoTempFilesLeftBehind(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	st := newStore(t, filepath.Join(dir, "session.json"), "master")
	for range 3 {
		require.NoError(t, st.Save(t.Context(), sample()))
	}

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
}

func TestCorruptFileIsAnError(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "session.json")
	require.NoError(t, os.WriteFile(path, []byte("not sealed"), 0o600))

	_, err := newStore(t, path, "master").Load(t.Context())
	require.Error(t, err)
}
