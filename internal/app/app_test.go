package app_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/thienng-it/note-hub-sub001/internal/app"
	"github.com/thienng-it/note-hub-sub001/internal/flow"
	"github.com/thienng-it/note-hub-sub001/internal/sealbox"
	"github.com/thienng-it/note-hub-sub001/internal/testutil/fakeapi"
	"github.com/thienng-it/note-hub-sub001/pkg/slogx"
)

func testConfig(t *testing.T, api *fakeapi.Server, storage string) app.Config {
	t.Helper()
	return app.Config{
		APIURL:         api.URL,
		Storage:        storage,
		StateDir:       filepath.Join(t.TempDir(), "state"),
		HTTPTimeout:    5 * time.Second,
		RateLimit:      100,
		RateBurst:      100,
		RedirectDelay:  10 * time.Millisecond,
		PersistRetries: 3,
	}
}

func open(t *testing.T, cfg app.Config) (*app.Application, *[]string) {
	t.Helper()
	var routes []string
	nav := flow.NavigatorFunc(func(route string) { routes = append(routes, route) })
	a, err := app.NewWithLogger(t.Context(), cfg, nav, slogx.Discard())
	require.NoError(t, err)
	return a, &routes
}

func TestSessionSurvivesRestart(t *testing.T) {
	t.Setenv(sealbox.MasterKeyEnv, "")

	for _, storage := range []string{app.StorageSQLite, app.StorageFile} {
		t.Run(storage, func(t *testing.T) {
			api := fakeapi.New(t)
			api.AddUser("alice", "alicepassword")
			cfg := testConfig(t, api, storage)

			first, routes := open(t, cfg)
			require.Nil(t, first.Sessions.Current())

			login := first.Controller.NewLogin()
			require.NoError(t, login.Dispatch(t.Context(), flow.SubmitCredentials{Username: "alice", Password: "alicepassword"}))
			require.Equal(t, flow.Authenticated, login.State().Status)
			require.Equal(t, []string{flow.RouteHome}, *routes)
			require.NoError(t, first.Close())

			info, err := os.Stat(filepath.Join(cfg.StateDir, "master.key"))
			require.NoError(t, err)
			require.Equal(t, os.FileMode(0o600), info.Mode().Perm())

			second, _ := open(t, cfg)
			t.Cleanup(func() { _ = second.Close() })

			cur, err := second.RequireSession()
			require.NoError(t, err)
			require.Equal(t, "alice", cur.User.Username)

			user, err := second.Auth.GetCurrentUser(t.Context())
			require.NoError(t, err)
			require.Equal(t, "alice", user.Username)
		})
	}
}

func TestLogoutClearsPersistedSession(t *testing.T) {
	t.Setenv(sealbox.MasterKeyEnv, "")

	api := fakeapi.New(t)
	api.AddUser("bob", "bobpassword")
	cfg := testConfig(t, api, app.StorageSQLite)

	a, routes := open(t, cfg)
	login := a.Controller.NewLogin()
	require.NoError(t, login.Dispatch(t.Context(), flow.SubmitCredentials{Username: "bob", Password: "bobpassword"}))
	require.NoError(t, a.Controller.Logout(t.Context()))
	require.Equal(t, []string{flow.RouteHome, flow.RouteLogin}, *routes)
	require.NoError(t, a.Close())

	reopened, _ := open(t, cfg)
	t.Cleanup(func() { _ = reopened.Close() })
	_, err := reopened.RequireSession()
	require.ErrorIs(t, err, app.ErrNotLoggedIn)
}

func TestHiddenNotesWired(t *testing.T) {
	t.Setenv(sealbox.MasterKeyEnv, "")

	api := fakeapi.New(t)
	api.AddUser("carol", "carolpassword")
	cfg := testConfig(t, api, app.StorageFile)

	a, _ := open(t, cfg)
	t.Cleanup(func() { _ = a.Close() })

	require.NoError(t, a.HiddenNotes.Hide(t.Context(), 7))

	login := a.Controller.NewLogin()
	require.NoError(t, login.Dispatch(t.Context(), flow.SubmitCredentials{Username: "carol", Password: "carolpassword"}))
	require.NoError(t, a.HiddenNotes.Sync(t.Context()))

	require.Equal(t, []int64{7}, api.Account("carol").HiddenNotes)
	ids, err := a.HiddenNotes.IDs(t.Context())
	require.NoError(t, err)
	require.Equal(t, []int64{7}, ids)
}

func TestExplicitMasterKeyFile(t *testing.T) {
	t.Setenv(sealbox.MasterKeyEnv, "")

	api := fakeapi.New(t)
	cfg := testConfig(t, api, app.StorageSQLite)
	cfg.MasterKeyPath = filepath.Join(t.TempDir(), "key")
	require.NoError(t, os.WriteFile(cfg.MasterKeyPath, []byte("supplied-master-key\n"), 0o600))

	a, _ := open(t, cfg)
	require.NoError(t, a.Close())

	_, err := os.Stat(filepath.Join(cfg.StateDir, "master.key"))
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestMissingMasterKeyFileFails(t *testing.T) {
	t.Setenv(sealbox.MasterKeyEnv, "")

	api := fakeapi.New(t)
	cfg := testConfig(t, api, app.StorageSQLite)
	cfg.MasterKeyPath = filepath.Join(t.TempDir(), "absent")

	_, err := app.NewWithLogger(t.Context(), cfg, flow.NavigatorFunc(func(string) {}), slogx.Discard())
	require.Error(t, err)
}

func TestUnknownStorageDriver(t *testing.T) {
	t.Setenv(sealbox.MasterKeyEnv, "")

	api := fakeapi.New(t)
	cfg := testConfig(t, api, "redis")

	_, err := app.NewWithLogger(t.Context(), cfg, flow.NavigatorFunc(func(string) {}), slogx.Discard())
	require.ErrorContains(t, err, `unknown storage driver "redis"`)
}

func TestUnusableDatabaseFails(t *testing.T) {
	t.Setenv(sealbox.MasterKeyEnv, "")

	api := fakeapi.New(t)
	cfg := testConfig(t, api, app.StorageSQLite)
	require.NoError(t, os.MkdirAll(filepath.Join(cfg.StateDir, "session.db"), 0o700))

	_, err := app.NewWithLogger(t.Context(), cfg, flow.NavigatorFunc(func(string) {}), slogx.Discard())
	require.Error(t, err)
}
