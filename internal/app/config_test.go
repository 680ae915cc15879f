package app

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	for _, key := range []string{
		"NOTEHUB_API_URL", "NOTEHUB_STORAGE", "NOTEHUB_MASTER_KEY_PATH", "NOTEHUB_HTTP_TIMEOUT",
		"NOTEHUB_RATE_LIMIT", "NOTEHUB_RATE_BURST", "NOTEHUB_RESET_REDIRECT_DELAY",
		"NOTEHUB_DISABLE_2FA_REQUIRES_CODE", "NOTEHUB_PERSIST_RETRIES", "ENV", "LOG_LEVEL", "LOG_FORMAT",
	} {
		t.Setenv(key, "")
	}
	t.Setenv("NOTEHUB_STATE_DIR", "")
	t.Setenv("XDG_CONFIG_HOME", "/tmp/xdg")

	cfg := LoadConfig()
	require.Equal(t, "http://localhost:5000", cfg.APIURL)
	require.Equal(t, StorageSQLite, cfg.Storage)
	require.Equal(t, filepath.Join("/tmp/xdg", "notehub"), cfg.StateDir)
	require.Empty(t, cfg.MasterKeyPath)
	require.Equal(t, 10*time.Second, cfg.HTTPTimeout)
	require.InDelta(t, 5.0, cfg.RateLimit, 0)
	require.Equal(t, 10, cfg.RateBurst)
	require.Equal(t, 3*time.Second, cfg.RedirectDelay)
	require.False(t, cfg.DisableRequiresCode)
	require.Equal(t, 3, cfg.PersistRetries)
	require.Equal(t, "dev", cfg.Env)
	require.Equal(t, "info", cfg.LogLevel)
	require.Equal(t, "text", cfg.LogFormat)
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("NOTEHUB_API_URL", "https://notes.example.com")
	t.Setenv("NOTEHUB_STORAGE", "FILE")
	t.Setenv("NOTEHUB_STATE_DIR", "/var/lib/notehub")
	t.Setenv("NOTEHUB_MASTER_KEY_PATH", "/etc/notehub/key")
	t.Setenv("NOTEHUB_HTTP_TIMEOUT", "2s")
	t.Setenv("NOTEHUB_RATE_LIMIT", "0.5")
	t.Setenv("NOTEHUB_RATE_BURST", "1")
	t.Setenv("NOTEHUB_RESET_REDIRECT_DELAY", "5")
	t.Setenv("NOTEHUB_DISABLE_2FA_REQUIRES_CODE", "true")
	t.Setenv("NOTEHUB_PERSIST_RETRIES", "0")
	t.Setenv("LOG_FORMAT", "json")

	cfg := LoadConfig()
	require.Equal(t, "https://notes.example.com", cfg.APIURL)
	require.Equal(t, StorageFile, cfg.Storage)
	require.Equal(t, "/var/lib/notehub", cfg.StateDir)
	require.Equal(t, "/etc/notehub/key", cfg.MasterKeyPath)
	require.Equal(t, 2*time.Second, cfg.HTTPTimeout)
	require.InDelta(t, 0.5, cfg.RateLimit, 0)
	require.Equal(t, 1, cfg.RateBurst)
	require.Equal(t, 5*time.Second, cfg.RedirectDelay)
	require.True(t, cfg.DisableRequiresCode)
	require.Equal(t, 1, cfg.PersistRetries)
	require.Equal(t, "json", cfg.LogFormat)
}

func TestEnvHelpersIgnoreGarbage(t *testing.T) {
	t.Setenv("NOTEHUB_TEST_INT", "many")
	t.Setenv("NOTEHUB_TEST_BOOL", "perhaps")
	t.Setenv("NOTEHUB_TEST_DURATION", "soon")

	require.Equal(t, 7, getEnvIntOrDefault("NOTEHUB_TEST_INT", 7))
	require.True(t, getEnvBoolOrDefault("NOTEHUB_TEST_BOOL", true))
	require.Equal(t, time.Minute, getEnvDurationOrDefault("NOTEHUB_TEST_DURATION", time.Minute))
}
