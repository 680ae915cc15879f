package app

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/thienng-it/note-hub-sub001/internal/flow"
)

// Storage drivers.
const (
	StorageSQLite = "sqlite"
	StorageFile   = "file"
)

type Config struct {
	APIURL              string        // Base URL of the notehub service (default: http://localhost:5000)
	Storage             string        // Session persistence driver (sqlite, file) (default: sqlite)
	StateDir            string        // Directory holding the database, session file and master key
	MasterKeyPath       string        // Optional: master key file; NOTEHUB_MASTER_KEY is used when empty
	HTTPTimeout         time.Duration // HTTP client timeout (default: 10s)
	RateLimit           float64       // Client-side requests per second (default: 5, 0 disables)
	RateBurst           int           // Client-side burst (default: 10)
	RedirectDelay       time.Duration // Pause before leaving a successful reset (default: 3s)
	DisableRequiresCode bool          // Ask for a TOTP code before removing 2FA (default: false)
	PersistRetries      int           // Session write attempts before rollback (default: 3)
	Env                 string        // Environment (dev, staging, prod) (default: dev)
	LogLevel            string        // Log level (debug, info, warn, error) (default: info)
	LogFormat           string        // Log format (json, text) (default: text)
}

func LoadConfig() Config {
	cfg := Config{
		APIURL:              getEnvOrDefault("NOTEHUB_API_URL", "http://localhost:5000"),
		Storage:             strings.ToLower(getEnvOrDefault("NOTEHUB_STORAGE", StorageSQLite)),
		StateDir:            getEnvOrDefault("NOTEHUB_STATE_DIR", defaultStateDir()),
		MasterKeyPath:       os.Getenv("NOTEHUB_MASTER_KEY_PATH"),
		HTTPTimeout:         getEnvDurationOrDefault("NOTEHUB_HTTP_TIMEOUT", 10*time.Second),
		RateBurst:           getEnvIntOrDefault("NOTEHUB_RATE_BURST", 10),
		RedirectDelay:       getEnvDurationOrDefault("NOTEHUB_RESET_REDIRECT_DELAY", flow.DefaultRedirectDelay),
		DisableRequiresCode: getEnvBoolOrDefault("NOTEHUB_DISABLE_2FA_REQUIRES_CODE", false),
		PersistRetries:      getEnvIntOrDefault("NOTEHUB_PERSIST_RETRIES", 3),
		Env:                 getEnvOrDefault("ENV", "dev"),
		LogLevel:            getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:           getEnvOrDefault("LOG_FORMAT", "text"),
	}

	cfg.RateLimit = 5
	if v := os.Getenv("NOTEHUB_RATE_LIMIT"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f >= 0 {
			cfg.RateLimit = f
		}
	}

	if cfg.PersistRetries < 1 {
		cfg.PersistRetries = 1
	}

	return cfg
}

// defaultStateDir is $XDG_CONFIG_HOME/notehub, falling back to the working
// directory when no config directory can be determined.
func defaultStateDir() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ".notehub"
	}
	return filepath.Join(dir, "notehub")
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if intValue, err := strconv.Atoi(value); err == nil {
		return intValue
	}

	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if b, err := strconv.ParseBool(value); err == nil {
		return b
	}

	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	// Try parsing as duration (e.g., "3s", "500ms")
	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}

	// Bare integers are seconds
	if seconds, err := strconv.Atoi(value); err == nil {
		return time.Duration(seconds) * time.Second
	}

	return defaultValue
}
