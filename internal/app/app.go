package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"

	"github.com/thienng-it/note-hub-sub001/internal/flow"
	"github.com/thienng-it/note-hub-sub001/internal/prefs"
	"github.com/thienng-it/note-hub-sub001/internal/sealbox"
	"github.com/thienng-it/note-hub-sub001/internal/session"
	"github.com/thienng-it/note-hub-sub001/internal/session/filestore"
	"github.com/thienng-it/note-hub-sub001/internal/session/sqlite"
	"github.com/thienng-it/note-hub-sub001/pkg/notehubsdk"
	"github.com/thienng-it/note-hub-sub001/pkg/slogx"
	"golang.org/x/time/rate"
)

const (
	// BuildVersion should be set at build time via ldflags.
	BuildVersion = "v0.1.0"

	masterKeyFile = "master.key"
	databaseFile  = "session.db"
	sessionFile   = "session.json"
)

// persistence is what a storage driver provides: session persistence plus
// the local preference cache.
type persistence interface {
	session.Persister
	prefs.Cache
}

// Application holds the client's wired dependencies.
type Application struct {
	cfg    Config
	logger *slog.Logger

	// Core dependencies
	persist persistence
	closeDB func() error
	client  *notehubsdk.SDKClient

	Sessions    *session.Store
	Auth        *notehubsdk.Session
	Controller  *flow.Controller
	HiddenNotes *prefs.HiddenNotes
}

// New wires the application and loads any persisted session. nav receives
// the routes the flows navigate to.
func New(ctx context.Context, cfg Config, nav flow.Navigator) (*Application, error) {
	return NewWithLogger(ctx, cfg, nav, slogx.New(slogx.Config{
		Service: "notehub-cli",
		Version: BuildVersion,
		Env:     cfg.Env,
		Level:   cfg.LogLevel,
		Format:  cfg.LogFormat,
	}))
}

// NewWithLogger is New with a caller-supplied logger.
func NewWithLogger(ctx context.Context, cfg Config, nav flow.Navigator, logger *slog.Logger) (*Application, error) {
	app := &Application{cfg: cfg, logger: logger}

	if err := os.MkdirAll(cfg.StateDir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create state directory: %w", err)
	}

	master, err := app.loadMasterKey()
	if err != nil {
		return nil, err
	}

	if err := app.initStorage(ctx, master); err != nil {
		return nil, err
	}

	app.initServices(nav)

	if _, err := app.Sessions.Load(ctx); err != nil {
		_ = app.Close()
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	return app, nil
}

// Logger returns the application logger.
func (app *Application) Logger() *slog.Logger { return app.logger }

// Close releases the storage driver.
func (app *Application) Close() error {
	if app.closeDB == nil {
		return nil
	}
	if err := app.closeDB(); err != nil {
		app.logger.Error("error closing database", "error", err)
		return err
	}
	return nil
}

// loadMasterKey reads the configured master key. With neither a key file nor
// NOTEHUB_MASTER_KEY configured, one is generated in the state directory.
func (app *Application) loadMasterKey() ([]byte, error) {
	path := app.cfg.MasterKeyPath
	if path == "" && os.Getenv(sealbox.MasterKeyEnv) == "" {
		path = filepath.Join(app.cfg.StateDir, masterKeyFile)
		if err := sealbox.GenerateMasterKeyFile(path); err != nil {
			return nil, err
		}
		app.logger.Debug("using state directory master key", "path", path)
	}

	master, err := sealbox.LoadMasterKey(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load master key: %w", err)
	}
	return master, nil
}

// initStorage opens the configured persistence driver.
func (app *Application) initStorage(ctx context.Context, master []byte) error {
	switch app.cfg.Storage {
	case StorageSQLite:
		sealer, err := sealbox.New(master, sqlite.SealPurpose)
		if err != nil {
			return err
		}

		path := filepath.Join(app.cfg.StateDir, databaseFile)
		dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)", path)
		db, err := sqlite.NewStore(dsn, sealer)
		if err != nil {
			return fmt.Errorf("failed to initialize database: %w", err)
		}

		if err := db.Ping(ctx); err != nil {
			_ = db.Close()
			return fmt.Errorf("failed to open database: %w", err)
		}

		if err := db.ApplyMigrations(); err != nil {
			_ = db.Close()
			return fmt.Errorf("failed to apply database migrations: %w", err)
		}

		app.persist = db
		app.closeDB = db.Close
		app.logger.Debug("database migrations applied successfully", "path", path)

	case StorageFile:
		sealer, err := sealbox.New(master, filestore.SealPurpose)
		if err != nil {
			return err
		}

		fs, err := filestore.New(filepath.Join(app.cfg.StateDir, sessionFile), sealer)
		if err != nil {
			return err
		}
		app.persist = fs

	default:
		return fmt.Errorf("unknown storage driver %q", app.cfg.Storage)
	}

	return nil
}

// initServices builds the SDK, the session store and the flow controller.
func (app *Application) initServices(nav flow.Navigator) {
	opts := []notehubsdk.Option{
		notehubsdk.WithHTTPClient(&http.Client{Timeout: app.cfg.HTTPTimeout}),
		notehubsdk.WithLogger(app.logger),
	}
	if app.cfg.RateLimit > 0 {
		opts = append(opts, notehubsdk.WithRateLimiter(rate.NewLimiter(rate.Limit(app.cfg.RateLimit), max(app.cfg.RateBurst, 1))))
	}
	app.client = notehubsdk.NewSDKClient(app.cfg.APIURL, opts...)

	app.Sessions = session.NewStore(app.persist,
		session.WithWriteAttempts(app.cfg.PersistRetries),
		session.WithLogger(app.logger),
	)
	app.Auth = app.client.NewSession(app.Sessions)
	app.Sessions.SetUserSource(app.Auth)

	app.Controller = flow.NewController(
		&flow.SDKService{Client: app.client, Session: app.Auth},
		app.Sessions,
		nav,
		flow.Options{
			RedirectDelay:       app.cfg.RedirectDelay,
			DisableRequiresCode: app.cfg.DisableRequiresCode,
			Logger:              app.logger,
		},
	)

	app.HiddenNotes = prefs.NewHiddenNotes(app.Sessions, app.Auth, app.persist, app.logger)
}

// ErrNotLoggedIn is returned by commands that need a session.
var ErrNotLoggedIn = errors.New("not logged in")

// RequireSession returns the current session or ErrNotLoggedIn.
func (app *Application) RequireSession() (*session.Session, error) {
	cur := app.Sessions.Current()
	if cur == nil {
		return nil, ErrNotLoggedIn
	}
	return cur, nil
}
