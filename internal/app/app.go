package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aussiebroadwan/membership/pkg/cryptox"
	"github.com/aussiebroadwan/membership/pkg/identity/service"
	"github.com/aussiebroadwan/membership/pkg/identity/store/drivers/sqlite"
	"github.com/aussiebroadwan/membership/pkg/idx"
	"github.com/aussiebroadwan/membership/pkg/jwtx"
	"github.com/aussiebroadwan/membership/pkg/slogx"
	"github.com/jonboulle/clockwork"
)

const (
	// BuildVersion should be set at build time via ldflags.
	BuildVersion = "v0.1.0"
)

// Application wires the sqlite store, the managers and the session key ring.
type Application struct {
	cfg    Config
	logger *slog.Logger

	db *sqlite.Store

	Keys   *jwtx.KeyRing
	Users  *service.UserManager[idx.ID]
	Roles  *service.RoleManager[idx.ID]
	SignIn *service.SignInManager[idx.ID]
}

// New opens and migrates the database and builds the managers.
func New(cfg Config) (*Application, error) {
	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "membership",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
			Output:  cfg.LogOutput,
		}),
	}

	opts := cfg.Options()
	if err := opts.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	if err := app.initDatabase(opts.Store.MaxKeyLength); err != nil {
		return nil, err
	}

	if err := app.initServices(); err != nil {
		_ = app.db.Close()
		return nil, err
	}

	return app, nil
}

func (app *Application) Logger() *slog.Logger { return app.logger }

// Ping checks the database.
func (app *Application) Ping(ctx context.Context) error { return app.db.Ping(ctx) }

// Close releases the database.
func (app *Application) Close() error {
	if err := app.Users.Close(); err != nil {
		app.logger.Error("error closing database", "error", err)
		return err
	}
	return nil
}

// initDatabase initializes the database and applies migrations
func (app *Application) initDatabase(maxKeyLength int) error {
	dsn := app.cfg.DatabaseFile
	if dsn != ":memory:" {
		dsn = fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", app.cfg.DatabaseFile)
	}
	db, err := sqlite.NewStore(dsn, sqlite.WithMaxKeyLength(maxKeyLength))
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	app.db = db

	if err := db.ApplyMigrations(); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to apply database migrations: %w", err)
	}

	app.logger.Info("database migrations applied successfully", "database", app.cfg.DatabaseFile)
	return nil
}

// initServices loads the pepper and signing key and builds the managers.
func (app *Application) initServices() error {
	pepper, err := cryptox.LoadOrCreatePepper(app.cfg.PepperFile)
	if err != nil {
		return fmt.Errorf("failed to load pepper: %w", err)
	}
	if pepper == "" {
		app.logger.Warn("password pepper disabled")
	}

	signer, err := loadSigner(app.cfg.SigningKeyFile, app.logger)
	if err != nil {
		return fmt.Errorf("failed to initialize signing key: %w", err)
	}

	clock := app.cfg.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	opts := app.cfg.Options()
	app.Keys = jwtx.NewKeyRing(signer, jwtx.VerifyOptions{
		Issuer:   opts.Tokens.Issuer,
		Audience: []string{opts.Tokens.Audience},
		Leeway:   opts.Tokens.Leeway,
		Now:      clock.Now,
	})

	app.Users = service.NewUserManager[idx.ID](app.db,
		service.WithOptions(opts),
		service.WithClock(clock),
		service.WithHasher(cryptox.NewPasswordHasher(pepper)),
		service.WithLogger(app.logger),
		service.WithOwnedStore(),
	)
	app.Roles = app.Users.Roles()
	app.SignIn = service.NewSignInManager(app.Users, app.Keys)
	return nil
}
