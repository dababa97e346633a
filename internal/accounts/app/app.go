package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpapi "github.com/aussiebroadwan/wellmeet/internal/accounts/http"
	"github.com/aussiebroadwan/wellmeet/internal/accounts/service"
	"github.com/aussiebroadwan/wellmeet/internal/accounts/store"
	"github.com/aussiebroadwan/wellmeet/internal/accounts/store/drivers/postgres"
	"github.com/aussiebroadwan/wellmeet/internal/accounts/store/drivers/sqlite"
	"github.com/aussiebroadwan/wellmeet/pkg/cryptox"
	"github.com/aussiebroadwan/wellmeet/pkg/jwtx"
	"github.com/aussiebroadwan/wellmeet/pkg/slogx"
)

const (
	// BuildVersion should be set at build time via ldflags.
	BuildVersion = "v0.1.0"
)

// Application holds the accounts service and everything it depends on.
type Application struct {
	cfg    Config
	logger *slog.Logger

	db     store.Store
	hasher cryptox.Hasher
	issuer *jwtx.HS256Issuer

	userService      *service.UserService
	bootstrapService *service.BootstrapService

	server *http.Server
	router *httpapi.Router
}

// New builds the application: database and migrations, password hasher,
// token issuer, services and the HTTP server. The admin account is seeded
// before New returns.
func New(ctx context.Context, cfg Config) (*Application, error) {
	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "accounts-service",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
	}

	if err := app.initDatabase(ctx); err != nil {
		return nil, err
	}

	if err := app.initCrypto(); err != nil {
		_ = app.db.Close()
		return nil, err
	}

	app.initServices()

	if err := app.bootstrap(ctx); err != nil {
		_ = app.db.Close()
		return nil, err
	}

	app.initHTTP()

	return app, nil
}

// Handler exposes the routed HTTP handler, mainly for tests.
func (app *Application) Handler() http.Handler { return app.router }

// Run starts the HTTP server and blocks until it fails or a shutdown signal
// arrives.
func (app *Application) Run() error {
	app.logger.Info("accounts service starting",
		"port", app.cfg.Port,
		"version", BuildVersion,
		"driver", app.cfg.DatabaseDriver,
	)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- app.server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			_ = app.db.Close()
			return fmt.Errorf("server failed: %w", err)
		}
	case sig := <-shutdown:
		app.logger.Info("shutdown signal received", "signal", sig)
		if err := app.Shutdown(); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}

	return nil
}

// Shutdown drains in-flight requests within the grace period and closes
// the database.
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down accounts service...")

	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	if err := app.db.Close(); err != nil {
		app.logger.Error("error closing database", "error", err)
		return err
	}

	app.logger.Info("accounts service stopped")
	return nil
}

func (app *Application) initDatabase(ctx context.Context) error {
	var (
		db  store.Store
		err error
	)
	switch app.cfg.DatabaseDriver {
	case DriverPostgres:
		db, err = postgres.NewStore(ctx, app.cfg.DatabaseDSN)
	default:
		db, err = sqlite.NewStore(app.cfg.DatabaseFile)
	}
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	app.db = db

	if err := db.ApplyMigrations(); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to apply database migrations: %w", err)
	}

	app.logger.Info("database migrations applied successfully", "driver", app.cfg.DatabaseDriver)
	return nil
}

// initCrypto loads the pepper and builds the password hasher and token
// issuer. Digests of either algorithm verify regardless of which one is
// configured for new hashes.
func (app *Application) initCrypto() error {
	pepper, err := cryptox.LoadOrGeneratePepper(app.cfg.PepperFile)
	if err != nil {
		return fmt.Errorf("failed to load pepper: %w", err)
	}

	argon := cryptox.NewArgon2Hasher(cryptox.Argon2Params{
		Memory:     app.cfg.Argon2MemoryKiB,
		Iterations: app.cfg.Argon2Iter,
	}, pepper)
	bc := cryptox.NewBcryptHasher(app.cfg.BcryptCost, pepper)

	multi := &cryptox.MultiHasher{Argon2: argon, Bcrypt: bc, Primary: argon}
	if app.cfg.HashAlgorithm == HashBcrypt {
		multi.Primary = bc
	}
	app.hasher = multi

	issuer, err := jwtx.NewHS256Issuer([]byte(app.cfg.JWTSecret), jwtx.VerifyOptions{
		Issuer:   app.cfg.Issuer,
		Audience: app.cfg.Audience,
		Leeway:   30 * time.Second,
	}, app.cfg.TokenTTL, nil)
	if err != nil {
		return fmt.Errorf("failed to initialize token issuer: %w", err)
	}
	app.issuer = issuer

	app.logger.Info("credentials configured",
		"hash_algorithm", app.cfg.HashAlgorithm,
		"token_ttl", app.cfg.TokenTTL.String(),
	)
	return nil
}

func (app *Application) initServices() {
	app.userService = &service.UserService{
		Store:  app.db,
		Hasher: app.hasher,
		Tokens: app.issuer,
		Logger: app.logger,
	}
	app.bootstrapService = &service.BootstrapService{
		Users:    app.userService,
		Username: app.cfg.AdminUsername,
		Email:    app.cfg.AdminEmail,
		Password: app.cfg.AdminPassword,
	}
}

func (app *Application) bootstrap(ctx context.Context) error {
	_, err := app.bootstrapService.EnsureAdmin(ctx)
	if errors.Is(err, service.ErrBootstrapNoPassword) {
		app.logger.Warn("no admin account exists and ADMIN_PASSWORD is unset; admin-only endpoints are unreachable")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to bootstrap admin: %w", err)
	}
	return nil
}

func (app *Application) initHTTP() {
	router := httpapi.NewRouter(
		app.issuer,
		BuildVersion,
		app.db,
		app.logger,
	)
	router.UserService = app.userService
	router.TokenTTL = app.issuer.TTL()
	router.ApplyRoutes()

	app.router = router

	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 3 * time.Second,
	}
}
