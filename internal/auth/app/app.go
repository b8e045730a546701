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

	"github.com/aussiebroadwan/bartab-accounts/internal/auth/cache"
	httpapi "github.com/aussiebroadwan/bartab-accounts/internal/auth/http"
	"github.com/aussiebroadwan/bartab-accounts/internal/auth/mail"
	"github.com/aussiebroadwan/bartab-accounts/internal/auth/service"
	"github.com/aussiebroadwan/bartab-accounts/internal/auth/store"
	"github.com/aussiebroadwan/bartab-accounts/internal/auth/store/drivers/mongo"
	"github.com/aussiebroadwan/bartab-accounts/internal/auth/store/drivers/sqlite"
	"github.com/aussiebroadwan/bartab-accounts/pkg/cryptox"
	"github.com/aussiebroadwan/bartab-accounts/pkg/httpx"
	"github.com/aussiebroadwan/bartab-accounts/pkg/jwtx"
	"github.com/aussiebroadwan/bartab-accounts/pkg/slogx"
	"github.com/redis/go-redis/v9"
)

const (
	// BuildVersion should be set at build time via ldflags. Later problem
	BuildVersion = "v0.1.0"
)

// Application encapsulates the accounts service with all its dependencies
type Application struct {
	cfg    Config
	logger *slog.Logger

	// Core dependencies
	db         store.Store
	rdb        *redis.Client
	keyManager *jwtx.KeyManager

	// Services
	authService         *service.AuthService
	userService         *service.UserService
	rolesService        *service.RolesService
	housekeepingService *service.HousekeepingService

	// HTTP server
	server *http.Server
	router *httpapi.Router
}

// New creates a new Application instance with all dependencies initialized
func New(cfg Config) (*Application, error) {
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

	if err := cryptox.LoadPepper(app.cfg.PepperFile); err != nil {
		return nil, fmt.Errorf("failed to load pepper: %w", err)
	}

	ctx := context.Background()

	if err := app.initStore(ctx); err != nil {
		return nil, err
	}

	if err := app.initCache(ctx); err != nil {
		_ = app.db.Close()
		return nil, err
	}

	keyManager, err := InitAuthKeys(app.cfg, app.logger)
	if err != nil {
		app.closeBackends()
		return nil, err
	}
	app.keyManager = keyManager

	if err := app.initServices(); err != nil {
		app.closeBackends()
		return nil, err
	}

	if err := app.seedRoles(ctx); err != nil {
		app.closeBackends()
		return nil, err
	}

	if err := app.initHTTP(); err != nil {
		app.closeBackends()
		return nil, err
	}

	return app, nil
}

// Run starts the application and blocks until shutdown is requested
func (app *Application) Run() error {
	app.housekeepingService.Start()

	app.logger.Info("accounts service starting", "port", app.cfg.Port, "version", BuildVersion)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- app.server.ListenAndServe()
	}()

	// Setup signal handling for graceful shutdown
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
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

// Shutdown gracefully shuts down the application
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

	app.housekeepingService.Stop()

	// Let pending confirmation mails finish before the backends go away
	app.authService.Wait()

	if err := app.rdb.Close(); err != nil {
		app.logger.Error("error closing redis", "error", err)
	}

	if err := app.db.Close(); err != nil {
		app.logger.Error("error closing database", "error", err)
		return err
	}

	app.logger.Info("accounts service stopped")
	return nil
}

func (app *Application) closeBackends() {
	if app.rdb != nil {
		_ = app.rdb.Close()
	}
	_ = app.db.Close()
}

// initStore opens the configured credential store and applies migrations
func (app *Application) initStore(ctx context.Context) error {
	var (
		db  store.Store
		err error
	)

	switch app.cfg.StoreDriver {
	case "mongo":
		if app.cfg.MongoURI == "" {
			return errors.New("MONGO_URI is required with AUTH_STORE_DRIVER=mongo")
		}
		db, err = mongo.NewStore(ctx, app.cfg.MongoURI, app.cfg.MongoDatabase)
	case "sqlite", "":
		dsn := fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_time_format=sqlite",
			app.cfg.DatabaseFile)
		db, err = sqlite.NewStore(dsn)
	default:
		return fmt.Errorf("unknown store driver %q (supported: sqlite, mongo)", app.cfg.StoreDriver)
	}
	if err != nil {
		return fmt.Errorf("failed to initialize %s store: %w", app.cfg.StoreDriver, err)
	}
	app.db = db

	if err := db.ApplyMigrations(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to apply database migrations: %w", err)
	}

	app.logger.Info("database migrations applied successfully", "driver", app.cfg.StoreDriver)
	return nil
}

// initCache connects to Redis, which holds OTPs, refresh tokens and counters
func (app *Application) initCache(ctx context.Context) error {
	rdb, err := cache.Connect(ctx, app.cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("failed to initialize cache: %w", err)
	}
	app.rdb = rdb
	return nil
}

func (app *Application) initMailer() (*mail.Mailer, error) {
	var sender mail.Sender = mail.LogSender{}
	if app.cfg.SMTPHost != "" {
		smtpSender, err := mail.NewSMTPSender(mail.SMTPConfig{
			Host:     app.cfg.SMTPHost,
			Port:     app.cfg.SMTPPort,
			Username: app.cfg.SMTPUser,
			Password: app.cfg.SMTPPass,
			From:     app.cfg.SMTPFrom,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize smtp: %w", err)
		}
		sender = smtpSender
	} else {
		app.logger.Warn("SMTP_HOST not set, outgoing mail is logged and dropped")
	}

	return mail.NewMailer(sender, mail.MailerOptions{
		FrontendURL: app.cfg.FrontendURL,
		OTPTTL:      app.cfg.OTPTTL,
		ResetTTL:    app.cfg.ResetTokenTTL,
	}), nil
}

// initServices initializes all business logic services
func (app *Application) initServices() error {
	mailer, err := app.initMailer()
	if err != nil {
		return err
	}

	tokens := &service.TokenService{
		Keys:       app.keyManager,
		Registry:   cache.NewRefreshRegistry(app.rdb),
		Issuer:     app.cfg.Issuer,
		AccessTTL:  app.cfg.AccessTokenTTL,
		RefreshTTL: app.cfg.RefreshTokenTTL,
		EmailTTL:   app.cfg.EmailTokenTTL,
		ResetTTL:   app.cfg.ResetTokenTTL,
	}

	app.userService = &service.UserService{Store: app.db}
	app.rolesService = &service.RolesService{Store: app.db}
	app.authService = &service.AuthService{
		Store:            app.db,
		Devices:          &service.DeviceRegistry{Users: app.db.Users()},
		OTP:              cache.NewOTPLedger(app.rdb, app.cfg.OTPTTL),
		Tokens:           tokens,
		Notifier:         mailer,
		Registrations:    cache.NewCounter(app.rdb, "register", int64(app.cfg.RegisterRateLimit), app.cfg.RegisterRateWindow),
		FailedLogins:     cache.NewCounter(app.rdb, "login_fail", int64(app.cfg.LockoutThreshold), app.cfg.LockoutWindow),
		LockoutThreshold: int64(app.cfg.LockoutThreshold),
		LockoutDuration:  app.cfg.LockoutDuration,
		AdminEmails:      app.cfg.AdminEmails,
	}

	app.housekeepingService = service.NewHousekeepingService(
		app.db,
		app.logger,
		app.cfg.HousekeepingInterval,
		app.cfg.DeviceRetention,
	)
	return nil
}

// seedRoles makes sure every known role exists
func (app *Application) seedRoles(ctx context.Context) error {
	created, err := app.rolesService.Seed(ctx)
	if err != nil {
		return fmt.Errorf("failed to seed roles: %w", err)
	}
	if created > 0 {
		app.logger.Info("seeded default roles", "created", created)
	}
	return nil
}

// initHTTP initializes the HTTP router and server
func (app *Application) initHTTP() error {
	proxies, err := httpx.ParseTrustedProxies(app.cfg.TrustedProxies)
	if err != nil {
		return fmt.Errorf("invalid TRUSTED_PROXIES: %w", err)
	}
	if len(proxies) == 0 {
		app.logger.Info("no trusted proxies configured, forwarding headers are ignored")
	}

	router := httpapi.NewRouter(
		app.keyManager.KeySet,
		app.keyManager.Verifier,
		BuildVersion,
		app.db,
		app.logger,
	)

	router.AuthService = app.authService
	router.UserService = app.userService
	router.RolesService = app.rolesService
	router.Cookie = httpapi.CookieConfig{Secure: app.cfg.CookieSecure}
	router.CacheCheck = func(ctx context.Context) error {
		return app.rdb.Ping(ctx).Err()
	}
	router.TrustedProxies = proxies
	router.ApplyRoutes()

	app.router = router

	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 3 * time.Second,
	}
	return nil
}
