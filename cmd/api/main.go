package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/BradenHooton/restgate/internal/auth"
	"github.com/BradenHooton/restgate/internal/background"
	"github.com/BradenHooton/restgate/internal/config"
	"github.com/BradenHooton/restgate/internal/database"
	"github.com/BradenHooton/restgate/internal/handlers"
	"github.com/BradenHooton/restgate/internal/middleware"
	"github.com/BradenHooton/restgate/internal/repositories"
	"github.com/BradenHooton/restgate/internal/routes"
	"github.com/BradenHooton/restgate/internal/services"
	"github.com/BradenHooton/restgate/internal/session"
	pkgauth "github.com/BradenHooton/restgate/pkg/auth"
	pkghttp "github.com/BradenHooton/restgate/pkg/http"
	pkglogger "github.com/BradenHooton/restgate/pkg/logger"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: parseLevel(cfg.Server.LogLevel)}))
	slog.SetDefault(logger)

	logger.Info("configuration loaded",
		slog.String("env", cfg.Server.Env),
		slog.String("account_backend", cfg.Auth.AccountBackend),
		slog.String("session_backend", cfg.Session.Backend),
	)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var healthChecks []func(context.Context) error

	// Account store
	var accountRepo services.AccountRepository
	switch cfg.Auth.AccountBackend {
	case config.BackendPostgres:
		if err := database.Migrate(ctx, cfg.Database.DSN(), logger); err != nil {
			logger.Error("failed to apply migrations", slog.Any("error", err))
			os.Exit(1)
		}

		db, err := database.NewConnection(ctx, &cfg.Database, logger)
		if err != nil {
			logger.Error("failed to connect to database", slog.Any("error", err))
			os.Exit(1)
		}
		defer db.Close()

		accountRepo = repositories.NewPostgresAccountRepository(db)
		healthChecks = append(healthChecks, db.HealthCheck)
	default:
		accountRepo = repositories.NewMemoryAccountRepository()
	}

	// Session store
	var sessionStore session.Store
	var sweeper *background.SessionSweeper
	switch cfg.Session.Backend {
	case config.BackendRedis:
		client, err := database.NewRedisClient(ctx, &cfg.Redis, logger)
		if err != nil {
			logger.Error("failed to connect to redis", slog.Any("error", err))
			os.Exit(1)
		}
		defer client.Close()

		sessionStore = session.NewRedisStore(client)
		healthChecks = append(healthChecks, func(ctx context.Context) error {
			return client.Ping(ctx).Err()
		})
	default:
		memoryStore := session.NewMemoryStore()
		sessionStore = memoryStore
		sweeper = background.NewSessionSweeper(memoryStore, logger, cfg.Session.SweepInterval)
	}

	// Security components
	auditLogger := pkglogger.NewAuditLogger(logger, cfg.Server.Env)
	verifier, err := auth.NewBcryptVerifier(pkgauth.BcryptCost)
	if err != nil {
		logger.Error("failed to initialize credential verifier", slog.Any("error", err))
		os.Exit(1)
	}
	lockoutPolicy := auth.NewLockoutPolicy(cfg.Auth.LockoutMaxAttempts, cfg.Auth.LockoutWindow)
	timingDelay := auth.NewTimingDelay(auth.TimingConfig{
		BaseDelayMs:   cfg.Auth.TimingDelayBaseMs,
		RandomDelayMs: cfg.Auth.TimingDelayRandomMs,
	})
	ipConfig := pkghttp.ParseTrustedProxies(cfg.Server.TrustedProxies)

	// Services
	userService := services.NewUserService(accountRepo, logger, auditLogger, pkgauth.BcryptCost)
	authService := services.NewAuthService(accountRepo, verifier, lockoutPolicy, timingDelay, logger, auditLogger)

	if err := userService.SeedAccounts(ctx, cfg.Auth.SeedAccounts); err != nil {
		logger.Error("failed to seed accounts", slog.Any("error", err))
		os.Exit(1)
	}
	cancel()

	router := routes.NewRouter(routes.Dependencies{
		Env:      cfg.Server.Env,
		HSTS:     cfg.Server.HSTS,
		Logger:   logger,
		IPConfig: ipConfig,
		Origins: middleware.OriginPolicyConfig{
			AllowedOrigins:     cfg.Server.AllowedOrigins,
			AllowMissingOrigin: cfg.Server.AllowMissingOrigin,
		},
		Sessions: session.NewManager(sessionStore, cfg.Session.TTL, session.CookieOptions{
			Secure: cfg.Session.CookieSecure,
			Domain: cfg.Session.CookieDomain,
		}, logger),
		Cookies: auth.CookieConfig{
			Secure: cfg.Session.CookieSecure,
			Domain: cfg.Session.CookieDomain,
		},
		Authenticator:           authService,
		LoginRateLimitPerMinute: cfg.Auth.LoginRateLimitPerMinute,
		UserHandler:             handlers.NewUserHandler(userService, logger),
		AuthHandler:             handlers.NewAuthHandler(authService, ipConfig, logger),
		HealthCheck: func(ctx context.Context) error {
			for _, check := range healthChecks {
				if err := check(ctx); err != nil {
					return err
				}
			}
			return nil
		},
	})

	// Create server
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start session sweeper
	sweepCtx, sweepCancel := context.WithCancel(context.Background())
	defer sweepCancel()

	if sweeper != nil {
		go sweeper.Start(sweepCtx)
	}

	// Start server
	go func() {
		logger.Info("starting server", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", slog.Any("error", err))
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutdown signal received")

	sweepCancel()
	if sweeper != nil {
		sweeper.Stop()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("server stopped gracefully")
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
