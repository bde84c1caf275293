package routes

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/BradenHooton/restgate/internal/auth"
	"github.com/BradenHooton/restgate/internal/handlers"
	"github.com/BradenHooton/restgate/internal/middleware"
	"github.com/BradenHooton/restgate/internal/session"
	pkghttp "github.com/BradenHooton/restgate/pkg/http"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
)

// Dependencies are the collaborators the router is assembled from
type Dependencies struct {
	Env      string
	HSTS     bool
	Logger   *slog.Logger
	IPConfig *pkghttp.IPConfig

	Origins  middleware.OriginPolicyConfig
	Sessions *session.Manager
	Cookies  auth.CookieConfig

	Authenticator           auth.Authenticator
	LoginRateLimitPerMinute int

	UserHandler *handlers.UserHandler
	AuthHandler *handlers.AuthHandler

	// HealthCheck reports backend availability; nil means always healthy
	HealthCheck func(ctx context.Context) error
}

// NewRouter builds the full handler. Every response passes the security
// headers and origin policy. Everything except /health also runs inside a
// session, has its CSRF token maintained and enforced, and passes the login
// gate.
func NewRouter(deps Dependencies) http.Handler {
	router := chi.NewRouter()
	router.Use(chimiddleware.RequestID)
	router.Use(middleware.SecureLogger(deps.Logger, deps.IPConfig))
	router.Use(chimiddleware.Recoverer)
	router.Use(middleware.SecurityHeaders(middleware.SecurityHeadersConfig{Env: deps.Env, HSTS: deps.HSTS}))
	router.Use(middleware.OriginPolicy(deps.Origins, deps.Logger))

	router.Get("/health", healthHandler(deps.HealthCheck, deps.Logger))

	app := chi.NewRouter()
	app.Use(deps.Sessions.Middleware)
	app.Use(middleware.LogSessionOutcome)
	app.Use(auth.CSRFTokenGuard(deps.Cookies, deps.Logger))
	app.Use(middleware.CSRFProtection(deps.Logger))
	app.Use(middleware.LimitLogin(middleware.RateLimitByIP(middleware.RateLimitConfig{
		RequestsPerMinute: deps.LoginRateLimitPerMinute,
		IPConfig:          deps.IPConfig,
	}), auth.LoginPath))
	app.Use(auth.LoginGate(deps.Authenticator, deps.IPConfig, deps.Logger))

	RegisterRoutes(app, deps.UserHandler, deps.AuthHandler, deps.Logger)

	router.Mount("/", app)
	return router
}

// RegisterRoutes registers all application routes
func RegisterRoutes(
	router chi.Router,
	userHandler *handlers.UserHandler,
	authHandler *handlers.AuthHandler,
	logger *slog.Logger,
) {
	// Public: identity and logout. Login is answered by the gate before
	// the POST handler runs.
	router.Get(auth.LoginPath, authHandler.Identity)
	router.Post(auth.LoginPath, authHandler.Identity)
	router.Delete(auth.LoginPath, authHandler.Logout)

	// Protected routes - authentication required
	router.Group(func(r chi.Router) {
		r.Use(auth.RequireAuthenticated(logger))
		userHandler.RegisterRoutes(r)
	})
}

func healthHandler(check func(ctx context.Context) error, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if check != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()

			if err := check(ctx); err != nil {
				logger.Warn("health check failed", slog.Any("error", err))
				pkghttp.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy"})
				return
			}
		}

		pkghttp.WriteJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
	}
}
