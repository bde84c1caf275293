package auth

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/BradenHooton/restgate/internal/models"
	"github.com/BradenHooton/restgate/internal/session"
	pkghttp "github.com/BradenHooton/restgate/pkg/http"
)

// PrincipalFromContext returns the session principal, nil when anonymous
func PrincipalFromContext(ctx context.Context) *models.Principal {
	h := session.FromContext(ctx)
	if h == nil {
		return nil
	}
	return h.Principal()
}

// IdentityFromContext is PrincipalFromContext with the anonymous identity
// substituted for nil
func IdentityFromContext(ctx context.Context) *models.Principal {
	if p := PrincipalFromContext(ctx); p != nil {
		return p
	}
	return models.AnonymousPrincipal()
}

// RequireAuthenticated rejects anonymous requests with 401. The message
// depends on whether the session's last login attempt failed.
func RequireAuthenticated(logger *slog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var s *models.Session
			if h := session.FromContext(r.Context()); h != nil {
				s = h.Session()
			}

			if !s.Authenticated() {
				if s != nil && s.LoginFailed {
					pkghttp.WriteSecurityError(w, logger, models.ErrAuthenticationFailed)
					return
				}
				pkghttp.WriteSecurityError(w, logger, models.ErrNotAuthenticated)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RequireRole checks the current principal at the start of a privileged
// operation. Roles are not hierarchical.
func RequireRole(ctx context.Context, role models.Role) error {
	p := PrincipalFromContext(ctx)
	if p == nil {
		return models.ErrNotAuthenticated
	}
	if p.Role != role {
		return &models.AuthorizationError{Required: role, Actual: p.Role}
	}
	return nil
}
