package middleware

import (
	"crypto/subtle"
	"log/slog"
	"net/http"

	"github.com/BradenHooton/restgate/internal/auth"
	"github.com/BradenHooton/restgate/internal/session"
	pkghttp "github.com/BradenHooton/restgate/pkg/http"
)

const invalidCSRFMessage = "Invalid CSRF token"

// CSRFProtection requires state-changing requests to echo the session's CSRF
// token in the X-XSRF-TOKEN header. Login and logout are exempt.
func CSRFProtection(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !isStateChangingMethod(r.Method) || isCSRFExempt(r) {
				next.ServeHTTP(w, r)
				return
			}

			var expected string
			if h := session.FromContext(r.Context()); h != nil {
				if s := h.Session(); s != nil {
					expected = s.CSRFToken
				}
			}

			provided := auth.RequestCSRFToken(r)
			if expected == "" || provided == "" ||
				subtle.ConstantTimeCompare([]byte(expected), []byte(provided)) != 1 {
				logger.Warn("CSRF token validation failed",
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
					slog.Bool("token_present", provided != ""),
				)
				pkghttp.WriteForbidden(w, invalidCSRFMessage)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// isStateChangingMethod checks if the HTTP method modifies state
func isStateChangingMethod(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodPatch:
		return true
	default:
		return false
	}
}

func isCSRFExempt(r *http.Request) bool {
	if r.URL.Path != auth.LoginPath {
		return false
	}
	return r.Method == http.MethodPost || r.Method == http.MethodDelete
}
