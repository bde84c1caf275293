package auth

import (
	"log/slog"
	"net/http"

	"github.com/BradenHooton/restgate/internal/session"
	pkghttp "github.com/BradenHooton/restgate/pkg/http"
)

const (
	XSRFCookieName = "XSRF-TOKEN"
	XSRFHeaderName = "X-XSRF-TOKEN"
	XSRFParamName  = "_csrf"
)

// CSRFTokenGuard keeps the XSRF-TOKEN cookie equal to the session's token.
// It runs in the response phase, after the handler has had the chance to
// log in, log out or otherwise replace the session. A session (and its
// token) is created when the request has none. The cookie is only written
// when the client copy is missing or stale.
//
// Must be mounted inside session.Manager.Middleware.
func CSRFTokenGuard(cookie CookieConfig, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := session.FromContext(r.Context())
			if h == nil {
				next.ServeHTTP(w, r)
				return
			}

			clientToken := GetXSRFCookie(r)
			hw := pkghttp.NewHookWriter(w, func() {
				s, err := h.Ensure(r.Context())
				if err != nil {
					logger.Error("failed to issue csrf token", slog.Any("error", err))
					return
				}
				if s.CSRFToken != clientToken {
					SetXSRFCookie(w, s.CSRFToken, cookie)
				}
			})

			next.ServeHTTP(hw, r)
			hw.Finish()
		})
	}
}

// RequestCSRFToken returns the token the client echoed, header first then
// the form parameter
func RequestCSRFToken(r *http.Request) string {
	if token := r.Header.Get(XSRFHeaderName); token != "" {
		return token
	}
	if r.URL != nil {
		return r.URL.Query().Get(XSRFParamName)
	}
	return ""
}
