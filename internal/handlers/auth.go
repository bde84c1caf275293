package handlers

import (
	"log/slog"
	"net/http"

	"github.com/BradenHooton/restgate/internal/auth"
	"github.com/BradenHooton/restgate/internal/models"
	"github.com/BradenHooton/restgate/internal/session"
	pkghttp "github.com/BradenHooton/restgate/pkg/http"
)

// LogoutRecorder audits the end of an authenticated session
type LogoutRecorder interface {
	RecordLogout(principal *models.Principal, ipAddress string)
}

// AuthHandler serves the /authentication resource. The login itself is
// performed by auth.LoginGate before these handlers run.
type AuthHandler struct {
	recorder LogoutRecorder
	ipConfig *pkghttp.IPConfig
	logger   *slog.Logger
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(recorder LogoutRecorder, ipConfig *pkghttp.IPConfig, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		recorder: recorder,
		ipConfig: ipConfig,
		logger:   logger,
	}
}

// Identity reports the principal bound to the session, or the anonymous
// identity.
//
// @Summary Current identity
// @Produce json
// @Success 200 {object} models.Principal
// @Router /authentication [get]
// @Router /authentication [post]
func (h *AuthHandler) Identity(w http.ResponseWriter, r *http.Request) {
	pkghttp.WriteJSON(w, http.StatusOK, auth.IdentityFromContext(r.Context()))
}

// Logout deletes the session. The response carries a fresh anonymous
// session and CSRF token.
//
// @Summary Log out
// @Success 204
// @Router /authentication [delete]
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	sh := session.FromContext(r.Context())
	if sh == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	principal := sh.Principal()
	if err := sh.Invalidate(r.Context()); err != nil {
		pkghttp.WriteSecurityError(w, h.logger, err)
		return
	}

	if principal != nil {
		h.recorder.RecordLogout(principal, pkghttp.ExtractClientIP(r, h.ipConfig))
	}

	w.WriteHeader(http.StatusNoContent)
}
