package auth

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/BradenHooton/restgate/internal/models"
	"github.com/BradenHooton/restgate/internal/session"
	pkghttp "github.com/BradenHooton/restgate/pkg/http"
)

const (
	LoginPath = "/authentication"

	// LoginFailedMessage is the only failure text a login attempt reveals
	LoginFailedMessage = "Login failed; Invalid userID or password"
)

// LoginAttempt is a parsed login request plus its client details
type LoginAttempt struct {
	Username  string
	Password  string
	IPAddress string
	UserAgent string
}

// Authenticator verifies a login attempt and records its outcome against the
// account's lockout state.
type Authenticator interface {
	Authenticate(ctx context.Context, attempt LoginAttempt) (*models.Principal, error)
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

var errLoginBodyNotObject = errors.New("login body is not a single JSON object")

// decodeLoginRequest accepts exactly one JSON object and nothing after it
func decodeLoginRequest(body io.Reader) (*loginRequest, error) {
	dec := json.NewDecoder(body)

	var req *loginRequest
	if err := dec.Decode(&req); err != nil {
		return nil, err
	}
	if req == nil {
		return nil, errLoginBodyNotObject
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return nil, errLoginBodyNotObject
	}
	return req, nil
}

// LoginGate intercepts POST /authentication. A successful attempt binds the
// principal to a regenerated session and falls through to the next handler,
// which reports the identity. Any other request passes untouched.
func LoginGate(authenticator Authenticator, ipConfig *pkghttp.IPConfig, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost || r.URL.Path != LoginPath {
				next.ServeHTTP(w, r)
				return
			}

			h := session.FromContext(r.Context())
			if h == nil {
				pkghttp.WriteSecurityError(w, logger, errors.New("login gate mounted outside session middleware"))
				return
			}

			req, err := decodeLoginRequest(r.Body)
			if err != nil {
				logger.Warn("malformed login request", slog.Any("error", err))
				pkghttp.WriteSecurityError(w, logger, models.ErrMalformedRequest)
				return
			}

			principal, err := authenticator.Authenticate(r.Context(), LoginAttempt{
				Username:  req.Username,
				Password:  req.Password,
				IPAddress: pkghttp.ExtractClientIP(r, ipConfig),
				UserAgent: r.UserAgent(),
			})
			if err != nil {
				if !models.IsLoginFailure(err) {
					pkghttp.WriteSecurityError(w, logger, err)
					return
				}
				if err := h.MarkLoginFailed(r.Context()); err != nil {
					logger.Error("failed to record login failure on session", slog.Any("error", err))
				}
				pkghttp.WriteForbidden(w, LoginFailedMessage)
				return
			}

			if _, err := h.Regenerate(r.Context(), principal); err != nil {
				pkghttp.WriteSecurityError(w, logger, err)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
