package routes_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/BradenHooton/restgate/internal/auth"
	"github.com/BradenHooton/restgate/internal/config"
	"github.com/BradenHooton/restgate/internal/handlers"
	"github.com/BradenHooton/restgate/internal/middleware"
	"github.com/BradenHooton/restgate/internal/repositories"
	"github.com/BradenHooton/restgate/internal/routes"
	"github.com/BradenHooton/restgate/internal/services"
	"github.com/BradenHooton/restgate/internal/session"
	pkghttp "github.com/BradenHooton/restgate/pkg/http"
	pkglogger "github.com/BradenHooton/restgate/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const (
	testOrigin    = "https://app.example.com"
	adminEmail    = "admin@example.com"
	adminPassword = "admin-password-1"
	userEmail     = "user@example.com"
	userPassword  = "user-password-1"
)

func newTestServer(t *testing.T, maxAttempts int) *httptest.Server {
	t.Helper()

	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	auditLogger := pkglogger.NewAuditLogger(logger, "test")
	repo := repositories.NewMemoryAccountRepository()

	verifier, err := auth.NewBcryptVerifier(bcrypt.MinCost)
	require.NoError(t, err)

	userService := services.NewUserService(repo, logger, auditLogger, bcrypt.MinCost)
	authService := services.NewAuthService(repo, verifier, auth.NewLockoutPolicy(maxAttempts, 10*time.Minute),
		auth.NewTimingDelay(auth.TimingConfig{}), logger, auditLogger)

	require.NoError(t, userService.SeedAccounts(context.Background(), []config.SeedAccount{
		{Email: adminEmail, Password: adminPassword, Role: "ROLE_ADMIN"},
		{Email: userEmail, Password: userPassword, Role: "ROLE_USER"},
	}))

	router := routes.NewRouter(routes.Dependencies{
		Env:    "test",
		HSTS:   true,
		Logger: logger,
		Origins: middleware.OriginPolicyConfig{
			AllowedOrigins: []string{testOrigin},
		},
		Sessions:                session.NewManager(session.NewMemoryStore(), 30*time.Minute, session.CookieOptions{}, logger),
		Cookies:                 auth.CookieConfig{},
		Authenticator:           authService,
		LoginRateLimitPerMinute: 1000,
		UserHandler:             handlers.NewUserHandler(userService, logger),
		AuthHandler:             handlers.NewAuthHandler(authService, nil, logger),
	})

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)
	return server
}

// browser is a cookie-keeping client that echoes the XSRF token like a SPA
type browser struct {
	t      *testing.T
	server *httptest.Server
	client *http.Client
}

func newBrowser(t *testing.T, server *httptest.Server) *browser {
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &browser{t: t, server: server, client: &http.Client{Jar: jar}}
}

func (b *browser) cookie(name string) string {
	u, _ := url.Parse(b.server.URL)
	for _, c := range b.client.Jar.Cookies(u) {
		if c.Name == name {
			return c.Value
		}
	}
	return ""
}

func (b *browser) do(method, path, body string, withToken bool) (*http.Response, string) {
	b.t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, b.server.URL+path, reader)
	require.NoError(b.t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Origin", testOrigin)
	if withToken {
		req.Header.Set(auth.XSRFHeaderName, b.cookie(auth.XSRFCookieName))
	}

	resp, err := b.client.Do(req)
	require.NoError(b.t, err)
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	require.NoError(b.t, err)
	return resp, string(data)
}

func (b *browser) login(email, password string) (*http.Response, string) {
	body, _ := json.Marshal(map[string]string{"username": email, "password": password})
	return b.do(http.MethodPost, auth.LoginPath, string(body), false)
}

func errorMessage(t *testing.T, body string) string {
	var resp pkghttp.ErrorResponse
	require.NoError(t, json.Unmarshal([]byte(body), &resp))
	return resp.Error
}

func TestAnonymousIdentityIssuesSessionAndToken(t *testing.T) {
	b := newBrowser(t, newTestServer(t, 10))

	resp, body := b.do(http.MethodGet, auth.LoginPath, "", false)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"email":"","role":"ROLE_ANONYMOUS"}`, body)
	assert.NotEmpty(t, b.cookie(session.CookieName))
	assert.NotEmpty(t, b.cookie(auth.XSRFCookieName))

	// Same session and token on the next request
	sid, token := b.cookie(session.CookieName), b.cookie(auth.XSRFCookieName)
	b.do(http.MethodGet, auth.LoginPath, "", false)
	assert.Equal(t, sid, b.cookie(session.CookieName))
	assert.Equal(t, token, b.cookie(auth.XSRFCookieName))
}

func TestLoginRegeneratesSession(t *testing.T) {
	b := newBrowser(t, newTestServer(t, 10))
	b.do(http.MethodGet, auth.LoginPath, "", false)
	anonymousSID := b.cookie(session.CookieName)
	anonymousToken := b.cookie(auth.XSRFCookieName)

	resp, body := b.login(adminEmail, adminPassword)

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"email":"admin@example.com","role":"ROLE_ADMIN"}`, body)
	assert.NotEqual(t, anonymousSID, b.cookie(session.CookieName))
	assert.NotEqual(t, anonymousToken, b.cookie(auth.XSRFCookieName))

	resp, body = b.do(http.MethodGet, "/users", "", false)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, userEmail)
}

func TestLoginFailureMessages(t *testing.T) {
	server := newTestServer(t, 10)

	b := newBrowser(t, server)
	resp, body := b.login(userEmail, "wrong-password")
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, auth.LoginFailedMessage, errorMessage(t, body))

	// Unknown accounts fail the same way
	resp, body = b.login("ghost@example.com", "whatever")
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, auth.LoginFailedMessage, errorMessage(t, body))

	resp, body = b.do(http.MethodGet, "/users", "", false)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "Authentication failed.", errorMessage(t, body))

	fresh := newBrowser(t, server)
	resp, body = fresh.do(http.MethodGet, "/users", "", false)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "Please Login.", errorMessage(t, body))
}

func TestMalformedLoginIsBadRequest(t *testing.T) {
	b := newBrowser(t, newTestServer(t, 10))

	resp, _ := b.do(http.MethodPost, auth.LoginPath, "{not json", false)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestLockoutRejectsCorrectPassword(t *testing.T) {
	b := newBrowser(t, newTestServer(t, 3))

	for i := 0; i < 3; i++ {
		resp, _ := b.login(userEmail, "wrong-password")
		require.Equal(t, http.StatusForbidden, resp.StatusCode)
	}

	resp, body := b.login(userEmail, userPassword)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, auth.LoginFailedMessage, errorMessage(t, body))

	// Other accounts are unaffected
	resp, _ = b.login(adminEmail, adminPassword)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestCreateUserRequiresCSRFTokenAndAdmin(t *testing.T) {
	server := newTestServer(t, 10)
	newUser := `{"email":"new@example.com","password":"brand-new-password"}`

	admin := newBrowser(t, server)
	admin.login(adminEmail, adminPassword)

	resp, body := admin.do(http.MethodPost, "/users", newUser, false)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, "Invalid CSRF token", errorMessage(t, body))

	resp, body = admin.do(http.MethodPost, "/users", newUser, true)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.JSONEq(t, `{"email":"new@example.com","role":"ROLE_USER"}`, body)

	resp, _ = admin.do(http.MethodPost, "/users", newUser, true)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp, body = admin.do(http.MethodPost, "/users", `{"email":"short@example.com","password":"short"}`, true)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "Password is too short", errorMessage(t, body))

	user := newBrowser(t, server)
	user.login(userEmail, userPassword)
	resp, body = user.do(http.MethodPost, "/users", `{"email":"other@example.com","password":"brand-new-password"}`, true)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, "Access is denied", errorMessage(t, body))
}

func TestLogoutEndsSession(t *testing.T) {
	b := newBrowser(t, newTestServer(t, 10))
	b.login(userEmail, userPassword)
	loggedInSID := b.cookie(session.CookieName)

	resp, _ := b.do(http.MethodDelete, auth.LoginPath, "", false)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.NotEqual(t, loggedInSID, b.cookie(session.CookieName))

	resp, body := b.do(http.MethodGet, "/users", "", false)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "Please Login.", errorMessage(t, body))
}

func TestDisallowedOriginNeverReachesRouter(t *testing.T) {
	b := newBrowser(t, newTestServer(t, 10))

	req, err := http.NewRequest(http.MethodPost, b.server.URL+auth.LoginPath,
		strings.NewReader(`{"username":"admin@example.com","password":"admin-password-1"}`))
	require.NoError(t, err)
	req.Header.Set("Origin", "https://evil.example.net")

	resp, err := b.client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, body)
	assert.Equal(t, testOrigin, resp.Header.Get("Access-Control-Allow-Origin"))
	assert.Empty(t, b.cookie(session.CookieName))
}

func TestMissingOriginNeverReachesRouter(t *testing.T) {
	b := newBrowser(t, newTestServer(t, 10))

	for _, path := range []string{auth.LoginPath, "/health"} {
		req, err := http.NewRequest(http.MethodGet, b.server.URL+path, nil)
		require.NoError(t, err)

		resp, err := b.client.Do(req)
		require.NoError(t, err)
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()

		assert.Equal(t, http.StatusOK, resp.StatusCode, path)
		assert.Empty(t, body, path)
		assert.Equal(t, testOrigin, resp.Header.Get("Access-Control-Allow-Origin"), path)
	}
	assert.Empty(t, b.cookie(session.CookieName))
}

func TestSecurityHeadersAndHealth(t *testing.T) {
	b := newBrowser(t, newTestServer(t, 10))

	resp, body := b.do(http.MethodGet, "/health", "", false)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"status":"healthy"}`, body)
	assert.Equal(t, "nosniff", resp.Header.Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", resp.Header.Get("X-Frame-Options"))
	assert.Equal(t, "no-cache, no-store, max-age=0, must-revalidate", resp.Header.Get("Cache-Control"))

	// Probes do not create sessions
	assert.Empty(t, b.cookie(session.CookieName))
}
