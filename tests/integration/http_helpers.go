//go:build integration

package integration

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/BradenHooton/restgate/internal/auth"
	"github.com/BradenHooton/restgate/internal/config"
	"github.com/BradenHooton/restgate/internal/handlers"
	"github.com/BradenHooton/restgate/internal/middleware"
	"github.com/BradenHooton/restgate/internal/repositories"
	"github.com/BradenHooton/restgate/internal/routes"
	"github.com/BradenHooton/restgate/internal/services"
	"github.com/BradenHooton/restgate/internal/session"
	pkglogger "github.com/BradenHooton/restgate/pkg/logger"
)

// TestServer wraps httptest.Server running on Postgres accounts and Redis sessions
type TestServer struct {
	Server      *httptest.Server
	Accounts    *repositories.PostgresAccountRepository
	UserService *services.UserService
}

// NewTestServer assembles the production router over the shared containers
func NewTestServer(t *testing.T, db *TestDB, rdb *TestRedis, maxAttempts int, seeds []config.SeedAccount) *TestServer {
	t.Helper()

	logger := quietLogger()
	auditLogger := pkglogger.NewAuditLogger(logger, "test")
	accounts := repositories.NewPostgresAccountRepository(db.DB)

	verifier, err := auth.NewBcryptVerifier(bcrypt.MinCost)
	require.NoError(t, err)

	userService := services.NewUserService(accounts, logger, auditLogger, bcrypt.MinCost)
	authService := services.NewAuthService(accounts, verifier, auth.NewLockoutPolicy(maxAttempts, 10*time.Minute),
		auth.NewTimingDelay(auth.TimingConfig{}), logger, auditLogger)

	require.NoError(t, userService.SeedAccounts(context.Background(), seeds))

	router := routes.NewRouter(routes.Dependencies{
		Env:    "test",
		Logger: logger,
		Origins: middleware.OriginPolicyConfig{
			AllowedOrigins: []string{AppOrigin},
		},
		Sessions:                session.NewManager(session.NewRedisStore(rdb.Client), 30*time.Minute, session.CookieOptions{}, logger),
		Cookies:                 auth.CookieConfig{},
		Authenticator:           authService,
		LoginRateLimitPerMinute: 1000,
		UserHandler:             handlers.NewUserHandler(userService, logger),
		AuthHandler:             handlers.NewAuthHandler(authService, nil, logger),
		HealthCheck:             db.DB.HealthCheck,
	})

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	return &TestServer{Server: server, Accounts: accounts, UserService: userService}
}

// AppOrigin is the single origin the test server allows
const AppOrigin = "https://app.example.com"

// Browser keeps cookies and echoes the XSRF token the way a SPA does
type Browser struct {
	t      *testing.T
	base   string
	client *http.Client
}

func NewBrowser(t *testing.T, ts *TestServer) *Browser {
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &Browser{t: t, base: ts.Server.URL, client: &http.Client{Jar: jar}}
}

// Cookie returns the value of the named cookie held for the server
func (b *Browser) Cookie(name string) string {
	u, _ := url.Parse(b.base)
	for _, c := range b.client.Jar.Cookies(u) {
		if c.Name == name {
			return c.Value
		}
	}
	return ""
}

// Do sends a request and returns the status and body
func (b *Browser) Do(method, path string, body interface{}, withToken bool) (int, string) {
	b.t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(b.t, err)
		reader = strings.NewReader(string(data))
	}

	req, err := http.NewRequest(method, b.base+path, reader)
	require.NoError(b.t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Origin", AppOrigin)
	if withToken {
		req.Header.Set(auth.XSRFHeaderName, b.Cookie(auth.XSRFCookieName))
	}

	resp, err := b.client.Do(req)
	require.NoError(b.t, err)
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	require.NoError(b.t, err)
	return resp.StatusCode, string(data)
}

// Login posts credentials to the login endpoint
func (b *Browser) Login(email, password string) (int, string) {
	return b.Do(http.MethodPost, auth.LoginPath, map[string]string{"username": email, "password": password}, false)
}
