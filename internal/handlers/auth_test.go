package handlers_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/BradenHooton/restgate/internal/auth"
	"github.com/BradenHooton/restgate/internal/handlers"
	"github.com/BradenHooton/restgate/internal/models"
	"github.com/BradenHooton/restgate/internal/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIdentity_Anonymous(t *testing.T) {
	handler := handlers.NewAuthHandler(&MockLogoutRecorder{}, nil, discardLogger())

	w := httptest.NewRecorder()
	handler.Identity(w, httptest.NewRequest(http.MethodGet, "/authentication", nil))

	var resp models.Principal
	AssertJSONResponse(t, w, http.StatusOK, &resp)
	assert.Equal(t, "", resp.Email)
	assert.Equal(t, models.RoleAnonymous, resp.Role)
}

func TestIdentity_Authenticated(t *testing.T) {
	handler := handlers.NewAuthHandler(&MockLogoutRecorder{}, nil, discardLogger())

	req := WithPrincipal(httptest.NewRequest(http.MethodPost, "/authentication", nil), "admin@example.com", models.RoleAdmin)
	w := httptest.NewRecorder()
	handler.Identity(w, req)

	AssertJSONResponse(t, w, http.StatusOK, nil)
	assert.JSONEq(t, `{"email":"admin@example.com","role":"ROLE_ADMIN"}`, w.Body.String())
}

func TestLogout_InvalidatesAndIssuesFreshSession(t *testing.T) {
	ctx := context.Background()
	store := session.NewMemoryStore()
	logger := discardLogger()
	manager := session.NewManager(store, 30*time.Minute, session.CookieOptions{Secure: true}, logger)
	guard := auth.CSRFTokenGuard(auth.CookieConfig{Secure: true}, logger)

	recorder := &MockLogoutRecorder{}
	handler := handlers.NewAuthHandler(recorder, nil, logger)
	stack := manager.Middleware(guard(http.HandlerFunc(handler.Logout)))

	require.NoError(t, store.Create(ctx, &models.Session{
		ID:        "old-session",
		Principal: &models.Principal{Email: "user@example.com", Role: models.RoleUser},
		CSRFToken: "old-token",
		ExpiresAt: time.Now().Add(time.Hour),
	}))

	req := httptest.NewRequest(http.MethodDelete, "/authentication", nil)
	req.RemoteAddr = "203.0.113.7:4000"
	req.AddCookie(&http.Cookie{Name: session.CookieName, Value: "old-session"})
	req.AddCookie(&http.Cookie{Name: auth.XSRFCookieName, Value: "old-token"})
	w := httptest.NewRecorder()
	stack.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Empty(t, w.Body.String())

	_, err := store.Get(ctx, "old-session")
	assert.ErrorIs(t, err, models.ErrNotFound)

	var sessionCookie, xsrfCookie *http.Cookie
	for _, c := range w.Result().Cookies() {
		switch c.Name {
		case session.CookieName:
			sessionCookie = c
		case auth.XSRFCookieName:
			xsrfCookie = c
		}
	}
	require.NotNil(t, sessionCookie)
	require.NotNil(t, xsrfCookie)
	assert.NotEqual(t, "old-session", sessionCookie.Value)
	assert.NotEqual(t, "old-token", xsrfCookie.Value)

	fresh, err := store.Get(ctx, sessionCookie.Value)
	require.NoError(t, err)
	assert.False(t, fresh.Authenticated())
	assert.Equal(t, xsrfCookie.Value, fresh.CSRFToken)

	require.Len(t, recorder.Principals, 1)
	assert.Equal(t, "user@example.com", recorder.Principals[0].Email)
	assert.Equal(t, "203.0.113.7", recorder.IPs[0])
}

func TestLogout_AnonymousIsNoop(t *testing.T) {
	recorder := &MockLogoutRecorder{}
	handler := handlers.NewAuthHandler(recorder, nil, discardLogger())

	w := httptest.NewRecorder()
	handler.Logout(w, httptest.NewRequest(http.MethodDelete, "/authentication", nil))

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Empty(t, recorder.Principals)
}
