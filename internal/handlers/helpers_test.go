package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/BradenHooton/restgate/internal/models"
	"github.com/BradenHooton/restgate/internal/services"
	"github.com/BradenHooton/restgate/internal/session"
	pkghttp "github.com/BradenHooton/restgate/pkg/http"
	"github.com/stretchr/testify/assert"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

// NewTestRequest creates an HTTP request with JSON body for testing
func NewTestRequest(t *testing.T, method, url string, body interface{}) *http.Request {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("failed to encode request body: %v", err)
		}
	}
	req := httptest.NewRequest(method, url, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

// WithPrincipal runs req inside a session bound to the given identity
func WithPrincipal(req *http.Request, email string, role models.Role) *http.Request {
	manager := session.NewManager(session.NewMemoryStore(), time.Hour, session.CookieOptions{}, discardLogger())
	ctx := manager.NewContext(req.Context(), &models.Session{
		ID:        "test-session",
		Principal: &models.Principal{Email: email, Role: role},
		CSRFToken: "test-token",
		ExpiresAt: time.Now().Add(time.Hour),
	})
	return req.WithContext(ctx)
}

// AssertJSONResponse checks that response has correct status and decodes JSON body
func AssertJSONResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, target interface{}) {
	assert.Equal(t, expectedStatus, w.Code, "Response status mismatch")
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"), "Content-Type should be application/json")

	if target != nil {
		err := json.Unmarshal(w.Body.Bytes(), target)
		assert.NoError(t, err, "Failed to decode response JSON")
	}
}

// AssertErrorResponse checks that response is a valid error response
func AssertErrorResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, expectedError string) {
	assert.Equal(t, expectedStatus, w.Code, "Response status mismatch")

	var resp pkghttp.ErrorResponse
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	assert.NoError(t, err, "Failed to decode error response")
	assert.Equal(t, expectedError, resp.Error, "Error message mismatch")
}

// MockUserService implements handlers.UserService for testing
type MockUserService struct {
	GetUserFunc    func(ctx context.Context, email string) (*models.Principal, error)
	ListUsersFunc  func(ctx context.Context) ([]*models.Principal, error)
	CreateUserFunc func(ctx context.Context, input services.CreateUserInput) (*models.Principal, error)
	UpdateUserFunc func(ctx context.Context, email string, input services.UpdateUserInput) (*models.Principal, error)
}

func (m *MockUserService) GetUser(ctx context.Context, email string) (*models.Principal, error) {
	if m.GetUserFunc != nil {
		return m.GetUserFunc(ctx, email)
	}
	return nil, models.ErrNotFound
}

func (m *MockUserService) ListUsers(ctx context.Context) ([]*models.Principal, error) {
	if m.ListUsersFunc != nil {
		return m.ListUsersFunc(ctx)
	}
	return []*models.Principal{}, nil
}

func (m *MockUserService) CreateUser(ctx context.Context, input services.CreateUserInput) (*models.Principal, error) {
	if m.CreateUserFunc != nil {
		return m.CreateUserFunc(ctx, input)
	}
	return &models.Principal{Email: input.Email, Role: input.Role}, nil
}

func (m *MockUserService) UpdateUser(ctx context.Context, email string, input services.UpdateUserInput) (*models.Principal, error) {
	if m.UpdateUserFunc != nil {
		return m.UpdateUserFunc(ctx, email, input)
	}
	return &models.Principal{Email: email, Role: input.Role}, nil
}

// MockLogoutRecorder records RecordLogout calls
type MockLogoutRecorder struct {
	Principals []*models.Principal
	IPs        []string
}

func (m *MockLogoutRecorder) RecordLogout(principal *models.Principal, ipAddress string) {
	m.Principals = append(m.Principals, principal)
	m.IPs = append(m.IPs, ipAddress)
}
