package auth_test

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"time"

	"github.com/BradenHooton/restgate/internal/auth"
	"github.com/BradenHooton/restgate/internal/models"
	"github.com/BradenHooton/restgate/internal/session"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

// stack wires the session and CSRF middleware around handler the same way
// the router does
func stack(store session.Store, handler http.Handler) http.Handler {
	logger := discardLogger()
	manager := session.NewManager(store, 30*time.Minute, session.CookieOptions{Secure: true}, logger)
	guard := auth.CSRFTokenGuard(auth.CookieConfig{Secure: true}, logger)
	return manager.Middleware(guard(handler))
}

func findCookie(rec *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// seedSession stores a session and returns a request carrying its cookies
func seedSession(store session.Store, s *models.Session, method, target string) *http.Request {
	if s.ExpiresAt.IsZero() {
		s.ExpiresAt = time.Now().Add(time.Hour)
	}
	if err := store.Create(context.Background(), s); err != nil {
		panic(err)
	}
	req := httptest.NewRequest(method, target, nil)
	req.AddCookie(&http.Cookie{Name: session.CookieName, Value: s.ID})
	return req
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}
