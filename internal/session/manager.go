package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/BradenHooton/restgate/internal/models"
	pkghttp "github.com/BradenHooton/restgate/pkg/http"
)

const (
	CookieName = "SESSIONID"

	// createAttempts bounds retries when a freshly generated id collides
	createAttempts = 3
)

// CookieOptions defines how session cookies are issued.
type CookieOptions struct {
	Secure bool
	Domain string
}

// Manager loads the session named by the request cookie and issues a new
// cookie in the response phase whenever the session id changed.
type Manager struct {
	store  Store
	ttl    time.Duration
	cookie CookieOptions
	logger *slog.Logger
	now    func() time.Time
}

func NewManager(store Store, ttl time.Duration, cookie CookieOptions, logger *slog.Logger) *Manager {
	return &Manager{
		store:  store,
		ttl:    ttl,
		cookie: cookie,
		logger: logger,
		now:    time.Now,
	}
}

type contextKey string

const handleContextKey contextKey = "session"

// FromContext returns the request's session handle, or nil outside Middleware
func FromContext(ctx context.Context) *Handle {
	h, _ := ctx.Value(handleContextKey).(*Handle)
	return h
}

// NewContext returns ctx carrying a handle for s outside of a request.
// No cookie is ever written for it.
func (m *Manager) NewContext(ctx context.Context, s *models.Session) context.Context {
	h := &Handle{manager: m}
	if s != nil {
		h.current = s.Clone()
		h.clientID = s.ID
	}
	return context.WithValue(ctx, handleContextKey, h)
}

// Middleware attaches a Handle to the request context
func (m *Manager) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := &Handle{manager: m}

		if c, err := r.Cookie(CookieName); err == nil && c.Value != "" {
			h.clientID = c.Value
			s, err := m.store.Get(r.Context(), c.Value)
			switch {
			case err == nil:
				h.current = s
			case errors.Is(err, models.ErrNotFound):
				// Unknown or expired id; the response clears the cookie
			default:
				m.logger.Error("failed to load session", slog.Any("error", err))
			}
		}

		hw := pkghttp.NewHookWriter(w, func() { h.writeCookie(w) })
		next.ServeHTTP(hw, r.WithContext(context.WithValue(r.Context(), handleContextKey, h)))
		hw.Finish()
	})
}

func (m *Manager) create(ctx context.Context, principal *models.Principal) (*models.Session, error) {
	for attempt := 0; attempt < createAttempts; attempt++ {
		id, err := NewToken()
		if err != nil {
			return nil, err
		}
		token, err := NewToken()
		if err != nil {
			return nil, err
		}

		now := m.now().UTC()
		s := &models.Session{
			ID:        id,
			Principal: principal,
			CSRFToken: token,
			CreatedAt: now,
			ExpiresAt: now.Add(m.ttl),
		}

		err = m.store.Create(ctx, s)
		if errors.Is(err, models.ErrConflict) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("session: create: %w", err)
		}
		return s, nil
	}
	return nil, fmt.Errorf("session: no unique id after %d attempts", createAttempts)
}

func (m *Manager) setCookie(w http.ResponseWriter, s *models.Session) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    s.ID,
		Path:     "/",
		Domain:   m.cookie.Domain,
		Expires:  s.ExpiresAt,
		HttpOnly: true,
		Secure:   m.cookie.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (m *Manager) clearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		Domain:   m.cookie.Domain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   m.cookie.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// Handle is the per-request view of the session.
type Handle struct {
	manager  *Manager
	mu       sync.Mutex
	current  *models.Session
	clientID string
}

// Session returns a copy of the current session, nil when there is none
func (h *Handle) Session() *models.Session {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.current == nil {
		return nil
	}
	return h.current.Clone()
}

// Principal returns the authenticated identity, nil for anonymous requests
func (h *Handle) Principal() *models.Principal {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.current == nil || h.current.Principal == nil {
		return nil
	}
	p := *h.current.Principal
	return &p
}

// Ensure returns the current session, creating an anonymous one with its
// CSRF token when the request has none.
func (h *Handle) Ensure(ctx context.Context) (*models.Session, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.current == nil {
		s, err := h.manager.create(ctx, nil)
		if err != nil {
			return nil, err
		}
		h.current = s
	}
	return h.current.Clone(), nil
}

// Regenerate replaces the session with a new id and CSRF token bound to
// principal. The previous id is deleted and cannot be reused.
func (h *Handle) Regenerate(ctx context.Context, principal *models.Principal) (*models.Session, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	s, err := h.manager.create(ctx, principal)
	if err != nil {
		return nil, err
	}

	if h.current != nil {
		if err := h.manager.store.Delete(ctx, h.current.ID); err != nil {
			h.manager.logger.Error("failed to delete replaced session", slog.Any("error", err))
		}
	}
	h.current = s
	return s.Clone(), nil
}

// Invalidate deletes the session; the request continues as anonymous
func (h *Handle) Invalidate(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.current == nil {
		return nil
	}
	if err := h.manager.store.Delete(ctx, h.current.ID); err != nil {
		return fmt.Errorf("session: invalidate: %w", err)
	}
	h.current = nil
	return nil
}

// MarkLoginFailed records that the last login attempt in this session failed
func (h *Handle) MarkLoginFailed(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.current == nil {
		s, err := h.manager.create(ctx, nil)
		if err != nil {
			return err
		}
		h.current = s
	}

	h.current.LoginFailed = true
	if err := h.manager.store.Save(ctx, h.current); err != nil {
		return fmt.Errorf("session: save: %w", err)
	}
	return nil
}

func (h *Handle) writeCookie(w http.ResponseWriter) {
	h.mu.Lock()
	defer h.mu.Unlock()

	switch {
	case h.current != nil && h.current.ID != h.clientID:
		h.manager.setCookie(w, h.current)
	case h.current == nil && h.clientID != "":
		h.manager.clearCookie(w)
	}
}
