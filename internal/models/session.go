package models

import (
	"time"
)

// Session is the server-side record behind the session cookie.
// The CSRF token lives here so both are created by a single store write.
type Session struct {
	ID          string     `json:"id"`
	Principal   *Principal `json:"principal,omitempty"`
	CSRFToken   string     `json:"csrf_token"`
	LoginFailed bool       `json:"login_failed"`
	CreatedAt   time.Time  `json:"created_at"`
	ExpiresAt   time.Time  `json:"expires_at"`
}

// Authenticated reports whether a principal is bound to the session
func (s *Session) Authenticated() bool {
	return s != nil && s.Principal != nil
}

// Expired reports whether the session is past its expiry at now
func (s *Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}

// Clone returns a copy that does not share the principal pointer
func (s *Session) Clone() *Session {
	c := *s
	if s.Principal != nil {
		p := *s.Principal
		c.Principal = &p
	}
	return &c
}
