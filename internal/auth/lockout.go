package auth

import (
	"time"

	"github.com/BradenHooton/restgate/internal/models"
)

const (
	DefaultLockoutMaxAttempts = 10
	DefaultLockoutWindow      = 10 * time.Minute
)

// LockoutPolicy applies the lockout threshold and window to account state.
type LockoutPolicy struct {
	MaxAttempts int
	Window      time.Duration
	Now         func() time.Time
}

// NewLockoutPolicy falls back to the defaults for non-positive values
func NewLockoutPolicy(maxAttempts int, window time.Duration) *LockoutPolicy {
	if maxAttempts <= 0 {
		maxAttempts = DefaultLockoutMaxAttempts
	}
	if window <= 0 {
		window = DefaultLockoutWindow
	}
	return &LockoutPolicy{
		MaxAttempts: maxAttempts,
		Window:      window,
		Now:         time.Now,
	}
}

func (p *LockoutPolicy) now() time.Time {
	if p.Now == nil {
		return time.Now().UTC()
	}
	return p.Now().UTC()
}

func (p *LockoutPolicy) IsLocked(state models.LockoutState) bool {
	return state.IsLocked(p.now(), p.Window)
}

func (p *LockoutPolicy) RecordFailure(state *models.LockoutState) {
	state.RecordFailure(p.now(), p.MaxAttempts)
}

func (p *LockoutPolicy) RecordSuccess(state *models.LockoutState) {
	state.RecordSuccess()
}
