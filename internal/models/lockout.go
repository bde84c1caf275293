package models

import "time"

// LockoutState tracks failed login history for one account.
// A zero (or Unix epoch) LastLockTime means the account was never locked.
type LockoutState struct {
	FailedAttempts int       `db:"failed_attempts"`
	LastLockTime   time.Time `db:"last_lock_time"`
}

// neverLocked is the sentinel stored after a successful login.
var neverLocked = time.Unix(0, 0).UTC()

// RecordFailure counts a failed attempt. Reaching threshold arms the lock at
// now and restarts the counter.
func (s *LockoutState) RecordFailure(now time.Time, threshold int) {
	s.FailedAttempts++
	if s.FailedAttempts >= threshold {
		s.LastLockTime = now
		s.FailedAttempts = 0
	}
}

// RecordSuccess clears the failure history and any active lock.
func (s *LockoutState) RecordSuccess() {
	s.FailedAttempts = 0
	s.LastLockTime = neverLocked
}

// IsLocked reports whether the last lock is still within window of now.
func (s LockoutState) IsLocked(now time.Time, window time.Duration) bool {
	if s.LastLockTime.IsZero() || s.LastLockTime.Equal(neverLocked) {
		return false
	}
	return now.Sub(s.LastLockTime) < window
}

// NeverLocked returns the sentinel meaning "no lock recorded".
func NeverLocked() time.Time {
	return neverLocked
}
