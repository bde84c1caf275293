package background

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/BradenHooton/restgate/internal/session"
)

// SessionSweeper periodically removes expired sessions from stores that do
// not expire entries on their own
type SessionSweeper struct {
	store    session.Sweeper
	logger   *slog.Logger
	interval time.Duration
	now      func() time.Time
	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewSessionSweeper creates a new session sweeper
func NewSessionSweeper(store session.Sweeper, logger *slog.Logger, interval time.Duration) *SessionSweeper {
	return &SessionSweeper{
		store:    store,
		logger:   logger,
		interval: interval,
		now:      time.Now,
		stopCh:   make(chan struct{}),
	}
}

// Start runs the sweep loop until ctx is done or Stop is called
func (s *SessionSweeper) Start(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.Sweep(ctx)
		case <-s.stopCh:
			s.logger.Info("session sweeper stopped")
			return
		case <-ctx.Done():
			s.logger.Info("session sweeper context cancelled")
			return
		}
	}
}

// Sweep deletes the sessions that expired before now
func (s *SessionSweeper) Sweep(ctx context.Context) int64 {
	sweepCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	deleted, err := s.store.DeleteExpired(sweepCtx, s.now())
	if err != nil {
		s.logger.Error("failed to sweep expired sessions", slog.Any("error", err))
		return 0
	}

	if deleted > 0 {
		s.logger.Info("expired sessions removed", slog.Int64("sessions_deleted", deleted))
	}
	return deleted
}

// Stop signals the sweeper to stop
func (s *SessionSweeper) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
}
