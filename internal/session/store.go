package session

import (
	"context"
	"time"

	"github.com/BradenHooton/restgate/internal/models"
)

// Store persists session records keyed by session id.
// Get reports models.ErrNotFound for unknown or expired sessions.
type Store interface {
	// Create fails with models.ErrConflict when the id is already taken
	Create(ctx context.Context, s *models.Session) error
	Get(ctx context.Context, id string) (*models.Session, error)
	// Save overwrites an existing record; models.ErrNotFound if it is gone
	Save(ctx context.Context, s *models.Session) error
	Delete(ctx context.Context, id string) error
}

// Sweeper is implemented by stores that do not expire records on their own.
type Sweeper interface {
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
