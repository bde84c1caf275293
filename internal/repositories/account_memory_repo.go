package repositories

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/BradenHooton/restgate/internal/models"
	"github.com/google/uuid"
)

// MemoryAccountRepository keeps accounts in process memory, keyed by email.
// Lockout updates are serialized by one mutex per account, allocated when
// the account is created.
type MemoryAccountRepository struct {
	mu       sync.RWMutex
	accounts map[string]*models.Account
	locks    map[string]*sync.Mutex
}

func NewMemoryAccountRepository() *MemoryAccountRepository {
	return &MemoryAccountRepository{
		accounts: make(map[string]*models.Account),
		locks:    make(map[string]*sync.Mutex),
	}
}

// lockFor returns the account's mutex, or ErrNotFound for unknown emails so
// arbitrary login names never allocate anything
func (r *MemoryAccountRepository) lockFor(email string) (*sync.Mutex, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	l, ok := r.locks[email]
	if !ok {
		return nil, models.ErrNotFound
	}
	return l, nil
}

func (r *MemoryAccountRepository) GetByEmail(ctx context.Context, email string) (*models.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	account, ok := r.accounts[email]
	if !ok {
		return nil, models.ErrNotFound
	}
	copied := *account
	return &copied, nil
}

func (r *MemoryAccountRepository) List(ctx context.Context) ([]*models.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	accounts := make([]*models.Account, 0, len(r.accounts))
	for _, account := range r.accounts {
		copied := *account
		accounts = append(accounts, &copied)
	}
	sort.Slice(accounts, func(i, j int) bool {
		return accounts[i].Email < accounts[j].Email
	})
	return accounts, nil
}

func (r *MemoryAccountRepository) Create(ctx context.Context, account *models.Account) (*models.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.accounts[account.Email]; exists {
		return nil, models.ErrConflict
	}

	now := time.Now().UTC()
	created := *account
	created.ID = uuid.New().String()
	created.CreatedAt = now
	created.UpdatedAt = now
	if created.Lockout.LastLockTime.IsZero() {
		created.Lockout.LastLockTime = models.NeverLocked()
	}

	r.accounts[created.Email] = &created
	r.locks[created.Email] = &sync.Mutex{}
	result := created
	return &result, nil
}

// Update writes the role and active flag of an existing account
func (r *MemoryAccountRepository) Update(ctx context.Context, account *models.Account) (*models.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.accounts[account.Email]
	if !ok {
		return nil, models.ErrNotFound
	}

	existing.Role = account.Role
	existing.Active = account.Active
	existing.UpdatedAt = time.Now().UTC()

	result := *existing
	return &result, nil
}

// WithAccount runs fn on a copy of the account while holding its lock.
// The lockout state fn leaves behind is stored even when fn fails.
func (r *MemoryAccountRepository) WithAccount(ctx context.Context, email string, fn func(*models.Account) error) error {
	l, err := r.lockFor(email)
	if err != nil {
		return err
	}
	l.Lock()
	defer l.Unlock()

	account, err := r.GetByEmail(ctx, email)
	if err != nil {
		return err
	}

	fnErr := fn(account)

	r.mu.Lock()
	if existing, ok := r.accounts[email]; ok {
		existing.Lockout = account.Lockout
		existing.UpdatedAt = time.Now().UTC()
	}
	r.mu.Unlock()

	return fnErr
}
