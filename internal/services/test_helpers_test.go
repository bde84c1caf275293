package services

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/BradenHooton/restgate/internal/auth"
	"github.com/BradenHooton/restgate/internal/models"
	"github.com/BradenHooton/restgate/internal/repositories"
	"github.com/BradenHooton/restgate/internal/session"
	pkgauth "github.com/BradenHooton/restgate/pkg/auth"
	pkglogger "github.com/BradenHooton/restgate/pkg/logger"
	"golang.org/x/crypto/bcrypt"
)

// MockAccountRepository implements AccountRepository for testing
type MockAccountRepository struct {
	GetByEmailFunc  func(ctx context.Context, email string) (*models.Account, error)
	ListFunc        func(ctx context.Context) ([]*models.Account, error)
	CreateFunc      func(ctx context.Context, account *models.Account) (*models.Account, error)
	UpdateFunc      func(ctx context.Context, account *models.Account) (*models.Account, error)
	WithAccountFunc func(ctx context.Context, email string, fn func(*models.Account) error) error
}

func (m *MockAccountRepository) GetByEmail(ctx context.Context, email string) (*models.Account, error) {
	if m.GetByEmailFunc != nil {
		return m.GetByEmailFunc(ctx, email)
	}
	return nil, models.ErrNotFound
}

func (m *MockAccountRepository) List(ctx context.Context) ([]*models.Account, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx)
	}
	return []*models.Account{}, nil
}

func (m *MockAccountRepository) Create(ctx context.Context, account *models.Account) (*models.Account, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, account)
	}
	return nil, models.ErrInternalServer
}

func (m *MockAccountRepository) Update(ctx context.Context, account *models.Account) (*models.Account, error) {
	if m.UpdateFunc != nil {
		return m.UpdateFunc(ctx, account)
	}
	return nil, models.ErrInternalServer
}

func (m *MockAccountRepository) WithAccount(ctx context.Context, email string, fn func(*models.Account) error) error {
	if m.WithAccountFunc != nil {
		return m.WithAccountFunc(ctx, email, fn)
	}
	return models.ErrNotFound
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func testAuditLogger() *pkglogger.AuditLogger {
	return pkglogger.NewAuditLogger(testLogger(), "test")
}

// seedAccount stores an account with a MinCost bcrypt hash of password
func seedAccount(repo *repositories.MemoryAccountRepository, email, password string, role models.Role, active bool) *models.Account {
	hash, err := pkgauth.HashPasswordWithCost(password, bcrypt.MinCost)
	if err != nil {
		panic(err)
	}
	account, err := repo.Create(context.Background(), &models.Account{
		Email:        email,
		PasswordHash: hash,
		Role:         role,
		Active:       active,
	})
	if err != nil {
		panic(err)
	}
	return account
}

// contextAs returns a context whose session is bound to principal
func contextAs(principal *models.Principal) context.Context {
	manager := session.NewManager(session.NewMemoryStore(), time.Hour, session.CookieOptions{}, testLogger())
	return manager.NewContext(context.Background(), &models.Session{
		ID:        "test-session",
		Principal: principal,
		ExpiresAt: time.Now().Add(time.Hour),
	})
}

func adminContext() context.Context {
	return contextAs(&models.Principal{Email: "admin@x.test", Role: models.RoleAdmin})
}

func userContext() context.Context {
	return contextAs(&models.Principal{Email: "user@x.test", Role: models.RoleUser})
}

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestAuthService(repo AccountRepository, maxAttempts int, window time.Duration) (*AuthService, *fakeClock) {
	verifier, err := auth.NewBcryptVerifier(bcrypt.MinCost)
	if err != nil {
		panic(err)
	}
	clock := &fakeClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	policy := auth.NewLockoutPolicy(maxAttempts, window)
	policy.Now = clock.Now

	svc := NewAuthService(repo, verifier, policy, auth.NewTimingDelay(auth.TimingConfig{}), testLogger(), testAuditLogger())
	return svc, clock
}
