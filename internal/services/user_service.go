package services

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/BradenHooton/restgate/internal/auth"
	"github.com/BradenHooton/restgate/internal/config"
	"github.com/BradenHooton/restgate/internal/models"
	pkgauth "github.com/BradenHooton/restgate/pkg/auth"
	pkglogger "github.com/BradenHooton/restgate/pkg/logger"
)

// AccountRepository defines the interface for account data access
type AccountRepository interface {
	GetByEmail(ctx context.Context, email string) (*models.Account, error)
	List(ctx context.Context) ([]*models.Account, error)
	Create(ctx context.Context, account *models.Account) (*models.Account, error)
	Update(ctx context.Context, account *models.Account) (*models.Account, error)
	// WithAccount runs fn while no other WithAccount call for the same
	// email can run. The lockout state fn leaves is persisted even on error.
	WithAccount(ctx context.Context, email string, fn func(*models.Account) error) error
}

// CreateUserInput holds the fields accepted when creating an account
type CreateUserInput struct {
	Email    string
	Password string
	Role     models.Role
}

// UpdateUserInput holds the optional fields of an account update
type UpdateUserInput struct {
	Role   models.Role
	Active *bool
}

// UserService handles user business logic
type UserService struct {
	repo        AccountRepository
	logger      *slog.Logger
	auditLogger *pkglogger.AuditLogger
	bcryptCost  int
}

// NewUserService creates a new UserService
func NewUserService(repo AccountRepository, logger *slog.Logger, auditLogger *pkglogger.AuditLogger, bcryptCost int) *UserService {
	return &UserService{
		repo:        repo,
		logger:      logger,
		auditLogger: auditLogger,
		bcryptCost:  bcryptCost,
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// GetUser returns the identity of one account
func (s *UserService) GetUser(ctx context.Context, email string) (*models.Principal, error) {
	account, err := s.repo.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrNotFound
		}
		s.logger.Error("failed to get user", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	return models.PrincipalFromAccount(account), nil
}

// ListUsers returns the identities of all accounts, ordered by email
func (s *UserService) ListUsers(ctx context.Context) ([]*models.Principal, error) {
	accounts, err := s.repo.List(ctx)
	if err != nil {
		s.logger.Error("failed to list users", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	users := make([]*models.Principal, 0, len(accounts))
	for _, account := range accounts {
		users = append(users, models.PrincipalFromAccount(account))
	}
	return users, nil
}

// CreateUser creates an account. Requires ROLE_ADMIN.
func (s *UserService) CreateUser(ctx context.Context, input CreateUserInput) (*models.Principal, error) {
	if err := auth.RequireRole(ctx, models.RoleAdmin); err != nil {
		return nil, err
	}

	role := input.Role
	if role == "" {
		role = models.RoleUser
	}
	if !role.Valid() || role == models.RoleAnonymous {
		return nil, models.NewValidationError("Invalid role")
	}

	if err := pkgauth.ValidatePassword(input.Password); err != nil {
		var pwErr *pkgauth.PasswordValidationError
		if errors.As(err, &pwErr) {
			return nil, models.NewValidationError(pwErr.Reason)
		}
		return nil, models.NewValidationError(err.Error())
	}

	created, err := s.create(ctx, normalizeEmail(input.Email), input.Password, role)
	if err != nil {
		return nil, err
	}

	actor := auth.PrincipalFromContext(ctx)
	s.auditLogger.LogAccountAction(pkglogger.EventUserCreated, actor.Email, created.Email, map[string]string{
		"role": string(created.Role),
	})
	return models.PrincipalFromAccount(created), nil
}

func (s *UserService) create(ctx context.Context, email, password string, role models.Role) (*models.Account, error) {
	hashedPassword, err := pkgauth.HashPasswordWithCost(password, s.bcryptCost)
	if err != nil {
		s.logger.Error("failed to hash password", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	created, err := s.repo.Create(ctx, &models.Account{
		Email:        email,
		PasswordHash: hashedPassword,
		Role:         role,
		Active:       true,
	})
	if err != nil {
		if errors.Is(err, models.ErrConflict) {
			s.logger.Info("user already exists")
			return nil, models.ErrConflict
		}
		s.logger.Error("failed to create user", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	return created, nil
}

// UpdateUser changes the role and/or active flag of an account. Requires ROLE_ADMIN.
func (s *UserService) UpdateUser(ctx context.Context, email string, input UpdateUserInput) (*models.Principal, error) {
	if err := auth.RequireRole(ctx, models.RoleAdmin); err != nil {
		return nil, err
	}

	existing, err := s.repo.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrNotFound
		}
		s.logger.Error("failed to get user", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	metadata := map[string]string{}
	if input.Role != "" {
		if !input.Role.Valid() || input.Role == models.RoleAnonymous {
			return nil, models.NewValidationError("Invalid role")
		}
		existing.Role = input.Role
		metadata["role"] = string(input.Role)
	}
	if input.Active != nil {
		existing.Active = *input.Active
		if existing.Active {
			metadata["active"] = "true"
		} else {
			metadata["active"] = "false"
		}
	}

	updated, err := s.repo.Update(ctx, existing)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrNotFound
		}
		s.logger.Error("failed to update user", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	actor := auth.PrincipalFromContext(ctx)
	s.auditLogger.LogAccountAction(pkglogger.EventUserUpdated, actor.Email, updated.Email, metadata)
	return models.PrincipalFromAccount(updated), nil
}

// SeedAccounts creates the configured accounts that do not exist yet.
// Seeds skip the password rules.
func (s *UserService) SeedAccounts(ctx context.Context, seeds []config.SeedAccount) error {
	for _, seed := range seeds {
		role := models.Role(seed.Role)
		if !role.Valid() || role == models.RoleAnonymous {
			return models.NewValidationError("Invalid role for seed account")
		}

		_, err := s.create(ctx, normalizeEmail(seed.Email), seed.Password, role)
		switch {
		case err == nil:
			s.logger.Info("seed account created", slog.String("email", pkglogger.SanitizedEmail(seed.Email)), slog.String("role", seed.Role))
		case errors.Is(err, models.ErrConflict):
		default:
			return err
		}
	}
	return nil
}
