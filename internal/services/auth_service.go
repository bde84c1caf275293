package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/BradenHooton/restgate/internal/auth"
	"github.com/BradenHooton/restgate/internal/models"
	pkglogger "github.com/BradenHooton/restgate/pkg/logger"
)

// AuthService verifies login attempts and keeps each account's lockout
// state current.
type AuthService struct {
	repo        AccountRepository
	verifier    auth.CredentialVerifier
	policy      *auth.LockoutPolicy
	timing      *auth.TimingDelay
	logger      *slog.Logger
	auditLogger *pkglogger.AuditLogger
}

// NewAuthService creates a new AuthService
func NewAuthService(
	repo AccountRepository,
	verifier auth.CredentialVerifier,
	policy *auth.LockoutPolicy,
	timing *auth.TimingDelay,
	logger *slog.Logger,
	auditLogger *pkglogger.AuditLogger,
) *AuthService {
	return &AuthService{
		repo:        repo,
		verifier:    verifier,
		policy:      policy,
		timing:      timing,
		logger:      logger,
		auditLogger: auditLogger,
	}
}

// Authenticate checks the attempt against the account named by its username.
// The lock check, password comparison and lockout update all happen while the
// account is held, so concurrent guesses cannot lose updates. Locked,
// disabled and wrong-password outcomes each count as a failure.
func (s *AuthService) Authenticate(ctx context.Context, attempt auth.LoginAttempt) (*models.Principal, error) {
	start := time.Now()
	email := normalizeEmail(attempt.Username)

	var principal *models.Principal
	reason := ""

	err := s.repo.WithAccount(ctx, email, func(account *models.Account) error {
		locked := s.policy.IsLocked(account.Lockout)
		matched := s.verifier.Verify(account.PasswordHash, attempt.Password)

		switch {
		case locked:
			reason = "account_locked"
		case !account.Active:
			reason = "account_disabled"
		case !matched:
			reason = "invalid_credentials"
		}

		if reason != "" {
			s.policy.RecordFailure(&account.Lockout)
			if s.policy.IsLocked(account.Lockout) && !locked {
				s.logger.Warn("account locked after repeated login failures",
					slog.String("email", pkglogger.SanitizedEmail(email)),
					slog.Int("max_attempts", s.policy.MaxAttempts),
				)
			}
			return loginFailure(reason)
		}

		s.policy.RecordSuccess(&account.Lockout)
		principal = models.PrincipalFromAccount(account)
		return nil
	})

	if errors.Is(err, models.ErrNotFound) {
		s.verifier.VerifyMissing(attempt.Password)
		reason = "unknown_account"
		err = models.ErrInvalidCredentials
	}

	if err != nil {
		if !models.IsLoginFailure(err) {
			s.logger.Error("failed to authenticate", slog.Any("error", err))
			return nil, fmt.Errorf("authenticate: %w", err)
		}

		s.auditLogger.LogAuthAttempt(pkglogger.AuditEvent{
			EventType:     pkglogger.EventLoginFailed,
			Email:         email,
			IPAddress:     attempt.IPAddress,
			UserAgent:     attempt.UserAgent,
			Success:       false,
			FailureReason: reason,
		})
		s.timing.WaitFrom(ctx, start, false)
		return nil, err
	}

	s.auditLogger.LogAuthAttempt(pkglogger.AuditEvent{
		EventType: pkglogger.EventLoginSuccess,
		Email:     email,
		IPAddress: attempt.IPAddress,
		UserAgent: attempt.UserAgent,
		Success:   true,
	})
	s.timing.WaitFrom(ctx, start, true)
	return principal, nil
}

// RecordLogout writes the audit line for a logout
func (s *AuthService) RecordLogout(principal *models.Principal, ipAddress string) {
	if principal == nil {
		return
	}
	s.auditLogger.LogAuthAttempt(pkglogger.AuditEvent{
		EventType: pkglogger.EventLogout,
		Email:     principal.Email,
		IPAddress: ipAddress,
		Success:   true,
	})
}

func loginFailure(reason string) error {
	switch reason {
	case "account_locked":
		return models.ErrAccountLocked
	case "account_disabled":
		return models.ErrAccountDisabled
	default:
		return models.ErrInvalidCredentials
	}
}
