package auth

import (
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

const (
	BcryptCost     = 12
	MinPasswordLen = 8
	MaxPasswordLen = 72 // bcrypt ignores bytes past 72
)

// PasswordValidationError holds the client-facing reason a password was rejected
type PasswordValidationError struct {
	Reason string
}

func (e *PasswordValidationError) Error() string {
	return e.Reason
}

// Common weak passwords to reject
var blacklist = map[string]bool{
	"password":     true,
	"12345678":     true,
	"123456789":    true,
	"1234567890":   true,
	"qwerty":       true,
	"qwertyuiop":   true,
	"abc123":       true,
	"password1":    true,
	"password123":  true,
	"password123!": true,
	"123456":       true,
	"admin":        true,
	"letmein":      true,
	"welcome":      true,
	"monkey":       true,
	"dragon":       true,
	"master":       true,
	"123123":       true,
	"passw0rd":     true,
	"shadow":       true,
	"sunshine":     true,
	"princess":     true,
	"starwars":     true,
	"football":     true,
	"baseball":     true,
	"trustno1":     true,
	"iloveyou":     true,
	"superman":     true,
	"11111111":     true,
	"00000000":     true,
}

func HashPassword(password string) (string, error) {
	return HashPasswordWithCost(password, BcryptCost)
}

// HashPasswordWithCost hashes with an explicit bcrypt cost (tests use bcrypt.MinCost)
func HashPasswordWithCost(password string, cost int) (string, error) {
	if password == "" {
		return "", fmt.Errorf("password cannot be empty")
	}
	hashedBytes, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hashedBytes), nil
}

func ComparePassword(hashedPassword, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password))
}

// IsBlacklisted reports whether password is on the common-password list (case-insensitive)
func IsBlacklisted(password string) bool {
	return blacklist[strings.ToLower(password)]
}

// ValidatePassword enforces the password rules for newly created accounts
func ValidatePassword(password string) error {
	if len(password) < MinPasswordLen {
		return &PasswordValidationError{Reason: "Password is too short"}
	}
	if len(password) > MaxPasswordLen {
		return &PasswordValidationError{Reason: "Password is too long"}
	}
	if IsBlacklisted(password) {
		return &PasswordValidationError{Reason: "Password is blacklisted"}
	}
	return nil
}
