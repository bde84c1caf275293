package models

import (
	"time"
)

// Role is the authority granted to an account.
type Role string

const (
	RoleAnonymous Role = "ROLE_ANONYMOUS"
	RoleUser      Role = "ROLE_USER"
	RoleAdmin     Role = "ROLE_ADMIN"
)

// Valid reports whether r is one of the known roles
func (r Role) Valid() bool {
	switch r {
	case RoleAnonymous, RoleUser, RoleAdmin:
		return true
	}
	return false
}

type Account struct {
	ID           string
	Email        string
	PasswordHash string
	Role         Role
	Active       bool
	Lockout      LockoutState
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Principal is the identity bound to an authenticated session.
type Principal struct {
	Email string `json:"email"`
	Role  Role   `json:"role"`
}

// PrincipalFromAccount maps a stored account to the identity held by a session.
func PrincipalFromAccount(a *Account) *Principal {
	return &Principal{Email: a.Email, Role: a.Role}
}

// AnonymousPrincipal is reported for sessions without an authenticated user.
func AnonymousPrincipal() *Principal {
	return &Principal{Email: "", Role: RoleAnonymous}
}
