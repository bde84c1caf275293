package models

import "errors"

// Sentinel errors for common failure conditions
var (
	ErrNotFound       = errors.New("resource not found")
	ErrConflict       = errors.New("resource already exists")
	ErrForbidden      = errors.New("Access is denied")
	ErrBadRequest     = errors.New("bad request")
	ErrInternalServer = errors.New("internal server error")

	// Request shape errors
	ErrMalformedRequest = errors.New("Malformed login request")

	// Authentication errors
	ErrNotAuthenticated     = errors.New("Please Login.")
	ErrAuthenticationFailed = errors.New("Authentication failed.")
	ErrInvalidCredentials   = errors.New("invalid credentials")

	// Account state errors
	ErrAccountDisabled = errors.New("account is disabled")
	ErrAccountLocked   = errors.New("account is temporarily locked")
)

// IsLoginFailure reports whether err is one of the failures a login attempt
// may produce. Callers never reveal which one occurred.
func IsLoginFailure(err error) bool {
	return errors.Is(err, ErrInvalidCredentials) ||
		errors.Is(err, ErrAccountDisabled) ||
		errors.Is(err, ErrAccountLocked)
}

// AuthorizationError is returned when an authenticated principal lacks the
// role a privileged operation requires.
type AuthorizationError struct {
	Required Role
	Actual   Role
}

func (e *AuthorizationError) Error() string {
	return ErrForbidden.Error()
}

func (e *AuthorizationError) Unwrap() error {
	return ErrForbidden
}

// ValidationError carries a client-facing message for rejected input.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func (e *ValidationError) Unwrap() error {
	return ErrBadRequest
}

// NewValidationError creates a ValidationError with the given message
func NewValidationError(message string) *ValidationError {
	return &ValidationError{Message: message}
}
