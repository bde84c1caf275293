package auth

import (
	"fmt"

	pkgauth "github.com/BradenHooton/restgate/pkg/auth"
)

// CredentialVerifier checks a submitted secret against a stored credential.
type CredentialVerifier interface {
	Verify(hash, password string) bool
	// VerifyMissing spends the same effort as Verify when no account exists
	VerifyMissing(password string)
}

// BcryptVerifier verifies bcrypt hashes.
type BcryptVerifier struct {
	missingHash string
}

func NewBcryptVerifier(cost int) (*BcryptVerifier, error) {
	hash, err := pkgauth.HashPasswordWithCost("restgate-missing-account", cost)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare verifier: %w", err)
	}
	return &BcryptVerifier{missingHash: hash}, nil
}

func (v *BcryptVerifier) Verify(hash, password string) bool {
	return pkgauth.ComparePassword(hash, password) == nil
}

func (v *BcryptVerifier) VerifyMissing(password string) {
	_ = pkgauth.ComparePassword(v.missingHash, password)
}
