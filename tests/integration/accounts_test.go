//go:build integration

package integration

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BradenHooton/restgate/internal/models"
	"github.com/BradenHooton/restgate/internal/repositories"
)

func TestPostgresAccounts_CreateGetConflict(t *testing.T) {
	resetState(t)
	ctx := context.Background()
	repo := repositories.NewPostgresAccountRepository(testDB.DB)
	email, _ := TestUser("create")

	created, err := repo.Create(ctx, &models.Account{
		Email:        email,
		PasswordHash: "hash",
		Role:         models.RoleUser,
		Active:       true,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, 0, created.Lockout.FailedAttempts)

	got, err := repo.GetByEmail(ctx, email)
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)
	assert.False(t, got.Lockout.IsLocked(time.Now(), time.Minute))

	_, err = repo.Create(ctx, &models.Account{Email: email, PasswordHash: "x", Role: models.RoleUser, Active: true})
	assert.ErrorIs(t, err, models.ErrConflict)

	_, err = repo.GetByEmail(ctx, "missing@example.com")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestPostgresAccounts_UpdateRoleAndActive(t *testing.T) {
	resetState(t)
	ctx := context.Background()
	repo := repositories.NewPostgresAccountRepository(testDB.DB)
	email, _ := TestUser("update")

	created, err := repo.Create(ctx, &models.Account{Email: email, PasswordHash: "hash", Role: models.RoleUser, Active: true})
	require.NoError(t, err)

	created.Role = models.RoleAdmin
	created.Active = false
	updated, err := repo.Update(ctx, created)
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, updated.Role)
	assert.False(t, updated.Active)

	_, err = repo.Update(ctx, &models.Account{Email: "missing@example.com", Role: models.RoleUser})
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestPostgresAccounts_WithAccountPersistsLockoutOnError(t *testing.T) {
	resetState(t)
	ctx := context.Background()
	repo := repositories.NewPostgresAccountRepository(testDB.DB)
	email, _ := TestUser("lockout")

	_, err := repo.Create(ctx, &models.Account{Email: email, PasswordHash: "hash", Role: models.RoleUser, Active: true})
	require.NoError(t, err)

	failure := errors.New("login failed")
	err = repo.WithAccount(ctx, email, func(a *models.Account) error {
		a.Lockout.RecordFailure(time.Now(), 10)
		return failure
	})
	assert.ErrorIs(t, err, failure)

	got, err := repo.GetByEmail(ctx, email)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Lockout.FailedAttempts)

	err = repo.WithAccount(ctx, "missing@example.com", func(a *models.Account) error { return nil })
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestPostgresAccounts_ConcurrentFailuresAreNotLost(t *testing.T) {
	resetState(t)
	ctx := context.Background()
	repo := repositories.NewPostgresAccountRepository(testDB.DB)
	email, _ := TestUser("concurrent")

	_, err := repo.Create(ctx, &models.Account{Email: email, PasswordHash: "hash", Role: models.RoleUser, Active: true})
	require.NoError(t, err)

	const workers = 20
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = repo.WithAccount(ctx, email, func(a *models.Account) error {
				a.Lockout.RecordFailure(time.Now(), 1000)
				return nil
			})
		}()
	}
	wg.Wait()

	got, err := repo.GetByEmail(ctx, email)
	require.NoError(t, err)
	assert.Equal(t, workers, got.Lockout.FailedAttempts)
}
