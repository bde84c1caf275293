package repositories

import (
	"context"
	"fmt"

	"github.com/BradenHooton/restgate/internal/database"
	"github.com/BradenHooton/restgate/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresAccountRepository stores accounts in the accounts table.
// Lockout updates are serialized with SELECT ... FOR UPDATE.
type PostgresAccountRepository struct {
	db   *database.DB
	pool *pgxpool.Pool
}

func NewPostgresAccountRepository(db *database.DB) *PostgresAccountRepository {
	return &PostgresAccountRepository{db: db, pool: db.Pool}
}

const accountColumns = `id, email, password_hash, role, active, failed_attempts, last_lock_time, created_at, updated_at`

// rowScanner interface for scanning account rows (supports both single row and multiple rows)
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanAccountRow(scanner rowScanner) (*models.Account, error) {
	var account models.Account
	var role string

	err := scanner.Scan(
		&account.ID, &account.Email, &account.PasswordHash, &role, &account.Active,
		&account.Lockout.FailedAttempts, &account.Lockout.LastLockTime,
		&account.CreatedAt, &account.UpdatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	account.Role = models.Role(role)

	return &account, nil
}

func scanAccountRows(rows pgx.Rows) ([]*models.Account, error) {
	defer rows.Close()

	accounts := make([]*models.Account, 0)
	for rows.Next() {
		account, err := scanAccountRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		accounts = append(accounts, account)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return accounts, nil
}

func (r *PostgresAccountRepository) GetByEmail(ctx context.Context, email string) (*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE email = $1`
	return scanAccountRow(r.pool.QueryRow(ctx, query, email))
}

func (r *PostgresAccountRepository) List(ctx context.Context) ([]*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts ORDER BY email`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query accounts: %w", err)
	}

	return scanAccountRows(rows)
}

func (r *PostgresAccountRepository) Create(ctx context.Context, account *models.Account) (*models.Account, error) {
	query := `
		INSERT INTO accounts (id, email, password_hash, role, active, failed_attempts, last_lock_time)
		VALUES ($1, $2, $3, $4, $5, 0, 'epoch')
		RETURNING ` + accountColumns

	return scanAccountRow(r.pool.QueryRow(ctx, query,
		uuid.New().String(), account.Email, account.PasswordHash, string(account.Role), account.Active,
	))
}

// Update writes the role and active flag of an existing account
func (r *PostgresAccountRepository) Update(ctx context.Context, account *models.Account) (*models.Account, error) {
	query := `
		UPDATE accounts SET role = $2, active = $3, updated_at = NOW()
		WHERE email = $1
		RETURNING ` + accountColumns

	return scanAccountRow(r.pool.QueryRow(ctx, query, account.Email, string(account.Role), account.Active))
}

// WithAccount runs fn with the account row locked for the rest of the
// transaction. The lockout state fn leaves behind is stored even when fn
// fails.
func (r *PostgresAccountRepository) WithAccount(ctx context.Context, email string, fn func(*models.Account) error) error {
	var fnErr error

	err := r.db.WithTransaction(ctx, func(tx pgx.Tx) error {
		query := `SELECT ` + accountColumns + ` FROM accounts WHERE email = $1 FOR UPDATE`
		account, err := scanAccountRow(tx.QueryRow(ctx, query, email))
		if err != nil {
			return err
		}

		fnErr = fn(account)

		_, err = tx.Exec(ctx,
			`UPDATE accounts SET failed_attempts = $2, last_lock_time = $3, updated_at = NOW() WHERE id = $1`,
			account.ID, account.Lockout.FailedAttempts, account.Lockout.LastLockTime,
		)
		return database.MapPostgresError(err)
	})
	if err != nil {
		return err
	}

	return fnErr
}
