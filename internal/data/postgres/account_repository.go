// Package postgres provides PostgreSQL implementations of the ledger store.
// Repositories run against either the pool or a pgx.Tx, so the engine can
// compose balance updates and record appends into one transaction.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/kaybank-ledger/internal/domain/account"
	"github.com/kaybank-ledger/internal/platform/persistence"
)

// Unique constraints declared on the accounts table
const (
	constraintUsername      = "accounts_username_key"
	constraintAccountNumber = "accounts_account_number_key"
)

const accountColumns = `id, full_name, username, password_hash, account_number, balance, version, created_at, updated_at`

// AccountRepository implements the account.Repository interface for PostgreSQL
type AccountRepository struct {
	querier persistence.Querier // Can be the pool or a pgx.Tx
	logger  *slog.Logger
}

// NewAccountRepository creates a repository bound to the connection pool
func NewAccountRepository(logger *slog.Logger, db *persistence.PostgresDB) *AccountRepository {
	return &AccountRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

// WithTx returns a repository that runs every statement inside tx
func (r *AccountRepository) WithTx(tx pgx.Tx) *AccountRepository {
	return &AccountRepository{
		querier: tx,
		logger:  r.logger,
	}
}

// Create stores a new account. Unique violations on username or account
// number are reported as account.ErrConflict.
func (r *AccountRepository) Create(ctx context.Context, acc *account.Account) error {
	query := `
		INSERT INTO accounts (` + accountColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := r.querier.Exec(ctx, query,
		acc.ID,
		acc.FullName,
		acc.Username,
		acc.PasswordHash,
		acc.AccountNumber,
		acc.Balance,
		acc.Version,
		acc.CreatedAt,
		acc.UpdatedAt,
	)
	if err != nil {
		if constraint, ok := persistence.UniqueViolation(err); ok {
			switch constraint {
			case constraintUsername:
				return account.ErrConflict{Field: account.FieldUsername, Value: acc.Username}
			case constraintAccountNumber:
				return account.ErrConflict{Field: account.FieldAccountNumber, Value: acc.AccountNumber}
			}
		}
		r.logger.Error("Failed to create account", "id", acc.ID.String(), "error", err)
		return fmt.Errorf("failed to create account: %w", err)
	}

	return nil
}

// GetByID retrieves an account by its ID
func (r *AccountRepository) GetByID(ctx context.Context, id uuid.UUID) (*account.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1`

	acc, err := scanAccount(r.querier.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, account.ErrAccountNotFound{AccountID: id}
		}
		r.logger.Error("Failed to get account", "id", id.String(), "error", err)
		return nil, fmt.Errorf("failed to get account: %w", err)
	}

	return acc, nil
}

// GetByUsername retrieves an account by its unique username
func (r *AccountRepository) GetByUsername(ctx context.Context, username string) (*account.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE username = $1`

	acc, err := scanAccount(r.querier.QueryRow(ctx, query, username))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, account.ErrAccountNotFound{Username: username}
		}
		r.logger.Error("Failed to get account by username", "error", err)
		return nil, fmt.Errorf("failed to get account by username: %w", err)
	}

	return acc, nil
}

// GetByAccountNumber retrieves an account by its unique account number
func (r *AccountRepository) GetByAccountNumber(ctx context.Context, accountNumber string) (*account.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE account_number = $1`

	acc, err := scanAccount(r.querier.QueryRow(ctx, query, accountNumber))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, account.ErrAccountNotFound{AccountNumber: accountNumber}
		}
		r.logger.Error("Failed to get account by number", "account_number", accountNumber, "error", err)
		return nil, fmt.Errorf("failed to get account by number: %w", err)
	}

	return acc, nil
}

// GetBalance reads the committed balance of an account
func (r *AccountRepository) GetBalance(ctx context.Context, id uuid.UUID) (int64, error) {
	query := `SELECT balance FROM accounts WHERE id = $1`

	var balance int64
	if err := r.querier.QueryRow(ctx, query, id).Scan(&balance); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, account.ErrAccountNotFound{AccountID: id}
		}
		r.logger.Error("Failed to get account balance", "id", id.String(), "error", err)
		return 0, fmt.Errorf("failed to get account balance: %w", err)
	}

	return balance, nil
}

// LockForUpdate takes row locks on every listed account in ascending id order.
// Locks are held until the surrounding transaction ends, so it must run on a Tx.
func (r *AccountRepository) LockForUpdate(ctx context.Context, ids ...uuid.UUID) ([]*account.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1 FOR UPDATE`

	ordered := account.LockOrder(ids...)
	locked := make([]*account.Account, 0, len(ordered))
	for _, id := range ordered {
		acc, err := scanAccount(r.querier.QueryRow(ctx, query, id))
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, account.ErrAccountNotFound{AccountID: id}
			}
			r.logger.Error("Failed to lock account for update", "id", id.String(), "error", err)
			return nil, fmt.Errorf("failed to lock account for update: %w", err)
		}
		locked = append(locked, acc)
	}

	return locked, nil
}

// Update persists the balance with an optimistic version check: acc.Version
// must already be incremented by the domain method that changed it.
func (r *AccountRepository) Update(ctx context.Context, acc *account.Account) error {
	query := `
		UPDATE accounts
		SET balance = $1, version = $2, updated_at = $3
		WHERE id = $4 AND version = $5
	`

	result, err := r.querier.Exec(ctx, query,
		acc.Balance,
		acc.Version,
		acc.UpdatedAt,
		acc.ID,
		acc.Version-1,
	)
	if err != nil {
		if persistence.IsCheckViolation(err) {
			return account.ErrInsufficientFunds
		}
		r.logger.Error("Failed to update account", "id", acc.ID.String(), "error", err)
		return fmt.Errorf("failed to update account: %w", err)
	}

	if result.RowsAffected() == 0 {
		return account.ErrConcurrentModification{AccountID: acc.ID}
	}

	return nil
}

func scanAccount(row pgx.Row) (*account.Account, error) {
	var acc account.Account
	err := row.Scan(
		&acc.ID,
		&acc.FullName,
		&acc.Username,
		&acc.PasswordHash,
		&acc.AccountNumber,
		&acc.Balance,
		&acc.Version,
		&acc.CreatedAt,
		&acc.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &acc, nil
}
