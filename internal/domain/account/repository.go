package account

import (
	"context"

	"github.com/google/uuid"
)

// Repository defines account persistence operations
type Repository interface {
	// Create inserts a new account. Returns ErrConflict when the username or
	// account number is already taken.
	Create(ctx context.Context, account *Account) error
	GetByID(ctx context.Context, id uuid.UUID) (*Account, error)
	GetByUsername(ctx context.Context, username string) (*Account, error)
	GetByAccountNumber(ctx context.Context, accountNumber string) (*Account, error)
	GetBalance(ctx context.Context, id uuid.UUID) (int64, error)

	// LockForUpdate acquires exclusive access to every listed account in
	// ascending id order and returns them in that order. Duplicates are ignored.
	LockForUpdate(ctx context.Context, ids ...uuid.UUID) ([]*Account, error)

	// Update persists balance changes using optimistic locking on Version
	Update(ctx context.Context, account *Account) error
}

// ErrConcurrentModification indicates optimistic lock failure
type ErrConcurrentModification struct {
	AccountID uuid.UUID
}

func (e ErrConcurrentModification) Error() string {
	return "concurrent modification detected for account: " + e.AccountID.String()
}

// Is implements the errors.Is interface for ErrConcurrentModification
func (e ErrConcurrentModification) Is(target error) bool {
	t, ok := target.(ErrConcurrentModification)
	if !ok {
		return false
	}
	return t.AccountID == uuid.Nil || e.AccountID == t.AccountID
}

// ErrAccountNotFound indicates a missing account. Exactly one lookup key is set.
type ErrAccountNotFound struct {
	AccountID     uuid.UUID
	AccountNumber string
	Username      string
}

func (e ErrAccountNotFound) Error() string {
	switch {
	case e.AccountNumber != "":
		return "account not found: number " + e.AccountNumber
	case e.Username != "":
		return "account not found: username " + e.Username
	default:
		return "account not found: " + e.AccountID.String()
	}
}

// Is implements the errors.Is interface for ErrAccountNotFound
func (e ErrAccountNotFound) Is(target error) bool {
	t, ok := target.(ErrAccountNotFound)
	if !ok {
		return false
	}
	// A zero-valued target matches any ErrAccountNotFound
	if t == (ErrAccountNotFound{}) {
		return true
	}
	return e == t
}

// Unique fields guarded by ErrConflict
const (
	FieldUsername      = "username"
	FieldAccountNumber = "account_number"
)

// ErrConflict indicates a uniqueness violation on Field
type ErrConflict struct {
	Field string
	Value string
}

func (e ErrConflict) Error() string {
	return "account with " + e.Field + " already exists: " + e.Value
}

// Is implements the errors.Is interface for ErrConflict
func (e ErrConflict) Is(target error) bool {
	t, ok := target.(ErrConflict)
	if !ok {
		return false
	}
	// An empty target field matches any conflict
	if t.Field == "" {
		return true
	}
	return e.Field == t.Field
}
