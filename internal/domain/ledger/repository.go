package ledger

import (
	"context"

	"github.com/google/uuid"
)

// Repository is the append-only transaction log
type Repository interface {
	// Append stores the record and assigns its Sequence and CreatedAt.
	// It must only be called inside the transaction that changes the balance.
	Append(ctx context.Context, record *Record) error

	// ListByAccount returns at most limit records, newest first
	ListByAccount(ctx context.Context, accountID uuid.UUID, limit int) ([]*Record, error)

	// SumByAccount returns the signed sum of the account's records
	SumByAccount(ctx context.Context, accountID uuid.UUID) (int64, error)

	// HasCommand reports whether any record was produced by the command
	HasCommand(ctx context.Context, commandID uuid.UUID) (bool, error)
}

// ErrDuplicateRecord indicates a record id was appended twice
type ErrDuplicateRecord struct {
	RecordID uuid.UUID
}

func (e ErrDuplicateRecord) Error() string {
	return "duplicate ledger record: " + e.RecordID.String()
}

// Is implements the errors.Is interface for ErrDuplicateRecord
func (e ErrDuplicateRecord) Is(target error) bool {
	t, ok := target.(ErrDuplicateRecord)
	if !ok {
		return false
	}
	// If the target RecordID is empty, consider it a match for any ErrDuplicateRecord
	if t.RecordID == uuid.Nil {
		return true
	}
	return e.RecordID == t.RecordID
}

// ErrCommandApplied indicates the command already produced its records
type ErrCommandApplied struct {
	CommandID uuid.UUID
}

func (e ErrCommandApplied) Error() string {
	return "ledger command already applied: " + e.CommandID.String()
}

// Is implements the errors.Is interface for ErrCommandApplied
func (e ErrCommandApplied) Is(target error) bool {
	t, ok := target.(ErrCommandApplied)
	if !ok {
		return false
	}
	if t.CommandID == uuid.Nil {
		return true
	}
	return e.CommandID == t.CommandID
}
