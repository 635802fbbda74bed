package ledger

import (
	"time"

	"github.com/google/uuid"
	"github.com/kaybank-ledger/internal/domain/shared"
)

// Record is an immutable entry in an account's transaction history
type Record struct {
	ID           uuid.UUID              `json:"id" bson:"record_id"`
	AccountID    uuid.UUID              `json:"account_id" bson:"account_id"`
	Kind         shared.TransactionKind `json:"kind" bson:"kind"`
	Amount       int64                  `json:"amount" bson:"amount"` // Stored in minor units, always positive
	Counterparty string                 `json:"counterparty,omitempty" bson:"counterparty,omitempty"`
	TransferID   uuid.UUID              `json:"transfer_id,omitempty" bson:"transfer_id,omitempty"`
	CommandID    uuid.UUID              `json:"command_id,omitempty" bson:"command_id,omitempty"` // Set when a Kafka command produced the record
	Sequence     int64                  `json:"sequence" bson:"sequence"` // Assigned at append time
	CreatedAt    time.Time              `json:"created_at" bson:"created_at"`
}

// NewRecord builds a record for a single-account movement
func NewRecord(accountID uuid.UUID, kind shared.TransactionKind, amount int64) *Record {
	return &Record{
		ID:        uuid.New(),
		AccountID: accountID,
		Kind:      kind,
		Amount:    amount,
	}
}

// NewTransferPair builds the linked TransferOut/TransferIn records of one transfer.
// Each record's counterparty is the other account's number.
func NewTransferPair(sourceID uuid.UUID, sourceNumber string, targetID uuid.UUID, targetNumber string, amount int64) (out, in *Record) {
	transferID := uuid.New()
	out = &Record{
		ID:           uuid.New(),
		AccountID:    sourceID,
		Kind:         shared.TransactionKindTransferOut,
		Amount:       amount,
		Counterparty: targetNumber,
		TransferID:   transferID,
	}
	in = &Record{
		ID:           uuid.New(),
		AccountID:    targetID,
		Kind:         shared.TransactionKindTransferIn,
		Amount:       amount,
		Counterparty: sourceNumber,
		TransferID:   transferID,
	}
	return out, in
}

// SignedAmount returns the record's effect on the balance
func (r *Record) SignedAmount() int64 {
	if r.Kind.IsCredit() {
		return r.Amount
	}
	return -r.Amount
}
