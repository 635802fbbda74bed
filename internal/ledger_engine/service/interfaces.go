package service

import (
	"context"

	"github.com/google/uuid"
	"github.com/kaybank-ledger/internal/domain/account"
	"github.com/kaybank-ledger/internal/domain/ledger"
	"github.com/kaybank-ledger/internal/domain/shared"
	"github.com/kaybank-ledger/internal/domain/store"
)

// LedgerEngine mutates balances and appends the records documenting each
// change as one atomic unit. Amounts are minor units.
type LedgerEngine interface {
	Deposit(ctx context.Context, accountID uuid.UUID, amount int64) (int64, error)
	Withdraw(ctx context.Context, accountID uuid.UUID, amount int64) (int64, error)
	Transfer(ctx context.Context, sourceID uuid.UUID, targetAccountNumber string, amount int64) (*TransferReceipt, error)
	BalanceOf(ctx context.Context, accountID uuid.UUID) (int64, error)
	HistoryOf(ctx context.Context, accountID uuid.UUID, limit int) ([]*ledger.Record, error)
	Reconcile(ctx context.Context, accountID uuid.UUID) (*Reconciliation, error)
}

// RecordJournal appends records and queues them for the audit archive.
// It is only called with the Tx that carries the matching balance change.
type RecordJournal interface {
	Journal(ctx context.Context, tx store.Tx, records ...*ledger.Record) error
}

// CommandGuard keeps a Kafka command from being applied twice. It runs inside
// the Tx that would apply the command, after the affected accounts are
// locked, and returns ledger.ErrCommandApplied for a redelivery.
type CommandGuard interface {
	CheckIdempotency(ctx context.Context, tx store.Tx) error
}

// AccountRegistrar opens new accounts
type AccountRegistrar interface {
	Register(ctx context.Context, req RegistrationRequest) (*account.Account, error)
}

// Authenticator resolves credentials to an account identity
type Authenticator interface {
	Login(ctx context.Context, username, password string) (*account.Identity, error)
}

// CommandProcessor executes ledger commands received from Kafka
type CommandProcessor interface {
	ProcessCommand(ctx context.Context, cmd *shared.LedgerCommand) error
}

// RegistrationRequest carries the fields of a new account. InitialDeposit is in minor units.
type RegistrationRequest struct {
	FullName       string
	Username       string
	Password       string
	InitialDeposit int64
}

// TransferReceipt describes a committed transfer
type TransferReceipt struct {
	TransferID          uuid.UUID `json:"transfer_id"`
	Amount              int64     `json:"amount"`
	SourceBalance       int64     `json:"source_balance"`
	TargetAccountNumber string    `json:"target_account_number"`
	TargetFullName      string    `json:"target_full_name"`
}

// Reconciliation compares a balance with the signed sum of its records
type Reconciliation struct {
	AccountID  uuid.UUID `json:"account_id"`
	Balance    int64     `json:"balance"`
	RecordSum  int64     `json:"record_sum"`
	Consistent bool      `json:"consistent"`
}
