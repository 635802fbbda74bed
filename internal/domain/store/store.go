// Package store defines the transactional boundary of the ledger. Every
// balance change and the records documenting it are written through one Tx.
package store

import (
	"context"

	"github.com/kaybank-ledger/internal/domain/account"
	"github.com/kaybank-ledger/internal/domain/ledger"
	"github.com/kaybank-ledger/internal/domain/outbox"
)

// Tx exposes repositories bound to a single unit of work
type Tx interface {
	Accounts() account.Repository
	Records() ledger.Repository
	Outbox() outbox.Repository
}

// TxFunc runs inside a transaction. Returning an error rolls it back.
type TxFunc func(ctx context.Context, tx Tx) error

// Store is the account store. Accounts and Records read committed state;
// WithTransaction commits when fn returns nil and rolls back on an error or panic.
// WithSnapshot runs fn against one consistent read-only view of committed
// state without locking any account.
type Store interface {
	Accounts() account.Repository
	Records() ledger.Repository
	WithTransaction(ctx context.Context, fn TxFunc) error
	WithSnapshot(ctx context.Context, fn TxFunc) error
}
