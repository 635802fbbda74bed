package postgres

import (
	"context"
	"errors"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/kaybank-ledger/internal/domain/account"
	"github.com/kaybank-ledger/internal/domain/ledger"
	"github.com/kaybank-ledger/internal/domain/outbox"
	"github.com/kaybank-ledger/internal/domain/shared"
	"github.com/kaybank-ledger/internal/domain/store"
	"github.com/kaybank-ledger/internal/platform/persistence"
)

// Store implements store.Store on PostgreSQL. Each WithTransaction call runs
// in its own database transaction; row locks taken inside it are released at
// commit or rollback.
type Store struct {
	db       *persistence.PostgresDB
	accounts *AccountRepository
	records  *RecordRepository
	outbox   *OutboxRepository
	logger   *slog.Logger
}

var _ store.Store = (*Store)(nil)

func NewStore(logger *slog.Logger, db *persistence.PostgresDB) *Store {
	return &Store{
		db:       db,
		accounts: NewAccountRepository(logger, db),
		records:  NewRecordRepository(logger, db),
		outbox:   NewOutboxRepository(logger, db),
		logger:   logger,
	}
}

func (s *Store) Accounts() account.Repository { return s.accounts }

func (s *Store) Records() ledger.Repository { return s.records }

// Outbox is used by the poller outside of ledger transactions
func (s *Store) Outbox() outbox.Repository { return s.outbox }

// WithTransaction runs fn in a database transaction. Contention failures and
// storage timeouts come back as retryable shared.StorageError values.
func (s *Store) WithTransaction(ctx context.Context, fn store.TxFunc) error {
	err := s.db.ExecuteTx(ctx, func(tx pgx.Tx) error {
		return fn(ctx, &pgTx{
			accounts: s.accounts.WithTx(tx),
			records:  s.records.WithTx(tx),
			outbox:   s.outbox.WithTx(tx),
		})
	})
	return classifyTxError(err)
}

// WithSnapshot runs fn in a read-only REPEATABLE READ transaction
func (s *Store) WithSnapshot(ctx context.Context, fn store.TxFunc) error {
	err := s.db.ExecuteSnapshotTx(ctx, func(tx pgx.Tx) error {
		return fn(ctx, &pgTx{
			accounts: s.accounts.WithTx(tx),
			records:  s.records.WithTx(tx),
			outbox:   s.outbox.WithTx(tx),
		})
	})
	return classifyTxError(err)
}

func classifyTxError(err error) error {
	if err == nil {
		return nil
	}
	var se shared.StorageError
	if errors.As(err, &se) {
		return err
	}
	if persistence.IsTransient(err) || errors.Is(err, context.DeadlineExceeded) {
		return shared.StorageError{Op: "transaction", Err: err, Retryable: true}
	}
	return err
}

type pgTx struct {
	accounts *AccountRepository
	records  *RecordRepository
	outbox   *OutboxRepository
}

func (t *pgTx) Accounts() account.Repository { return t.accounts }
func (t *pgTx) Records() ledger.Repository   { return t.records }
func (t *pgTx) Outbox() outbox.Repository    { return t.outbox }
