package postgres

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/kaybank-ledger/internal/domain/account"
	"github.com/kaybank-ledger/internal/domain/ledger"
	"github.com/kaybank-ledger/internal/domain/shared"
	"github.com/kaybank-ledger/internal/domain/store"
	"github.com/kaybank-ledger/internal/platform/persistence"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockStore(t *testing.T) (*Store, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)

	db := persistence.NewPostgresDBFromPool(newTestLogger(), mock)
	return NewStore(newTestLogger(), db), mock
}

func TestStore_WithTransaction(t *testing.T) {
	ctx := context.Background()

	t.Run("deposit commits balance and record together", func(t *testing.T) {
		s, mock := newMockStore(t)
		acc := testAccount()

		mock.ExpectBegin()
		mock.ExpectQuery(regexp.QuoteMeta("FOR UPDATE")).WithArgs(acc.ID).WillReturnRows(accountRow(acc))
		mock.ExpectExec(regexp.QuoteMeta("UPDATE accounts")).
			WithArgs(acc.Balance+1500, acc.Version+1, pgxmock.AnyArg(), acc.ID, acc.Version).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))
		mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO transactions")).
			WithArgs(pgxmock.AnyArg(), acc.ID, shared.TransactionKindDeposit, int64(1500), nil, nil, nil).
			WillReturnRows(pgxmock.NewRows([]string{"seq", "created_at"}).AddRow(int64(1), time.Now().UTC()))
		mock.ExpectCommit()

		err := s.WithTransaction(ctx, func(ctx context.Context, tx store.Tx) error {
			locked, err := tx.Accounts().LockForUpdate(ctx, acc.ID)
			if err != nil {
				return err
			}
			if err := locked[0].Deposit(1500); err != nil {
				return err
			}
			if err := tx.Accounts().Update(ctx, locked[0]); err != nil {
				return err
			}
			return tx.Records().Append(ctx, ledger.NewRecord(acc.ID, shared.TransactionKindDeposit, 1500))
		})

		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("domain error rolls back unchanged", func(t *testing.T) {
		s, mock := newMockStore(t)
		acc := testAccount()

		mock.ExpectBegin()
		mock.ExpectQuery(regexp.QuoteMeta("FOR UPDATE")).WithArgs(acc.ID).WillReturnRows(accountRow(acc))
		mock.ExpectRollback()

		err := s.WithTransaction(ctx, func(ctx context.Context, tx store.Tx) error {
			locked, err := tx.Accounts().LockForUpdate(ctx, acc.ID)
			if err != nil {
				return err
			}
			return locked[0].Withdraw(acc.Balance + 1)
		})

		assert.ErrorIs(t, err, account.ErrInsufficientFunds)
		assert.False(t, shared.IsRetryable(err))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("deadlock becomes retryable storage error", func(t *testing.T) {
		s, mock := newMockStore(t)
		id := uuid.New()

		mock.ExpectBegin()
		mock.ExpectQuery(regexp.QuoteMeta("FOR UPDATE")).WithArgs(id).WillReturnError(&pgconn.PgError{Code: "40P01"})
		mock.ExpectRollback()

		err := s.WithTransaction(ctx, func(ctx context.Context, tx store.Tx) error {
			_, err := tx.Accounts().LockForUpdate(ctx, id)
			return err
		})

		assert.ErrorIs(t, err, shared.StorageError{})
		assert.True(t, shared.IsRetryable(err))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("commit failure surfaces", func(t *testing.T) {
		s, mock := newMockStore(t)
		commitErr := errors.New("connection lost")

		mock.ExpectBegin()
		mock.ExpectCommit().WillReturnError(commitErr)

		err := s.WithTransaction(ctx, func(ctx context.Context, tx store.Tx) error { return nil })

		assert.ErrorIs(t, err, commitErr)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestStore_WithSnapshot(t *testing.T) {
	ctx := context.Background()
	s, mock := newMockStore(t)
	acc := testAccount()

	mock.ExpectBeginTx(pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly})
	mock.ExpectQuery(regexp.QuoteMeta("FROM accounts WHERE id = $1")).WithArgs(acc.ID).WillReturnRows(accountRow(acc))
	mock.ExpectQuery(regexp.QuoteMeta("SUM(CASE WHEN kind IN ('Deposit', 'TransferIn')")).
		WithArgs(acc.ID).
		WillReturnRows(pgxmock.NewRows([]string{"sum"}).AddRow(acc.Balance))
	mock.ExpectCommit()

	var balance, sum int64
	err := s.WithSnapshot(ctx, func(ctx context.Context, tx store.Tx) error {
		read, err := tx.Accounts().GetByID(ctx, acc.ID)
		if err != nil {
			return err
		}
		balance = read.Balance
		sum, err = tx.Records().SumByAccount(ctx, acc.ID)
		return err
	})

	require.NoError(t, err)
	assert.Equal(t, acc.Balance, balance)
	assert.Equal(t, balance, sum)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClassifyTxError(t *testing.T) {
	assert.NoError(t, classifyTxError(nil))

	plain := errors.New("boom")
	assert.Equal(t, plain, classifyTxError(plain))

	existing := shared.StorageError{Op: "append", Err: plain}
	assert.Equal(t, existing, classifyTxError(existing))

	timeout := classifyTxError(context.DeadlineExceeded)
	assert.True(t, shared.IsRetryable(timeout))
}
