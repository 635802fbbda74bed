package postgres

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/kaybank-ledger/internal/domain/ledger"
	"github.com/kaybank-ledger/internal/domain/shared"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordRepository_Append(t *testing.T) {
	ctx := context.Background()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := &RecordRepository{querier: mock, logger: newTestLogger()}
	query := regexp.QuoteMeta("INSERT INTO transactions (id, account_id, kind, amount, counterparty, transfer_id, command_id)")
	createdAt := time.Now().UTC()

	t.Run("deposit stores nulls for transfer fields", func(t *testing.T) {
		record := ledger.NewRecord(uuid.New(), shared.TransactionKindDeposit, 1500)
		mock.ExpectQuery(query).
			WithArgs(record.ID, record.AccountID, record.Kind, record.Amount, nil, nil, nil).
			WillReturnRows(pgxmock.NewRows([]string{"seq", "created_at"}).AddRow(int64(7), createdAt))

		require.NoError(t, repo.Append(ctx, record))
		assert.Equal(t, int64(7), record.Sequence)
		assert.Equal(t, createdAt, record.CreatedAt)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("transfer carries counterparty and transfer id", func(t *testing.T) {
		out, _ := ledger.NewTransferPair(uuid.New(), "11111111", uuid.New(), "22222222", 2000)
		mock.ExpectQuery(query).
			WithArgs(out.ID, out.AccountID, out.Kind, out.Amount, "22222222", out.TransferID, nil).
			WillReturnRows(pgxmock.NewRows([]string{"seq", "created_at"}).AddRow(int64(8), createdAt))

		require.NoError(t, repo.Append(ctx, out))
		assert.Equal(t, int64(8), out.Sequence)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("duplicate id", func(t *testing.T) {
		record := ledger.NewRecord(uuid.New(), shared.TransactionKindWithdrawal, 100)
		mock.ExpectQuery(query).
			WithArgs(record.ID, record.AccountID, record.Kind, record.Amount, nil, nil, nil).
			WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "transactions_pkey"})

		err := repo.Append(ctx, record)
		assert.ErrorIs(t, err, ledger.ErrDuplicateRecord{RecordID: record.ID})
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("command stamps its id", func(t *testing.T) {
		record := ledger.NewRecord(uuid.New(), shared.TransactionKindDeposit, 1500)
		record.CommandID = uuid.New()
		mock.ExpectQuery(query).
			WithArgs(record.ID, record.AccountID, record.Kind, record.Amount, nil, nil, record.CommandID).
			WillReturnRows(pgxmock.NewRows([]string{"seq", "created_at"}).AddRow(int64(9), createdAt))

		require.NoError(t, repo.Append(ctx, record))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("command already applied", func(t *testing.T) {
		record := ledger.NewRecord(uuid.New(), shared.TransactionKindDeposit, 1500)
		record.CommandID = uuid.New()
		mock.ExpectQuery(query).
			WithArgs(record.ID, record.AccountID, record.Kind, record.Amount, nil, nil, record.CommandID).
			WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "transactions_command_kind_key"})

		err := repo.Append(ctx, record)
		assert.ErrorIs(t, err, ledger.ErrCommandApplied{CommandID: record.CommandID})
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestRecordRepository_HasCommand(t *testing.T) {
	ctx := context.Background()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := &RecordRepository{querier: mock, logger: newTestLogger()}
	commandID := uuid.New()
	query := regexp.QuoteMeta("SELECT EXISTS (SELECT 1 FROM transactions WHERE command_id = $1)")

	t.Run("applied", func(t *testing.T) {
		mock.ExpectQuery(query).WithArgs(commandID).WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))

		applied, err := repo.HasCommand(ctx, commandID)
		require.NoError(t, err)
		assert.True(t, applied)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("query failure", func(t *testing.T) {
		dbErr := errors.New("db down")
		mock.ExpectQuery(query).WithArgs(commandID).WillReturnError(dbErr)

		applied, err := repo.HasCommand(ctx, commandID)
		assert.False(t, applied)
		assert.ErrorIs(t, err, dbErr)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestRecordRepository_ListByAccount(t *testing.T) {
	ctx := context.Background()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := &RecordRepository{querier: mock, logger: newTestLogger()}
	accountID := uuid.New()
	transferID := uuid.New()
	now := time.Now().UTC()
	query := regexp.QuoteMeta("ORDER BY seq DESC")

	t.Run("newest first", func(t *testing.T) {
		rows := pgxmock.NewRows([]string{"id", "account_id", "kind", "amount", "counterparty", "transfer_id", "seq", "created_at"}).
			AddRow(uuid.New(), accountID, shared.TransactionKindTransferOut, int64(2000), "22222222", transferID, int64(3), now).
			AddRow(uuid.New(), accountID, shared.TransactionKindDeposit, int64(1500), "", uuid.Nil, int64(2), now.Add(-time.Minute))
		mock.ExpectQuery(query).WithArgs(accountID, 50).WillReturnRows(rows)

		records, err := repo.ListByAccount(ctx, accountID, 50)
		require.NoError(t, err)
		require.Len(t, records, 2)
		assert.Equal(t, int64(3), records[0].Sequence)
		assert.Equal(t, "22222222", records[0].Counterparty)
		assert.Equal(t, transferID, records[0].TransferID)
		assert.Equal(t, shared.TransactionKindDeposit, records[1].Kind)
		assert.Equal(t, uuid.Nil, records[1].TransferID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("query failure", func(t *testing.T) {
		dbErr := errors.New("db down")
		mock.ExpectQuery(query).WithArgs(accountID, 10).WillReturnError(dbErr)

		records, err := repo.ListByAccount(ctx, accountID, 10)
		assert.Nil(t, records)
		assert.ErrorIs(t, err, dbErr)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestRecordRepository_SumByAccount(t *testing.T) {
	ctx := context.Background()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := &RecordRepository{querier: mock, logger: newTestLogger()}
	accountID := uuid.New()

	mock.ExpectQuery(regexp.QuoteMeta("SUM(CASE WHEN kind IN ('Deposit', 'TransferIn') THEN amount ELSE -amount END)")).
		WithArgs(accountID).
		WillReturnRows(pgxmock.NewRows([]string{"sum"}).AddRow(int64(4500)))

	sum, err := repo.SumByAccount(ctx, accountID)
	require.NoError(t, err)
	assert.Equal(t, int64(4500), sum)
	assert.NoError(t, mock.ExpectationsWereMet())
}
