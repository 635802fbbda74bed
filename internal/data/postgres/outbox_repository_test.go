package postgres

import (
	"context"
	"encoding/json"
	"regexp"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/kaybank-ledger/internal/domain/outbox"
	"github.com/kaybank-ledger/internal/domain/shared"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOutboxRepository_Create(t *testing.T) {
	ctx := context.Background()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := &OutboxRepository{querier: mock, logger: newTestLogger()}
	msg := &outbox.Message{
		RecordID:  uuid.New(),
		AccountID: uuid.New(),
		Payload:   json.RawMessage(`{"kind":"Deposit"}`),
		Status:    shared.OutboxStatusPending,
		CreatedAt: time.Now().UTC(),
	}

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO transaction_outbox (record_id, account_id, payload, status, attempts, created_at)")).
		WithArgs(msg.RecordID, msg.AccountID, msg.Payload, msg.Status, msg.Attempts, msg.CreatedAt).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(12)))

	require.NoError(t, repo.Create(ctx, msg))
	assert.Equal(t, int64(12), msg.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOutboxRepository_GetPending(t *testing.T) {
	ctx := context.Background()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := &OutboxRepository{querier: mock, logger: newTestLogger()}
	now := time.Now().UTC()
	recordID := uuid.New()

	rows := pgxmock.NewRows([]string{"id", "record_id", "account_id", "payload", "status", "attempts", "created_at", "last_attempt_at"}).
		AddRow(int64(1), recordID, uuid.New(), json.RawMessage(`{}`), shared.OutboxStatusPending, 0, now, (*time.Time)(nil))
	mock.ExpectQuery(regexp.QuoteMeta("FROM transaction_outbox")).
		WithArgs(shared.OutboxStatusPending, 100).
		WillReturnRows(rows)

	messages, err := repo.GetPending(ctx, 100)
	require.NoError(t, err)
	require.Len(t, messages, 1)
	assert.Equal(t, recordID, messages[0].RecordID)
	assert.Nil(t, messages[0].LastAttemptAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOutboxRepository_StatusUpdates(t *testing.T) {
	ctx := context.Background()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := &OutboxRepository{querier: mock, logger: newTestLogger()}

	t.Run("UpdateStatus", func(t *testing.T) {
		mock.ExpectExec(regexp.QuoteMeta("SET status = $1, last_attempt_at = $2")).
			WithArgs(shared.OutboxStatusProcessed, pgxmock.AnyArg(), int64(5)).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))

		assert.NoError(t, repo.UpdateStatus(ctx, 5, shared.OutboxStatusProcessed))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("UpdateStatus missing", func(t *testing.T) {
		mock.ExpectExec(regexp.QuoteMeta("SET status = $1, last_attempt_at = $2")).
			WithArgs(shared.OutboxStatusProcessed, pgxmock.AnyArg(), int64(6)).
			WillReturnResult(pgxmock.NewResult("UPDATE", 0))

		err := repo.UpdateStatus(ctx, 6, shared.OutboxStatusProcessed)
		assert.Equal(t, outbox.ErrMessageNotFound{ID: 6}, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("IncrementAttempts", func(t *testing.T) {
		mock.ExpectExec(regexp.QuoteMeta("SET attempts = attempts + 1")).
			WithArgs(pgxmock.AnyArg(), int64(5)).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))

		assert.NoError(t, repo.IncrementAttempts(ctx, 5))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
