package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/kaybank-ledger/internal/domain/ledger"
	"github.com/kaybank-ledger/internal/platform/persistence"
)

// commandKindConstraint rejects a second record of the same kind for one command
const commandKindConstraint = "transactions_command_kind_key"

// RecordRepository implements ledger.Repository over the transactions table
type RecordRepository struct {
	querier persistence.Querier
	logger  *slog.Logger
}

// NewRecordRepository creates a repository bound to the connection pool
func NewRecordRepository(logger *slog.Logger, db *persistence.PostgresDB) *RecordRepository {
	return &RecordRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

// WithTx returns a repository that runs every statement inside tx
func (r *RecordRepository) WithTx(tx pgx.Tx) *RecordRepository {
	return &RecordRepository{
		querier: tx,
		logger:  r.logger,
	}
}

// Append inserts the record; the database assigns its sequence and timestamp
func (r *RecordRepository) Append(ctx context.Context, record *ledger.Record) error {
	query := `
		INSERT INTO transactions (id, account_id, kind, amount, counterparty, transfer_id, command_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING seq, created_at
	`

	err := r.querier.QueryRow(ctx, query,
		record.ID,
		record.AccountID,
		record.Kind,
		record.Amount,
		nullableString(record.Counterparty),
		nullableUUID(record.TransferID),
		nullableUUID(record.CommandID),
	).Scan(&record.Sequence, &record.CreatedAt)
	if err != nil {
		if constraint, ok := persistence.UniqueViolation(err); ok {
			if constraint == commandKindConstraint {
				return ledger.ErrCommandApplied{CommandID: record.CommandID}
			}
			return ledger.ErrDuplicateRecord{RecordID: record.ID}
		}
		r.logger.Error("Failed to append ledger record",
			"record_id", record.ID.String(),
			"account_id", record.AccountID.String(),
			"error", err,
		)
		return fmt.Errorf("failed to append ledger record: %w", err)
	}

	return nil
}

// ListByAccount returns at most limit records for the account, newest first
func (r *RecordRepository) ListByAccount(ctx context.Context, accountID uuid.UUID, limit int) ([]*ledger.Record, error) {
	query := `
		SELECT id, account_id, kind, amount, COALESCE(counterparty, ''),
			COALESCE(transfer_id, '00000000-0000-0000-0000-000000000000'::uuid), seq, created_at
		FROM transactions
		WHERE account_id = $1
		ORDER BY seq DESC
		LIMIT $2
	`

	rows, err := r.querier.Query(ctx, query, accountID, limit)
	if err != nil {
		r.logger.Error("Failed to list ledger records", "account_id", accountID.String(), "error", err)
		return nil, fmt.Errorf("failed to list ledger records: %w", err)
	}
	defer rows.Close()

	records := make([]*ledger.Record, 0, limit)
	for rows.Next() {
		var record ledger.Record
		if err := rows.Scan(
			&record.ID,
			&record.AccountID,
			&record.Kind,
			&record.Amount,
			&record.Counterparty,
			&record.TransferID,
			&record.Sequence,
			&record.CreatedAt,
		); err != nil {
			r.logger.Error("Failed to scan ledger record", "error", err)
			return nil, fmt.Errorf("failed to scan ledger record: %w", err)
		}
		records = append(records, &record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating over ledger records: %w", err)
	}

	return records, nil
}

// SumByAccount returns the signed sum of the account's records
func (r *RecordRepository) SumByAccount(ctx context.Context, accountID uuid.UUID) (int64, error) {
	query := `
		SELECT COALESCE(SUM(CASE WHEN kind IN ('Deposit', 'TransferIn') THEN amount ELSE -amount END), 0)::BIGINT
		FROM transactions
		WHERE account_id = $1
	`

	var sum int64
	if err := r.querier.QueryRow(ctx, query, accountID).Scan(&sum); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		r.logger.Error("Failed to sum ledger records", "account_id", accountID.String(), "error", err)
		return 0, fmt.Errorf("failed to sum ledger records: %w", err)
	}

	return sum, nil
}

// HasCommand reports whether the command already produced a record
func (r *RecordRepository) HasCommand(ctx context.Context, commandID uuid.UUID) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM transactions WHERE command_id = $1)`

	var exists bool
	if err := r.querier.QueryRow(ctx, query, commandID).Scan(&exists); err != nil {
		r.logger.Error("Failed to look up ledger command", "command_id", commandID.String(), "error", err)
		return false, fmt.Errorf("failed to look up ledger command: %w", err)
	}

	return exists, nil
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullableUUID(id uuid.UUID) any {
	if id == uuid.Nil {
		return nil
	}
	return id
}
