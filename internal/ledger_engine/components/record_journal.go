package components

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/kaybank-ledger/internal/domain/ledger"
	"github.com/kaybank-ledger/internal/domain/outbox"
	"github.com/kaybank-ledger/internal/domain/shared"
	"github.com/kaybank-ledger/internal/domain/store"
	"github.com/kaybank-ledger/internal/ledger_engine/service"
)

type RecordJournalImpl struct {
	logger *slog.Logger
}

func NewRecordJournal(logger *slog.Logger) service.RecordJournal {
	return &RecordJournalImpl{
		logger: logger,
	}
}

// Journal appends each record to the transaction log and creates its outbox
// message in the same transaction. Records inherit the command id carried by ctx.
func (j *RecordJournalImpl) Journal(ctx context.Context, tx store.Tx, records ...*ledger.Record) error {
	logger := j.logger
	if id := shared.CorrelationIDFromContext(ctx); id != "" {
		logger = j.logger.With("correlation_id", id)
	}
	commandID := shared.CommandIDFromContext(ctx)

	for _, record := range records {
		if record.CommandID == uuid.Nil {
			record.CommandID = commandID
		}

		if err := tx.Records().Append(ctx, record); err != nil {
			logger.Error("Failed to append ledger record",
				"record_id", record.ID.String(),
				"account_id", record.AccountID.String(),
				"error", err,
			)
			return fmt.Errorf("failed to append record %s: %w", record.ID.String(), err)
		}

		// Built after Append so the payload carries the assigned sequence
		message, err := outbox.NewMessage(record)
		if err != nil {
			return fmt.Errorf("failed to create outbox message payload for record %s: %w", record.ID.String(), err)
		}
		if err := tx.Outbox().Create(ctx, message); err != nil {
			logger.Error("Failed to create outbox message",
				"record_id", record.ID.String(),
				"error", err,
			)
			return fmt.Errorf("failed to create outbox message for record %s: %w", record.ID.String(), err)
		}

		logger.Debug("Ledger record journaled",
			"record_id", record.ID.String(),
			"kind", string(record.Kind),
			"sequence", record.Sequence,
		)
	}
	return nil
}
