package components

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/kaybank-ledger/internal/domain/ledger"
	"github.com/kaybank-ledger/internal/domain/shared"
	"github.com/kaybank-ledger/internal/domain/store"
	"github.com/kaybank-ledger/internal/ledger_engine/service"
)

type CommandGuardImpl struct {
	logger *slog.Logger
}

func NewCommandGuard(logger *slog.Logger) service.CommandGuard {
	return &CommandGuardImpl{
		logger: logger,
	}
}

// CheckIdempotency looks the command id up in the transaction log. It must
// run after the command's accounts are locked so a concurrent redelivery
// sees the first delivery's records.
func (g *CommandGuardImpl) CheckIdempotency(ctx context.Context, tx store.Tx) error {
	commandID := shared.CommandIDFromContext(ctx)
	if commandID == uuid.Nil {
		return nil
	}

	logger := g.logger
	if id := shared.CorrelationIDFromContext(ctx); id != "" {
		logger = g.logger.With("correlation_id", id)
	}

	applied, err := tx.Records().HasCommand(ctx, commandID)
	if err != nil {
		logger.Error("Failed to check ledger for idempotency", "command_id", commandID.String(), "error", err)
		return fmt.Errorf("idempotency check failed for command %s: %w", commandID.String(), err)
	}

	if applied {
		logger.Info("Ledger command already processed (idempotency)", "command_id", commandID.String())
		return ledger.ErrCommandApplied{CommandID: commandID}
	}
	return nil
}
