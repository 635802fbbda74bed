package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/kaybank-ledger/internal/domain/shared"
	"github.com/kaybank-ledger/internal/ledger_engine/service"
	"github.com/kaybank-ledger/internal/platform/messaging/producers"
)

// CommandHandler decodes ledger commands from Kafka and hands them to the processor
type CommandHandler struct {
	processor service.CommandProcessor
	dlq       producers.DeadLetterPublisher
	logger    *slog.Logger
}

// NewCommandHandler creates a new handler. dlq may be nil when dead lettering is disabled.
func NewCommandHandler(
	logger *slog.Logger,
	processor service.CommandProcessor,
	dlq producers.DeadLetterPublisher,
) *CommandHandler {
	return &CommandHandler{
		processor: processor,
		dlq:       dlq,
		logger:    logger,
	}
}

// HandleMessage returns nil when the offset may be committed. Retryable
// failures are returned so the consumer runs the same message again; other
// failures are moved to the DLQ when one is configured.
func (h *CommandHandler) HandleMessage(ctx context.Context, key []byte, value []byte) error {
	var cmd shared.LedgerCommand
	if err := json.Unmarshal(value, &cmd); err != nil {
		h.logger.Error("Failed to unmarshal ledger command", "error", err, "message_key", string(key))

		if h.dlq != nil {
			reason := "undecodable ledger command: " + err.Error()
			dlqErr := h.dlq.PublishToDLQ(ctx, string(key), value, reason)
			if dlqErr == nil {
				return nil
			}
			h.logger.Error("Failed to publish message to DLQ after unmarshal error",
				"dlq_error", dlqErr,
				"message_key", string(key),
			)
		}
		return fmt.Errorf("failed to unmarshal message value: %w", err)
	}

	logger := h.logger
	if cmd.CorrelationID != "" {
		logger = h.logger.With("correlation_id", cmd.CorrelationID)
	}
	logger.Debug("Received ledger command", "command_id", cmd.CommandID.String(), "type", string(cmd.Type))

	err := h.processor.ProcessCommand(ctx, &cmd)
	if err == nil {
		return nil
	}
	if h.dlq == nil || shared.IsRetryable(err) || ctx.Err() != nil {
		return fmt.Errorf("processing ledger command %s failed: %w", cmd.CommandID.String(), err)
	}

	reason := "ledger command failed: " + err.Error()
	if dlqErr := h.dlq.PublishToDLQ(ctx, string(key), value, reason); dlqErr != nil {
		logger.Error("Failed to publish ledger command to DLQ",
			"command_id", cmd.CommandID.String(),
			"dlq_error", dlqErr,
			"error", err,
		)
		return fmt.Errorf("processing ledger command %s failed: %w", cmd.CommandID.String(), err)
	}

	logger.Warn("Ledger command moved to DLQ", "command_id", cmd.CommandID.String(), "error", err)
	return nil
}
