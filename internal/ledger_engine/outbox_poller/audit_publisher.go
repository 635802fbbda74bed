package outbox_poller

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/kaybank-ledger/internal/domain/ledger"
	"github.com/kaybank-ledger/internal/domain/outbox"
	"github.com/kaybank-ledger/internal/domain/shared"
	"github.com/kaybank-ledger/internal/platform/messaging/producers"
)

// RecordArchive stores committed records idempotently
type RecordArchive interface {
	Archive(ctx context.Context, record *ledger.Record) error
}

// MessagePublisher delivers one outbox message
type MessagePublisher interface {
	Publish(ctx context.Context, message *outbox.Message) error
}

// AuditPublisher archives the record carried by an outbox message, publishes
// it as a ledger event when an event producer is configured, and marks the
// message processed
type AuditPublisher struct {
	outboxRepo outbox.Repository
	archive    RecordArchive
	events     producers.EventPublisher
	logger     *slog.Logger
}

// NewAuditPublisher creates a publisher. events may be nil.
func NewAuditPublisher(
	outboxRepo outbox.Repository,
	archive RecordArchive,
	events producers.EventPublisher,
	logger *slog.Logger,
) *AuditPublisher {
	return &AuditPublisher{
		outboxRepo: outboxRepo,
		archive:    archive,
		events:     events,
		logger:     logger,
	}
}

func (p *AuditPublisher) Publish(ctx context.Context, message *outbox.Message) error {
	logger := p.logger.With("outbox_id", message.ID, "record_id", message.RecordID.String())

	record, err := message.GetRecord()
	if err != nil {
		logger.Error("Failed to decode ledger record from outbox payload", "error", err)
		if updateErr := p.outboxRepo.UpdateStatus(ctx, message.ID, shared.OutboxStatusFailedToPublish); updateErr != nil {
			logger.Error("Also failed to mark outbox message FAILED_TO_PUBLISH", "update_error", updateErr)
		}
		return fmt.Errorf("unmarshal payload for outbox %d failed: %w", message.ID, err)
	}

	if err := p.archive.Archive(ctx, record); err != nil {
		return fmt.Errorf("failed to archive record %s: %w", record.ID.String(), err)
	}

	if p.events != nil {
		if err := p.events.PublishRecord(ctx, record); err != nil {
			return fmt.Errorf("failed to publish ledger event for record %s: %w", record.ID.String(), err)
		}
	}

	if err := p.outboxRepo.UpdateStatus(ctx, message.ID, shared.OutboxStatusProcessed); err != nil {
		logger.Error("Failed to mark outbox message PROCESSED", "error", err)
		return fmt.Errorf("record %s archived, but failed to mark outbox %d as PROCESSED: %w", record.ID.String(), message.ID, err)
	}

	logger.Debug("Outbox message processed", "kind", string(record.Kind), "sequence", record.Sequence)
	return nil
}
