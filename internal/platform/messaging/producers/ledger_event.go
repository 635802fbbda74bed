package producers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/kaybank-ledger/internal/config"
	"github.com/kaybank-ledger/internal/domain/ledger"
	"github.com/segmentio/kafka-go"
)

// LedgerEventProducer publishes committed records keyed by account id, so
// each account's events stay ordered within one partition
type LedgerEventProducer struct {
	logger *slog.Logger
	writer KafkaWriter
	topic  string
}

var _ EventPublisher = (*LedgerEventProducer)(nil)

// NewLedgerEventProducer returns a nil producer when cfg.EventTopic is empty
func NewLedgerEventProducer(_ context.Context, logger *slog.Logger, cfg *config.KafkaConfig) (*LedgerEventProducer, error) {
	if cfg.EventTopic == "" {
		logger.Info("Ledger event topic is not configured, event publishing disabled")
		return nil, nil
	}

	if err := ensureTopic(cfg.Brokers, cfg.EventTopic, cfg.NumPartitions, cfg.ReplicationFactor, logger); err != nil {
		return nil, fmt.Errorf("failed to ensure event topic %s exists: %w", cfg.EventTopic, err)
	}

	// Synchronous so the outbox only marks a message processed once Kafka has it
	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers),
		Topic:        cfg.EventTopic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		WriteTimeout: cfg.MaxWait,
	}

	return NewLedgerEventProducerWithWriter(logger, writer, cfg.EventTopic), nil
}

func NewLedgerEventProducerWithWriter(logger *slog.Logger, writer KafkaWriter, topic string) *LedgerEventProducer {
	return &LedgerEventProducer{
		logger: logger,
		writer: writer,
		topic:  topic,
	}
}

func (p *LedgerEventProducer) PublishRecord(ctx context.Context, record *ledger.Record) error {
	value, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal ledger record %s: %w", record.ID.String(), err)
	}

	msg := kafka.Message{
		Key:   []byte(record.AccountID.String()),
		Value: value,
		Headers: []kafka.Header{
			{Key: "record-kind", Value: []byte(record.Kind)},
			{Key: "record-id", Value: []byte(record.ID.String())},
		},
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.Error("Failed to publish ledger event",
			"topic", p.topic,
			"record_id", record.ID.String(),
			"error", err,
		)
		return fmt.Errorf("failed to publish ledger event to %s: %w", p.topic, err)
	}

	p.logger.Debug("Published ledger event", "topic", p.topic, "record_id", record.ID.String())
	return nil
}

func (p *LedgerEventProducer) Close() error {
	p.logger.Info("Closing ledger event producer", "topic", p.topic)
	if err := p.writer.Close(); err != nil {
		return fmt.Errorf("failed to close ledger event writer for topic %s: %w", p.topic, err)
	}
	return nil
}
