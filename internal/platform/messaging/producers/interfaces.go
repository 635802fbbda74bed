package producers

import (
	"context"

	"github.com/kaybank-ledger/internal/domain/ledger"
	"github.com/segmentio/kafka-go"
)

// EventPublisher publishes committed ledger records to the event topic
type EventPublisher interface {
	PublishRecord(ctx context.Context, record *ledger.Record) error
	Close() error
}

// DeadLetterPublisher handles publishing messages to a Dead Letter Queue
type DeadLetterPublisher interface {
	PublishToDLQ(ctx context.Context, key string, originalMessageValue []byte, reason string) error
	Close() error
}

// KafkaWriter wraps kafka.Writer methods for testing
type KafkaWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}
