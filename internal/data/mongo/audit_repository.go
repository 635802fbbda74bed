// Package mongo archives committed ledger records. The archive is a read-only
// copy for auditors; the PostgreSQL transactions table stays authoritative.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/kaybank-ledger/internal/domain/ledger"
	"github.com/kaybank-ledger/internal/domain/money"
	"github.com/kaybank-ledger/internal/domain/shared"
)

// AuditCollectionName is the name of the archive collection in MongoDB
const AuditCollectionName = "ledger_records"

var ErrArchivedRecordNotFound = errors.New("archived record not found")

type auditDocument struct {
	RecordID      string                 `bson:"record_id"`
	AccountID     string                 `bson:"account_id"`
	Kind          shared.TransactionKind `bson:"kind"`
	Amount        int64                  `bson:"amount"`
	AmountDecimal string                 `bson:"amount_decimal"`
	Counterparty  string                 `bson:"counterparty,omitempty"`
	TransferID    string                 `bson:"transfer_id,omitempty"`
	CommandID     string                 `bson:"command_id,omitempty"`
	Sequence      int64                  `bson:"sequence"`
	CreatedAt     time.Time              `bson:"created_at"`
	ArchivedAt    time.Time              `bson:"archived_at"`
}

func toAuditDocument(record *ledger.Record) auditDocument {
	doc := auditDocument{
		RecordID:      record.ID.String(),
		AccountID:     record.AccountID.String(),
		Kind:          record.Kind,
		Amount:        record.Amount,
		AmountDecimal: money.Format(record.Amount),
		Counterparty:  record.Counterparty,
		Sequence:      record.Sequence,
		CreatedAt:     record.CreatedAt,
		ArchivedAt:    time.Now().UTC(),
	}
	if record.TransferID != uuid.Nil {
		doc.TransferID = record.TransferID.String()
	}
	if record.CommandID != uuid.Nil {
		doc.CommandID = record.CommandID.String()
	}
	return doc
}

func (d auditDocument) toRecord() (*ledger.Record, error) {
	id, err := uuid.Parse(d.RecordID)
	if err != nil {
		return nil, fmt.Errorf("invalid archived record id: %w", err)
	}
	accountID, err := uuid.Parse(d.AccountID)
	if err != nil {
		return nil, fmt.Errorf("invalid archived account id: %w", err)
	}
	record := &ledger.Record{
		ID:           id,
		AccountID:    accountID,
		Kind:         d.Kind,
		Amount:       d.Amount,
		Counterparty: d.Counterparty,
		Sequence:     d.Sequence,
		CreatedAt:    d.CreatedAt,
	}
	if d.TransferID != "" {
		if record.TransferID, err = uuid.Parse(d.TransferID); err != nil {
			return nil, fmt.Errorf("invalid archived transfer id: %w", err)
		}
	}
	if d.CommandID != "" {
		if record.CommandID, err = uuid.Parse(d.CommandID); err != nil {
			return nil, fmt.Errorf("invalid archived command id: %w", err)
		}
	}
	return record, nil
}

// AuditRepository stores one document per ledger record
type AuditRepository struct {
	db     *mongo.Database
	logger *slog.Logger
}

func NewAuditRepository(logger *slog.Logger, db *mongo.Database) *AuditRepository {
	return &AuditRepository{
		db:     db,
		logger: logger,
	}
}

// EnsureIndexes creates the unique record index and the per-account history index
func (r *AuditRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.db.Collection(AuditCollectionName).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "record_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "account_id", Value: 1}, {Key: "sequence", Value: -1}},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create audit indexes: %w", err)
	}
	return nil
}

// Archive inserts the record unless it is already archived, so redelivered
// outbox messages are harmless
func (r *AuditRepository) Archive(ctx context.Context, record *ledger.Record) error {
	collection := r.db.Collection(AuditCollectionName)

	filter := bson.M{"record_id": record.ID.String()}
	update := bson.M{"$setOnInsert": toAuditDocument(record)}
	result, err := collection.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	if err != nil {
		r.logger.Error("Failed to archive ledger record",
			"record_id", record.ID.String(),
			"error", err)
		return fmt.Errorf("failed to archive ledger record: %w", err)
	}

	if result.UpsertedCount == 0 {
		r.logger.Debug("Ledger record already archived", "record_id", record.ID.String())
	}
	return nil
}

// GetByRecordID returns the archived copy of a record
func (r *AuditRepository) GetByRecordID(ctx context.Context, recordID uuid.UUID) (*ledger.Record, error) {
	collection := r.db.Collection(AuditCollectionName)

	var doc auditDocument
	err := collection.FindOne(ctx, bson.M{"record_id": recordID.String()}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("%w: %s", ErrArchivedRecordNotFound, recordID.String())
		}
		return nil, fmt.Errorf("failed to get archived record: %w", err)
	}
	return doc.toRecord()
}
