package shared

import (
	"context"

	"github.com/google/uuid"
)

type correlationKey struct{}

type commandKey struct{}

// WithCorrelationID stores the request correlation id on ctx
func WithCorrelationID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, correlationKey{}, id)
}

// CorrelationIDFromContext returns the correlation id stored on ctx, or ""
func CorrelationIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(correlationKey{}).(string)
	return id
}

// WithCommandID marks ctx as carrying out the ledger command with this id
func WithCommandID(ctx context.Context, id uuid.UUID) context.Context {
	if id == uuid.Nil {
		return ctx
	}
	return context.WithValue(ctx, commandKey{}, id)
}

// CommandIDFromContext returns the command id stored on ctx, or uuid.Nil
func CommandIDFromContext(ctx context.Context) uuid.UUID {
	id, _ := ctx.Value(commandKey{}).(uuid.UUID)
	return id
}
