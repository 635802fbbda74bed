package shared

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var ErrInvalidCommandType = errors.New("invalid ledger command type")

// LedgerCommand defines a Kafka message asking the ledger to mutate an account.
// Amount is a decimal string in major units, e.g. "15.00". CommandID is the
// idempotency key: a command is applied at most once however often it is delivered.
type LedgerCommand struct {
	CommandID           uuid.UUID   `json:"command_id"`
	AccountID           uuid.UUID   `json:"account_id"`
	Type                CommandType `json:"type"`
	Amount              string      `json:"amount"`
	TargetAccountNumber string      `json:"target_account_number,omitempty"`
	CorrelationID       string      `json:"correlation_id"`
	Timestamp           time.Time   `json:"timestamp"`
}

// Validate checks the command shape without touching storage
func (c LedgerCommand) Validate() error {
	var errs ValidationErrors
	if c.CommandID == uuid.Nil {
		errs = append(errs, ValidationError{Field: "command_id", Reason: "is required"})
	}
	if c.AccountID == uuid.Nil {
		errs = append(errs, ValidationError{Field: "account_id", Reason: "is required"})
	}
	if c.Amount == "" {
		errs = append(errs, ValidationError{Field: "amount", Reason: "is required"})
	}
	switch c.Type {
	case CommandTypeDeposit, CommandTypeWithdrawal:
	case CommandTypeTransfer:
		if c.TargetAccountNumber == "" {
			errs = append(errs, ValidationError{Field: "target_account_number", Reason: "is required for transfers"})
		}
	default:
		errs = append(errs, ValidationError{Field: "type", Reason: ErrInvalidCommandType.Error()})
	}
	if len(errs) > 0 {
		return errs
	}
	return nil
}
