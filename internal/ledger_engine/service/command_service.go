package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/kaybank-ledger/internal/domain/account"
	"github.com/kaybank-ledger/internal/domain/ledger"
	"github.com/kaybank-ledger/internal/domain/money"
	"github.com/kaybank-ledger/internal/domain/shared"
)

// CommandService executes LedgerCommands against the engine. Business
// rejections and redeliveries of applied commands are logged and swallowed so
// the Kafka offset is committed; storage failures are returned so the command
// is retried.
type CommandService struct {
	engine LedgerEngine
	logger *slog.Logger
}

var _ CommandProcessor = (*CommandService)(nil)

func NewCommandService(engine LedgerEngine, logger *slog.Logger) *CommandService {
	return &CommandService{
		engine: engine,
		logger: logger,
	}
}

// ProcessCommand handles the core logic for processing a ledger command
func (s *CommandService) ProcessCommand(ctx context.Context, cmd *shared.LedgerCommand) error {
	logger := s.logger
	if cmd.CorrelationID != "" {
		logger = s.logger.With("correlation_id", cmd.CorrelationID)
		ctx = shared.WithCorrelationID(ctx, cmd.CorrelationID)
	}
	logger = logger.With("command_id", cmd.CommandID.String(), "account_id", cmd.AccountID.String(), "type", string(cmd.Type))

	logger.Info("Processing ledger command")

	if err := cmd.Validate(); err != nil {
		logger.Warn("Ledger command rejected", "error", err)
		return nil
	}

	amount, err := money.ParseAmount(cmd.Amount)
	if err != nil {
		logger.Warn("Ledger command rejected", "amount", cmd.Amount, "error", err)
		return nil
	}

	ctx = shared.WithCommandID(ctx, cmd.CommandID)

	switch cmd.Type {
	case shared.CommandTypeDeposit:
		_, err = s.engine.Deposit(ctx, cmd.AccountID, amount)
	case shared.CommandTypeWithdrawal:
		_, err = s.engine.Withdraw(ctx, cmd.AccountID, amount)
	case shared.CommandTypeTransfer:
		_, err = s.engine.Transfer(ctx, cmd.AccountID, cmd.TargetAccountNumber, amount)
	}
	if err == nil {
		logger.Info("Ledger command applied")
		return nil
	}

	if errors.Is(err, ledger.ErrCommandApplied{}) {
		logger.Info("Ledger command already applied, skipping")
		return nil
	}

	if isRejection(err) {
		logger.Warn("Ledger command rejected", "error", err)
		return nil
	}

	logger.Error("Ledger command failed", "error", err)
	return err
}

// isRejection reports errors that will fail the same way on redelivery
func isRejection(err error) bool {
	return errors.Is(err, account.ErrInsufficientFunds) ||
		errors.Is(err, account.ErrInvalidAmount) ||
		errors.Is(err, account.ErrAccountNotFound{}) ||
		errors.Is(err, shared.ErrInvalidOperation) ||
		errors.Is(err, shared.ValidationError{})
}
