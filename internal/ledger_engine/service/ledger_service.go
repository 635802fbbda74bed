package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/kaybank-ledger/internal/domain/account"
	"github.com/kaybank-ledger/internal/domain/ledger"
	"github.com/kaybank-ledger/internal/domain/shared"
	"github.com/kaybank-ledger/internal/domain/store"
)

// LedgerOptions bounds retries and history queries
type LedgerOptions struct {
	MaxRetries          int
	HistoryDefaultLimit int
	HistoryMaxLimit     int
}

// LedgerService implements LedgerEngine on top of a store.Store. Every
// mutation locks the accounts it touches in ascending id order, re-validates
// balances under the lock and commits balance updates with their records.
type LedgerService struct {
	store   store.Store
	journal RecordJournal
	guard   CommandGuard
	opts    LedgerOptions
	logger  *slog.Logger
}

var _ LedgerEngine = (*LedgerService)(nil)

// NewLedgerService builds the engine. guard may be nil when commands are never replayed.
func NewLedgerService(st store.Store, journal RecordJournal, guard CommandGuard, opts LedgerOptions, logger *slog.Logger) *LedgerService {
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = 1
	}
	if opts.HistoryDefaultLimit <= 0 {
		opts.HistoryDefaultLimit = 50
	}
	if opts.HistoryMaxLimit < opts.HistoryDefaultLimit {
		opts.HistoryMaxLimit = opts.HistoryDefaultLimit
	}
	return &LedgerService{
		store:   st,
		journal: journal,
		guard:   guard,
		opts:    opts,
		logger:  logger,
	}
}

// Deposit credits amount to the account and returns the new balance
func (s *LedgerService) Deposit(ctx context.Context, accountID uuid.UUID, amount int64) (int64, error) {
	if amount <= 0 {
		return 0, account.ErrInvalidAmount
	}
	logger := s.loggerFor(ctx).With("op", "deposit", "account_id", accountID.String())

	var balance int64
	err := s.run(ctx, logger, "deposit", func(ctx context.Context, tx store.Tx) error {
		locked, err := tx.Accounts().LockForUpdate(ctx, accountID)
		if err != nil {
			return err
		}
		if err := s.checkCommand(ctx, tx); err != nil {
			return err
		}
		acc := locked[0]

		if err := acc.Deposit(amount); err != nil {
			return err
		}
		if err := tx.Accounts().Update(ctx, acc); err != nil {
			return err
		}
		if err := s.journal.Journal(ctx, tx, ledger.NewRecord(acc.ID, shared.TransactionKindDeposit, amount)); err != nil {
			return err
		}

		balance = acc.Balance
		return nil
	})
	if err != nil {
		return 0, err
	}

	logger.Info("Deposit committed", "amount", amount, "balance", balance)
	return balance, nil
}

// Withdraw debits amount when the balance covers it and returns the new balance
func (s *LedgerService) Withdraw(ctx context.Context, accountID uuid.UUID, amount int64) (int64, error) {
	if amount <= 0 {
		return 0, account.ErrInvalidAmount
	}
	logger := s.loggerFor(ctx).With("op", "withdraw", "account_id", accountID.String())

	var balance int64
	err := s.run(ctx, logger, "withdraw", func(ctx context.Context, tx store.Tx) error {
		locked, err := tx.Accounts().LockForUpdate(ctx, accountID)
		if err != nil {
			return err
		}
		if err := s.checkCommand(ctx, tx); err != nil {
			return err
		}
		acc := locked[0]

		// Checked against the locked row
		if err := acc.Withdraw(amount); err != nil {
			return err
		}
		if err := tx.Accounts().Update(ctx, acc); err != nil {
			return err
		}
		if err := s.journal.Journal(ctx, tx, ledger.NewRecord(acc.ID, shared.TransactionKindWithdrawal, amount)); err != nil {
			return err
		}

		balance = acc.Balance
		return nil
	})
	if err != nil {
		return 0, err
	}

	logger.Info("Withdrawal committed", "amount", amount, "balance", balance)
	return balance, nil
}

// Transfer moves amount from the source account to the account with
// targetAccountNumber. Both balance changes and the linked TransferOut and
// TransferIn records commit together or not at all.
func (s *LedgerService) Transfer(ctx context.Context, sourceID uuid.UUID, targetAccountNumber string, amount int64) (*TransferReceipt, error) {
	if amount <= 0 {
		return nil, account.ErrInvalidAmount
	}
	if targetAccountNumber == "" {
		return nil, shared.ValidationError{Field: "target_account_number", Reason: "is required"}
	}
	logger := s.loggerFor(ctx).With("op", "transfer", "account_id", sourceID.String(), "target_account_number", targetAccountNumber)

	var receipt *TransferReceipt
	err := s.run(ctx, logger, "transfer", func(ctx context.Context, tx store.Tx) error {
		source, err := tx.Accounts().GetByID(ctx, sourceID)
		if err != nil {
			return err
		}
		if source.AccountNumber == targetAccountNumber {
			return fmt.Errorf("%w: cannot transfer to the same account", shared.ErrInvalidOperation)
		}

		target, err := tx.Accounts().GetByAccountNumber(ctx, targetAccountNumber)
		if err != nil {
			return err
		}
		if target.ID == sourceID {
			return fmt.Errorf("%w: cannot transfer to the same account", shared.ErrInvalidOperation)
		}

		locked, err := tx.Accounts().LockForUpdate(ctx, sourceID, target.ID)
		if err != nil {
			return err
		}
		if err := s.checkCommand(ctx, tx); err != nil {
			return err
		}
		src, dst := locked[0], locked[1]
		if src.ID != sourceID {
			src, dst = dst, src
		}

		if err := src.Withdraw(amount); err != nil {
			return err
		}
		if err := dst.Deposit(amount); err != nil {
			return err
		}
		if err := tx.Accounts().Update(ctx, src); err != nil {
			return err
		}
		if err := tx.Accounts().Update(ctx, dst); err != nil {
			return err
		}

		out, in := ledger.NewTransferPair(src.ID, src.AccountNumber, dst.ID, dst.AccountNumber, amount)
		if err := s.journal.Journal(ctx, tx, out, in); err != nil {
			return err
		}

		receipt = &TransferReceipt{
			TransferID:          out.TransferID,
			Amount:              amount,
			SourceBalance:       src.Balance,
			TargetAccountNumber: dst.AccountNumber,
			TargetFullName:      dst.FullName,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info("Transfer committed", "transfer_id", receipt.TransferID.String(), "amount", amount, "balance", receipt.SourceBalance)
	return receipt, nil
}

// BalanceOf reads the committed balance
func (s *LedgerService) BalanceOf(ctx context.Context, accountID uuid.UUID) (int64, error) {
	balance, err := s.store.Accounts().GetBalance(ctx, accountID)
	if err != nil {
		return 0, classify("balance", err)
	}
	return balance, nil
}

// HistoryOf returns committed records newest first. A non-positive limit
// selects the default; limits above the maximum are clamped.
func (s *LedgerService) HistoryOf(ctx context.Context, accountID uuid.UUID, limit int) ([]*ledger.Record, error) {
	switch {
	case limit <= 0:
		limit = s.opts.HistoryDefaultLimit
	case limit > s.opts.HistoryMaxLimit:
		limit = s.opts.HistoryMaxLimit
	}

	if _, err := s.store.Accounts().GetByID(ctx, accountID); err != nil {
		return nil, classify("history", err)
	}

	records, err := s.store.Records().ListByAccount(ctx, accountID, limit)
	if err != nil {
		return nil, classify("history", err)
	}
	return records, nil
}

// Reconcile compares the balance with the record sum as of one snapshot.
// It takes no account locks, so concurrent movements are not blocked.
func (s *LedgerService) Reconcile(ctx context.Context, accountID uuid.UUID) (*Reconciliation, error) {
	logger := s.loggerFor(ctx).With("op", "reconcile", "account_id", accountID.String())

	var result *Reconciliation
	err := s.store.WithSnapshot(ctx, func(ctx context.Context, tx store.Tx) error {
		acc, err := tx.Accounts().GetByID(ctx, accountID)
		if err != nil {
			return err
		}
		sum, err := tx.Records().SumByAccount(ctx, accountID)
		if err != nil {
			return err
		}
		result = &Reconciliation{
			AccountID:  accountID,
			Balance:    acc.Balance,
			RecordSum:  sum,
			Consistent: acc.Balance == sum,
		}
		return nil
	})
	if err != nil {
		return nil, classify("reconcile", err)
	}

	if !result.Consistent {
		logger.Error("Balance does not match record history", "balance", result.Balance, "record_sum", result.RecordSum)
	}
	return result, nil
}

// run executes fn in a transaction, retrying the whole unit of work on
// optimistic-lock conflicts and retryable storage errors
func (s *LedgerService) run(ctx context.Context, logger *slog.Logger, op string, fn store.TxFunc) error {
	var err error
	for attempt := 1; attempt <= s.opts.MaxRetries; attempt++ {
		err = s.store.WithTransaction(ctx, fn)
		if err == nil {
			return nil
		}
		if !isContention(err) {
			return classify(op, err)
		}
		if ctx.Err() != nil {
			break
		}
		logger.Warn("Retrying after contention", "attempt", attempt, "error", err)
	}

	logger.Error("Giving up after contention", "attempts", s.opts.MaxRetries, "error", err)
	return shared.StorageError{Op: op, Err: err, Retryable: true}
}

// checkCommand is a no-op unless ctx carries a command id
func (s *LedgerService) checkCommand(ctx context.Context, tx store.Tx) error {
	if s.guard == nil {
		return nil
	}
	return s.guard.CheckIdempotency(ctx, tx)
}

func (s *LedgerService) loggerFor(ctx context.Context) *slog.Logger {
	if id := shared.CorrelationIDFromContext(ctx); id != "" {
		return s.logger.With("correlation_id", id)
	}
	return s.logger
}

func isContention(err error) bool {
	return errors.Is(err, account.ErrConcurrentModification{}) || shared.IsRetryable(err)
}

// classify passes typed ledger errors through and wraps anything else as a StorageError
func classify(op string, err error) error {
	switch {
	case errors.Is(err, account.ErrInsufficientFunds),
		errors.Is(err, account.ErrInvalidAmount),
		errors.Is(err, account.ErrAccountNotFound{}),
		errors.Is(err, account.ErrConflict{}),
		errors.Is(err, shared.ErrInvalidOperation),
		errors.Is(err, shared.ValidationError{}),
		errors.Is(err, shared.ErrAllocationExhausted),
		errors.Is(err, ledger.ErrCommandApplied{}),
		errors.Is(err, shared.StorageError{}):
		return err
	}
	return shared.StorageError{Op: op, Err: err}
}
