package components

import (
	"context"
	"errors"
	"log/slog"

	"github.com/kaybank-ledger/internal/domain/account"
	"github.com/kaybank-ledger/internal/domain/ledger"
	"github.com/kaybank-ledger/internal/domain/money"
	"github.com/kaybank-ledger/internal/domain/shared"
	"github.com/kaybank-ledger/internal/domain/store"
	"github.com/kaybank-ledger/internal/ledger_engine/service"
)

// Registrar opens accounts. The account row, its opening Deposit record and
// the outbox message commit in one transaction, so a new account reconciles
// from the moment it becomes visible.
type Registrar struct {
	store             store.Store
	vault             *CredentialVault
	allocator         *AccountNumberAllocator
	journal           service.RecordJournal
	minInitialDeposit int64
	maxRetries        int
	logger            *slog.Logger
}

var _ service.AccountRegistrar = (*Registrar)(nil)

func NewRegistrar(
	st store.Store,
	vault *CredentialVault,
	allocator *AccountNumberAllocator,
	journal service.RecordJournal,
	minInitialDeposit int64,
	maxRetries int,
	logger *slog.Logger,
) *Registrar {
	if maxRetries <= 0 {
		maxRetries = 1
	}
	return &Registrar{
		store:             st,
		vault:             vault,
		allocator:         allocator,
		journal:           journal,
		minInitialDeposit: minInitialDeposit,
		maxRetries:        maxRetries,
		logger:            logger,
	}
}

func (r *Registrar) Register(ctx context.Context, req service.RegistrationRequest) (*account.Account, error) {
	logger := r.logger.With("username", req.Username)
	if id := shared.CorrelationIDFromContext(ctx); id != "" {
		logger = logger.With("correlation_id", id)
	}

	if err := r.vault.ValidateIdentity(req.FullName, req.Username, req.Password); err != nil {
		logger.Info("Registration rejected", "error", err)
		return nil, err
	}
	if req.InitialDeposit < 0 || req.InitialDeposit < r.minInitialDeposit {
		return nil, shared.ValidationError{
			Field:  "initial_deposit",
			Reason: "must be at least " + money.Format(r.minInitialDeposit),
		}
	}

	hash, err := r.vault.Hash(req.Password)
	if err != nil {
		logger.Error("Failed to hash password", "error", err)
		return nil, err
	}

	var opened *account.Account
	_, err = r.allocator.Allocate(ctx, func(ctx context.Context, accountNumber string) error {
		var acc *account.Account
		err := r.withRetry(ctx, logger, func(ctx context.Context, tx store.Tx) error {
			acc = account.NewAccount(req.FullName, req.Username, hash, accountNumber)
			if err := tx.Accounts().Create(ctx, acc); err != nil {
				return err
			}
			if req.InitialDeposit == 0 {
				return nil
			}
			if err := acc.Deposit(req.InitialDeposit); err != nil {
				return err
			}
			if err := tx.Accounts().Update(ctx, acc); err != nil {
				return err
			}
			return r.journal.Journal(ctx, tx, ledger.NewRecord(acc.ID, shared.TransactionKindDeposit, req.InitialDeposit))
		})
		if err != nil {
			return err
		}
		opened = acc
		return nil
	})
	if err != nil {
		switch {
		case errors.Is(err, account.ErrConflict{}):
			logger.Info("Registration rejected", "error", err)
			return nil, err
		case errors.Is(err, shared.ErrAllocationExhausted), errors.Is(err, shared.StorageError{}):
			logger.Error("Registration failed", "error", err)
			return nil, err
		}
		logger.Error("Registration failed", "error", err)
		return nil, shared.StorageError{Op: "register", Err: err}
	}

	logger.Info("Account opened",
		"account_id", opened.ID.String(),
		"account_number", opened.AccountNumber,
		"initial_deposit", req.InitialDeposit,
	)
	return opened, nil
}

// withRetry reruns fn on retryable storage errors, such as a lock timeout
// while claiming the username. The account number is kept across attempts.
func (r *Registrar) withRetry(ctx context.Context, logger *slog.Logger, fn store.TxFunc) error {
	var err error
	for attempt := 1; attempt <= r.maxRetries; attempt++ {
		err = r.store.WithTransaction(ctx, fn)
		if err == nil || !shared.IsRetryable(err) || ctx.Err() != nil {
			return err
		}
		logger.Warn("Retrying registration after contention", "attempt", attempt, "error", err)
	}
	return err
}
