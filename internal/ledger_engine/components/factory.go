package components

import (
	"log/slog"

	"github.com/kaybank-ledger/internal/config"
	"github.com/kaybank-ledger/internal/domain/store"
	"github.com/kaybank-ledger/internal/ledger_engine/service"
)

// Services bundles the engine and the account-facing components built on it
type Services struct {
	Ledger    *service.LedgerService
	Registrar *Registrar
	Auth      *AuthSession
}

// CreateServices wires the ledger engine, registrar and auth session around st
func CreateServices(st store.Store, cfg *config.Config, logger *slog.Logger) (*Services, error) {
	vault, err := NewCredentialVault(cfg.Credentials, logger.With("component", "credential_vault"))
	if err != nil {
		return nil, err
	}
	journal := NewRecordJournal(logger.With("component", "record_journal"))
	allocator := NewAccountNumberAllocator(
		cfg.Registration.AccountNumberLength,
		cfg.Registration.AccountNumberMaxAttempts,
		logger.With("component", "account_number_allocator"),
	)

	guard := NewCommandGuard(logger.With("component", "command_guard"))

	ledgerService := service.NewLedgerService(st, journal, guard, service.LedgerOptions{
		MaxRetries:          cfg.Ledger.MaxRetries,
		HistoryDefaultLimit: cfg.Ledger.HistoryDefaultLimit,
		HistoryMaxLimit:     cfg.Ledger.HistoryMaxLimit,
	}, logger.With("component", "ledger"))

	return &Services{
		Ledger:    ledgerService,
		Registrar: NewRegistrar(st, vault, allocator, journal, cfg.Registration.MinInitialDeposit, cfg.Ledger.MaxRetries, logger.With("component", "registrar")),
		Auth:      NewAuthSession(st.Accounts(), vault, logger.With("component", "auth")),
	}, nil
}

// CreateCommandProcessor creates the Kafka command processor with all its dependencies.
func CreateCommandProcessor(engine service.LedgerEngine, cfg *config.Config, logger *slog.Logger) service.CommandProcessor {
	baseService := service.NewCommandService(engine, logger)

	workerPoolService, err := service.NewWorkerPoolCommandService(
		baseService,
		service.WorkerPoolConfig{
			Size: cfg.WorkerPool.Size,
		},
		logger.With("component", "worker_pool"),
	)
	if err != nil {
		logger.Error("Failed to create worker pool service, falling back to base service", "error", err)
		return baseService
	}

	logger.Info("Created worker pool command service", "pool_size", cfg.WorkerPool.Size)
	return workerPoolService
}
