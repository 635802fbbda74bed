package service

import (
	"context"
	"log/slog"

	"github.com/kaybank-ledger/internal/domain/shared"
	"github.com/panjf2000/ants/v2"
)

// WorkerPoolCommandService bounds the number of commands executing at once
type WorkerPoolCommandService struct {
	base   CommandProcessor
	pool   *ants.Pool
	logger *slog.Logger
}

var _ CommandProcessor = (*WorkerPoolCommandService)(nil)

type WorkerPoolConfig struct {
	Size int
}

func NewWorkerPoolCommandService(
	base CommandProcessor,
	config WorkerPoolConfig,
	logger *slog.Logger,
) (*WorkerPoolCommandService, error) {
	pool, err := ants.NewPool(config.Size)
	if err != nil {
		return nil, err
	}

	return &WorkerPoolCommandService{
		base:   base,
		pool:   pool,
		logger: logger,
	}, nil
}

// ProcessCommand runs the command on a pool worker and waits for its result
func (s *WorkerPoolCommandService) ProcessCommand(ctx context.Context, cmd *shared.LedgerCommand) error {
	logger := s.logger
	if cmd.CorrelationID != "" {
		logger = s.logger.With("correlation_id", cmd.CorrelationID)
	}

	logger.Debug("Submitting ledger command to worker pool", "command_id", cmd.CommandID.String())

	resultChan := make(chan error, 1)
	cmdCopy := *cmd

	err := s.pool.Submit(func() {
		resultChan <- s.base.ProcessCommand(ctx, &cmdCopy)
	})
	if err != nil {
		logger.Error("Failed to submit ledger command to worker pool",
			"command_id", cmd.CommandID.String(),
			"error", err,
		)
		return err
	}

	select {
	case err := <-resultChan:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Shutdown gracefully shuts down the worker pool.
func (s *WorkerPoolCommandService) Shutdown() {
	s.logger.Info("Shutting down worker pool", "running_workers", s.pool.Running())
	s.pool.Release()
}

// Running returns the number of running workers in the pool.
func (s *WorkerPoolCommandService) Running() int {
	return s.pool.Running()
}

// Capacity returns the capacity of the worker pool.
func (s *WorkerPoolCommandService) Capacity() int {
	return s.pool.Cap()
}
