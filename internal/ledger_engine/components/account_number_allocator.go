package components

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/big"

	"github.com/kaybank-ledger/internal/domain/account"
	"github.com/kaybank-ledger/internal/domain/shared"
)

// ClaimFunc inserts the account under the candidate number. It must return
// account.ErrConflict{Field: account.FieldAccountNumber} when the number is taken.
type ClaimFunc func(ctx context.Context, accountNumber string) error

// AccountNumberAllocator draws uniformly random fixed-length numbers and
// relies on the store's unique constraint to detect collisions
type AccountNumberAllocator struct {
	length      int
	maxAttempts int
	upper       *big.Int
	random      io.Reader
	logger      *slog.Logger
}

func NewAccountNumberAllocator(length, maxAttempts int, logger *slog.Logger) *AccountNumberAllocator {
	return &AccountNumberAllocator{
		length:      length,
		maxAttempts: maxAttempts,
		upper:       new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(length)), nil),
		random:      rand.Reader,
		logger:      logger,
	}
}

// Candidate returns a zero-padded random number of the configured length.
// Lengths are bounded to 18 digits by config validation so the draw fits an int64.
func (a *AccountNumberAllocator) Candidate() (string, error) {
	n, err := rand.Int(a.random, a.upper)
	if err != nil {
		return "", fmt.Errorf("failed to draw account number: %w", err)
	}
	return fmt.Sprintf("%0*d", a.length, n.Int64()), nil
}

// Allocate calls claim with fresh candidates until one is accepted. A
// number collision is retried; any other claim error is returned as is.
func (a *AccountNumberAllocator) Allocate(ctx context.Context, claim ClaimFunc) (string, error) {
	for attempt := 1; attempt <= a.maxAttempts; attempt++ {
		candidate, err := a.Candidate()
		if err != nil {
			return "", err
		}

		err = claim(ctx, candidate)
		if err == nil {
			return candidate, nil
		}
		if !errors.Is(err, account.ErrConflict{Field: account.FieldAccountNumber}) {
			return "", err
		}

		a.logger.Debug("Account number taken, drawing another", "attempt", attempt)
	}

	a.logger.Error("Account number allocation exhausted", "attempts", a.maxAttempts, "length", a.length)
	return "", shared.ErrAllocationExhausted
}
