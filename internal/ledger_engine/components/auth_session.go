package components

import (
	"context"
	"errors"
	"log/slog"

	"github.com/kaybank-ledger/internal/domain/account"
	"github.com/kaybank-ledger/internal/domain/shared"
	"github.com/kaybank-ledger/internal/ledger_engine/service"
)

// AuthSession resolves a username and password to an account Identity.
// Every credential failure is reported as shared.ErrAuthenticationFailed.
type AuthSession struct {
	accounts account.Repository
	vault    *CredentialVault
	logger   *slog.Logger
}

var _ service.Authenticator = (*AuthSession)(nil)

func NewAuthSession(accounts account.Repository, vault *CredentialVault, logger *slog.Logger) *AuthSession {
	return &AuthSession{
		accounts: accounts,
		vault:    vault,
		logger:   logger,
	}
}

func (a *AuthSession) Login(ctx context.Context, username, password string) (*account.Identity, error) {
	acc, err := a.accounts.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, account.ErrAccountNotFound{}) {
			a.vault.VerifyAbsent(password)
			a.logger.Info("Login rejected")
			return nil, shared.ErrAuthenticationFailed
		}
		a.logger.Error("Failed to look up account for login", "error", err)
		if errors.Is(err, shared.StorageError{}) {
			return nil, err
		}
		return nil, shared.StorageError{Op: "login", Err: err}
	}

	if !a.vault.Verify(password, acc.PasswordHash) {
		a.logger.Info("Login rejected")
		return nil, shared.ErrAuthenticationFailed
	}

	identity := acc.Identity()
	a.logger.Info("Login succeeded", "account_id", identity.AccountID.String())
	return &identity, nil
}
