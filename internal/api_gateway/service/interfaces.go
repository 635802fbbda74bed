package service

import (
	"context"
	"time"

	"github.com/kaybank-ledger/internal/domain/account"
	engine "github.com/kaybank-ledger/internal/ledger_engine/service"
)

// SessionService opens accounts and exchanges credentials for bearer tokens
type SessionService interface {
	// Register opens an account. The opening deposit is committed with it.
	Register(ctx context.Context, req engine.RegistrationRequest) (*account.Account, error)

	// Login verifies credentials and issues a token for the account.
	// Returns shared.ErrAuthenticationFailed for unknown users and wrong passwords alike.
	Login(ctx context.Context, username, password string) (*Session, error)
}

// TokenIssuer signs session tokens
type TokenIssuer interface {
	Issue(identity account.Identity) (string, time.Time, error)
}

// Session is a logged-in account and its bearer token
type Session struct {
	Token     string
	ExpiresAt time.Time
	Identity  account.Identity
}
