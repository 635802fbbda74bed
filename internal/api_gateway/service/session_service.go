package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/kaybank-ledger/internal/domain/account"
	engine "github.com/kaybank-ledger/internal/ledger_engine/service"
)

// SessionServiceImpl implements SessionService on top of the ledger engine's
// registrar and authenticator
type SessionServiceImpl struct {
	registrar engine.AccountRegistrar
	auth      engine.Authenticator
	issuer    TokenIssuer
	logger    *slog.Logger
}

// NewSessionService creates a new session service
func NewSessionService(registrar engine.AccountRegistrar, auth engine.Authenticator, issuer TokenIssuer, logger *slog.Logger) SessionService {
	return &SessionServiceImpl{
		registrar: registrar,
		auth:      auth,
		issuer:    issuer,
		logger:    logger,
	}
}

// Register opens a new account
func (s *SessionServiceImpl) Register(ctx context.Context, req engine.RegistrationRequest) (*account.Account, error) {
	return s.registrar.Register(ctx, req)
}

// Login authenticates the credentials and signs a token for the resulting identity
func (s *SessionServiceImpl) Login(ctx context.Context, username, password string) (*Session, error) {
	identity, err := s.auth.Login(ctx, username, password)
	if err != nil {
		return nil, err
	}

	token, expiresAt, err := s.issuer.Issue(*identity)
	if err != nil {
		return nil, fmt.Errorf("failed to issue session token: %w", err)
	}

	s.logger.Info("Session issued", "account_id", identity.AccountID, "expires_at", expiresAt)

	return &Session{
		Token:     token,
		ExpiresAt: expiresAt,
		Identity:  *identity,
	}, nil
}
