// Package tokens issues and verifies the signed session token that carries
// an account Identity between HTTP requests.
package tokens

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/kaybank-ledger/internal/config"
	"github.com/kaybank-ledger/internal/domain/account"
)

var ErrInvalidToken = errors.New("invalid session token")

// Claims is the JWT payload. Subject holds the account id.
type Claims struct {
	AccountNumber string `json:"account_number"`
	Username      string `json:"username"`
	FullName      string `json:"full_name"`
	jwt.RegisteredClaims
}

// Issuer signs and parses HS256 session tokens
type Issuer struct {
	secret []byte
	ttl    time.Duration
	issuer string
	now    func() time.Time
}

func NewIssuer(cfg config.AuthConfig) *Issuer {
	return &Issuer{
		secret: []byte(cfg.JWTSecret),
		ttl:    cfg.TokenTTL,
		issuer: cfg.Issuer,
		now:    time.Now,
	}
}

// Issue returns a signed token for identity and its expiry
func (i *Issuer) Issue(identity account.Identity) (string, time.Time, error) {
	now := i.now()
	expiresAt := now.Add(i.ttl)
	claims := &Claims{
		AccountNumber: identity.AccountNumber,
		Username:      identity.Username,
		FullName:      identity.FullName,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   identity.AccountID.String(),
			Issuer:    i.issuer,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign session token: %w", err)
	}
	return signed, expiresAt, nil
}

// Parse verifies signature, issuer and expiry and returns the identity
func (i *Issuer) Parse(tokenString string) (*account.Identity, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return i.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(i.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	accountID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, fmt.Errorf("%w: bad subject", ErrInvalidToken)
	}

	return &account.Identity{
		AccountID:     accountID,
		AccountNumber: claims.AccountNumber,
		Username:      claims.Username,
		FullName:      claims.FullName,
	}, nil
}
