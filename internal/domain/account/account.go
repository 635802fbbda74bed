package account

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
)

// Common errors
var (
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrInvalidAmount     = errors.New("amount must be positive")
	ErrBalanceOverflow   = fmt.Errorf("%w: balance limit exceeded", ErrInvalidAmount)
)

// Account represents a customer account and its current balance
type Account struct {
	ID            uuid.UUID `json:"id"`
	FullName      string    `json:"full_name"`
	Username      string    `json:"username"`
	PasswordHash  string    `json:"-"`
	AccountNumber string    `json:"account_number"`
	Balance       int64     `json:"balance"` // Stored in minor units
	Version       int       `json:"version"` // For optimistic locking
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Identity is the opaque handle returned by a successful login. It never
// carries the balance; callers re-read canonical state through the ledger.
type Identity struct {
	AccountID     uuid.UUID `json:"account_id"`
	AccountNumber string    `json:"account_number"`
	Username      string    `json:"username"`
	FullName      string    `json:"full_name"`
}

// NewAccount creates an account with a zero balance. Opening funds are
// applied as a Deposit so the balance always matches the record history.
func NewAccount(fullName, username, passwordHash, accountNumber string) *Account {
	now := time.Now().UTC()
	return &Account{
		ID:            uuid.New(),
		FullName:      fullName,
		Username:      username,
		PasswordHash:  passwordHash,
		AccountNumber: accountNumber,
		Balance:       0,
		Version:       1,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// Identity returns the session handle for this account
func (a *Account) Identity() Identity {
	return Identity{
		AccountID:     a.ID,
		AccountNumber: a.AccountNumber,
		Username:      a.Username,
		FullName:      a.FullName,
	}
}

// Deposit adds the specified amount to the account balance
func (a *Account) Deposit(amount int64) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	if amount > math.MaxInt64-a.Balance {
		return ErrBalanceOverflow
	}

	a.Balance += amount
	a.UpdatedAt = time.Now().UTC()
	a.Version++
	return nil
}

// Withdraw subtracts the specified amount from the account balance
func (a *Account) Withdraw(amount int64) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}

	if !a.CanWithdraw(amount) {
		return ErrInsufficientFunds
	}

	a.Balance -= amount
	a.UpdatedAt = time.Now().UTC()
	a.Version++
	return nil
}

// CanWithdraw checks if the account has sufficient funds for a withdrawal
func (a *Account) CanWithdraw(amount int64) bool {
	return a.Balance >= amount
}
