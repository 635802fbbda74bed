package handler

import (
	"time"

	"github.com/google/uuid"
	"github.com/kaybank-ledger/internal/api_gateway/service"
	"github.com/kaybank-ledger/internal/domain/account"
	"github.com/kaybank-ledger/internal/domain/ledger"
	"github.com/kaybank-ledger/internal/domain/money"
	engine "github.com/kaybank-ledger/internal/ledger_engine/service"
)

// RegisterRequest represents a request to open a new account. Field rules are
// enforced by the credential policy, not by binding tags, so every problem is
// reported at once.
type RegisterRequest struct {
	FullName       string `json:"full_name"`
	Username       string `json:"username"`
	Password       string `json:"password"`
	InitialDeposit string `json:"initial_deposit"` // Decimal string, e.g. "2500.00"
}

// LoginRequest represents a request to open a session
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// AmountRequest represents a deposit or withdrawal
type AmountRequest struct {
	Amount string `json:"amount" binding:"required"`
}

// TransferRequest represents a transfer to another account
type TransferRequest struct {
	TargetAccountNumber string `json:"target_account_number" binding:"required"`
	Amount              string `json:"amount" binding:"required"`
}

// HistoryParams represents query parameters for the transaction history
type HistoryParams struct {
	Limit int `form:"limit" binding:"min=0"`
}

// AccountResponse represents an account in API responses
type AccountResponse struct {
	ID             string `json:"id"`
	FullName       string `json:"full_name"`
	Username       string `json:"username"`
	AccountNumber  string `json:"account_number"`
	Balance        int64  `json:"balance"`
	BalanceDecimal string `json:"balance_decimal"`
	CreatedAt      string `json:"created_at"`
}

// SessionResponse represents an issued session token
type SessionResponse struct {
	Token         string `json:"token"`
	TokenType     string `json:"token_type"`
	ExpiresAt     string `json:"expires_at"`
	AccountID     string `json:"account_id"`
	AccountNumber string `json:"account_number"`
	FullName      string `json:"full_name"`
}

// BalanceResponse represents the caller's current balance
type BalanceResponse struct {
	AccountNumber  string `json:"account_number"`
	Balance        int64  `json:"balance"`
	BalanceDecimal string `json:"balance_decimal"`
}

// MovementResponse represents a committed deposit or withdrawal
type MovementResponse struct {
	Amount         int64  `json:"amount"`
	AmountDecimal  string `json:"amount_decimal"`
	Balance        int64  `json:"balance"`
	BalanceDecimal string `json:"balance_decimal"`
}

// TransferResponse represents a committed transfer
type TransferResponse struct {
	TransferID          string `json:"transfer_id"`
	Amount              int64  `json:"amount"`
	AmountDecimal       string `json:"amount_decimal"`
	Balance             int64  `json:"balance"`
	BalanceDecimal      string `json:"balance_decimal"`
	TargetAccountNumber string `json:"target_account_number"`
	TargetFullName      string `json:"target_full_name"`
}

// RecordResponse represents a ledger record in API responses
type RecordResponse struct {
	ID            string `json:"id"`
	Kind          string `json:"kind"`
	Amount        int64  `json:"amount"`
	AmountDecimal string `json:"amount_decimal"`
	Counterparty  string `json:"counterparty,omitempty"`
	TransferID    string `json:"transfer_id,omitempty"`
	Sequence      int64  `json:"sequence"`
	CreatedAt     string `json:"created_at"`
}

// ReconciliationResponse represents a balance check against the record history
type ReconciliationResponse struct {
	Balance          int64  `json:"balance"`
	BalanceDecimal   string `json:"balance_decimal"`
	RecordSum        int64  `json:"record_sum"`
	RecordSumDecimal string `json:"record_sum_decimal"`
	Consistent       bool   `json:"consistent"`
}

func mapAccountToResponse(acc *account.Account) AccountResponse {
	return AccountResponse{
		ID:             acc.ID.String(),
		FullName:       acc.FullName,
		Username:       acc.Username,
		AccountNumber:  acc.AccountNumber,
		Balance:        acc.Balance,
		BalanceDecimal: money.Format(acc.Balance),
		CreatedAt:      acc.CreatedAt.Format(time.RFC3339),
	}
}

func mapSessionToResponse(session *service.Session) SessionResponse {
	return SessionResponse{
		Token:         session.Token,
		TokenType:     "Bearer",
		ExpiresAt:     session.ExpiresAt.UTC().Format(time.RFC3339),
		AccountID:     session.Identity.AccountID.String(),
		AccountNumber: session.Identity.AccountNumber,
		FullName:      session.Identity.FullName,
	}
}

func mapMovementToResponse(amount, balance int64) MovementResponse {
	return MovementResponse{
		Amount:         amount,
		AmountDecimal:  money.Format(amount),
		Balance:        balance,
		BalanceDecimal: money.Format(balance),
	}
}

func mapTransferToResponse(receipt *engine.TransferReceipt) TransferResponse {
	return TransferResponse{
		TransferID:          receipt.TransferID.String(),
		Amount:              receipt.Amount,
		AmountDecimal:       money.Format(receipt.Amount),
		Balance:             receipt.SourceBalance,
		BalanceDecimal:      money.Format(receipt.SourceBalance),
		TargetAccountNumber: receipt.TargetAccountNumber,
		TargetFullName:      receipt.TargetFullName,
	}
}

func mapRecordToResponse(record *ledger.Record) RecordResponse {
	resp := RecordResponse{
		ID:            record.ID.String(),
		Kind:          string(record.Kind),
		Amount:        record.Amount,
		AmountDecimal: money.Format(record.Amount),
		Counterparty:  record.Counterparty,
		Sequence:      record.Sequence,
		CreatedAt:     record.CreatedAt.Format(time.RFC3339Nano),
	}
	if record.TransferID != uuid.Nil {
		resp.TransferID = record.TransferID.String()
	}
	return resp
}

func mapReconciliationToResponse(r *engine.Reconciliation) ReconciliationResponse {
	return ReconciliationResponse{
		Balance:          r.Balance,
		BalanceDecimal:   money.Format(r.Balance),
		RecordSum:        r.RecordSum,
		RecordSumDecimal: money.Format(r.RecordSum),
		Consistent:       r.Consistent,
	}
}
