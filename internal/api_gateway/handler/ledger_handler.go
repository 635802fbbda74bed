package handler

import (
	"context"
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/kaybank-ledger/internal/api_gateway/middleware"
	"github.com/kaybank-ledger/internal/domain/account"
	"github.com/kaybank-ledger/internal/domain/money"
	"github.com/kaybank-ledger/internal/domain/shared"
	engine "github.com/kaybank-ledger/internal/ledger_engine/service"
)

// LedgerHandler serves balance, movement and history requests for the
// authenticated account
type LedgerHandler struct {
	ledger engine.LedgerEngine
	logger *slog.Logger
}

// NewLedgerHandler creates a new ledger handler
func NewLedgerHandler(logger *slog.Logger, ledger engine.LedgerEngine) *LedgerHandler {
	return &LedgerHandler{
		ledger: ledger,
		logger: logger,
	}
}

// Balance returns the caller's current balance
func (h *LedgerHandler) Balance(c *gin.Context) {
	identity, ok := h.identity(c)
	if !ok {
		return
	}

	balance, err := h.ledger.BalanceOf(c.Request.Context(), identity.AccountID)
	if err != nil {
		RespondDomainError(c, h.logger, "balance", err)
		return
	}

	RespondOK(c, BalanceResponse{
		AccountNumber:  identity.AccountNumber,
		Balance:        balance,
		BalanceDecimal: money.Format(balance),
	})
}

// Deposit credits the caller's account
func (h *LedgerHandler) Deposit(c *gin.Context) {
	h.movement(c, "deposit", h.ledger.Deposit)
}

// Withdraw debits the caller's account
func (h *LedgerHandler) Withdraw(c *gin.Context) {
	h.movement(c, "withdraw", h.ledger.Withdraw)
}

// Transfer moves funds from the caller to the account with the given number
func (h *LedgerHandler) Transfer(c *gin.Context) {
	identity, ok := h.identity(c)
	if !ok {
		return
	}

	var req TransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("Invalid request body", "error", err)
		RespondBadRequest(c, "target_account_number and amount are required")
		return
	}

	amount, err := parseAmount("amount", req.Amount)
	if err != nil {
		RespondDomainError(c, h.logger, "transfer", err)
		return
	}

	receipt, err := h.ledger.Transfer(c.Request.Context(), identity.AccountID, req.TargetAccountNumber, amount)
	if err != nil {
		RespondDomainError(c, h.logger, "transfer", err)
		return
	}

	RespondCreated(c, mapTransferToResponse(receipt))
}

// History returns the caller's most recent records, newest first.
// A missing or zero limit uses the server default.
func (h *LedgerHandler) History(c *gin.Context) {
	identity, ok := h.identity(c)
	if !ok {
		return
	}

	var params HistoryParams
	if err := c.ShouldBindQuery(&params); err != nil {
		h.logger.Warn("Invalid query parameters", "error", err)
		RespondBadRequest(c, "limit must be a non-negative integer")
		return
	}

	records, err := h.ledger.HistoryOf(c.Request.Context(), identity.AccountID, params.Limit)
	if err != nil {
		RespondDomainError(c, h.logger, "history", err)
		return
	}

	items := make([]RecordResponse, 0, len(records))
	for _, record := range records {
		items = append(items, mapRecordToResponse(record))
	}

	RespondWithList(c, items, params.Limit, len(items))
}

// Reconcile compares the caller's balance with the sum of its records
func (h *LedgerHandler) Reconcile(c *gin.Context) {
	identity, ok := h.identity(c)
	if !ok {
		return
	}

	result, err := h.ledger.Reconcile(c.Request.Context(), identity.AccountID)
	if err != nil {
		RespondDomainError(c, h.logger, "reconcile", err)
		return
	}

	RespondOK(c, mapReconciliationToResponse(result))
}

type movementFunc func(ctx context.Context, accountID uuid.UUID, amount int64) (int64, error)

func (h *LedgerHandler) movement(c *gin.Context, op string, apply movementFunc) {
	identity, ok := h.identity(c)
	if !ok {
		return
	}

	var req AmountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("Invalid request body", "error", err)
		RespondBadRequest(c, "amount is required")
		return
	}

	amount, err := parseAmount("amount", req.Amount)
	if err != nil {
		RespondDomainError(c, h.logger, op, err)
		return
	}

	balance, err := apply(c.Request.Context(), identity.AccountID, amount)
	if err != nil {
		RespondDomainError(c, h.logger, op, err)
		return
	}

	RespondCreated(c, mapMovementToResponse(amount, balance))
}

func (h *LedgerHandler) identity(c *gin.Context) (*account.Identity, bool) {
	identity := middleware.GetIdentity(c)
	if identity == nil {
		RespondUnauthorized(c, "")
		return nil, false
	}
	return identity, true
}

// parseAmount converts a decimal request amount to minor units
func parseAmount(field, value string) (int64, error) {
	amount, err := money.ParseAmount(value)
	if err != nil {
		return 0, shared.ValidationError{Field: field, Reason: err.Error()}
	}
	return amount, nil
}
