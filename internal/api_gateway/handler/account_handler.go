package handler

import (
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/kaybank-ledger/internal/api_gateway/service"
	engine "github.com/kaybank-ledger/internal/ledger_engine/service"
)

// AccountHandler handles account registration and login
type AccountHandler struct {
	sessions service.SessionService
	logger   *slog.Logger
}

// NewAccountHandler creates a new account handler
func NewAccountHandler(logger *slog.Logger, sessions service.SessionService) *AccountHandler {
	return &AccountHandler{
		sessions: sessions,
		logger:   logger,
	}
}

// Register opens a new account funded with the initial deposit
func (h *AccountHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("Invalid request body", "error", err)
		RespondBadRequest(c, "Invalid request body")
		return
	}

	var initialDeposit int64
	if req.InitialDeposit != "" {
		amount, err := parseAmount("initial_deposit", req.InitialDeposit)
		if err != nil {
			RespondDomainError(c, h.logger, "register", err)
			return
		}
		initialDeposit = amount
	}

	acc, err := h.sessions.Register(c.Request.Context(), engine.RegistrationRequest{
		FullName:       req.FullName,
		Username:       req.Username,
		Password:       req.Password,
		InitialDeposit: initialDeposit,
	})
	if err != nil {
		RespondDomainError(c, h.logger, "register", err)
		return
	}

	RespondCreated(c, mapAccountToResponse(acc))
}

// Login exchanges a username and password for a bearer token
func (h *AccountHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("Invalid request body", "error", err)
		RespondBadRequest(c, "Username and password are required")
		return
	}

	session, err := h.sessions.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		RespondDomainError(c, h.logger, "login", err)
		return
	}

	RespondCreated(c, mapSessionToResponse(session))
}
