package api_gateway

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kaybank-ledger/internal/api_gateway/handler"
	"github.com/kaybank-ledger/internal/api_gateway/middleware"
)

// setupRouter configures API routes and middleware for the application
func setupRouter(
	logger *slog.Logger,
	r *gin.Engine,
	tokens middleware.TokenParser,
	accountHandler *handler.AccountHandler,
	ledgerHandler *handler.LedgerHandler,
) {
	r.Use(middleware.CorrelationID())
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.Logger(logger))

	v1 := r.Group("/api/v1")
	{
		v1.POST("/accounts", accountHandler.Register)
		v1.POST("/sessions", accountHandler.Login)

		// Operations on the authenticated account
		me := v1.Group("/me", middleware.Authenticate(tokens))
		{
			me.GET("/balance", ledgerHandler.Balance)
			me.POST("/deposits", ledgerHandler.Deposit)
			me.POST("/withdrawals", ledgerHandler.Withdraw)
			me.POST("/transfers", ledgerHandler.Transfer)
			me.GET("/transactions", ledgerHandler.History)
			me.GET("/reconciliation", ledgerHandler.Reconcile)
		}
	}

	// Health check endpoint for monitoring
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "timestamp": time.Now().UTC()})
	})
}
