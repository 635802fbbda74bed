package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/kaybank-ledger/internal/api_gateway"
	"github.com/kaybank-ledger/internal/api_gateway/service"
	"github.com/kaybank-ledger/internal/config"
	"github.com/kaybank-ledger/internal/data/postgres"
	"github.com/kaybank-ledger/internal/ledger_engine/components"
	"github.com/kaybank-ledger/internal/logger"
	"github.com/kaybank-ledger/internal/platform/persistence"
	"github.com/kaybank-ledger/internal/platform/tokens"
)

func main() {
	appCtx, cancelAppCtx := context.WithCancel(context.Background())
	defer cancelAppCtx()

	cfg, err := config.LoadConfig("api_gateway")
	if err != nil {
		// logger is not initialized yet, so we use fmt
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.NewLogger(cfg)

	// Migrations run inside NewPostgresDB
	postgresDB, err := persistence.NewPostgresDB(appCtx, log, &cfg.Postgres)
	if err != nil {
		log.Error("Failed to initialize PostgreSQL", "error", err)
		os.Exit(1)
	}

	ledgerStore := postgres.NewStore(log, postgresDB)

	services, err := components.CreateServices(ledgerStore, cfg, log)
	if err != nil {
		log.Error("Failed to initialize ledger services", "error", err)
		os.Exit(1)
	}

	issuer := tokens.NewIssuer(cfg.Auth)
	sessionService := service.NewSessionService(services.Registrar, services.Auth, issuer, log.With("component", "sessions"))

	server := api_gateway.NewServer(log, cfg, sessionService, services.Ledger, issuer)
	log.Info("REST server initialized")

	errChan := make(chan error, 1)

	go func() {
		if err := server.Start(); err != nil {
			errChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	var serverErr error
	select {
	case <-quit:
		log.Info("Shutdown signal received")
	case err := <-errChan:
		log.Error("Server error occurred", "error", err)
		serverErr = err
	}

	log.Info("Starting graceful shutdown...")

	// Drain in-flight requests before the pool goes away
	if err = server.Stop(context.Background()); err != nil {
		log.Error("Error during server shutdown", "error", err)
	}

	cancelAppCtx()
	postgresDB.Close()

	if serverErr != nil {
		log.Error("HTTP server shutdown with errors", "error", serverErr)
	}
	if err != nil {
		log.Error("Server shutdown completed with errors")
	} else {
		log.Info("Server shutdown completed successfully")
	}
}
