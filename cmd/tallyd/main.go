package main

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"tally/internal/amqp"
	"tally/internal/analytics"
	"tally/internal/config"
	httpapi "tally/internal/http"
	"tally/internal/ledger"
	"tally/internal/ledger/memory"
	"tally/internal/log"
	"tally/internal/services"
	"tally/internal/storage"
)

func main() {
	_ = godotenv.Load()

	logger := log.Setup("tallyd")
	logger.Info("Starting tallyd")

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}

	loc, err := cfg.Location()
	if err != nil {
		logger.Error("Failed to load reference timezone", "error", err)
		os.Exit(1)
	}

	var store ledger.Store
	if cfg.DataBackend == "memory" {
		logger.Warn("Using in-memory backend; data will not survive restarts")
		store = memory.New()
	} else {
		repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
		if err != nil {
			logger.Error("Failed to initialize SQLite repository", "error", err, "path", cfg.SQLiteDBPath)
			os.Exit(1)
		}
		store = repo
	}
	if closer, ok := store.(io.Closer); ok {
		defer closer.Close()
	}

	var amqpClient *amqp.Client
	if cfg.AMQPURL != "" {
		amqpClient, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("Failed to initialize AMQP client, continuing in store-only mode", "error", err)
			amqpClient = nil
		} else {
			defer amqpClient.Close()
		}
	}

	entries := services.NewEntryService(store, amqpClient)
	recurring := services.NewRecurringService(store)
	aggregator := analytics.NewAggregator(store, loc)

	server := httpapi.NewServer(":"+cfg.Port, entries, recurring, aggregator, loc)

	errChan := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		logger.Info("Shutdown signal received", "signal", sig.String())
	case err := <-errChan:
		logger.Error("HTTP server failed", "error", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("Graceful shutdown failed", "error", err)
	}
	logger.Info("tallyd shutdown complete")
}
