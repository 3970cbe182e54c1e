package main

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"tally/internal/config"
	"tally/internal/export"
	"tally/internal/export/google"
	"tally/internal/ledger"
	"tally/internal/ledger/memory"
	"tally/internal/log"
	"tally/internal/storage"
)

func main() {
	_ = godotenv.Load()

	logger := log.Setup("export-worker")
	logger.Info("Starting export-worker")

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}
	if cfg.AMQPURL == "" {
		logger.Error("AMQP_URL is required for the export worker")
		os.Exit(1)
	}

	var store ledger.Store
	if cfg.DataBackend == "memory" {
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

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	appender, err := google.NewFromEnv(ctx)
	if err != nil {
		logger.Error("Failed to initialize Sheets client", "error", err)
		os.Exit(1)
	}

	worker := export.NewWorker(store, appender, cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)

	logger.Info("Export worker consuming",
		"exchange", cfg.AMQPExchange,
		"queue", cfg.AMQPQueue,
		"spreadsheet", cfg.SheetsSpreadsheetID)

	if err := worker.Run(ctx); err != nil {
		logger.Error("Export worker stopped", "error", err)
		os.Exit(1)
	}
	logger.Info("Export-worker shutdown complete")
}
