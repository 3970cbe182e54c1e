package main

import (
	"context"
	"errors"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"tally/internal/amqp"
	"tally/internal/config"
	"tally/internal/ledger"
	"tally/internal/ledger/memory"
	"tally/internal/log"
	"tally/internal/services"
	"tally/internal/storage"
)

func main() {
	// .env is for local development; ignore absence in production.
	_ = godotenv.Load()

	logger := log.Setup("recurring-worker")
	logger.Info("Starting recurring-worker")

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
			logger.Warn("Failed to initialize AMQP client, continuing without event publishing", "error", err)
			amqpClient = nil
		} else {
			defer amqpClient.Close()
			logger.Info("AMQP client initialized - new occurrences will be announced")
		}
	} else {
		logger.Info("AMQP disabled - occurrences will not be exported")
	}

	entries := services.NewEntryService(store, amqpClient)
	scheduler := services.NewScheduler(store, entries, loc, cfg.TickFanout)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logger.Info("Recurring scheduler configured",
		"enabled", cfg.SchedulerEnabled,
		"interval", cfg.TickInterval,
		"timeout", cfg.TickTimeout,
		"timezone", cfg.Timezone)

	runTick := func(now time.Time) {
		if !cfg.SchedulerEnabled {
			logger.Debug("Scheduler disabled, skipping tick")
			return
		}
		tickCtx, tickCancel := context.WithTimeout(ctx, cfg.TickTimeout)
		defer tickCancel()

		result, err := scheduler.Tick(tickCtx, now)
		switch {
		case errors.Is(err, services.ErrTickRunning):
			logger.Warn("Previous tick still running, skipped")
		case err != nil:
			logger.Error("Tick failed", "error", err)
		default:
			logger.Info("Tick complete",
				"checked", result.Checked,
				"created", result.Created,
				"failed", len(result.Errors))
		}
	}

	// One pass on startup, then on the ticker.
	runTick(time.Now())

	ticker := time.NewTicker(cfg.TickInterval)
	defer ticker.Stop()

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				runTick(now)
			}
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigChan
	logger.Info("Shutdown signal received", "signal", sig.String())
	cancel()

	// Give an in-flight tick a moment to finish.
	time.Sleep(2 * time.Second)
	logger.Info("Recurring-worker shutdown complete")
}
