package export

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"tally/internal/amqp"
	"tally/internal/ledger"
)

// Worker consumes entry events and mirrors them to the appender. The
// queue carries ids only; each event re-reads the authoritative row from
// the store.
type Worker struct {
	store    ledger.Store
	appender RowAppender

	amqpURL      string
	amqpExchange string
	amqpQueue    string
}

func NewWorker(store ledger.Store, appender RowAppender, amqpURL, exchange, queue string) *Worker {
	return &Worker{
		store:        store,
		appender:     appender,
		amqpURL:      amqpURL,
		amqpExchange: exchange,
		amqpQueue:    queue,
	}
}

// Run consumes until ctx is cancelled, reconnecting across broker
// restarts.
func (w *Worker) Run(ctx context.Context) error {
	err := amqp.ConsumeWithReconnect(ctx, w.amqpURL, w.amqpExchange, w.amqpQueue, func(msg *amqp.EntryEventMessage) error {
		return w.handle(ctx, msg)
	})
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (w *Worker) handle(ctx context.Context, msg *amqp.EntryEventMessage) error {
	switch msg.Op {
	case amqp.OpRecorded:
		entry, err := w.store.GetEntryByID(ctx, msg.ID)
		if errors.Is(err, ledger.ErrNotFound) {
			// Deleted between publish and consume; nothing to mirror.
			slog.WarnContext(ctx, "Entry vanished before export", "id", msg.ID)
			return nil
		}
		if err != nil {
			return fmt.Errorf("load entry %d: %w", msg.ID, err)
		}
		ref, err := w.appender.AppendEntry(ctx, entry)
		if err != nil {
			return fmt.Errorf("append entry %d: %w", msg.ID, err)
		}
		slog.InfoContext(ctx, "Entry exported", "id", msg.ID, "row", ref)
		return nil

	case amqp.OpDeleted:
		if err := w.appender.DeleteEntry(ctx, msg.ID); err != nil {
			return fmt.Errorf("delete exported entry %d: %w", msg.ID, err)
		}
		slog.InfoContext(ctx, "Exported entry removed", "id", msg.ID)
		return nil

	default:
		slog.WarnContext(ctx, "Unknown entry event op", "op", msg.Op, "id", msg.ID)
		return nil
	}
}
