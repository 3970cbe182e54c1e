package services

import (
	"context"
	"fmt"
	"log/slog"

	"tally/internal/amqp"
	"tally/internal/core"
	"tally/internal/ledger"
)

// EntryService records transactions in the ledger store and publishes
// entry events for downstream consumers (the Sheets export worker). The
// store write is authoritative; a failed publish is logged and swallowed
// so the ledger never depends on the broker being up.
type EntryService struct {
	store      ledger.Store
	amqpClient *amqp.Client
}

func NewEntryService(store ledger.Store, amqpClient *amqp.Client) *EntryService {
	return &EntryService{
		store:      store,
		amqpClient: amqpClient,
	}
}

// Create persists a plain transaction and announces it to the event
// pipeline. The store rejects invalid entries before writing.
func (s *EntryService) Create(ctx context.Context, e core.Entry) (core.Entry, error) {
	saved, err := s.store.CreateEntry(ctx, e)
	if err != nil {
		return core.Entry{}, fmt.Errorf("save transaction: %w", err)
	}

	s.publishRecorded(ctx, saved.ID)
	return saved, nil
}

// CreateParent persists a recurring template. Parents are not mirrored to
// the export sheet; their occurrences are.
func (s *EntryService) CreateParent(ctx context.Context, p core.Parent) (core.Parent, error) {
	saved, err := s.store.CreateParent(ctx, p)
	if err != nil {
		return core.Parent{}, fmt.Errorf("save recurring parent: %w", err)
	}
	return saved, nil
}

// CreateChild persists one occurrence of a parent. Called by the scheduler.
func (s *EntryService) CreateChild(ctx context.Context, c core.Child) (core.Child, error) {
	saved, err := s.store.CreateChild(ctx, c)
	if err != nil {
		return core.Child{}, fmt.Errorf("save child transaction: %w", err)
	}

	s.publishRecorded(ctx, saved.ID)
	return saved, nil
}

// Delete soft-deletes a transaction and publishes the deletion.
func (s *EntryService) Delete(ctx context.Context, userID, id int64) error {
	if err := s.store.SoftDeleteEntry(ctx, userID, id); err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}

	if s.amqpClient != nil {
		if err := s.amqpClient.PublishEntryDeleted(ctx, id); err != nil {
			slog.ErrorContext(ctx, "Failed to publish delete event",
				"id", id, "error", err)
		}
	}
	return nil
}

// Get returns a single transaction scoped to the user.
func (s *EntryService) Get(ctx context.Context, userID, id int64) (core.Entry, error) {
	return s.store.GetEntry(ctx, userID, id)
}

func (s *EntryService) publishRecorded(ctx context.Context, id int64) {
	if s.amqpClient == nil {
		return
	}
	if err := s.amqpClient.PublishEntryRecorded(ctx, id); err != nil {
		// Entry is saved locally; the mirror just lags.
		slog.ErrorContext(ctx, "Failed to publish entry event",
			"id", id, "error", err)
	}
}
