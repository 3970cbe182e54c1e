package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"tally/internal/core"
	"tally/internal/ledger"
)

// ErrTickRunning is returned when Tick is invoked while the previous tick
// has not finished. Overlapping timer firings are skipped, never run in
// parallel: concurrent ticks could race on read-latest-child/write-child
// and produce duplicate occurrences.
var ErrTickRunning = errors.New("scheduler tick already running")

// ParentError is one isolated per-parent failure inside a tick.
type ParentError struct {
	ParentID int64
	Err      error
}

// TickResult summarizes one scheduling pass.
type TickResult struct {
	Checked int
	Created int
	Errors  []ParentError
}

// Scheduler materializes due occurrences of recurring parents.
//
// Dueness is derived from the latest child alone, so the pass is
// idempotent: a freshly created child immediately becomes the new
// reference and the same parent is not due again within the period. At
// most one child per parent is created per tick; a parent re-enabled
// after a long pause catches up gradually, one occurrence per tick.
type Scheduler struct {
	store   ledger.Store
	entries *EntryService
	loc     *time.Location
	fanout  int

	mu sync.Mutex // serializes ticks
}

func NewScheduler(store ledger.Store, entries *EntryService, loc *time.Location, fanout int) *Scheduler {
	if fanout < 1 {
		fanout = 1
	}
	return &Scheduler{
		store:   store,
		entries: entries,
		loc:     loc,
		fanout:  fanout,
	}
}

// Tick runs one scheduling pass at the given instant. Per-parent failures
// are collected, logged and do not abort the pass; the tick as a whole
// succeeds if it completes.
func (s *Scheduler) Tick(ctx context.Context, now time.Time) (TickResult, error) {
	if !s.mu.TryLock() {
		return TickResult{}, ErrTickRunning
	}
	defer s.mu.Unlock()

	parents, err := s.store.FindDueParents(ctx)
	if err != nil {
		return TickResult{}, fmt.Errorf("fetch active parents: %w", err)
	}

	slog.InfoContext(ctx, "Processing recurring parents",
		"total_active", len(parents),
		"processing_date", now.In(s.loc).Format("2006-01-02"))

	var (
		resMu  sync.Mutex
		result = TickResult{Checked: len(parents)}
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.fanout)

	for _, parent := range parents {
		g.Go(func() error {
			created, err := s.processParent(gctx, parent, now)

			resMu.Lock()
			defer resMu.Unlock()
			if err != nil {
				slog.ErrorContext(gctx, "Failed to process recurring parent",
					"parent_id", parent.ID, "error", err)
				result.Errors = append(result.Errors, ParentError{ParentID: parent.ID, Err: err})
				return nil // isolate: keep processing other parents
			}
			if created {
				result.Created++
			}
			return nil
		})
	}
	_ = g.Wait()

	slog.InfoContext(ctx, "Recurring pass complete",
		"checked", result.Checked,
		"created", result.Created,
		"failed", len(result.Errors))

	return result, nil
}

// processParent decides dueness for one parent and creates at most one
// child for it.
func (s *Scheduler) processParent(ctx context.Context, parent core.Parent, now time.Time) (bool, error) {
	if err := parent.Rule.Validate(); err != nil {
		// Flagged recurring but carries no usable rule: data
		// inconsistency, skipped rather than fatal.
		return false, fmt.Errorf("%w: parent %d", core.ErrMissingRule, parent.ID)
	}

	latest, err := s.store.FindLatestChild(ctx, parent.ID)
	if err != nil {
		return false, fmt.Errorf("find latest child: %w", err)
	}

	reference := parent.CreatedAt
	if latest != nil {
		reference = latest.CreatedAt
	}

	if !IsDue(parent.Rule, reference, now, s.loc) {
		return false, nil
	}

	child, err := s.entries.CreateChild(ctx, parent.Occurrence(now))
	if err != nil {
		return false, fmt.Errorf("create occurrence: %w", err)
	}

	slog.InfoContext(ctx, "Created occurrence from recurring parent",
		"parent_id", parent.ID,
		"child_id", child.ID,
		"amount_cents", child.Amount.Cents,
		"unit", parent.Rule.Unit,
		"interval", parent.Rule.Interval)

	return true, nil
}
