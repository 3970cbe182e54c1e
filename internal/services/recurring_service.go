package services

import (
	"context"
	"fmt"
	"log/slog"

	"tally/internal/core"
	"tally/internal/ledger"
)

// RecurringService administers recurring parents: the two-state
// active/disabled switch and template field updates.
type RecurringService struct {
	store ledger.Store
}

func NewRecurringService(store ledger.Store) *RecurringService {
	return &RecurringService{store: store}
}

// Disable suspends occurrence generation. Children already created stay.
// ledger.ErrNotFound when the parent is missing, foreign-owned or not a
// recurring parent.
func (s *RecurringService) Disable(ctx context.Context, parentID, userID int64) (core.Parent, error) {
	return s.setDisabled(ctx, parentID, userID, true)
}

// Enable resumes generation. The scheduler picks up from the latest child:
// occurrences missed while disabled are not back-filled at once, they
// catch up one per tick.
func (s *RecurringService) Enable(ctx context.Context, parentID, userID int64) (core.Parent, error) {
	return s.setDisabled(ctx, parentID, userID, false)
}

func (s *RecurringService) setDisabled(ctx context.Context, parentID, userID int64, disabled bool) (core.Parent, error) {
	p, err := s.store.SetRecurringDisabled(ctx, parentID, userID, disabled)
	if err != nil {
		return core.Parent{}, fmt.Errorf("set recurring disabled: %w", err)
	}

	slog.InfoContext(ctx, "Recurring parent state changed",
		"parent_id", parentID,
		"user_id", userID,
		"disabled", disabled)

	return p, nil
}

// Get returns a recurring parent scoped to the user.
func (s *RecurringService) Get(ctx context.Context, userID, parentID int64) (core.Parent, error) {
	return s.store.GetParent(ctx, userID, parentID)
}

// Update rewrites a parent's template fields, including its effective
// date and rule. Existing children are never recomputed or removed; a
// cadence change only affects occurrences generated from now on.
func (s *RecurringService) Update(ctx context.Context, p core.Parent) (core.Parent, error) {
	if err := p.Validate(); err != nil {
		return core.Parent{}, err
	}
	updated, err := s.store.UpdateParent(ctx, p)
	if err != nil {
		return core.Parent{}, fmt.Errorf("update recurring parent: %w", err)
	}
	return updated, nil
}
