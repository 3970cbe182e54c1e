// Package ledger defines the store port the scheduler and analytics consume.
// Implementations live in internal/storage (SQLite) and ledger/memory.
package ledger

import (
	"context"
	"errors"
	"time"

	"tally/internal/core"
)

// ErrNotFound is returned for lookups and mutations referencing a row that
// does not exist, belongs to another user, or is not of the expected role.
var ErrNotFound = errors.New("transaction not found")

// Store is the durable transaction ledger. Every user-facing query is
// scoped by user id; the scheduler-facing queries (due parents, latest
// child) run across users. All writes are atomic single-row operations.
type Store interface {
	// CreateEntry persists a plain transaction and returns it with its id.
	CreateEntry(ctx context.Context, e core.Entry) (core.Entry, error)

	// GetEntry returns a transaction row by id, scoped to the user.
	GetEntry(ctx context.Context, userID, id int64) (core.Entry, error)

	// GetEntryByID returns a transaction row without user scoping.
	// Internal consumers only (export worker resolving queue messages).
	GetEntryByID(ctx context.Context, id int64) (core.Entry, error)

	// SoftDeleteEntry hides a transaction from all queries without
	// destroying history. Parents stay deletable; the scheduler simply
	// stops seeing them.
	SoftDeleteEntry(ctx context.Context, userID, id int64) error

	// CreateParent persists a recurring template.
	CreateParent(ctx context.Context, p core.Parent) (core.Parent, error)

	// GetParent returns a recurring parent by id, scoped to the user.
	GetParent(ctx context.Context, userID, id int64) (core.Parent, error)

	// UpdateParent rewrites the mutable fields of a parent (amount, kind,
	// description, category, effective date, rule). Already-created
	// children are untouched.
	UpdateParent(ctx context.Context, p core.Parent) (core.Parent, error)

	// SetRecurringDisabled flips the generation switch on a parent.
	// ErrNotFound when the row is missing, foreign-owned, or not a
	// recurring parent.
	SetRecurringDisabled(ctx context.Context, parentID, userID int64, disabled bool) (core.Parent, error)

	// FindDueParents returns every enabled recurring parent, across users.
	FindDueParents(ctx context.Context) ([]core.Parent, error)

	// FindLatestChild returns the most recent occurrence of a parent by
	// effective date, or nil when none has been created yet.
	FindLatestChild(ctx context.Context, parentID int64) (*core.Child, error)

	// CreateChild persists one occurrence of a parent.
	CreateChild(ctx context.Context, c core.Child) (core.Child, error)

	// TransactionsInRange returns all of a user's rows (plain, parent and
	// child alike) with from <= createdAt <= to, ordered by createdAt.
	TransactionsInRange(ctx context.Context, userID int64, from, to time.Time) ([]core.Entry, error)

	// SignedTotalThrough returns the signed sum in cents and the row count
	// over all rows with createdAt <= until.
	SignedTotalThrough(ctx context.Context, userID int64, until time.Time) (cents int64, count int64, err error)

	// SignedTotalBefore returns the signed sum over rows with
	// createdAt strictly before the given instant.
	SignedTotalBefore(ctx context.Context, userID int64, before time.Time) (int64, error)
}
