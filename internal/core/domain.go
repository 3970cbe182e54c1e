package core

import (
	"errors"
	"time"
)

const (
	Income  Kind = "income"
	Expense Kind = "expense"
)

const (
	Daily   PeriodUnit = "daily"
	Weekly  PeriodUnit = "weekly"
	Monthly PeriodUnit = "monthly"
)

type (
	// Kind determines the sign of a transaction in aggregation:
	// income adds, expense subtracts.
	Kind string

	// PeriodUnit is the calendar unit a recurrence rule repeats on.
	PeriodUnit string

	// RecurrenceRule describes the cadence of a recurring parent:
	// repeat every Interval units.
	RecurrenceRule struct {
		Unit     PeriodUnit
		Interval int
	}

	// Entry is a plain ledger transaction. Parents and children embed it;
	// for aggregation every row is read back as an Entry.
	Entry struct {
		ID          int64 // 0 before persistence
		UserID      int64
		Kind        Kind
		Amount      Money
		Description string
		CategoryID  *int64
		CreatedAt   time.Time // effective date, used for all bucketing
	}

	// Parent is a recurring-obligation template. Its own row counts once
	// in the ledger (the first occurrence); further occurrences are
	// materialized as children.
	Parent struct {
		Entry
		Rule     RecurrenceRule
		Disabled bool
	}

	// Child is one materialized occurrence of a parent. After creation it
	// behaves like a plain entry; ParentID is immutable.
	Child struct {
		Entry
		ParentID int64
	}
)

var (
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrCurrencyMismatch = errors.New("currency mismatch")
	ErrInvalidKind      = errors.New("invalid transaction kind")
	ErrInvalidRule      = errors.New("invalid recurrence rule")
	ErrMissingRule      = errors.New("recurring parent has no recurrence rule")
	ErrEmptyDate        = errors.New("date cannot be zero")
)

func (k Kind) Validate() error {
	switch k {
	case Income, Expense:
		return nil
	}
	return ErrInvalidKind
}

// Signed returns the amount in cents with the kind's sign applied.
func (k Kind) Signed(cents int64) int64 {
	if k == Expense {
		return -cents
	}
	return cents
}

func (r RecurrenceRule) Validate() error {
	switch r.Unit {
	case Daily, Weekly, Monthly:
	default:
		return ErrInvalidRule
	}
	if r.Interval < 1 {
		return ErrInvalidRule
	}
	return nil
}

// AddTo advances t by one rule period. Monthly arithmetic follows
// time.AddDate normalization (Jan 31 + 1 month lands in early March).
func (r RecurrenceRule) AddTo(t time.Time) time.Time {
	switch r.Unit {
	case Daily:
		return t.AddDate(0, 0, r.Interval)
	case Weekly:
		return t.AddDate(0, 0, 7*r.Interval)
	case Monthly:
		return t.AddDate(0, r.Interval, 0)
	}
	return t
}

func (e Entry) Validate() error {
	if err := e.Kind.Validate(); err != nil {
		return err
	}
	if err := e.Amount.Validate(); err != nil {
		return err
	}
	if e.CreatedAt.IsZero() {
		return ErrEmptyDate
	}
	if len(e.Description) > 200 {
		return errors.New("description too long (max 200 characters)")
	}
	return nil
}

func (p Parent) Validate() error {
	if err := p.Entry.Validate(); err != nil {
		return err
	}
	if err := p.Rule.Validate(); err != nil {
		return err
	}
	return nil
}

func (c Child) Validate() error {
	if err := c.Entry.Validate(); err != nil {
		return err
	}
	if c.ParentID == 0 {
		return errors.New("child requires a parent id")
	}
	return nil
}

// Occurrence builds the child materialized from a parent on a given date.
// Kind, amount, description and category are copied verbatim; later parent
// edits never propagate to already-created children.
func (p Parent) Occurrence(now time.Time) Child {
	return Child{
		Entry: Entry{
			UserID:      p.UserID,
			Kind:        p.Kind,
			Amount:      p.Amount,
			Description: p.Description,
			CategoryID:  p.CategoryID,
			CreatedAt:   now,
		},
		ParentID: p.ID,
	}
}
