// Package memory is an in-process ledger.Store used by tests and the
// zero-configuration dev backend.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"tally/internal/core"
	"tally/internal/ledger"
)

type row struct {
	entry     core.Entry
	recurring bool
	rule      core.RecurrenceRule
	disabled  bool
	parentID  int64
	deleted   bool
}

type Store struct {
	mu     sync.Mutex
	nextID int64
	rows   map[int64]*row
}

func New() *Store {
	return &Store{nextID: 1, rows: make(map[int64]*row)}
}

func (s *Store) insert(r *row) {
	r.entry.ID = s.nextID
	s.nextID++
	s.rows[r.entry.ID] = r
}

func (s *Store) CreateEntry(_ context.Context, e core.Entry) (core.Entry, error) {
	if err := e.Validate(); err != nil {
		return core.Entry{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	r := &row{entry: e}
	s.insert(r)
	return r.entry, nil
}

func (s *Store) GetEntry(_ context.Context, userID, id int64) (core.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rows[id]
	if !ok || r.deleted || r.entry.UserID != userID {
		return core.Entry{}, ledger.ErrNotFound
	}
	return r.entry, nil
}

func (s *Store) GetEntryByID(_ context.Context, id int64) (core.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rows[id]
	if !ok || r.deleted {
		return core.Entry{}, ledger.ErrNotFound
	}
	return r.entry, nil
}

func (s *Store) SoftDeleteEntry(_ context.Context, userID, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rows[id]
	if !ok || r.deleted || r.entry.UserID != userID {
		return ledger.ErrNotFound
	}
	r.deleted = true
	return nil
}

func (s *Store) CreateParent(_ context.Context, p core.Parent) (core.Parent, error) {
	if err := p.Validate(); err != nil {
		return core.Parent{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	r := &row{entry: p.Entry, recurring: true, rule: p.Rule, disabled: p.Disabled}
	s.insert(r)
	p.Entry = r.entry
	return p, nil
}

func (s *Store) GetParent(_ context.Context, userID, id int64) (core.Parent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rows[id]
	if !ok || r.deleted || r.entry.UserID != userID || !r.recurring {
		return core.Parent{}, ledger.ErrNotFound
	}
	return core.Parent{Entry: r.entry, Rule: r.rule, Disabled: r.disabled}, nil
}

func (s *Store) UpdateParent(_ context.Context, p core.Parent) (core.Parent, error) {
	if err := p.Validate(); err != nil {
		return core.Parent{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rows[p.ID]
	if !ok || r.deleted || r.entry.UserID != p.UserID || !r.recurring {
		return core.Parent{}, ledger.ErrNotFound
	}
	r.entry = p.Entry
	r.rule = p.Rule
	r.disabled = p.Disabled
	return p, nil
}

func (s *Store) SetRecurringDisabled(_ context.Context, parentID, userID int64, disabled bool) (core.Parent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rows[parentID]
	if !ok || r.deleted || r.entry.UserID != userID || !r.recurring {
		return core.Parent{}, ledger.ErrNotFound
	}
	r.disabled = disabled
	return core.Parent{Entry: r.entry, Rule: r.rule, Disabled: r.disabled}, nil
}

func (s *Store) FindDueParents(_ context.Context) ([]core.Parent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Parent
	for _, r := range s.rows {
		if r.deleted || !r.recurring || r.disabled {
			continue
		}
		out = append(out, core.Parent{Entry: r.entry, Rule: r.rule, Disabled: r.disabled})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) FindLatestChild(_ context.Context, parentID int64) (*core.Child, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var latest *row
	for _, r := range s.rows {
		if r.deleted || r.parentID != parentID {
			continue
		}
		if latest == nil ||
			r.entry.CreatedAt.After(latest.entry.CreatedAt) ||
			(r.entry.CreatedAt.Equal(latest.entry.CreatedAt) && r.entry.ID > latest.entry.ID) {
			latest = r
		}
	}
	if latest == nil {
		return nil, nil
	}
	return &core.Child{Entry: latest.entry, ParentID: latest.parentID}, nil
}

func (s *Store) CreateChild(_ context.Context, c core.Child) (core.Child, error) {
	if err := c.Validate(); err != nil {
		return core.Child{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.rows[c.ParentID]; !ok || p.deleted || !p.recurring {
		return core.Child{}, ledger.ErrNotFound
	}
	r := &row{entry: c.Entry, parentID: c.ParentID}
	s.insert(r)
	c.Entry = r.entry
	return c, nil
}

func (s *Store) TransactionsInRange(_ context.Context, userID int64, from, to time.Time) ([]core.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Entry
	for _, r := range s.rows {
		if r.deleted || r.entry.UserID != userID {
			continue
		}
		at := r.entry.CreatedAt
		if at.Before(from) || at.After(to) {
			continue
		}
		out = append(out, r.entry)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *Store) SignedTotalThrough(_ context.Context, userID int64, until time.Time) (int64, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var cents, count int64
	for _, r := range s.rows {
		if r.deleted || r.entry.UserID != userID || r.entry.CreatedAt.After(until) {
			continue
		}
		cents += r.entry.Kind.Signed(r.entry.Amount.Cents)
		count++
	}
	return cents, count, nil
}

func (s *Store) SignedTotalBefore(_ context.Context, userID int64, before time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var cents int64
	for _, r := range s.rows {
		if r.deleted || r.entry.UserID != userID || !r.entry.CreatedAt.Before(before) {
			continue
		}
		cents += r.entry.Kind.Signed(r.entry.Amount.Cents)
	}
	return cents, nil
}

var _ ledger.Store = (*Store)(nil)
