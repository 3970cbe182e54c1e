// Package analytics computes balances and time-bucketed breakdowns from
// the transaction ledger.
//
// Every sum is carried in int64 cents; floats never appear at any stage.
// Amounts cross the API boundary twice: as raw cents and as exact decimal
// strings, so very large ledgers survive JSON round-trips without
// precision loss.
package analytics

import (
	"context"
	"fmt"
	"sort"
	"time"

	"tally/internal/core"
	"tally/internal/ledger"
)

// Aggregator answers balance and breakdown queries against the store.
// The reference zone fixes bucket boundaries; it is injected, never a
// process-global, so tests pin it.
type Aggregator struct {
	store ledger.Store
	loc   *time.Location
}

func NewAggregator(store ledger.Store, loc *time.Location) *Aggregator {
	return &Aggregator{store: store, loc: loc}
}

// BalanceResult is the scalar current balance of a user's ledger.
type BalanceResult struct {
	Cents   int64
	Balance string // decimal string, e.g. "-40.00"
	Count   int64
}

// HistoryPoint is one bucket of the cumulative balance series.
type HistoryPoint struct {
	Bucket     time.Time
	NetCents   int64
	Net        string
	TotalCents int64 // cumulative balance through this bucket
	Total      string
}

// HistoryResult is the balance-over-time series. InitialCents seeds the
// running total with everything dated before the window.
type HistoryResult struct {
	InitialCents int64
	Initial      string
	Points       []HistoryPoint
}

// BreakdownRow is one (bucket, kind[, category]) group. Cents is the
// summed absolute amount; income and expense are reported side by side,
// never netted against each other.
type BreakdownRow struct {
	Bucket     time.Time
	Kind       core.Kind
	CategoryID *int64
	Cents      int64
	Amount     string
}

// Balance returns the signed sum over all of the user's transactions with
// an effective date up to now, plus the number of rows summed.
func (a *Aggregator) Balance(ctx context.Context, userID int64, now time.Time) (BalanceResult, error) {
	cents, count, err := a.store.SignedTotalThrough(ctx, userID, now)
	if err != nil {
		return BalanceResult{}, fmt.Errorf("current balance: %w", err)
	}
	return BalanceResult{Cents: cents, Balance: core.FormatCents(cents), Count: count}, nil
}

// BalanceHistory returns the cumulative balance per bucket over
// [from, to], seeded by the signed sum of everything before from.
// Transactions dated after now are excluded, which keeps the last point
// equal to Balance whenever to >= now. Buckets without transactions are
// omitted; the running total carries across gaps.
func (a *Aggregator) BalanceHistory(ctx context.Context, userID int64, from, to time.Time, g Granularity, now time.Time) (HistoryResult, error) {
	if err := g.Validate(); err != nil {
		return HistoryResult{}, err
	}
	if to.Before(from) {
		return HistoryResult{}, fmt.Errorf("invalid range: end %s before start %s", to, from)
	}

	initial, err := a.store.SignedTotalBefore(ctx, userID, from)
	if err != nil {
		return HistoryResult{}, fmt.Errorf("initial balance: %w", err)
	}

	effectiveTo := to
	if now.Before(to) {
		effectiveTo = now
	}

	net := map[time.Time]int64{}
	if !effectiveTo.Before(from) {
		entries, err := a.store.TransactionsInRange(ctx, userID, from, effectiveTo)
		if err != nil {
			return HistoryResult{}, fmt.Errorf("load transactions: %w", err)
		}
		for _, e := range entries {
			bucket := BucketStart(e.CreatedAt, g, a.loc)
			net[bucket] += e.Kind.Signed(e.Amount.Cents)
		}
	}

	buckets := make([]time.Time, 0, len(net))
	for b := range net {
		buckets = append(buckets, b)
	}
	sort.Slice(buckets, func(i, j int) bool { return buckets[i].Before(buckets[j]) })

	result := HistoryResult{
		InitialCents: initial,
		Initial:      core.FormatCents(initial),
		Points:       make([]HistoryPoint, 0, len(buckets)),
	}
	running := initial
	for _, b := range buckets {
		running += net[b]
		result.Points = append(result.Points, HistoryPoint{
			Bucket:     b,
			NetCents:   net[b],
			Net:        core.FormatCents(net[b]),
			TotalCents: running,
			Total:      core.FormatCents(running),
		})
	}
	return result, nil
}

// Breakdown groups amounts by (bucket, kind) and optionally category.
// Transactions dated after now are excluded, same as BalanceHistory, so
// the signed sum of the rows always matches the history's net change over
// the same range. Rows with no transactions are not emitted.
func (a *Aggregator) Breakdown(ctx context.Context, userID int64, from, to time.Time, g Granularity, byCategory bool, now time.Time) ([]BreakdownRow, error) {
	if err := g.Validate(); err != nil {
		return nil, err
	}
	if to.Before(from) {
		return nil, fmt.Errorf("invalid range: end %s before start %s", to, from)
	}

	effectiveTo := to
	if now.Before(to) {
		effectiveTo = now
	}
	if effectiveTo.Before(from) {
		return nil, nil
	}

	entries, err := a.store.TransactionsInRange(ctx, userID, from, effectiveTo)
	if err != nil {
		return nil, fmt.Errorf("load transactions: %w", err)
	}

	type groupKey struct {
		bucket   int64 // unix seconds of the bucket start
		kind     core.Kind
		category int64 // 0 = uncategorized or category split off
		hasCat   bool
	}
	sums := map[groupKey]*BreakdownRow{}
	for _, e := range entries {
		bucket := BucketStart(e.CreatedAt, g, a.loc)
		key := groupKey{bucket: bucket.Unix(), kind: e.Kind}
		var category *int64
		if byCategory && e.CategoryID != nil {
			key.category = *e.CategoryID
			key.hasCat = true
			category = e.CategoryID
		}
		row, ok := sums[key]
		if !ok {
			row = &BreakdownRow{Bucket: bucket, Kind: e.Kind, CategoryID: category}
			sums[key] = row
		}
		row.Cents += e.Amount.Cents
	}

	rows := make([]BreakdownRow, 0, len(sums))
	for _, row := range sums {
		row.Amount = core.FormatCents(row.Cents)
		rows = append(rows, *row)
	}
	sort.Slice(rows, func(i, j int) bool {
		if !rows[i].Bucket.Equal(rows[j].Bucket) {
			return rows[i].Bucket.Before(rows[j].Bucket)
		}
		if rows[i].Kind != rows[j].Kind {
			return rows[i].Kind < rows[j].Kind
		}
		ci, cj := int64(-1), int64(-1)
		if rows[i].CategoryID != nil {
			ci = *rows[i].CategoryID
		}
		if rows[j].CategoryID != nil {
			cj = *rows[j].CategoryID
		}
		return ci < cj
	})
	return rows, nil
}
