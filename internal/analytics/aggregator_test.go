package analytics

import (
	"context"
	"testing"
	"time"

	"tally/internal/core"
	"tally/internal/ledger/memory"
)

func record(t *testing.T, store *memory.Store, userID int64, kind core.Kind, cents int64, at time.Time, category *int64) {
	t.Helper()
	_, err := store.CreateEntry(context.Background(), core.Entry{
		UserID:     userID,
		Kind:       kind,
		Amount:     core.Money{Cents: cents, Currency: "EUR"},
		CategoryID: category,
		CreatedAt:  at,
	})
	if err != nil {
		t.Fatalf("create entry: %v", err)
	}
}

func at(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 10, 0, 0, 0, time.UTC)
}

// seedScenario loads the four-day ledger: Day1 +10000/-3000, Day2
// +5000/-2000, Day3 -15000, Day4 +1000. Net change: -4000.
func seedScenario(t *testing.T, store *memory.Store, userID int64) {
	t.Helper()
	record(t, store, userID, core.Income, 10000, at(2024, 5, 1), nil)
	record(t, store, userID, core.Expense, 3000, at(2024, 5, 1), nil)
	record(t, store, userID, core.Income, 5000, at(2024, 5, 2), nil)
	record(t, store, userID, core.Expense, 2000, at(2024, 5, 2), nil)
	record(t, store, userID, core.Expense, 15000, at(2024, 5, 3), nil)
	record(t, store, userID, core.Income, 1000, at(2024, 5, 4), nil)
}

func TestAggregator_Balance(t *testing.T) {
	store := memory.New()
	seedScenario(t, store, 1)
	agg := NewAggregator(store, time.UTC)

	result, err := agg.Balance(context.Background(), 1, at(2024, 5, 5))
	if err != nil {
		t.Fatalf("Balance: %v", err)
	}
	if result.Cents != -4000 {
		t.Errorf("balance = %d, want -4000", result.Cents)
	}
	if result.Count != 6 {
		t.Errorf("count = %d, want 6", result.Count)
	}
	if result.Balance != "-40.00" {
		t.Errorf("balance string = %q, want -40.00", result.Balance)
	}
}

func TestAggregator_Balance_ExcludesFuture(t *testing.T) {
	store := memory.New()
	seedScenario(t, store, 1)
	// Post-dated entry must not count until its day arrives.
	record(t, store, 1, core.Income, 99999, at(2024, 6, 1), nil)

	agg := NewAggregator(store, time.UTC)
	result, err := agg.Balance(context.Background(), 1, at(2024, 5, 5))
	if err != nil {
		t.Fatalf("Balance: %v", err)
	}
	if result.Cents != -4000 || result.Count != 6 {
		t.Errorf("balance = %d (%d rows), want -4000 (6 rows)", result.Cents, result.Count)
	}
}

func TestAggregator_BalanceHistory(t *testing.T) {
	store := memory.New()
	// One entry before the window seeds the initial balance.
	record(t, store, 1, core.Income, 50000, at(2024, 4, 20), nil)
	seedScenario(t, store, 1)

	agg := NewAggregator(store, time.UTC)
	now := at(2024, 5, 10)
	history, err := agg.BalanceHistory(context.Background(), 1,
		time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 5, 31, 23, 59, 59, 0, time.UTC),
		ByDay, now)
	if err != nil {
		t.Fatalf("BalanceHistory: %v", err)
	}

	if history.InitialCents != 50000 {
		t.Errorf("initial = %d, want 50000", history.InitialCents)
	}

	wantNets := []struct {
		bucket time.Time
		net    int64
		total  int64
	}{
		{time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC), 7000, 57000},
		{time.Date(2024, 5, 2, 0, 0, 0, 0, time.UTC), 3000, 60000},
		{time.Date(2024, 5, 3, 0, 0, 0, 0, time.UTC), -15000, 45000},
		{time.Date(2024, 5, 4, 0, 0, 0, 0, time.UTC), 1000, 46000},
	}
	if len(history.Points) != len(wantNets) {
		t.Fatalf("points = %d, want %d", len(history.Points), len(wantNets))
	}
	for i, want := range wantNets {
		p := history.Points[i]
		if !p.Bucket.Equal(want.bucket) || p.NetCents != want.net || p.TotalCents != want.total {
			t.Errorf("point %d = {%v %d %d}, want {%v %d %d}",
				i, p.Bucket, p.NetCents, p.TotalCents, want.bucket, want.net, want.total)
		}
	}
}

// The last cumulative point must equal the scalar balance whenever the
// requested window extends to now or beyond.
func TestAggregator_HistoryMatchesBalance(t *testing.T) {
	store := memory.New()
	record(t, store, 1, core.Expense, 1234, at(2024, 3, 2), nil)
	record(t, store, 1, core.Income, 400000, at(2024, 4, 28), nil)
	seedScenario(t, store, 1)

	agg := NewAggregator(store, time.UTC)
	now := at(2024, 5, 4)

	balance, err := agg.Balance(context.Background(), 1, now)
	if err != nil {
		t.Fatalf("Balance: %v", err)
	}

	history, err := agg.BalanceHistory(context.Background(), 1,
		time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC),
		ByWeek, now)
	if err != nil {
		t.Fatalf("BalanceHistory: %v", err)
	}
	if len(history.Points) == 0 {
		t.Fatal("no points")
	}
	last := history.Points[len(history.Points)-1]
	if last.TotalCents != balance.Cents {
		t.Errorf("last cumulative = %d, scalar balance = %d", last.TotalCents, balance.Cents)
	}
}

func TestAggregator_Breakdown(t *testing.T) {
	store := memory.New()
	seedScenario(t, store, 1)
	// Another user's ledger must not leak in.
	record(t, store, 2, core.Income, 77777, at(2024, 5, 2), nil)

	agg := NewAggregator(store, time.UTC)
	rows, err := agg.Breakdown(context.Background(), 1,
		time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 5, 4, 23, 59, 59, 0, time.UTC),
		ByMonth, false, at(2024, 5, 5))
	if err != nil {
		t.Fatalf("Breakdown: %v", err)
	}

	var income, expense int64
	for _, row := range rows {
		switch row.Kind {
		case core.Income:
			income += row.Cents
		case core.Expense:
			expense += row.Cents
		}
	}
	if income != 16000 {
		t.Errorf("income total = %d, want 16000", income)
	}
	if expense != 20000 {
		t.Errorf("expense total = %d, want 20000", expense)
	}
}

// Summing breakdown rows with signs applied must reproduce the net
// cumulative change of the history over the same range.
func TestAggregator_BreakdownMatchesHistory(t *testing.T) {
	store := memory.New()
	record(t, store, 1, core.Income, 50000, at(2024, 4, 20), nil)
	seedScenario(t, store, 1)

	agg := NewAggregator(store, time.UTC)
	from := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 5, 31, 23, 59, 59, 0, time.UTC)
	now := at(2024, 6, 15)

	rows, err := agg.Breakdown(context.Background(), 1, from, to, ByDay, false, now)
	if err != nil {
		t.Fatalf("Breakdown: %v", err)
	}
	var net int64
	for _, row := range rows {
		net += row.Kind.Signed(row.Cents)
	}

	history, err := agg.BalanceHistory(context.Background(), 1, from, to, ByDay, now)
	if err != nil {
		t.Fatalf("BalanceHistory: %v", err)
	}
	last := history.Points[len(history.Points)-1]
	change := last.TotalCents - history.InitialCents
	if net != change {
		t.Errorf("breakdown net = %d, history change = %d", net, change)
	}
}

// A post-dated entry inside the requested range must stay out of the
// breakdown until its day arrives, keeping the signed row sum equal to
// the history's net change over the same range.
func TestAggregator_BreakdownExcludesFuture(t *testing.T) {
	store := memory.New()
	record(t, store, 1, core.Income, 10000, at(2024, 5, 1), nil)
	record(t, store, 1, core.Expense, 4000, at(2024, 6, 1), nil)

	agg := NewAggregator(store, time.UTC)
	from := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 6, 30, 23, 59, 59, 0, time.UTC)
	now := at(2024, 5, 10)

	rows, err := agg.Breakdown(context.Background(), 1, from, to, ByMonth, false, now)
	if err != nil {
		t.Fatalf("Breakdown: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("rows = %d, want 1 (June expense not yet effective)", len(rows))
	}
	var net int64
	for _, row := range rows {
		net += row.Kind.Signed(row.Cents)
	}

	history, err := agg.BalanceHistory(context.Background(), 1, from, to, ByMonth, now)
	if err != nil {
		t.Fatalf("BalanceHistory: %v", err)
	}
	last := history.Points[len(history.Points)-1]
	change := last.TotalCents - history.InitialCents
	if net != 10000 || net != change {
		t.Errorf("breakdown net = %d, history change = %d, want both 10000", net, change)
	}
}

func TestAggregator_BreakdownByCategory(t *testing.T) {
	store := memory.New()
	groceries, rent := int64(1), int64(2)
	record(t, store, 1, core.Expense, 3000, at(2024, 5, 1), &groceries)
	record(t, store, 1, core.Expense, 2000, at(2024, 5, 1), &groceries)
	record(t, store, 1, core.Expense, 90000, at(2024, 5, 1), &rent)
	record(t, store, 1, core.Income, 1000, at(2024, 5, 1), nil)

	agg := NewAggregator(store, time.UTC)
	rows, err := agg.Breakdown(context.Background(), 1,
		time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 5, 2, 0, 0, 0, 0, time.UTC),
		ByDay, true, at(2024, 5, 3))
	if err != nil {
		t.Fatalf("Breakdown: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("rows = %d, want 3", len(rows))
	}

	// Sorted: expense before income, uncategorized first.
	byCat := map[int64]int64{}
	for _, row := range rows {
		if row.CategoryID != nil {
			byCat[*row.CategoryID] = row.Cents
		}
	}
	if byCat[groceries] != 5000 {
		t.Errorf("groceries = %d, want 5000", byCat[groceries])
	}
	if byCat[rent] != 90000 {
		t.Errorf("rent = %d, want 90000", byCat[rent])
	}
}

func TestAggregator_EmptyWindow(t *testing.T) {
	store := memory.New()
	record(t, store, 1, core.Income, 5000, at(2024, 1, 10), nil)

	agg := NewAggregator(store, time.UTC)
	history, err := agg.BalanceHistory(context.Background(), 1,
		time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC),
		ByDay, at(2024, 4, 1))
	if err != nil {
		t.Fatalf("BalanceHistory: %v", err)
	}
	if len(history.Points) != 0 {
		t.Errorf("points = %d, want 0 (no zero-filling)", len(history.Points))
	}
	if history.InitialCents != 5000 {
		t.Errorf("initial = %d, want 5000", history.InitialCents)
	}
}
