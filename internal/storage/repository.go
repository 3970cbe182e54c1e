// Package storage implements the ledger store on SQLite.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"tally/internal/core"
	"tally/internal/ledger"

	_ "modernc.org/sqlite"
)

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

const entryColumns = `id, user_id, kind, amount_cents, currency, description,
	category_id, created_at, is_recurring, recurrence_unit,
	recurrence_interval, recurring_disabled, parent_transaction_id`

// rowRecord carries one transactions row including role fields; the
// exported methods narrow it to the entry/parent/child variant the caller
// asked for.
type rowRecord struct {
	entry     core.Entry
	recurring bool
	rule      core.RecurrenceRule
	disabled  bool
	parentID  int64
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(s rowScanner) (rowRecord, error) {
	var (
		rec        rowRecord
		kind       string
		categoryID sql.NullInt64
		unit       sql.NullString
		interval   sql.NullInt64
		parentID   sql.NullInt64
	)
	err := s.Scan(
		&rec.entry.ID,
		&rec.entry.UserID,
		&kind,
		&rec.entry.Amount.Cents,
		&rec.entry.Amount.Currency,
		&rec.entry.Description,
		&categoryID,
		&rec.entry.CreatedAt,
		&rec.recurring,
		&unit,
		&interval,
		&rec.disabled,
		&parentID,
	)
	if err != nil {
		return rowRecord{}, err
	}
	rec.entry.Kind = core.Kind(kind)
	if categoryID.Valid {
		rec.entry.CategoryID = &categoryID.Int64
	}
	if unit.Valid {
		rec.rule.Unit = core.PeriodUnit(unit.String)
	}
	if interval.Valid {
		rec.rule.Interval = int(interval.Int64)
	}
	if parentID.Valid {
		rec.parentID = parentID.Int64
	}
	return rec, nil
}

func nullableCategory(id *int64) sql.NullInt64 {
	if id == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *id, Valid: true}
}

func (r *SQLiteRepository) CreateEntry(ctx context.Context, e core.Entry) (core.Entry, error) {
	if err := e.Validate(); err != nil {
		return core.Entry{}, err
	}
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO transactions
			(user_id, kind, amount_cents, currency, description, category_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.UserID, string(e.Kind), e.Amount.Cents, e.Amount.Currency,
		e.Description, nullableCategory(e.CategoryID), e.CreatedAt.UTC(),
	)
	if err != nil {
		return core.Entry{}, fmt.Errorf("insert transaction: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return core.Entry{}, fmt.Errorf("last insert id: %w", err)
	}
	e.ID = id

	slog.InfoContext(ctx, "Transaction saved",
		"id", e.ID,
		"user_id", e.UserID,
		"kind", e.Kind,
		"amount_cents", e.Amount.Cents)

	return e, nil
}

func (r *SQLiteRepository) GetEntry(ctx context.Context, userID, id int64) (core.Entry, error) {
	rec, err := scanRecord(r.db.QueryRowContext(ctx, `
		SELECT `+entryColumns+` FROM transactions
		WHERE id = ? AND user_id = ? AND deleted_at IS NULL`,
		id, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return core.Entry{}, ledger.ErrNotFound
	}
	if err != nil {
		return core.Entry{}, fmt.Errorf("get transaction: %w", err)
	}
	return rec.entry, nil
}

func (r *SQLiteRepository) GetEntryByID(ctx context.Context, id int64) (core.Entry, error) {
	rec, err := scanRecord(r.db.QueryRowContext(ctx, `
		SELECT `+entryColumns+` FROM transactions
		WHERE id = ? AND deleted_at IS NULL`,
		id))
	if errors.Is(err, sql.ErrNoRows) {
		return core.Entry{}, ledger.ErrNotFound
	}
	if err != nil {
		return core.Entry{}, fmt.Errorf("get transaction by id: %w", err)
	}
	return rec.entry, nil
}

func (r *SQLiteRepository) SoftDeleteEntry(ctx context.Context, userID, id int64) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE transactions SET deleted_at = ?
		WHERE id = ? AND user_id = ? AND deleted_at IS NULL`,
		time.Now().UTC(), id, userID)
	if err != nil {
		return fmt.Errorf("soft delete transaction: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ledger.ErrNotFound
	}
	return nil
}

func (r *SQLiteRepository) CreateParent(ctx context.Context, p core.Parent) (core.Parent, error) {
	if err := p.Validate(); err != nil {
		return core.Parent{}, err
	}
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO transactions
			(user_id, kind, amount_cents, currency, description, category_id,
			 created_at, is_recurring, recurrence_unit, recurrence_interval,
			 recurring_disabled)
		VALUES (?, ?, ?, ?, ?, ?, ?, 1, ?, ?, ?)`,
		p.UserID, string(p.Kind), p.Amount.Cents, p.Amount.Currency,
		p.Description, nullableCategory(p.CategoryID), p.CreatedAt.UTC(),
		string(p.Rule.Unit), p.Rule.Interval, p.Disabled,
	)
	if err != nil {
		return core.Parent{}, fmt.Errorf("insert recurring parent: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return core.Parent{}, fmt.Errorf("last insert id: %w", err)
	}
	p.ID = id

	slog.InfoContext(ctx, "Recurring parent saved",
		"id", p.ID,
		"user_id", p.UserID,
		"unit", p.Rule.Unit,
		"interval", p.Rule.Interval)

	return p, nil
}

func (r *SQLiteRepository) GetParent(ctx context.Context, userID, id int64) (core.Parent, error) {
	rec, err := scanRecord(r.db.QueryRowContext(ctx, `
		SELECT `+entryColumns+` FROM transactions
		WHERE id = ? AND user_id = ? AND is_recurring = 1
		  AND parent_transaction_id IS NULL AND deleted_at IS NULL`,
		id, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return core.Parent{}, ledger.ErrNotFound
	}
	if err != nil {
		return core.Parent{}, fmt.Errorf("get recurring parent: %w", err)
	}
	return core.Parent{Entry: rec.entry, Rule: rec.rule, Disabled: rec.disabled}, nil
}

func (r *SQLiteRepository) UpdateParent(ctx context.Context, p core.Parent) (core.Parent, error) {
	if err := p.Validate(); err != nil {
		return core.Parent{}, err
	}
	res, err := r.db.ExecContext(ctx, `
		UPDATE transactions SET
			kind = ?, amount_cents = ?, currency = ?, description = ?,
			category_id = ?, created_at = ?, recurrence_unit = ?,
			recurrence_interval = ?, recurring_disabled = ?
		WHERE id = ? AND user_id = ? AND is_recurring = 1
		  AND parent_transaction_id IS NULL AND deleted_at IS NULL`,
		string(p.Kind), p.Amount.Cents, p.Amount.Currency, p.Description,
		nullableCategory(p.CategoryID), p.CreatedAt.UTC(), string(p.Rule.Unit),
		p.Rule.Interval, p.Disabled,
		p.ID, p.UserID,
	)
	if err != nil {
		return core.Parent{}, fmt.Errorf("update recurring parent: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return core.Parent{}, fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return core.Parent{}, ledger.ErrNotFound
	}
	return p, nil
}

func (r *SQLiteRepository) SetRecurringDisabled(ctx context.Context, parentID, userID int64, disabled bool) (core.Parent, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE transactions SET recurring_disabled = ?
		WHERE id = ? AND user_id = ? AND is_recurring = 1
		  AND parent_transaction_id IS NULL AND deleted_at IS NULL`,
		disabled, parentID, userID)
	if err != nil {
		return core.Parent{}, fmt.Errorf("set recurring disabled: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return core.Parent{}, fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return core.Parent{}, ledger.ErrNotFound
	}

	slog.InfoContext(ctx, "Recurring parent toggled",
		"id", parentID,
		"user_id", userID,
		"disabled", disabled)

	return r.GetParent(ctx, userID, parentID)
}

func (r *SQLiteRepository) FindDueParents(ctx context.Context) ([]core.Parent, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+entryColumns+` FROM transactions
		WHERE is_recurring = 1 AND recurring_disabled = 0
		  AND parent_transaction_id IS NULL AND deleted_at IS NULL
		ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("find due parents: %w", err)
	}
	defer rows.Close()

	var parents []core.Parent
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan parent: %w", err)
		}
		parents = append(parents, core.Parent{Entry: rec.entry, Rule: rec.rule, Disabled: rec.disabled})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate parents: %w", err)
	}
	return parents, nil
}

func (r *SQLiteRepository) FindLatestChild(ctx context.Context, parentID int64) (*core.Child, error) {
	rec, err := scanRecord(r.db.QueryRowContext(ctx, `
		SELECT `+entryColumns+` FROM transactions
		WHERE parent_transaction_id = ? AND deleted_at IS NULL
		ORDER BY created_at DESC, id DESC
		LIMIT 1`,
		parentID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find latest child: %w", err)
	}
	return &core.Child{Entry: rec.entry, ParentID: rec.parentID}, nil
}

func (r *SQLiteRepository) CreateChild(ctx context.Context, c core.Child) (core.Child, error) {
	if err := c.Validate(); err != nil {
		return core.Child{}, err
	}
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO transactions
			(user_id, kind, amount_cents, currency, description, category_id,
			 created_at, parent_transaction_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		c.UserID, string(c.Kind), c.Amount.Cents, c.Amount.Currency,
		c.Description, nullableCategory(c.CategoryID), c.CreatedAt.UTC(),
		c.ParentID,
	)
	if err != nil {
		return core.Child{}, fmt.Errorf("insert child transaction: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return core.Child{}, fmt.Errorf("last insert id: %w", err)
	}
	c.ID = id

	slog.InfoContext(ctx, "Child transaction saved",
		"id", c.ID,
		"parent_id", c.ParentID,
		"amount_cents", c.Amount.Cents)

	return c, nil
}

func (r *SQLiteRepository) TransactionsInRange(ctx context.Context, userID int64, from, to time.Time) ([]core.Entry, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+entryColumns+` FROM transactions
		WHERE user_id = ? AND deleted_at IS NULL
		  AND created_at >= ? AND created_at <= ?
		ORDER BY created_at, id`,
		userID, from.UTC(), to.UTC())
	if err != nil {
		return nil, fmt.Errorf("transactions in range: %w", err)
	}
	defer rows.Close()

	var entries []core.Entry
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		entries = append(entries, rec.entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transactions: %w", err)
	}
	return entries, nil
}

func (r *SQLiteRepository) SignedTotalThrough(ctx context.Context, userID int64, until time.Time) (int64, int64, error) {
	var cents, count int64
	err := r.db.QueryRowContext(ctx, `
		SELECT
			COALESCE(SUM(CASE WHEN kind = 'income' THEN amount_cents ELSE -amount_cents END), 0),
			COUNT(*)
		FROM transactions
		WHERE user_id = ? AND deleted_at IS NULL AND created_at <= ?`,
		userID, until.UTC()).Scan(&cents, &count)
	if err != nil {
		return 0, 0, fmt.Errorf("signed total through: %w", err)
	}
	return cents, count, nil
}

func (r *SQLiteRepository) SignedTotalBefore(ctx context.Context, userID int64, before time.Time) (int64, error) {
	var cents int64
	err := r.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(CASE WHEN kind = 'income' THEN amount_cents ELSE -amount_cents END), 0)
		FROM transactions
		WHERE user_id = ? AND deleted_at IS NULL AND created_at < ?`,
		userID, before.UTC()).Scan(&cents)
	if err != nil {
		return 0, fmt.Errorf("signed total before: %w", err)
	}
	return cents, nil
}

var _ ledger.Store = (*SQLiteRepository)(nil)
