// Package sqlite implements the ledger store on an embedded SQLite file.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"ledger/internal/core"
	"ledger/internal/query"
	"ledger/internal/storage"
	"ledger/internal/storage/sqlbuild"

	_ "modernc.org/sqlite"
)

var (
	_ storage.Ledger = (*Repository)(nil)
	_ storage.Loader = (*Repository)(nil)
	_ storage.Pinger = (*Repository)(nil)
)

type Repository struct {
	db *sql.DB
}

// NewRepository opens (creating if needed) the database at dbPath and
// migrates it to the latest schema.
func NewRepository(dbPath string) (*Repository, error) {
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

	slog.Info("SQLite ledger store ready", "db_path", dbPath)
	return &Repository{db: db}, nil
}

func (r *Repository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *Repository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *Repository) QueryTransactions(ctx context.Context, f query.Filter, s query.Sort, p query.Page) ([]core.Transaction, int, error) {
	countSQL, countArgs := sqlbuild.CountTransactions(sqlbuild.SQLite, f)
	var total int
	if err := r.db.QueryRowContext(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count transactions: %w", err)
	}

	stmt, args := sqlbuild.ListTransactions(sqlbuild.SQLite, f, s, p)
	rows, err := r.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	out := make([]core.Transaction, 0, p.Size)
	for rows.Next() {
		var (
			t            core.Transaction
			date         string
			userID       string
			categoryID   sql.NullInt64
			receiptID    sql.NullInt64
			categoryName sql.NullString
		)
		if err := rows.Scan(&t.ID, &t.Description, &t.Payee, &t.Amount, &date, &userID,
			&t.AccountID, &categoryID, &receiptID, &t.Account.Name, &categoryName); err != nil {
			return nil, 0, fmt.Errorf("scan transaction: %w", err)
		}
		if t.Date, err = core.ParseDate(date); err != nil {
			return nil, 0, fmt.Errorf("transaction %d has bad date %q: %w", t.ID, date, err)
		}
		t.UserID = core.UserID(userID)
		t.Account.ID = t.AccountID
		if categoryID.Valid {
			id := categoryID.Int64
			t.CategoryID = &id
			if categoryName.Valid {
				t.Category = &core.Ref{ID: id, Name: categoryName.String}
			}
		}
		if receiptID.Valid {
			id := receiptID.Int64
			t.ReceiptID = &id
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate transactions: %w", err)
	}
	return out, total, nil
}

func (r *Repository) SumTotals(ctx context.Context, f query.Filter) (core.Totals, error) {
	stmt, args := sqlbuild.SumTotals(sqlbuild.SQLite, f)
	var t core.Totals
	if err := r.db.QueryRowContext(ctx, stmt, args...).Scan(&t.Income, &t.Expense); err != nil {
		return core.Totals{}, fmt.Errorf("sum totals: %w", err)
	}
	return t, nil
}

func (r *Repository) SumByCategory(ctx context.Context, f query.Filter) ([]core.CategoryTotals, error) {
	stmt, args := sqlbuild.SumByCategory(sqlbuild.SQLite, f)
	rows, err := r.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("sum by category: %w", err)
	}
	defer rows.Close()

	var out []core.CategoryTotals
	for rows.Next() {
		var (
			ct         core.CategoryTotals
			categoryID sql.NullInt64
		)
		if err := rows.Scan(&categoryID, &ct.CategoryName, &ct.Income, &ct.Expense); err != nil {
			return nil, fmt.Errorf("scan category totals: %w", err)
		}
		if categoryID.Valid {
			id := categoryID.Int64
			ct.CategoryID = &id
		}
		out = append(out, ct)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate category totals: %w", err)
	}
	return out, nil
}

func (r *Repository) SumByDay(ctx context.Context, f query.Filter) ([]core.DayTotals, error) {
	stmt, args := sqlbuild.SumByDay(sqlbuild.SQLite, f)
	rows, err := r.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("sum by day: %w", err)
	}
	defer rows.Close()

	var out []core.DayTotals
	for rows.Next() {
		var (
			dt   core.DayTotals
			date string
		)
		if err := rows.Scan(&date, &dt.Income, &dt.Expense); err != nil {
			return nil, fmt.Errorf("scan day totals: %w", err)
		}
		if dt.Date, err = core.ParseDate(date); err != nil {
			return nil, fmt.Errorf("bad date %q: %w", date, err)
		}
		out = append(out, dt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate day totals: %w", err)
	}
	return out, nil
}

func (r *Repository) UpsertAccount(ctx context.Context, a core.Account) error {
	stmt, args := sqlbuild.UpsertAccount(sqlbuild.SQLite, a)
	if _, err := r.db.ExecContext(ctx, stmt, args...); err != nil {
		return fmt.Errorf("upsert account: %w", err)
	}
	return nil
}

func (r *Repository) UpsertCategory(ctx context.Context, c core.Category) error {
	stmt, args := sqlbuild.UpsertCategory(sqlbuild.SQLite, c)
	if _, err := r.db.ExecContext(ctx, stmt, args...); err != nil {
		return fmt.Errorf("upsert category: %w", err)
	}
	return nil
}

func (r *Repository) UpsertTransaction(ctx context.Context, t core.Transaction) error {
	stmt, args := sqlbuild.UpsertTransaction(sqlbuild.SQLite, t)
	if _, err := r.db.ExecContext(ctx, stmt, args...); err != nil {
		return fmt.Errorf("upsert transaction: %w", err)
	}
	return nil
}
