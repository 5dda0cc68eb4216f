// Package postgres implements the ledger store on PostgreSQL through a pgx
// connection pool.
package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"ledger/internal/core"
	"ledger/internal/query"
	"ledger/internal/storage"
	"ledger/internal/storage/sqlbuild"
)

var (
	_ storage.Ledger = (*Repository)(nil)
	_ storage.Loader = (*Repository)(nil)
	_ storage.Pinger = (*Repository)(nil)
)

type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository connects to url, verifies the connection and migrates the
// schema.
func NewRepository(ctx context.Context, url string) (*Repository, error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(url); err != nil {
		pool.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	slog.Info("Postgres ledger store ready", "max_conns", pool.Config().MaxConns)
	return &Repository{pool: pool}, nil
}

func (r *Repository) Close() error {
	r.pool.Close()
	return nil
}

func (r *Repository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

func (r *Repository) QueryTransactions(ctx context.Context, f query.Filter, s query.Sort, p query.Page) ([]core.Transaction, int, error) {
	countSQL, countArgs := sqlbuild.CountTransactions(sqlbuild.Postgres, f)
	var total int
	if err := r.pool.QueryRow(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count transactions: %w", err)
	}

	stmt, args := sqlbuild.ListTransactions(sqlbuild.Postgres, f, s, p)
	rows, err := r.pool.Query(ctx, stmt, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list transactions: %w", err)
	}

	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (core.Transaction, error) {
		var (
			t            core.Transaction
			date         time.Time
			userID       string
			categoryName *string
		)
		if err := row.Scan(&t.ID, &t.Description, &t.Payee, &t.Amount, &date, &userID,
			&t.AccountID, &t.CategoryID, &t.ReceiptID, &t.Account.Name, &categoryName); err != nil {
			return core.Transaction{}, err
		}
		t.Date = core.DateOf(date)
		t.UserID = core.UserID(userID)
		t.Account.ID = t.AccountID
		if t.CategoryID != nil && categoryName != nil {
			t.Category = &core.Ref{ID: *t.CategoryID, Name: *categoryName}
		}
		return t, nil
	})
	if err != nil {
		return nil, 0, fmt.Errorf("scan transactions: %w", err)
	}
	return out, total, nil
}

func (r *Repository) SumTotals(ctx context.Context, f query.Filter) (core.Totals, error) {
	stmt, args := sqlbuild.SumTotals(sqlbuild.Postgres, f)
	var t core.Totals
	if err := r.pool.QueryRow(ctx, stmt, args...).Scan(&t.Income, &t.Expense); err != nil {
		return core.Totals{}, fmt.Errorf("sum totals: %w", err)
	}
	return t, nil
}

func (r *Repository) SumByCategory(ctx context.Context, f query.Filter) ([]core.CategoryTotals, error) {
	stmt, args := sqlbuild.SumByCategory(sqlbuild.Postgres, f)
	rows, err := r.pool.Query(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("sum by category: %w", err)
	}

	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (core.CategoryTotals, error) {
		var ct core.CategoryTotals
		err := row.Scan(&ct.CategoryID, &ct.CategoryName, &ct.Income, &ct.Expense)
		return ct, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan category totals: %w", err)
	}
	return out, nil
}

func (r *Repository) SumByDay(ctx context.Context, f query.Filter) ([]core.DayTotals, error) {
	stmt, args := sqlbuild.SumByDay(sqlbuild.Postgres, f)
	rows, err := r.pool.Query(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("sum by day: %w", err)
	}

	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (core.DayTotals, error) {
		var (
			dt   core.DayTotals
			date time.Time
		)
		if err := row.Scan(&date, &dt.Income, &dt.Expense); err != nil {
			return core.DayTotals{}, err
		}
		dt.Date = core.DateOf(date)
		return dt, nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan day totals: %w", err)
	}
	return out, nil
}

func (r *Repository) UpsertAccount(ctx context.Context, a core.Account) error {
	stmt, args := sqlbuild.UpsertAccount(sqlbuild.Postgres, a)
	if _, err := r.pool.Exec(ctx, stmt, args...); err != nil {
		return fmt.Errorf("upsert account: %w", err)
	}
	return nil
}

func (r *Repository) UpsertCategory(ctx context.Context, c core.Category) error {
	stmt, args := sqlbuild.UpsertCategory(sqlbuild.Postgres, c)
	if _, err := r.pool.Exec(ctx, stmt, args...); err != nil {
		return fmt.Errorf("upsert category: %w", err)
	}
	return nil
}

func (r *Repository) UpsertTransaction(ctx context.Context, t core.Transaction) error {
	stmt, args := sqlbuild.UpsertTransaction(sqlbuild.Postgres, t)
	if _, err := r.pool.Exec(ctx, stmt, args...); err != nil {
		return fmt.Errorf("upsert transaction: %w", err)
	}
	return nil
}
