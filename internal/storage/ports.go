// Package storage defines the persistence capabilities the reporting engine
// consumes and the dataset format used to load fixtures into a store.
// Implementations live in the memory, sqlite and postgres subpackages.
package storage

import (
	"context"

	"ledger/internal/core"
	"ledger/internal/query"
)

// TransactionReader lists rows matching a filter. The returned total counts
// all matches before paging.
type TransactionReader interface {
	QueryTransactions(ctx context.Context, f query.Filter, s query.Sort, p query.Page) ([]core.Transaction, int, error)
}

// SummaryReader computes aggregate sums over rows matching a filter.
type SummaryReader interface {
	SumTotals(ctx context.Context, f query.Filter) (core.Totals, error)
	// SumByCategory returns one row per category id with at least one match.
	SumByCategory(ctx context.Context, f query.Filter) ([]core.CategoryTotals, error)
	// SumByDay returns one row per day with at least one match, ascending.
	SumByDay(ctx context.Context, f query.Filter) ([]core.DayTotals, error)
}

// Ledger is the full read capability.
type Ledger interface {
	TransactionReader
	SummaryReader
}

// Loader writes fixture rows, replacing rows with the same id.
type Loader interface {
	UpsertAccount(ctx context.Context, a core.Account) error
	UpsertCategory(ctx context.Context, c core.Category) error
	UpsertTransaction(ctx context.Context, t core.Transaction) error
}

// Pinger is implemented by stores backed by a remote or file database.
type Pinger interface {
	Ping(ctx context.Context) error
}
