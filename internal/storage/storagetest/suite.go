// Package storagetest holds the behavioural suite every ledger store must
// pass. Store packages call Run from their own tests.
package storagetest

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ledger/internal/core"
	"ledger/internal/query"
	"ledger/internal/storage"
)

// Store is what the suite needs from an implementation.
type Store interface {
	storage.Ledger
	storage.Loader
}

// Fixture is the dataset loaded before each case. Alice owns ids 1-6, bob
// owns id 7.
func Fixture() storage.Dataset {
	food, salary := int64(10), int64(11)
	return storage.Dataset{
		Accounts: []core.Account{
			{ID: 1, Name: "Checking", UserID: "alice"},
			{ID: 2, Name: "Savings", UserID: "alice"},
			{ID: 3, Name: "Wallet", UserID: "bob"},
		},
		Categories: []core.Category{
			{ID: 10, Name: "Food", UserID: "alice"},
			{ID: 11, Name: "Salary", UserID: "alice"},
		},
		Transactions: []storage.TransactionRecord{
			{ID: 1, Description: "Coffee beans", Payee: "Roaster", Amount: "-12.00", Date: core.NewDate(2024, 1, 1), UserID: "alice", AccountID: 1, CategoryID: &food},
			{ID: 2, Description: "Paycheck", Amount: "2500", Date: core.NewDate(2024, 1, 2), UserID: "alice", AccountID: 1, CategoryID: &salary},
			{ID: 3, Description: "coffee shop", Amount: "-4.50", Date: core.NewDate(2024, 1, 2), UserID: "alice", AccountID: 2},
			{ID: 4, Description: "Transfer in", Amount: "50", Date: core.NewDate(2024, 1, 5), UserID: "alice", AccountID: 2},
			{ID: 5, Description: "100% juice_bar", Amount: "-3", Date: core.NewDate(2024, 1, 5), UserID: "alice", AccountID: 1, CategoryID: &food},
			{ID: 6, Description: "Old rent", Amount: "-800", Date: core.NewDate(2023, 12, 20), UserID: "alice", AccountID: 1},
			{ID: 7, Description: "Coffee", Amount: "-3", Date: core.NewDate(2024, 1, 2), UserID: "bob", AccountID: 3},
		},
	}
}

// Run executes the suite. newStore must return an empty store.
func Run(t *testing.T, newStore func(t *testing.T) Store) {
	setup := func(t *testing.T) Store {
		t.Helper()
		s := newStore(t)
		require.NoError(t, storage.Load(context.Background(), s, Fixture(), nil))
		return s
	}
	january := core.DateRange{Start: core.NewDate(2024, 1, 1), End: core.NewDate(2024, 1, 31)}

	t.Run("listing is scoped to owner", func(t *testing.T) {
		s := setup(t)
		rows, total, err := s.QueryTransactions(context.Background(), query.NewFilter("bob"), query.SortDateDesc, query.NewPage(1, 10, 10))
		require.NoError(t, err)
		assert.Equal(t, 1, total)
		require.Len(t, rows, 1)
		assert.Equal(t, int64(7), rows[0].ID)
		assert.Equal(t, "Wallet", rows[0].Account.Name)
	})

	t.Run("search is case insensitive and literal", func(t *testing.T) {
		s := setup(t)
		ctx := context.Background()

		rows, total, err := s.QueryTransactions(ctx, query.NewFilter("alice").Matching("COFFEE"), query.SortDateDesc, query.NewPage(1, 10, 10))
		require.NoError(t, err)
		assert.Equal(t, 2, total)
		assert.Equal(t, []int64{3, 1}, ids(rows))

		rows, _, err = s.QueryTransactions(ctx, query.NewFilter("alice").Matching("0% juice_"), query.SortDateDesc, query.NewPage(1, 10, 10))
		require.NoError(t, err)
		assert.Equal(t, []int64{5}, ids(rows))

		rows, _, err = s.QueryTransactions(ctx, query.NewFilter("alice").Matching("%"), query.SortDateDesc, query.NewPage(1, 10, 10))
		require.NoError(t, err)
		assert.Equal(t, []int64{5}, ids(rows), "wildcards match literally")
	})

	t.Run("search folds non-ASCII case", func(t *testing.T) {
		s := setup(t)
		ctx := context.Background()
		require.NoError(t, s.UpsertAccount(ctx, core.Account{ID: 4, Name: "Carte", UserID: "carol"}))
		require.NoError(t, s.UpsertTransaction(ctx, core.Transaction{
			ID: 8, Description: "ÉPICERIE Dupont", Amount: -2200, Date: core.NewDate(2024, 1, 3), UserID: "carol", AccountID: 4,
		}))

		f := query.NewFilter("carol").Matching("épicerie")
		rows, total, err := s.QueryTransactions(ctx, f, query.SortDateDesc, query.NewPage(1, 10, 10))
		require.NoError(t, err)
		assert.Equal(t, 1, total)
		assert.Equal(t, []int64{8}, ids(rows))

		totals, err := s.SumTotals(ctx, f)
		require.NoError(t, err)
		assert.Equal(t, int64(-2200), totals.Expense)
	})

	t.Run("sorts break ties by id", func(t *testing.T) {
		s := setup(t)
		ctx := context.Background()
		f := query.NewFilter("alice").Between(january)
		page := query.NewPage(1, 10, 10)

		rows, _, err := s.QueryTransactions(ctx, f, query.SortDateDesc, page)
		require.NoError(t, err)
		assert.Equal(t, []int64{4, 5, 2, 3, 1}, ids(rows))

		rows, _, err = s.QueryTransactions(ctx, f, query.SortAmountAsc, page)
		require.NoError(t, err)
		assert.Equal(t, []int64{1, 3, 5, 4, 2}, ids(rows))

		rows, _, err = s.QueryTransactions(ctx, f, query.SortAmountDesc, page)
		require.NoError(t, err)
		assert.Equal(t, []int64{2, 4, 5, 3, 1}, ids(rows))
	})

	t.Run("pages concatenate to the full ordering", func(t *testing.T) {
		s := setup(t)
		ctx := context.Background()
		f := query.NewFilter("alice")

		all, total, err := s.QueryTransactions(ctx, f, query.SortDateDesc, query.NewPage(1, 10, 10))
		require.NoError(t, err)
		require.Equal(t, 6, total)

		var joined []int64
		for n := 1; n <= 3; n++ {
			rows, count, err := s.QueryTransactions(ctx, f, query.SortDateDesc, query.NewPage(n, 2, 10))
			require.NoError(t, err)
			assert.Equal(t, total, count)
			joined = append(joined, ids(rows)...)
		}
		assert.Equal(t, ids(all), joined)
	})

	t.Run("pages past the end are empty", func(t *testing.T) {
		s := setup(t)
		ctx := context.Background()
		for _, n := range []int{7, math.MaxInt / 5, math.MaxInt} {
			rows, total, err := s.QueryTransactions(ctx, query.NewFilter("alice"), query.SortDateDesc, query.NewPage(n, 10, 10))
			require.NoError(t, err, "page %d", n)
			assert.Equal(t, 6, total)
			assert.Empty(t, rows, "page %d", n)
		}
	})

	t.Run("listing enriches names", func(t *testing.T) {
		s := setup(t)
		rows, _, err := s.QueryTransactions(context.Background(), query.NewFilter("alice").WithAccount(1).Between(january), query.SortAmountAsc, query.NewPage(1, 10, 10))
		require.NoError(t, err)
		require.Len(t, rows, 3)
		assert.Equal(t, int64(1), rows[0].ID)
		assert.Equal(t, "Checking", rows[0].Account.Name)
		require.NotNil(t, rows[0].Category)
		assert.Equal(t, "Food", rows[0].Category.Name)
		assert.Equal(t, "Roaster", rows[0].Payee)
		assert.True(t, rows[0].Date.Equal(core.NewDate(2024, 1, 1)))
	})

	t.Run("category filter", func(t *testing.T) {
		s := setup(t)
		rows, total, err := s.QueryTransactions(context.Background(), query.NewFilter("alice").WithCategory(10), query.SortDateDesc, query.NewPage(1, 10, 10))
		require.NoError(t, err)
		assert.Equal(t, 2, total)
		assert.Equal(t, []int64{5, 1}, ids(rows))
	})

	t.Run("totals", func(t *testing.T) {
		s := setup(t)
		ctx := context.Background()

		totals, err := s.SumTotals(ctx, query.NewFilter("alice").Between(january))
		require.NoError(t, err)
		assert.Equal(t, core.Totals{Income: 255000, Expense: -1950}, totals)

		totals, err = s.SumTotals(ctx, query.NewFilter("alice").Between(january).WithAccount(2))
		require.NoError(t, err)
		assert.Equal(t, core.Totals{Income: 5000, Expense: -450}, totals)

		empty, err := s.SumTotals(ctx, query.NewFilter("nobody"))
		require.NoError(t, err)
		assert.Equal(t, core.Totals{}, empty)
	})

	t.Run("sum by category", func(t *testing.T) {
		s := setup(t)
		rows, err := s.SumByCategory(context.Background(), query.NewFilter("alice").Between(january).Only(query.ExpenseOnly))
		require.NoError(t, err)
		require.Len(t, rows, 2)

		got := map[string]int64{}
		for _, r := range rows {
			name := "<none>"
			if r.CategoryID != nil {
				name = r.CategoryName
			}
			got[name] = r.Expense
			assert.Zero(t, r.Income)
		}
		assert.Equal(t, map[string]int64{"Food": -1500, "<none>": -450}, got)
	})

	t.Run("sum by day is sparse and ascending", func(t *testing.T) {
		s := setup(t)
		rows, err := s.SumByDay(context.Background(), query.NewFilter("alice").Between(january))
		require.NoError(t, err)
		require.Len(t, rows, 3)
		assert.True(t, rows[0].Date.Equal(core.NewDate(2024, 1, 1)))
		assert.True(t, rows[1].Date.Equal(core.NewDate(2024, 1, 2)))
		assert.True(t, rows[2].Date.Equal(core.NewDate(2024, 1, 5)))
		assert.Equal(t, core.Totals{Income: 250000, Expense: -450}, rows[1].Totals)
		assert.Equal(t, core.Totals{Income: 5000, Expense: -300}, rows[2].Totals)
	})

	t.Run("upsert replaces rows", func(t *testing.T) {
		s := setup(t)
		ctx := context.Background()
		require.NoError(t, s.UpsertTransaction(ctx, core.Transaction{
			ID: 7, Description: "Coffee", Amount: -500, Date: core.NewDate(2024, 1, 2), UserID: "bob", AccountID: 3,
		}))
		totals, err := s.SumTotals(ctx, query.NewFilter("bob"))
		require.NoError(t, err)
		assert.Equal(t, int64(-500), totals.Expense)
	})
}

func ids(rows []core.Transaction) []int64 {
	out := make([]int64, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.ID)
	}
	return out
}
