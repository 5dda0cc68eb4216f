package memory

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ledger/internal/core"
	"ledger/internal/query"
	"ledger/internal/storage/storagetest"
)

func ptr[T any](v T) *T { return &v }

func seeded(t *testing.T) *Store {
	t.Helper()
	ctx := context.Background()
	s := New()
	require.NoError(t, s.UpsertAccount(ctx, core.Account{ID: 1, Name: "Checking", UserID: "alice"}))
	require.NoError(t, s.UpsertAccount(ctx, core.Account{ID: 2, Name: "Savings", UserID: "alice"}))
	require.NoError(t, s.UpsertAccount(ctx, core.Account{ID: 3, Name: "Wallet", UserID: "bob"}))
	require.NoError(t, s.UpsertCategory(ctx, core.Category{ID: 10, Name: "Food", UserID: "alice"}))
	require.NoError(t, s.UpsertCategory(ctx, core.Category{ID: 11, Name: "Salary", UserID: "alice"}))

	rows := []core.Transaction{
		{ID: 1, Description: "Coffee beans", Amount: -1200, Date: core.NewDate(2024, 1, 1), UserID: "alice", AccountID: 1, CategoryID: ptr(int64(10))},
		{ID: 2, Description: "Paycheck", Amount: 250000, Date: core.NewDate(2024, 1, 2), UserID: "alice", AccountID: 1, CategoryID: ptr(int64(11))},
		{ID: 3, Description: "coffee shop", Amount: -450, Date: core.NewDate(2024, 1, 2), UserID: "alice", AccountID: 2},
		{ID: 4, Description: "Transfer", Amount: 5000, Date: core.NewDate(2024, 1, 5), UserID: "alice", AccountID: 2},
		{ID: 5, Description: "Coffee", Amount: -300, Date: core.NewDate(2024, 1, 2), UserID: "bob", AccountID: 3},
	}
	for _, r := range rows {
		require.NoError(t, s.UpsertTransaction(ctx, r))
	}
	return s
}

func TestStore(t *testing.T) {
	storagetest.Run(t, func(t *testing.T) storagetest.Store { return New() })
}

func TestQueryTransactionsFiltersByOwnerAndSearch(t *testing.T) {
	s := seeded(t)
	f := query.NewFilter("alice").Matching("COFFEE")

	rows, total, err := s.QueryTransactions(context.Background(), f, query.SortDateDesc, query.NewPage(1, 10, 10))
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	require.Len(t, rows, 2)
	for _, r := range rows {
		assert.Equal(t, core.UserID("alice"), r.UserID)
		assert.Contains(t, []int64{1, 3}, r.ID)
	}
	assert.Equal(t, int64(3), rows[0].ID, "newest first")
}

func TestQueryTransactionsEnrichesNames(t *testing.T) {
	s := seeded(t)
	rows, _, err := s.QueryTransactions(context.Background(), query.NewFilter("alice"), query.SortAmountAsc, query.NewPage(1, 10, 10))
	require.NoError(t, err)
	require.NotEmpty(t, rows)

	first := rows[0]
	assert.Equal(t, int64(1), first.ID)
	assert.Equal(t, "Checking", first.Account.Name)
	require.NotNil(t, first.Category)
	assert.Equal(t, "Food", first.Category.Name)

	second := rows[1]
	assert.Equal(t, int64(3), second.ID)
	assert.Nil(t, second.Category)
}

func TestPagesConcatenateToFullSet(t *testing.T) {
	s := seeded(t)
	ctx := context.Background()
	f := query.NewFilter("alice")

	all, total, err := s.QueryTransactions(ctx, f, query.SortAmountDesc, query.NewPage(1, 10, 10))
	require.NoError(t, err)
	require.Equal(t, 4, total)

	var joined []int64
	for page := 1; page <= 2; page++ {
		rows, n, err := s.QueryTransactions(ctx, f, query.SortAmountDesc, query.NewPage(page, 3, 10))
		require.NoError(t, err)
		assert.Equal(t, total, n)
		for _, r := range rows {
			joined = append(joined, r.ID)
		}
	}

	want := make([]int64, len(all))
	for i, r := range all {
		want[i] = r.ID
	}
	assert.Equal(t, want, joined)

	rows, n, err := s.QueryTransactions(ctx, f, query.SortAmountDesc, query.NewPage(5, 3, 10))
	require.NoError(t, err)
	assert.Empty(t, rows)
	assert.Equal(t, 4, n)
}

func TestSums(t *testing.T) {
	s := seeded(t)
	ctx := context.Background()
	f := query.NewFilter("alice").Between(core.DateRange{Start: core.NewDate(2024, 1, 1), End: core.NewDate(2024, 1, 2)})

	totals, err := s.SumTotals(ctx, f)
	require.NoError(t, err)
	assert.Equal(t, core.Totals{Income: 250000, Expense: -1650}, totals)

	byCat, err := s.SumByCategory(ctx, f.Only(query.ExpenseOnly))
	require.NoError(t, err)
	assert.Len(t, byCat, 2)
	for _, row := range byCat {
		if row.CategoryID == nil {
			assert.Equal(t, int64(-450), row.Expense)
		} else {
			assert.Equal(t, "Food", row.CategoryName)
			assert.Equal(t, int64(-1200), row.Expense)
		}
	}

	byDay, err := s.SumByDay(ctx, f)
	require.NoError(t, err)
	require.Len(t, byDay, 2)
	assert.True(t, byDay[0].Date.Equal(core.NewDate(2024, 1, 1)))
	assert.Equal(t, core.Totals{Income: 250000, Expense: -450}, byDay[1].Totals)
}

func TestCancelledContext(t *testing.T) {
	s := seeded(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := s.SumTotals(ctx, query.NewFilter("alice"))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewFromDir(t *testing.T) {
	dir := t.TempDir()

	s, err := NewFromDir(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, 0, s.Len(), "missing seed file yields an empty store")

	seed := `{
	  "accounts": [{"id": 1, "name": "Checking", "userId": "alice"}],
	  "categories": [{"id": 5, "name": "Food", "userId": "alice"}],
	  "transactions": [
	    {"id": 1, "description": "Lunch", "payee": "Deli", "amount": "-12.50", "date": "2024-01-03", "userId": "alice", "accountId": 1, "categoryId": 5},
	    {"id": 2, "description": "Refund", "amount": "3", "date": "2024-01-04", "userId": "alice", "accountId": 1}
	  ]
	}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, SeedFile), []byte(seed), 0o644))

	s, err = NewFromDir(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, 2, s.Len())

	totals, err := s.SumTotals(context.Background(), query.NewFilter("alice"))
	require.NoError(t, err)
	assert.Equal(t, core.Totals{Income: 300, Expense: -1250}, totals)

	require.NoError(t, os.WriteFile(filepath.Join(dir, SeedFile), []byte(`{"accounts": "nope"}`), 0o644))
	_, err = NewFromDir(context.Background(), dir)
	assert.Error(t, err)
}
