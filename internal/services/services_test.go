package services

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ledger/internal/cache"
	"ledger/internal/core"
	"ledger/internal/query"
	"ledger/internal/storage"
	"ledger/internal/storage/memory"
	"ledger/internal/storage/storagetest"
)

func ptr[T any](v T) *T { return &v }

// countingStore counts calls and optionally fails them
type countingStore struct {
	storage.Ledger
	calls atomic.Int32
	err   error
}

func (s *countingStore) QueryTransactions(ctx context.Context, f query.Filter, o query.Sort, p query.Page) ([]core.Transaction, int, error) {
	s.calls.Add(1)
	if s.err != nil {
		return nil, 0, s.err
	}
	return s.Ledger.QueryTransactions(ctx, f, o, p)
}

func (s *countingStore) SumTotals(ctx context.Context, f query.Filter) (core.Totals, error) {
	s.calls.Add(1)
	if s.err != nil {
		return core.Totals{}, s.err
	}
	return s.Ledger.SumTotals(ctx, f)
}

func (s *countingStore) SumByCategory(ctx context.Context, f query.Filter) ([]core.CategoryTotals, error) {
	s.calls.Add(1)
	if s.err != nil {
		return nil, s.err
	}
	return s.Ledger.SumByCategory(ctx, f)
}

func (s *countingStore) SumByDay(ctx context.Context, f query.Filter) ([]core.DayTotals, error) {
	s.calls.Add(1)
	if s.err != nil {
		return nil, s.err
	}
	return s.Ledger.SumByDay(ctx, f)
}

func newStore(t *testing.T) *countingStore {
	t.Helper()
	m := memory.New()
	require.NoError(t, storage.Load(context.Background(), m, storagetest.Fixture(), nil))
	return &countingStore{Ledger: m}
}

func fixedClock() time.Time {
	return time.Date(2024, 1, 31, 15, 0, 0, 0, time.UTC)
}

func TestGetReport(t *testing.T) {
	store := newStore(t)
	svc := NewReportService(store, WithClock(fixedClock))

	report, err := svc.GetReport(context.Background(), "alice", ReportRequest{From: "2024-01-01", To: "2024-01-05"})
	require.NoError(t, err)

	assert.Equal(t, "Last 5 days report", report.Label)
	assert.Equal(t, "2023-12-27", report.PreviousPeriod.Start.String())
	assert.Equal(t, "2023-12-31", report.PreviousPeriod.End.String())
	assert.Equal(t, core.PeriodSummary{Income: 255000, Expense: -1950, Net: 253050}, report.Summary)
	assert.Equal(t, core.PeriodSummary{}, report.Previous)
	assert.Equal(t, core.Deltas{Income: 100, Expense: 100, Net: 100}, report.Deltas)

	require.Len(t, report.Categories, 2)
	assert.Equal(t, core.NamedCategory("Food"), report.Categories[0].Key)
	assert.Equal(t, int64(-1500), report.Categories[0].Expense)
	assert.True(t, report.Categories[1].Key.IsUncategorized())
	assert.Equal(t, int64(-450), report.Categories[1].Expense)

	require.Len(t, report.Days, 5)
	assert.Equal(t, core.DailySummary{Date: core.NewDate(2024, 1, 3)}, report.Days[2])

	var dailyIncome int64
	for _, d := range report.Days {
		dailyIncome += d.Income
	}
	assert.Equal(t, report.Summary.Income, dailyIncome)
	assert.Equal(t, int32(4), store.calls.Load())
}

func TestGetReportComparesWithPreviousPeriod(t *testing.T) {
	svc := NewReportService(newStore(t), WithClock(fixedClock))

	report, err := svc.GetReport(context.Background(), "alice", ReportRequest{From: "2024-01-01", To: "2024-01-31"})
	require.NoError(t, err)

	assert.Equal(t, int64(-80000), report.Previous.Expense)
	assert.Equal(t, core.Deltas{Income: 100, Expense: -98, Net: -100}, report.Deltas)
}

func TestGetReportAccountFilter(t *testing.T) {
	svc := NewReportService(newStore(t), WithClock(fixedClock))

	report, err := svc.GetReport(context.Background(), "alice", ReportRequest{From: "2024-01-01", To: "2024-01-31", AccountID: ptr(int64(2))})
	require.NoError(t, err)
	assert.Equal(t, core.PeriodSummary{Income: 5000, Expense: -450, Net: 4550}, report.Summary)

	all, err := svc.GetReport(context.Background(), "alice", ReportRequest{From: "2024-01-01", To: "2024-01-31", AccountID: ptr(int64(0))})
	require.NoError(t, err)
	assert.Equal(t, int64(255000), all.Summary.Income, "non-positive account ids mean no filter")
}

func TestGetReportDefaultWindow(t *testing.T) {
	svc := NewReportService(newStore(t), WithClock(fixedClock))

	report, err := svc.GetReport(context.Background(), "alice", ReportRequest{From: "garbage"})
	require.NoError(t, err)
	assert.Equal(t, "2024-01-02", report.Period.Start.String())
	assert.Equal(t, "2024-01-31", report.Period.End.String())
	assert.Len(t, report.Days, 30)
	assert.Equal(t, "Last 30 days report", report.Label)

	svc = NewReportService(newStore(t), WithClock(fixedClock), WithLookbackDays(6))
	report, err = svc.GetReport(context.Background(), "alice", ReportRequest{})
	require.NoError(t, err)
	assert.Len(t, report.Days, 7)
}

func TestGetReportRejectsInvertedRangeBeforeQuerying(t *testing.T) {
	store := newStore(t)
	svc := NewReportService(store, WithClock(fixedClock))

	_, err := svc.GetReport(context.Background(), "alice", ReportRequest{From: "2024-02-01", To: "2024-01-01"})
	require.ErrorIs(t, err, core.ErrInvalidRange)
	assert.Equal(t, "start date should not be greater than end date", err.Error())
	assert.Zero(t, store.calls.Load())
}

func TestGetReportRequiresOwner(t *testing.T) {
	_, err := NewReportService(newStore(t)).GetReport(context.Background(), "", ReportRequest{})
	assert.ErrorIs(t, err, core.ErrMissingOwner)
}

func TestGetReportPropagatesStoreFailure(t *testing.T) {
	boom := errors.New("disk on fire")
	store := newStore(t)
	store.err = boom

	_, err := NewReportService(store, WithClock(fixedClock)).GetReport(context.Background(), "alice", ReportRequest{})
	assert.ErrorIs(t, err, boom)
}

func TestGetReportUsesCache(t *testing.T) {
	store := newStore(t)
	reports := cache.NewLRUReports(10, time.Minute)
	svc := NewReportService(store, WithClock(fixedClock), WithReportCache(reports))
	req := ReportRequest{From: "2024-01-01", To: "2024-01-05"}

	first, err := svc.GetReport(context.Background(), "alice", req)
	require.NoError(t, err)
	second, err := svc.GetReport(context.Background(), "alice", req)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, int32(4), store.calls.Load())

	require.NoError(t, reports.InvalidateUser(context.Background(), "alice"))
	_, err = svc.GetReport(context.Background(), "alice", req)
	require.NoError(t, err)
	assert.Equal(t, int32(8), store.calls.Load())
}

func TestGetReportEmptyUserHasZeroReport(t *testing.T) {
	svc := NewReportService(newStore(t), WithClock(fixedClock))

	report, err := svc.GetReport(context.Background(), "carol", ReportRequest{From: "2024-01-01", To: "2024-01-03"})
	require.NoError(t, err)
	assert.Equal(t, core.PeriodSummary{}, report.Summary)
	assert.Equal(t, core.Deltas{}, report.Deltas)
	assert.NotNil(t, report.Categories)
	assert.Empty(t, report.Categories)
	assert.Len(t, report.Days, 3)
}

func TestGetTransactions(t *testing.T) {
	svc := NewTransactionService(newStore(t), 3)
	ctx := context.Background()

	tests := []struct {
		name      string
		req       ListRequest
		wantIDs   []int64
		wantTotal int
		wantPage  int
		wantSize  int
		wantPages int
	}{
		{
			name:      "defaults clamp to max page size",
			req:       ListRequest{PageSize: 50},
			wantIDs:   []int64{4, 5, 2},
			wantTotal: 6, wantPage: 1, wantSize: 3, wantPages: 2,
		},
		{
			name:      "second page",
			req:       ListRequest{Page: 2, PageSize: 3},
			wantIDs:   []int64{3, 1, 6},
			wantTotal: 6, wantPage: 2, wantSize: 3, wantPages: 2,
		},
		{
			name:      "search and amount sort",
			req:       ListRequest{Search: "  Coffee ", Sort: "amount", Page: -4},
			wantIDs:   []int64{1, 3},
			wantTotal: 2, wantPage: 1, wantSize: 3, wantPages: 1,
		},
		{
			name:      "date bounds and account",
			req:       ListRequest{From: "2024-01-02", To: "2024-01-05", AccountID: ptr(int64(2)), Sort: "amountDesc"},
			wantIDs:   []int64{4, 3},
			wantTotal: 2, wantPage: 1, wantSize: 3, wantPages: 1,
		},
		{
			name:      "unparseable dates and non-positive ids are ignored",
			req:       ListRequest{From: "yesterday", To: "2024-13-45", AccountID: ptr(int64(0)), CategoryID: ptr(int64(-3))},
			wantIDs:   []int64{4, 5, 2},
			wantTotal: 6, wantPage: 1, wantSize: 3, wantPages: 2,
		},
		{
			name:      "category",
			req:       ListRequest{CategoryID: ptr(int64(11))},
			wantIDs:   []int64{2},
			wantTotal: 1, wantPage: 1, wantSize: 3, wantPages: 1,
		},
		{
			name:      "page past the end",
			req:       ListRequest{Page: 9},
			wantIDs:   []int64{},
			wantTotal: 6, wantPage: 9, wantSize: 3, wantPages: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page, err := svc.GetTransactions(ctx, "alice", tt.req)
			require.NoError(t, err)

			ids := make([]int64, 0, len(page.Items))
			for _, tx := range page.Items {
				assert.Equal(t, core.UserID("alice"), tx.UserID)
				ids = append(ids, tx.ID)
			}
			assert.Equal(t, tt.wantIDs, ids)
			assert.Equal(t, tt.wantTotal, page.TotalCount)
			assert.Equal(t, tt.wantPage, page.Page)
			assert.Equal(t, tt.wantSize, page.PageSize)
			assert.Equal(t, tt.wantPages, page.TotalPages)
		})
	}
}

func TestGetTransactionsErrors(t *testing.T) {
	store := newStore(t)
	svc := NewTransactionService(store, 0)

	_, err := svc.GetTransactions(context.Background(), "", ListRequest{})
	assert.ErrorIs(t, err, core.ErrMissingOwner)

	_, err = svc.GetTransactions(context.Background(), "alice", ListRequest{From: "2024-02-01", To: "2024-01-01"})
	assert.ErrorIs(t, err, core.ErrInvalidRange)
	assert.Zero(t, store.calls.Load())

	store.err = errors.New("connection reset")
	_, err = svc.GetTransactions(context.Background(), "alice", ListRequest{})
	assert.ErrorIs(t, err, store.err)
}

type fakeGenerator struct {
	prompt string
	reply  string
	err    error
}

func (g *fakeGenerator) Generate(_ context.Context, prompt string) (string, error) {
	g.prompt = prompt
	return g.reply, g.err
}

func TestGetInsight(t *testing.T) {
	gen := &fakeGenerator{reply: "Here you go:\n```json\n" +
		`{"spendingHabitsSummary": "Mostly coffee", "budgetaryAlertsAndRisks": "None",
		  "incomeAndSavingsPotential": "Good", "accountHealthAndCashFlow": "Positive",
		  "strategicRecommendations": "Buy a grinder"}` + "\n```\nCheers"}
	store := newStore(t)
	svc := NewInsightService(store, NewReportService(store, WithClock(fixedClock)), gen, 10)

	insight, err := svc.GetInsight(context.Background(), "alice", InsightRequest{From: "2024-01-01", To: "2024-01-31", CategoryID: ptr(int64(10))})
	require.NoError(t, err)
	assert.Equal(t, "Mostly coffee", insight.SpendingHabitsSummary)
	assert.Equal(t, "Buy a grinder", insight.StrategicRecommendations)

	assert.Contains(t, gen.prompt, "between 2024-01-01 and 2024-01-31")
	assert.Contains(t, gen.prompt, "Coffee beans | Roaster | -12.00 | 2024-01-01 | Checking | Food")
	assert.NotContains(t, gen.prompt, "Paycheck")
}

func TestGetInsightErrors(t *testing.T) {
	store := newStore(t)
	periods := NewReportService(store, WithClock(fixedClock))

	_, err := NewInsightService(store, periods, nil, 0).GetInsight(context.Background(), "alice", InsightRequest{})
	assert.ErrorIs(t, err, ErrInsightsDisabled)

	gen := &fakeGenerator{reply: "I cannot help with that."}
	_, err = NewInsightService(store, periods, gen, 0).GetInsight(context.Background(), "alice", InsightRequest{})
	assert.ErrorIs(t, err, ErrMalformedInsight)

	gen = &fakeGenerator{err: errors.New("quota exceeded")}
	_, err = NewInsightService(store, periods, gen, 0).GetInsight(context.Background(), "alice", InsightRequest{})
	assert.ErrorIs(t, err, gen.err)

	_, err = NewInsightService(store, periods, gen, 0).GetInsight(context.Background(), "alice", InsightRequest{From: "2024-03-01", To: "2024-01-01"})
	assert.ErrorIs(t, err, core.ErrInvalidRange)
}

func TestParseInsight(t *testing.T) {
	tests := []struct {
		name    string
		reply   string
		want    string
		wantErr bool
	}{
		{"fenced", "```json\n{\"spendingHabitsSummary\":\"a\"}\n```", "a", false},
		{"bare object", `Sure! {"spendingHabitsSummary":"b"} Hope it helps`, "b", false},
		{"first fenced block wins", "```json {\"spendingHabitsSummary\":\"c\"} ``` ```json {\"spendingHabitsSummary\":\"d\"} ```", "c", false},
		{"no object", "nothing here", "", true},
		{"broken json", "{not json}", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseInsight(tt.reply)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrMalformedInsight)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.SpendingHabitsSummary)
		})
	}
}

func TestBuildInsightPromptWithoutRows(t *testing.T) {
	period := core.DateRange{Start: core.NewDate(2024, 1, 1), End: core.NewDate(2024, 1, 2)}
	prompt := BuildInsightPrompt(period, nil)
	assert.True(t, strings.Contains(prompt, "(no transactions)"))
}
