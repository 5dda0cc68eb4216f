package services

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"ledger/internal/cache"
	"ledger/internal/core"
	"ledger/internal/log"
	"ledger/internal/query"
	"ledger/internal/storage"
)

// ReportRequest carries the raw report parameters. Blank or unparseable
// dates fall back to the default lookback window ending today.
type ReportRequest struct {
	From      string
	To        string
	AccountID *int64
}

// ReportService assembles period reports from store aggregates
type ReportService struct {
	store        storage.SummaryReader
	cache        cache.ReportCache
	now          func() time.Time
	lookbackDays int
	logger       *log.StructuredLogger
}

type ReportOption func(*ReportService)

// WithClock replaces time.Now when resolving "today"
func WithClock(now func() time.Time) ReportOption {
	return func(s *ReportService) { s.now = now }
}

// WithLookbackDays sets how far before today a missing start date reaches
func WithLookbackDays(days int) ReportOption {
	return func(s *ReportService) {
		if days >= 0 {
			s.lookbackDays = days
		}
	}
}

func WithReportCache(c cache.ReportCache) ReportOption {
	return func(s *ReportService) {
		if c != nil {
			s.cache = c
		}
	}
}

func WithReportLogger(l *log.Logger) ReportOption {
	return func(s *ReportService) {
		if l != nil {
			s.logger = log.NewStructuredLogger(l.WithComponent(log.ComponentReport))
		}
	}
}

func NewReportService(store storage.SummaryReader, opts ...ReportOption) *ReportService {
	s := &ReportService{
		store:        store,
		cache:        cache.Nop{},
		now:          time.Now,
		lookbackDays: core.DefaultLookbackDays,
		logger:       log.NewStructuredLogger(log.Discard()),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ResolvePeriod turns raw bounds into the period a report would cover
func (s *ReportService) ResolvePeriod(from, to string) (core.DateRange, error) {
	period := core.ResolveDateRange(from, to, core.DateOf(s.now()), s.lookbackDays)
	if err := period.Validate(); err != nil {
		return core.DateRange{}, err
	}
	return period, nil
}

// GetReport returns the report for user over the resolved period, compared
// with the period of equal length just before it.
func (s *ReportService) GetReport(ctx context.Context, user core.UserID, req ReportRequest) (core.FinanceReport, error) {
	start := time.Now()
	if user == "" {
		return core.FinanceReport{}, core.ErrMissingOwner
	}

	period, err := s.ResolvePeriod(req.From, req.To)
	if err != nil {
		return core.FinanceReport{}, err
	}
	account := positiveID(req.AccountID)

	key := cache.ReportKey{User: user, Period: period, AccountID: account}
	if report, ok := s.cache.Get(ctx, key); ok {
		s.logger.LogReportServed(ctx, string(user), period.Start.String(), period.End.String(), account, true, time.Since(start).Milliseconds())
		return report, nil
	}

	report, err := s.assemble(ctx, user, period, account)
	if err != nil {
		return core.FinanceReport{}, err
	}
	s.cache.Set(ctx, key, report)

	s.logger.LogReportServed(ctx, string(user), period.Start.String(), period.End.String(), account, false, time.Since(start).Milliseconds())
	return report, nil
}

func (s *ReportService) assemble(ctx context.Context, user core.UserID, period core.DateRange, account *int64) (core.FinanceReport, error) {
	previous := period.Previous()

	current, err := query.Build(user, query.Criteria{From: &period.Start, To: &period.End, AccountID: account})
	if err != nil {
		return core.FinanceReport{}, err
	}
	earlier, err := query.Build(user, query.Criteria{From: &previous.Start, To: &previous.End, AccountID: account})
	if err != nil {
		return core.FinanceReport{}, err
	}

	var (
		totals, previousTotals core.Totals
		byCategory             []core.CategoryTotals
		byDay                  []core.DayTotals
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		t, err := s.store.SumTotals(gctx, current)
		if err != nil {
			return fmt.Errorf("current period totals: %w", err)
		}
		totals = t
		return nil
	})
	g.Go(func() error {
		t, err := s.store.SumTotals(gctx, earlier)
		if err != nil {
			return fmt.Errorf("previous period totals: %w", err)
		}
		previousTotals = t
		return nil
	})
	g.Go(func() error {
		rows, err := s.store.SumByCategory(gctx, current.Only(query.ExpenseOnly))
		if err != nil {
			return fmt.Errorf("category breakdown: %w", err)
		}
		byCategory = rows
		return nil
	})
	g.Go(func() error {
		rows, err := s.store.SumByDay(gctx, current)
		if err != nil {
			return fmt.Errorf("daily series: %w", err)
		}
		byDay = rows
		return nil
	})
	if err := g.Wait(); err != nil {
		return core.FinanceReport{}, err
	}

	summary := core.Summarize(totals)
	previousSummary := core.Summarize(previousTotals)
	return core.FinanceReport{
		Label:          core.ReportLabel(period),
		Period:         period,
		PreviousPeriod: previous,
		Summary:        summary,
		Previous:       previousSummary,
		Deltas:         core.Compare(summary, previousSummary),
		Categories:     core.BreakdownByCategory(byCategory),
		Days:           core.BuildDailySeries(period, byDay),
	}, nil
}

// positiveID drops ids that cannot name a row
func positiveID(id *int64) *int64 {
	if id == nil || *id <= 0 {
		return nil
	}
	v := *id
	return &v
}
