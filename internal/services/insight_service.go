package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"ledger/internal/core"
	"ledger/internal/query"
	"ledger/internal/storage"
)

var (
	// ErrInsightsDisabled is returned when no generator is configured
	ErrInsightsDisabled = errors.New("insights are not configured")
	// ErrMalformedInsight is returned when the generator reply holds no usable JSON object
	ErrMalformedInsight = errors.New("insight reply did not contain a JSON object")
)

// TextGenerator turns a prompt into free text
type TextGenerator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// InsightRequest mirrors ReportRequest plus an optional category.
type InsightRequest struct {
	From       string
	To         string
	AccountID  *int64
	CategoryID *int64
}

// Insight is the structured advice extracted from the generator reply.
type Insight struct {
	SpendingHabitsSummary     string `json:"spendingHabitsSummary"`
	BudgetaryAlertsAndRisks   string `json:"budgetaryAlertsAndRisks"`
	IncomeAndSavingsPotential string `json:"incomeAndSavingsPotential"`
	AccountHealthAndCashFlow  string `json:"accountHealthAndCashFlow"`
	StrategicRecommendations  string `json:"strategicRecommendations"`
}

type InsightService struct {
	store           storage.TransactionReader
	periods         *ReportService
	generator       TextGenerator
	maxTransactions int
}

// NewInsightService reads at most maxTransactions rows per prompt. periods
// supplies the clock and lookback shared with reports. A nil generator
// disables the feature.
func NewInsightService(store storage.TransactionReader, periods *ReportService, generator TextGenerator, maxTransactions int) *InsightService {
	if maxTransactions < 1 {
		maxTransactions = 200
	}
	return &InsightService{
		store:           store,
		periods:         periods,
		generator:       generator,
		maxTransactions: maxTransactions,
	}
}

func (s *InsightService) Enabled() bool {
	return s != nil && s.generator != nil
}

func (s *InsightService) GetInsight(ctx context.Context, user core.UserID, req InsightRequest) (Insight, error) {
	if !s.Enabled() {
		return Insight{}, ErrInsightsDisabled
	}
	if user == "" {
		return Insight{}, core.ErrMissingOwner
	}

	period, err := s.periods.ResolvePeriod(req.From, req.To)
	if err != nil {
		return Insight{}, err
	}
	f, err := query.Build(user, query.Criteria{
		From:       &period.Start,
		To:         &period.End,
		AccountID:  positiveID(req.AccountID),
		CategoryID: positiveID(req.CategoryID),
	})
	if err != nil {
		return Insight{}, err
	}

	rows, _, err := s.store.QueryTransactions(ctx, f, query.SortDateDesc, query.NewPage(1, s.maxTransactions, s.maxTransactions))
	if err != nil {
		return Insight{}, fmt.Errorf("load insight transactions: %w", err)
	}

	reply, err := s.generator.Generate(ctx, BuildInsightPrompt(period, rows))
	if err != nil {
		return Insight{}, fmt.Errorf("generate insight: %w", err)
	}
	return ParseInsight(reply)
}

// BuildInsightPrompt renders one seed line per transaction below the
// instructions.
func BuildInsightPrompt(period core.DateRange, rows []core.Transaction) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are a personal finance advisor. Analyse the transactions between %s and %s.\n", period.Start, period.End)
	b.WriteString("Negative amounts are expenses, positive amounts are income.\n")
	b.WriteString("Reply with a single ```json fenced object with exactly these string fields: ")
	b.WriteString("spendingHabitsSummary, budgetaryAlertsAndRisks, incomeAndSavingsPotential, accountHealthAndCashFlow, strategicRecommendations.\n\n")
	b.WriteString("description | payee | amount | date | account | category\n")
	if len(rows) == 0 {
		b.WriteString("(no transactions)\n")
	}
	for _, t := range rows {
		category := "Uncategorized"
		if t.Category != nil {
			category = t.Category.Name
		}
		fmt.Fprintf(&b, "%s | %s | %s | %s | %s | %s\n",
			t.Description, t.Payee, core.FormatAmount(t.Amount), t.Date, t.Account.Name, category)
	}
	return b.String()
}

var fencedJSON = regexp.MustCompile("(?s)```json\\s*(\\{.*?\\})\\s*```")

// ParseInsight extracts the first fenced json block, or failing that the
// outermost brace pair, and decodes it.
func ParseInsight(reply string) (Insight, error) {
	var raw string
	if m := fencedJSON.FindStringSubmatch(reply); m != nil {
		raw = m[1]
	} else {
		open, end := strings.Index(reply, "{"), strings.LastIndex(reply, "}")
		if open < 0 || end < open {
			return Insight{}, ErrMalformedInsight
		}
		raw = reply[open : end+1]
	}

	var insight Insight
	if err := json.Unmarshal([]byte(raw), &insight); err != nil {
		return Insight{}, fmt.Errorf("%w: %v", ErrMalformedInsight, err)
	}
	return insight, nil
}
