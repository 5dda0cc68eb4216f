package core

import (
	"encoding/json"
	"fmt"
)

// Totals is the raw income/expense pair a store returns for a filter.
type Totals struct {
	Income  int64
	Expense int64
}

// Add folds one signed amount into the totals.
func (t *Totals) Add(amount int64) {
	if amount >= 0 {
		t.Income += amount
	} else {
		t.Expense += amount
	}
}

// PeriodSummary is the income/expense/net triple for one period.
type PeriodSummary struct {
	Income  int64 `json:"income"`
	Expense int64 `json:"expense"`
	Net     int64 `json:"net"`
}

// Summarize derives the period summary. Expense stays negative, so net is
// the plain sum.
func Summarize(t Totals) PeriodSummary {
	return PeriodSummary{
		Income:  t.Income,
		Expense: t.Expense,
		Net:     t.Income + t.Expense,
	}
}

// CategoryKey names a category bucket. The zero value is the uncategorized
// bucket.
type CategoryKey struct {
	name  string
	named bool
}

func NamedCategory(name string) CategoryKey {
	return CategoryKey{name: name, named: true}
}

func Uncategorized() CategoryKey {
	return CategoryKey{}
}

func (k CategoryKey) IsUncategorized() bool { return !k.named }

// Name returns the display name and whether the key is named.
func (k CategoryKey) Name() (string, bool) { return k.name, k.named }

func (k CategoryKey) String() string {
	if !k.named {
		return "Uncategorized"
	}
	return k.name
}

// Less orders named keys alphabetically, uncategorized last.
func (k CategoryKey) Less(other CategoryKey) bool {
	if k.named != other.named {
		return k.named
	}
	return k.name < other.name
}

// MarshalJSON encodes the uncategorized bucket as null.
func (k CategoryKey) MarshalJSON() ([]byte, error) {
	if !k.named {
		return []byte("null"), nil
	}
	return json.Marshal(k.name)
}

func (k *CategoryKey) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*k = Uncategorized()
		return nil
	}
	var name string
	if err := json.Unmarshal(b, &name); err != nil {
		return fmt.Errorf("category key: %w", err)
	}
	*k = NamedCategory(name)
	return nil
}

// CategoryTotals is a sparse per-category row from a store. A nil
// CategoryID marks uncategorized rows; an empty CategoryName marks a
// dangling category reference.
type CategoryTotals struct {
	CategoryID   *int64
	CategoryName string
	Totals
}

// DayTotals is a sparse per-day row from a store.
type DayTotals struct {
	Date Date
	Totals
}

type CategorySummary struct {
	Key     CategoryKey `json:"categoryName"`
	Expense int64       `json:"expense"`
}

type DailySummary struct {
	Date    Date  `json:"date"`
	Income  int64 `json:"income"`
	Expense int64 `json:"expense"`
}

// Deltas holds percentage changes against the previous period.
type Deltas struct {
	Income  int `json:"incomeDelta"`
	Expense int `json:"expenseDelta"`
	Net     int `json:"netDelta"`
}

// FinanceReport is the assembled report for one period.
type FinanceReport struct {
	Label          string            `json:"label"`
	Period         DateRange         `json:"period"`
	PreviousPeriod DateRange         `json:"previousPeriod"`
	Summary        PeriodSummary     `json:"summary"`
	Previous       PeriodSummary     `json:"previousSummary"`
	Deltas         Deltas            `json:"deltas"`
	Categories     []CategorySummary `json:"categories"`
	Days           []DailySummary    `json:"days"`
}

// ReportLabel renders the display label for a period.
func ReportLabel(r DateRange) string {
	return fmt.Sprintf("Last %d days report", r.Days())
}

// TransactionsPage is one page of a listing.
type TransactionsPage struct {
	Items      []Transaction `json:"data"`
	TotalCount int           `json:"totalCount"`
	Page       int           `json:"currentPage"`
	PageSize   int           `json:"pageSize"`
	TotalPages int           `json:"totalPages"`
}

// NewTransactionsPage derives the page count from the total.
func NewTransactionsPage(items []Transaction, total, page, pageSize int) TransactionsPage {
	if items == nil {
		items = []Transaction{}
	}
	pages := 0
	if pageSize > 0 {
		pages = total / pageSize
		if total%pageSize > 0 {
			pages++
		}
	}
	return TransactionsPage{
		Items:      items,
		TotalCount: total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: pages,
	}
}
