// Package query describes which ledger rows a request wants and how they
// should be ordered and paged. Stores translate these values into their own
// query language; the in-memory store evaluates them directly.
package query

import (
	"strings"

	"ledger/internal/core"
)

// Direction restricts rows by the sign of their amount.
type Direction int

const (
	AllDirections Direction = iota
	IncomeOnly              // amount >= 0
	ExpenseOnly             // amount < 0
)

// Filter is an immutable row predicate. Every With* method returns a
// modified copy.
type Filter struct {
	owner core.UserID

	start, end       core.Date
	hasStart, hasEnd bool

	accountID   int64
	hasAccount  bool
	categoryID  int64
	hasCategory bool

	search    string
	direction Direction
}

// NewFilter scopes a filter to one owner.
func NewFilter(owner core.UserID) Filter {
	return Filter{owner: owner}
}

func (f Filter) Between(r core.DateRange) Filter {
	return f.From(r.Start).To(r.End)
}

func (f Filter) From(d core.Date) Filter {
	f.start, f.hasStart = d, true
	return f
}

func (f Filter) To(d core.Date) Filter {
	f.end, f.hasEnd = d, true
	return f
}

func (f Filter) WithAccount(id int64) Filter {
	f.accountID, f.hasAccount = id, true
	return f
}

func (f Filter) WithCategory(id int64) Filter {
	f.categoryID, f.hasCategory = id, true
	return f
}

// Matching sets the description search term. It is trimmed and lowercased;
// a blank term clears the search.
func (f Filter) Matching(term string) Filter {
	f.search = strings.ToLower(strings.TrimSpace(term))
	return f
}

func (f Filter) Only(d Direction) Filter {
	f.direction = d
	return f
}

func (f Filter) Owner() core.UserID { return f.owner }
func (f Filter) Start() (core.Date, bool) { return f.start, f.hasStart }
func (f Filter) End() (core.Date, bool) { return f.end, f.hasEnd }
func (f Filter) AccountID() (int64, bool) { return f.accountID, f.hasAccount }
func (f Filter) CategoryID() (int64, bool) { return f.categoryID, f.hasCategory }
func (f Filter) Search() string { return f.search }
func (f Filter) Direction() Direction { return f.direction }

// Validate checks the owner is set and the bounds are ordered.
func (f Filter) Validate() error {
	if strings.TrimSpace(string(f.owner)) == "" {
		return core.ErrMissingOwner
	}
	if f.hasStart && f.hasEnd && f.start.After(f.end) {
		return core.ErrInvalidRange
	}
	return nil
}

// Matches evaluates the filter against a single row.
func (f Filter) Matches(t core.Transaction) bool {
	if t.UserID != f.owner {
		return false
	}
	if f.hasStart && t.Date.Before(f.start) {
		return false
	}
	if f.hasEnd && t.Date.After(f.end) {
		return false
	}
	if f.hasAccount && t.AccountID != f.accountID {
		return false
	}
	if f.hasCategory && (t.CategoryID == nil || *t.CategoryID != f.categoryID) {
		return false
	}
	if f.search != "" && !strings.Contains(strings.ToLower(t.Description), f.search) {
		return false
	}
	switch f.direction {
	case IncomeOnly:
		return t.IsIncome()
	case ExpenseOnly:
		return !t.IsIncome()
	}
	return true
}

// Criteria are the optional, already-parsed inputs a caller may supply.
// Nil pointers and blank strings mean "no restriction".
type Criteria struct {
	From       *core.Date
	To         *core.Date
	AccountID  *int64
	CategoryID *int64
	Search     string
}

// Build is the one place request criteria become a Filter. It validates the
// result, so an inverted range is rejected before any store is queried.
func Build(owner core.UserID, c Criteria) (Filter, error) {
	f := NewFilter(owner)
	if c.From != nil {
		f = f.From(*c.From)
	}
	if c.To != nil {
		f = f.To(*c.To)
	}
	if c.AccountID != nil {
		f = f.WithAccount(*c.AccountID)
	}
	if c.CategoryID != nil {
		f = f.WithCategory(*c.CategoryID)
	}
	f = f.Matching(c.Search)
	if err := f.Validate(); err != nil {
		return Filter{}, err
	}
	return f, nil
}
