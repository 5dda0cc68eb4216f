// Package sqlbuild renders query.Filter, query.Sort and query.Page into SQL
// shared by the SQLite and Postgres stores. Only placeholders, date
// parameters, case folding and sum casts differ between dialects.
package sqlbuild

import (
	"fmt"
	"strconv"
	"strings"

	"ledger/internal/core"
	"ledger/internal/query"
)

type Dialect struct {
	Name        string
	placeholder func(n int) string
	dateArg     func(d core.Date) any
	lower       string
	sumSuffix   string
}

// SQLiteLower is the Unicode-aware lowercase function the SQLite store
// registers. The built-in LOWER only folds ASCII.
const SQLiteLower = "unicode_lower"

var (
	// SQLite stores dates as YYYY-MM-DD text, which sorts chronologically.
	SQLite = Dialect{
		Name:        "sqlite",
		placeholder: func(int) string { return "?" },
		dateArg:     func(d core.Date) any { return d.String() },
		lower:       SQLiteLower,
	}

	Postgres = Dialect{
		Name:        "postgres",
		placeholder: func(n int) string { return "$" + strconv.Itoa(n) },
		dateArg:     func(d core.Date) any { return d.Time },
		lower:       "LOWER",
		sumSuffix:   "::bigint",
	}
)

// Builder accumulates positional arguments for one statement.
type Builder struct {
	d    Dialect
	args []any
}

func New(d Dialect) *Builder {
	return &Builder{d: d}
}

// Arg records v and returns its placeholder.
func (b *Builder) Arg(v any) string {
	b.args = append(b.args, v)
	return b.d.placeholder(len(b.args))
}

func (b *Builder) Date(d core.Date) string {
	return b.Arg(b.d.dateArg(d))
}

func (b *Builder) Args() []any {
	return b.args
}

// Where renders f against the transactions table aliased as t.
func (b *Builder) Where(f query.Filter) string {
	conds := []string{"t.user_id = " + b.Arg(string(f.Owner()))}
	if d, ok := f.Start(); ok {
		conds = append(conds, "t.date >= "+b.Date(d))
	}
	if d, ok := f.End(); ok {
		conds = append(conds, "t.date <= "+b.Date(d))
	}
	if id, ok := f.AccountID(); ok {
		conds = append(conds, "t.account_id = "+b.Arg(id))
	}
	if id, ok := f.CategoryID(); ok {
		conds = append(conds, "t.category_id = "+b.Arg(id))
	}
	if s := f.Search(); s != "" {
		conds = append(conds, b.d.lower+"(t.description) LIKE "+b.Arg("%"+EscapeLike(s)+"%")+` ESCAPE '\'`)
	}
	switch f.Direction() {
	case query.IncomeOnly:
		conds = append(conds, "t.amount >= 0")
	case query.ExpenseOnly:
		conds = append(conds, "t.amount < 0")
	}
	return strings.Join(conds, " AND ")
}

// OrderBy renders s with the id tie-break.
func OrderBy(s query.Sort) string {
	switch s {
	case query.SortAmountAsc:
		return "t.amount ASC, t.id ASC"
	case query.SortAmountDesc:
		return "t.amount DESC, t.id ASC"
	default:
		return "t.date DESC, t.id ASC"
	}
}

// EscapeLike escapes LIKE wildcards so the term matches literally.
func EscapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

func (b *Builder) sum(expr string) string {
	return "COALESCE(SUM(" + expr + "), 0)" + b.d.sumSuffix
}

func (b *Builder) incomeExpense() string {
	return b.sum("CASE WHEN t.amount >= 0 THEN t.amount ELSE 0 END") + ", " +
		b.sum("CASE WHEN t.amount < 0 THEN t.amount ELSE 0 END")
}

// ListTransactions selects one page of enriched rows. Scan order: id,
// description, payee, amount, date, user_id, account_id, category_id,
// receipt_id, account name, category name (nullable).
func ListTransactions(d Dialect, f query.Filter, s query.Sort, p query.Page) (string, []any) {
	b := New(d)
	where := b.Where(f)
	stmt := fmt.Sprintf(`
		SELECT t.id, t.description, t.payee, t.amount, t.date, t.user_id,
		       t.account_id, t.category_id, t.receipt_id,
		       COALESCE(a.name, ''), c.name
		FROM transactions t
		LEFT JOIN accounts a ON a.id = t.account_id
		LEFT JOIN categories c ON c.id = t.category_id
		WHERE %s
		ORDER BY %s
		LIMIT %s OFFSET %s`, where, OrderBy(s), b.Arg(p.Size), b.Arg(p.Offset()))
	return stmt, b.Args()
}

func CountTransactions(d Dialect, f query.Filter) (string, []any) {
	b := New(d)
	return "SELECT COUNT(*) FROM transactions t WHERE " + b.Where(f), b.Args()
}

// SumTotals selects income then expense.
func SumTotals(d Dialect, f query.Filter) (string, []any) {
	b := New(d)
	where := b.Where(f)
	return "SELECT " + b.incomeExpense() + " FROM transactions t WHERE " + where, b.Args()
}

// SumByCategory selects category_id, category name, income, expense.
func SumByCategory(d Dialect, f query.Filter) (string, []any) {
	b := New(d)
	where := b.Where(f)
	stmt := fmt.Sprintf(`
		SELECT t.category_id, COALESCE(c.name, ''), %s
		FROM transactions t
		LEFT JOIN categories c ON c.id = t.category_id
		WHERE %s
		GROUP BY t.category_id, c.name`, b.incomeExpense(), where)
	return stmt, b.Args()
}

// SumByDay selects date, income, expense in ascending date order.
func SumByDay(d Dialect, f query.Filter) (string, []any) {
	b := New(d)
	where := b.Where(f)
	stmt := fmt.Sprintf(`
		SELECT t.date, %s
		FROM transactions t
		WHERE %s
		GROUP BY t.date
		ORDER BY t.date`, b.incomeExpense(), where)
	return stmt, b.Args()
}

func UpsertAccount(d Dialect, a core.Account) (string, []any) {
	b := New(d)
	stmt := fmt.Sprintf(`
		INSERT INTO accounts (id, user_id, name) VALUES (%s, %s, %s)
		ON CONFLICT (id) DO UPDATE SET user_id = excluded.user_id, name = excluded.name`,
		b.Arg(a.ID), b.Arg(string(a.UserID)), b.Arg(a.Name))
	return stmt, b.Args()
}

func UpsertCategory(d Dialect, c core.Category) (string, []any) {
	b := New(d)
	stmt := fmt.Sprintf(`
		INSERT INTO categories (id, user_id, name) VALUES (%s, %s, %s)
		ON CONFLICT (id) DO UPDATE SET user_id = excluded.user_id, name = excluded.name`,
		b.Arg(c.ID), b.Arg(string(c.UserID)), b.Arg(c.Name))
	return stmt, b.Args()
}

func UpsertTransaction(d Dialect, t core.Transaction) (string, []any) {
	b := New(d)
	stmt := fmt.Sprintf(`
		INSERT INTO transactions (id, user_id, account_id, category_id, receipt_id, description, payee, amount, date)
		VALUES (%s, %s, %s, %s, %s, %s, %s, %s, %s)
		ON CONFLICT (id) DO UPDATE SET
			user_id = excluded.user_id,
			account_id = excluded.account_id,
			category_id = excluded.category_id,
			receipt_id = excluded.receipt_id,
			description = excluded.description,
			payee = excluded.payee,
			amount = excluded.amount,
			date = excluded.date`,
		b.Arg(t.ID), b.Arg(string(t.UserID)), b.Arg(t.AccountID), b.Arg(t.CategoryID), b.Arg(t.ReceiptID),
		b.Arg(t.Description), b.Arg(t.Payee), b.Arg(t.Amount), b.Date(t.Date))
	return stmt, b.Args()
}
