// Package sheets defines the spreadsheet export port and the row layout
// shared by its adapters.
package sheets

import (
	"context"

	"ledger/internal/core"
)

// ReportExporter writes a finance report somewhere a person can read it and
// returns a reference to what was written.
type ReportExporter interface {
	ExportReport(ctx context.Context, user core.UserID, report core.FinanceReport) (ref string, err error)
}

// ReportRows lays a report out as spreadsheet rows: a title block, the
// period summary with deltas, the category breakdown and the daily series.
// Amounts are decimal units, not cents.
func ReportRows(user core.UserID, report core.FinanceReport) [][]any {
	rows := [][]any{
		{report.Label},
		{"User", string(user)},
		{"Period", report.Period.Start.String(), report.Period.End.String()},
		{"Previous period", report.PreviousPeriod.Start.String(), report.PreviousPeriod.End.String()},
		{},
		{"", "Current", "Previous", "Delta %"},
		{"Income", units(report.Summary.Income), units(report.Previous.Income), report.Deltas.Income},
		{"Expense", units(report.Summary.Expense), units(report.Previous.Expense), report.Deltas.Expense},
		{"Net", units(report.Summary.Net), units(report.Previous.Net), report.Deltas.Net},
		{},
		{"Category", "Expense"},
	}
	for _, c := range report.Categories {
		rows = append(rows, []any{c.Key.String(), units(c.Expense)})
	}
	rows = append(rows, []any{}, []any{"Date", "Income", "Expense"})
	for _, d := range report.Days {
		rows = append(rows, []any{d.Date.String(), units(d.Income), units(d.Expense)})
	}
	return rows
}

func units(cents int64) float64 {
	return float64(cents) / 100
}
