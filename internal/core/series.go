package core

// BuildDailySeries left-joins sparse per-day totals onto every day of r.
// Days without activity get zero income and expense. Rows outside r are
// ignored.
func BuildDailySeries(r DateRange, sparse []DayTotals) []DailySummary {
	byDay := make(map[string]Totals, len(sparse))
	for _, row := range sparse {
		if !r.Contains(row.Date) {
			continue
		}
		key := row.Date.String()
		t := byDay[key]
		t.Income += row.Income
		t.Expense += row.Expense
		byDay[key] = t
	}

	days := r.Dates()
	out := make([]DailySummary, len(days))
	for i, d := range days {
		t := byDay[d.String()]
		out[i] = DailySummary{Date: d, Income: t.Income, Expense: t.Expense}
	}
	return out
}
