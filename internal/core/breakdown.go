package core

import "sort"

// BreakdownByCategory merges sparse per-category expense rows into one entry
// per display name. Rows without a category, or whose category no longer
// resolves to a name, land in the uncategorized bucket. The result is
// ordered by expense ascending, so the largest spend comes first; ties fall
// back to key order.
func BreakdownByCategory(rows []CategoryTotals) []CategorySummary {
	buckets := make(map[CategoryKey]int64, len(rows))
	for _, row := range rows {
		if row.Expense == 0 {
			continue
		}
		key := Uncategorized()
		if row.CategoryID != nil && row.CategoryName != "" {
			key = NamedCategory(row.CategoryName)
		}
		buckets[key] += row.Expense
	}

	out := make([]CategorySummary, 0, len(buckets))
	for key, expense := range buckets {
		out = append(out, CategorySummary{Key: key, Expense: expense})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Expense != out[j].Expense {
			return out[i].Expense < out[j].Expense
		}
		return out[i].Key.Less(out[j].Key)
	})
	return out
}
