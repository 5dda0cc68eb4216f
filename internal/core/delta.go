package core

import "math"

// Delta returns the percentage change from previous to current, rounded to
// the nearest integer and clamped to [-100, 100]. A zero previous value
// yields 0 when current is also zero and 100 otherwise, whatever the sign
// of current.
func Delta(current, previous int64) int {
	if previous == 0 {
		if current == 0 {
			return 0
		}
		return 100
	}
	pct := 100 * float64(current-previous) / float64(previous)
	return int(math.Max(-100, math.Min(100, math.Round(pct))))
}

// Compare computes the three deltas between two period summaries.
func Compare(current, previous PeriodSummary) Deltas {
	return Deltas{
		Income:  Delta(current.Income, previous.Income),
		Expense: Delta(current.Expense, previous.Expense),
		Net:     Delta(current.Net, previous.Net),
	}
}
