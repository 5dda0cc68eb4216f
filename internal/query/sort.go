package query

import (
	"math"

	"ledger/internal/core"
)

// Sort is a listing order. Unknown values fall back to SortDateDesc.
type Sort string

const (
	SortDateDesc   Sort = "date"
	SortAmountAsc  Sort = "amount"
	SortAmountDesc Sort = "amountDesc"
)

func ParseSort(s string) Sort {
	switch Sort(s) {
	case SortAmountAsc, SortAmountDesc:
		return Sort(s)
	default:
		return SortDateDesc
	}
}

// Less orders two rows, breaking ties by id ascending.
func (s Sort) Less(a, b core.Transaction) bool {
	switch s {
	case SortAmountAsc:
		if a.Amount != b.Amount {
			return a.Amount < b.Amount
		}
	case SortAmountDesc:
		if a.Amount != b.Amount {
			return a.Amount > b.Amount
		}
	default:
		if !a.Date.Equal(b.Date) {
			return a.Date.After(b.Date)
		}
	}
	return a.ID < b.ID
}

// Page is a 1-based page request.
type Page struct {
	Number int
	Size   int
}

// DefaultMaxPageSize caps listings when no other limit is configured.
const DefaultMaxPageSize = 10

// NewPage clamps a raw page request: numbers below 1 become 1, sizes
// outside [1, maxSize] become maxSize. Numbers are capped so the offset
// never overflows; such pages are simply past the end.
func NewPage(number, size, maxSize int) Page {
	if maxSize < 1 {
		maxSize = DefaultMaxPageSize
	}
	if number < 1 {
		number = 1
	}
	if size < 1 || size > maxSize {
		size = maxSize
	}
	if last := math.MaxInt / size; number > last {
		number = last
	}
	return Page{Number: number, Size: size}
}

func (p Page) Offset() int {
	return (p.Number - 1) * p.Size
}

// Window returns the [lo, hi) slice bounds of this page within n items.
func (p Page) Window(n int) (int, int) {
	lo := p.Offset()
	if lo < 0 || lo > n {
		lo = n
	}
	hi := n
	if p.Size >= 0 && p.Size < n-lo {
		hi = lo + p.Size
	}
	return lo, hi
}
