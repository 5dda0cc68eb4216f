package core

import "strings"

// DefaultLookbackDays puts the default report window at the last 30 days,
// today included.
const DefaultLookbackDays = 29

// DateRange is an inclusive span of calendar dates.
type DateRange struct {
	Start Date `json:"start"`
	End   Date `json:"end"`
}

// ResolveDateRange turns optional from/to strings into a concrete range.
// Blank or unparseable input silently falls back: start to today minus
// lookbackDays, end to today.
func ResolveDateRange(from, to string, today Date, lookbackDays int) DateRange {
	r := DateRange{
		Start: today.AddDays(-lookbackDays),
		End:   today,
	}
	if d, ok := parseOptionalDate(from); ok {
		r.Start = d
	}
	if d, ok := parseOptionalDate(to); ok {
		r.End = d
	}
	return r
}

func parseOptionalDate(s string) (Date, bool) {
	if strings.TrimSpace(s) == "" {
		return Date{}, false
	}
	d, err := ParseDate(s)
	if err != nil {
		return Date{}, false
	}
	return d, true
}

// Validate rejects ranges whose start falls after their end.
func (r DateRange) Validate() error {
	if r.Start.After(r.End) {
		return ErrInvalidRange
	}
	return nil
}

// Days is the number of calendar days in the range, both ends included.
func (r DateRange) Days() int {
	return r.Start.DaysUntil(r.End) + 1
}

// Previous returns the range of equal length ending the day before r starts.
func (r DateRange) Previous() DateRange {
	end := r.Start.AddDays(-1)
	return DateRange{
		Start: end.AddDays(-(r.Days() - 1)),
		End:   end,
	}
}

// Dates lists every day in the range in ascending order.
func (r DateRange) Dates() []Date {
	n := r.Days()
	if n <= 0 {
		return []Date{}
	}
	out := make([]Date, 0, n)
	for d := r.Start; !d.After(r.End); d = d.AddDays(1) {
		out = append(out, d)
	}
	return out
}

func (r DateRange) Contains(d Date) bool {
	return !d.Before(r.Start) && !d.After(r.End)
}

func (r DateRange) String() string {
	return r.Start.String() + ".." + r.End.String()
}
