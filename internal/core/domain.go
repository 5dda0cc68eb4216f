package core

import (
	"errors"
	"strings"
	"time"
)

// DateLayout is the wire format for calendar dates.
const DateLayout = "2006-01-02"

type (
	// UserID identifies the authenticated owner of ledger rows. It is opaque
	// to the engine.
	UserID string

	// Date is a calendar date at UTC midnight.
	Date struct {
		time.Time
	}

	// Ref is an id plus display name, used to enrich listing rows.
	Ref struct {
		ID   int64  `json:"id"`
		Name string `json:"name"`
	}

	Account struct {
		ID     int64  `json:"id"`
		Name   string `json:"name"`
		UserID UserID `json:"userId"`
	}

	Category struct {
		ID     int64  `json:"id"`
		Name   string `json:"name"`
		UserID UserID `json:"userId"`
	}

	// Transaction is one ledger row. Amount is in minor units; positive is
	// income, negative is expense.
	Transaction struct {
		ID          int64  `json:"id"`
		Description string `json:"description"`
		Payee       string `json:"payee"`
		Amount      int64  `json:"amount"`
		Date        Date   `json:"date"`
		UserID      UserID `json:"userId"`
		AccountID   int64  `json:"accountId"`
		CategoryID  *int64 `json:"categoryId"`
		ReceiptID   *int64 `json:"receiptId"`

		Account  Ref  `json:"account"`
		Category *Ref `json:"category"`
	}
)

var (
	ErrInvalidRange       = errors.New("start date should not be greater than end date")
	ErrMissingOwner       = errors.New("missing owner")
	ErrInvalidTransaction = errors.New("invalid transaction")
	ErrEmptyDescription   = errors.New("empty description")
	ErrInvalidAmount      = errors.New("invalid amount")
)

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its calendar date in t's own location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return NewDate(y, int(m), d)
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, err
	}
	return DateOf(t), nil
}

func (d Date) AddDays(n int) Date {
	return Date{Time: d.Time.AddDate(0, 0, n)}
}

const secondsPerDay = 24 * 60 * 60

// DaysUntil returns the number of whole days from d to other. Both dates sit
// at UTC midnight, so the count is exact for any span.
func (d Date) DaysUntil(other Date) int {
	return int((other.Unix() - d.Unix()) / secondsPerDay)
}

func (d Date) Before(other Date) bool { return d.Time.Before(other.Time) }
func (d Date) After(other Date) bool { return d.Time.After(other.Time) }
func (d Date) Equal(other Date) bool { return d.Time.Equal(other.Time) }

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(DateLayout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.String() + `"`), nil
}

func (d *Date) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

func (d Date) Validate() error {
	if d.IsZero() {
		return errors.New("date cannot be zero")
	}
	return nil
}

// Validate performs the structural checks needed before a row is loaded
// into a store. It is not a business-rule validator.
func (t Transaction) Validate() error {
	if strings.TrimSpace(string(t.UserID)) == "" {
		return ErrMissingOwner
	}
	if err := t.Date.Validate(); err != nil {
		return err
	}
	if len(strings.TrimSpace(t.Description)) == 0 {
		return ErrEmptyDescription
	}
	if len(t.Description) > 200 {
		return errors.New("description too long (max 200 characters)")
	}
	if t.AccountID <= 0 {
		return errors.New("account id must be positive")
	}
	return nil
}

// IsIncome reports whether the row counts toward income totals.
func (t Transaction) IsIncome() bool {
	return t.Amount >= 0
}
