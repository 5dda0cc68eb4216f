package cache

import (
	"context"
	"net/url"
	"strconv"
	"time"

	"ledger/internal/core"
)

// ReportKey identifies one computed report. Reports depend only on the
// owner, the resolved period and the optional account.
type ReportKey struct {
	User      core.UserID
	Period    core.DateRange
	AccountID *int64
}

// String renders user|start|end|account. The user segment is escaped so
// that one user's prefix never matches another's.
func (k ReportKey) String() string {
	account := "all"
	if k.AccountID != nil {
		account = strconv.FormatInt(*k.AccountID, 10)
	}
	return userPrefix(k.User) + k.Period.Start.String() + "|" + k.Period.End.String() + "|" + account
}

func userPrefix(user core.UserID) string {
	return url.QueryEscape(string(user)) + "|"
}

// ReportCache stores finished reports until the owner's ledger changes.
// Lookups never fail: a broken backend behaves as a miss.
type ReportCache interface {
	Get(ctx context.Context, key ReportKey) (core.FinanceReport, bool)
	Set(ctx context.Context, key ReportKey, report core.FinanceReport)
	InvalidateUser(ctx context.Context, user core.UserID) error
}

// LRUReports is the in-process ReportCache.
type LRUReports struct {
	lru *LRUCache[core.FinanceReport]
}

func NewLRUReports(maxSize int, ttl time.Duration) *LRUReports {
	return &LRUReports{lru: NewLRUCache[core.FinanceReport](maxSize, ttl)}
}

func (c *LRUReports) Get(_ context.Context, key ReportKey) (core.FinanceReport, bool) {
	return c.lru.Get(key.String())
}

func (c *LRUReports) Set(_ context.Context, key ReportKey, report core.FinanceReport) {
	c.lru.Set(key.String(), report)
}

func (c *LRUReports) InvalidateUser(_ context.Context, user core.UserID) error {
	c.lru.DeletePrefix(userPrefix(user))
	return nil
}

func (c *LRUReports) CleanExpired() int { return c.lru.CleanExpired() }

func (c *LRUReports) Size() int { return c.lru.Size() }

// Nop never stores anything.
type Nop struct{}

func (Nop) Get(context.Context, ReportKey) (core.FinanceReport, bool) {
	return core.FinanceReport{}, false
}

func (Nop) Set(context.Context, ReportKey, core.FinanceReport) {}

func (Nop) InvalidateUser(context.Context, core.UserID) error { return nil }
