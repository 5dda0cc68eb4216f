// Package memory is a mutex-guarded in-process ledger store. It evaluates
// filters directly and backs the default development backend and the
// engine tests.
package memory

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"ledger/internal/core"
	"ledger/internal/query"
	"ledger/internal/storage"
)

// SeedFile is the dataset NewFromDir looks for.
const SeedFile = "ledger.json"

var (
	_ storage.Ledger = (*Store)(nil)
	_ storage.Loader = (*Store)(nil)
)

type Store struct {
	mu           sync.RWMutex
	accounts     map[int64]core.Account
	categories   map[int64]core.Category
	transactions map[int64]core.Transaction
}

func New() *Store {
	return &Store{
		accounts:     make(map[int64]core.Account),
		categories:   make(map[int64]core.Category),
		transactions: make(map[int64]core.Transaction),
	}
}

// NewFromDir returns a store seeded from dir/ledger.json. A missing file
// yields an empty store.
func NewFromDir(ctx context.Context, dir string) (*Store, error) {
	s := New()
	path := filepath.Join(dir, SeedFile)
	ds, err := storage.ReadDatasetFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return s, nil
		}
		return nil, fmt.Errorf("seed memory store from %s: %w", path, err)
	}
	if err := storage.Load(ctx, s, ds, nil); err != nil {
		return nil, fmt.Errorf("seed memory store from %s: %w", path, err)
	}
	return s, nil
}

func (s *Store) UpsertAccount(_ context.Context, a core.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[a.ID] = a
	return nil
}

func (s *Store) UpsertCategory(_ context.Context, c core.Category) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.categories[c.ID] = c
	return nil
}

func (s *Store) UpsertTransaction(_ context.Context, t core.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t.Account = core.Ref{}
	t.Category = nil
	s.transactions[t.ID] = t
	return nil
}

// matching returns copies of all rows accepted by f, unordered.
func (s *Store) matching(ctx context.Context, f query.Filter) ([]core.Transaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []core.Transaction
	for _, t := range s.transactions {
		if f.Matches(t) {
			out = append(out, t)
		}
	}
	return out, nil
}

func (s *Store) QueryTransactions(ctx context.Context, f query.Filter, order query.Sort, p query.Page) ([]core.Transaction, int, error) {
	rows, err := s.matching(ctx, f)
	if err != nil {
		return nil, 0, err
	}
	sort.Slice(rows, func(i, j int) bool { return order.Less(rows[i], rows[j]) })

	lo, hi := p.Window(len(rows))
	page := make([]core.Transaction, 0, hi-lo)

	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, t := range rows[lo:hi] {
		if a, ok := s.accounts[t.AccountID]; ok {
			t.Account = core.Ref{ID: a.ID, Name: a.Name}
		} else {
			t.Account = core.Ref{ID: t.AccountID}
		}
		if t.CategoryID != nil {
			if c, ok := s.categories[*t.CategoryID]; ok {
				t.Category = &core.Ref{ID: c.ID, Name: c.Name}
			}
		}
		page = append(page, t)
	}
	return page, len(rows), nil
}

func (s *Store) SumTotals(ctx context.Context, f query.Filter) (core.Totals, error) {
	rows, err := s.matching(ctx, f)
	if err != nil {
		return core.Totals{}, err
	}
	var t core.Totals
	for _, r := range rows {
		t.Add(r.Amount)
	}
	return t, nil
}

func (s *Store) SumByCategory(ctx context.Context, f query.Filter) ([]core.CategoryTotals, error) {
	rows, err := s.matching(ctx, f)
	if err != nil {
		return nil, err
	}

	const uncategorized = int64(-1)
	sums := make(map[int64]*core.CategoryTotals)
	for _, r := range rows {
		id := uncategorized
		if r.CategoryID != nil {
			id = *r.CategoryID
		}
		ct, ok := sums[id]
		if !ok {
			ct = &core.CategoryTotals{}
			if r.CategoryID != nil {
				cid := *r.CategoryID
				ct.CategoryID = &cid
				s.mu.RLock()
				ct.CategoryName = s.categories[cid].Name
				s.mu.RUnlock()
			}
			sums[id] = ct
		}
		ct.Add(r.Amount)
	}

	out := make([]core.CategoryTotals, 0, len(sums))
	for _, ct := range sums {
		out = append(out, *ct)
	}
	return out, nil
}

func (s *Store) SumByDay(ctx context.Context, f query.Filter) ([]core.DayTotals, error) {
	rows, err := s.matching(ctx, f)
	if err != nil {
		return nil, err
	}
	sums := make(map[string]*core.DayTotals)
	for _, r := range rows {
		key := r.Date.String()
		dt, ok := sums[key]
		if !ok {
			dt = &core.DayTotals{Date: r.Date}
			sums[key] = dt
		}
		dt.Add(r.Amount)
	}
	out := make([]core.DayTotals, 0, len(sums))
	for _, dt := range sums {
		out = append(out, *dt)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

// Len returns the number of stored transactions.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.transactions)
}
