package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"

	"ledger/internal/core"
)

// Dataset is the on-disk fixture format read by the import command and the
// memory backend.
type Dataset struct {
	Accounts     []core.Account      `json:"accounts"`
	Categories   []core.Category     `json:"categories"`
	Transactions []TransactionRecord `json:"transactions"`
}

// TransactionRecord is a transaction as written by hand: the amount is a
// signed decimal string.
type TransactionRecord struct {
	ID          int64       `json:"id"`
	Description string      `json:"description"`
	Payee       string      `json:"payee"`
	Amount      string      `json:"amount"`
	Date        core.Date   `json:"date"`
	UserID      core.UserID `json:"userId"`
	AccountID   int64       `json:"accountId"`
	CategoryID  *int64      `json:"categoryId,omitempty"`
	ReceiptID   *int64      `json:"receiptId,omitempty"`
}

func (r TransactionRecord) Transaction() (core.Transaction, error) {
	amount, err := core.ParseAmount(r.Amount)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("transaction %d: amount %q: %w", r.ID, r.Amount, err)
	}
	t := core.Transaction{
		ID:          r.ID,
		Description: r.Description,
		Payee:       r.Payee,
		Amount:      amount,
		Date:        r.Date,
		UserID:      r.UserID,
		AccountID:   r.AccountID,
		CategoryID:  r.CategoryID,
		ReceiptID:   r.ReceiptID,
	}
	if err := t.Validate(); err != nil {
		return core.Transaction{}, fmt.Errorf("transaction %d: %w", r.ID, err)
	}
	return t, nil
}

// ReadDataset decodes a dataset, rejecting unknown fields.
func ReadDataset(r io.Reader) (Dataset, error) {
	var ds Dataset
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&ds); err != nil {
		return Dataset{}, fmt.Errorf("decode dataset: %w", err)
	}
	return ds, nil
}

// ReadDatasetFile opens and decodes a dataset file.
func ReadDatasetFile(path string) (Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return Dataset{}, fmt.Errorf("open dataset: %w", err)
	}
	defer f.Close()
	return ReadDataset(f)
}

// Resolve converts every record and checks references: each transaction's
// account and category must exist and belong to the same user.
func (ds Dataset) Resolve() ([]core.Transaction, error) {
	accounts := make(map[int64]core.UserID, len(ds.Accounts))
	for _, a := range ds.Accounts {
		accounts[a.ID] = a.UserID
	}
	categories := make(map[int64]core.UserID, len(ds.Categories))
	for _, c := range ds.Categories {
		categories[c.ID] = c.UserID
	}

	var errs []error
	out := make([]core.Transaction, 0, len(ds.Transactions))
	for _, rec := range ds.Transactions {
		t, err := rec.Transaction()
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if owner, ok := accounts[t.AccountID]; !ok || owner != t.UserID {
			errs = append(errs, fmt.Errorf("transaction %d: account %d not found for user %s: %w", t.ID, t.AccountID, t.UserID, core.ErrInvalidTransaction))
			continue
		}
		if t.CategoryID != nil {
			if owner, ok := categories[*t.CategoryID]; !ok || owner != t.UserID {
				errs = append(errs, fmt.Errorf("transaction %d: category %d not found for user %s: %w", t.ID, *t.CategoryID, t.UserID, core.ErrInvalidTransaction))
				continue
			}
		}
		out = append(out, t)
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return out, nil
}

// Users lists the distinct owners referenced by the dataset, sorted.
func (ds Dataset) Users() []core.UserID {
	seen := make(map[core.UserID]struct{})
	for _, a := range ds.Accounts {
		seen[a.UserID] = struct{}{}
	}
	for _, c := range ds.Categories {
		seen[c.UserID] = struct{}{}
	}
	for _, t := range ds.Transactions {
		seen[t.UserID] = struct{}{}
	}
	out := make([]core.UserID, 0, len(seen))
	for u := range seen {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Size is the number of rows Load writes.
func (ds Dataset) Size() int {
	return len(ds.Accounts) + len(ds.Categories) + len(ds.Transactions)
}

// Load resolves the dataset and writes it through l, calling progress after
// each row.
func Load(ctx context.Context, l Loader, ds Dataset, progress func()) error {
	txs, err := ds.Resolve()
	if err != nil {
		return err
	}
	if progress == nil {
		progress = func() {}
	}
	for _, a := range ds.Accounts {
		if err := l.UpsertAccount(ctx, a); err != nil {
			return fmt.Errorf("load account %d: %w", a.ID, err)
		}
		progress()
	}
	for _, c := range ds.Categories {
		if err := l.UpsertCategory(ctx, c); err != nil {
			return fmt.Errorf("load category %d: %w", c.ID, err)
		}
		progress()
	}
	for _, t := range txs {
		if err := l.UpsertTransaction(ctx, t); err != nil {
			return fmt.Errorf("load transaction %d: %w", t.ID, err)
		}
		progress()
	}
	return nil
}
