package services

import (
	"context"
	"fmt"
	"strings"

	"ledger/internal/core"
	"ledger/internal/query"
	"ledger/internal/storage"
)

// ListRequest carries raw listing parameters. Dates that do not parse as
// YYYY-MM-DD are treated as absent; there is no default window.
type ListRequest struct {
	From       string
	To         string
	AccountID  *int64
	CategoryID *int64
	Search     string
	Sort       string
	Page       int
	PageSize   int
}

// TransactionService pages through a user's transactions
type TransactionService struct {
	store       storage.TransactionReader
	maxPageSize int
}

func NewTransactionService(store storage.TransactionReader, maxPageSize int) *TransactionService {
	if maxPageSize < 1 {
		maxPageSize = query.DefaultMaxPageSize
	}
	return &TransactionService{store: store, maxPageSize: maxPageSize}
}

func (s *TransactionService) GetTransactions(ctx context.Context, user core.UserID, req ListRequest) (core.TransactionsPage, error) {
	if user == "" {
		return core.TransactionsPage{}, core.ErrMissingOwner
	}

	f, err := query.Build(user, query.Criteria{
		From:       optionalDate(req.From),
		To:         optionalDate(req.To),
		AccountID:  positiveID(req.AccountID),
		CategoryID: positiveID(req.CategoryID),
		Search:     req.Search,
	})
	if err != nil {
		return core.TransactionsPage{}, err
	}

	page := query.NewPage(req.Page, req.PageSize, s.maxPageSize)
	rows, total, err := s.store.QueryTransactions(ctx, f, query.ParseSort(req.Sort), page)
	if err != nil {
		return core.TransactionsPage{}, fmt.Errorf("query transactions: %w", err)
	}
	return core.NewTransactionsPage(rows, total, page.Number, page.Size), nil
}

func optionalDate(s string) *core.Date {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	d, err := core.ParseDate(s)
	if err != nil {
		return nil
	}
	return &d
}
