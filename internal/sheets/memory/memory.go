// Package memory keeps exported reports in process. The export command uses
// it for dry runs.
package memory

import (
	"context"
	"fmt"
	"sync"

	"ledger/internal/core"
	"ledger/internal/sheets"
)

var _ sheets.ReportExporter = (*Exporter)(nil)

// Export is one report as it would have been written.
type Export struct {
	User core.UserID
	Rows [][]any
}

type Exporter struct {
	mu      sync.Mutex
	exports []Export
}

func New() *Exporter {
	return &Exporter{}
}

// ExportReport stores the rows and returns a synthetic reference.
func (e *Exporter) ExportReport(_ context.Context, user core.UserID, report core.FinanceReport) (string, error) {
	if user == "" {
		return "", core.ErrMissingOwner
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.exports = append(e.exports, Export{User: user, Rows: sheets.ReportRows(user, report)})
	return fmt.Sprintf("mem:%d", len(e.exports)), nil
}

// Exports returns a copy of everything exported so far.
func (e *Exporter) Exports() []Export {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Export, len(e.exports))
	copy(out, e.exports)
	return out
}
