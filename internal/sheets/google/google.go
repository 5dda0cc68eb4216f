// Package google exports reports to a Google Sheets spreadsheet using a
// service account.
package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"ledger/internal/core"
	"ledger/internal/sheets"
)

var _ sheets.ReportExporter = (*Client)(nil)

// DefaultSheetName is the tab a report is written to unless configured.
const DefaultSheetName = "Report"

type Config struct {
	SpreadsheetID string
	// SheetName is the tab prefix; the user id is appended so users never
	// overwrite each other.
	SheetName string
	// CredentialsFile or CredentialsJSON hold a service account key. When
	// both are empty, GOOGLE_APPLICATION_CREDENTIALS is tried.
	CredentialsFile string
	CredentialsJSON []byte
}

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetName     string
}

// New builds a client. Extra options are passed to the Sheets service and
// replace credential handling when they include their own authentication.
func New(ctx context.Context, cfg Config, opts ...goption.ClientOption) (*Client, error) {
	spreadsheetID := strings.TrimSpace(cfg.SpreadsheetID)
	if spreadsheetID == "" {
		return nil, errors.New("missing spreadsheet id")
	}
	sheetName := strings.TrimSpace(cfg.SheetName)
	if sheetName == "" {
		sheetName = DefaultSheetName
	}

	if len(opts) == 0 {
		credentialsJSON, err := loadCredentials(ctx, cfg)
		if err != nil {
			return nil, err
		}
		opts = []goption.ClientOption{
			goption.WithCredentialsJSON(credentialsJSON),
			goption.WithScopes(gsheet.SpreadsheetsScope),
		}
	}

	svc, err := gsheet.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	return &Client{svc: svc, spreadsheetID: spreadsheetID, sheetName: sheetName}, nil
}

func loadCredentials(ctx context.Context, cfg Config) ([]byte, error) {
	if len(cfg.CredentialsJSON) > 0 {
		slog.DebugContext(ctx, "Using inline service account credentials", "component", "sheets")
		return cfg.CredentialsJSON, nil
	}

	path := strings.TrimSpace(cfg.CredentialsFile)
	if path == "" {
		path = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}
	if path == "" {
		return nil, errors.New("missing service account credentials (set GOOGLE_CREDENTIALS_FILE or GOOGLE_APPLICATION_CREDENTIALS)")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read service account file: %w", err)
	}
	slog.DebugContext(ctx, "Read service account credentials", "component", "sheets", "path", path)
	return data, nil
}

// TabName is the tab a user's report is written to.
func (c *Client) TabName(user core.UserID) string {
	return fmt.Sprintf("%s %s", c.sheetName, user)
}

// ExportReport replaces the contents of the user's tab with the report and
// returns the updated range.
func (c *Client) ExportReport(ctx context.Context, user core.UserID, report core.FinanceReport) (string, error) {
	if user == "" {
		return "", core.ErrMissingOwner
	}
	if c.svc == nil {
		return "", errors.New("sheets service not initialized")
	}

	tab := c.TabName(user)
	if err := c.ensureTab(ctx, tab); err != nil {
		return "", err
	}

	quoted := quoteTab(tab)
	if _, err := c.svc.Spreadsheets.Values.Clear(c.spreadsheetID, quoted, &gsheet.ClearValuesRequest{}).
		Context(ctx).Do(); err != nil {
		return "", fmt.Errorf("clear %s: %w", tab, err)
	}

	vr := &gsheet.ValueRange{Values: sheets.ReportRows(user, report)}
	resp, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, quoted+"!A1", vr).
		ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("write report to %s: %w", tab, err)
	}

	slog.InfoContext(ctx, "Exported report", "component", "sheets",
		"user_id", string(user), "range", resp.UpdatedRange, "rows", resp.UpdatedRows)
	return resp.UpdatedRange, nil
}

// ensureTab adds the tab when the spreadsheet does not have it yet.
func (c *Client) ensureTab(ctx context.Context, tab string) error {
	ss, err := c.svc.Spreadsheets.Get(c.spreadsheetID).Fields("sheets.properties.title").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("read spreadsheet %s: %w", c.spreadsheetID, err)
	}
	for _, s := range ss.Sheets {
		if s.Properties != nil && s.Properties.Title == tab {
			return nil
		}
	}

	req := &gsheet.BatchUpdateSpreadsheetRequest{
		Requests: []*gsheet.Request{{
			AddSheet: &gsheet.AddSheetRequest{Properties: &gsheet.SheetProperties{Title: tab}},
		}},
	}
	if _, err := c.svc.Spreadsheets.BatchUpdate(c.spreadsheetID, req).Context(ctx).Do(); err != nil {
		return fmt.Errorf("add tab %s: %w", tab, err)
	}
	return nil
}

// quoteTab wraps a tab name for A1 notation, doubling embedded quotes.
func quoteTab(tab string) string {
	return "'" + strings.ReplaceAll(tab, "'", "''") + "'"
}
