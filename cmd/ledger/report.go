package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"ledger/internal/cli"
	"ledger/internal/core"
	"ledger/internal/log"
	"ledger/internal/services"
)

// reportFlags select a report the way the API query string does.
type reportFlags struct {
	user    string
	from    string
	to      string
	account int64
}

func (f *reportFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.user, "user", "u", "", "owner of the ledger (required)")
	cmd.Flags().StringVar(&f.from, "from", "", "first day, YYYY-MM-DD (default: lookback before --to)")
	cmd.Flags().StringVar(&f.to, "to", "", "last day, YYYY-MM-DD (default: today)")
	cmd.Flags().Int64Var(&f.account, "account", 0, "restrict to one account id")
	_ = cmd.MarkFlagRequired("user")
}

func (f *reportFlags) request() services.ReportRequest {
	req := services.ReportRequest{From: f.from, To: f.to}
	if f.account > 0 {
		id := f.account
		req.AccountID = &id
	}
	return req
}

func reportCmd(a *app) *cobra.Command {
	var flags reportFlags
	var format string

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Print a period report",
		Long: `Print the income, expense and net totals of a period next to the
previous period of equal length, the expense breakdown by category and the
daily series.`,
		Example: "  ledger report --user alice --from 2024-01-01 --to 2024-01-31",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if format != "table" && format != "json" {
				return fmt.Errorf("unknown format %q (want table or json)", format)
			}
			report, err := a.buildReport(cmd.Context(), flags)
			if err != nil {
				return err
			}
			if format == "json" {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(report)
			}
			return renderReport(cmd.OutOrStdout(), core.UserID(flags.user), report)
		},
	}

	flags.register(cmd)
	cmd.Flags().StringVar(&format, "format", "table", "output format (table, json)")
	return cmd
}

// buildReport computes a report straight from the store, without the
// report cache.
func (a *app) buildReport(ctx context.Context, flags reportFlags) (core.FinanceReport, error) {
	res, err := cli.OpenBackend(ctx, a.cfg, a.logger)
	if err != nil {
		return core.FinanceReport{}, fmt.Errorf("open store: %w", err)
	}
	defer func() {
		if err := res.Cleanup(); err != nil {
			a.logger.Error("Failed to close store", log.FieldError, err)
		}
	}()

	svc, err := cli.BuildServices(a.cfg, res.Store, nil, a.logger)
	if err != nil {
		return core.FinanceReport{}, err
	}
	return svc.Reports.GetReport(ctx, core.UserID(flags.user), flags.request())
}

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86"))
	headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	numberStyle = cellStyle.Align(lipgloss.Right)
	borderStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
)

func renderReport(w io.Writer, user core.UserID, report core.FinanceReport) error {
	summary := newTable(
		[]string{"", "Current", "Previous", "Delta %"},
		[]string{"Income", core.FormatAmount(report.Summary.Income), core.FormatAmount(report.Previous.Income), strconv.Itoa(report.Deltas.Income)},
		[]string{"Expense", core.FormatAmount(report.Summary.Expense), core.FormatAmount(report.Previous.Expense), strconv.Itoa(report.Deltas.Expense)},
		[]string{"Net", core.FormatAmount(report.Summary.Net), core.FormatAmount(report.Previous.Net), strconv.Itoa(report.Deltas.Net)},
	)

	categories := make([][]string, 0, len(report.Categories))
	for _, c := range report.Categories {
		categories = append(categories, []string{c.Key.String(), core.FormatAmount(c.Expense)})
	}

	days := make([][]string, 0, len(report.Days))
	for _, d := range report.Days {
		if d.Income == 0 && d.Expense == 0 {
			continue
		}
		days = append(days, []string{d.Date.String(), core.FormatAmount(d.Income), core.FormatAmount(d.Expense)})
	}

	_, err := fmt.Fprintf(w, "%s\n%s %s to %s (previous %s to %s)\n\n%s\n\n%s\n%s\n\n%s\n%s\n",
		titleStyle.Render(report.Label),
		string(user),
		report.Period.Start, report.Period.End,
		report.PreviousPeriod.Start, report.PreviousPeriod.End,
		summary,
		titleStyle.Render("Expenses by category"),
		newTable([]string{"Category", "Expense"}, categories...),
		titleStyle.Render("Days with activity"),
		newTable([]string{"Date", "Income", "Expense"}, days...),
	)
	return err
}

// newTable renders rows under headers. Every column after the first holds
// numbers and is right aligned.
func newTable(headers []string, rows ...[]string) string {
	return table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(borderStyle).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return headerStyle
			case col > 0:
				return numberStyle
			default:
				return cellStyle
			}
		}).
		Headers(headers...).
		Rows(rows...).
		String()
}
