package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"ledger/internal/core"
	"ledger/internal/log"
	"ledger/internal/sheets"
	"ledger/internal/sheets/google"
	"ledger/internal/sheets/memory"
)

func exportCmd(a *app) *cobra.Command {
	var flags reportFlags
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write a period report to Google Sheets",
		Long: `Compute a report and write it to the "<GOOGLE_SHEET_NAME> <user>" tab of
GOOGLE_SPREADSHEET_ID, creating the tab when missing and replacing its
contents otherwise. With --dry-run the rows are printed instead.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.export(cmd.Context(), flags, dryRun, cmd.OutOrStdout())
		},
	}

	flags.register(cmd)
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "print the rows instead of writing them")
	return cmd
}

func (a *app) export(ctx context.Context, flags reportFlags, dryRun bool, out io.Writer) error {
	user := core.UserID(flags.user)
	report, err := a.buildReport(ctx, flags)
	if err != nil {
		return err
	}

	if dryRun {
		exporter := memory.New()
		if _, err := exporter.ExportReport(ctx, user, report); err != nil {
			return err
		}
		return printRows(out, exporter.Exports()[0].Rows)
	}

	if a.cfg.GoogleSpreadsheetID == "" {
		return errors.New("GOOGLE_SPREADSHEET_ID is required to export (or use --dry-run)")
	}
	exporter, err := google.New(ctx, google.Config{
		SpreadsheetID:   a.cfg.GoogleSpreadsheetID,
		SheetName:       a.cfg.GoogleSheetName,
		CredentialsFile: a.cfg.GoogleCredentialsFile,
	})
	if err != nil {
		return fmt.Errorf("google sheets: %w", err)
	}
	return a.runExport(ctx, exporter, user, report, out)
}

func (a *app) runExport(ctx context.Context, exporter sheets.ReportExporter, user core.UserID, report core.FinanceReport, out io.Writer) error {
	ref, err := exporter.ExportReport(ctx, user, report)
	if err != nil {
		return fmt.Errorf("export report: %w", err)
	}
	a.logger.Info("Report exported",
		log.FieldComponent, log.ComponentSheets,
		log.FieldOperation, log.OpExport,
		log.FieldUserID, string(user),
		"range", ref)
	_, err = fmt.Fprintln(out, ref)
	return err
}

func printRows(w io.Writer, rows [][]any) error {
	for _, row := range rows {
		cells := make([]string, len(row))
		for i, v := range row {
			cells[i] = fmt.Sprint(v)
		}
		if _, err := fmt.Fprintln(w, strings.Join(cells, "\t")); err != nil {
			return err
		}
	}
	return nil
}
