package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"ledger/internal/amqp"
	"ledger/internal/backend"
	"ledger/internal/cli"
	"ledger/internal/core"
	"ledger/internal/log"
	"ledger/internal/storage"
)

func importCmd(a *app) *cobra.Command {
	var file string
	var quiet bool

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Load a ledger dataset into the store",
		Long: `Upsert the accounts, categories and transactions of a JSON dataset
into the configured SQL store.

Amounts are decimal strings and dates YYYY-MM-DD. Rows are matched by id,
so importing the same file twice is harmless. When AMQP_URL is set a
ledger change event is published for every user in the file.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.ErrOrStderr()
			if quiet {
				out = io.Discard
			}
			return a.importDataset(cmd.Context(), file, out)
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "dataset to import (required)")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "hide the progress bar")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func (a *app) importDataset(ctx context.Context, file string, progressOut io.Writer) error {
	logger := a.logger.WithComponent(log.ComponentStorage)
	if !backend.BackendType(a.cfg.DataBackend).IsSQL() {
		return errors.New("import needs the sqlite or postgres backend; the memory backend seeds itself from DATA_DIRECTORY")
	}

	ds, err := storage.ReadDatasetFile(file)
	if err != nil {
		return err
	}

	res, err := cli.OpenBackend(ctx, a.cfg, a.logger)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer func() {
		if err := res.Cleanup(); err != nil {
			logger.Error("Failed to close store", log.FieldError, err)
		}
	}()

	bar := progressbar.NewOptions(ds.Size(),
		progressbar.OptionSetWriter(progressOut),
		progressbar.OptionShowCount(),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetDescription("Importing ledger rows"),
		progressbar.OptionOnCompletion(func() { fmt.Fprintln(progressOut) }),
	)
	if err := storage.Load(ctx, res.Store, ds, func() { _ = bar.Add(1) }); err != nil {
		return fmt.Errorf("import %s: %w", file, err)
	}
	_ = bar.Finish()

	users := ds.Users()
	logger.Info("Dataset imported",
		log.FieldOperation, log.OpImport,
		"file", file,
		"accounts", len(ds.Accounts),
		"categories", len(ds.Categories),
		"transactions", len(ds.Transactions),
		"users", len(users))

	if a.cfg.AMQPURL == "" {
		return nil
	}
	return a.announceChanges(ctx, users)
}

// announceChanges tells running servers which users' cached reports are
// stale.
func (a *app) announceChanges(ctx context.Context, users []core.UserID) error {
	client, err := amqp.NewClient(a.cfg.AMQPURL, a.cfg.AMQPExchange, "")
	if err != nil {
		return fmt.Errorf("connect to AMQP: %w", err)
	}
	defer client.Close()

	var errs []error
	for _, u := range users {
		if err := client.PublishLedgerChanged(ctx, u); err != nil {
			errs = append(errs, fmt.Errorf("announce change for %s: %w", u, err))
		}
	}
	return errors.Join(errs...)
}
