// Command ledger serves and inspects a personal finance ledger: the
// reporting API, schema migrations, dataset imports and report exports.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"ledger/internal/cli"
	"ledger/internal/config"
	"ledger/internal/log"
)

var version = "dev"

// app is the state PersistentPreRunE prepares for every subcommand.
type app struct {
	envFile   string
	logLevel  string
	logFormat string

	cfg    *config.Config
	logger *log.Logger
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "ledger",
		Short:         "Personal finance ledger reports",
		Long:          "ledger answers transaction listings and period reports over a personal finance ledger.",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init(cmd)
		},
	}

	root.PersistentFlags().StringVar(&a.envFile, "env-file", ".env", "dotenv file read before the environment")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&a.logFormat, "log-format", "", "log format (text, json)")

	root.AddCommand(serveCmd(a))
	root.AddCommand(migrateCmd(a))
	root.AddCommand(importCmd(a))
	root.AddCommand(reportCmd(a))
	root.AddCommand(exportCmd(a))
	root.AddCommand(tokenCmd(a))
	return root
}

func (a *app) init(cmd *cobra.Command) error {
	cfg, err := cli.LoadAndValidateConfig(func(c *config.Config) {
		if a.logLevel != "" {
			c.LogLevel = a.logLevel
		}
		if a.logFormat != "" {
			c.LogFormat = a.logFormat
		}
	}, a.envFile)
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.logger = cli.SetupLogger(cfg, cmd.ErrOrStderr())
	return nil
}

func main() {
	a := &app{}
	if err := newRootCmd(a).ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
