// Package cmd holds the cds-ils command line: the HTTP server and the
// directory synchronization jobs run by the scheduler.
package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"cds-ils/pkg/config"
	applogger "cds-ils/pkg/logger"
)

var (
	cfg    *config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "cds-ils",
	Short: "CDS-ILS integrations: health check, literature API and LDAP user synchronization",
	Long: `cds-ils runs the CERN library integrations.

Configuration is read from the environment (and a .env file when present).

Examples:
  cds-ils serve                   # HTTP server with /ping, /metrics and the API
  cds-ils ldap update             # reconcile local users with the directory
  cds-ils ldap delete --dry-run   # list users that left CERN
  cds-ils migrate                 # apply database migrations`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg = config.New()
		if err := cfg.Validate(); err != nil {
			return err
		}
		logger = applogger.NewLogger(cfg.Log.Level, cfg.Log.OutputPaths)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func requireSubcommand(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		return errors.New("requires a subcommand")
	}
	return fmt.Errorf("unknown command %q for %q", args[0], cmd.CommandPath())
}

// Execute runs the command line and exits non-zero on failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
