// Package cli implements epochctl, the operator command line for running
// epochs and inspecting decompositions against the database.
package cli

import (
	"fmt"

	"github.com/Harshitk-cp/beliefmarket/internal/config"
	"github.com/spf13/cobra"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Format      string // "json" | "text"
	DatabaseURL string
	LogLevel    string
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the epochctl root command.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "epochctl",
		Short: "Operate belief market epochs",
		Long:  "Run epochs, archive expired beliefs and inspect decompositions directly against the database.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			if err := config.Load(); err != nil {
				return err
			}
			if opts.DatabaseURL == "" {
				opts.DatabaseURL = config.DatabaseURL()
			}
			if opts.LogLevel == "" {
				opts.LogLevel = config.LogLevel()
			}
			return nil
		},
	}

	// Global flags
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.DatabaseURL, "database-url", "", "Postgres URL (defaults to DATABASE_URL)")
	cmd.PersistentFlags().StringVar(&opts.LogLevel, "log-level", "", "log level (defaults to LOG_LEVEL)")

	// Add subcommands
	cmd.AddCommand(NewMigrateCommand(opts))
	cmd.AddCommand(NewProcessCommand(opts))
	cmd.AddCommand(NewProcessAllCommand(opts))
	cmd.AddCommand(NewDecomposeCommand(opts))
	cmd.AddCommand(NewArchiveCommand(opts))
	cmd.AddCommand(NewVersionCommand(opts))

	return cmd
}

func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}
