package cli

import (
	"io"

	"github.com/Harshitk-cp/beliefmarket/internal/buildconfig"
	"github.com/spf13/cobra"
)

// NewVersionCommand creates the version command.
func NewVersionCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return newFormatter(rootOpts, cmd.OutOrStdout()).Print(buildconfig.VersionInfo(), func(w io.Writer) {
				_, _ = io.WriteString(w, buildconfig.String()+"\n")
			})
		},
	}
}
