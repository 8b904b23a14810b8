package cli

import (
	"io"

	"github.com/Harshitk-cp/beliefmarket/internal/store"
	"github.com/spf13/cobra"
)

// NewMigrateCommand creates the migrate command.
func NewMigrateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:          "migrate",
		Short:        "Create or update the database schema",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(cmd.Context(), rootOpts)
			if err != nil {
				return err
			}
			defer e.Close()

			if err := store.Migrate(cmd.Context(), e.pool); err != nil {
				return err
			}
			return newFormatter(rootOpts, cmd.OutOrStdout()).Print(map[string]string{"status": "migrated"}, func(w io.Writer) {
				_, _ = io.WriteString(w, "schema migrated\n")
			})
		},
	}
}
