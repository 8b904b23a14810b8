package cli

import (
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

// NewArchiveCommand creates the archive command.
func NewArchiveCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:          "archive <epoch>",
		Short:        "Archive beliefs whose window closed before epoch",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			epoch, err := parseEpoch(args[0])
			if err != nil {
				return err
			}

			e, err := openEnv(cmd.Context(), rootOpts)
			if err != nil {
				return err
			}
			defer e.Close()

			archived, err := e.services.Beliefs.ArchiveExpired(cmd.Context(), epoch)
			if err != nil {
				return err
			}
			return newFormatter(rootOpts, cmd.OutOrStdout()).Print(map[string][]uuid.UUID{"archived": archived}, func(w io.Writer) {
				fmt.Fprintf(w, "archived %d belief(s)\n", len(archived))
				for _, id := range archived {
					fmt.Fprintf(w, "  %s\n", id)
				}
			})
		},
	}
}
