package cli

import (
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

// NewDecomposeCommand creates the decompose command.
func NewDecomposeCommand(rootOpts *RootOptions) *cobra.Command {
	var exclude string

	cmd := &cobra.Command{
		Use:   "decompose <belief-id> <epoch>",
		Short: "Show the consensus estimate without changing state",
		Long: `Fit the decomposition over the latest submissions and print the estimate.

With --exclude the leave-one-out estimate for that agent is printed instead.`,
		Args:         cobra.ExactArgs(2),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			beliefID, err := parseBeliefID(args[0])
			if err != nil {
				return err
			}
			epoch, err := parseEpoch(args[1])
			if err != nil {
				return err
			}
			var excludeID uuid.UUID
			if exclude != "" {
				if excludeID, err = uuid.Parse(exclude); err != nil {
					return fmt.Errorf("invalid agent id %q: %w", exclude, err)
				}
			}

			e, err := openEnv(cmd.Context(), rootOpts)
			if err != nil {
				return err
			}
			defer e.Close()

			f := newFormatter(rootOpts, cmd.OutOrStdout())
			if excludeID != uuid.Nil {
				loo, err := e.services.Aggregation.LeaveOneOutDecompose(cmd.Context(), beliefID, epoch, excludeID, nil)
				if err != nil {
					return err
				}
				return f.Print(loo, func(w io.Writer) {
					fmt.Fprintf(w, "aggregate      %.6f\n", loo.Aggregate)
					fmt.Fprintf(w, "meta_aggregate %.6f\n", loo.MetaAggregate)
				})
			}

			res, err := e.services.Aggregation.Decompose(cmd.Context(), beliefID, epoch, nil)
			if err != nil {
				return err
			}
			return f.Print(res, func(w io.Writer) {
				fmt.Fprintf(w, "method         %s\n", res.Method)
				fmt.Fprintf(w, "aggregate      %.6f\n", res.Aggregate)
				fmt.Fprintf(w, "meta_aggregate %.6f\n", res.MetaAggregate)
				fmt.Fprintf(w, "prior          %.6f\n", res.Prior)
				fmt.Fprintf(w, "quality        %.4f (health %.4f, accuracy %.4f)\n", res.Quality, res.MatrixHealth, res.PredictionAccuracy)
				fmt.Fprintf(w, "participants   %d\n", res.ParticipantCount)
			})
		},
	}

	cmd.Flags().StringVar(&exclude, "exclude", "", "agent id to leave out")

	return cmd
}
