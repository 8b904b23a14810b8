package cli

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/Harshitk-cp/beliefmarket/internal/service"
	"github.com/spf13/cobra"
)

// NewProcessCommand creates the process command.
func NewProcessCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:          "process <belief-id> <epoch>",
		Short:        "Run the epoch pipeline for one belief",
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

			e, err := openEnv(cmd.Context(), rootOpts)
			if err != nil {
				return err
			}
			defer e.Close()

			res, err := e.services.Epochs.ProcessEpoch(cmd.Context(), beliefID, epoch)
			if err != nil {
				return err
			}
			return newFormatter(rootOpts, cmd.OutOrStdout()).Print(res, func(w io.Writer) {
				writeResult(w, res)
			})
		},
	}
}

type outcomeJSON struct {
	BeliefID string               `json:"belief_id"`
	Result   *service.EpochResult `json:"result,omitempty"`
	Error    string               `json:"error,omitempty"`
}

// NewProcessAllCommand creates the process-all command.
func NewProcessAllCommand(rootOpts *RootOptions) *cobra.Command {
	var archive bool

	cmd := &cobra.Command{
		Use:          "process-all <epoch>",
		Short:        "Run the epoch for every open belief",
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

			if archive {
				if _, err := e.services.Beliefs.ArchiveExpired(cmd.Context(), epoch); err != nil {
					return err
				}
			}

			outcomes, err := e.services.Epochs.ProcessOpenBeliefs(cmd.Context(), epoch)
			if err != nil {
				return err
			}

			out := make([]outcomeJSON, len(outcomes))
			failed := 0
			for i, o := range outcomes {
				out[i] = outcomeJSON{BeliefID: o.BeliefID.String(), Result: o.Result}
				if o.Err != nil {
					out[i].Error = o.Err.Error()
					failed++
				}
			}

			err = newFormatter(rootOpts, cmd.OutOrStdout()).Print(out, func(w io.Writer) {
				tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "BELIEF\tAGGREGATE\tCERTAINTY\tPOOL\tERROR")
				for _, o := range out {
					if o.Result == nil {
						fmt.Fprintf(tw, "%s\t-\t-\t-\t%s\n", o.BeliefID, o.Error)
						continue
					}
					fmt.Fprintf(tw, "%s\t%.4f\t%.4f\t%d\t\n", o.BeliefID, o.Result.Aggregate, o.Result.Certainty, o.Result.SlashingPool)
				}
				_ = tw.Flush()
			})
			if err != nil {
				return err
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d beliefs failed", failed, len(outcomes))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&archive, "archive", false, "archive expired beliefs first")

	return cmd
}

func writeResult(w io.Writer, res *service.EpochResult) {
	fmt.Fprintf(w, "belief       %s\n", res.BeliefID)
	fmt.Fprintf(w, "epoch        %d\n", res.Epoch)
	fmt.Fprintf(w, "method       %s (quality %.4f)\n", res.Method, res.Quality)
	fmt.Fprintf(w, "aggregate    %.6f\n", res.Aggregate)
	fmt.Fprintf(w, "certainty    %.6f\n", res.Certainty)
	fmt.Fprintf(w, "participants %d (%d passive updated)\n", res.ParticipantCount, res.PassiveUpdated)
	fmt.Fprintf(w, "pool         %d\n", res.SlashingPool)
	for _, d := range res.Deltas {
		fmt.Fprintf(w, "  %s %+d\n", d.AgentID, d.Amount)
	}
}
