package cmd

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/spf13/cobra"

	"github.com/kilianp07/carbonlane/config"
	"github.com/kilianp07/carbonlane/core/lane"
)

var laneCmd = &cobra.Command{
	Use:   "lane",
	Short: "Move a vehicle through the lane",
}

var laneEnterCmd = &cobra.Command{
	Use:   "enter [plate]",
	Short: "Record a vehicle entering; without a plate a simulated one is used",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		plate := ""
		if len(args) == 1 {
			plate = args[0]
		}
		return laneDo(cmd, func(ctx context.Context, sim *lane.Simulator) (lane.Entry, error) {
			return sim.Enter(ctx, plate)
		})
	},
}

var laneExitCmd = &cobra.Command{
	Use:   "exit",
	Short: "Record the longest-waiting vehicle leaving",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return laneDo(cmd, func(ctx context.Context, sim *lane.Simulator) (lane.Entry, error) {
			e, err := sim.Exit(ctx)
			if errors.Is(err, lane.ErrNoOpenEntry) {
				return e, errors.New("no car in drive-through to exit")
			}
			return e, err
		})
	},
}

func laneDo(cmd *cobra.Command, fn func(context.Context, *lane.Simulator) (lane.Entry, error)) error {
	return withStore(cmd.Context(), func(ctx context.Context, _ *config.Config, st lane.Store) error {
		sim, err := lane.NewSimulator(st)
		if err != nil {
			return err
		}
		e, err := fn(ctx, sim)
		if err != nil {
			return err
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(e)
	})
}

func init() {
	laneCmd.AddCommand(laneEnterCmd, laneExitCmd)
	rootCmd.AddCommand(laneCmd)
}
