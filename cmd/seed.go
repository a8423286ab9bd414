package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kilianp07/carbonlane/config"
	"github.com/kilianp07/carbonlane/core/lane"
	"github.com/kilianp07/carbonlane/jobs/seed"
)

var seedCount int

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Insert demo entries from the last hour",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withStore(cmd.Context(), func(ctx context.Context, _ *config.Config, st lane.Store) error {
			entries, err := seed.Seed(ctx, st, lane.SystemClock{}, seedCount, nil)
			if err != nil {
				return err
			}
			for _, e := range entries {
				fmt.Fprintf(cmd.OutOrStdout(), "%d\t%s\t%s\t%.2f min\n",
					e.ID, e.Plate, e.EnterTime.Format("15:04:05"), e.Derived.ElapsedMinutes)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "inserted %d entries\n", len(entries))
			return nil
		})
	},
}

func init() {
	seedCmd.Flags().IntVarP(&seedCount, "count", "n", seed.DefaultCount, "number of entries")
	rootCmd.AddCommand(seedCmd)
}
