package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/kilianp07/carbonlane/config"
	"github.com/kilianp07/carbonlane/core/lane"
	"github.com/kilianp07/carbonlane/core/metrics/eco"
	"github.com/kilianp07/carbonlane/core/timebucket"
	"github.com/kilianp07/carbonlane/pkg/export"
)

var (
	reportFormat string
	reportOut    string
	reportTZ     string
	reportLimit  int
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Write the dashboard report as json, csv, xlsx or pdf",
	RunE: func(cmd *cobra.Command, _ []string) error {
		format, err := export.ParseFormat(reportFormat)
		if err != nil {
			return err
		}
		return withStore(cmd.Context(), func(ctx context.Context, cfg *config.Config, st lane.Store) error {
			loc := cfg.HTTP.Location()
			if reportTZ != "" {
				if loc, err = timebucket.LoadZone(reportTZ); err != nil {
					return err
				}
			}
			sim, err := lane.NewSimulator(st)
			if err != nil {
				return err
			}
			engine, err := eco.NewEngine(st)
			if err != nil {
				return err
			}
			rep, err := export.Build(ctx, engine, sim, loc, lane.SystemClock{}.Now(), reportLimit)
			if err != nil {
				return err
			}
			var w io.Writer = cmd.OutOrStdout()
			if reportOut != "" && reportOut != "-" {
				f, err := os.Create(reportOut)
				if err != nil {
					return err
				}
				defer f.Close()
				w = f
			}
			if err := export.Write(w, format, rep); err != nil {
				return fmt.Errorf("write report: %w", err)
			}
			return nil
		})
	},
}

func init() {
	reportCmd.Flags().StringVarP(&reportFormat, "format", "f", string(export.FormatJSON), "json, csv, xlsx or pdf")
	reportCmd.Flags().StringVarP(&reportOut, "out", "o", "", "output file (stdout when empty)")
	reportCmd.Flags().StringVar(&reportTZ, "tz", "", "reporting time zone (defaults to http.time_zone)")
	reportCmd.Flags().IntVar(&reportLimit, "limit", lane.DefaultRecentLimit, "entries to include")
	rootCmd.AddCommand(reportCmd)
}
