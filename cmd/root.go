package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kilianp07/carbonlane/app"
	"github.com/kilianp07/carbonlane/config"
	"github.com/kilianp07/carbonlane/core/lane"
	"github.com/kilianp07/carbonlane/infra/logger"
	"github.com/kilianp07/carbonlane/infra/store"
)

var cfgPath string

var rootCmd = &cobra.Command{
	Use:           "carbonlane",
	Short:         "Drive-through emissions service",
	Long:          "Serves the lane entry/exit API and the sustainability dashboard views.",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          run,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "configuration file (yaml or json); CL_ variables override it")
}

// Execute runs the CLI.
func Execute() error { return rootCmd.Execute() }

func run(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	svc, err := app.New(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := svc.Close(); err != nil {
			logger.New("main").Errorf("service close: %v", err)
		}
	}()
	return svc.Run(ctx)
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logger.SetLevel(cfg.Logging.Level)
	return cfg, nil
}

// withStore opens the configured store for one-shot commands.
func withStore(ctx context.Context, fn func(context.Context, *config.Config, lane.Store) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	st, err := store.New(cfg.Store.Module())
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer func() { _ = st.Close() }()
	return fn(ctx, cfg, st)
}
