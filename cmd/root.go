// Package cmd defines the CLI commands for the boxhunt executable.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/boxhunt/boxhunt/internal/config"
	"github.com/boxhunt/boxhunt/internal/hunt"
	"github.com/boxhunt/boxhunt/internal/logging"
	"github.com/boxhunt/boxhunt/internal/metrics"
)

var (
	cfgFile    string
	collection string
)

// appKeyType keys the app value in the command context.
type appKeyType struct{}

// app carries the loaded configuration and logger into subcommands.
type app struct {
	cfg    config.Config
	logger *zap.Logger
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "boxhunt",
		Short: "Harvests box images from stock-photo APIs and websites.",
		Long: `boxhunt collects cardboard-box imagery for dataset building. It searches
stock-photo APIs by keyword, crawls packaging websites breadth-first, and runs
every candidate through a download, validation, and perceptual-dedup pipeline
before appending metadata to the collection's CSV store.`,

		SilenceUsage: true,

		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			logger, err := logging.New(cfg.Logging.Development)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			metrics.Init()

			ctx := context.WithValue(cmd.Context(), appKeyType{}, &app{cfg: cfg, logger: logger})
			cmd.SetContext(ctx)
			return nil
		},

		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			if a, ok := cmd.Context().Value(appKeyType{}).(*app); ok && a != nil {
				_ = a.logger.Sync()
			}
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (YAML; BOXHUNT_* env vars override)")
	cmd.PersistentFlags().StringVar(&collection, "collection", "default", "collection name under the data directory")

	cmd.AddCommand(
		newRunCmd(),
		newScrapeCmd(),
		newStatsCmd(),
		newCleanupCmd(),
		newExportCmd(),
		newSourcesCmd(),
		newServeCmd(),
	)
	return cmd
}

func resolveApp(ctx context.Context) (*app, error) {
	a, ok := ctx.Value(appKeyType{}).(*app)
	if !ok || a == nil {
		return nil, errors.New("application services not initialized")
	}
	return a, nil
}

func buildHarvester(ctx context.Context) (*app, *hunt.Harvester, error) {
	a, err := resolveApp(ctx)
	if err != nil {
		return nil, nil, err
	}
	h, err := hunt.Build(a.cfg, collection, a.logger)
	if err != nil {
		return nil, nil, fmt.Errorf("build harvester: %w", err)
	}
	return a, h, nil
}

// Execute is the main entry point.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "boxhunt: %v\n", err)
		os.Exit(1)
	}
}
