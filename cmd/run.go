package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// newRunCmd creates the 'run' subcommand, the keyword-driven harvest.
func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run [keyword ...]",
		Short: "Harvest images for keywords via the configured API sources",
		Long: `Searches every enabled stock-photo source for each keyword and pipes the
results through the image pipeline. With no arguments the configured keyword
lists (English and Chinese) are used.`,

		RunE: runRunCommand,
	}
}

func runRunCommand(cmd *cobra.Command, args []string) error {
	a, h, err := buildHarvester(cmd.Context())
	if err != nil {
		return err
	}

	keywords := args
	if len(keywords) == 0 {
		keywords = a.cfg.Keywords()
	}

	report, err := h.HarvestKeywords(cmd.Context(), keywords)
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("harvest: %w", err)
	}

	a.logger.Info("run finished",
		zap.String("run_id", report.RunID),
		zap.Int("keywords", report.Keywords),
		zap.Int("saved", report.Saved),
		zap.Int("failed_keywords", report.Failures),
		zap.Duration("duration", report.Duration),
	)
	fmt.Printf("saved %d images across %d keywords (%d keyword failures) in %s\n",
		report.Saved, report.Keywords, report.Failures, report.Duration.Round(10*time.Millisecond))
	return nil
}
