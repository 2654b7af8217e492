package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// newScrapeCmd creates the 'scrape' subcommand, the website harvest.
func newScrapeCmd() *cobra.Command {
	var maxImages int

	cmd := &cobra.Command{
		Use:   "scrape <url>",
		Short: "Harvest images by crawling a website breadth-first",
		Args:  cobra.ExactArgs(1),

		RunE: func(cmd *cobra.Command, args []string) error {
			_, h, err := buildHarvester(cmd.Context())
			if err != nil {
				return err
			}

			saved, err := h.Scrape(cmd.Context(), args[0], maxImages)
			if err != nil {
				return fmt.Errorf("scrape: %w", err)
			}
			fmt.Printf("saved %d images from %s\n", saved, args[0])
			return nil
		},
	}

	cmd.Flags().IntVar(&maxImages, "max-images", 50, "stop after collecting this many image candidates")
	return cmd
}
