package cmd

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"
)

// newStatsCmd creates the 'stats' subcommand.
func newStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print collection statistics",

		RunE: func(cmd *cobra.Command, _ []string) error {
			_, h, err := buildHarvester(cmd.Context())
			if err != nil {
				return err
			}

			stats, err := h.Statistics()
			if err != nil {
				return fmt.Errorf("statistics: %w", err)
			}

			fmt.Printf("collection: %s\n", collection)
			fmt.Printf("images:     %d\n", stats.TotalImages)
			fmt.Printf("bytes:      %d\n", stats.TotalBytes)
			fmt.Printf("avg size:   %dx%d\n", stats.AvgWidth, stats.AvgHeight)

			fmt.Println("by source:")
			for _, name := range sortedKeys(stats.Sources) {
				fmt.Printf("  %-12s %d\n", name, stats.Sources[name])
			}
			fmt.Println("by format:")
			for _, name := range sortedKeys(stats.Formats) {
				fmt.Printf("  %-12s %d\n", name, stats.Formats[name])
			}
			return nil
		},
	}
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
