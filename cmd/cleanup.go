package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// newCleanupCmd creates the 'cleanup' subcommand.
func newCleanupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cleanup",
		Short: "Remove orphaned image files and reset the failed-URL cache",

		RunE: func(cmd *cobra.Command, _ []string) error {
			_, h, err := buildHarvester(cmd.Context())
			if err != nil {
				return err
			}

			removed, cleared, err := h.Cleanup()
			if err != nil {
				return fmt.Errorf("cleanup: %w", err)
			}
			fmt.Printf("removed %d orphaned files, cleared %d failed URLs\n", removed, cleared)
			return nil
		},
	}
}
