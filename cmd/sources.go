package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// newSourcesCmd creates the 'sources' subcommand, a credentials probe.
func newSourcesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sources",
		Short: "Probe each configured API source with a small search",

		RunE: func(cmd *cobra.Command, _ []string) error {
			_, h, err := buildHarvester(cmd.Context())
			if err != nil {
				return err
			}

			for _, status := range h.TestSources(cmd.Context()) {
				if status.OK {
					fmt.Printf("%-12s ok (%d results)\n", status.Name, status.Results)
					continue
				}
				fmt.Printf("%-12s FAILED: %s\n", status.Name, status.Err)
			}
			return nil
		},
	}
}
