package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// newExportCmd creates the 'export' subcommand.
func newExportCmd() *cobra.Command {
	var (
		format  string
		outPath string
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export collection metadata as csv or json",

		RunE: func(cmd *cobra.Command, _ []string) error {
			_, h, err := buildHarvester(cmd.Context())
			if err != nil {
				return err
			}

			path, err := h.Export(format, outPath)
			if err != nil {
				return fmt.Errorf("export: %w", err)
			}
			fmt.Printf("exported to %s\n", path)
			return nil
		},
	}

	cmd.Flags().StringVar(&format, "format", "csv", "output format (csv or json)")
	cmd.Flags().StringVar(&outPath, "out", "", "output path (default: alongside the store)")
	return cmd
}
