package cmd

import (
	"fmt"

	"github.com/agentic-research/pagefly/internal/ingest"
	"github.com/spf13/cobra"
)

var exportPrefix string

func init() {
	exportCmd.Flags().StringVar(&exportPrefix, "prefix", "/", "Only export pages under this prefix")
	rootCmd.AddCommand(exportCmd)
}

var exportCmd = &cobra.Command{
	Use:   "export [dir]",
	Short: "Write pages to a directory; existing files are kept",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer func() { _ = s.Close() }()

		n, err := ingest.Export(cmd.Context(), s, exportPrefix, args[0])
		if err != nil {
			return fmt.Errorf("export to %s: %w", args[0], err)
		}
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Exported %d pages to %s\n", n, args[0])
		return nil
	},
}
