package cmd

import (
	"fmt"
	"time"

	"github.com/agentic-research/pagefly/internal/ingest"
	"github.com/spf13/cobra"
)

var importSelector string

func init() {
	importCmd.Flags().StringVar(&importSelector, "selector", ingest.DefaultSelector, "JSONPath selecting page records in a JSON export")
	rootCmd.AddCommand(importCmd)
}

var importCmd = &cobra.Command{
	Use:   "import [source]",
	Short: "Import pages from a directory, a JSON export or another page database",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer func() { _ = s.Close() }()

		start := time.Now()
		im := ingest.NewImporter(s, logger)
		im.Selector = importSelector
		n, err := im.Import(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("import %s: %w", args[0], err)
		}
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Imported %d pages into %s in %v\n", n, cfg.Database, time.Since(start))
		return nil
	},
}
