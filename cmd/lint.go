package cmd

import (
	"fmt"
	"sort"

	"github.com/agentic-research/pagefly/internal/linter"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(lintCmd)
}

var lintCmd = &cobra.Command{
	Use:   "lint [page]",
	Short: "Check the SQL of every query a page declares, without running them",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer func() { _ = s.Close() }()

		queries, err := newEngine(s).Queries(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		names := make([]string, 0, len(queries))
		for n := range queries {
			names = append(names, n)
		}
		sort.Strings(names)

		problems := 0
		for _, n := range names {
			diags, err := linter.LintQuery(cmd.Context(), queries[n])
			if err != nil {
				return err
			}
			for _, d := range diags {
				problems++
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", n, d)
			}
		}
		if problems > 0 {
			return fmt.Errorf("%s: %d problems", args[0], problems)
		}
		return nil
	},
}
