package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var depsReindex bool

func init() {
	depsCmd.Flags().BoolVar(&depsReindex, "reindex", false, "Rebuild the include index first")
	rootCmd.AddCommand(depsCmd)
}

var depsCmd = &cobra.Command{
	Use:   "deps [page]",
	Short: "List the pages that include a page",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer func() { _ = s.Close() }()

		if depsReindex {
			if err := s.Reindex(cmd.Context()); err != nil {
				return err
			}
		}
		deps, err := s.Dependents(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		for _, d := range deps {
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), d)
		}
		return nil
	},
}
