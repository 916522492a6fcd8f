package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/agentic-research/pagefly/api"
	"github.com/agentic-research/pagefly/internal/dir"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(treeCmd)
}

var treeCmd = &cobra.Command{
	Use:   "tree [prefix]",
	Short: "Print the page tree under a prefix",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		prefix := "/"
		if len(args) == 1 {
			prefix = args[0]
		}
		s, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer func() { _ = s.Close() }()

		root, err := dir.Compose(cmd.Context(), s, prefix)
		if err != nil {
			return err
		}
		printTree(cmd.OutOrStdout(), root, 0)
		return nil
	},
}

func printTree(w io.Writer, n *api.DirNode, depth int) {
	_, _ = fmt.Fprintf(w, "%s%s\n", strings.Repeat("  ", depth), n.DisplayName)
	for _, c := range n.Children {
		printTree(w, c, depth+1)
	}
}
