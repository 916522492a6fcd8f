package cmd

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var composeJSON bool

func init() {
	composeCmd.Flags().BoolVar(&composeJSON, "json", false, "Print the full composed output as JSON")
	rootCmd.AddCommand(composeCmd)
}

var composeCmd = &cobra.Command{
	Use:   "compose [page]",
	Short: "Compose a page and print its output",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer func() { _ = s.Close() }()

		out, err := newEngine(s).Compose(cmd.Context(), args[0])
		if out == nil {
			return err
		}
		w := cmd.OutOrStdout()
		if composeJSON {
			b, mErr := json.MarshalIndent(out, "", "  ")
			if mErr != nil {
				return mErr
			}
			_, _ = fmt.Fprintln(w, string(b))
			return err
		}
		if err != nil {
			return errors.New(out.Error.String())
		}

		_, _ = fmt.Fprint(w, out.OutputText)
		for _, t := range out.Tiles {
			b, mErr := json.Marshal(t)
			if mErr != nil {
				return mErr
			}
			_, _ = fmt.Fprintf(w, "\n%s", b)
		}
		_, _ = fmt.Fprintln(w)
		return nil
	},
}
