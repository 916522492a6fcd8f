package cmd

import (
	"github.com/agentic-research/pagefly/internal/mcpserver"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(mcpCmd)
}

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the page tools over MCP on stdio",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer func() { _ = s.Close() }()

		svc := mcpserver.NewPageService(newEngine(s), s)
		srv := mcpserver.New(svc, cfg.MCP.Name, cfg.MCP.Version)
		logger.Info("serving MCP on stdio", "name", cfg.MCP.Name, "database", cfg.Database)
		return mcpserver.ServeStdio(cmd.Context(), srv)
	},
}
