package main

import (
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/content-extractor/constants"
	"github.com/joseph-ayodele/content-extractor/internal/tool"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the extract_content and extraction_health tools over stdio (MCP)",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, logger, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		srv := tool.NewServer(&tool.Tools{
			Proc:     a.Processor,
			Health:   a.Registry,
			MaxBytes: constants.MCPMaxInputBytes,
		}, version)
		logger.Info("mcp.serving", "transport", "stdio")
		return srv.Run(cmd.Context(), &mcp.StdioTransport{})
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}
