package cmd

import (
	"github.com/spf13/cobra"

	"github.com/joescharf/tickeasy/internal/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start MCP stdio server for Claude Code integration",
	Long: `Start an MCP (Model Context Protocol) server on stdio.

The server acts with the session stored by 'tickeasy login' or
'tickeasy adopt'. Configure in Claude Code with:

  {
    "mcpServers": {
      "tickeasy": { "command": "tickeasy", "args": ["mcp"] }
    }
  }

Available tools: tickeasy_concert_status, tickeasy_list_reviews,
tickeasy_submit_review (only sends with confirm=true)`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return mcpRun()
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}

func mcpRun() error {
	sess, err := cliSession()
	if err != nil {
		return err
	}
	client := newBackend()
	engine, reader, err := newEngine(client, nil)
	if err != nil {
		return err
	}
	return mcp.NewServer(sess, client, reader, engine).ServeStdio(cmdContext())
}
