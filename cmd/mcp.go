package cmd

import (
	"github.com/spf13/cobra"

	"github.com/kspervik/agentmeter/internal/mcpserver"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve usage reports over MCP on stdio",
	Long: `Exposes get_session_report, get_history and get_suggestions as MCP tools
over stdin/stdout, so an agent can ask about its own usage mid-session.`,
	RunE: runMCP,
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}

func runMCP(_ *cobra.Command, _ []string) error {
	st, err := loadStack()
	if err != nil {
		return err
	}

	store, err := st.openHistory()
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	srv := mcpserver.NewServer(
		mcpserver.ServerConfig{
			Name:           "agentmeter",
			Version:        version,
			DefaultDays:    st.days(),
			TopSuggestions: st.cfg.Report.TopSuggestions,
		},
		mcpserver.ServerDeps{
			Reports:  st.agg,
			Sessions: st.recorder,
			History:  store,
		},
	)
	return srv.ServeStdio()
}
