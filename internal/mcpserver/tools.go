package mcpserver

import (
	"context"
	"encoding/json"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/kspervik/agentmeter/internal/report"
)

// registerTools registers all MCP tools on the server.
func (s *Server) registerTools() {
	s.mcpServer.AddTools(
		s.getSessionReportTool(),
		s.getHistoryTool(),
		s.getSuggestionsTool(),
	)
}

func (s *Server) getSessionReportTool() mcpserver.ServerTool {
	tool := mcplib.NewTool("get_session_report",
		mcplib.WithDescription("Get the cost and timing report for one session. Without a session_id, reports on the most recently active session."),
		mcplib.WithString("session_id",
			mcplib.Description("The session to report on; omit for the most recent one"),
		),
	)
	return mcpserver.ServerTool{
		Tool:    tool,
		Handler: s.handleGetSessionReport,
	}
}

func (s *Server) getHistoryTool() mcpserver.ServerTool {
	tool := mcplib.NewTool("get_history",
		mcplib.WithDescription("Get finalized session history with aggregate totals over a trailing window of days"),
		mcplib.WithNumber("days",
			mcplib.Description("How many trailing days to include (defaults to the configured window)"),
		),
	)
	return mcpserver.ServerTool{
		Tool:    tool,
		Handler: s.handleGetHistory,
	}
}

func (s *Server) getSuggestionsTool() mcpserver.ServerTool {
	tool := mcplib.NewTool("get_suggestions",
		mcplib.WithDescription("Get spending-pattern suggestions derived from recent session history"),
		mcplib.WithNumber("days",
			mcplib.Description("How many trailing days to analyze (defaults to the configured window)"),
		),
		mcplib.WithNumber("top_n",
			mcplib.Description("Maximum number of suggestions to return"),
		),
	)
	return mcpserver.ServerTool{
		Tool:    tool,
		Handler: s.handleGetSuggestions,
	}
}

func (s *Server) handleGetSessionReport(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) { //nolint:gocritic // hugeParam: mcp-go handler signature
	if s.deps.Reports == nil {
		return mcplib.NewToolResultError("report source not configured"), nil
	}

	args := req.GetArguments()
	sessionID, _ := args["session_id"].(string)
	if sessionID == "" {
		if s.deps.Sessions == nil {
			return mcplib.NewToolResultError("session_id is required"), nil
		}
		active, err := s.deps.Sessions.ActiveSessions()
		if err != nil {
			return mcplib.NewToolResultErrorFromErr("failed to list sessions", err), nil
		}
		if len(active) == 0 {
			return mcplib.NewToolResultError("no active session; pass session_id explicitly"), nil
		}
		sessionID = active[0]
	}

	r, err := s.deps.Reports.BuildReport(sessionID, s.now())
	if err != nil {
		return mcplib.NewToolResultErrorFromErr("failed to build report", err), nil
	}
	data, err := json.Marshal(r)
	if err != nil {
		return mcplib.NewToolResultErrorFromErr("failed to marshal report", err), nil
	}
	return mcplib.NewToolResultText(string(data)), nil
}

func (s *Server) handleGetHistory(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) { //nolint:gocritic // hugeParam: mcp-go handler signature
	if s.deps.History == nil {
		return mcplib.NewToolResultError("history not configured"), nil
	}

	days, _ := req.GetArguments()["days"].(float64)
	since, until := s.rangeFromDays(int(days))

	entries, err := s.deps.History.Query(since, until)
	if err != nil {
		return mcplib.NewToolResultErrorFromErr("failed to query history", err), nil
	}

	payload := struct {
		Totals  *report.HistoryReport `json:"totals"`
		Entries []report.HistoryEntry `json:"entries"`
	}{
		Totals:  report.Aggregate(entries, since, until),
		Entries: entries,
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return mcplib.NewToolResultErrorFromErr("failed to marshal history", err), nil
	}
	return mcplib.NewToolResultText(string(data)), nil
}

func (s *Server) handleGetSuggestions(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) { //nolint:gocritic // hugeParam: mcp-go handler signature
	if s.deps.History == nil {
		return mcplib.NewToolResultError("history not configured"), nil
	}

	args := req.GetArguments()
	days, _ := args["days"].(float64)
	topN, _ := args["top_n"].(float64)
	if int(topN) <= 0 {
		topN = float64(s.cfg.TopSuggestions)
	}
	since, until := s.rangeFromDays(int(days))

	suggestions, err := s.deps.History.Suggest(since, until, int(topN))
	if err != nil {
		return mcplib.NewToolResultErrorFromErr("failed to derive suggestions", err), nil
	}
	if suggestions == nil {
		suggestions = []string{}
	}
	data, err := json.Marshal(struct {
		Suggestions []string `json:"suggestions"`
	}{suggestions})
	if err != nil {
		return mcplib.NewToolResultErrorFromErr("failed to marshal suggestions", err), nil
	}
	return mcplib.NewToolResultText(string(data)), nil
}
