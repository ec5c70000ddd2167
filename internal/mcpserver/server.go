// Package mcpserver exposes usage reports over the Model Context Protocol,
// so an agent can ask about its own spending mid-session.
package mcpserver

import (
	"time"

	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/kspervik/agentmeter/internal/report"
)

// ReportSource builds a session report from durable state.
type ReportSource interface {
	BuildReport(sessionID string, now time.Time) (*report.SessionReport, error)
}

// SessionLister lists active sessions, most recently touched first.
type SessionLister interface {
	ActiveSessions() ([]string, error)
}

// HistorySource queries finalized sessions.
type HistorySource interface {
	Query(since, until time.Time) ([]report.HistoryEntry, error)
	Suggest(since, until time.Time, topN int) ([]string, error)
}

// ServerConfig holds MCP server identity and query defaults.
type ServerConfig struct {
	Name           string
	Version        string
	DefaultDays    int
	TopSuggestions int
}

// ServerDeps wires the report pipeline into the server. Nil fields degrade
// to tool-level errors rather than panics.
type ServerDeps struct {
	Reports  ReportSource
	Sessions SessionLister
	History  HistorySource
}

// Server serves read-only usage tools over MCP.
type Server struct {
	cfg       ServerConfig
	deps      ServerDeps
	mcpServer *mcpserver.MCPServer

	// now is swapped out in tests.
	now func() time.Time
}

// NewServer creates the MCP server and registers all tools.
func NewServer(cfg ServerConfig, deps ServerDeps) *Server {
	if cfg.DefaultDays <= 0 {
		cfg.DefaultDays = 7
	}
	if cfg.TopSuggestions <= 0 {
		cfg.TopSuggestions = 3
	}
	s := &Server{
		cfg:  cfg,
		deps: deps,
		mcpServer: mcpserver.NewMCPServer(
			cfg.Name,
			cfg.Version,
			mcpserver.WithToolCapabilities(false),
		),
		now: time.Now,
	}
	s.registerTools()
	return s
}

// MCPServer exposes the underlying server for transport wiring.
func (s *Server) MCPServer() *mcpserver.MCPServer {
	return s.mcpServer
}

// ServeStdio blocks serving MCP over stdin/stdout until EOF.
func (s *Server) ServeStdio() error {
	return mcpserver.ServeStdio(s.mcpServer)
}

// rangeFromDays converts a trailing-days window into inclusive date bounds.
func (s *Server) rangeFromDays(days int) (since, until time.Time) {
	if days <= 0 {
		days = s.cfg.DefaultDays
	}
	today := s.now().UTC().Truncate(24 * time.Hour)
	return today.AddDate(0, 0, -(days - 1)), today
}
