package mcp

import (
	"database/sql"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/hpungsan/nosh/internal/config"
	"github.com/hpungsan/nosh/internal/pipeline"
)

// toolEntry pairs a tool definition with a handler factory.
type toolEntry struct {
	def     mcp.Tool
	handler func(*Handlers) server.ToolHandlerFunc
}

// toolRegistry maps tool names to their definitions and handler factories.
var toolRegistry = map[string]toolEntry{
	"nutrition_message": {
		def:     messageToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleMessage },
	},
	"nutrition_daily_summary": {
		def:     dailySummaryToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleDailySummary },
	},
	"nutrition_period_summary": {
		def:     periodSummaryToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandlePeriodSummary },
	},
	"nutrition_entries": {
		def:     entriesToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleEntries },
	},
	"nutrition_set_targets": {
		def:     setTargetsToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleSetTargets },
	},
	"nutrition_delete_entry": {
		def:     deleteEntryToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleDeleteEntry },
	},
}

// AllToolNames returns a list of all valid tool names.
func AllToolNames() []string {
	names := make([]string, 0, len(toolRegistry))
	for name := range toolRegistry {
		names = append(names, name)
	}
	return names
}

// ValidateDisabledTools returns a list of unknown tool names from the given list.
func ValidateDisabledTools(names []string) []string {
	unknown := make([]string, 0)
	for _, name := range names {
		if _, ok := toolRegistry[name]; !ok {
			unknown = append(unknown, name)
		}
	}
	return unknown
}

// NewServer creates a new MCP server with the nutrition tools registered.
// Tools listed in cfg.DisabledTools are excluded from registration.
func NewServer(db *sql.DB, cfg *config.Config, pipe *pipeline.Pipeline, version string) *server.MCPServer {
	s := server.NewMCPServer(
		"nosh",
		version,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
	)

	h := NewHandlers(db, cfg, pipe)

	disabled := make(map[string]bool, len(cfg.DisabledTools))
	for _, name := range cfg.DisabledTools {
		disabled[name] = true
	}

	for name, entry := range toolRegistry {
		if disabled[name] {
			continue
		}
		s.AddTool(entry.def, entry.handler(h))
	}

	return s
}

// Run starts the MCP server using stdio transport.
func Run(db *sql.DB, cfg *config.Config, pipe *pipeline.Pipeline, version string) error {
	s := NewServer(db, cfg, pipe, version)
	return server.ServeStdio(s)
}
