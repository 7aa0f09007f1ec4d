package mcp

import (
	"context"
	"database/sql"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/jlindqvist/braid/internal/config"
	"github.com/jlindqvist/braid/internal/contextmgr"
)

// toolEntry pairs a tool definition with a handler factory.
type toolEntry struct {
	def     mcp.Tool
	handler func(*Handlers) server.ToolHandlerFunc
}

// toolRegistry maps tool names to their definitions and handler factories.
var toolRegistry = map[string]toolEntry{
	"context_get": {
		def:     contextGetToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleContextGet },
	},
	"context_append": {
		def:     contextAppendToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleContextAppend },
	},
	"context_usage": {
		def:     contextUsageToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleContextUsage },
	},
	"context_reset": {
		def:     contextResetToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleContextReset },
	},
	"session_create": {
		def:     sessionCreateToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleSessionCreate },
	},
	"project_create": {
		def:     projectCreateToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleProjectCreate },
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

// NewServer creates a new MCP server with Braid tools registered.
// Tools listed in cfg.DisabledTools are excluded from registration.
func NewServer(manager *contextmgr.Manager, database *sql.DB, cfg *config.Config, version string) *server.MCPServer {
	s := server.NewMCPServer(
		"braid",
		version,
		server.WithToolCapabilities(true),
	)

	h := NewHandlers(manager, database, cfg)

	disabled := make(map[string]bool)
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
func Run(manager *contextmgr.Manager, database *sql.DB, cfg *config.Config, version string) error {
	s := NewServer(manager, database, cfg, version)
	return server.ServeStdio(s)
}

// ToolHandlerFunc is the signature for tool handlers.
type ToolHandlerFunc func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error)
