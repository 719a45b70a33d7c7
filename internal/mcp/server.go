package mcp

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/clipworks/evclip/internal/config"
)

// toolEntry pairs a tool definition with a handler factory.
type toolEntry struct {
	def     mcp.Tool
	handler func(*Handlers) server.ToolHandlerFunc
}

// toolRegistry maps tool names to their definitions and handler factories.
var toolRegistry = map[string]toolEntry{
	"page_capture": {
		def:     captureToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleCapture },
	},
	"bundle_list": {
		def:     bundleListToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleBundleList },
	},
	"bundle_create": {
		def:     bundleCreateToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleBundleCreate },
	},
	"bundle_delete": {
		def:     bundleDeleteToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleBundleDelete },
	},
	"bundle_clear": {
		def:     bundleClearToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleBundleClear },
	},
	"bundle_export": {
		def:     bundleExportToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleBundleExport },
	},
	"page_move": {
		def:     pageMoveToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandlePageMove },
	},
	"page_remove": {
		def:     pageRemoveToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandlePageRemove },
	},
	"url_lookup": {
		def:     urlLookupToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleLookup },
	},
	"catalog_sync": {
		def:     catalogSyncToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleSync },
	},
	"event_update": {
		def:     eventUpdateToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleEventUpdate },
	},
	"upload_status": {
		def:     uploadStatusToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleUploadStatus },
	},
	"upload_retry": {
		def:     uploadRetryToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleUploadRetry },
	},
	"uploads_flush": {
		def:     uploadsFlushToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleUploadsFlush },
	},
	"settings_get": {
		def:     settingsGetToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleSettingsGet },
	},
	"settings_update": {
		def:     settingsUpdateToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleSettingsUpdate },
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

// NewServer creates a new MCP server with evclip tools registered.
// Tools listed in cfg.DisabledTools are excluded from registration.
func NewServer(h *Handlers, cfg *config.Config, version string) *server.MCPServer {
	s := server.NewMCPServer(
		"evclip",
		version,
		server.WithToolCapabilities(true),
	)

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
func Run(h *Handlers, cfg *config.Config, version string) error {
	s := NewServer(h, cfg, version)
	return server.ServeStdio(s)
}

// ToolHandlerFunc is the signature for tool handlers.
type ToolHandlerFunc func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error)
