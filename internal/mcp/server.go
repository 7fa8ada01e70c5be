package mcp

import (
	"sort"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/hpungsan/memclass/internal/logflags"
	"github.com/hpungsan/memclass/internal/ops"
)

// KnownTypes lists all valid type names.
var KnownTypes = []string{"class", "field", "memory", "project", "bookmark"}

// toolEntry pairs a tool definition with a handler factory.
type toolEntry struct {
	def     mcp.Tool
	handler func(*Handlers) server.ToolHandlerFunc
}

// toolRegistry maps tool names to their definitions and handler factories.
var toolRegistry = map[string]toolEntry{
	"class_create":       {classCreateToolDef, func(h *Handlers) server.ToolHandlerFunc { return h.HandleClassCreate }},
	"class_list":         {classListToolDef, func(h *Handlers) server.ToolHandlerFunc { return h.HandleClassList }},
	"class_get":          {classGetToolDef, func(h *Handlers) server.ToolHandlerFunc { return h.HandleClassGet }},
	"class_rename":       {classRenameToolDef, func(h *Handlers) server.ToolHandlerFunc { return h.HandleClassRename }},
	"class_delete":       {classDeleteToolDef, func(h *Handlers) server.ToolHandlerFunc { return h.HandleClassDelete }},
	"class_generate":     {classGenerateToolDef, func(h *Handlers) server.ToolHandlerFunc { return h.HandleClassGenerate }},
	"field_add":          {fieldAddToolDef, func(h *Handlers) server.ToolHandlerFunc { return h.HandleFieldAdd }},
	"field_remove":       {fieldRemoveToolDef, func(h *Handlers) server.ToolHandlerFunc { return h.HandleFieldRemove }},
	"field_set_kind":     {fieldSetKindToolDef, func(h *Handlers) server.ToolHandlerFunc { return h.HandleFieldSetKind }},
	"field_rename":       {fieldRenameToolDef, func(h *Handlers) server.ToolHandlerFunc { return h.HandleFieldRename }},
	"field_move":         {fieldMoveToolDef, func(h *Handlers) server.ToolHandlerFunc { return h.HandleFieldMove }},
	"memory_attach":      {memoryAttachToolDef, func(h *Handlers) server.ToolHandlerFunc { return h.HandleMemoryAttach }},
	"memory_attach_dump": {memoryAttachDumpToolDef, func(h *Handlers) server.ToolHandlerFunc { return h.HandleMemoryAttachDump }},
	"memory_detach":      {memoryDetachToolDef, func(h *Handlers) server.ToolHandlerFunc { return h.HandleMemoryDetach }},
	"memory_resolve":     {memoryResolveToolDef, func(h *Handlers) server.ToolHandlerFunc { return h.HandleMemoryResolve }},
	"memory_inspect":     {memoryInspectToolDef, func(h *Handlers) server.ToolHandlerFunc { return h.HandleMemoryInspect }},
	"memory_write":       {memoryWriteToolDef, func(h *Handlers) server.ToolHandlerFunc { return h.HandleMemoryWrite }},
	"project_save":       {projectSaveToolDef, func(h *Handlers) server.ToolHandlerFunc { return h.HandleProjectSave }},
	"project_open":       {projectOpenToolDef, func(h *Handlers) server.ToolHandlerFunc { return h.HandleProjectOpen }},
	"project_new":        {projectNewToolDef, func(h *Handlers) server.ToolHandlerFunc { return h.HandleProjectNew }},
	"project_recent":     {projectRecentToolDef, func(h *Handlers) server.ToolHandlerFunc { return h.HandleProjectRecent }},
	"bookmark_save":      {bookmarkSaveToolDef, func(h *Handlers) server.ToolHandlerFunc { return h.HandleBookmarkSave }},
	"bookmark_list":      {bookmarkListToolDef, func(h *Handlers) server.ToolHandlerFunc { return h.HandleBookmarkList }},
	"bookmark_delete":    {bookmarkDeleteToolDef, func(h *Handlers) server.ToolHandlerFunc { return h.HandleBookmarkDelete }},
	"bookmark_apply":     {bookmarkApplyToolDef, func(h *Handlers) server.ToolHandlerFunc { return h.HandleBookmarkApply }},
}

// AllToolNames returns every tool name, sorted.
func AllToolNames() []string {
	names := make([]string, 0, len(toolRegistry))
	for name := range toolRegistry {
		names = append(names, name)
	}
	sort.Strings(names)
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

// ValidateDisabledTypes returns a list of unknown type names from the given list.
func ValidateDisabledTypes(names []string) []string {
	known := make(map[string]bool, len(KnownTypes))
	for _, t := range KnownTypes {
		known[t] = true
	}

	unknown := make([]string, 0)
	for _, name := range names {
		if !known[name] {
			unknown = append(unknown, name)
		}
	}
	return unknown
}

// GetTypeForTool extracts the type name from a tool name.
// Tool names follow the pattern "type_action" (e.g., "memory_inspect" → "memory").
func GetTypeForTool(toolName string) string {
	if idx := strings.Index(toolName, "_"); idx > 0 {
		return toolName[:idx]
	}
	return ""
}

// ExpandTypesToTools returns all tool names belonging to the given types.
func ExpandTypesToTools(types []string) []string {
	if len(types) == 0 {
		return nil
	}

	typeSet := make(map[string]bool, len(types))
	for _, t := range types {
		typeSet[t] = true
	}

	tools := make([]string, 0)
	for name := range toolRegistry {
		if typeSet[GetTypeForTool(name)] {
			tools = append(tools, name)
		}
	}
	sort.Strings(tools)
	return tools
}

// EnabledTools returns the tool names left after applying the session
// config's disabled_types and disabled_tools, sorted.
func EnabledTools(sess *ops.Session) []string {
	cfg := sess.Config()
	disabled := make(map[string]bool)
	for _, tool := range ExpandTypesToTools(cfg.DisabledTypes) {
		disabled[tool] = true
	}
	for _, name := range cfg.DisabledTools {
		disabled[name] = true
	}

	enabled := make([]string, 0, len(toolRegistry))
	for _, name := range AllToolNames() {
		if !disabled[name] {
			enabled = append(enabled, name)
		}
	}
	return enabled
}

// NewServer creates a new MCP server with memclass tools registered.
// Tools listed in cfg.DisabledTools or belonging to cfg.DisabledTypes
// are excluded from registration.
func NewServer(sess *ops.Session, version string) *server.MCPServer {
	s := server.NewMCPServer(
		"memclass",
		version,
		server.WithToolCapabilities(true),
	)

	h := NewHandlers(sess)
	enabled := EnabledTools(sess)
	for _, name := range enabled {
		entry := toolRegistry[name]
		s.AddTool(entry.def, entry.handler(h))
	}
	logflags.MCPLogger().WithField("tools", len(enabled)).Debug("tools registered")
	return s
}

// Run starts the MCP server using stdio transport.
func Run(sess *ops.Session, version string) error {
	return server.ServeStdio(NewServer(sess, version))
}
