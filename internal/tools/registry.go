package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// ToolHandler is the function signature for MCP tool handlers
type ToolHandler func(ctx context.Context, args map[string]interface{}) (*mcp.CallToolResult, error)

// ToolRegistration holds a tool's metadata and handler
type ToolRegistration struct {
	Name        string
	Description string
	Handler     ToolHandler
	Schema      mcp.Tool
	Profile     string
}

// Global tool registry
var registry = make(map[string]*ToolRegistration)

// ProfileDefinitions maps profile names to the tools they expose.
// "discovery" is the minimal funnel for finding content, "read_only"
// adds every GET-backed tool, "query" additionally allows running
// saved cards and ad-hoc SQL, and "all" includes the write tools too.
var ProfileDefinitions = map[string][]string{
	"discovery": {
		"find_candidate_collections",
		"search_cards_in_collections",
		"search_metabase",
	},
	"read_only": {
		"find_candidate_collections",
		"search_cards_in_collections",
		"search_metabase",
		"list_cards",
		"list_cards_paginated",
		"list_cards_by_collection",
		"list_collections",
		"list_databases",
		"list_tables",
		"get_table_fields",
	},
	"query": {
		"find_candidate_collections",
		"search_cards_in_collections",
		"search_metabase",
		"list_cards",
		"list_cards_paginated",
		"list_cards_by_collection",
		"list_collections",
		"list_databases",
		"list_tables",
		"get_table_fields",
		"execute_card",
		"execute_query",
	},
	"all": {
		"find_candidate_collections",
		"search_cards_in_collections",
		"search_metabase",
		"list_cards",
		"list_cards_paginated",
		"list_cards_by_collection",
		"list_collections",
		"list_databases",
		"list_tables",
		"get_table_fields",
		"execute_card",
		"execute_query",
		"create_card",
		"create_collection",
	},
}

// RegisterTool adds a tool to the registry
func RegisterTool(reg *ToolRegistration) {
	registry[reg.Name] = reg
}

// GetTool retrieves a tool from the registry
func GetTool(name string) (*ToolRegistration, bool) {
	tool, ok := registry[name]
	return tool, ok
}

// GetAllRegisteredToolNames returns the names of every registered tool
func GetAllRegisteredToolNames() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	return names
}

// GetToolsForProfile returns all tool names for a given profile
func GetToolsForProfile(profile string) []string {
	tools, ok := ProfileDefinitions[profile]
	if !ok {
		return []string{}
	}
	return tools
}

// ValidateToolNames checks that every name refers to a registered tool
func ValidateToolNames(names []string) error {
	for _, name := range names {
		if _, ok := registry[name]; !ok {
			return fmt.Errorf("unknown tool: %s", name)
		}
	}
	return nil
}

// AddToolsToServer adds all tools for a profile to an MCP server
func AddToolsToServer(s *server.MCPServer, profile string) error {
	for _, name := range GetToolsForProfile(profile) {
		reg, ok := GetTool(name)
		if !ok {
			// Tool named by the profile but not implemented - skip silently
			continue
		}

		s.AddTool(reg.Schema, wrapHandler(reg))
	}

	return nil
}

// wrapHandler converts our ToolHandler to mcp-go's expected signature
func wrapHandler(reg *ToolRegistration) func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return reg.Handler(ctx, request.GetArguments())
	}
}

// Helper functions for creating tool results

// ToJSON converts a value to JSON string without HTML escaping
func ToJSON(v interface{}) string {
	var buf bytes.Buffer
	encoder := json.NewEncoder(&buf)
	encoder.SetIndent("", "  ")
	encoder.SetEscapeHTML(false) // Keep &, <, > literal instead of \u0026 style escapes

	if err := encoder.Encode(v); err != nil {
		return fmt.Sprintf("{\"error\": \"failed to marshal JSON: %v\"}", err)
	}

	// encoder.Encode() adds a trailing newline, trim it
	return strings.TrimSuffix(buf.String(), "\n")
}

// SuccessResult creates a successful tool result
func SuccessResult(data interface{}) *mcp.CallToolResult {
	return mcp.NewToolResultText(ToJSON(data))
}

// TextResult creates a successful tool result with raw text
func TextResult(text string) *mcp.CallToolResult {
	return mcp.NewToolResultText(text)
}

// ErrorResult creates an error tool result
func ErrorResult(message string) *mcp.CallToolResult {
	return mcp.NewToolResultError(message)
}

// ErrorResultf creates an error tool result with formatting
func ErrorResultf(format string, args ...interface{}) *mcp.CallToolResult {
	return mcp.NewToolResultError(fmt.Sprintf(format, args...))
}
