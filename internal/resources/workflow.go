// Package resources provides MCP resources for the Metabase MCP server.
package resources

import (
	"context"
	"encoding/json"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// WorkflowContextURI is the URI for the workflow context resource.
const WorkflowContextURI = "metabase://workflow"

// ToolRelationship describes a relationship between two tools.
type ToolRelationship struct {
	From  string `json:"from"`
	To    string `json:"to"`
	Type  string `json:"type"`
	Field string `json:"field,omitempty"`
}

// WorkflowContext contains the tool relationships and entry points
// for LLM orchestration.
type WorkflowContext struct {
	Version       string             `json:"version"`
	Relationships []ToolRelationship `json:"relationships"`
	EntryPoints   []string           `json:"entryPoints"`
}

// workflowContextData contains the predefined relationships between tools
// that help LLMs understand how to chain tool calls.
var workflowContextData = WorkflowContext{
	Version: "1.0",
	Relationships: []ToolRelationship{
		// The discovery pipeline: find collections first, then search
		// cards inside them.
		{From: "find_candidate_collections", To: "search_cards_in_collections", Type: "provides", Field: "collection_ids"},
		{From: "find_candidate_collections", To: "list_cards_by_collection", Type: "provides", Field: "collection_id"},

		// Collection listings feed card and collection authoring.
		{From: "list_collections", To: "list_cards_by_collection", Type: "provides", Field: "collection_id"},
		{From: "list_collections", To: "create_card", Type: "provides", Field: "collection_id"},
		{From: "list_collections", To: "create_collection", Type: "provides", Field: "parent_id"},

		// Every card listing yields ids runnable through execute_card.
		{From: "search_cards_in_collections", To: "execute_card", Type: "provides", Field: "card_id"},
		{From: "list_cards", To: "execute_card", Type: "provides", Field: "card_id"},
		{From: "list_cards_paginated", To: "execute_card", Type: "provides", Field: "card_id"},
		{From: "list_cards_by_collection", To: "execute_card", Type: "provides", Field: "card_id"},
		{From: "search_metabase", To: "execute_card", Type: "provides", Field: "card_id"},

		// Database exploration: database, then tables, then fields,
		// then ad hoc SQL.
		{From: "list_databases", To: "list_tables", Type: "provides", Field: "database_id"},
		{From: "list_databases", To: "execute_query", Type: "provides", Field: "database_id"},
		{From: "list_databases", To: "create_card", Type: "provides", Field: "database_id"},
		{From: "list_tables", To: "get_table_fields", Type: "provides", Field: "table_id"},

		// Authoring flows.
		{From: "create_collection", To: "create_card", Type: "chains"},
		{From: "create_card", To: "execute_card", Type: "chains"},
		{From: "get_table_fields", To: "execute_query", Type: "chains"},
	},
	EntryPoints: []string{
		"find_candidate_collections",
		"list_databases",
		"list_collections",
		"search_metabase",
	},
}

// NewWorkflowContextResource creates the workflow context resource definition.
func NewWorkflowContextResource() mcp.Resource {
	return mcp.NewResource(
		WorkflowContextURI,
		"Tool Relationships Context",
		mcp.WithResourceDescription("Describes relationships between Metabase MCP tools to help LLMs understand how to chain tool calls effectively."),
		mcp.WithMIMEType("application/json"),
	)
}

// WorkflowContextHandler handles requests for the workflow context resource.
func WorkflowContextHandler(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	jsonData, err := json.Marshal(workflowContextData)
	if err != nil {
		return nil, err
	}

	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      WorkflowContextURI,
			MIMEType: "application/json",
			Text:     string(jsonData),
		},
	}, nil
}

// AddResourcesToServer adds all resources to the MCP server.
func AddResourcesToServer(s *server.MCPServer) {
	s.AddResource(NewWorkflowContextResource(), WorkflowContextHandler)
}
