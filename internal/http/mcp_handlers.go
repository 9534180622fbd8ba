package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"slices"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/kmlx/metabase-mcp/internal/resources"
	"github.com/kmlx/metabase-mcp/internal/tools"
)

// protocolVersion is the MCP protocol revision this bridge speaks
const protocolVersion = "2024-11-05"

func (s *Server) handleMCPRequest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var req struct {
		JSONRPC string                 `json:"jsonrpc"`
		ID      interface{}            `json:"id"`
		Method  string                 `json:"method"`
		Params  map[string]interface{} `json:"params"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeJSONRPCError(w, nil, -32700, "Parse error", err.Error())
		return
	}

	if req.JSONRPC != "2.0" {
		s.writeJSONRPCError(w, req.ID, -32600, "Invalid Request", "jsonrpc must be '2.0'")
		return
	}

	switch req.Method {
	case "ping":
		// Heartbeat, empty result per protocol
		s.writeJSONRPCSuccess(w, req.ID, map[string]interface{}{})
	case "initialize":
		s.handleInitialize(w, r, req.ID, req.Params)
	case "notifications/initialized":
		// Notifications carry no id and expect no response body
		s.logger.Info("Client initialization complete")
		w.WriteHeader(http.StatusNoContent)
	case "tools/list":
		s.handleToolsList(w, r, req.ID)
	case "tools/call":
		s.handleToolCall(w, r, req.ID, req.Params)
	case "resources/list":
		s.handleResourcesList(w, r, req.ID)
	case "resources/read":
		s.handleResourcesRead(w, r, req.ID, req.Params)
	default:
		s.writeJSONRPCError(w, req.ID, -32601, "Method not found", fmt.Sprintf("Unknown method: %s", req.Method))
	}
}

func (s *Server) handleInitialize(w http.ResponseWriter, r *http.Request, id interface{}, params map[string]interface{}) {
	if clientInfo, ok := params["clientInfo"].(map[string]interface{}); ok {
		clientName, _ := clientInfo["name"].(string)
		clientVersion, _ := clientInfo["version"].(string)
		s.logger.Info("MCP client initializing", "client", clientName, "version", clientVersion)
	}

	s.writeJSONRPCSuccess(w, id, map[string]interface{}{
		"protocolVersion": protocolVersion,
		"capabilities": map[string]interface{}{
			"tools":     map[string]interface{}{},
			"resources": map[string]interface{}{},
		},
		"serverInfo": map[string]interface{}{
			"name":    s.config.ServerName,
			"version": "1.0.0",
		},
	})
}

func (s *Server) handleToolsList(w http.ResponseWriter, r *http.Request, id interface{}) {
	toolNames, err := s.getToolsForRequest(r)
	if err != nil {
		s.writeJSONRPCError(w, id, -32602, "Invalid params", err.Error())
		return
	}

	toolList := make([]map[string]interface{}, 0, len(toolNames))
	for _, name := range toolNames {
		reg, ok := tools.GetTool(name)
		if !ok {
			continue
		}
		toolList = append(toolList, map[string]interface{}{
			"name":        reg.Name,
			"description": reg.Description,
			"inputSchema": reg.Schema.InputSchema,
		})
	}

	s.writeJSONRPCSuccess(w, id, map[string]interface{}{
		"tools": toolList,
	})
}

func (s *Server) handleToolCall(w http.ResponseWriter, r *http.Request, id interface{}, params map[string]interface{}) {
	start := time.Now()
	requestID := GetRequestID(r.Context())

	toolName, ok := params["name"].(string)
	if !ok || toolName == "" {
		s.writeJSONRPCError(w, id, -32602, "Invalid params", "Missing or invalid 'name' parameter")
		return
	}

	arguments, ok := params["arguments"].(map[string]interface{})
	if !ok {
		arguments = make(map[string]interface{})
	}

	// Enforce the same visibility as stdio mode: a tool outside the
	// active profile is indistinguishable from an unknown one.
	available, err := s.getToolsForRequest(r)
	if err != nil {
		s.writeJSONRPCError(w, id, -32602, "Invalid params", err.Error())
		return
	}
	if !slices.Contains(available, toolName) {
		s.writeJSONRPCError(w, id, -32601, "Tool not found", fmt.Sprintf("Tool not available: %s", toolName))
		return
	}

	reg, ok := tools.GetTool(toolName)
	if !ok {
		s.writeJSONRPCError(w, id, -32601, "Tool not found", fmt.Sprintf("Unknown tool: %s", toolName))
		return
	}

	s.logger.Info("Tool call started", "request_id", requestID, "tool", toolName)

	ctx := tools.WithGateway(r.Context(), s.gateway)

	result, err := reg.Handler(ctx, arguments)
	duration := time.Since(start)
	if err != nil {
		s.logger.Error("Tool execution failed",
			"request_id", requestID,
			"tool", toolName,
			"duration_ms", duration.Milliseconds(),
			"error", err)
		s.writeJSONRPCError(w, id, -32000, "Tool execution error", err.Error())
		return
	}

	s.logger.Info("Tool call completed",
		"request_id", requestID,
		"tool", toolName,
		"duration_ms", duration.Milliseconds())

	s.writeJSONRPCSuccess(w, id, result)
}

func (s *Server) handleResourcesList(w http.ResponseWriter, _ *http.Request, id interface{}) {
	res := resources.NewWorkflowContextResource()

	s.writeJSONRPCSuccess(w, id, map[string]interface{}{
		"resources": []map[string]interface{}{
			{
				"uri":         res.URI,
				"name":        res.Name,
				"description": res.Description,
				"mimeType":    res.MIMEType,
			},
		},
	})
}

func (s *Server) handleResourcesRead(w http.ResponseWriter, r *http.Request, id interface{}, params map[string]interface{}) {
	uri, ok := params["uri"].(string)
	if !ok || uri == "" {
		s.writeJSONRPCError(w, id, -32602, "Invalid params", "Missing or invalid 'uri' parameter")
		return
	}

	if uri != resources.WorkflowContextURI {
		s.writeJSONRPCError(w, id, -32602, "Invalid params", fmt.Sprintf("Unknown resource: %s", uri))
		return
	}

	contents, err := resources.WorkflowContextHandler(r.Context(), mcp.ReadResourceRequest{})
	if err != nil {
		s.writeJSONRPCError(w, id, -32000, "Resource read error", err.Error())
		return
	}

	s.writeJSONRPCSuccess(w, id, map[string]interface{}{
		"contents": contents,
	})
}
