package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kmlx/metabase-mcp/internal/metabase"
	"github.com/kmlx/metabase-mcp/internal/resources"
	"github.com/kmlx/metabase-mcp/internal/tools/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	// Tool packages register themselves at init
	_ "github.com/kmlx/metabase-mcp/internal/tools/cards"
	_ "github.com/kmlx/metabase-mcp/internal/tools/collections"
	_ "github.com/kmlx/metabase-mcp/internal/tools/databases"
	_ "github.com/kmlx/metabase-mcp/internal/tools/discovery"
)

func postRPC(t *testing.T, s *Server, payload map[string]interface{}, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	body, err := json.Marshal(payload)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/mcp", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		req.Header.Set(k, v)
	}

	w := httptest.NewRecorder()
	s.server.Handler.ServeHTTP(w, req)
	return w
}

func rpcResponse(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func rpcErrorCode(t *testing.T, resp map[string]interface{}) float64 {
	t.Helper()

	errorObj, ok := resp["error"].(map[string]interface{})
	require.True(t, ok, "expected an error object, got: %v", resp)
	code, ok := errorObj["code"].(float64)
	require.True(t, ok)
	return code
}

// resultText pulls the first text content block from a tools/call result
func resultText(t *testing.T, resp map[string]interface{}) string {
	t.Helper()

	result, ok := resp["result"].(map[string]interface{})
	require.True(t, ok, "expected a result object, got: %v", resp)
	content, ok := result["content"].([]interface{})
	require.True(t, ok)
	require.NotEmpty(t, content)
	first, ok := content[0].(map[string]interface{})
	require.True(t, ok)
	text, _ := first["text"].(string)
	return text
}

func TestMCPInitialize(t *testing.T) {
	srv := newTestServer(t, "all", &testutil.MockGateway{})

	w := postRPC(t, srv, map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  "initialize",
		"params": map[string]interface{}{
			"clientInfo": map[string]interface{}{"name": "test-client", "version": "0.1"},
		},
	}, nil)

	assert.Equal(t, http.StatusOK, w.Code)

	resp := rpcResponse(t, w)
	assert.Equal(t, "2.0", resp["jsonrpc"])

	result, ok := resp["result"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, protocolVersion, result["protocolVersion"])

	serverInfo, ok := result["serverInfo"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "metabase-mcp", serverInfo["name"])
}

func TestMCPPing(t *testing.T) {
	srv := newTestServer(t, "all", &testutil.MockGateway{})

	w := postRPC(t, srv, map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      7,
		"method":  "ping",
	}, nil)

	resp := rpcResponse(t, w)
	assert.Equal(t, float64(7), resp["id"])
	assert.Equal(t, map[string]interface{}{}, resp["result"])
}

func TestMCPNotificationInitialized(t *testing.T) {
	srv := newTestServer(t, "all", &testutil.MockGateway{})

	w := postRPC(t, srv, map[string]interface{}{
		"jsonrpc": "2.0",
		"method":  "notifications/initialized",
	}, nil)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Empty(t, w.Body.String())
}

func TestMCPParseError(t *testing.T) {
	srv := newTestServer(t, "all", &testutil.MockGateway{})

	req := httptest.NewRequest(http.MethodPost, "/mcp", bytes.NewReader([]byte("not json")))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	srv.server.Handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code, "JSON-RPC errors still ride on 200")
	assert.Equal(t, float64(-32700), rpcErrorCode(t, rpcResponse(t, w)))
}

func TestMCPInvalidVersion(t *testing.T) {
	srv := newTestServer(t, "all", &testutil.MockGateway{})

	w := postRPC(t, srv, map[string]interface{}{
		"jsonrpc": "1.0",
		"id":      1,
		"method":  "initialize",
	}, nil)

	assert.Equal(t, float64(-32600), rpcErrorCode(t, rpcResponse(t, w)))
}

func TestMCPUnknownMethod(t *testing.T) {
	srv := newTestServer(t, "all", &testutil.MockGateway{})

	w := postRPC(t, srv, map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  "prompts/list",
	}, nil)

	assert.Equal(t, float64(-32601), rpcErrorCode(t, rpcResponse(t, w)))
}

func TestMCPMethodNotAllowed(t *testing.T) {
	srv := newTestServer(t, "all", &testutil.MockGateway{})

	w := doRequest(t, srv, http.MethodGet, "/mcp", nil)

	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestToolsList_DiscoveryProfile(t *testing.T) {
	srv := newTestServer(t, "discovery", &testutil.MockGateway{})

	w := postRPC(t, srv, map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  "tools/list",
	}, nil)

	resp := rpcResponse(t, w)
	result := resp["result"].(map[string]interface{})
	toolList := result["tools"].([]interface{})

	require.Len(t, toolList, 3)

	names := make([]string, 0, len(toolList))
	for _, entry := range toolList {
		tool := entry.(map[string]interface{})
		assert.NotEmpty(t, tool["name"])
		assert.NotEmpty(t, tool["description"])
		assert.NotNil(t, tool["inputSchema"])
		names = append(names, tool["name"].(string))
	}
	assert.Contains(t, names, "find_candidate_collections")
	assert.Contains(t, names, "search_cards_in_collections")
	assert.Contains(t, names, "search_metabase")
}

func TestToolsList_AllProfile(t *testing.T) {
	srv := newTestServer(t, "all", &testutil.MockGateway{})

	w := postRPC(t, srv, map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  "tools/list",
	}, nil)

	resp := rpcResponse(t, w)
	result := resp["result"].(map[string]interface{})
	toolList := result["tools"].([]interface{})

	assert.Len(t, toolList, 14)
}

func TestToolsList_HeaderNarrowsAllProfile(t *testing.T) {
	srv := newTestServer(t, "all", &testutil.MockGateway{})

	w := postRPC(t, srv, map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  "tools/list",
	}, map[string]string{HeaderMCPTools: "list_databases, execute_query"})

	resp := rpcResponse(t, w)
	result := resp["result"].(map[string]interface{})
	toolList := result["tools"].([]interface{})

	require.Len(t, toolList, 2)
	assert.Equal(t, "list_databases", toolList[0].(map[string]interface{})["name"])
	assert.Equal(t, "execute_query", toolList[1].(map[string]interface{})["name"])
}

func TestToolsList_HeaderRejectsUnknownTool(t *testing.T) {
	srv := newTestServer(t, "all", &testutil.MockGateway{})

	w := postRPC(t, srv, map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  "tools/list",
	}, map[string]string{HeaderMCPTools: "no_such_tool"})

	assert.Equal(t, float64(-32602), rpcErrorCode(t, rpcResponse(t, w)))
}

func TestToolsList_HeaderIgnoredForNarrowProfile(t *testing.T) {
	srv := newTestServer(t, "discovery", &testutil.MockGateway{})

	w := postRPC(t, srv, map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  "tools/list",
	}, map[string]string{HeaderMCPTools: "list_databases"})

	resp := rpcResponse(t, w)
	result := resp["result"].(map[string]interface{})
	toolList := result["tools"].([]interface{})

	assert.Len(t, toolList, 3, "header must not widen a narrow profile")
}

func TestResourcesList(t *testing.T) {
	srv := newTestServer(t, "all", &testutil.MockGateway{})

	w := postRPC(t, srv, map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  "resources/list",
	}, nil)

	resp := rpcResponse(t, w)
	result := resp["result"].(map[string]interface{})
	resourceList := result["resources"].([]interface{})

	require.Len(t, resourceList, 1)
	entry := resourceList[0].(map[string]interface{})
	assert.Equal(t, resources.WorkflowContextURI, entry["uri"])
	assert.Equal(t, "application/json", entry["mimeType"])
	assert.NotEmpty(t, entry["name"])
}

func TestResourcesRead(t *testing.T) {
	srv := newTestServer(t, "all", &testutil.MockGateway{})

	w := postRPC(t, srv, map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  "resources/read",
		"params":  map[string]interface{}{"uri": resources.WorkflowContextURI},
	}, nil)

	resp := rpcResponse(t, w)
	result, ok := resp["result"].(map[string]interface{})
	require.True(t, ok, "expected a result object, got: %v", resp)
	contents, ok := result["contents"].([]interface{})
	require.True(t, ok)
	require.Len(t, contents, 1)

	first := contents[0].(map[string]interface{})
	assert.Equal(t, resources.WorkflowContextURI, first["uri"])

	text, _ := first["text"].(string)
	assert.Contains(t, text, "relationships")
	assert.Contains(t, text, "find_candidate_collections")
}

func TestResourcesRead_UnknownURI(t *testing.T) {
	srv := newTestServer(t, "all", &testutil.MockGateway{})

	w := postRPC(t, srv, map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  "resources/read",
		"params":  map[string]interface{}{"uri": "metabase://unknown"},
	}, nil)

	assert.Equal(t, float64(-32602), rpcErrorCode(t, rpcResponse(t, w)))
}

func TestToolCall_Success(t *testing.T) {
	gateway := &testutil.MockGateway{
		ListCollectionsFunc: func(ctx context.Context) (*metabase.CollectionList, error) {
			return &metabase.CollectionList{
				Collections: []metabase.Collection{
					{ID: 1, Name: "Sales Reports", Description: "Quarterly numbers"},
					{ID: 2, Name: "Engineering"},
				},
				Searched: 2,
			}, nil
		},
	}
	srv := newTestServer(t, "discovery", gateway)

	w := postRPC(t, srv, map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  "tools/call",
		"params": map[string]interface{}{
			"name":      "find_candidate_collections",
			"arguments": map[string]interface{}{"query": "sales"},
		},
	}, nil)

	resp := rpcResponse(t, w)
	text := resultText(t, resp)
	assert.Contains(t, text, "Sales Reports")
	assert.NotContains(t, text, "Engineering")

	result := resp["result"].(map[string]interface{})
	assert.Nil(t, result["isError"])
}

func TestToolCall_UpstreamFailureIsToolError(t *testing.T) {
	gateway := &testutil.MockGateway{
		ListCollectionsFunc: func(ctx context.Context) (*metabase.CollectionList, error) {
			return nil, &metabase.Error{
				Kind:    metabase.ErrKindConnectError,
				Message: "connection error when connecting to http://example.test: refused",
			}
		},
	}
	srv := newTestServer(t, "discovery", gateway)

	w := postRPC(t, srv, map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  "tools/call",
		"params": map[string]interface{}{
			"name":      "find_candidate_collections",
			"arguments": map[string]interface{}{"query": "sales"},
		},
	}, nil)

	resp := rpcResponse(t, w)
	result, ok := resp["result"].(map[string]interface{})
	require.True(t, ok, "handler errors surface as tool results, not JSON-RPC errors")
	assert.Equal(t, true, result["isError"])
	assert.Contains(t, resultText(t, resp), "connection error")
}

func TestToolCall_MissingName(t *testing.T) {
	srv := newTestServer(t, "all", &testutil.MockGateway{})

	w := postRPC(t, srv, map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  "tools/call",
		"params":  map[string]interface{}{"arguments": map[string]interface{}{}},
	}, nil)

	assert.Equal(t, float64(-32602), rpcErrorCode(t, rpcResponse(t, w)))
}

func TestToolCall_UnknownTool(t *testing.T) {
	srv := newTestServer(t, "all", &testutil.MockGateway{})

	w := postRPC(t, srv, map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  "tools/call",
		"params": map[string]interface{}{
			"name":      "does_not_exist",
			"arguments": map[string]interface{}{},
		},
	}, nil)

	assert.Equal(t, float64(-32601), rpcErrorCode(t, rpcResponse(t, w)))
}

func TestToolCall_OutsideProfile(t *testing.T) {
	srv := newTestServer(t, "discovery", &testutil.MockGateway{})

	w := postRPC(t, srv, map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  "tools/call",
		"params": map[string]interface{}{
			"name":      "create_card",
			"arguments": map[string]interface{}{},
		},
	}, nil)

	assert.Equal(t, float64(-32601), rpcErrorCode(t, rpcResponse(t, w)))
}

func TestToolCall_MissingArgumentsDefaultsEmpty(t *testing.T) {
	srv := newTestServer(t, "discovery", &testutil.MockGateway{})

	w := postRPC(t, srv, map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  "tools/call",
		"params":  map[string]interface{}{"name": "find_candidate_collections"},
	}, nil)

	resp := rpcResponse(t, w)
	result, ok := resp["result"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, true, result["isError"])
	assert.Contains(t, resultText(t, resp), "query parameter is required")
}
