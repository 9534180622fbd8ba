package http

import (
	"net/http"
	"time"
)

// setupRoutes configures HTTP routes
func (s *Server) setupRoutes() {
	// Root handles MCP requests when the client is configured without
	// the /mcp suffix
	s.mux.HandleFunc("/", s.handleRootRequest)

	// MCP JSON-RPC endpoint
	s.mux.HandleFunc("/mcp", s.handleMCPRequest)

	// Health check endpoints
	s.mux.HandleFunc("/ping", s.handlePing)
	s.mux.HandleFunc("/health", s.handleHealth)
	s.mux.HandleFunc("/ready", s.handleReady)
}

// handlePing mirrors the upstream heartbeat route
func (s *Server) handlePing(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": "healthy",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

// handleReady reports readiness. The gateway holds no connections
// until the first tool call, so the server is ready once it serves.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": "ready",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

// handleRootRequest handles requests to the root path "/"
func (s *Server) handleRootRequest(w http.ResponseWriter, r *http.Request) {
	// Only handle the exact root path, not unmatched sub-paths
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	switch r.Method {
	case http.MethodPost:
		// MCP clients may POST JSON-RPC to the bare URL
		s.handleMCPRequest(w, r)

	case http.MethodGet:
		s.writeJSON(w, http.StatusOK, map[string]interface{}{
			"name":    s.config.ServerName,
			"status":  "ok",
			"profile": s.profile,
			"endpoints": map[string]string{
				"mcp":    "/mcp",
				"ping":   "/ping",
				"health": "/health",
				"ready":  "/ready",
			},
		})

	default:
		s.writeJSON(w, http.StatusMethodNotAllowed, map[string]string{
			"error": "method not allowed",
		})
	}
}
