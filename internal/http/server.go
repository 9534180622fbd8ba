// Package http serves the MCP protocol over plain HTTP: a stateless
// JSON-RPC 2.0 bridge plus health endpoints, for deployments where a
// stdio transport is not practical.
package http

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/kmlx/metabase-mcp/internal/config"
	"github.com/kmlx/metabase-mcp/internal/tools"
)

// HeaderMCPTools is the HTTP header carrying a CSV list of tool names.
// It narrows the exposed tool set for a single request and is only
// honored when the server runs the "all" profile.
const HeaderMCPTools = "X-MCP-Tools"

// Server is the HTTP transport for MCP requests. One gateway is shared
// across all requests; tool handlers receive it through the request
// context.
type Server struct {
	config  *config.Config
	logger  *slog.Logger
	mux     *http.ServeMux
	server  *http.Server
	gateway tools.Gateway
	profile string
}

// New creates an HTTP server instance using the standard library mux
func New(cfg *config.Config, logger *slog.Logger, gateway tools.Gateway, profile string) (*Server, error) {
	mux := http.NewServeMux()

	s := &Server{
		config:  cfg,
		logger:  logger,
		mux:     mux,
		gateway: gateway,
		profile: profile,
	}

	s.setupRoutes()

	s.server = &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Host, cfg.HTTPPort),
		Handler: s.withMiddleware(mux),
		// One tool call can fan out into many upstream requests, each
		// bounded by the upstream read timeout, so the transport
		// timeouts stay an order of magnitude above it.
		ReadTimeout:       10 * time.Minute,
		WriteTimeout:      10 * time.Minute,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	logger.Info("HTTP server initialized", "addr", s.server.Addr, "profile", profile)

	return s, nil
}

// parseToolsFromHeader parses the X-MCP-Tools header into tool names.
// Returns nil when the header is absent or empty after trimming.
func parseToolsFromHeader(r *http.Request) []string {
	headerValue := r.Header.Get(HeaderMCPTools)
	if headerValue == "" {
		return nil
	}

	var names []string
	for _, part := range strings.Split(headerValue, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			names = append(names, trimmed)
		}
	}
	return names
}

// getToolsForRequest resolves the tool set exposed to a single request.
// The configured profile wins; the X-MCP-Tools header can narrow the
// set when the profile is "all".
func (s *Server) getToolsForRequest(r *http.Request) ([]string, error) {
	if s.profile == "all" {
		if headerTools := parseToolsFromHeader(r); headerTools != nil {
			if err := tools.ValidateToolNames(headerTools); err != nil {
				return nil, fmt.Errorf("invalid tools in %s header: %w", HeaderMCPTools, err)
			}
			s.logger.Debug("Using tools from header", "count", len(headerTools))
			return headerTools, nil
		}
	}

	return tools.GetToolsForProfile(s.profile), nil
}

// Serve starts the HTTP server and blocks until the context is
// canceled or the listener fails.
func (s *Server) Serve(ctx context.Context) error {
	s.logger.Info("Starting HTTP server", "addr", s.server.Addr)

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("Shutting down HTTP server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := s.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}

		s.logger.Info("HTTP server stopped gracefully")
		return nil

	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	}
}

// writeJSON writes a JSON response with the given status code
func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error("Failed to encode JSON response", "error", err)
	}
}

// writeJSONRPCSuccess writes a successful JSON-RPC 2.0 response
func (s *Server) writeJSONRPCSuccess(w http.ResponseWriter, id interface{}, result interface{}) {
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      id,
		"result":  result,
	})
}

// writeJSONRPCError writes a JSON-RPC 2.0 error response. JSON-RPC
// errors ride on a 200 status; the error object carries the code.
func (s *Server) writeJSONRPCError(w http.ResponseWriter, id interface{}, code int, message string, data string) {
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      id,
		"error": map[string]interface{}{
			"code":    code,
			"message": message,
			"data":    data,
		},
	})
}
