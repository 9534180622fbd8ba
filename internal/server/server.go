// Package server assembles the MCP server in its two serve modes:
// stdio for editor/CLI clients and HTTP for networked deployments.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/mark3labs/mcp-go/server"

	"github.com/kmlx/metabase-mcp/internal/config"
	httpserver "github.com/kmlx/metabase-mcp/internal/http"
	"github.com/kmlx/metabase-mcp/internal/metabase"
	"github.com/kmlx/metabase-mcp/internal/resources"
	"github.com/kmlx/metabase-mcp/internal/tools"
)

// version is reported to MCP clients during initialize
const version = "1.0.0"

// parseLogLevel converts a string log level to slog.Level
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Server wraps the MCP server for the configured mode. The upstream
// gateway is created here and shared by every tool invocation.
type Server struct {
	mcpServer  *server.MCPServer
	httpServer *httpserver.Server
	gateway    *metabase.Client
	config     *config.Config
	logger     *slog.Logger
}

// New creates a server instance for the configured mode
func New(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: parseLogLevel(cfg.LogLevel),
		}))
	}

	gateway, err := metabase.New(metabase.Config{
		BaseURL:        cfg.MetabaseURL,
		APIKey:         cfg.APIKey,
		Username:       cfg.Username,
		Password:       cfg.Password,
		ConnectTimeout: cfg.ConnectTimeout,
		ReadTimeout:    cfg.ReadTimeout,
		EnableHTTP2:    cfg.EnableHTTP2,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create Metabase client: %w", err)
	}

	s := &Server{
		gateway: gateway,
		config:  cfg,
		logger:  logger,
	}

	switch cfg.Mode {
	case "stdio":
		s.mcpServer = server.NewMCPServer(
			cfg.ServerName,
			version,
			server.WithToolCapabilities(false),
			server.WithRecovery(),
		)

		if err := s.registerTools(); err != nil {
			return nil, fmt.Errorf("failed to register tools: %w", err)
		}
		resources.AddResourcesToServer(s.mcpServer)

	case "http":
		httpSrv, err := httpserver.New(cfg, logger, gateway, cfg.Profile)
		if err != nil {
			return nil, fmt.Errorf("failed to create HTTP server: %w", err)
		}
		s.httpServer = httpSrv

	default:
		return nil, fmt.Errorf("unknown server mode: %s", cfg.Mode)
	}

	logger.Info("Metabase MCP server initialized",
		"mode", cfg.Mode,
		"profile", cfg.Profile,
		"auth_mode", gateway.AuthMode().String())

	return s, nil
}

// registerTools adds the active profile's tools to the MCP server
func (s *Server) registerTools() error {
	if err := tools.AddToolsToServer(s.mcpServer, s.config.Profile); err != nil {
		return err
	}

	toolNames := tools.GetToolsForProfile(s.config.Profile)
	s.logger.Info("Registered tools", "profile", s.config.Profile, "count", len(toolNames))

	return nil
}

// Serve starts the server in the configured mode and blocks until the
// transport shuts down
func (s *Server) Serve(ctx context.Context) error {
	s.logger.Info("Starting server", "mode", s.config.Mode)

	switch s.config.Mode {
	case "stdio":
		return s.serveStdio()
	case "http":
		return s.httpServer.Serve(ctx)
	default:
		return fmt.Errorf("unknown server mode: %s", s.config.Mode)
	}
}

// serveStdio blocks on the stdio transport until the client
// disconnects. Every request context receives the shared gateway.
func (s *Server) serveStdio() error {
	contextFunc := func(reqCtx context.Context) context.Context {
		return tools.WithGateway(reqCtx, s.gateway)
	}

	return server.ServeStdio(s.mcpServer, server.WithStdioContextFunc(contextFunc))
}

// GetLogger returns the logger
func (s *Server) GetLogger() *slog.Logger {
	return s.logger
}

// Close releases client-side resources after the serve loop exits
func (s *Server) Close() error {
	if s.gateway != nil {
		s.gateway.Close()
	}

	s.logger.Info("Server shutdown complete")
	return nil
}
