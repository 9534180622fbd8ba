package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// ErrAuthConfig indicates that no complete set of upstream credentials was
// configured. It is fatal at startup, never per-call.
var ErrAuthConfig = errors.New("authentication configuration error")

// Timeout bounds accepted for the upstream HTTP client, in seconds.
const (
	MinConnectTimeout = 1 * time.Second
	MaxConnectTimeout = 60 * time.Second
	MinReadTimeout    = 5 * time.Second
	MaxReadTimeout    = 300 * time.Second
)

// Config holds all configuration for the MCP server
type Config struct {
	// Server configuration
	Mode       string // "stdio" or "http"
	Profile    string // Tool profile to expose: "discovery", "read_only", "query", "all"
	LogLevel   string // "debug", "info", "warn", "error"
	ServerName string // Name reported to MCP clients

	// HTTP server configuration
	Host     string
	HTTPPort int

	// Upstream Metabase configuration
	MetabaseURL string // Base URL, trailing slash stripped
	APIKey      string // X-API-KEY credential
	Username    string // Session login email
	Password    string // Session login password

	// Upstream HTTP client configuration
	ConnectTimeout time.Duration
	ReadTimeout    time.Duration
	EnableHTTP2    bool
}

// Load loads configuration from environment variables.
// A .env file in the working directory is read first when present;
// real environment variables take priority over it.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Mode:       getEnv("MCP_MODE", "stdio"),
		Profile:    getEnv("MCP_PROFILE", "all"),
		LogLevel:   strings.ToLower(getEnv("LOG_LEVEL", "info")),
		ServerName: getEnv("MCP_SERVER_NAME", "metabase-mcp"),

		Host:     getEnv("HOST", "0.0.0.0"),
		HTTPPort: getIntEnv("PORT", 8080),

		MetabaseURL: strings.TrimRight(getEnv("METABASE_URL", ""), "/"),
		APIKey:      os.Getenv("METABASE_API_KEY"),
		Username:    os.Getenv("METABASE_USER_EMAIL"),
		Password:    os.Getenv("METABASE_PASSWORD"),

		ConnectTimeout: getSecondsEnv("HTTP_CONNECT_TIMEOUT", 10*time.Second),
		ReadTimeout:    getSecondsEnv("HTTP_READ_TIMEOUT", 30*time.Second),
		EnableHTTP2:    getBoolEnv("HTTP_ENABLE_HTTP2", false),
	}

	if cfg.Mode != "stdio" && cfg.Mode != "http" {
		return nil, fmt.Errorf("invalid MCP_MODE: %s (must be 'stdio' or 'http')", cfg.Mode)
	}

	return cfg, nil
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// getBoolEnv gets a boolean environment variable
func getBoolEnv(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	value = strings.ToLower(value)
	return value == "true" || value == "1" || value == "yes"
}

// getIntEnv gets an integer environment variable
func getIntEnv(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var intValue int
	_, err := fmt.Sscanf(value, "%d", &intValue)
	if err != nil {
		return defaultValue
	}
	return intValue
}

// getSecondsEnv gets a timeout expressed as numeric seconds ("10", "2.5")
func getSecondsEnv(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	seconds, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return defaultValue
	}
	return time.Duration(seconds * float64(time.Second))
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.MetabaseURL == "" {
		return fmt.Errorf("%w: METABASE_URL is required, and either METABASE_API_KEY or both METABASE_USER_EMAIL and METABASE_PASSWORD must be provided", ErrAuthConfig)
	}

	parsed, err := url.Parse(c.MetabaseURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("invalid METABASE_URL: %s", c.MetabaseURL)
	}

	if c.APIKey == "" && (c.Username == "" || c.Password == "") {
		return fmt.Errorf("%w: either METABASE_API_KEY or both METABASE_USER_EMAIL and METABASE_PASSWORD must be provided", ErrAuthConfig)
	}

	if c.ConnectTimeout < MinConnectTimeout || c.ConnectTimeout > MaxConnectTimeout {
		return fmt.Errorf("HTTP_CONNECT_TIMEOUT must be between %gs and %gs, got %gs",
			MinConnectTimeout.Seconds(), MaxConnectTimeout.Seconds(), c.ConnectTimeout.Seconds())
	}
	if c.ReadTimeout < MinReadTimeout || c.ReadTimeout > MaxReadTimeout {
		return fmt.Errorf("HTTP_READ_TIMEOUT must be between %gs and %gs, got %gs",
			MinReadTimeout.Seconds(), MaxReadTimeout.Seconds(), c.ReadTimeout.Seconds())
	}

	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid PORT: %d", c.HTTPPort)
	}

	validProfiles := map[string]bool{
		"discovery": true,
		"read_only": true,
		"query":     true,
		"all":       true,
	}

	if !validProfiles[c.Profile] {
		return fmt.Errorf("invalid profile: %s", c.Profile)
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}

	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("invalid log level: %s", c.LogLevel)
	}

	return nil
}
