// Package metabase implements the authenticated request gateway to the
// upstream Metabase REST API: authentication strategy selection, timeout
// bounds, failure classification, and decoding of list payloads at the
// boundary.
package metabase

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/net/http2"
	"golang.org/x/sync/singleflight"
)

// Config carries the resolved upstream settings. Credentials select the
// auth strategy: an API key wins over a username/password pair.
type Config struct {
	BaseURL        string
	APIKey         string
	Username       string
	Password       string
	ConnectTimeout time.Duration
	ReadTimeout    time.Duration
	EnableHTTP2    bool
}

// Client is the request gateway. It is constructed once per process and
// shared across tool invocations; the only mutable state is the lazily
// fetched session token.
type Client struct {
	baseURL        string
	authMode       AuthMode
	apiKey         string
	username       string
	password       string
	connectTimeout time.Duration
	readTimeout    time.Duration
	httpClient     *http.Client
	logger         *slog.Logger

	loginGroup singleflight.Group
	mu         sync.RWMutex
	session    string
}

const (
	defaultConnectTimeout = 10 * time.Second
	defaultReadTimeout    = 30 * time.Second
)

// New creates a gateway client from resolved configuration
func New(cfg Config, logger *slog.Logger) (*Client, error) {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		return nil, fmt.Errorf("base URL is required")
	}

	var mode AuthMode
	switch {
	case cfg.APIKey != "":
		mode = AuthModeAPIKey
	case cfg.Username != "" && cfg.Password != "":
		mode = AuthModeSession
	default:
		return nil, &Error{
			Kind:    ErrKindAuth,
			Message: "either an API key or both email and password must be configured",
		}
	}

	connectTimeout := cfg.ConnectTimeout
	if connectTimeout <= 0 {
		connectTimeout = defaultConnectTimeout
	}
	readTimeout := cfg.ReadTimeout
	if readTimeout <= 0 {
		readTimeout = defaultReadTimeout
	}

	dialer := &net.Dialer{Timeout: connectTimeout}
	transport := &http.Transport{
		DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			conn, err := dialer.DialContext(ctx, network, addr)
			if err != nil {
				return nil, &dialError{err: err}
			}
			return conn, nil
		},
		TLSHandshakeTimeout:   connectTimeout,
		ResponseHeaderTimeout: readTimeout,
	}
	if cfg.EnableHTTP2 {
		if err := http2.ConfigureTransport(transport); err != nil {
			return nil, fmt.Errorf("failed to enable HTTP/2: %w", err)
		}
	}

	client := &Client{
		baseURL:        baseURL,
		authMode:       mode,
		apiKey:         cfg.APIKey,
		username:       cfg.Username,
		password:       cfg.Password,
		connectTimeout: connectTimeout,
		readTimeout:    readTimeout,
		httpClient: &http.Client{
			Transport: transport,
			Timeout:   connectTimeout + readTimeout,
		},
		logger: logger,
	}

	logger.Info("Metabase client initialized",
		"base_url", baseURL,
		"auth_mode", mode.String(),
		"http2", cfg.EnableHTTP2)

	return client, nil
}

// AuthMode returns the authentication strategy selected at construction
func (c *Client) AuthMode() AuthMode {
	return c.authMode
}

// Close releases idle upstream connections
func (c *Client) Close() {
	c.httpClient.CloseIdleConnections()
}

type requestOptions struct {
	query   url.Values
	body    interface{}
	hasBody bool
}

// RequestOption customizes a single gateway request
type RequestOption func(*requestOptions)

// WithQuery adds URL query parameters to the request
func WithQuery(q url.Values) RequestOption {
	return func(o *requestOptions) {
		o.query = q
	}
}

// WithJSONBody attaches a JSON-encoded request body
func WithJSONBody(v interface{}) RequestOption {
	return func(o *requestOptions) {
		o.body = v
		o.hasBody = true
	}
}

// Do performs an authenticated request against the upstream API and returns
// the raw JSON body of a 2xx response. Failures are classified into the
// gateway error taxonomy; none are retried.
func (c *Client) Do(ctx context.Context, method, path string, opts ...RequestOption) (json.RawMessage, error) {
	options := &requestOptions{}
	for _, opt := range opts {
		opt(options)
	}

	fullURL := c.baseURL + "/api" + path
	if len(options.query) > 0 {
		fullURL += "?" + options.query.Encode()
	}

	var body io.Reader
	if options.hasBody {
		payload, err := json.Marshal(options.body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, fullURL, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	if err := c.applyAuth(ctx, req); err != nil {
		return nil, err
	}

	c.logger.Debug("Making upstream request", "method", method, "path", path)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		gwErr := c.classifyTransportError(err, fullURL)
		c.logger.Error("Upstream request failed",
			"method", method,
			"path", path,
			"kind", gwErr.Kind.String(),
			"error", gwErr.Message)
		return nil, gwErr
	}
	defer resp.Body.Close()

	respData, err := io.ReadAll(resp.Body)
	if err != nil {
		gwErr := c.classifyTransportError(err, fullURL)
		c.logger.Error("Upstream response read failed",
			"method", method,
			"path", path,
			"kind", gwErr.Kind.String(),
			"error", gwErr.Message)
		return nil, gwErr
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		gwErr := newAPIError(resp.StatusCode, respData)
		c.logger.Warn("Upstream request rejected",
			"method", method,
			"path", path,
			"status", resp.StatusCode)
		return nil, gwErr
	}

	c.logger.Debug("Successful upstream response", "method", method, "path", path)

	return json.RawMessage(respData), nil
}

// ListCollections fetches and decodes the full collection listing
func (c *Client) ListCollections(ctx context.Context) (*CollectionList, error) {
	raw, err := c.Do(ctx, http.MethodGet, "/collection")
	if err != nil {
		return nil, err
	}
	return decodeCollectionList(raw, "/collection")
}

// ListCards fetches and decodes the full card listing. The upstream API has
// no collection-scoped card endpoint, so callers filter locally.
func (c *Client) ListCards(ctx context.Context) (*CardList, error) {
	raw, err := c.Do(ctx, http.MethodGet, "/card")
	if err != nil {
		return nil, err
	}
	return decodeCardList(raw, "/card")
}

// ListDatabases returns the raw database listing
func (c *Client) ListDatabases(ctx context.Context) (json.RawMessage, error) {
	return c.Do(ctx, http.MethodGet, "/database")
}

// DatabaseMetadata fetches the table metadata of a database
func (c *Client) DatabaseMetadata(ctx context.Context, databaseID int64) (*DatabaseMetadata, error) {
	raw, err := c.Do(ctx, http.MethodGet, "/database/"+strconv.FormatInt(databaseID, 10)+"/metadata")
	if err != nil {
		return nil, err
	}
	var meta DatabaseMetadata
	if err := json.Unmarshal(raw, &meta); err != nil {
		return nil, fmt.Errorf("failed to parse database metadata: %w", err)
	}
	return &meta, nil
}

// TableQueryMetadata fetches a table's query metadata as a loose mapping so
// callers can trim oversized field lists before returning them.
func (c *Client) TableQueryMetadata(ctx context.Context, tableID int64) (map[string]interface{}, error) {
	raw, err := c.Do(ctx, http.MethodGet, "/table/"+strconv.FormatInt(tableID, 10)+"/query_metadata")
	if err != nil {
		return nil, err
	}
	var meta map[string]interface{}
	if err := json.Unmarshal(raw, &meta); err != nil {
		return nil, fmt.Errorf("failed to parse table metadata: %w", err)
	}
	return meta, nil
}

// ExecuteCard runs a saved card's query
func (c *Client) ExecuteCard(ctx context.Context, cardID int64, parameters map[string]interface{}) (json.RawMessage, error) {
	payload := map[string]interface{}{}
	if len(parameters) > 0 {
		payload["parameters"] = parameters
	}
	return c.Do(ctx, http.MethodPost, "/card/"+strconv.FormatInt(cardID, 10)+"/query", WithJSONBody(payload))
}

// ExecuteQuery runs a native SQL query against a database
func (c *Client) ExecuteQuery(ctx context.Context, databaseID int64, query string, nativeParameters []map[string]interface{}) (json.RawMessage, error) {
	native := map[string]interface{}{"query": query}
	if len(nativeParameters) > 0 {
		native["parameters"] = nativeParameters
	}
	payload := map[string]interface{}{
		"database": databaseID,
		"type":     "native",
		"native":   native,
	}
	return c.Do(ctx, http.MethodPost, "/dataset", WithJSONBody(payload))
}

// CreateCard creates a new native-query card
func (c *Client) CreateCard(ctx context.Context, req CreateCardRequest) (json.RawMessage, error) {
	settings := req.VisualizationSettings
	if settings == nil {
		settings = map[string]interface{}{}
	}
	payload := map[string]interface{}{
		"name":        req.Name,
		"database_id": req.DatabaseID,
		"dataset_query": map[string]interface{}{
			"database": req.DatabaseID,
			"type":     "native",
			"native":   map[string]interface{}{"query": req.Query},
		},
		"display":                "table",
		"visualization_settings": settings,
	}
	if req.Description != "" {
		payload["description"] = req.Description
	}
	if req.CollectionID != nil {
		payload["collection_id"] = *req.CollectionID
	}
	return c.Do(ctx, http.MethodPost, "/card", WithJSONBody(payload))
}

// CreateCollection creates a new collection
func (c *Client) CreateCollection(ctx context.Context, req CreateCollectionRequest) (json.RawMessage, error) {
	payload := map[string]interface{}{"name": req.Name}
	if req.Description != "" {
		payload["description"] = req.Description
	}
	if req.Color != "" {
		payload["color"] = req.Color
	}
	if req.ParentID != nil {
		// The upstream collection endpoint expects parent_id as a string.
		payload["parent_id"] = strconv.FormatInt(*req.ParentID, 10)
	}
	return c.Do(ctx, http.MethodPost, "/collection", WithJSONBody(payload))
}

// Search queries the upstream search endpoint
func (c *Client) Search(ctx context.Context, req SearchRequest) (json.RawMessage, error) {
	params := url.Values{}
	params.Set("q", req.Query)
	params.Set("limit", strconv.Itoa(req.Limit))
	params.Set("archived", strconv.FormatBool(req.Archived))
	if req.SearchNativeQuery {
		params.Set("search_native_query", "true")
	}
	for _, model := range req.Models {
		params.Add("models", model)
	}
	return c.Do(ctx, http.MethodGet, "/search", WithQuery(params))
}
