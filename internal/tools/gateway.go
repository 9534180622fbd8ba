package tools

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/kmlx/metabase-mcp/internal/metabase"
)

// Gateway is the surface of the Metabase client that tool handlers use.
// Handlers receive it through the request context so tests can substitute
// a mock without touching package state.
//
// The actual *metabase.Client implements this interface (verified by the
// compile-time check at the bottom of this file).
type Gateway interface {
	// Raw request passthrough for tools that relay upstream bodies.
	Do(ctx context.Context, method, path string, opts ...metabase.RequestOption) (json.RawMessage, error)

	// Typed listings used by the discovery pipeline.
	ListCollections(ctx context.Context) (*metabase.CollectionList, error)
	ListCards(ctx context.Context) (*metabase.CardList, error)

	// Databases and tables
	ListDatabases(ctx context.Context) (json.RawMessage, error)
	DatabaseMetadata(ctx context.Context, databaseID int64) (*metabase.DatabaseMetadata, error)
	TableQueryMetadata(ctx context.Context, tableID int64) (map[string]interface{}, error)

	// Execution
	ExecuteCard(ctx context.Context, cardID int64, parameters map[string]interface{}) (json.RawMessage, error)
	ExecuteQuery(ctx context.Context, databaseID int64, query string, nativeParameters []map[string]interface{}) (json.RawMessage, error)

	// Writes
	CreateCard(ctx context.Context, req metabase.CreateCardRequest) (json.RawMessage, error)
	CreateCollection(ctx context.Context, req metabase.CreateCollectionRequest) (json.RawMessage, error)

	// Global search
	Search(ctx context.Context, req metabase.SearchRequest) (json.RawMessage, error)
}

var _ Gateway = (*metabase.Client)(nil)

// contextKey is an unexported type for context keys to prevent collisions
type contextKey string

const gatewayContextKey contextKey = "metabase_gateway"

// WithGateway adds a Gateway to the context
func WithGateway(ctx context.Context, gw Gateway) context.Context {
	return context.WithValue(ctx, gatewayContextKey, gw)
}

// GetGateway retrieves the Gateway from the context
func GetGateway(ctx context.Context) (Gateway, error) {
	gw, ok := ctx.Value(gatewayContextKey).(Gateway)
	if !ok || gw == nil {
		return nil, errors.New("no Metabase gateway found in context")
	}
	return gw, nil
}
