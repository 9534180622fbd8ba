// Package testutil provides mock implementations for tool handler tests.
package testutil

import (
	"context"
	"encoding/json"

	"github.com/kmlx/metabase-mcp/internal/metabase"
)

// MockGateway is a mock implementation of tools.Gateway for testing.
// Tests specify behavior per method via function fields; methods without
// a configured function return empty values.
type MockGateway struct {
	DoFunc                 func(ctx context.Context, method, path string, opts ...metabase.RequestOption) (json.RawMessage, error)
	ListCollectionsFunc    func(ctx context.Context) (*metabase.CollectionList, error)
	ListCardsFunc          func(ctx context.Context) (*metabase.CardList, error)
	ListDatabasesFunc      func(ctx context.Context) (json.RawMessage, error)
	DatabaseMetadataFunc   func(ctx context.Context, databaseID int64) (*metabase.DatabaseMetadata, error)
	TableQueryMetadataFunc func(ctx context.Context, tableID int64) (map[string]interface{}, error)
	ExecuteCardFunc        func(ctx context.Context, cardID int64, parameters map[string]interface{}) (json.RawMessage, error)
	ExecuteQueryFunc       func(ctx context.Context, databaseID int64, query string, nativeParameters []map[string]interface{}) (json.RawMessage, error)
	CreateCardFunc         func(ctx context.Context, req metabase.CreateCardRequest) (json.RawMessage, error)
	CreateCollectionFunc   func(ctx context.Context, req metabase.CreateCollectionRequest) (json.RawMessage, error)
	SearchFunc             func(ctx context.Context, req metabase.SearchRequest) (json.RawMessage, error)
}

func (m *MockGateway) Do(ctx context.Context, method, path string, opts ...metabase.RequestOption) (json.RawMessage, error) {
	if m.DoFunc != nil {
		return m.DoFunc(ctx, method, path, opts...)
	}
	return json.RawMessage(`null`), nil
}

func (m *MockGateway) ListCollections(ctx context.Context) (*metabase.CollectionList, error) {
	if m.ListCollectionsFunc != nil {
		return m.ListCollectionsFunc(ctx)
	}
	return &metabase.CollectionList{}, nil
}

func (m *MockGateway) ListCards(ctx context.Context) (*metabase.CardList, error) {
	if m.ListCardsFunc != nil {
		return m.ListCardsFunc(ctx)
	}
	return &metabase.CardList{}, nil
}

func (m *MockGateway) ListDatabases(ctx context.Context) (json.RawMessage, error) {
	if m.ListDatabasesFunc != nil {
		return m.ListDatabasesFunc(ctx)
	}
	return json.RawMessage(`[]`), nil
}

func (m *MockGateway) DatabaseMetadata(ctx context.Context, databaseID int64) (*metabase.DatabaseMetadata, error) {
	if m.DatabaseMetadataFunc != nil {
		return m.DatabaseMetadataFunc(ctx, databaseID)
	}
	return &metabase.DatabaseMetadata{}, nil
}

func (m *MockGateway) TableQueryMetadata(ctx context.Context, tableID int64) (map[string]interface{}, error) {
	if m.TableQueryMetadataFunc != nil {
		return m.TableQueryMetadataFunc(ctx, tableID)
	}
	return map[string]interface{}{}, nil
}

func (m *MockGateway) ExecuteCard(ctx context.Context, cardID int64, parameters map[string]interface{}) (json.RawMessage, error) {
	if m.ExecuteCardFunc != nil {
		return m.ExecuteCardFunc(ctx, cardID, parameters)
	}
	return json.RawMessage(`{}`), nil
}

func (m *MockGateway) ExecuteQuery(ctx context.Context, databaseID int64, query string, nativeParameters []map[string]interface{}) (json.RawMessage, error) {
	if m.ExecuteQueryFunc != nil {
		return m.ExecuteQueryFunc(ctx, databaseID, query, nativeParameters)
	}
	return json.RawMessage(`{}`), nil
}

func (m *MockGateway) CreateCard(ctx context.Context, req metabase.CreateCardRequest) (json.RawMessage, error) {
	if m.CreateCardFunc != nil {
		return m.CreateCardFunc(ctx, req)
	}
	return json.RawMessage(`{}`), nil
}

func (m *MockGateway) CreateCollection(ctx context.Context, req metabase.CreateCollectionRequest) (json.RawMessage, error) {
	if m.CreateCollectionFunc != nil {
		return m.CreateCollectionFunc(ctx, req)
	}
	return json.RawMessage(`{}`), nil
}

func (m *MockGateway) Search(ctx context.Context, req metabase.SearchRequest) (json.RawMessage, error) {
	if m.SearchFunc != nil {
		return m.SearchFunc(ctx, req)
	}
	return json.RawMessage(`{"data":[]}`), nil
}
