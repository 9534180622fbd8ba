// Package search implements the two-stage discovery pipeline: collection
// discovery, then card search scoped to the discovered collections.
package search

import (
	"context"
	"log/slog"
	"strings"

	"github.com/kmlx/metabase-mcp/internal/metabase"
)

// Lister is the slice of the gateway the pipeline consumes
type Lister interface {
	ListCollections(ctx context.Context) (*metabase.CollectionList, error)
	ListCards(ctx context.Context) (*metabase.CardList, error)
}

// Service runs discovery and scoped card search against a gateway
type Service struct {
	gateway Lister
	logger  *slog.Logger
}

// New creates a search service
func New(gateway Lister, logger *slog.Logger) *Service {
	return &Service{gateway: gateway, logger: logger}
}

// normalizeQuery applies the same normalization to every search term:
// surrounding whitespace ignored, matching case-insensitive.
func normalizeQuery(query string) string {
	return strings.ToLower(strings.TrimSpace(query))
}

func containsTerm(term string, fields ...string) bool {
	for _, field := range fields {
		if strings.Contains(strings.ToLower(field), term) {
			return true
		}
	}
	return false
}
