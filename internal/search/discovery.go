package search

import (
	"context"
	"sort"
	"strings"

	"github.com/kmlx/metabase-mcp/internal/metabase"
)

// CollectionMatch is the fixed projection of a matched collection
type CollectionMatch struct {
	CollectionID   int64  `json:"collection_id"`
	CollectionName string `json:"collection_name"`
	Description    string `json:"description"`
	ParentID       *int64 `json:"parent_id"`
	Archived       bool   `json:"archived"`
}

// DiscoveryCounts summarizes a discovery pass. TotalCollectionsSearched
// counts every raw upstream entry, including ones the gateway skipped.
type DiscoveryCounts struct {
	TotalCollectionsSearched int `json:"total_collections_searched"`
	MatchedCollections       int `json:"matched_collections"`
	ReturnedCollections      int `json:"returned_collections"`
}

// DiscoveryResult is the outcome of FindCandidateCollections
type DiscoveryResult struct {
	Query       string
	Collections []CollectionMatch
	Counts      DiscoveryCounts
}

// FindCandidateCollections returns the collections whose name or description
// contains the query, sorted ascending by name and truncated to
// limitCollections. A malformed upstream shape degrades to an empty result
// with zero counts.
func (s *Service) FindCandidateCollections(ctx context.Context, query string, limitCollections int) (*DiscoveryResult, error) {
	result := &DiscoveryResult{
		Query:       query,
		Collections: []CollectionMatch{},
	}

	list, err := s.gateway.ListCollections(ctx)
	if err != nil {
		if metabase.IsKind(err, metabase.ErrKindMalformedShape) {
			s.logger.Warn("Collection listing had an unexpected shape, returning empty result")
			return result, nil
		}
		return nil, err
	}

	term := normalizeQuery(query)

	matches := make([]CollectionMatch, 0)
	for _, col := range list.Collections {
		if !containsTerm(term, col.Name, col.Description) {
			continue
		}
		matches = append(matches, CollectionMatch{
			CollectionID:   col.ID,
			CollectionName: col.Name,
			Description:    col.Description,
			ParentID:       col.ParentID,
			Archived:       col.Archived,
		})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return strings.ToLower(matches[i].CollectionName) < strings.ToLower(matches[j].CollectionName)
	})

	returned := matches
	if limitCollections >= 0 && len(matches) > limitCollections {
		returned = matches[:limitCollections]
	}

	result.Collections = returned
	result.Counts = DiscoveryCounts{
		TotalCollectionsSearched: list.Searched,
		MatchedCollections:       len(matches),
		ReturnedCollections:      len(returned),
	}

	return result, nil
}
