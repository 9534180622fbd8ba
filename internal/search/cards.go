package search

import (
	"context"
	"sort"

	"github.com/kmlx/metabase-mcp/internal/pagination"
)

// CardMatch is the fixed projection of a matched card
type CardMatch struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	Description  string `json:"description"`
	CollectionID *int64 `json:"collection_id"`
	UpdatedAt    string `json:"updated_at"`
	CreatedAt    string `json:"created_at"`
}

// SkippedCollection records a collection whose card fetch failed and was
// folded into the aggregate as zero matches
type SkippedCollection struct {
	CollectionID int64
	Reason       error
}

// CardSearchResult is the outcome of SearchCardsInCollections. Skipped is
// not surfaced in tool payloads; it exists so callers can log or inspect
// partial degradation.
type CardSearchResult struct {
	Query               string
	CollectionsSearched []int64
	Cards               []CardMatch
	Page                pagination.Meta
	Skipped             []SkippedCollection
}

// SearchCardsInCollections fetches the full card list once per requested
// collection id, in input order, filters each fetch to cards owned by that
// id whose name or description contains the query, merges, sorts descending
// by updated_at and paginates. A failed fetch for one id downgrades to zero
// matches for that id and never aborts the remaining ids.
func (s *Service) SearchCardsInCollections(ctx context.Context, query string, collectionIDs []int64, limit, offset int) (*CardSearchResult, error) {
	term := normalizeQuery(query)

	allMatches := make([]CardMatch, 0)
	var skipped []SkippedCollection

	// The upstream API has no collection-scoped card endpoint, so this is
	// one full fetch per id. Callers pass the small id set discovery
	// produced.
	for _, collectionID := range collectionIDs {
		matches, err := s.searchCollection(ctx, term, collectionID)
		if err != nil {
			s.logger.Warn("Skipping collection after fetch failure",
				"collection_id", collectionID,
				"error", err.Error())
			skipped = append(skipped, SkippedCollection{CollectionID: collectionID, Reason: err})
			continue
		}
		allMatches = append(allMatches, matches...)
	}

	// Missing updated_at sorts as the empty string, last in descending
	// order. ISO-8601 strings order correctly under byte comparison.
	sort.SliceStable(allMatches, func(i, j int) bool {
		return allMatches[i].UpdatedAt > allMatches[j].UpdatedAt
	})

	page, meta := pagination.Page(allMatches, limit, offset)

	return &CardSearchResult{
		Query:               query,
		CollectionsSearched: collectionIDs,
		Cards:               page,
		Page:                meta,
		Skipped:             skipped,
	}, nil
}

func (s *Service) searchCollection(ctx context.Context, term string, collectionID int64) ([]CardMatch, error) {
	list, err := s.gateway.ListCards(ctx)
	if err != nil {
		return nil, err
	}

	matches := make([]CardMatch, 0)
	for _, card := range list.Cards {
		if card.CollectionID == nil || *card.CollectionID != collectionID {
			continue
		}
		if !containsTerm(term, card.Name, card.Description) {
			continue
		}
		matches = append(matches, CardMatch{
			ID:           card.ID,
			Name:         card.Name,
			Description:  card.Description,
			CollectionID: card.CollectionID,
			UpdatedAt:    card.UpdatedAt,
			CreatedAt:    card.CreatedAt,
		})
	}
	return matches, nil
}
