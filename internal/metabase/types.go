package metabase

import (
	"bytes"
	"encoding/json"
)

// Collection is the typed projection of an upstream collection. Name and
// Description decode JSON null as the empty string; ParentID stays nil for
// the root level.
type Collection struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	ParentID    *int64 `json:"parent_id"`
	Archived    bool   `json:"archived"`
}

// CollectionList is a decoded collection listing. Searched counts every raw
// upstream entry, including entries that were skipped because they were null
// or not decodable (the virtual root collection carries a string id).
type CollectionList struct {
	Collections []Collection
	Searched    int
}

// Card is the typed projection of an upstream card. CollectionID is nil for
// cards that live at the root. UpdatedAt/CreatedAt stay raw ISO-8601 strings;
// an absent timestamp is the empty string.
type Card struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	Description  string `json:"description"`
	CollectionID *int64 `json:"collection_id"`
	CreatedAt    string `json:"created_at"`
	UpdatedAt    string `json:"updated_at"`
}

// CardList is a decoded card listing. Total counts every raw upstream entry.
type CardList struct {
	Cards []Card
	Total int
}

// Table is one table entry from the database metadata endpoint
type Table struct {
	ID          int64  `json:"id"`
	DisplayName string `json:"display_name"`
	Description string `json:"description"`
	EntityType  string `json:"entity_type"`
}

// DatabaseMetadata is the subset of GET /database/{id}/metadata this server
// consumes
type DatabaseMetadata struct {
	Tables []Table `json:"tables"`
}

// SearchRequest carries the parameters of the upstream search endpoint.
// SearchNativeQuery is only transmitted when true.
type SearchRequest struct {
	Query             string
	Limit             int
	Models            []string
	Archived          bool
	SearchNativeQuery bool
}

// CreateCardRequest describes a new native-query card. Description and
// CollectionID are included in the upstream payload only when set.
type CreateCardRequest struct {
	Name                  string
	DatabaseID            int64
	Query                 string
	Description           string
	CollectionID          *int64
	VisualizationSettings map[string]interface{}
}

// CreateCollectionRequest describes a new collection. Description and Color
// are included only when non-empty; ParentID only when set.
type CreateCollectionRequest struct {
	Name        string
	Description string
	Color       string
	ParentID    *int64
}

var nullLiteral = []byte("null")

// decodeEntries splits a raw JSON array into its elements. A body that is
// not an array is a malformed shape.
func decodeEntries(raw json.RawMessage, path string) ([]json.RawMessage, error) {
	var entries []json.RawMessage
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, newMalformedShapeError(path)
	}
	return entries, nil
}

// decodeCollectionList decodes a collection listing entry by entry, skipping
// null entries and entries that do not fit the schema.
func decodeCollectionList(raw json.RawMessage, path string) (*CollectionList, error) {
	entries, err := decodeEntries(raw, path)
	if err != nil {
		return nil, err
	}

	list := &CollectionList{
		Collections: make([]Collection, 0, len(entries)),
		Searched:    len(entries),
	}
	for _, entry := range entries {
		if bytes.Equal(bytes.TrimSpace(entry), nullLiteral) {
			continue
		}
		var col Collection
		if err := json.Unmarshal(entry, &col); err != nil {
			continue
		}
		list.Collections = append(list.Collections, col)
	}
	return list, nil
}

// decodeCardList decodes a card listing entry by entry, skipping null and
// non-conforming entries.
func decodeCardList(raw json.RawMessage, path string) (*CardList, error) {
	entries, err := decodeEntries(raw, path)
	if err != nil {
		return nil, err
	}

	list := &CardList{
		Cards: make([]Card, 0, len(entries)),
		Total: len(entries),
	}
	for _, entry := range entries {
		if bytes.Equal(bytes.TrimSpace(entry), nullLiteral) {
			continue
		}
		var card Card
		if err := json.Unmarshal(entry, &card); err != nil {
			continue
		}
		list.Cards = append(list.Cards, card)
	}
	return list, nil
}
