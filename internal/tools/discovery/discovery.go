// Package discovery implements the content discovery funnel: candidate
// collection lookup, scoped card search, and the global search endpoint.
package discovery

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/kmlx/metabase-mcp/internal/metabase"
	"github.com/kmlx/metabase-mcp/internal/search"
	"github.com/kmlx/metabase-mcp/internal/tools"
)

func init() {
	RegisterFindCandidateCollections()
	RegisterSearchCardsInCollections()
	RegisterSearchMetabase()
}

// RegisterFindCandidateCollections registers the find_candidate_collections tool
func RegisterFindCandidateCollections() {
	tools.RegisterTool(&tools.ToolRegistration{
		Name:        "find_candidate_collections",
		Description: "Find collections whose names or descriptions contain the query. Simple substring matching - fast and reliable.",
		Profile:     "discovery",
		Schema: mcp.NewTool("find_candidate_collections",
			mcp.WithDescription("Find collections whose names or descriptions contain the query. Simple substring matching - fast and reliable."),
			mcp.WithString("query",
				mcp.Required(),
				mcp.Description("Text to search for in collection names and descriptions")),
			mcp.WithNumber("limit_collections",
				mcp.Description("Max collections to return (default: 10)")),
		),
		Handler: func(ctx context.Context, args map[string]interface{}) (*mcp.CallToolResult, error) {
			gw, err := tools.GetGateway(ctx)
			if err != nil {
				return tools.ErrorResultf("failed to get Metabase gateway: %v", err), nil
			}

			query, err := tools.StringArg(args, "query")
			if err != nil {
				return tools.ErrorResult(err.Error()), nil
			}

			limitCollections, err := tools.IntArgDefault(args, "limit_collections", 10)
			if err != nil {
				return tools.ErrorResult(err.Error()), nil
			}
			if limitCollections < 0 {
				return tools.ErrorResult("limit_collections must not be negative"), nil
			}

			svc := search.New(gw, slog.Default())
			result, err := svc.FindCandidateCollections(ctx, query, limitCollections)
			if err != nil {
				return tools.ErrorResultf("failed to search collections: %v", err), nil
			}

			return tools.SuccessResult(map[string]interface{}{
				"query":       result.Query,
				"collections": result.Collections,
				"results": map[string]interface{}{
					"total_collections_searched": result.Counts.TotalCollectionsSearched,
					"matched_collections":        result.Counts.MatchedCollections,
					"returned_collections":       result.Counts.ReturnedCollections,
				},
				"note": "Collections matching query in name or description. Use search_cards_in_collections next.",
			}), nil
		},
	})
}

// RegisterSearchCardsInCollections registers the search_cards_in_collections tool
func RegisterSearchCardsInCollections() {
	tools.RegisterTool(&tools.ToolRegistration{
		Name:        "search_cards_in_collections",
		Description: "Search for cards within specific collections, filtering by query in card names and descriptions.",
		Profile:     "discovery",
		Schema: mcp.NewTool("search_cards_in_collections",
			mcp.WithDescription("Search for cards within specific collections, filtering by query in card names and descriptions."),
			mcp.WithString("query",
				mcp.Required(),
				mcp.Description("Text to search for in card names and descriptions")),
			mcp.WithArray("collection_ids",
				mcp.Required(),
				mcp.Description("List of collection IDs to search within")),
			mcp.WithNumber("limit",
				mcp.Description("Max cards to return, page size (default: 25)")),
			mcp.WithNumber("offset",
				mcp.Description("Number of matches to skip for pagination (default: 0)")),
		),
		Handler: func(ctx context.Context, args map[string]interface{}) (*mcp.CallToolResult, error) {
			gw, err := tools.GetGateway(ctx)
			if err != nil {
				return tools.ErrorResultf("failed to get Metabase gateway: %v", err), nil
			}

			query, err := tools.StringArg(args, "query")
			if err != nil {
				return tools.ErrorResult(err.Error()), nil
			}

			collectionIDs, err := tools.Int64SliceArg(args, "collection_ids")
			if err != nil {
				return tools.ErrorResult(err.Error()), nil
			}

			limit, err := tools.IntArgDefault(args, "limit", 25)
			if err != nil {
				return tools.ErrorResult(err.Error()), nil
			}
			offset, err := tools.IntArgDefault(args, "offset", 0)
			if err != nil {
				return tools.ErrorResult(err.Error()), nil
			}
			if limit < 0 || offset < 0 {
				return tools.ErrorResult("limit and offset must not be negative"), nil
			}

			svc := search.New(gw, slog.Default())
			result, err := svc.SearchCardsInCollections(ctx, query, collectionIDs, limit, offset)
			if err != nil {
				return tools.ErrorResultf("failed to search cards: %v", err), nil
			}

			return tools.SuccessResult(map[string]interface{}{
				"query":                result.Query,
				"collections_searched": result.CollectionsSearched,
				"pagination": map[string]interface{}{
					"limit":       result.Page.Limit,
					"offset":      result.Page.Offset,
					"returned":    result.Page.Returned,
					"total_found": result.Page.TotalFound,
					"has_more":    result.Page.HasMore,
				},
				"cards": result.Cards,
				"note": fmt.Sprintf("Searched %d collections for '%s'. Found %d matching cards.",
					len(collectionIDs), query, result.Page.TotalFound),
			}), nil
		},
	})
}

// RegisterSearchMetabase registers the search_metabase tool
func RegisterSearchMetabase() {
	tools.RegisterTool(&tools.ToolRegistration{
		Name:        "search_metabase",
		Description: "Search for items in Metabase using the search API.",
		Profile:     "discovery",
		Schema: mcp.NewTool("search_metabase",
			mcp.WithDescription("Search for items in Metabase using the search API."),
			mcp.WithString("query",
				mcp.Required(),
				mcp.Description("Search term to find in item names and descriptions")),
			mcp.WithNumber("limit",
				mcp.Description("Maximum number of results to return (default: 20)")),
			mcp.WithArray("models",
				mcp.Description("List of item types to filter by (e.g., [\"card\", \"dashboard\", \"collection\"])")),
			mcp.WithBoolean("archived",
				mcp.Description("Include archived items in results (default: false)")),
			mcp.WithBoolean("search_native_query",
				mcp.Description("Search within native SQL queries")),
		),
		Handler: func(ctx context.Context, args map[string]interface{}) (*mcp.CallToolResult, error) {
			gw, err := tools.GetGateway(ctx)
			if err != nil {
				return tools.ErrorResultf("failed to get Metabase gateway: %v", err), nil
			}

			query, err := tools.StringArg(args, "query")
			if err != nil {
				return tools.ErrorResult(err.Error()), nil
			}
			limit, err := tools.IntArgDefault(args, "limit", 20)
			if err != nil {
				return tools.ErrorResult(err.Error()), nil
			}
			models, err := tools.StringSliceArg(args, "models")
			if err != nil {
				return tools.ErrorResult(err.Error()), nil
			}
			archived, err := tools.BoolArgDefault(args, "archived", false)
			if err != nil {
				return tools.ErrorResult(err.Error()), nil
			}
			searchNativeQuery, err := tools.BoolArgDefault(args, "search_native_query", false)
			if err != nil {
				return tools.ErrorResult(err.Error()), nil
			}

			body, err := gw.Search(ctx, metabase.SearchRequest{
				Query:             query,
				Limit:             limit,
				Models:            models,
				Archived:          archived,
				SearchNativeQuery: searchNativeQuery,
			})
			if err != nil {
				return tools.ErrorResultf("failed to search Metabase: %v", err), nil
			}

			return tools.SuccessResult(attachSearchInfo(body, query, limit, models)), nil
		},
	})
}

// attachSearchInfo adds search metadata to the upstream search response.
// Object bodies get a search_info key; anything else is wrapped as
// {"data": body, "search_info": ...}.
func attachSearchInfo(body json.RawMessage, query string, limit int, models []string) interface{} {
	searchInfo := map[string]interface{}{
		"query":         query,
		"limit":         limit,
		"models":        models,
		"total_results": 0,
	}

	var decoded interface{}
	if err := json.Unmarshal(body, &decoded); err != nil {
		return map[string]interface{}{"data": string(body), "search_info": searchInfo}
	}

	switch v := decoded.(type) {
	case map[string]interface{}:
		if data, ok := v["data"].([]interface{}); ok {
			searchInfo["total_results"] = len(data)
		}
		v["search_info"] = searchInfo
		return v
	case []interface{}:
		searchInfo["total_results"] = len(v)
		return map[string]interface{}{"data": v, "search_info": searchInfo}
	default:
		return map[string]interface{}{"data": decoded, "search_info": searchInfo}
	}
}
