// Package cards implements card listing, execution and creation tools.
package cards

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/spf13/cast"

	"github.com/kmlx/metabase-mcp/internal/metabase"
	"github.com/kmlx/metabase-mcp/internal/pagination"
	"github.com/kmlx/metabase-mcp/internal/tools"
)

func init() {
	RegisterListCards()
	RegisterListCardsPaginated()
	RegisterListCardsByCollection()
	RegisterExecuteCard()
	RegisterCreateCard()
}

var validFilterTypes = map[string]bool{
	"all":        true,
	"mine":       true,
	"bookmarked": true,
	"archived":   true,
}

// RegisterListCards registers the list_cards tool
func RegisterListCards() {
	tools.RegisterTool(&tools.ToolRegistration{
		Name:        "list_cards",
		Description: "List all questions/cards in Metabase (WARNING: Large dataset - may timeout, prefer list_cards_paginated)",
		Profile:     "read_only",
		Schema: mcp.NewTool("list_cards",
			mcp.WithDescription("List all questions/cards in Metabase (WARNING: Large dataset - may timeout, prefer list_cards_paginated)"),
		),
		Handler: func(ctx context.Context, args map[string]interface{}) (*mcp.CallToolResult, error) {
			gw, err := tools.GetGateway(ctx)
			if err != nil {
				return tools.ErrorResultf("failed to get Metabase gateway: %v", err), nil
			}

			body, err := gw.Do(ctx, http.MethodGet, "/card")
			if err != nil {
				return tools.ErrorResultf("failed to list cards: %v", err), nil
			}

			return tools.SuccessResult(body), nil
		},
	})
}

// RegisterListCardsPaginated registers the list_cards_paginated tool
func RegisterListCardsPaginated() {
	tools.RegisterTool(&tools.ToolRegistration{
		Name:        "list_cards_paginated",
		Description: "List cards with pagination and filtering to avoid timeout issues",
		Profile:     "read_only",
		Schema: mcp.NewTool("list_cards_paginated",
			mcp.WithDescription("List cards with pagination and filtering to avoid timeout issues"),
			mcp.WithNumber("limit",
				mcp.Description("Maximum number of cards to return (default: 50)")),
			mcp.WithNumber("offset",
				mcp.Description("Number of cards to skip (default: 0)")),
			mcp.WithString("filter_type",
				mcp.Description("Filter type - 'all', 'mine', 'bookmarked', 'archived' (default: 'all')")),
		),
		Handler: func(ctx context.Context, args map[string]interface{}) (*mcp.CallToolResult, error) {
			gw, err := tools.GetGateway(ctx)
			if err != nil {
				return tools.ErrorResultf("failed to get Metabase gateway: %v", err), nil
			}

			limit, err := tools.IntArgDefault(args, "limit", 50)
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

			filterType, err := tools.StringArgDefault(args, "filter_type", "all")
			if err != nil {
				return tools.ErrorResult(err.Error()), nil
			}
			if !validFilterTypes[filterType] {
				return tools.ErrorResultf("invalid filter_type %q, must be one of: all, mine, bookmarked, archived", filterType), nil
			}

			opts := []metabase.RequestOption{}
			if filterType != "all" {
				opts = append(opts, metabase.WithQuery(url.Values{"f": []string{filterType}}))
			}

			body, err := gw.Do(ctx, http.MethodGet, "/card", opts...)
			if err != nil {
				return tools.ErrorResultf("failed to list cards: %v", err), nil
			}

			// Metabase has no limit/offset support on /card, paginate locally
			var entries []interface{}
			if err := json.Unmarshal(body, &entries); err != nil {
				return tools.SuccessResult(body), nil
			}

			page, meta := pagination.Page(entries, limit, offset)
			return tools.SuccessResult(map[string]interface{}{
				"cards": page,
				"pagination": map[string]interface{}{
					"limit":           meta.Limit,
					"offset":          meta.Offset,
					"returned":        meta.Returned,
					"total_available": meta.TotalFound,
					"has_more":        meta.HasMore,
				},
				"filter": filterType,
			}), nil
		},
	})
}

// RegisterListCardsByCollection registers the list_cards_by_collection tool
func RegisterListCardsByCollection() {
	tools.RegisterTool(&tools.ToolRegistration{
		Name:        "list_cards_by_collection",
		Description: "List cards in a specific collection (smaller, focused dataset)",
		Profile:     "read_only",
		Schema: mcp.NewTool("list_cards_by_collection",
			mcp.WithDescription("List cards in a specific collection (smaller, focused dataset)"),
			mcp.WithNumber("collection_id",
				mcp.Required(),
				mcp.Description("ID of the collection to filter by")),
		),
		Handler: func(ctx context.Context, args map[string]interface{}) (*mcp.CallToolResult, error) {
			gw, err := tools.GetGateway(ctx)
			if err != nil {
				return tools.ErrorResultf("failed to get Metabase gateway: %v", err), nil
			}

			collectionID, err := tools.Int64Arg(args, "collection_id")
			if err != nil {
				return tools.ErrorResult(err.Error()), nil
			}

			body, err := gw.Do(ctx, http.MethodGet, "/card")
			if err != nil {
				return tools.ErrorResultf("failed to list cards: %v", err), nil
			}

			// The cards endpoint cannot filter by collection server-side
			var entries []interface{}
			if err := json.Unmarshal(body, &entries); err != nil {
				return tools.SuccessResult(body), nil
			}

			filtered := make([]interface{}, 0)
			for _, entry := range entries {
				card, ok := entry.(map[string]interface{})
				if !ok {
					continue
				}
				id, err := cast.ToInt64E(card["collection_id"])
				if err != nil || id != collectionID {
					continue
				}
				filtered = append(filtered, card)
			}

			return tools.SuccessResult(map[string]interface{}{
				"cards":         filtered,
				"collection_id": collectionID,
				"count":         len(filtered),
				"message":       fmt.Sprintf("Found %d cards in collection %d", len(filtered), collectionID),
			}), nil
		},
	})
}

// RegisterExecuteCard registers the execute_card tool
func RegisterExecuteCard() {
	tools.RegisterTool(&tools.ToolRegistration{
		Name:        "execute_card",
		Description: "Execute a Metabase question/card and get results",
		Profile:     "query",
		Schema: mcp.NewTool("execute_card",
			mcp.WithDescription("Execute a Metabase question/card and get results"),
			mcp.WithNumber("card_id",
				mcp.Required(),
				mcp.Description("ID of the card to execute")),
			mcp.WithObject("parameters",
				mcp.Description("Optional parameters for the query")),
		),
		Handler: func(ctx context.Context, args map[string]interface{}) (*mcp.CallToolResult, error) {
			gw, err := tools.GetGateway(ctx)
			if err != nil {
				return tools.ErrorResultf("failed to get Metabase gateway: %v", err), nil
			}

			cardID, err := tools.Int64Arg(args, "card_id")
			if err != nil {
				return tools.ErrorResult(err.Error()), nil
			}
			parameters, err := tools.MapArg(args, "parameters")
			if err != nil {
				return tools.ErrorResult(err.Error()), nil
			}

			body, err := gw.ExecuteCard(ctx, cardID, parameters)
			if err != nil {
				return tools.ErrorResultf("failed to execute card %d: %v", cardID, err), nil
			}

			return tools.SuccessResult(body), nil
		},
	})
}

// RegisterCreateCard registers the create_card tool
func RegisterCreateCard() {
	tools.RegisterTool(&tools.ToolRegistration{
		Name:        "create_card",
		Description: "Create a new question/card in Metabase from a native SQL query",
		Profile:     "all",
		Schema: mcp.NewTool("create_card",
			mcp.WithDescription("Create a new question/card in Metabase from a native SQL query"),
			mcp.WithString("name",
				mcp.Required(),
				mcp.Description("Name for the new card")),
			mcp.WithNumber("database_id",
				mcp.Required(),
				mcp.Description("ID of the database to run the query against")),
			mcp.WithString("query",
				mcp.Required(),
				mcp.Description("Native SQL query for the card")),
			mcp.WithString("description",
				mcp.Description("Optional description for the card")),
			mcp.WithNumber("collection_id",
				mcp.Description("Optional collection to place the card in")),
			mcp.WithObject("visualization_settings",
				mcp.Description("Optional visualization settings (default: {})")),
		),
		Handler: func(ctx context.Context, args map[string]interface{}) (*mcp.CallToolResult, error) {
			gw, err := tools.GetGateway(ctx)
			if err != nil {
				return tools.ErrorResultf("failed to get Metabase gateway: %v", err), nil
			}

			name, err := tools.StringArg(args, "name")
			if err != nil {
				return tools.ErrorResult(err.Error()), nil
			}
			databaseID, err := tools.Int64Arg(args, "database_id")
			if err != nil {
				return tools.ErrorResult(err.Error()), nil
			}
			query, err := tools.StringArg(args, "query")
			if err != nil {
				return tools.ErrorResult(err.Error()), nil
			}
			description, err := tools.StringArgDefault(args, "description", "")
			if err != nil {
				return tools.ErrorResult(err.Error()), nil
			}
			visualizationSettings, err := tools.MapArg(args, "visualization_settings")
			if err != nil {
				return tools.ErrorResult(err.Error()), nil
			}

			req := metabase.CreateCardRequest{
				Name:                  name,
				DatabaseID:            databaseID,
				Query:                 query,
				Description:           description,
				VisualizationSettings: visualizationSettings,
			}
			if raw, ok := args["collection_id"]; ok && raw != nil {
				collectionID, err := tools.Int64Arg(args, "collection_id")
				if err != nil {
					return tools.ErrorResult(err.Error()), nil
				}
				req.CollectionID = &collectionID
			}

			body, err := gw.CreateCard(ctx, req)
			if err != nil {
				return tools.ErrorResultf("failed to create card: %v", err), nil
			}

			return tools.SuccessResult(body), nil
		},
	})
}
