// Package collections implements collection listing and creation tools.
package collections

import (
	"context"
	"net/http"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/kmlx/metabase-mcp/internal/metabase"
	"github.com/kmlx/metabase-mcp/internal/tools"
)

func init() {
	RegisterListCollections()
	RegisterCreateCollection()
}

// RegisterListCollections registers the list_collections tool
func RegisterListCollections() {
	tools.RegisterTool(&tools.ToolRegistration{
		Name:        "list_collections",
		Description: "List all collections in Metabase",
		Profile:     "read_only",
		Schema: mcp.NewTool("list_collections",
			mcp.WithDescription("List all collections in Metabase"),
		),
		Handler: func(ctx context.Context, args map[string]interface{}) (*mcp.CallToolResult, error) {
			gw, err := tools.GetGateway(ctx)
			if err != nil {
				return tools.ErrorResultf("failed to get Metabase gateway: %v", err), nil
			}

			body, err := gw.Do(ctx, http.MethodGet, "/collection")
			if err != nil {
				return tools.ErrorResultf("failed to list collections: %v", err), nil
			}

			return tools.SuccessResult(body), nil
		},
	})
}

// RegisterCreateCollection registers the create_collection tool
func RegisterCreateCollection() {
	tools.RegisterTool(&tools.ToolRegistration{
		Name:        "create_collection",
		Description: "Create a new collection in Metabase",
		Profile:     "all",
		Schema: mcp.NewTool("create_collection",
			mcp.WithDescription("Create a new collection in Metabase"),
			mcp.WithString("name",
				mcp.Required(),
				mcp.Description("Name for the new collection")),
			mcp.WithString("description",
				mcp.Description("Optional description")),
			mcp.WithString("color",
				mcp.Description("Optional color for the collection")),
			mcp.WithNumber("parent_id",
				mcp.Description("Optional parent collection ID for nesting")),
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
			description, err := tools.StringArgDefault(args, "description", "")
			if err != nil {
				return tools.ErrorResult(err.Error()), nil
			}
			color, err := tools.StringArgDefault(args, "color", "")
			if err != nil {
				return tools.ErrorResult(err.Error()), nil
			}

			req := metabase.CreateCollectionRequest{
				Name:        name,
				Description: description,
				Color:       color,
			}
			if raw, ok := args["parent_id"]; ok && raw != nil {
				parentID, err := tools.Int64Arg(args, "parent_id")
				if err != nil {
					return tools.ErrorResult(err.Error()), nil
				}
				req.ParentID = &parentID
			}

			body, err := gw.CreateCollection(ctx, req)
			if err != nil {
				return tools.ErrorResultf("failed to create collection: %v", err), nil
			}

			return tools.SuccessResult(body), nil
		},
	})
}
