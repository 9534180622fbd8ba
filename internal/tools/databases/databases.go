// Package databases implements database, table and ad-hoc query tools.
package databases

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/kmlx/metabase-mcp/internal/metabase"
	"github.com/kmlx/metabase-mcp/internal/tools"
)

func init() {
	RegisterListDatabases()
	RegisterExecuteQuery()
	RegisterListTables()
	RegisterGetTableFields()
}

// RegisterListDatabases registers the list_databases tool
func RegisterListDatabases() {
	tools.RegisterTool(&tools.ToolRegistration{
		Name:        "list_databases",
		Description: "List all databases in Metabase",
		Profile:     "read_only",
		Schema: mcp.NewTool("list_databases",
			mcp.WithDescription("List all databases in Metabase"),
		),
		Handler: func(ctx context.Context, args map[string]interface{}) (*mcp.CallToolResult, error) {
			gw, err := tools.GetGateway(ctx)
			if err != nil {
				return tools.ErrorResultf("failed to get Metabase gateway: %v", err), nil
			}

			body, err := gw.ListDatabases(ctx)
			if err != nil {
				return tools.ErrorResultf("failed to list databases: %v", err), nil
			}

			return tools.SuccessResult(body), nil
		},
	})
}

// RegisterExecuteQuery registers the execute_query tool
func RegisterExecuteQuery() {
	tools.RegisterTool(&tools.ToolRegistration{
		Name:        "execute_query",
		Description: "Execute a SQL query against a Metabase database",
		Profile:     "query",
		Schema: mcp.NewTool("execute_query",
			mcp.WithDescription("Execute a SQL query against a Metabase database"),
			mcp.WithNumber("database_id",
				mcp.Required(),
				mcp.Description("ID of the database to query")),
			mcp.WithString("query",
				mcp.Required(),
				mcp.Description("Native SQL query to execute")),
			mcp.WithArray("native_parameters",
				mcp.Description("Optional list of template parameters for the query")),
		),
		Handler: func(ctx context.Context, args map[string]interface{}) (*mcp.CallToolResult, error) {
			gw, err := tools.GetGateway(ctx)
			if err != nil {
				return tools.ErrorResultf("failed to get Metabase gateway: %v", err), nil
			}

			databaseID, err := tools.Int64Arg(args, "database_id")
			if err != nil {
				return tools.ErrorResult(err.Error()), nil
			}
			query, err := tools.StringArg(args, "query")
			if err != nil {
				return tools.ErrorResult(err.Error()), nil
			}
			nativeParameters, err := tools.MapSliceArg(args, "native_parameters")
			if err != nil {
				return tools.ErrorResult(err.Error()), nil
			}

			body, err := gw.ExecuteQuery(ctx, databaseID, query, nativeParameters)
			if err != nil {
				return tools.ErrorResultf("failed to execute query: %v", err), nil
			}

			return tools.SuccessResult(body), nil
		},
	})
}

// RegisterListTables registers the list_tables tool
func RegisterListTables() {
	tools.RegisterTool(&tools.ToolRegistration{
		Name:        "list_tables",
		Description: "List all tables in a database with formatted markdown output",
		Profile:     "read_only",
		Schema: mcp.NewTool("list_tables",
			mcp.WithDescription("List all tables in a database with formatted markdown output"),
			mcp.WithNumber("database_id",
				mcp.Required(),
				mcp.Description("ID of the database to list tables from")),
		),
		Handler: func(ctx context.Context, args map[string]interface{}) (*mcp.CallToolResult, error) {
			gw, err := tools.GetGateway(ctx)
			if err != nil {
				return tools.ErrorResultf("failed to get Metabase gateway: %v", err), nil
			}

			databaseID, err := tools.Int64Arg(args, "database_id")
			if err != nil {
				return tools.ErrorResult(err.Error()), nil
			}

			meta, err := gw.DatabaseMetadata(ctx, databaseID)
			if err != nil {
				return tools.ErrorResultf("failed to list tables for database %d: %v", databaseID, err), nil
			}

			return tools.TextResult(renderTablesMarkdown(databaseID, meta.Tables)), nil
		},
	})
}

// renderTablesMarkdown formats database tables as a markdown table sorted
// by display name. Pipe characters in cell values are escaped so they
// cannot break the table layout.
func renderTablesMarkdown(databaseID int64, dbTables []metabase.Table) string {
	sorted := make([]metabase.Table, len(dbTables))
	copy(sorted, dbTables)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].DisplayName < sorted[j].DisplayName
	})

	var b strings.Builder
	fmt.Fprintf(&b, "# Tables in Database %d\n\n", databaseID)
	fmt.Fprintf(&b, "**Total Tables:** %d\n\n", len(sorted))

	if len(sorted) == 0 {
		b.WriteString("*No tables found in this database.*\n")
		return b.String()
	}

	b.WriteString("| Table ID | Display Name | Description | Entity Type |\n")
	b.WriteString("|----------|--------------|-------------|--------------|\n")

	for _, table := range sorted {
		description := table.Description
		if description == "" {
			description = "No description"
		}
		fmt.Fprintf(&b, "| %d | %s | %s | %s |\n",
			table.ID,
			escapePipes(table.DisplayName),
			escapePipes(description),
			table.EntityType)
	}

	return b.String()
}

func escapePipes(s string) string {
	return strings.ReplaceAll(s, "|", "\\|")
}

// RegisterGetTableFields registers the get_table_fields tool
func RegisterGetTableFields() {
	tools.RegisterTool(&tools.ToolRegistration{
		Name:        "get_table_fields",
		Description: "Get all fields/columns in a table",
		Profile:     "read_only",
		Schema: mcp.NewTool("get_table_fields",
			mcp.WithDescription("Get all fields/columns in a table"),
			mcp.WithNumber("table_id",
				mcp.Required(),
				mcp.Description("The ID of the table")),
			mcp.WithNumber("limit",
				mcp.Description("Maximum number of fields to return (default: 20)")),
		),
		Handler: func(ctx context.Context, args map[string]interface{}) (*mcp.CallToolResult, error) {
			gw, err := tools.GetGateway(ctx)
			if err != nil {
				return tools.ErrorResultf("failed to get Metabase gateway: %v", err), nil
			}

			tableID, err := tools.Int64Arg(args, "table_id")
			if err != nil {
				return tools.ErrorResult(err.Error()), nil
			}
			limit, err := tools.IntArgDefault(args, "limit", 20)
			if err != nil {
				return tools.ErrorResult(err.Error()), nil
			}

			result, err := gw.TableQueryMetadata(ctx, tableID)
			if err != nil {
				return tools.ErrorResultf("failed to get table fields for table %d: %v", tableID, err), nil
			}

			// Keep responses small for wide tables; limit <= 0 disables truncation
			if fields, ok := result["fields"].([]interface{}); ok && limit > 0 && len(fields) > limit {
				result["fields"] = fields[:limit]
				result["_truncated"] = true
				result["_total_fields"] = len(fields)
				result["_limit_applied"] = limit
			}

			return tools.SuccessResult(result), nil
		},
	})
}
