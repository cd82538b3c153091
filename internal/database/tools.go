package database

import "github.com/joss/mcpd/internal/tool"

// Specs returns the database-mcp tools in listing order.
func Specs() []tool.Spec {
	params := tool.Field{
		Name:        "params",
		Description: "Values bound to the statement placeholders ($1 for postgres, ? otherwise)",
		Param:       tool.Array{Items: tool.AnyValue()},
		Default:     []any{},
	}

	return []tool.Spec{
		{
			Name:        "connect_database",
			Description: "Open a pooled connection, replacing any active one",
			Parameters: []tool.Field{
				{Name: "driver", Description: "Database driver", Param: tool.Enum{Values: Drivers}, Required: true},
				{Name: "dsn", Description: "Full driver DSN; overrides the discrete fields", Param: tool.String{}},
				{Name: "host", Description: "Server host", Param: tool.String{}},
				{Name: "port", Description: "Server port", Param: tool.Integer{}},
				{Name: "user", Description: "User name", Param: tool.String{}},
				{Name: "password", Description: "Password", Param: tool.String{}},
				{Name: "database", Description: "Database name, or file path for sqlite", Param: tool.String{}},
				{Name: "sslmode", Description: "Postgres sslmode", Param: tool.Enum{Values: []string{"disable", "allow", "prefer", "require", "verify-ca", "verify-full"}}},
			},
		},
		{
			Name:        "disconnect_database",
			Description: "Close the active connection",
		},
		{
			Name:        "connection_info",
			Description: "Describe the active connection, server version and pool usage",
		},
		{
			Name:        "execute_query",
			Description: "Run a query and return its rows as a table",
			Parameters: []tool.Field{
				{Name: "query", Description: "SQL query", Param: tool.String{}, Required: true},
				params,
			},
		},
		{
			Name:        "execute_statement",
			Description: "Run a statement and report rows affected",
			Parameters: []tool.Field{
				{Name: "statement", Description: "SQL statement", Param: tool.String{}, Required: true},
				params,
			},
		},
		{
			Name:        "list_databases",
			Description: "List databases on the server",
		},
		{
			Name:        "list_tables",
			Description: "List tables and views",
			Parameters: []tool.Field{
				{Name: "schema", Description: "Schema to list; defaults to every user schema", Param: tool.String{}},
			},
		},
		{
			Name:        "describe_table",
			Description: "List the columns of a table",
			Parameters: []tool.Field{
				{Name: "table", Description: "Table name", Param: tool.String{}, Required: true},
				{Name: "schema", Description: "Schema containing the table", Param: tool.String{}},
			},
		},
		{
			Name:        "sample_table",
			Description: "Return the first rows of a table",
			Parameters: []tool.Field{
				{Name: "table", Description: "Table name, optionally schema-qualified", Param: tool.String{}, Required: true},
				{Name: "limit", Description: "Rows to return", Param: tool.Integer{}, Default: int64(10)},
			},
		},
	}
}
