package kvstore

import "github.com/joss/mcpd/internal/tool"

// Specs returns the store-mcp tools in listing order.
func Specs() []tool.Spec {
	namespace := tool.Field{Name: "namespace", Description: "Key namespace", Param: tool.String{}, Default: DefaultNamespace}
	key := tool.Field{Name: "key", Description: "Entry key", Param: tool.String{}, Required: true}

	return []tool.Spec{
		{
			Name:        "store_set",
			Description: "Store a JSON value under a key",
			Parameters: []tool.Field{
				key,
				{Name: "value", Description: "Any JSON value", Param: tool.AnyValue(), Required: true},
				namespace,
				{Name: "ttl_seconds", Description: "Expire the entry after this many seconds", Param: tool.Integer{}},
			},
		},
		{
			Name:        "store_get",
			Description: "Read the value stored under a key",
			Parameters:  []tool.Field{key, namespace},
		},
		{
			Name:        "store_delete",
			Description: "Delete a key",
			Parameters:  []tool.Field{key, namespace},
		},
		{
			Name:        "store_list",
			Description: "List keys matching a glob pattern",
			Parameters: []tool.Field{
				namespace,
				{Name: "pattern", Description: "Glob over keys; ** crosses '/'", Param: tool.String{}, Default: "*"},
				{Name: "limit", Description: "Maximum keys", Param: tool.Integer{}, Default: int64(100)},
			},
		},
		{
			Name:        "store_search",
			Description: "Find entries whose key or value contains text",
			Parameters: []tool.Field{
				{Name: "query", Description: "Text to find, case-insensitive", Param: tool.String{}, Required: true},
				{Name: "namespace", Description: "Namespace to search; all when omitted", Param: tool.String{}},
				{Name: "limit", Description: "Maximum results", Param: tool.Integer{}, Default: int64(50)},
			},
		},
		{
			Name:        "store_clear",
			Description: "Delete every key of a namespace",
			Parameters: []tool.Field{
				{Name: "namespace", Description: "Namespace to clear", Param: tool.String{}, Required: true},
			},
		},
		{
			Name:        "store_stats",
			Description: "Summarize entries per namespace",
		},
	}
}
