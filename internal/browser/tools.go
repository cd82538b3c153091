package browser

import "github.com/joss/mcpd/internal/tool"

// ContentFormats lists the get_content renderings.
var ContentFormats = []string{"text", "html", "markdown", "article"}

// Specs returns the browser-mcp tools in listing order.
func Specs() []tool.Spec {
	pageID := tool.Field{Name: "page_id", Description: "Target page; defaults to the current page", Param: tool.String{}}

	return []tool.Spec{
		{
			Name:        "launch_browser",
			Description: "Start a browser process",
			Slow:        true,
			Parameters: []tool.Field{
				{Name: "headless", Description: "Run without a window", Param: tool.Boolean{}, Default: true},
				{Name: "browser", Description: "Browser family", Param: tool.Enum{Values: []string{"chromium"}}, Default: "chromium"},
			},
		},
		{
			Name:        "close_browser",
			Description: "Close one browser and its pages, or every browser",
			Parameters: []tool.Field{
				{Name: "browser_id", Description: "Browser to close; all when omitted", Param: tool.String{}},
			},
		},
		{
			Name:        "new_page",
			Description: "Open a page and make it current, launching a browser if none runs",
			Slow:        true,
			Parameters: []tool.Field{
				{Name: "url", Description: "URL to load", Param: tool.String{}},
				{Name: "browser_id", Description: "Browser to open the page in; defaults to the newest", Param: tool.String{}},
			},
		},
		{
			Name:        "list_pages",
			Description: "List open pages",
		},
		{
			Name:        "switch_page",
			Description: "Make a page current",
			Parameters: []tool.Field{
				{Name: "page_id", Description: "Page to switch to", Param: tool.String{}, Required: true},
			},
		},
		{
			Name:        "close_page",
			Description: "Close a page",
			Parameters:  []tool.Field{pageID},
		},
		{
			Name:        "navigate",
			Description: "Load a URL and wait for the page to finish loading",
			Parameters: []tool.Field{
				{Name: "url", Description: "URL to load", Param: tool.String{}, Required: true},
				pageID,
			},
		},
		{
			Name:        "click",
			Description: "Click the first element matching a CSS selector",
			Parameters: []tool.Field{
				{Name: "selector", Description: "CSS selector", Param: tool.String{}, Required: true},
				pageID,
			},
		},
		{
			Name:        "fill",
			Description: "Replace the value of an input",
			Parameters: []tool.Field{
				{Name: "selector", Description: "CSS selector", Param: tool.String{}, Required: true},
				{Name: "value", Description: "Text to enter", Param: tool.String{}, Required: true},
				pageID,
			},
		},
		{
			Name:        "wait_for_selector",
			Description: "Wait until an element is visible",
			Parameters: []tool.Field{
				{Name: "selector", Description: "CSS selector", Param: tool.String{}, Required: true},
				pageID,
				{Name: "timeout_seconds", Description: "Maximum wait", Param: tool.Number{}, Default: float64(10)},
			},
		},
		{
			Name:        "screenshot",
			Description: "Capture the page as PNG",
			Parameters: []tool.Field{
				pageID,
				{Name: "full_page", Description: "Capture the whole scrollable page", Param: tool.Boolean{}, Default: false},
				{Name: "path", Description: "Output file; defaults to the data directory", Param: tool.String{}},
			},
		},
		{
			Name:        "get_content",
			Description: "Return the page content",
			Parameters: []tool.Field{
				pageID,
				{Name: "format", Description: "Rendering", Param: tool.Enum{Values: ContentFormats}, Default: "text"},
			},
		},
		{
			Name:        "evaluate",
			Description: "Evaluate JavaScript in the page and return the JSON result",
			Parameters: []tool.Field{
				{Name: "script", Description: "Expression or function", Param: tool.String{}, Required: true},
				pageID,
			},
		},
	}
}
