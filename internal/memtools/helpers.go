// Package memtools exposes the knowledge memory over MCP so an agent can
// curate what the memory source returns during cost_prevention runs.
// Tools take the *memory.Store in their constructor and follow the
// Definition/Handle shape of internal/tools.
package memtools

import (
	"unicode/utf8"

	"github.com/mark3labs/mcp-go/mcp"
)

// intArg reads a numeric argument. JSON numbers arrive as float64.
func intArg(req mcp.CallToolRequest, key string, def int) int {
	if v, ok := req.GetArguments()[key].(float64); ok {
		return int(v)
	}
	return def
}

func boolArg(req mcp.CallToolRequest, key string, def bool) bool {
	if v, ok := req.GetArguments()[key].(bool); ok {
		return v
	}
	return def
}

// snippet cuts s to at most n bytes on a rune boundary and marks the cut.
func snippet(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}
