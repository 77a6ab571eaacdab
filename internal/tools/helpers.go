// Package tools implements the MCP tool handlers of the orchestration
// server.
//
// Each tool is a struct that receives its dependencies through its
// constructor and exposes Definition() for registration and Handle() for
// mcp-go's CallToolRequest signature.
//
// Design principles:
// - SRP: each file = one tool
// - DIP: tools depend on small interfaces, not on the engine or broker types
// - User mistakes come back as tool errors; only infrastructure faults
// are returned as Go errors
package tools

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
)

// intArg extracts an integer argument from a tool request, returning
// defaultVal if the key is missing or not a number (JSON numbers are float64).
func intArg(req mcp.CallToolRequest, key string, defaultVal int) int {
	v, ok := req.GetArguments()[key].(float64)
	if !ok {
		return defaultVal
	}
	return int(v)
}

// boolArg extracts a boolean argument from a tool request.
func boolArg(req mcp.CallToolRequest, key string, defaultVal bool) bool {
	v, ok := req.GetArguments()[key].(bool)
	if !ok {
		return defaultVal
	}
	return v
}

// objectArg extracts a JSON object argument, or nil.
func objectArg(req mcp.CallToolRequest, key string) map[string]any {
	v, _ := req.GetArguments()[key].(map[string]any)
	return v
}

// stringsArg extracts a string array argument, dropping blank entries.
func stringsArg(req mcp.CallToolRequest, key string) []string {
	var out []string
	for _, s := range req.GetStringSlice(key, nil) {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// marshalResult renders v as indented JSON text.
func marshalResult(v any) (string, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshaling result: %w", err)
	}
	return string(data), nil
}

// jsonResult renders v as the text of a successful tool result.
func jsonResult(v any) (*mcp.CallToolResult, error) {
	text, err := marshalResult(v)
	if err != nil {
		return nil, err
	}
	return mcp.NewToolResultText(text), nil
}
