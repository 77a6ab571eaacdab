package tools

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/HendryAvila/smartflow/internal/bizctx"
)

// ContextBroker is the part of the business context broker the
// smart_context tool needs. *bizctx.Broker implements it.
type ContextBroker interface {
	Snapshot(projectID string) (bizctx.BusinessContext, bool)
	Reset(projectID string) (bizctx.BusinessContext, error)
	Evict(projectID string) bool
}

// ContextTool handles the smart_context MCP tool.
// It inspects or resets a project's business context.
type ContextTool struct {
	broker ContextBroker
}

// NewContextTool creates a ContextTool.
func NewContextTool(broker ContextBroker) *ContextTool {
	return &ContextTool{broker: broker}
}

// Definition returns the MCP tool definition for registration.
func (t *ContextTool) Definition() mcp.Tool {
	return mcp.NewTool("smart_context",
		mcp.WithDescription(
			"Inspect or manage the shared business context of a project. "+
				"'get' returns the current goals, requirements, stakeholders, constraints and version. "+
				"'reset' empties the context (the version keeps increasing). "+
				"'evict' drops it entirely.",
		),
		mcp.WithString("project_id",
			mcp.Required(),
			mcp.Description("Project identifier"),
		),
		mcp.WithString("action",
			mcp.Description("What to do. Default: get"),
			mcp.Enum("get", "reset", "evict"),
		),
	)
}

// Handle processes the smart_context tool call.
func (t *ContextTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	projectID := strings.TrimSpace(req.GetString("project_id", ""))
	if projectID == "" {
		return mcp.NewToolResultError("'project_id' is required"), nil
	}

	switch action := strings.ToLower(req.GetString("action", "get")); action {
	case "", "get":
		snap, ok := t.broker.Snapshot(projectID)
		if !ok {
			return mcp.NewToolResultError(fmt.Sprintf("No business context for project %q. Run `smart_orchestrate` with this project_id first.", projectID)), nil
		}
		return jsonResult(snap)

	case "reset":
		snap, err := t.broker.Reset(projectID)
		if err != nil {
			var nf *bizctx.NotFoundError
			if errors.As(err, &nf) {
				return mcp.NewToolResultError(err.Error()), nil
			}
			return nil, fmt.Errorf("resetting context: %w", err)
		}
		return jsonResult(snap)

	case "evict":
		if !t.broker.Evict(projectID) {
			return mcp.NewToolResultError(fmt.Sprintf("No business context for project %q.", projectID)), nil
		}
		return mcp.NewToolResultText(fmt.Sprintf("Business context for project %q evicted.", projectID)), nil

	default:
		return mcp.NewToolResultError(fmt.Sprintf("invalid action %q: must be one of: get, reset, evict", action)), nil
	}
}
