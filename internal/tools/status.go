package tools

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/HendryAvila/smartflow/internal/runs"
)

// WorkflowStatusTool handles the smart_workflow_status MCP tool.
// It shows one recorded run, or lists the most recent ones.
type WorkflowStatusTool struct {
	store runs.Store
}

// NewWorkflowStatusTool creates a WorkflowStatusTool.
func NewWorkflowStatusTool(store runs.Store) *WorkflowStatusTool {
	return &WorkflowStatusTool{store: store}
}

// Definition returns the MCP tool definition for registration.
func (t *WorkflowStatusTool) Definition() mcp.Tool {
	return mcp.NewTool("smart_workflow_status",
		mcp.WithDescription(
			"Show the recorded result of an orchestration run. If `orchestration_id` is "+
				"provided, returns that run in full. Otherwise lists the most recent runs.",
		),
		mcp.WithString("orchestration_id",
			mcp.Description("Run to show. If omitted, lists recent runs."),
		),
		mcp.WithNumber("limit",
			mcp.Description("Max runs to list (default: 10)"),
		),
	)
}

// Handle processes the smart_workflow_status tool call.
func (t *WorkflowStatusTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := strings.TrimSpace(req.GetString("orchestration_id", ""))
	if id != "" {
		res, err := t.store.Get(id)
		if err != nil {
			if errors.Is(err, runs.ErrNotFound) {
				return mcp.NewToolResultError(fmt.Sprintf("Run %q not found.", id)), nil
			}
			return mcp.NewToolResultError(fmt.Sprintf("Run %q could not be read: %v", id, err)), nil
		}
		return jsonResult(res)
	}

	list, err := t.store.List(intArg(req, "limit", 10))
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	return jsonResult(map[string]any{"runs": list})
}
