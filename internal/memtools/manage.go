package memtools

import (
	"context"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/HendryAvila/smartflow/internal/memory"
)

// ─── GetTool ────────────────────────────────────────────────────────────────

// GetTool handles the smart_memory_get MCP tool.
type GetTool struct {
	store *memory.Store
}

// NewGetTool creates a GetTool with the given memory store.
func NewGetTool(store *memory.Store) *GetTool {
	return &GetTool{store: store}
}

// Definition returns the MCP tool definition for smart_memory_get.
func (t *GetTool) Definition() mcp.Tool {
	return mcp.NewTool("smart_memory_get",
		mcp.WithDescription("Show a memory entry in full by ID."),
		mcp.WithNumber("id",
			mcp.Required(),
			mcp.Description("Entry ID"),
		),
	)
}

// Handle processes the smart_memory_get tool call.
func (t *GetTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := intArg(req, "id", 0)
	if id <= 0 {
		return mcp.NewToolResultError("'id' is required"), nil
	}

	e, err := t.store.Get(ctx, int64(id))
	if err != nil {
		if errors.Is(err, memory.ErrNotFound) {
			return mcp.NewToolResultError(fmt.Sprintf("Entry %d not found.", id)), nil
		}
		return nil, fmt.Errorf("reading entry %d: %w", id, err)
	}

	text := fmt.Sprintf("# %s\n\n- **ID**: %d\n- **Kind**: %s\n", e.Title, e.ID, e.Kind)
	if e.Project != "" {
		text += fmt.Sprintf("- **Project**: %s\n", e.Project)
	}
	if e.TopicKey != nil {
		text += fmt.Sprintf("- **Topic**: %s (revision %d)\n", *e.TopicKey, e.RevisionCount)
	}
	text += fmt.Sprintf("- **Updated**: %s\n\n%s\n", e.UpdatedAt, e.Content)
	return mcp.NewToolResultText(text), nil
}

// ─── DeleteTool ─────────────────────────────────────────────────────────────

// DeleteTool handles the smart_memory_delete MCP tool.
type DeleteTool struct {
	store *memory.Store
}

// NewDeleteTool creates a DeleteTool with the given memory store.
func NewDeleteTool(store *memory.Store) *DeleteTool {
	return &DeleteTool{store: store}
}

// Definition returns the MCP tool definition for smart_memory_delete.
func (t *DeleteTool) Definition() mcp.Tool {
	return mcp.NewTool("smart_memory_delete",
		mcp.WithDescription(
			"Permanently delete a memory entry by ID. Deleted entries are no longer offered as knowledge.",
		),
		mcp.WithNumber("id",
			mcp.Required(),
			mcp.Description("Entry ID to delete"),
		),
	)
}

// Handle processes the smart_memory_delete tool call.
func (t *DeleteTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := intArg(req, "id", 0)
	if id <= 0 {
		return mcp.NewToolResultError("'id' is required"), nil
	}

	if err := t.store.Delete(ctx, int64(id)); err != nil {
		if errors.Is(err, memory.ErrNotFound) {
			return mcp.NewToolResultError(fmt.Sprintf("Entry %d not found.", id)), nil
		}
		return mcp.NewToolResultError(fmt.Sprintf("failed to delete entry: %v", err)), nil
	}

	return mcp.NewToolResultText(fmt.Sprintf("Entry %d deleted", id)), nil
}
