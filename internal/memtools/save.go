package memtools

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/HendryAvila/smartflow/internal/memory"
)

// SaveTool handles the smart_memory_save MCP tool.
type SaveTool struct {
	store *memory.Store
}

// NewSaveTool creates a SaveTool with the given memory store.
func NewSaveTool(store *memory.Store) *SaveTool {
	return &SaveTool{store: store}
}

// Definition returns the MCP tool definition for smart_memory_save.
func (t *SaveTool) Definition() mcp.Tool {
	return mcp.NewTool("smart_memory_save",
		mcp.WithDescription(
			"Save a decision, pattern, lesson or note to persistent memory. Saved notes are "+
				"searched by later orchestrations that run with cost_prevention, so save what "+
				"a future phase should know before it starts.",
		),
		mcp.WithString("title",
			mcp.Required(),
			mcp.Description("Short, searchable title (e.g. 'Login lockout policy')"),
		),
		mcp.WithString("content",
			mcp.Required(),
			mcp.Description("What was decided or learned, and where it applies"),
		),
		mcp.WithString("kind",
			mcp.Description("Category: decision, pattern, bugfix, lesson, note (default: note)"),
		),
		mcp.WithString("project_id",
			mcp.Description("Project the note belongs to"),
		),
		mcp.WithString("topic_key",
			mcp.Description("Optional topic identifier (e.g. auth/lockout). Saving again under the same key revises the note instead of adding one."),
		),
	)
}

// Handle processes the smart_memory_save tool call.
func (t *SaveTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	title := req.GetString("title", "")
	content := req.GetString("content", "")

	if strings.TrimSpace(title) == "" {
		return mcp.NewToolResultError("'title' is required"), nil
	}
	if strings.TrimSpace(content) == "" {
		return mcp.NewToolResultError("'content' is required"), nil
	}

	kind := req.GetString("kind", "note")
	topicKey := req.GetString("topic_key", "")

	id, err := t.store.Add(ctx, memory.AddParams{
		Kind:     kind,
		Title:    title,
		Content:  content,
		Project:  strings.TrimSpace(req.GetString("project_id", "")),
		Source:   "agent",
		TopicKey: topicKey,
	})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to save note: %v", err)), nil
	}

	response := fmt.Sprintf("Memory saved: %q (%s)", title, kind)
	if topicKey != "" {
		response += fmt.Sprintf("\nTopic: %s", topicKey)
	}
	response += fmt.Sprintf("\nID: %d", id)

	return mcp.NewToolResultText(response), nil
}
