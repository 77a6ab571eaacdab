package memtools

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/HendryAvila/smartflow/internal/memory"
)

// SearchTool handles the smart_memory_search MCP tool.
type SearchTool struct {
	store *memory.Store
}

// NewSearchTool creates a SearchTool.
func NewSearchTool(store *memory.Store) *SearchTool {
	return &SearchTool{store: store}
}

// Definition returns the MCP tool definition for smart_memory_search.
func (t *SearchTool) Definition() mcp.Tool {
	return mcp.NewTool("smart_memory_search",
		mcp.WithDescription(
			"Full-text search over persistent memory: saved notes and recorded orchestration runs.",
		),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Search query, natural language or keywords"),
		),
		mcp.WithString("kind",
			mcp.Description("Filter by kind, e.g. decision, pattern, orchestration"),
		),
		mcp.WithString("project_id",
			mcp.Description("Filter by project"),
		),
		mcp.WithBoolean("match_any",
			mcp.Description("Match entries containing any term instead of all terms"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Max results (default: 10, max: 20)"),
		),
	)
}

// Handle processes the smart_memory_search tool call.
func (t *SearchTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query := req.GetString("query", "")
	if strings.TrimSpace(query) == "" {
		return mcp.NewToolResultError("'query' is required"), nil
	}

	limit := intArg(req, "limit", 10)
	if limit > 20 {
		limit = 20
	}

	results, err := t.store.Search(ctx, query, memory.SearchOptions{
		Kind:     req.GetString("kind", ""),
		Project:  strings.TrimSpace(req.GetString("project_id", "")),
		Limit:    limit,
		MatchAny: boolArg(req, "match_any", false),
	})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("search failed: %v", err)), nil
	}

	if len(results) == 0 {
		return mcp.NewToolResultText("No memories found matching your query."), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Found %d memories:\n\n", len(results))

	for i, r := range results {
		topicInfo := ""
		if r.TopicKey != nil && *r.TopicKey != "" {
			topicInfo = fmt.Sprintf(" | topic: %s", *r.TopicKey)
		}
		project := r.Project
		if project == "" {
			project = "-"
		}

		fmt.Fprintf(&b, "[%d] #%d (%s) - %s\n    %s\n    project: %s%s\n\n",
			i+1, r.ID, r.Kind, r.Title,
			snippet(r.Content, 300),
			project, topicInfo,
		)
	}

	return mcp.NewToolResultText(b.String()), nil
}

// RecentTool handles the smart_memory_recent MCP tool.
type RecentTool struct {
	store *memory.Store
}

// NewRecentTool creates a RecentTool.
func NewRecentTool(store *memory.Store) *RecentTool {
	return &RecentTool{store: store}
}

// Definition returns the MCP tool definition for smart_memory_recent.
func (t *RecentTool) Definition() mcp.Tool {
	return mcp.NewTool("smart_memory_recent",
		mcp.WithDescription(
			"List the most recently updated memory entries, newest first. Use it to catch up "+
				"on a project before orchestrating more work.",
		),
		mcp.WithString("project_id",
			mcp.Description("Filter by project (omit for all projects)"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Number of entries (default: 20)"),
		),
	)
}

// Handle processes the smart_memory_recent tool call.
func (t *RecentTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	project := strings.TrimSpace(req.GetString("project_id", ""))
	entries, err := t.store.Recent(ctx, project, intArg(req, "limit", 20))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to list memories: %v", err)), nil
	}
	if len(entries) == 0 {
		return mcp.NewToolResultText("No memories yet. Save notes with smart_memory_save."), nil
	}

	var b strings.Builder
	b.WriteString("## Recent Memories\n\n")
	for _, e := range entries {
		fmt.Fprintf(&b, "- #%d [%s] **%s** (%s)\n", e.ID, e.Kind, e.Title, e.UpdatedAt)
	}
	return mcp.NewToolResultText(b.String()), nil
}
