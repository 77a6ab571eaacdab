package tools

import (
	"context"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/HendryAvila/smartflow/internal/knowledge"
)

// KnowledgeGatherer fans a query out to the knowledge sources.
// *knowledge.Coordinator implements it.
type KnowledgeGatherer interface {
	Gather(ctx context.Context, req knowledge.Request) knowledge.Result
}

// KnowledgeTool handles the smart_knowledge MCP tool.
type KnowledgeTool struct {
	gatherer KnowledgeGatherer
}

// NewKnowledgeTool creates a KnowledgeTool.
func NewKnowledgeTool(gatherer KnowledgeGatherer) *KnowledgeTool {
	return &KnowledgeTool{gatherer: gatherer}
}

// Definition returns the MCP tool definition for registration.
func (t *KnowledgeTool) Definition() mcp.Tool {
	return mcp.NewTool("smart_knowledge",
		mcp.WithDescription(
			"Search the configured knowledge sources (context7 documentation, web search, "+
				"project memory) in parallel. Returns ranked items and how each source behaved. "+
				"Slow or failing sources are skipped, never fatal.",
		),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("What to look for"),
		),
		mcp.WithString("project_id",
			mcp.Description("Restrict memory results to this project"),
		),
		mcp.WithString("domain",
			mcp.Description("Domain prefix for the query, e.g. 'software testing'"),
		),
		mcp.WithArray("sources",
			mcp.Description("Sources to ask. Default: all configured"),
			mcp.Items(map[string]any{"type": "string", "enum": []string{"context7", "web_search", "memory"}}),
		),
		mcp.WithNumber("max_results",
			mcp.Description("Max items (default: 10)"),
		),
	)
}

// Handle processes the smart_knowledge tool call.
func (t *KnowledgeTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query := req.GetString("query", "")
	if strings.TrimSpace(query) == "" {
		return mcp.NewToolResultError("'query' is required"), nil
	}

	var sources []knowledge.Source
	for _, name := range stringsArg(req, "sources") {
		s, err := knowledge.ParseSource(name)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		sources = append(sources, s)
	}

	res := t.gatherer.Gather(ctx, knowledge.Request{
		ProjectID:       strings.TrimSpace(req.GetString("project_id", "")),
		BusinessRequest: query,
		Domain:          req.GetString("domain", ""),
		Sources:         sources,
		MaxResults:      intArg(req, "max_results", 0),
	})
	return jsonResult(res)
}
