package memtools

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/HendryAvila/smartflow/internal/memory"
)

// StatsTool reports how much the memory knowledge source has to offer.
type StatsTool struct {
	store *memory.Store
}

func NewStatsTool(store *memory.Store) *StatsTool {
	return &StatsTool{store: store}
}

func (t *StatsTool) Definition() mcp.Tool {
	return mcp.NewTool("smart_memory_stats",
		mcp.WithDescription(
			"Summarize the knowledge memory: entry counts per kind (notes, decisions, "+
				"recorded orchestration runs) and the projects that have memory. "+
				"Use it to check whether cost_prevention runs will find project memory.",
		),
	)
}

func (t *StatsTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	stats, err := t.store.Stats(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("reading memory stats: %v", err)), nil
	}
	if stats.TotalEntries == 0 {
		return mcp.NewToolResultText("Knowledge memory is empty. Save notes with smart_memory_save; " +
			"finished orchestrations are recorded automatically."), nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "## Knowledge Memory\n\n%d entries", stats.TotalEntries)
	if n := len(stats.Projects); n > 0 {
		fmt.Fprintf(&sb, " across %d project(s): %s", n, strings.Join(stats.Projects, ", "))
	}
	sb.WriteString("\n\n| Kind | Entries |\n|------|---------|\n")
	for _, kind := range slices.Sorted(maps.Keys(stats.ByKind)) {
		fmt.Fprintf(&sb, "| %s | %d |\n", kind, stats.ByKind[kind])
	}
	return mcp.NewToolResultText(sb.String()), nil
}
