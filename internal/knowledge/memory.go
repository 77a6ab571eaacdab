package knowledge

import (
	"context"
	"fmt"

	"github.com/HendryAvila/smartflow/internal/memory"
)

// MemorySearcher is the slice of the memory store the adapter needs.
type MemorySearcher interface {
	Search(ctx context.Context, query string, opts memory.SearchOptions) ([]memory.SearchResult, error)
}

// MemoryAdapter runs full-text queries over the persisted memory store.
type MemoryAdapter struct {
	enabled bool
	store   MemorySearcher
}

// NewMemoryAdapter creates the adapter. A nil store disables it.
func NewMemoryAdapter(store MemorySearcher, enabled bool) *MemoryAdapter {
	return &MemoryAdapter{enabled: enabled && store != nil, store: store}
}

func (a *MemoryAdapter) Name() Source  { return SourceMemory }
func (a *MemoryAdapter) Enabled() bool { return a.enabled }

// Fetch searches entries of the request's project, matching any query
// term. Relevance follows FTS5 rank order.
func (a *MemoryAdapter) Fetch(ctx context.Context, req Request) ([]Item, error) {
	query := req.Query()
	if query == "" {
		return nil, errEmptyQuery
	}
	results, err := a.store.Search(ctx, query, memory.SearchOptions{
		Project:  req.ProjectID,
		Limit:    req.MaxResults,
		MatchAny: true,
	})
	if err != nil {
		return nil, err
	}

	items := make([]Item, 0, len(results))
	for i, r := range results {
		items = append(items, Item{
			ID:             fmt.Sprintf("memory-%d", r.ID),
			Type:           r.Kind,
			Title:          r.Title,
			Content:        r.Content,
			RelevanceScore: rankRelevance(i, 0.8, 0.9),
		})
	}
	return items, nil
}
