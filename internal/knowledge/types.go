// Package knowledge gathers supplementary knowledge for orchestration
// phases. A Coordinator fans a Request out to the enabled Adapters
// concurrently, bounds every call with a per-adapter timeout, and merges
// the results into one ranked, truncated list.
package knowledge

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Source names a knowledge adapter.
type Source string

const (
	SourceContext7  Source = "context7"
	SourceWebSearch Source = "web_search"
	SourceMemory    Source = "memory"
)

// AllSources lists every known source in priority order.
var AllSources = []Source{SourceContext7, SourceWebSearch, SourceMemory}

// priority returns the tie-break rank of a source; lower wins.
func (s Source) priority() int {
	for i, known := range AllSources {
		if s == known {
			return i
		}
	}
	return len(AllSources)
}

// ParseSource resolves a source name case-insensitively.
func ParseSource(name string) (Source, error) {
	n := Source(strings.ToLower(strings.TrimSpace(name)))
	for _, s := range AllSources {
		if n == s {
			return s, nil
		}
	}
	return "", fmt.Errorf("unknown knowledge source %q (valid: context7, web_search, memory)", name)
}

// Item is one piece of knowledge returned by an adapter.
type Item struct {
	ID             string  `json:"id"`
	Source         Source  `json:"source"`
	Type           string  `json:"type"`
	Title          string  `json:"title"`
	Content        string  `json:"content"`
	URL            string  `json:"url,omitempty"`
	RelevanceScore float64 `json:"relevanceScore"`
}

// Request asks the coordinator for knowledge about a business request.
type Request struct {
	ProjectID       string   `json:"projectId,omitempty"`
	BusinessRequest string   `json:"businessRequest"`
	Domain          string   `json:"domain,omitempty"`
	Priority        string   `json:"priority,omitempty"`
	Sources         []Source `json:"sources,omitempty"`
	MaxResults      int      `json:"maxResults,omitempty"`
}

// Query is the text adapters search for.
func (r Request) Query() string {
	return strings.TrimSpace(strings.TrimSpace(r.Domain) + " " + strings.TrimSpace(r.BusinessRequest))
}

// wants reports whether the request names the source. An empty source
// set asks every registered adapter.
func (r Request) wants(s Source) bool {
	if len(r.Sources) == 0 {
		return true
	}
	for _, want := range r.Sources {
		if want == s {
			return true
		}
	}
	return false
}

// Status is the outcome of one adapter within a Gather call.
type Status string

const (
	StatusSuccess      Status = "success"
	StatusFailed       Status = "failed"
	StatusTimeout      Status = "timeout"
	StatusDisabled     Status = "disabled"
	StatusNotRequested Status = "not_requested"
)

// SourceReport describes what one adapter contributed.
type SourceReport struct {
	Source   Source        `json:"source"`
	Status   Status        `json:"status"`
	Items    int           `json:"items"`
	Duration time.Duration `json:"duration"`
	Error    string        `json:"error,omitempty"`
}

// Result is the full outcome of a Gather call.
type Result struct {
	Items    []Item                  `json:"items"`
	Sources  map[Source]SourceReport `json:"sources"`
	Duration time.Duration           `json:"duration"`
}

// StatusOf returns the status reported for s, or not_requested when the
// source is not registered.
func (r Result) StatusOf(s Source) Status {
	if rep, ok := r.Sources[s]; ok {
		return rep.Status
	}
	return StatusNotRequested
}

// AdapterError records why an adapter contributed nothing. It never leaves
// the coordinator; callers see it flattened into a SourceReport.
type AdapterError struct {
	Source  Source
	Timeout bool
	Err     error
}

func (e *AdapterError) Error() string {
	if e.Timeout {
		return fmt.Sprintf("knowledge source %s timed out: %v", e.Source, e.Err)
	}
	return fmt.Sprintf("knowledge source %s failed: %v", e.Source, e.Err)
}

func (e *AdapterError) Unwrap() error { return e.Err }

// Adapter is the uniform interface to one external knowledge provider.
type Adapter interface {
	Name() Source
	Enabled() bool
	// Fetch must honour ctx cancellation. The coordinator stops waiting at
	// the deadline either way.
	Fetch(ctx context.Context, req Request) ([]Item, error)
}

// errEmptyQuery is returned by adapters asked to search for nothing.
var errEmptyQuery = errors.New("empty query")
