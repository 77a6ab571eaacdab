package knowledge

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"golang.org/x/time/rate"
)

// WebSearchOptions configures the web search adapter.
type WebSearchOptions struct {
	Enabled       bool
	BaseURL       string
	APIKey        string
	RatePerSecond float64
	Burst         int
	HTTPClient    *http.Client
}

// WebSearchAdapter queries a Brave-compatible web search API. Calls are
// rate limited because the upstream quota is per second.
type WebSearchAdapter struct {
	enabled bool
	baseURL string
	apiKey  string
	client  *http.Client
	limiter *rate.Limiter
}

// NewWebSearchAdapter creates the adapter. It is disabled without an API key.
func NewWebSearchAdapter(opts WebSearchOptions) *WebSearchAdapter {
	client := opts.HTTPClient
	if client == nil {
		client = defaultHTTPClient()
	}
	limit := rate.Limit(opts.RatePerSecond)
	if opts.RatePerSecond <= 0 {
		limit = rate.Inf
	}
	burst := opts.Burst
	if burst <= 0 {
		burst = 1
	}
	return &WebSearchAdapter{
		enabled: opts.Enabled && opts.APIKey != "" && opts.BaseURL != "",
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		apiKey:  opts.APIKey,
		client:  client,
		limiter: rate.NewLimiter(limit, burst),
	}
}

func (a *WebSearchAdapter) Name() Source  { return SourceWebSearch }
func (a *WebSearchAdapter) Enabled() bool { return a.enabled }

type webSearchResponse struct {
	Web struct {
		Results []struct {
			Title       string `json:"title"`
			URL         string `json:"url"`
			Description string `json:"description"`
		} `json:"results"`
	} `json:"web"`
}

// Fetch queries {base}/res/v1/web/search. Relevance decays with rank.
func (a *WebSearchAdapter) Fetch(ctx context.Context, req Request) ([]Item, error) {
	query := req.Query()
	if query == "" {
		return nil, errEmptyQuery
	}
	if err := a.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	q := url.Values{}
	q.Set("q", query)
	if req.MaxResults > 0 {
		q.Set("count", strconv.Itoa(min(req.MaxResults, 20)))
	}
	headers := map[string]string{"X-Subscription-Token": a.apiKey}

	var body webSearchResponse
	if err := getJSON(ctx, a.client, a.baseURL+"/res/v1/web/search?"+q.Encode(), headers, &body); err != nil {
		return nil, err
	}

	items := make([]Item, 0, len(body.Web.Results))
	for i, r := range body.Web.Results {
		items = append(items, Item{
			ID:             r.URL,
			Type:           "web",
			Title:          r.Title,
			Content:        r.Description,
			URL:            r.URL,
			RelevanceScore: rankRelevance(i, 0.9, 0.85),
		})
	}
	return items, nil
}

// rankRelevance maps a 0-based rank to top * decay^rank.
func rankRelevance(rank int, top, decay float64) float64 {
	return top * math.Pow(decay, float64(rank))
}
