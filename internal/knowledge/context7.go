package knowledge

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

// Context7Options configures the documentation lookup adapter.
type Context7Options struct {
	Enabled    bool
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
}

// Context7Adapter searches library documentation through the Context7
// search API.
type Context7Adapter struct {
	enabled bool
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewContext7Adapter creates the adapter.
func NewContext7Adapter(opts Context7Options) *Context7Adapter {
	client := opts.HTTPClient
	if client == nil {
		client = defaultHTTPClient()
	}
	return &Context7Adapter{
		enabled: opts.Enabled && opts.BaseURL != "",
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		apiKey:  opts.APIKey,
		client:  client,
	}
}

func (a *Context7Adapter) Name() Source  { return SourceContext7 }
func (a *Context7Adapter) Enabled() bool { return a.enabled }

type context7Response struct {
	Results []struct {
		ID          string  `json:"id"`
		Title       string  `json:"title"`
		Description string  `json:"description"`
		TrustScore  float64 `json:"trustScore"`
	} `json:"results"`
}

// Fetch queries {base}/api/v1/search. The provider's 0-10 trust score
// becomes the relevance score.
func (a *Context7Adapter) Fetch(ctx context.Context, req Request) ([]Item, error) {
	query := req.Query()
	if query == "" {
		return nil, errEmptyQuery
	}
	q := url.Values{}
	q.Set("query", query)
	if req.MaxResults > 0 {
		q.Set("limit", strconv.Itoa(req.MaxResults))
	}

	headers := map[string]string{}
	if a.apiKey != "" {
		headers["Authorization"] = "Bearer " + a.apiKey
	}

	var body context7Response
	if err := getJSON(ctx, a.client, a.baseURL+"/api/v1/search?"+q.Encode(), headers, &body); err != nil {
		return nil, err
	}

	items := make([]Item, 0, len(body.Results))
	for _, r := range body.Results {
		items = append(items, Item{
			ID:             r.ID,
			Type:           "documentation",
			Title:          r.Title,
			Content:        r.Description,
			RelevanceScore: r.TrustScore / 10,
		})
	}
	return items, nil
}
