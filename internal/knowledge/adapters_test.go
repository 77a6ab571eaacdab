package knowledge

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HendryAvila/smartflow/internal/memory"
)

func TestContext7Adapter_Fetch(t *testing.T) {
	var gotQuery, gotLimit, gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/search", r.URL.Path)
		gotQuery = r.URL.Query().Get("query")
		gotLimit = r.URL.Query().Get("limit")
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"results":[
			{"id":"/vercel/next.js","title":"Next.js","description":"React framework","trustScore":9},
			{"id":"/nextauthjs/next-auth","title":"NextAuth","description":"Auth for Next.js","trustScore":7.5}
		]}`))
	}))
	defer srv.Close()

	a := NewContext7Adapter(Context7Options{Enabled: true, BaseURL: srv.URL + "/", APIKey: "k"})
	require.True(t, a.Enabled())
	assert.Equal(t, SourceContext7, a.Name())

	items, err := a.Fetch(context.Background(), Request{BusinessRequest: "login page", Domain: "frontend", MaxResults: 5})
	require.NoError(t, err)
	require.Len(t, items, 2)

	assert.Equal(t, "frontend login page", gotQuery)
	assert.Equal(t, "5", gotLimit)
	assert.Equal(t, "Bearer k", gotAuth)
	assert.Equal(t, "/vercel/next.js", items[0].ID)
	assert.Equal(t, "documentation", items[0].Type)
	assert.InDelta(t, 0.9, items[0].RelevanceScore, 1e-9)
	assert.InDelta(t, 0.75, items[1].RelevanceScore, 1e-9)
}

func TestContext7Adapter_Disabled(t *testing.T) {
	assert.False(t, NewContext7Adapter(Context7Options{Enabled: false, BaseURL: "http://x"}).Enabled())
	assert.False(t, NewContext7Adapter(Context7Options{Enabled: true}).Enabled())
}

func TestContext7Adapter_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "upstream down", http.StatusBadGateway)
	}))
	defer srv.Close()

	a := NewContext7Adapter(Context7Options{Enabled: true, BaseURL: srv.URL})
	_, err := a.Fetch(context.Background(), Request{BusinessRequest: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}

func TestContext7Adapter_BadJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{not json`))
	}))
	defer srv.Close()

	a := NewContext7Adapter(Context7Options{Enabled: true, BaseURL: srv.URL})
	_, err := a.Fetch(context.Background(), Request{BusinessRequest: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse")
}

func TestAdapters_EmptyQuery(t *testing.T) {
	c7 := NewContext7Adapter(Context7Options{Enabled: true, BaseURL: "http://127.0.0.1:1"})
	_, err := c7.Fetch(context.Background(), Request{BusinessRequest: "  "})
	assert.ErrorIs(t, err, errEmptyQuery)
}

func TestWebSearchAdapter_Fetch(t *testing.T) {
	var gotToken, gotQ, gotCount string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/res/v1/web/search", r.URL.Path)
		gotToken = r.Header.Get("X-Subscription-Token")
		gotQ = r.URL.Query().Get("q")
		gotCount = r.URL.Query().Get("count")
		_, _ = w.Write([]byte(`{"web":{"results":[
			{"title":"OAuth guide","url":"https://a.example/oauth","description":"How to OAuth"},
			{"title":"Login UX","url":"https://b.example/ux","description":"Forms"}
		]}}`))
	}))
	defer srv.Close()

	a := NewWebSearchAdapter(WebSearchOptions{Enabled: true, BaseURL: srv.URL, APIKey: "tok"})
	require.True(t, a.Enabled())

	items, err := a.Fetch(context.Background(), Request{BusinessRequest: "login", MaxResults: 50})
	require.NoError(t, err)
	require.Len(t, items, 2)

	assert.Equal(t, "tok", gotToken)
	assert.Equal(t, "login", gotQ)
	assert.Equal(t, "20", gotCount)
	assert.Equal(t, "https://a.example/oauth", items[0].ID)
	assert.Equal(t, "https://a.example/oauth", items[0].URL)
	assert.Greater(t, items[0].RelevanceScore, items[1].RelevanceScore)
}

func TestWebSearchAdapter_RequiresAPIKey(t *testing.T) {
	a := NewWebSearchAdapter(WebSearchOptions{Enabled: true, BaseURL: "http://x"})
	assert.False(t, a.Enabled())
}

func TestWebSearchAdapter_RateLimitHonoursContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"web":{"results":[]}}`))
	}))
	defer srv.Close()

	a := NewWebSearchAdapter(WebSearchOptions{
		Enabled: true, BaseURL: srv.URL, APIKey: "tok",
		RatePerSecond: 0.01, Burst: 1,
	})
	_, err := a.Fetch(context.Background(), Request{BusinessRequest: "first"})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = a.Fetch(ctx, Request{BusinessRequest: "second"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limiter")
}

func TestMemoryAdapter_Fetch(t *testing.T) {
	store, err := memory.New(memory.DefaultConfig(t.TempDir()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	ctx := context.Background()
	_, err = store.Add(ctx, memory.AddParams{Kind: "decision", Title: "Login uses OAuth", Content: "GitHub provider", Project: "shop"})
	require.NoError(t, err)
	_, err = store.Add(ctx, memory.AddParams{Kind: "pattern", Title: "Login form", Content: "Validate email on blur", Project: "shop"})
	require.NoError(t, err)
	_, err = store.Add(ctx, memory.AddParams{Kind: "decision", Title: "Login elsewhere", Content: "Other project", Project: "other"})
	require.NoError(t, err)

	a := NewMemoryAdapter(store, true)
	require.True(t, a.Enabled())

	items, err := a.Fetch(ctx, Request{ProjectID: "shop", BusinessRequest: "login page", MaxResults: 10})
	require.NoError(t, err)
	require.Len(t, items, 2)
	for _, it := range items {
		assert.Contains(t, it.ID, "memory-")
		assert.Contains(t, []string{"decision", "pattern"}, it.Type)
	}
	assert.Greater(t, items[0].RelevanceScore, items[1].RelevanceScore)
}

func TestMemoryAdapter_NilStoreDisabled(t *testing.T) {
	assert.False(t, NewMemoryAdapter(nil, true).Enabled())
}

func TestCoordinator_EndToEndWithHTTPAdapters(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"results":[{"id":"doc","title":"Docs","description":"d","trustScore":10}]}`))
	}))
	defer srv.Close()

	hanging := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(3 * time.Second):
		}
	}))
	defer hanging.Close()

	c, err := NewCoordinator([]Adapter{
		NewContext7Adapter(Context7Options{Enabled: true, BaseURL: srv.URL}),
		NewWebSearchAdapter(WebSearchOptions{Enabled: true, BaseURL: hanging.URL, APIKey: "tok"}),
	}, WithAdapterTimeout(100*time.Millisecond))
	require.NoError(t, err)

	res := c.Gather(context.Background(), Request{BusinessRequest: "docs"})
	require.Len(t, res.Items, 1)
	assert.Equal(t, "doc", res.Items[0].ID)
	assert.Equal(t, 1.0, res.Items[0].RelevanceScore)
	assert.Equal(t, StatusSuccess, res.StatusOf(SourceContext7))
	assert.Equal(t, StatusTimeout, res.StatusOf(SourceWebSearch))
}
