package memory_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/HendryAvila/smartflow/internal/memory"
)

// newTestStore creates a Store backed by a temp directory for isolation.
func newTestStore(t *testing.T) *memory.Store {
	t.Helper()
	cfg := memory.Config{
		DataDir:          t.TempDir(),
		MaxContentLength: 200,
		MaxSearchResults: 20,
		DedupeWindow:     15 * time.Minute,
	}
	s, err := memory.New(cfg)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func mustAdd(t *testing.T, s *memory.Store, p memory.AddParams) int64 {
	t.Helper()
	id, err := s.Add(context.Background(), p)
	if err != nil {
		t.Fatalf("Add(%q) error: %v", p.Title, err)
	}
	return id
}

// ─── New ────────────────────────────────────────────────────────────────────

func TestNew_CreatesDBFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested")
	s, err := memory.New(memory.DefaultConfig(dir))
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	defer s.Close()

	if _, err := os.Stat(filepath.Join(dir, "memory.db")); err != nil {
		t.Fatalf("memory.db not created: %v", err)
	}
}

func TestNew_IdempotentReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	s1, err := memory.New(memory.DefaultConfig(dir))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s1.Add(ctx, memory.AddParams{Kind: "decision", Title: "Use OAuth", Content: "Login goes through OAuth"}); err != nil {
		t.Fatal(err)
	}
	_ = s1.Close()

	s2, err := memory.New(memory.DefaultConfig(dir))
	if err != nil {
		t.Fatalf("second New() error: %v", err)
	}
	defer s2.Close()

	st, err := s2.Stats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if st.TotalEntries != 1 {
		t.Errorf("TotalEntries = %d, want 1 after reopen", st.TotalEntries)
	}
}

// ─── Add ────────────────────────────────────────────────────────────────────

func TestAdd_Basic(t *testing.T) {
	s := newTestStore(t)
	id := mustAdd(t, s, memory.AddParams{
		Kind:    "decision",
		Title:   "Use PostgreSQL",
		Content: "Decided to use PostgreSQL for ACID compliance",
		Project: "shop",
		Source:  "manual",
	})
	if id <= 0 {
		t.Fatalf("expected positive ID, got %d", id)
	}

	e, err := s.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if e.Title != "Use PostgreSQL" {
		t.Errorf("Title = %q, want %q", e.Title, "Use PostgreSQL")
	}
	if e.Kind != "decision" || e.Project != "shop" || e.Source != "manual" {
		t.Errorf("unexpected entry: %+v", e)
	}
	if e.RevisionCount != 1 || e.DuplicateCount != 1 {
		t.Errorf("counters = %d/%d, want 1/1", e.RevisionCount, e.DuplicateCount)
	}
	if e.TopicKey != nil {
		t.Errorf("TopicKey = %q, want nil", *e.TopicKey)
	}
}

func TestAdd_DefaultKind(t *testing.T) {
	s := newTestStore(t)
	id := mustAdd(t, s, memory.AddParams{Title: "t", Content: "c"})
	e, err := s.Get(context.Background(), id)
	if err != nil {
		t.Fatal(err)
	}
	if e.Kind != "note" {
		t.Errorf("Kind = %q, want note", e.Kind)
	}
}

func TestAdd_RequiresTitleAndContent(t *testing.T) {
	s := newTestStore(t)
	tests := []memory.AddParams{
		{Title: "", Content: "c"},
		{Title: "t", Content: "   "},
	}
	for _, p := range tests {
		if _, err := s.Add(context.Background(), p); err == nil {
			t.Errorf("Add(%+v) expected error", p)
		}
	}
}

func TestAdd_TopicKeyUpsert(t *testing.T) {
	s := newTestStore(t)
	id1 := mustAdd(t, s, memory.AddParams{
		Kind:     "orchestration",
		Title:    "feature run v1",
		Content:  "status completed",
		Project:  "shop",
		TopicKey: "orchestration/shop/feature",
	})
	id2 := mustAdd(t, s, memory.AddParams{
		Kind:     "orchestration",
		Title:    "feature run v2",
		Content:  "status failed",
		Project:  "shop",
		TopicKey: "  Orchestration/shop/feature ",
	})
	if id1 != id2 {
		t.Fatalf("topic key upsert: id1=%d id2=%d, expected same ID", id1, id2)
	}

	e, err := s.Get(context.Background(), id1)
	if err != nil {
		t.Fatal(err)
	}
	if e.Content != "status failed" {
		t.Errorf("content not revised: %q", e.Content)
	}
	if e.RevisionCount != 2 {
		t.Errorf("RevisionCount = %d, want 2", e.RevisionCount)
	}
	if e.TopicKey == nil || *e.TopicKey != "orchestration/shop/feature" {
		t.Errorf("TopicKey = %v", e.TopicKey)
	}
}

func TestAdd_TopicKeyScopedByProject(t *testing.T) {
	s := newTestStore(t)
	id1 := mustAdd(t, s, memory.AddParams{Title: "a", Content: "a", Project: "p1", TopicKey: "k"})
	id2 := mustAdd(t, s, memory.AddParams{Title: "a", Content: "a", Project: "p2", TopicKey: "k"})
	if id1 == id2 {
		t.Error("same topic key in different projects must not collide")
	}
}

func TestAdd_Deduplication(t *testing.T) {
	s := newTestStore(t)
	p := memory.AddParams{Kind: "pattern", Title: "Retry", Content: "Retry  with   backoff", Project: "shop"}
	id1 := mustAdd(t, s, p)
	p.Content = "retry with backoff"
	id2 := mustAdd(t, s, p)
	if id1 != id2 {
		t.Fatalf("dedupe: id1=%d id2=%d, expected same ID", id1, id2)
	}
	e, err := s.Get(context.Background(), id1)
	if err != nil {
		t.Fatal(err)
	}
	if e.DuplicateCount != 2 {
		t.Errorf("DuplicateCount = %d, want 2", e.DuplicateCount)
	}
}

func TestAdd_Truncation(t *testing.T) {
	s := newTestStore(t)
	id := mustAdd(t, s, memory.AddParams{Title: "long", Content: strings.Repeat("x", 500)})
	e, err := s.Get(context.Background(), id)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasSuffix(e.Content, "... [truncated]") {
		t.Errorf("content not truncated: len=%d", len(e.Content))
	}
	if len(e.Content) != 200+len("... [truncated]") {
		t.Errorf("len = %d", len(e.Content))
	}
}

func TestAdd_TruncationKeepsRunes(t *testing.T) {
	s := newTestStore(t)
	// byte 200 falls inside a two-byte rune
	content := "x" + strings.Repeat("é", 300)
	id := mustAdd(t, s, memory.AddParams{Title: "accents", Content: content})
	e, err := s.Get(context.Background(), id)
	if err != nil {
		t.Fatal(err)
	}
	if !utf8.ValidString(e.Content) {
		t.Errorf("truncated content is not valid UTF-8: %q", e.Content)
	}
	if len(e.Content) != 199+len("... [truncated]") {
		t.Errorf("len = %d, want cut back to 199 bytes", len(e.Content))
	}
}

// ─── Get / Delete ───────────────────────────────────────────────────────────

func TestGet_NotFound(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.Get(context.Background(), 999); !errors.Is(err, memory.ErrNotFound) {
		t.Errorf("Get(999) err = %v, want ErrNotFound", err)
	}
}

func TestDelete(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	id := mustAdd(t, s, memory.AddParams{Title: "OAuth login", Content: "OAuth provider config"})

	if err := s.Delete(ctx, id); err != nil {
		t.Fatalf("Delete error: %v", err)
	}
	if _, err := s.Get(ctx, id); !errors.Is(err, memory.ErrNotFound) {
		t.Errorf("Get after delete err = %v", err)
	}
	res, err := s.Search(ctx, "oauth", memory.SearchOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if len(res) != 0 {
		t.Errorf("deleted entry still indexed: %d results", len(res))
	}
	if err := s.Delete(ctx, id); !errors.Is(err, memory.ErrNotFound) {
		t.Errorf("second Delete err = %v, want ErrNotFound", err)
	}
}

// ─── Recent ─────────────────────────────────────────────────────────────────

func TestRecent_FilterAndLimit(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	mustAdd(t, s, memory.AddParams{Title: "a1", Content: "one", Project: "a"})
	mustAdd(t, s, memory.AddParams{Title: "a2", Content: "two", Project: "a"})
	mustAdd(t, s, memory.AddParams{Title: "b1", Content: "three", Project: "b"})

	all, err := s.Recent(ctx, "", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 {
		t.Errorf("Recent all = %d, want 3", len(all))
	}

	onlyA, err := s.Recent(ctx, "a", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(onlyA) != 2 {
		t.Fatalf("Recent(a) = %d, want 2", len(onlyA))
	}
	if onlyA[0].Title != "a2" {
		t.Errorf("most recent first: got %q", onlyA[0].Title)
	}

	one, err := s.Recent(ctx, "", 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(one) != 1 {
		t.Errorf("limit ignored: %d", len(one))
	}
}

// ─── Search ─────────────────────────────────────────────────────────────────

func TestSearch(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	mustAdd(t, s, memory.AddParams{Kind: "decision", Title: "Login page uses OAuth", Content: "Google and GitHub providers", Project: "shop"})
	mustAdd(t, s, memory.AddParams{Kind: "pattern", Title: "Session cookies", Content: "HttpOnly cookies for login sessions", Project: "shop"})
	mustAdd(t, s, memory.AddParams{Kind: "decision", Title: "Billing", Content: "Stripe for payments", Project: "billing"})

	tests := []struct {
		name  string
		query string
		opts  memory.SearchOptions
		want  int
	}{
		{"single term", "login", memory.SearchOptions{}, 2},
		{"all terms required", "login oauth", memory.SearchOptions{}, 1},
		{"any term", "stripe oauth", memory.SearchOptions{MatchAny: true}, 2},
		{"project filter", "login", memory.SearchOptions{Project: "billing"}, 0},
		{"kind filter", "login", memory.SearchOptions{Kind: "pattern"}, 1},
		{"limit", "login", memory.SearchOptions{Limit: 1}, 1},
		{"fts syntax is quoted", `login" OR "billing`, memory.SearchOptions{MatchAny: true}, 3},
		{"no searchable terms", "  -- ** ", memory.SearchOptions{}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := s.Search(ctx, tt.query, tt.opts)
			if err != nil {
				t.Fatalf("Search error: %v", err)
			}
			if len(res) != tt.want {
				t.Errorf("Search(%q) = %d results, want %d", tt.query, len(res), tt.want)
			}
		})
	}
}

func TestSearch_RevisedEntryReindexed(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	mustAdd(t, s, memory.AddParams{Title: "run", Content: "postgres migration", TopicKey: "k"})
	mustAdd(t, s, memory.AddParams{Title: "run", Content: "redis cache", TopicKey: "k"})

	old, err := s.Search(ctx, "postgres", memory.SearchOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if len(old) != 0 {
		t.Errorf("stale content still indexed")
	}
	fresh, err := s.Search(ctx, "redis", memory.SearchOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if len(fresh) != 1 {
		t.Errorf("revised content not indexed: %d", len(fresh))
	}
}

// ─── Stats ──────────────────────────────────────────────────────────────────

func TestStats(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	mustAdd(t, s, memory.AddParams{Title: "a", Content: "a", Project: "zeta"})
	mustAdd(t, s, memory.AddParams{Title: "b", Content: "b", Project: "alpha"})
	mustAdd(t, s, memory.AddParams{Title: "c", Content: "c", Kind: "decision"})

	st, err := s.Stats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if st.TotalEntries != 3 {
		t.Errorf("TotalEntries = %d, want 3", st.TotalEntries)
	}
	if strings.Join(st.Projects, ",") != "alpha,zeta" {
		t.Errorf("Projects = %v", st.Projects)
	}
	if st.ByKind["note"] != 2 || st.ByKind["decision"] != 1 {
		t.Errorf("ByKind = %v", st.ByKind)
	}
}
