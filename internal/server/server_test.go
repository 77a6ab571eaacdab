package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/HendryAvila/smartflow/internal/config"
	"github.com/HendryAvila/smartflow/internal/orchestrator"
)

// testConfig returns defaults rooted in a temp dir with every network
// source off.
func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.DataDir = t.TempDir()
	cfg.Knowledge.Context7.Enabled = false
	cfg.Knowledge.WebSearch.Enabled = false
	return &cfg
}

func newApp(t *testing.T, cfg *config.Config) *App {
	t.Helper()
	app, cleanup, err := New(cfg, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(cleanup)
	return app
}

// toolNames asks the MCP server for its tool list over JSON-RPC.
func toolNames(t *testing.T, s *mcpserver.MCPServer) map[string]bool {
	t.Helper()
	msg := s.HandleMessage(context.Background(), []byte(`{"jsonrpc":"2.0","id":1,"method":"tools/list"}`))
	raw, err := json.Marshal(msg)
	if err != nil {
		t.Fatal(err)
	}
	var resp struct {
		Result struct {
			Tools []struct {
				Name string `json:"name"`
			} `json:"tools"`
		} `json:"result"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		t.Fatalf("tools/list response: %v\n%s", err, raw)
	}
	names := make(map[string]bool, len(resp.Result.Tools))
	for _, tool := range resp.Result.Tools {
		names[tool.Name] = true
	}
	return names
}

func TestNew_RejectsBadConfig(t *testing.T) {
	if _, cleanup, err := New(nil, nil); err == nil {
		t.Error("nil config should fail")
	} else {
		cleanup()
	}

	cfg := testConfig(t)
	cfg.Knowledge.MaxResults = 0
	if _, _, err := New(cfg, nil); err == nil {
		t.Error("invalid config should fail")
	}

	cfg = testConfig(t)
	cfg.Orchestration.DefaultWorkflow = "waterfall"
	_, cleanup, err := New(cfg, nil)
	if err == nil || !strings.Contains(err.Error(), "orchestration engine") {
		t.Errorf("unknown default workflow: err = %v", err)
	}
	cleanup()
}

func TestNew_RegistersTools(t *testing.T) {
	app := newApp(t, testConfig(t))

	if app.Memory == nil {
		t.Fatal("memory should be enabled by default")
	}
	names := toolNames(t, app.MCP)
	for _, want := range []string{
		"smart_orchestrate", "smart_context", "smart_knowledge", "smart_workflow_status",
		"smart_memory_save", "smart_memory_search", "smart_memory_recent",
		"smart_memory_get", "smart_memory_delete", "smart_memory_stats",
	} {
		if !names[want] {
			t.Errorf("tool %q not registered", want)
		}
	}
	if len(names) != 10 {
		t.Errorf("expected 10 tools, got %d: %v", len(names), names)
	}
}

func TestNew_MemoryDisabled(t *testing.T) {
	cfg := testConfig(t)
	cfg.Knowledge.Memory.Enabled = false
	app := newApp(t, cfg)

	if app.Memory != nil {
		t.Error("memory store should not be opened")
	}
	names := toolNames(t, app.MCP)
	if names["smart_memory_save"] {
		t.Error("memory tools should not be registered without memory")
	}
	if !names["smart_orchestrate"] {
		t.Error("orchestration tools must not depend on memory")
	}
}

func TestNew_RunsAreRecorded(t *testing.T) {
	app := newApp(t, testConfig(t))
	ctx := context.Background()

	res := app.Engine.Orchestrate(ctx, orchestrator.Request{
		Request:        "Add CSV export",
		Workflow:       "feature",
		CostPrevention: true,
	})
	if !res.Success {
		t.Fatalf("run failed: %s", res.Error)
	}

	got, err := app.Runs.Get(res.OrchestrationID)
	if err != nil {
		t.Fatalf("run not saved: %v", err)
	}
	if got.ProjectID != res.ProjectID {
		t.Errorf("saved project = %q, want %q", got.ProjectID, res.ProjectID)
	}

	entries, err := app.Memory.Recent(ctx, res.ProjectID, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Kind != "orchestration" {
		t.Errorf("memory entries = %+v", entries)
	}
}

func TestNew_RecordRunsOff(t *testing.T) {
	cfg := testConfig(t)
	cfg.Orchestration.RecordRuns = false
	app := newApp(t, cfg)

	res := app.Engine.Orchestrate(context.Background(), orchestrator.Request{Request: "Fix logout", Workflow: "bugfix"})
	list, err := app.Runs.List(0)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 0 {
		t.Errorf("run %s should not be saved, list = %+v", res.OrchestrationID, list)
	}
}

func TestMetricsHandler(t *testing.T) {
	app := newApp(t, testConfig(t))
	app.Engine.Orchestrate(context.Background(), orchestrator.Request{Request: "Add CSV export", Workflow: "feature"})
	h := app.MetricsHandler()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("/metrics status = %d", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{
		`smartflow_orchestrations_total{status=`,
		`workflow="feature"`,
		"smartflow_context_merges_total",
		"go_goroutines",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("/metrics missing %q", want)
		}
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	var health healthResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &health); err != nil {
		t.Fatalf("/healthz: %v", err)
	}
	if health.Status != "healthy" || !health.Memory || health.Projects != 1 {
		t.Errorf("health = %+v", health)
	}
	if strings.Join(health.Sources, ",") != "context7,web_search,memory" {
		t.Errorf("sources = %v", health.Sources)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/healthz", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("POST /healthz status = %d", rec.Code)
	}
}

func TestMetricsServer_StartShutdown(t *testing.T) {
	app := newApp(t, testConfig(t))
	ms := NewMetricsServer("127.0.0.1:0", app.MetricsHandler(), nil)
	if err := ms.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer func() { _ = ms.Shutdown(context.Background()) }()

	resp, err := http.Get("http://" + ms.Addr() + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(body), `"status":"healthy"`) {
		t.Errorf("status %d body %s", resp.StatusCode, body)
	}
}

func TestServerInstructions(t *testing.T) {
	text := serverInstructions()
	for _, want := range []string{"smart_orchestrate", "cost_prevention", "smartflow://context/{projectId}", "workflow.status=failed"} {
		if !strings.Contains(text, want) {
			t.Errorf("instructions missing %q", want)
		}
	}
}
