package tools

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/HendryAvila/smartflow/internal/bizctx"
	"github.com/HendryAvila/smartflow/internal/knowledge"
	"github.com/HendryAvila/smartflow/internal/orchestrator"
	"github.com/HendryAvila/smartflow/internal/runs"
)

// --- Helpers ---

// isErrorResult checks if a CallToolResult represents an error.
func isErrorResult(result *mcp.CallToolResult) bool {
	return result != nil && result.IsError
}

// getResultText extracts the text content from a CallToolResult.
func getResultText(result *mcp.CallToolResult) string {
	if result == nil || len(result.Content) == 0 {
		return ""
	}
	for _, c := range result.Content {
		if tc, ok := c.(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

func callTool(t *testing.T, handle func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error), args map[string]interface{}) *mcp.CallToolResult {
	t.Helper()
	req := mcp.CallToolRequest{}
	req.Params.Arguments = args
	result, err := handle(context.Background(), req)
	if err != nil {
		t.Fatalf("Handle failed: %v", err)
	}
	return result
}

func newEngine(t *testing.T, broker *bizctx.Broker, observers ...orchestrator.RunObserver) *orchestrator.Engine {
	t.Helper()
	e, err := orchestrator.NewEngine(orchestrator.Deps{Contexts: broker, Observers: observers}, orchestrator.Options{})
	if err != nil {
		t.Fatal(err)
	}
	return e
}

// --- OrchestrateTool ---

func TestOrchestrateTool_Definition(t *testing.T) {
	tool := NewOrchestrateTool(nil)
	def := tool.Definition()
	if def.Name != "smart_orchestrate" {
		t.Errorf("name = %q", def.Name)
	}
	for _, arg := range []string{"request", "workflow", "role", "quality_level", "cost_prevention", "project_id", "business_goals", "constraints"} {
		if _, ok := def.InputSchema.Properties[arg]; !ok {
			t.Errorf("missing argument %q", arg)
		}
	}
}

func TestOrchestrateTool_Success(t *testing.T) {
	broker := bizctx.NewBroker()
	tool := NewOrchestrateTool(newEngine(t, broker))

	result := callTool(t, tool.Handle, map[string]interface{}{
		"request":        "Create a login page",
		"workflow":       "feature",
		"project_id":     "acme",
		"business_goals": []interface{}{"Reduce support tickets", " "},
		"stakeholders":   []interface{}{"security"},
		"constraints":    map[string]interface{}{"deadline": "Q3"},
	})
	if isErrorResult(result) {
		t.Fatalf("unexpected error: %s", getResultText(result))
	}

	var res orchestrator.WorkflowResult
	if err := json.Unmarshal([]byte(getResultText(result)), &res); err != nil {
		t.Fatalf("result is not JSON: %v", err)
	}
	if !res.Success || res.ProjectID != "acme" || res.Workflow.Template != "feature" {
		t.Errorf("result = %+v", res)
	}

	snap, ok := broker.Snapshot("acme")
	if !ok {
		t.Fatal("context not created")
	}
	if len(snap.BusinessGoals) != 2 || snap.BusinessGoals[0] != "Reduce support tickets" {
		t.Errorf("goals = %v", snap.BusinessGoals)
	}
	if snap.Constraints["deadline"] != "Q3" {
		t.Errorf("constraints = %v", snap.Constraints)
	}
}

func TestOrchestrateTool_MissingRequest(t *testing.T) {
	tool := NewOrchestrateTool(newEngine(t, bizctx.NewBroker()))
	result := callTool(t, tool.Handle, map[string]interface{}{"workflow": "feature"})
	if !isErrorResult(result) {
		t.Error("should return error when request is missing")
	}

	var res orchestrator.WorkflowResult
	if err := json.Unmarshal([]byte(getResultText(result)), &res); err != nil {
		t.Fatalf("missing request should still return a WorkflowResult: %v", err)
	}
	if res.Success || res.ErrorKind != orchestrator.ErrorKindValidation {
		t.Errorf("success = %v, errorKind = %q", res.Success, res.ErrorKind)
	}
	if res.Error == "" || res.Timestamp == "" {
		t.Errorf("error = %q, timestamp = %q", res.Error, res.Timestamp)
	}
}

func TestOrchestrateTool_FailedRunIsError(t *testing.T) {
	broker := bizctx.NewBroker()
	tool := NewOrchestrateTool(newEngine(t, broker))

	result := callTool(t, tool.Handle, map[string]interface{}{
		"request":  "Create a login page",
		"workflow": "waterfall",
	})
	if !isErrorResult(result) {
		t.Fatal("unknown workflow should be an error result")
	}
	text := getResultText(result)
	if !strings.Contains(text, `"errorKind": "validation"`) {
		t.Errorf("error result should carry the workflow result JSON, got: %s", text)
	}
	if len(broker.Projects()) != 0 {
		t.Error("validation failure must not create a context")
	}
}

// --- ContextTool ---

func TestContextTool_Get(t *testing.T) {
	broker := bizctx.NewBroker()
	broker.GetOrCreate("acme")
	_, _ = broker.Merge("acme", bizctx.PartialBusinessContext{BusinessGoals: []string{"Grow"}})
	tool := NewContextTool(broker)

	result := callTool(t, tool.Handle, map[string]interface{}{"project_id": "acme"})
	if isErrorResult(result) {
		t.Fatalf("unexpected error: %s", getResultText(result))
	}
	var snap bizctx.BusinessContext
	if err := json.Unmarshal([]byte(getResultText(result)), &snap); err != nil {
		t.Fatal(err)
	}
	if snap.Version != 1 || len(snap.BusinessGoals) != 1 {
		t.Errorf("snapshot = %+v", snap)
	}
}

func TestContextTool_GetMissing(t *testing.T) {
	tool := NewContextTool(bizctx.NewBroker())
	result := callTool(t, tool.Handle, map[string]interface{}{"project_id": "ghost"})
	if !isErrorResult(result) {
		t.Error("missing project should be an error result")
	}
	if !strings.Contains(getResultText(result), "smart_orchestrate") {
		t.Errorf("text = %q", getResultText(result))
	}
}

func TestContextTool_ResetAndEvict(t *testing.T) {
	broker := bizctx.NewBroker()
	broker.GetOrCreate("acme")
	_, _ = broker.Merge("acme", bizctx.PartialBusinessContext{Requirements: []string{"R1"}})
	tool := NewContextTool(broker)

	result := callTool(t, tool.Handle, map[string]interface{}{"project_id": "acme", "action": "reset"})
	if isErrorResult(result) {
		t.Fatalf("reset failed: %s", getResultText(result))
	}
	snap, _ := broker.Snapshot("acme")
	if len(snap.Requirements) != 0 || snap.Version != 2 {
		t.Errorf("after reset = %+v", snap)
	}

	result = callTool(t, tool.Handle, map[string]interface{}{"project_id": "acme", "action": "evict"})
	if isErrorResult(result) {
		t.Fatalf("evict failed: %s", getResultText(result))
	}
	if _, ok := broker.Snapshot("acme"); ok {
		t.Error("context should be gone")
	}

	for _, action := range []string{"reset", "evict"} {
		result = callTool(t, tool.Handle, map[string]interface{}{"project_id": "acme", "action": action})
		if !isErrorResult(result) {
			t.Errorf("%s on missing project should be an error result", action)
		}
	}
}

func TestContextTool_Validation(t *testing.T) {
	tool := NewContextTool(bizctx.NewBroker())
	if !isErrorResult(callTool(t, tool.Handle, map[string]interface{}{})) {
		t.Error("missing project_id should be an error")
	}
	if !isErrorResult(callTool(t, tool.Handle, map[string]interface{}{"project_id": "p", "action": "drop"})) {
		t.Error("unknown action should be an error")
	}
}

// --- KnowledgeTool ---

type stubGatherer struct {
	last knowledge.Request
}

func (s *stubGatherer) Gather(_ context.Context, req knowledge.Request) knowledge.Result {
	s.last = req
	return knowledge.Result{
		Items: []knowledge.Item{{ID: "memory-1", Source: knowledge.SourceMemory, Title: "Login rollout notes", RelevanceScore: 0.8}},
		Sources: map[knowledge.Source]knowledge.SourceReport{
			knowledge.SourceMemory: {Source: knowledge.SourceMemory, Status: knowledge.StatusSuccess, Items: 1},
		},
	}
}

func TestKnowledgeTool_Gather(t *testing.T) {
	g := &stubGatherer{}
	tool := NewKnowledgeTool(g)

	result := callTool(t, tool.Handle, map[string]interface{}{
		"query":       "login",
		"project_id":  "acme",
		"domain":      "ux design",
		"sources":     []interface{}{"Memory", "context7"},
		"max_results": float64(5),
	})
	if isErrorResult(result) {
		t.Fatalf("unexpected error: %s", getResultText(result))
	}
	if g.last.BusinessRequest != "login" || g.last.ProjectID != "acme" || g.last.Domain != "ux design" || g.last.MaxResults != 5 {
		t.Errorf("request = %+v", g.last)
	}
	if len(g.last.Sources) != 2 || g.last.Sources[0] != knowledge.SourceMemory {
		t.Errorf("sources = %v", g.last.Sources)
	}

	var res knowledge.Result
	if err := json.Unmarshal([]byte(getResultText(result)), &res); err != nil {
		t.Fatal(err)
	}
	if len(res.Items) != 1 || res.Items[0].Title != "Login rollout notes" {
		t.Errorf("items = %+v", res.Items)
	}
}

func TestKnowledgeTool_Validation(t *testing.T) {
	tool := NewKnowledgeTool(&stubGatherer{})
	if !isErrorResult(callTool(t, tool.Handle, map[string]interface{}{"query": "  "})) {
		t.Error("blank query should be an error")
	}
	if !isErrorResult(callTool(t, tool.Handle, map[string]interface{}{"query": "x", "sources": []interface{}{"stackoverflow"}})) {
		t.Error("unknown source should be an error")
	}
}

// --- WorkflowStatusTool ---

func TestWorkflowStatusTool(t *testing.T) {
	store := runs.NewFileStore(t.TempDir(), nil)
	engine := newEngine(t, bizctx.NewBroker(), store)
	first := engine.Orchestrate(context.Background(), orchestrator.Request{Request: "Fix logout", Workflow: "bugfix"})
	engine.Orchestrate(context.Background(), orchestrator.Request{Request: "Add export", Workflow: "feature"})

	tool := NewWorkflowStatusTool(store)

	result := callTool(t, tool.Handle, map[string]interface{}{"orchestration_id": first.OrchestrationID})
	if isErrorResult(result) {
		t.Fatalf("unexpected error: %s", getResultText(result))
	}
	var got orchestrator.WorkflowResult
	if err := json.Unmarshal([]byte(getResultText(result)), &got); err != nil {
		t.Fatal(err)
	}
	if got.OrchestrationID != first.OrchestrationID || got.Workflow.Template != "bugfix" {
		t.Errorf("got = %+v", got)
	}

	result = callTool(t, tool.Handle, map[string]interface{}{"limit": float64(5)})
	var list struct {
		Runs []runs.Summary `json:"runs"`
	}
	if err := json.Unmarshal([]byte(getResultText(result)), &list); err != nil {
		t.Fatal(err)
	}
	if len(list.Runs) != 2 {
		t.Errorf("runs = %+v", list.Runs)
	}

	result = callTool(t, tool.Handle, map[string]interface{}{"orchestration_id": "nope"})
	if !isErrorResult(result) {
		t.Error("unknown run should be an error result")
	}
}
