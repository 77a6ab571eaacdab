package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/HendryAvila/smartflow/internal/orchestrator"
	sfserver "github.com/HendryAvila/smartflow/internal/server"
)

// writeConfig writes a config file rooted in a temp dir with network
// sources disabled and returns its path.
func writeConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := "data_dir: " + filepath.Join(dir, "data") + `
log:
  level: error
knowledge:
  context7:
    enabled: false
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestVersionCmd(t *testing.T) {
	out, err := execute(t, "version")
	if err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(out) != "smartflow v"+sfserver.Version {
		t.Errorf("output = %q", out)
	}
}

func TestOrchestrateCmd_Success(t *testing.T) {
	cfg := writeConfig(t)
	out, err := execute(t, "orchestrate", "--config", cfg,
		"--request", "Add CSV export",
		"--workflow", "feature",
		"--project-id", "acme",
		"--goal", "Reduce manual reporting",
	)
	if err != nil {
		t.Fatalf("orchestrate: %v\n%s", err, out)
	}

	var res orchestrator.WorkflowResult
	if err := json.Unmarshal([]byte(out), &res); err != nil {
		t.Fatalf("output is not a WorkflowResult: %v\n%s", err, out)
	}
	if !res.Success || res.ProjectID != "acme" || res.Workflow.Template != "feature" {
		t.Errorf("result = %+v", res)
	}
	if res.BusinessContext == nil || !slices.Contains(res.BusinessContext.BusinessGoals, "Reduce manual reporting") {
		t.Errorf("goal not seeded: %+v", res.BusinessContext)
	}
}

func TestOrchestrateCmd_FailedRunExitsNonZero(t *testing.T) {
	cfg := writeConfig(t)
	out, err := execute(t, "orchestrate", "--config", cfg,
		"--request", "Add CSV export",
		"--workflow", "waterfall",
	)
	if !errors.Is(err, errRunFailed) {
		t.Fatalf("err = %v, want errRunFailed", err)
	}
	if !strings.Contains(out, `"errorKind": "validation"`) {
		t.Errorf("failed result should still be printed, got: %s", out)
	}
}

func TestOrchestrateCmd_RequiresRequest(t *testing.T) {
	_, err := execute(t, "orchestrate", "--config", writeConfig(t))
	if err == nil || !strings.Contains(err.Error(), "--request") {
		t.Errorf("err = %v", err)
	}
}

func TestOrchestrateCmd_BadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("knowledge:\n  max_results: 0\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	_, err := execute(t, "orchestrate", "--config", path, "--request", "x")
	if err == nil || !strings.Contains(err.Error(), "max_results") {
		t.Errorf("err = %v", err)
	}
}

func TestOrchestrateOptions_ToRequest(t *testing.T) {
	o := &orchestrateOptions{request: "Fix logout", workflow: "bugfix"}
	if req := o.toRequest(); req.Context != nil {
		t.Errorf("no context flags should leave Context nil, got %+v", req.Context)
	}

	o.projectID = " acme "
	req := o.toRequest()
	if req.Context == nil || req.Context.ProjectID != "acme" {
		t.Errorf("context = %+v", req.Context)
	}
}
