package orchestrator

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/HendryAvila/smartflow/internal/logging"
	"github.com/HendryAvila/smartflow/internal/memory"
)

// MemoryRecorder saves a compact summary of every finished run to the
// memory store, so later runs can find it through the memory knowledge
// source. It upserts on topic key "orchestration/{project}/{workflow}":
// each project keeps one evolving entry per workflow.
type MemoryRecorder struct {
	store  *memory.Store
	logger *logging.Logger
}

// NewMemoryRecorder returns nil if store is nil. A nil recorder is a
// valid no-op RunObserver.
func NewMemoryRecorder(store *memory.Store, logger *logging.Logger) *MemoryRecorder {
	if store == nil {
		return nil
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &MemoryRecorder{store: store, logger: logger.Named("recorder")}
}

// OnRunComplete implements RunObserver.
//
// Best-effort: save failures are logged but never reach the caller,
// because the run itself already finished.
func (m *MemoryRecorder) OnRunComplete(ctx context.Context, res *WorkflowResult) {
	if m == nil || res == nil || res.ProjectID == "" {
		return
	}
	topicKey := fmt.Sprintf("orchestration/%s/%s", normalizeProject(res.ProjectID), res.Workflow.Template)
	title := fmt.Sprintf("Orchestration %s: %s", res.Workflow.Template, res.Workflow.Status)

	_, err := m.store.Add(ctx, memory.AddParams{
		Kind:     "orchestration",
		Title:    title,
		Content:  runSummary(res),
		Project:  res.ProjectID,
		Source:   "orchestrator",
		TopicKey: topicKey,
	})
	if err != nil {
		m.logger.Warn(ctx, "memory recorder: save run summary", zap.String("workflow", res.Workflow.Template), zap.Error(err))
	}
}

// runSummary renders the parts of a run worth finding later. The store
// truncates anything past its content limit.
func runSummary(res *WorkflowResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "**Run**: %s (%s)\n", res.OrchestrationID, res.Workflow.Status)
	if res.BusinessContext != nil && len(res.BusinessContext.BusinessGoals) > 0 {
		fmt.Fprintf(&b, "**Goals**: %s\n", strings.Join(res.BusinessContext.BusinessGoals, "; "))
	}
	b.WriteString("**Phases**:\n")
	for _, p := range res.Workflow.Phases {
		gate := string(p.Gate)
		if gate == "" {
			gate = "-"
		}
		fmt.Fprintf(&b, "- %s (%s): %s, gate %s\n", p.Name, p.Role, p.Status, gate)
	}
	if res.Error != "" {
		fmt.Fprintf(&b, "**Error**: %s\n", res.Error)
	}
	for _, w := range res.Warnings {
		fmt.Fprintf(&b, "**Warning**: %s\n", w)
	}
	return b.String()
}

// normalizeProject converts a project id to a lowercase slug suitable
// for use in topic_key paths (e.g. "My Project" → "my-project").
func normalizeProject(name string) string {
	s := strings.ToLower(strings.TrimSpace(name))
	s = strings.ReplaceAll(s, " ", "-")
	var b strings.Builder
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-' || r == '_' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
