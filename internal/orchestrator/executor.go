package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/HendryAvila/smartflow/internal/bizctx"
	"github.com/HendryAvila/smartflow/internal/knowledge"
	"github.com/HendryAvila/smartflow/internal/workflow"
)

// ExecInput is what a role executor sees. Context is a snapshot; changes
// go back through ExecOutput.Partial.
type ExecInput struct {
	OrchestrationID string
	Request         string
	Phase           workflow.Phase
	Context         bizctx.BusinessContext
	Knowledge       []knowledge.Item
}

// ExecOutput is a role executor's contribution to the run.
type ExecOutput struct {
	// Tasks carries updated statuses, matched to the phase by ID.
	Tasks   []workflow.Task
	Partial bizctx.PartialBusinessContext
	Notes   []string
}

// RoleExecutor performs the work of one phase for a role.
type RoleExecutor interface {
	Execute(ctx context.Context, in ExecInput) (ExecOutput, error)
}

// RoleExecutorFunc adapts a function to RoleExecutor.
type RoleExecutorFunc func(ctx context.Context, in ExecInput) (ExecOutput, error)

func (f RoleExecutorFunc) Execute(ctx context.Context, in ExecInput) (ExecOutput, error) {
	return f(ctx, in)
}

// TaskRunner performs one opaque phase task, such as project scaffolding
// or code generation, and returns a short artifact summary.
type TaskRunner interface {
	RunTask(ctx context.Context, task workflow.Task, in ExecInput) (string, error)
}

// PlanRunner is the built-in TaskRunner. It produces a plan line per task
// instead of calling external tools.
type PlanRunner struct{}

// RunTask implements TaskRunner.
func (PlanRunner) RunTask(ctx context.Context, task workflow.Task, in ExecInput) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return fmt.Sprintf("%s: %s for %q", task.Kind, task.Name, truncate(in.Request, 80)), nil
}

// roleFocus is the requirement each role adds to the shared context.
var roleFocus = map[workflow.Role]string{
	workflow.RoleProductStrategist:  "Business goals are measurable",
	workflow.RoleDesigner:           "User flows cover the primary journey",
	workflow.RoleDeveloper:          "Code follows project conventions",
	workflow.RoleQAEngineer:         "Critical paths are covered by tests",
	workflow.RoleOperationsEngineer: "Deployment is repeatable and monitored",
}

// roleExecutor runs every task of a phase through a TaskRunner and
// reports the role's focus requirement and produced artifacts.
type roleExecutor struct {
	role   workflow.Role
	runner TaskRunner
}

// NewRoleExecutor creates the standard executor for a role.
func NewRoleExecutor(role workflow.Role, runner TaskRunner) RoleExecutor {
	if runner == nil {
		runner = PlanRunner{}
	}
	return &roleExecutor{role: role, runner: runner}
}

// DefaultExecutors returns one standard executor per role.
func DefaultExecutors(runner TaskRunner) map[workflow.Role]RoleExecutor {
	out := make(map[workflow.Role]RoleExecutor, len(workflow.Roles))
	for _, r := range workflow.Roles {
		out[r] = NewRoleExecutor(r, runner)
	}
	return out
}

func (e *roleExecutor) Execute(ctx context.Context, in ExecInput) (ExecOutput, error) {
	out := ExecOutput{Tasks: make([]workflow.Task, 0, len(in.Phase.Tasks))}
	var artifacts []string
	for _, task := range in.Phase.Tasks {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		summary, err := e.runner.RunTask(ctx, task, in)
		if err != nil {
			if ctx.Err() != nil {
				return out, ctx.Err()
			}
			task.Status = "failed"
			out.Notes = append(out.Notes, fmt.Sprintf("task %s failed: %v", task.ID, err))
		} else {
			task.Status = "completed"
			artifacts = append(artifacts, summary)
		}
		out.Tasks = append(out.Tasks, task)
	}

	out.Partial.Stakeholders = []string{string(e.role)}
	if focus, ok := roleFocus[e.role]; ok {
		out.Partial.Requirements = []string{focus}
	}
	if len(artifacts) > 0 {
		out.Partial.Constraints = map[string]any{
			"artifacts." + in.Phase.ID: artifacts,
		}
	}
	return out, nil
}

// truncate cuts s to at most max bytes without splitting a rune.
func truncate(s string, max int) string {
	s = strings.TrimSpace(s)
	if len(s) <= max {
		return s
	}
	for max > 0 && !utf8.RuneStart(s[max]) {
		max--
	}
	return s[:max] + "..."
}
