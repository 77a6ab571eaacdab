package workflow

import (
	"fmt"
	"sort"
	"strings"
)

// Template names.
const (
	TemplateProject  = "project"
	TemplateFeature  = "feature"
	TemplateBugfix   = "bugfix"
	TemplateRefactor = "refactor"
)

// DefaultTemplate is used when a request names no workflow.
const DefaultTemplate = TemplateProject

// TaskSpec describes a task in a template.
type TaskSpec struct {
	Name string `yaml:"name" json:"name"`
	Kind string `yaml:"kind" json:"kind"`
}

// PhaseSpec describes a phase in a template.
type PhaseSpec struct {
	ID       string     `yaml:"id" json:"id"`
	Name     string     `yaml:"name" json:"name"`
	Role     Role       `yaml:"role" json:"role"`
	Blocking bool       `yaml:"blocking" json:"blocking"`
	Tasks    []TaskSpec `yaml:"tasks" json:"tasks"`
}

// Template is a fixed, ordered phase plan.
type Template struct {
	Name        string      `yaml:"name" json:"name"`
	Description string      `yaml:"description" json:"description"`
	Phases      []PhaseSpec `yaml:"phases" json:"phases"`
	FollowUp    string      `yaml:"follow_up" json:"followUp"`
}

// Registry holds the built-in templates keyed by lowercase name.
// A failed gate on a blocking phase fails the run.
var Registry = map[string]Template{
	TemplateProject: {
		Name:        TemplateProject,
		Description: "Greenfield project from idea to deployment",
		FollowUp:    "Schedule a post-launch review of the business goals",
		Phases: []PhaseSpec{
			{ID: "discovery", Name: "Discovery", Role: RoleProductStrategist, Tasks: []TaskSpec{
				{Name: "Capture business goals", Kind: "analysis"},
				{Name: "Map stakeholders", Kind: "analysis"},
			}},
			{ID: "design", Name: "Design", Role: RoleDesigner, Tasks: []TaskSpec{
				{Name: "User flows", Kind: "design"},
				{Name: "Architecture sketch", Kind: "design"},
			}},
			{ID: "scaffold", Name: "Scaffold", Role: RoleDeveloper, Blocking: true, Tasks: []TaskSpec{
				{Name: "Project scaffolding", Kind: "scaffolding"},
				{Name: "Initial code generation", Kind: "code-generation"},
			}},
			{ID: "quality", Name: "Quality", Role: RoleQAEngineer, Blocking: true, Tasks: []TaskSpec{
				{Name: "Test plan", Kind: "testing"},
				{Name: "Security review", Kind: "review"},
			}},
			{ID: "deployment", Name: "Deployment", Role: RoleOperationsEngineer, Tasks: []TaskSpec{
				{Name: "Deployment pipeline", Kind: "operations"},
				{Name: "Monitoring", Kind: "operations"},
			}},
		},
	},
	TemplateFeature: {
		Name:        TemplateFeature,
		Description: "New feature on an existing codebase",
		FollowUp:    "Measure feature adoption against the stated goals",
		Phases: []PhaseSpec{
			{ID: "analysis", Name: "Analysis", Role: RoleProductStrategist, Tasks: []TaskSpec{
				{Name: "Acceptance criteria", Kind: "analysis"},
			}},
			{ID: "implementation", Name: "Implementation", Role: RoleDeveloper, Blocking: true, Tasks: []TaskSpec{
				{Name: "Feature code generation", Kind: "code-generation"},
			}},
			{ID: "verification", Name: "Verification", Role: RoleQAEngineer, Blocking: true, Tasks: []TaskSpec{
				{Name: "Feature tests", Kind: "testing"},
			}},
		},
	},
	TemplateBugfix: {
		Name:        TemplateBugfix,
		Description: "Diagnose and fix a defect",
		FollowUp:    "Add a regression test to the permanent suite",
		Phases: []PhaseSpec{
			{ID: "triage", Name: "Triage", Role: RoleDeveloper, Tasks: []TaskSpec{
				{Name: "Reproduce the defect", Kind: "analysis"},
			}},
			{ID: "fix", Name: "Fix", Role: RoleDeveloper, Blocking: true, Tasks: []TaskSpec{
				{Name: "Patch", Kind: "code-generation"},
			}},
			{ID: "regression", Name: "Regression", Role: RoleQAEngineer, Blocking: true, Tasks: []TaskSpec{
				{Name: "Regression tests", Kind: "testing"},
			}},
		},
	},
	TemplateRefactor: {
		Name:        TemplateRefactor,
		Description: "Restructure code without changing behavior",
		FollowUp:    "Track maintainability metrics over the next iterations",
		Phases: []PhaseSpec{
			{ID: "scope", Name: "Scope", Role: RoleDeveloper, Tasks: []TaskSpec{
				{Name: "Define what changes and what does not", Kind: "analysis"},
			}},
			{ID: "restructure", Name: "Restructure", Role: RoleDeveloper, Blocking: true, Tasks: []TaskSpec{
				{Name: "Restructure modules", Kind: "code-generation"},
			}},
			{ID: "verification", Name: "Verification", Role: RoleQAEngineer, Tasks: []TaskSpec{
				{Name: "Behavior preservation tests", Kind: "testing"},
			}},
		},
	},
}

// TemplateNames returns the registered template names sorted.
func TemplateNames() []string {
	names := make([]string, 0, len(Registry))
	for n := range Registry {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Lookup resolves a template case-insensitively. An empty name resolves
// to DefaultTemplate.
func Lookup(name string) (Template, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" {
		key = DefaultTemplate
	}
	t, ok := Registry[key]
	if !ok {
		return Template{}, fmt.Errorf("unknown workflow %q: must be one of: %s", name, strings.Join(TemplateNames(), ", "))
	}
	return t, nil
}

// PlanOptions adjusts how a template becomes phases.
type PlanOptions struct {
	// Role, when set, overrides every phase's role.
	Role Role
	// StrictGates marks every phase blocking.
	StrictGates bool
}

// Plan builds fresh pending phases from the template. The registry is
// never mutated through the result.
func (t Template) Plan(opts PlanOptions) []Phase {
	phases := make([]Phase, len(t.Phases))
	for i, spec := range t.Phases {
		role := spec.Role
		if opts.Role != "" {
			role = opts.Role
		}
		tasks := make([]Task, len(spec.Tasks))
		for j, ts := range spec.Tasks {
			tasks[j] = Task{
				ID:     fmt.Sprintf("%s-%d", spec.ID, j+1),
				Name:   ts.Name,
				Kind:   ts.Kind,
				Status: "pending",
			}
		}
		phases[i] = Phase{
			ID:       spec.ID,
			Name:     spec.Name,
			Role:     role,
			Tasks:    tasks,
			Blocking: spec.Blocking || opts.StrictGates,
			Status:   PhasePending,
		}
	}
	return phases
}
