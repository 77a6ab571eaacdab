// Package workflow defines orchestration phases, the fixed workflow
// templates they are planned from, and the state machine that walks a
// run through them.
//
// Phases always execute strictly in template order; the state machine
// only ever moves forward.
package workflow

import (
	"fmt"
	"strings"
)

// --- Role enum ---

// Role is the persona that executes a phase.
type Role string

const (
	RoleDeveloper          Role = "developer"
	RoleDesigner           Role = "designer"
	RoleQAEngineer         Role = "qa-engineer"
	RoleOperationsEngineer Role = "operations-engineer"
	RoleProductStrategist  Role = "product-strategist"
)

// Roles lists every role in a stable order.
var Roles = []Role{
	RoleProductStrategist,
	RoleDesigner,
	RoleDeveloper,
	RoleQAEngineer,
	RoleOperationsEngineer,
}

// ParseRole resolves a role name case-insensitively.
func ParseRole(name string) (Role, error) {
	r := Role(strings.ToLower(strings.TrimSpace(name)))
	for _, known := range Roles {
		if r == known {
			return r, nil
		}
	}
	return "", fmt.Errorf("invalid role %q: must be one of: developer, designer, qa-engineer, operations-engineer, product-strategist", name)
}

// Domain is the knowledge domain a role searches in.
func (r Role) Domain() string {
	switch r {
	case RoleDeveloper:
		return "software development"
	case RoleDesigner:
		return "ux design"
	case RoleQAEngineer:
		return "software testing"
	case RoleOperationsEngineer:
		return "devops deployment"
	case RoleProductStrategist:
		return "product strategy"
	}
	return ""
}

// --- Status enums ---

// Status is the lifecycle state of a whole run.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// PhaseStatus is the lifecycle state of one phase.
type PhaseStatus string

const (
	PhasePending    PhaseStatus = "pending"
	PhaseInProgress PhaseStatus = "in_progress"
	PhaseCompleted  PhaseStatus = "completed"
	PhaseFailed     PhaseStatus = "failed"
)

// GateResult is the quality gate verdict for a phase.
type GateResult string

const (
	GatePass    GateResult = "pass"
	GateWarning GateResult = "warning"
	GateFail    GateResult = "fail"
)

// --- Core data structures ---

// Task is an opaque unit of work inside a phase. Its Kind tells the role
// executor which external tool it stands for (scaffolding, code
// generation, review, ...).
type Task struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Kind   string `json:"kind"`
	Status string `json:"status"` // pending | completed | skipped
}

// Phase is one role-specific step of a run.
type Phase struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Role        Role        `json:"role"`
	Tasks       []Task      `json:"tasks"`
	Blocking    bool        `json:"blocking"`
	Status      PhaseStatus `json:"status"`
	Gate        GateResult  `json:"gate,omitempty"`
	DurationMs  int64       `json:"durationMs"`
	StartedAt   string      `json:"startedAt,omitempty"`
	CompletedAt string      `json:"completedAt,omitempty"`
}

// State is the exclusively owned progress record of one run.
type State struct {
	OrchestrationID   string  `json:"orchestrationId"`
	Template          string  `json:"template"`
	Phases            []Phase `json:"phases"`
	CurrentPhaseIndex int     `json:"currentPhaseIndex"`
	Status            Status  `json:"status"`
	// BlockingFailures lists blocking phases whose gate failed.
	BlockingFailures []string `json:"blockingFailures,omitempty"`
	FailureReason    string   `json:"failureReason,omitempty"`
	StartedAt        string   `json:"startedAt,omitempty"`
	CompletedAt      string   `json:"completedAt,omitempty"`
}
