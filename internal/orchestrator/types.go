// Package orchestrator drives a business request through the phases of a
// workflow template. Each phase gathers knowledge, runs its role
// executor, merges the outcome into the shared business context and
// passes a quality gate before the next phase may start.
package orchestrator

import (
	"errors"
	"fmt"
	"time"

	"github.com/HendryAvila/smartflow/internal/bizctx"
	"github.com/HendryAvila/smartflow/internal/knowledge"
	"github.com/HendryAvila/smartflow/internal/quality"
	"github.com/HendryAvila/smartflow/internal/workflow"
)

// Request is one orchestration call.
type Request struct {
	Request        string                         `json:"request"`
	Workflow       string                         `json:"workflow,omitempty"`
	Role           string                         `json:"role,omitempty"`
	QualityLevel   string                         `json:"qualityLevel,omitempty"`
	CostPrevention bool                           `json:"costPrevention,omitempty"`
	Context        *bizctx.PartialBusinessContext `json:"businessContext,omitempty"`
}

// WorkflowSummary is the run state as reported to callers.
type WorkflowSummary struct {
	Template          string           `json:"template"`
	Phases            []workflow.Phase `json:"phases"`
	Status            workflow.Status  `json:"status"`
	CurrentPhaseIndex int              `json:"currentPhaseIndex"`
}

// TechnicalMetrics are the timing and accuracy figures of a run.
type TechnicalMetrics struct {
	ResponseTimeMs              int64   `json:"responseTime"`
	OrchestrationTimeMs         int64   `json:"orchestrationTime"`
	RoleTransitionTimeMs        int64   `json:"roleTransitionTime"`
	ContextPreservationAccuracy float64 `json:"contextPreservationAccuracy"`
	BusinessAlignmentScore      float64 `json:"businessAlignmentScore"`
	MergeCount                  int     `json:"mergeCount"`
	KnowledgeItems              int     `json:"knowledgeItems"`
}

// NextStep is a suggested follow-up action.
type NextStep struct {
	Step          string        `json:"step"`
	Role          workflow.Role `json:"role"`
	EstimatedTime string        `json:"estimatedTime"`
	Priority      string        `json:"priority"` // high | medium | low
}

// ExternalIntegration summarizes how the knowledge sources behaved over
// the whole run.
type ExternalIntegration struct {
	Context7Status    knowledge.Status `json:"context7Status"`
	WebSearchStatus   knowledge.Status `json:"webSearchStatus"`
	MemoryStatus      knowledge.Status `json:"memoryStatus"`
	IntegrationTimeMs int64            `json:"integrationTime"`
}

// WorkflowResult is the structured outcome of Orchestrate. Failures are
// reported here, never as a Go error.
type WorkflowResult struct {
	Success             bool                    `json:"success"`
	OrchestrationID     string                  `json:"orchestrationId"`
	ProjectID           string                  `json:"projectId,omitempty"`
	Workflow            WorkflowSummary         `json:"workflow"`
	BusinessContext     *bizctx.BusinessContext `json:"businessContext,omitempty"`
	BusinessValue       quality.BusinessValue   `json:"businessValue"`
	TechnicalMetrics    TechnicalMetrics        `json:"technicalMetrics"`
	NextSteps           []NextStep              `json:"nextSteps"`
	Warnings            []string                `json:"warnings"`
	ExternalIntegration ExternalIntegration     `json:"externalIntegration"`
	Error               string                  `json:"error,omitempty"`
	ErrorKind           string                  `json:"errorKind,omitempty"`
	Timestamp           string                  `json:"timestamp"`

	// Err is the typed failure, for in-process callers.
	Err error `json:"-"`
}

// Error kinds reported in WorkflowResult.ErrorKind.
const (
	ErrorKindValidation = "validation"
	ErrorKindNotFound   = "not_found"
	ErrorKindTimeout    = "timeout"
	ErrorKindCanceled   = "canceled"
)

// ValidationError rejects a request before any context is touched.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// OrchestrationTimeoutError reports a run that exceeded its deadline.
type OrchestrationTimeoutError struct {
	Deadline time.Duration
	Phase    string
}

func (e *OrchestrationTimeoutError) Error() string {
	if e.Deadline <= 0 {
		return fmt.Sprintf("orchestration deadline exceeded during phase %q", e.Phase)
	}
	if e.Phase == "" {
		return fmt.Sprintf("orchestration exceeded deadline of %s", e.Deadline)
	}
	return fmt.Sprintf("orchestration exceeded deadline of %s during phase %q", e.Deadline, e.Phase)
}

// errorKind classifies a fatal run error.
func errorKind(err error) string {
	var (
		verr *ValidationError
		nerr *bizctx.NotFoundError
		terr *OrchestrationTimeoutError
	)
	switch {
	case errors.As(err, &verr):
		return ErrorKindValidation
	case errors.As(err, &nerr):
		return ErrorKindNotFound
	case errors.As(err, &terr):
		return ErrorKindTimeout
	default:
		return ErrorKindCanceled
	}
}
