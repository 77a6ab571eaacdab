// Package quality holds the replaceable scoring strategies the
// orchestration engine consults: the per-phase quality gate and the
// business value estimate of a finished run.
//
// The default strategies are deterministic weighted scores. They exist so
// the state machine has a verdict to act on, and can be swapped for real
// analysis without touching the engine.
package quality

import (
	"context"
	"fmt"
	"strings"

	"github.com/HendryAvila/smartflow/internal/bizctx"
	"github.com/HendryAvila/smartflow/internal/workflow"
)

// --- Quality levels ---

// Level sets how demanding the quality gate is.
type Level string

const (
	LevelBasic      Level = "basic"
	LevelStandard   Level = "standard"
	LevelHigh       Level = "high"
	LevelEnterprise Level = "enterprise"
)

// DefaultLevel applies when a request names no level.
const DefaultLevel = LevelStandard

// thresholds is the minimum passing score per level.
var thresholds = map[Level]int{
	LevelBasic:      50,
	LevelStandard:   65,
	LevelHigh:       75,
	LevelEnterprise: 85,
}

// warningMargin is how far below the threshold a score still only warns.
const warningMargin = 15

// ParseLevel resolves a level case-insensitively; empty means DefaultLevel.
func ParseLevel(name string) (Level, error) {
	l := Level(strings.ToLower(strings.TrimSpace(name)))
	if l == "" {
		return DefaultLevel, nil
	}
	if _, ok := thresholds[l]; !ok {
		return "", fmt.Errorf("invalid quality level %q: must be one of: basic, standard, high, enterprise", name)
	}
	return l, nil
}

// Threshold returns the minimum passing score for the level.
func (l Level) Threshold() int {
	if t, ok := thresholds[l]; ok {
		return t
	}
	return thresholds[DefaultLevel]
}

// --- Dimensions ---

// Dimension is one weighted axis of a gate score.
type Dimension struct {
	Name   string `json:"name"`
	Weight int    `json:"weight"` // relative importance (1-10)
	Score  int    `json:"score"`  // 0-100
}

// CalculateScore computes the weighted overall score from dimensions.
func CalculateScore(dimensions []Dimension) int {
	totalWeight := 0
	weightedSum := 0
	for _, d := range dimensions {
		totalWeight += d.Weight
		weightedSum += d.Score * d.Weight
	}
	if totalWeight == 0 {
		return 0
	}
	return weightedSum / totalWeight
}

// Verdict maps a score to a gate result for the level.
func Verdict(score int, level Level) workflow.GateResult {
	t := level.Threshold()
	switch {
	case score >= t:
		return workflow.GatePass
	case score >= t-warningMargin:
		return workflow.GateWarning
	default:
		return workflow.GateFail
	}
}

// --- Evaluator strategy ---

// Input is everything a gate may look at after a phase ran.
type Input struct {
	Phase          workflow.Phase
	Context        bizctx.BusinessContext
	Level          Level
	KnowledgeItems int
}

// Report is a gate verdict with its reasoning.
type Report struct {
	Result     workflow.GateResult `json:"result"`
	Score      int                 `json:"score"`
	Threshold  int                 `json:"threshold"`
	Dimensions []Dimension         `json:"dimensions"`
}

// Evaluator produces the quality gate verdict for a phase.
type Evaluator interface {
	Evaluate(ctx context.Context, in Input) (Report, error)
}

// EvaluatorFunc adapts a function to Evaluator.
type EvaluatorFunc func(ctx context.Context, in Input) (Report, error)

func (f EvaluatorFunc) Evaluate(ctx context.Context, in Input) (Report, error) {
	return f(ctx, in)
}

// DefaultEvaluator scores a phase on task completion and how well the
// business context is defined.
type DefaultEvaluator struct{}

// Evaluate implements Evaluator.
func (DefaultEvaluator) Evaluate(_ context.Context, in Input) (Report, error) {
	dims := []Dimension{
		{Name: "task_completion", Weight: 10, Score: taskCompletion(in.Phase.Tasks)},
		{Name: "goal_coverage", Weight: 8, Score: presence(len(in.Context.BusinessGoals), 40)},
		{Name: "requirements_defined", Weight: 6, Score: min(100, 40+20*len(in.Context.Requirements))},
		{Name: "stakeholder_alignment", Weight: 5, Score: presence(len(in.Context.Stakeholders), 60)},
		{Name: "knowledge_support", Weight: 4, Score: presence(in.KnowledgeItems, 70)},
	}
	score := CalculateScore(dims)
	return Report{
		Result:     Verdict(score, in.Level),
		Score:      score,
		Threshold:  in.Level.Threshold(),
		Dimensions: dims,
	}, nil
}

func taskCompletion(tasks []workflow.Task) int {
	if len(tasks) == 0 {
		return 100
	}
	done := 0
	for _, t := range tasks {
		if t.Status == "completed" {
			done++
		}
	}
	return done * 100 / len(tasks)
}

// presence scores 100 when n > 0, otherwise the floor.
func presence(n, floor int) int {
	if n > 0 {
		return 100
	}
	return floor
}
