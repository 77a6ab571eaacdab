package quality

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HendryAvila/smartflow/internal/bizctx"
	"github.com/HendryAvila/smartflow/internal/workflow"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    Level
		wantErr bool
	}{
		{"", LevelStandard, false},
		{"basic", LevelBasic, false},
		{" High ", LevelHigh, false},
		{"ENTERPRISE", LevelEnterprise, false},
		{"gold", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCalculateScore(t *testing.T) {
	assert.Equal(t, 0, CalculateScore(nil))
	assert.Equal(t, 75, CalculateScore([]Dimension{
		{Weight: 1, Score: 100},
		{Weight: 1, Score: 50},
	}))
	assert.Equal(t, 80, CalculateScore([]Dimension{
		{Weight: 3, Score: 100},
		{Weight: 2, Score: 50},
	}))
}

func TestVerdict(t *testing.T) {
	tests := []struct {
		score int
		level Level
		want  workflow.GateResult
	}{
		{65, LevelStandard, workflow.GatePass},
		{64, LevelStandard, workflow.GateWarning},
		{50, LevelStandard, workflow.GateWarning},
		{49, LevelStandard, workflow.GateFail},
		{84, LevelEnterprise, workflow.GateWarning},
		{50, LevelBasic, workflow.GatePass},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Verdict(tt.score, tt.level), "score=%d level=%s", tt.score, tt.level)
	}
}

func TestDefaultEvaluator_WellDefinedPhasePasses(t *testing.T) {
	in := Input{
		Phase: workflow.Phase{Tasks: []workflow.Task{
			{Status: "completed"}, {Status: "completed"},
		}},
		Context: bizctx.BusinessContext{
			BusinessGoals: []string{"Create a login page"},
			Requirements:  []string{"OAuth"},
			Stakeholders:  []string{"developer"},
		},
		Level:          LevelEnterprise,
		KnowledgeItems: 0,
	}
	rep, err := DefaultEvaluator{}.Evaluate(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, workflow.GatePass, rep.Result)
	assert.Equal(t, 85, rep.Threshold)
	assert.Len(t, rep.Dimensions, 5)
	assert.GreaterOrEqual(t, rep.Score, 85)
}

func TestDefaultEvaluator_EmptyPhaseFails(t *testing.T) {
	in := Input{
		Phase: workflow.Phase{Tasks: []workflow.Task{
			{Status: "pending"}, {Status: "pending"},
		}},
		Level: LevelHigh,
	}
	rep, err := DefaultEvaluator{}.Evaluate(context.Background(), in)
	require.NoError(t, err)
	// (0*10 + 40*8 + 40*6 + 60*5 + 70*4) / 33 = 34
	assert.Equal(t, 34, rep.Score)
	assert.Equal(t, workflow.GateFail, rep.Result)
}

func TestEvaluatorFunc(t *testing.T) {
	var e Evaluator = EvaluatorFunc(func(context.Context, Input) (Report, error) {
		return Report{Result: workflow.GateWarning}, nil
	})
	rep, err := e.Evaluate(context.Background(), Input{})
	require.NoError(t, err)
	assert.Equal(t, workflow.GateWarning, rep.Result)
}

func TestDefaultValueEstimator(t *testing.T) {
	phases := []workflow.Phase{
		{Status: workflow.PhaseCompleted, Gate: workflow.GatePass},
		{Status: workflow.PhaseCompleted, Gate: workflow.GatePass, Blocking: true},
		{Status: workflow.PhaseCompleted, Gate: workflow.GateWarning, Blocking: true},
		{Status: workflow.PhasePending},
	}
	v := NewDefaultValueEstimator().Estimate(ValueInput{
		Phases:         phases,
		Level:          LevelStandard,
		KnowledgeItems: 4,
	})

	assert.Equal(t, 4*150.0+2*500.0, v.CostPrevention)
	assert.Equal(t, 12.0, v.TimeSaved)
	assert.Equal(t, 25.0, v.QualityImprovement)
	assert.Equal(t, 50.0, v.RiskReduction)
}

func TestDefaultValueEstimator_NoPhases(t *testing.T) {
	v := NewDefaultValueEstimator().Estimate(ValueInput{Level: LevelHigh})
	assert.Equal(t, BusinessValue{}, v)
}
