package quality

import (
	"math"

	"github.com/HendryAvila/smartflow/internal/workflow"
)

// BusinessValue is the estimated payoff of a run.
type BusinessValue struct {
	CostPrevention     float64 `json:"costPrevention"`     // USD
	TimeSaved          float64 `json:"timeSaved"`          // hours
	QualityImprovement float64 `json:"qualityImprovement"` // percent
	RiskReduction      float64 `json:"riskReduction"`      // percent
}

// ValueInput summarizes a finished run for estimation.
type ValueInput struct {
	Phases         []workflow.Phase
	Level          Level
	KnowledgeItems int
}

// ValueEstimator turns a run summary into a business value estimate.
type ValueEstimator interface {
	Estimate(in ValueInput) BusinessValue
}

// DefaultValueEstimator derives value from gate outcomes and knowledge use.
type DefaultValueEstimator struct {
	// HoursPerPhase is the manual effort a completed phase replaces.
	HoursPerPhase float64
	// CostPerKnowledgeItem is the rework one supporting item avoids.
	CostPerKnowledgeItem float64
	// CostPerPassedGate is the rework one passing gate avoids.
	CostPerPassedGate float64
}

// NewDefaultValueEstimator returns the estimator with its standard rates.
func NewDefaultValueEstimator() DefaultValueEstimator {
	return DefaultValueEstimator{
		HoursPerPhase:        4,
		CostPerKnowledgeItem: 150,
		CostPerPassedGate:    500,
	}
}

var levelFactor = map[Level]float64{
	LevelBasic:      0.8,
	LevelStandard:   1.0,
	LevelHigh:       1.2,
	LevelEnterprise: 1.5,
}

// Estimate implements ValueEstimator.
func (e DefaultValueEstimator) Estimate(in ValueInput) BusinessValue {
	factor, ok := levelFactor[in.Level]
	if !ok {
		factor = 1.0
	}

	var completed, passed, blocking, blockingPassed int
	for _, p := range in.Phases {
		if p.Status == workflow.PhaseCompleted {
			completed++
		}
		if p.Gate == workflow.GatePass {
			passed++
		}
		if p.Blocking {
			blocking++
			if p.Gate == workflow.GatePass {
				blockingPassed++
			}
		}
	}

	v := BusinessValue{
		CostPrevention: round2(float64(in.KnowledgeItems)*e.CostPerKnowledgeItem + float64(passed)*e.CostPerPassedGate*factor),
		TimeSaved:      round2(float64(completed) * e.HoursPerPhase * factor),
	}
	if n := len(in.Phases); n > 0 {
		v.QualityImprovement = round2(math.Min(100, float64(passed)/float64(n)*100*factor*0.5))
	}
	if blocking > 0 {
		v.RiskReduction = round2(float64(blockingPassed) / float64(blocking) * 100)
	}
	return v
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}
