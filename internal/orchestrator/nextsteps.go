package orchestrator

import (
	"fmt"

	"github.com/HendryAvila/smartflow/internal/workflow"
)

// estimatedTime is the rough effort quoted for revisiting a phase, per role.
var estimatedTime = map[workflow.Role]string{
	workflow.RoleProductStrategist:  "1h",
	workflow.RoleDesigner:           "2h",
	workflow.RoleDeveloper:          "4h",
	workflow.RoleQAEngineer:         "2h",
	workflow.RoleOperationsEngineer: "2h",
}

func effort(r workflow.Role) string {
	if t, ok := estimatedTime[r]; ok {
		return t
	}
	return "2h"
}

// phaseStep suggests revisiting a phase whose gate did not pass.
func phaseStep(p *workflow.Phase, gate workflow.GateResult) NextStep {
	priority := "medium"
	verb := "Review"
	switch {
	case gate == workflow.GateFail && p.Blocking:
		priority = "high"
		verb = "Rework"
	case gate == workflow.GateWarning:
		priority = "low"
	}
	return NextStep{
		Step:          fmt.Sprintf("%s the %s phase (%s gate)", verb, p.Name, gate),
		Role:          p.Role,
		EstimatedTime: effort(p.Role),
		Priority:      priority,
	}
}

// followUpStep is the template's suggestion once a run completed. It is
// owned by the role of the last phase.
func followUpStep(t workflow.Template, phases []workflow.Phase) (NextStep, bool) {
	if t.FollowUp == "" || len(phases) == 0 {
		return NextStep{}, false
	}
	last := phases[len(phases)-1].Role
	return NextStep{
		Step:          t.FollowUp,
		Role:          last,
		EstimatedTime: effort(last),
		Priority:      "medium",
	}, true
}
