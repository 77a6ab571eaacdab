package workflow

import (
	"fmt"
	"time"
)

// timeNow is a package-level variable for testability.
var timeNow = time.Now

func now() string {
	return timeNow().UTC().Format(time.RFC3339)
}

// NewState creates a pending run over the given phases.
func NewState(orchestrationID, template string, phases []Phase) *State {
	return &State{
		OrchestrationID: orchestrationID,
		Template:        template,
		Phases:          phases,
		Status:          StatusPending,
	}
}

// CurrentPhase returns the phase at CurrentPhaseIndex, or nil when the
// index is past the last phase.
func CurrentPhase(s *State) *Phase {
	if s.CurrentPhaseIndex < 0 || s.CurrentPhaseIndex >= len(s.Phases) {
		return nil
	}
	return &s.Phases[s.CurrentPhaseIndex]
}

// Start moves a pending run to in_progress and starts its first phase.
// A run with no phases completes immediately.
func Start(s *State) error {
	if s.Status != StatusPending {
		return fmt.Errorf("run %q cannot start (status: %s)", s.OrchestrationID, s.Status)
	}
	ts := now()
	s.Status = StatusInProgress
	s.StartedAt = ts
	s.CurrentPhaseIndex = 0
	if len(s.Phases) == 0 {
		s.Status = StatusCompleted
		s.CompletedAt = ts
		return nil
	}
	s.Phases[0].Status = PhaseInProgress
	s.Phases[0].StartedAt = ts
	return nil
}

// canFinishPhase checks that a phase is currently running.
func canFinishPhase(s *State) error {
	if s.Status != StatusInProgress {
		return fmt.Errorf("run %q is not in progress (status: %s)", s.OrchestrationID, s.Status)
	}
	if CurrentPhase(s) == nil {
		return fmt.Errorf("run %q has no current phase", s.OrchestrationID)
	}
	return nil
}

// CompletePhase records the gate verdict for the current phase, marks it
// completed and starts the next one. Advancing past the last phase
// finishes the run.
func CompletePhase(s *State, gate GateResult, d time.Duration) error {
	if err := canFinishPhase(s); err != nil {
		return err
	}
	ts := now()
	p := CurrentPhase(s)
	p.Status = PhaseCompleted
	p.Gate = gate
	p.DurationMs = d.Milliseconds()
	p.CompletedAt = ts

	advance(s, ts)
	return nil
}

// advance starts the next phase, or finishes the run after the last one.
func advance(s *State, ts string) {
	s.CurrentPhaseIndex++
	if next := CurrentPhase(s); next != nil {
		next.Status = PhaseInProgress
		next.StartedAt = ts
		return
	}
	s.Status = StatusCompleted
	if len(s.BlockingFailures) > 0 {
		s.Status = StatusFailed
	}
	s.CompletedAt = ts
}

// FailPhase marks the current phase failed and flags the run. Later
// phases still run; the run ends failed instead of completed.
func FailPhase(s *State, gate GateResult, d time.Duration, reason string) error {
	if err := canFinishPhase(s); err != nil {
		return err
	}
	ts := now()
	p := CurrentPhase(s)
	p.Status = PhaseFailed
	p.Gate = gate
	p.DurationMs = d.Milliseconds()
	p.CompletedAt = ts
	s.BlockingFailures = append(s.BlockingFailures, p.ID)
	if s.FailureReason == "" {
		s.FailureReason = reason
	}
	advance(s, ts)
	return nil
}

// Abort fails the run from outside the gate flow, e.g. on a deadline or
// a lost context. A running phase is marked failed. Finished runs are
// left untouched.
func Abort(s *State, reason string) {
	if s.Status == StatusCompleted || s.Status == StatusFailed {
		return
	}
	ts := now()
	if p := CurrentPhase(s); p != nil && p.Status == PhaseInProgress {
		p.Status = PhaseFailed
		p.CompletedAt = ts
	}
	s.Status = StatusFailed
	s.FailureReason = reason
	s.CompletedAt = ts
}

// Overrun fails a run whose phases all finished after its deadline. Phase
// records are kept as they ended.
func Overrun(s *State, reason string) {
	if s.Status != StatusCompleted {
		return
	}
	s.Status = StatusFailed
	s.FailureReason = reason
	s.CompletedAt = now()
}
