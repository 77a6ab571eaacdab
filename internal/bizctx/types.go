// Package bizctx holds the business context broker: the versioned,
// per-project store of goals, requirements, stakeholders and constraints
// shared by every phase of every orchestration run.
//
// The Broker is the single writer. Callers only ever receive copies and
// route changes back through Merge.
package bizctx

import (
	"fmt"
	"maps"
	"slices"
	"time"
)

// timeNow is a package-level variable for testability.
var timeNow = time.Now

// BusinessContext is the accumulated business knowledge for one project.
type BusinessContext struct {
	ProjectID     string         `json:"projectId"`
	BusinessGoals []string       `json:"businessGoals"`
	Requirements  []string       `json:"requirements"`
	Stakeholders  []string       `json:"stakeholders"`
	Constraints   map[string]any `json:"constraints"`
	Version       int            `json:"version"`
	CreatedAt     string         `json:"createdAt"`
	UpdatedAt     string         `json:"updatedAt"`
}

// PartialBusinessContext is the input to Merge. Every field is optional.
type PartialBusinessContext struct {
	ProjectID     string         `json:"projectId,omitempty"`
	BusinessGoals []string       `json:"businessGoals,omitempty"`
	Requirements  []string       `json:"requirements,omitempty"`
	Stakeholders  []string       `json:"stakeholders,omitempty"`
	Constraints   map[string]any `json:"constraints,omitempty"`
}

// IsEmpty reports whether merging p would add nothing.
func (p PartialBusinessContext) IsEmpty() bool {
	return len(p.BusinessGoals) == 0 && len(p.Requirements) == 0 &&
		len(p.Stakeholders) == 0 && len(p.Constraints) == 0
}

// MergeReport is the outcome of one merge.
type MergeReport struct {
	Context BusinessContext `json:"context"`
	// Conflicts lists constraint keys whose previous value was replaced
	// by a different one.
	Conflicts []string `json:"conflicts,omitempty"`
}

// NotFoundError is returned when a project has no live context.
type NotFoundError struct {
	ProjectID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("business context for project %q not found", e.ProjectID)
}

func newContext(projectID string) *BusinessContext {
	now := timeNow().UTC().Format(time.RFC3339)
	return &BusinessContext{
		ProjectID:     projectID,
		BusinessGoals: []string{},
		Requirements:  []string{},
		Stakeholders:  []string{},
		Constraints:   map[string]any{},
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// clone returns a deep copy so callers can never reach the stored value.
func (c *BusinessContext) clone() BusinessContext {
	out := *c
	out.BusinessGoals = slices.Clone(c.BusinessGoals)
	out.Requirements = slices.Clone(c.Requirements)
	out.Stakeholders = slices.Clone(c.Stakeholders)
	out.Constraints = make(map[string]any, len(c.Constraints))
	for k, v := range c.Constraints {
		out.Constraints[k] = deepCopy(v)
	}
	return out
}

// apply merges p into c in place and returns the overwritten keys whose
// value changed.
func (c *BusinessContext) apply(p PartialBusinessContext) []string {
	c.BusinessGoals = union(c.BusinessGoals, p.BusinessGoals)
	c.Requirements = union(c.Requirements, p.Requirements)
	c.Stakeholders = union(c.Stakeholders, p.Stakeholders)
	slices.Sort(c.Stakeholders)

	var conflicts []string
	for _, k := range slices.Sorted(maps.Keys(p.Constraints)) {
		incoming := deepCopy(p.Constraints[k])
		existing, ok := c.Constraints[k]
		if ok && !equalValues(existing, incoming) {
			conflicts = append(conflicts, k)
		}
		c.Constraints[k] = deepMerge(existing, incoming)
	}

	c.Version++
	c.UpdatedAt = timeNow().UTC().Format(time.RFC3339)
	return conflicts
}
