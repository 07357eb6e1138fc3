package playback

import (
	"fmt"

	"github.com/corptrain/playback/internal/models"
)

// ConditionKind names a precondition of the continue affordance
type ConditionKind string

const (
	ConditionWatchPercentage    ConditionKind = "watch_percentage"
	ConditionCertification      ConditionKind = "certification"
	ConditionExternalCompletion ConditionKind = "external_completion"
)

// Condition is one requirement that must hold before a learner may continue
type Condition struct {
	Kind          ConditionKind `json:"kind"`
	MinPercentage float64       `json:"minPercentage,omitempty"`
}

// String describes the condition for user-facing messages
func (c Condition) String() string {
	switch c.Kind {
	case ConditionWatchPercentage:
		return fmt.Sprintf("watch at least %.0f%%", c.MinPercentage)
	case ConditionCertification:
		return "confirm the certification checkbox"
	case ConditionExternalCompletion:
		return "finish the interactive package"
	default:
		return string(c.Kind)
	}
}

// GateState is the live stage state a gate is evaluated against
type GateState struct {
	Percentage    float64 `json:"percentage"`
	Completed     bool    `json:"completed"`
	Certified     bool    `json:"certified"`
	MediaFallback bool    `json:"mediaFallback"`
	TestingMode   bool    `json:"testingMode"`
}

// Gate withholds the continue affordance until every condition holds.
//
// A gate holds no state; it is re-evaluated from the owning stage's live values.
type Gate struct {
	allowTestingMode bool
}

// NewGate creates a gate. The testing-mode override is honoured only when allowTestingMode
// is true, which callers must restrict to non-production environments.
func NewGate(allowTestingMode bool) Gate {
	return Gate{allowTestingMode: allowTestingMode}
}

// TestingModeAllowed reports whether the testing-mode override is honoured
func (g Gate) TestingModeAllowed() bool {
	return g.allowTestingMode
}

// CanProceed reports whether all conditions are satisfied
func (g Gate) CanProceed(conditions []Condition, st GateState) bool {
	return len(g.Unmet(conditions, st)) == 0
}

// Unmet returns the conditions that do not hold yet
func (g Gate) Unmet(conditions []Condition, st GateState) []Condition {
	if g.allowTestingMode && st.TestingMode {
		return nil
	}
	var unmet []Condition
	for _, c := range conditions {
		if !satisfied(c, st) {
			unmet = append(unmet, c)
		}
	}
	return unmet
}

func satisfied(c Condition, st GateState) bool {
	switch c.Kind {
	case ConditionWatchPercentage:
		return st.Completed || st.MediaFallback || st.Percentage >= c.MinPercentage
	case ConditionExternalCompletion:
		return st.Completed || st.MediaFallback
	case ConditionCertification:
		return st.Certified
	default:
		return false
	}
}

// RequirementsFor returns the gate conditions of a scene, one rule per content kind
func RequirementsFor(scene models.Scene, threshold float64) ([]Condition, error) {
	var conds []Condition
	switch c := scene.Content.(type) {
	case models.VideoContent:
		conds = append(conds, Condition{Kind: ConditionWatchPercentage, MinPercentage: threshold})
	case models.PackageContent:
		conds = append(conds, Condition{Kind: ConditionExternalCompletion})
	case models.DocumentContent:
		if c.Narrated() {
			conds = append(conds, Condition{Kind: ConditionWatchPercentage, MinPercentage: threshold})
		}
	default:
		return nil, fmt.Errorf("scene %d has unsupported content %T", scene.ID, scene.Content)
	}
	if scene.RequiresCertification {
		conds = append(conds, Condition{Kind: ConditionCertification})
	}
	return conds, nil
}
