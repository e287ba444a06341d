package match

import "github.com/google/uuid"

// Method records how a relationship came to exist. It is provenance, not
// derivable from the other fields.
type Method string

const (
	MethodAutoInferred  Method = "auto_inferred"
	MethodUserConfirmed Method = "user_confirmed"
	MethodManual        Method = "manual"
)

// Criterion tags why an auto-inferred match fired.
type Criterion string

const (
	CriterionPeriod      Criterion = "period"
	CriterionUnit        Criterion = "unit"
	CriterionDescription Criterion = "description"
)

// Relationship links one action to one goal with provenance and confidence.
// Relationships are immutable values: every state transition returns a new
// copy, never mutates in place.
//
// Invariants: Confidence is 1.0 exactly when Method is not auto_inferred;
// MatchedOn is non-empty only for auto_inferred records; Contribution >= 0
// for engine-produced records.
type Relationship struct {
	ID           string
	ActionID     string
	GoalID       string
	Contribution float64
	Method       Method
	Confidence   float64
	MatchedOn    []Criterion
}

// MatchedOnContains reports whether the relationship was justified by the
// given criterion.
func (r Relationship) MatchedOnContains(c Criterion) bool {
	for _, got := range r.MatchedOn {
		if got == c {
			return true
		}
	}
	return false
}

// NewManualRelationship creates a relationship the user explicitly declared.
// Manual relationships carry no inferred justification and full confidence.
//
// A non-nil contribution is trusted verbatim. When nil, the contribution is
// inferred from the action measurement matching the goal's unit, degrading to
// zero when nothing matches — a user creating a manual link is never blocked
// by missing measurement data.
func NewManualRelationship(action Action, goal Goal, contribution *float64) Relationship {
	contrib := 0.0
	if contribution != nil {
		contrib = *contribution
	} else if matched, _, value := MatchesOnUnit(action, goal); matched {
		contrib = value
	}

	return Relationship{
		ID:           uuid.NewString(),
		ActionID:     action.ID,
		GoalID:       goal.ID,
		Contribution: contrib,
		Method:       MethodManual,
		Confidence:   1.0,
	}
}

// Confirm upgrades a suggested relationship to user-confirmed. Identity and
// justification are preserved; only method and confidence change. Confirming
// an already-confirmed relationship is a no-op in effect.
func Confirm(rel Relationship) Relationship {
	rel.Method = MethodUserConfirmed
	rel.Confidence = 1.0
	return rel
}
