package match

import (
	"context"
	"math"
	"sync"

	"github.com/google/uuid"
)

// DefaultConfidenceThreshold separates relationships persisted automatically
// from those routed to human review.
const DefaultConfidenceThreshold = 0.7

// InferMatches evaluates the full action×goal cross product and returns the
// relationships that plausibly hold. Output order is deterministic: actions
// outer, goals inner, in input order.
//
// When requirePeriodMatch is true, pairs outside the goal's period are
// discarded before actionability runs. The period criterion is evaluated
// either way — it always contributes to MatchedOn and to the confidence
// score.
//
// Pair evaluations share no state, so actions fan out across goroutines and
// fan back in by index to preserve the ordering contract. Cancelling ctx
// stops evaluation early; already-computed relationships are returned.
func InferMatches(ctx context.Context, actions []Action, goals []Goal, requirePeriodMatch bool) []Relationship {
	if len(actions) == 0 || len(goals) == 0 {
		return nil
	}

	perAction := make([][]Relationship, len(actions))
	var wg sync.WaitGroup
	for i := range actions {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			perAction[i] = inferAgainstGoals(ctx, actions[i], goals, requirePeriodMatch)
		}(i)
	}
	wg.Wait()

	var rels []Relationship
	for _, batch := range perAction {
		rels = append(rels, batch...)
	}
	return rels
}

func inferAgainstGoals(ctx context.Context, action Action, goals []Goal, requirePeriodMatch bool) []Relationship {
	var rels []Relationship
	for _, goal := range goals {
		if ctx.Err() != nil {
			return rels
		}

		periodMatch := MatchesOnPeriod(action, goal)
		if requirePeriodMatch && !periodMatch {
			continue
		}

		res := evalActionability(action, goal)
		if !res.matched {
			continue
		}

		// An actionability match always implies a unit-level match;
		// description is tagged only when the hinted-keyword path fired,
		// never on a pure unit fallback.
		matchedOn := make([]Criterion, 0, 3)
		if periodMatch {
			matchedOn = append(matchedOn, CriterionPeriod)
		}
		matchedOn = append(matchedOn, CriterionUnit)
		if res.hinted {
			matchedOn = append(matchedOn, CriterionDescription)
		}

		rels = append(rels, Relationship{
			ID:           uuid.NewString(),
			ActionID:     action.ID,
			GoalID:       goal.ID,
			Contribution: res.contribution,
			Method:       MethodAutoInferred,
			Confidence:   CalculateConfidence(periodMatch, true),
			MatchedOn:    matchedOn,
		})
	}
	return rels
}

// FilterAmbiguous partitions relationships at the confidence threshold:
// confidence >= threshold is confident, everything else is ambiguous and
// needs review. Input order is preserved within each partition. An unusable
// threshold (NaN or outside [0,1]) defaults rather than fails.
func FilterAmbiguous(rels []Relationship, threshold float64) (confident, ambiguous []Relationship) {
	if math.IsNaN(threshold) || threshold < 0 || threshold > 1 {
		threshold = DefaultConfidenceThreshold
	}

	for _, rel := range rels {
		if rel.Confidence >= threshold {
			confident = append(confident, rel)
		} else {
			ambiguous = append(ambiguous, rel)
		}
	}
	return confident, ambiguous
}
