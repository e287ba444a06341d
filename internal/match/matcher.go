package match

import (
	"log"
	"sort"
	"strings"
)

// Confidence scores produced by the matcher. Confidence is an opaque score
// with two blessed producers: matchedConfidence for auto-inferred matches and
// 1.0 for confirmed/manual relationships. The float shape exists so the
// review threshold can be tuned without re-deriving booleans.
const (
	matchedConfidence   = 0.9
	unmatchedConfidence = 0.0
)

// MatchesOnPeriod reports whether the action occurred during the goal's
// active period. A goal with neither a start nor a target date imposes no
// temporal constraint and accepts any action. Both boundaries are inclusive.
func MatchesOnPeriod(action Action, goal Goal) bool {
	if goal.StartDate == nil && goal.TargetDate == nil {
		return true
	}
	if goal.StartDate != nil && action.LoggedAt.Before(*goal.StartDate) {
		return false
	}
	if goal.TargetDate != nil && action.LoggedAt.After(*goal.TargetDate) {
		return false
	}
	return true
}

// MatchesOnUnit looks for an action measurement compatible with the goal's
// target unit. Compatibility is substring containment, not equality: goal
// unit "km" matches measurement key "distance_km". The first matching key in
// sorted key order wins; its key and value are returned.
func MatchesOnUnit(action Action, goal Goal) (bool, string, float64) {
	if goal.TargetUnit == "" || len(action.Measurements) == 0 {
		return false, "", 0
	}

	unit := normalizeUnit(goal.TargetUnit)
	for _, key := range sortedKeys(action.Measurements) {
		if strings.Contains(strings.ToLower(key), unit) {
			return true, key, action.Measurements[key]
		}
	}
	return false, "", 0
}

// MatchesWithActionability checks the action against the goal's actionability
// hints. With usable hints the match is strict: the action must carry a
// measurement in the hinted unit list AND its title or description must
// contain a hinted keyword. Without usable hints (absent, empty, or
// malformed document) the result falls back entirely to MatchesOnUnit, so
// goals without curated hints are never unmatchable.
//
// On a match, the returned contribution is the value of the measurement that
// satisfied the unit criterion.
func MatchesWithActionability(action Action, goal Goal) (bool, float64) {
	res := evalActionability(action, goal)
	return res.matched, res.contribution
}

// CalculateConfidence folds the two criteria into a score: matchedConfidence
// when both hold, unmatchedConfidence otherwise. There is no intermediate
// tier.
func CalculateConfidence(periodMatch, actionabilityMatch bool) float64 {
	if periodMatch && actionabilityMatch {
		return matchedConfidence
	}
	return unmatchedConfidence
}

// actionabilityResult carries the actionability outcome plus which path
// produced it; the orchestrator tags description-based matches differently
// from fallback unit matches.
type actionabilityResult struct {
	matched      bool
	contribution float64
	hinted       bool
}

func evalActionability(action Action, goal Goal) actionabilityResult {
	hints, ok := parseHints(goal.Actionability)
	if !ok {
		if strings.TrimSpace(goal.Actionability) != "" {
			log.Printf("match: unusable actionability hints on goal %q, falling back to unit matching", goal.Title)
		}
		matched, _, value := MatchesOnUnit(action, goal)
		return actionabilityResult{matched: matched, contribution: value}
	}

	if len(action.Measurements) == 0 {
		return actionabilityResult{hinted: true}
	}

	contribution := 0.0
	found := false
	for _, key := range sortedKeys(action.Measurements) {
		if hints.allowsUnit(key) {
			contribution = action.Measurements[key]
			found = true
			break
		}
	}
	if !found {
		return actionabilityResult{hinted: true}
	}

	text := strings.ToLower(strings.TrimSpace(action.Title + " " + action.Description))
	if !hints.matchesKeyword(text) {
		return actionabilityResult{hinted: true}
	}

	return actionabilityResult{matched: true, contribution: contribution, hinted: true}
}

// normalizeUnit lowercases and underscores a unit name so "Distance KM"
// compares against measurement keys like "distance_km".
func normalizeUnit(unit string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(unit)), " ", "_")
}

// sortedKeys returns measurement keys in sorted order. Map iteration order
// would make "first match wins" nondeterministic across runs.
func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
