package match

import (
	"encoding/json"
	"strings"
)

// actionabilityHints is the parsed form of a goal's hint document:
// {"units": ["minutes"], "keywords": ["yoga", "run*"]}.
// Units narrow which action measurements count as evidence; keywords narrow
// which action titles do.
type actionabilityHints struct {
	Units    []string `json:"units"`
	Keywords []string `json:"keywords"`
}

// parseHints parses a hint document into normalized form. The second return
// is false when the document is absent, malformed, or normalizes to empty —
// all three collapse to the same "no hints" outcome so a typo'd document
// degrades to unit-only matching instead of making the goal unmatchable.
// Parse errors never escape this boundary.
func parseHints(doc string) (actionabilityHints, bool) {
	if strings.TrimSpace(doc) == "" {
		return actionabilityHints{}, false
	}

	var raw actionabilityHints
	if err := json.Unmarshal([]byte(doc), &raw); err != nil {
		return actionabilityHints{}, false
	}

	var hints actionabilityHints
	for _, u := range raw.Units {
		u = strings.ToLower(strings.TrimSpace(u))
		if u != "" {
			hints.Units = append(hints.Units, u)
		}
	}
	for _, kw := range raw.Keywords {
		// Wildcard markers are stripped before the substring test, so
		// "run*" matches "running". A keyword that strips to empty (a bare
		// "*") is kept: it matches any title, leaving the goal in strict
		// mode with only the unit-membership check.
		kw = strings.TrimSpace(strings.ReplaceAll(strings.ToLower(kw), "*", ""))
		hints.Keywords = append(hints.Keywords, kw)
	}

	if len(hints.Units) == 0 || len(hints.Keywords) == 0 {
		return actionabilityHints{}, false
	}
	return hints, true
}

// allowsUnit reports whether the measurement key is a member of the hinted
// unit list (exact, case-insensitive).
func (h actionabilityHints) allowsUnit(key string) bool {
	key = strings.ToLower(key)
	for _, u := range h.Units {
		if key == u {
			return true
		}
	}
	return false
}

// matchesKeyword reports whether any hinted keyword appears as a substring of
// the given text. Text is expected to be lowercased by the caller.
func (h actionabilityHints) matchesKeyword(text string) bool {
	for _, kw := range h.Keywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}
