package match

import "time"

// Action is a logged real-world activity. The matcher consumes actions
// read-only; it never dereferences or mutates them.
type Action struct {
	ID          string
	Title       string
	Description string
	LoggedAt    time.Time
	// Measurements maps a unit name (e.g. "distance_km") to the amount
	// recorded for it. Nil or empty when the action carries no measurements.
	Measurements map[string]float64
}

// Goal is a target an action may contribute toward. Undated goals impose no
// temporal constraint. Actionability holds the goal's serialized hint
// document; the matcher treats it as opaque, parse-or-fallback.
type Goal struct {
	ID            string
	Title         string
	StartDate     *time.Time
	TargetDate    *time.Time
	TargetUnit    string
	TargetValue   float64
	Actionability string
}
