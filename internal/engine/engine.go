package engine

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/telos-app/telos/internal/match"
	"github.com/telos-app/telos/internal/store"
)

// ErrNotFound is returned when a referenced action, goal, or relationship
// doesn't exist.
var ErrNotFound = errors.New("not found")

// Engine coordinates batch and real-time inference between the store and the
// matching logic. It fetches entities, runs the matcher, organizes results
// for review, and persists the outcomes. The matching rules themselves live
// in the match package and never touch storage.
type Engine struct {
	DB        *store.DB
	Threshold float64 // confidence threshold for auto-acceptance

	// RequirePeriodMatch drops candidates whose action falls outside the
	// goal's active period during batch inference.
	RequirePeriodMatch bool
}

// New creates a new Engine with the default confidence threshold.
func New(db *store.DB) *Engine {
	return &Engine{
		DB:                 db,
		Threshold:          match.DefaultConfidenceThreshold,
		RequirePeriodMatch: true,
	}
}

// Session captures what a single inference run analyzed and found.
type Session struct {
	ActionsAnalyzed int
	GoalsAnalyzed   int
	Confident       []match.Relationship
	Ambiguous       []match.Relationship
	Unmatched       []match.Action
	RanAt           time.Time
}

// Summary returns display-ready counters for a session. The match rate is the
// share of analyzed actions that matched at least one goal; an action
// contributing to several goals still counts once.
func (s *Session) Summary() map[string]any {
	total := len(s.Confident) + len(s.Ambiguous)
	matchedActions := s.ActionsAnalyzed - len(s.Unmatched)
	rate := 0.0
	if s.ActionsAnalyzed > 0 {
		rate = float64(matchedActions) / float64(s.ActionsAnalyzed)
	}
	return map[string]any{
		"actions_analyzed":  s.ActionsAnalyzed,
		"goals_analyzed":    s.GoalsAnalyzed,
		"matches_found":     total,
		"confident_matches": len(s.Confident),
		"ambiguous_matches": len(s.Ambiguous),
		"unmatched_actions": len(s.Unmatched),
		"match_rate":        fmt.Sprintf("%.0f%%", rate*100),
		"ran_at":            s.RanAt.UTC().Format(time.RFC3339),
	}
}

// InferForPeriod runs batch inference over every action logged in
// [start, target] against every goal whose period overlaps that window.
// Confident matches are persisted immediately; ambiguous ones are staged for
// review. Returns the organized session for display.
func (e *Engine) InferForPeriod(ctx context.Context, start, target time.Time) (*Session, error) {
	actions, err := e.DB.ListActionsBetween(start, target)
	if err != nil {
		return nil, fmt.Errorf("list actions: %w", err)
	}
	goals, err := e.DB.ListGoalsOverlapping(start, target)
	if err != nil {
		return nil, fmt.Errorf("list goals: %w", err)
	}

	rels := match.InferMatches(ctx, actions, goals, e.RequirePeriodMatch)
	confident, ambiguous := match.FilterAmbiguous(rels, e.Threshold)

	// The session reports the persisted rows, not the freshly inferred ones:
	// on a re-run, an (action, goal) pair keeps the ID of its existing row,
	// and user-blessed rows survive untouched.
	storedConfident, err := e.DB.SaveRelationships(confident, store.StatusAccepted)
	if err != nil {
		return nil, fmt.Errorf("persist confident matches: %w", err)
	}
	storedAmbiguous, err := e.DB.SaveRelationships(ambiguous, store.StatusReview)
	if err != nil {
		return nil, fmt.Errorf("stage ambiguous matches: %w", err)
	}
	confident = effectiveRelationships(storedConfident)
	ambiguous = effectiveRelationships(storedAmbiguous)

	matched := make(map[string]bool, len(rels))
	for _, rel := range rels {
		matched[rel.ActionID] = true
	}
	var unmatched []match.Action
	for _, action := range actions {
		if !matched[action.ID] {
			unmatched = append(unmatched, action)
		}
	}

	log.Printf("infer: %d actions × %d goals → %d confident, %d for review",
		len(actions), len(goals), len(confident), len(ambiguous))

	return &Session{
		ActionsAnalyzed: len(actions),
		GoalsAnalyzed:   len(goals),
		Confident:       confident,
		Ambiguous:       ambiguous,
		Unmatched:       unmatched,
		RanAt:           time.Now(),
	}, nil
}

// InferForAction runs real-time inference for a single logged action against
// the goals active right now: "you just logged a run — does it count toward
// anything?" Results are sorted by confidence, best first, and are NOT
// persisted; they're suggestions for the caller to act on.
func (e *Engine) InferForAction(ctx context.Context, actionID string) ([]match.Relationship, error) {
	action, err := e.DB.GetAction(actionID)
	if err != nil {
		return nil, fmt.Errorf("get action: %w", err)
	}
	if action == nil {
		return nil, fmt.Errorf("action %s: %w", actionID, ErrNotFound)
	}

	goals, err := e.DB.ListGoalsActiveAt(time.Now())
	if err != nil {
		return nil, fmt.Errorf("list active goals: %w", err)
	}

	rels := match.InferMatches(ctx, []match.Action{*action}, goals, true)
	sort.SliceStable(rels, func(i, j int) bool {
		return rels[i].Confidence > rels[j].Confidence
	})
	return rels, nil
}

// InferForGoal finds every action that contributes to one goal: "show me
// everything that counted toward the 120km goal". Actions are windowed by the
// goal's dates when it has them; undated goals consider all actions and skip
// the period gate.
func (e *Engine) InferForGoal(ctx context.Context, goalID string) ([]match.Relationship, error) {
	goal, err := e.DB.GetGoal(goalID)
	if err != nil {
		return nil, fmt.Errorf("get goal: %w", err)
	}
	if goal == nil {
		return nil, fmt.Errorf("goal %s: %w", goalID, ErrNotFound)
	}

	var actions []match.Action
	requirePeriod := goal.StartDate != nil && goal.TargetDate != nil
	if requirePeriod {
		actions, err = e.DB.ListActionsBetween(*goal.StartDate, *goal.TargetDate)
	} else {
		actions, err = e.DB.ListActions()
	}
	if err != nil {
		return nil, fmt.Errorf("list actions: %w", err)
	}

	return match.InferMatches(ctx, actions, []match.Goal{*goal}, requirePeriod), nil
}

// ManualAssign creates and persists a user-declared relationship. A nil
// contribution is inferred from the action's measurements, degrading to zero.
func (e *Engine) ManualAssign(ctx context.Context, actionID, goalID string, contribution *float64) (match.Relationship, error) {
	action, err := e.DB.GetAction(actionID)
	if err != nil {
		return match.Relationship{}, fmt.Errorf("get action: %w", err)
	}
	if action == nil {
		return match.Relationship{}, fmt.Errorf("action %s: %w", actionID, ErrNotFound)
	}
	goal, err := e.DB.GetGoal(goalID)
	if err != nil {
		return match.Relationship{}, fmt.Errorf("get goal: %w", err)
	}
	if goal == nil {
		return match.Relationship{}, fmt.Errorf("goal %s: %w", goalID, ErrNotFound)
	}

	rel := match.NewManualRelationship(*action, *goal, contribution)
	// If the pair already had a row, the upsert kept that row's ID (and a
	// user-confirmed row entirely); return what is actually persisted so the
	// caller can confirm or delete by the returned ID.
	stored, err := e.DB.SaveRelationship(rel, store.StatusAccepted)
	if err != nil {
		return match.Relationship{}, fmt.Errorf("persist manual relationship: %w", err)
	}
	return stored.Relationship, nil
}

func effectiveRelationships(stored []store.StoredRelationship) []match.Relationship {
	out := make([]match.Relationship, 0, len(stored))
	for _, s := range stored {
		out = append(out, s.Relationship)
	}
	return out
}

// ConfirmSuggestion upgrades a staged suggestion to user-confirmed and
// accepts it. The record keeps its identity; only provenance and confidence
// change.
func (e *Engine) ConfirmSuggestion(ctx context.Context, relationshipID string) (match.Relationship, error) {
	stored, err := e.DB.GetRelationship(relationshipID)
	if err != nil {
		return match.Relationship{}, fmt.Errorf("get relationship: %w", err)
	}
	if stored == nil {
		return match.Relationship{}, fmt.Errorf("relationship %s: %w", relationshipID, ErrNotFound)
	}

	confirmed := match.Confirm(stored.Relationship)
	if err := e.DB.UpdateRelationship(confirmed, store.StatusAccepted); err != nil {
		return match.Relationship{}, fmt.Errorf("persist confirmation: %w", err)
	}
	return confirmed, nil
}

// RejectSuggestion discards a staged suggestion. There is no rejected state —
// rejection is simply not keeping the record.
func (e *Engine) RejectSuggestion(ctx context.Context, relationshipID string) error {
	stored, err := e.DB.GetRelationship(relationshipID)
	if err != nil {
		return fmt.Errorf("get relationship: %w", err)
	}
	if stored == nil {
		return fmt.Errorf("relationship %s: %w", relationshipID, ErrNotFound)
	}
	if err := e.DB.DeleteRelationship(relationshipID); err != nil {
		return fmt.Errorf("discard suggestion: %w", err)
	}
	return nil
}

// PendingReview lists the staged suggestions awaiting a human decision.
func (e *Engine) PendingReview(ctx context.Context) ([]store.StoredRelationship, error) {
	return e.DB.ListRelationshipsByStatus(store.StatusReview)
}

// Progress reports how far along a goal is based on accepted contributions.
type Progress struct {
	GoalID      string
	Title       string
	TargetUnit  string
	TargetValue float64
	Contributed float64
	Percent     float64
}

// GoalProgress sums the accepted contributions toward a goal.
func (e *Engine) GoalProgress(ctx context.Context, goalID string) (*Progress, error) {
	goal, err := e.DB.GetGoal(goalID)
	if err != nil {
		return nil, fmt.Errorf("get goal: %w", err)
	}
	if goal == nil {
		return nil, fmt.Errorf("goal %s: %w", goalID, ErrNotFound)
	}

	total, err := e.DB.GoalContribution(goalID)
	if err != nil {
		return nil, err
	}

	p := &Progress{
		GoalID:      goal.ID,
		Title:       goal.Title,
		TargetUnit:  goal.TargetUnit,
		TargetValue: goal.TargetValue,
		Contributed: total,
	}
	if goal.TargetValue > 0 {
		p.Percent = total / goal.TargetValue * 100
	}
	return p, nil
}
