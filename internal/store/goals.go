package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/telos-app/telos/internal/match"
)

// CreateGoal inserts a new goal. An empty ID is generated.
func (db *DB) CreateGoal(goal *match.Goal) error {
	if goal.ID == "" {
		goal.ID = uuid.NewString()
	}

	now := time.Now().UnixMilli()
	_, err := db.Exec(`
		INSERT INTO goals (id, title, start_date, target_date, target_unit, target_value, actionability, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, goal.ID, goal.Title, msOrNil(goal.StartDate), msOrNil(goal.TargetDate),
		goal.TargetUnit, goal.TargetValue, goal.Actionability, now, now)
	if err != nil {
		return fmt.Errorf("create goal: %w", err)
	}
	return nil
}

// GetGoal returns the goal with the given ID, or nil if it doesn't exist.
func (db *DB) GetGoal(id string) (*match.Goal, error) {
	row := db.QueryRow(`
		SELECT id, title, start_date, target_date, target_unit, target_value, actionability
		FROM goals WHERE id = ?
	`, id)

	goal, err := scanGoal(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get goal %s: %w", id, err)
	}
	return goal, nil
}

// ListGoals returns all goals, oldest first.
func (db *DB) ListGoals() ([]match.Goal, error) {
	return db.queryGoals(`
		SELECT id, title, start_date, target_date, target_unit, target_value, actionability
		FROM goals ORDER BY created_at, id
	`)
}

// ListGoalsOverlapping returns goals whose active period overlaps [start, target].
// Goals without a start date have no period and are always included.
func (db *DB) ListGoalsOverlapping(start, target time.Time) ([]match.Goal, error) {
	return db.queryGoals(`
		SELECT id, title, start_date, target_date, target_unit, target_value, actionability
		FROM goals
		WHERE start_date IS NULL
		   OR (start_date <= ? AND (target_date IS NULL OR target_date >= ?))
		ORDER BY created_at, id
	`, target.UnixMilli(), start.UnixMilli())
}

// ListGoalsActiveAt returns goals whose period contains the given instant,
// plus all undated goals.
func (db *DB) ListGoalsActiveAt(at time.Time) ([]match.Goal, error) {
	ms := at.UnixMilli()
	return db.queryGoals(`
		SELECT id, title, start_date, target_date, target_unit, target_value, actionability
		FROM goals
		WHERE (start_date IS NULL OR start_date <= ?)
		  AND (target_date IS NULL OR target_date >= ?)
		ORDER BY created_at, id
	`, ms, ms)
}

func (db *DB) queryGoals(query string, args ...any) ([]match.Goal, error) {
	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list goals: %w", err)
	}
	defer rows.Close()

	var goals []match.Goal
	for rows.Next() {
		goal, err := scanGoal(rows)
		if err != nil {
			return nil, fmt.Errorf("scan goal: %w", err)
		}
		goals = append(goals, *goal)
	}
	return goals, rows.Err()
}

func scanGoal(row rowScanner) (*match.Goal, error) {
	var (
		goal       match.Goal
		startDate  sql.NullInt64
		targetDate sql.NullInt64
	)
	if err := row.Scan(&goal.ID, &goal.Title, &startDate, &targetDate,
		&goal.TargetUnit, &goal.TargetValue, &goal.Actionability); err != nil {
		return nil, err
	}
	goal.StartDate = timeOrNil(startDate)
	goal.TargetDate = timeOrNil(targetDate)
	return &goal, nil
}

func msOrNil(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UnixMilli()
}

func timeOrNil(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := time.UnixMilli(v.Int64).UTC()
	return &t
}
