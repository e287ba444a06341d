package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/telos-app/telos/internal/match"
)

// CreateAction inserts a new action. An empty ID is generated.
func (db *DB) CreateAction(action *match.Action) error {
	if action.ID == "" {
		action.ID = uuid.NewString()
	}
	measurements, err := encodeMeasurements(action.Measurements)
	if err != nil {
		return fmt.Errorf("encode measurements: %w", err)
	}

	now := time.Now().UnixMilli()
	_, err = db.Exec(`
		INSERT INTO actions (id, title, description, logged_at, measurements, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, action.ID, action.Title, action.Description, action.LoggedAt.UnixMilli(), measurements, now, now)
	if err != nil {
		return fmt.Errorf("create action: %w", err)
	}
	return nil
}

// GetAction returns the action with the given ID, or nil if it doesn't exist.
func (db *DB) GetAction(id string) (*match.Action, error) {
	row := db.QueryRow(`
		SELECT id, title, description, logged_at, measurements
		FROM actions WHERE id = ?
	`, id)

	action, err := scanAction(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get action %s: %w", id, err)
	}
	return action, nil
}

// ListActions returns all actions ordered by log time.
func (db *DB) ListActions() ([]match.Action, error) {
	return db.queryActions(`
		SELECT id, title, description, logged_at, measurements
		FROM actions ORDER BY logged_at, id
	`)
}

// ListActionsBetween returns actions logged within [start, target], inclusive,
// ordered by log time.
func (db *DB) ListActionsBetween(start, target time.Time) ([]match.Action, error) {
	return db.queryActions(`
		SELECT id, title, description, logged_at, measurements
		FROM actions
		WHERE logged_at >= ? AND logged_at <= ?
		ORDER BY logged_at, id
	`, start.UnixMilli(), target.UnixMilli())
}

func (db *DB) queryActions(query string, args ...any) ([]match.Action, error) {
	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list actions: %w", err)
	}
	defer rows.Close()

	var actions []match.Action
	for rows.Next() {
		action, err := scanAction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan action: %w", err)
		}
		actions = append(actions, *action)
	}
	return actions, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAction(row rowScanner) (*match.Action, error) {
	var (
		action       match.Action
		loggedAt     int64
		measurements sql.NullString
	)
	if err := row.Scan(&action.ID, &action.Title, &action.Description, &loggedAt, &measurements); err != nil {
		return nil, err
	}
	action.LoggedAt = time.UnixMilli(loggedAt).UTC()

	if measurements.Valid && measurements.String != "" {
		if err := json.Unmarshal([]byte(measurements.String), &action.Measurements); err != nil {
			return nil, fmt.Errorf("decode measurements: %w", err)
		}
	}
	return &action, nil
}

func encodeMeasurements(m map[string]float64) (sql.NullString, error) {
	if len(m) == 0 {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}
