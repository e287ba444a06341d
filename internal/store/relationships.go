package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/telos-app/telos/internal/match"
)

// RelationshipStatus tracks where a persisted relationship sits in the review
// flow. Confident and user-blessed records are accepted; ambiguous
// auto-inferred suggestions are staged for review.
type RelationshipStatus string

const (
	StatusAccepted RelationshipStatus = "accepted"
	StatusReview   RelationshipStatus = "review"
)

// StoredRelationship is a relationship row plus its review status.
type StoredRelationship struct {
	match.Relationship
	Status    RelationshipStatus
	CreatedAt int64
	UpdatedAt int64
}

// execer lets the upsert run against either the DB or a transaction.
type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
}

func upsertRelationship(ex execer, rel match.Relationship, status RelationshipStatus) error {
	matchedOn, err := encodeMatchedOn(rel.MatchedOn)
	if err != nil {
		return fmt.Errorf("encode matched_on: %w", err)
	}

	now := time.Now().UnixMilli()
	_, err = ex.Exec(`
		INSERT INTO relationships (id, action_id, goal_id, contribution, method, confidence, matched_on, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (action_id, goal_id) DO UPDATE SET
			contribution = excluded.contribution,
			method       = excluded.method,
			confidence   = excluded.confidence,
			matched_on   = excluded.matched_on,
			status       = excluded.status,
			updated_at   = excluded.updated_at
		WHERE relationships.method = 'auto_inferred'
	`, rel.ID, rel.ActionID, rel.GoalID, rel.Contribution, string(rel.Method),
		rel.Confidence, matchedOn, string(status), now, now)
	if err != nil {
		return fmt.Errorf("save relationship %s: %w", rel.ID, err)
	}
	return nil
}

// SaveRelationship upserts a relationship keyed on its (action, goal) pair
// and returns the effective row. Re-running inference refreshes an existing
// auto-inferred row in place — the row keeps its original ID so record
// identity stays stable — and never touches a row the user has confirmed or
// created manually. Callers must use the returned row, not their input: when
// the pair already existed, the input's freshly generated ID was discarded.
func (db *DB) SaveRelationship(rel match.Relationship, status RelationshipStatus) (*StoredRelationship, error) {
	if err := upsertRelationship(db.DB, rel, status); err != nil {
		return nil, err
	}
	stored, err := db.GetRelationshipForPair(rel.ActionID, rel.GoalID)
	if err != nil {
		return nil, err
	}
	if stored == nil {
		return nil, fmt.Errorf("save relationship %s: row missing after upsert", rel.ID)
	}
	return stored, nil
}

// SaveRelationships saves a batch in one transaction and returns the
// effective rows, in input order.
func (db *DB) SaveRelationships(rels []match.Relationship, status RelationshipStatus) ([]StoredRelationship, error) {
	tx, err := db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	for _, rel := range rels {
		if err := upsertRelationship(tx, rel, status); err != nil {
			tx.Rollback()
			return nil, err
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}

	out := make([]StoredRelationship, 0, len(rels))
	for _, rel := range rels {
		stored, err := db.GetRelationshipForPair(rel.ActionID, rel.GoalID)
		if err != nil {
			return nil, err
		}
		if stored != nil {
			out = append(out, *stored)
		}
	}
	return out, nil
}

// GetRelationship returns the relationship with the given ID, or nil if it
// doesn't exist.
func (db *DB) GetRelationship(id string) (*StoredRelationship, error) {
	row := db.QueryRow(`
		SELECT id, action_id, goal_id, contribution, method, confidence, matched_on, status, created_at, updated_at
		FROM relationships WHERE id = ?
	`, id)

	rel, err := scanRelationship(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get relationship %s: %w", id, err)
	}
	return rel, nil
}

// GetRelationshipForPair returns the relationship linking an action to a
// goal, or nil when the pair has none. Each pair has at most one row.
func (db *DB) GetRelationshipForPair(actionID, goalID string) (*StoredRelationship, error) {
	row := db.QueryRow(`
		SELECT id, action_id, goal_id, contribution, method, confidence, matched_on, status, created_at, updated_at
		FROM relationships WHERE action_id = ? AND goal_id = ?
	`, actionID, goalID)

	rel, err := scanRelationship(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get relationship for pair %s/%s: %w", actionID, goalID, err)
	}
	return rel, nil
}

// ListRelationshipsByStatus returns relationships in the given review state,
// oldest first.
func (db *DB) ListRelationshipsByStatus(status RelationshipStatus) ([]StoredRelationship, error) {
	return db.queryRelationships(`
		SELECT id, action_id, goal_id, contribution, method, confidence, matched_on, status, created_at, updated_at
		FROM relationships WHERE status = ? ORDER BY created_at, id
	`, string(status))
}

// ListRelationshipsForGoal returns the accepted relationships contributing to
// a goal, oldest first.
func (db *DB) ListRelationshipsForGoal(goalID string) ([]StoredRelationship, error) {
	return db.queryRelationships(`
		SELECT id, action_id, goal_id, contribution, method, confidence, matched_on, status, created_at, updated_at
		FROM relationships WHERE goal_id = ? AND status = 'accepted' ORDER BY created_at, id
	`, goalID)
}

// UpdateRelationship overwrites an existing row by ID. Used by confirmation,
// where identity must be preserved exactly.
func (db *DB) UpdateRelationship(rel match.Relationship, status RelationshipStatus) error {
	matchedOn, err := encodeMatchedOn(rel.MatchedOn)
	if err != nil {
		return fmt.Errorf("encode matched_on: %w", err)
	}

	res, err := db.Exec(`
		UPDATE relationships
		SET contribution = ?, method = ?, confidence = ?, matched_on = ?, status = ?, updated_at = ?
		WHERE id = ?
	`, rel.Contribution, string(rel.Method), rel.Confidence, matchedOn,
		string(status), time.Now().UnixMilli(), rel.ID)
	if err != nil {
		return fmt.Errorf("update relationship %s: %w", rel.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("update relationship %s: not found", rel.ID)
	}
	return nil
}

// DeleteRelationship removes a relationship. Rejecting a staged suggestion is
// just deletion — there is no rejected state.
func (db *DB) DeleteRelationship(id string) error {
	res, err := db.Exec(`DELETE FROM relationships WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete relationship %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("delete relationship %s: not found", id)
	}
	return nil
}

// GoalContribution sums the accepted contributions toward a goal.
func (db *DB) GoalContribution(goalID string) (float64, error) {
	var total float64
	err := db.QueryRow(`
		SELECT COALESCE(SUM(contribution), 0) FROM relationships
		WHERE goal_id = ? AND status = 'accepted'
	`, goalID).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("goal contribution %s: %w", goalID, err)
	}
	return total, nil
}

func (db *DB) queryRelationships(query string, args ...any) ([]StoredRelationship, error) {
	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list relationships: %w", err)
	}
	defer rows.Close()

	var rels []StoredRelationship
	for rows.Next() {
		rel, err := scanRelationship(rows)
		if err != nil {
			return nil, fmt.Errorf("scan relationship: %w", err)
		}
		rels = append(rels, *rel)
	}
	return rels, rows.Err()
}

func scanRelationship(row rowScanner) (*StoredRelationship, error) {
	var (
		rel       StoredRelationship
		method    string
		matchedOn sql.NullString
		status    string
	)
	if err := row.Scan(&rel.ID, &rel.ActionID, &rel.GoalID, &rel.Contribution,
		&method, &rel.Confidence, &matchedOn, &status, &rel.CreatedAt, &rel.UpdatedAt); err != nil {
		return nil, err
	}
	rel.Method = match.Method(method)
	rel.Status = RelationshipStatus(status)

	if matchedOn.Valid && matchedOn.String != "" {
		if err := json.Unmarshal([]byte(matchedOn.String), &rel.MatchedOn); err != nil {
			return nil, fmt.Errorf("decode matched_on: %w", err)
		}
	}
	return &rel, nil
}

func encodeMatchedOn(criteria []match.Criterion) (sql.NullString, error) {
	if len(criteria) == 0 {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(criteria)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}
