package store

import (
	"fmt"
)

type migration struct {
	Version     int
	Description string
	SQL         string
}

var migrations = []migration{
	{
		Version:     1,
		Description: "actions: logged activities with measurements",
		SQL: `
CREATE TABLE actions (
    id           TEXT PRIMARY KEY,
    title        TEXT NOT NULL,
    description  TEXT NOT NULL DEFAULT '',
    logged_at    INTEGER NOT NULL,
    measurements TEXT,

    created_at   INTEGER NOT NULL,
    updated_at   INTEGER NOT NULL
);

CREATE INDEX idx_actions_logged_at ON actions(logged_at DESC);
`,
	},
	{
		Version:     2,
		Description: "goals: targets with optional dates, units, and actionability hints",
		SQL: `
CREATE TABLE goals (
    id            TEXT PRIMARY KEY,
    title         TEXT NOT NULL,
    start_date    INTEGER,
    target_date   INTEGER,
    target_unit   TEXT NOT NULL DEFAULT '',
    target_value  REAL NOT NULL DEFAULT 0,
    actionability TEXT NOT NULL DEFAULT '',

    created_at    INTEGER NOT NULL,
    updated_at    INTEGER NOT NULL
);

CREATE INDEX idx_goals_target_date ON goals(target_date);
`,
	},
	{
		Version:     3,
		Description: "relationships: action-goal links with provenance and review status",
		SQL: `
CREATE TABLE relationships (
    id           TEXT PRIMARY KEY,
    action_id    TEXT NOT NULL,
    goal_id      TEXT NOT NULL,
    contribution REAL NOT NULL DEFAULT 0,
    method       TEXT NOT NULL CHECK (method IN ('auto_inferred', 'user_confirmed', 'manual')),
    confidence   REAL NOT NULL,
    matched_on   TEXT,
    status       TEXT NOT NULL DEFAULT 'accepted' CHECK (status IN ('accepted', 'review')),

    created_at   INTEGER NOT NULL,
    updated_at   INTEGER NOT NULL,

    FOREIGN KEY (action_id) REFERENCES actions(id) ON DELETE CASCADE,
    FOREIGN KEY (goal_id)   REFERENCES goals(id)   ON DELETE CASCADE
);

CREATE UNIQUE INDEX idx_rel_pair ON relationships(action_id, goal_id);
CREATE INDEX idx_rel_action ON relationships(action_id);
CREATE INDEX idx_rel_goal   ON relationships(goal_id);
CREATE INDEX idx_rel_status ON relationships(status);
`,
	},
}

func (db *DB) migrate() error {
	// Create schema_versions table if it doesn't exist
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_versions (
			version     INTEGER PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at  INTEGER NOT NULL DEFAULT (strftime('%s', 'now') * 1000)
		)
	`)
	if err != nil {
		return fmt.Errorf("create schema_versions: %w", err)
	}

	for _, m := range migrations {
		var count int
		err := db.QueryRow("SELECT COUNT(*) FROM schema_versions WHERE version = ?", m.Version).Scan(&count)
		if err != nil {
			return fmt.Errorf("check migration %d: %w", m.Version, err)
		}
		if count > 0 {
			continue
		}

		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", m.Version, err)
		}

		if _, err := tx.Exec(m.SQL); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration %d (%s): %w", m.Version, m.Description, err)
		}

		if _, err := tx.Exec(
			"INSERT INTO schema_versions (version, description) VALUES (?, ?)",
			m.Version, m.Description,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("record migration %d: %w", m.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", m.Version, err)
		}
	}

	return nil
}

// SchemaVersion returns the current schema version.
func (db *DB) SchemaVersion() (int, error) {
	var version int
	err := db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_versions").Scan(&version)
	return version, err
}
