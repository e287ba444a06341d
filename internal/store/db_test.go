package store

import (
	"testing"
)

func TestOpenMemory(t *testing.T) {
	db, err := OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	defer db.Close()

	if db.Path != ":memory:" {
		t.Errorf("Path = %q, want :memory:", db.Path)
	}
}

func TestSchemaVersion(t *testing.T) {
	db, err := OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	defer db.Close()

	v, err := db.SchemaVersion()
	if err != nil {
		t.Fatalf("SchemaVersion: %v", err)
	}
	if v != 3 {
		t.Errorf("SchemaVersion = %d, want 3", v)
	}
}

func TestTablesExist(t *testing.T) {
	db, err := OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	defer db.Close()

	tables := []string{"schema_versions", "actions", "goals", "relationships"}
	for _, table := range tables {
		var name string
		err := db.QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?", table,
		).Scan(&name)
		if err != nil {
			t.Errorf("table %q not found: %v", table, err)
		}
	}
}

func TestRelationshipConstraints(t *testing.T) {
	db, err := OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	defer db.Close()

	// method is constrained to the three provenance values
	_, err = db.Exec(`
		INSERT INTO relationships (id, action_id, goal_id, method, confidence, created_at, updated_at)
		VALUES ('r1', 'a1', 'g1', 'guessed', 0.5, 0, 0)
	`)
	if err == nil {
		t.Error("insert with invalid method succeeded, want CHECK violation")
	}

	// foreign keys are enforced
	_, err = db.Exec(`
		INSERT INTO relationships (id, action_id, goal_id, method, confidence, created_at, updated_at)
		VALUES ('r1', 'missing', 'missing', 'manual', 1.0, 0, 0)
	`)
	if err == nil {
		t.Error("insert with dangling references succeeded, want FK violation")
	}
}
