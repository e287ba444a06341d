package cli

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/telos-app/telos/internal/engine"
	"github.com/telos-app/telos/internal/importer"
	"github.com/telos-app/telos/internal/match"
	"github.com/telos-app/telos/internal/store"
)

// openDB is a helper that opens the database for CLI commands.
func openDB() (*store.DB, error) {
	dbPath := os.Getenv("TELOS_DB")
	if dbPath == "" {
		var err error
		dbPath, err = store.DefaultDBPath()
		if err != nil {
			return nil, err
		}
	}
	return store.Open(dbPath)
}

// --- log command ---

var (
	logDescription string
	logAt          string
	logMeasure     string
	logQuiet       bool
)

var logCmd = &cobra.Command{
	Use:   "log [title]",
	Short: "Log an action",
	Long:  "Log something you did. Measurements feed goal progress, e.g. --measure km=5.2;minutes=30.",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runLog,
}

func init() {
	logCmd.Flags().StringVarP(&logDescription, "desc", "d", "", "Longer description of the action")
	logCmd.Flags().StringVar(&logAt, "at", "", "When it happened (RFC3339 or YYYY-MM-DD, default now)")
	logCmd.Flags().StringVarP(&logMeasure, "measure", "m", "", "Measurements as unit=value pairs separated by ;")
	logCmd.Flags().BoolVarP(&logQuiet, "quiet", "q", false, "Skip goal suggestions after logging")

	importCmd.Flags().BoolVar(&importDryRun, "dry-run", false, "Parse the file without writing anything")
}

func runLog(cmd *cobra.Command, args []string) error {
	title := strings.Join(args, " ")

	loggedAt := time.Now()
	if logAt != "" {
		ts, err := parseCLITime(logAt)
		if err != nil {
			return err
		}
		loggedAt = ts
	}

	measurements, err := importer.ParseMeasurements(logMeasure)
	if err != nil {
		return fmt.Errorf("parse --measure: %w", err)
	}

	db, err := openDB()
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer db.Close()

	action := match.Action{
		Title:        title,
		Description:  logDescription,
		LoggedAt:     loggedAt,
		Measurements: measurements,
	}
	if err := db.CreateAction(&action); err != nil {
		return fmt.Errorf("save action: %w", err)
	}
	fmt.Printf("logged %s (%s)\n", action.Title, action.ID)

	if logQuiet {
		return nil
	}

	// Suggest goals this action might contribute to.
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	suggestions, err := engine.New(db).InferForAction(ctx, action.ID)
	if err != nil {
		return fmt.Errorf("suggest goals: %w", err)
	}
	if len(suggestions) == 0 {
		return nil
	}

	fmt.Println("\nlikely contributes to:")
	for _, rel := range suggestions {
		goal, err := db.GetGoal(rel.GoalID)
		if err != nil || goal == nil {
			continue
		}
		fmt.Printf("  %s (+%.2g %s, confidence %.2f)\n", goal.Title, rel.Contribution, goal.TargetUnit, rel.Confidence)
	}
	fmt.Println("\nuse `telos assign` to record one of these.")
	return nil
}

// --- import command ---

var importDryRun bool

var importCmd = &cobra.Command{
	Use:   "import [file.csv]",
	Short: "Import actions from a CSV export",
	Long:  "Import actions from a CSV file. The header must name a title column; logged_at, description, and measurements columns are picked up when present.",
	Args:  cobra.ExactArgs(1),
	RunE:  runImport,
}

func runImport(cmd *cobra.Command, args []string) error {
	var db *store.DB
	var err error
	if importDryRun {
		db, err = store.OpenMemory()
	} else {
		db, err = openDB()
	}
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer db.Close()

	res, err := importer.ImportFile(db, args[0])
	if err != nil {
		return fmt.Errorf("import: %w", err)
	}

	verb := "imported"
	if importDryRun {
		verb = "would import"
	}
	fmt.Printf("%s %d actions (%d rows skipped)\n", verb, res.Imported, res.Skipped)
	return nil
}

// parseCLITime accepts RFC3339 or a bare date.
func parseCLITime(raw string) (time.Time, error) {
	if ts, err := time.Parse(time.RFC3339, raw); err == nil {
		return ts, nil
	}
	if ts, err := time.Parse("2006-01-02", raw); err == nil {
		return ts, nil
	}
	return time.Time{}, fmt.Errorf("unrecognized time %q (want RFC3339 or YYYY-MM-DD)", raw)
}
