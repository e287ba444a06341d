// Package importer loads logged actions from CSV exports of other trackers.
package importer

import (
	"encoding/csv"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/telos-app/telos/internal/match"
	"github.com/telos-app/telos/internal/store"
)

// Result summarizes an import run.
type Result struct {
	Imported int
	Skipped  int
}

// timeLayouts are tried in order when parsing the logged_at column.
var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ImportFile reads a CSV file of actions and persists them. The first row
// must be a header naming at least the title column; logged_at, description,
// and measurements are recognized when present. Rows that fail to parse are
// skipped and logged rather than aborting the run.
func ImportFile(db *store.DB, path string) (Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return Result{}, fmt.Errorf("open csv: %w", err)
	}
	defer f.Close()

	return Import(db, f)
}

// Import reads CSV action rows from r and persists them.
func Import(db *store.DB, r io.Reader) (Result, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1 // rows may omit trailing columns

	header, err := reader.Read()
	if err != nil {
		return Result{}, fmt.Errorf("read csv header: %w", err)
	}
	cols, err := mapColumns(header)
	if err != nil {
		return Result{}, err
	}

	var res Result
	for lineNo := 2; ; lineNo++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			log.Printf("import: line %d: %v, skipping", lineNo, err)
			res.Skipped++
			continue
		}

		action, err := parseRecord(cols, record)
		if err != nil {
			log.Printf("import: line %d: %v, skipping", lineNo, err)
			res.Skipped++
			continue
		}
		if err := db.CreateAction(&action); err != nil {
			return res, fmt.Errorf("line %d: %w", lineNo, err)
		}
		res.Imported++
	}

	log.Printf("import: %d actions imported, %d rows skipped", res.Imported, res.Skipped)
	return res, nil
}

// columns holds the index of each recognized header column, -1 when absent.
type columns struct {
	title        int
	description  int
	loggedAt     int
	measurements int
}

func mapColumns(header []string) (columns, error) {
	cols := columns{title: -1, description: -1, loggedAt: -1, measurements: -1}
	for i, name := range header {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "title":
			cols.title = i
		case "description":
			cols.description = i
		case "logged_at", "date", "timestamp":
			cols.loggedAt = i
		case "measurements":
			cols.measurements = i
		}
	}
	if cols.title == -1 {
		return cols, fmt.Errorf("csv header missing title column")
	}
	return cols, nil
}

func parseRecord(cols columns, record []string) (match.Action, error) {
	field := func(idx int) string {
		if idx < 0 || idx >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[idx])
	}

	title := field(cols.title)
	if title == "" {
		return match.Action{}, fmt.Errorf("empty title")
	}

	loggedAt := time.Now()
	if raw := field(cols.loggedAt); raw != "" {
		ts, err := parseTime(raw)
		if err != nil {
			return match.Action{}, err
		}
		loggedAt = ts
	}

	measurements, err := ParseMeasurements(field(cols.measurements))
	if err != nil {
		return match.Action{}, err
	}

	return match.Action{
		Title:        title,
		Description:  field(cols.description),
		LoggedAt:     loggedAt,
		Measurements: measurements,
	}, nil
}

func parseTime(raw string) (time.Time, error) {
	for _, layout := range timeLayouts {
		if ts, err := time.Parse(layout, raw); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", raw)
}

// ParseMeasurements parses a "km=5.2;minutes=30" style measurements string.
// It is shared with the CLI's --measure flag.
func ParseMeasurements(raw string) (map[string]float64, error) {
	if raw == "" {
		return nil, nil
	}

	out := make(map[string]float64)
	for _, pair := range strings.Split(raw, ";") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		key, val, found := strings.Cut(pair, "=")
		if !found {
			return nil, fmt.Errorf("bad measurement %q", pair)
		}
		f, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		if err != nil {
			return nil, fmt.Errorf("bad measurement value %q", pair)
		}
		out[strings.TrimSpace(key)] = f
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out, nil
}
