// Package scanlog persists autofocus scan telemetry to SQLite for offline
// tuning analysis. One row is written per completed scan or simulation run,
// with the per-frame samples stored as JSON.
package scanlog

import (
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Sample is one frame of a recorded run.
type Sample struct {
	Frame    int     `json:"frame"`
	Lens     float64 `json:"lens"`
	Contrast float64 `json:"contrast"`
	Phase    float64 `json:"phase"`
	Conf     float64 `json:"conf"`
}

// ScanRun is one persisted autofocus run.
type ScanRun struct {
	RunID            string
	StartedUnixNanos int64
	Mode             string
	Speed            string
	FocusRange       string
	Outcome          string
	PeakDioptre      float64
	LensSetting      int
	Frames           int
	Samples          []Sample
}

// NewRunID allocates a fresh run identifier.
func NewRunID() string {
	return uuid.NewString()
}

// Store wraps the scan telemetry database.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at path and applies any
// pending schema migrations.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open scan log %q: %w", path, err)
	}

	if err := migrateUp(db); err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func migrateUp(db *sql.DB) error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to load embedded migrations: %w", err)
	}

	driver, err := migratesqlite.WithInstance(db, &migratesqlite.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("failed to create migrator: %w", err)
	}
	// Note: m is not closed here because that would close the underlying
	// DB connection.

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration up failed: %w", err)
	}

	return nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// RecordScan inserts one run.
func (s *Store) RecordScan(run *ScanRun) error {
	if run.RunID == "" {
		run.RunID = NewRunID()
	}

	samples, err := json.Marshal(run.Samples)
	if err != nil {
		return fmt.Errorf("failed to encode samples: %w", err)
	}

	_, err = s.db.Exec(`
		INSERT INTO af_scans (
			run_id, started_unix_nanos, mode, speed, focus_range,
			outcome, peak_dioptre, lens_setting, frames, samples_json
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.RunID, run.StartedUnixNanos, run.Mode, run.Speed, run.FocusRange,
		run.Outcome, run.PeakDioptre, run.LensSetting, run.Frames, string(samples))
	if err != nil {
		return fmt.Errorf("failed to insert scan run: %w", err)
	}

	return nil
}

// ListScans returns up to limit runs, most recent first.
func (s *Store) ListScans(limit int) ([]ScanRun, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := s.db.Query(`
		SELECT run_id, started_unix_nanos, mode, speed, focus_range,
		       outcome, peak_dioptre, lens_setting, frames, samples_json
		FROM af_scans
		ORDER BY started_unix_nanos DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query scan runs: %w", err)
	}
	defer rows.Close()

	var runs []ScanRun
	for rows.Next() {
		var run ScanRun
		var samples string
		if err := rows.Scan(&run.RunID, &run.StartedUnixNanos, &run.Mode,
			&run.Speed, &run.FocusRange, &run.Outcome, &run.PeakDioptre,
			&run.LensSetting, &run.Frames, &samples); err != nil {
			return nil, fmt.Errorf("failed to scan run row: %w", err)
		}
		if err := json.Unmarshal([]byte(samples), &run.Samples); err != nil {
			return nil, fmt.Errorf("failed to decode samples for %s: %w", run.RunID, err)
		}
		runs = append(runs, run)
	}

	return runs, rows.Err()
}
