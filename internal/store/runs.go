package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Run is one counting session against a single detection stream.
type Run struct {
	ID              string     `json:"id"`
	Source          string     `json:"source"`
	ConfigJSON      string     `json:"config_json"`
	StartedAt       time.Time  `json:"started_at"`
	FinishedAt      *time.Time `json:"finished_at,omitempty"`
	FramesProcessed int64      `json:"frames_processed"`
	Entered         int        `json:"entered"`
	Exited          int        `json:"exited"`
}

// CreateRun records the start of a counting session and returns its id.
func CreateRun(db *sql.DB, source, configJSON string, startedAt time.Time) (string, error) {
	id := uuid.NewString()
	_, err := db.Exec(`
		INSERT INTO runs (run_id, source, config_json, started_unix_nanos)
		VALUES (?, ?, ?, ?)
	`, id, source, configJSON, startedAt.UnixNano())
	if err != nil {
		return "", fmt.Errorf("insert run: %w", err)
	}
	return id, nil
}

// FinishRun stamps the end of a run with its final counters.
func FinishRun(db *sql.DB, runID string, finishedAt time.Time, frames int64, entered, exited int) error {
	res, err := db.Exec(`
		UPDATE runs
		SET finished_unix_nanos = ?, frames_processed = ?, entered = ?, exited = ?
		WHERE run_id = ?
	`, finishedAt.UnixNano(), frames, entered, exited, runID)
	if err != nil {
		return fmt.Errorf("finish run %s: %w", runID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("finish run %s: %w", runID, err)
	}
	if n == 0 {
		return fmt.Errorf("finish run %s: no such run", runID)
	}
	return nil
}

// GetRun loads one run by id.
func GetRun(db *sql.DB, runID string) (*Run, error) {
	row := db.QueryRow(`
		SELECT run_id, source, config_json, started_unix_nanos, finished_unix_nanos,
		       frames_processed, entered, exited
		FROM runs WHERE run_id = ?
	`, runID)

	var r Run
	var started int64
	var finished sql.NullInt64
	err := row.Scan(&r.ID, &r.Source, &r.ConfigJSON, &started, &finished,
		&r.FramesProcessed, &r.Entered, &r.Exited)
	if err != nil {
		return nil, fmt.Errorf("get run %s: %w", runID, err)
	}
	r.StartedAt = time.Unix(0, started)
	if finished.Valid {
		t := time.Unix(0, finished.Int64)
		r.FinishedAt = &t
	}
	return &r, nil
}

// ListRuns returns runs newest first, up to limit.
func ListRuns(db *sql.DB, limit int) ([]*Run, error) {
	rows, err := db.Query(`
		SELECT run_id, source, config_json, started_unix_nanos, finished_unix_nanos,
		       frames_processed, entered, exited
		FROM runs ORDER BY started_unix_nanos DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var out []*Run
	for rows.Next() {
		var r Run
		var started int64
		var finished sql.NullInt64
		if err := rows.Scan(&r.ID, &r.Source, &r.ConfigJSON, &started, &finished,
			&r.FramesProcessed, &r.Entered, &r.Exited); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		r.StartedAt = time.Unix(0, started)
		if finished.Valid {
			t := time.Unix(0, finished.Int64)
			r.FinishedAt = &t
		}
		out = append(out, &r)
	}
	return out, rows.Err()
}
