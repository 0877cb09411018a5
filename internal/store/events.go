package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/footfall-data/footfall.report/internal/count"
)

// StoredEvent is a crossing event with its persistence context.
type StoredEvent struct {
	count.Event
	RunID string    `json:"run_id"`
	At    time.Time `json:"at"`
}

// InsertCountEvent persists one crossing event under a run.
func InsertCountEvent(db *sql.DB, runID string, ev *count.Event, at time.Time) error {
	_, err := db.Exec(`
		INSERT INTO count_events (event_id, run_id, track_id, direction, frame_index, x, y, ts_unix_nanos)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, ev.ID, runID, ev.TrackID, string(ev.Direction), ev.FrameIndex, ev.X, ev.Y, at.UnixNano())
	if err != nil {
		return fmt.Errorf("insert count event %s: %w", ev.ID, err)
	}
	return nil
}

// EventsForRun returns a run's events in frame order, up to limit.
func EventsForRun(db *sql.DB, runID string, limit int) ([]*StoredEvent, error) {
	rows, err := db.Query(`
		SELECT event_id, track_id, direction, frame_index, x, y, ts_unix_nanos
		FROM count_events
		WHERE run_id = ?
		ORDER BY frame_index ASC
		LIMIT ?
	`, runID, limit)
	if err != nil {
		return nil, fmt.Errorf("query events for run %s: %w", runID, err)
	}
	defer rows.Close()

	var out []*StoredEvent
	for rows.Next() {
		var ev StoredEvent
		var dir string
		var ts int64
		if err := rows.Scan(&ev.ID, &ev.TrackID, &dir, &ev.FrameIndex, &ev.X, &ev.Y, &ts); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		ev.Direction = count.Direction(dir)
		ev.RunID = runID
		ev.At = time.Unix(0, ts)
		out = append(out, &ev)
	}
	return out, rows.Err()
}

// IntervalCounts is one chart bucket: crossings per direction within an
// interval starting at Start.
type IntervalCounts struct {
	Start   time.Time `json:"start"`
	Entered int       `json:"entered"`
	Exited  int       `json:"exited"`
}

// CountsByInterval buckets a run's events into fixed intervals for charting.
func CountsByInterval(db *sql.DB, runID string, interval time.Duration) ([]IntervalCounts, error) {
	if interval <= 0 {
		return nil, fmt.Errorf("interval must be positive, got %v", interval)
	}
	bucket := interval.Nanoseconds()
	rows, err := db.Query(`
		SELECT (ts_unix_nanos / ?) * ? AS bucket,
		       SUM(CASE WHEN direction = 'entered' THEN 1 ELSE 0 END),
		       SUM(CASE WHEN direction = 'exited' THEN 1 ELSE 0 END)
		FROM count_events
		WHERE run_id = ?
		GROUP BY bucket
		ORDER BY bucket ASC
	`, bucket, bucket, runID)
	if err != nil {
		return nil, fmt.Errorf("query interval counts for run %s: %w", runID, err)
	}
	defer rows.Close()

	var out []IntervalCounts
	for rows.Next() {
		var start int64
		var ic IntervalCounts
		if err := rows.Scan(&start, &ic.Entered, &ic.Exited); err != nil {
			return nil, fmt.Errorf("scan interval counts: %w", err)
		}
		ic.Start = time.Unix(0, start)
		out = append(out, ic)
	}
	return out, rows.Err()
}
