package store

import (
	"database/sql"
	"fmt"

	"github.com/footfall-data/footfall.report/internal/track"
)

// TrackSummary is the persisted record of one finished track.
type TrackSummary struct {
	RunID         string  `json:"run_id"`
	TrackID       int64   `json:"track_id"`
	FirstFrame    int64   `json:"first_frame"`
	LastSeenFrame int64   `json:"last_seen_frame"`
	Age           int64   `json:"age"`
	Confidence    float64 `json:"confidence"`
}

// InsertTrackSummary records a finished track. Upserts so a re-run of the
// same cycle cannot fail on the primary key.
func InsertTrackSummary(db *sql.DB, runID string, tr *track.Track) error {
	_, err := db.Exec(`
		INSERT INTO track_summaries (run_id, track_id, first_frame, last_seen_frame, age, confidence)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id, track_id) DO UPDATE SET
			first_frame = excluded.first_frame,
			last_seen_frame = excluded.last_seen_frame,
			age = excluded.age,
			confidence = excluded.confidence
	`, runID, tr.ID, tr.FirstFrame, tr.LastSeenFrame, tr.Age, tr.Confidence)
	if err != nil {
		return fmt.Errorf("insert track summary %d: %w", tr.ID, err)
	}
	return nil
}

// TrackSummariesForRun returns a run's finished tracks ordered by id.
func TrackSummariesForRun(db *sql.DB, runID string) ([]*TrackSummary, error) {
	rows, err := db.Query(`
		SELECT run_id, track_id, first_frame, last_seen_frame, age, confidence
		FROM track_summaries
		WHERE run_id = ?
		ORDER BY track_id ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query track summaries for run %s: %w", runID, err)
	}
	defer rows.Close()

	var out []*TrackSummary
	for rows.Next() {
		var ts TrackSummary
		if err := rows.Scan(&ts.RunID, &ts.TrackID, &ts.FirstFrame, &ts.LastSeenFrame, &ts.Age, &ts.Confidence); err != nil {
			return nil, fmt.Errorf("scan track summary: %w", err)
		}
		out = append(out, &ts)
	}
	return out, rows.Err()
}
