package store

import (
	"database/sql"
	"time"

	"github.com/footfall-data/footfall.report/internal/count"
	"github.com/footfall-data/footfall.report/internal/track"
)

// Recorder binds a run id to the database so the pipeline can persist
// events and track summaries without knowing about runs. It satisfies the
// pipeline's sink interfaces.
type Recorder struct {
	db    *sql.DB
	runID string
	now   func() time.Time
}

// NewRecorder builds a recorder for one run.
func NewRecorder(db *sql.DB, runID string) *Recorder {
	return &Recorder{db: db, runID: runID, now: time.Now}
}

// RunID returns the run this recorder writes under.
func (r *Recorder) RunID() string {
	return r.runID
}

// PersistEvent writes one crossing event with a wall-clock stamp.
func (r *Recorder) PersistEvent(ev *count.Event) error {
	return InsertCountEvent(r.db, r.runID, ev, r.now())
}

// PersistTrackSummary records a track the moment it leaves the live set.
func (r *Recorder) PersistTrackSummary(tr *track.Track) error {
	return InsertTrackSummary(r.db, r.runID, tr)
}
