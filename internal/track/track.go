// Package track implements the multi-object tracking engine: per-track
// motion filtering, detection-to-track association, and track lifecycle
// management. Counting is layered on top in internal/count.
package track

import (
	"github.com/footfall-data/footfall.report/internal/geom"
)

// State is the lifecycle state of a track.
type State string

const (
	// StateTentative is a freshly spawned track that has not yet earned
	// trust. A single miss before confirmation deletes it.
	StateTentative State = "tentative"
	// StateConfirmed is a stable track eligible for crossing evaluation.
	StateConfirmed State = "confirmed"
	// StateLost is a confirmed track past its miss tolerance, retained for a
	// grace window so a late re-match keeps the identity.
	StateLost State = "lost"
	// StateDeleted is terminal; the id is never reissued.
	StateDeleted State = "deleted"
)

// Track is a persistent hypothesis of one person's identity across frames.
// Owned exclusively by the Manager; other components hold references only
// for the duration of one frame cycle.
type Track struct {
	ID    int64
	State State

	// Consecutive hit/miss counters. A hit resets Misses and vice versa.
	Hits   int
	Misses int

	// Age is frames since creation, counted on every cycle the track is
	// live regardless of matching.
	Age int

	FirstFrame    int64 // frame index at spawn
	LastFrame     int64 // last frame this track was advanced on
	LastSeenFrame int64 // last frame with a matched detection

	// Confidence of the most recent matched detection.
	Confidence float64

	// Embedding is the last-seen appearance vector, nil when the detector
	// never supplied one.
	Embedding []float64

	motion *MotionState

	// History holds recent centroid estimates, one per processed frame,
	// oldest first. Bounded; the manager evicts from the front.
	History []geom.Point

	// lostFrame is the frame index the track entered StateLost.
	lostFrame int64
}

// Box returns the current box estimate from the motion filter.
func (t *Track) Box() geom.Rect {
	return t.motion.Rect()
}

// Center returns the current centroid estimate.
func (t *Track) Center() geom.Point {
	return t.motion.Center()
}

// Velocity returns the per-frame centroid velocity estimate.
func (t *Track) Velocity() (vx, vy float64) {
	return t.motion.Velocity()
}

// Spread is the scalar positional uncertainty of the current estimate.
func (t *Track) Spread() float64 {
	return t.motion.Spread()
}

// TimeSinceUpdate is the number of consecutive frames without a matched
// detection.
func (t *Track) TimeSinceUpdate() int {
	return t.Misses
}

func (t *Track) appendHistory(p geom.Point, maxLen int) {
	t.History = append(t.History, p)
	if maxLen > 0 && len(t.History) > maxLen {
		t.History = t.History[len(t.History)-maxLen:]
	}
}
