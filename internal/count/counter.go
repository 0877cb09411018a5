// Package count converts confirmed track trajectories into crossing events
// against a configured boundary. It owns the per-track side memory that
// guarantees at most one event per physical crossing.
package count

import (
	"github.com/google/uuid"

	"github.com/footfall-data/footfall.report/internal/geom"
)

// Direction of a crossing relative to the boundary's positive side.
type Direction string

const (
	// DirectionEntered is a negative-to-positive transition.
	DirectionEntered Direction = "entered"
	// DirectionExited is a positive-to-negative transition.
	DirectionExited Direction = "exited"
)

// Event is one confirmed crossing. Immutable once emitted.
type Event struct {
	ID         string    `json:"id"` // uuid
	TrackID    int64     `json:"track_id"`
	Direction  Direction `json:"direction"`
	FrameIndex int64     `json:"frame"`
	X          float64   `json:"x"`
	Y          float64   `json:"y"`
}

// Totals are the running crossing counts.
type Totals struct {
	Entered int `json:"entered"`
	Exited  int `json:"exited"`
}

// Inside is the net occupancy implied by the totals. It can go negative
// when people were inside before counting started.
func (t Totals) Inside() int {
	return t.Entered - t.Exited
}

// Counter evaluates confirmed track centroids against one boundary. Not
// safe for concurrent use; the pipeline drives it from the sequential frame
// cycle.
type Counter struct {
	boundary *geom.Boundary
	totals   Totals

	// lastSide remembers the last committed (non-neutral) side per track.
	// A crossing fires only when the committed side flips, so jitter inside
	// the hysteresis band and repeated frames on the same side never double
	// count.
	lastSide map[int64]geom.Side
}

// NewCounter builds a counter for the given boundary.
func NewCounter(boundary *geom.Boundary) *Counter {
	return &Counter{
		boundary: boundary,
		lastSide: make(map[int64]geom.Side),
	}
}

// Observe evaluates one confirmed track's centroid at the given frame and
// returns an event if its committed boundary side flipped. Runs once per
// track per frame; multiple detections in a frame cannot double-trigger
// because the track carries a single fused estimate.
func (c *Counter) Observe(trackID int64, p geom.Point, frame int64) *Event {
	side := c.boundary.Side(p)
	if side == geom.SideNeutral {
		// Inside the band: no commitment either way.
		return nil
	}

	prev, seen := c.lastSide[trackID]
	c.lastSide[trackID] = side
	if !seen || prev == side {
		return nil
	}

	ev := &Event{
		ID:         uuid.NewString(),
		TrackID:    trackID,
		FrameIndex: frame,
		X:          p.X,
		Y:          p.Y,
	}
	if side == geom.SidePositive {
		ev.Direction = DirectionEntered
		c.totals.Entered++
	} else {
		ev.Direction = DirectionExited
		c.totals.Exited++
	}
	return ev
}

// Forget drops the side memory for a track that left the live set. Without
// this the memory would grow with every identity ever seen.
func (c *Counter) Forget(trackID int64) {
	delete(c.lastSide, trackID)
}

// Totals returns the running per-direction counts.
func (c *Counter) Totals() Totals {
	return c.totals
}
