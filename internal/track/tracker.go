package track

import (
	"fmt"
	"sort"
	"sync"

	"github.com/footfall-data/footfall.report/internal/detect"
)

// ManagerConfig holds the track lifecycle parameters.
type ManagerConfig struct {
	MaxTracks       int // cap on live tracks; surplus detections are not spawned
	HitsToConfirm   int // consecutive hits promoting Tentative to Confirmed
	MaxMisses       int // consecutive misses a Confirmed track tolerates before Lost
	LostGraceFrames int // frames a Lost track coasts before Deleted
	HistoryLength   int // bounded centroid history per track

	PositionNoiseWeight float64 // motion filter process noise scale
	VelocityNoiseWeight float64
}

// DefaultManagerConfig returns the stock lifecycle parameters.
func DefaultManagerConfig() ManagerConfig {
	return ManagerConfig{
		MaxTracks:           200,
		HitsToConfirm:       3,
		MaxMisses:           30,
		LostGraceFrames:     30,
		HistoryLength:       50,
		PositionNoiseWeight: DefaultPositionWeight,
		VelocityNoiseWeight: DefaultVelocityWeight,
	}
}

// Counts is the live track census by lifecycle state.
type Counts struct {
	Tentative int `json:"tentative"`
	Confirmed int `json:"confirmed"`
	Lost      int `json:"lost"`
}

// Total is the number of live tracks.
func (c Counts) Total() int {
	return c.Tentative + c.Confirmed + c.Lost
}

// Manager owns the live track set: creation, identity numbering, lifecycle
// transitions, and deletion. Track ids increase monotonically and are never
// reissued for the manager's lifetime.
//
// All mutation happens inside one frame cycle driven by the pipeline;
// readers (API, metrics) take the read lock between cycles.
type Manager struct {
	cfg       ManagerConfig
	predictor *Predictor

	tracks map[int64]*Track
	nextID int64

	mu sync.RWMutex
}

// NewManager builds a manager with its own motion predictor.
func NewManager(cfg ManagerConfig) *Manager {
	return &Manager{
		cfg:       cfg,
		predictor: NewPredictor(cfg.PositionNoiseWeight, cfg.VelocityNoiseWeight),
		tracks:    make(map[int64]*Track),
		nextID:    1,
	}
}

// PredictAll runs the motion predict step on every live track and stamps the
// frame. Called once at the top of each cycle, before association.
func (m *Manager) PredictAll(frame int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, tr := range m.tracks {
		m.predictor.Predict(tr.motion)
		tr.Age++
		tr.LastFrame = frame
	}
}

// Spawn creates a Tentative track from an unmatched detection. Returns nil
// when the live set is at MaxTracks.
func (m *Manager) Spawn(d detect.Detection, frame int64) *Track {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.cfg.MaxTracks > 0 && len(m.tracks) >= m.cfg.MaxTracks {
		return nil
	}

	tr := &Track{
		ID:            m.nextID,
		State:         StateTentative,
		Hits:          1,
		FirstFrame:    frame,
		LastFrame:     frame,
		LastSeenFrame: frame,
		Confidence:    d.Confidence,
		motion:        m.predictor.Initiate(d.Box),
	}
	m.nextID++
	if d.HasEmbedding() {
		tr.Embedding = append([]float64(nil), d.Embedding...)
	}
	tr.appendHistory(tr.Center(), m.cfg.HistoryLength)

	m.tracks[tr.ID] = tr
	return tr
}

// Update applies a matched detection to a track: filter update, hit
// bookkeeping, and promotion. Calling it on a Deleted track is a programming
// error and panics.
func (m *Manager) Update(tr *Track, d detect.Detection, frame int64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if tr.State == StateDeleted {
		panic(fmt.Sprintf("track: update on deleted track %d", tr.ID))
	}

	m.predictor.Update(tr.motion, d.Box)
	tr.Hits++
	tr.Misses = 0
	tr.LastFrame = frame
	tr.LastSeenFrame = frame
	tr.Confidence = d.Confidence
	if d.HasEmbedding() {
		tr.Embedding = append(tr.Embedding[:0], d.Embedding...)
	}
	tr.appendHistory(tr.Center(), m.cfg.HistoryLength)

	switch tr.State {
	case StateTentative:
		if tr.Hits >= m.cfg.HitsToConfirm {
			tr.State = StateConfirmed
		}
	case StateLost:
		// Late re-match keeps the identity; no new track is minted.
		tr.State = StateConfirmed
	}
}

// MarkMissed records a frame without a matched detection. A Tentative track
// dies immediately; Confirmed and Lost tracks keep coasting on prediction
// and record the predicted centroid so crossing evaluation stays continuous.
func (m *Manager) MarkMissed(tr *Track) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if tr.State == StateDeleted {
		panic(fmt.Sprintf("track: markMissed on deleted track %d", tr.ID))
	}

	tr.Misses++
	tr.Hits = 0

	if tr.State == StateTentative {
		tr.State = StateDeleted
		return
	}
	tr.appendHistory(tr.Center(), m.cfg.HistoryLength)
}

// Sweep advances lifecycle timers: Confirmed past the miss tolerance becomes
// Lost, Lost past the grace window becomes Deleted, and Deleted tracks leave
// the live set. It returns the removed tracks, sorted by ascending id, so
// callers can release per-track state and persist summaries. Ids of removed
// tracks are never reused.
func (m *Manager) Sweep(frame int64) []*Track {
	m.mu.Lock()
	defer m.mu.Unlock()

	var removed []*Track
	for id, tr := range m.tracks {
		switch tr.State {
		case StateConfirmed:
			if tr.Misses > m.cfg.MaxMisses {
				tr.State = StateLost
				tr.lostFrame = frame
			}
		case StateLost:
			if frame-tr.lostFrame >= int64(m.cfg.LostGraceFrames) {
				tr.State = StateDeleted
			}
		}
		if tr.State == StateDeleted {
			delete(m.tracks, id)
			removed = append(removed, tr)
		}
	}
	sort.Slice(removed, func(i, j int) bool { return removed[i].ID < removed[j].ID })
	return removed
}

// Live returns all live tracks sorted by ascending id. The slice is fresh;
// the pointed-to tracks are the manager's own.
func (m *Manager) Live() []*Track {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*Track, 0, len(m.tracks))
	for _, tr := range m.tracks {
		out = append(out, tr)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Confirmed returns the Confirmed tracks sorted by ascending id.
func (m *Manager) Confirmed() []*Track {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*Track, 0, len(m.tracks))
	for _, tr := range m.tracks {
		if tr.State == StateConfirmed {
			out = append(out, tr)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Get returns a live track by id, or nil.
func (m *Manager) Get(id int64) *Track {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.tracks[id]
}

// CountsByState returns the live census.
func (m *Manager) CountsByState() Counts {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var c Counts
	for _, tr := range m.tracks {
		switch tr.State {
		case StateTentative:
			c.Tentative++
		case StateConfirmed:
			c.Confirmed++
		case StateLost:
			c.Lost++
		}
	}
	return c
}

// NextID exposes the next identity number; useful for persistence and for
// asserting that ids are never reused.
func (m *Manager) NextID() int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.nextID
}
