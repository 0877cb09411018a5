package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/footfall-data/footfall.report/internal/count"
	"github.com/footfall-data/footfall.report/internal/detect"
	"github.com/footfall-data/footfall.report/internal/geom"
	"github.com/footfall-data/footfall.report/internal/track"
)

// EventSink receives every crossing event as it is emitted. Implementations
// live outside the domain packages (e.g. internal/store).
type EventSink interface {
	PersistEvent(ev *count.Event) error
}

// TrackSink receives a summary of every track the moment it leaves the live
// set.
type TrackSink interface {
	PersistTrackSummary(tr *track.Track) error
}

// Config holds the pipeline's dependencies and tuning.
type Config struct {
	MinConfidence float64
	Cost          track.CostConfig
	Manager       track.ManagerConfig
	Boundary      *geom.Boundary

	EventSink EventSink // optional
	TrackSink TrackSink // optional
}

// recentEventCap bounds the in-memory event ring served by Snapshot.
const recentEventCap = 50

// Pipeline drives the sequential frame cycle. Step and Run mutate state and
// must not be called concurrently; Snapshot is safe to call from other
// goroutines between cycles.
type Pipeline struct {
	cfg     Config
	manager *track.Manager
	counter *count.Counter

	// mu guards the published state below; the counter itself is only
	// touched from Step.
	mu        sync.RWMutex
	frames    int64
	lastFrame int64
	dropped   int64
	totals    count.Totals
	recent    []count.Event
}

// New builds a pipeline. The boundary is required.
func New(cfg Config) (*Pipeline, error) {
	if cfg.Boundary == nil {
		return nil, errors.New("pipeline: boundary is required")
	}
	return &Pipeline{
		cfg:     cfg,
		manager: track.NewManager(cfg.Manager),
		counter: count.NewCounter(cfg.Boundary),
	}, nil
}

// Manager exposes the live track set for read-only consumers (API, tests).
func (p *Pipeline) Manager() *track.Manager {
	return p.manager
}

// FrameResult is the outcome of one frame cycle.
type FrameResult struct {
	FrameIndex int64          `json:"frame"`
	Events     []*count.Event `json:"events,omitempty"`
	Totals     count.Totals   `json:"totals"`
	Counts     track.Counts   `json:"track_counts"`
	Dropped    int            `json:"dropped,omitempty"` // malformed or low-confidence detections
}

// Step runs one complete frame cycle: validate, predict, associate, update
// lifecycle, sweep, then evaluate crossings for confirmed tracks. The same
// detection set fed twice produces the same result both times apart from
// the per-frame bookkeeping.
func (p *Pipeline) Step(frame detect.Frame) FrameResult {
	valid := detect.FilterValid(frame.Detections, p.cfg.MinConfidence, func(d detect.Detection, err error) {
		opsf("frame %d: dropping malformed detection: %v", frame.Index, err)
	})
	dropped := len(frame.Detections) - len(valid)

	p.manager.PredictAll(frame.Index)
	live := p.manager.Live()

	assoc := track.Associate(live, valid, p.cfg.Cost)
	for _, m := range assoc.Matches {
		p.manager.Update(m.Track, valid[m.Detection], frame.Index)
	}
	for _, di := range assoc.UnmatchedDetections {
		if tr := p.manager.Spawn(valid[di], frame.Index); tr == nil {
			diagf("frame %d: at track capacity, detection not tracked", frame.Index)
		}
	}
	for _, tr := range assoc.UnmatchedTracks {
		p.manager.MarkMissed(tr)
	}

	for _, tr := range p.manager.Sweep(frame.Index) {
		p.counter.Forget(tr.ID)
		if p.cfg.TrackSink != nil {
			if err := p.cfg.TrackSink.PersistTrackSummary(tr); err != nil {
				opsf("frame %d: persist track %d summary: %v", frame.Index, tr.ID, err)
			}
		}
	}

	var events []*count.Event
	for _, tr := range p.manager.Confirmed() {
		ev := p.counter.Observe(tr.ID, tr.Center(), frame.Index)
		if ev == nil {
			continue
		}
		events = append(events, ev)
		diagf("frame %d: track %d %s at (%.1f, %.1f)", frame.Index, ev.TrackID, ev.Direction, ev.X, ev.Y)
		if p.cfg.EventSink != nil {
			if err := p.cfg.EventSink.PersistEvent(ev); err != nil {
				opsf("frame %d: persist event %s: %v", frame.Index, ev.ID, err)
			}
		}
	}

	res := FrameResult{
		FrameIndex: frame.Index,
		Events:     events,
		Totals:     p.counter.Totals(),
		Counts:     p.manager.CountsByState(),
		Dropped:    dropped,
	}
	tracef("frame %d: %d detections (%d dropped), %d live tracks, %d events",
		frame.Index, len(frame.Detections), dropped, res.Counts.Total(), len(events))

	p.mu.Lock()
	p.frames++
	p.lastFrame = frame.Index
	p.dropped += int64(dropped)
	p.totals = res.Totals
	for _, ev := range events {
		p.recent = append(p.recent, *ev)
	}
	if n := len(p.recent); n > recentEventCap {
		p.recent = append(p.recent[:0], p.recent[n-recentEventCap:]...)
	}
	p.mu.Unlock()

	return res
}

// Summary is the end-of-run report.
type Summary struct {
	FramesProcessed   int64        `json:"frames_processed"`
	LastFrame         int64        `json:"last_frame"`
	DroppedDetections int64        `json:"dropped_detections"`
	Totals            count.Totals `json:"totals"`
}

// Run consumes frames from src until the stream ends or ctx is cancelled.
// Cancellation is honoured between cycles, never mid-cycle, so counts stay
// consistent. A stream error stops the run and is returned alongside the
// summary of the frames processed so far.
func (p *Pipeline) Run(ctx context.Context, src detect.Source) (Summary, error) {
	for {
		if err := ctx.Err(); err != nil {
			return p.Summarize(), err
		}
		frame, err := src.Next()
		if err != nil {
			if errors.Is(err, detect.ErrEndOfStream) {
				return p.Summarize(), nil
			}
			return p.Summarize(), fmt.Errorf("read frame: %w", err)
		}
		p.Step(frame)
	}
}

// Summarize reports the run so far.
func (p *Pipeline) Summarize() Summary {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return Summary{
		FramesProcessed:   p.frames,
		LastFrame:         p.lastFrame,
		DroppedDetections: p.dropped,
		Totals:            p.totals,
	}
}

// Snapshot is the live state served to dashboards.
type Snapshot struct {
	FrameIndex int64         `json:"frame"`
	Entered    int           `json:"entered"`
	Exited     int           `json:"exited"`
	Inside     int           `json:"inside"`
	Counts     track.Counts  `json:"track_counts"`
	Recent     []count.Event `json:"recent_events"`
}

// Snapshot returns the current counts and the most recent crossing events.
func (p *Pipeline) Snapshot() Snapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()

	recent := make([]count.Event, len(p.recent))
	copy(recent, p.recent)
	return Snapshot{
		FrameIndex: p.lastFrame,
		Entered:    p.totals.Entered,
		Exited:     p.totals.Exited,
		Inside:     p.totals.Inside(),
		Counts:     p.manager.CountsByState(),
		Recent:     recent,
	}
}
