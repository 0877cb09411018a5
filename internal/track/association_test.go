package track

import (
	"testing"

	"github.com/footfall-data/footfall.report/internal/detect"
	"github.com/footfall-data/footfall.report/internal/geom"
)

func costConfig() CostConfig {
	return CostConfig{AppearanceWeight: 0.3, MaxMatchCost: 0.7}
}

func spawnAt(t *testing.T, m *Manager, box geom.Rect, frame int64) *Track {
	t.Helper()
	tr := m.Spawn(detect.Detection{Box: box, Confidence: 0.9}, frame)
	if tr == nil {
		t.Fatal("spawn returned nil")
	}
	return tr
}

func TestAssociate_EmptySides(t *testing.T) {
	m := NewManager(DefaultManagerConfig())
	tr := spawnAt(t, m, geom.Rect{X: 0, Y: 0, Width: 10, Height: 10}, 1)

	// No detections: the track is unmatched, nothing errors.
	a := Associate([]*Track{tr}, nil, costConfig())
	if len(a.Matches) != 0 || len(a.UnmatchedTracks) != 1 || len(a.UnmatchedDetections) != 0 {
		t.Errorf("unexpected association with no detections: %+v", a)
	}

	// No tracks: every detection is unmatched.
	dets := []detect.Detection{{Box: geom.Rect{X: 0, Y: 0, Width: 10, Height: 10}, Confidence: 0.9}}
	a = Associate(nil, dets, costConfig())
	if len(a.Matches) != 0 || len(a.UnmatchedDetections) != 1 {
		t.Errorf("unexpected association with no tracks: %+v", a)
	}
}

func TestAssociate_OverlappingDetectionMatches(t *testing.T) {
	m := NewManager(DefaultManagerConfig())
	tr := spawnAt(t, m, geom.Rect{X: 10, Y: 10, Width: 20, Height: 20}, 1)

	dets := []detect.Detection{
		{Box: geom.Rect{X: 12, Y: 11, Width: 20, Height: 20}, Confidence: 0.8},
	}
	a := Associate([]*Track{tr}, dets, costConfig())
	if len(a.Matches) != 1 {
		t.Fatalf("expected 1 match, got %d", len(a.Matches))
	}
	if a.Matches[0].Track.ID != tr.ID || a.Matches[0].Detection != 0 {
		t.Errorf("wrong pairing: %+v", a.Matches[0])
	}
}

func TestAssociate_GateRejectsDistantDetection(t *testing.T) {
	m := NewManager(DefaultManagerConfig())
	tr := spawnAt(t, m, geom.Rect{X: 0, Y: 0, Width: 20, Height: 20}, 1)

	dets := []detect.Detection{
		{Box: geom.Rect{X: 500, Y: 500, Width: 20, Height: 20}, Confidence: 0.8},
	}
	a := Associate([]*Track{tr}, dets, costConfig())
	if len(a.Matches) != 0 {
		t.Fatal("a detection across the frame must not match")
	}
	if len(a.UnmatchedTracks) != 1 || len(a.UnmatchedDetections) != 1 {
		t.Errorf("both sides should be unmatched: %+v", a)
	}
}

func TestAssociate_TwoDetectionsOneTrack(t *testing.T) {
	// Two candidates for one track: only the lower-cost one is matched and
	// the other comes back unmatched (it will spawn a new tentative track).
	m := NewManager(DefaultManagerConfig())
	tr := spawnAt(t, m, geom.Rect{X: 100, Y: 100, Width: 20, Height: 40}, 1)

	near := detect.Detection{Box: geom.Rect{X: 101, Y: 101, Width: 20, Height: 40}, Confidence: 0.9}
	far := detect.Detection{Box: geom.Rect{X: 112, Y: 100, Width: 20, Height: 40}, Confidence: 0.9}
	a := Associate([]*Track{tr}, []detect.Detection{far, near}, costConfig())

	if len(a.Matches) != 1 {
		t.Fatalf("expected 1 match, got %d", len(a.Matches))
	}
	if a.Matches[0].Detection != 1 {
		t.Errorf("expected the nearer detection (index 1) to win, got %d", a.Matches[0].Detection)
	}
	if len(a.UnmatchedDetections) != 1 || a.UnmatchedDetections[0] != 0 {
		t.Errorf("far detection should be unmatched: %+v", a.UnmatchedDetections)
	}
}

func TestAssociate_TieBreaksToLowerTrackID(t *testing.T) {
	m := NewManager(DefaultManagerConfig())
	box := geom.Rect{X: 50, Y: 50, Width: 20, Height: 20}
	a1 := spawnAt(t, m, box, 1)
	a2 := spawnAt(t, m, box, 1)
	if a1.ID >= a2.ID {
		t.Fatal("expected monotonically increasing ids")
	}

	dets := []detect.Detection{{Box: box, Confidence: 0.9}}
	assoc := Associate(m.Live(), dets, costConfig())
	if len(assoc.Matches) != 1 {
		t.Fatalf("expected 1 match, got %d", len(assoc.Matches))
	}
	if assoc.Matches[0].Track.ID != a1.ID {
		t.Errorf("equal-cost tie must go to the lower track id %d, got %d", a1.ID, assoc.Matches[0].Track.ID)
	}
}

func TestAssociate_AppearanceBreaksGeometricTie(t *testing.T) {
	m := NewManager(DefaultManagerConfig())
	box := geom.Rect{X: 50, Y: 50, Width: 20, Height: 20}

	t1 := m.Spawn(detect.Detection{Box: box, Confidence: 0.9, Embedding: []float64{1, 0}}, 1)
	t2 := m.Spawn(detect.Detection{Box: box, Confidence: 0.9, Embedding: []float64{0, 1}}, 1)

	// The detection looks like track 2; appearance must override the
	// lower-id geometric tie-break.
	dets := []detect.Detection{{Box: box, Confidence: 0.9, Embedding: []float64{0, 1}}}
	a := Associate([]*Track{t1, t2}, dets, costConfig())
	if len(a.Matches) != 1 || a.Matches[0].Track.ID != t2.ID {
		t.Errorf("expected appearance match to track %d, got %+v", t2.ID, a.Matches)
	}
}

func TestCosineDistance(t *testing.T) {
	if d := cosineDistance([]float64{1, 0}, []float64{1, 0}); d != 0 {
		t.Errorf("identical vectors: expected 0, got %v", d)
	}
	if d := cosineDistance([]float64{1, 0}, []float64{0, 1}); d != 1 {
		t.Errorf("orthogonal vectors: expected 1, got %v", d)
	}
	if d := cosineDistance([]float64{1, 0}, []float64{-1, 0}); d != 2 {
		t.Errorf("opposite vectors: expected 2, got %v", d)
	}
	if d := cosineDistance([]float64{0, 0}, []float64{1, 0}); d != 1 {
		t.Errorf("zero norm: expected 1, got %v", d)
	}
	if d := cosineDistance([]float64{1}, []float64{1, 0}); d != 1 {
		t.Errorf("length mismatch: expected 1, got %v", d)
	}
}
