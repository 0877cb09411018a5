package track

import (
	"math"
	"testing"

	"github.com/footfall-data/footfall.report/internal/geom"
)

func TestPredictorInitiate(t *testing.T) {
	p := NewPredictor(0, 0) // fall back to defaults
	box := geom.Rect{X: 10, Y: 10, Width: 20, Height: 40}
	s := p.Initiate(box)

	c := s.Center()
	if c.X != 20 || c.Y != 30 {
		t.Errorf("expected initial center (20,30), got (%v,%v)", c.X, c.Y)
	}
	if vx, vy := s.Velocity(); vx != 0 || vy != 0 {
		t.Errorf("expected zero initial velocity, got (%v,%v)", vx, vy)
	}
	back := s.Rect()
	if math.Abs(back.Width-20) > 1e-9 || math.Abs(back.Height-40) > 1e-9 {
		t.Errorf("state does not round-trip the box: %+v", back)
	}
}

func TestPredictorPredict_StationaryStaysPut(t *testing.T) {
	p := NewPredictor(0, 0)
	s := p.Initiate(geom.Rect{X: 10, Y: 10, Width: 20, Height: 20})

	before := s.Center()
	p.Predict(s)
	after := s.Center()
	if before != after {
		t.Errorf("zero-velocity predict moved centroid: %v -> %v", before, after)
	}
}

func TestPredictorPredict_SpreadGrows(t *testing.T) {
	p := NewPredictor(0, 0)
	s := p.Initiate(geom.Rect{X: 10, Y: 10, Width: 20, Height: 20})

	prev := s.Spread()
	for i := 0; i < 10; i++ {
		p.Predict(s)
		cur := s.Spread()
		if cur <= prev {
			t.Fatalf("spread must grow monotonically while coasting: %v -> %v at step %d", prev, cur, i)
		}
		prev = cur
	}
}

func TestPredictorUpdate_ConvergesOnMovingTarget(t *testing.T) {
	p := NewPredictor(0, 0)
	// Target moves +5 px/frame in Y.
	s := p.Initiate(geom.Rect{X: 100, Y: 0, Width: 20, Height: 40})
	for i := 1; i <= 20; i++ {
		p.Predict(s)
		p.Update(s, geom.Rect{X: 100, Y: float64(i) * 5, Width: 20, Height: 40})
	}

	_, vy := s.Velocity()
	if math.Abs(vy-5) > 0.5 {
		t.Errorf("velocity estimate should converge near 5 px/frame, got %v", vy)
	}
	c := s.Center()
	if math.Abs(c.Y-(100+20)) > 2 {
		t.Errorf("position estimate off: got y=%v, want ~120", c.Y)
	}
}

func TestPredictorUpdate_ReducesSpread(t *testing.T) {
	p := NewPredictor(0, 0)
	box := geom.Rect{X: 10, Y: 10, Width: 20, Height: 20}
	s := p.Initiate(box)
	p.Predict(s)
	before := s.Spread()
	p.Update(s, box)
	if s.Spread() >= before {
		t.Errorf("measurement update must shrink spread: %v -> %v", before, s.Spread())
	}
}

func TestPredictorUpdate_Deterministic(t *testing.T) {
	run := func() geom.Point {
		p := NewPredictor(0, 0)
		s := p.Initiate(geom.Rect{X: 5, Y: 5, Width: 10, Height: 30})
		for i := 0; i < 8; i++ {
			p.Predict(s)
			p.Update(s, geom.Rect{X: 5 + float64(i), Y: 5, Width: 10, Height: 30})
		}
		return s.Center()
	}
	a, b := run(), run()
	if a != b {
		t.Errorf("identical input must yield identical state: %v vs %v", a, b)
	}
}
