package geom

import (
	"fmt"
	"math"
)

// Side is the position of a point relative to a boundary.
type Side int

const (
	// SideNegative is the side a track starts on before an "entered" crossing.
	SideNegative Side = -1
	// SideNeutral means the point sits inside the hysteresis band and does
	// not commit the track to either side.
	SideNeutral Side = 0
	// SidePositive is the designated positive side of the boundary.
	SidePositive Side = 1
)

// Boundary is the counting region: either a line segment with a designated
// positive side, or a closed polygon whose interior is the positive side.
// Exactly one shape is active; static for the pipeline's lifetime.
type Boundary struct {
	line    *lineBoundary
	polygon *polygonBoundary

	// band is the hysteresis half-width in pixels. A point closer than band
	// to the boundary reports SideNeutral, so jitter around the boundary
	// cannot flip sides back and forth.
	band float64
}

type lineBoundary struct {
	a, b Point
	// flip inverts the sign convention so callers can choose which side of
	// the segment counts as positive.
	flip bool
}

type polygonBoundary struct {
	vertices []Point
}

// NewLine builds a line-segment boundary. The positive side is the side the
// cross product (b-a) x (p-a) is positive on; set flipPositive to invert it.
// band is the hysteresis half-width in pixels (0 disables hysteresis).
func NewLine(a, b Point, flipPositive bool, band float64) (*Boundary, error) {
	if a == b {
		return nil, fmt.Errorf("boundary line is degenerate: both endpoints at (%v, %v)", a.X, a.Y)
	}
	if band < 0 {
		return nil, fmt.Errorf("boundary band must be >= 0, got %v", band)
	}
	return &Boundary{line: &lineBoundary{a: a, b: b, flip: flipPositive}, band: band}, nil
}

// NewPolygon builds a closed-polygon boundary. The interior is the positive
// side. Vertices are taken in order; the closing edge is implicit.
func NewPolygon(vertices []Point, band float64) (*Boundary, error) {
	if len(vertices) < 3 {
		return nil, fmt.Errorf("boundary polygon needs >= 3 vertices, got %d", len(vertices))
	}
	if band < 0 {
		return nil, fmt.Errorf("boundary band must be >= 0, got %v", band)
	}
	vs := make([]Point, len(vertices))
	copy(vs, vertices)
	return &Boundary{polygon: &polygonBoundary{vertices: vs}, band: band}, nil
}

// Side reports which side of the boundary p lies on. Points within the
// hysteresis band report SideNeutral.
func (bd *Boundary) Side(p Point) Side {
	if bd.line != nil {
		return bd.line.side(p, bd.band)
	}
	return bd.polygon.side(p, bd.band)
}

func (l *lineBoundary) side(p Point, band float64) Side {
	// Signed distance via the cross product of the segment direction and
	// the point offset, normalised by segment length. The segment is treated
	// as an infinite line for side purposes; the band still uses the full
	// line so a person walking along the boundary stays neutral.
	dx := l.b.X - l.a.X
	dy := l.b.Y - l.a.Y
	cross := dx*(p.Y-l.a.Y) - dy*(p.X-l.a.X)
	dist := math.Abs(cross) / math.Hypot(dx, dy)

	if dist < band {
		return SideNeutral
	}
	s := SidePositive
	if cross < 0 {
		s = SideNegative
	}
	if l.flip {
		s = -s
	}
	return s
}

func (pg *polygonBoundary) side(p Point, band float64) Side {
	if band > 0 {
		for i := range pg.vertices {
			j := (i + 1) % len(pg.vertices)
			if distToSegment(p, pg.vertices[i], pg.vertices[j]) < band {
				return SideNeutral
			}
		}
	}
	if pg.contains(p) {
		return SidePositive
	}
	return SideNegative
}

// contains implements the even-odd ray casting rule.
func (pg *polygonBoundary) contains(p Point) bool {
	inside := false
	n := len(pg.vertices)
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		vi := pg.vertices[i]
		vj := pg.vertices[j]
		if (vi.Y > p.Y) != (vj.Y > p.Y) &&
			p.X < (vj.X-vi.X)*(p.Y-vi.Y)/(vj.Y-vi.Y)+vi.X {
			inside = !inside
		}
	}
	return inside
}
