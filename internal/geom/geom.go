// Package geom provides the 2-D primitives shared by the tracking and
// counting engines: axis-aligned boxes in image coordinates, overlap
// metrics, and the counting boundary variant (line or polygon).
package geom

import "math"

// Point is a position in image coordinates (pixels, origin top-left).
type Point struct {
	X float64
	Y float64
}

// Rect is an axis-aligned bounding box. X, Y is the top-left corner.
type Rect struct {
	X      float64
	Y      float64
	Width  float64
	Height float64
}

// Center returns the centroid of the box.
func (r Rect) Center() Point {
	return Point{X: r.X + r.Width/2, Y: r.Y + r.Height/2}
}

// Area returns the box area. Zero or negative dimensions yield zero.
func (r Rect) Area() float64 {
	if r.Width <= 0 || r.Height <= 0 {
		return 0
	}
	return r.Width * r.Height
}

// IoU returns the intersection-over-union of two boxes in [0, 1].
func (r Rect) IoU(o Rect) float64 {
	x1 := math.Max(r.X, o.X)
	y1 := math.Max(r.Y, o.Y)
	x2 := math.Min(r.X+r.Width, o.X+o.Width)
	y2 := math.Min(r.Y+r.Height, o.Y+o.Height)

	if x2 <= x1 || y2 <= y1 {
		return 0
	}

	inter := (x2 - x1) * (y2 - y1)
	union := r.Area() + o.Area() - inter
	if union <= 0 {
		return 0
	}
	return inter / union
}

// Aspect returns width/height, the shape term carried in the motion state.
// A degenerate height yields 1 so downstream filters stay finite.
func (r Rect) Aspect() float64 {
	if r.Height <= 0 {
		return 1
	}
	return r.Width / r.Height
}

// RectFromCenter builds a box from centroid, aspect ratio and height.
// Inverse of Center/Aspect/Height, used to read boxes back out of the
// motion state.
func RectFromCenter(c Point, aspect, height float64) Rect {
	w := aspect * height
	return Rect{X: c.X - w/2, Y: c.Y - height/2, Width: w, Height: height}
}

// distToSegment returns the distance from p to the segment a-b.
func distToSegment(p, a, b Point) float64 {
	abx := b.X - a.X
	aby := b.Y - a.Y
	apx := p.X - a.X
	apy := p.Y - a.Y

	den := abx*abx + aby*aby
	if den == 0 {
		return math.Hypot(apx, apy)
	}
	t := (apx*abx + apy*aby) / den
	if t < 0 {
		t = 0
	} else if t > 1 {
		t = 1
	}
	return math.Hypot(p.X-(a.X+t*abx), p.Y-(a.Y+t*aby))
}
