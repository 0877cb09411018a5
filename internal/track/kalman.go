package track

import (
	"gonum.org/v1/gonum/mat"

	"github.com/footfall-data/footfall.report/internal/geom"
)

// Motion state layout: [cx, cy, a, h, vcx, vcy, va, vh] where (cx, cy) is
// the box centroid, a the aspect ratio, h the height, and the second half
// the per-frame velocities of each. Constant-velocity model with dt = 1
// frame.
const stateDim = 8
const measDim = 4

// Default noise weights. Process and measurement noise scale with box
// height so large (near) subjects tolerate more absolute motion than small
// (far) ones.
const (
	DefaultPositionWeight = 1.0 / 20
	DefaultVelocityWeight = 1.0 / 160
)

// MotionState is one track's filtered state estimate with uncertainty.
// Mutated in place by Predictor; owned by the track it belongs to.
type MotionState struct {
	mean *mat.VecDense // 8
	cov  *mat.Dense    // 8x8
}

// Predictor runs the per-track predict/update filter cycle. It is stateless
// across tracks; one instance serves the whole pipeline.
type Predictor struct {
	posWeight float64
	velWeight float64

	f mat.Matrix // 8x8 state transition
	h mat.Matrix // 4x8 measurement extraction
}

// NewPredictor builds a predictor with the given noise weights. Weights
// outside (0, 1] fall back to the defaults.
func NewPredictor(posWeight, velWeight float64) *Predictor {
	if posWeight <= 0 || posWeight > 1 {
		posWeight = DefaultPositionWeight
	}
	if velWeight <= 0 || velWeight > 1 {
		velWeight = DefaultVelocityWeight
	}

	f := mat.NewDense(stateDim, stateDim, nil)
	for i := 0; i < stateDim; i++ {
		f.Set(i, i, 1)
	}
	for i := 0; i < measDim; i++ {
		f.Set(i, i+measDim, 1) // position += velocity each frame
	}

	h := mat.NewDense(measDim, stateDim, nil)
	for i := 0; i < measDim; i++ {
		h.Set(i, i, 1)
	}

	return &Predictor{posWeight: posWeight, velWeight: velWeight, f: f, h: h}
}

// Initiate creates a state estimate from a first measurement. Velocities
// start at zero with wide uncertainty.
func (p *Predictor) Initiate(box geom.Rect) *MotionState {
	c := box.Center()
	mean := mat.NewVecDense(stateDim, []float64{
		c.X, c.Y, box.Aspect(), box.Height,
		0, 0, 0, 0,
	})

	h := box.Height
	std := []float64{
		2 * p.posWeight * h,
		2 * p.posWeight * h,
		1e-2,
		2 * p.posWeight * h,
		10 * p.velWeight * h,
		10 * p.velWeight * h,
		1e-5,
		10 * p.velWeight * h,
	}
	cov := mat.NewDense(stateDim, stateDim, nil)
	for i, s := range std {
		cov.Set(i, i, s*s)
	}
	return &MotionState{mean: mean, cov: cov}
}

// Predict advances the state one frame and inflates the covariance. It never
// fails; a long-unobserved track simply accumulates spread.
func (p *Predictor) Predict(s *MotionState) {
	var next mat.VecDense
	next.MulVec(p.f, s.mean)
	s.mean.CopyVec(&next)

	var fp, fpft mat.Dense
	fp.Mul(p.f, s.cov)
	fpft.Mul(&fp, p.f.T())
	s.cov.Copy(&fpft)

	h := s.mean.AtVec(3)
	q := []float64{
		p.posWeight * h,
		p.posWeight * h,
		1e-2,
		p.posWeight * h,
		p.velWeight * h,
		p.velWeight * h,
		1e-5,
		p.velWeight * h,
	}
	for i, v := range q {
		s.cov.Set(i, i, s.cov.At(i, i)+v*v)
	}
}

// Update blends the prediction with a matched measurement, weighted
// inversely by uncertainty. A numerically degenerate innovation covariance
// leaves the prediction untouched rather than erroring.
func (p *Predictor) Update(s *MotionState, box geom.Rect) {
	c := box.Center()
	z := mat.NewVecDense(measDim, []float64{c.X, c.Y, box.Aspect(), box.Height})

	// Innovation covariance S = H P Hᵀ + R.
	var hp, hpht mat.Dense
	hp.Mul(p.h, s.cov)
	hpht.Mul(&hp, p.h.T())

	h := s.mean.AtVec(3)
	r := []float64{
		p.posWeight * h,
		p.posWeight * h,
		1e-1,
		p.posWeight * h,
	}
	innovCov := mat.NewSymDense(measDim, nil)
	for i := 0; i < measDim; i++ {
		for j := i; j < measDim; j++ {
			v := (hpht.At(i, j) + hpht.At(j, i)) / 2
			if i == j {
				v += r[i] * r[i]
			}
			innovCov.SetSym(i, j, v)
		}
	}

	var chol mat.Cholesky
	if ok := chol.Factorize(innovCov); !ok {
		// Singular covariance: keep the prediction as-is.
		return
	}

	// Kalman gain K = P Hᵀ S⁻¹, computed as Kᵀ = S⁻¹ (P Hᵀ)ᵀ.
	var pht mat.Dense
	pht.Mul(s.cov, p.h.T())
	var gainT mat.Dense
	if err := chol.SolveTo(&gainT, pht.T()); err != nil {
		return
	}
	gain := gainT.T() // 8x4

	// x' = x + K (z - H x)
	var pred, innov mat.VecDense
	pred.MulVec(p.h, s.mean)
	innov.SubVec(z, &pred)
	var corr mat.VecDense
	corr.MulVec(gain, &innov)
	s.mean.AddVec(s.mean, &corr)

	// P' = (I - K H) P
	var kh mat.Dense
	kh.Mul(gain, p.h)
	ikh := mat.NewDense(stateDim, stateDim, nil)
	for i := 0; i < stateDim; i++ {
		for j := 0; j < stateDim; j++ {
			v := -kh.At(i, j)
			if i == j {
				v++
			}
			ikh.Set(i, j, v)
		}
	}
	var newCov mat.Dense
	newCov.Mul(ikh, s.cov)
	s.cov.Copy(&newCov)
}

// Rect returns the current box estimate.
func (s *MotionState) Rect() geom.Rect {
	return geom.RectFromCenter(
		geom.Point{X: s.mean.AtVec(0), Y: s.mean.AtVec(1)},
		s.mean.AtVec(2),
		s.mean.AtVec(3),
	)
}

// Center returns the current centroid estimate.
func (s *MotionState) Center() geom.Point {
	return geom.Point{X: s.mean.AtVec(0), Y: s.mean.AtVec(1)}
}

// Velocity returns the per-frame centroid velocity estimate.
func (s *MotionState) Velocity() (vx, vy float64) {
	return s.mean.AtVec(4), s.mean.AtVec(5)
}

// Spread is a scalar uncertainty measure: the trace of the positional
// covariance block. It grows without bound while a track coasts unobserved.
func (s *MotionState) Spread() float64 {
	return s.cov.At(0, 0) + s.cov.At(1, 1)
}
