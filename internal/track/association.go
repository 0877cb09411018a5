package track

import (
	"math"

	"github.com/footfall-data/footfall.report/internal/detect"
)

// CostConfig weights the association cost terms.
type CostConfig struct {
	// AppearanceWeight in [0, 1) blends the embedding distance against the
	// geometric term. Applied only when both the track and the detection
	// carry an embedding; otherwise the cost is purely geometric.
	AppearanceWeight float64

	// MaxMatchCost is the gating threshold. Pairings above it are infeasible
	// and never matched, no matter what the solver would prefer.
	MaxMatchCost float64
}

// Match pairs one track with one detection index for the current frame.
type Match struct {
	Track     *Track
	Detection int
}

// Association is the outcome of one frame's assignment.
type Association struct {
	Matches             []Match
	UnmatchedTracks     []*Track
	UnmatchedDetections []int
}

// Associate assigns detections to predicted track states by minimum-cost
// bipartite matching. tracks must be sorted by ascending ID: the solver
// scans columns in order, so equal-cost alternatives deterministically
// resolve to the lower track id.
//
// An empty side is not an error; everything on the other side comes back
// unmatched.
func Associate(tracks []*Track, dets []detect.Detection, cfg CostConfig) Association {
	out := Association{}
	if len(tracks) == 0 || len(dets) == 0 {
		for i := range dets {
			out.UnmatchedDetections = append(out.UnmatchedDetections, i)
		}
		out.UnmatchedTracks = append(out.UnmatchedTracks, tracks...)
		return out
	}

	// Rows are detections, columns are tracks.
	cost := make([][]float64, len(dets))
	for di := range dets {
		cost[di] = make([]float64, len(tracks))
		for ti, tr := range tracks {
			c := matchCost(tr, dets[di], cfg)
			if c > cfg.MaxMatchCost {
				c = forbiddenCost
			}
			cost[di][ti] = c
		}
	}

	assign := solveAssignment(cost)

	matchedTrack := make([]bool, len(tracks))
	for di, ti := range assign {
		// The solver already rejects forbidden cells; the explicit gate
		// check also catches pairs forced above the gate by padding.
		if ti >= 0 && cost[di][ti] <= cfg.MaxMatchCost {
			out.Matches = append(out.Matches, Match{Track: tracks[ti], Detection: di})
			matchedTrack[ti] = true
		} else {
			out.UnmatchedDetections = append(out.UnmatchedDetections, di)
		}
	}
	for ti, tr := range tracks {
		if !matchedTrack[ti] {
			out.UnmatchedTracks = append(out.UnmatchedTracks, tr)
		}
	}
	return out
}

// matchCost combines overlap and appearance distance into one cost in
// [0, 1] (barring degenerate inputs).
func matchCost(tr *Track, d detect.Detection, cfg CostConfig) float64 {
	geomCost := 1 - tr.Box().IoU(d.Box)

	w := cfg.AppearanceWeight
	if w <= 0 || len(tr.Embedding) == 0 || !d.HasEmbedding() {
		return geomCost
	}
	return (1-w)*geomCost + w*cosineDistance(tr.Embedding, d.Embedding)
}

// cosineDistance is 1 - cosine similarity, clamped to [0, 2]. Mismatched
// lengths or zero-norm vectors count as maximally distant.
func cosineDistance(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 1
	}
	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 1
	}
	d := 1 - dot/(math.Sqrt(na)*math.Sqrt(nb))
	if d < 0 {
		return 0
	}
	return d
}
