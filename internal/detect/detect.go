// Package detect defines the detection input contract for the counting
// pipeline. Detections come from an external detector collaborator one frame
// at a time; this package owns the record types, ingestion validation, and
// the replay file source used for development and testing.
package detect

import (
	"fmt"
	"math"

	"github.com/footfall-data/footfall.report/internal/geom"
)

// Detection is one detected person in one frame. Ephemeral: owned by its
// frame and discarded after the frame's processing cycle.
type Detection struct {
	Box        geom.Rect `json:"box"`
	Confidence float64   `json:"confidence"`

	// Embedding is an optional fixed-length appearance vector. Nil means the
	// detector did not produce one; presence is explicit rather than probed.
	Embedding []float64 `json:"embedding,omitempty"`
}

// Frame is the detector output for one video frame. Image pixels never reach
// the core; only the index and timestamp are consumed here.
type Frame struct {
	Index          int64       `json:"frame"`
	TimestampNanos int64       `json:"ts_unix_nanos"`
	Detections     []Detection `json:"detections"`
}

// HasEmbedding reports whether the detection carries an appearance vector.
func (d Detection) HasEmbedding() bool {
	return len(d.Embedding) > 0
}

// Validate checks the ingestion contract for a single detection. A non-nil
// error means the detection is skipped; the frame is not aborted.
func (d Detection) Validate() error {
	if d.Box.Width <= 0 || d.Box.Height <= 0 {
		return fmt.Errorf("detection box has non-positive size %vx%v", d.Box.Width, d.Box.Height)
	}
	for _, v := range []float64{d.Box.X, d.Box.Y, d.Box.Width, d.Box.Height, d.Confidence} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("detection contains non-finite value %v", v)
		}
	}
	if d.Confidence < 0 || d.Confidence > 1 {
		return fmt.Errorf("detection confidence %v outside [0, 1]", d.Confidence)
	}
	for i, v := range d.Embedding {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("embedding element %d is non-finite", i)
		}
	}
	return nil
}

// FilterValid returns the detections that pass Validate and meet the
// confidence floor. Rejects are reported through cb (nil cb drops them
// silently); the order of survivors is preserved.
func FilterValid(dets []Detection, minConfidence float64, cb func(d Detection, err error)) []Detection {
	out := make([]Detection, 0, len(dets))
	for _, d := range dets {
		if err := d.Validate(); err != nil {
			if cb != nil {
				cb(d, err)
			}
			continue
		}
		if d.Confidence < minConfidence {
			continue
		}
		out = append(out, d)
	}
	return out
}
