// Package config holds the runtime tuning surface for the counting
// pipeline. Values load from JSON with pointer fields so partial configs
// overlay the defaults; validation fails fast before any frame is
// processed.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/footfall-data/footfall.report/internal/geom"
	"github.com/footfall-data/footfall.report/internal/track"
)

// ErrInvalidTuning wraps every validation failure so callers can branch on
// configuration errors as a class.
var ErrInvalidTuning = errors.New("invalid tuning")

// BoundaryConfig describes the counting boundary. Exactly one of Line or
// Polygon must be set.
type BoundaryConfig struct {
	// Line is [x1, y1, x2, y2].
	Line []float64 `json:"line,omitempty"`
	// Polygon is a flat vertex list [x1, y1, x2, y2, ...], at least three
	// vertices. The interior is the positive side.
	Polygon []float64 `json:"polygon,omitempty"`
	// FlipPositive inverts which side of a line counts as positive.
	FlipPositive bool `json:"flip_positive,omitempty"`
	// BandPixels is the hysteresis half-width around the boundary.
	BandPixels *float64 `json:"band_pixels,omitempty"`
}

// TuningConfig is the root tuning document. The schema doubles as the
// runtime-update payload, so every field is optional; omitted fields keep
// their defaults.
type TuningConfig struct {
	// Detector ingestion
	MinConfidence *float64 `json:"min_confidence,omitempty"`

	// Association
	MaxMatchCost     *float64 `json:"max_match_cost,omitempty"`
	AppearanceWeight *float64 `json:"appearance_weight,omitempty"`

	// Lifecycle
	HitsToConfirm   *int `json:"hits_to_confirm,omitempty"`
	MaxMisses       *int `json:"max_misses,omitempty"`
	LostGraceFrames *int `json:"lost_grace_frames,omitempty"`
	MaxTracks       *int `json:"max_tracks,omitempty"`
	HistoryLength   *int `json:"history_length,omitempty"`

	// Motion filter noise
	PositionNoiseWeight *float64 `json:"position_noise_weight,omitempty"`
	VelocityNoiseWeight *float64 `json:"velocity_noise_weight,omitempty"`

	// Counting boundary
	Boundary *BoundaryConfig `json:"boundary,omitempty"`
}

// DefaultTuningConfig returns the stock configuration: a horizontal line
// across a 640x480 frame with a 25 px hysteresis band.
func DefaultTuningConfig() *TuningConfig {
	band := 25.0
	return &TuningConfig{
		MinConfidence:       ptrFloat64(0.5),
		MaxMatchCost:        ptrFloat64(0.7),
		AppearanceWeight:    ptrFloat64(0.3),
		HitsToConfirm:       ptrInt(3),
		MaxMisses:           ptrInt(30),
		LostGraceFrames:     ptrInt(30),
		MaxTracks:           ptrInt(200),
		HistoryLength:       ptrInt(50),
		PositionNoiseWeight: ptrFloat64(track.DefaultPositionWeight),
		VelocityNoiseWeight: ptrFloat64(track.DefaultVelocityWeight),
		Boundary: &BoundaryConfig{
			Line:       []float64{0, 240, 640, 240},
			BandPixels: &band,
		},
	}
}

func ptrFloat64(v float64) *float64 { return &v }
func ptrInt(v int) *int             { return &v }

// LoadTuningConfig reads a JSON tuning file and overlays it on the
// defaults. Fields omitted from the file keep their default values.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	info, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024
	if info.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), maxFileSize)
	}

	raw, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := DefaultTuningConfig()
	if err := json.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}
	return cfg, nil
}

// Validate checks every populated field. Called at startup; a non-nil
// error is a configuration error and must abort before frame processing.
func (c *TuningConfig) Validate() error {
	if c.MinConfidence != nil && (*c.MinConfidence < 0 || *c.MinConfidence > 1) {
		return fmt.Errorf("%w: min_confidence %v outside [0, 1]", ErrInvalidTuning, *c.MinConfidence)
	}
	if c.MaxMatchCost != nil && *c.MaxMatchCost <= 0 {
		return fmt.Errorf("%w: max_match_cost must be positive, got %v", ErrInvalidTuning, *c.MaxMatchCost)
	}
	if c.AppearanceWeight != nil && (*c.AppearanceWeight < 0 || *c.AppearanceWeight >= 1) {
		return fmt.Errorf("%w: appearance_weight %v outside [0, 1)", ErrInvalidTuning, *c.AppearanceWeight)
	}
	for name, v := range map[string]*int{
		"hits_to_confirm": c.HitsToConfirm,
		"max_tracks":      c.MaxTracks,
		"history_length":  c.HistoryLength,
	} {
		if v != nil && *v < 1 {
			return fmt.Errorf("%w: %s must be >= 1, got %d", ErrInvalidTuning, name, *v)
		}
	}
	for name, v := range map[string]*int{
		"max_misses":        c.MaxMisses,
		"lost_grace_frames": c.LostGraceFrames,
	} {
		if v != nil && *v < 0 {
			return fmt.Errorf("%w: %s must be >= 0, got %d", ErrInvalidTuning, name, *v)
		}
	}
	for name, v := range map[string]*float64{
		"position_noise_weight": c.PositionNoiseWeight,
		"velocity_noise_weight": c.VelocityNoiseWeight,
	} {
		if v != nil && *v <= 0 {
			return fmt.Errorf("%w: %s must be positive, got %v", ErrInvalidTuning, name, *v)
		}
	}
	if c.Boundary == nil {
		return fmt.Errorf("%w: boundary is required", ErrInvalidTuning)
	}
	if _, err := c.Boundary.Build(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidTuning, err)
	}
	return nil
}

// Build constructs the geometry from the boundary config.
func (b *BoundaryConfig) Build() (*geom.Boundary, error) {
	band := 0.0
	if b.BandPixels != nil {
		band = *b.BandPixels
	}

	switch {
	case len(b.Line) > 0 && len(b.Polygon) > 0:
		return nil, fmt.Errorf("boundary: line and polygon are mutually exclusive")
	case len(b.Line) > 0:
		if len(b.Line) != 4 {
			return nil, fmt.Errorf("boundary line needs 4 values [x1 y1 x2 y2], got %d", len(b.Line))
		}
		return geom.NewLine(
			geom.Point{X: b.Line[0], Y: b.Line[1]},
			geom.Point{X: b.Line[2], Y: b.Line[3]},
			b.FlipPositive,
			band,
		)
	case len(b.Polygon) > 0:
		if len(b.Polygon)%2 != 0 {
			return nil, fmt.Errorf("boundary polygon needs an even number of values, got %d", len(b.Polygon))
		}
		pts := make([]geom.Point, 0, len(b.Polygon)/2)
		for i := 0; i < len(b.Polygon); i += 2 {
			pts = append(pts, geom.Point{X: b.Polygon[i], Y: b.Polygon[i+1]})
		}
		return geom.NewPolygon(pts, band)
	default:
		return nil, fmt.Errorf("boundary: either line or polygon is required")
	}
}

// ManagerConfig resolves the lifecycle parameters for the track manager.
func (c *TuningConfig) ManagerConfig() track.ManagerConfig {
	out := track.DefaultManagerConfig()
	if c.MaxTracks != nil {
		out.MaxTracks = *c.MaxTracks
	}
	if c.HitsToConfirm != nil {
		out.HitsToConfirm = *c.HitsToConfirm
	}
	if c.MaxMisses != nil {
		out.MaxMisses = *c.MaxMisses
	}
	if c.LostGraceFrames != nil {
		out.LostGraceFrames = *c.LostGraceFrames
	}
	if c.HistoryLength != nil {
		out.HistoryLength = *c.HistoryLength
	}
	if c.PositionNoiseWeight != nil {
		out.PositionNoiseWeight = *c.PositionNoiseWeight
	}
	if c.VelocityNoiseWeight != nil {
		out.VelocityNoiseWeight = *c.VelocityNoiseWeight
	}
	return out
}

// CostConfig resolves the association weights.
func (c *TuningConfig) CostConfig() track.CostConfig {
	out := track.CostConfig{AppearanceWeight: 0.3, MaxMatchCost: 0.7}
	if c.AppearanceWeight != nil {
		out.AppearanceWeight = *c.AppearanceWeight
	}
	if c.MaxMatchCost != nil {
		out.MaxMatchCost = *c.MaxMatchCost
	}
	return out
}

// Confidence resolves the detector confidence floor.
func (c *TuningConfig) Confidence() float64 {
	if c.MinConfidence != nil {
		return *c.MinConfidence
	}
	return 0.5
}
