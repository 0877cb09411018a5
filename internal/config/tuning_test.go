package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/footfall-data/footfall.report/internal/geom"
)

func TestDefaultTuningConfigValid(t *testing.T) {
	cfg := DefaultTuningConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config failed validation: %v", err)
	}
}

func TestLoadTuningConfigOverlay(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tuning.json")
	body := `{
		"min_confidence": 0.25,
		"hits_to_confirm": 5,
		"boundary": {"line": [0, 100, 200, 100], "band_pixels": 10}
	}`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadTuningConfig(path)
	if err != nil {
		t.Fatalf("LoadTuningConfig: %v", err)
	}
	if got := cfg.Confidence(); got != 0.25 {
		t.Errorf("Confidence() = %v, want 0.25", got)
	}
	if got := cfg.ManagerConfig().HitsToConfirm; got != 5 {
		t.Errorf("HitsToConfirm = %d, want 5", got)
	}
	// Fields absent from the file keep defaults.
	if got := cfg.ManagerConfig().MaxMisses; got != 30 {
		t.Errorf("MaxMisses = %d, want default 30", got)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("overlaid config failed validation: %v", err)
	}
}

func TestLoadTuningConfigRejectsNonJSON(t *testing.T) {
	if _, err := LoadTuningConfig("tuning.yaml"); err == nil {
		t.Error("expected error for non-json extension")
	}
}

func TestLoadTuningConfigMissingFile(t *testing.T) {
	if _, err := LoadTuningConfig(filepath.Join(t.TempDir(), "absent.json")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestValidateRejections(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*TuningConfig)
	}{
		{"confidence above one", func(c *TuningConfig) { c.MinConfidence = ptrFloat64(1.5) }},
		{"negative confidence", func(c *TuningConfig) { c.MinConfidence = ptrFloat64(-0.1) }},
		{"zero gate", func(c *TuningConfig) { c.MaxMatchCost = ptrFloat64(0) }},
		{"appearance weight one", func(c *TuningConfig) { c.AppearanceWeight = ptrFloat64(1) }},
		{"zero hits to confirm", func(c *TuningConfig) { c.HitsToConfirm = ptrInt(0) }},
		{"negative max misses", func(c *TuningConfig) { c.MaxMisses = ptrInt(-1) }},
		{"zero max tracks", func(c *TuningConfig) { c.MaxTracks = ptrInt(0) }},
		{"zero position noise", func(c *TuningConfig) { c.PositionNoiseWeight = ptrFloat64(0) }},
		{"missing boundary", func(c *TuningConfig) { c.Boundary = nil }},
		{"degenerate line", func(c *TuningConfig) {
			c.Boundary = &BoundaryConfig{Line: []float64{5, 5, 5, 5}}
		}},
		{"short line", func(c *TuningConfig) {
			c.Boundary = &BoundaryConfig{Line: []float64{0, 0, 1}}
		}},
		{"line and polygon together", func(c *TuningConfig) {
			c.Boundary = &BoundaryConfig{
				Line:    []float64{0, 0, 10, 0},
				Polygon: []float64{0, 0, 10, 0, 5, 5},
			}
		}},
		{"two vertex polygon", func(c *TuningConfig) {
			c.Boundary = &BoundaryConfig{Polygon: []float64{0, 0, 10, 0}}
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultTuningConfig()
			tc.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !errors.Is(err, ErrInvalidTuning) {
				t.Errorf("error %v does not wrap ErrInvalidTuning", err)
			}
		})
	}
}

func TestBoundaryBuildPolygon(t *testing.T) {
	cfg := &BoundaryConfig{
		Polygon:    []float64{0, 0, 100, 0, 100, 100, 0, 100},
		BandPixels: ptrFloat64(5),
	}
	b, err := cfg.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if got := b.Side(geom.Point{X: 50, Y: 50}); got != geom.SidePositive {
		t.Errorf("interior side = %d, want positive", got)
	}
	if got := b.Side(geom.Point{X: 200, Y: 200}); got != geom.SideNegative {
		t.Errorf("exterior side = %d, want negative", got)
	}
}

func TestCostConfigResolution(t *testing.T) {
	cfg := DefaultTuningConfig()
	cfg.AppearanceWeight = ptrFloat64(0.6)
	got := cfg.CostConfig()
	if got.AppearanceWeight != 0.6 {
		t.Errorf("AppearanceWeight = %v, want 0.6", got.AppearanceWeight)
	}
	if got.MaxMatchCost != 0.7 {
		t.Errorf("MaxMatchCost = %v, want default 0.7", got.MaxMatchCost)
	}
}
