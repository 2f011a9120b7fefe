package ingest

import (
	"fmt"
	"math"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/five82/stm2mon/internal/material"
	"github.com/five82/stm2mon/internal/sink"
)

// DefaultAlertFraction is the share of the target at which the alert fires.
const DefaultAlertFraction = 0.8

// RunConfig is fixed for the lifetime of one session.
type RunConfig struct {
	LogPath         string
	RunID           string
	Material        string
	Density         float64
	ZRatio          float64
	TargetThickness float64
	// AlertFraction defaults to DefaultAlertFraction when zero.
	AlertFraction float64
}

// AlertThreshold is the thickness at which the alert level becomes 1.
func (c RunConfig) AlertThreshold() float64 {
	fraction := c.AlertFraction
	if fraction == 0 {
		fraction = DefaultAlertFraction
	}
	return c.TargetThickness * fraction
}

// Tags returns the sink run description.
func (c RunConfig) Tags() sink.Run {
	return sink.Run{ID: c.RunID, Material: c.Material, Density: c.Density, ZRatio: c.ZRatio}
}

// normalize trims strings and derives the run ID from the log file name
// when it was left empty.
func (c RunConfig) normalize() RunConfig {
	c.LogPath = strings.TrimSpace(c.LogPath)
	c.Material = strings.TrimSpace(c.Material)
	c.RunID = strings.TrimSpace(c.RunID)
	if c.RunID == "" && c.LogPath != "" {
		c.RunID = RunIDFromPath(c.LogPath)
	}
	if c.AlertFraction == 0 {
		c.AlertFraction = DefaultAlertFraction
	}
	return c
}

// Validate checks the fields Start depends on.
func (c RunConfig) Validate() error {
	if strings.TrimSpace(c.LogPath) == "" {
		return fmt.Errorf("%w: log file path is required", ErrInvalidConfig)
	}
	if strings.TrimSpace(c.Material) == "" {
		return fmt.Errorf("%w: material is required", ErrInvalidConfig)
	}
	if strings.TrimSpace(c.RunID) == "" {
		return fmt.Errorf("%w: run id is required", ErrInvalidConfig)
	}
	for _, f := range []struct {
		name  string
		value float64
	}{
		{"density", c.Density},
		{"z-ratio", c.ZRatio},
		{"target thickness", c.TargetThickness},
	} {
		if math.IsNaN(f.value) || math.IsInf(f.value, 0) {
			return fmt.Errorf("%w: %s is not a finite number", ErrInvalidConfig, f.name)
		}
	}
	if c.AlertFraction < 0 || c.AlertFraction > 1 || math.IsNaN(c.AlertFraction) {
		return fmt.Errorf("%w: alert fraction %v must be between 0 and 1", ErrInvalidConfig, c.AlertFraction)
	}
	return nil
}

// RunIDFromPath returns the file name without its extension.
func RunIDFromPath(path string) string {
	base := filepath.Base(strings.TrimSpace(path))
	if base == "." || base == string(filepath.Separator) {
		return ""
	}
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// RunInput is a run description as typed by an operator or read from the
// environment: every number is still text.
type RunInput struct {
	LogPath         string `toml:"log_path"`
	RunID           string `toml:"run_id"`
	Material        string `toml:"material"`
	Density         string `toml:"density"`
	ZRatio          string `toml:"z_ratio"`
	TargetThickness string `toml:"target_thickness"`
}

// Config converts the input into a RunConfig. Empty density or z-ratio
// fall back to the material table; anything else that is not a number is
// an ErrInvalidConfig.
func (in RunInput) Config(alertFraction float64) (RunConfig, error) {
	cfg := RunConfig{
		LogPath:       in.LogPath,
		RunID:         in.RunID,
		Material:      in.Material,
		AlertFraction: alertFraction,
	}
	if strings.TrimSpace(cfg.Material) == "" {
		return RunConfig{}, fmt.Errorf("%w: material is required", ErrInvalidConfig)
	}

	props, known := material.Lookup(cfg.Material)
	var err error
	if cfg.Density, err = parseNumber("density", in.Density, props.Density, known); err != nil {
		return RunConfig{}, err
	}
	if cfg.ZRatio, err = parseNumber("z-ratio", in.ZRatio, props.ZRatio, known); err != nil {
		return RunConfig{}, err
	}
	if cfg.TargetThickness, err = parseNumber("target thickness", in.TargetThickness, 0, false); err != nil {
		return RunConfig{}, err
	}

	cfg = cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return RunConfig{}, err
	}
	return cfg, nil
}

func parseNumber(name, raw string, fallback float64, haveFallback bool) (float64, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		if haveFallback {
			return fallback, nil
		}
		return 0, fmt.Errorf("%w: %s is required", ErrInvalidConfig, name)
	}
	v, err := strconv.ParseFloat(trimmed, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%w: %s %q is not a number", ErrInvalidConfig, name, raw)
	}
	return v, nil
}
