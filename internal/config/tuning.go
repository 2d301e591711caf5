// Package config loads autofocus tuning documents. The schema is a JSON
// superset of the algorithm's CfgParams: every field is optional, and fields
// omitted from the document keep their defaults (the algorithm warns for
// each missing key when it consumes the document).
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// RangeTuning holds one focus range in dioptres.
type RangeTuning struct {
	Min     *float64 `json:"min,omitempty"`
	Max     *float64 `json:"max,omitempty"`
	Default *float64 `json:"default,omitempty"`
}

// SpeedTuning holds one speed profile.
type SpeedTuning struct {
	StepCoarse    *float64 `json:"step_coarse,omitempty"`
	StepFine      *float64 `json:"step_fine,omitempty"`
	ContrastRatio *float64 `json:"contrast_ratio,omitempty"`
	PdafGain      *float64 `json:"pdaf_gain,omitempty"`
	PdafSquelch   *float64 `json:"pdaf_squelch,omitempty"`
	MaxSlew       *float64 `json:"max_slew,omitempty"`
	PdafFrames    *uint32  `json:"pdaf_frames,omitempty"`
	DropoutFrames *uint32  `json:"dropout_frames,omitempty"`
	StepFrames    *uint32  `json:"step_frames,omitempty"`
}

// Ranges groups the per-range tuning sets.
type Ranges struct {
	Normal *RangeTuning `json:"normal,omitempty"`
	Macro  *RangeTuning `json:"macro,omitempty"`
	Full   *RangeTuning `json:"full,omitempty"`
}

// Speeds groups the per-speed tuning sets.
type Speeds struct {
	Normal *SpeedTuning `json:"normal,omitempty"`
	Fast   *SpeedTuning `json:"fast,omitempty"`
}

// Tuning is the root autofocus tuning document. Map entries are
// [dioptre, hardware] pairs and must be strictly increasing in dioptre.
type Tuning struct {
	Ranges      *Ranges      `json:"ranges,omitempty"`
	Speeds      *Speeds      `json:"speeds,omitempty"`
	ConfEpsilon *uint32      `json:"conf_epsilon,omitempty"`
	ConfThresh  *uint32      `json:"conf_thresh,omitempty"`
	ConfClip    *uint32      `json:"conf_clip,omitempty"`
	SkipFrames  *uint32      `json:"skip_frames,omitempty"`
	Map         [][2]float64 `json:"map,omitempty"`
}

// Empty returns a Tuning with every field unset, so the consumer falls back
// to defaults throughout.
func Empty() *Tuning {
	return &Tuning{}
}

// Load reads and validates a tuning document from a JSON file. Partial
// documents are safe; only structural problems are errors.
func Load(path string) (*Tuning, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("tuning file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat tuning file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("tuning file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read tuning file: %w", err)
	}

	cfg := Empty()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse tuning JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid tuning: %w", err)
	}

	return cfg, nil
}

// Validate checks structural constraints the consumer cannot default away.
func (t *Tuning) Validate() error {
	if t.Ranges != nil {
		for _, r := range []*RangeTuning{t.Ranges.Normal, t.Ranges.Macro, t.Ranges.Full} {
			if r == nil {
				continue
			}
			if r.Min != nil && r.Max != nil && *r.Min > *r.Max {
				return fmt.Errorf("range min %f exceeds max %f", *r.Min, *r.Max)
			}
		}
	}

	if t.Speeds != nil {
		for _, s := range []*SpeedTuning{t.Speeds.Normal, t.Speeds.Fast} {
			if s == nil {
				continue
			}
			if s.ContrastRatio != nil && (*s.ContrastRatio <= 0 || *s.ContrastRatio > 1) {
				return fmt.Errorf("contrast_ratio must be in (0, 1], got %f", *s.ContrastRatio)
			}
			if s.MaxSlew != nil && *s.MaxSlew <= 0 {
				return fmt.Errorf("max_slew must be positive, got %f", *s.MaxSlew)
			}
		}
	}

	for i := 1; i < len(t.Map); i++ {
		if t.Map[i][0] <= t.Map[i-1][0] {
			return fmt.Errorf("map entries must be strictly increasing in dioptre: %f after %f",
				t.Map[i][0], t.Map[i-1][0])
		}
	}

	return nil
}
