package af

import (
	"github.com/corvid-imaging/afengine/internal/config"
	"github.com/corvid-imaging/afengine/internal/monitoring"
)

/*
 * Default values for parameters. All may be overridden in the tuning file.
 * Many of these values are sensor- or module-dependent; the defaults here
 * assume a mid-range VCM module with the standard lens.
 *
 * All focus values are in dioptres (1/m). They are converted to hardware
 * units when written to Status.LensSetting or returned from SetLensPosition.
 *
 * Frame counts are relative to the update rate, since much (not all) of the
 * delay is in the sensor and (for CDAF) ISP, not the lens mechanism.
 */

// RangeDependentParams bounds one focus range in dioptres.
type RangeDependentParams struct {
	FocusMin     float64 // lower (far) limit
	FocusMax     float64 // upper (near) limit
	FocusDefault float64 // default setting, e.g. hyperfocal
}

// SpeedDependentParams is one speed profile of the controller.
type SpeedDependentParams struct {
	StepCoarse    float64 // used during coarse scan
	StepFine      float64 // used during fine scan
	ContrastRatio float64 // contrast threshold relative to the scan maximum
	PdafGain      float64 // loop gain, typically negative
	PdafSquelch   float64 // squelch small lens movements
	MaxSlew       float64 // limit per-frame movement, in dioptres
	PdafFrames    uint32  // number of iterations when triggered
	DropoutFrames uint32  // number of low-confidence frames before a scan
	StepFrames    uint32  // frames to skip in between steps of a scan
}

// CfgParams is the complete, immutable tuning set for the controller.
type CfgParams struct {
	Ranges      [numRanges]RangeDependentParams
	Speeds      [numSpeeds]SpeedDependentParams
	ConfEpsilon uint32
	ConfThresh  uint32
	ConfClip    uint32
	SkipFrames  uint32
	Map         Pwl
}

func defaultRangeParams() RangeDependentParams {
	return RangeDependentParams{
		FocusMin:     0.0,
		FocusMax:     12.0,
		FocusDefault: 1.0,
	}
}

func defaultSpeedParams() SpeedDependentParams {
	return SpeedDependentParams{
		StepCoarse:    1.0,
		StepFine:      0.25,
		ContrastRatio: 0.75,
		PdafGain:      -0.02,
		PdafSquelch:   0.125,
		MaxSlew:       2.0,
		PdafFrames:    20,
		DropoutFrames: 6,
		StepFrames:    4,
	}
}

func defaultCfgParams() CfgParams {
	cfg := CfgParams{
		ConfEpsilon: 8,
		ConfThresh:  16,
		ConfClip:    512,
		SkipFrames:  5,
	}
	for i := range cfg.Ranges {
		cfg.Ranges[i] = defaultRangeParams()
	}
	for i := range cfg.Speeds {
		cfg.Speeds[i] = defaultSpeedParams()
	}
	return cfg
}

func readFloat(dst *float64, v *float64, name string) {
	if v == nil {
		monitoring.Logf("af: missing parameter %q", name)
		return
	}
	*dst = *v
}

func readUint(dst *uint32, v *uint32, name string) {
	if v == nil {
		monitoring.Logf("af: missing parameter %q", name)
		return
	}
	*dst = *v
}

func (p *RangeDependentParams) read(t *config.RangeTuning) {
	readFloat(&p.FocusMin, t.Min, "min")
	readFloat(&p.FocusMax, t.Max, "max")
	readFloat(&p.FocusDefault, t.Default, "default")
}

func (p *SpeedDependentParams) read(t *config.SpeedTuning) {
	readFloat(&p.StepCoarse, t.StepCoarse, "step_coarse")
	readFloat(&p.StepFine, t.StepFine, "step_fine")
	readFloat(&p.ContrastRatio, t.ContrastRatio, "contrast_ratio")
	readFloat(&p.PdafGain, t.PdafGain, "pdaf_gain")
	readFloat(&p.PdafSquelch, t.PdafSquelch, "pdaf_squelch")
	readFloat(&p.MaxSlew, t.MaxSlew, "max_slew")
	readUint(&p.PdafFrames, t.PdafFrames, "pdaf_frames")
	readUint(&p.DropoutFrames, t.DropoutFrames, "dropout_frames")
	readUint(&p.StepFrames, t.StepFrames, "step_frames")
}

func (cfg *CfgParams) read(t *config.Tuning) error {
	if t.Ranges != nil {
		if t.Ranges.Normal != nil {
			cfg.Ranges[RangeNormal].read(t.Ranges.Normal)
		} else {
			monitoring.Logf("af: missing range \"normal\"")
		}

		cfg.Ranges[RangeMacro] = cfg.Ranges[RangeNormal]
		if t.Ranges.Macro != nil {
			cfg.Ranges[RangeMacro].read(t.Ranges.Macro)
		}

		cfg.Ranges[RangeFull].FocusMin = min(cfg.Ranges[RangeNormal].FocusMin,
			cfg.Ranges[RangeMacro].FocusMin)
		cfg.Ranges[RangeFull].FocusMax = max(cfg.Ranges[RangeNormal].FocusMax,
			cfg.Ranges[RangeMacro].FocusMax)
		cfg.Ranges[RangeFull].FocusDefault = cfg.Ranges[RangeNormal].FocusDefault
		if t.Ranges.Full != nil {
			cfg.Ranges[RangeFull].read(t.Ranges.Full)
		}
	} else {
		monitoring.Logf("af: no ranges defined")
	}

	if t.Speeds != nil {
		if t.Speeds.Normal != nil {
			cfg.Speeds[SpeedNormal].read(t.Speeds.Normal)
		} else {
			monitoring.Logf("af: missing speed \"normal\"")
		}

		cfg.Speeds[SpeedFast] = cfg.Speeds[SpeedNormal]
		if t.Speeds.Fast != nil {
			cfg.Speeds[SpeedFast].read(t.Speeds.Fast)
		}
	} else {
		monitoring.Logf("af: no speeds defined")
	}

	readUint(&cfg.ConfEpsilon, t.ConfEpsilon, "conf_epsilon")
	readUint(&cfg.ConfThresh, t.ConfThresh, "conf_thresh")
	readUint(&cfg.ConfClip, t.ConfClip, "conf_clip")
	readUint(&cfg.SkipFrames, t.SkipFrames, "skip_frames")

	if len(t.Map) > 0 {
		cfg.Map = Pwl{}
		for _, pt := range t.Map {
			cfg.Map.Append(pt[0], pt[1])
		}
	} else {
		monitoring.Logf("af: no map defined")
	}

	return nil
}

// Default mapping from dioptres to hardware setting, used when the tuning
// document does not supply one.
const (
	defaultMapX0 = 0.0
	defaultMapY0 = 445.0
	defaultMapX1 = 15.0
	defaultMapY1 = 925.0
)

func (cfg *CfgParams) initialise() {
	if cfg.Map.Empty() {
		cfg.Map.Append(defaultMapX0, defaultMapY0)
		cfg.Map.Append(defaultMapX1, defaultMapY1)
	}
}
