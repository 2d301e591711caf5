// Package af implements the hybrid PDAF/CDAF autofocus control algorithm.
//
// Once per frame the controller consumes two sources of focus evidence:
// phase-detection regions produced by the sensor (available in prepare) and
// contrast statistics produced by the ISP (available only in process, one
// frame later). It runs a closed PDAF loop when phase confidence allows,
// falls back to a programmed coarse+fine contrast scan when it does not,
// and emits a new lens position plus a reported state each frame.
package af

import (
	"math"

	"github.com/corvid-imaging/afengine/internal/config"
	"github.com/corvid-imaging/afengine/internal/metadata"
	"github.com/corvid-imaging/afengine/internal/monitoring"
	"github.com/corvid-imaging/afengine/internal/stats"
)

// Name is the algorithm's registry name.
const Name = "af.hybrid"

// Metadata keys consumed and produced by the controller.
const (
	KeyPdafRegions = "pdaf.regions"
	KeyAgcStatus   = "agc.prepare_status"
	KeyStatus      = "af.status"
)

// Af is the autofocus controller. It is frame-driven and single-threaded:
// the host calls Prepare then Process for each frame, and command-surface
// calls are expected only between frames.
type Af struct {
	cfg CfgParams

	focusRange Range
	speed      Speed
	mode       Mode
	pauseFlag  bool

	statsRegion stats.Rect
	windows     []stats.Rect
	useWindows  bool

	phaseWeights    regionWeights
	contrastWeights regionWeights

	scanState scanState
	initted   bool
	ftarget   float64
	fsmooth   float64

	prevContrast float64
	skipCount    uint32
	stepCount    uint32
	dropCount    uint32

	scanMaxContrast float64
	scanMinContrast float64
	scanMaxIndex    int
	scanData        []scanRecord
	reportState     State

	isPdafEnabled bool
	agcLocked     bool

	// Trigger detector latches.
	lastMean          float64
	lastAgcStatus     bool
	triggerWhenStable bool
	stableFrameCount  uint32

	// Scalar summaries latched by Process for the next Prepare.
	awbMean      float64
	awbMeanValid bool
}

// New creates a controller with default tuning. Call Read to apply a tuning
// document and Initialise before the first frame.
func New() *Af {
	return &Af{
		cfg:             defaultCfgParams(),
		focusRange:      RangeNormal,
		speed:           SpeedNormal,
		mode:            ModeManual,
		scanState:       scanIdle,
		ftarget:         -1.0,
		fsmooth:         -1.0,
		scanMinContrast: 1.0e9,
		scanData:        make([]scanRecord, 0, 32),
		reportState:     StateIdle,
	}
}

// Name returns the algorithm's registry name.
func (a *Af) Name() string {
	return Name
}

// Read applies a tuning document. Missing keys keep their defaults and log
// a warning; Read never fails on an incomplete document.
func (a *Af) Read(t *config.Tuning) error {
	return a.cfg.read(t)
}

// Initialise finalises the tuning set, inserting the default dioptre to
// hardware map if the document did not provide one.
func (a *Af) Initialise() {
	a.cfg.initialise()
}

// SwitchMode adopts a new sensor readout geometry. Statistics grids are
// assumed to cover the visible area, so the weight grids are invalidated,
// and an in-progress scan is restarted as its CDAF samples are no longer
// comparable.
func (a *Af) SwitchMode(mode stats.CameraMode, _ *metadata.Metadata) {
	a.statsRegion = stats.Rect{
		X:      mode.CropX,
		Y:      mode.CropY,
		Width:  int(float64(mode.Width) * mode.ScaleX),
		Height: int(float64(mode.Height) * mode.ScaleY),
	}
	monitoring.Logf("af: switchMode statsRegion %d,%d %dx%d",
		a.statsRegion.X, a.statsRegion.Y, a.statsRegion.Width, a.statsRegion.Height)
	a.invalidateWeights()

	if a.scanState >= scanCoarse && a.scanState < scanSettle {
		a.startProgrammedScan()
	}
	a.skipCount = a.cfg.SkipFrames
}

// doPDAF runs one iteration of the closed phase loop: gain, squelch (or the
// triggered-mode ramp), slew limit, and a new target position.
func (a *Af) doPDAF(phase, conf float64) {
	sp := &a.cfg.Speeds[a.speed]

	/* Apply loop gain */
	phase *= sp.PdafGain

	if a.mode == ModeContinuous {
		/*
		 * PDAF in continuous mode. Scale down lens movement when
		 * delta is small or confidence is low, to suppress wobble.
		 */
		phase *= conf / (conf + float64(a.cfg.ConfEpsilon))
		if math.Abs(phase) < sp.PdafSquelch {
			x := phase / sp.PdafSquelch
			phase *= x * x
		}
	} else {
		/*
		 * PDAF in triggered-auto mode. Allow early termination when
		 * phase delta is small; scale down lens movements towards the
		 * end of the sequence, to ensure a stable image.
		 */
		if a.stepCount >= sp.StepFrames {
			if math.Abs(phase) < sp.PdafSquelch {
				a.stepCount = sp.StepFrames
			}
		} else {
			phase *= float64(a.stepCount) / float64(sp.StepFrames)
		}
	}

	/* Apply slew rate limit. Report failure if out of bounds. */
	rng := &a.cfg.Ranges[a.focusRange]
	switch {
	case phase < -sp.MaxSlew:
		phase = -sp.MaxSlew
		if a.ftarget <= rng.FocusMin {
			a.reportState = StateFailed
		} else {
			a.reportState = StateScanning
		}
	case phase > sp.MaxSlew:
		phase = sp.MaxSlew
		if a.ftarget >= rng.FocusMax {
			a.reportState = StateFailed
		} else {
			a.reportState = StateScanning
		}
	default:
		a.reportState = StateFocused
	}

	a.ftarget = a.fsmooth + phase
}

// earlyTerminationByPhase abandons a scan when two PDAF samples allow direct
// interpolation of the zero-phase lens position.
func (a *Af) earlyTerminationByPhase(phase float64) bool {
	if len(a.scanData) == 0 {
		return false
	}
	last := a.scanData[len(a.scanData)-1]
	if last.conf < float64(a.cfg.ConfEpsilon) {
		return false
	}

	/*
	 * Check that the gradient is finite and has the expected sign;
	 * interpolate/extrapolate the lens position for zero phase.
	 * Check that the extrapolation is well-conditioned.
	 */
	if (a.ftarget-last.focus)*(phase-last.phase) > 0.0 {
		param := phase / (phase - last.phase)
		if -3.0 <= param && param <= 3.5 {
			a.ftarget += param * (last.focus - a.ftarget)
			monitoring.Logf("af: etbp param=%.3f", param)
			return true
		}
	}

	return false
}

// findPeak interpolates the contrast peak around sample i of the current
// scan. The 0.3125 coefficient yields correct interpolation for a symmetric
// parabola while bounding overshoot on asymmetric curves.
func (a *Af) findPeak(i int) float64 {
	f := a.scanData[i].focus

	if i > 0 && i+1 < len(a.scanData) {
		dropLo := a.scanData[i].contrast - a.scanData[i-1].contrast
		dropHi := a.scanData[i].contrast - a.scanData[i+1].contrast
		if 0.0 <= dropLo && dropLo < dropHi {
			param := 0.3125 * (1.0 - dropLo/dropHi) * (1.6 - dropLo/dropHi)
			f += param * (a.scanData[i-1].focus - f)
		} else if 0.0 <= dropHi && dropHi < dropLo {
			param := 0.3125 * (1.0 - dropHi/dropLo) * (1.6 - dropHi/dropLo)
			f += param * (a.scanData[i+1].focus - f)
		}
	}

	monitoring.Logf("af: findPeak %.3f", f)
	return f
}

// doScan advances the programmed scan by one armed frame: record the sample,
// then either step the lens or finish the phase.
func (a *Af) doScan(contrast, phase, conf float64) {
	sp := &a.cfg.Speeds[a.speed]
	rng := &a.cfg.Ranges[a.focusRange]

	/* Record lens position, contrast and phase values for the current scan */
	if len(a.scanData) == 0 || contrast > a.scanMaxContrast {
		a.scanMaxContrast = contrast
		a.scanMaxIndex = len(a.scanData)
	}
	if contrast < a.scanMinContrast {
		a.scanMinContrast = contrast
	}
	a.scanData = append(a.scanData, scanRecord{a.ftarget, contrast, phase, conf})

	if a.scanState == scanCoarse {
		if a.ftarget >= rng.FocusMax || contrast < sp.ContrastRatio*a.scanMaxContrast {
			/*
			 * Finished coarse scan, or termination based on contrast.
			 * Jump to just after max contrast and start fine scan.
			 */
			a.ftarget = min(a.ftarget, a.findPeak(a.scanMaxIndex)+2.0*sp.StepFine)
			a.scanState = scanFine
			a.scanData = a.scanData[:0]
		} else {
			a.ftarget += sp.StepCoarse
		}
	} else { /* scanFine */
		if a.ftarget <= rng.FocusMin || len(a.scanData) >= 5 ||
			contrast < sp.ContrastRatio*a.scanMaxContrast {
			/*
			 * Finished fine scan, or termination based on contrast.
			 * Use quadratic peak-finding to find best contrast position.
			 */
			a.ftarget = a.findPeak(a.scanMaxIndex)
			a.scanState = scanSettle
		} else {
			a.ftarget -= sp.StepFine
		}
	}

	if a.ftarget == a.fsmooth {
		a.stepCount = 0
	} else {
		a.stepCount = sp.StepFrames
	}
}

// doAF advances the control state machine by one frame.
func (a *Af) doAF(contrast, phase, conf float64) {
	/* Skip frames at startup and after sensor mode change */
	if a.skipCount > 0 {
		a.skipCount--
		return
	}

	if a.mode == ModeContinuous && !a.isPdafEnabled && a.scanState == scanIdle {
		a.updateTrigger(a.agcLocked)
	} else if a.scanState == scanPdaf {
		/*
		 * Use PDAF closed-loop control whenever available, in both CAF
		 * mode and (for a limited number of iterations) when triggered.
		 * If PDAF fails (due to poor contrast, noise or large defocus),
		 * fall back to a CDAF-based scan. To avoid "nuisance" scans,
		 * scan only after a number of frames with low PDAF confidence.
		 */
		threshold := 0.25
		if a.dropCount > 0 {
			threshold = 1.0
		}
		if conf > threshold*float64(a.cfg.ConfEpsilon) {
			a.doPDAF(phase, conf)
			if a.stepCount > 0 {
				a.stepCount--
			} else if a.mode != ModeContinuous {
				a.scanState = scanIdle
			}
			a.dropCount = 0
		} else {
			a.dropCount++
			if a.dropCount == a.cfg.Speeds[a.speed].DropoutFrames {
				a.startProgrammedScan()
			}
		}
	} else if a.scanState >= scanCoarse && a.fsmooth == a.ftarget {
		/*
		 * Scanning sequence. This means PDAF has become unavailable.
		 * Allow a delay between steps for CDAF FoM statistics to be
		 * updated, and a "settling time" at the end of the sequence.
		 * A coarse or fine scan can be abandoned if two PDAF samples
		 * allow direct interpolation of the zero-phase lens position.
		 */
		sp := &a.cfg.Speeds[a.speed]
		if a.stepCount > 0 {
			a.stepCount--
		} else if a.scanState == scanSettle {
			if a.prevContrast >= sp.ContrastRatio*a.scanMaxContrast &&
				a.scanMinContrast <= sp.ContrastRatio*a.scanMaxContrast {
				a.reportState = StateFocused
			} else {
				a.reportState = StateFailed
			}
			if a.mode == ModeContinuous && !a.pauseFlag &&
				sp.DropoutFrames > 0 && a.isPdafEnabled {
				a.scanState = scanPdaf
			} else {
				a.scanState = scanIdle
			}
			a.scanData = a.scanData[:0]
			a.lastMean = 0
		} else if conf >= float64(a.cfg.ConfEpsilon) && a.earlyTerminationByPhase(phase) {
			a.scanState = scanSettle
			if a.mode == ModeContinuous {
				a.stepCount = 0
			} else {
				a.stepCount = sp.StepFrames
			}
		} else {
			a.doScan(contrast, phase, conf)
		}
	}
}

// updateLensPosition moves the smoothed lens position towards the target,
// clamping the target to the active range while the controller is driving
// the lens and applying the slew-rate limit once a position is known.
func (a *Af) updateLensPosition() {
	if a.scanState >= scanPdaf {
		rng := &a.cfg.Ranges[a.focusRange]
		a.ftarget = clamp(a.ftarget, rng.FocusMin, rng.FocusMax)
	}

	if a.initted {
		/* from a known lens position: apply slew rate limit */
		sp := &a.cfg.Speeds[a.speed]
		a.fsmooth = clamp(a.ftarget, a.fsmooth-sp.MaxSlew, a.fsmooth+sp.MaxSlew)
	} else {
		/* from an unknown position: go straight to target, but add delay */
		a.fsmooth = a.ftarget
		a.initted = true
		a.skipCount = a.cfg.SkipFrames
	}
}

// startAF begins a triggered or continuous AF cycle, preferring the PDAF
// loop when the tuning allows it.
func (a *Af) startAF() {
	sp := &a.cfg.Speeds[a.speed]

	/* Use PDAF if the tuning file allows it; else CDAF. */
	if sp.DropoutFrames > 0 && (a.mode == ModeContinuous || sp.PdafFrames > 0) {
		if !a.initted {
			a.ftarget = a.cfg.Ranges[a.focusRange].FocusDefault
			a.updateLensPosition()
		}
		if a.mode == ModeContinuous {
			a.stepCount = 0
		} else {
			a.stepCount = sp.PdafFrames
		}
		a.scanState = scanPdaf
		a.scanData = a.scanData[:0]
		a.dropCount = 0
		a.reportState = StateScanning
	} else {
		a.startProgrammedScan()
	}
}

// startProgrammedScan begins a coarse contrast scan from the far end
// (FocusMin) of the active range and resets the scan accumulators and
// trigger latches.
func (a *Af) startProgrammedScan() {
	a.ftarget = a.cfg.Ranges[a.focusRange].FocusMin
	a.updateLensPosition()
	a.scanState = scanCoarse
	a.scanMaxContrast = 0.0
	a.scanMinContrast = 1.0e9
	a.scanMaxIndex = 0
	a.scanData = a.scanData[:0]
	a.stepCount = a.cfg.Speeds[a.speed].StepFrames
	a.reportState = StateScanning
	a.stableFrameCount = 0
	a.lastMean = 0
	a.triggerWhenStable = false
	a.lastAgcStatus = false
}

// goIdle abandons any activity and returns to the idle state.
func (a *Af) goIdle() {
	a.scanState = scanIdle
	a.reportState = StateIdle
	a.scanData = a.scanData[:0]
}

/*
 * PDAF phase data are available in Prepare, but CDAF statistics are not
 * available until Process. We are gambling on the availability of PDAF.
 * To expedite feedback control using PDAF, the lens setting is issued from
 * Prepare. Conversely, during scans, we must allow an extra frame delay
 * between steps, to retrieve CDAF statistics from the previous Process so
 * we can terminate the scan early without having to change our minds.
 */

// Prepare advances the controller by one frame. It reads PDAF regions and
// the AGC status from md, runs the state machine, updates the lens position
// and publishes the AF status back into md.
func (a *Af) Prepare(md *metadata.Metadata) {
	/* Initialize for triggered scan or start of CAF mode */
	if a.scanState == scanTrigger {
		a.startAF()
	}

	if a.initted {
		/* Get PDAF from the frame metadata, and run the control core */
		var phase, conf float64
		oldFt := a.ftarget
		oldFs := a.fsmooth
		oldSs := a.scanState
		oldSt := a.stepCount

		if regions, ok := metadata.Get[*stats.Grid[stats.PdafData]](md, KeyPdafRegions); ok && regions != nil {
			phase, conf, _ = a.getPhase(regions)
			a.isPdafEnabled = true
		}
		agc, _ := metadata.Get[stats.AgcPrepareStatus](md, KeyAgcStatus)
		a.agcLocked = agc.Locked

		a.doAF(a.prevContrast, phase, conf)
		a.updateLensPosition()

		monitoring.Logf("af: %s sst%d->%d stp%d->%d ft%.2f->%.2f fs%.2f->%.2f cont=%d phase=%d conf=%d",
			a.reportState, oldSs, a.scanState, oldSt, a.stepCount,
			oldFt, a.ftarget, oldFs, a.fsmooth,
			int(a.prevContrast), int(phase), int(conf))
	}

	/* Report status and produce new lens setting */
	var status Status
	if a.pauseFlag {
		if a.scanState == scanIdle {
			status.PauseState = PauseStatePaused
		} else {
			status.PauseState = PauseStatePausing
		}
	} else {
		status.PauseState = PauseStateRunning
	}

	if a.mode == ModeAuto && a.scanState != scanIdle {
		status.State = StateScanning
	} else {
		status.State = a.reportState
	}

	if a.initted {
		status.LensSetting = LensSetting{
			Value: int(math.Round(a.cfg.Map.Eval(a.fsmooth))),
			Valid: true,
		}
	}
	md.Set(KeyStatus, status)
}

// Process consumes the ISP statistics for the frame. Only scalar summaries
// are latched for the next Prepare; the grids are borrowed for the duration
// of the call.
func (a *Af) Process(st *stats.Statistics, _ *metadata.Metadata) {
	if st == nil {
		return
	}
	if st.FocusRegions != nil {
		a.prevContrast = a.getContrast(st.FocusRegions)
	}
	a.reduceAwbZones(st.AwbRegions)
}

func clamp(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}
