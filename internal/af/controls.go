package af

import (
	"math"

	"github.com/corvid-imaging/afengine/internal/monitoring"
	"github.com/corvid-imaging/afengine/internal/stats"
)

// The command surface. The host is expected to call these only between
// frames; commands that arrive mid-frame take effect at the next Prepare.

// SetRange selects the active focus range. Out-of-range values are ignored.
func (a *Af) SetRange(r Range) {
	monitoring.Logf("af: setRange %s", r)
	if r >= 0 && r < numRanges {
		a.focusRange = r
	}
}

// SetSpeed selects the active speed profile. Switching during a triggered
// PDAF sequence extends the remaining iterations if the new profile has
// more, but never shortens a sequence already in progress.
func (a *Af) SetSpeed(s Speed) {
	monitoring.Logf("af: setSpeed %s", s)
	if s >= 0 && s < numSpeeds {
		if a.scanState == scanPdaf &&
			a.cfg.Speeds[s].PdafFrames > a.cfg.Speeds[a.speed].PdafFrames {
			a.stepCount += a.cfg.Speeds[s].PdafFrames - a.cfg.Speeds[a.speed].PdafFrames
		}
		a.speed = s
	}
}

// SetMetering toggles between the user focus windows and the default centre
// window. The weight grids are invalidated on change.
func (a *Af) SetMetering(useWindows bool) {
	if a.useWindows != useWindows {
		a.useWindows = useWindows
		a.invalidateWeights()
	}
}

// SetWindows replaces the focus window list, truncated to the first ten.
func (a *Af) SetWindows(windows []stats.Rect) {
	a.windows = a.windows[:0]
	for _, w := range windows {
		monitoring.Logf("af: window %d,%d %dx%d", w.X, w.Y, w.Width, w.Height)
		a.windows = append(a.windows, w)
		if len(a.windows) >= maxWindows {
			break
		}
	}

	if a.useWindows {
		a.invalidateWeights()
	}
}

// SetLensPosition moves the lens directly, in manual mode only. The target
// is clipped to the map's domain; the lens still slews. It returns the
// hardware position for the (possibly still moving) smoothed position, and
// whether the position changed.
func (a *Af) SetLensPosition(dioptres float64) (hwpos int, changed bool) {
	if a.mode == ModeManual {
		monitoring.Logf("af: setLensPosition %.3f", dioptres)
		a.ftarget = a.cfg.Map.ClampDomain(dioptres)
		changed = !(a.initted && a.fsmooth == a.ftarget)
		a.updateLensPosition()
	}

	hwpos = int(math.Round(a.cfg.Map.Eval(a.fsmooth)))
	return hwpos, changed
}

// GetLensPosition returns the smoothed lens position in dioptres, or false
// while the starting position is still unknown.
func (a *Af) GetLensPosition() (float64, bool) {
	if !a.initted {
		return 0, false
	}
	return a.fsmooth, true
}

// TriggerScan requests a single AF cycle. Only honoured in auto mode while
// idle; the cycle begins at the next Prepare.
func (a *Af) TriggerScan() {
	monitoring.Logf("af: triggerScan")
	if a.mode == ModeAuto && a.scanState == scanIdle {
		a.scanState = scanTrigger
	}
}

// CancelScan abandons a triggered AF cycle. Only honoured in auto mode.
func (a *Af) CancelScan() {
	monitoring.Logf("af: cancelScan")
	if a.mode == ModeAuto {
		a.goIdle()
	}
}

// SetMode switches the operating mode. Entering continuous mode arms a
// scan; entering manual mode goes idle, as does entering auto mode unless a
// programmed scan is in its coarse, fine or settle phase, which then runs
// on. Any pause is cleared.
func (a *Af) SetMode(mode Mode) {
	monitoring.Logf("af: setMode %s", mode)
	if a.mode == mode {
		return
	}
	a.mode = mode
	a.pauseFlag = false
	if mode == ModeContinuous {
		a.scanState = scanTrigger
	} else if mode != ModeAuto || a.scanState < scanCoarse {
		a.goIdle()
	}
}

// GetMode returns the current operating mode.
func (a *Af) GetMode() Mode {
	return a.mode
}

// Pause controls continuous-mode pausing. Immediate stops any scan at once;
// Deferred lets a programmed scan already in its coarse, fine or settle
// phase finish, and otherwise (trigger or PDAF loop) goes idle at once;
// Resume clears the pause and re-arms via a trigger if the controller had
// gone idle.
func (a *Af) Pause(p PauseCmd) {
	monitoring.Logf("af: pause %d", p)
	if a.mode != ModeContinuous {
		return
	}
	if p == PauseResume && a.pauseFlag {
		a.pauseFlag = false
		if a.scanState < scanCoarse {
			a.scanState = scanTrigger
		}
	} else if p != PauseResume && !a.pauseFlag {
		a.pauseFlag = true
		if p == PauseImmediate || a.scanState < scanCoarse {
			a.goIdle()
		}
	}
}
