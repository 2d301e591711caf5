package af

import (
	"testing"

	"github.com/corvid-imaging/afengine/internal/metadata"
	"github.com/corvid-imaging/afengine/internal/stats"
)

// caf returns a controller idling in continuous mode with no PDAF, the
// state in which the scene-change trigger detector is active.
func caf(t *testing.T) *Af {
	t.Helper()
	a := New()
	a.Initialise()
	a.mode = ModeContinuous
	a.initted = true
	a.ftarget = 1.0
	a.fsmooth = 1.0
	return a
}

// cafFrame delivers one AWB mean via Process and then runs Prepare.
func cafFrame(a *Af, mean float64, locked bool) {
	a.Process(&stats.Statistics{AwbRegions: awbGrid(12, 16, mean)}, metadata.New())
	md := metadata.New()
	md.Set(KeyAgcStatus, stats.AgcPrepareStatus{Locked: locked})
	a.Prepare(md)
}

func TestTriggerOnSceneChangeThenStable(t *testing.T) {
	a := caf(t)

	cafFrame(a, 5000, true) // latches lastMean
	cafFrame(a, 5000, true) // stable, no trigger
	if a.scanState != scanIdle {
		t.Fatal("stable scene must not trigger a scan")
	}

	cafFrame(a, 7000, true) // diff 2000: arms the trigger
	if !a.triggerWhenStable {
		t.Fatal("large mean change should arm the trigger")
	}
	if a.scanState != scanIdle {
		t.Fatal("scan must wait for the scene to settle")
	}

	cafFrame(a, 6900, true) // diff 100: fires
	if a.scanState != scanCoarse {
		t.Errorf("scanState = %d, want coarse after the scene settles", a.scanState)
	}
}

func TestTriggerOnAgcLockTransition(t *testing.T) {
	a := caf(t)

	cafFrame(a, 5000, true)  // locked, latches mean
	cafFrame(a, 5000, false) // unlock
	cafFrame(a, 5000, true)  // re-lock: unlocked-to-locked starts a scan
	if a.scanState != scanCoarse {
		t.Errorf("scanState = %d, want coarse after AGC re-lock", a.scanState)
	}
}

func TestTriggerRequiresAgcLock(t *testing.T) {
	a := caf(t)

	cafFrame(a, 5000, false)
	cafFrame(a, 9000, false)
	cafFrame(a, 9100, false)
	if a.scanState != scanIdle {
		t.Error("unlocked AGC must suppress the trigger")
	}
}

func TestTriggerSurvivesEmptyAwbZones(t *testing.T) {
	a := caf(t)

	cafFrame(a, 5000, true)

	// A frame where no zone passes the filters: dark scene.
	a.Process(&stats.Statistics{AwbRegions: awbGrid(12, 16, 4)}, metadata.New())
	md := metadata.New()
	md.Set(KeyAgcStatus, stats.AgcPrepareStatus{Locked: true})
	a.Prepare(md)

	if a.scanState != scanIdle {
		t.Error("a frame with no usable zones must not trigger")
	}
	if a.lastMean != 0 {
		t.Error("the stale mean must be forgotten when no mean is available")
	}

	// The next usable frame must not fake a scene change either.
	cafFrame(a, 9000, true)
	if a.scanState != scanIdle {
		t.Error("the first mean after a gap must only latch, not trigger")
	}
}

func TestTriggerSuppressedWhilePdafEnabled(t *testing.T) {
	a := caf(t)
	a.isPdafEnabled = true

	cafFrame(a, 5000, true)
	cafFrame(a, 9000, true)
	cafFrame(a, 9100, true)
	if a.scanState != scanIdle {
		t.Error("trigger detector must stay out of the way while PDAF is available")
	}
}

func TestReduceAwbZonesFiltersDimAndSparse(t *testing.T) {
	a := New()

	g := stats.NewGrid[stats.AwbVal](2, 2)
	g.Set(0, stats.Region[stats.AwbVal]{Val: stats.AwbVal{GSum: 256 * 100}, Counted: 256}) // kept: mean 100
	g.Set(1, stats.Region[stats.AwbVal]{Val: stats.AwbVal{GSum: 256 * 300}, Counted: 256}) // kept: mean 300
	g.Set(2, stats.Region[stats.AwbVal]{Val: stats.AwbVal{GSum: 256 * 10}, Counted: 256})  // dim, dropped
	g.Set(3, stats.Region[stats.AwbVal]{Val: stats.AwbVal{GSum: 8 * 5000}, Counted: 8})    // sparse, dropped

	a.reduceAwbZones(g)
	if !a.awbMeanValid {
		t.Fatal("mean should be available")
	}
	if a.awbMean != 200 {
		t.Errorf("awbMean = %f, want 200", a.awbMean)
	}

	a.reduceAwbZones(stats.NewGrid[stats.AwbVal](2, 2))
	if a.awbMeanValid {
		t.Error("all-empty grid must report no mean")
	}
}
