package af

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/corvid-imaging/afengine/internal/stats"
)

// The trigger detector starts a CAF scan without PDAF guidance: once AGC has
// locked the exposure, a large jump in the scene's mean green level arms the
// detector, and the scan starts when the level settles again.
const (
	awbZoneMinPixels = 16   // ignore zones with too few counted pixels
	awbZoneMinGreen  = 32   // ignore near-black zones
	sceneChangeDiff  = 1000 // arm the trigger above this mean change
	sceneStableDiff  = 400  // fire the armed trigger below this change
)

// reduceAwbZones latches the filtered mean green level from the AWB grid.
// Called from process(); the value is consumed by the next prepare(). With
// no zone passing the filters there is no mean available this frame.
func (a *Af) reduceAwbZones(awb *stats.Grid[stats.AwbVal]) {
	a.awbMeanValid = false
	if awb == nil {
		return
	}

	var zones []float64
	for i := 0; i < awb.NumRegions(); i++ {
		r := awb.Get(i)
		if r.Counted < awbZoneMinPixels {
			continue
		}
		zone := float64(r.Val.GSum) / float64(r.Counted)
		if zone >= awbZoneMinGreen {
			zones = append(zones, zone)
		}
	}
	if len(zones) == 0 {
		return
	}

	a.awbMean = stat.Mean(zones, nil)
	a.awbMeanValid = true
}

// updateTrigger runs the scene-change detector for one frame. Only called
// while idle in continuous mode with PDAF unavailable.
func (a *Af) updateTrigger(agcLocked bool) {
	if !a.awbMeanValid {
		// No mean available: forget the last one so a stale value
		// cannot fake a scene change when zones reappear.
		a.lastAgcStatus = agcLocked
		a.lastMean = 0
		return
	}

	if agcLocked && a.lastMean != 0 {
		diff := math.Abs(a.awbMean - a.lastMean)
		if diff > sceneChangeDiff {
			a.triggerWhenStable = true
		}
		if a.triggerWhenStable && diff < sceneStableDiff {
			a.startProgrammedScan()
		} else if !a.lastAgcStatus {
			a.startProgrammedScan()
		}
	}
	a.lastAgcStatus = agcLocked
	a.lastMean = a.awbMean
}
