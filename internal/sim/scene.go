// Package sim drives the autofocus controller against a synthetic scene so
// tuning can be exercised and recorded without camera hardware.
package sim

import (
	"math"

	"github.com/corvid-imaging/afengine/internal/stats"
)

// Scene is a synthetic focus target. Given a lens position it produces the
// PDAF and CDAF statistics a sensor and ISP would deliver for a subject at
// TrueFocus dioptres.
type Scene struct {
	TrueFocus    float64 // subject distance in dioptres
	DepthOfField float64 // contrast falloff width in dioptres

	ContrastPeak  float64 // focus FoM at perfect focus
	ContrastFloor float64 // residual FoM when fully defocused

	PhasePerDioptre float64 // PDAF phase units per dioptre of defocus
	PdafConf        uint16  // PDAF confidence while PDAF is usable
	PdafEnabled     bool    // whether the sensor delivers PDAF at all

	AgcLocked  bool    // scripted exposure lock state
	Brightness float64 // mean green level reported by the AWB grid

	Rows int // statistics grid height
	Cols int // statistics grid width
}

// DefaultScene returns a subject at 3 dioptres under a 16x12 statistics
// grid, with PDAF available.
func DefaultScene() *Scene {
	return &Scene{
		TrueFocus:       3.0,
		DepthOfField:    1.0,
		ContrastPeak:    4000,
		ContrastFloor:   100,
		PhasePerDioptre: 50,
		PdafConf:        64,
		PdafEnabled:     true,
		AgcLocked:       true,
		Brightness:      5000,
		Rows:            12,
		Cols:            16,
	}
}

// Pdaf returns the phase-detection grid for the given lens position, or nil
// when the scene has no PDAF.
func (sc *Scene) Pdaf(lens float64) *stats.Grid[stats.PdafData] {
	if !sc.PdafEnabled {
		return nil
	}

	phase := sc.PhasePerDioptre * (lens - sc.TrueFocus)
	phase = clampF(phase, math.MinInt16, math.MaxInt16)

	g := stats.NewGrid[stats.PdafData](sc.Rows, sc.Cols)
	g.SetAll(stats.Region[stats.PdafData]{
		Val:     stats.PdafData{Phase: int16(phase), Conf: sc.PdafConf},
		Counted: 1,
	})
	return g
}

// Focus returns the contrast grid for the given lens position, a Lorentzian
// peak around the subject distance.
func (sc *Scene) Focus(lens float64) *stats.Grid[stats.FocusVal] {
	d := (lens - sc.TrueFocus) / sc.DepthOfField
	fom := sc.ContrastFloor + sc.ContrastPeak/(1.0+d*d)

	g := stats.NewGrid[stats.FocusVal](sc.Rows, sc.Cols)
	g.SetAll(stats.Region[stats.FocusVal]{
		Val:     stats.FocusVal{Val: uint32(fom)},
		Counted: 1,
	})
	return g
}

// Awb returns the white-balance grid: uniform zones at the scene brightness.
func (sc *Scene) Awb() *stats.Grid[stats.AwbVal] {
	const pixelsPerZone = 256

	g := stats.NewGrid[stats.AwbVal](sc.Rows, sc.Cols)
	gSum := uint64(sc.Brightness * pixelsPerZone)
	g.SetAll(stats.Region[stats.AwbVal]{
		Val:     stats.AwbVal{RSum: gSum / 2, GSum: gSum, BSum: gSum / 2},
		Counted: pixelsPerZone,
	})
	return g
}

func clampF(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}
