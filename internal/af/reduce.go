package af

import (
	"github.com/corvid-imaging/afengine/internal/monitoring"
	"github.com/corvid-imaging/afengine/internal/stats"
)

// getPhase reduces a PDAF region grid to a single weighted (phase,
// confidence) pair. Regions below the confidence threshold are skipped.
//
// Subtracting confThresh/4 once before the confidence sum and a second time
// before weighting the phase sum gives phase a linear confidence weight while
// giving overall confidence a quadratic one: low-confidence regions cannot
// pollute the phase estimate, yet still register as weakly useful.
func (a *Af) getPhase(regions *stats.Grid[stats.PdafData]) (phase, conf float64, ok bool) {
	if regions.Rows != a.phaseWeights.rows || regions.Cols != a.phaseWeights.cols ||
		a.phaseWeights.sum == 0 {
		monitoring.Logf("af: recompute phase weights %dx%d", regions.Cols, regions.Rows)
		a.computeWeights(&a.phaseWeights, regions.Rows, regions.Cols)
	}

	var sumWc uint32
	var sumWcp int64
	for i := 0; i < regions.NumRegions(); i++ {
		w := a.phaseWeights.w[i]
		if w == 0 {
			continue
		}
		data := regions.Get(i).Val
		c := uint32(data.Conf)
		if c < a.cfg.ConfThresh {
			continue
		}
		if c > a.cfg.ConfClip {
			c = a.cfg.ConfClip
		}
		c -= a.cfg.ConfThresh >> 2
		sumWc += w * c
		c -= a.cfg.ConfThresh >> 2
		sumWcp += int64(w*c) * int64(data.Phase)
	}

	if 0 < a.phaseWeights.sum && a.phaseWeights.sum <= sumWc {
		return float64(sumWcp) / float64(sumWc),
			float64(sumWc) / float64(a.phaseWeights.sum), true
	}
	return 0, 0, false
}

// getContrast reduces a CDAF focus grid to a single weighted contrast value.
func (a *Af) getContrast(focusStats *stats.Grid[stats.FocusVal]) float64 {
	if focusStats.Rows != a.contrastWeights.rows || focusStats.Cols != a.contrastWeights.cols ||
		a.contrastWeights.sum == 0 {
		monitoring.Logf("af: recompute contrast weights %dx%d", focusStats.Cols, focusStats.Rows)
		a.computeWeights(&a.contrastWeights, focusStats.Rows, focusStats.Cols)
	}

	var sumWc uint64
	for i := 0; i < focusStats.NumRegions(); i++ {
		sumWc += uint64(a.contrastWeights.w[i]) * uint64(focusStats.Get(i).Val.Val)
	}

	if a.contrastWeights.sum == 0 {
		return 0
	}
	return float64(sumWc) / float64(a.contrastWeights.sum)
}
