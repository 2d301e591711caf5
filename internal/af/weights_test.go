package af

import (
	"testing"

	"github.com/corvid-imaging/afengine/internal/stats"
)

func TestComputeWeightsDefaultCentreWindow(t *testing.T) {
	a := New()

	var wgts regionWeights
	a.computeWeights(&wgts, 12, 16)

	// Middle 1/2 width of the middle 1/3 height: rows 4..7, cols 4..11.
	wantCells := (12 - 2*(12/3)) * (16 - 2*(16/4))
	if int(wgts.sum) != wantCells {
		t.Errorf("sum = %d, want %d", wgts.sum, wantCells)
	}

	var total uint32
	for _, w := range wgts.w {
		total += w
	}
	if total != wgts.sum {
		t.Errorf("sum %d does not match total weight %d", wgts.sum, total)
	}

	if wgts.w[0] != 0 {
		t.Error("corner cell should have zero weight")
	}
	if wgts.w[6*16+8] != 1 {
		t.Error("centre cell should have weight 1")
	}
}

func TestComputeWeightsFromWindows(t *testing.T) {
	a := New()
	a.statsRegion = stats.Rect{X: 0, Y: 0, Width: 4608, Height: 2592}
	a.useWindows = true
	a.windows = []stats.Rect{{X: 1536, Y: 864, Width: 1536, Height: 864}}

	var wgts regionWeights
	a.computeWeights(&wgts, 12, 16)

	if wgts.sum == 0 {
		t.Fatal("window weights should be non-zero")
	}
	if wgts.sum >= 1<<16 {
		t.Errorf("sum = %d, must stay below 2^16", wgts.sum)
	}

	var total uint32
	for _, w := range wgts.w {
		total += w
	}
	if total != wgts.sum {
		t.Errorf("sum %d does not match total weight %d", wgts.sum, total)
	}

	// Cells wholly outside the window carry no weight.
	if wgts.w[0] != 0 {
		t.Error("top-left cell should be outside the window")
	}
	// A cell wholly inside carries the full cell weight.
	inside := wgts.w[5*16+6]
	if inside == 0 {
		t.Error("cell inside the window should carry weight")
	}
}

func TestComputeWeightsSmallRegionFallsBack(t *testing.T) {
	a := New()
	a.statsRegion = stats.Rect{X: 0, Y: 0, Width: 8, Height: 6}
	a.useWindows = true
	a.windows = []stats.Rect{{X: 0, Y: 0, Width: 8, Height: 6}}

	// Region smaller than the grid: default centre window applies.
	var wgts regionWeights
	a.computeWeights(&wgts, 12, 16)

	if wgts.sum == 0 {
		t.Fatal("fallback window should produce weights")
	}
	if wgts.w[6*16+8] != 1 {
		t.Error("fallback should weight the centre cell")
	}
}

func TestInvalidationTriggers(t *testing.T) {
	a := New()
	a.computeWeights(&a.phaseWeights, 12, 16)
	a.computeWeights(&a.contrastWeights, 8, 8)

	a.SetMetering(true)
	if a.phaseWeights.sum != 0 || a.contrastWeights.sum != 0 {
		t.Error("SetMetering change should invalidate weights")
	}

	a.computeWeights(&a.phaseWeights, 12, 16)
	a.SetMetering(true) // no change
	if a.phaseWeights.sum == 0 {
		t.Error("SetMetering with unchanged value should not invalidate")
	}

	a.SetWindows([]stats.Rect{{X: 0, Y: 0, Width: 100, Height: 100}})
	if a.phaseWeights.sum != 0 {
		t.Error("SetWindows should invalidate weights while windows are in use")
	}

	a.SetMetering(false)
	a.computeWeights(&a.phaseWeights, 12, 16)
	a.SetWindows([]stats.Rect{{X: 0, Y: 0, Width: 50, Height: 50}})
	if a.phaseWeights.sum == 0 {
		t.Error("SetWindows with metering off should not invalidate")
	}
}

func TestSetWindowsCapsAtTen(t *testing.T) {
	a := New()
	wins := make([]stats.Rect, 15)
	for i := range wins {
		wins[i] = stats.Rect{X: i * 10, Y: 0, Width: 10, Height: 10}
	}
	a.SetWindows(wins)
	if len(a.windows) != maxWindows {
		t.Errorf("len(windows) = %d, want %d", len(a.windows), maxWindows)
	}
}
