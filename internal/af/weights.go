package af

// maxWindows caps the number of user focus windows.
const maxWindows = 10

// regionWeights reweights a statistics grid cell-by-cell. sum is the total
// of w; sum == 0 marks the grid as invalidated, forcing a recompute on the
// next reduction.
type regionWeights struct {
	rows int
	cols int
	sum  uint32
	w    []uint32
}

// computeWeights fills wgts for a rows x cols statistics grid from the
// current focus windows, or from the default centre window when none apply.
func (a *Af) computeWeights(wgts *regionWeights, rows, cols int) {
	wgts.rows = rows
	wgts.cols = cols
	wgts.sum = 0
	wgts.w = make([]uint32, rows*cols)

	if rows > 0 && cols > 0 && a.useWindows &&
		a.statsRegion.Height >= rows && a.statsRegion.Width >= cols {
		/*
		 * Here we just merge all of the given windows, weighted by area.
		 * Ensure weights sum to less than (1<<16). 46080 is a "round
		 * number" below 65536, for better rounding when window size is
		 * a simple fraction of image dimensions.
		 */
		maxCellWeight := uint32(46080 / (maxWindows * rows * cols))
		cellH := a.statsRegion.Height / rows
		cellW := a.statsRegion.Width / cols
		cellA := cellH * cellW

		for _, win := range a.windows {
			for r := 0; r < rows; r++ {
				y0 := max(a.statsRegion.Y+cellH*r, win.Y)
				y1 := min(a.statsRegion.Y+cellH*(r+1), win.Y+win.Height)
				if y0 >= y1 {
					continue
				}
				h := y1 - y0
				for c := 0; c < cols; c++ {
					x0 := max(a.statsRegion.X+cellW*c, win.X)
					x1 := min(a.statsRegion.X+cellW*(c+1), win.X+win.Width)
					if x0 >= x1 {
						continue
					}
					area := h * (x1 - x0)
					weight := (maxCellWeight*uint32(area) + uint32(cellA) - 1) / uint32(cellA)
					wgts.w[r*cols+c] += weight
					wgts.sum += weight
				}
			}
		}
	}

	if wgts.sum == 0 {
		/* Default AF window is the middle 1/2 width of the middle 1/3 height */
		for r := rows / 3; r < rows-rows/3; r++ {
			for c := cols / 4; c < cols-cols/4; c++ {
				wgts.w[r*cols+c] = 1
				wgts.sum++
			}
		}
	}
}

// invalidateWeights forces both weight grids to be recomputed on the next
// statistics reduction.
func (a *Af) invalidateWeights() {
	a.phaseWeights.sum = 0
	a.contrastWeights.sum = 0
}
