package af

// Pwl is a piecewise-linear function given by a strictly x-ordered list of
// sample points. It maps lens positions in dioptres to integer hardware
// units; evaluation outside the domain clamps to the end values.
type Pwl struct {
	points [][2]float64
}

// Append adds a sample point. Points must be appended in strictly
// increasing x order; out-of-order points are dropped.
func (p *Pwl) Append(x, y float64) {
	if n := len(p.points); n > 0 && x <= p.points[n-1][0] {
		return
	}
	p.points = append(p.points, [2]float64{x, y})
}

// Empty reports whether the function has no sample points.
func (p *Pwl) Empty() bool {
	return len(p.points) == 0
}

// Domain returns the x extent of the function. Empty functions report
// (0, 0).
func (p *Pwl) Domain() (lo, hi float64) {
	if len(p.points) == 0 {
		return 0, 0
	}
	return p.points[0][0], p.points[len(p.points)-1][0]
}

// ClampDomain clips x to the function's domain.
func (p *Pwl) ClampDomain(x float64) float64 {
	lo, hi := p.Domain()
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}

// Eval evaluates the function at x by linear interpolation between the
// neighbouring sample points, clamping outside the domain.
func (p *Pwl) Eval(x float64) float64 {
	n := len(p.points)
	if n == 0 {
		return 0
	}
	if x <= p.points[0][0] {
		return p.points[0][1]
	}
	if x >= p.points[n-1][0] {
		return p.points[n-1][1]
	}

	i := 1
	for i < n-1 && x > p.points[i][0] {
		i++
	}
	x0, y0 := p.points[i-1][0], p.points[i-1][1]
	x1, y1 := p.points[i][0], p.points[i][1]
	return y0 + (x-x0)*(y1-y0)/(x1-x0)
}
