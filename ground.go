package laztif

import (
	"math"
)

// A GroundFilter re-derives ground points from an unclassified point set
// using a simple morphological filter: a gridded minimum surface is opened
// with progressively larger windows, cells rejecting too much elevation are
// replaced by the opened surface, and points close to the resulting
// provisional terrain are classified as ground.
type GroundFilter struct {
	// CellSize is the analysis grid resolution, in point units.
	CellSize float64
	// Slope relaxes the rejection threshold with window radius, to keep
	// steep terrain.
	Slope float64
	// MaxWindow is the largest opening window radius, in point units. It
	// bounds the size of off-terrain objects that can be removed.
	MaxWindow float64
	// Threshold is the maximum distance of a ground point to the
	// provisional terrain surface.
	Threshold float64
}

// DefaultGroundFilter returns parameters suited to airborne survey data:
// 1 unit cells, 15% slope tolerance, 18 unit maximum window, 0.5 unit
// elevation threshold.
func DefaultGroundFilter() GroundFilter {
	return GroundFilter{
		CellSize:  1,
		Slope:     0.15,
		MaxWindow: 18,
		Threshold: 0.5,
	}
}

// Classify marks the ground points of p with ClassGround, leaving the
// class of the remaining points untouched. An empty point set is a no-op.
func (f GroundFilter) Classify(p *PointSet) {
	if p.Len() == 0 {
		return
	}
	minx, miny, maxx, maxy := bounds(p)
	nx := int(math.Floor((maxx-minx)/f.CellSize)) + 1
	ny := int(math.Floor((maxy-miny)/f.CellSize)) + 1

	cell := func(i int) int {
		cx := int((p.X[i] - minx) / f.CellSize)
		cy := int((p.Y[i] - miny) / f.CellSize)
		return cy*nx + cx
	}

	surface := make([]float64, nx*ny)
	for c := range surface {
		surface[c] = math.NaN()
	}
	for i := range p.X {
		c := cell(i)
		if math.IsNaN(surface[c]) || p.Z[i] < surface[c] {
			surface[c] = p.Z[i]
		}
	}

	maxRadius := int(f.MaxWindow / f.CellSize)
	for r := 1; r <= maxRadius; r *= 2 {
		opened := dilate(erode(surface, nx, ny, r), nx, ny, r)
		cutoff := f.Threshold + f.Slope*float64(r)*f.CellSize
		for c := range surface {
			if !math.IsNaN(surface[c]) && !math.IsNaN(opened[c]) &&
				surface[c]-opened[c] > cutoff {
				surface[c] = opened[c]
			}
		}
	}

	for i := range p.X {
		s := surface[cell(i)]
		if !math.IsNaN(s) && math.Abs(p.Z[i]-s) <= f.Threshold {
			p.Class[i] = ClassGround
		}
	}
}

func bounds(p *PointSet) (minx, miny, maxx, maxy float64) {
	minx, miny = math.Inf(1), math.Inf(1)
	maxx, maxy = math.Inf(-1), math.Inf(-1)
	for i := range p.X {
		minx = math.Min(minx, p.X[i])
		maxx = math.Max(maxx, p.X[i])
		miny = math.Min(miny, p.Y[i])
		maxy = math.Max(maxy, p.Y[i])
	}
	return
}

// erode and dilate are separable square-window min/max filters. NaN cells
// do not contribute and stay NaN when their whole window is empty.

func erode(grid []float64, nx, ny, r int) []float64 {
	return windowFilter(grid, nx, ny, r, func(a, b float64) bool { return a < b })
}

func dilate(grid []float64, nx, ny, r int) []float64 {
	return windowFilter(grid, nx, ny, r, func(a, b float64) bool { return a > b })
}

func windowFilter(grid []float64, nx, ny, r int, better func(a, b float64) bool) []float64 {
	rows := make([]float64, len(grid))
	for y := 0; y < ny; y++ {
		for x := 0; x < nx; x++ {
			best := math.NaN()
			for dx := -r; dx <= r; dx++ {
				xx := x + dx
				if xx < 0 || xx >= nx {
					continue
				}
				v := grid[y*nx+xx]
				if math.IsNaN(v) {
					continue
				}
				if math.IsNaN(best) || better(v, best) {
					best = v
				}
			}
			rows[y*nx+x] = best
		}
	}
	out := make([]float64, len(grid))
	for y := 0; y < ny; y++ {
		for x := 0; x < nx; x++ {
			best := math.NaN()
			for dy := -r; dy <= r; dy++ {
				yy := y + dy
				if yy < 0 || yy >= ny {
					continue
				}
				v := rows[yy*nx+x]
				if math.IsNaN(v) {
					continue
				}
				if math.IsNaN(best) || better(v, best) {
					best = v
				}
			}
			out[y*nx+x] = best
		}
	}
	return out
}
