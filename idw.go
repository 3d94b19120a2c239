package laztif

import (
	"math"
)

// A Grid is an interpolated elevation raster, georeferenced by its origin
// (upper left corner) and square cell size.
type Grid struct {
	Data          []float32
	Width, Height int
	OriginX       float64
	OriginY       float64
	Resolution    float64
	NoData        float64
}

// GeoTransform returns the affine transform in GDAL order.
func (g *Grid) GeoTransform() [6]float64 {
	return [6]float64{g.OriginX, g.Resolution, 0, g.OriginY, 0, -g.Resolution}
}

// At returns the cell value at x,y.
func (g *Grid) At(x, y int) float64 {
	return float64(g.Data[y*g.Width+x])
}

// RasterizeIDW interpolates the point set onto a grid of the given
// resolution using inverse distance weighting. For each cell, the points of
// all cells within window (Chebyshev distance, in cells) contribute with
// weight 1/d². Cells with no point in reach hold nodata. An empty point set
// yields a single nodata cell so that a raster write still proceeds.
func RasterizeIDW(p *PointSet, res float64, window int, nodata float64) *Grid {
	if p.Len() == 0 {
		return &Grid{
			Data:       []float32{float32(nodata)},
			Width:      1,
			Height:     1,
			Resolution: res,
			NoData:     nodata,
		}
	}
	minx, miny, maxx, maxy := bounds(p)
	nx := int(math.Floor((maxx-minx)/res)) + 1
	ny := int(math.Floor((maxy-miny)/res)) + 1
	g := &Grid{
		Data:       make([]float32, nx*ny),
		Width:      nx,
		Height:     ny,
		OriginX:    minx,
		OriginY:    miny + float64(ny)*res,
		Resolution: res,
		NoData:     nodata,
	}

	// counting sort of point indices by cell, so the per-cell neighborhood
	// scan touches each point bucket directly
	cellOf := make([]int, p.Len())
	count := make([]int, nx*ny+1)
	for i := range p.X {
		cx := int((p.X[i] - minx) / res)
		cy := int((g.OriginY - p.Y[i]) / res)
		if cy >= ny {
			cy = ny - 1
		}
		c := cy*nx + cx
		cellOf[i] = c
		count[c+1]++
	}
	for c := 1; c <= nx*ny; c++ {
		count[c] += count[c-1]
	}
	order := make([]int, p.Len())
	next := make([]int, nx*ny)
	for i := range cellOf {
		c := cellOf[i]
		order[count[c]+next[c]] = i
		next[c]++
	}

	const eps = 1e-9
	for cy := 0; cy < ny; cy++ {
		for cx := 0; cx < nx; cx++ {
			centerX := minx + (float64(cx)+0.5)*res
			centerY := g.OriginY - (float64(cy)+0.5)*res
			sum, wsum := 0.0, 0.0
			exact := math.NaN()
			for wy := cy - window; wy <= cy+window && math.IsNaN(exact); wy++ {
				if wy < 0 || wy >= ny {
					continue
				}
				for wx := cx - window; wx <= cx+window; wx++ {
					if wx < 0 || wx >= nx {
						continue
					}
					c := wy*nx + wx
					for _, i := range order[count[c] : count[c]+next[c]] {
						dx := p.X[i] - centerX
						dy := p.Y[i] - centerY
						d2 := dx*dx + dy*dy
						if d2 < eps {
							exact = p.Z[i]
							break
						}
						w := 1 / d2
						sum += w * p.Z[i]
						wsum += w
					}
					if !math.IsNaN(exact) {
						break
					}
				}
			}
			switch {
			case !math.IsNaN(exact):
				g.Data[cy*nx+cx] = float32(exact)
			case wsum > 0:
				g.Data[cy*nx+cx] = float32(sum / wsum)
			default:
				g.Data[cy*nx+cx] = float32(nodata)
			}
		}
	}
	return g
}
