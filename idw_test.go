package laztif

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRasterizeIDWEmpty(t *testing.T) {
	g := RasterizeIDW(&PointSet{}, 30, 10, -9999)
	require.Equal(t, 1, g.Width)
	require.Equal(t, 1, g.Height)
	assert.Equal(t, -9999.0, g.At(0, 0))
}

func TestRasterizeIDWSinglePoint(t *testing.T) {
	p := &PointSet{}
	p.append(0.5, 0.5, 10, ClassGround)
	g := RasterizeIDW(p, 1, 1, -9999)
	require.Equal(t, 1, g.Width)
	require.Equal(t, 1, g.Height)
	// a lone contributor sets the cell regardless of distance weighting
	assert.Equal(t, 10.0, g.At(0, 0))
}

func TestRasterizeIDWWindowAndNoData(t *testing.T) {
	p := &PointSet{}
	p.append(0.5, 0.5, 10, ClassGround)
	p.append(10.5, 10.5, 20, ClassGround)
	g := RasterizeIDW(p, 1, 2, -9999)
	require.Equal(t, 11, g.Width)
	require.Equal(t, 11, g.Height)

	// each point is the only contributor inside its own window
	assert.Equal(t, 10.0, g.At(0, 10))
	assert.Equal(t, 20.0, g.At(10, 1))
	// the grid center is farther than the window from both points
	assert.Equal(t, -9999.0, g.At(5, 5))
}

func TestRasterizeIDWExactCenter(t *testing.T) {
	p := &PointSet{}
	// second point lands exactly on the center of cell (1,0) once the
	// grid is anchored at (0,0)
	p.append(0, 0, 5, ClassGround)
	p.append(1.5, 0.5, 7, ClassGround)
	g := RasterizeIDW(p, 1, 3, -9999)
	require.Equal(t, 2, g.Width)
	assert.Equal(t, 7.0, g.At(1, 0))
}

func TestRasterizeIDWWeighting(t *testing.T) {
	p := &PointSet{}
	p.append(0, 0, 0, ClassGround)
	p.append(4, 0, 100, ClassGround)
	g := RasterizeIDW(p, 4, 2, -9999)
	require.Equal(t, 2, g.Width)
	// cell 0 center is at x=2: both points are equidistant, so the value
	// is their mean
	assert.InDelta(t, 50.0, g.At(0, 0), 1e-3)
}

func TestGridGeoTransform(t *testing.T) {
	g := &Grid{OriginX: 100, OriginY: 200, Resolution: 30}
	assert.Equal(t, [6]float64{100, 30, 0, 200, 0, -30}, g.GeoTransform())
}
