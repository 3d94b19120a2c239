package laztif

import (
	"fmt"

	"github.com/airbusgeo/godal"
	"github.com/hongping1224/lidario"
)

// Standard ASPRS point classes used by the filter chain.
const (
	ClassCreated uint8 = 0
	ClassGround  uint8 = 2
	ClassNoise   uint8 = 7
)

// A PointSet is a columnar view of a point cloud, sized for whole-file
// in-memory processing of single survey transects.
type PointSet struct {
	X, Y, Z []float64
	Class   []uint8
}

func (p *PointSet) Len() int { return len(p.X) }

func (p *PointSet) append(x, y, z float64, class uint8) {
	p.X = append(p.X, x)
	p.Y = append(p.Y, y)
	p.Z = append(p.Z, z)
	p.Class = append(p.Class, class)
}

// ReadPointCloud loads all points of the LAS file at path.
func ReadPointCloud(path string) (*PointSet, error) {
	las, err := lidario.NewLasFile(path, "r")
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer las.Close() //nolint:errcheck

	n := las.Header.NumberPoints
	ps := &PointSet{
		X:     make([]float64, 0, n),
		Y:     make([]float64, 0, n),
		Z:     make([]float64, 0, n),
		Class: make([]uint8, 0, n),
	}
	for i := 0; i < n; i++ {
		pt, err := las.LasPoint(i)
		if err != nil {
			return nil, fmt.Errorf("read point %d of %s: %w", i, path, err)
		}
		pd := pt.PointData()
		ps.append(pd.X, pd.Y, pd.Z, pd.ClassBitField.Classification())
	}
	return ps, nil
}

// DropClass removes every point of the given class, in place.
func (p *PointSet) DropClass(class uint8) {
	keep := 0
	for i := range p.Class {
		if p.Class[i] == class {
			continue
		}
		p.X[keep], p.Y[keep], p.Z[keep] = p.X[i], p.Y[i], p.Z[i]
		p.Class[keep] = p.Class[i]
		keep++
	}
	p.X, p.Y, p.Z, p.Class = p.X[:keep], p.Y[:keep], p.Z[:keep], p.Class[:keep]
}

// AssignClass sets every point to the given class.
func (p *PointSet) AssignClass(class uint8) {
	for i := range p.Class {
		p.Class[i] = class
	}
}

// SelectClass returns the subset of points carrying the given class.
func (p *PointSet) SelectClass(class uint8) *PointSet {
	out := &PointSet{}
	for i := range p.Class {
		if p.Class[i] == class {
			out.append(p.X[i], p.Y[i], p.Z[i], p.Class[i])
		}
	}
	return out
}

// Reproject transforms the point coordinates from srcEPSG to dstEPSG in
// place. A matching source and destination code is a no-op.
func (p *PointSet) Reproject(srcEPSG, dstEPSG int) error {
	if srcEPSG == dstEPSG || p.Len() == 0 {
		return nil
	}
	src, err := godal.NewSpatialRefFromEPSG(srcEPSG)
	if err != nil {
		return fmt.Errorf("srs from epsg:%d: %w", srcEPSG, err)
	}
	defer src.Close()
	dst, err := godal.NewSpatialRefFromEPSG(dstEPSG)
	if err != nil {
		return fmt.Errorf("srs from epsg:%d: %w", dstEPSG, err)
	}
	defer dst.Close()
	trn, err := godal.NewTransform(src, dst)
	if err != nil {
		return fmt.Errorf("transform epsg:%d->epsg:%d: %w", srcEPSG, dstEPSG, err)
	}
	defer trn.Close()
	if err := trn.TransformEx(p.X, p.Y, p.Z, nil); err != nil {
		return fmt.Errorf("reproject %d points: %w", p.Len(), err)
	}
	return nil
}
