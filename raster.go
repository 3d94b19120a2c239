package laztif

import (
	"fmt"

	"github.com/airbusgeo/godal"
)

// WriteGeoTIFF persists the grid as a tiled, deflate compressed GeoTIFF
// georeferenced to the given EPSG code, with the grid's nodata value set on
// the band.
func WriteGeoTIFF(path string, g *Grid, epsg int) error {
	ds, err := godal.Create(godal.GTiff, path, 1, godal.Float32, g.Width, g.Height,
		godal.CreationOption("TILED=YES", "COMPRESS=DEFLATE"))
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := ds.SetGeoTransform(g.GeoTransform()); err != nil {
		ds.Close()
		return fmt.Errorf("set geotransform of %s: %w", path, err)
	}
	sr, err := godal.NewSpatialRefFromEPSG(epsg)
	if err != nil {
		ds.Close()
		return fmt.Errorf("srs from epsg:%d: %w", epsg, err)
	}
	defer sr.Close()
	if err := ds.SetSpatialRef(sr); err != nil {
		ds.Close()
		return fmt.Errorf("set srs of %s: %w", path, err)
	}
	band := ds.Bands()[0]
	if err := band.SetNoData(g.NoData); err != nil {
		ds.Close()
		return fmt.Errorf("set nodata of %s: %w", path, err)
	}
	if err := band.Write(0, 0, g.Data, g.Width, g.Height); err != nil {
		ds.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := ds.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	return nil
}
