package laztif

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/airbusgeo/godal"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"go.airbusds-geo.com/log"
)

// A Dataset is the in-memory view of the source vector dataset, with
// data-quality repairs applied and recorded.
type Dataset struct {
	Records []SourceRecord
	// SRS is the native spatial reference, either the source WKT or
	// "EPSG:<code>" when the source carried none.
	SRS string
	// GeometryRepaired is set when every source record lacked a geometry
	// and placeholders were synthesized. Spatial attributes of such a
	// dataset are meaningless; only non-spatial columns should be used
	// downstream.
	GeometryRepaired bool
	// CRSDefaulted is set when the source carried no CRS.
	CRSDefaulted bool
}

// ReadRecords loads the survey records from the vector dataset at path.
// Missing geometries and a missing CRS are repaired per cfg rather than
// treated as errors.
func ReadRecords(ctx context.Context, path string, cfg Config) (*Dataset, error) {
	ds, err := godal.Open(path, godal.VectorOnly())
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer ds.Close()

	layers := ds.Layers()
	if len(layers) == 0 {
		return nil, fmt.Errorf("no layers in %s", path)
	}
	layer := layers[0]
	layer.ResetReading()

	out := &Dataset{}
	hasGeometry := false
	for {
		feat := layer.NextFeature()
		if feat == nil {
			break
		}
		rec := SourceRecord{
			ID:       fieldInt(feat.Fields(), "id"),
			Transect: fieldString(feat.Fields(), "transect"),
			Datafile: fieldString(feat.Fields(), "datafile"),
			EPSG:     int(fieldInt(feat.Fields(), "epsg")),
			Random:   fieldInt(feat.Fields(), "random"),
		}
		if g := feat.Geometry(); g != nil && !g.Empty() {
			hasGeometry = true
			gj, err := g.GeoJSON()
			if err != nil {
				return nil, fmt.Errorf("export geometry of record %d: %w", rec.ID, err)
			}
			if rec.Geometry, err = geojson.UnmarshalGeometry([]byte(gj)); err != nil {
				return nil, fmt.Errorf("parse geometry of record %d: %w", rec.ID, err)
			}
			if out.SRS == "" {
				if sr := g.SpatialRef(); sr != nil {
					wkt, err := sr.WKT()
					if err == nil && wkt != "" {
						out.SRS = wkt
					}
				}
			}
		}
		out.Records = append(out.Records, rec)
	}

	if !hasGeometry {
		// placeholder geometries keep the non-spatial columns usable when
		// the upstream delivery dropped geometry entirely
		out.GeometryRepaired = true
		log.Logger(ctx).Sugar().Warnf("%s: no geometry found, assigning placeholder (%g,%g) to %d records",
			path, cfg.PlaceholderX, cfg.PlaceholderY, len(out.Records))
		for i := range out.Records {
			out.Records[i].Geometry = geojson.NewGeometry(orb.Point{cfg.PlaceholderX, cfg.PlaceholderY})
		}
	}
	if out.SRS == "" {
		out.CRSDefaulted = true
		out.SRS = fmt.Sprintf("EPSG:%d", cfg.DefaultEPSG)
		log.Logger(ctx).Sugar().Warnf("%s: no CRS found, assuming %s", path, out.SRS)
	}
	return out, nil
}

// ArtifactPaths derives the three metadata artifact paths from the source
// dataset path.
func ArtifactPaths(vectorPath string) (native, epsg4326, table string) {
	ext := filepath.Ext(vectorPath)
	base := strings.TrimSuffix(vectorPath, ext)
	return base + "_locpaths" + ext,
		base + "_locpaths_epsg4326" + ext,
		base + "_locpaths.csv"
}

// stagedCollection builds the feature collection all three artifacts are
// converted from. Every record contributes the same six attribute columns.
func stagedCollection(matched []SourceRecord) (*geojson.FeatureCollection, error) {
	fc := geojson.NewFeatureCollection()
	for _, rec := range matched {
		if rec.Geometry == nil {
			return nil, fmt.Errorf("record %d has no geometry", rec.ID)
		}
		f := geojson.NewFeature(rec.Geometry.Geometry())
		f.Properties = geojson.Properties{
			"id":       rec.ID,
			"transect": rec.Transect,
			"datafile": rec.Datafile,
			"epsg":     rec.EPSG,
			"random":   rec.Random,
			"filepath": rec.Filepath,
		}
		fc.Append(f)
	}
	return fc, nil
}

// An artifact is one persisted form of the matched table.
type artifact struct {
	path     string
	switches []string
	driver   godal.DriverName
}

// artifacts lists the three output forms derived from one staged source.
func (d *Dataset) artifacts(vectorPath string) []artifact {
	nativeFn, geoFn, csvFn := ArtifactPaths(vectorPath)
	return []artifact{
		// staged GeoJSON coordinates are native values, so assign the
		// native SRS rather than the GeoJSON default
		{nativeFn, []string{"-a_srs", d.SRS}, godal.GeoPackage},
		{geoFn, []string{"-s_srs", d.SRS, "-t_srs", "EPSG:4326"}, godal.GeoPackage},
		// godal has no CSV driver constant; VectorTranslate forwards
		// unmapped names to -f as-is
		{csvFn, nil, godal.DriverName("CSV")},
	}
}

// WriteArtifacts persists the matched table in its three equivalent forms:
// native CRS vector, EPSG:4326 vector, and geometry-less delimited table.
// All three are full overwrites. The table is staged as a GeoJSON feature
// collection and converted with GDAL so that the vector encodings stay the
// library's concern.
func (d *Dataset) WriteArtifacts(ctx context.Context, matched []SourceRecord, vectorPath string) error {
	fc, err := stagedCollection(matched)
	if err != nil {
		return err
	}
	buf, err := fc.MarshalJSON()
	if err != nil {
		return fmt.Errorf("marshal staged collection: %w", err)
	}
	staged, err := os.CreateTemp(filepath.Dir(vectorPath), "locpaths-*.geojson")
	if err != nil {
		return fmt.Errorf("create staging file: %w", err)
	}
	stagedName := staged.Name()
	defer os.Remove(stagedName) //nolint:errcheck
	if _, err = staged.Write(buf); err != nil {
		staged.Close()
		return fmt.Errorf("write staging file: %w", err)
	}
	if err = staged.Close(); err != nil {
		return fmt.Errorf("close staging file: %w", err)
	}

	sds, err := godal.Open(stagedName, godal.VectorOnly())
	if err != nil {
		return fmt.Errorf("open staging file: %w", err)
	}
	defer sds.Close()

	slog := log.Logger(ctx).Sugar()
	for _, a := range d.artifacts(vectorPath) {
		if err := translateOverwrite(sds, a.path, a.switches, a.driver); err != nil {
			return err
		}
		slog.Infof("wrote %s (%d records)", a.path, len(matched))
	}
	return nil
}

func translateOverwrite(src *godal.Dataset, dst string, switches []string, driver godal.DriverName) error {
	if err := os.Remove(dst); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove stale %s: %w", dst, err)
	}
	ds, err := src.VectorTranslate(dst, switches, driver)
	if err != nil {
		return fmt.Errorf("translate to %s: %w", dst, err)
	}
	if err := ds.Close(); err != nil {
		return fmt.Errorf("close %s: %w", dst, err)
	}
	return nil
}

func fieldString(fields map[string]godal.Field, name string) string {
	if f, ok := fields[name]; ok {
		return f.String()
	}
	return ""
}

func fieldInt(fields map[string]godal.Field, name string) int64 {
	f, ok := fields[name]
	if !ok {
		return 0
	}
	if i := f.Int(); i != 0 {
		return i
	}
	// tolerate numeric attributes delivered as text
	if i, err := strconv.ParseInt(strings.TrimSpace(f.String()), 10, 64); err == nil {
		return i
	}
	return 0
}
