package laztif

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"go.airbusds-geo.com/log"
)

// A Job is one point cloud to raster conversion, derived from one row of
// the matched metadata table. The existence of Output is the job's only
// completion marker.
type Job struct {
	Row      int
	Transect string
	Input    string
	EPSG     int
	Output   string
}

type Status int

const (
	StatusDone Status = iota
	StatusSkipped
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusDone:
		return "done"
	case StatusSkipped:
		return "skipped"
	case StatusFailed:
		return "failed"
	}
	return "unknown"
}

// A Result is the tagged outcome of one Job. Err is retained for failed
// jobs so the dispatcher can report them; a failure never aborts the batch.
type Result struct {
	Job     Job
	Status  Status
	Points  int
	Elapsed time.Duration
	Err     error
}

// A Remote abstracts the object store used when the output root is a
// gs:// prefix.
type Remote interface {
	Exists(ctx context.Context, uri string) (bool, error)
	UploadFile(ctx context.Context, uri, localPath string) error
}

// A Converter holds the model parameters shared by all jobs of a run.
type Converter struct {
	Resolution float64
	WindowSize int
	NoData     float64
	// Variant tags output filenames, usually DTM or DSM.
	Variant string
	// DTM keeps only ground classified points; otherwise all surface
	// returns (buildings, vegetation, canopy) contribute.
	DTM bool
	// Reclassify discards the delivered classification: noise points are
	// dropped, everything is reset and ground is re-derived after
	// reprojection.
	Reclassify bool
	// SourceEPSG is the CRS assumed for input point coordinates.
	SourceEPSG int
	Ground     GroundFilter
	// Remote handles gs:// outputs; nil restricts the run to local paths.
	Remote Remote
}

// NewConverter derives a converter from the run configuration.
func NewConverter(cfg Config, dtm, reclassify bool) Converter {
	return Converter{
		Resolution: cfg.Resolution,
		WindowSize: cfg.WindowSize,
		NoData:     cfg.NoData,
		Variant:    cfg.Variant,
		DTM:        dtm,
		Reclassify: reclassify,
		SourceEPSG: cfg.SourceEPSG,
		Ground:     DefaultGroundFilter(),
	}
}

// OutputName returns the raster filename for the given input, encoding the
// model variant, resolution, window size and reclassification mode.
func (c Converter) OutputName(input string) string {
	base := filepath.Base(input)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	suffix := "_nrclf"
	if c.Reclassify {
		suffix = "_yrclf"
	}
	return fmt.Sprintf("%s-%s%gm_%d%s.tif", base, c.Variant, c.Resolution, c.WindowSize, suffix)
}

// Jobs derives one Job per table row, rooted at outRoot with one
// subdirectory per transect.
func (c Converter) Jobs(rows []TableRow, outRoot string) []Job {
	jobs := make([]Job, len(rows))
	for i, row := range rows {
		jobs[i] = Job{
			Row:      i,
			Transect: row.Transect,
			Input:    row.Filepath,
			EPSG:     row.EPSG,
			Output:   joinOut(outRoot, row.Transect, c.OutputName(row.Filepath)),
		}
	}
	return jobs
}

// Convert runs the full chain for one job: skip if the output exists, read
// the point cloud, apply the filter chain, interpolate and write the
// raster. The outcome is tagged, never thrown.
func (c Converter) Convert(ctx context.Context, job Job) Result {
	start := time.Now()
	res := Result{Job: job}
	slog := log.Logger(ctx).Sugar()

	exists, err := c.outputExists(ctx, job.Output)
	if err != nil {
		return c.fail(res, start, fmt.Errorf("stat %s: %w", job.Output, err))
	}
	if exists {
		slog.Infof("row %d: output %s already exists, skipping", job.Row, job.Output)
		res.Status = StatusSkipped
		res.Elapsed = time.Since(start)
		return res
	}

	ps, err := ReadPointCloud(job.Input)
	if err != nil {
		return c.fail(res, start, err)
	}

	if c.Reclassify {
		ps.DropClass(ClassNoise)
		ps.AssignClass(ClassCreated)
		if err := ps.Reproject(c.SourceEPSG, job.EPSG); err != nil {
			return c.fail(res, start, err)
		}
		c.Ground.Classify(ps)
	} else {
		if err := ps.Reproject(c.SourceEPSG, job.EPSG); err != nil {
			return c.fail(res, start, err)
		}
	}
	if c.DTM {
		ps = ps.SelectClass(ClassGround)
	} else {
		slog.Debugf("row %d: generating DSM, keeping all surface returns", job.Row)
	}

	grid := RasterizeIDW(ps, c.Resolution, c.WindowSize, c.NoData)
	if err := c.write(ctx, job, grid); err != nil {
		return c.fail(res, start, err)
	}

	res.Status = StatusDone
	res.Points = ps.Len()
	res.Elapsed = time.Since(start)
	slog.Infof("row %d: wrote %s (%d points) in %.2fs", job.Row, job.Output, res.Points, res.Elapsed.Seconds())
	return res
}

func (c Converter) fail(res Result, start time.Time, err error) Result {
	res.Status = StatusFailed
	res.Err = fmt.Errorf("convert %s: %w", res.Job.Input, err)
	res.Elapsed = time.Since(start)
	return res
}

func (c Converter) outputExists(ctx context.Context, output string) (bool, error) {
	if isRemote(output) {
		if c.Remote == nil {
			return false, fmt.Errorf("no object store client configured for %s", output)
		}
		return c.Remote.Exists(ctx, output)
	}
	_, err := os.Stat(output)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}

func (c Converter) write(ctx context.Context, job Job, grid *Grid) error {
	if !isRemote(job.Output) {
		if err := os.MkdirAll(filepath.Dir(job.Output), 0o755); err != nil {
			return fmt.Errorf("create %s: %w", filepath.Dir(job.Output), err)
		}
		return WriteGeoTIFF(job.Output, grid, job.EPSG)
	}
	tmp, err := os.CreateTemp("", "laztif-*.tif")
	if err != nil {
		return fmt.Errorf("create temp raster: %w", err)
	}
	tmpName := tmp.Name()
	tmp.Close()
	defer os.Remove(tmpName) //nolint:errcheck
	if err := WriteGeoTIFF(tmpName, grid, job.EPSG); err != nil {
		return err
	}
	if err := c.Remote.UploadFile(ctx, job.Output, tmpName); err != nil {
		return fmt.Errorf("upload %s: %w", job.Output, err)
	}
	return nil
}

func isRemote(p string) bool {
	return strings.HasPrefix(p, "gs://")
}

func joinOut(root string, elems ...string) string {
	if isRemote(root) {
		return "gs://" + path.Join(append([]string{strings.TrimPrefix(root, "gs://")}, elems...)...)
	}
	return filepath.Join(append([]string{root}, elems...)...)
}
