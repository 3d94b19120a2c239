package laztif

import (
	"context"
	"fmt"
	"os"

	"github.com/google/tiff"
	_ "github.com/google/tiff/bigtiff"
	"github.com/tbonfort/gobs"
	"go.airbusds-geo.com/log"
)

type AuditStatus int

const (
	AuditOK AuditStatus = iota
	AuditMissing
	AuditUntiled
	AuditInvalid
)

func (s AuditStatus) String() string {
	switch s {
	case AuditOK:
		return "ok"
	case AuditMissing:
		return "missing"
	case AuditUntiled:
		return "untiled"
	case AuditInvalid:
		return "invalid"
	}
	return "unknown"
}

// An AuditEntry is the verdict for one expected output.
type AuditEntry struct {
	Job    Job
	Status AuditStatus
	Err    error
}

// An AuditReport is the result of checking every expected output of a run
// against the filesystem, distinguishing outputs that are absent, present
// but structurally wrong, and sound.
type AuditReport struct {
	Entries []AuditEntry
	OK      int
	Missing int
	Invalid int
	Untiled int
}

// tifIFD is the subset of TIFF fields the audit inspects.
type tifIFD struct {
	ImageWidth  uint64 `tiff:"field,tag=256"`
	ImageLength uint64 `tiff:"field,tag=257"`
	TileWidth   uint16 `tiff:"field,tag=322"`
	TileLength  uint16 `tiff:"field,tag=323"`
}

// Audit checks the expected output of every job: a missing file, an
// unparseable file, and a raster without internal tiling are each reported.
// Checks run concurrently; remote (gs://) outputs get an existence check
// only, through the optional remote client.
func Audit(ctx context.Context, jobs []Job, remote Remote, workers int) AuditReport {
	entries := make([]AuditEntry, len(jobs))

	p := gobs.NewPool(workers)
	batch := p.Batch()
	for i, job := range jobs {
		i, job := i, job
		batch.Submit(func() error {
			entries[i] = auditOne(ctx, job, remote)
			return nil
		})
	}
	if err := batch.Wait(); err != nil {
		log.Logger(ctx).Sugar().Warnf("audit batch: %v", err)
	}

	report := AuditReport{Entries: entries}
	for _, e := range entries {
		switch e.Status {
		case AuditOK:
			report.OK++
		case AuditMissing:
			report.Missing++
		case AuditUntiled:
			report.Untiled++
		case AuditInvalid:
			report.Invalid++
		}
	}
	return report
}

func auditOne(ctx context.Context, job Job, remote Remote) AuditEntry {
	e := AuditEntry{Job: job}
	if isRemote(job.Output) {
		if remote == nil {
			e.Status = AuditInvalid
			e.Err = fmt.Errorf("no object store client configured for %s", job.Output)
			return e
		}
		exists, err := remote.Exists(ctx, job.Output)
		switch {
		case err != nil:
			e.Status = AuditInvalid
			e.Err = err
		case !exists:
			e.Status = AuditMissing
		default:
			e.Status = AuditOK
		}
		return e
	}

	f, err := os.Open(job.Output)
	if os.IsNotExist(err) {
		e.Status = AuditMissing
		return e
	}
	if err != nil {
		e.Status = AuditInvalid
		e.Err = err
		return e
	}
	defer f.Close()

	t, err := tiff.Parse(f, nil, nil)
	if err != nil {
		e.Status = AuditInvalid
		e.Err = fmt.Errorf("parse %s: %w", job.Output, err)
		return e
	}
	ifds := t.IFDs()
	if len(ifds) == 0 {
		e.Status = AuditInvalid
		e.Err = fmt.Errorf("%s: no ifd", job.Output)
		return e
	}
	var ifd tifIFD
	if err := tiff.UnmarshalIFD(ifds[0], &ifd); err != nil {
		e.Status = AuditInvalid
		e.Err = fmt.Errorf("unmarshal ifd of %s: %w", job.Output, err)
		return e
	}
	if ifd.TileWidth == 0 || ifd.TileLength == 0 {
		e.Status = AuditUntiled
		return e
	}
	e.Status = AuditOK
	return e
}
