package laztif

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAudit(t *testing.T) {
	dir := t.TempDir()
	garbage := filepath.Join(dir, "garbage.tif")
	require.NoError(t, os.WriteFile(garbage, []byte("this is not a tiff"), 0o644))

	jobs := []Job{
		{Row: 0, Output: filepath.Join(dir, "absent.tif")},
		{Row: 1, Output: garbage},
		{Row: 2, Output: "gs://bucket/out.tif"},
	}
	report := Audit(context.Background(), jobs, nil, 4)
	require.Len(t, report.Entries, 3)
	assert.Equal(t, AuditMissing, report.Entries[0].Status)
	assert.Equal(t, AuditInvalid, report.Entries[1].Status)
	assert.Error(t, report.Entries[1].Err)
	// remote output with no client configured is reported, not skipped
	assert.Equal(t, AuditInvalid, report.Entries[2].Status)

	assert.Equal(t, 1, report.Missing)
	assert.Equal(t, 2, report.Invalid)
	assert.Equal(t, 0, report.OK)
}

func TestAuditRemote(t *testing.T) {
	remote := fakeRemote{"gs://bucket/t1/present.tif": true}
	jobs := []Job{
		{Row: 0, Output: "gs://bucket/t1/present.tif"},
		{Row: 1, Output: "gs://bucket/t1/absent.tif"},
	}
	report := Audit(context.Background(), jobs, remote, 2)
	assert.Equal(t, AuditOK, report.Entries[0].Status)
	assert.Equal(t, AuditMissing, report.Entries[1].Status)
	assert.Equal(t, 1, report.OK)
	assert.Equal(t, 1, report.Missing)
}

func TestAuditStatusString(t *testing.T) {
	assert.Equal(t, "ok", AuditOK.String())
	assert.Equal(t, "missing", AuditMissing.String())
	assert.Equal(t, "untiled", AuditUntiled.String())
	assert.Equal(t, "invalid", AuditInvalid.String())
}

type fakeRemote map[string]bool

func (r fakeRemote) Exists(_ context.Context, uri string) (bool, error) {
	return r[uri], nil
}

func (r fakeRemote) UploadFile(_ context.Context, uri, _ string) error {
	r[uri] = true
	return nil
}
