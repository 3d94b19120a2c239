package laztif

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTree(t *testing.T, root string, files []string) {
	t.Helper()
	for _, f := range files {
		fn := filepath.Join(root, filepath.FromSlash(f))
		require.NoError(t, os.MkdirAll(filepath.Dir(fn), 0o755))
		require.NoError(t, os.WriteFile(fn, []byte("x"), 0o644))
	}
}

func TestDiscover(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, []string{
		"groupA/A_dn_001.laz",
		"groupB/B_dn_002.laz",
		"groupB/C_dn_003.las",
		"toplevel.laz",             // zero levels deep, excluded
		"groupB/nested/D_dn_4.laz", // two levels deep, excluded
		"groupA/notes.txt",
	})

	files, err := Discover(root, []string{".laz", ".las"})
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(root, "groupA", "A_dn_001.laz"),
		filepath.Join(root, "groupB", "B_dn_002.laz"),
		filepath.Join(root, "groupB", "C_dn_003.las"),
	}, files)
}

func TestMatcherResolve(t *testing.T) {
	files := []string{
		"/data/groupA/A_dn_001.laz",
		"/data/groupB/B_dn_002.laz",
		"/data/groupB/B_dn_002_copy.laz",
	}
	m, err := NewMatcher(files, "_dn_")
	require.NoError(t, err)

	testfunc := func(datafile, expected string) {
		t.Helper()
		assert.Equal(t, expected, m.Resolve(datafile))
	}
	testfunc("A_dn_001_extra.ext", "/data/groupA/A_dn_001.laz")
	testfunc("C_dn_999_extra.ext", "")
	// first in discovery order wins on duplicate prefixes
	testfunc("B_dn_002_v2.ext", "/data/groupB/B_dn_002.laz")
	// datafile carrying a directory component
	testfunc("/delivery/A_dn_001_raw.laz", "/data/groupA/A_dn_001.laz")
	// no delimiter: the whole basename is the prefix
	testfunc("A_dn", "/data/groupA/A_dn_001.laz")
	testfunc("", "")

	_, err = NewMatcher(files, "")
	assert.Error(t, err)
}

func TestMatcherFirstDiscoveredWins(t *testing.T) {
	// discovery order deliberately disagrees with lexical order of the
	// basenames so the winner proves the rank is what decides ties
	files := []string{
		"/ingest/late/B_dn_002_copy.laz",
		"/ingest/late/B_dn_002.laz",
		"/ingest/early/A_dn_001_v2.laz",
		"/ingest/early/A_dn_001.laz",
	}
	m, err := NewMatcher(files, "_dn_")
	require.NoError(t, err)

	assert.Equal(t, "/ingest/late/B_dn_002_copy.laz", m.Resolve("B_dn_002_x.ext"))
	assert.Equal(t, "/ingest/early/A_dn_001_v2.laz", m.Resolve("A_dn_001_x.ext"))
	// the matcher does not mutate the caller's slice
	assert.Equal(t, "/ingest/late/B_dn_002_copy.laz", files[0])
}

func TestLinkDropsUnmatched(t *testing.T) {
	m, err := NewMatcher([]string{"/data/groupA/A_dn_001.laz"}, "_dn_")
	require.NoError(t, err)

	records := []SourceRecord{
		{ID: 1, Transect: "t1", Datafile: "A_dn_001_extra.ext", EPSG: 32633},
		{ID: 2, Transect: "t2", Datafile: "C_dn_999_extra.ext", EPSG: 32633},
	}
	res := Link(records, m)
	require.Len(t, res.Matched, 1)
	assert.Equal(t, 1, res.Dropped)
	assert.Equal(t, int64(1), res.Matched[0].ID)
	assert.Equal(t, "/data/groupA/A_dn_001.laz", res.Matched[0].Filepath)
	// input records are not mutated
	assert.Empty(t, records[0].Filepath)
}
