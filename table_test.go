package laztif

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTable(t *testing.T, body string) string {
	t.Helper()
	fn := filepath.Join(t.TempDir(), "meta_locpaths.csv")
	require.NoError(t, os.WriteFile(fn, []byte(body), 0o644))
	return fn
}

func TestReadTable(t *testing.T) {
	fn := writeTable(t, `id,transect,datafile,epsg,random,filepath
1,t1,A_dn_001_extra.ext,32633,0,/data/groupA/A_dn_001.laz
2,t2,B_dn_002_extra.ext,25832,1,/data/groupB/B_dn_002.laz
`)
	rows, err := ReadTable(fn)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, TableRow{Transect: "t1", Filepath: "/data/groupA/A_dn_001.laz", EPSG: 32633}, rows[0])
	assert.Equal(t, TableRow{Transect: "t2", Filepath: "/data/groupB/B_dn_002.laz", EPSG: 25832}, rows[1])
}

func TestReadTableColumnOrderIrrelevant(t *testing.T) {
	fn := writeTable(t, `filepath,epsg,transect
/a.laz,4326,t9
`)
	rows, err := ReadTable(fn)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "t9", rows[0].Transect)
	assert.Equal(t, 4326, rows[0].EPSG)
}

func TestReadTableErrors(t *testing.T) {
	testfunc := func(body string) {
		t.Helper()
		_, err := ReadTable(writeTable(t, body))
		assert.Error(t, err)
	}
	testfunc("")
	testfunc("id,transect,epsg\n1,t1,4326\n") // missing filepath
	testfunc("transect,filepath,epsg\nt1,/a.laz,notanumber\n")

	_, err := ReadTable(filepath.Join(t.TempDir(), "absent.csv"))
	assert.Error(t, err)
}
