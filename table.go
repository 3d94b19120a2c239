package laztif

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
)

// A TableRow is one record of the flat metadata table linking a transect to
// a point cloud file and its target CRS.
type TableRow struct {
	Transect string
	Filepath string
	EPSG     int
}

// ReadTable loads the flat metadata table written by the linker. Columns
// are resolved by header name; transect, filepath and epsg are required,
// anything else is ignored.
func ReadTable(path string) ([]TableRow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%s: empty table", path)
	}
	col := map[string]int{}
	for i, name := range records[0] {
		col[name] = i
	}
	for _, required := range []string{"transect", "filepath", "epsg"} {
		if _, ok := col[required]; !ok {
			return nil, fmt.Errorf("%s: missing column %q", path, required)
		}
	}
	rows := make([]TableRow, 0, len(records)-1)
	for i, rec := range records[1:] {
		epsg, err := strconv.Atoi(rec[col["epsg"]])
		if err != nil {
			return nil, fmt.Errorf("%s row %d: invalid epsg %q", path, i+1, rec[col["epsg"]])
		}
		rows = append(rows, TableRow{
			Transect: rec[col["transect"]],
			Filepath: rec[col["filepath"]],
			EPSG:     epsg,
		})
	}
	return rows, nil
}
