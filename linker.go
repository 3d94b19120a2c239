package laztif

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/paulmach/orb/geojson"
)

// A SourceRecord is one row of the source vector dataset, optionally
// augmented with the resolved point cloud path after linking.
type SourceRecord struct {
	ID       int64
	Transect string
	Datafile string
	EPSG     int
	Random   int64
	Geometry *geojson.Geometry
	Filepath string
}

// Discover enumerates point cloud files located exactly one subdirectory
// below root, matching one of the given filename extensions. Results are
// sorted so that the matcher's first-wins tie-break is deterministic for a
// given tree.
func Discover(root string, exts []string) ([]string, error) {
	var files []string
	for _, ext := range exts {
		matches, err := filepath.Glob(filepath.Join(root, "*", "*"+ext))
		if err != nil {
			return nil, fmt.Errorf("glob %s: %w", root, err)
		}
		files = append(files, matches...)
	}
	sort.Strings(files)
	return files, nil
}

// A Matcher resolves a record's datafile attribute to a discovered file.
// The key is the portion of the datafile basename before the first
// delimiter occurrence; the match is the first discovered file (in
// discovery order) whose basename starts with that key. The index is built
// once so that resolving stays a prefix lookup however many records a run
// carries.
type Matcher struct {
	delim string
	index []matchEntry
}

// a matchEntry pairs a file basename with its discovery rank, sorted by
// basename so prefix ranges are contiguous
type matchEntry struct {
	base string
	rank int
	path string
}

func NewMatcher(files []string, delim string) (*Matcher, error) {
	if delim == "" {
		return nil, ErrInvalidOption{"match delimiter must not be empty"}
	}
	index := make([]matchEntry, len(files))
	for i, f := range files {
		index[i] = matchEntry{base: filepath.Base(f), rank: i, path: f}
	}
	sort.Slice(index, func(i, j int) bool { return index[i].base < index[j].base })
	return &Matcher{delim: delim, index: index}, nil
}

// Resolve returns the full path of the first discovered file matching the
// datafile attribute, or "" when there is none.
func (m *Matcher) Resolve(datafile string) string {
	key, _, _ := strings.Cut(filepath.Base(datafile), m.delim)
	if key == "" {
		return ""
	}
	first := sort.Search(len(m.index), func(i int) bool { return m.index[i].base >= key })
	best := -1
	for i := first; i < len(m.index) && strings.HasPrefix(m.index[i].base, key); i++ {
		if best < 0 || m.index[i].rank < m.index[best].rank {
			best = i
		}
	}
	if best < 0 {
		return ""
	}
	return m.index[best].path
}

// A LinkResult is the outcome of matching one dataset against one
// discovered file set.
type LinkResult struct {
	// Matched holds the records with a resolved Filepath, in input order.
	Matched []SourceRecord
	// Dropped counts the records with no matching file.
	Dropped int
}

// Link resolves every record's path and drops the unmatched ones.
func Link(records []SourceRecord, m *Matcher) LinkResult {
	res := LinkResult{}
	for _, rec := range records {
		rec.Filepath = m.Resolve(rec.Datafile)
		if rec.Filepath == "" {
			res.Dropped++
			continue
		}
		res.Matched = append(res.Matched, rec)
	}
	return res
}
