package laztif

import (
	"fmt"
	"os"

	"sigs.k8s.io/yaml"
)

// Config carries the deployment specific paths and constants shared by the
// linking and rasterization stages. A Config is built once at startup and
// passed by value; the stages never mutate it.
type Config struct {
	// DataDir is the root directory containing one subdirectory per
	// acquisition group, each holding point cloud files.
	DataDir string `json:"dataDir"`
	// VectorPath is the source vector dataset (e.g. a GeoPackage) holding
	// the expected survey records.
	VectorPath string `json:"vectorPath"`
	// TablePath is the flat metadata table produced by the linker and
	// consumed by the rasterizer. Defaults to VectorPath with a
	// "_locpaths.csv" suffix when empty.
	TablePath string `json:"tablePath"`
	// OutDir is the root directory (or gs:// prefix) for raster outputs,
	// one subdirectory per transect.
	OutDir string `json:"outDir"`

	// Extensions lists the point cloud filename extensions considered
	// during discovery.
	Extensions []string `json:"extensions,omitempty"`
	// MatchDelimiter is the token separating the stable file prefix from
	// the per-delivery suffix in the datafile attribute.
	MatchDelimiter string `json:"matchDelimiter,omitempty"`

	// DefaultEPSG is assigned to a source dataset that carries no CRS.
	DefaultEPSG int `json:"defaultEpsg,omitempty"`
	// SourceEPSG is the CRS assumed for point cloud coordinates. LAS CRS
	// records are not parsed; see DESIGN.md.
	SourceEPSG int `json:"sourceEpsg,omitempty"`
	// PlaceholderX/Y is the coordinate synthesized for records of a
	// dataset that carries no geometry at all.
	PlaceholderX float64 `json:"placeholderX,omitempty"`
	PlaceholderY float64 `json:"placeholderY,omitempty"`

	// Resolution is the output raster cell size, in target CRS units.
	Resolution float64 `json:"resolution,omitempty"`
	// WindowSize is the IDW search window, in cells.
	WindowSize int `json:"windowSize,omitempty"`
	// NoData marks raster cells with no contributing points.
	NoData float64 `json:"noData,omitempty"`
	// Variant is the output filename model tag, usually DTM or DSM.
	Variant string `json:"variant,omitempty"`
	// Workers bounds the rasterization worker pool.
	Workers int `json:"workers,omitempty"`
}

// DefaultConfig returns the configuration matching a standard DTM
// production run. Paths are left empty and must be supplied by the caller
// or a config file.
func DefaultConfig() Config {
	return Config{
		Extensions:     []string{".laz", ".las"},
		MatchDelimiter: "_dn_",
		DefaultEPSG:    4326,
		SourceEPSG:     4326,
		PlaceholderX:   0,
		PlaceholderY:   0,
		Resolution:     30,
		WindowSize:     10,
		NoData:         -9999,
		Variant:        "DTM",
		Workers:        20,
	}
}

// LoadConfig overlays the yaml file at path onto DefaultConfig.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	buf, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.UnmarshalStrict(buf, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, cfg.Validate()
}

func (cfg Config) Validate() error {
	if cfg.Resolution <= 0 {
		return ErrInvalidOption{"resolution must be >0"}
	}
	if cfg.WindowSize < 1 {
		return ErrInvalidOption{"window size must be >=1"}
	}
	if cfg.Workers < 1 {
		return ErrInvalidOption{"workers must be >=1"}
	}
	if cfg.MatchDelimiter == "" {
		return ErrInvalidOption{"match delimiter must not be empty"}
	}
	if len(cfg.Extensions) == 0 {
		return ErrInvalidOption{"at least one discovery extension required"}
	}
	return nil
}

type ErrInvalidOption struct {
	msg string
}

func (err ErrInvalidOption) Error() string {
	return err.msg
}
