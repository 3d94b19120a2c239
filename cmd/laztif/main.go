package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cloud.google.com/go/storage"
	"github.com/airbusgeo/godal"
	"github.com/airbusgeo/laztif"
	"github.com/airbusgeo/osio"
	"github.com/airbusgeo/osio/gcs"
	"github.com/spf13/cobra"
	adst "go.airbusds-geo.com/gcp/storage"
	"go.airbusds-geo.com/log"
)

var (
	cfg        laztif.Config
	configPath string
	verbose    bool
	useGCS     bool
	startTime  time.Time

	dataDir    string
	vectorPath string
	tablePath  string
	outDir     string

	stcl   *storage.Client
	adstcl *adst.Client
	remote laztif.Remote

	dsm        bool
	reclassify bool
	resolution float64
	windowSize int
	workers    int
	variant    string
)

var rootCmd = &cobra.Command{
	Use:   "laztif",
	Short: "lidar point cloud to elevation raster batch pipeline",
	CompletionOptions: cobra.CompletionOptions{
		DisableDefaultCmd: true,
	},
	SilenceUsage: true,

	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		startTime = time.Now()
		if !verbose {
			os.Setenv("LOGLEVEL", "info")
			log.Structured()
		}
		ctx := cmd.Context()

		var err error
		if configPath != "" {
			if cfg, err = laztif.LoadConfig(configPath); err != nil {
				return err
			}
		} else {
			cfg = laztif.DefaultConfig()
		}
		if dataDir != "" {
			cfg.DataDir = dataDir
		}
		if vectorPath != "" {
			cfg.VectorPath = vectorPath
		}
		if tablePath != "" {
			cfg.TablePath = tablePath
		}
		if outDir != "" {
			cfg.OutDir = outDir
		}
		if cfg.TablePath == "" && cfg.VectorPath != "" {
			_, _, cfg.TablePath = laztif.ArtifactPaths(cfg.VectorPath)
		}
		if cmd.Flags().Changed("res") {
			cfg.Resolution = resolution
		}
		if cmd.Flags().Changed("window") {
			cfg.WindowSize = windowSize
		}
		if cmd.Flags().Changed("workers") {
			cfg.Workers = workers
		}
		if cmd.Flags().Changed("variant") {
			cfg.Variant = variant
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		if useGCS {
			if stcl, err = storage.NewClient(ctx); err != nil {
				return fmt.Errorf("storage.newclient: %w", err)
			}
			if adstcl, err = adst.New(ctx, adst.WithStorageClient(stcl)); err != nil {
				return fmt.Errorf("ads storage.new: %w", err)
			}
			gcsh, err := gcs.Handle(ctx, gcs.GCSClient(stcl))
			if err != nil {
				return fmt.Errorf("gcs.handle: %w", err)
			}
			gcsa, err := osio.NewAdapter(gcsh)
			if err != nil {
				return fmt.Errorf("osio.new: %w", err)
			}
			if err := godal.RegisterVSIHandler("gs://", gcsa); err != nil {
				return fmt.Errorf("register osio: %w", err)
			}
			remote = &gcsRemote{stcl: stcl, adstcl: adstcl}
		}
		godal.RegisterAll()
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, _ []string) {
		log.Logger(cmd.Context()).Sugar().Debugf("command %s took %.1fs",
			cmd.Name(), time.Since(startTime).Seconds())
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configPath, "config", "", "yaml run configuration")
	pf.BoolVar(&verbose, "verbose", false, "verbose output")
	pf.BoolVar(&useGCS, "gcs", false, "enable gs:// paths for vector input and raster outputs")
	pf.StringVar(&dataDir, "data", "", "point cloud root directory")
	pf.StringVar(&vectorPath, "vector", "", "source vector dataset")
	pf.StringVar(&tablePath, "table", "", "flat metadata table (default: derived from --vector)")
	pf.StringVar(&outDir, "out", "", "raster output root")
	rootCmd.AddCommand(linkCmd, rasterizeCmd, verifyCmd)

	for _, cmd := range []*cobra.Command{rasterizeCmd, verifyCmd} {
		fl := cmd.Flags()
		fl.BoolVar(&dsm, "dsm", false, "generate a surface model instead of a terrain model")
		fl.BoolVar(&reclassify, "reclassify", true, "discard delivered classification and re-derive ground points")
		fl.Float64Var(&resolution, "res", 30, "output raster resolution")
		fl.IntVar(&windowSize, "window", 10, "idw search window, in cells")
		fl.IntVar(&workers, "workers", 20, "worker pool size")
		fl.StringVar(&variant, "variant", "DTM", "output filename model tag")
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

var linkCmd = &cobra.Command{
	Use:   "link",
	Short: "match survey records to point cloud files and write the metadata artifacts",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		slog := log.Logger(ctx).Sugar()
		if cfg.DataDir == "" || cfg.VectorPath == "" {
			return fmt.Errorf("--data and --vector are required")
		}

		files, err := laztif.Discover(cfg.DataDir, cfg.Extensions)
		if err != nil {
			return err
		}
		slog.Infof("found %d point cloud files under %s", len(files), cfg.DataDir)

		dataset, err := laztif.ReadRecords(ctx, cfg.VectorPath, cfg)
		if err != nil {
			return err
		}
		slog.Infof("loaded %s: %d records", cfg.VectorPath, len(dataset.Records))

		matcher, err := laztif.NewMatcher(files, cfg.MatchDelimiter)
		if err != nil {
			return err
		}
		res := laztif.Link(dataset.Records, matcher)
		slog.Infof("matched %d records, dropped %d without a file", len(res.Matched), res.Dropped)

		return dataset.WriteArtifacts(ctx, res.Matched, cfg.VectorPath)
	},
}

func buildJobs() (laztif.Converter, []laztif.Job, error) {
	if cfg.TablePath == "" || cfg.OutDir == "" {
		return laztif.Converter{}, nil, fmt.Errorf("--table (or --vector) and --out are required")
	}
	rows, err := laztif.ReadTable(cfg.TablePath)
	if err != nil {
		return laztif.Converter{}, nil, err
	}
	conv := laztif.NewConverter(cfg, !dsm, reclassify)
	conv.Remote = remote
	return conv, conv.Jobs(rows, cfg.OutDir), nil
}

var rasterizeCmd = &cobra.Command{
	Use:   "rasterize",
	Short: "convert every linked point cloud to an elevation raster",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		conv, jobs, err := buildJobs()
		if err != nil {
			return err
		}
		report := laztif.Run(cmd.Context(), jobs, conv.Convert, cfg.Workers)
		if len(jobs) > 0 && report.Failed == len(jobs) {
			return errors.New("all jobs failed")
		}
		return nil
	},
}

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "audit the expected raster outputs against the filesystem",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		slog := log.Logger(ctx).Sugar()
		_, jobs, err := buildJobs()
		if err != nil {
			return err
		}
		report := laztif.Audit(ctx, jobs, remote, cfg.Workers)
		for _, e := range report.Entries {
			if e.Status == laztif.AuditOK {
				continue
			}
			if e.Err != nil {
				slog.Warnf("row %d: %s %s: %v", e.Job.Row, e.Job.Output, e.Status, e.Err)
			} else {
				slog.Warnf("row %d: %s %s", e.Job.Row, e.Job.Output, e.Status)
			}
		}
		slog.Infof("%d ok, %d missing, %d untiled, %d invalid",
			report.OK, report.Missing, report.Untiled, report.Invalid)
		if report.Missing+report.Untiled+report.Invalid > 0 {
			return fmt.Errorf("%d of %d outputs not sound",
				report.Missing+report.Untiled+report.Invalid, len(jobs))
		}
		return nil
	},
}

type gcsRemote struct {
	stcl   *storage.Client
	adstcl *adst.Client
}

func (r *gcsRemote) Exists(ctx context.Context, uri string) (bool, error) {
	bucket, object, err := adst.Parse(uri)
	if err != nil {
		return false, fmt.Errorf("invalid uri %s: %w", uri, err)
	}
	_, err = r.stcl.Bucket(bucket).Object(object).Attrs(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (r *gcsRemote) UploadFile(ctx context.Context, uri, localPath string) error {
	return r.adstcl.UploadFromFile(ctx, uri, localPath)
}
