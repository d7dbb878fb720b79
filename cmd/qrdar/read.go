package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/banshee-data/qrdar/internal/config"
	"github.com/banshee-data/qrdar/internal/db"
	"github.com/banshee-data/qrdar/internal/diagnostics"
	"github.com/banshee-data/qrdar/internal/marker"
	"github.com/banshee-data/qrdar/internal/pointcloud"
	"github.com/banshee-data/qrdar/internal/survey"
)

type readOptions struct {
	ConfigPath     string
	DBPath         string
	TilesDir       string // read tiles from a directory instead of the database
	StickersPath   string
	DictionaryPath string // overrides the configured dictionary
	PlotDir        string
	SummaryPath    string

	MinIntensity  *float64
	Workers       *int
	MaxCandidates *int
}

func handleRead(args []string) {
	fs := flag.NewFlagSet("read", flag.ExitOnError)
	var ro readOptions
	fs.StringVar(&ro.ConfigPath, "config", "", "JSON configuration file (defaults built in)")
	fs.StringVar(&ro.DBPath, "db", defaultDBPath, "SQLite database for tiles and results")
	fs.StringVar(&ro.TilesDir, "tiles", "", "Read tiles from this directory instead of the database")
	fs.StringVar(&ro.StickersPath, "stickers", "", "PCD of labelled sticker points (required)")
	fs.StringVar(&ro.DictionaryPath, "dictionary", "", "JSON code dictionary (overrides config)")
	fs.StringVar(&ro.PlotDir, "plots", "", "Write per-target diagnostic PNGs to this directory")
	fs.StringVar(&ro.SummaryPath, "summary", "", "Write an HTML summary to this file")
	minIntensity := fs.Float64("min-intensity", 0, "Lowest intensity threshold floor (overrides config)")
	workers := fs.Int("workers", 1, "Targets processed in parallel (overrides config)")
	maxCandidates := fs.Int("max-candidates", 12, "Candidate cap per threshold (overrides config)")
	fs.Parse(args)

	// Only flags given on the command line override the config.
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "min-intensity":
			ro.MinIntensity = minIntensity
		case "workers":
			ro.Workers = workers
		case "max-candidates":
			ro.MaxCandidates = maxCandidates
		}
	})

	if ro.StickersPath == "" {
		fmt.Fprintln(os.Stderr, "Error: -stickers is required")
		fs.Usage()
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if _, err := runRead(ctx, ro, os.Stdout); err != nil {
		log.Fatalf("read: %v", err)
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.EmptyConfig(), nil
	}
	return config.LoadConfig(path)
}

func loadDictionary(ro readOptions, cfg *config.Config) (*marker.Dictionary, error) {
	path := ro.DictionaryPath
	if path == "" {
		path = cfg.GetDictionary()
	}
	if path == "" {
		return nil, fmt.Errorf("no dictionary given; set -dictionary or \"dictionary\" in the config")
	}
	dict, err := marker.LoadDictionary(path)
	if err != nil {
		return nil, err
	}
	return dict.Subset(cfg.ExpectedCodes)
}

func readStickers(path string) ([]pointcloud.Point, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open stickers: %w", err)
	}
	defer f.Close()
	return pointcloud.ReadPCD(f)
}

// runRead decodes every target of the survey, stores the run in the database
// and prints one line per target to out.
func runRead(ctx context.Context, ro readOptions, out io.Writer) ([]survey.Record, error) {
	cfg, err := loadConfig(ro.ConfigPath)
	if err != nil {
		return nil, err
	}
	if err := cfg.ApplyOverrides(ro.MinIntensity, ro.Workers, ro.MaxCandidates); err != nil {
		return nil, err
	}
	params, err := cfg.EngineParams()
	if err != nil {
		return nil, err
	}
	dict, err := loadDictionary(ro, cfg)
	if err != nil {
		return nil, err
	}

	engineOpts := []marker.Option{marker.WithParams(params)}
	var plots *diagnostics.PlotRenderer
	if ro.PlotDir != "" {
		plots = diagnostics.NewPlotRenderer(ro.PlotDir)
		engineOpts = append(engineOpts, marker.WithObserver(plots))
	}
	engine, err := marker.NewEngine(cfg.GetTemplate(), dict, engineOpts...)
	if err != nil {
		return nil, err
	}

	stickers, err := readStickers(ro.StickersPath)
	if err != nil {
		return nil, err
	}

	database, err := db.NewDB(ro.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	defer database.Close()

	var store pointcloud.TileStore = database
	if ro.TilesDir != "" {
		store = pointcloud.NewDirStore(ro.TilesDir)
	}
	index, err := store.TileIndex(ctx)
	if err != nil {
		return nil, err
	}

	run, err := database.CreateRun(ctx, dict.Name, params)
	if err != nil {
		return nil, err
	}
	runner := survey.NewRunner(store, index, engine, cfg.SurveyOptions())
	runner.Sink = database.RecordSink(run.ID)

	records, err := runner.Run(ctx, stickers)
	if err != nil {
		return nil, err
	}
	if err := database.FinishRun(ctx, run.ID, len(records)); err != nil {
		return nil, err
	}

	if plots != nil {
		for _, err := range plots.Errs() {
			log.Printf("diagnostics: %v", err)
		}
	}
	if ro.SummaryPath != "" {
		f, err := os.Create(ro.SummaryPath)
		if err != nil {
			return nil, err
		}
		if err := diagnostics.WriteSummaryHTML(f, "run "+run.ID, records); err != nil {
			f.Close()
			return nil, err
		}
		if err := f.Close(); err != nil {
			return nil, err
		}
	}

	fmt.Fprintf(out, "run %s\n", run.ID)
	return records, printRecords(out, records)
}

// printRecords writes one row per target: position, RMSE, code, confidence
// and status.
func printRecords(out io.Writer, records []survey.Record) error {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "target\tx\ty\tz\trmse\tcode\tconfidence\tstatus")
	for _, rec := range records {
		c := rec.Target.Centroid
		rmse, code, conf := "-", "-", "-"
		if res := rec.Result; res != nil {
			rmse = fmt.Sprintf("%.4f", res.RMSE)
			code = fmt.Sprint(res.Code)
			if res.Ambiguous {
				code = fmt.Sprint(res.Candidates)
			}
			conf = fmt.Sprintf("%.3f", res.Confidence)
		}
		fmt.Fprintf(tw, "%d\t%.2f\t%.2f\t%.2f\t%s\t%s\t%s\t%s\n",
			rec.Target.ID, c[0], c[1], c[2], rmse, code, conf, rec.Status())
	}
	return tw.Flush()
}
