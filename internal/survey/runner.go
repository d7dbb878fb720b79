package survey

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/banshee-data/qrdar/internal/cluster"
	"github.com/banshee-data/qrdar/internal/fsutil"
	"github.com/banshee-data/qrdar/internal/marker"
	"github.com/banshee-data/qrdar/internal/monitoring"
	"github.com/banshee-data/qrdar/internal/pointcloud"
)

// Status values recorded for each target.
const (
	StatusOK           = "ok"
	StatusAmbiguous    = "ambiguous"
	StatusNoCandidates = "no_candidates"
	StatusNoTransform  = "no_transform"
	StatusError        = "error"
)

// TargetError is a failure confined to one target. The survey records it
// and carries on with the other targets.
type TargetError struct {
	TargetID int
	Err      error
}

func (e *TargetError) Error() string {
	return fmt.Sprintf("target %d: %v", e.TargetID, e.Err)
}

func (e *TargetError) Unwrap() error {
	return e.Err
}

// Record is the outcome for one located target.
type Record struct {
	Target Located
	Tiles  []string
	Points int                  // points handed to the engine
	Result *marker.MarkerResult // nil on failure
	Err    error                // *TargetError on failure
}

// Status classifies the record.
func (r Record) Status() string {
	switch {
	case r.Err == nil && r.Result != nil && r.Result.Ambiguous:
		return StatusAmbiguous
	case r.Err == nil:
		return StatusOK
	case errors.Is(r.Err, marker.ErrNoCandidates):
		return StatusNoCandidates
	case errors.Is(r.Err, marker.ErrNoTransform):
		return StatusNoTransform
	default:
		return StatusError
	}
}

// RecordSink persists records as they complete.
type RecordSink interface {
	SaveRecord(ctx context.Context, rec Record) error
}

// Runner decodes every target of a survey.
type Runner struct {
	Store     pointcloud.TileReader
	Index     pointcloud.TileIndex
	Engine    *marker.Engine
	Clusterer cluster.Clusterer
	FS        fsutil.FileSystem
	Sink      RecordSink // optional
	Opts      Options
}

// NewRunner creates a runner with the DBSCAN clusterer and the OS filesystem.
func NewRunner(store pointcloud.TileReader, index pointcloud.TileIndex, engine *marker.Engine, opts Options) *Runner {
	return &Runner{
		Store:     store,
		Index:     index,
		Engine:    engine,
		Clusterer: cluster.NewDBSCANClusterer(),
		FS:        fsutil.OSFileSystem{},
		Opts:      opts,
	}
}

// Run locates the targets among the labelled sticker points and processes
// them with up to Opts.Workers in parallel. Records are returned in target
// order. Per-target failures are recorded, not returned; Run only fails on
// context cancellation, output errors or sink errors.
func (r *Runner) Run(ctx context.Context, stickers []pointcloud.Point) ([]Record, error) {
	targets := LocateTargets(stickers, r.Opts, r.Clusterer)
	monitoring.Logf("number of potential targets: %d", len(targets))

	records := make([]Record, len(targets))
	g, gctx := errgroup.WithContext(ctx)
	workers := r.Opts.Workers
	if workers < 1 {
		workers = 1
	}
	g.SetLimit(workers)

	for i, t := range targets {
		g.Go(func() error {
			rec, err := r.processTarget(gctx, t, stickers)
			if err != nil {
				return err
			}
			records[i] = rec
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if r.Sink != nil {
		for _, rec := range records {
			if err := r.Sink.SaveRecord(ctx, rec); err != nil {
				return records, fmt.Errorf("failed to save target %d: %w", rec.Target.ID, err)
			}
		}
	}
	return records, nil
}

func (r *Runner) processTarget(ctx context.Context, t Located, stickers []pointcloud.Point) (Record, error) {
	logf := monitoring.TargetLogger(t.ID)
	rec := Record{Target: t}

	points, tiles, err := ExtractTile(ctx, r.Store, r.Index, t, stickers, r.Opts)
	rec.Tiles = tiles
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return rec, ctxErr
		}
		logf("tile extraction failed: %v", err)
		rec.Err = &TargetError{TargetID: t.ID, Err: err}
		return rec, nil
	}
	rec.Points = len(points)

	if r.Opts.PCDOutputDir != "" {
		if err := r.writePCD(t.ID, points); err != nil {
			return rec, err
		}
	}

	res, err := r.Engine.RegisterAndDecode(marker.Target{ID: t.ID, Centroid: t.Centroid, Points: points})
	if err != nil {
		rec.Err = &TargetError{TargetID: t.ID, Err: err}
		return rec, nil
	}
	rec.Result = res

	if res.Ambiguous && r.Opts.AmbiguityLogDir != "" {
		if err := r.writeAmbiguityLog(t.ID, res.Candidates); err != nil {
			return rec, err
		}
	}
	return rec, nil
}

// writeAmbiguityLog writes the tied code ids, space separated, to
// <dir>/<target>.log for manual review.
func (r *Runner) writeAmbiguityLog(targetID int, candidates []int) error {
	if err := r.FS.MkdirAll(r.Opts.AmbiguityLogDir, 0755); err != nil {
		return fmt.Errorf("failed to create %s: %w", r.Opts.AmbiguityLogDir, err)
	}
	ids := make([]string, len(candidates))
	for i, c := range candidates {
		ids[i] = strconv.Itoa(c)
	}
	path := filepath.Join(r.Opts.AmbiguityLogDir, strconv.Itoa(targetID)+".log")
	monitoring.Logf("target %d: writing tied codes to %s", targetID, path)
	return r.FS.WriteFile(path, []byte(strings.Join(ids, " ")), 0644)
}

func (r *Runner) writePCD(targetID int, points []pointcloud.Point) error {
	if err := r.FS.MkdirAll(r.Opts.PCDOutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create %s: %w", r.Opts.PCDOutputDir, err)
	}
	path := filepath.Join(r.Opts.PCDOutputDir, fmt.Sprintf("target_%d.pcd", targetID))
	w, err := r.FS.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := pointcloud.WritePCD(w, points); err != nil {
		w.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return w.Close()
}
