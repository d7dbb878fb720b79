package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/qrdar/internal/db"
	"github.com/banshee-data/qrdar/internal/monitoring"
	"github.com/banshee-data/qrdar/internal/pointcloud"
	"github.com/banshee-data/qrdar/internal/survey"
	"github.com/banshee-data/qrdar/internal/testutil"
)

// fixture writes a one-marker survey: a tile directory, the labelled sticker
// points and a dictionary.
type fixture struct {
	tilesDir, stickers, dictionary string
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	monitoring.SetLogger(nil)
	t.Cleanup(func() { monitoring.SetLogger(nil) })

	dir := t.TempDir()
	f := fixture{
		tilesDir:   filepath.Join(dir, "tiles"),
		stickers:   filepath.Join(dir, "stickers.pcd"),
		dictionary: filepath.Join(dir, "codes.json"),
	}

	m := testutil.SyntheticMarker{Code: testutil.InnerCode(0xA5C3), Pose: testutil.DefaultPose}
	store := pointcloud.NewDirStore(f.tilesDir)
	require.NoError(t, store.WriteTile(context.Background(), "a", m.Build()))
	require.NoError(t, os.WriteFile(filepath.Join(f.tilesDir, pointcloud.TileIndexFile), []byte("# name x y\na 12 -4\n"), 0644))

	var dots []pointcloud.Point
	for i, c := range m.CornerPositions() {
		dots = append(dots, pointcloud.Point{X: c[0], Y: c[1], Z: c[2], Intensity: testutil.StickerIntensity, Label: i})
	}
	var buf bytes.Buffer
	require.NoError(t, pointcloud.WritePCD(&buf, dots))
	require.NoError(t, os.WriteFile(f.stickers, buf.Bytes(), 0644))

	require.NoError(t, os.WriteFile(f.dictionary,
		[]byte(`{"name": "test", "codes": [{"id": 7, "inner": 42435}, {"id": 8, "inner": 4660}]}`), 0644))
	return f
}

func floorOverride() *float64 {
	v := 4.5
	return &v
}

func TestImportThenRead(t *testing.T) {
	f := newFixture(t)
	dbPath := filepath.Join(t.TempDir(), "survey.db")

	database, err := db.NewDB(dbPath)
	require.NoError(t, err)
	n, err := importTiles(context.Background(), pointcloud.NewDirStore(f.tilesDir), database)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	index, err := database.TileIndex(context.Background())
	require.NoError(t, err)
	assert.Equal(t, pointcloud.TileIndex{{Name: "a", X: 12, Y: -4}}, index)
	want, err := pointcloud.NewDirStore(f.tilesDir).ReadTile(context.Background(), "a", everything)
	require.NoError(t, err)
	got, err := database.ReadTile(context.Background(), "a", pointcloud.BoundsOf(want))
	require.NoError(t, err)
	testutil.AssertPointsClose(t, got, want, 1e-9)
	require.NoError(t, database.Close())

	plotDir := filepath.Join(t.TempDir(), "plots")
	summary := filepath.Join(t.TempDir(), "summary.html")
	var out bytes.Buffer
	records, err := runRead(context.Background(), readOptions{
		DBPath:         dbPath,
		StickersPath:   f.stickers,
		DictionaryPath: f.dictionary,
		PlotDir:        plotDir,
		SummaryPath:    summary,
		MinIntensity:   floorOverride(),
	}, &out)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, survey.StatusOK, records[0].Status())
	assert.Equal(t, 7, records[0].Result.Code)

	assert.Contains(t, out.String(), "run ")
	assert.Contains(t, out.String(), "target")
	assert.Contains(t, out.String(), "1.000")

	assert.FileExists(t, filepath.Join(plotDir, "target_0_points.png"))
	assert.FileExists(t, filepath.Join(plotDir, "target_0_raster.png"))
	html, err := os.ReadFile(summary)
	require.NoError(t, err)
	assert.Contains(t, string(html), "target 0: ok 7")

	database, err = db.NewDB(dbPath)
	require.NoError(t, err)
	defer database.Close()
	var runID string
	require.NoError(t, database.QueryRow(`SELECT run_id FROM runs`).Scan(&runID))
	results, err := database.Results(context.Background(), runID)
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.NotNil(t, results[0].Code)
	assert.Equal(t, 7, *results[0].Code)
}

func TestRead_FromTileDirectory(t *testing.T) {
	f := newFixture(t)
	var out bytes.Buffer
	records, err := runRead(context.Background(), readOptions{
		DBPath:         filepath.Join(t.TempDir(), "results.db"),
		TilesDir:       f.tilesDir,
		StickersPath:   f.stickers,
		DictionaryPath: f.dictionary,
		MinIntensity:   floorOverride(),
	}, &out)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, 7, records[0].Result.Code)
}

func TestRead_Errors(t *testing.T) {
	f := newFixture(t)
	base := readOptions{
		DBPath:         filepath.Join(t.TempDir(), "results.db"),
		TilesDir:       f.tilesDir,
		StickersPath:   f.stickers,
		DictionaryPath: f.dictionary,
	}

	noDict := base
	noDict.DictionaryPath = ""
	_, err := runRead(context.Background(), noDict, &bytes.Buffer{})
	assert.ErrorContains(t, err, "no dictionary")

	badWorkers := base
	zero := 0
	badWorkers.Workers = &zero
	_, err = runRead(context.Background(), badWorkers, &bytes.Buffer{})
	assert.Error(t, err)

	noStickers := base
	noStickers.StickersPath = filepath.Join(t.TempDir(), "missing.pcd")
	_, err = runRead(context.Background(), noStickers, &bytes.Buffer{})
	assert.ErrorContains(t, err, "failed to open stickers")
}

func TestPrintRecords(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, printRecords(&out, []survey.Record{
		{Target: survey.Located{ID: 3}, Err: &survey.TargetError{TargetID: 3, Err: os.ErrNotExist}},
	}))
	assert.Contains(t, out.String(), "error")
	assert.Contains(t, out.String(), "3")
}
