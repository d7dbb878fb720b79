package survey

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"

	"github.com/banshee-data/qrdar/internal/cluster"
	"github.com/banshee-data/qrdar/internal/fsutil"
	"github.com/banshee-data/qrdar/internal/marker"
	"github.com/banshee-data/qrdar/internal/monitoring"
	"github.com/banshee-data/qrdar/internal/pointcloud"
	"github.com/banshee-data/qrdar/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	codeA   = uint16(0xA5C3)
	codeB   = uint16(0x0F0F)
	floorDB = 4.5
)

var (
	markerA = testutil.SyntheticMarker{Code: testutil.InnerCode(codeA), Pose: testutil.DefaultPose}
	markerB = testutil.SyntheticMarker{
		Code: testutil.InnerCode(codeB),
		Pose: testutil.Pose{Yaw: -20 * math.Pi / 180, Translation: [3]float64{30, 8, 0.9}},
	}
)

// cornerDots returns one labelled point at each sensor-frame corner, the
// way an upstream sticker segmentation reports them.
func cornerDots(m testutil.SyntheticMarker, firstLabel int) []pointcloud.Point {
	var out []pointcloud.Point
	for i, c := range m.CornerPositions() {
		out = append(out, pointcloud.Point{X: c[0], Y: c[1], Z: c[2], Intensity: testutil.StickerIntensity, Label: firstLabel + i})
	}
	return out
}

func trio(x, y, z float64, firstLabel int) []pointcloud.Point {
	return []pointcloud.Point{
		{X: x, Y: y, Z: z, Intensity: 8, Label: firstLabel},
		{X: x + 0.1, Y: y, Z: z, Intensity: 8, Label: firstLabel + 1},
		{X: x, Y: y, Z: z + 0.2, Intensity: 8, Label: firstLabel + 2},
	}
}

func TestLocateTargets(t *testing.T) {
	var stickers []pointcloud.Point
	for i, c := range markerA.CornerPositions() {
		stickers = append(stickers, testutil.StickerBlob(c, testutil.StickerIntensity, 5+i)...)
	}
	stickers = append(stickers, testutil.StickerBlob([3]float64{50, 50, 1}, testutil.StickerIntensity, 40)...)
	stickers = append(stickers, pointcloud.Point{X: 12, Y: -4, Z: 1, Label: pointcloud.NoLabel})

	targets := LocateTargets(stickers, DefaultOptions(), cluster.NewDBSCANClusterer())
	require.Len(t, targets, 1)

	tgt := targets[0]
	assert.Equal(t, 0, tgt.ID)
	require.Len(t, tgt.Corners, 4)
	corners := markerA.CornerPositions()
	var mean [3]float64
	for i, c := range tgt.Corners {
		assert.Equal(t, 5+i, c.Label)
		assert.InDelta(t, corners[i][0], c.X, 1e-9)
		assert.InDelta(t, corners[i][1], c.Y, 1e-9)
		assert.InDelta(t, corners[i][2], c.Z, 1e-9)
		for k := 0; k < 3; k++ {
			mean[k] += corners[i][k] / 4
		}
	}
	for k := 0; k < 3; k++ {
		assert.InDelta(t, mean[k], tgt.Centroid[k], 1e-9)
	}
}

func TestLocateTargets_Empty(t *testing.T) {
	assert.Empty(t, LocateTargets(nil, DefaultOptions(), cluster.NewDBSCANClusterer()))
	unlabelled := []pointcloud.Point{{X: 1, Label: pointcloud.NoLabel}}
	assert.Empty(t, LocateTargets(unlabelled, DefaultOptions(), cluster.NewDBSCANClusterer()))
}

type countingReader struct {
	mu    sync.Mutex
	reads map[string]int
	tiles map[string][]pointcloud.Point
	err   error
}

func (r *countingReader) ReadTile(_ context.Context, name string, b pointcloud.Bounds) ([]pointcloud.Point, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.reads == nil {
		r.reads = map[string]int{}
	}
	r.reads[name]++
	if r.err != nil {
		return nil, r.err
	}
	return pointcloud.Filter(r.tiles[name], b), nil
}

func TestExtractTile(t *testing.T) {
	corners := cornerDots(markerA, 0)
	target := Located{ID: 3, Corners: corners}
	box := target.Bounds()

	inMargin := pointcloud.Point{X: box.MinX - 0.05, Y: box.MinY, Z: box.MinZ, Intensity: -3}
	outside := pointcloud.Point{X: box.MinX - 0.5, Y: box.MinY, Z: box.MinZ, Intensity: 1}
	reader := &countingReader{tiles: map[string][]pointcloud.Point{
		"west": {inMargin, outside},
		"east": {},
	}}
	index := pointcloud.TileIndex{
		{Name: "far", X: 100, Y: 100},
		{Name: "west", X: 10, Y: -4},
		{Name: "east", X: 14, Y: -4},
	}

	brightInBox := pointcloud.Point{X: corners[0].X, Y: corners[0].Y, Z: corners[0].Z, Intensity: 0.5, Label: 1}
	darkInBox := pointcloud.Point{X: corners[0].X, Y: corners[0].Y, Z: corners[0].Z, Intensity: -1, Label: 1}
	brightInMargin := pointcloud.Point{X: box.MinX - 0.05, Y: box.MinY, Z: box.MinZ, Intensity: 9, Label: 2}

	points, tiles, err := ExtractTile(context.Background(), reader, index, target,
		[]pointcloud.Point{brightInBox, darkInBox, brightInMargin}, DefaultOptions())
	require.NoError(t, err)

	assert.Equal(t, []string{"west"}, tiles, "first matching tile only, read once")
	assert.Equal(t, 1, reader.reads["west"])
	assert.Equal(t, []pointcloud.Point{inMargin, brightInBox}, points)
}

func TestExtractTile_Errors(t *testing.T) {
	target := Located{ID: 9, Corners: cornerDots(markerA, 0)}

	_, _, err := ExtractTile(context.Background(), &countingReader{}, pointcloud.TileIndex{{Name: "far", X: 100, Y: 100}},
		target, nil, DefaultOptions())
	assert.ErrorContains(t, err, "no tile")

	boom := errors.New("disk on fire")
	_, tiles, err := ExtractTile(context.Background(), &countingReader{err: boom}, pointcloud.TileIndex{{Name: "a", X: 12, Y: -4}},
		target, nil, DefaultOptions())
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []string{"a"}, tiles)
}

type recordingSink struct {
	mu      sync.Mutex
	records []Record
	err     error
}

func (s *recordingSink) SaveRecord(_ context.Context, rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.records = append(s.records, rec)
	return nil
}

func surveyFixture(t *testing.T) (*Runner, []pointcloud.Point, *fsutil.MemoryFileSystem) {
	t.Helper()
	monitoring.SetLogger(nil)
	t.Cleanup(func() { monitoring.SetLogger(nil) })

	mfs := fsutil.NewMemoryFileSystem()
	store := &pointcloud.DirStore{FS: mfs, Dir: "/tiles"}
	ctx := context.Background()
	require.NoError(t, store.WriteTile(ctx, "a", markerA.Build()))
	require.NoError(t, store.WriteTile(ctx, "b", markerB.Build()))
	index := pointcloud.TileIndex{
		{Name: "a", X: 12, Y: -4},
		{Name: "b", X: 30, Y: 8},
	}

	dict, err := marker.NewDictionary("survey", []marker.CodeEntry{
		{ID: 7, Bits: marker.InnerBitmap(codeA)},
		{ID: 9, Bits: marker.InnerBitmap(codeB ^ 0x8000)},
		{ID: 4, Bits: marker.InnerBitmap(codeB ^ 0x0001)},
	})
	require.NoError(t, err)
	params := marker.DefaultParams()
	params.MinIntensity = floorDB
	engine, err := marker.NewEngine(marker.DefaultTemplate(), dict, marker.WithParams(params))
	require.NoError(t, err)

	opts := DefaultOptions()
	opts.Workers = 2
	opts.AmbiguityLogDir = "/logs"
	opts.PCDOutputDir = "/pcd"
	r := NewRunner(store, index, engine, opts)
	r.FS = mfs

	var stickers []pointcloud.Point
	stickers = append(stickers, cornerDots(markerA, 0)...)
	stickers = append(stickers, cornerDots(markerB, 10)...)
	stickers = append(stickers, pointcloud.Point{X: 60, Y: 60, Z: 1, Intensity: 9, Label: 20})
	stickers = append(stickers, trio(200, 200, 1, 30)...)
	return r, stickers, mfs
}

func TestRunner_Run(t *testing.T) {
	r, stickers, mfs := surveyFixture(t)
	sink := &recordingSink{}
	r.Sink = sink

	records, err := r.Run(context.Background(), stickers)
	require.NoError(t, err)
	require.Len(t, records, 3)

	a := records[0]
	assert.Equal(t, StatusOK, a.Status())
	require.NotNil(t, a.Result)
	assert.Equal(t, 7, a.Result.Code)
	assert.Equal(t, 1.0, a.Result.Confidence)
	assert.Equal(t, []string{"a"}, a.Tiles)
	assert.Less(t, a.Result.RMSE, 0.001)

	b := records[1]
	assert.Equal(t, StatusAmbiguous, b.Status())
	assert.Equal(t, []int{4, 9}, b.Result.Candidates)
	logData, err := mfs.ReadFile("/logs/1.log")
	require.NoError(t, err)
	assert.Equal(t, "4 9", string(logData))
	assert.False(t, mfs.Exists("/logs/0.log"))

	c := records[2]
	assert.Equal(t, StatusError, c.Status())
	var te *TargetError
	require.ErrorAs(t, c.Err, &te)
	assert.Equal(t, 2, te.TargetID)
	assert.Nil(t, c.Result)

	pcd, err := mfs.Open("/pcd/target_0.pcd")
	require.NoError(t, err)
	written, err := pointcloud.ReadPCD(pcd)
	require.NoError(t, err)
	assert.Len(t, written, a.Points)
	assert.False(t, mfs.Exists("/pcd/target_2.pcd"))

	require.Len(t, sink.records, 3)
	for i, rec := range sink.records {
		assert.Equal(t, i, rec.Target.ID)
	}
}

func TestRunner_SerialMatchesParallel(t *testing.T) {
	r, stickers, _ := surveyFixture(t)
	parallel, err := r.Run(context.Background(), stickers)
	require.NoError(t, err)

	r.Opts.Workers = 1
	serial, err := r.Run(context.Background(), stickers)
	require.NoError(t, err)

	require.Len(t, serial, len(parallel))
	for i := range serial {
		assert.Equal(t, serial[i].Status(), parallel[i].Status())
		assert.Equal(t, serial[i].Result, parallel[i].Result)
	}
}

func TestRunner_SinkError(t *testing.T) {
	r, stickers, _ := surveyFixture(t)
	r.Sink = &recordingSink{err: errors.New("db locked")}
	_, err := r.Run(context.Background(), stickers)
	assert.ErrorContains(t, err, "db locked")
}

func TestRunner_Cancelled(t *testing.T) {
	r, stickers, _ := surveyFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := r.Run(ctx, stickers)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRecord_Status(t *testing.T) {
	tests := []struct {
		rec  Record
		want string
	}{
		{Record{Result: &marker.MarkerResult{}}, StatusOK},
		{Record{Result: &marker.MarkerResult{Ambiguous: true}}, StatusAmbiguous},
		{Record{Err: &TargetError{TargetID: 1, Err: marker.ErrNoCandidates}}, StatusNoCandidates},
		{Record{Err: &TargetError{TargetID: 1, Err: marker.ErrNoTransform}}, StatusNoTransform},
		{Record{Err: &TargetError{TargetID: 1, Err: errors.New("io")}}, StatusError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.rec.Status())
	}
}

func TestTargetError(t *testing.T) {
	err := &TargetError{TargetID: 12, Err: marker.ErrNoTransform}
	assert.Equal(t, "target 12: no transform matches the template", err.Error())
	assert.ErrorIs(t, err, marker.ErrNoTransform)
}
