package diagnostics

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/qrdar/internal/fsutil"
	"github.com/banshee-data/qrdar/internal/marker"
	"github.com/banshee-data/qrdar/internal/monitoring"
	"github.com/banshee-data/qrdar/internal/survey"
	"github.com/banshee-data/qrdar/internal/testutil"
)

var pngMagic = []byte("\x89PNG\r\n\x1a\n")

func testEngine(t *testing.T, obs marker.Observer) *marker.Engine {
	t.Helper()
	monitoring.SetLogger(nil)
	t.Cleanup(func() { monitoring.SetLogger(nil) })

	dict, err := marker.NewDictionary("test", []marker.CodeEntry{{ID: 7, Bits: marker.InnerBitmap(0xA5C3)}})
	require.NoError(t, err)
	params := marker.DefaultParams()
	params.MinIntensity = 4.5
	e, err := marker.NewEngine(marker.DefaultTemplate(), dict, marker.WithParams(params), marker.WithObserver(obs))
	require.NoError(t, err)
	return e
}

func TestPlotRenderer_DecodedTarget(t *testing.T) {
	mfs := fsutil.NewMemoryFileSystem()
	r := &PlotRenderer{FS: mfs, Dir: "/plots"}
	e := testEngine(t, r)

	m := testutil.SyntheticMarker{Code: testutil.InnerCode(0xA5C3), Pose: testutil.DefaultPose}
	res, err := e.RegisterAndDecode(marker.Target{ID: 4, Points: m.Build()})
	require.NoError(t, err)
	require.Equal(t, 7, res.Code)

	assert.Empty(t, r.Errs())
	for _, name := range []string{"/plots/target_4_points.png", "/plots/target_4_raster.png"} {
		data, err := mfs.ReadFile(name)
		require.NoError(t, err, name)
		assert.True(t, bytes.HasPrefix(data, pngMagic), name)
	}
}

func TestPlotRenderer_FailedTarget(t *testing.T) {
	mfs := fsutil.NewMemoryFileSystem()
	r := &PlotRenderer{FS: mfs, Dir: "/plots"}
	e := testEngine(t, r)

	m := testutil.SyntheticMarker{Code: testutil.InnerCode(0xA5C3), Pose: testutil.DefaultPose, Omit: []int{0, 1}}
	_, err := e.RegisterAndDecode(marker.Target{ID: 2, Points: m.Build()})
	require.ErrorIs(t, err, marker.ErrNoCandidates)

	assert.Empty(t, r.Errs())
	assert.True(t, mfs.Exists("/plots/target_2_points.png"))
	assert.False(t, mfs.Exists("/plots/target_2_raster.png"))
}

type failingFS struct {
	*fsutil.MemoryFileSystem
}

func (failingFS) Create(string) (io.WriteCloser, error) {
	return nil, errors.New("read-only")
}

func TestPlotRenderer_ErrorsAreCollected(t *testing.T) {
	r := &PlotRenderer{FS: failingFS{fsutil.NewMemoryFileSystem()}, Dir: "/plots"}
	r.Observe(marker.Artifacts{TargetID: 1})
	r.Observe(marker.Artifacts{TargetID: 2})

	errs := r.Errs()
	require.Len(t, errs, 2)
	assert.ErrorContains(t, errs[0], "read-only")
}

func TestBitmapGrid(t *testing.T) {
	var b marker.Bitmap
	b[0][1] = 1
	b[5][4] = 1
	g := bitmapGrid(b)

	c, r := g.Dims()
	assert.Equal(t, marker.GridSize, c)
	assert.Equal(t, marker.GridSize, r)
	assert.Equal(t, 1.0, g.Z(1, 5), "top row is drawn highest")
	assert.Equal(t, 1.0, g.Z(4, 0))
	assert.Equal(t, 0.0, g.Z(1, 0))
	assert.Equal(t, 3.0, g.X(3))
	assert.Equal(t, 2.0, g.Y(2))
}

func TestWriteSummaryHTML(t *testing.T) {
	records := []survey.Record{
		{
			Target: survey.Located{ID: 0, Centroid: marker.Vec3{12.3, -4.1, 1.3}},
			Result: &marker.MarkerResult{Code: 7, Confidence: 1},
		},
		{
			Target: survey.Located{ID: 1, Centroid: marker.Vec3{30, 8, 1}},
			Result: &marker.MarkerResult{Code: -1, Confidence: 0.9375, Ambiguous: true, Candidates: []int{4, 9}},
		},
		{
			Target: survey.Located{ID: 2, Centroid: marker.Vec3{200, 200, 1}},
			Err:    &survey.TargetError{TargetID: 2, Err: marker.ErrNoTransform},
		},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteSummaryHTML(&buf, "site-a", records))
	html := buf.String()

	assert.True(t, strings.Contains(html, "<html"), "renders a full page")
	assert.Contains(t, html, "site-a")
	assert.Contains(t, html, "target 0: ok 7")
	assert.Contains(t, html, "target 1: ambiguous [4 9]")
	assert.Contains(t, html, "target 2: no_transform -")
	assert.Contains(t, html, survey.StatusNoCandidates)
}

func TestWriteSummaryHTML_Empty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteSummaryHTML(&buf, "empty", nil))
	assert.Contains(t, buf.String(), "Status")
}
