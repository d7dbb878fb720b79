// Package diagnostics renders the engine's intermediate artifacts for manual
// inspection: PNG plots per target and an HTML summary per survey.
package diagnostics

import (
	"fmt"
	"image/color"
	"io"
	"path/filepath"
	"sync"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"

	"github.com/banshee-data/qrdar/internal/fsutil"
	"github.com/banshee-data/qrdar/internal/marker"
	"github.com/banshee-data/qrdar/internal/monitoring"
)

var (
	darkColor   = color.RGBA{R: 60, G: 60, B: 60, A: 255}
	brightColor = color.RGBA{R: 230, G: 120, B: 20, A: 255}
	cornerColor = color.RGBA{R: 200, G: 20, B: 60, A: 255}
)

var _ marker.Observer = (*PlotRenderer)(nil)

// PlotRenderer writes two PNGs per observed target into Dir:
// target_<id>_points.png, the target's points with the sticker candidates,
// and target_<id>_raster.png, one panel per rasterization run.
type PlotRenderer struct {
	FS  fsutil.FileSystem
	Dir string

	mu   sync.Mutex
	errs []error
}

// NewPlotRenderer creates a renderer writing to dir on the OS filesystem.
func NewPlotRenderer(dir string) *PlotRenderer {
	return &PlotRenderer{FS: fsutil.OSFileSystem{}, Dir: dir}
}

// Observe renders the artifacts. Failures are logged and kept for Errs; the
// engine is never interrupted by diagnostics.
func (r *PlotRenderer) Observe(a marker.Artifacts) {
	if err := r.render(a); err != nil {
		monitoring.Logf("target %d: diagnostics: %v", a.TargetID, err)
		r.mu.Lock()
		r.errs = append(r.errs, err)
		r.mu.Unlock()
	}
}

// Errs returns the rendering failures so far.
func (r *PlotRenderer) Errs() []error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]error(nil), r.errs...)
}

func (r *PlotRenderer) render(a marker.Artifacts) error {
	if err := r.FS.MkdirAll(r.Dir, 0755); err != nil {
		return fmt.Errorf("create %s: %w", r.Dir, err)
	}

	p, err := pointsPlot(a)
	if err != nil {
		return err
	}
	if err := r.save(fmt.Sprintf("target_%d_points.png", a.TargetID), func(w io.Writer) error {
		return writePlot(w, [][]*plot.Plot{{p}}, 6*vg.Inch, 6*vg.Inch)
	}); err != nil {
		return err
	}

	if len(a.Matches) == 0 {
		return nil
	}
	row := make([]*plot.Plot, len(a.Matches))
	for i, mm := range a.Matches {
		row[i] = rasterPlot(mm)
	}
	return r.save(fmt.Sprintf("target_%d_raster.png", a.TargetID), func(w io.Writer) error {
		return writePlot(w, [][]*plot.Plot{row}, vg.Length(len(row))*3*vg.Inch, 3*vg.Inch)
	})
}

func (r *PlotRenderer) save(name string, write func(io.Writer) error) error {
	path := filepath.Join(r.Dir, name)
	f, err := r.FS.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := write(f); err != nil {
		f.Close()
		return fmt.Errorf("render %s: %w", path, err)
	}
	return f.Close()
}

// writePlot lays the plots out on a grid and encodes the canvas as PNG.
func writePlot(w io.Writer, plots [][]*plot.Plot, width, height vg.Length) error {
	img := vgimg.New(width, height)
	dc := draw.New(img)
	tiles := draw.Tiles{
		Rows: len(plots),
		Cols: len(plots[0]),
		PadX: vg.Millimeter,
		PadY: vg.Millimeter,
	}
	canvases := plot.Align(plots, tiles, dc)
	for i := range plots {
		for j, p := range plots[i] {
			p.Draw(canvases[i][j])
		}
	}
	png := vgimg.PngCanvas{Canvas: img}
	_, err := png.WriteTo(w)
	return err
}

// pointsPlot shows the points on the marker face (x against z) once
// registered, or in the sensor frame otherwise. Points above the accepted
// threshold are highlighted.
func pointsPlot(a marker.Artifacts) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = fmt.Sprintf("Target %d", a.TargetID)
	p.X.Label.Text = "x (m)"
	p.Y.Label.Text = "z (m)"

	points := a.Points
	var corners []marker.Vec3
	threshold := marker.DefaultParams().IntensityStart
	if reg := a.Registration; reg != nil {
		points = marker.ApplyTransform(reg.Transform, points)
		for _, s := range reg.Stickers {
			corners = append(corners, reg.Transform.Apply(s.Centroid))
		}
		threshold = reg.Threshold
		p.Title.Text += fmt.Sprintf(" (RMSE %.4f)", reg.RMSE)
	} else {
		for _, c := range a.Candidates {
			corners = append(corners, c.Centroid)
		}
	}

	var dark, bright plotter.XYs
	for _, pt := range points {
		xy := plotter.XY{X: pt.X, Y: pt.Z}
		if pt.Intensity > threshold {
			bright = append(bright, xy)
		} else {
			dark = append(dark, xy)
		}
	}
	cornerXYs := make(plotter.XYs, len(corners))
	for i, c := range corners {
		cornerXYs[i] = plotter.XY{X: c[0], Y: c[2]}
	}

	for _, layer := range []struct {
		name  string
		xys   plotter.XYs
		color color.Color
		size  vg.Length
		shape draw.GlyphDrawer
	}{
		{"returns", dark, darkColor, vg.Points(1), draw.CircleGlyph{}},
		{"bright", bright, brightColor, vg.Points(2), draw.CircleGlyph{}},
		{"stickers", cornerXYs, cornerColor, vg.Points(6), draw.CrossGlyph{}},
	} {
		if len(layer.xys) == 0 {
			continue
		}
		s, err := plotter.NewScatter(layer.xys)
		if err != nil {
			return nil, fmt.Errorf("%s scatter: %w", layer.name, err)
		}
		s.GlyphStyle.Color = layer.color
		s.GlyphStyle.Radius = layer.size
		s.GlyphStyle.Shape = layer.shape
		p.Add(s)
		p.Legend.Add(layer.name, s)
	}
	p.Legend.Top = true
	return p, nil
}

// bitmapGrid adapts a bitmap in reading orientation to plotter.GridXYZ, row
// 0 at the top.
type bitmapGrid marker.Bitmap

func (g bitmapGrid) Dims() (c, r int)   { return marker.GridSize, marker.GridSize }
func (g bitmapGrid) Z(c, r int) float64 { return float64(g[marker.GridSize-1-r][c]) }
func (g bitmapGrid) X(c int) float64    { return float64(c) }
func (g bitmapGrid) Y(r int) float64    { return float64(r) }

func rasterPlot(mm marker.MethodMatch) *plot.Plot {
	p := plot.New()
	p.Title.Text = fmt.Sprintf("%s: %d (%.2f)", mm.Spec, mm.Match.Code, mm.Match.Confidence)
	p.HideAxes()

	hm := plotter.NewHeatMap(bitmapGrid(mm.Raster.Oriented()), palette.Heat(2, 1))
	hm.Min, hm.Max = 0, 1
	p.Add(hm)
	return p
}
