package marker

import (
	"fmt"
	"math"
	"strings"

	"github.com/banshee-data/qrdar/internal/pointcloud"
)

// GridSize is the side length of a code bitmap, quiet zone included.
const GridSize = 6

// Bitmap is a code in reading orientation: row 0 is the top of the marker
// (highest z) and column 0 its left edge (lowest x).
type Bitmap [GridSize][GridSize]uint8

// String renders the bitmap with '#' for 1 and '.' for 0, one row per line.
func (b Bitmap) String() string {
	var sb strings.Builder
	for r := 0; r < GridSize; r++ {
		for c := 0; c < GridSize; c++ {
			if b[r][c] == 1 {
				sb.WriteByte('#')
			} else {
				sb.WriteByte('.')
			}
		}
		if r < GridSize-1 {
			sb.WriteByte('\n')
		}
	}
	return sb.String()
}

// RasterImage is a binarized code grid indexed [x cell][z cell] as it comes
// out of the rasterizer. The outer ring is always 0.
type RasterImage [GridSize][GridSize]uint8

// Oriented rotates the raster a quarter turn counter-clockwise into reading
// orientation, the convention used by code dictionaries.
func (r RasterImage) Oriented() Bitmap {
	var b Bitmap
	for i := 0; i < GridSize; i++ {
		for j := 0; j < GridSize; j++ {
			b[i][j] = r[j][GridSize-1-i]
		}
	}
	return b
}

// onBorder reports whether the cell is in the quiet-zone ring.
func onBorder(i, j int) bool {
	return i == 0 || j == 0 || i == GridSize-1 || j == GridSize-1
}

// Method selects a binarization strategy.
type Method int

const (
	// MethodMeanIntensity thresholds per-cell mean intensity at a bimodal cutoff.
	MethodMeanIntensity Method = iota
	// MethodDensity thresholds the per-cell share of low-intensity returns.
	MethodDensity
)

// RasterSpec is one rasterization run.
type RasterSpec struct {
	Method    Method
	Threshold float64 // density threshold; unused by MethodMeanIntensity
}

func (s RasterSpec) String() string {
	if s.Method == MethodMeanIntensity {
		return "mean-intensity"
	}
	return fmt.Sprintf("density@%.2f", s.Threshold)
}

// Specs returns the rasterization runs for params: the mean-intensity method
// followed by one density run per threshold.
func (p Params) Specs() []RasterSpec {
	specs := []RasterSpec{{Method: MethodMeanIntensity}}
	for _, th := range p.DensityThresholds {
		specs = append(specs, RasterSpec{Method: MethodDensity, Threshold: th})
	}
	return specs
}

// GridPoint is a code point with its grid cell.
type GridPoint struct {
	pointcloud.Point
	XX, ZZ int
}

type cellStats struct {
	n, low int
	sum    float64
}

// CodeGrid restricts marker-frame points to the code region, re-bases x and
// z to start at 0 and assigns each point to a grid cell. Points falling past
// the grid are dropped.
func CodeGrid(local []pointcloud.Point, params Params) []GridPoint {
	region := pointcloud.Filter(local, params.CodeRegion)
	if len(region) == 0 {
		return nil
	}
	b := pointcloud.BoundsOf(region)

	out := make([]GridPoint, 0, len(region))
	for _, p := range region {
		p.X -= b.MinX
		p.Z -= b.MinZ
		xx := int(math.Floor(p.X / params.CellSize))
		zz := int(math.Floor(p.Z / params.CellSize))
		if xx < 0 || zz < 0 || xx >= GridSize || zz >= GridSize {
			continue
		}
		out = append(out, GridPoint{Point: p, XX: xx, ZZ: zz})
	}
	return out
}

func collect(grid []GridPoint, lowIntensity float64) [GridSize][GridSize]cellStats {
	var cells [GridSize][GridSize]cellStats
	for _, g := range grid {
		c := &cells[g.XX][g.ZZ]
		c.n++
		c.sum += g.Intensity
		if g.Intensity < lowIntensity {
			c.low++
		}
	}
	return cells
}

// assemble builds a raster from a per-cell decision. Empty cells and the
// border ring are 0.
func assemble(cells [GridSize][GridSize]cellStats, value func(cellStats) uint8) RasterImage {
	var img RasterImage
	for i := 0; i < GridSize; i++ {
		for j := 0; j < GridSize; j++ {
			if onBorder(i, j) || cells[i][j].n == 0 {
				continue
			}
			img[i][j] = value(cells[i][j])
		}
	}
	return img
}

// RasterizeMeanIntensity binarizes by per-cell mean intensity against a
// bimodal cutoff fitted to the cell means (one sample per point). The cutoff
// used is returned alongside the raster.
func RasterizeMeanIntensity(grid []GridPoint) (RasterImage, float64) {
	cells := collect(grid, math.Inf(-1))
	samples := make([]float64, len(grid))
	for i, g := range grid {
		c := cells[g.XX][g.ZZ]
		samples[i] = c.sum / float64(c.n)
	}
	cutoff, _ := SelectCutoff(samples)

	img := assemble(cells, func(c cellStats) uint8 {
		if c.sum/float64(c.n) < cutoff {
			return 0
		}
		return 1
	})
	return img, cutoff
}

// RasterizeDensity marks a cell 0 when the share of returns below
// lowIntensity exceeds threshold, else 1.
func RasterizeDensity(grid []GridPoint, threshold, lowIntensity float64) RasterImage {
	cells := collect(grid, lowIntensity)
	return assemble(cells, func(c cellStats) uint8 {
		if float64(c.low)/float64(c.n) > threshold {
			return 0
		}
		return 1
	})
}

// Rasterize runs one rasterization spec.
func Rasterize(grid []GridPoint, spec RasterSpec, params Params) RasterImage {
	if spec.Method == MethodMeanIntensity {
		img, _ := RasterizeMeanIntensity(grid)
		return img
	}
	return RasterizeDensity(grid, spec.Threshold, params.LowIntensity)
}
