// Package pointcloud defines the point records read from terrestrial laser
// scanning tiles, bounding boxes over them and the tile storage contracts.
package pointcloud

import (
	"context"
	"math"
)

// NoLabel marks a point that has not been assigned to any cluster.
const NoLabel = -1

// Point is a single scan return. Intensity is the reflectance on the
// scanner's dB-like scale, so it may be negative.
type Point struct {
	X, Y, Z   float64
	Intensity float64
	Label     int
}

// Vec returns the position as an array, convenient for distance maths.
func (p Point) Vec() [3]float64 {
	return [3]float64{p.X, p.Y, p.Z}
}

// Distance returns the Euclidean distance between the positions of p and q.
func (p Point) Distance(q Point) float64 {
	dx, dy, dz := p.X-q.X, p.Y-q.Y, p.Z-q.Z
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}

// Centroid returns the mean position of points. ok is false for an empty set.
func Centroid(points []Point) (c Point, ok bool) {
	if len(points) == 0 {
		return Point{Label: NoLabel}, false
	}
	var sx, sy, sz, si float64
	for _, p := range points {
		sx += p.X
		sy += p.Y
		sz += p.Z
		si += p.Intensity
	}
	n := float64(len(points))
	return Point{X: sx / n, Y: sy / n, Z: sz / n, Intensity: si / n, Label: NoLabel}, true
}

// Bounds is an axis-aligned box. Both ends are inclusive.
type Bounds struct {
	MinX, MinY, MinZ float64
	MaxX, MaxY, MaxZ float64
}

// BoundsOf returns the tight box around points. An empty set yields an
// inverted box that contains nothing.
func BoundsOf(points []Point) Bounds {
	b := Bounds{
		MinX: math.Inf(1), MinY: math.Inf(1), MinZ: math.Inf(1),
		MaxX: math.Inf(-1), MaxY: math.Inf(-1), MaxZ: math.Inf(-1),
	}
	for _, p := range points {
		b.MinX = math.Min(b.MinX, p.X)
		b.MinY = math.Min(b.MinY, p.Y)
		b.MinZ = math.Min(b.MinZ, p.Z)
		b.MaxX = math.Max(b.MaxX, p.X)
		b.MaxY = math.Max(b.MaxY, p.Y)
		b.MaxZ = math.Max(b.MaxZ, p.Z)
	}
	return b
}

// Expand grows the box by margin on every side.
func (b Bounds) Expand(margin float64) Bounds {
	return Bounds{
		MinX: b.MinX - margin, MinY: b.MinY - margin, MinZ: b.MinZ - margin,
		MaxX: b.MaxX + margin, MaxY: b.MaxY + margin, MaxZ: b.MaxZ + margin,
	}
}

// Contains reports whether p lies inside the box.
func (b Bounds) Contains(p Point) bool {
	return p.X >= b.MinX && p.X <= b.MaxX &&
		p.Y >= b.MinY && p.Y <= b.MaxY &&
		p.Z >= b.MinZ && p.Z <= b.MaxZ
}

// Extent returns the per-axis size (max-min).
func (b Bounds) Extent() (dx, dy, dz float64) {
	return b.MaxX - b.MinX, b.MaxY - b.MinY, b.MaxZ - b.MinZ
}

// Filter returns the points inside b, in input order.
func Filter(points []Point, b Bounds) []Point {
	out := make([]Point, 0, len(points))
	for _, p := range points {
		if b.Contains(p) {
			out = append(out, p)
		}
	}
	return out
}

// Tile is one entry of a survey's tile index: a named partition with its
// centre in the horizontal plane.
type Tile struct {
	Name string  `json:"name"`
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
}

// TileIndex lists the tiles of a survey.
type TileIndex []Tile

// Near returns the tiles whose centre lies within tolerance of (x, y) on both
// horizontal axes, in index order.
func (ti TileIndex) Near(x, y, tolerance float64) []Tile {
	var out []Tile
	for _, t := range ti {
		if math.Abs(t.X-x) <= tolerance && math.Abs(t.Y-y) <= tolerance {
			out = append(out, t)
		}
	}
	return out
}

// TileReader reads the points of a named tile that fall inside a box.
type TileReader interface {
	ReadTile(ctx context.Context, name string, bounds Bounds) ([]Point, error)
}

// TileWriter stores the points of a named tile.
type TileWriter interface {
	WriteTile(ctx context.Context, name string, points []Point) error
}

// TileStore is the point-cloud storage collaborator.
type TileStore interface {
	TileReader
	TileWriter
	TileIndex(ctx context.Context) (TileIndex, error)
}
