// Package cluster provides density-based clustering of scan points.
package cluster

import (
	"math"

	"github.com/banshee-data/qrdar/internal/pointcloud"
)

// Noise is the label given to points that belong to no cluster.
const Noise = -1

const unvisited = -2

// estimatedPointsPerCell is used for initial spatial index capacity estimation.
const estimatedPointsPerCell = 4

type cellKey struct {
	X, Y, Z int64
}

// SpatialIndex provides nearest neighbour queries using a regular 3D grid.
// Cell size should match the DBSCAN eps parameter so that a 3x3x3 block of
// cells covers every neighbour.
type SpatialIndex struct {
	CellSize float64
	Grid     map[cellKey][]int
}

// NewSpatialIndex creates a spatial index with the specified cell size.
func NewSpatialIndex(cellSize float64) *SpatialIndex {
	return &SpatialIndex{
		CellSize: cellSize,
		Grid:     make(map[cellKey][]int),
	}
}

// Build populates the index from a set of points.
func (si *SpatialIndex) Build(points []pointcloud.Point) {
	si.Grid = make(map[cellKey][]int, len(points)/estimatedPointsPerCell+1)
	for i, p := range points {
		k := si.cell(p)
		si.Grid[k] = append(si.Grid[k], i)
	}
}

func (si *SpatialIndex) cell(p pointcloud.Point) cellKey {
	return cellKey{
		X: int64(math.Floor(p.X / si.CellSize)),
		Y: int64(math.Floor(p.Y / si.CellSize)),
		Z: int64(math.Floor(p.Z / si.CellSize)),
	}
}

// RegionQuery returns the indices of all points within eps of points[idx],
// including idx itself, in ascending index order per cell.
func (si *SpatialIndex) RegionQuery(points []pointcloud.Point, idx int, eps float64) []int {
	p := points[idx]
	base := si.cell(p)
	eps2 := eps * eps
	var neighbors []int

	for dx := int64(-1); dx <= 1; dx++ {
		for dy := int64(-1); dy <= 1; dy++ {
			for dz := int64(-1); dz <= 1; dz++ {
				k := cellKey{X: base.X + dx, Y: base.Y + dy, Z: base.Z + dz}
				for _, j := range si.Grid[k] {
					q := points[j]
					ddx, ddy, ddz := q.X-p.X, q.Y-p.Y, q.Z-p.Z
					if ddx*ddx+ddy*ddy+ddz*ddz <= eps2 {
						neighbors = append(neighbors, j)
					}
				}
			}
		}
	}
	return neighbors
}

// Params contains parameters for the DBSCAN algorithm.
type Params struct {
	Eps    float64 // Neighbourhood radius in metres
	MinPts int     // Minimum neighbourhood size (self included) for a core point
}

// DBSCAN labels every point with a cluster id (0, 1, ...) or Noise.
// Cluster ids are assigned in order of the first core point encountered,
// so the labelling is deterministic for a given input order.
func DBSCAN(points []pointcloud.Point, params Params) []int {
	n := len(points)
	labels := make([]int, n)
	for i := range labels {
		labels[i] = unvisited
	}
	if n == 0 || params.Eps <= 0 {
		for i := range labels {
			labels[i] = Noise
		}
		return labels
	}

	si := NewSpatialIndex(params.Eps)
	si.Build(points)

	clusterID := 0
	for i := 0; i < n; i++ {
		if labels[i] != unvisited {
			continue
		}
		neighbors := si.RegionQuery(points, i, params.Eps)
		if len(neighbors) < params.MinPts {
			labels[i] = Noise
			continue
		}
		expandCluster(points, si, labels, i, neighbors, clusterID, params)
		clusterID++
	}
	return labels
}

// expandCluster grows a cluster from a core point with a work queue.
func expandCluster(points []pointcloud.Point, si *SpatialIndex, labels []int,
	seedIdx int, queue []int, clusterID int, params Params) {

	labels[seedIdx] = clusterID
	for j := 0; j < len(queue); j++ {
		idx := queue[j]
		if labels[idx] == Noise {
			labels[idx] = clusterID // noise becomes border point
			continue
		}
		if labels[idx] != unvisited {
			continue
		}
		labels[idx] = clusterID
		more := si.RegionQuery(points, idx, params.Eps)
		if len(more) >= params.MinPts {
			queue = append(queue, more...)
		}
	}
}

// Groups splits points by label, dropping noise. The returned slice is
// indexed by cluster id.
func Groups(points []pointcloud.Point, labels []int) [][]pointcloud.Point {
	maxID := -1
	for _, l := range labels {
		if l > maxID {
			maxID = l
		}
	}
	groups := make([][]pointcloud.Point, maxID+1)
	for i, l := range labels {
		if l == Noise {
			continue
		}
		groups[l] = append(groups[l], points[i])
	}
	return groups
}
