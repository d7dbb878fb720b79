package cluster

import "github.com/banshee-data/qrdar/internal/pointcloud"

// Clusterer abstracts the density-based clustering capability so the marker
// engine can be exercised with alternative implementations.
type Clusterer interface {
	// Labels returns one label per point; noise points get Noise.
	Labels(points []pointcloud.Point, params Params) []int
}

// DBSCANClusterer implements Clusterer with the grid-indexed DBSCAN.
type DBSCANClusterer struct{}

// NewDBSCANClusterer creates a DBSCAN clusterer.
func NewDBSCANClusterer() *DBSCANClusterer {
	return &DBSCANClusterer{}
}

// Labels performs DBSCAN clustering.
func (DBSCANClusterer) Labels(points []pointcloud.Point, params Params) []int {
	return DBSCAN(points, params)
}

// Verify at compile time that *DBSCANClusterer implements Clusterer.
var _ Clusterer = (*DBSCANClusterer)(nil)
