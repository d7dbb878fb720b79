package marker

import (
	"math"

	"github.com/banshee-data/qrdar/internal/cluster"
	"github.com/banshee-data/qrdar/internal/pointcloud"
)

// closeRelTolerance mirrors the relative term of a numpy-style isclose.
const closeRelTolerance = 1e-5

// StickerCandidate is a compact bright cluster that may be a corner sticker.
type StickerCandidate struct {
	Label      int  // cluster label at the threshold it was found
	Centroid   Vec3 // mean position in the sensor frame
	Extent     Vec3 // per-axis max-min
	Points     int
	Neighbours int // other candidates at a template distance
}

// MeanExtent averages the per-axis extent.
func (c StickerCandidate) MeanExtent() float64 {
	return (c.Extent[0] + c.Extent[1] + c.Extent[2]) / 3
}

// Extraction summarises one pass of candidate extraction at a threshold.
type Extraction struct {
	Threshold    float64
	BrightPoints int
	Clusters     int // clusters found before the extent filter
	Compact      int // clusters passing the extent filter
	Candidates   []StickerCandidate
}

// ExtractCandidates keeps the points brighter than threshold, clusters them
// and returns the compact clusters that sit at template distances from at
// least MinNeighbourMatches other compact clusters. Candidates are ordered by
// cluster label.
func ExtractCandidates(points []pointcloud.Point, threshold float64, expected []float64,
	params Params, clusterer cluster.Clusterer) Extraction {

	ex := Extraction{Threshold: threshold}

	bright := make([]pointcloud.Point, 0, len(points))
	for _, p := range points {
		if p.Intensity > threshold {
			bright = append(bright, p)
		}
	}
	ex.BrightPoints = len(bright)
	if len(bright) < params.MinStickerPoints {
		return ex
	}

	labels := clusterer.Labels(bright, cluster.Params{Eps: params.StickerEps, MinPts: params.StickerMinPts})
	groups := cluster.Groups(bright, labels)

	compact := make([]StickerCandidate, 0, len(groups))
	for label, g := range groups {
		if len(g) == 0 {
			continue
		}
		ex.Clusters++
		c := summarise(label, g)
		if c.MeanExtent() < params.MaxStickerExtent {
			compact = append(compact, c)
		}
	}
	if ex.Clusters < params.MinStickerClusters {
		return ex
	}
	ex.Compact = len(compact)

	countNeighbours(compact, expected, params.DistanceTolerance)
	for _, c := range compact {
		if c.Neighbours >= params.MinNeighbourMatches {
			ex.Candidates = append(ex.Candidates, c)
		}
	}
	return ex
}

func summarise(label int, pts []pointcloud.Point) StickerCandidate {
	b := pointcloud.BoundsOf(pts)
	c, _ := pointcloud.Centroid(pts)
	dx, dy, dz := b.Extent()
	return StickerCandidate{
		Label:    label,
		Centroid: Vec3{c.X, c.Y, c.Z},
		Extent:   Vec3{dx, dy, dz},
		Points:   len(pts),
	}
}

// countNeighbours fills Neighbours from the full pairwise distance matrix.
// Zero distances are self pairs and never count.
func countNeighbours(cands []StickerCandidate, expected []float64, tol float64) {
	for i := range cands {
		n := 0
		for j := range cands {
			d := cands[i].Centroid.Sub(cands[j].Centroid).Norm()
			if d == 0 {
				continue
			}
			if matchesAny(d, expected, tol) {
				n++
			}
		}
		cands[i].Neighbours = n
	}
}

func matchesAny(d float64, expected []float64, tol float64) bool {
	for _, e := range expected {
		if math.Abs(d-e) <= tol+closeRelTolerance*math.Abs(e) {
			return true
		}
	}
	return false
}
