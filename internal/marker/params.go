package marker

import (
	"fmt"

	"github.com/banshee-data/qrdar/internal/pointcloud"
)

// Params holds every tunable of the registration and decoding engine.
type Params struct {
	// Sticker extraction
	IntensityStart      float64 // first intensity threshold tried
	IntensityStep       float64 // decrement between thresholds
	MinIntensity        float64 // floor; thresholds must stay strictly above it
	MinStickerPoints    int     // bright points needed before clustering
	StickerEps          float64 // DBSCAN radius for sticker points
	StickerMinPts       int     // DBSCAN core size for sticker points
	MinStickerClusters  int
	MaxStickerExtent    float64 // mean per-axis extent above which a cluster is tape, not a sticker
	DistanceTolerance   float64 // absolute tolerance against the template distances
	MinNeighbourMatches int

	// Registration search
	MaxCandidates int     // candidate sets larger than this are skipped at a threshold
	AcceptRMSE    float64 // early-exit RMSE
	ZExtentMin    float64 // exclusive bounds on the z extent of a sticker combination
	ZExtentMax    float64

	// Rasterization
	CodeRegion        pointcloud.Bounds // code-bearing region in the marker frame
	CellSize          float64
	LowIntensity      float64   // returns below this count as ink for the density method
	DensityThresholds []float64 // one density raster per threshold
}

// DefaultParams returns the production defaults.
func DefaultParams() Params {
	return Params{
		IntensityStart:      5.0,
		IntensityStep:       0.5,
		MinIntensity:        0,
		MinStickerPoints:    10,
		StickerEps:          0.025,
		StickerMinPts:       5,
		MinStickerClusters:  3,
		MaxStickerExtent:    0.05,
		DistanceTolerance:   0.01,
		MinNeighbourMatches: 2,

		MaxCandidates: 12,
		AcceptRMSE:    0.015,
		ZExtentMin:    0.2,
		ZExtentMax:    0.4,

		CodeRegion: pointcloud.Bounds{
			MinX: -0.01, MaxX: 0.18,
			MinY: -0.01, MaxY: 0.01,
			MinZ: 0.06, MaxZ: 0.25,
		},
		CellSize:          0.032,
		LowIntensity:      -7,
		DensityThresholds: []float64{0.4, 0.6},
	}
}

// Validate checks that the parameters describe a terminating search.
func (p Params) Validate() error {
	if p.IntensityStep <= 0 {
		return fmt.Errorf("intensity step must be positive, got %f", p.IntensityStep)
	}
	if p.StickerEps <= 0 {
		return fmt.Errorf("sticker eps must be positive, got %f", p.StickerEps)
	}
	if p.StickerMinPts < 1 {
		return fmt.Errorf("sticker min points must be at least 1, got %d", p.StickerMinPts)
	}
	if p.MinStickerClusters < 3 {
		return fmt.Errorf("at least 3 sticker clusters are needed for registration, got %d", p.MinStickerClusters)
	}
	if p.MaxCandidates < 3 {
		return fmt.Errorf("max candidates must be at least 3, got %d", p.MaxCandidates)
	}
	if p.ZExtentMin >= p.ZExtentMax {
		return fmt.Errorf("z extent bounds are inverted: (%f, %f)", p.ZExtentMin, p.ZExtentMax)
	}
	if p.CellSize <= 0 {
		return fmt.Errorf("cell size must be positive, got %f", p.CellSize)
	}
	for _, th := range p.DensityThresholds {
		if th < 0 || th > 1 {
			return fmt.Errorf("density threshold must be between 0 and 1, got %f", th)
		}
	}
	return nil
}

// thresholds lists the sticker intensity thresholds in search order.
func (p Params) thresholds() []float64 {
	var out []float64
	for k := 0; ; k++ {
		t := p.IntensityStart - float64(k)*p.IntensityStep
		if t <= p.MinIntensity {
			return out
		}
		out = append(out, t)
	}
}
