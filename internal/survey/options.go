// Package survey runs the marker engine over a whole survey: it groups
// labelled sticker points into targets, pulls each target's points out of the
// tile store, decodes every target and records the outcome.
package survey

// brightCutoff is the intensity above which labelled sticker points are
// added back to a target's tile points.
const brightCutoff = 0.0

// Options configures target location, tile extraction and the runner.
type Options struct {
	TargetEps        float64 // DBSCAN radius grouping sticker centres into targets
	TargetMinPts     int     // stickers needed to form a target
	TileSearchRadius float64 // horizontal tolerance between a corner and a tile centre
	TileMargin       float64 // margin around the corners' box when reading tiles
	Workers          int     // targets processed concurrently
	AmbiguityLogDir  string  // <dir>/<target>.log per ambiguous target; empty disables
	PCDOutputDir     string  // <dir>/target_<id>.pcd per target; empty disables
}

// DefaultOptions returns the production defaults.
func DefaultOptions() Options {
	return Options{
		TargetEps:        0.4,
		TargetMinPts:     3,
		TileSearchRadius: 5,
		TileMargin:       0.1,
		Workers:          1,
	}
}
