package marker

import (
	"fmt"

	"github.com/banshee-data/qrdar/internal/cluster"
	"github.com/banshee-data/qrdar/internal/monitoring"
	"github.com/banshee-data/qrdar/internal/pointcloud"
)

// correspondenceCounts are tried in order: all four stickers, then three to
// tolerate one occluded sticker.
var correspondenceCounts = []int{4, 3}

// Target is one marker's point cloud as grouped by upstream clustering.
type Target struct {
	ID       int
	Centroid Vec3 // coarse centre, copied to the result
	Points   []pointcloud.Point
}

// MarkerResult is the registered and decoded marker.
type MarkerResult struct {
	TargetID   int     `json:"target_id"`
	Centroid   Vec3    `json:"centroid"`
	RMSE       float64 `json:"rmse"`
	Code       int     `json:"code"`
	Confidence float64 `json:"confidence"`
	Ambiguous  bool    `json:"ambiguous"`
	Candidates []int   `json:"candidates,omitempty"`
	Corners    []Vec3  `json:"corners"` // three or four, rounded to 2 decimals
	Method     string  `json:"method"`  // rasterization run that set the confidence
}

// Corner returns corner i when it was registered.
func (r *MarkerResult) Corner(i int) (Vec3, bool) {
	if i < 0 || i >= len(r.Corners) {
		return Vec3{}, false
	}
	return r.Corners[i], true
}

// Err returns ErrAmbiguousCode, with the tied ids, for an ambiguous result.
func (r *MarkerResult) Err() error {
	if !r.Ambiguous {
		return nil
	}
	return fmt.Errorf("target %d: %w: candidates %v", r.TargetID, ErrAmbiguousCode, r.Candidates)
}

// Artifacts are the intermediate products of one target, handed to an
// Observer for diagnostic rendering.
type Artifacts struct {
	TargetID     int
	Template     Template
	Points       []pointcloud.Point // the target's input points
	Candidates   []StickerCandidate // candidates at the accepted threshold
	Registration *RegistrationResult
	CodePoints   []GridPoint
	Matches      []MethodMatch
	Result       *MarkerResult
	Err          error
}

// Observer receives the artifacts of every processed target.
type Observer interface {
	Observe(a Artifacts)
}

// Engine registers and decodes markers. It holds no per-target state and
// is safe for concurrent use when its clusterer and observer are.
type Engine struct {
	params    Params
	template  Template
	expected  []float64
	dict      *Dictionary
	clusterer cluster.Clusterer
	observer  Observer
}

// Option configures an Engine.
type Option func(*Engine)

// WithParams replaces the default parameters.
func WithParams(p Params) Option {
	return func(e *Engine) { e.params = p }
}

// WithClusterer replaces the DBSCAN clusterer.
func WithClusterer(c cluster.Clusterer) Option {
	return func(e *Engine) { e.clusterer = c }
}

// WithObserver installs a diagnostics observer.
func WithObserver(o Observer) Option {
	return func(e *Engine) { e.observer = o }
}

// NewEngine creates an engine for a template and dictionary.
func NewEngine(template Template, dict *Dictionary, opts ...Option) (*Engine, error) {
	if dict == nil || len(dict.Entries) == 0 {
		return nil, fmt.Errorf("engine needs a non-empty code dictionary")
	}
	e := &Engine{
		params:    DefaultParams(),
		template:  template,
		dict:      dict,
		clusterer: cluster.NewDBSCANClusterer(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if err := e.params.Validate(); err != nil {
		return nil, fmt.Errorf("invalid engine parameters: %w", err)
	}
	e.expected = template.ExpectedDistances()
	return e, nil
}

// Params returns the engine parameters.
func (e *Engine) Params() Params {
	return e.params
}

// RegisterAndDecode is the one-shot form of Engine.RegisterAndDecode with
// default parameters and the given intensity floor.
func RegisterAndDecode(target Target, template Template, dict *Dictionary, minIntensity float64) (*MarkerResult, error) {
	p := DefaultParams()
	p.MinIntensity = minIntensity
	e, err := NewEngine(template, dict, WithParams(p))
	if err != nil {
		return nil, err
	}
	return e.RegisterAndDecode(target)
}

// Register runs the threshold sweep for four and then three
// correspondences and returns the first accepted registration together with
// the candidates it was chosen from.
func (e *Engine) Register(points []pointcloud.Point, logf func(string, ...interface{})) (*RegistrationResult, []StickerCandidate, error) {
	thresholds := e.params.thresholds()
	sawCandidates := false

	for _, n := range correspondenceCounts {
		for _, th := range thresholds {
			ex := ExtractCandidates(points, th, e.expected, e.params, e.clusterer)
			if len(ex.Candidates) < e.params.MinStickerClusters {
				continue
			}
			sawCandidates = true
			if len(ex.Candidates) > e.params.MaxCandidates {
				logf("threshold %.1f: %d candidates exceeds cap of %d, skipping", th, len(ex.Candidates), e.params.MaxCandidates)
				continue
			}

			best, accepted := SearchRegistration(ex.Candidates, n, e.template, e.params)
			if accepted {
				best.Threshold = th
				logf("accepted %d stickers at threshold %.1f from %d candidates", n, th, len(ex.Candidates))
				return best, ex.Candidates, nil
			}
		}
	}

	if !sawCandidates {
		return nil, nil, ErrNoCandidates
	}
	return nil, nil, ErrNoTransform
}

// Decode rasterizes marker-frame points with every configured run and
// decides on a code.
func (e *Engine) Decode(local []pointcloud.Point) (Decision, []MethodMatch, []GridPoint) {
	grid := CodeGrid(local, e.params)
	specs := e.params.Specs()
	matches := make([]MethodMatch, 0, len(specs))
	for _, spec := range specs {
		img := Rasterize(grid, spec, e.params)
		matches = append(matches, MethodMatch{Spec: spec, Raster: img, Match: MatchCode(img, e.dict)})
	}
	return Decide(matches), matches, grid
}

// RegisterAndDecode locates the stickers of one target, aligns the target to
// the marker frame and decodes its code. Registration failures return
// ErrNoCandidates or ErrNoTransform and no result. An ambiguous decode still
// returns a result, with Ambiguous set and the tied ids in Candidates.
func (e *Engine) RegisterAndDecode(target Target) (*MarkerResult, error) {
	logf := monitoring.TargetLogger(target.ID)
	art := Artifacts{TargetID: target.ID, Template: e.template, Points: target.Points}
	if e.observer != nil {
		defer func() { e.observer.Observe(art) }()
	}

	logf("locating stickers in %d points", len(target.Points))
	reg, cands, err := e.Register(target.Points, logf)
	if err != nil {
		logf("could not find 3 bright targets that match the template: %v", err)
		art.Err = err
		return nil, err
	}
	art.Candidates = cands
	art.Registration = reg
	logf("RMSE: %.4f", reg.RMSE)

	local := ApplyTransform(reg.Transform, target.Points)
	decision, matches, grid := e.Decode(local)
	art.CodePoints = grid
	art.Matches = matches

	res := &MarkerResult{
		TargetID:   target.ID,
		Centroid:   target.Centroid,
		RMSE:       reg.RMSE,
		Code:       decision.Code,
		Confidence: decision.Confidence,
		Ambiguous:  decision.Ambiguous,
		Candidates: decision.Candidates,
		Corners:    reg.Corners(),
		Method:     decision.Spec.String(),
	}
	art.Result = res

	if res.Ambiguous {
		logf("more than one code identified with same confidence: %v", res.Candidates)
	} else {
		logf("tag identified (ci): %d (%.3f)", res.Code, res.Confidence)
	}
	return res, nil
}
