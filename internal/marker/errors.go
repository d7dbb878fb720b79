package marker

import "errors"

var (
	// ErrNoCandidates is returned when fewer than three sticker candidates
	// survive at every intensity threshold down to the floor.
	ErrNoCandidates = errors.New("no sticker candidates")

	// ErrNoTransform is returned when candidates were found but no
	// combination and template assignment produced an accepted transform.
	ErrNoTransform = errors.New("no transform matches the template")

	// ErrDegenerateInput is returned when a rigid transform is requested for
	// fewer than three correspondences or for collinear points.
	ErrDegenerateInput = errors.New("degenerate input for rigid transform")

	// ErrAmbiguousCode marks a decode where distinct codes tie at the best
	// confidence. It is carried on MarkerResult rather than returned as a
	// failure.
	ErrAmbiguousCode = errors.New("ambiguous code")
)
