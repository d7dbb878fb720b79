package marker

import (
	"math"
	"sort"
)

// Template is the nominal layout of the four corner stickers in the marker's
// local frame; the marker face lies in the y=0 plane.
type Template [4]Vec3

// DefaultTemplate returns the sticker layout of the standard survey target.
func DefaultTemplate() Template {
	return Template{
		{0, 0, 0},
		{0.182118, 0, 0.0381},
		{0, 0, 0.266446},
		{0.131318, 0, 0.266446},
	}
}

// Points returns the template points selected by idx, in idx order.
func (t Template) Points(idx []int) []Vec3 {
	out := make([]Vec3, len(idx))
	for i, j := range idx {
		out[i] = t[j]
	}
	return out
}

// ExpectedDistances returns the unique pairwise sticker distances rounded to
// two decimals, ascending, always starting with 0. They fingerprint the
// template when screening sticker candidates.
func (t Template) ExpectedDistances() []float64 {
	seen := map[float64]bool{0: true}
	for i := 0; i < len(t); i++ {
		for j := i + 1; j < len(t); j++ {
			d := t[i].Sub(t[j]).Norm()
			seen[math.RoundToEven(d*100)/100] = true
		}
	}
	out := make([]float64, 0, len(seen))
	for d := range seen {
		out = append(out, d)
	}
	sort.Float64s(out)
	return out
}
