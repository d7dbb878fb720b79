package marker

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/optimize"
	"gonum.org/v1/gonum/stat"
)

const (
	// histogramEdges is the number of bin edges spanning the data range.
	histogramEdges = 50
	// maxFitEvaluations bounds the curve fit.
	maxFitEvaluations = 10000
)

// cutoffPercentiles seed the two Gaussian means, tried in order.
var cutoffPercentiles = []float64{5, 10, 15, 20, 25, 30, 35, 40, 45}

var errNoContrast = errors.New("intensity data has no spread")

func gauss(x, mu, sigma, a float64) float64 {
	return a * math.Exp(-(x-mu)*(x-mu)/2/(sigma*sigma))
}

// Bimodal is the sum of two Gaussians with parameters
// [mu1, sigma1, a1, mu2, sigma2, a2].
func Bimodal(x float64, params []float64) float64 {
	return gauss(x, params[0], params[1], params[2]) + gauss(x, params[3], params[4], params[5])
}

// Histogram bins data between floor(min) and ceil(max) over histogramEdges
// edges and returns bin centres and counts. The last bin includes its upper
// edge.
func Histogram(data []float64) (centres, counts []float64, err error) {
	if len(data) == 0 {
		return nil, nil, errNoContrast
	}
	lo, hi := math.Floor(floats.Min(data)), math.Ceil(floats.Max(data))
	if lo == hi {
		return nil, nil, errNoContrast
	}

	edges := floats.Span(make([]float64, histogramEdges), lo, hi)
	dividers := append([]float64(nil), edges...)
	dividers[len(dividers)-1] = math.Nextafter(hi, math.Inf(1))

	sorted := append([]float64(nil), data...)
	sort.Float64s(sorted)
	counts = stat.Histogram(nil, dividers, sorted, nil)

	centres = make([]float64, len(edges)-1)
	for i := range centres {
		centres[i] = (edges[i] + edges[i+1]) / 2
	}
	return centres, counts, nil
}

// BimodalCutoff fits two Gaussians to the histogram of data and returns the
// midpoint of their means. The means are seeded at the p-th and (100-p)-th
// percentiles of the histogram range.
func BimodalCutoff(data []float64, p float64) (float64, error) {
	x, y, err := Histogram(data)
	if err != nil {
		return 0, err
	}
	lo, hi := math.Floor(floats.Min(data)), math.Ceil(floats.Max(data))
	half := float64(len(data)) / 2
	init := []float64{
		lo + (hi-lo)*p/100, 1, half,
		lo + (hi-lo)*(100-p)/100, 1, half,
	}

	problem := optimize.Problem{
		Func: func(params []float64) float64 {
			if params[1] == 0 || params[4] == 0 {
				return math.Inf(1)
			}
			var ss float64
			for i, xi := range x {
				r := y[i] - Bimodal(xi, params)
				ss += r * r
			}
			return ss
		},
	}
	settings := &optimize.Settings{
		FuncEvaluations: maxFitEvaluations,
		Converger: &optimize.FunctionConverge{
			Absolute:   1e-10,
			Relative:   1e-10,
			Iterations: 200,
		},
	}

	result, err := optimize.Minimize(problem, init, settings, &optimize.NelderMead{})
	if err != nil {
		return 0, fmt.Errorf("bimodal fit failed: %w", err)
	}
	c := (result.X[0] + result.X[3]) / 2
	if math.IsNaN(c) || math.IsInf(c, 0) {
		return 0, fmt.Errorf("bimodal fit diverged")
	}
	return c, nil
}

// SelectCutoff tries the seed percentiles in order and returns the first
// cutoff strictly between the data's min and max. When none qualifies the
// last successful fit is returned with ok=false (0 when every fit failed).
func SelectCutoff(data []float64) (cutoff float64, ok bool) {
	if len(data) == 0 {
		return 0, false
	}
	lo, hi := floats.Min(data), floats.Max(data)
	for _, p := range cutoffPercentiles {
		c, err := BimodalCutoff(data, p)
		if err != nil {
			continue
		}
		cutoff = c
		if lo < c && c < hi {
			return c, true
		}
	}
	return cutoff, false
}
