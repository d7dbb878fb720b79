package marker

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func bimodalSample() []float64 {
	var data []float64
	for i := 0; i < 40; i++ {
		data = append(data, -9+float64(i%5)*0.5)
	}
	for i := 0; i < 25; i++ {
		data = append(data, 3+float64(i%5)*0.5)
	}
	return data
}

func TestBimodal(t *testing.T) {
	p := []float64{0, 1, 2, 5, 1, 3}
	assert.InDelta(t, 2+3*math.Exp(-12.5), Bimodal(0, p), 1e-12)
	assert.InDelta(t, 3+2*math.Exp(-12.5), Bimodal(5, p), 1e-12)
}

func TestHistogram(t *testing.T) {
	data := bimodalSample()
	centres, counts, err := Histogram(data)
	require.NoError(t, err)
	require.Len(t, centres, histogramEdges-1)
	require.Len(t, counts, histogramEdges-1)

	var total float64
	for _, c := range counts {
		total += c
	}
	assert.Equal(t, float64(len(data)), total, "every sample lands in a bin, the maximum included")
	assert.InDelta(t, -9+14.0/49/2, centres[0], 1e-12)
}

func TestHistogram_NoSpread(t *testing.T) {
	_, _, err := Histogram([]float64{3, 3, 3})
	assert.ErrorIs(t, err, errNoContrast)
	_, _, err = Histogram(nil)
	assert.ErrorIs(t, err, errNoContrast)
}

func TestSelectCutoff_Bimodal(t *testing.T) {
	cutoff, ok := SelectCutoff(bimodalSample())
	require.True(t, ok)
	assert.Greater(t, cutoff, -7.0)
	assert.Less(t, cutoff, 3.0)
}

func TestSelectCutoff_Deterministic(t *testing.T) {
	a, okA := SelectCutoff(bimodalSample())
	b, okB := SelectCutoff(bimodalSample())
	assert.Equal(t, okA, okB)
	assert.Equal(t, a, b)
}

func TestSelectCutoff_NoContrast(t *testing.T) {
	_, ok := SelectCutoff([]float64{2, 2, 2})
	assert.False(t, ok)
	_, ok = SelectCutoff(nil)
	assert.False(t, ok)
}
