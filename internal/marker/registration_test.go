package marker

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// candidatesAt places one candidate at each template corner mapped by tf.
func candidatesAt(tf Transform, corners []Vec3) []StickerCandidate {
	out := make([]StickerCandidate, len(corners))
	for i, c := range corners {
		out[i] = StickerCandidate{Label: i, Centroid: tf.Apply(c), Points: 27, Neighbours: 3}
	}
	return out
}

func TestSearchRegistration_RecoversPose(t *testing.T) {
	tmpl := DefaultTemplate()
	tf := rotation(0.61, 0, 0, 12.3, -4.1, 1.2)
	cands := candidatesAt(tf, tmpl[:])

	best, accepted := SearchRegistration(cands, 4, tmpl, DefaultParams())
	require.True(t, accepted)
	require.NotNil(t, best)
	assert.Less(t, best.RMSE, 1e-9)
	assert.Equal(t, []int{0, 1, 2, 3}, best.Combination)
	assert.True(t, best.Transform.IsRigid())

	// The solved transform maps the sensor frame onto the template.
	for i, c := range cands {
		got := best.Transform.Apply(c.Centroid)
		for k := 0; k < 3; k++ {
			assert.InDelta(t, tmpl[i][k], got[k], 1e-9)
		}
	}
	assert.Len(t, best.Corners(), 4)
}

func TestSearchRegistration_ThreeOfFour(t *testing.T) {
	tmpl := DefaultTemplate()
	tf := rotation(-1.2, 0, 0, 3, 4, 0.5)
	cands := candidatesAt(tf, tmpl.Points([]int{0, 1, 2}))

	best, accepted := SearchRegistration(cands, 4, tmpl, DefaultParams())
	assert.False(t, accepted)
	assert.Nil(t, best)

	best, accepted = SearchRegistration(cands, 3, tmpl, DefaultParams())
	require.True(t, accepted)
	assert.Less(t, best.RMSE, 1e-9)
	assert.Len(t, best.Permutation, 3)
	assert.Len(t, best.Corners(), 3)
}

func TestSearchRegistration_EarlyExitIsGreedy(t *testing.T) {
	tmpl := DefaultTemplate()

	// A slightly distorted marker comes first, an exact one second.
	noisy := candidatesAt(rotation(0.3, 0, 0, 0, 0, 0), tmpl[:])
	noisy[0].Centroid[0] += 0.004
	exact := candidatesAt(rotation(0.3, 0, 0, 40, 0, 0), tmpl[:])
	cands := append(noisy, exact...)

	best, accepted := SearchRegistration(cands, 4, tmpl, DefaultParams())
	require.True(t, accepted)
	assert.Equal(t, []int{0, 1, 2, 3}, best.Combination)
	assert.Greater(t, best.RMSE, 1e-4)
	assert.Less(t, best.RMSE, DefaultParams().AcceptRMSE)
}

func TestSearchRegistration_ZExtentGate(t *testing.T) {
	tmpl := DefaultTemplate()
	stretched := make([]Vec3, 4)
	for i, c := range tmpl {
		stretched[i] = Vec3{c[0], c[1], c[2] * 2}
	}
	cands := candidatesAt(Identity, stretched)

	best, accepted := SearchRegistration(cands, 4, tmpl, DefaultParams())
	assert.False(t, accepted)
	assert.Nil(t, best)

	params := DefaultParams()
	params.ZExtentMax = 0.6
	best, accepted = SearchRegistration(cands, 4, tmpl, params)
	assert.False(t, accepted)
	require.NotNil(t, best)
	assert.Greater(t, best.RMSE, params.AcceptRMSE)
}

func TestSortedCentroids(t *testing.T) {
	got := sortedCentroids([]StickerCandidate{
		{Centroid: Vec3{1, 0, 0}},
		{Centroid: Vec3{0, 2, 0}},
		{Centroid: Vec3{0, 1, 5}},
		{Centroid: Vec3{0, 1, 4}},
	})
	assert.Equal(t, []Vec3{{0, 1, 4}, {0, 1, 5}, {0, 2, 0}, {1, 0, 0}}, got)
	assert.Equal(t, 5.0, zExtent(got))
}
