package marker

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustDictionary(t *testing.T, codes map[int]uint16, order ...int) *Dictionary {
	t.Helper()
	entries := make([]CodeEntry, 0, len(order))
	for _, id := range order {
		entries = append(entries, CodeEntry{ID: id, Bits: InnerBitmap(codes[id])})
	}
	d, err := NewDictionary("test", entries)
	require.NoError(t, err)
	return d
}

func TestMatchCode_Exact(t *testing.T) {
	dict := mustDictionary(t, map[int]uint16{3: 0x1234, 8: 0xBEEF, 21: 0x0F0F}, 3, 8, 21)
	m := MatchCode(rasterOf(InnerBitmap(0xBEEF)), dict)
	assert.Equal(t, 8, m.Code)
	assert.Equal(t, 36, m.Score)
	assert.Equal(t, 1.0, m.Confidence)
	assert.Equal(t, []int{8}, m.Tied)
}

func TestMatchCode_PartialMatch(t *testing.T) {
	dict := mustDictionary(t, map[int]uint16{1: 0xFFFF}, 1)
	// Half of the inner cells set.
	m := MatchCode(rasterOf(InnerBitmap(0xFF00)), dict)
	assert.Equal(t, 28, m.Score)
	assert.Equal(t, 0.5, m.Confidence)
}

func TestMatchCode_TieKeepsDictionaryOrder(t *testing.T) {
	base := uint16(0x0F0F)
	dict := mustDictionary(t, map[int]uint16{9: base ^ 0x8000, 4: base ^ 0x0001}, 9, 4)
	m := MatchCode(rasterOf(InnerBitmap(base)), dict)
	assert.Equal(t, 9, m.Code)
	assert.Equal(t, 35, m.Score)
	assert.Equal(t, []int{9, 4}, m.Tied)
}

func TestMatchCode_ConfidenceBounds(t *testing.T) {
	dict := mustDictionary(t, map[int]uint16{1: 0x0000, 2: 0xFFFF, 3: 0xA5A5}, 1, 2, 3)
	for v := 0; v <= 0xFFFF; v += 97 {
		m := MatchCode(rasterOf(InnerBitmap(uint16(v))), dict)
		assert.GreaterOrEqual(t, m.Score, borderCells)
		assert.LessOrEqual(t, m.Score, gridCells)
		assert.GreaterOrEqual(t, m.Confidence, 0.0)
		assert.LessOrEqual(t, m.Confidence, 1.0)
	}
}

func TestConfidence_Clamped(t *testing.T) {
	assert.Equal(t, 0.0, confidence(10))
	assert.Equal(t, 0.0, confidence(20))
	assert.Equal(t, 0.5, confidence(28))
	assert.Equal(t, 1.0, confidence(36))
	assert.Equal(t, 1.0, confidence(40))
}

func methodMatch(spec RasterSpec, conf float64, tied ...int) MethodMatch {
	return MethodMatch{Spec: spec, Match: Match{Code: tied[0], Confidence: conf, Tied: tied}}
}

func TestDecide(t *testing.T) {
	specs := DefaultParams().Specs()

	tests := []struct {
		name    string
		matches []MethodMatch
		want    Decision
	}{
		{
			name: "highest confidence wins",
			matches: []MethodMatch{
				methodMatch(specs[0], 0.75, 5),
				methodMatch(specs[1], 1, 12),
				methodMatch(specs[2], 0.875, 5),
			},
			want: Decision{Code: 12, Confidence: 1, Candidates: []int{12}, Spec: specs[1]},
		},
		{
			name: "agreeing methods are not ambiguous",
			matches: []MethodMatch{
				methodMatch(specs[0], 1, 7),
				methodMatch(specs[1], 1, 7),
				methodMatch(specs[2], 0.5, 3),
			},
			want: Decision{Code: 7, Confidence: 1, Candidates: []int{7}, Spec: specs[0]},
		},
		{
			name: "methods disagree at the top",
			matches: []MethodMatch{
				methodMatch(specs[0], 0.9375, 30),
				methodMatch(specs[1], 0.9375, 2),
				methodMatch(specs[2], 0.5, 9),
			},
			want: Decision{Code: AmbiguousCode, Confidence: 0.9375, Ambiguous: true, Candidates: []int{2, 30}, Spec: specs[0]},
		},
		{
			name: "dictionary tie within one method",
			matches: []MethodMatch{
				methodMatch(specs[0], 0.8125, 9, 4),
				methodMatch(specs[1], 0.75, 9),
			},
			want: Decision{Code: AmbiguousCode, Confidence: 0.8125, Ambiguous: true, Candidates: []int{4, 9}, Spec: specs[0]},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Decide(tt.matches))
		})
	}
}

func TestDecide_NoMatches(t *testing.T) {
	d := Decide(nil)
	assert.Equal(t, AmbiguousCode, d.Code)
	assert.Zero(t, d.Confidence)
	assert.False(t, d.Ambiguous)
	assert.Empty(t, d.Candidates)
}
