package marker

import "sort"

// AmbiguousCode is the code reported when distinct codes tie.
const AmbiguousCode = -1

const (
	gridCells   = GridSize * GridSize
	innerCells  = (GridSize - 2) * (GridSize - 2)
	borderCells = gridCells - innerCells
)

// Match is the best dictionary entry for one raster.
type Match struct {
	Code       int     // first best-scoring id in dictionary order
	Score      int     // matching cells out of 36
	Confidence float64 // share of inner cells matched
	Tied       []int   // every id reaching Score, in dictionary order
}

// MatchCode scores the raster, in reading orientation, against every entry
// by the number of equal cells.
func MatchCode(img RasterImage, dict *Dictionary) Match {
	oriented := img.Oriented()
	m := Match{Code: AmbiguousCode, Score: -1}
	for _, e := range dict.Entries {
		score := 0
		for r := 0; r < GridSize; r++ {
			for c := 0; c < GridSize; c++ {
				if oriented[r][c] == e.Bits[r][c] {
					score++
				}
			}
		}
		switch {
		case score > m.Score:
			m.Code, m.Score, m.Tied = e.ID, score, []int{e.ID}
		case score == m.Score:
			m.Tied = append(m.Tied, e.ID)
		}
	}
	m.Confidence = confidence(m.Score)
	return m
}

// confidence maps a score to the fraction of inner cells matched, clamped to
// [0, 1]. Border cells always agree, so they are subtracted.
func confidence(score int) float64 {
	c := float64(score-borderCells) / innerCells
	switch {
	case c < 0:
		return 0
	case c > 1:
		return 1
	}
	return c
}

// MethodMatch is the outcome of one rasterization run.
type MethodMatch struct {
	Spec   RasterSpec
	Raster RasterImage
	Match  Match
}

// Decision is the code chosen across all rasterization runs.
type Decision struct {
	Code       int // AmbiguousCode when Candidates holds more than one id
	Confidence float64
	Ambiguous  bool
	Candidates []int // ids tied at Confidence, ascending
	Spec       RasterSpec
}

// Decide picks the highest confidence among the runs. When the runs at that
// confidence point at more than one distinct code the decision is flagged
// ambiguous and no code is chosen.
func Decide(matches []MethodMatch) Decision {
	d := Decision{Code: AmbiguousCode, Confidence: -1}
	for _, mm := range matches {
		if mm.Match.Confidence > d.Confidence {
			d.Confidence = mm.Match.Confidence
			d.Spec = mm.Spec
		}
	}
	if d.Confidence < 0 {
		d.Confidence = 0
		return d
	}

	seen := map[int]bool{}
	for _, mm := range matches {
		if mm.Match.Confidence != d.Confidence {
			continue
		}
		for _, id := range mm.Match.Tied {
			if !seen[id] {
				seen[id] = true
				d.Candidates = append(d.Candidates, id)
			}
		}
	}
	sort.Ints(d.Candidates)

	if len(d.Candidates) == 1 {
		d.Code = d.Candidates[0]
	} else {
		d.Ambiguous = len(d.Candidates) > 1
	}
	return d
}
