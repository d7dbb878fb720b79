package marker

import (
	"sort"

	"gonum.org/v1/gonum/stat/combin"
)

// RegistrationResult is one solved correspondence between sticker
// candidates and template points.
type RegistrationResult struct {
	Transform   Transform // sensor frame to marker frame
	RMSE        float64
	Stickers    []StickerCandidate // the combination, in candidate order
	Combination []int              // candidate indices of Stickers
	Permutation []int              // template index for each sticker once sorted by (x, y, z)
	Threshold   float64            // intensity threshold the candidates came from
}

// Corners returns the sticker centroids of the combination rounded to two
// decimals.
func (r *RegistrationResult) Corners() []Vec3 {
	out := make([]Vec3, len(r.Stickers))
	for i, s := range r.Stickers {
		out[i] = s.Centroid.Round(2)
	}
	return out
}

// SearchRegistration tries every combination of n candidates against every
// ordered assignment of n template points. A combination whose z extent is
// outside (ZExtentMin, ZExtentMax) is skipped entirely. After each
// combination the search stops as soon as any recorded RMSE is below
// AcceptRMSE; the lowest RMSE recorded so far is returned with
// accepted=true. Without an accepting record the lowest RMSE seen is
// returned with accepted=false, or nil when nothing could be solved.
func SearchRegistration(cands []StickerCandidate, n int, template Template, params Params) (best *RegistrationResult, accepted bool) {
	if n < 3 || n > len(template) || len(cands) < n {
		return nil, false
	}

	assignments := combin.Permutations(len(template), n)
	gen := combin.NewCombinationGenerator(len(cands), n)
	combo := make([]int, n)

	for gen.Next() {
		gen.Combination(combo)

		stickers := make([]StickerCandidate, n)
		for i, idx := range combo {
			stickers[i] = cands[idx]
		}
		src := sortedCentroids(stickers)
		if ext := zExtent(src); ext <= params.ZExtentMin || ext >= params.ZExtentMax {
			continue
		}

		for _, perm := range assignments {
			dst := template.Points(perm)
			t, err := SolveRigidTransform(src, dst)
			if err != nil {
				continue
			}
			rmse := RMSE(t.ApplyAll(src), dst)
			if best == nil || rmse < best.RMSE {
				best = &RegistrationResult{
					Transform:   t,
					RMSE:        rmse,
					Stickers:    stickers,
					Combination: append([]int(nil), combo...),
					Permutation: append([]int(nil), perm...),
				}
			}
		}

		if best != nil && best.RMSE < params.AcceptRMSE {
			return best, true
		}
	}
	return best, false
}

// sortedCentroids orders sticker centroids by x, then y, then z.
func sortedCentroids(stickers []StickerCandidate) []Vec3 {
	out := make([]Vec3, len(stickers))
	for i, s := range stickers {
		out[i] = s.Centroid
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i][0] != out[j][0] {
			return out[i][0] < out[j][0]
		}
		if out[i][1] != out[j][1] {
			return out[i][1] < out[j][1]
		}
		return out[i][2] < out[j][2]
	})
	return out
}

func zExtent(vs []Vec3) float64 {
	lo, hi := vs[0][2], vs[0][2]
	for _, v := range vs[1:] {
		if v[2] < lo {
			lo = v[2]
		}
		if v[2] > hi {
			hi = v[2]
		}
	}
	return hi - lo
}
