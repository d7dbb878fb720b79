// Package marker locates fiducial markers in terrestrial laser scanning point
// clouds and decodes the binary code printed on them.
//
// Registration finds the retro-reflective corner stickers of a target,
// aligns them to the nominal sticker template with a least-squares rigid
// transform, then rasterizes the printed code in the marker frame and scores
// it against a code dictionary.
package marker

import (
	"fmt"
	"math"

	"github.com/banshee-data/qrdar/internal/pointcloud"
	"gonum.org/v1/gonum/mat"
)

// Vec3 is a position in metres.
type Vec3 [3]float64

// Sub returns v-w.
func (v Vec3) Sub(w Vec3) Vec3 {
	return Vec3{v[0] - w[0], v[1] - w[1], v[2] - w[2]}
}

// Norm returns the Euclidean length of v.
func (v Vec3) Norm() float64 {
	return math.Sqrt(v[0]*v[0] + v[1]*v[1] + v[2]*v[2])
}

// Round returns v rounded half-to-even to the given number of decimals.
func (v Vec3) Round(decimals int) Vec3 {
	s := math.Pow(10, float64(decimals))
	return Vec3{
		math.RoundToEven(v[0]*s) / s,
		math.RoundToEven(v[1]*s) / s,
		math.RoundToEven(v[2]*s) / s,
	}
}

func centroid(vs []Vec3) Vec3 {
	var c Vec3
	for _, v := range vs {
		c[0] += v[0]
		c[1] += v[1]
		c[2] += v[2]
	}
	n := float64(len(vs))
	return Vec3{c[0] / n, c[1] / n, c[2] / n}
}

// rankTolerance is the relative singular value below which the
// cross-covariance is treated as rank deficient.
const rankTolerance = 1e-9

// rigidTolerance bounds the determinant and last-row checks in IsRigid.
const rigidTolerance = 1e-6

// Transform is a 4x4 homogeneous transform in row-major order:
// [m00,m01,m02,m03, m10,m11,m12,m13, m20,m21,m22,m23, m30,m31,m32,m33].
type Transform [16]float64

// Identity is the identity transform.
var Identity = Transform{1, 0, 0, 0, 0, 1, 0, 0, 0, 0, 1, 0, 0, 0, 0, 1}

// Apply maps v through the transform with an implicit homogeneous 1.
func (t Transform) Apply(v Vec3) Vec3 {
	return Vec3{
		t[0]*v[0] + t[1]*v[1] + t[2]*v[2] + t[3],
		t[4]*v[0] + t[5]*v[1] + t[6]*v[2] + t[7],
		t[8]*v[0] + t[9]*v[1] + t[10]*v[2] + t[11],
	}
}

// ApplyAll maps every vector through the transform.
func (t Transform) ApplyAll(vs []Vec3) []Vec3 {
	out := make([]Vec3, len(vs))
	for i, v := range vs {
		out[i] = t.Apply(v)
	}
	return out
}

// ApplyTransform returns a transformed copy of points. Intensity and label
// are carried over unchanged; the input slice is not modified.
func ApplyTransform(t Transform, points []pointcloud.Point) []pointcloud.Point {
	out := make([]pointcloud.Point, len(points))
	for i, p := range points {
		v := t.Apply(Vec3{p.X, p.Y, p.Z})
		out[i] = pointcloud.Point{X: v[0], Y: v[1], Z: v[2], Intensity: p.Intensity, Label: p.Label}
	}
	return out
}

// Dense returns the transform as a 4x4 gonum matrix.
func (t Transform) Dense() *mat.Dense {
	data := make([]float64, 16)
	copy(data, t[:])
	return mat.NewDense(4, 4, data)
}

// Inverse returns the inverse transform.
func (t Transform) Inverse() (Transform, error) {
	var inv mat.Dense
	if err := inv.Inverse(t.Dense()); err != nil {
		return Transform{}, fmt.Errorf("transform is not invertible: %w", err)
	}
	var out Transform
	for r := 0; r < 4; r++ {
		for c := 0; c < 4; c++ {
			out[r*4+c] = inv.At(r, c)
		}
	}
	return out, nil
}

// IsRigid reports whether the rotation block is a proper rotation
// (determinant 1) and the last row is [0 0 0 1].
func (t Transform) IsRigid() bool {
	r := mat.NewDense(3, 3, []float64{
		t[0], t[1], t[2],
		t[4], t[5], t[6],
		t[8], t[9], t[10],
	})
	if math.Abs(mat.Det(r)-1) > rigidTolerance {
		return false
	}
	return t[12] == 0 && t[13] == 0 && t[14] == 0 && math.Abs(t[15]-1) <= rigidTolerance
}

// SolveRigidTransform returns the rotation and translation that map a onto b
// in the least-squares sense (Kabsch). a and b are matched by index and need
// at least three non-collinear correspondences. A reflection solution is
// folded back into a proper rotation, which matters for planar inputs such as
// the sticker template.
func SolveRigidTransform(a, b []Vec3) (Transform, error) {
	if len(a) != len(b) {
		return Transform{}, fmt.Errorf("%w: %d source points vs %d target points", ErrDegenerateInput, len(a), len(b))
	}
	if len(a) < 3 {
		return Transform{}, fmt.Errorf("%w: need at least 3 points, got %d", ErrDegenerateInput, len(a))
	}

	ca, cb := centroid(a), centroid(b)
	n := len(a)
	aa := mat.NewDense(n, 3, nil)
	bb := mat.NewDense(n, 3, nil)
	for i := range a {
		for j := 0; j < 3; j++ {
			aa.Set(i, j, a[i][j]-ca[j])
			bb.Set(i, j, b[i][j]-cb[j])
		}
	}

	var h mat.Dense
	h.Mul(aa.T(), bb)

	var svd mat.SVD
	if ok := svd.Factorize(&h, mat.SVDFull); !ok {
		return Transform{}, fmt.Errorf("%w: SVD did not converge", ErrDegenerateInput)
	}
	s := svd.Values(nil)
	if s[0] == 0 || s[1] <= rankTolerance*s[0] {
		return Transform{}, fmt.Errorf("%w: points are collinear", ErrDegenerateInput)
	}

	var u, v mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)

	var r mat.Dense
	r.Mul(&v, u.T())
	if mat.Det(&r) < 0 {
		var vd mat.Dense
		vd.Mul(&v, mat.NewDiagDense(3, []float64{1, 1, -1}))
		r.Mul(&vd, u.T())
	}

	var t Transform
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			t[i*4+j] = r.At(i, j)
		}
		t[i*4+3] = cb[i] - (r.At(i, 0)*ca[0] + r.At(i, 1)*ca[1] + r.At(i, 2)*ca[2])
	}
	t[15] = 1
	return t, nil
}

// RMSE returns the root-mean-square Euclidean distance between matched
// points. Mismatched or empty inputs yield +Inf.
func RMSE(a, b []Vec3) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return math.Inf(1)
	}
	var sum float64
	for i := range a {
		d := a[i].Sub(b[i]).Norm()
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(a)))
}
