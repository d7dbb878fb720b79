// Package testutil provides shared test utilities and fixtures.
//
// The synthetic marker builders produce deterministic point clouds: corner
// sticker blobs on a regular lattice and a printed code sampled at fixed
// offsets inside each cell. Nothing here uses randomness.
package testutil

import (
	"math"
	"testing"

	"github.com/banshee-data/qrdar/internal/pointcloud"
)

// AssertPointsClose fails the test when the two point sets differ in length
// or any coordinate differs by more than tol.
func AssertPointsClose(t *testing.T, got, want []pointcloud.Point, tol float64) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("point count = %d, want %d", len(got), len(want))
	}
	for i := range got {
		if math.Abs(got[i].X-want[i].X) > tol ||
			math.Abs(got[i].Y-want[i].Y) > tol ||
			math.Abs(got[i].Z-want[i].Z) > tol {
			t.Fatalf("point %d = (%g, %g, %g), want (%g, %g, %g)", i,
				got[i].X, got[i].Y, got[i].Z, want[i].X, want[i].Y, want[i].Z)
		}
	}
}
