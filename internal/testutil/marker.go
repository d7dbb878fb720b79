package testutil

import (
	"math"

	"github.com/banshee-data/qrdar/internal/pointcloud"
)

const (
	// StickerIntensity is the return intensity of a retro-reflective sticker.
	StickerIntensity = 10.0
	// InkIntensity is the return intensity of a printed (0) cell.
	InkIntensity = -10.0
	// PaperIntensity is the return intensity of a blank (1) cell.
	PaperIntensity = 5.0

	blobSpacing = 0.005
	cellSize    = 0.032
	codeOriginX = -0.01
	codeOriginZ = 0.06
)

// cellOffsets place three samples per axis inside a code cell, clear of the
// cell edges.
var cellOffsets = []float64{0.3, 0.5, 0.7}

// DefaultCorners is the standard sticker layout in the marker frame.
var DefaultCorners = [][3]float64{
	{0, 0, 0},
	{0.182118, 0, 0.0381},
	{0, 0, 0.266446},
	{0.131318, 0, 0.266446},
}

// Pose is a yaw about z followed by a translation, mapping the marker frame
// into the sensor frame.
type Pose struct {
	Yaw         float64 // radians
	Translation [3]float64
}

// DefaultPose is an arbitrary but fixed placement used across tests.
var DefaultPose = Pose{Yaw: 35 * math.Pi / 180, Translation: [3]float64{12.3, -4.1, 1.2}}

// Apply maps a marker-frame position into the sensor frame.
func (p Pose) Apply(x, y, z float64) (float64, float64, float64) {
	s, c := math.Sincos(p.Yaw)
	return c*x - s*y + p.Translation[0],
		s*x + c*y + p.Translation[1],
		z + p.Translation[2]
}

// Matrix returns the pose as a row-major 4x4 homogeneous matrix.
func (p Pose) Matrix() [16]float64 {
	s, c := math.Sincos(p.Yaw)
	return [16]float64{
		c, -s, 0, p.Translation[0],
		s, c, 0, p.Translation[1],
		0, 0, 1, p.Translation[2],
		0, 0, 0, 1,
	}
}

// StickerBlob returns a 3x3x3 lattice of bright points centred on c. The
// blob centroid is exactly c and its extent is 0.01 on every axis.
func StickerBlob(c [3]float64, intensity float64, label int) []pointcloud.Point {
	pts := make([]pointcloud.Point, 0, 27)
	for i := -1; i <= 1; i++ {
		for j := -1; j <= 1; j++ {
			for k := -1; k <= 1; k++ {
				pts = append(pts, pointcloud.Point{
					X:         c[0] + float64(i)*blobSpacing,
					Y:         c[1] + float64(j)*blobSpacing,
					Z:         c[2] + float64(k)*blobSpacing,
					Intensity: intensity,
					Label:     label,
				})
			}
		}
	}
	return pts
}

// CodePoints samples a printed 6x6 code on the y=0 plane of the marker frame.
// code is in reading orientation: row 0 is the top of the marker and column 0
// its left edge. A 1 cell is paper, a 0 cell is ink. One extra ink point near
// the lower left corner pins the code region's origin.
func CodePoints(code [6][6]uint8) []pointcloud.Point {
	pts := []pointcloud.Point{{
		X:         codeOriginX + 0.1*cellSize,
		Z:         codeOriginZ + 0.1*cellSize,
		Intensity: InkIntensity,
		Label:     pointcloud.NoLabel,
	}}
	for a := 0; a < 6; a++ {
		for b := 0; b < 6; b++ {
			intensity := InkIntensity
			if code[5-b][a] == 1 {
				intensity = PaperIntensity
			}
			for _, u := range cellOffsets {
				for _, v := range cellOffsets {
					pts = append(pts, pointcloud.Point{
						X:         codeOriginX + (float64(a)+u)*cellSize,
						Z:         codeOriginZ + (float64(b)+v)*cellSize,
						Intensity: intensity,
						Label:     pointcloud.NoLabel,
					})
				}
			}
		}
	}
	return pts
}

// InnerCode expands 16 inner bits, most significant first, into a code with
// an all-zero border.
func InnerCode(v uint16) [6][6]uint8 {
	var code [6][6]uint8
	bit := 15
	for r := 1; r < 5; r++ {
		for c := 1; c < 5; c++ {
			code[r][c] = uint8(v>>uint(bit)) & 1
			bit--
		}
	}
	return code
}

// SyntheticMarker describes one synthetic target.
type SyntheticMarker struct {
	Corners [][3]float64 // marker-frame sticker positions; DefaultCorners when nil
	Code    [6][6]uint8
	Pose    Pose
	Omit    []int // corner indices left out, as if occluded
	NoCode  bool  // leave the printed code out
	Label   int   // sticker label assigned to corner i is Label+i
}

// Build returns the marker's points in the sensor frame: sticker blobs first,
// in corner order, then the code samples.
func (m SyntheticMarker) Build() []pointcloud.Point {
	corners := m.Corners
	if corners == nil {
		corners = DefaultCorners
	}
	omit := make(map[int]bool, len(m.Omit))
	for _, i := range m.Omit {
		omit[i] = true
	}

	var local []pointcloud.Point
	for i, c := range corners {
		if omit[i] {
			continue
		}
		local = append(local, StickerBlob(c, StickerIntensity, m.Label+i)...)
	}
	if !m.NoCode {
		local = append(local, CodePoints(m.Code)...)
	}

	out := make([]pointcloud.Point, len(local))
	for i, p := range local {
		x, y, z := m.Pose.Apply(p.X, p.Y, p.Z)
		out[i] = pointcloud.Point{X: x, Y: y, Z: z, Intensity: p.Intensity, Label: p.Label}
	}
	return out
}

// CornerPositions returns the sensor-frame corners that Build places blobs
// at, omitted corners included.
func (m SyntheticMarker) CornerPositions() [][3]float64 {
	corners := m.Corners
	if corners == nil {
		corners = DefaultCorners
	}
	out := make([][3]float64, len(corners))
	for i, c := range corners {
		x, y, z := m.Pose.Apply(c[0], c[1], c[2])
		out[i] = [3]float64{x, y, z}
	}
	return out
}
