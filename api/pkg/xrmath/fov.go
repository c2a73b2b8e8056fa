// Package xrmath holds the numeric routines shared by the renderer: FOV
// conversions, display geometry, quaternions, projection and the timing
// curves that have to match the IMU driver.
package xrmath

import "math"

// CrossFOVs is a diagonal field of view split into its horizontal and
// vertical components. All values are radians.
type CrossFOVs struct {
	Horizontal float64
	Vertical   float64
	Diagonal   float64
}

func DegreeToRadian(deg float64) float64 {
	return deg * math.Pi / 180.0
}

func RadianToDegree(rad float64) float64 {
	return rad * 180.0 / math.Pi
}

// fovToFlatLength maps a spherical FOV to the width it covers on a plane one
// unit away.
func fovToFlatLength(fov float64) float64 {
	return 2.0 * math.Tan(fov/2.0)
}

func flatLengthToFOV(length float64) float64 {
	return 2.0 * math.Atan(length/2.0)
}

// DiagonalToCrossFOVs converts a spherical diagonal FOV into horizontal and
// vertical FOVs for a display with the given aspect ratio (width/height).
// Spherical angles don't add up like the sides of a triangle, so the split
// happens on the flat projection and is mapped back afterwards.
func DiagonalToCrossFOVs(diagonalFOV, aspectRatio float64) CrossFOVs {
	flatDiagonal := fovToFlatLength(diagonalFOV)
	flatHeight := flatDiagonal / math.Sqrt(1.0+aspectRatio*aspectRatio)
	flatWidth := flatHeight * aspectRatio

	return CrossFOVs{
		Horizontal: flatLengthToFOV(flatWidth),
		Vertical:   flatLengthToFOV(flatHeight),
		Diagonal:   diagonalFOV,
	}
}

// CrossToDiagonalFOV recomposes horizontal and vertical FOVs into the
// diagonal FOV. It is the inverse of DiagonalToCrossFOVs.
func CrossToDiagonalFOV(horizontal, vertical float64) float64 {
	w := fovToFlatLength(horizontal)
	h := fovToFlatLength(vertical)
	return flatLengthToFOV(math.Hypot(w, h))
}

// HalfWidths returns the flat half-extents (tan of the half angles) the warp
// shader uses for its FOV math.
func (c CrossFOVs) HalfWidths() (horizontal, vertical float64) {
	return math.Tan(c.Horizontal / 2.0), math.Tan(c.Vertical / 2.0)
}
