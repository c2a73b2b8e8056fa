package xrmath

import "math"

// Mat4 is a column-major 4x4 matrix, the layout glUniformMatrix4fv expects
// with transpose=false.
type Mat4 [16]float64

func Identity() Mat4 {
	return Mat4{
		1, 0, 0, 0,
		0, 1, 0, 0,
		0, 0, 1, 0,
		0, 0, 0, 1,
	}
}

// At returns the element at row r, column c.
func (m Mat4) At(r, c int) float64 {
	return m[c*4+r]
}

// Float32 narrows the matrix for upload as a uniform.
func (m Mat4) Float32() [16]float32 {
	var out [16]float32
	for i, v := range m {
		out[i] = float32(v)
	}
	return out
}

// Perspective builds a right-handed projection from a horizontal FOV
// (radians), aspect ratio (width/height) and near/far clip planes. Depth maps
// to [-1, 1].
func Perspective(horizontalFOV, aspect, near, far float64) Mat4 {
	// focal length along x from the horizontal FOV; y scales by aspect
	fx := 1.0 / math.Tan(horizontalFOV/2.0)
	fy := fx * aspect

	var m Mat4
	m[0] = fx
	m[5] = fy
	m[10] = -(far + near) / (far - near)
	m[11] = -1
	m[14] = -(2.0 * far * near) / (far - near)
	return m
}
