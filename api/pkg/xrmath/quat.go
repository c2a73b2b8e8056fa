package xrmath

import "math"

// slerpLinearThreshold is the angle below which Slerp falls back to a
// normalized lerp; sin(theta) is too close to zero to divide by.
const slerpLinearThreshold = 1e-6

type Vec3 [3]float64

func (v Vec3) Add(o Vec3) Vec3 {
	return Vec3{v[0] + o[0], v[1] + o[1], v[2] + o[2]}
}

func (v Vec3) Scale(s float64) Vec3 {
	return Vec3{v[0] * s, v[1] * s, v[2] * s}
}

func (v Vec3) Cross(o Vec3) Vec3 {
	return Vec3{
		v[1]*o[2] - v[2]*o[1],
		v[2]*o[0] - v[0]*o[2],
		v[0]*o[1] - v[1]*o[0],
	}
}

// Quat is a rotation quaternion stored as [x, y, z, w], the order the IMU
// driver writes to shared memory.
type Quat [4]float64

// IdentityQuat is the no-rotation quaternion.
var IdentityQuat = Quat{0, 0, 0, 1}

func (q Quat) X() float64 { return q[0] }
func (q Quat) Y() float64 { return q[1] }
func (q Quat) Z() float64 { return q[2] }
func (q Quat) W() float64 { return q[3] }

func (q Quat) vec() Vec3 {
	return Vec3{q[0], q[1], q[2]}
}

// Mul returns the Hamilton product q*o.
func (q Quat) Mul(o Quat) Quat {
	return Quat{
		q[3]*o[0] + q[0]*o[3] + q[1]*o[2] - q[2]*o[1],
		q[3]*o[1] - q[0]*o[2] + q[1]*o[3] + q[2]*o[0],
		q[3]*o[2] + q[0]*o[1] - q[1]*o[0] + q[2]*o[3],
		q[3]*o[3] - q[0]*o[0] - q[1]*o[1] - q[2]*o[2],
	}
}

func (q Quat) Conjugate() Quat {
	return Quat{-q[0], -q[1], -q[2], q[3]}
}

func (q Quat) Neg() Quat {
	return Quat{-q[0], -q[1], -q[2], -q[3]}
}

func (q Quat) Dot(o Quat) float64 {
	return q[0]*o[0] + q[1]*o[1] + q[2]*o[2] + q[3]*o[3]
}

func (q Quat) Norm() float64 {
	return math.Sqrt(q.Dot(q))
}

// Normalize returns q scaled to unit length. A zero quaternion normalizes to
// the identity rotation.
func (q Quat) Normalize() Quat {
	n := q.Norm()
	if n == 0 {
		return IdentityQuat
	}
	return Quat{q[0] / n, q[1] / n, q[2] / n, q[3] / n}
}

// Rotate applies q to v using the double cross product expansion
// t = 2(q.xyz x v), v' = v + w*t + q.xyz x t.
func (q Quat) Rotate(v Vec3) Vec3 {
	u := q.vec()
	t := u.Cross(v).Scale(2)
	return v.Add(t.Scale(q[3])).Add(u.Cross(t))
}

// Slerp interpolates between q1 and q2 along the shortest arc. t is clamped
// to [0, 1] and the result is always unit length.
func Slerp(q1, q2 Quat, t float64) Quat {
	t = math.Max(0, math.Min(1, t))

	dot := q1.Dot(q2)
	if dot < 0 {
		q2 = q2.Neg()
		dot = -dot
	}
	dot = math.Max(-1, math.Min(1, dot))

	theta := math.Acos(dot)
	sinTheta := math.Sin(theta)

	var w1, w2 float64
	if math.Abs(sinTheta) < slerpLinearThreshold {
		w1 = 1 - t
		w2 = t
	} else {
		w1 = math.Sin((1-t)*theta) / sinTheta
		w2 = math.Sin(t*theta) / sinTheta
	}

	return Quat{
		w1*q1[0] + w2*q2[0],
		w1*q1[1] + w2*q2[1],
		w1*q1[2] + w2*q2[2],
		w1*q1[3] + w2*q2[3],
	}.Normalize()
}
