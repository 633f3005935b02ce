package math

import "math"

// Mat4 is a 4x4 matrix indexed as m[row][col]. Vectors are columns, so a
// point is transformed as m.MulVec(p) and transforms compose right to left:
// clip = projection.Mul(view).Mul(model).MulVec(p).
type Mat4 [4][4]float32

func Mat4Identity() Mat4 {
	return Mat4{
		{1, 0, 0, 0},
		{0, 1, 0, 0},
		{0, 0, 1, 0},
		{0, 0, 0, 1},
	}
}

// Mat4FromColumns assembles a matrix from four column vectors.
func Mat4FromColumns(c0, c1, c2, c3 Vec4) Mat4 {
	return Mat4{
		{c0.X, c1.X, c2.X, c3.X},
		{c0.Y, c1.Y, c2.Y, c3.Y},
		{c0.Z, c1.Z, c2.Z, c3.Z},
		{c0.W, c1.W, c2.W, c3.W},
	}
}

func (m Mat4) Mul(other Mat4) Mat4 {
	var result Mat4
	for i := 0; i < 4; i++ {
		for j := 0; j < 4; j++ {
			var sum float32
			for k := 0; k < 4; k++ {
				sum += m[i][k] * other[k][j]
			}
			result[i][j] = sum
		}
	}
	return result
}

func (m Mat4) MulVec(v Vec4) Vec4 {
	return Vec4{
		X: m[0][0]*v.X + m[0][1]*v.Y + m[0][2]*v.Z + m[0][3]*v.W,
		Y: m[1][0]*v.X + m[1][1]*v.Y + m[1][2]*v.Z + m[1][3]*v.W,
		Z: m[2][0]*v.X + m[2][1]*v.Y + m[2][2]*v.Z + m[2][3]*v.W,
		W: m[3][0]*v.X + m[3][1]*v.Y + m[3][2]*v.Z + m[3][3]*v.W,
	}
}

// MulPoint transforms p as a point (w = 1) and divides by the resulting w
// when it is non-zero.
func (m Mat4) MulPoint(p Vec3) Vec3 {
	r := m.MulVec(p.ToVec4(1))
	if r.W != 0 && r.W != 1 {
		return r.PerspectiveDivide()
	}
	return r.XYZ()
}

// MulDir transforms d as a direction (w = 0).
func (m Mat4) MulDir(d Vec3) Vec3 {
	return m.MulVec(d.ToVec4(0)).XYZ()
}

func (m Mat4) Transpose() Mat4 {
	return Mat4{
		{m[0][0], m[1][0], m[2][0], m[3][0]},
		{m[0][1], m[1][1], m[2][1], m[3][1]},
		{m[0][2], m[1][2], m[2][2], m[3][2]},
		{m[0][3], m[1][3], m[2][3], m[3][3]},
	}
}

func Mat4Translation(translation Vec3) Mat4 {
	m := Mat4Identity()
	m[0][3] = translation.X
	m[1][3] = translation.Y
	m[2][3] = translation.Z
	return m
}

func Mat4Scale(scale Vec3) Mat4 {
	m := Mat4Identity()
	m[0][0] = scale.X
	m[1][1] = scale.Y
	m[2][2] = scale.Z
	return m
}

func Mat4RotationX(angle float32) Mat4 {
	c := float32(math.Cos(float64(angle)))
	s := float32(math.Sin(float64(angle)))
	return Mat4{
		{1, 0, 0, 0},
		{0, c, -s, 0},
		{0, s, c, 0},
		{0, 0, 0, 1},
	}
}

func Mat4RotationY(angle float32) Mat4 {
	c := float32(math.Cos(float64(angle)))
	s := float32(math.Sin(float64(angle)))
	return Mat4{
		{c, 0, s, 0},
		{0, 1, 0, 0},
		{-s, 0, c, 0},
		{0, 0, 0, 1},
	}
}

func Mat4RotationZ(angle float32) Mat4 {
	c := float32(math.Cos(float64(angle)))
	s := float32(math.Sin(float64(angle)))
	return Mat4{
		{c, -s, 0, 0},
		{s, c, 0, 0},
		{0, 0, 1, 0},
		{0, 0, 0, 1},
	}
}

// Mat4TRS composes translation * rotation * scale.
func Mat4TRS(translation Vec3, rotation Quaternion, scale Vec3) Mat4 {
	return Mat4Translation(translation).Mul(rotation.ToMat4()).Mul(Mat4Scale(scale))
}

// Mat4Perspective builds an OpenGL-style symmetric frustum projection.
// fovY is the vertical field of view in degrees. Eye-space z = -near maps
// to NDC z = -1, z = -far maps to +1, and clip w = -z_eye.
//
// Requires 0 < near < far and 0 < fovY < 180; other inputs give a
// degenerate matrix.
func Mat4Perspective(fovY, aspect, near, far float32) Mat4 {
	scale := float32(math.Tan(float64(fovY)*0.5*math.Pi/180)) * near
	r := aspect * scale
	l := -r
	t := scale
	b := -t

	var m Mat4
	m[0][0] = 2 * near / (r - l)
	m[0][2] = (r + l) / (r - l)
	m[1][1] = 2 * near / (t - b)
	m[1][2] = (t + b) / (t - b)
	m[2][2] = -(far + near) / (far - near)
	m[2][3] = -2 * far * near / (far - near)
	m[3][2] = -1
	return m
}

// Mat4LookAt returns the world-to-camera (view) matrix for a camera at eye
// looking at center. The camera basis is right-handed with forward pointing
// from center to eye. up must not be parallel to eye-center.
func Mat4LookAt(eye, center, up Vec3) Mat4 {
	forward := eye.Sub(center).Normalize()
	right := up.Normalize().Cross(forward).Normalize()
	camUp := forward.Cross(right)

	camToWorld := Mat4FromColumns(
		right.ToVec4(0),
		camUp.ToVec4(0),
		forward.ToVec4(0),
		eye.ToVec4(1),
	)
	return camToWorld.Inverse()
}

// Determinant returns the determinant of m.
func (m Mat4) Determinant() float32 {
	inv := m.adjugate()
	return m[0][0]*inv[0][0] + m[0][1]*inv[1][0] + m[0][2]*inv[2][0] + m[0][3]*inv[3][0]
}

// Inverse returns the inverse of m. A singular matrix has no inverse and the
// identity is returned instead.
func (m Mat4) Inverse() Mat4 {
	inv := m.adjugate()
	det := m[0][0]*inv[0][0] + m[0][1]*inv[1][0] + m[0][2]*inv[2][0] + m[0][3]*inv[3][0]
	if det == 0 {
		return Mat4Identity()
	}

	invDet := 1 / det
	for i := 0; i < 4; i++ {
		for j := 0; j < 4; j++ {
			inv[i][j] *= invDet
		}
	}
	return inv
}

// NormalMatrix returns the inverse-transpose of m, used to carry normals
// through non-uniform scales.
func (m Mat4) NormalMatrix() Mat4 {
	n := m
	n[0][3], n[1][3], n[2][3] = 0, 0, 0
	n[3] = [4]float32{0, 0, 0, 1}
	return n.Inverse().Transpose()
}

// adjugate returns the transposed cofactor matrix of m.
func (m Mat4) adjugate() Mat4 {
	a := [16]float32{
		m[0][0], m[0][1], m[0][2], m[0][3],
		m[1][0], m[1][1], m[1][2], m[1][3],
		m[2][0], m[2][1], m[2][2], m[2][3],
		m[3][0], m[3][1], m[3][2], m[3][3],
	}
	var inv [16]float32

	inv[0] = a[5]*a[10]*a[15] - a[5]*a[11]*a[14] - a[9]*a[6]*a[15] + a[9]*a[7]*a[14] + a[13]*a[6]*a[11] - a[13]*a[7]*a[10]
	inv[4] = -a[4]*a[10]*a[15] + a[4]*a[11]*a[14] + a[8]*a[6]*a[15] - a[8]*a[7]*a[14] - a[12]*a[6]*a[11] + a[12]*a[7]*a[10]
	inv[8] = a[4]*a[9]*a[15] - a[4]*a[11]*a[13] - a[8]*a[5]*a[15] + a[8]*a[7]*a[13] + a[12]*a[5]*a[11] - a[12]*a[7]*a[9]
	inv[12] = -a[4]*a[9]*a[14] + a[4]*a[10]*a[13] + a[8]*a[5]*a[14] - a[8]*a[6]*a[13] - a[12]*a[5]*a[10] + a[12]*a[6]*a[9]

	inv[1] = -a[1]*a[10]*a[15] + a[1]*a[11]*a[14] + a[9]*a[2]*a[15] - a[9]*a[3]*a[14] - a[13]*a[2]*a[11] + a[13]*a[3]*a[10]
	inv[5] = a[0]*a[10]*a[15] - a[0]*a[11]*a[14] - a[8]*a[2]*a[15] + a[8]*a[3]*a[14] + a[12]*a[2]*a[11] - a[12]*a[3]*a[10]
	inv[9] = -a[0]*a[9]*a[15] + a[0]*a[11]*a[13] + a[8]*a[1]*a[15] - a[8]*a[3]*a[13] - a[12]*a[1]*a[11] + a[12]*a[3]*a[9]
	inv[13] = a[0]*a[9]*a[14] - a[0]*a[10]*a[13] - a[8]*a[1]*a[14] + a[8]*a[2]*a[13] + a[12]*a[1]*a[10] - a[12]*a[2]*a[9]

	inv[2] = a[1]*a[6]*a[15] - a[1]*a[7]*a[14] - a[5]*a[2]*a[15] + a[5]*a[3]*a[14] + a[13]*a[2]*a[7] - a[13]*a[3]*a[6]
	inv[6] = -a[0]*a[6]*a[15] + a[0]*a[7]*a[14] + a[4]*a[2]*a[15] - a[4]*a[3]*a[14] - a[12]*a[2]*a[7] + a[12]*a[3]*a[6]
	inv[10] = a[0]*a[5]*a[15] - a[0]*a[7]*a[13] - a[4]*a[1]*a[15] + a[4]*a[3]*a[13] + a[12]*a[1]*a[7] - a[12]*a[3]*a[5]
	inv[14] = -a[0]*a[5]*a[14] + a[0]*a[6]*a[13] + a[4]*a[1]*a[14] - a[4]*a[2]*a[13] - a[12]*a[1]*a[6] + a[12]*a[2]*a[5]

	inv[3] = -a[1]*a[6]*a[11] + a[1]*a[7]*a[10] + a[5]*a[2]*a[11] - a[5]*a[3]*a[10] - a[9]*a[2]*a[7] + a[9]*a[3]*a[6]
	inv[7] = a[0]*a[6]*a[11] - a[0]*a[7]*a[10] - a[4]*a[2]*a[11] + a[4]*a[3]*a[10] + a[8]*a[2]*a[7] - a[8]*a[3]*a[6]
	inv[11] = -a[0]*a[5]*a[11] + a[0]*a[7]*a[9] + a[4]*a[1]*a[11] - a[4]*a[3]*a[9] - a[8]*a[1]*a[7] + a[8]*a[3]*a[5]
	inv[15] = a[0]*a[5]*a[10] - a[0]*a[6]*a[9] - a[4]*a[1]*a[10] + a[4]*a[2]*a[9] + a[8]*a[1]*a[6] - a[8]*a[2]*a[5]

	return Mat4{
		{inv[0], inv[1], inv[2], inv[3]},
		{inv[4], inv[5], inv[6], inv[7]},
		{inv[8], inv[9], inv[10], inv[11]},
		{inv[12], inv[13], inv[14], inv[15]},
	}
}
