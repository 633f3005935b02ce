package scene

import (
	stdmath "math"

	"soft-render/math"
)

// ComputeTangents generates per-vertex tangent and bitangent vectors from the
// UV layout, for tangent-space normal mapping. Triangles with a degenerate UV
// area or out-of-range indices contribute nothing; vertices left without a
// tangent get an arbitrary one perpendicular to the normal.
func ComputeTangents(m *Mesh) {
	for i := range m.Vertices {
		m.Vertices[i].Tangent = math.Vec3{}
		m.Vertices[i].Bitangent = math.Vec3{}
	}

	n := uint32(len(m.Vertices))
	for i := 0; i+2 < len(m.Indices); i += 3 {
		i0, i1, i2 := m.Indices[i], m.Indices[i+1], m.Indices[i+2]
		if i0 >= n || i1 >= n || i2 >= n {
			continue
		}
		accumulateTangent(m, i0, i1, i2)
	}

	for i := range m.Vertices {
		v := &m.Vertices[i]
		v.Tangent, v.Bitangent = orthonormalize(v.Normal, v.Tangent, v.Bitangent)
	}
}

func accumulateTangent(m *Mesh, i0, i1, i2 uint32) {
	v0, v1, v2 := m.Vertices[i0], m.Vertices[i1], m.Vertices[i2]

	e1 := v1.Position.Sub(v0.Position)
	e2 := v2.Position.Sub(v0.Position)
	d1 := v1.UV.Sub(v0.UV)
	d2 := v2.UV.Sub(v0.UV)

	denom := d1.Cross(d2)
	if denom == 0 {
		return
	}
	r := 1 / denom
	t := e1.Mul(d2.Y * r).Sub(e2.Mul(d1.Y * r))
	b := e2.Mul(d1.X * r).Sub(e1.Mul(d2.X * r))

	for _, idx := range [3]uint32{i0, i1, i2} {
		m.Vertices[idx].Tangent = m.Vertices[idx].Tangent.Add(t)
		m.Vertices[idx].Bitangent = m.Vertices[idx].Bitangent.Add(b)
	}
}

// orthonormalize Gram-Schmidts t against n and normalizes both tangent axes.
func orthonormalize(n, t, b math.Vec3) (math.Vec3, math.Vec3) {
	t = t.Sub(n.Mul(n.Dot(t)))
	if t.LengthSqr() < 1e-8 {
		if stdmath.Abs(float64(n.X)) < 0.9 {
			t = math.Vec3{X: 1}.Sub(n.Mul(n.X))
		} else {
			t = math.Vec3{Y: 1}.Sub(n.Mul(n.Y))
		}
	}
	t = t.Normalize()

	if b.LengthSqr() < 1e-8 {
		b = n.Cross(t)
	}
	return t, b.Normalize()
}
