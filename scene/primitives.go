package scene

import (
	stdmath "math"

	"soft-render/core"
	"soft-render/math"
)

// CreateTriangle returns a single RGB triangle in the z=0 plane, wound
// counter-clockwise when seen from +Z.
func CreateTriangle() *Mesh {
	vertices := []core.Vertex{
		{Position: math.Vec3{X: -0.5, Y: -0.5}, Normal: math.Vec3Front, UV: math.Vec2{X: 0, Y: 1}, Color: core.ColorRed},
		{Position: math.Vec3{X: 0.5, Y: -0.5}, Normal: math.Vec3Front, UV: math.Vec2{X: 1, Y: 1}, Color: core.ColorGreen},
		{Position: math.Vec3{X: 0, Y: 0.5}, Normal: math.Vec3Front, UV: math.Vec2{X: 0.5, Y: 0}, Color: core.ColorBlue},
	}
	m := CreateMeshFromData("Triangle", vertices, []uint32{0, 1, 2})
	ComputeTangents(m)
	return m
}

// CreateQuad returns a unit quad in the z=0 plane. UV (0,0) is the top-left
// corner so textures appear upright.
func CreateQuad() *Mesh {
	vertices := []core.Vertex{
		{Position: math.Vec3{X: -0.5, Y: -0.5}, Normal: math.Vec3Front, UV: math.Vec2{X: 0, Y: 1}, Color: core.ColorWhite},
		{Position: math.Vec3{X: 0.5, Y: -0.5}, Normal: math.Vec3Front, UV: math.Vec2{X: 1, Y: 1}, Color: core.ColorWhite},
		{Position: math.Vec3{X: 0.5, Y: 0.5}, Normal: math.Vec3Front, UV: math.Vec2{X: 1, Y: 0}, Color: core.ColorWhite},
		{Position: math.Vec3{X: -0.5, Y: 0.5}, Normal: math.Vec3Front, UV: math.Vec2{X: 0, Y: 0}, Color: core.ColorWhite},
	}
	m := CreateMeshFromData("Quad", vertices, []uint32{0, 1, 2, 2, 3, 0})
	ComputeTangents(m)
	return m
}

// CreateCube returns an axis-aligned cube centered at the origin with 24
// vertices so every face has its own normal and UVs.
func CreateCube(size float32) *Mesh {
	s := size / 2

	// Each face: normal, then the u and v axes spanning it.
	faces := [6][3]math.Vec3{
		{{Z: 1}, {X: 1}, {Y: 1}},
		{{Z: -1}, {X: -1}, {Y: 1}},
		{{Y: 1}, {X: 1}, {Z: -1}},
		{{Y: -1}, {X: 1}, {Z: 1}},
		{{X: 1}, {Z: -1}, {Y: 1}},
		{{X: -1}, {Z: 1}, {Y: 1}},
	}
	corners := [4][2]float32{{-1, -1}, {1, -1}, {1, 1}, {-1, 1}}

	vertices := make([]core.Vertex, 0, 24)
	indices := make([]uint32, 0, 36)
	for _, f := range faces {
		n, u, v := f[0], f[1], f[2]
		base := uint32(len(vertices))
		for _, c := range corners {
			pos := n.Add(u.Mul(c[0])).Add(v.Mul(c[1])).Mul(s)
			vertices = append(vertices, core.Vertex{
				Position: pos,
				Normal:   n,
				UV:       math.Vec2{X: (c[0] + 1) / 2, Y: (1 - c[1]) / 2},
				Color:    core.ColorWhite,
			})
		}
		indices = append(indices, base, base+1, base+2, base+2, base+3, base)
	}

	m := CreateMeshFromData("Cube", vertices, indices)
	ComputeTangents(m)
	return m
}

// CreatePlane returns a subdivided plane in the XZ plane facing +Y.
func CreatePlane(width, depth float32, subdivisions int) *Mesh {
	if subdivisions < 1 {
		subdivisions = 1
	}

	var vertices []core.Vertex
	var indices []uint32

	halfW := width / 2.0
	halfD := depth / 2.0

	for z := 0; z <= subdivisions; z++ {
		for x := 0; x <= subdivisions; x++ {
			u := float32(x) / float32(subdivisions)
			v := float32(z) / float32(subdivisions)

			vertices = append(vertices, core.Vertex{
				Position: math.Vec3{X: -halfW + u*width, Z: -halfD + v*depth},
				Normal:   math.Vec3Up,
				UV:       math.Vec2{X: u, Y: v},
				Color:    core.ColorWhite,
			})
		}
	}

	row := uint32(subdivisions + 1)
	for z := 0; z < subdivisions; z++ {
		for x := 0; x < subdivisions; x++ {
			tl := uint32(z)*row + uint32(x)
			bl := tl + row
			indices = append(indices, tl, bl, tl+1)
			indices = append(indices, tl+1, bl, bl+1)
		}
	}

	m := CreateMeshFromData("Plane", vertices, indices)
	ComputeTangents(m)
	return m
}

// CreateSphere generates a UV sphere.
func CreateSphere(radius float32, segments, rings int) *Mesh {
	if segments < 3 {
		segments = 3
	}
	if rings < 2 {
		rings = 2
	}

	var vertices []core.Vertex
	var indices []uint32

	for ring := 0; ring <= rings; ring++ {
		phi := float64(ring) * stdmath.Pi / float64(rings)
		sinPhi := float32(stdmath.Sin(phi))
		cosPhi := float32(stdmath.Cos(phi))

		for seg := 0; seg <= segments; seg++ {
			theta := float64(seg) * 2.0 * stdmath.Pi / float64(segments)
			normal := math.Vec3{
				X: sinPhi * float32(stdmath.Cos(theta)),
				Y: cosPhi,
				Z: sinPhi * float32(stdmath.Sin(theta)),
			}
			vertices = append(vertices, core.Vertex{
				Position: normal.Mul(radius),
				Normal:   normal,
				UV:       math.Vec2{X: float32(seg) / float32(segments), Y: float32(ring) / float32(rings)},
				Color:    core.ColorWhite,
			})
		}
	}

	for ring := 0; ring < rings; ring++ {
		for seg := 0; seg < segments; seg++ {
			current := uint32(ring*(segments+1) + seg)
			next := current + uint32(segments+1)

			indices = append(indices, current, next, current+1)
			indices = append(indices, current+1, next, next+1)
		}
	}

	m := CreateMeshFromData("Sphere", vertices, indices)
	ComputeTangents(m)
	return m
}
