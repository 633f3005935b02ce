package scene

import (
	"errors"
	"fmt"

	"soft-render/core"
	"soft-render/math"
	"soft-render/textures"
)

var (
	// ErrBadIndexCount is returned when an index list is not a whole number
	// of triangles.
	ErrBadIndexCount = errors.New("index count is not a multiple of 3")
	// ErrIndexOutOfRange is returned when an index points past the vertex list.
	ErrIndexOutOfRange = errors.New("index out of range")
)

// Mesh holds triangle-list geometry plus the textures bound to it.
type Mesh struct {
	Name     string
	Vertices []core.Vertex
	Indices  []uint32
	Textures []*textures.Texture
	Material *Material

	// Transform is the model matrix baked from the source scene graph.
	Transform math.Mat4

	// Cached local-space AABB (computed by CreateMeshFromData).
	LocalAABB    AABB
	HasLocalAABB bool
}

// CreateMeshFromData builds a Mesh with an identity transform and
// pre-computes its local-space AABB.
func CreateMeshFromData(name string, vertices []core.Vertex, indices []uint32) *Mesh {
	m := &Mesh{
		Name:      name,
		Vertices:  vertices,
		Indices:   indices,
		Material:  DefaultMaterial(),
		Transform: math.Mat4Identity(),
	}
	if len(vertices) > 0 {
		m.LocalAABB = computeLocalAABB(vertices)
		m.HasLocalAABB = true
	}
	return m
}

// Validate checks that Indices describe whole triangles over Vertices.
func (m *Mesh) Validate() error {
	return ValidateIndices(m.Indices, len(m.Vertices))
}

// ValidateIndices reports ErrBadIndexCount or ErrIndexOutOfRange for an index
// list over vertexCount vertices.
func ValidateIndices(indices []uint32, vertexCount int) error {
	if len(indices)%3 != 0 {
		return fmt.Errorf("%w: %d indices", ErrBadIndexCount, len(indices))
	}
	for i, idx := range indices {
		if int(idx) >= vertexCount {
			return fmt.Errorf("%w: indices[%d]=%d, %d vertices", ErrIndexOutOfRange, i, idx, vertexCount)
		}
	}
	return nil
}

// TriangleCount returns the number of triangles in the index list.
func (m *Mesh) TriangleCount() int {
	return len(m.Indices) / 3
}

// Texture returns the first bound texture with the given usage, or nil.
func (m *Mesh) Texture(usage textures.Usage) *textures.Texture {
	for _, t := range m.Textures {
		if t != nil && t.Usage == usage {
			return t
		}
	}
	return nil
}

// WorldAABB returns the mesh bounds after Transform.
func (m *Mesh) WorldAABB() AABB {
	return ComputeAABB(m, m.Transform)
}

func computeLocalAABB(vertices []core.Vertex) AABB {
	box := AABB{Min: vertices[0].Position, Max: vertices[0].Position}
	for _, v := range vertices[1:] {
		box = box.Extend(v.Position)
	}
	return box
}
