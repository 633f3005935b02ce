package scene

import (
	"fmt"
	"path/filepath"
	"strings"

	"soft-render/core"
	"soft-render/textures"
)

// Model is the flattened result of loading a model file: meshes in source
// order plus every distinct texture they reference.
type Model struct {
	Name     string
	Meshes   []*Mesh
	Textures []*textures.Texture
}

// LoadModel loads a .gltf, .glb or .obj file. Textures shared between meshes
// are decoded once.
func LoadModel(path string) (*Model, error) {
	tm := textures.NewManager()

	var (
		meshes []*Mesh
		err    error
	)
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".gltf", ".glb":
		meshes, err = LoadGLTF(path, tm)
	case ".obj":
		meshes, err = LoadOBJ(path, tm)
	default:
		return nil, fmt.Errorf("load model %q: unsupported extension %q", path, ext)
	}
	if err != nil {
		return nil, err
	}

	m := NewModel(filepath.Base(path), meshes...)
	m.Textures = tm.Textures()
	core.Logger().Info("model loaded", "path", path, "meshes", len(m.Meshes), "triangles", m.TriangleCount(), "textures", len(m.Textures))
	return m, nil
}

// NewModel wraps procedurally built meshes.
func NewModel(name string, meshes ...*Mesh) *Model {
	return &Model{Name: name, Meshes: meshes}
}

func (m *Model) TriangleCount() int {
	n := 0
	for _, mesh := range m.Meshes {
		n += mesh.TriangleCount()
	}
	return n
}

// Bounds returns the world-space box around every mesh. ok is false for a
// model without vertices.
func (m *Model) Bounds() (box AABB, ok bool) {
	for _, mesh := range m.Meshes {
		if len(mesh.Vertices) == 0 {
			continue
		}
		b := mesh.WorldAABB()
		if !ok {
			box, ok = b, true
			continue
		}
		box = box.Union(b)
	}
	return box, ok
}
