package scene

import (
	"bytes"
	"fmt"
	"path/filepath"

	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"

	"soft-render/core"
	"soft-render/io"
	"soft-render/math"
	"soft-render/textures"
)

var gltfIdentity = [16]float64{1, 0, 0, 0, 0, 1, 0, 0, 0, 0, 1, 0, 0, 0, 0, 1}

// LoadGLTF opens a .glb or .gltf file and flattens its default scene into a
// list of meshes. Each node's world transform is baked into Mesh.Transform;
// a glTF mesh referenced by several nodes shares its vertex data between the
// resulting meshes. Textures are registered with tm.
//
// Material maps are bound as: baseColor→Diffuse, metallicRoughness→Specular,
// normal→Normal, occlusion→Height.
func LoadGLTF(path string, tm *textures.Manager) ([]*Mesh, error) {
	doc, err := gltf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("gltf open %q: %w", path, err)
	}

	l := &gltfLoader{
		doc:    doc,
		path:   path,
		dir:    filepath.Dir(path),
		tm:     tm,
		images: make(map[int]*core.Image),
	}

	// One entry per glTF mesh, one Mesh per primitive.
	l.prims = make([][]*Mesh, len(doc.Meshes))
	for mi, gm := range doc.Meshes {
		for pi, prim := range gm.Primitives {
			if prim.Mode != gltf.PrimitiveTriangles {
				core.Logger().Warn("gltf: skipping non-triangle primitive", "mesh", mi, "primitive", pi, "mode", prim.Mode)
				continue
			}
			m, err := l.loadPrimitive(gm.Name, pi, prim)
			if err != nil {
				return nil, fmt.Errorf("gltf %q mesh %d primitive %d: %w", path, mi, pi, err)
			}
			l.prims[mi] = append(l.prims[mi], m)
		}
	}

	for _, root := range l.roots() {
		l.walk(root, math.Mat4Identity(), make(map[int]bool))
	}
	if len(l.meshes) == 0 {
		return nil, fmt.Errorf("no geometry found in %q", path)
	}
	return l.meshes, nil
}

type gltfLoader struct {
	doc    *gltf.Document
	path   string
	dir    string
	tm     *textures.Manager
	images map[int]*core.Image
	prims  [][]*Mesh
	meshes []*Mesh
}

// roots returns the node indices of the default scene, or every parentless
// node when the file names no scene.
func (l *gltfLoader) roots() []int {
	doc := l.doc
	if doc.Scene != nil && *doc.Scene < len(doc.Scenes) {
		return doc.Scenes[*doc.Scene].Nodes
	}
	hasParent := make([]bool, len(doc.Nodes))
	for _, gn := range doc.Nodes {
		for _, c := range gn.Children {
			if c < len(hasParent) {
				hasParent[c] = true
			}
		}
	}
	var roots []int
	for i := range doc.Nodes {
		if !hasParent[i] {
			roots = append(roots, i)
		}
	}
	return roots
}

// walk visits node idx and its children depth-first. onPath guards against
// malformed files whose hierarchy contains a cycle.
func (l *gltfLoader) walk(idx int, parent math.Mat4, onPath map[int]bool) {
	if idx < 0 || idx >= len(l.doc.Nodes) || onPath[idx] {
		return
	}
	onPath[idx] = true
	defer delete(onPath, idx)

	gn := l.doc.Nodes[idx]
	world := parent.Mul(nodeLocalMatrix(gn))

	if gn.Mesh != nil && *gn.Mesh < len(l.prims) {
		for _, m := range l.prims[*gn.Mesh] {
			inst := *m
			inst.Transform = world
			l.meshes = append(l.meshes, &inst)
		}
	}
	for _, c := range gn.Children {
		l.walk(c, world, onPath)
	}
}

func nodeLocalMatrix(gn *gltf.Node) math.Mat4 {
	if m := gn.MatrixOrDefault(); m != gltfIdentity {
		// glTF matrices are column-major.
		var out math.Mat4
		for col := 0; col < 4; col++ {
			for row := 0; row < 4; row++ {
				out[row][col] = float32(m[col*4+row])
			}
		}
		return out
	}
	t := gn.TranslationOrDefault()
	r := gn.RotationOrDefault() // [x, y, z, w]
	s := gn.ScaleOrDefault()
	return math.Mat4TRS(
		math.Vec3{X: float32(t[0]), Y: float32(t[1]), Z: float32(t[2])},
		math.Quaternion{X: float32(r[0]), Y: float32(r[1]), Z: float32(r[2]), W: float32(r[3])},
		math.Vec3{X: float32(s[0]), Y: float32(s[1]), Z: float32(s[2])},
	)
}

// loadPrimitive converts one glTF mesh primitive into a Mesh with an
// identity transform.
func (l *gltfLoader) loadPrimitive(meshName string, primIdx int, prim *gltf.Primitive) (*Mesh, error) {
	doc := l.doc
	name := fmt.Sprintf("%s_p%d", meshName, primIdx)
	if meshName == "" {
		name = fmt.Sprintf("prim_%d", primIdx)
	}

	posIdx, ok := prim.Attributes["POSITION"]
	if !ok {
		return nil, fmt.Errorf("no POSITION attribute")
	}
	positions, err := modeler.ReadPosition(doc, doc.Accessors[posIdx], nil)
	if err != nil {
		return nil, fmt.Errorf("positions: %w", err)
	}

	var (
		normals  [][3]float32
		uvs      [][2]float32
		tangents [][4]float32
		colors   [][4]uint8
		joints   [][4]uint16
		weights  [][4]float32
	)
	if idx, ok := prim.Attributes["NORMAL"]; ok {
		if normals, err = modeler.ReadNormal(doc, doc.Accessors[idx], nil); err != nil {
			return nil, fmt.Errorf("normals: %w", err)
		}
	}
	if idx, ok := prim.Attributes["TEXCOORD_0"]; ok {
		if uvs, err = modeler.ReadTextureCoord(doc, doc.Accessors[idx], nil); err != nil {
			return nil, fmt.Errorf("texcoords: %w", err)
		}
	}
	if idx, ok := prim.Attributes["TANGENT"]; ok {
		if tangents, err = modeler.ReadTangent(doc, doc.Accessors[idx], nil); err != nil {
			return nil, fmt.Errorf("tangents: %w", err)
		}
	}
	if idx, ok := prim.Attributes["COLOR_0"]; ok {
		if colors, err = modeler.ReadColor(doc, doc.Accessors[idx], nil); err != nil {
			return nil, fmt.Errorf("colors: %w", err)
		}
	}
	if idx, ok := prim.Attributes["JOINTS_0"]; ok {
		if joints, err = modeler.ReadJoints(doc, doc.Accessors[idx], nil); err != nil {
			return nil, fmt.Errorf("joints: %w", err)
		}
	}
	if idx, ok := prim.Attributes["WEIGHTS_0"]; ok {
		if weights, err = modeler.ReadWeights(doc, doc.Accessors[idx], nil); err != nil {
			return nil, fmt.Errorf("weights: %w", err)
		}
	}

	verts := make([]core.Vertex, len(positions))
	for i, p := range positions {
		v := core.Vertex{
			Position: math.Vec3{X: p[0], Y: p[1], Z: p[2]},
			Normal:   math.Vec3Up,
			Color:    core.ColorWhite,
		}
		if i < len(normals) {
			n := normals[i]
			v.Normal = math.Vec3{X: n[0], Y: n[1], Z: n[2]}
		}
		if i < len(uvs) {
			v.UV = math.Vec2{X: uvs[i][0], Y: uvs[i][1]}
		}
		if i < len(colors) {
			c := colors[i]
			v.Color = core.ColorFromRGBA8(c[0], c[1], c[2], c[3])
		}
		if i < len(tangents) {
			t := tangents[i]
			v.Tangent = math.Vec3{X: t[0], Y: t[1], Z: t[2]}
			v.Bitangent = v.Normal.Cross(v.Tangent).Mul(t[3])
		}
		if i < len(joints) && i < len(weights) {
			for k := 0; k < core.MaxBoneInfluence; k++ {
				v.BoneIDs[k] = int32(joints[i][k])
				v.Weights[k] = weights[i][k]
			}
		}
		verts[i] = v
	}

	var indices []uint32
	if prim.Indices != nil {
		indices, err = modeler.ReadIndices(doc, doc.Accessors[*prim.Indices], nil)
		if err != nil {
			return nil, fmt.Errorf("indices: %w", err)
		}
	} else {
		indices = make([]uint32, len(verts))
		for i := range indices {
			indices[i] = uint32(i)
		}
	}

	m := CreateMeshFromData(name, verts, indices)
	if err := m.Validate(); err != nil {
		return nil, err
	}
	if len(tangents) == 0 {
		ComputeTangents(m)
	}
	if prim.Material != nil && *prim.Material < len(doc.Materials) {
		l.applyMaterial(m, doc.Materials[*prim.Material])
	}
	return m, nil
}

func (l *gltfLoader) applyMaterial(m *Mesh, gm *gltf.Material) {
	mat := DefaultMaterial()
	mat.Name = gm.Name

	if pbr := gm.PBRMetallicRoughness; pbr != nil {
		cf := pbr.BaseColorFactorOrDefault()
		mat.Albedo = core.Color{R: float32(cf[0]), G: float32(cf[1]), B: float32(cf[2]), A: float32(cf[3])}

		// Blinn-Phong approximation: smooth surfaces get a tight highlight,
		// metals a bright one.
		roughness := float32(pbr.RoughnessFactorOrDefault())
		metallic := float32(pbr.MetallicFactorOrDefault())
		mat.Shininess = (1-roughness)*(1-roughness)*128 + 1
		s := 0.04 + metallic*0.66
		mat.Specular = core.Color{R: s, G: s, B: s, A: 1}

		if pbr.BaseColorTexture != nil {
			l.bind(m, pbr.BaseColorTexture.Index, textures.Diffuse)
		}
		if pbr.MetallicRoughnessTexture != nil {
			l.bind(m, pbr.MetallicRoughnessTexture.Index, textures.Specular)
		}
	}
	if gm.NormalTexture != nil && gm.NormalTexture.Index != nil {
		l.bind(m, *gm.NormalTexture.Index, textures.Normal)
	}
	if gm.OcclusionTexture != nil && gm.OcclusionTexture.Index != nil {
		l.bind(m, *gm.OcclusionTexture.Index, textures.Height)
	}
	m.Material = mat
}

// bind attaches glTF texture texIdx to m. Unreadable images are logged and
// skipped.
func (l *gltfLoader) bind(m *Mesh, texIdx int, usage textures.Usage) {
	if texIdx < 0 || texIdx >= len(l.doc.Textures) || l.doc.Textures[texIdx].Source == nil {
		return
	}
	src := *l.doc.Textures[texIdx].Source
	if src >= len(l.doc.Images) {
		return
	}
	gi := l.doc.Images[src]

	var (
		tex *textures.Texture
		err error
	)
	switch {
	case gi.BufferView == nil && gi.URI != "" && !gi.IsEmbeddedResource():
		tex, err = l.tm.Load(filepath.Join(l.dir, filepath.FromSlash(gi.URI)), usage)
	default:
		var img *core.Image
		if img, err = l.decodeEmbedded(src, gi); err == nil {
			tex = l.tm.Add(fmt.Sprintf("%s#image%d", l.path, src), img, usage)
		}
	}
	if err != nil {
		core.Logger().Warn("gltf: skipping texture", "image", src, "usage", usage, "err", err)
		return
	}
	m.Textures = append(m.Textures, tex)
}

// decodeEmbedded decodes an image stored in a buffer view (GLB) or a data URI.
func (l *gltfLoader) decodeEmbedded(src int, gi *gltf.Image) (*core.Image, error) {
	if img, ok := l.images[src]; ok {
		return img, nil
	}
	var (
		raw []byte
		err error
	)
	if gi.BufferView != nil {
		raw, err = modeler.ReadBufferView(l.doc, l.doc.BufferViews[*gi.BufferView])
	} else {
		raw, err = gi.MarshalData()
	}
	if err != nil {
		return nil, err
	}
	img, err := io.DecodeImage(bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	l.images[src] = img
	return img, nil
}
