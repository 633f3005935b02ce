package scene

import (
	"bufio"
	"fmt"
	stdio "io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"soft-render/core"
	remath "soft-render/math"
	"soft-render/textures"
)

// objFace is an already-triangulated face (three vertex references).
type objFace struct {
	vIdx, vtIdx, vnIdx [3]int // 0-based position / UV / normal indices (-1 = absent)
}

type objObject struct {
	name    string
	matName string
	faces   []objFace
}

// objMaterial is one "newmtl" block with its texture maps resolved.
type objMaterial struct {
	*Material
	textures []*textures.Texture
}

// LoadOBJ parses a Wavefront .obj file and returns one Mesh per object/group.
// A companion .mtl file is loaded when referenced via "mtllib"; its maps are
// registered with tm as map_Kd→Diffuse, map_Ks→Specular, map_Bump/bump→Normal
// and map_Ka→Height.
func LoadOBJ(path string, tm *textures.Manager) ([]*Mesh, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open obj %q: %w", path, err)
	}
	defer f.Close()

	meshes, err := parseOBJ(f, filepath.Dir(path), tm)
	if err != nil {
		return nil, fmt.Errorf("obj %q: %w", path, err)
	}
	return meshes, nil
}

func parseOBJ(r stdio.Reader, dir string, tm *textures.Manager) ([]*Mesh, error) {
	var positions []remath.Vec3
	var normals []remath.Vec3
	var uvs []remath.Vec2

	materials := map[string]*objMaterial{}

	var objects []objObject
	cur := &objObject{name: "default"}

	scanner := bufio.NewScanner(r)
	line := 0
	for scanner.Scan() {
		line++
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 || strings.HasPrefix(fields[0], "#") {
			continue
		}

		switch fields[0] {
		case "v", "vn":
			v, err := parseFloats(fields[1:], 3)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", line, err)
			}
			vec := remath.Vec3{X: v[0], Y: v[1], Z: v[2]}
			if fields[0] == "v" {
				positions = append(positions, vec)
			} else {
				normals = append(normals, vec)
			}

		case "vt":
			v, err := parseFloats(fields[1:], 2)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", line, err)
			}
			// OBJ puts v=0 at the bottom of the image; rows here start at the top.
			uvs = append(uvs, remath.Vec2{X: v[0], Y: 1 - v[1]})

		case "o", "g":
			if len(cur.faces) > 0 {
				objects = append(objects, *cur)
			}
			name := "default"
			if len(fields) > 1 {
				name = fields[1]
			}
			cur = &objObject{name: name, matName: cur.matName}

		case "usemtl":
			if len(fields) > 1 {
				cur.matName = fields[1]
			}

		case "mtllib":
			for _, lib := range fields[1:] {
				loaded, err := loadMTL(filepath.Join(dir, lib), dir, tm)
				if err != nil {
					core.Logger().Warn("obj: skipping material library", "path", lib, "err", err)
					continue
				}
				for k, v := range loaded {
					materials[k] = v
				}
			}

		case "f":
			if len(fields) < 4 {
				return nil, fmt.Errorf("line %d: face needs at least 3 vertices", line)
			}
			fverts := make([]faceVertex, 0, len(fields)-1)
			for _, tok := range fields[1:] {
				fv, err := parseFaceVertex(tok, len(positions), len(uvs), len(normals))
				if err != nil {
					return nil, fmt.Errorf("line %d: %w", line, err)
				}
				fverts = append(fverts, fv)
			}
			// Fan triangulation: 0-1-2, 0-2-3, 0-3-4, ...
			for i := 1; i+1 < len(fverts); i++ {
				f0, f1, f2 := fverts[0], fverts[i], fverts[i+1]
				cur.faces = append(cur.faces, objFace{
					vIdx:  [3]int{f0.v, f1.v, f2.v},
					vtIdx: [3]int{f0.vt, f1.vt, f2.vt},
					vnIdx: [3]int{f0.vn, f1.vn, f2.vn},
				})
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan: %w", err)
	}

	if len(cur.faces) > 0 {
		objects = append(objects, *cur)
	}
	if len(objects) == 0 {
		return nil, fmt.Errorf("no geometry found")
	}

	meshes := make([]*Mesh, 0, len(objects))
	for _, obj := range objects {
		mesh := buildMeshFromOBJ(obj.name, obj.faces, positions, normals, uvs)
		if mat, ok := materials[obj.matName]; ok {
			mesh.Material = mat.Material
			mesh.Textures = mat.textures
		}
		ComputeTangents(mesh)
		meshes = append(meshes, mesh)
	}
	return meshes, nil
}

func parseFloats(fields []string, n int) ([]float32, error) {
	if len(fields) < n {
		return nil, fmt.Errorf("want %d values, got %d", n, len(fields))
	}
	out := make([]float32, n)
	for i := 0; i < n; i++ {
		f, err := strconv.ParseFloat(fields[i], 32)
		if err != nil {
			return nil, err
		}
		out[i] = float32(f)
	}
	return out, nil
}

type faceVertex struct{ v, vt, vn int }

// parseFaceVertex parses one face vertex token: "v", "v/vt", "v//vn", "v/vt/vn".
// OBJ indices are 1-based; negative ones count back from the end of the
// lists read so far. Returns 0-based indices, -1 when absent.
func parseFaceVertex(tok string, nv, nvt, nvn int) (faceVertex, error) {
	parseIdx := func(s string, n int) (int, error) {
		if s == "" {
			return -1, nil
		}
		i, err := strconv.Atoi(s)
		if err != nil {
			return 0, err
		}
		switch {
		case i > 0 && i <= n:
			return i - 1, nil
		case i < 0 && -i <= n:
			return n + i, nil
		}
		return 0, fmt.Errorf("face index %d out of range (%d available)", i, n)
	}

	res := faceVertex{v: -1, vt: -1, vn: -1}
	parts := strings.Split(tok, "/")
	var err error
	if res.v, err = parseIdx(parts[0], nv); err != nil {
		return res, err
	}
	if res.v < 0 {
		return res, fmt.Errorf("face vertex %q has no position", tok)
	}
	if len(parts) > 1 {
		if res.vt, err = parseIdx(parts[1], nvt); err != nil {
			return res, err
		}
	}
	if len(parts) > 2 {
		if res.vn, err = parseIdx(parts[2], nvn); err != nil {
			return res, err
		}
	}
	return res, nil
}

// buildMeshFromOBJ converts parsed face data into a deduplicated Mesh.
func buildMeshFromOBJ(name string, faces []objFace, positions, normals []remath.Vec3, uvs []remath.Vec2) *Mesh {
	vertMap := map[faceVertex]uint32{}
	var vertices []core.Vertex
	var indices []uint32
	missingNormals := false

	for _, face := range faces {
		for c := 0; c < 3; c++ {
			k := faceVertex{face.vIdx[c], face.vtIdx[c], face.vnIdx[c]}
			idx, ok := vertMap[k]
			if !ok {
				v := core.Vertex{
					Position: positions[k.v],
					Normal:   remath.Vec3Up,
					Color:    core.ColorWhite,
				}
				if k.vt >= 0 {
					v.UV = uvs[k.vt]
				}
				if k.vn >= 0 {
					v.Normal = normals[k.vn]
				} else {
					missingNormals = true
				}
				idx = uint32(len(vertices))
				vertices = append(vertices, v)
				vertMap[k] = idx
			}
			indices = append(indices, idx)
		}
	}

	if missingNormals {
		generateFlatNormals(vertices, indices)
	}
	return CreateMeshFromData(name, vertices, indices)
}

// generateFlatNormals computes area-weighted normals and writes them to the vertex slice.
func generateFlatNormals(vertices []core.Vertex, indices []uint32) {
	accum := make([]remath.Vec3, len(vertices))

	for i := 0; i+2 < len(indices); i += 3 {
		i0, i1, i2 := indices[i], indices[i+1], indices[i+2]
		v0 := vertices[i0].Position
		n := vertices[i1].Position.Sub(v0).Cross(vertices[i2].Position.Sub(v0))
		accum[i0] = accum[i0].Add(n)
		accum[i1] = accum[i1].Add(n)
		accum[i2] = accum[i2].Add(n)
	}
	for i := range vertices {
		if accum[i].LengthSqr() > 0 {
			vertices[i].Normal = accum[i].Normalize()
		}
	}
}

// ── MTL loader ───────────────────────────────────────────────────────────────

var mtlMaps = map[string]textures.Usage{
	"map_Kd":   textures.Diffuse,
	"map_Ks":   textures.Specular,
	"map_Bump": textures.Normal,
	"map_bump": textures.Normal,
	"bump":     textures.Normal,
	"norm":     textures.Normal,
	"map_Ka":   textures.Height,
}

func loadMTL(path, dir string, tm *textures.Manager) (map[string]*objMaterial, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	mats := map[string]*objMaterial{}
	var cur *objMaterial

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 || strings.HasPrefix(fields[0], "#") {
			continue
		}
		if fields[0] == "newmtl" {
			if len(fields) > 1 {
				cur = &objMaterial{Material: DefaultMaterial()}
				cur.Name = fields[1]
				mats[fields[1]] = cur
			}
			continue
		}
		if cur == nil {
			continue
		}

		switch fields[0] {
		case "Kd", "Ks":
			v, err := parseFloats(fields[1:], 3)
			if err != nil {
				continue
			}
			c := core.Color{R: v[0], G: v[1], B: v[2], A: 1}
			if fields[0] == "Kd" {
				cur.Albedo = c
			} else {
				cur.Specular = c
			}
		case "Ns":
			if v, err := parseFloats(fields[1:], 1); err == nil {
				cur.Shininess = float32(math.Max(1, float64(v[0])))
			}
		default:
			usage, ok := mtlMaps[fields[0]]
			if !ok || len(fields) < 2 {
				continue
			}
			// Options such as "-bm 0.5" precede the file name.
			file := fields[len(fields)-1]
			tex, err := tm.Load(filepath.Join(dir, filepath.FromSlash(file)), usage)
			if err != nil {
				core.Logger().Warn("mtl: skipping texture", "material", cur.Name, "path", file, "err", err)
				continue
			}
			cur.textures = append(cur.textures, tex)
		}
	}
	return mats, scanner.Err()
}
