// Package shader defines the programmable stages of the pipeline and the
// built-in shaders. A shader keeps per-vertex varyings in [3] arrays indexed
// by vertex slot; Primitive snapshots them so the triangle can be shaded
// later, possibly from several goroutines.
package shader

import (
	"soft-render/core"
	"soft-render/math"
	"soft-render/raster"
	"soft-render/scene"
	"soft-render/textures"
)

// VertexStage transforms one vertex. nth is the slot (0, 1 or 2) within the
// current triangle; the stage stores its varyings for that slot and returns
// the clip-space position.
type VertexStage[V any] interface {
	Vertex(in V, nth int) math.Vec4
}

// Shader is a vertex stage that can hand its current triangle to the
// rasterizer. The returned Primitive must not alias the shader's varyings,
// since the next Vertex call overwrites them.
type Shader[V any] interface {
	VertexStage[V]
	Primitive(clip [3]math.Vec4) raster.Primitive
}

// Uniforms is the state shared by every vertex and fragment of a draw call.
// Shaders only read it; build a new one per mesh.
type Uniforms struct {
	Model      math.Mat4
	Normal     math.Mat4 // inverse transpose of Model
	View       math.Mat4
	Projection math.Mat4
	MVP        math.Mat4

	Eye      math.Vec3 // world-space camera position
	LightDir math.Vec3 // unit vector toward the light
	Ambient  float32

	Material scene.Material
	Maps     [4]*core.Image // indexed by textures.Usage
	Wrap     textures.WrapMode
}

// NewUniforms derives the matrices for drawing with model under frame.
func NewUniforms(frame scene.Frame, model math.Mat4) *Uniforms {
	return &Uniforms{
		Model:      model,
		Normal:     model.NormalMatrix(),
		View:       frame.View,
		Projection: frame.Projection,
		MVP:        frame.Projection.Mul(frame.View).Mul(model),
		Eye:        frame.Eye,
		LightDir:   math.Vec3{X: 1, Y: 1, Z: 1}.Normalize(),
		Ambient:    0.15,
		Material:   *scene.DefaultMaterial(),
	}
}

// SetLight points the directional light from the surface toward dir.
func (u *Uniforms) SetLight(dir math.Vec3) {
	u.LightDir = dir.Normalize()
}

// Bind attaches tex to the slot of its usage. A nil texture clears nothing.
func (u *Uniforms) Bind(tex *textures.Texture) {
	if tex == nil || tex.Usage < 0 || int(tex.Usage) >= len(u.Maps) {
		return
	}
	u.Maps[tex.Usage] = tex.Image
}

// BindMesh binds the first texture of each usage on mesh and copies its
// material factors.
func (u *Uniforms) BindMesh(mesh *scene.Mesh) {
	for i := len(mesh.Textures) - 1; i >= 0; i-- {
		u.Bind(mesh.Textures[i])
	}
	if mesh.Material != nil {
		u.Material = *mesh.Material
	}
}

// Map returns the image bound for usage, or nil.
func (u *Uniforms) Map(usage textures.Usage) *core.Image {
	return u.Maps[usage]
}

// sample reads the map bound for usage at uv.
func (u *Uniforms) sample(usage textures.Usage, uv math.Vec2) core.Color {
	return textures.Sample(u.Maps[usage], uv.X, uv.Y, u.Wrap)
}

// weights extracts the barycentric weights from a fragment input.
func weights(bar math.Vec4) math.Vec3 {
	return math.Vec3{X: bar.X, Y: bar.Y, Z: bar.Z}
}

func lerpColor(c [3]core.Color, w math.Vec3) core.Color {
	return core.Color{
		R: c[0].R*w.X + c[1].R*w.Y + c[2].R*w.Z,
		G: c[0].G*w.X + c[1].G*w.Y + c[2].G*w.Z,
		B: c[0].B*w.X + c[1].B*w.Y + c[2].B*w.Z,
		A: c[0].A*w.X + c[1].A*w.Y + c[2].A*w.Z,
	}
}
