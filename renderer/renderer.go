// Package renderer drives the software pipeline for whole meshes and models:
// it owns the color and depth buffers, runs the vertex stage, and either
// rasterizes each triangle immediately or queues it for a tiled parallel
// flush at EndFrame.
package renderer

import (
	"context"
	"errors"
	"fmt"

	"soft-render/core"
	"soft-render/math"
	"soft-render/raster"
	"soft-render/scene"
	"soft-render/shader"
	"soft-render/textures"
)

// ErrInvalidSize is returned for a framebuffer with a non-positive dimension.
var ErrInvalidSize = errors.New("invalid framebuffer size")

// ShaderKind selects the built-in shader RenderModel uses.
type ShaderKind int

const (
	ShaderTextured ShaderKind = iota
	ShaderFlat
	ShaderDepth
)

func (k ShaderKind) String() string {
	switch k {
	case ShaderTextured:
		return "textured"
	case ShaderFlat:
		return "flat"
	case ShaderDepth:
		return "depth"
	}
	return fmt.Sprintf("ShaderKind(%d)", int(k))
}

// ParseShaderKind accepts "textured", "flat" and "depth"; "" means textured.
func ParseShaderKind(s string) (ShaderKind, error) {
	switch s {
	case "", "textured":
		return ShaderTextured, nil
	case "flat":
		return ShaderFlat, nil
	case "depth":
		return ShaderDepth, nil
	}
	return 0, fmt.Errorf("unknown shader %q", s)
}

type Options struct {
	Width, Height int
	ClearColor    core.Color
	// Workers > 1 queues triangles and rasterizes them in parallel tiles at
	// EndFrame. Otherwise every triangle is drawn as soon as it is submitted.
	Workers  int
	TileSize int
	// FrustumCulling skips meshes whose world bounds are outside the view.
	FrustumCulling bool
	Wrap           textures.WrapMode
	// Progress, if set, is called by RenderModel after each mesh.
	Progress func(done, total int)
}

// Stats counts the work of the current frame.
type Stats struct {
	Meshes    int // meshes drawn
	Culled    int // meshes skipped by frustum culling
	Triangles int // triangles submitted to the rasterizer
	Fragments int // fragments written
}

// Renderer is not safe for concurrent use; parallelism happens inside
// EndFrame.
type Renderer struct {
	opts  Options
	fb    *core.Image
	zb    *raster.DepthBuffer
	tiles raster.TileRenderer

	frustum scene.Frustum
	queue   []raster.Primitive
	stats   Stats
}

func New(opts Options) (*Renderer, error) {
	if opts.Width <= 0 || opts.Height <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrInvalidSize, opts.Width, opts.Height)
	}
	r := &Renderer{
		opts:  opts,
		fb:    core.NewImage(opts.Width, opts.Height),
		zb:    raster.NewDepthBuffer(opts.Width, opts.Height),
		tiles: raster.TileRenderer{TileSize: opts.TileSize, Workers: opts.Workers},
	}
	r.fb.Fill(opts.ClearColor)
	return r, nil
}

// Framebuffer returns the color target. It stays valid until Resize.
func (r *Renderer) Framebuffer() *core.Image { return r.fb }

func (r *Renderer) DepthBuffer() *raster.DepthBuffer { return r.zb }

// Aspect returns width/height of the framebuffer.
func (r *Renderer) Aspect() float32 {
	return float32(r.opts.Width) / float32(r.opts.Height)
}

func (r *Renderer) parallel() bool { return r.opts.Workers > 1 }

// Resize reallocates both buffers. Queued primitives are dropped.
func (r *Renderer) Resize(width, height int) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("%w: %dx%d", ErrInvalidSize, width, height)
	}
	r.opts.Width, r.opts.Height = width, height
	r.fb = core.NewImage(width, height)
	r.zb = raster.NewDepthBuffer(width, height)
	r.queue = r.queue[:0]
	return nil
}

// BeginFrame clears color to ClearColor and depth to +Inf, resets the stats
// and takes the culling frustum from frame.
func (r *Renderer) BeginFrame(frame scene.Frame) {
	r.fb.Fill(r.opts.ClearColor)
	r.zb.Clear()
	clear(r.queue)
	r.queue = r.queue[:0]
	r.stats = Stats{}
	r.frustum = scene.FrustumFromVP(frame.ViewProjection())
}

// Draw runs s over an indexed triangle list. A nil index list draws the
// vertices as consecutive triples. Indices are checked before any vertex is
// shaded.
func Draw[V any](r *Renderer, s shader.Shader[V], vertices []V, indices []uint32) error {
	if indices == nil {
		if len(vertices)%3 != 0 {
			return fmt.Errorf("%w: %d vertices without indices", scene.ErrBadIndexCount, len(vertices))
		}
		for i := 0; i < len(vertices); i += 3 {
			r.submit(s.Primitive([3]math.Vec4{
				s.Vertex(vertices[i], 0),
				s.Vertex(vertices[i+1], 1),
				s.Vertex(vertices[i+2], 2),
			}))
		}
		return nil
	}

	if err := scene.ValidateIndices(indices, len(vertices)); err != nil {
		return err
	}
	for i := 0; i < len(indices); i += 3 {
		r.submit(s.Primitive([3]math.Vec4{
			s.Vertex(vertices[indices[i]], 0),
			s.Vertex(vertices[indices[i+1]], 1),
			s.Vertex(vertices[indices[i+2]], 2),
		}))
	}
	return nil
}

func (r *Renderer) submit(p raster.Primitive) {
	r.stats.Triangles++
	if r.parallel() {
		r.queue = append(r.queue, p)
		return
	}
	r.stats.Fragments += p.Draw(r.fb, r.zb)
}

// DrawMesh draws mesh with s, skipping it when frustum culling is on and its
// world bounds are outside the frame passed to BeginFrame. s must already be
// set up for mesh.Transform.
func (r *Renderer) DrawMesh(mesh *scene.Mesh, s shader.Shader[core.Vertex]) error {
	if r.opts.FrustumCulling && len(mesh.Vertices) > 0 {
		box := mesh.WorldAABB()
		if !box.IntersectsFrustum(&r.frustum) {
			r.stats.Culled++
			core.Logger().Debug("mesh culled", "mesh", mesh.Name)
			return nil
		}
	}
	if err := Draw(r, s, mesh.Vertices, mesh.Indices); err != nil {
		return fmt.Errorf("mesh %q: %w", mesh.Name, err)
	}
	r.stats.Meshes++
	return nil
}

// EndFrame rasterizes queued primitives. It returns immediately in
// sequential mode.
func (r *Renderer) EndFrame(ctx context.Context) error {
	if len(r.queue) > 0 {
		n, err := r.tiles.Render(ctx, r.queue, r.fb, r.zb)
		r.stats.Fragments += n
		clear(r.queue)
		r.queue = r.queue[:0]
		if err != nil {
			return fmt.Errorf("rasterize: %w", err)
		}
	}
	s := r.stats
	core.Logger().Debug("frame done",
		"meshes", s.Meshes, "culled", s.Culled, "triangles", s.Triangles, "fragments", s.Fragments)
	return nil
}

// Stats returns the counters of the current or last frame.
func (r *Renderer) Stats() Stats { return r.stats }

// NewShader builds the shader of the given kind for one mesh.
func (r *Renderer) NewShader(kind ShaderKind, frame scene.Frame, mesh *scene.Mesh, light math.Vec3) shader.Shader[core.Vertex] {
	u := shader.NewUniforms(frame, mesh.Transform)
	u.SetLight(light)
	u.Wrap = r.opts.Wrap
	u.BindMesh(mesh)

	switch kind {
	case ShaderFlat:
		return shader.NewFlat(u, core.ColorWhite)
	case ShaderDepth:
		return shader.NewDepth(u)
	}
	return shader.NewTextured(u)
}

// RenderModel draws a full frame of model: BeginFrame, one DrawMesh per
// mesh, then EndFrame. light points from the surface toward the light.
// Invalid meshes are logged and skipped.
func (r *Renderer) RenderModel(ctx context.Context, model *scene.Model, frame scene.Frame, light math.Vec3, kind ShaderKind) error {
	r.BeginFrame(frame)
	for i, mesh := range model.Meshes {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := r.DrawMesh(mesh, r.NewShader(kind, frame, mesh, light)); err != nil {
			core.Logger().Warn("skipping mesh", "err", err)
		}
		if r.opts.Progress != nil {
			r.opts.Progress(i+1, len(model.Meshes))
		}
	}
	return r.EndFrame(ctx)
}
