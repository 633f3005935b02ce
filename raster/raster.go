// Package raster scan converts clip-space triangles into a framebuffer with a
// depth test. It holds no state between calls; all output goes to the
// caller's color and depth buffers.
package raster

import (
	"image"
	stdmath "math"

	"soft-render/core"
	"soft-render/math"
)

// degenerateArea is the smallest |signed area| in square pixels a triangle
// needs to be drawn.
const degenerateArea = 1e-8

// FragmentStage shades one covered pixel. bar holds the perspective-corrected
// barycentric weights in X, Y, Z (they sum to 1) and the interpolated depth
// in W. Returning discard=true leaves color and depth untouched.
//
// Implementations used with TileRenderer are called from several goroutines
// at once and must not mutate shared state.
type FragmentStage interface {
	Fragment(bar math.Vec4) (c core.Color, discard bool)
}

// PerspectiveFragmentStage is the variant that corrects its own varyings.
// bar carries the screen-space weights and the depth; recipZ holds the
// reciprocal depth of each vertex so the stage can weight attribute i by
// bar_i*recipZ_i / Σ bar_j*recipZ_j.
type PerspectiveFragmentStage interface {
	FragmentPerspective(bar math.Vec4, recipZ math.Vec3) (c core.Color, discard bool)
}

// Primitive is a triangle ready to rasterize: its clip positions plus the
// fragment stage holding its varyings. When Perspective is set it is used
// instead of Fragment.
type Primitive struct {
	Clip        [3]math.Vec4
	Fragment    FragmentStage
	Perspective PerspectiveFragmentStage
}

// Draw rasterizes p into the whole framebuffer.
func (p Primitive) Draw(fb *core.Image, zb *DepthBuffer) int {
	t, ok := setupTriangle(p.Clip, fb.Width, fb.Height)
	if !ok {
		return 0
	}
	return t.walk(clipRect(fb, zb), p, fb, zb)
}

// Triangle rasterizes one triangle given in clip space and returns the
// number of fragments written. Pixels are sampled at their centers; a pixel
// is covered when its center is inside or on the edge for either winding.
// A fragment is written when its depth is strictly less than the stored one
// and fs does not discard it.
func Triangle(clip [3]math.Vec4, fs FragmentStage, fb *core.Image, zb *DepthBuffer) int {
	return Primitive{Clip: clip, Fragment: fs}.Draw(fb, zb)
}

// TrianglePerspective is Triangle for a stage that interpolates its own
// varyings from the reciprocal vertex depths.
func TrianglePerspective(clip [3]math.Vec4, fs PerspectiveFragmentStage, fb *core.Image, zb *DepthBuffer) int {
	return Primitive{Clip: clip, Perspective: fs}.Draw(fb, zb)
}

// Viewport maps a clip-space position to raster space: pixel x and y with
// the origin at the top-left, and the reciprocal of NDC z.
func Viewport(clip math.Vec4, width, height int) math.Vec3 {
	ndc := clip.PerspectiveDivide()
	return math.Vec3{
		X: (ndc.X + 1) / 2 * float32(width),
		Y: (1 - ndc.Y) / 2 * float32(height),
		Z: 1 / ndc.Z,
	}
}

// Edge returns the signed edge function of c against the directed edge a→b:
// (c.x-a.x)(b.y-a.y) - (c.y-a.y)(b.x-a.x). Its value at the third vertex is
// the signed doubled area of the triangle.
func Edge(a, b, c math.Vec2) float32 {
	return (c.X-a.X)*(b.Y-a.Y) - (c.Y-a.Y)*(b.X-a.X)
}

// Barycentric returns the screen-space weights of p in triangle (a, b, c) and
// whether p is covered. Weights are undefined when the triangle is degenerate.
func Barycentric(a, b, c, p math.Vec2) (w math.Vec3, inside bool) {
	area := Edge(a, b, c)
	if stdmath.Abs(float64(area)) < degenerateArea {
		return math.Vec3{}, false
	}
	w0, w1, w2 := Edge(b, c, p), Edge(c, a, p), Edge(a, b, p)
	return math.Vec3{X: w0 / area, Y: w1 / area, Z: w2 / area}, covers(area, w0, w1, w2)
}

func covers(area, w0, w1, w2 float32) bool {
	if area > 0 {
		return w0 >= 0 && w1 >= 0 && w2 >= 0
	}
	return w0 <= 0 && w1 <= 0 && w2 <= 0
}

// triangle is the per-primitive setup shared by every tile that walks it.
type triangle struct {
	v      [3]math.Vec3 // raster space
	area   float32
	bounds image.Rectangle
}

// setupTriangle projects clip to raster space and computes the pixel bounds.
// It reports false for triangles that cannot produce a fragment: off screen,
// zero area, or with a vertex that does not project to a finite point.
func setupTriangle(clip [3]math.Vec4, width, height int) (triangle, bool) {
	var t triangle
	for i := range clip {
		t.v[i] = Viewport(clip[i], width, height)
		if !t.v[i].IsFinite() {
			return t, false
		}
	}

	minX := min(t.v[0].X, t.v[1].X, t.v[2].X)
	maxX := max(t.v[0].X, t.v[1].X, t.v[2].X)
	minY := min(t.v[0].Y, t.v[1].Y, t.v[2].Y)
	maxY := max(t.v[0].Y, t.v[1].Y, t.v[2].Y)
	if maxX < 0 || maxY < 0 || minX > float32(width-1) || minY > float32(height-1) {
		return t, false
	}

	t.area = Edge(t.v[0].XY(), t.v[1].XY(), t.v[2].XY())
	if stdmath.Abs(float64(t.area)) < degenerateArea {
		return t, false
	}

	x0 := max(0, int(stdmath.Floor(float64(minX))))
	y0 := max(0, int(stdmath.Floor(float64(minY))))
	x1 := min(width-1, int(stdmath.Ceil(float64(maxX))))
	y1 := min(height-1, int(stdmath.Ceil(float64(maxY))))
	t.bounds = image.Rect(x0, y0, x1+1, y1+1)
	return t, true
}

// walk visits the pixels of t inside clip and returns how many were written.
func (t *triangle) walk(clip image.Rectangle, p Primitive, fb *core.Image, zb *DepthBuffer) int {
	r := t.bounds.Intersect(clip)
	if r.Empty() {
		return 0
	}

	a, b, c := t.v[0].XY(), t.v[1].XY(), t.v[2].XY()
	rz := math.Vec3{X: t.v[0].Z, Y: t.v[1].Z, Z: t.v[2].Z}
	written := 0

	for y := r.Min.Y; y < r.Max.Y; y++ {
		row := y * zb.Width
		for x := r.Min.X; x < r.Max.X; x++ {
			px := math.Vec2{X: float32(x) + 0.5, Y: float32(y) + 0.5}
			w0, w1, w2 := Edge(b, c, px), Edge(c, a, px), Edge(a, b, px)
			if !covers(t.area, w0, w1, w2) {
				continue
			}
			w0, w1, w2 = w0/t.area, w1/t.area, w2/t.area

			oneOverZ := w0*rz.X + w1*rz.Y + w2*rz.Z
			z := 1 / oneOverZ
			if !isFinite(z) || !(z < zb.Data[row+x]) {
				continue
			}

			var (
				col     core.Color
				discard bool
			)
			if p.Perspective != nil {
				col, discard = p.Perspective.FragmentPerspective(math.Vec4{X: w0, Y: w1, Z: w2, W: z}, rz)
			} else {
				bar := math.Vec4{X: w0 * rz.X * z, Y: w1 * rz.Y * z, Z: w2 * rz.Z * z, W: z}
				col, discard = p.Fragment.Fragment(bar)
			}
			if discard {
				continue
			}
			fb.Set(x, y, col)
			zb.Data[row+x] = z
			written++
		}
	}
	return written
}

// clipRect is the pixel area both buffers cover.
func clipRect(fb *core.Image, zb *DepthBuffer) image.Rectangle {
	return image.Rect(0, 0, fb.Width, fb.Height).Intersect(zb.Bounds())
}

func isFinite(f float32) bool {
	return !stdmath.IsInf(float64(f), 0) && !stdmath.IsNaN(float64(f))
}
