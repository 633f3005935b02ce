package raster

import (
	"bytes"
	"context"
	"errors"
	stdmath "math"
	"math/rand"
	"testing"

	"soft-render/core"
	"soft-render/math"
)

const size = 16

func approx(a, b float32) bool {
	return stdmath.Abs(float64(a-b)) < 1e-4
}

// clipAt returns the clip position (w = 1) that lands on raster point (x, y)
// of a size×size target with NDC depth z.
func clipAt(x, y, z float32) math.Vec4 {
	return math.Vec4{X: 2*x/size - 1, Y: 1 - 2*y/size, Z: z, W: 1}
}

func newTarget() (*core.Image, *DepthBuffer) {
	return core.NewImage(size, size), NewDepthBuffer(size, size)
}

// solid shades every fragment with one color.
type solid core.Color

func (s solid) Fragment(math.Vec4) (core.Color, bool) { return core.Color(s), false }

type discardAll struct{ calls int }

func (d *discardAll) Fragment(math.Vec4) (core.Color, bool) {
	d.calls++
	return core.ColorRed, true
}

// recorder remembers the barycentric input of the last fragment shaded at
// each pixel. The pixel is recovered from the interpolated screen position.
type recorder struct {
	screen [3]math.Vec2
	bars   map[[2]int]math.Vec4
	recipZ math.Vec3
}

func newRecorder(clip [3]math.Vec4) *recorder {
	r := &recorder{bars: make(map[[2]int]math.Vec4)}
	for i, c := range clip {
		r.screen[i] = Viewport(c, size, size).XY()
	}
	return r
}

func (r *recorder) pixel(bar math.Vec4) [2]int {
	p := math.Barycentric2(r.screen[0], r.screen[1], r.screen[2], math.Vec3{X: bar.X, Y: bar.Y, Z: bar.Z})
	return [2]int{int(p.X), int(p.Y)}
}

func (r *recorder) FragmentPerspective(bar math.Vec4, recipZ math.Vec3) (core.Color, bool) {
	r.bars[r.pixel(bar)] = bar
	r.recipZ = recipZ
	return core.ColorWhite, false
}

func fullScreen(z float32) [3]math.Vec4 {
	return [3]math.Vec4{
		{X: -1, Y: -1, Z: z, W: 1},
		{X: 3, Y: -1, Z: z, W: 1},
		{X: -1, Y: 3, Z: z, W: 1},
	}
}

func TestEdgeAndBarycentric(t *testing.T) {
	a, b, c := math.Vec2{}, math.Vec2{X: 10}, math.Vec2{Y: 10}
	if area := Edge(a, b, c); area != -100 {
		t.Errorf("Edge(a, b, c) = %v, want -100", area)
	}

	tests := []struct {
		name   string
		p      math.Vec2
		inside bool
	}{
		{"near corner", math.Vec2{X: 1.5, Y: 1.5}, true},
		{"past hypotenuse", math.Vec2{X: 9.5, Y: 9.5}, false},
		{"outside left", math.Vec2{X: -0.5, Y: 5}, false},
		{"on edge", math.Vec2{X: 5, Y: 0}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, inside := Barycentric(a, b, c, tt.p); inside != tt.inside {
				t.Errorf("inside = %v, want %v", inside, tt.inside)
			}
		})
	}

	w, inside := Barycentric(a, b, c, math.Vec2{X: 10.0 / 3, Y: 10.0 / 3})
	if !inside || !approx(w.X, 1.0/3) || !approx(w.Y, 1.0/3) || !approx(w.Z, 1.0/3) {
		t.Errorf("centroid weights = %v (inside %v)", w, inside)
	}

	// Reversed winding flips the area sign but not coverage.
	if _, inside := Barycentric(a, c, b, math.Vec2{X: 1.5, Y: 1.5}); !inside {
		t.Error("reversed winding not covered")
	}
}

func TestTriangleCoverage(t *testing.T) {
	clip := [3]math.Vec4{clipAt(0, 0, 0.5), clipAt(10, 0, 0.5), clipAt(0, 10, 0.5)}

	for _, order := range [][3]int{{0, 1, 2}, {0, 2, 1}} {
		fb, zb := newTarget()
		tri := [3]math.Vec4{clip[order[0]], clip[order[1]], clip[order[2]]}
		n := Triangle(tri, solid(core.ColorRed), fb, zb)

		want := 0
		for y := 0; y < size; y++ {
			for x := 0; x < size; x++ {
				p := math.Vec2{X: float32(x) + 0.5, Y: float32(y) + 0.5}
				_, inside := Barycentric(math.Vec2{}, math.Vec2{X: 10}, math.Vec2{Y: 10}, p)
				got := fb.Get(x, y) == core.ColorRed
				if inside != got {
					t.Errorf("order %v: pixel (%d,%d) drawn=%v, want %v", order, x, y, got, inside)
				}
				if inside {
					want++
				}
			}
		}
		if n != want {
			t.Errorf("order %v: Triangle returned %d, want %d", order, n, want)
		}
		if fb.Get(1, 1) != core.ColorRed || fb.Get(9, 9) == core.ColorRed {
			t.Errorf("order %v: (1,1) or (9,9) wrong", order)
		}
	}
}

func TestTriangleInterpolatesReciprocalDepth(t *testing.T) {
	clip := [3]math.Vec4{clipAt(0, 0, 0.25), clipAt(16, 0, 0.5), clipAt(0, 16, 1)}
	fb, zb := newTarget()
	rec := newRecorder(clip)
	if TrianglePerspective(clip, rec, fb, zb) == 0 {
		t.Fatal("nothing drawn")
	}
	if rec.recipZ != (math.Vec3{X: 4, Y: 2, Z: 1}) {
		t.Errorf("recipZ = %v, want (4,2,1)", rec.recipZ)
	}

	bar, ok := rec.bars[[2]int{2, 2}]
	if !ok {
		t.Fatal("pixel (2,2) not shaded")
	}
	w := math.Vec3{X: bar.X, Y: bar.Y, Z: bar.Z}
	if !approx(w.X+w.Y+w.Z, 1) {
		t.Errorf("screen weights sum to %v", w.X+w.Y+w.Z)
	}
	wantZ := 1 / (w.X*4 + w.Y*2 + w.Z*1)
	naive := w.X*0.25 + w.Y*0.5 + w.Z*1
	if !approx(bar.W, wantZ) {
		t.Errorf("depth = %v, want %v", bar.W, wantZ)
	}
	if approx(bar.W, naive) {
		t.Errorf("depth %v matches the affine mean of z", bar.W)
	}
	if !approx(zb.At(2, 2), bar.W) {
		t.Errorf("depth buffer holds %v, shaded with %v", zb.At(2, 2), bar.W)
	}
}

// corrected checks the weights the base stage receives.
type corrected struct {
	t    *testing.T
	seen int
}

func (c *corrected) Fragment(bar math.Vec4) (core.Color, bool) {
	c.seen++
	if sum := bar.X + bar.Y + bar.Z; !approx(sum, 1) {
		c.t.Errorf("corrected weights sum to %v", sum)
	}
	// Depth is the same weighted harmonic mean: Σ w'_i z_i = z.
	if d := bar.X*0.25 + bar.Y*0.5 + bar.Z*1; !approx(d, bar.W) {
		c.t.Errorf("Σ w'·z = %v, depth %v", d, bar.W)
	}
	return core.ColorWhite, false
}

func TestTriangleCorrectedWeights(t *testing.T) {
	clip := [3]math.Vec4{clipAt(0, 0, 0.25), clipAt(16, 0, 0.5), clipAt(0, 16, 1)}
	fb, zb := newTarget()
	c := &corrected{t: t}
	n := Triangle(clip, c, fb, zb)
	if n == 0 || c.seen != n {
		t.Errorf("written %d, shaded %d", n, c.seen)
	}
}

func TestDepthTest(t *testing.T) {
	near, far := fullScreen(0.5), fullScreen(0.8)

	draw := func(first, second [3]math.Vec4, c1, c2 core.Color) *core.Image {
		fb, zb := newTarget()
		Triangle(first, solid(c1), fb, zb)
		Triangle(second, solid(c2), fb, zb)
		return fb
	}

	a := draw(near, far, core.ColorRed, core.ColorBlue)
	b := draw(far, near, core.ColorBlue, core.ColorRed)
	if !bytes.Equal(a.Pixels, b.Pixels) {
		t.Error("result depends on draw order")
	}
	if a.Get(5, 5) != core.ColorRed {
		t.Errorf("pixel = %v, want the nearer red", a.Get(5, 5))
	}
}

func TestTriangleIdempotent(t *testing.T) {
	clip := [3]math.Vec4{clipAt(1, 1, 0.3), clipAt(14, 3, 0.6), clipAt(5, 15, 0.9)}
	fb, zb := newTarget()
	first := Triangle(clip, solid(core.ColorGreen), fb, zb)
	pixels := bytes.Clone(fb.Pixels)
	depth := append([]float32(nil), zb.Data...)

	if n := Triangle(clip, solid(core.ColorBlue), fb, zb); n != 0 {
		t.Errorf("second draw wrote %d fragments", n)
	}
	if first == 0 || !bytes.Equal(fb.Pixels, pixels) {
		t.Error("second draw changed the framebuffer")
	}
	for i := range depth {
		if depth[i] != zb.Data[i] {
			t.Fatalf("depth[%d] changed", i)
		}
	}
}

func TestTriangleDiscard(t *testing.T) {
	fb, zb := newTarget()
	d := &discardAll{}
	if n := Triangle(fullScreen(0.5), d, fb, zb); n != 0 {
		t.Errorf("wrote %d fragments", n)
	}
	if d.calls != size*size {
		t.Errorf("fragment stage called %d times, want %d", d.calls, size*size)
	}
	if fb.Get(3, 3) != (core.Color{}) || !stdmath.IsInf(float64(zb.At(3, 3)), 1) {
		t.Error("discarded fragment was committed")
	}
}

func TestTriangleSkipped(t *testing.T) {
	tests := []struct {
		name string
		clip [3]math.Vec4
	}{
		{"collinear", [3]math.Vec4{clipAt(0, 0, 0.5), clipAt(5, 5, 0.5), clipAt(10, 10, 0.5)}},
		{"repeated vertex", [3]math.Vec4{clipAt(3, 3, 0.5), clipAt(3, 3, 0.5), clipAt(10, 1, 0.5)}},
		{"off screen right", [3]math.Vec4{clipAt(20, 0, 0.5), clipAt(30, 0, 0.5), clipAt(20, 10, 0.5)}},
		{"off screen above", [3]math.Vec4{clipAt(0, -20, 0.5), clipAt(10, -20, 0.5), clipAt(0, -10, 0.5)}},
		{"w zero", [3]math.Vec4{{X: 0, Y: 0, Z: 0.5, W: 0}, clipAt(10, 0, 0.5), clipAt(0, 10, 0.5)}},
		{"ndc z zero", [3]math.Vec4{clipAt(0, 0, 0), clipAt(10, 0, 0.5), clipAt(0, 10, 0.5)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fb, zb := newTarget()
			if n := Triangle(tt.clip, solid(core.ColorRed), fb, zb); n != 0 {
				t.Errorf("wrote %d fragments", n)
			}
			for i, z := range zb.Data {
				if !stdmath.IsInf(float64(z), 1) {
					t.Fatalf("depth[%d] = %v", i, z)
				}
			}
		})
	}
}

func TestDepthBuffer(t *testing.T) {
	for _, n := range []int{1, 3, 7, 64} {
		zb := NewDepthBuffer(n, n)
		zb.Set(0, 0, 1)
		zb.Set(n, 0, 1) // ignored
		zb.Clear()
		for i, z := range zb.Data {
			if !stdmath.IsInf(float64(z), 1) {
				t.Fatalf("%dx%d: depth[%d] = %v after Clear", n, n, i, z)
			}
		}
	}
	zb := NewDepthBuffer(2, 2)
	zb.Set(1, 1, 0.25)
	if zb.At(1, 1) != 0.25 || !stdmath.IsInf(float64(zb.At(-1, 0)), 1) {
		t.Error("At/Set mismatch")
	}
}

// gradient colors a fragment from its weights so tiles must agree on them.
type gradient struct{ base core.Color }

func (g gradient) Fragment(bar math.Vec4) (core.Color, bool) {
	return core.Color{R: bar.X, G: bar.Y, B: bar.Z * g.base.B, A: 1}, false
}

func randomPrims(n int, seed uint64) []Primitive {
	rng := rand.New(rand.NewSource(int64(seed)))
	prims := make([]Primitive, n)
	for i := range prims {
		var clip [3]math.Vec4
		for k := range clip {
			clip[k] = math.Vec4{
				X: rng.Float32()*2.4 - 1.2,
				Y: rng.Float32()*2.4 - 1.2,
				Z: 0.1 + rng.Float32()*0.8,
				W: 1,
			}
		}
		prims[i] = Primitive{Clip: clip, Fragment: gradient{base: core.Color{B: float32(i%5) / 4}}}
	}
	return prims
}

func TestTileRendererMatchesSequential(t *testing.T) {
	const w, h = 97, 61
	prims := randomPrims(200, 42)

	seqFB, seqZB := core.NewImage(w, h), NewDepthBuffer(w, h)
	seqN := 0
	for _, p := range prims {
		seqN += p.Draw(seqFB, seqZB)
	}

	for _, tr := range []TileRenderer{
		{TileSize: 7, Workers: 3},
		{TileSize: 32, Workers: 0},
		{TileSize: 1000, Workers: 1},
	} {
		fb, zb := core.NewImage(w, h), NewDepthBuffer(w, h)
		n, err := tr.Render(context.Background(), prims, fb, zb)
		if err != nil {
			t.Fatalf("%+v: %v", tr, err)
		}
		if n != seqN {
			t.Errorf("%+v: %d fragments, sequential %d", tr, n, seqN)
		}
		if !bytes.Equal(fb.Pixels, seqFB.Pixels) {
			t.Errorf("%+v: color differs from sequential", tr)
		}
		for i := range zb.Data {
			if zb.Data[i] != seqZB.Data[i] {
				t.Errorf("%+v: depth[%d] = %v, sequential %v", tr, i, zb.Data[i], seqZB.Data[i])
				break
			}
		}
	}
}

func TestTileRendererCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	fb, zb := newTarget()
	_, err := TileRenderer{TileSize: 4, Workers: 2}.Render(ctx, []Primitive{{Clip: fullScreen(0.5), Fragment: solid(core.ColorRed)}}, fb, zb)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestTileRendererSizeMismatch(t *testing.T) {
	_, err := TileRenderer{}.Render(context.Background(), nil, core.NewImage(4, 4), NewDepthBuffer(4, 5))
	if !errors.Is(err, ErrSizeMismatch) {
		t.Errorf("err = %v, want ErrSizeMismatch", err)
	}
}

func TestTiles(t *testing.T) {
	tiles := Tiles(10, 5, 4)
	if len(tiles) != 6 {
		t.Fatalf("got %d tiles, want 6", len(tiles))
	}
	area := 0
	for _, r := range tiles {
		area += r.Dx() * r.Dy()
	}
	if area != 50 {
		t.Errorf("tiles cover %d pixels, want 50", area)
	}
	if last := tiles[len(tiles)-1]; last.Max.X != 10 || last.Max.Y != 5 {
		t.Errorf("last tile = %v", last)
	}
}

func BenchmarkTriangle(b *testing.B) {
	fb, zb := core.NewImage(256, 256), NewDepthBuffer(256, 256)
	clip := [3]math.Vec4{{X: -0.9, Y: -0.9, Z: 0.5, W: 1}, {X: 0.9, Y: -0.8, Z: 0.5, W: 1}, {X: 0, Y: 0.9, Z: 0.5, W: 1}}
	for i := 0; i < b.N; i++ {
		zb.Clear()
		Triangle(clip, solid(core.ColorWhite), fb, zb)
	}
}

func BenchmarkTileRenderer(b *testing.B) {
	const w, h = 512, 512
	prims := randomPrims(500, 7)
	fb, zb := core.NewImage(w, h), NewDepthBuffer(w, h)
	tr := TileRenderer{TileSize: 64}
	ctx := context.Background()
	for i := 0; i < b.N; i++ {
		zb.Clear()
		if _, err := tr.Render(ctx, prims, fb, zb); err != nil {
			b.Fatal(err)
		}
	}
}
