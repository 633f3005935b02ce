package renderer

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"soft-render/core"
	"soft-render/math"
	"soft-render/scene"
	"soft-render/shader"
	"soft-render/textures"
)

func testFrame(aspect float32) scene.Frame {
	cam := scene.NewCamera(60, aspect, 0.1, 100)
	cam.Eye = math.Vec3{X: 1.5, Y: 1.2, Z: 3}
	return cam.Frame()
}

func testModel() *scene.Model {
	cube := scene.CreateCube(1)
	cube.Textures = []*textures.Texture{textures.NewCheckerTexture("checker", 16, core.ColorWhite, core.ColorRed)}
	sphere := scene.CreateSphere(0.4, 16, 8)
	sphere.Transform = math.Mat4Translation(math.Vec3{X: 0.8, Y: 0.3, Z: 0.6})
	return scene.NewModel("test", cube, sphere)
}

func TestNewInvalidSize(t *testing.T) {
	for _, opts := range []Options{{Width: 0, Height: 10}, {Width: 10, Height: -1}} {
		if _, err := New(opts); !errors.Is(err, ErrInvalidSize) {
			t.Errorf("%+v: err = %v", opts, err)
		}
	}
}

func TestParseShaderKind(t *testing.T) {
	for _, k := range []ShaderKind{ShaderTextured, ShaderFlat, ShaderDepth} {
		got, err := ParseShaderKind(k.String())
		if err != nil || got != k {
			t.Errorf("ParseShaderKind(%q) = %v, %v", k.String(), got, err)
		}
	}
	if _, err := ParseShaderKind("toon"); err == nil {
		t.Error("expected error")
	}
}

func TestDrawValidatesIndices(t *testing.T) {
	r, err := New(Options{Width: 8, Height: 8})
	if err != nil {
		t.Fatal(err)
	}
	r.BeginFrame(testFrame(1))
	s := shader.NewFlat(shader.NewUniforms(testFrame(1), math.Mat4Identity()), core.ColorWhite)
	verts := scene.CreateTriangle().Vertices

	tests := []struct {
		name    string
		verts   []core.Vertex
		indices []uint32
		want    error
	}{
		{"short index list", verts, []uint32{0, 1}, scene.ErrBadIndexCount},
		{"index past end", verts, []uint32{0, 1, 3}, scene.ErrIndexOutOfRange},
		{"unindexed remainder", verts[:2], nil, scene.ErrBadIndexCount},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := Draw(r, s, tt.verts, tt.indices); !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
	if r.Stats().Triangles != 0 {
		t.Errorf("%d triangles submitted by invalid draws", r.Stats().Triangles)
	}
}

func TestBeginFrameClears(t *testing.T) {
	clearColor := core.Color{R: 0, G: 0, B: 1, A: 1}
	r, _ := New(Options{Width: 16, Height: 16, ClearColor: clearColor})
	frame := testFrame(1)
	if err := r.RenderModel(context.Background(), testModel(), frame, math.Vec3{Y: 1}, ShaderFlat); err != nil {
		t.Fatal(err)
	}
	if r.Stats().Fragments == 0 {
		t.Fatal("nothing drawn")
	}

	r.BeginFrame(frame)
	for y := 0; y < 16; y++ {
		for x := 0; x < 16; x++ {
			if r.Framebuffer().Get(x, y) != clearColor {
				t.Fatalf("pixel (%d,%d) not cleared", x, y)
			}
			if z := r.DepthBuffer().At(x, y); z < 1e30 {
				t.Fatalf("depth (%d,%d) = %v", x, y, z)
			}
		}
	}
	if r.Stats() != (Stats{}) {
		t.Errorf("stats not reset: %+v", r.Stats())
	}
}

func TestParallelMatchesSequential(t *testing.T) {
	const w, h = 120, 90
	frame := testFrame(float32(w) / h)
	model := testModel()

	for _, kind := range []ShaderKind{ShaderTextured, ShaderFlat, ShaderDepth} {
		t.Run(kind.String(), func(t *testing.T) {
			seq, _ := New(Options{Width: w, Height: h})
			par, _ := New(Options{Width: w, Height: h, Workers: 4, TileSize: 16})

			for _, r := range []*Renderer{seq, par} {
				if err := r.RenderModel(context.Background(), model, frame, math.Vec3{X: 1, Y: 2, Z: 1}, kind); err != nil {
					t.Fatal(err)
				}
			}
			if seq.Stats() != par.Stats() {
				t.Errorf("stats differ: %+v vs %+v", seq.Stats(), par.Stats())
			}
			if seq.Stats().Fragments == 0 {
				t.Error("nothing drawn")
			}
			if !bytes.Equal(seq.Framebuffer().Pixels, par.Framebuffer().Pixels) {
				t.Error("framebuffers differ")
			}
		})
	}
}

func TestFrustumCulling(t *testing.T) {
	frame := testFrame(1)
	behind := scene.CreateCube(1)
	behind.Transform = math.Mat4Translation(math.Vec3{X: 3, Y: 2.4, Z: 8})
	model := scene.NewModel("m", scene.CreateCube(1), behind)

	r, _ := New(Options{Width: 32, Height: 32, FrustumCulling: true})
	if err := r.RenderModel(context.Background(), model, frame, math.Vec3{Y: 1}, ShaderFlat); err != nil {
		t.Fatal(err)
	}
	st := r.Stats()
	if st.Meshes != 1 || st.Culled != 1 {
		t.Errorf("stats = %+v, want 1 drawn and 1 culled", st)
	}
	if st.Triangles != 12 {
		t.Errorf("triangles = %d, want the 12 of the visible cube", st.Triangles)
	}
}

func TestRenderModelProgressAndCancel(t *testing.T) {
	var calls []int
	r, _ := New(Options{Width: 16, Height: 16, Progress: func(done, total int) {
		if total != 2 {
			t.Errorf("total = %d", total)
		}
		calls = append(calls, done)
	}})
	if err := r.RenderModel(context.Background(), testModel(), testFrame(1), math.Vec3{Y: 1}, ShaderTextured); err != nil {
		t.Fatal(err)
	}
	if len(calls) != 2 || calls[1] != 2 {
		t.Errorf("progress calls = %v", calls)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := r.RenderModel(ctx, testModel(), testFrame(1), math.Vec3{Y: 1}, ShaderTextured); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestDrawAttribTriangle(t *testing.T) {
	r, _ := New(Options{Width: 32, Height: 32})
	frame := scene.Frame{View: math.Mat4Identity(), Projection: math.Mat4Identity()}
	r.BeginFrame(frame)

	s := shader.NewAttrib(shader.NewUniforms(frame, math.Mat4Identity()))
	verts := []shader.Attributes{
		{Position: math.Vec3{X: -1, Y: -1, Z: 0.5}, Color: core.ColorRed},
		{Position: math.Vec3{X: 1, Y: -1, Z: 0.5}, Color: core.ColorGreen},
		{Position: math.Vec3{X: -1, Y: 1, Z: 0.5}, Color: core.ColorBlue},
	}
	if err := Draw[shader.Attributes](r, s, verts, nil); err != nil {
		t.Fatal(err)
	}
	if err := r.EndFrame(context.Background()); err != nil {
		t.Fatal(err)
	}
	// Bottom-left corner is nearest the red vertex.
	if c := r.Framebuffer().Get(0, 31); c.R < 0.9 {
		t.Errorf("bottom-left = %v, want mostly red", c)
	}
	if r.Stats().Triangles != 1 || r.Stats().Fragments == 0 {
		t.Errorf("stats = %+v", r.Stats())
	}
}

func TestResize(t *testing.T) {
	r, _ := New(Options{Width: 4, Height: 4})
	if err := r.Resize(8, 2); err != nil {
		t.Fatal(err)
	}
	if r.Framebuffer().Width != 8 || r.DepthBuffer().Height != 2 || r.Aspect() != 4 {
		t.Error("buffers not resized")
	}
	if err := r.Resize(0, 2); !errors.Is(err, ErrInvalidSize) {
		t.Errorf("err = %v", err)
	}
}
