// Command viewer renders a model on the CPU every frame and shows the result
// in a window. Arrow keys or WASD orbit, the scroll wheel zooms, Space cycles
// the shader, P toggles auto-rotation and Escape quits.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"runtime"

	"soft-render/core"
	"soft-render/math"
	"soft-render/opengl"
	"soft-render/renderer"
	"soft-render/scene"
	"soft-render/textures"
)

const (
	orbitSpeed = 1.5 // radians per second
	zoomStep   = 0.1 // fraction of the distance per scroll notch
)

// orbitController turns key state into camera motion.
type orbitController struct {
	camera   *scene.OrbitCamera
	autoSpin bool
	pWasDown bool
}

func (oc *orbitController) Update(window *opengl.Window, dt float32) {
	// Cap dt so a stalled frame does not spin the camera.
	if dt > 0.1 {
		dt = 0.1
	}
	step := orbitSpeed * dt

	pDown := window.IsKeyPressed(opengl.KeyP)
	if pDown && !oc.pWasDown {
		oc.autoSpin = !oc.autoSpin
	}
	oc.pWasDown = pDown

	var yaw, pitch float32
	if oc.autoSpin {
		yaw += step * 0.25
	}
	if window.IsKeyPressed(opengl.KeyLeft) || window.IsKeyPressed(opengl.KeyA) {
		yaw -= step
	}
	if window.IsKeyPressed(opengl.KeyRight) || window.IsKeyPressed(opengl.KeyD) {
		yaw += step
	}
	if window.IsKeyPressed(opengl.KeyUp) || window.IsKeyPressed(opengl.KeyW) {
		pitch += step
	}
	if window.IsKeyPressed(opengl.KeyDown) || window.IsKeyPressed(opengl.KeyS) {
		pitch -= step
	}
	if yaw != 0 || pitch != 0 {
		oc.camera.Orbit(yaw, pitch)
	}
}

func (oc *orbitController) Scroll(_, yoff float64) {
	oc.camera.Zoom(-float32(yoff) * zoomStep * oc.camera.Distance)
}

// frameModel points an orbit camera at the model's bounds, far enough back
// that the bounding sphere fits the vertical field of view.
func frameModel(model *scene.Model, aspect float32) *scene.OrbitCamera {
	const fovY = 45
	box, ok := model.Bounds()
	if !ok {
		return scene.NewOrbitCamera(math.Vec3{}, 3, fovY, aspect)
	}
	radius := box.Radius()
	if radius < 1e-3 {
		radius = 1
	}
	cam := scene.NewOrbitCamera(box.Center(), radius*2.6, fovY, aspect)
	cam.Near = radius * 0.01
	cam.Far = radius * 100
	return cam
}

func run() error {
	modelPath := flag.String("model", "", "glTF, GLB or OBJ model (default: a textured cube)")
	shaderName := flag.String("shader", "textured", "textured, flat or depth")
	workers := flag.Int("workers", runtime.NumCPU(), "parallel tile workers")
	verbose := flag.Bool("v", false, "enable debug logging")
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	core.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	kind, err := renderer.ParseShaderKind(*shaderName)
	if err != nil {
		return err
	}

	var model *scene.Model
	if *modelPath != "" {
		model, err = scene.LoadModel(*modelPath)
		if err != nil {
			return fmt.Errorf("failed to load model: %w", err)
		}
	} else {
		cube := scene.CreateCube(1)
		cube.Textures = append(cube.Textures, textures.NewCheckerTexture("checker", 8,
			core.Color{R: 0.9, G: 0.9, B: 0.9, A: 1},
			core.Color{R: 0.2, G: 0.3, B: 0.6, A: 1}))
		model = scene.NewModel("cube", cube)
	}

	windowConfig := opengl.DefaultWindowConfig()
	windowConfig.Title = "soft-render - " + model.Name

	window, err := opengl.NewWindow(windowConfig)
	if err != nil {
		return err
	}
	defer window.Destroy()

	presenter, err := opengl.NewPresenter()
	if err != nil {
		return err
	}
	defer presenter.Destroy()

	r, err := renderer.New(renderer.Options{
		Width:          window.Width,
		Height:         window.Height,
		ClearColor:     core.Color{R: 0.1, G: 0.1, B: 0.12, A: 1},
		Workers:        *workers,
		TileSize:       64,
		FrustumCulling: true,
	})
	if err != nil {
		return err
	}

	controller := &orbitController{camera: frameModel(model, r.Aspect())}
	spaceWasDown := false
	window.SetScrollCallback(controller.Scroll)

	light := math.Vec3{X: 1, Y: 1, Z: 1}
	ctx := context.Background()
	lastTime := window.Time()
	lastTitle := lastTime
	frames := 0

	for !window.ShouldClose() {
		now := window.Time()
		dt := float32(now - lastTime)
		lastTime = now

		window.PollEvents()
		if window.IsKeyPressed(opengl.KeyEscape) {
			break
		}
		controller.Update(window, dt)

		spaceDown := window.IsKeyPressed(opengl.KeySpace)
		if spaceDown && !spaceWasDown {
			kind = (kind + 1) % (renderer.ShaderDepth + 1)
			core.Logger().Info("shader", "kind", kind)
		}
		spaceWasDown = spaceDown

		fbw, fbh := r.Framebuffer().Width, r.Framebuffer().Height
		if (window.Width != fbw || window.Height != fbh) && window.Width > 0 && window.Height > 0 {
			if err := r.Resize(window.Width, window.Height); err != nil {
				return err
			}
			controller.camera.UpdateAspectRatio(float32(window.Width), float32(window.Height))
		}

		if err := r.RenderModel(ctx, model, controller.camera.Frame(), light, kind); err != nil {
			return err
		}

		w, h := window.GetFramebufferSize()
		presenter.Present(r.Framebuffer(), w, h)
		window.SwapBuffers()

		frames++
		if now-lastTitle >= 1 {
			stats := r.Stats()
			window.SetTitle(fmt.Sprintf("soft-render - %s - %s - %d fps - %d tris", model.Name, kind, frames, stats.Triangles))
			frames = 0
			lastTitle = now
		}
	}
	return nil
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "viewer: %v\n", err)
		os.Exit(1)
	}
}
