// Command softrender renders a model to an image file on the CPU.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/schollz/progressbar/v3"

	"soft-render/core"
	"soft-render/io"
	"soft-render/renderer"
	"soft-render/scene"
	"soft-render/textures"
)

type softrender struct {
	cfg     *io.RenderConfig
	verbose bool
}

func (s *softrender) parseArgs(args []string) error {
	fs := flag.NewFlagSet(args[0], flag.ExitOnError)

	configPath := fs.String("config", "", "YAML or JSON render config")
	model := fs.String("model", "", "glTF, GLB or OBJ model to render (default: a unit cube)")
	out := fs.String("out", "", "output image (.png, .bmp, .tif)")
	width := fs.Int("width", 0, "image width in pixels")
	height := fs.Int("height", 0, "image height in pixels")
	workers := fs.Int("workers", -1, "parallel tile workers; 0 or 1 renders sequentially")
	shaderName := fs.String("shader", "", "textured, flat or depth")
	fs.BoolVar(&s.verbose, "v", false, "enable debug logging")

	if err := fs.Parse(args[1:]); err != nil {
		return fmt.Errorf("failed to parse args: %w", err)
	}

	if *configPath != "" {
		cfg, err := io.LoadConfig(*configPath)
		if err != nil {
			return err
		}
		s.cfg = cfg
	} else {
		s.cfg = io.DefaultConfig()
	}

	if *model != "" {
		s.cfg.Model = *model
	}
	if *out != "" {
		s.cfg.Output = *out
	}
	if *width > 0 {
		s.cfg.Width = *width
	}
	if *height > 0 {
		s.cfg.Height = *height
	}
	if *workers >= 0 {
		s.cfg.Workers = *workers
	}
	if *shaderName != "" {
		s.cfg.Shader = *shaderName
	}
	return s.cfg.Validate()
}

func (s *softrender) loadModel() (*scene.Model, error) {
	if s.cfg.Model == "" {
		return scene.NewModel("cube", scene.CreateCube(1)), nil
	}
	return scene.LoadModel(s.cfg.Model)
}

func (s *softrender) run(ctx context.Context) error {
	cfg := s.cfg

	kind, err := renderer.ParseShaderKind(cfg.Shader)
	if err != nil {
		return err
	}
	wrap, err := textures.ParseWrapMode(cfg.Wrap)
	if err != nil {
		return err
	}

	model, err := s.loadModel()
	if err != nil {
		return fmt.Errorf("failed to load model: %w", err)
	}

	bar := progressbar.Default(int64(len(model.Meshes)), "rendering")
	defer bar.Close()

	r, err := renderer.New(renderer.Options{
		Width:  cfg.Width,
		Height: cfg.Height,
		ClearColor: core.Color{
			R: cfg.ClearColor[0], G: cfg.ClearColor[1], B: cfg.ClearColor[2], A: cfg.ClearColor[3],
		},
		Workers:        cfg.Workers,
		TileSize:       cfg.TileSize,
		FrustumCulling: cfg.FrustumCulling,
		Wrap:           wrap,
		Progress: func(done, total int) {
			bar.Set(done)
		},
	})
	if err != nil {
		return err
	}

	camera := scene.CameraFromConfig(cfg.Camera, r.Aspect())
	light := io.ArrayToVec3(cfg.Light.Direction)

	start := time.Now()
	if err := r.RenderModel(ctx, model, camera.Frame(), light, kind); err != nil {
		return fmt.Errorf("failed to render: %w", err)
	}
	stats := r.Stats()
	core.Logger().Info("frame rendered",
		"triangles", stats.Triangles,
		"fragments", stats.Fragments,
		"culled", stats.Culled,
		"elapsed", time.Since(start))

	if err := io.SaveImage(cfg.Output, r.Framebuffer()); err != nil {
		return err
	}
	core.Logger().Info("image written", "path", cfg.Output)
	return nil
}

func main() {
	s := softrender{}

	err := s.parseArgs(os.Args)
	if err == nil {
		level := slog.LevelInfo
		if s.verbose {
			level = slog.LevelDebug
		}
		core.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		err = s.run(ctx)
		stop()
	}

	if err != nil {
		if errors.Is(err, io.ErrInvalidConfig) || errors.Is(err, io.ErrInvalidCamera) {
			fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
			os.Exit(2)
		}
		fmt.Fprintf(os.Stderr, "softrender: %v\n", err)
		os.Exit(1)
	}
}
