package io

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"soft-render/core"
)

func testImage() *core.Image {
	img := core.NewImage(3, 2)
	img.Set(0, 0, core.ColorRed)
	img.Set(1, 0, core.ColorGreen)
	img.Set(2, 0, core.ColorBlue)
	img.Set(0, 1, core.ColorWhite)
	img.Set(1, 1, core.ColorBlack)
	img.Set(2, 1, core.ColorYellow)
	return img
}

func TestImageRoundTrip(t *testing.T) {
	dir := t.TempDir()
	src := testImage()

	for _, ext := range []string{".png", ".bmp", ".tiff"} {
		t.Run(ext, func(t *testing.T) {
			path := filepath.Join(dir, "img"+ext)
			if err := SaveImage(path, src); err != nil {
				t.Fatalf("SaveImage: %v", err)
			}
			got, err := LoadImage(path)
			if err != nil {
				t.Fatalf("LoadImage: %v", err)
			}
			if got.Width != src.Width || got.Height != src.Height {
				t.Fatalf("size = %dx%d, want %dx%d", got.Width, got.Height, src.Width, src.Height)
			}
			if !bytes.Equal(got.Pixels, src.Pixels) {
				t.Errorf("pixels differ:\n got %v\nwant %v", got.Pixels, src.Pixels)
			}
		})
	}
}

func TestSaveImageUnsupported(t *testing.T) {
	path := filepath.Join(t.TempDir(), "img.gif")
	err := SaveImage(path, testImage())
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("err = %v, want ErrUnsupportedFormat", err)
	}
	if _, statErr := os.Stat(path); !os.IsNotExist(statErr) {
		t.Error("file created for unsupported format")
	}
}

func TestDecodeImageGarbage(t *testing.T) {
	if _, err := DecodeImage(bytes.NewReader([]byte("not an image"))); err == nil {
		t.Error("expected decode error")
	}
}

func TestConfigRoundTrip(t *testing.T) {
	dir := t.TempDir()
	cfg := DefaultConfig()
	cfg.Model = "models/box.gltf"
	cfg.Workers = 4
	cfg.Wrap = "repeat"
	cfg.Camera.Eye = [3]float32{0, 2, 5}

	for _, name := range []string{"render.yaml", "render.json"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, name)
			if err := SaveConfig(path, cfg); err != nil {
				t.Fatalf("SaveConfig: %v", err)
			}
			got, err := LoadConfig(path)
			if err != nil {
				t.Fatalf("LoadConfig: %v", err)
			}
			if *got != *cfg {
				t.Errorf("got %+v, want %+v", *got, *cfg)
			}
		})
	}
}

func TestLoadConfigKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "partial.yaml")
	data := "width: 320\nheight: 240\nmodel: cube.obj\n"
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Width != 320 || cfg.Height != 240 || cfg.Model != "cube.obj" {
		t.Errorf("explicit fields not applied: %+v", cfg)
	}
	def := DefaultConfig()
	if cfg.Camera != def.Camera || cfg.Output != def.Output {
		t.Errorf("defaults lost: camera %+v output %q", cfg.Camera, cfg.Output)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestLoadConfigUnknownExtension(t *testing.T) {
	path := filepath.Join(t.TempDir(), "render.toml")
	if err := os.WriteFile(path, []byte("width = 1"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadConfig(path); err == nil {
		t.Error("expected error for .toml")
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*RenderConfig)
		camera bool
	}{
		{"zero width", func(c *RenderConfig) { c.Width = 0 }, false},
		{"negative workers", func(c *RenderConfig) { c.Workers = -1 }, false},
		{"parallel without tiles", func(c *RenderConfig) { c.Workers = 4; c.TileSize = 0 }, false},
		{"unknown shader", func(c *RenderConfig) { c.Shader = "toon" }, false},
		{"unknown wrap", func(c *RenderConfig) { c.Wrap = "mirror" }, false},
		{"zero near", func(c *RenderConfig) { c.Camera.Near = 0 }, true},
		{"far before near", func(c *RenderConfig) { c.Camera.Far = 0.05 }, true},
		{"fov 180", func(c *RenderConfig) { c.Camera.FovY = 180 }, true},
		{"eye at center", func(c *RenderConfig) { c.Camera.Eye = c.Camera.Center }, true},
		{"up along view", func(c *RenderConfig) {
			c.Camera.Eye = [3]float32{0, 5, 0}
			c.Camera.Up = [3]float32{0, 1, 0}
		}, true},
	}

	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if !errors.Is(err, ErrInvalidConfig) {
				t.Fatalf("err = %v, want ErrInvalidConfig", err)
			}
			if got := errors.Is(err, ErrInvalidCamera); got != tt.camera {
				t.Errorf("errors.Is(ErrInvalidCamera) = %v, want %v", got, tt.camera)
			}
		})
	}
}
