package io

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	remath "soft-render/math"
)

var (
	// ErrInvalidConfig wraps every render configuration validation failure.
	ErrInvalidConfig = errors.New("invalid render config")
	// ErrInvalidCamera marks camera parameters the projection builder cannot
	// handle (near/far, fov, or an up vector parallel to the view direction).
	ErrInvalidCamera = errors.New("invalid camera")
)

// RenderConfig describes one offline render: what to load, where to look
// from, and where to write the image. It is read from YAML or JSON.
type RenderConfig struct {
	Width          int          `yaml:"width" json:"width"`
	Height         int          `yaml:"height" json:"height"`
	Model          string       `yaml:"model" json:"model"`
	Output         string       `yaml:"output" json:"output"`
	Shader         string       `yaml:"shader" json:"shader"` // "textured", "flat" or "depth"
	Wrap           string       `yaml:"wrap" json:"wrap"`     // "clamp" or "repeat"
	Workers        int          `yaml:"workers" json:"workers"`
	TileSize       int          `yaml:"tile_size" json:"tile_size"`
	FrustumCulling bool         `yaml:"frustum_culling" json:"frustum_culling"`
	ClearColor     [4]float32   `yaml:"clear_color" json:"clear_color"`
	Camera         CameraConfig `yaml:"camera" json:"camera"`
	Light          LightConfig  `yaml:"light" json:"light"`
}

// CameraConfig holds the look-at and projection parameters. FovY is in degrees.
type CameraConfig struct {
	Eye    [3]float32 `yaml:"eye" json:"eye"`
	Center [3]float32 `yaml:"center" json:"center"`
	Up     [3]float32 `yaml:"up" json:"up"`
	FovY   float32    `yaml:"fovy" json:"fovy"`
	Near   float32    `yaml:"near" json:"near"`
	Far    float32    `yaml:"far" json:"far"`
}

type LightConfig struct {
	// Direction points from the surface toward the light.
	Direction [3]float32 `yaml:"direction" json:"direction"`
}

// DefaultConfig returns a config that renders a model at the origin from a
// camera on +Z.
func DefaultConfig() *RenderConfig {
	return &RenderConfig{
		Width:      800,
		Height:     600,
		Output:     "out.png",
		Shader:     "textured",
		Wrap:       "clamp",
		Workers:    1,
		TileSize:   64,
		ClearColor: [4]float32{0, 0, 0, 1},
		Camera: CameraConfig{
			Eye:    [3]float32{1, 1, 3},
			Center: [3]float32{0, 0, 0},
			Up:     [3]float32{0, 1, 0},
			FovY:   45,
			Near:   0.1,
			Far:    100,
		},
		Light: LightConfig{
			Direction: [3]float32{1, 1, 1},
		},
	}
}

// LoadConfig reads a .yaml, .yml or .json file on top of DefaultConfig, so
// omitted fields keep their defaults.
func LoadConfig(path string) (*RenderConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, cfg)
	case ".json":
		err = json.Unmarshal(data, cfg)
	default:
		return nil, fmt.Errorf("config %q: unknown extension %q", path, ext)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	return cfg, nil
}

// SaveConfig writes cfg as YAML or JSON depending on the extension.
func SaveConfig(path string, cfg *RenderConfig) error {
	var (
		data []byte
		err  error
	)
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		data, err = yaml.Marshal(cfg)
	case ".json":
		data, err = json.MarshalIndent(cfg, "", "  ")
	default:
		return fmt.Errorf("config %q: unknown extension %q", path, ext)
	}
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}

// Validate checks the preconditions the pipeline does not check itself.
func (c *RenderConfig) Validate() error {
	if c.Width <= 0 || c.Height <= 0 {
		return fmt.Errorf("%w: size %dx%d", ErrInvalidConfig, c.Width, c.Height)
	}
	if c.Workers < 0 {
		return fmt.Errorf("%w: workers %d", ErrInvalidConfig, c.Workers)
	}
	if c.Workers > 1 && c.TileSize <= 0 {
		return fmt.Errorf("%w: tile_size %d", ErrInvalidConfig, c.TileSize)
	}
	switch c.Shader {
	case "", "textured", "flat", "depth":
	default:
		return fmt.Errorf("%w: shader %q", ErrInvalidConfig, c.Shader)
	}
	switch c.Wrap {
	case "", "clamp", "repeat":
	default:
		return fmt.Errorf("%w: wrap %q", ErrInvalidConfig, c.Wrap)
	}
	if err := c.Camera.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}

// Validate reports camera parameters that would give a degenerate view or
// projection matrix.
func (c CameraConfig) Validate() error {
	if !(c.Near > 0 && c.Far > c.Near) {
		return fmt.Errorf("%w: need 0 < near < far, got near=%v far=%v", ErrInvalidCamera, c.Near, c.Far)
	}
	if !(c.FovY > 0 && c.FovY < 180) {
		return fmt.Errorf("%w: fovy %v outside (0, 180)", ErrInvalidCamera, c.FovY)
	}
	view := ArrayToVec3(c.Eye).Sub(ArrayToVec3(c.Center))
	up := ArrayToVec3(c.Up)
	if view.LengthSqr() == 0 || up.LengthSqr() == 0 {
		return fmt.Errorf("%w: eye equals center or up is zero", ErrInvalidCamera)
	}
	sin := view.Normalize().Cross(up.Normalize()).Length()
	if sin < 1e-4 || math.IsNaN(float64(sin)) {
		return fmt.Errorf("%w: up %v is parallel to the view direction", ErrInvalidCamera, c.Up)
	}
	return nil
}

// ArrayToVec3 converts a [3]float32 to Vec3
func ArrayToVec3(a [3]float32) remath.Vec3 {
	return remath.Vec3{X: a[0], Y: a[1], Z: a[2]}
}

// Vec3ToArray converts a Vec3 to a [3]float32
func Vec3ToArray(v remath.Vec3) [3]float32 {
	return [3]float32{v.X, v.Y, v.Z}
}
