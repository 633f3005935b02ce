package textures

import (
	"fmt"
	"math"

	"soft-render/core"
)

// WrapMode decides what Sample does with UVs outside [0, 1].
type WrapMode int

const (
	// WrapClamp clamps UV to [0, 1]; u = 1 maps to the last texel.
	WrapClamp WrapMode = iota
	// WrapRepeat keeps the fractional part, so the image tiles.
	WrapRepeat
)

func (w WrapMode) String() string {
	switch w {
	case WrapClamp:
		return "clamp"
	case WrapRepeat:
		return "repeat"
	}
	return fmt.Sprintf("WrapMode(%d)", int(w))
}

// ParseWrapMode parses "clamp" or "repeat". The empty string means clamp.
func ParseWrapMode(s string) (WrapMode, error) {
	switch s {
	case "", "clamp":
		return WrapClamp, nil
	case "repeat":
		return WrapRepeat, nil
	}
	return 0, fmt.Errorf("unknown wrap mode %q", s)
}

// Sample returns the texel nearest to (u, v): column floor(u*width), row
// floor(v*height), with v = 0 on the top row. A nil or empty image samples
// as opaque white so an unbound slot leaves the lit color unchanged.
func Sample(img *core.Image, u, v float32, wrap WrapMode) core.Color {
	if img == nil || img.Width == 0 || img.Height == 0 {
		return core.ColorWhite
	}

	switch wrap {
	case WrapRepeat:
		u = fract(u)
		v = fract(v)
	default:
		u = clampUnit(u)
		v = clampUnit(v)
	}

	x := int(u * float32(img.Width))
	y := int(v * float32(img.Height))
	if x >= img.Width {
		x = img.Width - 1
	}
	if y >= img.Height {
		y = img.Height - 1
	}
	return img.Get(x, y)
}

// SampleTexture samples tex, treating a nil texture like Sample treats a nil image.
func SampleTexture(tex *Texture, u, v float32, wrap WrapMode) core.Color {
	if tex == nil {
		return core.ColorWhite
	}
	return Sample(tex.Image, u, v, wrap)
}

func fract(f float32) float32 {
	f -= float32(math.Floor(float64(f)))
	// float rounding can land exactly on 1 for tiny negative inputs
	if f >= 1 {
		f = 0
	}
	return f
}

func clampUnit(f float32) float32 {
	if f < 0 || f != f {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}
