package shader

import (
	"soft-render/core"
	"soft-render/math"
	"soft-render/raster"
)

// Depth renders the interpolated NDC depth as gray, white at Min and black
// at Max. Fragments outside [Min, Max] are discarded.
type Depth struct {
	U        *Uniforms
	Min, Max float32
}

// NewDepth visualizes the full NDC range [-1, 1].
func NewDepth(u *Uniforms) *Depth {
	return &Depth{U: u, Min: -1, Max: 1}
}

func (s *Depth) Vertex(in core.Vertex, nth int) math.Vec4 {
	return s.U.MVP.MulVec(in.Position.ToVec4(1))
}

// Primitive needs no snapshot: Depth keeps no varyings.
func (s *Depth) Primitive(clip [3]math.Vec4) raster.Primitive {
	return raster.Primitive{Clip: clip, Fragment: s}
}

func (s *Depth) Fragment(bar math.Vec4) (core.Color, bool) {
	z := bar.W
	if z < s.Min || z > s.Max || s.Max <= s.Min {
		return core.Color{}, true
	}
	g := 1 - (z-s.Min)/(s.Max-s.Min)
	return core.Color{R: g, G: g, B: g, A: 1}, false
}
