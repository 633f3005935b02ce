package shader

import (
	"soft-render/core"
	"soft-render/math"
	"soft-render/raster"
)

// Flat lights each triangle once from its face normal and fills it with a
// single color.
type Flat struct {
	U     *Uniforms
	Color core.Color

	world [3]math.Vec3
	shade core.Color
}

func NewFlat(u *Uniforms, c core.Color) *Flat {
	return &Flat{U: u, Color: c}
}

func (s *Flat) Vertex(in core.Vertex, nth int) math.Vec4 {
	s.world[nth] = s.U.Model.MulPoint(in.Position)
	return s.U.MVP.MulVec(in.Position.ToVec4(1))
}

func (s *Flat) Primitive(clip [3]math.Vec4) raster.Primitive {
	cp := *s
	n := s.world[1].Sub(s.world[0]).Cross(s.world[2].Sub(s.world[0])).Normalize()
	// Either winding faces the viewer; light the visible side.
	if n.Dot(s.U.Eye.Sub(s.world[0])) < 0 {
		n = n.Negate()
	}
	lambert := max(0, n.Dot(s.U.LightDir))
	cp.shade = s.Color.Modulate(s.U.Material.Albedo).Scale(s.U.Ambient + lambert).Clamp()
	return raster.Primitive{Clip: clip, Fragment: &cp}
}

func (s *Flat) Fragment(math.Vec4) (core.Color, bool) {
	return s.shade, false
}
