package shader

import (
	"soft-render/core"
	"soft-render/math"
	"soft-render/raster"
	"soft-render/textures"
)

// Attributes is a minimal explicit vertex: position, texture coordinate and
// color.
type Attributes struct {
	Position math.Vec3
	UV       math.Vec2
	Color    core.Color
}

// Attrib shades with the vertex color, times the diffuse map when one is
// bound. It uses the reciprocal-depth fragment stage and weights each
// varying by w_i·recipZ_i itself.
type Attrib struct {
	U *Uniforms

	uv    [3]math.Vec2
	color [3]core.Color
}

func NewAttrib(u *Uniforms) *Attrib {
	return &Attrib{U: u}
}

func (s *Attrib) Vertex(in Attributes, nth int) math.Vec4 {
	s.uv[nth] = in.UV
	s.color[nth] = in.Color
	return s.U.MVP.MulVec(in.Position.ToVec4(1))
}

func (s *Attrib) Primitive(clip [3]math.Vec4) raster.Primitive {
	cp := *s
	return raster.Primitive{Clip: clip, Perspective: &cp}
}

func (s *Attrib) FragmentPerspective(bar math.Vec4, recipZ math.Vec3) (core.Color, bool) {
	w := math.Vec3{X: bar.X * recipZ.X, Y: bar.Y * recipZ.Y, Z: bar.Z * recipZ.Z}
	sum := w.X + w.Y + w.Z
	if sum == 0 {
		return core.Color{}, true
	}
	w = w.Mul(1 / sum)

	uv := math.Barycentric2(s.uv[0], s.uv[1], s.uv[2], w)
	c := lerpColor(s.color, w)
	if s.U.Maps[textures.Diffuse] != nil {
		c = c.Modulate(s.U.sample(textures.Diffuse, uv))
	}
	return c.Clamp(), false
}
