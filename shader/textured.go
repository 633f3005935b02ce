package shader

import (
	stdmath "math"

	"soft-render/core"
	"soft-render/math"
	"soft-render/raster"
	"soft-render/textures"
)

// Textured is the default mesh shader: diffuse map times material albedo and
// vertex color, an optional tangent-space normal map, a specular map scaling
// a Blinn-Phong highlight, and the height slot used as ambient occlusion.
type Textured struct {
	U *Uniforms

	world     [3]math.Vec3
	normal    [3]math.Vec3
	tangent   [3]math.Vec3
	bitangent [3]math.Vec3
	uv        [3]math.Vec2
	color     [3]core.Color
}

func NewTextured(u *Uniforms) *Textured {
	return &Textured{U: u}
}

func (s *Textured) Vertex(in core.Vertex, nth int) math.Vec4 {
	u := s.U
	s.world[nth] = u.Model.MulPoint(in.Position)
	s.normal[nth] = u.Normal.MulDir(in.Normal).Normalize()
	s.tangent[nth] = u.Model.MulDir(in.Tangent).Normalize()
	s.bitangent[nth] = u.Model.MulDir(in.Bitangent).Normalize()
	s.uv[nth] = in.UV
	s.color[nth] = in.Color
	return u.MVP.MulVec(in.Position.ToVec4(1))
}

func (s *Textured) Primitive(clip [3]math.Vec4) raster.Primitive {
	cp := *s
	return raster.Primitive{Clip: clip, Fragment: &cp}
}

func (s *Textured) Fragment(bar math.Vec4) (core.Color, bool) {
	u := s.U
	w := weights(bar)
	uv := math.Barycentric2(s.uv[0], s.uv[1], s.uv[2], w)

	n := math.Barycentric3(s.normal[0], s.normal[1], s.normal[2], w).Normalize()
	if u.Maps[textures.Normal] != nil {
		n = s.perturb(n, w, u.sample(textures.Normal, uv))
	}

	base := u.sample(textures.Diffuse, uv).
		Modulate(u.Material.Albedo).
		Modulate(lerpColor(s.color, w))

	ambient := u.Ambient
	if u.Maps[textures.Height] != nil {
		ambient *= u.sample(textures.Height, uv).R
	}
	lambert := max(0, n.Dot(u.LightDir))
	out := base.Scale(ambient + lambert)

	if lambert > 0 {
		pos := math.Barycentric3(s.world[0], s.world[1], s.world[2], w)
		view := u.Eye.Sub(pos).Normalize()
		half := u.LightDir.Add(view).Normalize()
		spec := float32(stdmath.Pow(float64(max(0, n.Dot(half))), float64(u.Material.Shininess)))
		strength := u.Material.Specular.Modulate(u.sample(textures.Specular, uv))
		out = out.Add(strength.Scale(spec))
	}
	return out.Clamp(), false
}

// perturb applies a tangent-space normal map texel to the interpolated
// normal n.
func (s *Textured) perturb(n math.Vec3, w math.Vec3, texel core.Color) math.Vec3 {
	t := math.Barycentric3(s.tangent[0], s.tangent[1], s.tangent[2], w)
	t = t.Sub(n.Mul(n.Dot(t))).Normalize()
	if t.LengthSqr() == 0 {
		return n
	}
	b := math.Barycentric3(s.bitangent[0], s.bitangent[1], s.bitangent[2], w)
	if b.LengthSqr() == 0 {
		b = n.Cross(t)
	}
	b = b.Normalize()

	tn := math.Vec3{X: texel.R*2 - 1, Y: texel.G*2 - 1, Z: texel.B*2 - 1}
	p := t.Mul(tn.X).Add(b.Mul(tn.Y)).Add(n.Mul(tn.Z)).Normalize()
	if p.LengthSqr() == 0 {
		return n
	}
	return p
}
