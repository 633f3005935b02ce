package scene

import "soft-render/core"

// Material carries the constant surface factors a mesh was authored with.
// Texture maps live on Mesh.Textures; the factors modulate them.
type Material struct {
	Name      string
	Albedo    core.Color // multiplied with the diffuse texture
	Specular  core.Color // multiplied with the specular map, if any
	Shininess float32    // Blinn-Phong exponent
}

// DefaultMaterial returns a plain white matte material.
func DefaultMaterial() *Material {
	return &Material{
		Name:      "Default",
		Albedo:    core.ColorWhite,
		Specular:  core.Color{R: 0.3, G: 0.3, B: 0.3, A: 1},
		Shininess: 32,
	}
}

// NewMaterial creates a material with the given albedo color.
func NewMaterial(name string, albedo core.Color) *Material {
	m := DefaultMaterial()
	m.Name = name
	m.Albedo = albedo
	return m
}
