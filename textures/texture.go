package textures

import (
	"fmt"
	"sync"

	"soft-render/core"
	"soft-render/io"
)

// Usage tags what a texture feeds in the fragment stage.
type Usage int

const (
	Diffuse Usage = iota
	Specular
	Normal
	Height
)

var usageNames = [...]string{
	Diffuse:  "diffuse",
	Specular: "specular",
	Normal:   "normal",
	Height:   "height",
}

func (u Usage) String() string {
	if u < 0 || int(u) >= len(usageNames) {
		return fmt.Sprintf("Usage(%d)", int(u))
	}
	return usageNames[u]
}

// ParseUsage accepts the plain names ("diffuse") as well as the sampler-style
// names material files use ("texture_diffuse").
func ParseUsage(s string) (Usage, error) {
	for i, name := range usageNames {
		if s == name || s == "texture_"+name {
			return Usage(i), nil
		}
	}
	return 0, fmt.Errorf("unknown texture usage %q", s)
}

// Texture is a decoded image bound to a usage. Textures are shared read-only
// by every mesh that references the same source path.
type Texture struct {
	Name  string
	Image *core.Image
	Usage Usage
	// Path is the source the image was decoded from; it is the dedup key.
	Path string
}

// Manager loads textures and returns the cached copy for paths it has seen.
type Manager struct {
	mu       sync.RWMutex
	textures map[string]*Texture
	order    []*Texture
}

func NewManager() *Manager {
	return &Manager{textures: make(map[string]*Texture)}
}

// Load decodes the image at path, or reuses the one already decoded for that
// path. A cached image requested with a different usage is returned as a new
// Texture sharing the same pixels.
func (tm *Manager) Load(path string, usage Usage) (*Texture, error) {
	if tex, ok := tm.lookup(path, usage); ok {
		return tex, nil
	}

	img, err := io.LoadImage(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load texture %s: %w", path, err)
	}
	core.Logger().Info("texture loaded", "path", path, "usage", usage, "width", img.Width, "height", img.Height)
	return tm.Add(path, img, usage), nil
}

// Add registers an already decoded image under key. If key is known the
// existing texture wins and img is dropped.
func (tm *Manager) Add(key string, img *core.Image, usage Usage) *Texture {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	if tex, ok := tm.textures[key]; ok {
		return withUsage(tex, usage)
	}
	tex := &Texture{Name: key, Image: img, Usage: usage, Path: key}
	tm.textures[key] = tex
	tm.order = append(tm.order, tex)
	return tex
}

// Textures returns every distinct texture in load order.
func (tm *Manager) Textures() []*Texture {
	tm.mu.RLock()
	defer tm.mu.RUnlock()
	out := make([]*Texture, len(tm.order))
	copy(out, tm.order)
	return out
}

func (tm *Manager) Len() int {
	tm.mu.RLock()
	defer tm.mu.RUnlock()
	return len(tm.order)
}

func (tm *Manager) lookup(path string, usage Usage) (*Texture, bool) {
	tm.mu.RLock()
	defer tm.mu.RUnlock()
	tex, ok := tm.textures[path]
	if !ok {
		return nil, false
	}
	return withUsage(tex, usage), true
}

func withUsage(tex *Texture, usage Usage) *Texture {
	if tex.Usage == usage {
		return tex
	}
	cp := *tex
	cp.Usage = usage
	return &cp
}

// NewSolidTexture creates a 1x1 texture of a single color.
func NewSolidTexture(name string, c core.Color, usage Usage) *Texture {
	img := core.NewImage(1, 1)
	img.Set(0, 0, c)
	return &Texture{Name: name, Image: img, Usage: usage}
}

// NewCheckerTexture creates a size x size checkerboard with 8x8 cells.
func NewCheckerTexture(name string, size int, c1, c2 core.Color) *Texture {
	img := core.NewImage(size, size)
	blockSize := size / 8
	if blockSize < 1 {
		blockSize = 1
	}
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			if ((x/blockSize)+(y/blockSize))%2 == 0 {
				img.Set(x, y, c1)
			} else {
				img.Set(x, y, c2)
			}
		}
	}
	return &Texture{Name: name, Image: img, Usage: Diffuse}
}
