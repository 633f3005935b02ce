package raster

import (
	"image"
	stdmath "math"
)

// DepthBuffer stores one float32 per pixel, row-major. Smaller is closer.
type DepthBuffer struct {
	Width  int
	Height int
	Data   []float32
}

// NewDepthBuffer returns a cleared buffer.
func NewDepthBuffer(width, height int) *DepthBuffer {
	d := &DepthBuffer{
		Width:  width,
		Height: height,
		Data:   make([]float32, width*height),
	}
	d.Clear()
	return d
}

// Clear resets every entry to +Inf.
func (d *DepthBuffer) Clear() {
	n := len(d.Data)
	if n == 0 {
		return
	}
	d.Data[0] = float32(stdmath.Inf(1))
	for i := 1; i < n; i *= 2 {
		copy(d.Data[i:], d.Data[:i])
	}
}

// At returns the depth at (x, y); out-of-bounds reads return +Inf.
func (d *DepthBuffer) At(x, y int) float32 {
	if x < 0 || x >= d.Width || y < 0 || y >= d.Height {
		return float32(stdmath.Inf(1))
	}
	return d.Data[y*d.Width+x]
}

// Set writes the depth at (x, y). Out-of-bounds writes are ignored.
func (d *DepthBuffer) Set(x, y int, z float32) {
	if x < 0 || x >= d.Width || y < 0 || y >= d.Height {
		return
	}
	d.Data[y*d.Width+x] = z
}

func (d *DepthBuffer) Bounds() image.Rectangle {
	return image.Rect(0, 0, d.Width, d.Height)
}
