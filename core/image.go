package core

import (
	"image"
)

// Image is an RGBA8 pixel grid, row-major, origin at the top-left.
// It backs both decoded textures and the framebuffer.
type Image struct {
	Width  int
	Height int
	// Pixels holds 4 bytes per pixel (R, G, B, A), Width*Height*4 in total.
	Pixels []byte
}

func NewImage(width, height int) *Image {
	return &Image{
		Width:  width,
		Height: height,
		Pixels: make([]byte, width*height*4),
	}
}

// Get returns the pixel at (x, y). Out-of-bounds reads return transparent black.
func (img *Image) Get(x, y int) Color {
	if x < 0 || x >= img.Width || y < 0 || y >= img.Height {
		return Color{}
	}
	i := (y*img.Width + x) * 4
	return ColorFromRGBA8(img.Pixels[i], img.Pixels[i+1], img.Pixels[i+2], img.Pixels[i+3])
}

// Set writes the pixel at (x, y). Out-of-bounds writes are ignored.
func (img *Image) Set(x, y int, c Color) {
	if x < 0 || x >= img.Width || y < 0 || y >= img.Height {
		return
	}
	i := (y*img.Width + x) * 4
	img.Pixels[i], img.Pixels[i+1], img.Pixels[i+2], img.Pixels[i+3] = c.RGBA8()
}

// Fill sets every pixel to c.
func (img *Image) Fill(c Color) {
	n := len(img.Pixels)
	if n == 0 {
		return
	}
	img.Pixels[0], img.Pixels[1], img.Pixels[2], img.Pixels[3] = c.RGBA8()
	for i := 4; i < n; i *= 2 {
		copy(img.Pixels[i:], img.Pixels[:i])
	}
}

// ToNRGBA wraps the pixel data as an *image.NRGBA without copying.
func (img *Image) ToNRGBA() *image.NRGBA {
	return &image.NRGBA{
		Pix:    img.Pixels,
		Stride: img.Width * 4,
		Rect:   image.Rect(0, 0, img.Width, img.Height),
	}
}

// ImageFromImage converts any decoded image to an RGBA8 Image.
func ImageFromImage(src image.Image) *Image {
	bounds := src.Bounds()
	rgba := image.NewNRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			rgba.Set(x-bounds.Min.X, y-bounds.Min.Y, src.At(x, y))
		}
	}
	return &Image{
		Width:  bounds.Dx(),
		Height: bounds.Dy(),
		Pixels: rgba.Pix,
	}
}
