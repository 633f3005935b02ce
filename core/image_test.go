package core

import (
	"image"
	"image/color"
	"testing"
)

func TestImageGetSet(t *testing.T) {
	img := NewImage(4, 3)
	img.Set(2, 1, ColorRed)

	if got := img.Get(2, 1); got != ColorRed {
		t.Errorf("Get(2,1): expected %v, got %v", ColorRed, got)
	}
	if got := img.Get(1, 2); got != (Color{}) {
		t.Errorf("Get(1,2): expected zero, got %v", got)
	}

	// out-of-bounds access is ignored
	img.Set(-1, 0, ColorBlue)
	img.Set(4, 0, ColorBlue)
	if got := img.Get(4, 0); got != (Color{}) {
		t.Errorf("Get out of bounds: expected zero, got %v", got)
	}
}

func TestImageFill(t *testing.T) {
	for _, size := range [][2]int{{1, 1}, {3, 5}, {16, 9}} {
		img := NewImage(size[0], size[1])
		img.Fill(ColorGreen)
		for y := 0; y < img.Height; y++ {
			for x := 0; x < img.Width; x++ {
				if got := img.Get(x, y); got != ColorGreen {
					t.Fatalf("%dx%d Fill: pixel (%d,%d) = %v", size[0], size[1], x, y, got)
				}
			}
		}
	}
}

func TestImageFromImage(t *testing.T) {
	src := image.NewRGBA(image.Rect(10, 10, 12, 12))
	src.Set(10, 10, color.RGBA{255, 0, 0, 255})
	src.Set(11, 11, color.RGBA{0, 0, 255, 255})

	img := ImageFromImage(src)
	if img.Width != 2 || img.Height != 2 {
		t.Fatalf("size: expected 2x2, got %dx%d", img.Width, img.Height)
	}
	if got := img.Get(0, 0); got != ColorRed {
		t.Errorf("top-left: expected red, got %v", got)
	}
	if got := img.Get(1, 1); got != ColorBlue {
		t.Errorf("bottom-right: expected blue, got %v", got)
	}

	if got := img.ToNRGBA().NRGBAAt(1, 1); got != (color.NRGBA{0, 0, 255, 255}) {
		t.Errorf("ToNRGBA: expected blue, got %v", got)
	}
}

func TestColorQuantize(t *testing.T) {
	tests := []struct {
		in   Color
		want [4]uint8
	}{
		{ColorWhite, [4]uint8{255, 255, 255, 255}},
		{Color{R: 0.5, G: -1, B: 2, A: 1}, [4]uint8{128, 0, 255, 255}},
	}
	for _, tc := range tests {
		r, g, b, a := tc.in.RGBA8()
		if got := [4]uint8{r, g, b, a}; got != tc.want {
			t.Errorf("RGBA8(%v): expected %v, got %v", tc.in, tc.want, got)
		}
	}

	half := Color{R: 1, G: 1, B: 1, A: 0.5}
	r, _, _, a := half.RGBA()
	if r != a {
		t.Errorf("RGBA must premultiply: r=%d a=%d", r, a)
	}
}
