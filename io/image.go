package io

import (
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	"image/png"
	stdio "io"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"soft-render/core"
)

// ErrUnsupportedFormat is returned when an output extension has no encoder.
var ErrUnsupportedFormat = errors.New("unsupported image format")

// LoadImage decodes a PNG, JPEG, BMP, TIFF or WebP file into an RGBA8 Image.
func LoadImage(path string) (*core.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open image %q: %w", path, err)
	}
	defer f.Close()

	img, err := DecodeImage(f)
	if err != nil {
		return nil, fmt.Errorf("decode image %q: %w", path, err)
	}
	return img, nil
}

// DecodeImage decodes any registered image format from r.
func DecodeImage(r stdio.Reader) (*core.Image, error) {
	img, _, err := image.Decode(r)
	if err != nil {
		return nil, err
	}
	return core.ImageFromImage(img), nil
}

// SaveImage encodes img to path, picking the encoder from the extension:
// .png, .bmp, .tif or .tiff.
func SaveImage(path string, img *core.Image) error {
	ext := strings.ToLower(filepath.Ext(path))
	if _, ok := encoders[ext]; !ok {
		return fmt.Errorf("save %q: %w", path, ErrUnsupportedFormat)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %q: %w", path, err)
	}
	if err := EncodeImage(f, ext, img); err != nil {
		f.Close()
		return fmt.Errorf("encode %q: %w", path, err)
	}
	return f.Close()
}

// EncodeImage writes img to w in the format named by ext (".png", ".bmp", ...).
func EncodeImage(w stdio.Writer, ext string, img *core.Image) error {
	enc, ok := encoders[strings.ToLower(ext)]
	if !ok {
		return ErrUnsupportedFormat
	}
	return enc(w, img.ToNRGBA())
}

var encoders = map[string]func(stdio.Writer, image.Image) error{
	".png":  png.Encode,
	".bmp":  bmp.Encode,
	".tif":  encodeTIFF,
	".tiff": encodeTIFF,
}

func encodeTIFF(w stdio.Writer, img image.Image) error {
	return tiff.Encode(w, img, &tiff.Options{Compression: tiff.Deflate})
}
