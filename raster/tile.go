package raster

import (
	"context"
	"errors"
	"fmt"
	"image"
	"runtime"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"soft-render/core"
)

// DefaultTileSize is used when TileRenderer.TileSize is not positive.
const DefaultTileSize = 64

// ErrSizeMismatch is returned when the color and depth buffers differ in size.
var ErrSizeMismatch = errors.New("framebuffer and depth buffer sizes differ")

// TileRenderer rasterizes a batch of primitives in parallel by splitting the
// framebuffer into disjoint square tiles. Each tile walks every primitive in
// submission order, clipped to its own pixels, so the result is identical to
// drawing the primitives one after another with Triangle.
type TileRenderer struct {
	TileSize int
	// Workers bounds the number of tiles in flight; zero or less means
	// GOMAXPROCS.
	Workers int
}

// Render draws prims into fb and zb and returns the number of fragments
// written. Cancelling ctx stops the walk between primitives; buffers are
// then partially drawn.
func (tr TileRenderer) Render(ctx context.Context, prims []Primitive, fb *core.Image, zb *DepthBuffer) (int, error) {
	if fb.Width != zb.Width || fb.Height != zb.Height {
		return 0, fmt.Errorf("%w: %dx%d vs %dx%d", ErrSizeMismatch, fb.Width, fb.Height, zb.Width, zb.Height)
	}
	tileSize := tr.TileSize
	if tileSize <= 0 {
		tileSize = DefaultTileSize
	}
	workers := tr.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	// Setup is per primitive, shared read-only by every tile.
	tris := make([]triangle, 0, len(prims))
	live := make([]Primitive, 0, len(prims))
	for _, p := range prims {
		if t, ok := setupTriangle(p.Clip, fb.Width, fb.Height); ok {
			tris = append(tris, t)
			live = append(live, p)
		}
	}
	if len(tris) == 0 {
		return 0, ctx.Err()
	}

	var written atomic.Int64
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for _, tile := range Tiles(fb.Width, fb.Height, tileSize) {
		tile := tile
		g.Go(func() error {
			n := 0
			for i := range tris {
				if err := ctx.Err(); err != nil {
					return err
				}
				if !tris[i].bounds.Overlaps(tile) {
					continue
				}
				n += tris[i].walk(tile, live[i], fb, zb)
			}
			written.Add(int64(n))
			return nil
		})
	}
	err := g.Wait()
	return int(written.Load()), err
}

// Tiles splits a width×height area into size×size rectangles, row by row.
// Tiles on the right and bottom edges may be smaller.
func Tiles(width, height, size int) []image.Rectangle {
	if width <= 0 || height <= 0 || size <= 0 {
		return nil
	}
	var out []image.Rectangle
	for y := 0; y < height; y += size {
		for x := 0; x < width; x += size {
			out = append(out, image.Rect(x, y, min(x+size, width), min(y+size, height)))
		}
	}
	return out
}
