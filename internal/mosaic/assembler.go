// Package mosaic assembles a single canvas from a rectangle of map tiles.
package mosaic

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	_ "image/jpeg"
	_ "image/png"
	"sync"

	"github.com/woozymasta/trackmap/internal/geo"

	"github.com/rs/zerolog/log"
	_ "golang.org/x/image/bmp"
	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// TileProvider supplies encoded tile images by address.
type TileProvider interface {
	Fetch(ctx context.Context, addr geo.TileAddress) ([]byte, error)
}

// ProviderFunc adapts a function to TileProvider.
type ProviderFunc func(ctx context.Context, addr geo.TileAddress) ([]byte, error)

// Fetch calls f.
func (f ProviderFunc) Fetch(ctx context.Context, addr geo.TileAddress) ([]byte, error) {
	return f(ctx, addr)
}

// Options configures an Assembler.
type Options struct {
	Background  color.Color
	TileSize    int
	Concurrency int
}

// Assembler builds canvases. It holds no per-job state and is safe for
// concurrent use.
type Assembler struct {
	background  color.Color
	tileSize    int
	concurrency int
}

// TileFailure records a tile left at the background fill.
type TileFailure struct {
	Err  error
	Addr geo.TileAddress
}

func (f TileFailure) Error() string {
	return fmt.Sprintf("tile %d/%d/%d: %v", f.Addr.Zoom, f.Addr.X, f.Addr.Y, f.Err)
}

// Unwrap exposes the fetch or decode error.
func (f TileFailure) Unwrap() error { return f.Err }

// Result is the outcome of one assembly.
type Result struct {
	Canvas   *image.RGBA
	Failures []TileFailure
	Rect     geo.TileRectangle
	Pasted   int
}

// Complete reports whether every tile was pasted.
func (r *Result) Complete() bool { return len(r.Failures) == 0 }

type job struct {
	Addr geo.TileAddress
}

// NewAssembler creates an assembler. Zero options fall back to 256px tiles,
// an opaque black background and a single worker.
func NewAssembler(opts Options) *Assembler {
	a := &Assembler{
		background:  opts.Background,
		tileSize:    opts.TileSize,
		concurrency: opts.Concurrency,
	}
	if a.background == nil {
		a.background = color.Black
	}
	if a.tileSize <= 0 {
		a.tileSize = 256
	}
	if a.concurrency <= 0 {
		a.concurrency = 1
	}
	return a
}

// TileSize is the side of one tile slot in pixels.
func (a *Assembler) TileSize() int { return a.tileSize }

// Assemble allocates a canvas covering rect and pastes every tile the
// provider returns into its slot. Tiles that fail to fetch or decode leave the
// background visible and are listed in Result.Failures; they never abort the
// remaining tiles. Only an invalid rectangle or a cancelled context return an
// error.
func (a *Assembler) Assemble(ctx context.Context, rect geo.TileRectangle, provider TileProvider) (*Result, error) {
	if !rect.Valid() {
		return nil, fmt.Errorf("invalid tile rectangle %+v", rect)
	}

	canvas := image.NewRGBA(image.Rect(0, 0, rect.Columns()*a.tileSize, rect.Rows()*a.tileSize))
	draw.Draw(canvas, canvas.Bounds(), image.NewUniform(a.background), image.Point{}, draw.Src)

	log.Debug().
		Int("zoom", rect.Zoom).
		Int("x1", rect.X1).
		Int("y1", rect.Y1).
		Int("x2", rect.X2).
		Int("y2", rect.Y2).
		Int("width", canvas.Bounds().Dx()).
		Int("height", canvas.Bounds().Dy()).
		Msg("Assembling canvas")

	addrs := rect.Addresses()
	jobs := make(chan job)
	failures := make(chan TileFailure, len(addrs))

	go func() {
		defer close(jobs)
		for _, addr := range addrs {
			select {
			case jobs <- job{Addr: addr}:
			case <-ctx.Done():
				return
			}
		}
	}()

	workers := min(a.concurrency, len(addrs))

	// Each worker writes only inside its tile's slot, so slots never overlap.
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobs {
				if err := a.paste(ctx, canvas, rect, j.Addr, provider); err != nil {
					log.Warn().
						Err(err).
						Int("z", j.Addr.Zoom).
						Int("x", j.Addr.X).
						Int("y", j.Addr.Y).
						Msg("Tile left blank")
					failures <- TileFailure{Addr: j.Addr, Err: err}
				}
			}
		}()
	}
	wg.Wait()
	close(failures)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	res := &Result{Canvas: canvas, Rect: rect}
	for f := range failures {
		res.Failures = append(res.Failures, f)
	}
	res.Pasted = len(addrs) - len(res.Failures)

	return res, nil
}

func (a *Assembler) paste(ctx context.Context, canvas *image.RGBA, rect geo.TileRectangle, addr geo.TileAddress, provider TileProvider) error {
	data, err := provider.Fetch(ctx, addr)
	if err != nil {
		return fmt.Errorf("fetch: %w", err)
	}

	tile, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("decode: %w", err)
	}

	x := (addr.X - rect.X1) * a.tileSize
	y := (addr.Y - rect.Y1) * a.tileSize
	slot := image.Rect(x, y, x+a.tileSize, y+a.tileSize)

	b := tile.Bounds()
	if b.Dx() == a.tileSize && b.Dy() == a.tileSize {
		draw.Draw(canvas, slot, tile, b.Min, draw.Over)
		return nil
	}

	// Providers serving retina or odd-sized tiles are scaled into the slot.
	xdraw.CatmullRom.Scale(canvas, slot, tile, b, draw.Over, nil)
	return nil
}
