// Package processor turns GPX files into map images.
package processor

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/woozymasta/trackmap/internal/config"
	"github.com/woozymasta/trackmap/internal/geo"
	"github.com/woozymasta/trackmap/internal/mosaic"
	"github.com/woozymasta/trackmap/internal/render"
	"github.com/woozymasta/trackmap/internal/track"

	"github.com/rs/zerolog/log"
)

// Prefetcher warms a tile cache ahead of assembly.
type Prefetcher interface {
	Prefetch(ctx context.Context, rect geo.TileRectangle) int
}

// Processor runs conversion jobs. It is safe to reuse across files.
type Processor struct {
	cfg       *config.Config
	tiles     mosaic.TileProvider
	assembler *mosaic.Assembler
	renderer  *render.Renderer
}

// New wires a processor from configuration and a tile provider.
func New(cfg *config.Config, tiles mosaic.TileProvider) *Processor {
	return &Processor{
		cfg:   cfg,
		tiles: tiles,
		assembler: mosaic.NewAssembler(mosaic.Options{
			Background:  cfg.BackgroundColor(),
			TileSize:    cfg.TileSize,
			Concurrency: cfg.Tiles.Concurrency,
		}),
		renderer: render.NewRenderer(render.Options{
			Color: cfg.TrackColor(),
			Width: cfg.Track.Width,
			Cycle: cfg.Track.Cycle,
		}),
	}
}

// BatchReport counts the outcome of a directory run.
type BatchReport struct {
	Summaries []*Summary
	Failed    []string
	Total     int
}

// FindInputs lists *.gpx files of dir in name order.
func FindInputs(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".gpx") {
			continue
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}
	sort.Strings(files)

	return files, nil
}

// ProcessFiles converts every file, continuing past failures. done is called
// after each file when not nil.
func (p *Processor) ProcessFiles(ctx context.Context, files []string, done func(path string, err error)) BatchReport {
	report := BatchReport{Total: len(files)}

	for _, path := range files {
		if ctx.Err() != nil {
			report.Failed = append(report.Failed, path)
			continue
		}

		sum, err := p.ProcessFile(ctx, path)
		if err != nil {
			log.Error().Err(err).Str("file", path).Msg("Failed to process track")
			report.Failed = append(report.Failed, path)
		} else {
			report.Summaries = append(report.Summaries, sum)
		}

		if done != nil {
			done(path, err)
		}
	}

	return report
}

// ProcessDir converts every GPX file found in dir.
func (p *Processor) ProcessDir(ctx context.Context, dir string) (BatchReport, error) {
	files, err := FindInputs(dir)
	if err != nil {
		return BatchReport{}, fmt.Errorf("scan %s: %w", dir, err)
	}
	if len(files) == 0 {
		log.Info().Str("dir", dir).Msg("No GPX files found")
	}
	return p.ProcessFiles(ctx, files, nil), nil
}

// ProcessFile converts one GPX file and writes the image with its sidecars
// into the output directory.
func (p *Processor) ProcessFile(ctx context.Context, path string) (*Summary, error) {
	started := time.Now()

	tr, err := track.ParseFile(path)
	if err != nil {
		return nil, err
	}

	stats := tr.Stats()
	logStats(path, stats)

	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	job, err := p.Render(ctx, &tr.Track)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}

	sum := &Summary{
		Name:        name,
		Title:       tr.Name,
		Source:      filepath.Base(path),
		Image:       name + "." + p.cfg.OutputFormat,
		Zoom:        job.Rect.Zoom,
		Rect:        job.Rect,
		Width:       job.Canvas.Bounds().Dx(),
		Height:      job.Canvas.Bounds().Dy(),
		TilesTotal:  job.Rect.Count(),
		TilesFailed: len(job.Failures),
		Render:      job.Render,
		Stats:       stats,
		CreatedAt:   time.Now().UTC(),
	}

	if err := p.write(sum, job, tr); err != nil {
		return nil, err
	}

	if p.cfg.RemoveInput {
		if err := os.Remove(path); err != nil {
			log.Warn().Err(err).Str("file", path).Msg("Failed to remove input")
		}
	}

	log.Info().
		Str("file", path).
		Str("image", filepath.Join(p.cfg.OutputDir, sum.Image)).
		Int("width", sum.Width).
		Int("height", sum.Height).
		Int("tiles_failed", sum.TilesFailed).
		Dur("duration", time.Since(started)).
		Msg("Track rendered")

	return sum, nil
}

// Job is the in-memory result of rendering one track.
type Job struct {
	*mosaic.Result
	Render render.Stats
}

// Render selects the zoom, assembles the background and draws the track.
func (p *Processor) Render(ctx context.Context, t *geo.Track) (*Job, error) {
	bbox := t.Bounds()
	if !bbox.Valid() {
		return nil, track.ErrNoPoints
	}

	zoom, err := geo.SelectZoom(bbox, p.cfg.MaxTiles, p.cfg.MaxZoom)
	if err != nil {
		return nil, fmt.Errorf("select zoom: %w", err)
	}

	rect, err := geo.RectangleFor(bbox, zoom)
	if err != nil {
		return nil, err
	}

	log.Debug().
		Int("zoom", zoom).
		Int("tiles", rect.Count()).
		Msg("Zoom level selected")

	if pf, ok := p.tiles.(Prefetcher); ok && p.cfg.Prefetch {
		if failed := pf.Prefetch(ctx, rect); failed > 0 {
			log.Warn().Int("failed", failed).Msg("Some tiles could not be cached")
		}
	}

	res, err := p.assembler.Assemble(ctx, rect, p.tiles)
	if err != nil {
		return nil, fmt.Errorf("assemble: %w", err)
	}

	st := p.renderer.Render(res.Canvas, rect.Origin(), p.assembler.TileSize(), *t)

	return &Job{Result: res, Render: st}, nil
}

func logStats(path string, st track.Stats) {
	ev := log.Info().
		Str("file", path).
		Float64("length_km", st.LengthKm).
		Str("moving_time", track.FormatDuration(st.MovingTime)).
		Str("stopped_time", track.FormatDuration(st.StoppedTime)).
		Float64("uphill_m", st.Uphill).
		Float64("downhill_m", st.Downhill).
		Int("points", st.Points).
		Int("segments", st.Segments).
		Str("bounds", fmt.Sprintf("[%1.4f,%1.4f,%1.4f,%1.4f]",
			st.Bounds.MinLat, st.Bounds.MaxLat, st.Bounds.MinLon, st.Bounds.MaxLon))

	if !st.Start.IsZero() {
		ev = ev.Time("started", st.Start).Time("ended", st.End)
	}

	ev.Msg("Track loaded")
}
