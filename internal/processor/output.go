package processor

import (
	"encoding/json"
	"fmt"
	"image"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/woozymasta/trackmap/internal/config"
	"github.com/woozymasta/trackmap/internal/geo"
	"github.com/woozymasta/trackmap/internal/render"
	"github.com/woozymasta/trackmap/internal/track"

	"github.com/chai2010/webp"
	"github.com/rs/zerolog/log"
)

// Summary describes one rendered track. It is written next to the image as
// {name}.json and read back by the gallery server.
type Summary struct {
	CreatedAt   time.Time         `json:"created_at"`
	Name        string            `json:"name"`
	Title       string            `json:"title,omitempty"`
	Source      string            `json:"source"`
	Image       string            `json:"image"`
	Stats       track.Stats       `json:"stats"`
	Render      render.Stats      `json:"render"`
	Rect        geo.TileRectangle `json:"rect"`
	Zoom        int               `json:"zoom"`
	Width       int               `json:"width"`
	Height      int               `json:"height"`
	TilesTotal  int               `json:"tiles_total"`
	TilesFailed int               `json:"tiles_failed"`
}

// GeoJSONFile is the name of the GeoJSON sidecar.
func (s *Summary) GeoJSONFile() string { return s.Name + ".geojson" }

// SummaryFile is the name of the JSON sidecar.
func (s *Summary) SummaryFile() string { return s.Name + ".json" }

func (p *Processor) write(sum *Summary, job *Job, tr *track.Track) error {
	dir := p.cfg.OutputDir
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	if err := writeWith(filepath.Join(dir, sum.Image), func(w io.Writer) error {
		return EncodeImage(w, job.Canvas, p.cfg.OutputFormat)
	}); err != nil {
		return fmt.Errorf("write image: %w", err)
	}

	if err := writeWith(filepath.Join(dir, sum.GeoJSONFile()), func(w io.Writer) error {
		return json.NewEncoder(w).Encode(tr.ToGeoJSON())
	}); err != nil {
		return fmt.Errorf("write geojson: %w", err)
	}

	if err := writeWith(filepath.Join(dir, sum.SummaryFile()), func(w io.Writer) error {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(sum)
	}); err != nil {
		return fmt.Errorf("write summary: %w", err)
	}

	return nil
}

// EncodeImage writes img as png or lossy webp.
func EncodeImage(w io.Writer, img image.Image, format string) error {
	switch format {
	case config.FormatWebP:
		return webp.Encode(w, img, &webp.Options{Lossless: false, Quality: 85})
	case config.FormatPNG, "":
		return png.Encode(w, img)
	}
	return fmt.Errorf("unsupported image format %q", format)
}

// ReadSummary loads a {name}.json sidecar.
func ReadSummary(path string) (*Summary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var s Summary
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return &s, nil
}

func writeWith(path string, fn func(w io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}

	// We care about write errors on close
	defer func() {
		if closeErr := f.Close(); closeErr != nil {
			log.Error().Err(closeErr).Str("path", path).Msg("Failed to close file")
		}
	}()

	return fn(f)
}
