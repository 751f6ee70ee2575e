// Package render draws tracks onto an assembled map canvas.
package render

import (
	"image"
	"image/color"

	"github.com/woozymasta/trackmap/internal/geo"

	"github.com/fogleman/gg"
	"github.com/rs/zerolog/log"
)

// Pen is the subset of a 2D drawing context the renderer needs.
// *gg.Context satisfies it.
type Pen interface {
	SetColor(c color.Color)
	SetLineWidth(w float64)
	DrawLine(x1, y1, x2, y2 float64)
	Stroke()
}

// Options configures a Renderer.
type Options struct {
	Color color.Color
	Width float64
	// Cycle shifts the blue channel by 32 per segment, wrapping after 160,
	// so neighbouring segments can be told apart.
	Cycle bool
}

// Renderer strokes track segments.
type Renderer struct {
	color color.Color
	width float64
	cycle bool
}

// Stats describes what one Render call drew.
type Stats struct {
	Segments      int `json:"segments"`
	Lines         int `json:"lines"`
	SkippedPoints int `json:"skipped_points"`
}

const (
	cycleStep = 32
	cycleMax  = 160
)

// NewRenderer creates a renderer; zero options give a 3px black stroke.
func NewRenderer(opts Options) *Renderer {
	r := &Renderer{color: opts.Color, width: opts.Width, cycle: opts.Cycle}
	if r.color == nil {
		r.color = color.Black
	}
	if r.width <= 0 {
		r.width = 3
	}
	return r
}

// Render draws track onto canvas. origin is the tile at canvas pixel (0,0)
// and carries the zoom level.
func (r *Renderer) Render(canvas *image.RGBA, origin geo.TileAddress, tileSize int, track geo.Track) Stats {
	dc := gg.NewContextForRGBA(canvas)
	dc.SetLineCapRound()
	dc.SetLineJoinRound()
	return r.Draw(dc, origin, tileSize, track)
}

// Draw strokes every segment with pen. A line joins each consecutive pair of
// points inside a segment; segments are never joined to each other. Points
// outside the projectable range are skipped and break the line.
func (r *Renderer) Draw(pen Pen, origin geo.TileAddress, tileSize int, track geo.Track) Stats {
	var st Stats
	pen.SetLineWidth(r.width)

	shift := 0
	for _, seg := range track.Segments {
		pen.SetColor(r.segmentColor(shift))
		if r.cycle {
			shift += cycleStep
			if shift > cycleMax {
				shift = 0
			}
		}

		if len(seg) < 2 {
			continue
		}

		st.Segments++
		havePrev := false
		var px, py int

		for _, p := range seg {
			x, y, err := geo.PointToPixel(p, origin.Zoom, origin.X, origin.Y, tileSize)
			if err != nil {
				st.SkippedPoints++
				havePrev = false
				continue
			}

			if havePrev {
				pen.DrawLine(float64(px), float64(py), float64(x), float64(y))
				pen.Stroke()
				st.Lines++
			}
			px, py, havePrev = x, y, true
		}
	}

	if st.SkippedPoints > 0 {
		log.Warn().Int("points", st.SkippedPoints).Msg("Skipped points outside projectable range")
	}

	return st
}

func (r *Renderer) segmentColor(shift int) color.Color {
	if !r.cycle {
		return r.color
	}

	c := color.NRGBAModel.Convert(r.color).(color.NRGBA)
	c.B = uint8((int(c.B) + shift) % 256)
	return c
}
