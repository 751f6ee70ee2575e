package render

import (
	"image"
	"image/color"
	"image/draw"
	"testing"

	"github.com/woozymasta/trackmap/internal/geo"

	"github.com/matryer/is"
)

type line struct{ x1, y1, x2, y2 float64 }

type fakePen struct {
	colors  []color.Color
	lines   []line
	strokes int
	width   float64
}

func (p *fakePen) SetColor(c color.Color)  { p.colors = append(p.colors, c) }
func (p *fakePen) SetLineWidth(w float64) { p.width = w }
func (p *fakePen) Stroke()                { p.strokes++ }
func (p *fakePen) DrawLine(x1, y1, x2, y2 float64) {
	p.lines = append(p.lines, line{x1, y1, x2, y2})
}

func pixel(t *testing.T, p geo.GeoPoint, origin geo.TileAddress) (float64, float64) {
	t.Helper()
	x, y, err := geo.PointToPixel(p, origin.Zoom, origin.X, origin.Y, 256)
	if err != nil {
		t.Fatal(err)
	}
	return float64(x), float64(y)
}

func TestDrawNeverJoinsSegments(t *testing.T) {
	is := is.New(t)

	first := geo.Segment{{Lat: 50.000, Lon: 14.000}, {Lat: 50.004, Lon: 14.003}, {Lat: 50.008, Lon: 14.006}}
	second := geo.Segment{{Lat: 50.009, Lon: 14.009}, {Lat: 50.010, Lon: 14.010}}
	track := geo.Track{Segments: []geo.Segment{first, second}}

	origin := geo.TileAddress{X: 17658, Y: 11111, Zoom: 15}
	pen := &fakePen{}
	st := NewRenderer(Options{}).Draw(pen, origin, 256, track)

	is.Equal(len(pen.lines), 3)
	is.Equal(pen.strokes, 3)
	is.Equal(st, Stats{Segments: 2, Lines: 3})
	is.Equal(pen.width, 3.0)

	lastX, lastY := pixel(t, first[2], origin)
	nextX, nextY := pixel(t, second[0], origin)
	for _, l := range pen.lines {
		is.True(!(l.x1 == lastX && l.y1 == lastY && l.x2 == nextX && l.y2 == nextY))
	}

	// the second segment's only line starts at its own first point
	is.Equal(pen.lines[2].x1, nextX)
	is.Equal(pen.lines[2].y1, nextY)
}

func TestDrawDegenerateSegments(t *testing.T) {
	is := is.New(t)

	track := geo.Track{Segments: []geo.Segment{
		{},
		{{Lat: 10, Lon: 10}},
		{{Lat: 10, Lon: 10}, {Lat: 10, Lon: 10}},
	}}

	pen := &fakePen{}
	st := NewRenderer(Options{}).Draw(pen, geo.TileAddress{X: 0, Y: 0, Zoom: 2}, 256, track)

	// coincident points still produce a line
	is.Equal(st.Lines, 1)
	is.Equal(st.Segments, 1)
	is.Equal(len(pen.lines), 1)
}

func TestDrawSkipsUnprojectablePoints(t *testing.T) {
	is := is.New(t)

	track := geo.Track{Segments: []geo.Segment{{
		{Lat: 10, Lon: 10},
		{Lat: 11, Lon: 11},
		{Lat: 89.5, Lon: 11},
		{Lat: 12, Lon: 12},
		{Lat: 13, Lon: 13},
	}}}

	pen := &fakePen{}
	st := NewRenderer(Options{}).Draw(pen, geo.TileAddress{Zoom: 3}, 256, track)

	is.Equal(st.SkippedPoints, 1)
	is.Equal(st.Lines, 2)
}

func TestDrawCyclesColors(t *testing.T) {
	is := is.New(t)

	segs := make([]geo.Segment, 7)
	for i := range segs {
		segs[i] = geo.Segment{{Lat: 1, Lon: 1}, {Lat: 2, Lon: 2}}
	}

	pen := &fakePen{}
	NewRenderer(Options{Color: color.NRGBA{R: 255, A: 255}, Cycle: true}).
		Draw(pen, geo.TileAddress{Zoom: 4}, 256, geo.Track{Segments: segs})

	blues := []uint8{}
	for _, c := range pen.colors {
		blues = append(blues, c.(color.NRGBA).B)
	}
	is.Equal(blues, []uint8{0, 32, 64, 96, 128, 160, 0})
}

func TestRenderStrokesCanvas(t *testing.T) {
	is := is.New(t)

	canvas := image.NewRGBA(image.Rect(0, 0, 512, 512))
	draw.Draw(canvas, canvas.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)

	origin := geo.TileAddress{X: 0, Y: 0, Zoom: 1}
	track := geo.Track{Segments: []geo.Segment{{{Lat: 0, Lon: -90}, {Lat: 0, Lon: 90}}}}

	st := NewRenderer(Options{Color: color.Black, Width: 3}).Render(canvas, origin, 256, track)
	is.Equal(st.Lines, 1)

	// equator runs along y=256 from x=128 to x=384
	is.Equal(canvas.RGBAAt(256, 256), color.RGBA{A: 255})
	is.Equal(canvas.RGBAAt(256, 100), color.RGBA{R: 255, G: 255, B: 255, A: 255})
}
