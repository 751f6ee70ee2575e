// Package track reads GPX files into segment lists and summarises trips.
package track

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"time"

	"github.com/woozymasta/trackmap/internal/geo"

	"github.com/tkrajina/gpxgo/gpx"
)

// ErrNoPoints is returned for GPX documents without any track or route point.
var ErrNoPoints = errors.New("no track points")

// Track is a parsed GPX document.
type Track struct {
	geo.Track

	doc  *gpx.GPX
	Name string
}

// ParseFile reads and parses a GPX file.
func ParseFile(path string) (*Track, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	return Parse(f)
}

// Parse reads a GPX document. Segments of every track are kept in document
// order. Routes are used only when the document has no track points.
func Parse(r io.Reader) (*Track, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	doc, err := gpx.ParseBytes(data)
	if err != nil {
		return nil, fmt.Errorf("parse gpx: %w", err)
	}

	t := &Track{doc: doc, Name: doc.Name}

	for _, trk := range doc.Tracks {
		if t.Name == "" {
			t.Name = trk.Name
		}
		for _, seg := range trk.Segments {
			t.Segments = append(t.Segments, convert(seg.Points))
		}
	}

	if t.PointCount() == 0 {
		for _, rte := range doc.Routes {
			t.Segments = append(t.Segments, convert(rte.Points))
		}
	}

	if t.PointCount() == 0 {
		return nil, ErrNoPoints
	}

	return t, nil
}

func convert(points []gpx.GPXPoint) geo.Segment {
	seg := make(geo.Segment, 0, len(points))
	for _, p := range points {
		seg = append(seg, geo.GeoPoint{Lat: p.Latitude, Lon: p.Longitude})
	}
	return seg
}

// Stats summarises a trip.
type Stats struct {
	Start       time.Time       `json:"start,omitzero"`
	End         time.Time       `json:"end,omitzero"`
	Bounds      geo.BoundingBox `json:"bounds"`
	LengthKm    float64         `json:"length_km"`
	MovingTime  time.Duration   `json:"moving_time"`
	StoppedTime time.Duration   `json:"stopped_time"`
	MaxSpeed    float64         `json:"max_speed"`
	Uphill      float64         `json:"uphill"`
	Downhill    float64         `json:"downhill"`
	Points      int             `json:"points"`
	Segments    int             `json:"segments"`
}

// Stats computes the trip summary.
func (t *Track) Stats() Stats {
	st := Stats{
		Bounds:   t.Bounds(),
		Points:   t.PointCount(),
		Segments: len(t.Segments),
	}
	if t.doc == nil {
		return st
	}

	tb := t.doc.TimeBounds()
	st.Start, st.End = tb.StartTime, tb.EndTime

	st.LengthKm = t.doc.Length3D() / 1000.0

	md := t.doc.MovingData()
	st.MovingTime = seconds(md.MovingTime)
	st.StoppedTime = seconds(md.StoppedTime)
	st.MaxSpeed = md.MaxSpeed

	ud := t.doc.UphillDownhill()
	st.Uphill, st.Downhill = ud.Uphill, ud.Downhill

	return st
}

func seconds(s float64) time.Duration {
	if math.IsNaN(s) || math.IsInf(s, 0) {
		return 0
	}
	return time.Duration(s * float64(time.Second))
}

// FormatDuration renders d as HH:MM:SS, or n/a for zero.
func FormatDuration(d time.Duration) string {
	if d <= 0 {
		return "n/a"
	}

	s := int64(d / time.Second)
	return fmt.Sprintf("%02d:%02d:%02d", s/3600, (s/60)%60, s%60)
}
