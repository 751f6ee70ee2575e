package track

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/woozymasta/trackmap/internal/geo"

	"github.com/matryer/is"
	"github.com/paulmach/orb"
)

const sampleGPX = `<?xml version="1.0" encoding="UTF-8"?>
<gpx version="1.1" creator="test" xmlns="http://www.topografix.com/GPX/1/1">
  <trk>
    <name>Morning ride</name>
    <trkseg>
      <trkpt lat="50.0000" lon="14.0000"><ele>200</ele><time>2024-05-01T08:00:00Z</time></trkpt>
      <trkpt lat="50.0040" lon="14.0030"><ele>210</ele><time>2024-05-01T08:01:00Z</time></trkpt>
      <trkpt lat="50.0080" lon="14.0060"><ele>205</ele><time>2024-05-01T08:02:00Z</time></trkpt>
    </trkseg>
    <trkseg>
      <trkpt lat="50.0090" lon="14.0090"><ele>205</ele><time>2024-05-01T08:10:00Z</time></trkpt>
      <trkpt lat="50.0100" lon="14.0100"><ele>215</ele><time>2024-05-01T08:11:00Z</time></trkpt>
    </trkseg>
  </trk>
</gpx>`

func TestParse(t *testing.T) {
	is := is.New(t)

	tr, err := Parse(strings.NewReader(sampleGPX))
	is.NoErr(err)

	is.Equal(tr.Name, "Morning ride")
	is.Equal(len(tr.Segments), 2)
	is.Equal(len(tr.Segments[0]), 3)
	is.Equal(len(tr.Segments[1]), 2)
	is.Equal(tr.Segments[1][1], geo.GeoPoint{Lat: 50.01, Lon: 14.01})
	is.Equal(tr.Bounds(), geo.NewBoundingBox(50.0, 50.01, 14.0, 14.01))
}

func TestParseFile(t *testing.T) {
	is := is.New(t)

	path := filepath.Join(t.TempDir(), "ride.gpx")
	is.NoErr(os.WriteFile(path, []byte(sampleGPX), 0644))

	tr, err := ParseFile(path)
	is.NoErr(err)
	is.Equal(tr.PointCount(), 5)

	_, err = ParseFile(filepath.Join(t.TempDir(), "absent.gpx"))
	is.True(errors.Is(err, os.ErrNotExist))
}

func TestParseRoutesWhenNoTrack(t *testing.T) {
	is := is.New(t)

	doc := `<?xml version="1.0"?>
<gpx version="1.1" creator="test" xmlns="http://www.topografix.com/GPX/1/1">
  <rte><rtept lat="1" lon="2"/><rtept lat="3" lon="4"/></rte>
</gpx>`

	tr, err := Parse(strings.NewReader(doc))
	is.NoErr(err)
	is.Equal(len(tr.Segments), 1)
	is.Equal(tr.Segments[0][1], geo.GeoPoint{Lat: 3, Lon: 4})
}

func TestParseEmpty(t *testing.T) {
	is := is.New(t)

	doc := `<?xml version="1.0"?><gpx version="1.1" creator="test" xmlns="http://www.topografix.com/GPX/1/1"></gpx>`
	_, err := Parse(strings.NewReader(doc))
	is.True(errors.Is(err, ErrNoPoints))

	_, err = Parse(strings.NewReader("not xml"))
	is.True(err != nil)
}

func TestStats(t *testing.T) {
	is := is.New(t)

	tr, err := Parse(strings.NewReader(sampleGPX))
	is.NoErr(err)

	st := tr.Stats()
	is.True(st.Start.Equal(time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)))
	is.True(st.End.Equal(time.Date(2024, 5, 1, 8, 11, 0, 0, time.UTC)))
	is.Equal(st.Points, 5)
	is.Equal(st.Segments, 2)
	is.True(st.LengthKm > 0.9 && st.LengthKm < 1.5)
	is.True(st.Uphill >= 0 && st.Downhill >= 0)
}

func TestFormatDuration(t *testing.T) {
	is := is.New(t)

	is.Equal(FormatDuration(0), "n/a")
	is.Equal(FormatDuration(3*time.Hour+4*time.Minute+5*time.Second), "03:04:05")
	is.Equal(FormatDuration(59*time.Second), "00:00:59")
}

func TestToGeoJSON(t *testing.T) {
	is := is.New(t)

	tr, err := Parse(strings.NewReader(sampleGPX))
	is.NoErr(err)

	fc := tr.ToGeoJSON()
	is.Equal(len(fc.Features), 1)

	mls, ok := fc.Features[0].Geometry.(orb.MultiLineString)
	is.True(ok)
	is.Equal(len(mls), 2)
	is.Equal(mls[0][0], orb.Point{14.0, 50.0})

	data, err := json.Marshal(fc)
	is.NoErr(err)
	is.True(strings.Contains(string(data), `"MultiLineString"`))
	is.True(strings.Contains(string(data), `"bbox"`))
}
