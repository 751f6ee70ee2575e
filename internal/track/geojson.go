package track

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// ToGeoJSON returns the track as a feature collection with one
// MultiLineString feature. Each segment becomes its own line string so that
// consumers keep the recording gaps.
func (t *Track) ToGeoJSON() *geojson.FeatureCollection {
	lines := make(orb.MultiLineString, 0, len(t.Segments))
	for _, seg := range t.Segments {
		ls := make(orb.LineString, 0, len(seg))
		for _, p := range seg {
			ls = append(ls, orb.Point{p.Lon, p.Lat})
		}
		lines = append(lines, ls)
	}

	f := geojson.NewFeature(lines)
	f.Properties["name"] = t.Name
	f.Properties["segments"] = len(t.Segments)
	f.Properties["points"] = t.PointCount()

	fc := geojson.NewFeatureCollection()
	fc.Append(f)

	if b := t.Bounds(); b.Valid() {
		fc.BBox = geojson.NewBBox(b.Bound())
	}

	return fc
}
