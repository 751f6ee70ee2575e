// Package geo handles geographic data structures and slippy tile conversions.
package geo

import (
	"errors"
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/maptile"
)

// ErrInvalidBounds is returned for a bounding box that contains no points
// or has inverted edges.
var ErrInvalidBounds = errors.New("invalid bounding box")

// GeoPoint is a WGS84 coordinate in degrees.
type GeoPoint struct {
	Lat float64 `json:"lat" yaml:"lat"`
	Lon float64 `json:"lon" yaml:"lon"`
}

// BoundingBox is the extent of a set of points.
// The zero value is empty; grow it with Extend.
type BoundingBox struct {
	MinLat float64 `json:"min_lat" yaml:"min_lat"`
	MaxLat float64 `json:"max_lat" yaml:"max_lat"`
	MinLon float64 `json:"min_lon" yaml:"min_lon"`
	MaxLon float64 `json:"max_lon" yaml:"max_lon"`

	set bool
}

// NewBoundingBox builds a box from explicit edges.
func NewBoundingBox(minLat, maxLat, minLon, maxLon float64) BoundingBox {
	return BoundingBox{MinLat: minLat, MaxLat: maxLat, MinLon: minLon, MaxLon: maxLon, set: true}
}

// Extend grows the box so it contains p.
func (b *BoundingBox) Extend(p GeoPoint) {
	if !b.set {
		*b = NewBoundingBox(p.Lat, p.Lat, p.Lon, p.Lon)
		return
	}

	b.MinLat = math.Min(b.MinLat, p.Lat)
	b.MaxLat = math.Max(b.MaxLat, p.Lat)
	b.MinLon = math.Min(b.MinLon, p.Lon)
	b.MaxLon = math.Max(b.MaxLon, p.Lon)
}

// Valid reports whether the box has been set and its edges are ordered.
func (b BoundingBox) Valid() bool {
	return b.set && b.MinLat <= b.MaxLat && b.MinLon <= b.MaxLon
}

// Bound converts the box to an orb bound (x = lon, y = lat).
func (b BoundingBox) Bound() orb.Bound {
	return orb.Bound{
		Min: orb.Point{b.MinLon, b.MinLat},
		Max: orb.Point{b.MaxLon, b.MaxLat},
	}
}

// TileAddress identifies one square tile of the quad-tree.
type TileAddress struct {
	X    int `json:"x" yaml:"x"`
	Y    int `json:"y" yaml:"y"`
	Zoom int `json:"z" yaml:"z"`
}

// MapTile converts the address to an orb maptile.
func (t TileAddress) MapTile() maptile.Tile {
	return maptile.New(uint32(t.X), uint32(t.Y), maptile.Zoom(t.Zoom))
}

// Bound returns the geographic extent of the tile.
func (t TileAddress) Bound() orb.Bound {
	return t.MapTile().Bound()
}

// Valid reports whether the address lies inside the 2^z x 2^z grid.
func (t TileAddress) Valid() bool {
	if t.Zoom < 0 || t.Zoom > MaxZoomLevel {
		return false
	}
	n := 1 << t.Zoom
	return t.X >= 0 && t.Y >= 0 && t.X < n && t.Y < n
}

// TileRectangle is an inclusive range of tiles at one zoom level.
type TileRectangle struct {
	X1   int `json:"x1" yaml:"x1"`
	Y1   int `json:"y1" yaml:"y1"`
	X2   int `json:"x2" yaml:"x2"`
	Y2   int `json:"y2" yaml:"y2"`
	Zoom int `json:"z" yaml:"z"`
}

// Columns is the number of tiles along x.
func (r TileRectangle) Columns() int { return r.X2 - r.X1 + 1 }

// Rows is the number of tiles along y.
func (r TileRectangle) Rows() int { return r.Y2 - r.Y1 + 1 }

// Count is the total number of tiles.
func (r TileRectangle) Count() int { return r.Columns() * r.Rows() }

// Origin is the top-left tile; canvas pixel (0,0) is its corner.
func (r TileRectangle) Origin() TileAddress {
	return TileAddress{X: r.X1, Y: r.Y1, Zoom: r.Zoom}
}

// Contains reports whether t belongs to the rectangle.
func (r TileRectangle) Contains(t TileAddress) bool {
	return t.Zoom == r.Zoom && t.X >= r.X1 && t.X <= r.X2 && t.Y >= r.Y1 && t.Y <= r.Y2
}

// Valid reports whether the rectangle is non-empty and inside the grid.
func (r TileRectangle) Valid() bool {
	return r.X1 <= r.X2 && r.Y1 <= r.Y2 &&
		TileAddress{X: r.X1, Y: r.Y1, Zoom: r.Zoom}.Valid() &&
		TileAddress{X: r.X2, Y: r.Y2, Zoom: r.Zoom}.Valid()
}

// Addresses lists every tile in row-major order (y outer, x inner).
func (r TileRectangle) Addresses() []TileAddress {
	if r.X1 > r.X2 || r.Y1 > r.Y2 {
		return nil
	}

	out := make([]TileAddress, 0, r.Count())
	for y := r.Y1; y <= r.Y2; y++ {
		for x := r.X1; x <= r.X2; x++ {
			out = append(out, TileAddress{X: x, Y: y, Zoom: r.Zoom})
		}
	}
	return out
}

// Segment is one continuously recorded stretch of a track.
type Segment []GeoPoint

// Track is an ordered list of segments. Segments are never joined when drawn.
type Track struct {
	Segments []Segment `json:"segments"`
}

// Bounds returns the bounding box over every point of every segment.
func (t Track) Bounds() BoundingBox {
	var b BoundingBox
	for _, seg := range t.Segments {
		for _, p := range seg {
			b.Extend(p)
		}
	}
	return b
}

// PointCount is the number of points over all segments.
func (t Track) PointCount() int {
	n := 0
	for _, seg := range t.Segments {
		n += len(seg)
	}
	return n
}
