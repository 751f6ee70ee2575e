package geo

import (
	"errors"
	"fmt"
	"math"
)

const (
	// MaxLatitude is the web mercator domain limit, atan(sinh(pi)) in degrees.
	MaxLatitude = 85.05112877980659

	// MaxZoomLevel bounds zoom arguments so 2^z stays exact in an int.
	MaxZoomLevel = 30
)

// ErrOutOfRange is returned for coordinates the projection cannot map.
var ErrOutOfRange = errors.New("coordinate out of projectable range")

// CheckPoint validates that p can be projected.
func CheckPoint(p GeoPoint) error {
	switch {
	case math.IsNaN(p.Lat) || math.IsInf(p.Lat, 0) || math.IsNaN(p.Lon) || math.IsInf(p.Lon, 0):
		return fmt.Errorf("%w: non-finite point (%v, %v)", ErrOutOfRange, p.Lat, p.Lon)
	case math.Abs(p.Lat) > MaxLatitude:
		return fmt.Errorf("%w: latitude %v", ErrOutOfRange, p.Lat)
	case p.Lon < -180 || p.Lon > 180:
		return fmt.Errorf("%w: longitude %v", ErrOutOfRange, p.Lon)
	}
	return nil
}

func checkZoom(zoom int) error {
	if zoom < 0 || zoom > MaxZoomLevel {
		return fmt.Errorf("%w: zoom %d", ErrOutOfRange, zoom)
	}
	return nil
}

// PointToTile returns fractional tile coordinates of p at zoom.
// Truncating the fractions yields the tile address.
func PointToTile(p GeoPoint, zoom int) (xFrac, yFrac float64, err error) {
	if err := CheckPoint(p); err != nil {
		return 0, 0, err
	}
	if err := checkZoom(zoom); err != nil {
		return 0, 0, err
	}

	n := float64(int(1) << zoom)
	latRad := p.Lat * math.Pi / 180.0

	xFrac = (p.Lon + 180.0) / 360.0 * n
	yFrac = (1.0 - math.Log(math.Tan(latRad)+1.0/math.Cos(latRad))/math.Pi) / 2.0 * n

	return xFrac, yFrac, nil
}

// TileAt returns the tile containing p at zoom. Longitude 180 and the
// southern domain edge are clamped into the last column/row.
func TileAt(p GeoPoint, zoom int) (TileAddress, error) {
	xf, yf, err := PointToTile(p, zoom)
	if err != nil {
		return TileAddress{}, err
	}

	last := (1 << zoom) - 1
	return TileAddress{
		X:    clamp(int(xf), 0, last),
		Y:    clamp(int(yf), 0, last),
		Zoom: zoom,
	}, nil
}

// PointToPixel places p on a canvas whose top-left corner is the tile
// (originX, originY) at zoom.
func PointToPixel(p GeoPoint, zoom, originX, originY, tileSize int) (x, y int, err error) {
	xf, yf, err := PointToTile(p, zoom)
	if err != nil {
		return 0, 0, err
	}

	x = int((xf - float64(originX)) * float64(tileSize))
	y = int((yf - float64(originY)) * float64(tileSize))
	return x, y, nil
}

// TileOrigin returns the north-west corner of t using the inverse mercator.
func TileOrigin(t TileAddress) GeoPoint {
	n := float64(int(1) << t.Zoom)

	lon := float64(t.X)/n*360.0 - 180.0

	// y: [0..n] -> mercatorY: [pi..-pi]
	mercatorY := math.Pi * (1 - 2*float64(t.Y)/n)
	latRad := 2.0*math.Atan(math.Exp(mercatorY)) - math.Pi*0.5
	lat := latRad * (180.0 / math.Pi)

	if lat > MaxLatitude {
		lat = MaxLatitude
	} else if lat < -MaxLatitude {
		lat = -MaxLatitude
	}

	return GeoPoint{Lat: lat, Lon: lon}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
