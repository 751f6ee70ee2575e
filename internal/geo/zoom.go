package geo

import "fmt"

// DefaultMaxZoom is the upper bound of the zoom search.
const DefaultMaxZoom = 16

// SelectZoom walks zoom levels from 0 to maxZoom and returns the first level
// at which the tile span of the box corners EXCEEDS maxTiles. The chosen
// level is one step past the last level that fits the budget; callers that
// want the fitting level subtract one. When no level exceeds the budget the
// result is maxZoom.
func SelectZoom(bbox BoundingBox, maxTiles, maxZoom int) (int, error) {
	if !bbox.Valid() {
		return 0, ErrInvalidBounds
	}
	if err := checkZoom(maxZoom); err != nil {
		return 0, err
	}

	sw := GeoPoint{Lat: bbox.MinLat, Lon: bbox.MinLon}
	ne := GeoPoint{Lat: bbox.MaxLat, Lon: bbox.MaxLon}

	for z := 0; z <= maxZoom; z++ {
		t1, err := TileAt(sw, z)
		if err != nil {
			return 0, err
		}
		t2, err := TileAt(ne, z)
		if err != nil {
			return 0, err
		}

		if TileSpan(t1, t2) > maxTiles {
			return z, nil
		}
	}

	return maxZoom, nil
}

// TileSpan is the larger of the x and y distances between two tiles.
func TileSpan(a, b TileAddress) int {
	return max(abs(b.X-a.X), abs(b.Y-a.Y))
}

// RectangleFor maps both box corners to tiles at zoom and takes min/max per
// axis independently.
func RectangleFor(bbox BoundingBox, zoom int) (TileRectangle, error) {
	if !bbox.Valid() {
		return TileRectangle{}, ErrInvalidBounds
	}

	t1, err := TileAt(GeoPoint{Lat: bbox.MinLat, Lon: bbox.MinLon}, zoom)
	if err != nil {
		return TileRectangle{}, fmt.Errorf("south-west corner: %w", err)
	}
	t2, err := TileAt(GeoPoint{Lat: bbox.MaxLat, Lon: bbox.MaxLon}, zoom)
	if err != nil {
		return TileRectangle{}, fmt.Errorf("north-east corner: %w", err)
	}

	return TileRectangle{
		X1:   min(t1.X, t2.X),
		Y1:   min(t1.Y, t2.Y),
		X2:   max(t1.X, t2.X),
		Y2:   max(t1.Y, t2.Y),
		Zoom: zoom,
	}, nil
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
