package geo

import (
	"errors"
	"fmt"

	geom "github.com/peterstace/simplefeatures/geom"
)

var (
	// ErrEmptyTrack is returned when a track has fewer than two points.
	ErrEmptyTrack = errors.New("track must have at least 2 points")
	// ErrDegenerateTrack is returned when the points do not form a valid
	// line string, e.g. all share one position.
	ErrDegenerateTrack = errors.New("degenerate track")
)

// XY is a planar point.
type XY struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// TrackLineString builds a geom.LineString through the given points in order.
func TrackLineString(points []XY) (geom.LineString, error) {
	if len(points) < 2 {
		return geom.LineString{}, fmt.Errorf("%w, got %d", ErrEmptyTrack, len(points))
	}

	flatCoords := make([]float64, 0, len(points)*2)
	for _, p := range points {
		flatCoords = append(flatCoords, p.X, p.Y)
	}

	ls, err := geom.NewLineString(geom.NewSequence(flatCoords, geom.DimXY))
	if err != nil {
		return geom.LineString{}, fmt.Errorf("%w: %v", ErrDegenerateTrack, err)
	}
	return ls, nil
}

// TrackWKT renders the track as WKT, e.g. "LINESTRING(100 100,100.4 100)".
func TrackWKT(points []XY) (string, error) {
	ls, err := TrackLineString(points)
	if err != nil {
		return "", err
	}
	return ls.AsText(), nil
}
