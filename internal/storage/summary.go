package storage

import (
	"errors"

	"github.com/robotsim/robots/internal/geo"
	"github.com/robotsim/robots/pkg/core"
)

// Summarize fills the path statistics of run from its samples, which must be
// ordered by Seq. A track shorter than two points, or one that never left
// its first position, leaves an empty WKT.
func Summarize(run *core.Run, samples []core.Sample) error {
	run.SampleCount = len(samples)

	points := make([]geo.XY, len(samples))
	for i, s := range samples {
		points[i] = geo.XY{X: s.X, Y: s.Y}
	}

	ls, err := geo.TrackLineString(points)
	if errors.Is(err, geo.ErrEmptyTrack) || errors.Is(err, geo.ErrDegenerateTrack) {
		run.PathLength = 0
		run.PathWKT = ""
		return nil
	}
	if err != nil {
		return err
	}

	run.PathLength = ls.Length()
	run.PathWKT = ls.AsText()
	return nil
}
