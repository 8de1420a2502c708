// pkg/core/run.go
package core

import "time"

// Run is one recording session of the motion model.
type Run struct {
	ID        uint
	Name      string
	StartedAt time.Time
	EndedAt   *time.Time
	// Settings the run was started with, e.g. limits and tick periods.
	Settings map[string]any
	// Filled in when the run ends.
	SampleCount int
	PathLength  float64
	PathWKT     string
}

// Sample is one recorded pose of a run.
type Sample struct {
	RunID   uint
	Seq     uint64
	Time    time.Time
	X       float64
	Y       float64
	Heading float64
	TargetX int
	TargetY int
}
