// Package convert provides functions to convert between GORM models and core models
package convert

import (
	"encoding/json"
	"time"

	"github.com/robotsim/robots/internal/model"
	"github.com/robotsim/robots/pkg/core"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// settingsToJSON converts run settings to datatypes.JSON for DB storage.
func settingsToJSON(settings map[string]any) datatypes.JSON {
	if len(settings) == 0 {
		return datatypes.JSON("{}")
	}
	data, err := json.Marshal(settings)
	if err != nil {
		return datatypes.JSON("{}")
	}
	return datatypes.JSON(data)
}

// CoreToRun converts a core.Run to a GORM model.Run.
func CoreToRun(r core.Run) model.Run {
	return model.Run{
		Model:       gorm.Model{ID: r.ID},
		Name:        r.Name,
		StartedAt:   r.StartedAt,
		EndedAt:     r.EndedAt,
		Settings:    settingsToJSON(r.Settings),
		SampleCount: r.SampleCount,
		PathLength:  r.PathLength,
		PathWKT:     r.PathWKT,
	}
}

// RunToCore converts a GORM model.Run to a core.Run. Undecodable settings
// come back as nil.
func RunToCore(r model.Run) core.Run {
	var settings map[string]any
	if len(r.Settings) > 0 {
		if err := json.Unmarshal(r.Settings, &settings); err != nil {
			settings = nil
		}
	}
	var ended *time.Time
	if r.EndedAt != nil {
		t := *r.EndedAt
		ended = &t
	}
	return core.Run{
		ID:          r.ID,
		Name:        r.Name,
		StartedAt:   r.StartedAt,
		EndedAt:     ended,
		Settings:    settings,
		SampleCount: r.SampleCount,
		PathLength:  r.PathLength,
		PathWKT:     r.PathWKT,
	}
}

// CoreToSample converts a core.Sample to a GORM model.Sample.
func CoreToSample(s core.Sample) model.Sample {
	return model.Sample{
		RunID:   s.RunID,
		Seq:     s.Seq,
		Time:    s.Time,
		X:       s.X,
		Y:       s.Y,
		Heading: s.Heading,
		TargetX: s.TargetX,
		TargetY: s.TargetY,
	}
}

// SampleToCore converts a GORM model.Sample to a core.Sample.
func SampleToCore(s model.Sample) core.Sample {
	return core.Sample{
		RunID:   s.RunID,
		Seq:     s.Seq,
		Time:    s.Time,
		X:       s.X,
		Y:       s.Y,
		Heading: s.Heading,
		TargetX: s.TargetX,
		TargetY: s.TargetY,
	}
}

// CoreToSamples converts a batch of samples.
func CoreToSamples(in []core.Sample) []model.Sample {
	out := make([]model.Sample, len(in))
	for i, s := range in {
		out[i] = CoreToSample(s)
	}
	return out
}
