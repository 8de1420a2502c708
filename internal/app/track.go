package app

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/robotsim/robots/internal/config"
	"github.com/robotsim/robots/internal/storage"
	"github.com/robotsim/robots/pkg/core"
	"github.com/rs/zerolog"
)

// ErrNoRuns is returned by LoadTrack when the store holds no runs.
var ErrNoRuns = errors.New("no recorded runs")

// TrackReport is a stored run with its samples re-summarized.
type TrackReport struct {
	Run     core.Run      `json:"run"`
	Samples []core.Sample `json:"-"`
}

// LoadTrack opens the persistent store named by rc and returns run runID, or
// the latest run when runID is 0. A sqlite store is read from its file even
// when recording keeps it in memory.
func LoadTrack(rc config.RecorderConfig, dbc config.DBConfig, logger *slog.Logger, dbLog zerolog.Logger, runID uint) (TrackReport, error) {
	switch rc.Type {
	case "sqlite":
		rc.InMemory = false
	case "postgres":
	default:
		return TrackReport{}, fmt.Errorf("storage type %q keeps no tracks to load", rc.Type)
	}

	backend, err := createStorageBackend(rc, dbc, logger, dbLog)
	if err != nil {
		return TrackReport{}, err
	}
	if err := backend.Init(); err != nil {
		return TrackReport{}, fmt.Errorf("failed to open storage: %w", err)
	}
	defer backend.Close()

	runs, err := backend.Runs()
	if err != nil {
		return TrackReport{}, fmt.Errorf("failed to list runs: %w", err)
	}
	if len(runs) == 0 {
		return TrackReport{}, ErrNoRuns
	}

	var run *core.Run
	if runID == 0 {
		run = &runs[len(runs)-1]
	} else {
		for i := range runs {
			if runs[i].ID == runID {
				run = &runs[i]
				break
			}
		}
		if run == nil {
			return TrackReport{}, fmt.Errorf("run %d: %w", runID, storage.ErrRunNotFound)
		}
	}

	samples, err := backend.Track(run.ID)
	if err != nil {
		return TrackReport{}, fmt.Errorf("failed to load track of run %d: %w", run.ID, err)
	}
	// runs cut short by a crash were never summarized
	if err := storage.Summarize(run, samples); err != nil {
		return TrackReport{}, err
	}
	return TrackReport{Run: *run, Samples: samples}, nil
}
