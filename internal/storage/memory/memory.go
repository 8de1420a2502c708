// internal/storage/memory/memory.go
package memory

import (
	"cmp"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/robotsim/robots/internal/storage"
	"github.com/robotsim/robots/pkg/core"
)

// Config holds settings for the memory backend.
type Config struct {
	OutputDir      string // JSON export directory, empty disables export
	CompressOutput bool
}

// RunRecord groups a run with its samples
type RunRecord struct {
	Run     core.Run
	Samples []core.Sample
}

// Backend keeps runs in memory and optionally exports each finished run to
// JSON.
type Backend struct {
	cfg  Config
	runs []*RunRecord // index = ID-1
	// active is the run currently being recorded, nil between runs
	active *RunRecord

	lastExportPath string
	now            func() time.Time
	mu             sync.RWMutex
}

// New creates a new memory backend
func New(cfg Config) *Backend {
	return &Backend{
		cfg: cfg,
		now: time.Now,
	}
}

// Init initializes the backend
func (b *Backend) Init() error {
	return nil
}

// Close cleans up resources
func (b *Backend) Close() error {
	return nil
}

// StartRun begins recording a new run. A previous run still active is ended
// without export.
func (b *Backend) StartRun(run *core.Run) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.active != nil {
		if err := b.finish(b.active); err != nil {
			return err
		}
	}

	run.ID = uint(len(b.runs) + 1)
	if run.StartedAt.IsZero() {
		run.StartedAt = b.now()
	}
	rec := &RunRecord{Run: *run}
	b.runs = append(b.runs, rec)
	b.active = rec
	return nil
}

// RecordSamples appends samples to the active run.
func (b *Backend) RecordSamples(samples []core.Sample) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.active == nil {
		return storage.ErrNoActiveRun
	}
	for _, s := range samples {
		s.RunID = b.active.Run.ID
		b.active.Samples = append(b.active.Samples, s)
	}
	return nil
}

// EndRun closes the active run, computes its path summary and writes the
// export when an output directory is configured.
func (b *Backend) EndRun() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.active == nil {
		return storage.ErrNoActiveRun
	}
	rec := b.active
	if err := b.finish(rec); err != nil {
		return err
	}

	if b.cfg.OutputDir == "" {
		return nil
	}
	path, err := exportJSON(b.cfg, rec)
	if err != nil {
		return err
	}
	b.lastExportPath = path
	return nil
}

func (b *Backend) finish(rec *RunRecord) error {
	b.active = nil

	slices.SortStableFunc(rec.Samples, func(a, c core.Sample) int {
		return cmp.Compare(a.Seq, c.Seq)
	})
	ended := b.now()
	rec.Run.EndedAt = &ended
	if err := storage.Summarize(&rec.Run, rec.Samples); err != nil {
		return fmt.Errorf("failed to summarize run %d: %w", rec.Run.ID, err)
	}
	return nil
}

// Runs returns all runs in start order.
func (b *Backend) Runs() ([]core.Run, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]core.Run, len(b.runs))
	for i, rec := range b.runs {
		out[i] = rec.Run
	}
	return out, nil
}

// Track returns a copy of the samples of a run ordered by Seq.
func (b *Backend) Track(runID uint) ([]core.Sample, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if runID == 0 || int(runID) > len(b.runs) {
		return nil, fmt.Errorf("%w: %d", storage.ErrRunNotFound, runID)
	}
	samples := slices.Clone(b.runs[runID-1].Samples)
	slices.SortStableFunc(samples, func(a, c core.Sample) int {
		return cmp.Compare(a.Seq, c.Seq)
	})
	return samples, nil
}

// GetRun returns the record of a run.
func (b *Backend) GetRun(runID uint) (*RunRecord, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if runID == 0 || int(runID) > len(b.runs) {
		return nil, false
	}
	return b.runs[runID-1], true
}

// ExportedFilePath returns the path of the last export, empty if none.
func (b *Backend) ExportedFilePath() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.lastExportPath
}
