// Package gormstorage implements storage.Backend on any GORM dialect. The
// sqlite and postgres backends wrap it and only add connection handling.
package gormstorage

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robotsim/robots/internal/model"
	"github.com/robotsim/robots/internal/model/convert"
	"github.com/robotsim/robots/internal/storage"
	"github.com/robotsim/robots/pkg/core"
	"gorm.io/gorm"
)

// Dependencies holds all dependencies for the GORM storage backend.
type Dependencies struct {
	DB     *gorm.DB
	Logger *slog.Logger
	// Now stamps run start and end times, time.Now when nil
	Now func() time.Time
}

// Backend implements storage.Backend with GORM.
type Backend struct {
	deps Dependencies

	mu     sync.Mutex
	active *model.Run
}

// New creates a new GORM storage backend.
func New(deps Dependencies) *Backend {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &Backend{deps: deps}
}

// DB returns the underlying connection.
func (b *Backend) DB() *gorm.DB {
	return b.deps.DB
}

// Init migrates the schema.
func (b *Backend) Init() error {
	if b.deps.DB == nil {
		return errors.New("gorm backend has no database")
	}

	b.deps.Logger.Info("Migrating schema", "dialect", b.deps.DB.Name())
	if err := b.deps.DB.AutoMigrate(model.DatabaseModels...); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	b.deps.Logger.Info("Database setup complete")
	return nil
}

// Close ends a run still active and closes the connection.
func (b *Backend) Close() error {
	b.mu.Lock()
	active := b.active != nil
	b.mu.Unlock()

	var errs []error
	if active {
		errs = append(errs, b.EndRun())
	}

	if b.deps.DB != nil {
		sqlDB, err := b.deps.DB.DB()
		if err != nil {
			errs = append(errs, fmt.Errorf("failed to access sql interface: %w", err))
		} else if err := sqlDB.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close database: %w", err))
		}
	}
	return errors.Join(errs...)
}

// StartRun inserts the run and makes it the active one.
func (b *Backend) StartRun(run *core.Run) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if run.StartedAt.IsZero() {
		run.StartedAt = b.deps.Now()
	}

	gormRun := convert.CoreToRun(*run)
	gormRun.ID = 0
	if err := b.deps.DB.Create(&gormRun).Error; err != nil {
		return fmt.Errorf("failed to insert new run: %w", err)
	}

	run.ID = gormRun.ID
	b.active = &gormRun
	b.deps.Logger.Info("Run started", "runID", run.ID, "name", run.Name)
	return nil
}

// RecordSamples batch-inserts samples for the active run.
func (b *Backend) RecordSamples(samples []core.Sample) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.active == nil {
		return storage.ErrNoActiveRun
	}
	if len(samples) == 0 {
		return nil
	}

	rows := convert.CoreToSamples(samples)
	for i := range rows {
		rows[i].RunID = b.active.ID
	}
	if err := b.deps.DB.Create(&rows).Error; err != nil {
		return fmt.Errorf("failed to insert %d samples: %w", len(rows), err)
	}
	return nil
}

// EndRun stores the path summary of the active run.
func (b *Backend) EndRun() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.active == nil {
		return storage.ErrNoActiveRun
	}
	gormRun := b.active
	b.active = nil

	samples, err := b.track(gormRun.ID)
	if err != nil {
		return err
	}

	run := convert.RunToCore(*gormRun)
	ended := b.deps.Now()
	run.EndedAt = &ended
	if err := storage.Summarize(&run, samples); err != nil {
		return fmt.Errorf("failed to summarize run %d: %w", run.ID, err)
	}

	err = b.deps.DB.Model(&model.Run{}).Where("id = ?", run.ID).Updates(map[string]any{
		"ended_at":     run.EndedAt,
		"sample_count": run.SampleCount,
		"path_length":  run.PathLength,
		"path_wkt":     run.PathWKT,
	}).Error
	if err != nil {
		return fmt.Errorf("failed to update run %d: %w", run.ID, err)
	}

	b.deps.Logger.Info("Run ended", "runID", run.ID, "samples", run.SampleCount, "pathLength", run.PathLength)
	return nil
}

// Runs returns all runs ordered by id.
func (b *Backend) Runs() ([]core.Run, error) {
	var rows []model.Run
	if err := b.deps.DB.Order("id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}

	out := make([]core.Run, len(rows))
	for i, r := range rows {
		out[i] = convert.RunToCore(r)
	}
	return out, nil
}

// Track returns the samples of a run ordered by seq.
func (b *Backend) Track(runID uint) ([]core.Sample, error) {
	var run model.Run
	err := b.deps.DB.Select("id").First(&run, runID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %d", storage.ErrRunNotFound, runID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find run %d: %w", runID, err)
	}
	return b.track(runID)
}

func (b *Backend) track(runID uint) ([]core.Sample, error) {
	var rows []model.Sample
	if err := b.deps.DB.Where("run_id = ?", runID).Order("seq").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to load track of run %d: %w", runID, err)
	}

	out := make([]core.Sample, len(rows))
	for i, r := range rows {
		out[i] = convert.SampleToCore(r)
	}
	return out, nil
}
