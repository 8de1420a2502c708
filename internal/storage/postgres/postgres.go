// Package postgres implements the storage.Backend interface using GORM/PostgreSQL.
package postgres

import (
	"fmt"
	"log/slog"

	"github.com/robotsim/robots/internal/config"
	"github.com/robotsim/robots/internal/database"
	gormstorage "github.com/robotsim/robots/internal/storage/gorm"
	"github.com/robotsim/robots/pkg/core"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

// Dependencies holds all dependencies for the postgres storage backend.
type Dependencies struct {
	Config config.DBConfig
	// DB skips connecting when set
	DB     *gorm.DB
	Logger *slog.Logger
	DBLog  zerolog.Logger
}

// Backend implements storage.Backend on PostgreSQL.
type Backend struct {
	deps Dependencies
	gorm *gormstorage.Backend
}

// New creates a new postgres storage backend. The connection is opened by Init.
func New(deps Dependencies) *Backend {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Backend{deps: deps}
}

// Init connects unless a DB was injected via Dependencies, then migrates the
// schema.
func (b *Backend) Init() error {
	db := b.deps.DB
	if db == nil {
		var err error
		db, err = database.OpenPostgres(b.deps.Config, b.deps.DBLog)
		if err != nil {
			return fmt.Errorf("failed to connect to postgres: %w", err)
		}
	}

	b.gorm = gormstorage.New(gormstorage.Dependencies{DB: db, Logger: b.deps.Logger})
	if err := b.gorm.Init(); err != nil {
		return fmt.Errorf("failed to setup DB: %w", err)
	}
	return nil
}

func (b *Backend) ready() error {
	if b.gorm == nil {
		return fmt.Errorf("postgres backend not initialized")
	}
	return nil
}

// Close closes the connection.
func (b *Backend) Close() error {
	if b.gorm == nil {
		return nil
	}
	return b.gorm.Close()
}

func (b *Backend) StartRun(run *core.Run) error {
	if err := b.ready(); err != nil {
		return err
	}
	return b.gorm.StartRun(run)
}

func (b *Backend) EndRun() error {
	if err := b.ready(); err != nil {
		return err
	}
	return b.gorm.EndRun()
}

func (b *Backend) RecordSamples(samples []core.Sample) error {
	if err := b.ready(); err != nil {
		return err
	}
	return b.gorm.RecordSamples(samples)
}

func (b *Backend) Runs() ([]core.Run, error) {
	if err := b.ready(); err != nil {
		return nil, err
	}
	return b.gorm.Runs()
}

func (b *Backend) Track(runID uint) ([]core.Sample, error) {
	if err := b.ready(); err != nil {
		return nil, err
	}
	return b.gorm.Track(runID)
}
