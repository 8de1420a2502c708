// Package sqlitestorage implements the storage.Backend interface on SQLite.
// It wraps the GORM backend and either writes straight to a database file or
// keeps an in-memory database dumped to disk periodically via VACUUM INTO.
package sqlitestorage

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robotsim/robots/internal/database"
	gormstorage "github.com/robotsim/robots/internal/storage/gorm"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

// Config holds configuration for the SQLite storage backend.
type Config struct {
	Path         string        // database file, or dump target when InMemory
	InMemory     bool          // record into memory and dump to Path
	DumpInterval time.Duration // 0 disables periodic dumps, Close still dumps
}

// Backend wraps the GORM backend for SQLite-specific behavior.
type Backend struct {
	*gormstorage.Backend
	db       *gorm.DB
	cfg      Config
	log      *slog.Logger
	stopChan chan struct{}
	wg       sync.WaitGroup
	once     sync.Once
}

// New opens the SQLite database and creates the backend.
func New(cfg Config, log *slog.Logger, dbLog zerolog.Logger) (*Backend, error) {
	if log == nil {
		log = slog.Default()
	}

	path := cfg.Path
	if cfg.InMemory {
		path = ""
	}
	db, err := database.OpenSQLite(path, dbLog)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite DB: %w", err)
	}

	return &Backend{
		Backend:  gormstorage.New(gormstorage.Dependencies{DB: db, Logger: log}),
		db:       db,
		cfg:      cfg,
		log:      log,
		stopChan: make(chan struct{}),
	}, nil
}

// Init initializes the embedded GORM backend and starts the dump goroutine.
func (b *Backend) Init() error {
	if err := b.Backend.Init(); err != nil {
		return err
	}

	if b.dumps() && b.cfg.DumpInterval > 0 {
		b.wg.Add(1)
		go b.dumpLoop()
	}
	return nil
}

// Close stops the dump goroutine, ends any active run, writes a last dump
// and closes the database.
func (b *Backend) Close() error {
	var closeErr error
	b.once.Do(func() {
		close(b.stopChan)
		b.wg.Wait()

		if b.dumps() {
			// end the run first so the dump carries its summary
			_ = b.Backend.EndRun()
			if err := b.Dump(); err != nil {
				b.log.Error("Final dump failed", "error", err)
			}
		}
		closeErr = b.Backend.Close()
	})
	return closeErr
}

// Dump writes the in-memory database to Path.
func (b *Backend) Dump() error {
	return database.DumpMemoryDBToDisk(b.db, b.cfg.Path)
}

func (b *Backend) dumps() bool {
	return b.cfg.InMemory && b.cfg.Path != ""
}

// dumpLoop periodically dumps the in-memory SQLite database to disk via VACUUM INTO.
// VACUUM INTO creates a point-in-time snapshot, so no pause mechanism is needed.
func (b *Backend) dumpLoop() {
	defer b.wg.Done()
	ticker := time.NewTicker(b.cfg.DumpInterval)
	defer ticker.Stop()

	for {
		select {
		case <-b.stopChan:
			return
		case <-ticker.C:
			start := time.Now()
			if err := b.Dump(); err != nil {
				b.log.Error("Error dumping to disk", "error", err)
			} else {
				b.log.Debug("Dumped to disk", "duration", time.Since(start))
			}
		}
	}
}
