package app

import (
	"fmt"
	"log/slog"

	"github.com/robotsim/robots/internal/config"
	"github.com/robotsim/robots/internal/storage"
	"github.com/robotsim/robots/internal/storage/memory"
	pgstorage "github.com/robotsim/robots/internal/storage/postgres"
	sqlitestorage "github.com/robotsim/robots/internal/storage/sqlite"
	"github.com/rs/zerolog"
)

func createStorageBackend(rc config.RecorderConfig, dbc config.DBConfig, logger *slog.Logger, dbLog zerolog.Logger) (storage.Backend, error) {
	switch rc.Type {
	case "postgres":
		logger.Info("Postgres storage backend initialized")
		return pgstorage.New(pgstorage.Dependencies{
			Config: dbc,
			Logger: logger,
			DBLog:  dbLog,
		}), nil

	case "sqlite":
		backend, err := sqlitestorage.New(sqlitestorage.Config{
			Path:         rc.SQLitePath,
			InMemory:     rc.InMemory,
			DumpInterval: rc.DumpInterval,
		}, logger, dbLog)
		if err != nil {
			return nil, fmt.Errorf("failed to create SQLite backend: %w", err)
		}
		logger.Info("SQLite storage backend initialized", "path", rc.SQLitePath, "inMemory", rc.InMemory)
		return backend, nil

	case "memory", "":
		logger.Info("Memory storage backend initialized", "outputDir", rc.OutputDir)
		return memory.New(memory.Config{
			OutputDir:      rc.OutputDir,
			CompressOutput: rc.CompressOutput,
		}), nil

	default:
		return nil, fmt.Errorf("unknown storage type: %s", rc.Type)
	}
}
