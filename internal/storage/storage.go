// internal/storage/storage.go
package storage

import (
	"errors"

	"github.com/robotsim/robots/pkg/core"
)

var (
	// ErrNoActiveRun is returned when samples are recorded or a run is ended
	// without a started run.
	ErrNoActiveRun = errors.New("no active run")
	// ErrRunNotFound is returned by Track for an unknown run id.
	ErrRunNotFound = errors.New("run not found")
)

// Backend is the interface all storage implementations must satisfy
type Backend interface {
	// Lifecycle
	Init() error
	Close() error

	// Run management (StartRun assigns ID to the passed pointer)
	StartRun(run *core.Run) error
	EndRun() error

	// Sample recording, stamped with the active run id
	RecordSamples(samples []core.Sample) error

	// Queries
	Runs() ([]core.Run, error)
	Track(runID uint) ([]core.Sample, error)
}

// Exportable is an optional interface for backends that write a file when a
// run ends.
type Exportable interface {
	ExportedFilePath() string
}
