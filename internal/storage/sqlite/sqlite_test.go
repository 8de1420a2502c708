package sqlitestorage

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/robotsim/robots/internal/database"
	"github.com/robotsim/robots/internal/storage"
	gormstorage "github.com/robotsim/robots/internal/storage/gorm"
	"github.com/robotsim/robots/pkg/core"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ storage.Backend = (*Backend)(nil)

func samples(n int) []core.Sample {
	out := make([]core.Sample, n)
	for i := range out {
		out[i] = core.Sample{Seq: uint64(i + 1), X: float64(i), Y: 0}
	}
	return out
}

func runsIn(t *testing.T, path string) []core.Run {
	t.Helper()
	db, err := database.OpenSQLite(path, zerolog.Nop())
	require.NoError(t, err)
	b := gormstorage.New(gormstorage.Dependencies{DB: db})
	t.Cleanup(func() { _ = b.Close() })

	runs, err := b.Runs()
	require.NoError(t, err)
	return runs
}

func TestFileBackend(t *testing.T) {
	path := filepath.Join(t.TempDir(), "robots.db")

	b, err := New(Config{Path: path}, nil, zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, b.Init())

	run := &core.Run{Name: "file"}
	require.NoError(t, b.StartRun(run))
	require.NoError(t, b.RecordSamples(samples(3)))
	require.NoError(t, b.EndRun())
	require.NoError(t, b.Close())
	require.NoError(t, b.Close(), "close is idempotent")

	runs := runsIn(t, path)
	require.Len(t, runs, 1)
	assert.Equal(t, "file", runs[0].Name)
	assert.Equal(t, "LINESTRING(0 0,1 0,2 0)", runs[0].PathWKT)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// The shared-cache memory database lives as long as any connection in the
// process, so the in-memory cases run one after another.
func TestInMemoryBackend(t *testing.T) {
	dir := t.TempDir()

	t.Run("close dumps", func(t *testing.T) {
		path := filepath.Join(dir, "close.db")
		b, err := New(Config{Path: path, InMemory: true}, nil, zerolog.Nop())
		require.NoError(t, err)
		require.NoError(t, b.Init())

		require.NoError(t, b.StartRun(&core.Run{Name: "memory"}))
		require.NoError(t, b.RecordSamples(samples(2)))
		require.NoError(t, b.Close())

		runs := runsIn(t, path)
		require.Len(t, runs, 1)
		assert.Equal(t, "memory", runs[0].Name)
		assert.NotNil(t, runs[0].EndedAt, "active run ended before the final dump")
		assert.Equal(t, 2, runs[0].SampleCount)
	})

	t.Run("periodic dump", func(t *testing.T) {
		path := filepath.Join(dir, "periodic.db")
		b, err := New(Config{Path: path, InMemory: true, DumpInterval: 10 * time.Millisecond}, nil, zerolog.Nop())
		require.NoError(t, err)
		require.NoError(t, b.Init())
		t.Cleanup(func() { _ = b.Close() })

		assert.Eventually(t, func() bool {
			return fileExists(path)
		}, 2*time.Second, 10*time.Millisecond)
	})
}
