// internal/storage/memory/memory_test.go
package memory

import (
	"compress/gzip"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/robotsim/robots/internal/storage"
	"github.com/robotsim/robots/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Verify Backend implements storage.Backend interface
var _ storage.Backend = (*Backend)(nil)

// Verify Backend implements storage.Exportable interface
var _ storage.Exportable = (*Backend)(nil)

var testStart = time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

func newTestBackend(cfg Config) *Backend {
	b := New(cfg)
	b.now = func() time.Time { return testStart.Add(time.Minute) }
	return b
}

func eastward(n int) []core.Sample {
	out := make([]core.Sample, n)
	for i := range out {
		out[i] = core.Sample{Seq: uint64(i + 1), X: 100 + float64(i), Y: 100, TargetX: 150, TargetY: 100}
	}
	return out
}

func TestInitAndClose(t *testing.T) {
	b := New(Config{})
	assert.NoError(t, b.Init())
	assert.NoError(t, b.Close())
}

func TestStartRun_AssignsIDs(t *testing.T) {
	b := newTestBackend(Config{})

	first := &core.Run{Name: "a", StartedAt: testStart}
	require.NoError(t, b.StartRun(first))
	second := &core.Run{Name: "b"}
	require.NoError(t, b.StartRun(second))

	assert.Equal(t, uint(1), first.ID)
	assert.Equal(t, uint(2), second.ID)
	assert.Equal(t, testStart.Add(time.Minute), second.StartedAt, "zero start time is filled")

	runs, err := b.Runs()
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.NotNil(t, runs[0].EndedAt, "starting a new run ends the previous one")
}

func TestRecordSamples_NoActiveRun(t *testing.T) {
	b := newTestBackend(Config{})
	assert.ErrorIs(t, b.RecordSamples(eastward(1)), storage.ErrNoActiveRun)
	assert.ErrorIs(t, b.EndRun(), storage.ErrNoActiveRun)
}

func TestEndRun_Summarizes(t *testing.T) {
	b := newTestBackend(Config{})
	run := &core.Run{Name: "east", StartedAt: testStart}
	require.NoError(t, b.StartRun(run))

	samples := eastward(5)
	// out of order input is sorted by seq
	require.NoError(t, b.RecordSamples([]core.Sample{samples[3], samples[4]}))
	require.NoError(t, b.RecordSamples(samples[:3]))
	require.NoError(t, b.EndRun())

	rec, ok := b.GetRun(run.ID)
	require.True(t, ok)
	assert.Equal(t, 5, rec.Run.SampleCount)
	assert.InDelta(t, 4.0, rec.Run.PathLength, 1e-9)
	assert.Equal(t, "LINESTRING(100 100,101 100,102 100,103 100,104 100)", rec.Run.PathWKT)
	require.NotNil(t, rec.Run.EndedAt)
	assert.Equal(t, testStart.Add(time.Minute), *rec.Run.EndedAt)
	assert.Empty(t, b.ExportedFilePath(), "no output dir means no export")

	for _, s := range rec.Samples {
		assert.Equal(t, run.ID, s.RunID)
	}
}

func TestTrack(t *testing.T) {
	b := newTestBackend(Config{})
	run := &core.Run{}
	require.NoError(t, b.StartRun(run))
	require.NoError(t, b.RecordSamples(eastward(3)))

	track, err := b.Track(run.ID)
	require.NoError(t, err)
	require.Len(t, track, 3)
	assert.Equal(t, uint64(1), track[0].Seq)

	// returned slice is a copy
	track[0].X = -1
	again, _ := b.Track(run.ID)
	assert.Equal(t, 100.0, again[0].X)

	_, err = b.Track(99)
	assert.ErrorIs(t, err, storage.ErrRunNotFound)
	_, err = b.Track(0)
	assert.ErrorIs(t, err, storage.ErrRunNotFound)
}

func TestExport_JSON(t *testing.T) {
	dir := t.TempDir()
	b := newTestBackend(Config{OutputDir: dir})
	run := &core.Run{Name: "demo run", StartedAt: testStart, Settings: map[string]any{"sampleEvery": 10}}
	require.NoError(t, b.StartRun(run))
	require.NoError(t, b.RecordSamples(eastward(2)))
	require.NoError(t, b.EndRun())

	path := b.ExportedFilePath()
	assert.Equal(t, filepath.Join(dir, "demo_run_20240301_100000.json"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var export RunExport
	require.NoError(t, json.Unmarshal(data, &export))
	assert.Equal(t, "demo run", export.Name)
	assert.Equal(t, 2, export.SampleCount)
	assert.Equal(t, "LINESTRING(100 100,101 100)", export.PathWKT)
	require.Len(t, export.Samples, 2)
	assert.Equal(t, []any{2.0, 101.0, 100.0, 0.0, 150.0, 100.0}, export.Samples[1])
}

func TestExport_Gzip(t *testing.T) {
	dir := t.TempDir()
	b := newTestBackend(Config{OutputDir: dir, CompressOutput: true})
	require.NoError(t, b.StartRun(&core.Run{StartedAt: testStart}))
	require.NoError(t, b.EndRun())

	path := b.ExportedFilePath()
	assert.True(t, strings.HasSuffix(path, "run1_20240301_100000.json.gz"))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	gz, err := gzip.NewReader(f)
	require.NoError(t, err)

	var export RunExport
	require.NoError(t, json.NewDecoder(gz).Decode(&export))
	assert.Equal(t, uint(1), export.ID)
	assert.Empty(t, export.Samples)
}
