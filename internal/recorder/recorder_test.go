package recorder

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/robotsim/robots/internal/robot"
	"github.com/robotsim/robots/internal/storage"
	"github.com/robotsim/robots/internal/storage/memory"
	"github.com/robotsim/robots/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingLogger struct {
	mu   sync.Mutex
	msgs []string
}

func (l *recordingLogger) log(msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.msgs = append(l.msgs, msg)
}

func (l *recordingLogger) Info(msg string, _ ...any)  { l.log(msg) }
func (l *recordingLogger) Warn(msg string, _ ...any)  { l.log(msg) }
func (l *recordingLogger) Error(msg string, _ ...any) { l.log(msg) }

func (l *recordingLogger) messages() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.msgs...)
}

// failingBackend rejects every write.
type failingBackend struct {
	*memory.Backend
}

func (failingBackend) StartRun(*core.Run) error { return errors.New("disk full") }

func stepAll(m *robot.Model, n int) {
	for i := 0; i < n; i++ {
		m.Step()
	}
}

func newRecorder(t *testing.T, m *robot.Model, b storage.Backend, cfg Config, opts ...Option) *Recorder {
	t.Helper()
	r, err := New(m, b, cfg, opts...)
	require.NoError(t, err)
	return r
}

func TestRecorder_SamplesEveryNth(t *testing.T) {
	m := robot.New(100, 100, robot.WithTarget(150, 100))
	b := memory.New(memory.Config{})
	r := newRecorder(t, m, b, Config{SampleEvery: 10})

	run := &core.Run{Name: "east"}
	require.NoError(t, r.Start(context.Background(), run))
	assert.True(t, r.Recording())

	stepAll(m, 200) // arrives after 124 moving steps
	require.NoError(t, r.Stop())
	assert.False(t, r.Recording())

	track, err := b.Track(run.ID)
	require.NoError(t, err)
	// seq 1, 11, ..., 121 plus the final pose
	require.Len(t, track, 14)
	assert.Equal(t, uint64(1), track[0].Seq)
	assert.Equal(t, uint64(11), track[1].Seq)
	assert.Equal(t, uint64(124), track[13].Seq)
	assert.InDelta(t, 149.6, track[13].X, 1e-6)
	assert.Equal(t, 150, track[13].TargetX)

	stats := r.Stats()
	assert.Equal(t, uint64(124), stats.Observed)
	assert.Equal(t, uint64(14), stats.Written)
	assert.Zero(t, stats.Dropped)

	runs, err := b.Runs()
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, 14, runs[0].SampleCount)
	assert.NotEmpty(t, runs[0].PathWKT)
}

func TestRecorder_FinalPoseNotDuplicated(t *testing.T) {
	m := robot.New(0, 0, robot.WithTarget(100, 0))
	b := memory.New(memory.Config{})
	r := newRecorder(t, m, b, Config{SampleEvery: 1})

	run := &core.Run{}
	require.NoError(t, r.Start(context.Background(), run))
	stepAll(m, 3)
	require.NoError(t, r.Stop())

	track, err := b.Track(run.ID)
	require.NoError(t, err)
	assert.Len(t, track, 3)
}

func TestRecorder_QueueOverflowDrops(t *testing.T) {
	m := robot.New(0, 0, robot.WithTarget(1000, 0))
	b := memory.New(memory.Config{})
	logger := &recordingLogger{}
	r := newRecorder(t, m, b, Config{SampleEvery: 1, QueueSize: 3}, WithLogger(logger))

	run := &core.Run{}
	require.NoError(t, r.Start(context.Background(), run))
	stepAll(m, 10)

	stats := r.Stats()
	assert.Equal(t, uint64(3), stats.Queued)
	assert.Equal(t, uint64(7), stats.Dropped)

	require.NoError(t, r.Stop())
	track, err := b.Track(run.ID)
	require.NoError(t, err)
	assert.Len(t, track, 3, "oldest samples are kept")
	assert.Contains(t, logger.messages(), "samples dropped")
}

func TestRecorder_PeriodicFlush(t *testing.T) {
	m := robot.New(0, 0, robot.WithTarget(1000, 0))
	b := memory.New(memory.Config{})
	r := newRecorder(t, m, b, Config{SampleEvery: 1, FlushInterval: 5 * time.Millisecond})

	run := &core.Run{}
	require.NoError(t, r.Start(context.Background(), run))
	t.Cleanup(func() { _ = r.Stop() })
	stepAll(m, 5)

	assert.Eventually(t, func() bool {
		track, err := b.Track(run.ID)
		return err == nil && len(track) == 5
	}, time.Second, 5*time.Millisecond)
}

func TestRecorder_StartTwice(t *testing.T) {
	m := robot.New(0, 0)
	r := newRecorder(t, m, memory.New(memory.Config{}), Config{})

	require.NoError(t, r.Start(context.Background(), &core.Run{}))
	assert.ErrorIs(t, r.Start(context.Background(), &core.Run{}), ErrAlreadyStarted)
	require.NoError(t, r.Stop())
	require.NoError(t, r.Stop(), "stop on an idle recorder is a no-op")

	// a new run after stop
	require.NoError(t, r.Start(context.Background(), &core.Run{}))
	require.NoError(t, r.Stop())
}

func TestRecorder_NothingRecordedAfterStop(t *testing.T) {
	m := robot.New(0, 0, robot.WithTarget(1000, 0))
	b := memory.New(memory.Config{})
	r := newRecorder(t, m, b, Config{SampleEvery: 1})

	run := &core.Run{}
	require.NoError(t, r.Start(context.Background(), run))
	stepAll(m, 2)
	require.NoError(t, r.Stop())
	stepAll(m, 5)

	assert.Equal(t, uint64(2), r.Stats().Observed)
	track, err := b.Track(run.ID)
	require.NoError(t, err)
	assert.Len(t, track, 2)
}

func TestRecorder_StartRunFails(t *testing.T) {
	m := robot.New(0, 0)
	r := newRecorder(t, m, failingBackend{memory.New(memory.Config{})}, Config{})

	err := r.Start(context.Background(), &core.Run{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.False(t, r.Recording())
}

func TestRecorder_UsesClock(t *testing.T) {
	ts := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	m := robot.New(0, 0, robot.WithTarget(10, 0))
	b := memory.New(memory.Config{})
	r := newRecorder(t, m, b, Config{}, WithClock(func() time.Time { return ts }))

	run := &core.Run{}
	require.NoError(t, r.Start(context.Background(), run))
	m.Step()
	require.NoError(t, r.Stop())

	track, err := b.Track(run.ID)
	require.NoError(t, err)
	require.Len(t, track, 1)
	assert.Equal(t, ts, track[0].Time)
}
