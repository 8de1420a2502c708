// Package recorder samples robot snapshots into a storage backend. Samples
// are queued by the observer and written in batches by a flush goroutine, so
// Step never waits on storage.
package recorder

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robotsim/robots/internal/queue"
	"github.com/robotsim/robots/internal/robot"
	"github.com/robotsim/robots/internal/storage"
	"github.com/robotsim/robots/pkg/core"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/robotsim/robots/internal/recorder"

// ErrAlreadyStarted is returned by Start on a recording recorder.
var ErrAlreadyStarted = errors.New("recorder already started")

// Source is the observable motion model.
type Source interface {
	Subscribe(fn robot.Observer) robot.Subscription
	Unsubscribe(id robot.Subscription)
}

// Logger interface for pluggable logging.
type Logger interface {
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

type nopLogger struct{}

func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}

// Config controls sampling and batching.
type Config struct {
	SampleEvery   int           // keep every N-th moving snapshot, <1 means 1
	FlushInterval time.Duration // <=0 flushes only on Close and explicit Flush
	QueueSize     int           // 0 means unbounded
}

// Stats are cumulative counters.
type Stats struct {
	Observed uint64 // snapshots delivered by the model
	Queued   uint64 // snapshots kept as samples
	Written  uint64 // samples accepted by the backend
	Dropped  uint64 // samples rejected by a full queue
}

// Option configures a Recorder.
type Option func(*Recorder)

// WithLogger sets the logger.
func WithLogger(l Logger) Option {
	return func(r *Recorder) { r.logger = l }
}

// WithClock overrides the sample timestamp source.
func WithClock(now func() time.Time) Option {
	return func(r *Recorder) { r.now = now }
}

// Recorder writes sampled snapshots of one run at a time.
type Recorder struct {
	source  Source
	backend storage.Backend
	cfg     Config
	logger  Logger
	now     func() time.Time

	queue *queue.Queue[core.Sample]

	mu      sync.Mutex // guards run state below
	running bool
	sub     robot.Subscription
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	last    *core.Sample // last observed snapshot, kept to close the track

	flushMu sync.Mutex // serializes writes to the backend

	observed atomic.Uint64
	queued   atomic.Uint64
	written  atomic.Uint64

	sampleCounter  metric.Int64Counter
	droppedCounter metric.Int64Counter
}

// New creates a recorder. Nothing is recorded before Start.
func New(source Source, backend storage.Backend, cfg Config, opts ...Option) (*Recorder, error) {
	if cfg.SampleEvery < 1 {
		cfg.SampleEvery = 1
	}
	r := &Recorder{
		source:  source,
		backend: backend,
		cfg:     cfg,
		logger:  nopLogger{},
		now:     time.Now,
		queue:   queue.New[core.Sample](cfg.QueueSize),
	}
	for _, opt := range opts {
		opt(r)
	}

	m := otel.Meter(instrumentationName)
	var err error
	r.sampleCounter, err = m.Int64Counter(
		"recorder.samples",
		metric.WithDescription("Samples written to storage"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating samples counter: %w", err)
	}
	r.droppedCounter, err = m.Int64Counter(
		"recorder.samples.dropped",
		metric.WithDescription("Samples rejected because the queue was full"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating dropped counter: %w", err)
	}
	return r, nil
}

// Start opens a run in the backend and subscribes to the model. run.ID is
// assigned by the backend.
func (r *Recorder) Start(ctx context.Context, run *core.Run) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.running {
		return ErrAlreadyStarted
	}
	if err := r.backend.StartRun(run); err != nil {
		return fmt.Errorf("failed to start run: %w", err)
	}

	r.running = true
	r.last = nil
	r.observed.Store(0)

	ctx, r.cancel = context.WithCancel(ctx)
	r.sub = r.source.Subscribe(r.observe)

	if r.cfg.FlushInterval > 0 {
		r.wg.Add(1)
		go r.flushLoop(ctx)
	}

	r.logger.Info("recording started", "runID", run.ID, "sampleEvery", r.cfg.SampleEvery)
	return nil
}

func (r *Recorder) observe(s robot.Snapshot) {
	sample := core.Sample{
		Seq:     s.Seq,
		Time:    r.now(),
		X:       s.Pose.X,
		Y:       s.Pose.Y,
		Heading: s.Pose.Heading,
		TargetX: s.Target.X,
		TargetY: s.Target.Y,
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	// a notification already in flight when Stop unsubscribed
	if !r.running {
		return
	}

	n := r.observed.Add(1)
	if (n-1)%uint64(r.cfg.SampleEvery) == 0 {
		r.last = nil
		r.enqueue(sample)
		return
	}
	r.last = &sample
}

func (r *Recorder) enqueue(samples ...core.Sample) {
	rejected := r.queue.Push(samples...)
	r.queued.Add(uint64(len(samples) - rejected))
	if rejected > 0 {
		r.droppedCounter.Add(context.Background(), int64(rejected))
	}
}

func (r *Recorder) flushLoop(ctx context.Context) {
	defer r.wg.Done()
	ticker := time.NewTicker(r.cfg.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := r.Flush(); err != nil {
				r.logger.Error("flush failed", "error", err)
			}
		}
	}
}

// Flush writes all queued samples to the backend. Samples are lost if the
// backend rejects them.
func (r *Recorder) Flush() error {
	r.flushMu.Lock()
	defer r.flushMu.Unlock()

	batch := r.queue.GetAndEmpty()
	if len(batch) == 0 {
		return nil
	}
	if err := r.backend.RecordSamples(batch); err != nil {
		return fmt.Errorf("failed to record %d samples: %w", len(batch), err)
	}
	r.written.Add(uint64(len(batch)))
	r.sampleCounter.Add(context.Background(), int64(len(batch)))
	return nil
}

// Stop unsubscribes, stops the flush goroutine, writes pending samples
// including the final pose, and ends the run. Stop on an idle recorder is a
// no-op.
func (r *Recorder) Stop() error {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return nil
	}
	r.running = false
	r.source.Unsubscribe(r.sub)
	r.cancel()
	last := r.last
	r.last = nil
	r.mu.Unlock()

	r.wg.Wait()

	if last != nil {
		r.enqueue(*last)
	}

	var errs []error
	if err := r.Flush(); err != nil {
		errs = append(errs, err)
	}
	if err := r.backend.EndRun(); err != nil {
		errs = append(errs, fmt.Errorf("failed to end run: %w", err))
	}

	stats := r.Stats()
	if stats.Dropped > 0 {
		r.logger.Warn("samples dropped", "dropped", stats.Dropped)
	}
	r.logger.Info("recording stopped", "written", stats.Written)
	return errors.Join(errs...)
}

// Recording reports whether a run is open.
func (r *Recorder) Recording() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}

// Stats returns the cumulative counters. Observed restarts with each run.
func (r *Recorder) Stats() Stats {
	return Stats{
		Observed: r.observed.Load(),
		Queued:   r.queued.Load(),
		Written:  r.written.Load(),
		Dropped:  r.queue.Dropped(),
	}
}
