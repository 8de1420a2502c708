// Package scheduler drives the motion model with two independent periodic
// triggers: an update tick that calls Step exactly once per tick, and a redraw
// tick that signals hosts to repaint. Redraw signals coalesce when the host
// falls behind; update ticks never do.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/robotsim/robots/internal/scheduler"

var (
	// ErrAlreadyRunning is returned by Start on a running scheduler.
	ErrAlreadyRunning = errors.New("scheduler already running")
	// ErrInvalidInterval is returned by New for non-positive intervals.
	ErrInvalidInterval = errors.New("interval must be positive")
)

// Stepper advances the simulation by one increment.
type Stepper interface {
	Step() bool
}

// Logger interface for pluggable logging.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
}

// Config holds the tick periods.
type Config struct {
	UpdateInterval time.Duration `json:"updateInterval" mapstructure:"updateInterval"`
	RedrawInterval time.Duration `json:"redrawInterval" mapstructure:"redrawInterval"`
}

// DefaultConfig returns 10ms updates and 50ms redraws.
func DefaultConfig() Config {
	return Config{
		UpdateInterval: 10 * time.Millisecond,
		RedrawInterval: 50 * time.Millisecond,
	}
}

// Stats are cumulative tick counters.
type Stats struct {
	Steps     uint64 // update ticks that called Step
	Moved     uint64 // of those, steps that moved the robot
	Redraws   uint64 // redraw signals delivered
	Coalesced uint64 // redraw ticks dropped because a signal was pending
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithLogger attaches a logger for start/stop events.
func WithLogger(l Logger) Option {
	return func(s *Scheduler) {
		s.logger = l
	}
}

// Scheduler owns the two tick loops.
type Scheduler struct {
	stepper Stepper
	cfg     Config
	logger  Logger
	redraw  chan struct{}

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{} // closed once both loops of the current run exit

	steps     atomic.Uint64
	moved     atomic.Uint64
	redraws   atomic.Uint64
	coalesced atomic.Uint64

	stepCounter      metric.Int64Counter
	redrawCounter    metric.Int64Counter
	coalescedCounter metric.Int64Counter
}

// New creates a stopped scheduler for stepper.
// Uses the global OTel meter for metrics (no-op if not configured).
func New(stepper Stepper, cfg Config, opts ...Option) (*Scheduler, error) {
	if cfg.UpdateInterval <= 0 || cfg.RedrawInterval <= 0 {
		return nil, fmt.Errorf("%w: update %s, redraw %s", ErrInvalidInterval, cfg.UpdateInterval, cfg.RedrawInterval)
	}

	s := &Scheduler{
		stepper: stepper,
		cfg:     cfg,
		redraw:  make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(s)
	}

	m := otel.Meter(instrumentationName)

	var err error
	s.stepCounter, err = m.Int64Counter(
		"scheduler.steps",
		metric.WithDescription("Update ticks that invoked Step"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating steps counter: %w", err)
	}

	s.redrawCounter, err = m.Int64Counter(
		"scheduler.redraws",
		metric.WithDescription("Redraw signals delivered"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating redraws counter: %w", err)
	}

	s.coalescedCounter, err = m.Int64Counter(
		"scheduler.redraws.coalesced",
		metric.WithDescription("Redraw ticks merged into a pending signal"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating coalesced counter: %w", err)
	}

	return s, nil
}

// Redraw returns the repaint signal channel. At most one signal is pending.
func (s *Scheduler) Redraw() <-chan struct{} {
	return s.redraw
}

// Config returns the tick periods.
func (s *Scheduler) Config() Config {
	return s.cfg
}

// Start launches both loops. They run until Stop is called or ctx is done;
// in either case the scheduler can be started again afterwards.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.runningLocked() {
		return ErrAlreadyRunning
	}

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	s.cancel = cancel
	s.done = done

	if s.logger != nil {
		s.logger.Info("scheduler started",
			"updateInterval", s.cfg.UpdateInterval,
			"redrawInterval", s.cfg.RedrawInterval)
	}

	var loops sync.WaitGroup
	loops.Add(2)
	go s.updateLoop(runCtx, &loops)
	go s.redrawLoop(runCtx, &loops)
	go func() {
		loops.Wait()
		cancel()
		if s.logger != nil {
			st := s.Stats()
			s.logger.Info("scheduler stopped", "steps", st.Steps, "redraws", st.Redraws, "coalesced", st.Coalesced)
		}
		close(done)
	}()

	return nil
}

// Stop halts both loops. When Stop returns no further Step will begin and
// any in-flight Step has completed. Calling Stop on a stopped scheduler is a
// no-op.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.done == nil {
		return
	}
	s.cancel()
	<-s.done
}

// Running reports whether the loops are live: Start has been called and
// neither Stop nor the end of its context has halted them.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runningLocked()
}

func (s *Scheduler) runningLocked() bool {
	if s.done == nil {
		return false
	}
	select {
	case <-s.done:
		return false
	default:
		return true
	}
}

// Stats returns the cumulative counters.
func (s *Scheduler) Stats() Stats {
	return Stats{
		Steps:     s.steps.Load(),
		Moved:     s.moved.Load(),
		Redraws:   s.redraws.Load(),
		Coalesced: s.coalesced.Load(),
	}
}

func (s *Scheduler) updateLoop(ctx context.Context, wg *sync.WaitGroup) {
	defer wg.Done()

	ticker := time.NewTicker(s.cfg.UpdateInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// select picks randomly when both are ready
			if ctx.Err() != nil {
				return
			}
			if s.stepper.Step() {
				s.moved.Add(1)
			}
			s.steps.Add(1)
			s.stepCounter.Add(ctx, 1)
		}
	}
}

func (s *Scheduler) redrawLoop(ctx context.Context, wg *sync.WaitGroup) {
	defer wg.Done()

	ticker := time.NewTicker(s.cfg.RedrawInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			select {
			case s.redraw <- struct{}{}:
				s.redraws.Add(1)
				s.redrawCounter.Add(ctx, 1)
			default:
				s.coalesced.Add(1)
				s.coalescedCounter.Add(ctx, 1)
			}
		}
	}
}
