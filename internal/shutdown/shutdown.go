// Package shutdown runs component teardown steps in reverse registration
// order under a shared deadline.
package shutdown

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrTimeout is joined into the Shutdown error for every step that did not
// finish or start before the deadline.
var ErrTimeout = errors.New("shutdown step timed out")

// Logger interface for pluggable logging.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Warn(string, ...any)  {}

type step struct {
	name string
	fn   func(context.Context) error
}

// Manager collects shutdown steps.
type Manager struct {
	mu     sync.Mutex
	steps  []step
	logger Logger
	once   sync.Once
	err    error
}

// New creates a manager. A nil logger discards output.
func New(logger Logger) *Manager {
	if logger == nil {
		logger = nopLogger{}
	}
	return &Manager{logger: logger}
}

// Register adds a step. Steps registered later run first, so components are
// torn down before the things they depend on.
func (m *Manager) Register(name string, fn func(context.Context) error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.steps = append(m.steps, step{name: name, fn: fn})
}

// RegisterFunc adds a step that cannot fail.
func (m *Manager) RegisterFunc(name string, fn func()) {
	m.Register(name, func(context.Context) error {
		fn()
		return nil
	})
}

// Shutdown runs all steps once. A step still running at the deadline is
// abandoned and the remaining steps are skipped. Later calls return the
// first result.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.once.Do(func() {
		m.mu.Lock()
		steps := make([]step, len(m.steps))
		copy(steps, m.steps)
		m.mu.Unlock()

		var errs []error
		for i := len(steps) - 1; i >= 0; i-- {
			s := steps[i]
			if ctx.Err() != nil {
				m.logger.Warn("Shutdown step skipped", "step", s.name)
				errs = append(errs, fmt.Errorf("%s: %w", s.name, ErrTimeout))
				continue
			}

			done := make(chan error, 1)
			go func() {
				done <- s.fn(ctx)
			}()

			select {
			case err := <-done:
				if err != nil {
					errs = append(errs, fmt.Errorf("%s: %w", s.name, err))
				}
				m.logger.Debug("Shutdown step completed", "step", s.name)
			case <-ctx.Done():
				m.logger.Warn("Shutdown step timeout", "step", s.name)
				errs = append(errs, fmt.Errorf("%s: %w", s.name, ErrTimeout))
			}
		}
		m.err = errors.Join(errs...)
	})
	return m.err
}
