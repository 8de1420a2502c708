package monitor

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/robotsim/robots/internal/recorder"
	"github.com/robotsim/robots/internal/robot"
	"github.com/robotsim/robots/internal/scheduler"
)

// SnapshotSource provides the robot state.
type SnapshotSource interface {
	Snapshot() robot.Snapshot
}

// SchedulerStats provides tick counters.
type SchedulerStats interface {
	Stats() scheduler.Stats
}

// RecorderStats provides recording counters.
type RecorderStats interface {
	Stats() recorder.Stats
}

// ClientCounter provides the number of connected stream clients.
type ClientCounter interface {
	Clients() int
}

// Dependencies holds all dependencies for the monitor service. Recorder and
// Stream are optional.
type Dependencies struct {
	Model      SnapshotSource
	Scheduler  SchedulerStats
	Recorder   RecorderStats
	Stream     ClientCounter
	Logger     *slog.Logger
	StatusFile string // rewritten on every tick, empty disables it
	Interval   time.Duration
}

// Status is one view of the running program.
type Status struct {
	Time          time.Time       `json:"time"`
	Uptime        string          `json:"uptime"`
	Robot         robot.Snapshot  `json:"robot"`
	Scheduler     scheduler.Stats `json:"scheduler"`
	Recorder      *recorder.Stats `json:"recorder,omitempty"`
	StreamClients *int            `json:"streamClients,omitempty"`
}

// Service manages status monitoring
type Service struct {
	deps    Dependencies
	started time.Time

	mu        sync.RWMutex
	isRunning bool
	stopChan  chan struct{}
	wg        sync.WaitGroup
}

// NewService creates a new monitor service
func NewService(deps Dependencies) *Service {
	if deps.Logger == nil {
		deps.Logger = slog.New(slog.DiscardHandler)
	}
	if deps.Interval <= 0 {
		deps.Interval = time.Second
	}
	return &Service{
		deps:    deps,
		started: time.Now(),
	}
}

// IsRunning returns whether the status monitor is running
func (s *Service) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// GetStatus returns the current program status
func (s *Service) GetStatus() Status {
	now := time.Now()
	st := Status{
		Time:   now,
		Uptime: now.Sub(s.started).Truncate(time.Second).String(),
		Robot:  s.deps.Model.Snapshot(),
	}
	if s.deps.Scheduler != nil {
		st.Scheduler = s.deps.Scheduler.Stats()
	}
	if s.deps.Recorder != nil {
		rs := s.deps.Recorder.Stats()
		st.Recorder = &rs
	}
	if s.deps.Stream != nil {
		n := s.deps.Stream.Clients()
		st.StreamClients = &n
	}
	return st
}

// WriteStatus writes the current status to the status file.
func (s *Service) WriteStatus() error {
	if s.deps.StatusFile == "" {
		return nil
	}
	data, err := json.MarshalIndent(s.GetStatus(), "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode status: %w", err)
	}
	if err := os.WriteFile(s.deps.StatusFile, append(data, '\n'), 0644); err != nil {
		return fmt.Errorf("failed to write status file: %w", err)
	}
	return nil
}

// Start starts the status monitor goroutine
func (s *Service) Start() error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = true
	s.stopChan = make(chan struct{})
	stop := s.stopChan
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		logger := s.deps.Logger
		logger.Debug("Starting status monitor goroutine", "interval", s.deps.Interval, "file", s.deps.StatusFile)

		ticker := time.NewTicker(s.deps.Interval)
		defer ticker.Stop()

		var lastSeq uint64
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				if err := s.WriteStatus(); err != nil {
					logger.Error("Error writing status", "error", err)
				}
				if snap := s.deps.Model.Snapshot(); snap.Seq != lastSeq {
					logger.Debug("Robot moving", "seq", snap.Seq, "x", snap.Pose.X, "y", snap.Pose.Y)
					lastSeq = snap.Seq
				}
			}
		}
	}()

	return nil
}

// Stop stops the status monitor and waits for it, then writes a final
// status.
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return
	}
	s.isRunning = false
	close(s.stopChan)
	s.mu.Unlock()

	s.wg.Wait()
	if err := s.WriteStatus(); err != nil {
		s.deps.Logger.Error("Error writing status", "error", err)
	}
}
