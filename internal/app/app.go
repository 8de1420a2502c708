// Package app wires configuration, logging, telemetry, the motion model and
// its hosts into one runnable application.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/robotsim/robots/internal/command"
	"github.com/robotsim/robots/internal/config"
	"github.com/robotsim/robots/internal/dispatcher"
	"github.com/robotsim/robots/internal/logging"
	"github.com/robotsim/robots/internal/monitor"
	intOtel "github.com/robotsim/robots/internal/otel"
	"github.com/robotsim/robots/internal/recorder"
	"github.com/robotsim/robots/internal/robot"
	"github.com/robotsim/robots/internal/scheduler"
	"github.com/robotsim/robots/internal/shutdown"
	"github.com/robotsim/robots/internal/storage"
	"github.com/robotsim/robots/internal/stream"
	"github.com/robotsim/robots/pkg/core"
	"github.com/rs/zerolog"
)

// Name prefixes the log and telemetry file names.
const Name = "robots"

// ShutdownTimeout bounds Close.
var ShutdownTimeout = 15 * time.Second

// Options select the optional parts of the application.
type Options struct {
	// Console sends logs to stdout instead of a file under logsDir.
	Console bool
	// NoRecorder skips the recorder even when the config enables it.
	NoRecorder bool
	// NoStream skips the websocket server even when the config enables it.
	NoStream bool
}

// App holds the wired components. Optional components are nil when
// disabled.
type App struct {
	StartTime time.Time

	Logs       *logging.SlogManager
	Logger     *slog.Logger
	OTel       *intOtel.Provider
	Model      *robot.Model
	Dispatcher *dispatcher.Dispatcher
	Scheduler  *scheduler.Scheduler
	Backend    storage.Backend
	Recorder   *recorder.Recorder
	Stream     *stream.Server
	Monitor    *monitor.Service

	runID    atomic.Uint64
	dbLog    zerolog.Logger
	shutdown *shutdown.Manager
	files    []io.Closer
}

// New builds the application from the loaded configuration. On error every
// component created so far is closed.
func New(ctx context.Context, opts Options) (a *App, err error) {
	a = &App{StartTime: time.Now()}
	defer func() {
		if err != nil {
			_ = a.Close()
			a = nil
		}
	}()

	if err = a.setupLogging(opts.Console); err != nil {
		return a, err
	}

	rc := config.GetRobotConfig()
	a.Model = robot.New(rc.X, rc.Y,
		robot.WithHeading(rc.Heading),
		robot.WithTarget(rc.TargetX, rc.TargetY),
		robot.WithLimits(rc.Limits),
		robot.WithLogger(a.Logs.Component("robot")),
	)

	a.Dispatcher, err = dispatcher.New(logging.NewDispatcherLogger(a.dbLog.With().Str("component", "dispatcher").Logger()))
	if err != nil {
		return a, fmt.Errorf("failed to create dispatcher: %w", err)
	}
	a.shutdown.RegisterFunc("dispatcher", a.Dispatcher.Close)
	command.Register(a.Dispatcher, a.Model)

	a.Scheduler, err = scheduler.New(a.Model, config.GetSchedulerConfig(), scheduler.WithLogger(a.Logs.Component("scheduler")))
	if err != nil {
		return a, fmt.Errorf("failed to create scheduler: %w", err)
	}

	if rec := config.GetRecorderConfig(); rec.Enabled && !opts.NoRecorder {
		if err = a.setupRecorder(ctx, rec); err != nil {
			return a, err
		}
	}

	if sc := config.GetStreamConfig(); sc.Enabled && !opts.NoStream {
		a.Stream = stream.New(a.Model, a.Dispatcher, a.Logs.Component("stream"))
		if err = a.Stream.Start(sc.Addr); err != nil {
			a.Stream = nil
			return a, err
		}
		a.shutdown.Register("stream", a.Stream.Shutdown)
	}

	if mc := config.GetMonitorConfig(); mc.Enabled {
		if err = a.setupMonitor(mc); err != nil {
			return a, err
		}
		if err = a.Monitor.Start(); err != nil {
			return a, err
		}
		a.shutdown.RegisterFunc("monitor", a.Monitor.Stop)
	}

	// last registered, first stopped
	a.shutdown.RegisterFunc("scheduler", a.Scheduler.Stop)

	a.Logger.Info("Application initialized",
		"config", config.FileUsed(),
		"recorder", a.Recorder != nil,
		"stream", a.Stream != nil,
	)
	return a, nil
}

func (a *App) setupLogging(console bool) error {
	level := config.GetString("logLevel")
	logsDir := config.GetString("logsDir")

	var logOut io.Writer
	if !console {
		f, err := logging.OpenLogFile(logsDir, Name, a.StartTime)
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
		a.files = append(a.files, f)
		logOut = f
	}

	otelCfg := config.GetOTelConfig()
	cfg := intOtel.Config{
		Enabled:        otelCfg.Enabled,
		ServiceName:    otelCfg.ServiceName,
		BatchTimeout:   otelCfg.BatchTimeout,
		Endpoint:       otelCfg.Endpoint,
		Insecure:       otelCfg.Insecure,
		MetricInterval: otelCfg.MetricInterval,
	}
	if otelCfg.Enabled {
		if err := os.MkdirAll(logsDir, 0755); err != nil {
			return fmt.Errorf("failed to create logs dir: %w", err)
		}
		path := filepath.Join(logsDir, fmt.Sprintf("%s.%s.otel.jsonl", Name, a.StartTime.Format("20060102_150405")))
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return fmt.Errorf("failed to open OTel file: %w", err)
		}
		a.files = append(a.files, f)
		cfg.LogWriter = f
		cfg.MetricWriter = f
	}

	provider, err := intOtel.New(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize OTel: %w", err)
	}
	a.OTel = provider

	session := a.StartTime.Format("20060102_150405")
	a.Logs = logging.NewSlogManager(
		logging.WithJournal(logging.NewJournal(logging.DefaultJournalCapacity)),
		logging.WithContext(func() []slog.Attr {
			attrs := []slog.Attr{slog.String("session", session)}
			if id := a.runID.Load(); id != 0 {
				attrs = append(attrs, slog.Uint64("run", id))
			}
			return attrs
		}),
	)
	a.Logs.Setup(logOut, level, provider.LoggerProvider())
	a.Logger = a.Logs.Logger()

	a.shutdown = shutdown.New(a.Logs.Component("shutdown"))
	a.shutdown.Register("otel", provider.Shutdown)
	a.shutdown.Register("logs", a.Logs.Flush)

	zlOut := logOut
	if zlOut == nil {
		zlOut = os.Stdout
	}
	a.dbLog = logging.NewZerolog(zlOut, level)
	return nil
}

func (a *App) setupRecorder(ctx context.Context, rc config.RecorderConfig) error {
	backend, err := createStorageBackend(rc, config.GetDBConfig(), a.Logs.Component("storage"), a.dbLog)
	if err != nil {
		return err
	}
	if err := backend.Init(); err != nil {
		return fmt.Errorf("failed to initialize storage backend: %w", err)
	}
	a.Backend = backend
	a.shutdown.Register("storage", func(context.Context) error { return backend.Close() })

	a.Recorder, err = recorder.New(a.Model, backend, recorder.Config{
		SampleEvery:   rc.SampleEvery,
		FlushInterval: rc.FlushInterval,
		QueueSize:     rc.QueueSize,
	}, recorder.WithLogger(a.Logs.Component("recorder")))
	if err != nil {
		return err
	}

	run := &core.Run{
		Name:      fmt.Sprintf("%s %s", Name, a.StartTime.Format("2006-01-02 15:04:05")),
		StartedAt: a.StartTime,
		Settings:  a.runSettings(rc),
	}
	if err := a.Recorder.Start(ctx, run); err != nil {
		return err
	}
	a.runID.Store(uint64(run.ID))
	a.shutdown.Register("recorder", func(context.Context) error { return a.Recorder.Stop() })
	return nil
}

func (a *App) setupMonitor(mc config.MonitorConfig) error {
	deps := monitor.Dependencies{
		Model:      a.Model,
		Scheduler:  a.Scheduler,
		Logger:     a.Logs.Component("monitor"),
		StatusFile: mc.StatusFile,
		Interval:   mc.Interval,
	}
	if deps.StatusFile == "" {
		deps.StatusFile = filepath.Join(config.GetString("logsDir"), "status.json")
	}
	if err := os.MkdirAll(filepath.Dir(deps.StatusFile), 0755); err != nil {
		return fmt.Errorf("failed to create status dir: %w", err)
	}
	// typed nils must not reach the interfaces
	if a.Recorder != nil {
		deps.Recorder = a.Recorder
	}
	if a.Stream != nil {
		deps.Stream = a.Stream
	}
	a.Monitor = monitor.NewService(deps)
	return nil
}

func (a *App) runSettings(rc config.RecorderConfig) map[string]any {
	lim := a.Model.Limits()
	sc := a.Scheduler.Config()
	return map[string]any{
		"maxVelocity":        lim.MaxVelocity,
		"maxAngularVelocity": lim.MaxAngularVelocity,
		"arrivalTolerance":   lim.ArrivalTolerance,
		"updateInterval":     sc.UpdateInterval.String(),
		"redrawInterval":     sc.RedrawInterval.String(),
		"sampleEvery":        rc.SampleEvery,
	}
}

// Close stops every component in reverse start order and closes the log
// files.
func (a *App) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()

	var errs []error
	if a.shutdown != nil {
		a.Logger.Info("Shutting down")
		if err := a.shutdown.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	for i := len(a.files) - 1; i >= 0; i-- {
		if cerr := a.files[i].Close(); cerr != nil && !errors.Is(cerr, os.ErrClosed) {
			errs = append(errs, cerr)
		}
	}
	a.files = nil
	return errors.Join(errs...)
}
