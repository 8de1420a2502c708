package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/robotsim/robots/internal/app"
	"github.com/robotsim/robots/internal/config"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// module defs - BuildDate can be set at build time via ldflags
var (
	Version   string = "0.0.1"
	BuildDate string = "unknown"
)

const usage = `Usage: robots [command] [flags]

Commands:
  gui       open the window and follow the target (default)
  headless  step the robot without a window until it arrives
  serve     run the tickers without a window and feed stream clients
  track     print the recorded path of a run as WKT

Flags:
`

func main() {
	cmd := "gui"
	args := os.Args[1:]
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		cmd = strings.ToLower(args[0])
		args = args[1:]
	}

	flags := pflag.NewFlagSet("robots", pflag.ContinueOnError)
	flags.Usage = func() {
		fmt.Fprint(os.Stderr, usage)
		flags.PrintDefaults()
	}
	configDir := flags.String("config-dir", ".", "directory holding "+config.FileName)
	flags.String("log-level", "", "log level override (debug, info, warn, error)")
	flags.String("logs-dir", "", "log directory override")
	steps := flags.Int("steps", 2000, "headless: maximum number of steps")
	runID := flags.Uint("run", 0, "track: run id, 0 for the latest run")
	noRecord := flags.Bool("no-record", false, "do not record the run even if the recorder is enabled")
	noStream := flags.Bool("no-stream", false, "do not serve the websocket feed even if it is enabled")
	version := flags.BoolP("version", "v", false, "print the version and exit")

	if err := flags.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		os.Exit(2)
	}
	if *version {
		fmt.Printf("robots %s (built %s)\n", Version, BuildDate)
		return
	}

	if err := config.Load(*configDir); err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	bindOverride(flags, "log-level", "logLevel")
	bindOverride(flags, "logs-dir", "logsDir")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := app.Options{NoRecorder: *noRecord, NoStream: *noStream}

	var err error
	switch cmd {
	case "gui":
		err = runGUI(ctx, opts)
	case "headless":
		err = runHeadless(ctx, opts, *steps)
	case "serve":
		err = runServe(ctx, opts)
	case "track":
		err = runTrack(*runID)
	default:
		flags.Usage()
		err = fmt.Errorf("unknown command: %s", cmd)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "robots %s: %v\n", cmd, err)
		stop()
		os.Exit(1)
	}
}

// bindOverride lets a flag replace a config value only when it was given.
func bindOverride(flags *pflag.FlagSet, name, key string) {
	if flags.Changed(name) {
		_ = viper.BindPFlag(key, flags.Lookup(name))
	}
}

func runGUI(ctx context.Context, opts app.Options) (err error) {
	a, err := app.New(ctx, opts)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := a.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	a.Logger.Info("Starting robots", "version", Version, "buildDate", BuildDate, "mode", "gui")

	if err := a.Scheduler.Start(ctx); err != nil {
		return err
	}
	return showWindow(ctx, a)
}
