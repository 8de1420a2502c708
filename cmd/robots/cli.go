package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/robotsim/robots/internal/app"
	"github.com/robotsim/robots/internal/config"
	"github.com/robotsim/robots/internal/logging"
)

func runHeadless(ctx context.Context, opts app.Options, steps int) (err error) {
	a, err := app.New(ctx, opts)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := a.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	a.Logger.Info("Starting robots", "version", Version, "buildDate", BuildDate, "mode", "headless")

	res, err := a.RunHeadless(ctx, steps)
	if err != nil && !errors.Is(err, app.ErrStepLimit) {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if encErr := enc.Encode(res); encErr != nil {
		return encErr
	}
	return err
}

func runServe(ctx context.Context, opts app.Options) (err error) {
	a, err := app.New(ctx, opts)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := a.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	a.Logger.Info("Starting robots", "version", Version, "buildDate", BuildDate, "mode", "serve")

	return a.Serve(ctx)
}

func runTrack(runID uint) error {
	logs := logging.NewSlogManager()
	logs.Setup(os.Stderr, config.GetString("logLevel"), nil)
	dbLog := logging.NewZerolog(os.Stderr, config.GetString("logLevel"))

	report, err := app.LoadTrack(config.GetRecorderConfig(), config.GetDBConfig(), logs.Component("storage"), dbLog, runID)
	if err != nil {
		return err
	}

	run := report.Run
	fmt.Printf("run %d %q started %s\n", run.ID, run.Name, run.StartedAt.Format("2006-01-02 15:04:05"))
	fmt.Printf("samples %d, path length %.3f\n", run.SampleCount, run.PathLength)
	if run.PathWKT != "" {
		fmt.Println(run.PathWKT)
	}
	return nil
}
