package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/robotsim/robots/internal/command"
	"github.com/robotsim/robots/internal/dispatcher"
	"github.com/robotsim/robots/internal/robot"
)

// ErrStepLimit is returned by RunHeadless when the robot is still moving
// after the step limit.
var ErrStepLimit = errors.New("step limit reached before arrival")

// HeadlessResult is the outcome of a headless run.
type HeadlessResult struct {
	Steps    int            `json:"steps"`
	Arrived  bool           `json:"arrived"`
	Snapshot robot.Snapshot `json:"snapshot"`
}

// RunHeadless steps the robot through the dispatcher, without tickers, until
// it stops moving, maxSteps is reached or ctx is done. Every step is
// broadcast to stream clients when the stream is enabled.
func (a *App) RunHeadless(ctx context.Context, maxSteps int) (HeadlessResult, error) {
	var res HeadlessResult
	for res.Steps < maxSteps {
		if err := ctx.Err(); err != nil {
			res.Snapshot = a.Model.Snapshot()
			return res, err
		}

		out, err := a.Dispatcher.Dispatch(dispatcher.Event{
			Command: command.CmdRobotStep,
			Source:  "headless",
		})
		if err != nil {
			return res, fmt.Errorf("step %d: %w", res.Steps+1, err)
		}
		step := out.(command.StepResult)
		res.Snapshot = step.Snapshot
		if !step.Moved {
			res.Arrived = true
			break
		}
		res.Steps++

		if a.Stream != nil {
			a.Stream.Broadcast()
		}
	}

	if !res.Arrived {
		// the last allowed step may have been the arriving one
		res.Arrived = a.Model.AtTarget()
	}
	if res.Steps == 0 {
		res.Snapshot = a.Model.Snapshot()
	}

	a.Logger.Info("Headless run finished",
		"steps", res.Steps,
		"arrived", res.Arrived,
		"x", res.Snapshot.Pose.X,
		"y", res.Snapshot.Pose.Y,
	)
	if !res.Arrived {
		return res, ErrStepLimit
	}
	return res, nil
}
