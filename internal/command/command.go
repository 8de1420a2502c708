// Package command turns host input into motion model calls and binds the
// robot commands to the dispatcher.
package command

import (
	"errors"
	"fmt"
	"math"
	"strconv"

	"github.com/robotsim/robots/internal/dispatcher"
	"github.com/robotsim/robots/internal/geo"
	"github.com/robotsim/robots/internal/robot"
)

// Command names understood by Register.
const (
	CmdSetTarget   = ":TARGET:SET:"
	CmdRobotStatus = ":ROBOT:STATUS:"
	CmdRobotStep   = ":ROBOT:STEP:"
)

// ErrBadArgs is returned for malformed command arguments.
var ErrBadArgs = errors.New("bad arguments")

// TargetSetter is anything that accepts a new integer target.
type TargetSetter interface {
	SetTarget(x, y int)
}

// Model is the subset of the motion model the commands use.
type Model interface {
	TargetSetter
	Step() bool
	Snapshot() robot.Snapshot
}

// SetTargetFromPoint rounds a raw pointer position half-up onto the integer
// grid and sets it as the target. The rounded point is returned.
func SetTargetFromPoint(t TargetSetter, x, y float64) (int, int) {
	tx, ty := geo.RoundHalfUp(x), geo.RoundHalfUp(y)
	t.SetTarget(tx, ty)
	return tx, ty
}

// StepResult is returned by the step command.
type StepResult struct {
	Moved    bool           `json:"moved"`
	Snapshot robot.Snapshot `json:"snapshot"`
}

// Register binds the robot commands on d.
func Register(d *dispatcher.Dispatcher, m Model) {
	d.Register(CmdSetTarget, func(e dispatcher.Event) (any, error) {
		x, y, err := parsePoint(e.Args)
		if err != nil {
			return nil, err
		}
		tx, ty := SetTargetFromPoint(m, x, y)
		return robot.Target{X: tx, Y: ty}, nil
	}, dispatcher.Logged())

	d.Register(CmdRobotStatus, func(e dispatcher.Event) (any, error) {
		return m.Snapshot(), nil
	})

	d.Register(CmdRobotStep, func(e dispatcher.Event) (any, error) {
		moved := m.Step()
		return StepResult{Moved: moved, Snapshot: m.Snapshot()}, nil
	})
}

// PointArgs formats a point as set-target arguments.
func PointArgs(x, y float64) []string {
	return []string{
		strconv.FormatFloat(x, 'f', -1, 64),
		strconv.FormatFloat(y, 'f', -1, 64),
	}
}

func parsePoint(args []string) (float64, float64, error) {
	if len(args) != 2 {
		return 0, 0, fmt.Errorf("%w: want x and y, got %d values", ErrBadArgs, len(args))
	}
	x, err := parseCoord(args[0])
	if err != nil {
		return 0, 0, fmt.Errorf("%w: x: %v", ErrBadArgs, err)
	}
	y, err := parseCoord(args[1])
	if err != nil {
		return 0, 0, fmt.Errorf("%w: y: %v", ErrBadArgs, err)
	}
	return x, y, nil
}

// parseCoord rejects NaN and anything outside ±maxCoord.
func parseCoord(s string) (float64, error) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || v > maxCoord || v < -maxCoord {
		return 0, fmt.Errorf("%q out of range", s)
	}
	return v, nil
}

// maxCoord keeps rounded coordinates inside a 32-bit int.
const maxCoord = 1 << 30
