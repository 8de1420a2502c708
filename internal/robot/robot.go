// Package robot implements the target-seeking motion model.
//
// A Model owns one Pose and one Target. Step advances the pose by one
// simulation increment using proportional steering: turn toward the bearing
// of the target at a fixed angular rate while driving forward at a speed that
// tapers to the remaining distance. Every operation runs under a single
// mutex; observers are notified after the lock is released.
package robot

import (
	"math"
	"sync"

	"github.com/robotsim/robots/internal/geo"
)

// Pose is the robot position and heading at an instant.
type Pose struct {
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
	Heading float64 `json:"heading"` // radians, [0, 2π)
}

// Target is the destination point the robot steers toward.
type Target struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Snapshot is a read-only copy of the model state.
type Snapshot struct {
	Pose   Pose   `json:"pose"`
	Target Target `json:"target"`
	// Seq counts committed steps that moved the robot.
	Seq uint64 `json:"seq"`
}

// Limits are the tunable motion constants.
type Limits struct {
	MaxVelocity        float64 `json:"maxVelocity" mapstructure:"maxVelocity"`               // position units per step
	MaxAngularVelocity float64 `json:"maxAngularVelocity" mapstructure:"maxAngularVelocity"` // radians per step
	ArrivalTolerance   float64 `json:"arrivalTolerance" mapstructure:"arrivalTolerance"`     // position units
}

// DefaultLimits returns the stock motion constants.
func DefaultLimits() Limits {
	return Limits{
		MaxVelocity:        0.4,
		MaxAngularVelocity: 0.01,
		ArrivalTolerance:   0.5,
	}
}

// Logger is the optional diagnostic sink.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
}

// Observer receives the committed state after each moving step.
type Observer func(Snapshot)

// Subscription identifies a registered observer.
type Subscription uint64

// Option configures a Model.
type Option func(*Model)

// WithLimits overrides the default motion constants.
func WithLimits(l Limits) Option {
	return func(m *Model) {
		m.limits = l
	}
}

// WithHeading sets the initial heading; it is normalized.
func WithHeading(h float64) Option {
	return func(m *Model) {
		m.pose.Heading = geo.NormalizeAngle(h)
	}
}

// WithTarget sets the initial target.
func WithTarget(x, y int) Option {
	return func(m *Model) {
		m.target = Target{X: x, Y: y}
	}
}

// WithLogger attaches a diagnostic sink.
func WithLogger(l Logger) Option {
	return func(m *Model) {
		m.logger = l
	}
}

// Model is the robot motion model. The zero value is not usable; call New.
type Model struct {
	mu        sync.Mutex
	pose      Pose
	target    Target
	seq       uint64
	limits    Limits
	logger    Logger
	observers map[Subscription]Observer
	nextSubID Subscription
}

// New creates a model with the robot at (x, y), heading 0 and target (0, 0).
func New(x, y float64, opts ...Option) *Model {
	m := &Model{
		pose:      Pose{X: x, Y: y},
		limits:    DefaultLimits(),
		observers: make(map[Subscription]Observer),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// SetTarget overwrites the target. Any integer pair is accepted.
func (m *Model) SetTarget(x, y int) {
	m.mu.Lock()
	m.target = Target{X: x, Y: y}
	m.mu.Unlock()

	if m.logger != nil {
		m.logger.Debug("target set", "x", x, "y", y)
	}
}

// Step advances the pose by one increment toward the target and notifies
// observers. It returns false, without notifying, when the robot is already
// within the arrival tolerance.
func (m *Model) Step() bool {
	m.mu.Lock()
	snap, moved := m.advance()
	var observers []Observer
	if moved {
		observers = make([]Observer, 0, len(m.observers))
		for _, o := range m.observers {
			observers = append(observers, o)
		}
	}
	m.mu.Unlock()

	for _, o := range observers {
		o(snap)
	}
	return moved
}

// advance computes and commits one step. Caller holds m.mu.
func (m *Model) advance() (Snapshot, bool) {
	p := m.pose
	tx, ty := float64(m.target.X), float64(m.target.Y)

	distance := geo.Distance(p.X, p.Y, tx, ty)
	if distance < m.limits.ArrivalTolerance {
		return m.snapshot(), false
	}

	diff := geo.WrapSigned(geo.Bearing(p.X, p.Y, tx, ty) - p.Heading)

	var angularVelocity float64
	switch {
	case diff > 0:
		angularVelocity = m.limits.MaxAngularVelocity
	case diff < 0:
		angularVelocity = -m.limits.MaxAngularVelocity
	}

	velocity := geo.Clamp(distance, 0, m.limits.MaxVelocity)

	next := Pose{
		X:       p.X + velocity*math.Cos(p.Heading),
		Y:       p.Y + velocity*math.Sin(p.Heading),
		Heading: geo.NormalizeAngle(p.Heading + angularVelocity),
	}

	m.pose = next
	m.seq++
	return m.snapshot(), true
}

func (m *Model) snapshot() Snapshot {
	return Snapshot{Pose: m.pose, Target: m.target, Seq: m.seq}
}

// Position returns the current position.
func (m *Model) Position() (x, y float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pose.X, m.pose.Y
}

// Heading returns the current heading in [0, 2π).
func (m *Model) Heading() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pose.Heading
}

// Target returns the current target.
func (m *Model) Target() (x, y int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.target.X, m.target.Y
}

// Snapshot returns a consistent copy of pose, target and step count.
func (m *Model) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshot()
}

// Limits returns the motion constants in use.
func (m *Model) Limits() Limits {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.limits
}

// AtTarget reports whether the robot is within the arrival tolerance.
func (m *Model) AtTarget() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return geo.Distance(m.pose.X, m.pose.Y, float64(m.target.X), float64(m.target.Y)) < m.limits.ArrivalTolerance
}

// Subscribe registers an observer and returns its handle.
func (m *Model) Subscribe(o Observer) Subscription {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextSubID++
	m.observers[m.nextSubID] = o
	return m.nextSubID
}

// Unsubscribe removes an observer. Unknown handles are ignored.
func (m *Model) Unsubscribe(s Subscription) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.observers, s)
}
