package robot

import (
	"math"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/robotsim/robots/internal/geo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingLogger struct {
	mu   sync.Mutex
	msgs []string
}

func (r *recordingLogger) Debug(msg string, _ ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, msg)
}

func stepUntilArrived(t *testing.T, m *Model, limit int) int {
	t.Helper()
	for i := 0; i < limit; i++ {
		if !m.Step() {
			return i
		}
	}
	t.Fatalf("robot did not arrive within %d steps, snapshot %+v", limit, m.Snapshot())
	return limit
}

func TestNew_Defaults(t *testing.T) {
	m := New(100, 100)

	x, y := m.Position()
	assert.Equal(t, 100.0, x)
	assert.Equal(t, 100.0, y)
	assert.Equal(t, 0.0, m.Heading())

	tx, ty := m.Target()
	assert.Equal(t, 0, tx)
	assert.Equal(t, 0, ty)
	assert.Equal(t, DefaultLimits(), m.Limits())
}

func TestNew_Options(t *testing.T) {
	l := Limits{MaxVelocity: 1, MaxAngularVelocity: 0.1, ArrivalTolerance: 2}
	m := New(1, 2, WithHeading(-math.Pi/2), WithTarget(5, 6), WithLimits(l))

	assert.InDelta(t, 3*math.Pi/2, m.Heading(), 1e-12)
	tx, ty := m.Target()
	assert.Equal(t, 5, tx)
	assert.Equal(t, 6, ty)
	assert.Equal(t, l, m.Limits())
}

func TestStep_ConvergesEastward(t *testing.T) {
	m := New(100, 100, WithTarget(150, 100))

	steps := stepUntilArrived(t, m, 200)
	assert.Equal(t, 124, steps)

	x, y := m.Position()
	assert.Less(t, geo.Distance(x, y, 150, 100), 0.5)
	assert.True(t, m.AtTarget())
}

func TestStep_IdempotentAtRest(t *testing.T) {
	m := New(100, 100, WithTarget(150, 100))
	stepUntilArrived(t, m, 200)

	before := m.Snapshot()
	for i := 0; i < 50; i++ {
		assert.False(t, m.Step())
	}
	assert.Equal(t, before, m.Snapshot())
}

func TestStep_FirstStepUsesOldHeading(t *testing.T) {
	// target straight north, heading east: the position moves east first
	m := New(0, 0, WithTarget(0, 100))
	require.True(t, m.Step())

	s := m.Snapshot()
	assert.InDelta(t, 0.4, s.Pose.X, 1e-12)
	assert.Equal(t, 0.0, s.Pose.Y)
	assert.InDelta(t, 0.01, s.Pose.Heading, 1e-12)
	assert.Equal(t, uint64(1), s.Seq)
}

func TestStep_TurnsClockwiseForTargetOnTheRight(t *testing.T) {
	m := New(0, 0, WithTarget(0, -100))
	require.True(t, m.Step())
	assert.InDelta(t, geo.FullTurn-0.01, m.Heading(), 1e-12)
}

func TestStep_TieBreakAtPiTurnsPositive(t *testing.T) {
	// bearing π, heading 0: diff is exactly π and is not folded
	m := New(100, 100, WithTarget(50, 100))
	require.True(t, m.Step())
	assert.InDelta(t, 0.01, m.Heading(), 1e-12)
}

func TestStep_VelocityTapersToDistance(t *testing.T) {
	l := Limits{MaxVelocity: 10, MaxAngularVelocity: 0.01, ArrivalTolerance: 0.5}
	m := New(0, 0, WithTarget(3, 0), WithLimits(l))

	require.True(t, m.Step())
	x, _ := m.Position()
	assert.InDelta(t, 3.0, x, 1e-12)
	assert.False(t, m.Step())
}

func TestStep_ConvergesToReachableTargets(t *testing.T) {
	cases := []struct {
		name     string
		x, y, h  float64
		tx, ty   int
		maxSteps int
	}{
		{"behind", 100, 100, 0, 50, 100, 700},
		{"origin", 100, 100, 0, 0, 0, 700},
		{"far north-east", 100, 100, 1.0, 640, 480, 1800},
		{"far west", 100, 100, 0, -300, 250, 1500},
		{"straight south", 0, 0, 0, 0, -400, 1200},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			m := New(tc.x, tc.y, WithHeading(tc.h), WithTarget(tc.tx, tc.ty))
			stepUntilArrived(t, m, tc.maxSteps)

			x, y := m.Position()
			assert.Less(t, geo.Distance(x, y, float64(tc.tx), float64(tc.ty)), 0.5)
		})
	}
}

func TestStep_TargetInsideTurningCircleStaysFinite(t *testing.T) {
	// one unit to the left is inside the 40 unit turning radius: the robot orbits
	m := New(100, 100, WithTarget(100, 101))

	for i := 0; i < 20000; i++ {
		m.Step()
		s := m.Snapshot()
		require.False(t, math.IsNaN(s.Pose.X) || math.IsInf(s.Pose.X, 0))
		require.False(t, math.IsNaN(s.Pose.Y) || math.IsInf(s.Pose.Y, 0))
		require.Less(t, geo.Distance(s.Pose.X, s.Pose.Y, 100, 101), 80.0)
	}
}

func TestStep_HeadingAlwaysCanonical(t *testing.T) {
	m := New(300, 200, WithHeading(6.2), WithTarget(310, 180))
	for i := 0; i < 5000; i++ {
		m.Step()
		h := m.Heading()
		require.GreaterOrEqual(t, h, 0.0)
		require.Less(t, h, geo.FullTurn)
	}
}

func TestSetTarget_RoundedCurrentPositionIsNoop(t *testing.T) {
	cases := [][2]float64{{100.2, 99.7}, {149.6, 100}, {0.3, -0.2}, {-12.1, 7.9}}
	for _, c := range cases {
		m := New(c[0], c[1], WithHeading(2))
		m.SetTarget(geo.RoundHalfUp(c[0]), geo.RoundHalfUp(c[1]))

		before := m.Snapshot()
		assert.False(t, m.Step(), "position %v", c)
		assert.Equal(t, before, m.Snapshot())
	}
}

func TestSetTarget_TakesEffectOnNextStep(t *testing.T) {
	m := New(0, 0, WithTarget(100, 0))
	require.True(t, m.Step())

	m.SetTarget(0, -100)
	require.True(t, m.Step())
	// turning right now, so heading wraps below 2π
	assert.InDelta(t, geo.FullTurn-0.01, m.Heading(), 1e-12)
}

func TestSetTarget_Logs(t *testing.T) {
	l := &recordingLogger{}
	m := New(0, 0, WithLogger(l))
	m.SetTarget(3, 4)

	assert.Equal(t, []string{"target set"}, l.msgs)
}

func TestSubscribe_NotifiedOnMovingStepsOnly(t *testing.T) {
	m := New(100.3, 100, WithTarget(101, 100))

	var got []Snapshot
	m.Subscribe(func(s Snapshot) { got = append(got, s) })

	require.True(t, m.Step())
	require.False(t, m.Step())

	require.Len(t, got, 1)
	assert.Equal(t, uint64(1), got[0].Seq)
	assert.Equal(t, Target{X: 101, Y: 100}, got[0].Target)
}

func TestUnsubscribe(t *testing.T) {
	m := New(0, 0, WithTarget(100, 0))

	var first, second int
	subA := m.Subscribe(func(Snapshot) { first++ })
	m.Subscribe(func(Snapshot) { second++ })

	m.Step()
	m.Unsubscribe(subA)
	m.Unsubscribe(Subscription(9999))
	m.Step()

	assert.Equal(t, 1, first)
	assert.Equal(t, 2, second)
}

func TestObserver_MayCallBackIntoModel(t *testing.T) {
	m := New(0, 0, WithTarget(100, 0))

	calls := 0
	m.Subscribe(func(s Snapshot) {
		calls++
		x, _ := m.Position()
		assert.Equal(t, s.Pose.X, x)
		if calls == 1 {
			m.SetTarget(0, 0)
		}
	})

	require.True(t, m.Step())
	tx, ty := m.Target()
	assert.Equal(t, 0, tx)
	assert.Equal(t, 0, ty)
}

func TestConcurrentSetTargetAndStep(t *testing.T) {
	m := New(100, 100, WithTarget(150, 100))

	var notified atomic.Int64
	m.Subscribe(func(s Snapshot) {
		notified.Add(1)
	})

	const n = 10000
	var wg sync.WaitGroup
	wg.Add(3)

	go func() {
		defer wg.Done()
		for i := 0; i < n; i++ {
			m.SetTarget(i%640, (i*7)%480)
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < n; i++ {
			m.Step()
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < n; i++ {
			s := m.Snapshot()
			if math.IsNaN(s.Pose.X) || math.IsNaN(s.Pose.Y) || math.IsNaN(s.Pose.Heading) {
				t.Errorf("non-finite snapshot %+v", s)
				return
			}
		}
	}()
	wg.Wait()

	s := m.Snapshot()
	for _, v := range []float64{s.Pose.X, s.Pose.Y, s.Pose.Heading} {
		assert.False(t, math.IsNaN(v) || math.IsInf(v, 0), "non-finite value %v", v)
	}
	assert.GreaterOrEqual(t, s.Pose.Heading, 0.0)
	assert.Less(t, s.Pose.Heading, geo.FullTurn)
	assert.Equal(t, int64(s.Seq), notified.Load())
}
