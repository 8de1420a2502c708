package gui

import (
	"log/slog"
	"testing"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/test"
	"github.com/robotsim/robots/internal/command"
	"github.com/robotsim/robots/internal/dispatcher"
	"github.com/robotsim/robots/internal/logging"
	"github.com/robotsim/robots/internal/robot"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestWindow(t *testing.T, journal *logging.Journal) (*Window, *robot.Model) {
	t.Helper()
	a := test.NewTempApp(t)

	d, err := dispatcher.New(slog.New(slog.DiscardHandler))
	require.NoError(t, err)
	t.Cleanup(d.Close)

	m := robot.New(100, 100, robot.WithTarget(150, 100))
	command.Register(d, m)

	w := NewWindow(a, Deps{
		Source:     m,
		Dispatcher: d,
		Journal:    journal,
		Redraw:     make(chan struct{}),
		Logger:     slog.New(slog.DiscardHandler),
	})
	t.Cleanup(w.detach)
	return w, m
}

func TestWindow_Layout(t *testing.T) {
	w, _ := newTestWindow(t, nil)

	assert.Equal(t, Title, w.win.Title())
	assert.Equal(t, "X: 100,  Y: 100", w.coords.Text)
	assert.Zero(t, w.entryCount())
}

func TestWindow_TapSetsTarget(t *testing.T) {
	w, m := newTestWindow(t, nil)

	w.pane.Tapped(&fyne.PointEvent{Position: fyne.NewPos(200.7, 50.2)})

	x, y := m.Target()
	assert.Equal(t, 201, x)
	assert.Equal(t, 50, y)
}

func TestWindow_RefreshUpdatesCoords(t *testing.T) {
	w, m := newTestWindow(t, nil)

	m.Step()
	w.refresh()
	assert.Equal(t, "X: 100.4,  Y: 100", w.coords.Text)
}

func TestWindow_JournalFeedsLogPane(t *testing.T) {
	j := logging.NewJournal(10)
	j.Append(logging.Entry{Level: slog.LevelInfo, Message: "before"})

	w, _ := newTestWindow(t, j)
	assert.Equal(t, 1, w.entryCount())

	j.Append(logging.Entry{Level: slog.LevelInfo, Message: "after"})
	assert.Eventually(t, func() bool { return w.entryCount() == 2 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, "after", w.entry(1).Message)
	assert.Equal(t, logging.Entry{}, w.entry(5))
}

func TestGamePane_Draw(t *testing.T) {
	m := robot.New(20, 20, robot.WithTarget(60, 20))
	p := NewGamePane(m, nil)
	p.Resize(fyne.NewSize(100, 50))

	img := p.draw(100, 50)
	assert.Equal(t, 100, img.Bounds().Dx())
	assert.Equal(t, BodyColor, p.img.RGBAAt(20, 20))
	assert.Equal(t, TargetColor, p.img.RGBAAt(60, 20))

	// a tap without a handler is ignored
	assert.NotPanics(t, func() { p.Tapped(&fyne.PointEvent{}) })
}
