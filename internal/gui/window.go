// Package gui hosts the motion model in a fyne window with a game pane, a
// coordinates pane and a log pane.
package gui

import (
	"context"
	"log/slog"
	"sync"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/widget"
	"github.com/robotsim/robots/internal/command"
	"github.com/robotsim/robots/internal/dispatcher"
	"github.com/robotsim/robots/internal/logging"
)

// Title of the main window.
const Title = "Robots"

// Deps holds what the window needs from the rest of the program.
type Deps struct {
	Source     SnapshotSource
	Dispatcher *dispatcher.Dispatcher
	Journal    *logging.Journal // optional
	Redraw     <-chan struct{}
	// OnRedraw runs after every repaint request, off the UI goroutine.
	OnRedraw func()
	Logger   *slog.Logger
}

// Window is the main application window.
type Window struct {
	deps Deps
	win  fyne.Window

	pane    *GamePane
	coords  *widget.Label
	logList *widget.List

	mu      sync.Mutex
	entries []logging.Entry

	cancelJournal func()
}

// NewWindow builds the window on app a. Call Run to show it.
func NewWindow(a fyne.App, deps Deps) *Window {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	w := &Window{deps: deps}

	w.pane = NewGamePane(deps.Source, w.setTarget)
	snap := deps.Source.Snapshot()
	w.coords = widget.NewLabel(FormatCoords(snap.Pose.X, snap.Pose.Y))
	w.coords.Alignment = fyne.TextAlignCenter

	w.logList = widget.NewList(
		w.entryCount,
		func() fyne.CanvasObject { return widget.NewLabel("") },
		func(id widget.ListItemID, obj fyne.CanvasObject) {
			obj.(*widget.Label).SetText(w.entry(id).String())
		},
	)
	if deps.Journal != nil {
		w.entries = deps.Journal.All()
		w.cancelJournal = deps.Journal.Subscribe(w.journalChanged)
	}

	side := container.NewBorder(
		container.NewVBox(widget.NewLabelWithStyle("Coordinates", fyne.TextAlignCenter, fyne.TextStyle{Bold: true}), w.coords),
		nil, nil, nil,
		w.logList,
	)
	split := container.NewHSplit(w.pane, side)
	split.Offset = 0.7

	w.win = a.NewWindow(Title)
	w.win.SetContent(split)
	w.win.Resize(fyne.NewSize(1000, 640))
	w.win.SetCloseIntercept(w.confirmClose)
	return w
}

// Run shows the window and blocks until it is closed. Redraw signals are
// consumed until then or until ctx is done.
func (w *Window) Run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer w.detach()

	go w.redrawLoop(ctx)
	go func() {
		<-ctx.Done()
		fyne.Do(w.win.Close)
	}()

	w.win.ShowAndRun()
}

func (w *Window) detach() {
	if w.cancelJournal != nil {
		w.cancelJournal()
		w.cancelJournal = nil
	}
}

func (w *Window) redrawLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-w.deps.Redraw:
			if !ok {
				return
			}
			fyne.Do(w.refresh)
			if w.deps.OnRedraw != nil {
				w.deps.OnRedraw()
			}
		}
	}
}

// refresh repaints the game pane and the coordinates. UI goroutine only.
func (w *Window) refresh() {
	w.pane.Refresh()
	snap := w.deps.Source.Snapshot()
	w.coords.SetText(FormatCoords(snap.Pose.X, snap.Pose.Y))
}

// setTarget moves the target to a tapped position.
func (w *Window) setTarget(x, y float64) {
	_, err := w.deps.Dispatcher.Dispatch(dispatcher.Event{
		Command: command.CmdSetTarget,
		Args:    command.PointArgs(x, y),
		Source:  "gui",
	})
	if err != nil {
		w.deps.Logger.Error("Failed to set target", "error", err)
		return
	}
	w.pane.Refresh()
}

func (w *Window) confirmClose() {
	dialog.ShowConfirm("Exit", "Are you sure you want to exit?", func(ok bool) {
		if ok {
			w.win.Close()
		}
	}, w.win)
}

func (w *Window) journalChanged() {
	entries := w.deps.Journal.All()
	w.mu.Lock()
	w.entries = entries
	w.mu.Unlock()
	fyne.Do(func() {
		w.logList.Refresh()
		w.logList.ScrollToBottom()
	})
}

func (w *Window) entryCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.entries)
}

func (w *Window) entry(i int) logging.Entry {
	w.mu.Lock()
	defer w.mu.Unlock()
	if i < 0 || i >= len(w.entries) {
		return logging.Entry{}
	}
	return w.entries[i]
}
