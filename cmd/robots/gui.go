package main

import (
	"context"

	fyneapp "fyne.io/fyne/v2/app"
	"github.com/robotsim/robots/internal/app"
	"github.com/robotsim/robots/internal/gui"
)

const appID = "io.robotsim.robots"

func showWindow(ctx context.Context, a *app.App) error {
	deps := gui.Deps{
		Source:     a.Model,
		Dispatcher: a.Dispatcher,
		Journal:    a.Logs.Journal(),
		Redraw:     a.Scheduler.Redraw(),
		Logger:     a.Logs.Component("gui"),
	}
	if a.Stream != nil {
		deps.OnRedraw = a.Stream.Broadcast
	}

	w := gui.NewWindow(fyneapp.NewWithID(appID), deps)
	w.Run(ctx)
	return nil
}
