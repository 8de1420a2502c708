package app

import (
	"context"
	"errors"
)

// ErrStreamDisabled is returned by Serve when the websocket server is off.
var ErrStreamDisabled = errors.New("stream server is not enabled")

// Serve runs the tick scheduler without a window and pushes a pose to stream
// clients on every redraw signal until ctx is done.
func (a *App) Serve(ctx context.Context) error {
	if a.Stream == nil {
		return ErrStreamDisabled
	}
	if err := a.Scheduler.Start(ctx); err != nil {
		return err
	}
	a.Logger.Info("Serving robot stream", "addr", a.Stream.Addr())

	a.Stream.Forward(ctx, a.Scheduler.Redraw())
	a.Scheduler.Stop()
	return nil
}
