package sync

import (
	"context"

	"go.uber.org/zap"

	"github.com/dgnsrekt/chatsync/internal/model"
)

// Lifecycle is the callback registration surface of the event stream.
type Lifecycle interface {
	SetFirstConnectCallback(fn func())
	SetEventCallback(fn func(*model.Event))
	SetMissedEventsCallback(fn func())
	SetReconnectCallback(fn func())
	SetCloseCallback(fn func(failCount int))
}

// EventHandler applies one stream event to the cache.
type EventHandler interface {
	Handle(ctx context.Context, ev *model.Event) error
}

// Register wires the reconciler and the event handler to the stream.
// Connect resyncs run off the stream goroutine so events keep flowing;
// the generation check drops whichever resync a later one overtakes.
func (r *Reconciler) Register(ctx context.Context, lc Lifecycle, events EventHandler) {
	lc.SetFirstConnectCallback(func() {
		r.async(func() { r.HandleFirstConnect(ctx) })
	})
	lc.SetReconnectCallback(func() {
		r.async(func() {
			if err := r.OnReconnect(ctx, r.now()); err != nil {
				r.logger.Debug("reconnect not applied", zap.Error(err))
			}
		})
	})
	lc.SetMissedEventsCallback(func() {
		r.OnMissedEvents(r.now())
	})
	lc.SetCloseCallback(r.OnClose)
	lc.SetEventCallback(func(ev *model.Event) {
		if err := events.Handle(ctx, ev); err != nil {
			r.logger.Warn("event not applied",
				zap.String("event", ev.Event),
				zap.Int64("seq", ev.Seq),
				zap.Error(err),
			)
		}
	})
}
