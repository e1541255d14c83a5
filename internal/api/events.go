package api

import (
	"context"

	"golang.org/x/net/websocket"

	"github.com/ahrav/taskpulse/internal/domain/monitoring"
)

// eventBuffer bounds the change events queued for one subscriber. Events
// past it are dropped; subscribers re-read the model on the next event.
const eventBuffer = 64

// EventTypeModelChanged is the type of every frame pushed on /v1/events.
const EventTypeModelChanged = "model_changed"

// Event is a frame pushed to /v1/events subscribers.
type Event struct {
	Type string            `json:"type"`
	Data monitoring.Change `json:"data"`
}

// eventsHandler pushes a model_changed frame per store change until the
// client goes away or the server stops.
func (s *Server) eventsHandler() websocket.Server {
	return websocket.Server{Handler: func(ws *websocket.Conn) {
		defer ws.Close()

		ctx, cancel := context.WithCancel(ws.Request().Context())
		defer cancel()

		events := make(chan monitoring.Change, eventBuffer)
		unsubscribe := s.monitor.Subscribe(func(c monitoring.Change) {
			select {
			case events <- c:
			default:
				s.metrics.IncEventsDropped(ctx)
			}
		})
		defer unsubscribe()

		s.metrics.IncEventSubscribers(ctx, 1)
		defer s.metrics.IncEventSubscribers(context.WithoutCancel(ctx), -1)
		s.logger.Debug(ctx, "event subscriber connected", "remote", ws.Request().RemoteAddr)

		// Subscribers never send; a read returning means the peer closed.
		go func() {
			var discard []byte
			for {
				if err := websocket.Message.Receive(ws, &discard); err != nil {
					cancel()
					return
				}
			}
		}()

		for {
			select {
			case <-ctx.Done():
				return
			case <-s.done:
				return
			case c := <-events:
				if err := websocket.JSON.Send(ws, Event{Type: EventTypeModelChanged, Data: c}); err != nil {
					s.logger.Debug(ctx, "event subscriber write failed", "error", err)
					return
				}
			}
		}
	}}
}
