package eventdispatcher

import (
	"context"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ahrav/taskpulse/internal/domain/monitoring"
	"github.com/ahrav/taskpulse/pkg/common/logger"
)

// Dispatcher routes decoded stream frames to the handler registered for
// their type. Each message type has at most one handler.
//
// Typical usage:
//
//	dispatcher := eventdispatcher.New(tracer, log)
//	dispatcher.RegisterHandler(ctx, monitoring.MessageTypeTaskUpdate, handleTask)
//
//	err := dispatcher.Dispatch(ctx, frame)
type Dispatcher struct {
	mu       sync.RWMutex
	handlers map[monitoring.MessageType]monitoring.FrameHandler
	tracer   trace.Tracer
	logger   *logger.Logger
}

// New constructs a Dispatcher with an empty registry.
func New(tracer trace.Tracer, logger *logger.Logger) *Dispatcher {
	return &Dispatcher{
		handlers: make(map[monitoring.MessageType]monitoring.FrameHandler),
		tracer:   tracer,
		logger:   logger.With("component", "event_dispatcher"),
	}
}

// RegisterHandler associates handler with msgType, replacing any previous
// registration. Safe to call concurrently.
func (d *Dispatcher) RegisterHandler(ctx context.Context, msgType monitoring.MessageType, handler monitoring.FrameHandler) {
	d.mu.Lock()
	d.handlers[msgType] = handler
	d.mu.Unlock()

	d.logger.Debug(ctx, "handler registered", "message_type", msgType)
}

// Handles reports whether a handler is registered for msgType.
func (d *Dispatcher) Handles(msgType monitoring.MessageType) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.handlers[msgType]
	return ok
}

// HandlerNotFoundError indicates a frame arrived with a type that has no
// registered handler.
type HandlerNotFoundError struct {
	MessageType monitoring.MessageType
}

func (e *HandlerNotFoundError) Error() string {
	return fmt.Sprintf("no handler registered for message type: %q", e.MessageType)
}

// Dispatch runs the handler registered for frame.Type inside a span. It
// returns *HandlerNotFoundError for unregistered types and wraps handler
// errors.
func (d *Dispatcher) Dispatch(ctx context.Context, frame monitoring.Frame) error {
	ctx, span := d.tracer.Start(ctx, "event_dispatcher.dispatch",
		trace.WithAttributes(
			attribute.String("message_type", frame.Type.String()),
			attribute.Int("payload_bytes", len(frame.Data)),
		))
	defer span.End()

	d.mu.RLock()
	handler, exists := d.handlers[frame.Type]
	d.mu.RUnlock()
	if !exists {
		err := &HandlerNotFoundError{MessageType: frame.Type}
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	if err := handler(ctx, frame.Data); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("failed to handle %s frame: %w", frame.Type, err)
	}

	span.SetStatus(codes.Ok, "frame dispatched")
	return nil
}
