package monitoring

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ahrav/taskpulse/internal/domain/monitoring"
	"github.com/ahrav/taskpulse/pkg/common"
	"github.com/ahrav/taskpulse/pkg/common/logger"
)

// Command operation names, used in errors, spans and metrics.
const (
	OpCancel      = "cancel"
	OpRetry       = "retry"
	OpListTasks   = "list_tasks"
	OpListWorkers = "list_workers"
	OpListQueues  = "list_queues"
)

// ErrEmptyTaskID is returned when a command names no task.
var ErrEmptyTaskID = errors.New("task id is required")

// CommandError wraps a failed control command.
type CommandError struct {
	Op     string
	TaskID string
	Err    error
}

func (e *CommandError) Error() string {
	if e.TaskID == "" {
		return fmt.Sprintf("%s failed: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s task %s failed: %v", e.Op, e.TaskID, e.Err)
}

func (e *CommandError) Unwrap() error { return e.Err }

// CommandDispatcher sends control commands to the backend.
//
// It never touches the model store. A command's effect becomes visible only
// when the backend later pushes the matching task_update over the stream:
// the same id for cancel, the returned id for retry. Failures are returned to
// the caller and never retried automatically.
type CommandDispatcher struct {
	api     monitoring.ControlAPI
	limiter *common.RateLimiter

	logger  *logger.Logger
	tracer  trace.Tracer
	metrics CommandMetrics
}

// NewCommandDispatcher creates a CommandDispatcher. A nil limiter disables
// throttling.
func NewCommandDispatcher(
	api monitoring.ControlAPI,
	limiter *common.RateLimiter,
	log *logger.Logger,
	tracer trace.Tracer,
	metrics CommandMetrics,
) *CommandDispatcher {
	if limiter == nil {
		limiter = common.NewRateLimiter(0, 1)
	}
	return &CommandDispatcher{
		api:     api,
		limiter: limiter,
		logger:  log.With("component", "command_dispatcher"),
		tracer:  tracer,
		metrics: metrics,
	}
}

// CancelTask asks the backend to revoke taskID. With terminate set, a task
// already running is killed.
func (d *CommandDispatcher) CancelTask(ctx context.Context, taskID string, terminate bool) error {
	taskID = strings.TrimSpace(taskID)
	ctx, span := d.tracer.Start(ctx, "command_dispatcher.cancel_task",
		trace.WithAttributes(
			attribute.String("task_id", taskID),
			attribute.Bool("terminate", terminate),
		))
	defer span.End()

	err := d.send(ctx, OpCancel, taskID, func(ctx context.Context) error {
		return d.api.CancelTask(ctx, taskID, terminate)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "cancel failed")
		return err
	}

	span.SetStatus(codes.Ok, "cancel requested")
	d.logger.Info(ctx, "cancel requested", "task_id", taskID, "terminate", terminate)
	return nil
}

// RetryTask asks the backend to resubmit taskID and returns the id of the new
// execution. The new task is not in the model until the stream delivers it.
func (d *CommandDispatcher) RetryTask(ctx context.Context, taskID string) (string, error) {
	taskID = strings.TrimSpace(taskID)
	ctx, span := d.tracer.Start(ctx, "command_dispatcher.retry_task",
		trace.WithAttributes(attribute.String("task_id", taskID)))
	defer span.End()

	var newID string
	err := d.send(ctx, OpRetry, taskID, func(ctx context.Context) error {
		id, err := d.api.RetryTask(ctx, taskID)
		if err != nil {
			return err
		}
		newID = id
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "retry failed")
		return "", err
	}

	span.SetAttributes(attribute.String("new_task_id", newID))
	span.SetStatus(codes.Ok, "retry requested")
	d.logger.Info(ctx, "retry requested", "task_id", taskID, "new_task_id", newID)
	return newID, nil
}

func (d *CommandDispatcher) send(ctx context.Context, op, taskID string, call func(context.Context) error) error {
	if taskID == "" {
		d.metrics.IncCommandErrors(ctx, op, "validation")
		return &CommandError{Op: op, Err: ErrEmptyTaskID}
	}

	if err := d.limiter.Wait(ctx); err != nil {
		d.metrics.IncCommandErrors(ctx, op, "throttled")
		return &CommandError{Op: op, TaskID: taskID, Err: fmt.Errorf("rate limiter: %w", err)}
	}

	d.metrics.IncCommands(ctx, op)
	if err := call(ctx); err != nil {
		d.metrics.IncCommandErrors(ctx, op, "backend")
		d.logger.Warn(ctx, "command failed", "op", op, "task_id", taskID, "error", err)
		return &CommandError{Op: op, TaskID: taskID, Err: err}
	}
	return nil
}

// ListTasks fetches the backend's task list directly, bypassing the store.
func (d *CommandDispatcher) ListTasks(ctx context.Context) ([]monitoring.Task, error) {
	return listAll(ctx, d, OpListTasks, d.api.ListTasks)
}

// ListWorkers fetches the backend's worker list directly.
func (d *CommandDispatcher) ListWorkers(ctx context.Context) ([]monitoring.Worker, error) {
	return listAll(ctx, d, OpListWorkers, d.api.ListWorkers)
}

// ListQueues fetches the backend's queue list directly.
func (d *CommandDispatcher) ListQueues(ctx context.Context) ([]monitoring.Queue, error) {
	return listAll(ctx, d, OpListQueues, d.api.ListQueues)
}

func listAll[T any](ctx context.Context, d *CommandDispatcher, op string, fetch func(context.Context) ([]T, error)) ([]T, error) {
	ctx, span := d.tracer.Start(ctx, "command_dispatcher."+op)
	defer span.End()

	d.metrics.IncCommands(ctx, op)
	items, err := fetch(ctx)
	if err != nil {
		d.metrics.IncCommandErrors(ctx, op, "backend")
		span.RecordError(err)
		span.SetStatus(codes.Error, op+" failed")
		return nil, &CommandError{Op: op, Err: err}
	}
	span.SetAttributes(attribute.Int("count", len(items)))
	return items, nil
}
