package monitoring

import (
	"context"

	"github.com/ahrav/taskpulse/internal/app/monitoring/views"
	"github.com/ahrav/taskpulse/internal/domain/monitoring"
	"github.com/ahrav/taskpulse/pkg/common/logger"
	"github.com/ahrav/taskpulse/pkg/metrics"
)

// Monitor is the boundary consumed by presentation layers. It exposes change
// notifications, snapshot reads, the two control commands and the stream
// pause/resume toggle.
type Monitor struct {
	store    *Store
	stream   monitoring.StreamController
	commands *CommandDispatcher
	logger   *logger.Logger
}

// MonitorOption configures a Monitor.
type MonitorOption func(*Monitor)

// WithModelMetrics reports the retained task count after every change.
func WithModelMetrics(m metrics.ModelMetrics) MonitorOption {
	return func(mon *Monitor) {
		mon.store.Subscribe(func(monitoring.Change) { m.SetTasksRetained(mon.store.TaskCount()) })
	}
}

// NewMonitor assembles a Monitor.
func NewMonitor(
	store *Store,
	stream monitoring.StreamController,
	commands *CommandDispatcher,
	log *logger.Logger,
	opts ...MonitorOption,
) *Monitor {
	m := &Monitor{
		store:    store,
		stream:   stream,
		commands: commands,
		logger:   log.With("component", "monitor"),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Subscribe registers fn for model-changed notifications.
func (m *Monitor) Subscribe(fn ChangeListener) (unsubscribe func()) { return m.store.Subscribe(fn) }

// Snapshot returns a consistent copy of the whole model.
func (m *Monitor) Snapshot() monitoring.Snapshot { return m.store.Snapshot() }

// Tasks returns the tasks passing filter, optionally restricted to queue.
func (m *Monitor) Tasks(filter views.Filter, queue string) []monitoring.Task {
	tasks := views.FilterTasks(m.store.SnapshotTasks(), filter)
	if queue != "" {
		tasks = views.ByQueue(tasks, queue)
	}
	return tasks
}

// Task returns a copy of a single task.
func (m *Monitor) Task(id string) (monitoring.Task, bool) { return m.store.Task(id) }

// Workers returns a copy of the workers.
func (m *Monitor) Workers() []monitoring.Worker { return m.store.SnapshotWorkers() }

// Queues returns a copy of the queues.
func (m *Monitor) Queues() []monitoring.Queue { return m.store.SnapshotQueues() }

// Stats returns the latest backend-reported statistics.
func (m *Monitor) Stats() monitoring.Stats { return m.store.SnapshotStats() }

// DerivedStats recomputes the statistics from the current collections.
func (m *Monitor) DerivedStats() monitoring.Stats { return views.ComputeStats(m.store.Snapshot()) }

// CancelTask requests cancellation; see CommandDispatcher.CancelTask.
func (m *Monitor) CancelTask(ctx context.Context, taskID string, terminate bool) error {
	return m.commands.CancelTask(ctx, taskID, terminate)
}

// RetryTask requests a retry; see CommandDispatcher.RetryTask.
func (m *Monitor) RetryTask(ctx context.Context, taskID string) (string, error) {
	return m.commands.RetryTask(ctx, taskID)
}

// Pause stops streaming until Resume.
func (m *Monitor) Pause() { m.stream.Pause() }

// Resume restarts streaming immediately.
func (m *Monitor) Resume() { m.stream.Resume() }

// StreamState reports the stream connection state.
func (m *Monitor) StreamState() monitoring.ConnectionState { return m.stream.State() }

// StreamActive reports whether streaming is enabled (not paused).
func (m *Monitor) StreamActive() bool { return m.stream.Active() }
