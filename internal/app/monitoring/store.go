// Package monitoring implements the client-side monitoring core: the model
// store fed by the event stream, the frame handlers that merge updates into
// it, the command dispatcher and the facade consumed by presentation layers.
package monitoring

import (
	"context"
	"maps"
	"slices"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/ahrav/taskpulse/internal/domain/monitoring"
	"github.com/ahrav/taskpulse/pkg/common/logger"
)

var _ monitoring.ModelReader = (*Store)(nil)

// ChangeListener is notified after every mutation applied to the Store.
type ChangeListener func(monitoring.Change)

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithTaskCapacity bounds the number of tasks retained. Values below one are
// raised to one.
func WithTaskCapacity(n int) StoreOption {
	return func(s *Store) { s.capacity = n }
}

// Store is the canonical in-memory model of tasks, workers and queues.
//
// Only the stream's frame handlers call the Apply methods; everything else
// reads deep-copied snapshots. Listeners are invoked synchronously on the
// mutating goroutine, after the lock is released, in registration order.
type Store struct {
	capacity int

	mu      sync.RWMutex
	tasks   *taskList
	workers map[string]monitoring.Worker
	queues  map[string]monitoring.Queue
	stats   monitoring.Stats

	listenersMu sync.Mutex
	listeners   map[uuid.UUID]ChangeListener
	order       []uuid.UUID

	logger *logger.Logger
}

// NewStore creates an empty Store.
func NewStore(log *logger.Logger, opts ...StoreOption) *Store {
	s := &Store{
		capacity:  DefaultTaskCapacity,
		workers:   make(map[string]monitoring.Worker),
		queues:    make(map[string]monitoring.Queue),
		listeners: make(map[uuid.UUID]ChangeListener),
		logger:    log.With("component", "model_store"),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.tasks = newTaskList(s.capacity)
	s.capacity = s.tasks.capacity
	return s
}

// Capacity returns the maximum number of tasks retained.
func (s *Store) Capacity() int { return s.capacity }

// Subscribe registers fn for model-changed notifications. The returned
// function removes the registration and is safe to call more than once.
func (s *Store) Subscribe(fn ChangeListener) (unsubscribe func()) {
	id := uuid.New()

	s.listenersMu.Lock()
	s.listeners[id] = fn
	s.order = append(s.order, id)
	s.listenersMu.Unlock()

	return func() {
		s.listenersMu.Lock()
		defer s.listenersMu.Unlock()
		if _, ok := s.listeners[id]; !ok {
			return
		}
		delete(s.listeners, id)
		s.order = slices.DeleteFunc(s.order, func(v uuid.UUID) bool { return v == id })
	}
}

func (s *Store) notify(c monitoring.Change) {
	s.listenersMu.Lock()
	fns := make([]ChangeListener, 0, len(s.order))
	for _, id := range s.order {
		fns = append(fns, s.listeners[id])
	}
	s.listenersMu.Unlock()

	for _, fn := range fns {
		fn(c)
	}
}

// ApplyInitialSnapshot atomically replaces every collection and the stats.
// Entries lacking an identity are skipped individually and logged. It returns
// the number of skipped entries.
func (s *Store) ApplyInitialSnapshot(
	ctx context.Context,
	tasks []monitoring.Task,
	workers []monitoring.Worker,
	queues []monitoring.Queue,
	stats monitoring.Stats,
) int {
	validTasks, skipped := s.validTasks(ctx, tasks)

	workerMap := make(map[string]monitoring.Worker, len(workers))
	for _, w := range workers {
		if err := w.Validate(); err != nil {
			s.logger.Warn(ctx, "dropping worker from snapshot", "error", err)
			skipped++
			continue
		}
		workerMap[w.Hostname] = w.Clone()
	}

	queueMap := make(map[string]monitoring.Queue, len(queues))
	for _, q := range queues {
		if err := q.Validate(); err != nil {
			s.logger.Warn(ctx, "dropping queue from snapshot", "error", err)
			skipped++
			continue
		}
		queueMap[q.Name] = q
	}

	s.mu.Lock()
	s.tasks.replace(validTasks)
	s.workers = workerMap
	s.queues = queueMap
	s.stats = stats.Clone()
	taskCount := s.tasks.len()
	s.mu.Unlock()

	s.logger.Debug(ctx, "initial snapshot applied",
		"tasks", taskCount,
		"workers", len(workerMap),
		"queues", len(queueMap),
		"skipped", skipped,
	)
	s.notify(monitoring.Change{Kind: monitoring.ChangeSnapshot})
	return skipped
}

// ApplyStatsUpdate replaces the aggregate statistics only.
func (s *Store) ApplyStatsUpdate(ctx context.Context, stats monitoring.Stats) {
	s.mu.Lock()
	s.stats = stats.Clone()
	s.mu.Unlock()

	s.notify(monitoring.Change{Kind: monitoring.ChangeStats})
}

// ApplyTasksUpdate replaces the task collection wholesale. tasks[0] is the
// most recent. Workers, queues and stats are untouched. It returns the number
// of entries skipped for lacking an id.
func (s *Store) ApplyTasksUpdate(ctx context.Context, tasks []monitoring.Task) int {
	valid, skipped := s.validTasks(ctx, tasks)

	s.mu.Lock()
	s.tasks.replace(valid)
	s.mu.Unlock()

	s.notify(monitoring.Change{Kind: monitoring.ChangeTasks})
	return skipped
}

// ApplyTaskUpdate upserts a single task by id. An existing entry keeps its
// position; a new one goes to the front, evicting the oldest-positioned
// entries beyond capacity.
func (s *Store) ApplyTaskUpdate(ctx context.Context, task monitoring.Task) error {
	if err := task.Validate(); err != nil {
		s.logger.Warn(ctx, "dropping task update", "error", err, "name", task.Name)
		return err
	}

	s.mu.Lock()
	evicted := s.tasks.upsert(task.Clone())
	s.mu.Unlock()

	if len(evicted) > 0 {
		s.logger.Debug(ctx, "evicted tasks", "task_id", task.ID, "evicted", strings.Join(evicted, ","))
	}
	s.notify(monitoring.Change{Kind: monitoring.ChangeTask, Key: task.ID})
	return nil
}

// ApplyWorkerUpdate upserts a worker by hostname.
func (s *Store) ApplyWorkerUpdate(ctx context.Context, worker monitoring.Worker) error {
	if err := worker.Validate(); err != nil {
		s.logger.Warn(ctx, "dropping worker update", "error", err)
		return err
	}

	s.mu.Lock()
	s.workers[worker.Hostname] = worker.Clone()
	s.mu.Unlock()

	s.notify(monitoring.Change{Kind: monitoring.ChangeWorker, Key: worker.Hostname})
	return nil
}

// ApplyQueueUpdate upserts a queue by name.
func (s *Store) ApplyQueueUpdate(ctx context.Context, queue monitoring.Queue) error {
	if err := queue.Validate(); err != nil {
		s.logger.Warn(ctx, "dropping queue update", "error", err)
		return err
	}

	s.mu.Lock()
	s.queues[queue.Name] = queue
	s.mu.Unlock()

	s.notify(monitoring.Change{Kind: monitoring.ChangeQueue, Key: queue.Name})
	return nil
}

// TaskCount returns the number of tasks held.
func (s *Store) TaskCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tasks.len()
}

// Task returns a copy of the task with the given id.
func (s *Store) Task(id string) (monitoring.Task, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tasks.get(id)
}

// SnapshotTasks returns copies of the tasks, most recent first.
func (s *Store) SnapshotTasks() []monitoring.Task {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tasks.snapshot()
}

// SnapshotWorkers returns copies of the workers ordered by hostname.
func (s *Store) SnapshotWorkers() []monitoring.Worker {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.workersLocked()
}

// SnapshotQueues returns copies of the queues ordered by name.
func (s *Store) SnapshotQueues() []monitoring.Queue {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.queuesLocked()
}

// SnapshotStats returns a copy of the most recent backend statistics.
func (s *Store) SnapshotStats() monitoring.Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stats.Clone()
}

// Snapshot returns a consistent copy of the whole model.
func (s *Store) Snapshot() monitoring.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return monitoring.Snapshot{
		Tasks:   s.tasks.snapshot(),
		Workers: s.workersLocked(),
		Queues:  s.queuesLocked(),
		Stats:   s.stats.Clone(),
	}
}

func (s *Store) workersLocked() []monitoring.Worker {
	out := make([]monitoring.Worker, 0, len(s.workers))
	for _, host := range slices.Sorted(maps.Keys(s.workers)) {
		out = append(out, s.workers[host].Clone())
	}
	return out
}

func (s *Store) queuesLocked() []monitoring.Queue {
	out := make([]monitoring.Queue, 0, len(s.queues))
	for _, name := range slices.Sorted(maps.Keys(s.queues)) {
		out = append(out, s.queues[name])
	}
	return out
}

func (s *Store) validTasks(ctx context.Context, tasks []monitoring.Task) ([]monitoring.Task, int) {
	valid := make([]monitoring.Task, 0, len(tasks))
	skipped := 0
	for _, t := range tasks {
		if err := t.Validate(); err != nil {
			s.logger.Warn(ctx, "dropping task from collection", "error", err, "name", t.Name)
			skipped++
			continue
		}
		valid = append(valid, t.Clone())
	}
	return valid, skipped
}
