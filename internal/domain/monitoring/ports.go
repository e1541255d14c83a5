package monitoring

import "context"

// ControlAPI is the request/response side of the backend. Its calls never
// touch the local model; their effects arrive later over the event feed.
type ControlAPI interface {
	ListTasks(ctx context.Context) ([]Task, error)
	ListWorkers(ctx context.Context) ([]Worker, error)
	ListQueues(ctx context.Context) ([]Queue, error)

	// CancelTask revokes a task. With terminate set, a running task is killed.
	CancelTask(ctx context.Context, taskID string, terminate bool) error
	// RetryTask resubmits a task and returns the id of the new execution.
	RetryTask(ctx context.Context, taskID string) (string, error)
}

// TokenSource supplies the bearer credential used against the backend.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// ModelReader is the read side of the model store.
type ModelReader interface {
	Snapshot() Snapshot
	SnapshotTasks() []Task
	SnapshotWorkers() []Worker
	SnapshotQueues() []Queue
	SnapshotStats() Stats
}
