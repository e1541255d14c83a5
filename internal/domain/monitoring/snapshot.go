package monitoring

// Snapshot is a point-in-time copy of the whole model. It shares no memory
// with the store that produced it.
type Snapshot struct {
	Tasks   []Task
	Workers []Worker
	Queues  []Queue
	Stats   Stats
}

// ChangeKind describes which part of the model a mutation touched.
type ChangeKind string

const (
	ChangeSnapshot ChangeKind = "snapshot"
	ChangeStats    ChangeKind = "stats"
	ChangeTasks    ChangeKind = "tasks"
	ChangeTask     ChangeKind = "task"
	ChangeWorker   ChangeKind = "worker"
	ChangeQueue    ChangeKind = "queue"
)

// Change is delivered to model subscribers after every applied mutation.
// Key holds the task id, hostname or queue name for targeted changes.
type Change struct {
	Kind ChangeKind `json:"kind"`
	Key  string     `json:"key,omitempty"`
}
