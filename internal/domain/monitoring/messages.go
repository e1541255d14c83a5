package monitoring

import (
	"context"
	"encoding/json"
)

// MessageType identifies the kind of frame pushed by the backend event feed.
type MessageType string

const (
	// MessageTypeInitialData carries a full snapshot; sent first on every
	// connection.
	MessageTypeInitialData MessageType = "initial_data"
	// MessageTypeStatsUpdate replaces the aggregate statistics.
	MessageTypeStatsUpdate MessageType = "stats_update"
	// MessageTypeTasksUpdate replaces the whole task collection.
	MessageTypeTasksUpdate MessageType = "tasks_update"
	// MessageTypeTaskUpdate upserts a single task.
	MessageTypeTaskUpdate MessageType = "task_update"
	// MessageTypeWorkerUpdate upserts a single worker.
	MessageTypeWorkerUpdate MessageType = "worker_update"
	// MessageTypeQueueUpdate upserts a single queue.
	MessageTypeQueueUpdate MessageType = "queue_update"
)

// MessageTypes lists every frame type the event feed is known to send.
func MessageTypes() []MessageType {
	return []MessageType{
		MessageTypeInitialData,
		MessageTypeStatsUpdate,
		MessageTypeTasksUpdate,
		MessageTypeTaskUpdate,
		MessageTypeWorkerUpdate,
		MessageTypeQueueUpdate,
	}
}

// String returns the string representation of the MessageType.
func (t MessageType) String() string { return string(t) }

// Frame is one decoded message from the event feed. Data is left raw so the
// handler registered for Type decides how to interpret it.
type Frame struct {
	Type MessageType     `json:"type"`
	Data json.RawMessage `json:"data"`
}

// FrameHandler merges the payload of one frame type into the model.
type FrameHandler func(ctx context.Context, data json.RawMessage) error
