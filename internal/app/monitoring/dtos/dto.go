// Package dtos provides the wire representations of the backend's event feed
// and control API payloads, and their conversions to domain types.
package dtos

import (
	"encoding/json"
	"strings"

	"github.com/ahrav/taskpulse/internal/domain/monitoring"
)

// Task is the wire form of a task.
type Task struct {
	ID        string          `json:"id"`
	Name      string          `json:"name,omitempty"`
	State     string          `json:"state"`
	Queue     string          `json:"queue,omitempty"`
	Worker    string          `json:"worker,omitempty"`
	Received  Timestamp       `json:"received"`
	Started   Timestamp       `json:"started"`
	Completed Timestamp       `json:"completed"`
	Runtime   Seconds         `json:"runtime,omitempty"`
	Retries   int             `json:"retries,omitempty"`
	Exception string          `json:"exception,omitempty"`
	Traceback string          `json:"traceback,omitempty"`
	Args      json.RawMessage `json:"args,omitempty"`
	Kwargs    json.RawMessage `json:"kwargs,omitempty"`
}

// ToDomain converts the DTO into a domain task.
func (t Task) ToDomain() monitoring.Task {
	return monitoring.Task{
		ID:        strings.TrimSpace(t.ID),
		Name:      t.Name,
		State:     monitoring.ParseTaskState(t.State),
		Queue:     t.Queue,
		Worker:    t.Worker,
		Received:  t.Received.Ptr(),
		Started:   t.Started.Ptr(),
		Completed: t.Completed.Ptr(),
		Runtime:   t.Runtime.Duration(),
		Retries:   t.Retries,
		Exception: t.Exception,
		Traceback: t.Traceback,
		Args:      t.Args,
		Kwargs:    t.Kwargs,
	}
}

// TaskFromDomain converts a domain task into its wire form.
func TaskFromDomain(t monitoring.Task) Task {
	return Task{
		ID:        t.ID,
		Name:      t.Name,
		State:     t.State.String(),
		Queue:     t.Queue,
		Worker:    t.Worker,
		Received:  NewTimestamp(t.Received),
		Started:   NewTimestamp(t.Started),
		Completed: NewTimestamp(t.Completed),
		Runtime:   SecondsFrom(t.Runtime),
		Retries:   t.Retries,
		Exception: t.Exception,
		Traceback: t.Traceback,
		Args:      t.Args,
		Kwargs:    t.Kwargs,
	}
}

// WorkerStatus accepts either a string ("online") or a boolean.
type WorkerStatus string

// UnmarshalJSON implements json.Unmarshaler.
func (s *WorkerStatus) UnmarshalJSON(b []byte) error {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	switch x := v.(type) {
	case bool:
		if x {
			*s = WorkerStatus(monitoring.WorkerStatusOnline)
		} else {
			*s = WorkerStatus(monitoring.WorkerStatusOffline)
		}
	case string:
		*s = WorkerStatus(x)
	default:
		*s = ""
	}
	return nil
}

// Worker is the wire form of a worker.
type Worker struct {
	Hostname       string       `json:"hostname"`
	Status         WorkerStatus `json:"status"`
	Active         int          `json:"active"`
	Processed      int64        `json:"processed"`
	LoadAvg        []float64    `json:"loadavg,omitempty"`
	LastHeartbeat  Timestamp    `json:"last_heartbeat"`
	PoolSize       int          `json:"pool_size,omitempty"`
	MaxConcurrency int          `json:"max_concurrency,omitempty"`
}

// ToDomain converts the DTO into a domain worker. Load samples beyond the
// third are ignored; missing ones are zero.
func (w Worker) ToDomain() monitoring.Worker {
	out := monitoring.Worker{
		Hostname:       strings.TrimSpace(w.Hostname),
		Status:         monitoring.ParseWorkerStatus(string(w.Status)),
		Active:         w.Active,
		Processed:      w.Processed,
		LastHeartbeat:  w.LastHeartbeat.Ptr(),
		PoolSize:       w.PoolSize,
		MaxConcurrency: w.MaxConcurrency,
	}
	copy(out.LoadAvg[:], w.LoadAvg)
	return out
}

// WorkerFromDomain converts a domain worker into its wire form.
func WorkerFromDomain(w monitoring.Worker) Worker {
	return Worker{
		Hostname:       w.Hostname,
		Status:         WorkerStatus(w.Status),
		Active:         w.Active,
		Processed:      w.Processed,
		LoadAvg:        w.LoadAvg[:],
		LastHeartbeat:  NewTimestamp(w.LastHeartbeat),
		PoolSize:       w.PoolSize,
		MaxConcurrency: w.MaxConcurrency,
	}
}

// Queue is the wire form of a queue.
type Queue struct {
	Name                   string `json:"name"`
	Messages               int    `json:"messages"`
	MessagesReady          int    `json:"messages_ready"`
	MessagesUnacknowledged int    `json:"messages_unacknowledged"`
	Consumers              int    `json:"consumers"`
}

// ToDomain converts the DTO into a domain queue.
func (q Queue) ToDomain() monitoring.Queue {
	return monitoring.Queue{
		Name:                   strings.TrimSpace(q.Name),
		Messages:               q.Messages,
		MessagesReady:          q.MessagesReady,
		MessagesUnacknowledged: q.MessagesUnacknowledged,
		Consumers:              q.Consumers,
	}
}

// QueueFromDomain converts a domain queue into its wire form.
func QueueFromDomain(q monitoring.Queue) Queue {
	return Queue{
		Name:                   q.Name,
		Messages:               q.Messages,
		MessagesReady:          q.MessagesReady,
		MessagesUnacknowledged: q.MessagesUnacknowledged,
		Consumers:              q.Consumers,
	}
}

// Stats is the wire form of the aggregate statistics.
type Stats struct {
	TotalTasks     int            `json:"total_tasks"`
	TasksByState   map[string]int `json:"tasks_by_state"`
	QueueLengths   map[string]int `json:"queue_lengths"`
	WorkersOnline  int            `json:"workers_online"`
	WorkersOffline int            `json:"workers_offline"`
}

// ToDomain converts the DTO into domain stats. State keys are normalized the
// same way task states are.
func (s Stats) ToDomain() monitoring.Stats {
	out := monitoring.Stats{
		TotalTasks:     s.TotalTasks,
		WorkersOnline:  s.WorkersOnline,
		WorkersOffline: s.WorkersOffline,
	}
	if s.TasksByState != nil {
		out.TasksByState = make(map[monitoring.TaskState]int, len(s.TasksByState))
		for k, v := range s.TasksByState {
			out.TasksByState[monitoring.ParseTaskState(k)] += v
		}
	}
	if s.QueueLengths != nil {
		out.QueueLengths = make(map[string]int, len(s.QueueLengths))
		for k, v := range s.QueueLengths {
			out.QueueLengths[k] = v
		}
	}
	return out
}

// StatsFromDomain converts domain stats into their wire form.
func StatsFromDomain(s monitoring.Stats) Stats {
	out := Stats{
		TotalTasks:     s.TotalTasks,
		TasksByState:   make(map[string]int, len(s.TasksByState)),
		QueueLengths:   make(map[string]int, len(s.QueueLengths)),
		WorkersOnline:  s.WorkersOnline,
		WorkersOffline: s.WorkersOffline,
	}
	for k, v := range s.TasksByState {
		out.TasksByState[k.String()] = v
	}
	for k, v := range s.QueueLengths {
		out.QueueLengths[k] = v
	}
	return out
}

// InitialData is the payload of an initial_data frame. Entries stay raw so
// each one can be decoded on its own and a bad entry skipped.
type InitialData struct {
	Tasks   []json.RawMessage `json:"tasks"`
	Workers []json.RawMessage `json:"workers"`
	Queues  []json.RawMessage `json:"queues"`
	Stats   json.RawMessage   `json:"stats"`
}

// TasksUpdate is the payload of a tasks_update frame. The backend sends
// either a bare array or an object wrapping it under "tasks".
// Entries stay raw, as in InitialData.
type TasksUpdate struct {
	Tasks []json.RawMessage
}

// UnmarshalJSON implements json.Unmarshaler.
func (u *TasksUpdate) UnmarshalJSON(b []byte) error {
	var arr []json.RawMessage
	if err := json.Unmarshal(b, &arr); err == nil {
		u.Tasks = arr
		return nil
	}
	var obj struct {
		Tasks []json.RawMessage `json:"tasks"`
	}
	if err := json.Unmarshal(b, &obj); err != nil {
		return err
	}
	u.Tasks = obj.Tasks
	return nil
}

// MarshalJSON implements json.Marshaler.
func (u TasksUpdate) MarshalJSON() ([]byte, error) { return json.Marshal(u.Tasks) }

// RetryResponse is the control API's reply to a retry request.
type RetryResponse struct {
	TaskID string `json:"task_id"`
}

// ErrorResponse is the error body used by the control API and the
// presentation API.
type ErrorResponse struct {
	Error string `json:"error"`
}

// TasksToDomain converts a slice of task DTOs.
func TasksToDomain(in []Task) []monitoring.Task {
	out := make([]monitoring.Task, 0, len(in))
	for _, t := range in {
		out = append(out, t.ToDomain())
	}
	return out
}

// WorkersToDomain converts a slice of worker DTOs.
func WorkersToDomain(in []Worker) []monitoring.Worker {
	out := make([]monitoring.Worker, 0, len(in))
	for _, w := range in {
		out = append(out, w.ToDomain())
	}
	return out
}

// QueuesToDomain converts a slice of queue DTOs.
func QueuesToDomain(in []Queue) []monitoring.Queue {
	out := make([]monitoring.Queue, 0, len(in))
	for _, q := range in {
		out = append(out, q.ToDomain())
	}
	return out
}
