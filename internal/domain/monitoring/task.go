package monitoring

import (
	"encoding/json"
	"errors"
	"slices"
	"time"
)

// ErrMissingIdentity is returned when an update lacks the field that keys it
// in the model (task id, worker hostname or queue name).
var ErrMissingIdentity = errors.New("update missing identity field")

// Task is the latest known state of a single task execution.
type Task struct {
	ID     string
	Name   string
	State  TaskState
	Queue  string
	Worker string // empty until a worker picks the task up

	Received  *time.Time
	Started   *time.Time
	Completed *time.Time
	Runtime   time.Duration
	Retries   int

	// Failure detail, populated for FAILURE/RETRY.
	Exception string
	Traceback string

	// Invocation arguments, kept opaque.
	Args   json.RawMessage
	Kwargs json.RawMessage
}

// Validate checks that the task can be keyed.
func (t Task) Validate() error {
	if t.ID == "" {
		return ErrMissingIdentity
	}
	return nil
}

// Clone returns a deep copy of t.
func (t Task) Clone() Task {
	c := t
	c.Received = cloneTime(t.Received)
	c.Started = cloneTime(t.Started)
	c.Completed = cloneTime(t.Completed)
	c.Args = slices.Clone(t.Args)
	c.Kwargs = slices.Clone(t.Kwargs)
	return c
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

// ErrMalformedPayload is returned when a frame's payload cannot be decoded
// into the shape its type promises.
var ErrMalformedPayload = errors.New("malformed frame payload")
