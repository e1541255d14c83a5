package monitoring

import "strings"

// TaskState is the backend-reported state of a task. The set is open: the
// backend may introduce states this client does not know, so a TaskState is
// never rejected, only classified.
type TaskState string

const (
	TaskStatePending  TaskState = "PENDING"
	TaskStateSent     TaskState = "SENT"
	TaskStateReceived TaskState = "RECEIVED"
	TaskStateStarted  TaskState = "STARTED"
	TaskStateSuccess  TaskState = "SUCCESS"
	TaskStateFailure  TaskState = "FAILURE"
	TaskStateRevoked  TaskState = "REVOKED"
	TaskStateRetry    TaskState = "RETRY"
)

// String returns the string representation of the TaskState.
func (s TaskState) String() string { return string(s) }

// ParseTaskState normalizes s (trimmed, upper case). Unknown values are kept
// as-is so they can be reported back verbatim.
func ParseTaskState(s string) TaskState {
	return TaskState(strings.ToUpper(strings.TrimSpace(s)))
}

// IsKnown reports whether s is one of the states defined above.
func (s TaskState) IsKnown() bool {
	switch s {
	case TaskStatePending, TaskStateSent, TaskStateReceived, TaskStateStarted,
		TaskStateSuccess, TaskStateFailure, TaskStateRevoked, TaskStateRetry:
		return true
	default:
		return false
	}
}

// IsActive reports whether the task represents in-flight work.
func (s TaskState) IsActive() bool {
	return s == TaskStateSent || s == TaskStateReceived || s == TaskStateStarted
}

// IsTerminal reports whether no further transition is expected without an
// explicit retry.
func (s TaskState) IsTerminal() bool {
	return s == TaskStateSuccess || s == TaskStateFailure || s == TaskStateRevoked
}
