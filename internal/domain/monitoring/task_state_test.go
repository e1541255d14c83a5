package monitoring

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseTaskState(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		want  TaskState
		known bool
	}{
		{name: "upper case", input: "STARTED", want: TaskStateStarted, known: true},
		{name: "lower case with spaces", input: " success ", want: TaskStateSuccess, known: true},
		{name: "retry", input: "retry", want: TaskStateRetry, known: true},
		{name: "unknown preserved", input: "rejected", want: TaskState("REJECTED"), known: false},
		{name: "empty", input: "", want: TaskState(""), known: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := ParseTaskState(tt.input)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.known, got.IsKnown())
		})
	}
}

func TestTaskStateClassification(t *testing.T) {
	t.Parallel()

	for _, s := range []TaskState{TaskStateSent, TaskStateReceived, TaskStateStarted} {
		assert.True(t, s.IsActive(), s)
		assert.False(t, s.IsTerminal(), s)
	}
	for _, s := range []TaskState{TaskStateSuccess, TaskStateFailure, TaskStateRevoked} {
		assert.False(t, s.IsActive(), s)
		assert.True(t, s.IsTerminal(), s)
	}
	assert.False(t, TaskStatePending.IsActive())
	assert.False(t, TaskStateRetry.IsTerminal())
}

func TestParseWorkerStatus(t *testing.T) {
	t.Parallel()

	assert.Equal(t, WorkerStatusOnline, ParseWorkerStatus("Online"))
	assert.Equal(t, WorkerStatusOnline, ParseWorkerStatus("true"))
	assert.Equal(t, WorkerStatusOffline, ParseWorkerStatus("offline"))
	assert.Equal(t, WorkerStatusUnknown, ParseWorkerStatus("draining"))
}

func TestTaskCloneIsDeep(t *testing.T) {
	t.Parallel()

	task := Task{ID: "T1", Args: []byte(`[1,2]`)}
	clone := task.Clone()
	clone.Args[1] = 'X'

	assert.Equal(t, `[1,2]`, string(task.Args))
}

func TestValidateIdentity(t *testing.T) {
	t.Parallel()

	assert.ErrorIs(t, Task{}.Validate(), ErrMissingIdentity)
	assert.ErrorIs(t, Worker{}.Validate(), ErrMissingIdentity)
	assert.ErrorIs(t, Queue{}.Validate(), ErrMissingIdentity)
	assert.NoError(t, Task{ID: "T1"}.Validate())
}
