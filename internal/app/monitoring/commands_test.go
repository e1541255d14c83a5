package monitoring

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric/noop"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	"github.com/ahrav/taskpulse/internal/domain/monitoring"
	"github.com/ahrav/taskpulse/pkg/common"
	"github.com/ahrav/taskpulse/pkg/common/logger"
)

type mockControlAPI struct{ mock.Mock }

func (m *mockControlAPI) ListTasks(ctx context.Context) ([]monitoring.Task, error) {
	args := m.Called(ctx)
	tasks, _ := args.Get(0).([]monitoring.Task)
	return tasks, args.Error(1)
}

func (m *mockControlAPI) ListWorkers(ctx context.Context) ([]monitoring.Worker, error) {
	args := m.Called(ctx)
	workers, _ := args.Get(0).([]monitoring.Worker)
	return workers, args.Error(1)
}

func (m *mockControlAPI) ListQueues(ctx context.Context) ([]monitoring.Queue, error) {
	args := m.Called(ctx)
	queues, _ := args.Get(0).([]monitoring.Queue)
	return queues, args.Error(1)
}

func (m *mockControlAPI) CancelTask(ctx context.Context, taskID string, terminate bool) error {
	return m.Called(ctx, taskID, terminate).Error(0)
}

func (m *mockControlAPI) RetryTask(ctx context.Context, taskID string) (string, error) {
	args := m.Called(ctx, taskID)
	return args.String(0), args.Error(1)
}

func newTestCommandDispatcher(t *testing.T, api monitoring.ControlAPI, limiter *common.RateLimiter) *CommandDispatcher {
	t.Helper()
	metrics, err := NewCommandMetrics(noop.NewMeterProvider())
	require.NoError(t, err)
	return NewCommandDispatcher(api, limiter, logger.Noop(), tracenoop.NewTracerProvider().Tracer(""), metrics)
}

func TestCancelTask(t *testing.T) {
	t.Parallel()

	api := new(mockControlAPI)
	api.On("CancelTask", mock.Anything, "T1", true).Return(nil).Once()
	d := newTestCommandDispatcher(t, api, nil)

	require.NoError(t, d.CancelTask(context.Background(), " T1 ", true))
	api.AssertExpectations(t)
}

func TestCancelTaskFailure(t *testing.T) {
	t.Parallel()

	backendErr := errors.New("503 service unavailable")
	api := new(mockControlAPI)
	api.On("CancelTask", mock.Anything, "T1", false).Return(backendErr).Once()
	d := newTestCommandDispatcher(t, api, nil)

	err := d.CancelTask(context.Background(), "T1", false)

	var cmdErr *CommandError
	require.ErrorAs(t, err, &cmdErr)
	assert.Equal(t, OpCancel, cmdErr.Op)
	assert.Equal(t, "T1", cmdErr.TaskID)
	assert.ErrorIs(t, err, backendErr)
	api.AssertNumberOfCalls(t, "CancelTask", 1)
}

func TestCommandsRejectEmptyTaskID(t *testing.T) {
	t.Parallel()

	api := new(mockControlAPI)
	d := newTestCommandDispatcher(t, api, nil)

	assert.ErrorIs(t, d.CancelTask(context.Background(), "  ", false), ErrEmptyTaskID)
	_, err := d.RetryTask(context.Background(), "")
	assert.ErrorIs(t, err, ErrEmptyTaskID)
	api.AssertNotCalled(t, "CancelTask", mock.Anything, mock.Anything, mock.Anything)
	api.AssertNotCalled(t, "RetryTask", mock.Anything, mock.Anything)
}

func TestRetryDoesNotTouchStore(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := newTestStore()
	store.ApplyInitialSnapshot(ctx, []monitoring.Task{{ID: "T9", State: monitoring.TaskStateFailure}}, nil, nil, monitoring.Stats{})

	api := new(mockControlAPI)
	api.On("RetryTask", mock.Anything, "T9").Return("T9-r1", nil).Once()
	d := newTestCommandDispatcher(t, api, nil)

	newID, err := d.RetryTask(ctx, "T9")
	require.NoError(t, err)
	assert.Equal(t, "T9-r1", newID)

	_, ok := store.Task("T9-r1")
	assert.False(t, ok, "retried task must not appear before the stream reports it")
	old, _ := store.Task("T9")
	assert.Equal(t, monitoring.TaskStateFailure, old.State)

	require.NoError(t, store.ApplyTaskUpdate(ctx, monitoring.Task{ID: "T9-r1", State: monitoring.TaskStateSent}))
	_, ok = store.Task("T9-r1")
	assert.True(t, ok)
}

func TestCommandsAreThrottled(t *testing.T) {
	t.Parallel()

	api := new(mockControlAPI)
	api.On("CancelTask", mock.Anything, "T1", false).Return(nil)
	d := newTestCommandDispatcher(t, api, common.NewRateLimiter(0.001, 1))

	require.NoError(t, d.CancelTask(context.Background(), "T1", false))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := d.CancelTask(ctx, "T1", false)

	var cmdErr *CommandError
	require.ErrorAs(t, err, &cmdErr)
	api.AssertNumberOfCalls(t, "CancelTask", 1)
}

func TestListPassThrough(t *testing.T) {
	t.Parallel()

	api := new(mockControlAPI)
	api.On("ListTasks", mock.Anything).Return([]monitoring.Task{{ID: "A"}}, nil)
	api.On("ListWorkers", mock.Anything).Return(nil, errors.New("boom"))
	api.On("ListQueues", mock.Anything).Return([]monitoring.Queue{{Name: "q"}}, nil)
	d := newTestCommandDispatcher(t, api, nil)
	ctx := context.Background()

	tasks, err := d.ListTasks(ctx)
	require.NoError(t, err)
	assert.Len(t, tasks, 1)

	_, err = d.ListWorkers(ctx)
	var cmdErr *CommandError
	require.ErrorAs(t, err, &cmdErr)
	assert.Equal(t, OpListWorkers, cmdErr.Op)

	queues, err := d.ListQueues(ctx)
	require.NoError(t, err)
	assert.Equal(t, "q", queues[0].Name)
}
