package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoggerWritesStructuredRecord(t *testing.T) {
	var buf bytes.Buffer
	traceFn := func(context.Context) string { return "trace-1" }
	log := New(&buf, LevelInfo, "taskpulse", traceFn)

	log.With("component", "store").Info(context.Background(), "task applied", "task_id", "T1")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "task applied", rec["msg"])
	assert.Equal(t, "taskpulse", rec["service"])
	assert.Equal(t, "store", rec["component"])
	assert.Equal(t, "T1", rec["task_id"])
	assert.Equal(t, "trace-1", rec["trace_id"])
	assert.Contains(t, rec["file"], "logger_test.go")
}

func TestLoggerRespectsMinLevel(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, LevelWarn, "taskpulse", nil)

	log.Info(context.Background(), "dropped")
	assert.Zero(t, buf.Len())

	log.Warn(context.Background(), "kept")
	assert.NotZero(t, buf.Len())
}

func TestLoggerErrorEvent(t *testing.T) {
	var buf bytes.Buffer
	var got Record
	events := Events{Error: func(_ context.Context, r Record) { got = r }}
	log := NewWithMetadata(&buf, LevelDebug, "taskpulse", nil, events, map[string]string{"hostname": "h1"})

	log.Error(context.Background(), "dial failed", "attempt", 2)

	assert.Equal(t, "dial failed", got.Message)
	assert.Equal(t, LevelError, got.Level)
	assert.EqualValues(t, 2, got.Attributes["attempt"])
	assert.Contains(t, buf.String(), `"hostname":"h1"`)
}

func TestLoggerContextAccumulatesFields(t *testing.T) {
	var buf bytes.Buffer
	lc := NewLoggerContext(New(&buf, LevelDebug, "taskpulse", nil))
	lc.Add("task_id", "T9")
	lc.Add("op", "retry")

	lc.Info(context.Background(), "command sent")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "T9", rec["task_id"])
	assert.Equal(t, "retry", rec["op"])
}

func TestNoopDiscards(t *testing.T) {
	log := Noop()
	log.With("a", 1).Error(context.Background(), "nothing")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, LevelDebug, ParseLevel("debug"))
	assert.Equal(t, LevelError, ParseLevel("ERROR"))
	assert.Equal(t, LevelInfo, ParseLevel("nonsense"))
}
