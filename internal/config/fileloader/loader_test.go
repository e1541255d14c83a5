package fileloader

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/taskpulse/pkg/common/validate"
)

func envMap(m map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := NewFileLoader("").WithEnv(envMap(nil)).Load(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3*time.Second, cfg.Stream.ReconnectDelay)
	assert.Equal(t, 100, cfg.Store.TaskCapacity)
	assert.Equal(t, "0.0.0.0:8080", cfg.API.Addr())
	assert.Equal(t, "9090", cfg.GRPC.Port)
	assert.Equal(t, "8081", cfg.Debug.Port)
	assert.False(t, cfg.Telemetry.Enabled)
}

func TestLoadFileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "taskpulse.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
stream:
  url: ws://flower:5555/api/ws
  reconnect_delay: 5s
store:
  task_capacity: 250
auth:
  token: from-file
`), 0o600))

	cfg, err := NewFileLoader(path).WithEnv(envMap(map[string]string{
		"TASKPULSE_AUTH_TOKEN":     "from-env",
		"TASKPULSE_COMMANDS_BURST": "9",
		"TASKPULSE_LOG_LEVEL":      "debug",
	})).Load(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "ws://flower:5555/api/ws", cfg.Stream.URL)
	assert.Equal(t, 5*time.Second, cfg.Stream.ReconnectDelay)
	assert.Equal(t, 250, cfg.Store.TaskCapacity)
	assert.Equal(t, "from-env", cfg.Auth.Token)
	assert.Equal(t, 9, cfg.Commands.Burst)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoadRejectsInvalid(t *testing.T) {
	cfg, err := NewFileLoader("").WithEnv(envMap(map[string]string{
		"TASKPULSE_STORE_TASK_CAPACITY": "0",
		"TASKPULSE_LOG_LEVEL":           "verbose",
		"TASKPULSE_TELEMETRY_ENABLED":   "true",
	})).Load(context.Background())

	require.Error(t, err)
	assert.Nil(t, cfg)
	assert.True(t, validate.IsFieldErrors(err))
	assert.Contains(t, err.Error(), "store.task_capacity")
	assert.Contains(t, err.Error(), "log.level")
	assert.Contains(t, err.Error(), "telemetry.endpoint")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := NewFileLoader(filepath.Join(t.TempDir(), "nope.yaml")).Load(context.Background())
	assert.Error(t, err)
}
