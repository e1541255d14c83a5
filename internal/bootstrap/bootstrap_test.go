package bootstrap

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric/noop"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	appmonitoring "github.com/ahrav/taskpulse/internal/app/monitoring"
	"github.com/ahrav/taskpulse/internal/app/monitoring/views"
	"github.com/ahrav/taskpulse/internal/config"
	"github.com/ahrav/taskpulse/internal/domain/monitoring"
	eventdispatcher "github.com/ahrav/taskpulse/internal/infra/event_dispatcher"
	"github.com/ahrav/taskpulse/pkg/common/logger"
	"github.com/ahrav/taskpulse/pkg/metrics"
)

func testConfig() *config.Config {
	return &config.Config{
		Stream: config.StreamConfig{
			URL:              "ws://127.0.0.1:1/api/ws",
			ReconnectDelay:   time.Second,
			HandshakeTimeout: time.Second,
		},
		ControlAPI: config.ControlAPIConfig{BaseURL: "http://127.0.0.1:1", Timeout: time.Second},
		Commands:   config.CommandsConfig{Burst: 1},
		Store:      config.StoreConfig{TaskCapacity: 5},
	}
}

func TestBuild(t *testing.T) {
	reg := prometheus.NewRegistry()
	core, err := Build(context.Background(), testConfig(), Deps{
		Log:           logger.Noop(),
		Tracer:        tracenoop.NewTracerProvider().Tracer(""),
		MeterProvider: noop.NewMeterProvider(),
		Metrics:       metrics.New("taskpulse", reg, monitoring.ConnectionStateNames()...),
	})
	require.NoError(t, err)

	assert.Equal(t, 5, core.Store.Capacity())
	assert.Equal(t, monitoring.StateDisconnected, core.Monitor.StreamState())
	assert.False(t, core.Monitor.StreamActive())

	require.NoError(t, core.Store.ApplyTaskUpdate(context.Background(), monitoring.Task{ID: "T1"}))
	assert.Len(t, core.Monitor.Tasks(views.FilterAll, ""), 1)
}

func TestBuildRejectsBadControlURL(t *testing.T) {
	cfg := testConfig()
	cfg.ControlAPI.BaseURL = "ftp://example.com"

	_, err := Build(context.Background(), cfg, Deps{
		Log:           logger.Noop(),
		Tracer:        tracenoop.NewTracerProvider().Tracer(""),
		MeterProvider: noop.NewMeterProvider(),
	})
	assert.Error(t, err)
}

func TestCheckFrameHandlers(t *testing.T) {
	ctx := context.Background()
	tracer := tracenoop.NewTracerProvider().Tracer("")

	full := eventdispatcher.New(tracer, logger.Noop())
	appmonitoring.RegisterFrameHandlers(ctx, full, appmonitoring.NewStore(logger.Noop()))
	require.NoError(t, checkFrameHandlers(full))

	partial := eventdispatcher.New(tracer, logger.Noop())
	partial.RegisterHandler(ctx, monitoring.MessageTypeInitialData,
		func(context.Context, json.RawMessage) error { return nil })
	err := checkFrameHandlers(partial)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "queue_update")
	assert.NotContains(t, err.Error(), "initial_data")
}
