// Package bootstrap assembles the monitoring core from configuration. Both
// the daemon and the CLI build their Monitor through it.
package bootstrap

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	appmonitoring "github.com/ahrav/taskpulse/internal/app/monitoring"
	"github.com/ahrav/taskpulse/internal/config"
	"github.com/ahrav/taskpulse/internal/domain/monitoring"
	"github.com/ahrav/taskpulse/internal/infra/controlapi"
	eventdispatcher "github.com/ahrav/taskpulse/internal/infra/event_dispatcher"
	"github.com/ahrav/taskpulse/internal/infra/stream"
	"github.com/ahrav/taskpulse/pkg/common"
	"github.com/ahrav/taskpulse/pkg/common/logger"
	"github.com/ahrav/taskpulse/pkg/metrics"
)

// Core is the assembled monitoring core.
type Core struct {
	Store    *appmonitoring.Store
	Stream   *stream.Client
	API      *controlapi.Client
	Commands *appmonitoring.CommandDispatcher
	Monitor  *appmonitoring.Monitor
}

// Deps carries the ambient services the core reports to. A nil Metrics
// disables Prometheus reporting.
type Deps struct {
	Log           *logger.Logger
	Tracer        trace.Tracer
	MeterProvider metric.MeterProvider
	Metrics       *metrics.Metrics
}

// Build wires the store, frame dispatcher, stream client, control API
// client and command dispatcher into a Monitor. The stream client is not
// started.
func Build(ctx context.Context, cfg *config.Config, deps Deps) (*Core, error) {
	tokens := controlapi.StaticToken(cfg.Auth.Token)

	store := appmonitoring.NewStore(deps.Log, appmonitoring.WithTaskCapacity(cfg.Store.TaskCapacity))

	dispatcher := eventdispatcher.New(deps.Tracer, deps.Log)
	appmonitoring.RegisterFrameHandlers(ctx, dispatcher, store)
	if err := checkFrameHandlers(dispatcher); err != nil {
		return nil, err
	}

	streamOpts := []stream.Option{
		stream.WithTokenSource(tokens),
		stream.WithReconnectDelay(cfg.Stream.ReconnectDelay),
		stream.WithHandshakeTimeout(cfg.Stream.HandshakeTimeout),
		stream.WithDialer(&stream.WebSocketDialer{MaxMessageBytes: cfg.Stream.MaxMessageBytes}),
	}
	if deps.Metrics != nil {
		streamOpts = append(streamOpts, stream.WithMetrics(deps.Metrics))
	}
	client := stream.NewClient(cfg.Stream.URL, dispatcher, deps.Log, deps.Tracer, streamOpts...)

	api, err := controlapi.New(cfg.ControlAPI.BaseURL, deps.Log, deps.Tracer,
		controlapi.WithTimeout(cfg.ControlAPI.Timeout),
		controlapi.WithTokenSource(tokens),
	)
	if err != nil {
		return nil, fmt.Errorf("creating control api client: %w", err)
	}

	cmdMetrics, err := appmonitoring.NewCommandMetrics(deps.MeterProvider)
	if err != nil {
		return nil, fmt.Errorf("creating command metrics: %w", err)
	}
	limiter := common.NewRateLimiter(cfg.Commands.RateLimit, cfg.Commands.Burst)
	commands := appmonitoring.NewCommandDispatcher(api, limiter, deps.Log, deps.Tracer, cmdMetrics)

	var monOpts []appmonitoring.MonitorOption
	if deps.Metrics != nil {
		monOpts = append(monOpts, appmonitoring.WithModelMetrics(deps.Metrics))
	}
	mon := appmonitoring.NewMonitor(store, client, commands, deps.Log, monOpts...)

	return &Core{
		Store:    store,
		Stream:   client,
		API:      api,
		Commands: commands,
		Monitor:  mon,
	}, nil
}

type handlerIndex interface {
	Handles(msgType monitoring.MessageType) bool
}

// checkFrameHandlers fails when any known frame type has no handler.
func checkFrameHandlers(idx handlerIndex) error {
	var missing []string
	for _, typ := range monitoring.MessageTypes() {
		if !idx.Handles(typ) {
			missing = append(missing, typ.String())
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("no frame handler registered for: %s", strings.Join(missing, ", "))
	}
	return nil
}
