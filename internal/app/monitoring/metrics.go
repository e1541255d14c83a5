package monitoring

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const namespace = "taskpulse"

// CommandMetrics defines metrics operations needed by the command dispatcher.
type CommandMetrics interface {
	IncCommands(ctx context.Context, op string)
	IncCommandErrors(ctx context.Context, op, reason string)
}

type commandMetrics struct {
	commandsTotal metric.Int64Counter
	commandErrors metric.Int64Counter
}

// NewCommandMetrics creates command counters on mp.
func NewCommandMetrics(mp metric.MeterProvider) (*commandMetrics, error) {
	meter := mp.Meter(namespace, metric.WithInstrumentationVersion("v0.1.0"))

	m := new(commandMetrics)
	var err error

	if m.commandsTotal, err = meter.Int64Counter(
		"commands_total",
		metric.WithDescription("Total number of control commands sent to the backend"),
	); err != nil {
		return nil, err
	}

	if m.commandErrors, err = meter.Int64Counter(
		"command_errors_total",
		metric.WithDescription("Total number of control commands that failed"),
	); err != nil {
		return nil, err
	}

	return m, nil
}

func (m *commandMetrics) IncCommands(ctx context.Context, op string) {
	m.commandsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("op", op)))
}

func (m *commandMetrics) IncCommandErrors(ctx context.Context, op, reason string) {
	m.commandErrors.Add(ctx, 1, metric.WithAttributes(
		attribute.String("op", op),
		attribute.String("reason", reason),
	))
}
