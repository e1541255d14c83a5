package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"go.opentelemetry.io/otel/metric/noop"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	"github.com/ahrav/taskpulse/internal/app/monitoring/views"
	"github.com/ahrav/taskpulse/internal/bootstrap"
	"github.com/ahrav/taskpulse/internal/config/fileloader"
	"github.com/ahrav/taskpulse/internal/domain/monitoring"
	"github.com/ahrav/taskpulse/pkg/common/logger"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var err error
	switch os.Args[1] {
	case "tasks":
		err = runTasks(ctx, os.Args[2:])
	case "workers":
		err = runWorkers(ctx, os.Args[2:])
	case "queues":
		err = runQueues(ctx, os.Args[2:])
	case "cancel":
		err = runCancel(ctx, os.Args[2:])
	case "retry":
		err = runRetry(ctx, os.Args[2:])
	case "watch":
		err = runWatch(ctx, os.Args[2:])
	default:
		usage()
		os.Exit(1)
	}
	if err != nil {
		fatalf("%s: %v", os.Args[1], err)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: monitorctl <tasks|workers|queues|cancel|retry|watch> [-config file] [-o table|json|yaml] [...]")
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

// globals are the flags every subcommand accepts.
type globals struct {
	config  string
	output  string
	verbose bool
}

func newFlagSet(name string) (*flag.FlagSet, *globals) {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	g := new(globals)
	fs.StringVar(&g.config, "config", os.Getenv("TASKPULSE_CONFIG"), "path to a YAML config file")
	fs.StringVar(&g.output, "o", formatTable, "output format: table|json|yaml")
	fs.BoolVar(&g.verbose, "v", false, "log at debug level")
	return fs, g
}

func (g *globals) core(ctx context.Context) (*bootstrap.Core, error) {
	format, err := parseFormat(g.output)
	if err != nil {
		return nil, err
	}
	g.output = format

	cfg, err := fileloader.NewFileLoader(g.config).Load(ctx)
	if err != nil {
		return nil, err
	}

	level := logger.LevelWarn
	if g.verbose {
		level = logger.LevelDebug
	}

	return bootstrap.Build(ctx, cfg, bootstrap.Deps{
		Log:           logger.New(os.Stderr, level, "monitorctl", nil),
		Tracer:        tracenoop.NewTracerProvider().Tracer("monitorctl"),
		MeterProvider: noop.NewMeterProvider(),
	})
}

func runTasks(ctx context.Context, args []string) error {
	fs, g := newFlagSet("tasks")
	filterFlag := fs.String("filter", string(views.FilterAll), "task filter: all|active|failed|success")
	queue := fs.String("queue", "", "only tasks routed to this queue")
	_ = fs.Parse(args)

	filter, err := views.ParseFilter(*filterFlag)
	if err != nil {
		return err
	}
	core, err := g.core(ctx)
	if err != nil {
		return err
	}

	tasks, err := core.Commands.ListTasks(ctx)
	if err != nil {
		return err
	}
	tasks = views.FilterTasks(tasks, filter)
	if *queue != "" {
		tasks = views.ByQueue(tasks, *queue)
	}
	return renderTasks(os.Stdout, g.output, tasks)
}

func runWorkers(ctx context.Context, args []string) error {
	fs, g := newFlagSet("workers")
	_ = fs.Parse(args)

	core, err := g.core(ctx)
	if err != nil {
		return err
	}
	workers, err := core.Commands.ListWorkers(ctx)
	if err != nil {
		return err
	}
	return renderWorkers(os.Stdout, g.output, workers)
}

func runQueues(ctx context.Context, args []string) error {
	fs, g := newFlagSet("queues")
	_ = fs.Parse(args)

	core, err := g.core(ctx)
	if err != nil {
		return err
	}
	queues, err := core.Commands.ListQueues(ctx)
	if err != nil {
		return err
	}
	return renderQueues(os.Stdout, g.output, queues)
}

func runCancel(ctx context.Context, args []string) error {
	fs, g := newFlagSet("cancel")
	terminate := fs.Bool("terminate", false, "kill the task if it is already running")
	_ = fs.Parse(args)
	if fs.NArg() != 1 {
		return fmt.Errorf("usage: monitorctl cancel [-terminate] <task-id>")
	}

	core, err := g.core(ctx)
	if err != nil {
		return err
	}
	if err := core.Commands.CancelTask(ctx, fs.Arg(0), *terminate); err != nil {
		return err
	}
	fmt.Printf("cancel requested for %s\n", strings.TrimSpace(fs.Arg(0)))
	return nil
}

func runRetry(ctx context.Context, args []string) error {
	fs, g := newFlagSet("retry")
	_ = fs.Parse(args)
	if fs.NArg() != 1 {
		return fmt.Errorf("usage: monitorctl retry <task-id>")
	}

	core, err := g.core(ctx)
	if err != nil {
		return err
	}
	newID, err := core.Commands.RetryTask(ctx, fs.Arg(0))
	if err != nil {
		return err
	}
	fmt.Println(newID)
	return nil
}

// runWatch follows the event feed and reprints the filtered task list after
// every model change until interrupted.
func runWatch(ctx context.Context, args []string) error {
	fs, g := newFlagSet("watch")
	filterFlag := fs.String("filter", string(views.FilterAll), "task filter: all|active|failed|success")
	queue := fs.String("queue", "", "only tasks routed to this queue")
	_ = fs.Parse(args)

	filter, err := views.ParseFilter(*filterFlag)
	if err != nil {
		return err
	}
	core, err := g.core(ctx)
	if err != nil {
		return err
	}

	// Changes are coalesced: a pending redraw absorbs later notifications.
	redraw := make(chan struct{}, 1)
	signalRedraw := func() {
		select {
		case redraw <- struct{}{}:
		default:
		}
	}
	unsubscribe := core.Monitor.Subscribe(func(monitoring.Change) { signalRedraw() })
	defer unsubscribe()
	core.Stream.OnStateChange(func(s monitoring.ConnectionState) {
		fmt.Fprintf(os.Stderr, "stream %s\n", s)
	})

	if err := core.Stream.Start(ctx); err != nil {
		return err
	}
	defer core.Stream.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-redraw:
			if g.output == formatTable {
				fmt.Print(clearScreen)
			}
			if err := renderTasks(os.Stdout, g.output, core.Monitor.Tasks(filter, *queue)); err != nil {
				return err
			}
		}
	}
}
