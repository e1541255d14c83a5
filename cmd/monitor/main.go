package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/automaxprocs/maxprocs"
	"golang.org/x/sync/errgroup"

	"github.com/ahrav/taskpulse/internal/api"
	"github.com/ahrav/taskpulse/internal/api/debug"
	"github.com/ahrav/taskpulse/internal/bootstrap"
	"github.com/ahrav/taskpulse/internal/config"
	"github.com/ahrav/taskpulse/internal/config/fileloader"
	"github.com/ahrav/taskpulse/internal/domain/monitoring"
	"github.com/ahrav/taskpulse/pkg/common/logger"
	"github.com/ahrav/taskpulse/pkg/common/otel"
	"github.com/ahrav/taskpulse/pkg/metrics"
	"github.com/ahrav/taskpulse/pkg/server"
)

var build = "develop"

const (
	serviceType     = "monitor"
	shutdownTimeout = 20 * time.Second
)

func main() {
	// Set the correct number of threads for the service
	_, _ = maxprocs.Set()

	configPath := flag.String("config", os.Getenv("TASKPULSE_CONFIG"), "path to a YAML config file")
	flag.Parse()

	hostname, err := os.Hostname()
	if err != nil {
		log.Fatalf("failed to get hostname: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := fileloader.NewFileLoader(*configPath).Load(ctx)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logEvents := logger.Events{
		Error: func(ctx context.Context, r logger.Record) {
			errorAttrs := map[string]any{
				"error_message": r.Message,
				"error_time":    r.Time.UTC().Format(time.RFC3339),
				"trace_id":      otel.GetTraceID(ctx),
			}

			// Add any error-specific attributes.
			for k, v := range r.Attributes {
				errorAttrs[k] = v
			}

			errorAttrsJSON, err := json.Marshal(errorAttrs)
			if err != nil {
				fmt.Fprintf(os.Stderr, "failed to marshal error attributes: %v\n", err)
				return
			}

			fmt.Fprintf(os.Stderr, "Error event: %s, details: %s\n", r.Message, errorAttrsJSON)
		},
	}

	metadata := map[string]string{
		"hostname": hostname,
		"build":    build,
		"app":      serviceType,
	}

	log := logger.NewWithMetadata(os.Stdout, logger.ParseLevel(cfg.Log.Level), cfg.Service.Name, otel.GetTraceID, logEvents, metadata)

	if err := run(ctx, log, cfg); err != nil {
		log.Error(ctx, "startup", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, log *logger.Logger, cfg *config.Config) error {
	// -------------------------------------------------------------------------
	// GOMAXPROCS
	log.Info(ctx, "startup", "GOMAXPROCS", runtime.GOMAXPROCS(0), "build", build)

	// -------------------------------------------------------------------------
	// Start Tracing Support
	log.Info(ctx, "startup", "status", "initializing tracing support")

	traceProvider, teardown, err := otel.InitTelemetry(log, otel.Config{
		Enabled:          cfg.Telemetry.Enabled,
		ServiceName:      cfg.Service.Name,
		ExporterEndpoint: cfg.Telemetry.Endpoint,
		ExcludedRoutes: map[string]struct{}{
			"/v1/health":    {},
			"/v1/readiness": {},
		},
		Probability: cfg.Telemetry.Probability,
		ResourceAttributes: map[string]string{
			"library.language": "go",
			"service.version":  build,
		},
		InsecureExporter: cfg.Telemetry.Insecure,
	})
	if err != nil {
		return fmt.Errorf("starting tracing: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		teardown(shutdownCtx)
	}()

	tracer := traceProvider.Tracer(cfg.Service.Name)
	mp := otel.GetMeterProvider()

	// -------------------------------------------------------------------------
	// Prometheus
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	promMetrics := metrics.New("taskpulse", reg, monitoring.ConnectionStateNames()...)

	// -------------------------------------------------------------------------
	// Monitoring core
	log.Info(ctx, "startup", "status", "initializing monitoring core", "stream", cfg.Stream.URL)

	core, err := bootstrap.Build(ctx, cfg, bootstrap.Deps{
		Log:           log,
		Tracer:        tracer,
		MeterProvider: mp,
		Metrics:       promMetrics,
	})
	if err != nil {
		return err
	}

	health := server.New(traceProvider)
	core.Stream.OnStateChange(func(s monitoring.ConnectionState) {
		health.SetServing(s == monitoring.StateConnected)
	})

	apiMetrics, err := api.NewAPIMetrics(mp)
	if err != nil {
		return fmt.Errorf("creating api metrics: %w", err)
	}
	apiServer := api.NewServer(cfg.API, core.Monitor, log, traceProvider, apiMetrics)

	debugMux, err := debug.Mux(reg)
	if err != nil {
		return err
	}

	// -------------------------------------------------------------------------
	// Serve
	g, gctx := errgroup.WithContext(ctx)

	if err := core.Stream.Start(gctx); err != nil {
		return fmt.Errorf("starting stream client: %w", err)
	}
	defer core.Stream.Stop()

	g.Go(func() error {
		return apiServer.Start(gctx)
	})

	g.Go(func() error {
		lis, err := net.Listen("tcp", cfg.GRPC.Addr())
		if err != nil {
			return fmt.Errorf("grpc listen: %w", err)
		}
		go func() {
			<-gctx.Done()
			health.GracefulStop()
		}()

		log.Info(ctx, "startup", "status", "grpc health server started", "host", cfg.GRPC.Addr())
		return health.Serve(lis)
	})

	g.Go(func() error {
		srv := &http.Server{
			Addr:              cfg.Debug.Addr(),
			Handler:           debugMux,
			ReadHeaderTimeout: 10 * time.Second,
			ErrorLog:          logger.NewStdLogger(log, logger.LevelError),
		}
		go func() {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()

		log.Info(ctx, "startup", "status", "debug router started", "host", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	// -------------------------------------------------------------------------
	// Shutdown
	<-gctx.Done()
	log.Info(ctx, "shutdown", "status", "shutdown started")
	defer log.Info(ctx, "shutdown", "status", "shutdown complete")

	if err := g.Wait(); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}
