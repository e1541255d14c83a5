// Package api serves the monitor's model and commands over HTTP.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel/trace"

	appmonitoring "github.com/ahrav/taskpulse/internal/app/monitoring"
	"github.com/ahrav/taskpulse/internal/app/monitoring/views"
	"github.com/ahrav/taskpulse/internal/config"
	"github.com/ahrav/taskpulse/internal/domain/monitoring"
	"github.com/ahrav/taskpulse/pkg/common/logger"
	"github.com/ahrav/taskpulse/pkg/common/otel"
)

// Monitor is the subset of the monitor facade the API serves.
type Monitor interface {
	Subscribe(fn appmonitoring.ChangeListener) (unsubscribe func())
	Tasks(filter views.Filter, queue string) []monitoring.Task
	Task(id string) (monitoring.Task, bool)
	Workers() []monitoring.Worker
	Queues() []monitoring.Queue
	Stats() monitoring.Stats
	DerivedStats() monitoring.Stats
	CancelTask(ctx context.Context, taskID string, terminate bool) error
	RetryTask(ctx context.Context, taskID string) (string, error)
	Pause()
	Resume()
	StreamState() monitoring.ConnectionState
	StreamActive() bool
}

var _ Monitor = (*appmonitoring.Monitor)(nil)

const shutdownTimeout = 30 * time.Second

// Server is the presentation API.
type Server struct {
	cfg     config.ListenConfig
	logger  *logger.Logger
	router  *chi.Mux
	monitor Monitor
	metrics APIMetrics

	// done is closed when the server shuts down so long-lived event
	// subscriptions end with it.
	done chan struct{}
}

// NewServer builds the router for mon.
func NewServer(
	cfg config.ListenConfig,
	mon Monitor,
	log *logger.Logger,
	tp trace.TracerProvider,
	metrics APIMetrics,
) *Server {
	log = log.With("component", "api")

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(otel.Middleware(tp))
	r.Use(loggerMiddleware(log, metrics))
	r.Use(middleware.Recoverer)

	s := &Server{
		cfg:     cfg,
		logger:  log,
		router:  r,
		monitor: mon,
		metrics: metrics,
		done:    make(chan struct{}),
	}

	s.routes()
	return s
}

func loggerMiddleware(log *logger.Logger, metrics APIMetrics) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			defer func() {
				ctx := r.Context()
				path := r.URL.Path
				if rctx := chi.RouteContext(ctx); rctx != nil && rctx.RoutePattern() != "" {
					path = rctx.RoutePattern()
				}
				elapsed := time.Since(start)

				metrics.IncRequestsTotal(ctx, r.Method, path, ww.Status())
				metrics.ObserveRequestDuration(ctx, r.Method, path, elapsed)
				log.Info(ctx, "Request completed",
					"method", r.Method,
					"path", r.URL.Path,
					"status", ww.Status(),
					"duration", elapsed,
					"trace_id", otel.GetTraceID(ctx),
				)
			}()

			next.ServeHTTP(ww, r)
		})
	}
}

func (s *Server) routes() {
	s.router.Route("/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/readiness", s.handleReadiness)

		r.Get("/tasks", s.handleListTasks)
		r.Get("/tasks/{id}", s.handleGetTask)
		r.Post("/tasks/{id}/cancel", s.handleCancelTask)
		r.Post("/tasks/{id}/retry", s.handleRetryTask)

		r.Get("/workers", s.handleListWorkers)
		r.Get("/queues", s.handleListQueues)
		r.Get("/stats", s.handleStats)
		r.Get("/stats/derived", s.handleDerivedStats)

		r.Get("/stream", s.handleStreamStatus)
		r.Post("/stream/pause", s.handlePause)
		r.Post("/stream/resume", s.handleResume)

		r.Handle("/events", s.eventsHandler())
	})
}

// Handler returns the server's root handler.
func (s *Server) Handler() http.Handler { return s.router }

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	server := &http.Server{
		Addr:              s.cfg.Addr(),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		close(s.done)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			s.logger.Error(shutdownCtx, "failed to shutdown server", "error", err)
		}
	}()

	s.logger.Info(ctx, "starting server", "addr", server.Addr)

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
