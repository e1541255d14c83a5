package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	appmonitoring "github.com/ahrav/taskpulse/internal/app/monitoring"
	"github.com/ahrav/taskpulse/internal/app/monitoring/dtos"
	"github.com/ahrav/taskpulse/internal/app/monitoring/views"
	"github.com/ahrav/taskpulse/internal/domain/monitoring"
	"github.com/ahrav/taskpulse/pkg/common/validate"
)

// taskQuery holds the query parameters of GET /v1/tasks.
type taskQuery struct {
	Filter string `json:"filter" validate:"omitempty,oneof=all active failed success"`
	Queue  string `json:"queue" validate:"omitempty,max=255"`
	View   string `json:"view" validate:"omitempty,oneof=tasks rows"`
}

// cancelQuery holds the query parameters of POST /v1/tasks/{id}/cancel.
type cancelQuery struct {
	Terminate string `json:"terminate" validate:"omitempty,boolean"`
}

type statusResponse struct {
	Status string `json:"status"`
	Stream string `json:"stream,omitempty"`
}

type streamResponse struct {
	State  string `json:"state"`
	Active bool   `json:"active"`
}

type validationResponse struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(r.Context(), w, http.StatusOK, statusResponse{Status: "ok"})
}

// handleReadiness reports ready only once the event feed delivered its
// initial snapshot.
func (s *Server) handleReadiness(w http.ResponseWriter, r *http.Request) {
	state := s.monitor.StreamState()
	if state != monitoring.StateConnected {
		s.writeJSON(r.Context(), w, http.StatusServiceUnavailable, statusResponse{Status: "not ready", Stream: state.String()})
		return
	}
	s.writeJSON(r.Context(), w, http.StatusOK, statusResponse{Status: "ready", Stream: state.String()})
}

func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	q := taskQuery{
		Filter: r.URL.Query().Get("filter"),
		Queue:  r.URL.Query().Get("queue"),
		View:   r.URL.Query().Get("view"),
	}
	if err := validate.Check(q); err != nil {
		s.writeValidationError(r.Context(), w, err)
		return
	}

	filter, err := views.ParseFilter(q.Filter)
	if err != nil {
		s.writeError(r.Context(), w, http.StatusBadRequest, err)
		return
	}

	tasks := s.monitor.Tasks(filter, q.Queue)
	if q.View == "rows" {
		s.writeJSON(r.Context(), w, http.StatusOK, views.TaskRows(tasks))
		return
	}

	out := make([]dtos.Task, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, dtos.TaskFromDomain(t))
	}
	s.writeJSON(r.Context(), w, http.StatusOK, out)
}

func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	task, ok := s.monitor.Task(id)
	if !ok {
		s.writeError(r.Context(), w, http.StatusNotFound, errors.New("task not found"))
		return
	}
	s.writeJSON(r.Context(), w, http.StatusOK, dtos.TaskFromDomain(task))
}

func (s *Server) handleCancelTask(w http.ResponseWriter, r *http.Request) {
	q := cancelQuery{Terminate: r.URL.Query().Get("terminate")}
	if err := validate.Check(q); err != nil {
		s.writeValidationError(r.Context(), w, err)
		return
	}
	terminate, _ := strconv.ParseBool(q.Terminate)

	id := chi.URLParam(r, "id")
	if err := s.monitor.CancelTask(r.Context(), id, terminate); err != nil {
		s.writeCommandError(r.Context(), w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) handleRetryTask(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	newID, err := s.monitor.RetryTask(r.Context(), id)
	if err != nil {
		s.writeCommandError(r.Context(), w, err)
		return
	}
	s.writeJSON(r.Context(), w, http.StatusAccepted, dtos.RetryResponse{TaskID: newID})
}

func (s *Server) handleListWorkers(w http.ResponseWriter, r *http.Request) {
	workers := s.monitor.Workers()
	out := make([]dtos.Worker, 0, len(workers))
	for _, wk := range workers {
		out = append(out, dtos.WorkerFromDomain(wk))
	}
	s.writeJSON(r.Context(), w, http.StatusOK, out)
}

func (s *Server) handleListQueues(w http.ResponseWriter, r *http.Request) {
	queues := s.monitor.Queues()
	out := make([]dtos.Queue, 0, len(queues))
	for _, q := range queues {
		out = append(out, dtos.QueueFromDomain(q))
	}
	s.writeJSON(r.Context(), w, http.StatusOK, out)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(r.Context(), w, http.StatusOK, dtos.StatsFromDomain(s.monitor.Stats()))
}

func (s *Server) handleDerivedStats(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(r.Context(), w, http.StatusOK, dtos.StatsFromDomain(s.monitor.DerivedStats()))
}

func (s *Server) handleStreamStatus(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(r.Context(), w, http.StatusOK, streamResponse{
		State:  s.monitor.StreamState().String(),
		Active: s.monitor.StreamActive(),
	})
}

func (s *Server) handlePause(w http.ResponseWriter, r *http.Request) {
	s.monitor.Pause()
	s.logger.Info(r.Context(), "stream paused")
	s.handleStreamStatus(w, r)
}

func (s *Server) handleResume(w http.ResponseWriter, r *http.Request) {
	s.monitor.Resume()
	s.logger.Info(r.Context(), "stream resumed")
	s.handleStreamStatus(w, r)
}

// writeCommandError maps command failures: a missing task id is the
// caller's fault, anything else is the backend's.
func (s *Server) writeCommandError(ctx context.Context, w http.ResponseWriter, err error) {
	if errors.Is(err, appmonitoring.ErrEmptyTaskID) {
		s.writeError(ctx, w, http.StatusBadRequest, err)
		return
	}
	s.logger.Warn(ctx, "command failed", "error", err)
	s.writeError(ctx, w, http.StatusBadGateway, err)
}

func (s *Server) writeValidationError(ctx context.Context, w http.ResponseWriter, err error) {
	var fields validate.FieldErrors
	if !errors.As(err, &fields) {
		s.writeError(ctx, w, http.StatusBadRequest, err)
		return
	}
	s.writeJSON(ctx, w, http.StatusBadRequest, validationResponse{Error: "invalid request", Fields: fields.Fields()})
}

func (s *Server) writeError(ctx context.Context, w http.ResponseWriter, status int, err error) {
	s.writeJSON(ctx, w, status, dtos.ErrorResponse{Error: err.Error()})
}

func (s *Server) writeJSON(ctx context.Context, w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error(ctx, "failed to encode response", "error", err)
	}
}
