// Package controlapi is the HTTP client for the backend's request/response
// control surface: task, worker and queue listings plus cancel and retry.
package controlapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ahrav/taskpulse/internal/app/monitoring/dtos"
	"github.com/ahrav/taskpulse/internal/domain/monitoring"
	"github.com/ahrav/taskpulse/pkg/common/logger"
)

// DefaultTimeout bounds a single request.
const DefaultTimeout = 10 * time.Second

// maxErrorBody caps how much of an error response is read.
const maxErrorBody = 64 << 10

var _ monitoring.ControlAPI = (*Client)(nil)

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client. Its transport is used
// as-is, without otel instrumentation.
func WithHTTPClient(hc *http.Client) Option { return func(c *Client) { c.http = hc } }

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithTokenSource sets the bearer credential provider.
func WithTokenSource(ts monitoring.TokenSource) Option { return func(c *Client) { c.tokens = ts } }

// Client talks to the control API at a base URL.
type Client struct {
	base    *url.URL
	http    *http.Client
	tokens  monitoring.TokenSource
	timeout time.Duration

	logger *logger.Logger
	tracer trace.Tracer
}

// New creates a Client for baseURL.
func New(baseURL string, log *logger.Logger, tracer trace.Tracer, opts ...Option) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid control api url %q: %w", baseURL, err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("invalid control api url %q: scheme must be http or https", baseURL)
	}

	c := &Client{
		base:    base,
		http:    &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)},
		timeout: DefaultTimeout,
		logger:  log.With("component", "control_api"),
		tracer:  tracer,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// ListTasks implements monitoring.ControlAPI.
func (c *Client) ListTasks(ctx context.Context) ([]monitoring.Task, error) {
	var out []dtos.Task
	if err := c.do(ctx, http.MethodGet, "/api/tasks", nil, &out); err != nil {
		return nil, err
	}
	return dtos.TasksToDomain(out), nil
}

// ListWorkers implements monitoring.ControlAPI.
func (c *Client) ListWorkers(ctx context.Context) ([]monitoring.Worker, error) {
	var out []dtos.Worker
	if err := c.do(ctx, http.MethodGet, "/api/workers", nil, &out); err != nil {
		return nil, err
	}
	return dtos.WorkersToDomain(out), nil
}

// ListQueues implements monitoring.ControlAPI.
func (c *Client) ListQueues(ctx context.Context) ([]monitoring.Queue, error) {
	var out []dtos.Queue
	if err := c.do(ctx, http.MethodGet, "/api/queues", nil, &out); err != nil {
		return nil, err
	}
	return dtos.QueuesToDomain(out), nil
}

// CancelTask implements monitoring.ControlAPI.
func (c *Client) CancelTask(ctx context.Context, taskID string, terminate bool) error {
	query := url.Values{"terminate": {strconv.FormatBool(terminate)}}
	return c.do(ctx, http.MethodPost, "/api/task/revoke/"+url.PathEscape(taskID), query, nil)
}

// RetryTask implements monitoring.ControlAPI.
func (c *Client) RetryTask(ctx context.Context, taskID string) (string, error) {
	var out dtos.RetryResponse
	if err := c.do(ctx, http.MethodPost, "/api/task/retry/"+url.PathEscape(taskID), nil, &out); err != nil {
		return "", err
	}
	if out.TaskID == "" {
		return "", errors.New("control api: retry response missing task_id")
	}
	return out.TaskID, nil
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, out any) error {
	ctx, span := c.tracer.Start(ctx, "control_api.request",
		trace.WithAttributes(
			attribute.String("http.method", method),
			attribute.String("http.path", path),
		))
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var err error
	// path arrives escaped; keep the escaping of ids containing '/'.
	u := *c.base
	u.RawPath = c.base.EscapedPath() + path
	if u.Path, err = url.PathUnescape(u.RawPath); err != nil {
		return fmt.Errorf("invalid request path %q: %w", path, err)
	}
	u.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, method, u.String(), nil)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	requestID := uuid.NewString()
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", requestID)
	if c.tokens != nil {
		token, err := c.tokens.Token(ctx)
		if err != nil {
			return fmt.Errorf("obtaining bearer token: %w", err)
		}
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "request failed")
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := decodeError(resp)
		span.RecordError(apiErr)
		span.SetStatus(codes.Error, apiErr.Error())
		c.logger.Debug(ctx, "control api error",
			"request_id", requestID,
			"method", method,
			"path", path,
			"status", resp.StatusCode,
		)
		return apiErr
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "decode failed")
		return fmt.Errorf("decoding %s response: %w", path, err)
	}
	span.SetStatus(codes.Ok, "")
	return nil
}

func decodeError(resp *http.Response) *APIError {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	apiErr := &APIError{StatusCode: resp.StatusCode}

	var payload dtos.ErrorResponse
	if err := json.Unmarshal(body, &payload); err == nil && payload.Error != "" {
		apiErr.Message = payload.Error
		return apiErr
	}
	apiErr.Message = string(bytes.TrimSpace(body))
	return apiErr
}
