// Package stream maintains the long-lived connection to the backend event
// feed and feeds every frame, in arrival order, to a frame dispatcher.
package stream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/cenkalti/backoff"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ahrav/taskpulse/internal/domain/monitoring"
	eventdispatcher "github.com/ahrav/taskpulse/internal/infra/event_dispatcher"
	"github.com/ahrav/taskpulse/pkg/common/logger"
	"github.com/ahrav/taskpulse/pkg/common/timeutil"
	"github.com/ahrav/taskpulse/pkg/metrics"
)

const (
	// DefaultReconnectDelay is the fixed pause between losing a connection and
	// dialing again.
	DefaultReconnectDelay = 3 * time.Second
	// DefaultHandshakeTimeout bounds a single dial.
	DefaultHandshakeTimeout = 10 * time.Second
)

var _ monitoring.StreamController = (*Client)(nil)

var (
	// ErrAlreadyStarted is returned when Start is called twice.
	ErrAlreadyStarted = errors.New("stream client already started")
	// ErrStopped is returned when Start is called after Stop.
	ErrStopped = errors.New("stream client stopped")
)

// FrameDispatcher applies a decoded frame.
type FrameDispatcher interface {
	Dispatch(ctx context.Context, frame monitoring.Frame) error
}

// Option configures a Client.
type Option func(*Client)

// WithDialer replaces the WebSocket dialer.
func WithDialer(d Dialer) Option { return func(c *Client) { c.dialer = d } }

// WithTimeProvider replaces the clock used to schedule reconnects.
func WithTimeProvider(tp timeutil.Provider) Option { return func(c *Client) { c.timeProvider = tp } }

// WithMetrics sets the metrics sink.
func WithMetrics(m metrics.StreamMetrics) Option { return func(c *Client) { c.metrics = m } }

// WithTokenSource sets the bearer credential sent during the handshake.
func WithTokenSource(ts monitoring.TokenSource) Option { return func(c *Client) { c.tokens = ts } }

// WithReconnectDelay sets the fixed reconnect delay.
func WithReconnectDelay(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.backoff = backoff.NewConstantBackOff(d)
		}
	}
}

// WithHandshakeTimeout bounds each dial.
func WithHandshakeTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.handshakeTimeout = d
		}
	}
}

// Client owns the connection to the event feed.
//
// State machine: Disconnected -> Connecting -> Connected -> (Disconnected |
// Connecting). A connection only counts as Connected once its initial_data
// frame has been applied. While the client is active, every drop into
// Disconnected schedules exactly one reconnect after a fixed delay. Pause
// tears the transport down and suppresses reconnects until Resume.
//
// Each connection has a generation number. Callbacks belonging to an older
// generation (a dial finishing after Pause, a timer firing after Resume) see
// the mismatch and do nothing, so at most one transport is ever live.
type Client struct {
	endpoint         string
	dispatcher       FrameDispatcher
	dialer           Dialer
	tokens           monitoring.TokenSource
	backoff          *backoff.ConstantBackOff
	handshakeTimeout time.Duration
	timeProvider     timeutil.Provider

	mu        sync.Mutex
	state     monitoring.ConnectionState
	started   bool
	stopped   bool
	active    bool
	gen       uint64
	baseCtx   context.Context
	cancel    context.CancelFunc
	conn      Conn
	timer     timeutil.Timer
	listeners []func(monitoring.ConnectionState)
	pending   []monitoring.ConnectionState
	done      chan struct{}

	// notifyMu serializes listener delivery in transition order.
	notifyMu sync.Mutex
	wg       sync.WaitGroup

	// watch tracks the Start context watcher, which exits on Stop.
	watch sync.WaitGroup

	logger  *logger.Logger
	metrics metrics.StreamMetrics
	tracer  trace.Tracer
}

// NewClient creates a Client for the event feed at endpoint. Frames are
// handed to dispatcher one at a time, in arrival order.
func NewClient(
	endpoint string,
	dispatcher FrameDispatcher,
	log *logger.Logger,
	tracer trace.Tracer,
	opts ...Option,
) *Client {
	c := &Client{
		endpoint:         endpoint,
		dispatcher:       dispatcher,
		dialer:           &WebSocketDialer{},
		backoff:          backoff.NewConstantBackOff(DefaultReconnectDelay),
		handshakeTimeout: DefaultHandshakeTimeout,
		timeProvider:     timeutil.Default(),
		state:            monitoring.StateDisconnected,
		done:             make(chan struct{}),
		logger:           log.With("component", "stream_client", "endpoint", endpoint),
		metrics:          noopMetrics{},
		tracer:           tracer,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.metrics.SetState(c.state.String())
	return c
}

// OnStateChange registers fn for state transitions. Listeners run in
// transition order and must not call back into the Client.
func (c *Client) OnStateChange(fn func(monitoring.ConnectionState)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, fn)
}

// State returns the current connection state.
func (c *Client) State() monitoring.ConnectionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Active reports whether the client reconnects on its own (not paused).
func (c *Client) Active() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

// Start switches the client to active mode and begins connecting. Cancelling
// ctx has the same effect as Stop.
func (c *Client) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return ErrStopped
	}
	if c.started {
		c.mu.Unlock()
		return ErrAlreadyStarted
	}
	c.started = true
	c.active = true
	c.baseCtx = context.WithoutCancel(ctx)
	c.connectLocked()
	c.unlockAndNotify()

	c.logger.Info(ctx, "stream client started")

	c.watch.Add(1)
	go func() {
		defer c.watch.Done()
		select {
		case <-ctx.Done():
			c.Stop()
		case <-c.done:
		}
	}()
	return nil
}

// Stop tears down the transport, cancels any scheduled reconnect and waits
// for the connection goroutine to exit. The client cannot be restarted.
func (c *Client) Stop() {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		c.wg.Wait()
		return
	}
	c.stopped = true
	c.active = false
	close(c.done)
	c.teardownLocked()
	c.setStateLocked(monitoring.StateDisconnected)
	c.unlockAndNotify()

	c.wg.Wait()
	c.logger.Info(context.Background(), "stream client stopped")
}

// Pause switches the client to inactive mode: any in-flight dial is aborted,
// the transport is closed, and no reconnect happens until Resume.
func (c *Client) Pause() {
	c.mu.Lock()
	if !c.started || c.stopped || !c.active {
		c.mu.Unlock()
		return
	}
	c.active = false
	c.teardownLocked()
	c.setStateLocked(monitoring.StateDisconnected)
	c.unlockAndNotify()

	c.logger.Info(context.Background(), "stream paused")
}

// Resume switches the client back to active mode and starts connecting
// immediately.
func (c *Client) Resume() {
	c.mu.Lock()
	if !c.started || c.stopped || c.active {
		c.mu.Unlock()
		return
	}
	c.active = true
	c.connectLocked()
	c.unlockAndNotify()

	c.logger.Info(context.Background(), "stream resumed")
}

// connectLocked starts a new connection generation. It does nothing unless the
// client is active and Disconnected, which keeps attempts from overlapping.
func (c *Client) connectLocked() {
	if !c.active || c.state != monitoring.StateDisconnected {
		return
	}
	c.stopTimerLocked()

	c.gen++
	gen := c.gen
	ctx, cancel := context.WithCancel(c.baseCtx)
	c.cancel = cancel
	c.setStateLocked(monitoring.StateConnecting)

	c.wg.Add(1)
	go c.run(ctx, gen)
}

// teardownLocked invalidates the current generation and releases everything
// tied to it.
func (c *Client) teardownLocked() {
	c.gen++
	c.stopTimerLocked()
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
}

func (c *Client) stopTimerLocked() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}

func (c *Client) setStateLocked(s monitoring.ConnectionState) {
	if c.state == s {
		return
	}
	c.state = s
	c.pending = append(c.pending, s)
	c.metrics.SetState(s.String())
}

// unlockAndNotify releases c.mu and delivers queued transitions. notifyMu is
// taken before c.mu is released so deliveries keep transition order.
func (c *Client) unlockAndNotify() {
	pending := c.pending
	c.pending = nil
	listeners := c.listeners
	if len(pending) == 0 || len(listeners) == 0 {
		c.mu.Unlock()
		return
	}

	c.notifyMu.Lock()
	c.mu.Unlock()
	defer c.notifyMu.Unlock()

	for _, s := range pending {
		for _, fn := range listeners {
			fn(s)
		}
	}
}

// run drives one connection generation from dial to disconnect.
func (c *Client) run(ctx context.Context, gen uint64) {
	defer c.wg.Done()

	conn, err := c.dial(ctx, gen)
	if err != nil {
		c.connectionLost(ctx, gen, "dial_error", err)
		return
	}
	if !c.attach(gen, conn) {
		_ = conn.Close()
		return
	}

	c.receive(ctx, gen, conn)
}

func (c *Client) dial(ctx context.Context, gen uint64) (Conn, error) {
	ctx, span := c.tracer.Start(ctx, "stream.dial",
		trace.WithAttributes(
			attribute.String("endpoint", c.endpoint),
			attribute.Int64("generation", int64(gen)),
		))
	defer span.End()

	c.metrics.IncConnectAttempts()

	header := http.Header{}
	if c.tokens != nil {
		token, err := c.tokens.Token(ctx)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "token unavailable")
			return nil, fmt.Errorf("failed to obtain bearer token: %w", err)
		}
		if token != "" {
			header.Set("Authorization", "Bearer "+token)
		}
	}

	dialCtx, cancel := context.WithTimeout(ctx, c.handshakeTimeout)
	defer cancel()

	conn, err := c.dialer.Dial(dialCtx, c.endpoint, header)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "dial failed")
		return nil, err
	}
	span.SetStatus(codes.Ok, "transport open")
	return conn, nil
}

// attach records conn as the live transport if gen is still current.
func (c *Client) attach(gen uint64, conn Conn) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen {
		return false
	}
	c.conn = conn
	return true
}

func (c *Client) current(gen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return gen == c.gen
}

// receive reads and applies frames until the transport fails or the
// generation is superseded.
func (c *Client) receive(ctx context.Context, gen uint64, conn Conn) {
	c.logger.Debug(ctx, "transport open, awaiting initial data", "generation", gen)

	var seq uint64
	for {
		data, err := conn.ReadMessage()
		if err != nil {
			c.connectionLost(ctx, gen, "read_error", err)
			return
		}
		if !c.current(gen) {
			return
		}
		seq++
		c.handleFrame(ctx, gen, seq, data)
	}
}

func (c *Client) handleFrame(ctx context.Context, gen, seq uint64, data []byte) {
	log := logger.NewLoggerContext(c.logger)
	log.Add("generation", gen, "seq", seq)

	var frame monitoring.Frame
	if err := json.Unmarshal(data, &frame); err != nil || frame.Type == "" {
		if err == nil {
			err = errors.New("frame has no type")
		}
		c.metrics.IncFrameErrors("decode")
		log.Warn(ctx, "dropping undecodable frame", "error", err)
		return
	}
	log.Add("type", frame.Type)
	c.metrics.IncFramesReceived(frame.Type.String())

	err := c.metrics.TrackFrame(func() error { return c.dispatcher.Dispatch(ctx, frame) })

	var notFound *eventdispatcher.HandlerNotFoundError
	switch {
	case err == nil:
	case errors.As(err, &notFound):
		c.metrics.IncFrameErrors("unknown_type")
		log.Debug(ctx, "ignoring frame of unknown type")
		return
	case errors.Is(err, monitoring.ErrMalformedPayload):
		c.metrics.IncFrameErrors("decode")
		log.Warn(ctx, "dropping malformed frame", "error", err)
		return
	case errors.Is(err, monitoring.ErrMissingIdentity):
		c.metrics.IncFrameErrors("merge")
		log.Warn(ctx, "dropping update without identity")
		return
	default:
		c.metrics.IncFrameErrors("handler")
		log.Error(ctx, "frame handler failed", "error", err)
		return
	}

	if frame.Type == monitoring.MessageTypeInitialData {
		c.markConnected(ctx, gen)
	}
}

// markConnected completes the handshake for gen once its snapshot is applied.
func (c *Client) markConnected(ctx context.Context, gen uint64) {
	c.mu.Lock()
	if gen != c.gen || c.state != monitoring.StateConnecting {
		c.mu.Unlock()
		return
	}
	c.setStateLocked(monitoring.StateConnected)
	c.backoff.Reset()
	c.metrics.IncConnects()
	c.unlockAndNotify()

	c.logger.Info(ctx, "stream connected", "generation", gen)
}

// connectionLost moves gen to Disconnected and, while active, schedules the
// next attempt. Stale generations are ignored.
func (c *Client) connectionLost(ctx context.Context, gen uint64, reason string, err error) {
	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		return
	}
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
	c.setStateLocked(monitoring.StateDisconnected)
	c.metrics.IncDisconnects(reason)

	var delay time.Duration
	if c.active {
		delay = c.backoff.NextBackOff()
		c.timer = c.timeProvider.AfterFunc(delay, func() { c.reconnect(gen) })
	}
	active := c.active
	c.unlockAndNotify()

	c.logger.Warn(ctx, "stream disconnected",
		"generation", gen,
		"reason", reason,
		"error", err,
		"reconnecting", active,
		"delay", delay,
	)
}

// reconnect is the timer callback scheduled by connectionLost for gen.
func (c *Client) reconnect(gen uint64) {
	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		return
	}
	c.timer = nil
	c.connectLocked()
	c.unlockAndNotify()
}
