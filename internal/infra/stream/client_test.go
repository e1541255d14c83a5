package stream

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/ahrav/taskpulse/internal/domain/monitoring"
	eventdispatcher "github.com/ahrav/taskpulse/internal/infra/event_dispatcher"
	"github.com/ahrav/taskpulse/pkg/common/logger"
	"github.com/ahrav/taskpulse/pkg/common/timeutil"
)

const waitFor = 2 * time.Second
const tick = 5 * time.Millisecond

// fakeConn delivers frames pushed by the test until it is closed or the test
// ends the stream.
type fakeConn struct {
	frames    chan []byte
	closed    chan struct{}
	closeOnce sync.Once
}

func newFakeConn() *fakeConn {
	return &fakeConn{frames: make(chan []byte, 16), closed: make(chan struct{})}
}

func (c *fakeConn) ReadMessage() ([]byte, error) {
	select {
	case f, ok := <-c.frames:
		if !ok {
			return nil, io.EOF
		}
		return f, nil
	case <-c.closed:
		return nil, errors.New("use of closed connection")
	}
}

func (c *fakeConn) Close() error {
	c.closeOnce.Do(func() { close(c.closed) })
	return nil
}

func (c *fakeConn) isClosed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}

func (c *fakeConn) push(t *testing.T, typ monitoring.MessageType, data string) {
	t.Helper()
	b, err := json.Marshal(monitoring.Frame{Type: typ, Data: json.RawMessage(data)})
	require.NoError(t, err)
	c.frames <- b
}

// fakeDialer hands out connections from a queue. With block set, Dial waits
// for its context to end.
type fakeDialer struct {
	mu        sync.Mutex
	conns     []*fakeConn
	errs      []error
	headers   []http.Header
	block     bool
	cancelled chan struct{}
	attempts  atomic.Int32
}

func (d *fakeDialer) Dial(ctx context.Context, _ string, header http.Header) (Conn, error) {
	d.attempts.Add(1)

	d.mu.Lock()
	d.headers = append(d.headers, header)
	block := d.block
	d.mu.Unlock()

	if block {
		<-ctx.Done()
		if d.cancelled != nil {
			close(d.cancelled)
		}
		return nil, ctx.Err()
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.errs) > 0 {
		err := d.errs[0]
		d.errs = d.errs[1:]
		return nil, err
	}
	if len(d.conns) == 0 {
		return nil, errors.New("connection refused")
	}
	c := d.conns[0]
	d.conns = d.conns[1:]
	return c, nil
}

func (d *fakeDialer) setBlock(b bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.block = b
}

// recordingDispatcher records frame types in arrival order.
type recordingDispatcher struct {
	mu     sync.Mutex
	frames []monitoring.Frame
	err    func(monitoring.Frame) error
}

func (r *recordingDispatcher) Dispatch(_ context.Context, f monitoring.Frame) error {
	r.mu.Lock()
	r.frames = append(r.frames, f)
	r.mu.Unlock()
	if r.err != nil {
		return r.err(f)
	}
	return nil
}

func (r *recordingDispatcher) types() []monitoring.MessageType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]monitoring.MessageType, 0, len(r.frames))
	for _, f := range r.frames {
		out = append(out, f.Type)
	}
	return out
}

type staticToken string

func (s staticToken) Token(context.Context) (string, error) { return string(s), nil }

type harness struct {
	client     *Client
	dialer     *fakeDialer
	dispatcher *recordingDispatcher
	clock      *timeutil.Mock
}

func newHarness(t *testing.T, conns ...*fakeConn) *harness {
	t.Helper()
	h := &harness{
		dialer:     &fakeDialer{conns: conns},
		dispatcher: &recordingDispatcher{},
		clock:      timeutil.NewMock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)),
	}
	h.client = NewClient("ws://backend/api/ws", h.dispatcher, logger.Noop(), noop.NewTracerProvider().Tracer(""),
		WithDialer(h.dialer),
		WithTimeProvider(h.clock),
		WithTokenSource(staticToken("secret")),
	)
	t.Cleanup(h.client.Stop)
	return h
}

func (h *harness) waitState(t *testing.T, want monitoring.ConnectionState) {
	t.Helper()
	require.Eventually(t, func() bool { return h.client.State() == want }, waitFor, tick,
		"want state %s, have %s", want, h.client.State())
}

func (h *harness) waitTimer(t *testing.T) {
	t.Helper()
	require.Eventually(t, func() bool { return h.clock.PendingTimers() == 1 }, waitFor, tick)
}

func TestClientConnectsAfterInitialData(t *testing.T) {
	conn := newFakeConn()
	h := newHarness(t, conn)

	require.NoError(t, h.client.Start(context.Background()))
	assert.Equal(t, monitoring.StateConnecting, h.client.State())

	conn.push(t, monitoring.MessageTypeTaskUpdate, `{"id":"early"}`)
	require.Eventually(t, func() bool { return len(h.dispatcher.types()) == 1 }, waitFor, tick)
	assert.Equal(t, monitoring.StateConnecting, h.client.State())

	conn.push(t, monitoring.MessageTypeInitialData, `{}`)
	h.waitState(t, monitoring.StateConnected)

	h.dialer.mu.Lock()
	assert.Equal(t, "Bearer secret", h.dialer.headers[0].Get("Authorization"))
	h.dialer.mu.Unlock()
}

func TestClientDispatchesFramesInOrder(t *testing.T) {
	conn := newFakeConn()
	h := newHarness(t, conn)
	require.NoError(t, h.client.Start(context.Background()))

	sequence := []monitoring.MessageType{
		monitoring.MessageTypeInitialData,
		monitoring.MessageTypeStatsUpdate,
		monitoring.MessageTypeTaskUpdate,
		monitoring.MessageTypeTasksUpdate,
		monitoring.MessageTypeWorkerUpdate,
		monitoring.MessageTypeQueueUpdate,
		monitoring.MessageTypeTaskUpdate,
	}
	for _, typ := range sequence {
		conn.push(t, typ, `{}`)
	}

	require.Eventually(t, func() bool { return len(h.dispatcher.types()) == len(sequence) }, waitFor, tick)
	assert.Equal(t, sequence, h.dispatcher.types())
}

func TestClientDropsBadFramesAndContinues(t *testing.T) {
	conn := newFakeConn()
	h := newHarness(t, conn)
	h.dispatcher.err = func(f monitoring.Frame) error {
		switch f.Type {
		case "heartbeat":
			return &eventdispatcher.HandlerNotFoundError{MessageType: f.Type}
		case monitoring.MessageTypeWorkerUpdate:
			return monitoring.ErrMalformedPayload
		}
		return nil
	}
	require.NoError(t, h.client.Start(context.Background()))

	conn.push(t, monitoring.MessageTypeInitialData, `{}`)
	conn.frames <- []byte(`not json`)
	conn.frames <- []byte(`{"data":{}}`)
	conn.push(t, "heartbeat", `{}`)
	conn.push(t, monitoring.MessageTypeWorkerUpdate, `{}`)
	conn.push(t, monitoring.MessageTypeTaskUpdate, `{"id":"T1"}`)

	require.Eventually(t, func() bool { return len(h.dispatcher.types()) == 4 }, waitFor, tick)
	assert.Equal(t, []monitoring.MessageType{
		monitoring.MessageTypeInitialData,
		"heartbeat",
		monitoring.MessageTypeWorkerUpdate,
		monitoring.MessageTypeTaskUpdate,
	}, h.dispatcher.types())
	assert.Equal(t, monitoring.StateConnected, h.client.State())
}

func TestClientReconnectsAfterFixedDelay(t *testing.T) {
	first, second := newFakeConn(), newFakeConn()
	h := newHarness(t, first, second)
	require.NoError(t, h.client.Start(context.Background()))

	first.push(t, monitoring.MessageTypeInitialData, `{}`)
	h.waitState(t, monitoring.StateConnected)

	close(first.frames)
	h.waitState(t, monitoring.StateDisconnected)
	h.waitTimer(t)

	h.clock.Advance(DefaultReconnectDelay - time.Millisecond)
	assert.Equal(t, monitoring.StateDisconnected, h.client.State())
	assert.EqualValues(t, 1, h.dialer.attempts.Load())

	h.clock.Advance(time.Millisecond)
	require.Eventually(t, func() bool { return h.dialer.attempts.Load() == 2 }, waitFor, tick)
	assert.Equal(t, monitoring.StateConnecting, h.client.State())

	second.push(t, monitoring.MessageTypeInitialData, `{}`)
	h.waitState(t, monitoring.StateConnected)
}

func TestClientDialErrorSchedulesRetry(t *testing.T) {
	conn := newFakeConn()
	h := newHarness(t, conn)
	h.dialer.errs = []error{errors.New("connection refused")}

	require.NoError(t, h.client.Start(context.Background()))
	h.waitState(t, monitoring.StateDisconnected)
	h.waitTimer(t)

	h.clock.Advance(DefaultReconnectDelay)
	conn.push(t, monitoring.MessageTypeInitialData, `{}`)
	h.waitState(t, monitoring.StateConnected)
	assert.EqualValues(t, 2, h.dialer.attempts.Load())
}

func TestClientNoConcurrentAttempts(t *testing.T) {
	h := newHarness(t)
	h.dialer.setBlock(true)
	require.NoError(t, h.client.Start(context.Background()))
	require.Eventually(t, func() bool { return h.dialer.attempts.Load() == 1 }, waitFor, tick)

	// Resume while already active and connecting is a no-op.
	h.client.Resume()
	h.clock.Advance(time.Minute)

	assert.EqualValues(t, 1, h.dialer.attempts.Load())
	assert.Equal(t, monitoring.StateConnecting, h.client.State())
}

func TestClientPauseDuringConnecting(t *testing.T) {
	h := newHarness(t)
	h.dialer.cancelled = make(chan struct{})
	h.dialer.setBlock(true)

	require.NoError(t, h.client.Start(context.Background()))
	require.Eventually(t, func() bool { return h.dialer.attempts.Load() == 1 }, waitFor, tick)

	h.client.Pause()
	assert.Equal(t, monitoring.StateDisconnected, h.client.State())
	assert.False(t, h.client.Active())

	select {
	case <-h.dialer.cancelled:
	case <-time.After(waitFor):
		t.Fatal("dial was not cancelled by Pause")
	}

	h.clock.Advance(time.Minute)
	time.Sleep(20 * time.Millisecond)
	assert.EqualValues(t, 1, h.dialer.attempts.Load())
	assert.Zero(t, h.clock.PendingTimers())
	assert.Equal(t, monitoring.StateDisconnected, h.client.State())

	conn := newFakeConn()
	h.dialer.mu.Lock()
	h.dialer.block = false
	h.dialer.conns = append(h.dialer.conns, conn)
	h.dialer.mu.Unlock()

	h.client.Resume()
	assert.Equal(t, monitoring.StateConnecting, h.client.State())
	conn.push(t, monitoring.MessageTypeInitialData, `{}`)
	h.waitState(t, monitoring.StateConnected)
	assert.EqualValues(t, 2, h.dialer.attempts.Load())
}

func TestClientPauseClosesTransport(t *testing.T) {
	conn := newFakeConn()
	h := newHarness(t, conn)
	require.NoError(t, h.client.Start(context.Background()))
	conn.push(t, monitoring.MessageTypeInitialData, `{}`)
	h.waitState(t, monitoring.StateConnected)

	h.client.Pause()

	assert.True(t, conn.isClosed())
	assert.Equal(t, monitoring.StateDisconnected, h.client.State())
	time.Sleep(20 * time.Millisecond)
	assert.Zero(t, h.clock.PendingTimers())
}

func TestClientPauseCancelsScheduledReconnect(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.client.Start(context.Background()))
	h.waitState(t, monitoring.StateDisconnected)
	h.waitTimer(t)

	h.client.Pause()
	assert.Zero(t, h.clock.PendingTimers())

	h.clock.Advance(time.Minute)
	assert.EqualValues(t, 1, h.dialer.attempts.Load())
}

func TestClientStateListener(t *testing.T) {
	conn := newFakeConn()
	h := newHarness(t, conn)

	var (
		mu     sync.Mutex
		states []monitoring.ConnectionState
	)
	h.client.OnStateChange(func(s monitoring.ConnectionState) {
		mu.Lock()
		states = append(states, s)
		mu.Unlock()
	})

	require.NoError(t, h.client.Start(context.Background()))
	conn.push(t, monitoring.MessageTypeInitialData, `{}`)
	h.waitState(t, monitoring.StateConnected)
	h.client.Pause()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []monitoring.ConnectionState{
		monitoring.StateConnecting,
		monitoring.StateConnected,
		monitoring.StateDisconnected,
	}, states)
}

func TestClientStartTwice(t *testing.T) {
	h := newHarness(t)
	h.dialer.setBlock(true)

	require.NoError(t, h.client.Start(context.Background()))
	assert.ErrorIs(t, h.client.Start(context.Background()), ErrAlreadyStarted)

	h.client.Stop()
	assert.ErrorIs(t, h.client.Start(context.Background()), ErrStopped)
}

func TestClientStopsWithContext(t *testing.T) {
	conn := newFakeConn()
	h := newHarness(t, conn)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, h.client.Start(ctx))
	conn.push(t, monitoring.MessageTypeInitialData, `{}`)
	h.waitState(t, monitoring.StateConnected)

	cancel()
	require.Eventually(t, conn.isClosed, waitFor, tick)
	h.waitState(t, monitoring.StateDisconnected)
	assert.False(t, h.client.Active())
}

func TestClientStopReleasesContextWatcher(t *testing.T) {
	conn := newFakeConn()
	h := newHarness(t, conn)

	require.NoError(t, h.client.Start(context.Background()))
	conn.push(t, monitoring.MessageTypeInitialData, `{}`)
	h.waitState(t, monitoring.StateConnected)

	h.client.Stop()

	exited := make(chan struct{})
	go func() {
		h.client.watch.Wait()
		close(exited)
	}()
	select {
	case <-exited:
	case <-time.After(waitFor):
		t.Fatal("context watcher still running after Stop")
	}
}

// syncBuffer is a bytes.Buffer safe for the client goroutine to log into.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestClientFrameLogsCarrySequenceAndType(t *testing.T) {
	conn := newFakeConn()
	var out syncBuffer
	dispatcher := &recordingDispatcher{err: func(f monitoring.Frame) error {
		if f.Type == monitoring.MessageTypeWorkerUpdate {
			return monitoring.ErrMalformedPayload
		}
		return nil
	}}
	client := NewClient("ws://backend/api/ws", dispatcher,
		logger.New(&out, logger.LevelDebug, "taskpulse", nil),
		noop.NewTracerProvider().Tracer(""),
		WithDialer(&fakeDialer{conns: []*fakeConn{conn}}),
		WithTimeProvider(timeutil.NewMock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))),
	)
	t.Cleanup(client.Stop)

	require.NoError(t, client.Start(context.Background()))
	conn.push(t, monitoring.MessageTypeInitialData, `{}`)
	conn.push(t, monitoring.MessageTypeWorkerUpdate, `{}`)

	const msg = "dropping malformed frame"
	require.Eventually(t, func() bool { return strings.Contains(out.String(), msg) }, waitFor, tick)

	var rec map[string]any
	sc := bufio.NewScanner(strings.NewReader(out.String()))
	for sc.Scan() {
		var line map[string]any
		if json.Unmarshal(sc.Bytes(), &line) == nil && line["msg"] == msg {
			rec = line
			break
		}
	}
	require.NotNil(t, rec)
	assert.EqualValues(t, 2, rec["seq"])
	assert.Equal(t, "worker_update", rec["type"])
	assert.EqualValues(t, 1, rec["generation"])
}
