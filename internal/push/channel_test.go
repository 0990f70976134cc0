package push

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

type fakeConn struct {
	frames chan []byte
	closed chan struct{}
	once   sync.Once
}

func newFakeConn(frames ...string) *fakeConn {
	c := &fakeConn{frames: make(chan []byte, len(frames)+1), closed: make(chan struct{})}
	for _, f := range frames {
		c.frames <- []byte(f)
	}
	return c
}

func (c *fakeConn) ReadMessage() (int, []byte, error) {
	select {
	case data, ok := <-c.frames:
		if !ok {
			return 0, nil, io.EOF
		}
		return websocket.TextMessage, data, nil
	case <-c.closed:
		return 0, nil, net.ErrClosed
	}
}

func (c *fakeConn) SetReadDeadline(time.Time) error           { return nil }
func (c *fakeConn) SetPingHandler(func(string) error)         {}
func (c *fakeConn) WriteControl(int, []byte, time.Time) error { return nil }

func (c *fakeConn) Close() error {
	c.once.Do(func() { close(c.closed) })
	return nil
}

// hangup ends the read side as if the device rebooted.
func (c *fakeConn) hangup() {
	close(c.frames)
}

// silentConn never delivers a frame; reads fail once the read deadline
// passes.
type silentConn struct {
	mu       sync.Mutex
	deadline time.Time
	ping     func(string) error
	pongs    int
	closed   chan struct{}
	once     sync.Once
}

func newSilentConn() *silentConn {
	return &silentConn{closed: make(chan struct{})}
}

func (c *silentConn) ReadMessage() (int, []byte, error) {
	for {
		select {
		case <-c.closed:
			return 0, nil, net.ErrClosed
		case <-time.After(5 * time.Millisecond):
		}
		c.mu.Lock()
		expired := !c.deadline.IsZero() && time.Now().After(c.deadline)
		c.mu.Unlock()
		if expired {
			return 0, nil, os.ErrDeadlineExceeded
		}
	}
}

func (c *silentConn) SetReadDeadline(t time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.deadline = t
	return nil
}

func (c *silentConn) SetPingHandler(h func(string) error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ping = h
}

func (c *silentConn) WriteControl(mt int, _ []byte, _ time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if mt == websocket.PongMessage {
		c.pongs++
	}
	return nil
}

func (c *silentConn) Close() error {
	c.once.Do(func() { close(c.closed) })
	return nil
}

func (c *silentConn) state() (time.Time, func(string) error, int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.deadline, c.ping, c.pongs
}

type fakeDialer struct {
	mu    sync.Mutex
	conns []Conn
	dials int
}

func (d *fakeDialer) Dial(ctx context.Context, url string) (Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dials++
	if len(d.conns) == 0 {
		return nil, errors.New("connection refused")
	}
	conn := d.conns[0]
	d.conns = d.conns[1:]
	return conn, nil
}

func (d *fakeDialer) dialCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dials
}

func next(t *testing.T, ch *Channel) Message {
	t.Helper()
	select {
	case msg, ok := <-ch.Messages():
		if !ok {
			t.Fatalf("messages channel closed")
		}
		return msg
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for message")
	}
	return Message{}
}

func expectState(t *testing.T, ch *Channel, kind Kind, state State) Message {
	t.Helper()
	msg := next(t, ch)
	if msg.Kind != kind || msg.State != state {
		t.Fatalf("expected kind=%d state=%s, got kind=%d state=%s", kind, state, msg.Kind, msg.State)
	}
	return msg
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestFailedDialSchedulesOneReconnect(t *testing.T) {
	dialer := &fakeDialer{}
	sched := NewManualScheduler()
	ch := NewChannel("ws://gate:81/", WithDialer(dialer), WithScheduler(sched))
	defer ch.Close()

	if err := ch.Connect(); err != nil {
		t.Fatalf("connect: %v", err)
	}
	expectState(t, ch, KindState, Connecting)
	msg := expectState(t, ch, KindState, Disconnected)
	if msg.Err == nil {
		t.Fatalf("expected dial error on disconnect")
	}
	waitFor(t, "reconnect timer", func() bool { return sched.Pending() == 1 })
	if got := sched.LastDelay(); got != 3*time.Second {
		t.Fatalf("expected 3s backoff, got %s", got)
	}

	if !sched.Fire() {
		t.Fatalf("expected a pending task")
	}
	expectState(t, ch, KindReconnecting, Connecting)
	expectState(t, ch, KindState, Connecting)
	expectState(t, ch, KindState, Disconnected)
	waitFor(t, "second reconnect timer", func() bool { return sched.Pending() == 1 })
	if sched.Scheduled() != 2 {
		t.Fatalf("expected two timers over two failures, got %d", sched.Scheduled())
	}
	if dialer.dialCount() != 2 {
		t.Fatalf("expected 2 dials, got %d", dialer.dialCount())
	}
}

func TestConnectCancelsPendingTimer(t *testing.T) {
	dialer := &fakeDialer{}
	sched := NewManualScheduler()
	ch := NewChannel("ws://gate:81/", WithDialer(dialer), WithScheduler(sched))
	defer ch.Close()

	_ = ch.Connect()
	expectState(t, ch, KindState, Connecting)
	expectState(t, ch, KindState, Disconnected)
	waitFor(t, "reconnect timer", func() bool { return sched.Pending() == 1 })

	_ = ch.Connect()
	expectState(t, ch, KindState, Connecting)
	expectState(t, ch, KindState, Disconnected)
	waitFor(t, "new reconnect timer", func() bool { return sched.Scheduled() == 2 })
	if sched.Pending() != 1 {
		t.Fatalf("connect must cancel the old timer, pending=%d", sched.Pending())
	}
}

func TestFramesKeepOrderWithStateChanges(t *testing.T) {
	conn := newFakeConn(`{"event":"log"}`, `{"event":"key_count"}`)
	dialer := &fakeDialer{conns: []Conn{conn}}
	sched := NewManualScheduler()
	ch := NewChannel("ws://gate:81/", WithDialer(dialer), WithScheduler(sched))
	defer ch.Close()

	_ = ch.Connect()
	expectState(t, ch, KindState, Connecting)
	expectState(t, ch, KindState, Connected)
	if msg := next(t, ch); msg.Kind != KindFrame || string(msg.Data) != `{"event":"log"}` {
		t.Fatalf("unexpected first frame: %+v", msg)
	}
	if msg := next(t, ch); msg.Kind != KindFrame || string(msg.Data) != `{"event":"key_count"}` {
		t.Fatalf("unexpected second frame: %+v", msg)
	}
	conn.hangup()
	expectState(t, ch, KindState, Disconnected)
	waitFor(t, "reconnect timer", func() bool { return sched.Pending() == 1 })
	if ch.State() != Disconnected {
		t.Fatalf("expected disconnected, got %s", ch.State())
	}
}

func TestCloseCancelsTimerAndStopsDelivery(t *testing.T) {
	dialer := &fakeDialer{}
	sched := NewManualScheduler()
	ch := NewChannel("ws://gate:81/", WithDialer(dialer), WithScheduler(sched))

	_ = ch.Connect()
	expectState(t, ch, KindState, Connecting)
	expectState(t, ch, KindState, Disconnected)
	waitFor(t, "reconnect timer", func() bool { return sched.Pending() == 1 })

	if err := ch.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if sched.Pending() != 0 {
		t.Fatalf("close must cancel the reconnect timer")
	}
	if sched.Fire() {
		t.Fatalf("canceled timer must not fire")
	}
	if _, ok := <-ch.Messages(); ok {
		t.Fatalf("expected closed messages channel")
	}
	if err := ch.Connect(); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}

func TestCloseWhileConnectedEmitsNothingMore(t *testing.T) {
	conn := newFakeConn()
	dialer := &fakeDialer{conns: []Conn{conn}}
	sched := NewManualScheduler()
	ch := NewChannel("ws://gate:81/", WithDialer(dialer), WithScheduler(sched))

	_ = ch.Connect()
	expectState(t, ch, KindState, Connecting)
	expectState(t, ch, KindState, Connected)

	_ = ch.Close()
	for msg := range ch.Messages() {
		t.Fatalf("unexpected message after close: %+v", msg)
	}
	if sched.Scheduled() != 0 {
		t.Fatalf("close must not schedule a reconnect, got %d", sched.Scheduled())
	}
}

func TestWebsocketRoundTrip(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"event":"phone_count","data":{"count":2}}`))
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"))
	}))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/"
	sched := NewManualScheduler()
	ch := NewChannel(url, WithScheduler(sched), WithIdleTimeout(5*time.Second))
	defer ch.Close()

	_ = ch.Connect()
	expectState(t, ch, KindState, Connecting)
	expectState(t, ch, KindState, Connected)
	msg := next(t, ch)
	if msg.Kind != KindFrame || !strings.Contains(string(msg.Data), "phone_count") {
		t.Fatalf("unexpected frame: %+v", msg)
	}
	expectState(t, ch, KindState, Disconnected)
	waitFor(t, "reconnect timer", func() bool { return sched.Pending() == 1 })
}

func TestSilentLinkTimesOutAndArmsOneReconnect(t *testing.T) {
	conn := newSilentConn()
	dialer := &fakeDialer{conns: []Conn{conn}}
	sched := NewManualScheduler()
	ch := NewChannel("ws://gate:81/", WithDialer(dialer), WithScheduler(sched), WithIdleTimeout(300*time.Millisecond))
	defer ch.Close()

	_ = ch.Connect()
	expectState(t, ch, KindState, Connecting)
	expectState(t, ch, KindState, Connected)

	var ping func(string) error
	waitFor(t, "ping handler", func() bool {
		_, ping, _ = conn.state()
		return ping != nil
	})
	before, _, _ := conn.state()
	time.Sleep(20 * time.Millisecond)
	if err := ping("hb"); err != nil {
		t.Fatalf("ping handler: %v", err)
	}
	after, _, pongs := conn.state()
	if pongs != 1 {
		t.Fatalf("expected one pong, got %d", pongs)
	}
	if !after.After(before) {
		t.Fatalf("ping must extend the read deadline, before=%s after=%s", before, after)
	}

	msg := expectState(t, ch, KindState, Disconnected)
	if !errors.Is(msg.Err, os.ErrDeadlineExceeded) {
		t.Fatalf("expected deadline error, got %v", msg.Err)
	}
	waitFor(t, "reconnect timer", func() bool { return sched.Pending() == 1 })
	if sched.Scheduled() != 1 {
		t.Fatalf("expected exactly one reconnect timer, got %d", sched.Scheduled())
	}
}
