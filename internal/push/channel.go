package push

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// ErrClosed is returned by Connect after Close.
var ErrClosed = errors.New("push channel closed")

// State is the link state of the push channel.
type State int

const (
	Disconnected State = iota
	Connecting
	Connected
)

func (s State) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	default:
		return "disconnected"
	}
}

// Kind tells what a Message carries.
type Kind int

const (
	KindState Kind = iota
	KindReconnecting
	KindFrame
)

// Message is one item of the ordered channel output. State changes and data
// frames share one stream so their relative order survives delivery.
type Message struct {
	Kind  Kind
	State State
	When  time.Time
	Data  []byte
	Err   error
}

// Conn is the subset of *websocket.Conn the channel uses.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	SetReadDeadline(t time.Time) error
	SetPingHandler(h func(appData string) error)
	WriteControl(messageType int, data []byte, deadline time.Time) error
	Close() error
}

// Dialer opens a Conn to url.
type Dialer interface {
	Dial(ctx context.Context, url string) (Conn, error)
}

// WebsocketDialer dials with gorilla/websocket.
type WebsocketDialer struct {
	Dialer *websocket.Dialer
}

func (d WebsocketDialer) Dial(ctx context.Context, url string) (Conn, error) {
	dialer := d.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	conn, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

type Option func(*Channel)

func WithDialer(d Dialer) Option {
	return func(c *Channel) { c.dialer = d }
}

func WithScheduler(s Scheduler) Option {
	return func(c *Channel) { c.sched = s }
}

func WithBackoff(d time.Duration) Option {
	return func(c *Channel) {
		if d > 0 {
			c.backoff = d
		}
	}
}

// WithIdleTimeout treats a link silent for d as lost. Zero disables it.
func WithIdleTimeout(d time.Duration) Option {
	return func(c *Channel) {
		if d >= 0 {
			c.idle = d
		}
	}
}

func WithDialTimeout(d time.Duration) Option {
	return func(c *Channel) {
		if d > 0 {
			c.dialTimeout = d
		}
	}
}

func WithLogger(l zerolog.Logger) Option {
	return func(c *Channel) { c.log = l }
}

// Channel keeps one receive-only websocket to the device and reconnects on a
// constant interval for as long as it is open.
type Channel struct {
	url         string
	dialer      Dialer
	sched       Scheduler
	backoff     time.Duration
	idle        time.Duration
	dialTimeout time.Duration
	log         zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu          sync.Mutex
	state       State
	epoch       uint64
	conn        Conn
	cancelTimer Cancel
	closed      bool

	out      chan Message
	done     chan struct{}
	emitters sync.WaitGroup
}

func NewChannel(url string, opts ...Option) *Channel {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Channel{
		url:         url,
		dialer:      WebsocketDialer{},
		sched:       RealScheduler{},
		backoff:     3 * time.Second,
		dialTimeout: 5 * time.Second,
		log:         zerolog.Nop(),
		ctx:         ctx,
		cancel:      cancel,
		out:         make(chan Message, 256),
		done:        make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Channel) URL() string {
	return c.url
}

// Messages is closed once Close returns.
func (c *Channel) Messages() <-chan Message {
	return c.out
}

func (c *Channel) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// ReconnectPending reports whether a reconnect timer is armed.
func (c *Channel) ReconnectPending() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cancelTimer != nil
}

// Connect starts a connection attempt unless one is already open or in
// progress. A pending reconnect timer is canceled first.
func (c *Channel) Connect() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.cancelTimer != nil {
		c.cancelTimer()
		c.cancelTimer = nil
	}
	if c.state != Disconnected {
		c.mu.Unlock()
		return nil
	}
	c.epoch++
	epoch := c.epoch
	c.state = Connecting
	c.mu.Unlock()

	go c.run(epoch)
	return nil
}

// Close cancels the reconnect timer, then closes the socket. No message is
// delivered after Close returns.
func (c *Channel) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	if c.cancelTimer != nil {
		c.cancelTimer()
		c.cancelTimer = nil
	}
	conn := c.conn
	c.conn = nil
	c.state = Disconnected
	c.mu.Unlock()

	c.cancel()
	var err error
	if conn != nil {
		err = conn.Close()
	}
	close(c.done)
	c.emitters.Wait()

	for {
		select {
		case <-c.out:
			continue
		default:
		}
		break
	}
	close(c.out)
	return err
}

func (c *Channel) run(epoch uint64) {
	c.emit(Message{Kind: KindState, State: Connecting})

	ctx, cancel := context.WithTimeout(c.ctx, c.dialTimeout)
	conn, err := c.dialer.Dial(ctx, c.url)
	cancel()
	if err != nil {
		c.lost(epoch, fmt.Errorf("dial %s: %w", c.url, err))
		return
	}

	c.mu.Lock()
	if c.closed || c.epoch != epoch {
		c.mu.Unlock()
		_ = conn.Close()
		return
	}
	c.conn = conn
	c.state = Connected
	c.mu.Unlock()

	c.log.Info().Str("url", c.url).Msg("push channel connected")
	c.emit(Message{Kind: KindState, State: Connected})

	err = c.readLoop(conn)
	_ = conn.Close()
	c.lost(epoch, err)
}

func (c *Channel) readLoop(conn Conn) error {
	if c.idle > 0 {
		_ = conn.SetReadDeadline(time.Now().Add(c.idle))
		conn.SetPingHandler(func(data string) error {
			_ = conn.SetReadDeadline(time.Now().Add(c.idle))
			err := conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(time.Second))
			if errors.Is(err, websocket.ErrCloseSent) {
				return nil
			}
			var netErr net.Error
			if errors.As(err, &netErr) {
				return nil
			}
			return err
		})
	}

	for {
		mt, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		if c.idle > 0 {
			_ = conn.SetReadDeadline(time.Now().Add(c.idle))
		}
		if mt != websocket.TextMessage && mt != websocket.BinaryMessage {
			continue
		}
		c.emit(Message{Kind: KindFrame, When: time.Now(), Data: data})
	}
}

// lost reports the closed link and arms exactly one reconnect timer. The
// state stays non-Disconnected until Disconnected has been emitted, so a
// concurrent Connect cannot get ahead of it.
func (c *Channel) lost(epoch uint64, reason error) {
	c.mu.Lock()
	if c.closed || c.epoch != epoch {
		c.mu.Unlock()
		return
	}
	c.conn = nil
	c.mu.Unlock()

	c.log.Warn().Err(reason).Str("url", c.url).Dur("retry_in", c.backoff).Msg("push channel lost")
	c.emit(Message{Kind: KindState, State: Disconnected, Err: reason})

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.epoch != epoch {
		return
	}
	c.state = Disconnected
	if c.cancelTimer == nil {
		c.cancelTimer = c.sched.AfterFunc(c.backoff, func() { c.reconnect(epoch) })
	}
}

func (c *Channel) reconnect(epoch uint64) {
	c.mu.Lock()
	if c.closed || c.epoch != epoch || c.state != Disconnected {
		c.mu.Unlock()
		return
	}
	c.cancelTimer = nil
	c.epoch++
	next := c.epoch
	c.state = Connecting
	c.mu.Unlock()

	c.emit(Message{Kind: KindReconnecting, State: Connecting})
	go c.run(next)
}

func (c *Channel) emit(msg Message) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.emitters.Add(1)
	c.mu.Unlock()
	defer c.emitters.Done()

	if msg.When.IsZero() {
		msg.When = time.Now()
	}
	select {
	case <-c.done:
		return
	default:
	}
	select {
	case c.out <- msg:
	case <-c.done:
	}
}
