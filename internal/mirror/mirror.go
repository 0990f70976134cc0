package mirror

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"

	"smartgate_go/internal/events"
	"smartgate_go/internal/push"
)

const (
	connectTimeout  = 5 * time.Second
	publishTimeout  = 2 * time.Second
	disconnectQuiet = 250 * time.Millisecond
	queueSize       = 256
)

var (
	ErrNotConnected = errors.New("mqtt mirror not connected")
	ErrQueueFull    = errors.New("mqtt mirror queue full")
	ErrClosed       = errors.New("mqtt mirror closed")
)

type Options struct {
	Broker   string
	ClientID string
	Prefix   string
	Device   string
}

type outgoing struct {
	topic    string
	retained bool
	payload  []byte
}

// Mirror republishes dispatched device events to an MQTT broker so other
// tools can follow the gate without holding a second push connection.
// Publishing is queued; one goroutine talks to the broker.
type Mirror struct {
	client  pahomqtt.Client
	prefix  string
	device  string
	log     zerolog.Logger
	publish func(topic string, retained bool, payload []byte) error
	now     func() time.Time

	mu     sync.Mutex
	closed bool
	queue  chan outgoing
	stop   chan struct{}
	wg     sync.WaitGroup
}

func newMirror(prefix, device string, logger zerolog.Logger) *Mirror {
	return &Mirror{
		prefix: TopicSegment(prefix),
		device: TopicSegment(device),
		log:    logger,
		now:    time.Now,
		queue:  make(chan outgoing, queueSize),
		stop:   make(chan struct{}),
	}
}

func (m *Mirror) start() {
	m.wg.Add(1)
	go m.run()
}

func (m *Mirror) run() {
	defer m.wg.Done()
	for {
		select {
		case <-m.stop:
			return
		case out := <-m.queue:
			if err := m.publish(out.topic, out.retained, out.payload); err != nil {
				m.log.Debug().Err(err).Str("topic", out.topic).Msg("mqtt publish failed")
			}
		}
	}
}

// enqueue never blocks; a full queue drops the message.
func (m *Mirror) enqueue(topic string, retained bool, payload []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	select {
	case m.queue <- outgoing{topic: topic, retained: retained, payload: payload}:
		return nil
	default:
		return fmt.Errorf("publish %s: %w", topic, ErrQueueFull)
	}
}

// Connect starts the broker session in the background. The broker may be
// down at startup; paho keeps retrying and events are dropped until it is up.
func Connect(opts Options, logger zerolog.Logger) (*Mirror, error) {
	broker := strings.TrimSpace(opts.Broker)
	if broker == "" {
		return nil, fmt.Errorf("mqtt broker is empty")
	}
	if !strings.Contains(broker, "://") {
		broker = "tcp://" + broker
	}

	m := newMirror(opts.Prefix, opts.Device, logger)

	clientOpts := pahomqtt.NewClientOptions()
	clientOpts.AddBroker(broker)
	clientOpts.SetClientID(opts.ClientID)
	clientOpts.SetCleanSession(true)
	clientOpts.SetAutoReconnect(true)
	clientOpts.SetConnectRetry(true)
	clientOpts.SetConnectTimeout(connectTimeout)
	clientOpts.SetMaxReconnectInterval(time.Minute)
	clientOpts.SetWill(m.statusTopic(), "offline", 1, true)
	clientOpts.SetOnConnectHandler(func(c pahomqtt.Client) {
		logger.Info().Str("broker", broker).Msg("mqtt mirror connected")
		c.Publish(m.statusTopic(), 1, true, "online")
	})
	clientOpts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
		logger.Warn().Err(err).Str("broker", broker).Msg("mqtt mirror lost")
	})

	m.client = pahomqtt.NewClient(clientOpts)
	m.client.Connect()
	m.publish = m.publishPaho
	m.start()
	return m, nil
}

func (m *Mirror) publishPaho(topic string, retained bool, payload []byte) error {
	if !m.client.IsConnectionOpen() {
		return ErrNotConnected
	}
	token := m.client.Publish(topic, 0, retained, payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("publish %s: timeout after %v", topic, publishTimeout)
	}
	return token.Error()
}

func (m *Mirror) statusTopic() string {
	return m.prefix + "/" + m.device + "/panel"
}

// EventTopic is <prefix>/<device>/event/<kind>.
func (m *Mirror) EventTopic(kind events.Kind) string {
	return m.prefix + "/" + m.device + "/event/" + TopicSegment(string(kind))
}

// LinkTopic carries the retained push channel state.
func (m *Mirror) LinkTopic() string {
	return m.prefix + "/" + m.device + "/link"
}

type eventMessage struct {
	Event events.Kind `json:"event"`
	Data  any         `json:"data"`
	At    string      `json:"at"`
}

func (m *Mirror) PublishEvent(ev events.Event) error {
	data, err := events.Payload(ev)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(eventMessage{
		Event: ev.Kind(),
		Data:  data,
		At:    m.now().UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return fmt.Errorf("encode mirror payload: %w", err)
	}
	return m.enqueue(m.EventTopic(ev.Kind()), false, payload)
}

func (m *Mirror) PublishLink(st push.State) error {
	return m.enqueue(m.LinkTopic(), true, []byte(st.String()))
}

// Close stops the publisher, drops whatever is still queued, marks the
// panel offline and disconnects.
func (m *Mirror) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	close(m.stop)
	m.mu.Unlock()
	m.wg.Wait()

	if m.client == nil {
		return
	}
	if m.client.IsConnectionOpen() {
		token := m.client.Publish(m.statusTopic(), 1, true, "offline")
		token.WaitTimeout(publishTimeout)
	}
	m.client.Disconnect(uint(disconnectQuiet.Milliseconds()))
}

// TopicSegment makes s safe as a single MQTT topic level.
func TopicSegment(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return "unknown"
	}
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '+', '#', '.', ' ', ':':
			return '-'
		}
		return r
	}, s)
}
