package mirror

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"smartgate_go/internal/events"
	"smartgate_go/internal/push"
)

type sent struct {
	topic    string
	retained bool
	payload  []byte
}

func newTestMirror(t *testing.T, publish func(sent) error) *Mirror {
	t.Helper()
	m := newMirror("smartgate", "smartgate.local", zerolog.Nop())
	m.now = func() time.Time { return time.Date(2026, 10, 16, 7, 30, 0, 0, time.UTC) }
	m.publish = func(topic string, retained bool, payload []byte) error {
		return publish(sent{topic, retained, payload})
	}
	m.start()
	t.Cleanup(m.Close)
	return m
}

func collect(t *testing.T) (*Mirror, <-chan sent) {
	t.Helper()
	out := make(chan sent, 16)
	m := newTestMirror(t, func(s sent) error {
		out <- s
		return nil
	})
	return m, out
}

func nextSent(t *testing.T, out <-chan sent) sent {
	t.Helper()
	select {
	case s := <-out:
		return s
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for publish")
	}
	return sent{}
}

func TestTopicSegment(t *testing.T) {
	cases := map[string]string{
		"smartgate.local": "smartgate-local",
		"192.168.4.1":     "192-168-4-1",
		"a/b+c#":          "a-b-c-",
		"  ":              "unknown",
	}
	for in, want := range cases {
		if got := TopicSegment(in); got != want {
			t.Fatalf("TopicSegment(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestPublishEventShape(t *testing.T) {
	m, out := collect(t)
	if err := m.PublishEvent(events.KeyReceivedEvent{Code: 42, BitLength: 24, Protocol: 1}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	got := nextSent(t, out)
	if got.topic != "smartgate/smartgate-local/event/key_received" || got.retained {
		t.Fatalf("unexpected publish: %+v", got)
	}
	var msg struct {
		Event string         `json:"event"`
		Data  map[string]any `json:"data"`
		At    string         `json:"at"`
	}
	if err := json.Unmarshal(got.payload, &msg); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if msg.Event != "key_received" || msg.Data["key"] != float64(42) || msg.At != "2026-10-16T07:30:00Z" {
		t.Fatalf("unexpected payload: %s", got.payload)
	}
}

func TestPublishLinkIsRetained(t *testing.T) {
	m, out := collect(t)
	if err := m.PublishLink(push.Connected); err != nil {
		t.Fatalf("publish link: %v", err)
	}
	got := nextSent(t, out)
	if got.topic != "smartgate/smartgate-local/link" || !got.retained || string(got.payload) != "connected" {
		t.Fatalf("unexpected link publish: %+v", got)
	}
}

func TestSlowBrokerDoesNotBlockPublish(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{}, 1)
	m := newTestMirror(t, func(sent) error {
		select {
		case started <- struct{}{}:
		default:
		}
		<-release
		return nil
	})
	defer close(release)

	if err := m.PublishLink(push.Connecting); err != nil {
		t.Fatalf("first publish: %v", err)
	}
	<-started

	begin := time.Now()
	var full error
	for i := 0; i < queueSize+1; i++ {
		if err := m.PublishEvent(events.KeyCountEvent{Count: i}); err != nil {
			full = err
		}
	}
	if elapsed := time.Since(begin); elapsed > 500*time.Millisecond {
		t.Fatalf("publish waited on the broker for %s", elapsed)
	}
	if !errors.Is(full, ErrQueueFull) {
		t.Fatalf("expected overflow to report a full queue, got %v", full)
	}
}

func TestPublishAfterClose(t *testing.T) {
	m, _ := collect(t)
	m.Close()
	if err := m.PublishLink(push.Disconnected); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}
