package events

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Kind is the push event name.
type Kind string

const (
	KindLog         Kind = "log"
	KindKeyReceived Kind = "key_received"
	KindKeyAdded    Kind = "key_added"
	KindWifiStatus  Kind = "wifi_status"
	KindPhoneCount  Kind = "phone_count"
	KindKeyCount    Kind = "key_count"
)

type Severity string

const (
	SeverityInfo    Severity = "info"
	SeveritySuccess Severity = "success"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// ParseSeverity maps unknown or empty values to info.
func ParseSeverity(s string) Severity {
	switch Severity(strings.ToLower(strings.TrimSpace(s))) {
	case SeveritySuccess:
		return SeveritySuccess
	case SeverityWarning:
		return SeverityWarning
	case SeverityError:
		return SeverityError
	default:
		return SeverityInfo
	}
}

type WifiStatus string

const (
	WifiConnected    WifiStatus = "connected"
	WifiConnecting   WifiStatus = "connecting"
	WifiDisconnected WifiStatus = "disconnected"
)

// Event is one decoded push message. The set of implementations is closed.
type Event interface {
	Kind() Kind
	isEvent()
}

type LogEvent struct {
	Timestamp int64
	Message   string
	Severity  Severity
}

type KeyReceivedEvent struct {
	Code      uint64
	BitLength int
	Protocol  int
	Timestamp int64
}

type KeyAddedEvent struct {
	Name string
	Code uint64
}

type WifiStatusEvent struct {
	Status WifiStatus
	SSID   string
	RSSI   int
	IP     string
}

// Stamp on count events is the device uptime in ms when the count was
// taken, 0 when absent.
type PhoneCountEvent struct {
	Count int
	Stamp int64
}

type KeyCountEvent struct {
	Count int
	Stamp int64
}

func (LogEvent) Kind() Kind         { return KindLog }
func (KeyReceivedEvent) Kind() Kind { return KindKeyReceived }
func (KeyAddedEvent) Kind() Kind    { return KindKeyAdded }
func (WifiStatusEvent) Kind() Kind  { return KindWifiStatus }
func (PhoneCountEvent) Kind() Kind  { return KindPhoneCount }
func (KeyCountEvent) Kind() Kind    { return KindKeyCount }

func (LogEvent) isEvent()         {}
func (KeyReceivedEvent) isEvent() {}
func (KeyAddedEvent) isEvent()    {}
func (WifiStatusEvent) isEvent()  {}
func (PhoneCountEvent) isEvent()  {}
func (KeyCountEvent) isEvent()    {}

// MalformedEventError means the frame or its payload could not be decoded.
type MalformedEventError struct {
	Kind string
	Raw  string
	Err  error
}

func (e *MalformedEventError) Error() string {
	if e.Kind == "" {
		return fmt.Sprintf("malformed push frame %q: %v", e.Raw, e.Err)
	}
	return fmt.Sprintf("malformed %s payload %q: %v", e.Kind, e.Raw, e.Err)
}

func (e *MalformedEventError) Unwrap() error {
	return e.Err
}

// UnknownEventError means the envelope was valid but the kind is not handled.
type UnknownEventError struct {
	Kind string
}

func (e *UnknownEventError) Error() string {
	return fmt.Sprintf("unknown push event %q", e.Kind)
}

type envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type logPayload struct {
	Timestamp int64   `json:"timestamp"`
	Message   *string `json:"message"`
	Type      string  `json:"type"`
}

type keyReceivedPayload struct {
	Key       *uint64 `json:"key"`
	BitLength int     `json:"bitLength"`
	Protocol  int     `json:"protocol"`
	Timestamp int64   `json:"timestamp"`
}

type keyAddedPayload struct {
	Name string `json:"name"`
	Code uint64 `json:"code"`
}

type wifiPayload struct {
	Status *string `json:"status"`
	SSID   string  `json:"ssid"`
	RSSI   int     `json:"rssi"`
	IP     string  `json:"ip"`
}

type countPayload struct {
	Count *int  `json:"count"`
	TS    int64 `json:"ts"`
}

// Decode parses one {event, data} frame.
func Decode(raw []byte) (Event, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, &MalformedEventError{Raw: clip(raw), Err: err}
	}
	kind := strings.TrimSpace(env.Event)
	if kind == "" {
		return nil, &MalformedEventError{Raw: clip(raw), Err: fmt.Errorf("missing event name")}
	}

	malformed := func(err error) error {
		return &MalformedEventError{Kind: kind, Raw: clip(env.Data), Err: err}
	}
	decodeData := func(dst any) error {
		data := bytes.TrimSpace(env.Data)
		if len(data) == 0 || bytes.Equal(data, []byte("null")) {
			return fmt.Errorf("missing data")
		}
		return json.Unmarshal(data, dst)
	}

	switch Kind(kind) {
	case KindLog:
		var p logPayload
		if err := decodeData(&p); err != nil {
			return nil, malformed(err)
		}
		if p.Message == nil {
			return nil, malformed(fmt.Errorf("missing message"))
		}
		return LogEvent{Timestamp: p.Timestamp, Message: *p.Message, Severity: ParseSeverity(p.Type)}, nil

	case KindKeyReceived:
		var p keyReceivedPayload
		if err := decodeData(&p); err != nil {
			return nil, malformed(err)
		}
		if p.Key == nil {
			return nil, malformed(fmt.Errorf("missing key"))
		}
		return KeyReceivedEvent{Code: *p.Key, BitLength: p.BitLength, Protocol: p.Protocol, Timestamp: p.Timestamp}, nil

	case KindKeyAdded:
		var p keyAddedPayload
		if err := decodeData(&p); err != nil {
			return nil, malformed(err)
		}
		return KeyAddedEvent{Name: strings.TrimSpace(p.Name), Code: p.Code}, nil

	case KindWifiStatus:
		var p wifiPayload
		if err := decodeData(&p); err != nil {
			return nil, malformed(err)
		}
		if p.Status == nil {
			return nil, malformed(fmt.Errorf("missing status"))
		}
		return WifiStatusEvent{
			Status: WifiStatus(strings.ToLower(strings.TrimSpace(*p.Status))),
			SSID:   p.SSID,
			RSSI:   p.RSSI,
			IP:     p.IP,
		}, nil

	case KindPhoneCount, KindKeyCount:
		var p countPayload
		if err := decodeData(&p); err != nil {
			return nil, malformed(err)
		}
		if p.Count == nil {
			return nil, malformed(fmt.Errorf("missing count"))
		}
		if *p.Count < 0 {
			return nil, malformed(fmt.Errorf("negative count %d", *p.Count))
		}
		if Kind(kind) == KindPhoneCount {
			return PhoneCountEvent{Count: *p.Count, Stamp: p.TS}, nil
		}
		return KeyCountEvent{Count: *p.Count, Stamp: p.TS}, nil
	}
	return nil, &UnknownEventError{Kind: kind}
}

func clip(raw []byte) string {
	s := strings.TrimSpace(string(raw))
	if len(s) > 160 {
		return s[:160] + "..."
	}
	return s
}
