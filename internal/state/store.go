package state

import (
	"fmt"
	"time"

	"smartgate_go/internal/events"
	"smartgate_go/internal/push"
)

const (
	LogCapacity       = 100
	RecentKeyCapacity = 10
)

type LogEntry struct {
	At       time.Time
	Message  string
	Severity events.Severity
}

type RecentKey struct {
	Code       uint64
	BitLength  int
	Protocol   int
	Timestamp  int64
	ReceivedAt time.Time
}

// WifiSnapshot is replaced as a whole, never patched field by field.
type WifiSnapshot struct {
	SSID string
	RSSI int
	IP   string
}

// Notice is the transient operator message. Seq lets the UI expire exactly
// the notice it scheduled a timer for.
type Notice struct {
	Seq      uint64
	Text     string
	Severity events.Severity
	At       time.Time
}

// Effect describes what Apply changed beyond the store itself.
type Effect struct {
	Log      *LogEntry
	Key      *RecentKey
	Notice   string
	KeyAdded bool
	KeyName  string
	// Stale is set when a count push was older than the value it would
	// have replaced.
	Stale bool
}

// Recorder receives every appended log entry and recent key.
type Recorder interface {
	RecordLog(LogEntry)
	RecordKey(RecentKey)
}

// counter merges device counts. Stamps are device uptime ms; zero means the
// source did not report one and ordering falls back to arrival order.
type counter struct {
	value int
	stamp int64
	known bool
}

func (c *counter) push(count int, stamp int64) bool {
	if stamp > 0 && c.stamp > 0 && stamp < c.stamp {
		return false
	}
	c.value = count
	c.known = true
	if stamp > 0 {
		c.stamp = stamp
	}
	return true
}

// adjust applies delta unless a push stamped at or after the mutation has
// already reported the resulting count.
func (c *counter) adjust(delta int, stamp int64) bool {
	if stamp > 0 && stamp <= c.stamp {
		return false
	}
	c.value += delta
	if c.value < 0 {
		c.value = 0
	}
	if stamp > c.stamp {
		c.stamp = stamp
	}
	return true
}

func (c *counter) confirm(count int) {
	c.value = count
	c.known = true
}

type Option func(*Store)

func WithRecorder(r Recorder) Option {
	return func(s *Store) { s.recorder = r }
}

func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// Store is the in-memory device view. It is owned by one goroutine and does
// no locking.
type Store struct {
	conn       push.State
	wifiStatus events.WifiStatus
	wifi       *WifiSnapshot
	phones     counter
	keys       counter
	recent     *Ring[RecentKey]
	logs       *Ring[LogEntry]
	notice     Notice
	noticeSeq  uint64
	recorder   Recorder
	now        func() time.Time
}

func NewStore(opts ...Option) *Store {
	s := &Store{
		conn:       push.Disconnected,
		wifiStatus: events.WifiDisconnected,
		recent:     NewRing[RecentKey](RecentKeyCapacity),
		logs:       NewRing[LogEntry](LogCapacity),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) Connection() push.State { return s.conn }

func (s *Store) WifiStatus() events.WifiStatus { return s.wifiStatus }

// Wifi returns the snapshot of the last connected wifi_status.
func (s *Store) Wifi() (WifiSnapshot, bool) {
	if s.wifi == nil {
		return WifiSnapshot{}, false
	}
	return *s.wifi, true
}

// PhoneCount reports false until a count has been received or loaded.
func (s *Store) PhoneCount() (int, bool) { return s.phones.value, s.phones.known }

func (s *Store) KeyCount() (int, bool) { return s.keys.value, s.keys.known }

func (s *Store) Logs() []LogEntry { return s.logs.Items() }

func (s *Store) RecentKeys() []RecentKey { return s.recent.Items() }

func (s *Store) Notice() (Notice, bool) {
	return s.notice, s.notice.Text != ""
}

// Apply reduces one push event. Every kind except the counts appends one
// log entry.
func (s *Store) Apply(ev events.Event) Effect {
	switch e := ev.(type) {
	case events.LogEvent:
		entry := s.AddLog(e.Message, e.Severity)
		return Effect{Log: &entry}

	case events.KeyReceivedEvent:
		key := RecentKey{
			Code:       e.Code,
			BitLength:  e.BitLength,
			Protocol:   e.Protocol,
			Timestamp:  e.Timestamp,
			ReceivedAt: s.now(),
		}
		s.recent.Push(key)
		if s.recorder != nil {
			s.recorder.RecordKey(key)
		}
		notice := fmt.Sprintf("Key received: %d", e.Code)
		s.SetNotice(notice, events.SeverityInfo)
		entry := s.AddLog(fmt.Sprintf("Key received: %d (protocol %d, %d bit)", e.Code, e.Protocol, e.BitLength), events.SeverityInfo)
		return Effect{Log: &entry, Key: &key, Notice: notice}

	case events.KeyAddedEvent:
		s.keys.adjust(1, 0)
		name := e.Name
		if name == "" {
			name = "unnamed"
		}
		notice := "New key added: " + name
		s.SetNotice(notice, events.SeveritySuccess)
		entry := s.AddLog(notice, events.SeveritySuccess)
		return Effect{Log: &entry, Notice: notice, KeyAdded: true, KeyName: e.Name}

	case events.WifiStatusEvent:
		s.wifiStatus = e.Status
		var entry LogEntry
		if e.Status == events.WifiConnected {
			s.wifi = &WifiSnapshot{SSID: e.SSID, RSSI: e.RSSI, IP: e.IP}
			entry = s.AddLog(fmt.Sprintf("WiFi connected: %s (%s, %d dBm)", e.SSID, e.IP, e.RSSI), events.SeveritySuccess)
		} else {
			s.wifi = nil
			severity := events.SeverityWarning
			if e.Status == events.WifiConnecting {
				severity = events.SeverityInfo
			}
			entry = s.AddLog("WiFi "+string(e.Status), severity)
		}
		return Effect{Log: &entry}

	case events.PhoneCountEvent:
		return Effect{Stale: !s.phones.push(e.Count, e.Stamp)}

	case events.KeyCountEvent:
		return Effect{Stale: !s.keys.push(e.Count, e.Stamp)}
	}
	return Effect{}
}

// SetConnection records a push channel state change. Connected and
// Disconnected are logged; Connecting is not.
func (s *Store) SetConnection(st push.State) Effect {
	prev := s.conn
	s.conn = st
	var entry LogEntry
	switch st {
	case push.Connected:
		// A reconnect may follow a device reboot, which restarts the uptime
		// clock behind count stamps.
		s.phones.stamp = 0
		s.keys.stamp = 0
		entry = s.AddLog("Push channel connected", events.SeveritySuccess)
	case push.Disconnected:
		msg := "Push channel disconnected"
		if prev == push.Connecting {
			msg = "Push channel unreachable"
		}
		entry = s.AddLog(msg, events.SeverityError)
	default:
		return Effect{}
	}
	return Effect{Log: &entry}
}

// MarkReconnecting records that the reconnect timer fired.
func (s *Store) MarkReconnecting() Effect {
	s.conn = push.Connecting
	entry := s.AddLog("Reconnecting...", events.SeverityWarning)
	return Effect{Log: &entry}
}

func (s *Store) AddLog(message string, severity events.Severity) LogEntry {
	entry := LogEntry{At: s.now(), Message: message, Severity: severity}
	s.logs.Push(entry)
	if s.recorder != nil {
		s.recorder.RecordLog(entry)
	}
	return entry
}

// ClearLogs empties the local console only.
func (s *Store) ClearLogs() {
	s.logs.Clear()
}

// AdjustKeys applies the count change of a confirmed local mutation. stamp
// is the device stamp from the mutation response, 0 when absent. It reports
// false when a push already carried the change.
func (s *Store) AdjustKeys(delta int, stamp int64) bool {
	return s.keys.adjust(delta, stamp)
}

func (s *Store) AdjustPhones(delta int, stamp int64) bool {
	return s.phones.adjust(delta, stamp)
}

// ConfirmKeys stores a count taken from a full list pull.
func (s *Store) ConfirmKeys(count int) {
	s.keys.confirm(count)
}

func (s *Store) ConfirmPhones(count int) {
	s.phones.confirm(count)
}

func (s *Store) SetNotice(text string, severity events.Severity) Notice {
	s.noticeSeq++
	s.notice = Notice{Seq: s.noticeSeq, Text: text, Severity: severity, At: s.now()}
	return s.notice
}

// ClearNotice clears the notice only if seq still identifies it.
func (s *Store) ClearNotice(seq uint64) bool {
	if s.notice.Seq != seq || s.notice.Text == "" {
		return false
	}
	s.notice = Notice{Seq: seq}
	return true
}

// Restore seeds the rings from persisted history given newest first.
func (s *Store) Restore(logs []LogEntry, keys []RecentKey) {
	for i := len(logs) - 1; i >= 0; i-- {
		s.logs.Push(logs[i])
	}
	for i := len(keys) - 1; i >= 0; i-- {
		s.recent.Push(keys[i])
	}
}
