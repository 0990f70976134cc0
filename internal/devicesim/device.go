package devicesim

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"smartgate_go/internal/device"
	"smartgate_go/internal/events"
)

var (
	errNotFound  = errors.New("not found")
	errDuplicate = errors.New("already exists")
)

// Device is the in-memory gate controller behind the simulator.
type Device struct {
	mu       sync.Mutex
	boot     time.Time
	phones   []device.PhoneRecord
	keys     []device.KeyRecord
	learning bool
	learnEnd time.Time
	learnFor time.Duration
	wifi     events.WifiStatusEvent
	networks []device.WiFiNetwork
	radio    device.RadioConfig
	gateHits int
	nextName int
}

func NewDevice(learnTimeout time.Duration) *Device {
	if learnTimeout <= 0 {
		learnTimeout = 30 * time.Second
	}
	return &Device{
		boot:     time.Now(),
		learnFor: learnTimeout,
		wifi:     events.WifiStatusEvent{Status: events.WifiDisconnected},
		networks: []device.WiFiNetwork{
			{SSID: "HomeNet", RSSI: -52, Encryption: 3},
			{SSID: "Garage-AP", RSSI: -67, Encryption: 3},
			{SSID: "Cafe Free", RSSI: -80, Encryption: 0},
		},
		radio:    device.DefaultRadioConfig(),
		nextName: 1,
	}
}

// stamp is uptime in ms, never zero.
func (d *Device) stamp() int64 {
	return time.Since(d.boot).Milliseconds() + 1
}

func (d *Device) logEvent(msg string, sev events.Severity) events.LogEvent {
	return events.LogEvent{Timestamp: d.stamp(), Message: msg, Severity: sev}
}

func (d *Device) Phones() []device.PhoneRecord {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]device.PhoneRecord(nil), d.phones...)
}

func (d *Device) AddPhone(number string, sms, call bool) (device.PhoneRecord, int64, []events.Event, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	normalized, err := device.NormalizePhone(strings.TrimPrefix(number, device.PhonePrefix))
	if err != nil || normalized != number {
		return device.PhoneRecord{}, 0, nil, fmt.Errorf("invalid number %q", number)
	}
	for _, p := range d.phones {
		if p.ID == number {
			return device.PhoneRecord{}, 0, nil, errDuplicate
		}
	}
	rec := device.PhoneRecord{ID: number, Number: number, SMSEnabled: sms, CallEnabled: call}
	d.phones = append(d.phones, rec)
	ts := d.stamp()
	return rec, ts, []events.Event{
		d.logEvent("Phone "+number+" added", events.SeveritySuccess),
		events.PhoneCountEvent{Count: len(d.phones), Stamp: ts},
	}, nil
}

func (d *Device) DeletePhone(id string) (int64, []events.Event, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i, p := range d.phones {
		if p.ID == id {
			d.phones = append(d.phones[:i], d.phones[i+1:]...)
			ts := d.stamp()
			return ts, []events.Event{
				d.logEvent("Phone "+id+" removed", events.SeverityWarning),
				events.PhoneCountEvent{Count: len(d.phones), Stamp: ts},
			}, nil
		}
	}
	return 0, nil, errNotFound
}

func (d *Device) UpdatePhone(upd device.PhoneUpdate) (int64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i := range d.phones {
		if d.phones[i].ID != upd.ID {
			continue
		}
		if upd.SMSEnabled != nil {
			d.phones[i].SMSEnabled = *upd.SMSEnabled
		}
		if upd.CallEnabled != nil {
			d.phones[i].CallEnabled = *upd.CallEnabled
		}
		return d.stamp(), nil
	}
	return 0, errNotFound
}

func (d *Device) Keys() []device.KeyRecord {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]device.KeyRecord(nil), d.keys...)
}

func (d *Device) DeleteKey(code uint64) (int64, []events.Event, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i, k := range d.keys {
		if k.Code == code {
			d.keys = append(d.keys[:i], d.keys[i+1:]...)
			ts := d.stamp()
			return ts, []events.Event{
				d.logEvent(fmt.Sprintf("Key %s removed", k.Name), events.SeverityWarning),
				events.KeyCountEvent{Count: len(d.keys), Stamp: ts},
			}, nil
		}
	}
	return 0, nil, errNotFound
}

func (d *Device) UpdateKey(upd device.KeyUpdate) (int64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i := range d.keys {
		if d.keys[i].Code != upd.Code {
			continue
		}
		if upd.Name != nil {
			name := strings.TrimSpace(*upd.Name)
			if name == "" {
				return 0, fmt.Errorf("name is empty")
			}
			d.keys[i].Name = name
		}
		if upd.Enabled != nil {
			d.keys[i].Enabled = *upd.Enabled
		}
		return d.stamp(), nil
	}
	return 0, errNotFound
}

// Learning reports the learning flag, ending it first if it timed out.
func (d *Device) Learning() (bool, []events.Event) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.learning, d.expireLocked(time.Now())
}

func (d *Device) expireLocked(now time.Time) []events.Event {
	if d.learning && now.After(d.learnEnd) {
		d.learning = false
		return []events.Event{d.logEvent("Learning timed out", events.SeverityWarning)}
	}
	return nil
}

func (d *Device) StartLearning() []events.Event {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.learning = true
	d.learnEnd = time.Now().Add(d.learnFor)
	return []events.Event{d.logEvent("Learning mode started", events.SeverityInfo)}
}

func (d *Device) StopLearning() []events.Event {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.learning {
		return nil
	}
	d.learning = false
	return []events.Event{d.logEvent("Learning mode stopped", events.SeverityWarning)}
}

// Receive simulates a remote press. While learning, an unknown code is
// stored and learning ends.
func (d *Device) Receive(code uint64, bitLength, protocol int) []events.Event {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := d.expireLocked(time.Now())
	ts := d.stamp()
	out = append(out, events.KeyReceivedEvent{Code: code, BitLength: bitLength, Protocol: protocol, Timestamp: ts})

	known := false
	for _, k := range d.keys {
		if k.Code == code {
			known = true
			if k.Enabled && !d.learning {
				d.gateHits++
				out = append(out, d.logEvent("Gate opened by "+k.Name, events.SeveritySuccess))
			}
			break
		}
	}
	if d.learning && !known {
		name := fmt.Sprintf("Key %d", d.nextName)
		d.nextName++
		d.keys = append(d.keys, device.KeyRecord{
			Code: code, Name: name, Enabled: true, BitLength: bitLength, Protocol: protocol, Timestamp: ts,
		})
		d.learning = false
		out = append(out,
			events.KeyAddedEvent{Name: name, Code: code},
			events.KeyCountEvent{Count: len(d.keys), Stamp: d.stamp()},
		)
	}
	return out
}

func (d *Device) TriggerGate() (int64, []events.Event) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.gateHits++
	ts := d.stamp()
	return ts, []events.Event{d.logEvent("Gate triggered remotely", events.SeveritySuccess)}
}

func (d *Device) GateHits() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.gateHits
}

func (d *Device) Networks() []device.WiFiNetwork {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := append([]device.WiFiNetwork(nil), d.networks...)
	sort.Slice(out, func(i, j int) bool { return out[i].RSSI > out[j].RSSI })
	return out
}

// ConnectWiFi joins a scanned network. Encrypted networks need a password
// of at least 8 characters.
func (d *Device) ConnectWiFi(ssid, password string) (device.WiFiConnectResult, []events.Event) {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := []events.Event{events.WifiStatusEvent{Status: events.WifiConnecting}}
	for _, n := range d.networks {
		if n.SSID != ssid {
			continue
		}
		if !n.Open() && len(password) < 8 {
			d.wifi = events.WifiStatusEvent{Status: events.WifiDisconnected}
			return device.WiFiConnectResult{Success: false, Error: "authentication failed"}, append(out, d.wifi)
		}
		d.wifi = events.WifiStatusEvent{Status: events.WifiConnected, SSID: ssid, RSSI: n.RSSI, IP: "192.168.1.57"}
		return device.WiFiConnectResult{Success: true, IP: d.wifi.IP}, append(out, d.wifi)
	}
	d.wifi = events.WifiStatusEvent{Status: events.WifiDisconnected}
	return device.WiFiConnectResult{Success: false, Error: "network not found"}, append(out, d.wifi)
}

func (d *Device) Radio() device.RadioConfig {
	d.mu.Lock()
	defer d.mu.Unlock()
	cfg := d.radio
	cfg.RSSI = -70 + int(time.Now().UnixNano()%11)
	return cfg
}

func (d *Device) ApplyRadio(cfg device.RadioConfig) (device.RadioConfig, []events.Event, error) {
	if err := cfg.Validate(); err != nil {
		return device.RadioConfig{}, nil, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	cfg.RSSI = 0
	d.radio = cfg
	return cfg, []events.Event{d.logEvent(fmt.Sprintf("CC1101 tuned to %.2f MHz", cfg.Frequency), events.SeverityInfo)}, nil
}

// Snapshot is the state a newly connected push client is sent.
func (d *Device) Snapshot() []events.Event {
	d.mu.Lock()
	defer d.mu.Unlock()
	ts := d.stamp()
	return []events.Event{
		d.wifi,
		events.PhoneCountEvent{Count: len(d.phones), Stamp: ts},
		events.KeyCountEvent{Count: len(d.keys), Stamp: ts},
	}
}
