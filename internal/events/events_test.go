package events

import (
	"errors"
	"testing"
)

func TestDecodeKinds(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want Event
	}{
		{"log", `{"event":"log","data":{"timestamp":12,"message":"relay on","type":"success"}}`,
			LogEvent{Timestamp: 12, Message: "relay on", Severity: SeveritySuccess}},
		{"log default severity", `{"event":"log","data":{"message":"boot"}}`,
			LogEvent{Message: "boot", Severity: SeverityInfo}},
		{"key received", `{"event":"key_received","data":{"key":5592405,"bitLength":24,"protocol":1,"timestamp":9000}}`,
			KeyReceivedEvent{Code: 5592405, BitLength: 24, Protocol: 1, Timestamp: 9000}},
		{"key added", `{"event":"key_added","data":{"name":"Key 3"}}`,
			KeyAddedEvent{Name: "Key 3"}},
		{"wifi connected", `{"event":"wifi_status","data":{"status":"connected","ssid":"Home","rssi":-60,"ip":"10.0.0.7"}}`,
			WifiStatusEvent{Status: WifiConnected, SSID: "Home", RSSI: -60, IP: "10.0.0.7"}},
		{"wifi dropped", `{"event":"wifi_status","data":{"status":"disconnected"}}`,
			WifiStatusEvent{Status: WifiDisconnected}},
		{"phone count", `{"event":"phone_count","data":{"count":3}}`,
			PhoneCountEvent{Count: 3}},
		{"key count stamped", `{"event":"key_count","data":{"count":5,"ts":1200}}`,
			KeyCountEvent{Count: 5, Stamp: 1200}},
	}
	for _, tc := range cases {
		got, err := Decode([]byte(tc.raw))
		if err != nil {
			t.Fatalf("%s: decode: %v", tc.name, err)
		}
		if got != tc.want {
			t.Fatalf("%s: got %#v want %#v", tc.name, got, tc.want)
		}
	}
}

func TestDecodeMalformed(t *testing.T) {
	cases := []string{
		`not json`,
		`{"data":{}}`,
		`{"event":"log"}`,
		`{"event":"log","data":null}`,
		`{"event":"log","data":{"type":"info"}}`,
		`{"event":"key_received","data":{"bitLength":24}}`,
		`{"event":"key_count","data":{"count":"five"}}`,
		`{"event":"phone_count","data":{"count":-1}}`,
		`{"event":"wifi_status","data":{"ssid":"x"}}`,
	}
	for _, raw := range cases {
		_, err := Decode([]byte(raw))
		var malformed *MalformedEventError
		if !errors.As(err, &malformed) {
			t.Fatalf("%s: expected malformed error, got %v", raw, err)
		}
	}
}

func TestDecodeUnknownKind(t *testing.T) {
	_, err := Decode([]byte(`{"event":"battery","data":{"level":80}}`))
	var unknown *UnknownEventError
	if !errors.As(err, &unknown) || unknown.Kind != "battery" {
		t.Fatalf("expected unknown event error, got %v", err)
	}
}

func TestEncodeMatchesDeviceFrames(t *testing.T) {
	raw, err := Encode(WifiStatusEvent{Status: WifiConnecting, SSID: "stale"})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if string(raw) != `{"event":"wifi_status","data":{"status":"connecting"}}` {
		t.Fatalf("unexpected frame: %s", raw)
	}

	raw, err = Encode(KeyCountEvent{Count: 4, Stamp: 77})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	ev, err := Decode(raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if ev != (KeyCountEvent{Count: 4, Stamp: 77}) {
		t.Fatalf("unexpected event: %#v", ev)
	}
}
