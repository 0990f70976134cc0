package events

import (
	"encoding/json"
	"fmt"
)

// Encode renders ev as the {event, data} frame the device sends.
func Encode(ev Event) ([]byte, error) {
	data, err := Payload(ev)
	if err != nil {
		return nil, err
	}
	return json.Marshal(struct {
		Event Kind `json:"event"`
		Data  any  `json:"data"`
	}{ev.Kind(), data})
}

// Payload returns the wire shape of the event data.
func Payload(ev Event) (any, error) {
	switch e := ev.(type) {
	case LogEvent:
		return map[string]any{"timestamp": e.Timestamp, "message": e.Message, "type": string(e.Severity)}, nil
	case KeyReceivedEvent:
		return map[string]any{"key": e.Code, "bitLength": e.BitLength, "protocol": e.Protocol, "timestamp": e.Timestamp}, nil
	case KeyAddedEvent:
		out := map[string]any{"name": e.Name}
		if e.Code != 0 {
			out["code"] = e.Code
		}
		return out, nil
	case WifiStatusEvent:
		out := map[string]any{"status": string(e.Status)}
		if e.Status == WifiConnected {
			out["ssid"] = e.SSID
			out["rssi"] = e.RSSI
			out["ip"] = e.IP
		}
		return out, nil
	case PhoneCountEvent:
		return countBody(e.Count, e.Stamp), nil
	case KeyCountEvent:
		return countBody(e.Count, e.Stamp), nil
	}
	return nil, fmt.Errorf("encode: unsupported event %T", ev)
}

func countBody(count int, stamp int64) map[string]any {
	out := map[string]any{"count": count}
	if stamp > 0 {
		out["ts"] = stamp
	}
	return out
}
