package state

import (
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"smartgate_go/internal/events"
	"smartgate_go/internal/push"
)

type memRecorder struct {
	logs []LogEntry
	keys []RecentKey
}

func (m *memRecorder) RecordLog(e LogEntry)  { m.logs = append(m.logs, e) }
func (m *memRecorder) RecordKey(k RecentKey) { m.keys = append(m.keys, k) }

func fixedClock() func() time.Time {
	base := time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC)
	n := 0
	return func() time.Time {
		n++
		return base.Add(time.Duration(n) * time.Millisecond)
	}
}

func TestLogRingHoldsNewestHundred(t *testing.T) {
	s := NewStore(WithClock(fixedClock()))
	for i := 0; i < 250; i++ {
		s.Apply(events.LogEvent{Message: fmt.Sprintf("line %d", i), Severity: events.SeverityInfo})
		if got := len(s.Logs()); got > LogCapacity {
			t.Fatalf("log ring grew to %d", got)
		}
	}
	logs := s.Logs()
	if len(logs) != LogCapacity {
		t.Fatalf("expected %d logs, got %d", LogCapacity, len(logs))
	}
	for i, entry := range logs {
		want := fmt.Sprintf("line %d", 249-i)
		if entry.Message != want {
			t.Fatalf("index %d: expected %q, got %q", i, want, entry.Message)
		}
	}
}

func TestRecentKeysHoldsNewestTen(t *testing.T) {
	s := NewStore()
	for i := 1; i <= 14; i++ {
		eff := s.Apply(events.KeyReceivedEvent{Code: uint64(i), BitLength: 24, Protocol: 1})
		if eff.Notice == "" || eff.Log == nil || eff.Key == nil {
			t.Fatalf("key_received must notify, log and record: %+v", eff)
		}
	}
	keys := s.RecentKeys()
	if len(keys) != RecentKeyCapacity {
		t.Fatalf("expected %d keys, got %d", RecentKeyCapacity, len(keys))
	}
	if keys[0].Code != 14 || keys[len(keys)-1].Code != 5 {
		t.Fatalf("unexpected order: first=%d last=%d", keys[0].Code, keys[len(keys)-1].Code)
	}
	if len(s.Logs()) != 14 {
		t.Fatalf("expected one log per key, got %d", len(s.Logs()))
	}
}

func TestWifiSnapshotFollowsLastStatus(t *testing.T) {
	s := NewStore()
	s.Apply(events.WifiStatusEvent{Status: events.WifiConnected, SSID: "Home", RSSI: -58, IP: "10.0.0.9"})
	snap, ok := s.Wifi()
	if !ok || snap != (WifiSnapshot{SSID: "Home", RSSI: -58, IP: "10.0.0.9"}) {
		t.Fatalf("unexpected snapshot: %+v ok=%v", snap, ok)
	}

	s.Apply(events.WifiStatusEvent{Status: events.WifiConnecting, SSID: "Other", IP: "10.0.0.10"})
	if _, ok := s.Wifi(); ok {
		t.Fatalf("connecting must clear the snapshot")
	}
	if s.WifiStatus() != events.WifiConnecting {
		t.Fatalf("expected connecting status, got %s", s.WifiStatus())
	}

	s.Apply(events.WifiStatusEvent{Status: events.WifiConnected, SSID: "Office", RSSI: -70, IP: "192.168.1.5"})
	snap, _ = s.Wifi()
	if snap.SSID != "Office" || snap.IP != "192.168.1.5" || snap.RSSI != -70 {
		t.Fatalf("snapshot mixed fields from two events: %+v", snap)
	}
	s.Apply(events.WifiStatusEvent{Status: events.WifiDisconnected})
	if _, ok := s.Wifi(); ok {
		t.Fatalf("disconnected must clear the snapshot")
	}
}

func TestCountsDoNotLog(t *testing.T) {
	s := NewStore()
	s.Apply(events.PhoneCountEvent{Count: 2})
	s.Apply(events.KeyCountEvent{Count: 7})
	if len(s.Logs()) != 0 {
		t.Fatalf("count events must not log")
	}
	if n, ok := s.PhoneCount(); !ok || n != 2 {
		t.Fatalf("unexpected phone count %d ok=%v", n, ok)
	}
	if n, ok := s.KeyCount(); !ok || n != 7 {
		t.Fatalf("unexpected key count %d ok=%v", n, ok)
	}
}

func TestLateCountWithStampsKeepsDeletion(t *testing.T) {
	s := NewStore()
	s.Apply(events.KeyCountEvent{Count: 5, Stamp: 1000})
	s.AdjustKeys(-1, 1500)
	eff := s.Apply(events.KeyCountEvent{Count: 5, Stamp: 1200})
	if !eff.Stale {
		t.Fatalf("expected late push to be flagged stale")
	}
	if n, _ := s.KeyCount(); n != 4 {
		t.Fatalf("expected 4 after stale push, got %d", n)
	}

	s.Apply(events.KeyCountEvent{Count: 4, Stamp: 1600})
	if n, _ := s.KeyCount(); n != 4 {
		t.Fatalf("expected fresh push to apply, got %d", n)
	}
}

func TestAckAfterItsOwnPushDoesNotCountTwice(t *testing.T) {
	s := NewStore()
	s.Apply(events.KeyCountEvent{Count: 5, Stamp: 100})
	s.Apply(events.KeyCountEvent{Count: 4, Stamp: 200})
	if s.AdjustKeys(-1, 200) {
		t.Fatalf("ack covered by the push must not apply")
	}
	if n, _ := s.KeyCount(); n != 4 {
		t.Fatalf("expected 4 after push then ack, got %d", n)
	}

	s.Apply(events.PhoneCountEvent{Count: 1, Stamp: 300})
	s.Apply(events.PhoneCountEvent{Count: 2, Stamp: 350})
	s.AdjustPhones(1, 350)
	if n, _ := s.PhoneCount(); n != 2 {
		t.Fatalf("expected 2 phones after push then ack, got %d", n)
	}

	if !s.AdjustPhones(-1, 400) {
		t.Fatalf("newer ack must apply")
	}
	if n, _ := s.PhoneCount(); n != 1 {
		t.Fatalf("expected 1 phone, got %d", n)
	}
}

func TestLateCountWithoutStampsIsLastReceivedWins(t *testing.T) {
	s := NewStore()
	s.Apply(events.KeyCountEvent{Count: 5})
	s.AdjustKeys(-1, 0)
	if n, _ := s.KeyCount(); n != 4 {
		t.Fatalf("expected optimistic 4, got %d", n)
	}
	s.Apply(events.KeyCountEvent{Count: 5})
	if n, _ := s.KeyCount(); n != 5 {
		t.Fatalf("expected last received 5, got %d", n)
	}
}

func TestKeyAddedIsOverwrittenByCount(t *testing.T) {
	s := NewStore()
	s.ConfirmKeys(3)
	eff := s.Apply(events.KeyAddedEvent{Name: "Gate remote"})
	if !eff.KeyAdded || eff.KeyName != "Gate remote" || eff.Notice == "" {
		t.Fatalf("unexpected effect: %+v", eff)
	}
	if n, _ := s.KeyCount(); n != 4 {
		t.Fatalf("expected optimistic 4, got %d", n)
	}
	s.Apply(events.KeyCountEvent{Count: 4, Stamp: 10})
	if n, _ := s.KeyCount(); n != 4 {
		t.Fatalf("expected push to settle at 4 without double count, got %d", n)
	}
}

func TestReconnectResetsCountStamps(t *testing.T) {
	s := NewStore()
	s.Apply(events.PhoneCountEvent{Count: 3, Stamp: 900000})
	s.SetConnection(push.Disconnected)
	s.SetConnection(push.Connected)
	s.Apply(events.PhoneCountEvent{Count: 2, Stamp: 800})
	if n, _ := s.PhoneCount(); n != 2 {
		t.Fatalf("count after device reboot must apply, got %d", n)
	}
}

func TestConnectionTransitionsAreLogged(t *testing.T) {
	s := NewStore()
	s.SetConnection(push.Connecting)
	s.SetConnection(push.Connected)
	s.SetConnection(push.Disconnected)
	s.MarkReconnecting()
	logs := s.Logs()
	if len(logs) != 3 {
		t.Fatalf("expected 3 connection logs, got %d", len(logs))
	}
	want := []events.Severity{events.SeverityWarning, events.SeverityError, events.SeveritySuccess}
	for i, sev := range want {
		if logs[i].Severity != sev {
			t.Fatalf("index %d: expected %s, got %s", i, sev, logs[i].Severity)
		}
	}
	if s.Connection() != push.Connecting {
		t.Fatalf("reconnecting should report connecting, got %s", s.Connection())
	}
}

func TestNoticeExpiresBySeq(t *testing.T) {
	s := NewStore()
	first := s.SetNotice("one", events.SeverityInfo)
	second := s.SetNotice("two", events.SeverityInfo)
	if s.ClearNotice(first.Seq) {
		t.Fatalf("old timer must not clear a newer notice")
	}
	if !s.ClearNotice(second.Seq) {
		t.Fatalf("expected current notice to clear")
	}
	if _, ok := s.Notice(); ok {
		t.Fatalf("expected no notice")
	}
}

func TestClearLogsAndRestore(t *testing.T) {
	rec := &memRecorder{}
	s := NewStore(WithRecorder(rec))
	s.AddLog("kept in journal", events.SeverityInfo)
	s.ClearLogs()
	if len(s.Logs()) != 0 {
		t.Fatalf("expected empty console")
	}
	if len(rec.logs) != 1 {
		t.Fatalf("recorder should have seen the entry")
	}

	restored := NewStore()
	restored.Restore(
		[]LogEntry{{Message: "newer"}, {Message: "older"}},
		[]RecentKey{{Code: 2}, {Code: 1}},
	)
	logs := restored.Logs()
	if logs[0].Message != "newer" || logs[1].Message != "older" {
		t.Fatalf("restore changed order: %+v", logs)
	}
	if keys := restored.RecentKeys(); keys[0].Code != 2 {
		t.Fatalf("restore changed key order: %+v", keys)
	}
}

func TestDispatcherDropsBadFrames(t *testing.T) {
	s := NewStore()
	d := NewDispatcher(s, zerolog.Nop())
	if _, _, ok := d.Dispatch([]byte(`{oops`)); ok {
		t.Fatalf("malformed frame must be dropped")
	}
	if _, _, ok := d.Dispatch([]byte(`{"event":"firmware","data":{}}`)); ok {
		t.Fatalf("unknown kind must be dropped")
	}
	if len(s.Logs()) != 0 {
		t.Fatalf("dropped frames must not reach the console")
	}
	ev, eff, ok := d.Dispatch([]byte(`{"event":"log","data":{"message":"armed","type":"warning"}}`))
	if !ok || ev.Kind() != events.KindLog || eff.Log == nil || eff.Log.Severity != events.SeverityWarning {
		t.Fatalf("unexpected dispatch result: %#v %+v %v", ev, eff, ok)
	}
}
