package tui

import (
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"smartgate_go/internal/device"
	"smartgate_go/internal/learning"
	"smartgate_go/internal/push"
)

func frame(raw string) pushMsg {
	return pushMsg{Msg: push.Message{Kind: push.KindFrame, Data: []byte(raw)}}
}

func step(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	return next.(Model), cmd
}

func TestLearningCompletesFromPushAndIgnoresLatePoll(t *testing.T) {
	api := &fakeAPI{}
	m, _ := newTestModel(api)
	m, _ = step(t, m, frame(`{"event":"key_count","data":{"count":0}}`))
	m, _ = m.openScreen(screenKeys)

	m, cmd := press(t, m, "l")
	if m.learn.Phase() != learning.Starting {
		t.Fatalf("expected starting, got %s", m.learn.Phase())
	}
	m, _ = feed[learnResultMsg](t, m, run(t, cmd))
	if m.learn.Phase() != learning.Active {
		t.Fatalf("expected active, got %s", m.learn.Phase())
	}

	late, ok := m.learn.PollDue(learning.Tick{Gen: m.learn.Gen()})
	if !ok {
		t.Fatal("expected a poll request while active")
	}

	m, _ = step(t, m, frame(`{"event":"key_added","data":{"name":"Garage","code":5592405}}`))
	if m.learn.Phase() != learning.Idle {
		t.Fatalf("key_added must end learning, got %s", m.learn.Phase())
	}
	logs := len(m.store.Logs())

	m, _ = step(t, m, learnResultMsg{Req: late, Status: device.LearnStatus{LearningMode: false}})
	if len(m.store.Logs()) != logs {
		t.Fatalf("late poll answer must not complete twice, logs %d -> %d", logs, len(m.store.Logs()))
	}
	if n, ok := m.store.KeyCount(); !ok || n != 1 {
		t.Fatalf("expected optimistic key count 1, got %d known=%v", n, ok)
	}
}

func TestLeavingKeysPageDropsLearningAnswers(t *testing.T) {
	api := &fakeAPI{}
	m, _ := newTestModel(api)
	m, _ = m.openScreen(screenKeys)

	m, cmd := press(t, m, "l")
	msgs := run(t, cmd)

	m, _ = press(t, m, "b")
	if m.activeScreen != screenHome {
		t.Fatalf("expected home, got %d", m.activeScreen)
	}
	m, _ = feed[learnResultMsg](t, m, msgs)
	if m.learn.Phase() != learning.Idle {
		t.Fatalf("answer after detach must be ignored, got %s", m.learn.Phase())
	}
}

func TestKeysPageAdoptsRunningSession(t *testing.T) {
	api := &fakeAPI{learning: true}
	m, _ := newTestModel(api)
	m, cmd := m.openScreen(screenKeys)
	m, _ = feed[learnResultMsg](t, m, run(t, cmd))

	if m.learn.Phase() != learning.Active {
		t.Fatalf("expected adopted session, got %s", m.learn.Phase())
	}
	if sess, ok := m.learn.Session(); !ok || !sess.Adopted {
		t.Fatalf("expected adopted session, got %+v", sess)
	}
}

func TestGateIsDebounced(t *testing.T) {
	api := &fakeAPI{}
	m, _ := newTestModel(api)

	m, first := press(t, m, "g")
	if first == nil {
		t.Fatal("expected gate command")
	}
	m, _ = press(t, m, "g")
	msgs := run(t, first)
	if api.count("gate") != 1 {
		t.Fatalf("second press must be ignored, got %d calls", api.count("gate"))
	}

	m, _ = feed[gateDoneMsg](t, m, msgs)
	if !m.gate.Busy() {
		t.Fatal("gate must cool down after the answer")
	}
	if _, ok := m.gate.Begin(); ok {
		t.Fatal("trigger during cool-down must be refused")
	}

	var token uint64
	for _, msg := range msgs {
		if done, ok := msg.(gateDoneMsg); ok {
			token = done.Token
		}
	}
	m, _ = step(t, m, gateReleaseMsg{Token: token})
	if m.gate.Busy() {
		t.Fatal("release must free the gate")
	}
}

func TestGateFailureIsReported(t *testing.T) {
	api := &fakeAPI{gateErr: &device.RequestError{Kind: device.KindNetwork, Endpoint: "/api/gate/trigger", Err: errors.New("refused")}}
	m, _ := newTestModel(api)

	m, cmd := press(t, m, "g")
	m, _ = feed[gateDoneMsg](t, m, run(t, cmd))
	n, ok := m.store.Notice()
	if !ok || !strings.Contains(n.Text, "device unreachable") {
		t.Fatalf("expected unreachable notice, got %+v", n)
	}
}

func TestDeleteAckStampBeatsLatePush(t *testing.T) {
	api := &fakeAPI{stamp: 2000, keys: []device.KeyRecord{{Code: 1}, {Code: 2}, {Code: 3}, {Code: 4}, {Code: 5}}}
	m, _ := newTestModel(api)
	m, _ = step(t, m, frame(`{"event":"key_count","data":{"count":5,"ts":1000}}`))

	m, cmd := m.openScreen(screenKeys)
	m, _ = feed[keysLoadedMsg](t, m, run(t, cmd))
	m, _ = press(t, m, "d")
	if !m.confirmDelete {
		t.Fatal("delete must ask for confirmation")
	}
	m, cmd = press(t, m, "y")
	if len(m.keys) != 4 {
		t.Fatalf("expected optimistic removal, got %d keys", len(m.keys))
	}
	m, _ = feed[keyMutatedMsg](t, m, run(t, cmd))

	m, _ = step(t, m, frame(`{"event":"key_count","data":{"count":5,"ts":1500}}`))
	if n, _ := m.store.KeyCount(); n != 4 {
		t.Fatalf("late stale count must be ignored, got %d", n)
	}
}

func TestDeleteAckAfterItsPushKeepsCount(t *testing.T) {
	api := &fakeAPI{stamp: 2000, keys: []device.KeyRecord{{Code: 1}, {Code: 2}, {Code: 3}, {Code: 4}, {Code: 5}}}
	m, _ := newTestModel(api)
	m, _ = step(t, m, frame(`{"event":"key_count","data":{"count":5,"ts":1000}}`))

	m, cmd := m.openScreen(screenKeys)
	m, _ = feed[keysLoadedMsg](t, m, run(t, cmd))
	m, _ = press(t, m, "d")
	m, cmd = press(t, m, "y")
	msgs := run(t, cmd)

	m, _ = step(t, m, frame(`{"event":"key_count","data":{"count":4,"ts":2000}}`))
	m, _ = feed[keyMutatedMsg](t, m, msgs)
	if n, _ := m.store.KeyCount(); n != 4 {
		t.Fatalf("one deletion must count once, got %d", n)
	}
}

func TestPushStateChangesAreLogged(t *testing.T) {
	m, _ := newTestModel(&fakeAPI{})
	m, _ = step(t, m, pushMsg{Msg: push.Message{Kind: push.KindState, State: push.Connecting}})
	m, _ = step(t, m, pushMsg{Msg: push.Message{Kind: push.KindState, State: push.Disconnected, Err: errors.New("refused")}})
	m, _ = step(t, m, pushMsg{Msg: push.Message{Kind: push.KindReconnecting, State: push.Connecting}})
	m, _ = step(t, m, pushMsg{Msg: push.Message{Kind: push.KindState, State: push.Connected}})

	if m.store.Connection() != push.Connected {
		t.Fatalf("expected connected, got %s", m.store.Connection())
	}
	logs := m.store.Logs()
	if len(logs) != 3 {
		t.Fatalf("expected unreachable, reconnecting and connected entries, got %d", len(logs))
	}
	if logs[0].Message != "Push channel connected" || logs[2].Message != "Push channel unreachable" {
		t.Fatalf("unexpected log order: %+v", logs)
	}
}

func TestMalformedFrameIsDropped(t *testing.T) {
	m, _ := newTestModel(&fakeAPI{})
	m, _ = step(t, m, frame(`{"event":"key_received","data":{}}`))
	m, _ = step(t, m, frame(`not json`))
	m, _ = step(t, m, frame(`{"event":"firmware_update","data":{}}`))
	if len(m.store.Logs()) != 0 || len(m.store.RecentKeys()) != 0 {
		t.Fatal("bad frames must not change state")
	}
}

func TestAddPhoneValidatesNumber(t *testing.T) {
	api := &fakeAPI{}
	m, _ := newTestModel(api)
	m, _ = m.openScreen(screenPhones)

	m, _ = press(t, m, "a")
	if m.inputMode != inputModePhoneNumber {
		t.Fatal("expected phone input mode")
	}
	m.input.SetValue("12345")
	m, _ = press(t, m, "enter")
	if n, ok := m.store.Notice(); !ok || !strings.Contains(n.Text, "10 digits") {
		t.Fatalf("expected validation notice, got %+v", n)
	}
	if api.count("add_phone") != 0 {
		t.Fatal("invalid number must not reach the device")
	}

	m, _ = press(t, m, "a")
	m.input.SetValue("(999) 000-11-22")
	m, cmd := press(t, m, "enter")
	m, _ = feed[phoneMutatedMsg](t, m, run(t, cmd))
	if len(m.phones) != 1 || m.phones[0].Number != "+79990001122" {
		t.Fatalf("expected new phone in list, got %+v", m.phones)
	}
}

func TestQuitReleasesResources(t *testing.T) {
	m, link := newTestModel(&fakeAPI{})
	j := &fakeJournal{}
	m.journal = j

	m, cmd := press(t, m, "q")
	if cmd == nil {
		t.Fatal("expected quit command")
	}
	if !link.closed || !j.closed {
		t.Fatalf("expected link and journal closed, link=%v journal=%v", link.closed, j.closed)
	}
	if !m.quitting {
		t.Fatal("expected quitting flag")
	}
}

func TestClearLogsClearsJournal(t *testing.T) {
	m, _ := newTestModel(&fakeAPI{})
	j := &fakeJournal{}
	m.journal = j
	m.store.AddLog("hello", "info")
	m, _ = m.openScreen(screenLogs)

	m, _ = press(t, m, "c")
	if len(m.store.Logs()) != 0 || j.cleared != 1 {
		t.Fatalf("expected console and journal cleared, logs=%d cleared=%d", len(m.store.Logs()), j.cleared)
	}
}

func TestRadioPresetIsSaved(t *testing.T) {
	api := &fakeAPI{}
	m, _ := newTestModel(api)
	m, _ = m.openScreen(screenRadio)

	m, _ = press(t, m, "p")
	if m.radio.Frequency != 868.30 || !m.radioDirty {
		t.Fatalf("expected unsaved 868.30 preset, got %.2f dirty=%v", m.radio.Frequency, m.radioDirty)
	}
	m, cmd := press(t, m, "w")
	m, _ = feed[radioSavedMsg](t, m, run(t, cmd))
	if m.radioDirty || api.count("radio_save") != 1 {
		t.Fatalf("expected saved settings, dirty=%v saves=%d", m.radioDirty, api.count("radio_save"))
	}
}
