package tui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"smartgate_go/internal/device"
	"smartgate_go/internal/events"
	"smartgate_go/internal/learning"
	"smartgate_go/internal/notify"
	"smartgate_go/internal/push"
)

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		if m.width > 20 {
			m.input.Width = m.width - 14
		}
		return m, nil

	case tea.KeyMsg:
		if m.inputMode != inputModeNone {
			return m.updateInput(msg)
		}
		return m.updateKey(msg)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd

	case pushMsg:
		return m.onPush(msg.Msg)

	case pushClosedMsg:
		return m, nil

	case statsLoadedMsg:
		return m.onStatsLoaded(msg)

	case learnResultMsg:
		return m.onLearnResult(msg)

	case learnTickMsg:
		req, ok := m.learn.PollDue(msg.Tick)
		if !ok {
			return m, nil
		}
		return m, learnCmd(m.api, req, m.requestTimeout)

	case gateDoneMsg:
		return m.onGateDone(msg)

	case gateReleaseMsg:
		m.gate.Release(msg.Token)
		return m, nil

	case noticeExpiredMsg:
		m.store.ClearNotice(msg.Seq)
		return m, nil

	case keysLoadedMsg:
		return m.onKeysLoaded(msg)
	case keyMutatedMsg:
		return m.onKeyMutated(msg)
	case phonesLoadedMsg:
		return m.onPhonesLoaded(msg)
	case phoneMutatedMsg:
		return m.onPhoneMutated(msg)
	case wifiScannedMsg:
		return m.onWiFiScanned(msg)
	case wifiConnectedMsg:
		return m.onWiFiConnected(msg)
	case radioLoadedMsg:
		return m.onRadioLoaded(msg)
	case radioSavedMsg:
		return m.onRadioSaved(msg)
	}

	return m, nil
}

func (m Model) onPush(msg push.Message) (tea.Model, tea.Cmd) {
	if m.quitting {
		return m, nil
	}
	cmds := []tea.Cmd{waitPushCmd(m.link.Messages())}
	switch msg.Kind {
	case push.KindReconnecting:
		m.store.MarkReconnecting()
	case push.KindState:
		m.store.SetConnection(msg.State)
		if msg.Err != nil {
			m.log.Debug().Err(msg.Err).Msg("push link down")
		}
		if m.mirror != nil {
			if err := m.mirror.PublishLink(msg.State); err != nil {
				m.log.Debug().Err(err).Msg("mirror link state")
			}
		}
	case push.KindFrame:
		cmds = append(cmds, m.onFrame(msg.Data)...)
	}
	return m, tea.Batch(cmds...)
}

func (m *Model) onFrame(data []byte) []tea.Cmd {
	ev, eff, ok := m.dispatch.Dispatch(data)
	if !ok {
		return nil
	}
	if m.mirror != nil {
		if err := m.mirror.PublishEvent(ev); err != nil {
			m.log.Debug().Err(err).Str("event", string(ev.Kind())).Msg("mirror event")
		}
	}

	var cmds []tea.Cmd
	if eff.Notice != "" {
		if n, ok := m.store.Notice(); ok {
			cmds = append(cmds, noticeExpiryCmd(m.noticeTTL, n.Seq))
		}
	}
	if eff.KeyAdded {
		m.notifier.Send(notify.Payload{Title: "New key", Content: eff.Notice})
		out := m.learn.Complete(learning.Signal{
			Source:  learning.SourcePush,
			Reason:  learning.ReasonKeyAdded,
			KeyName: eff.KeyName,
		})
		cmds = append(cmds, m.applyOutcome(out)...)
		if m.activeScreen == screenKeys {
			cmds = append(cmds, loadKeysCmd(m.api, m.pageGen, m.requestTimeout))
		}
	}
	return cmds
}

func (m Model) onStatsLoaded(msg statsLoadedMsg) (tea.Model, tea.Cmd) {
	if msg.PhonesErr == nil {
		m.store.ConfirmPhones(len(msg.Phones))
	} else {
		m.store.AddLog("Could not load phones: "+device.Reason(msg.PhonesErr), events.SeverityError)
	}
	if msg.KeysErr == nil {
		m.store.ConfirmKeys(len(msg.Keys))
	} else {
		m.store.AddLog("Could not load keys: "+device.Reason(msg.KeysErr), events.SeverityError)
	}
	return m, nil
}

func (m Model) onLearnResult(msg learnResultMsg) (tea.Model, tea.Cmd) {
	var out learning.Outcome
	switch msg.Req.Op {
	case learning.OpStart:
		out = m.learn.StartDone(msg.Req, msg.Err)
	case learning.OpPoll:
		out = m.learn.PollDone(msg.Req, msg.Status, msg.Err)
	case learning.OpStop:
		out = m.learn.StopDone(msg.Req, msg.Err)
	case learning.OpObserve:
		out = m.learn.ObserveDone(msg.Req, msg.Status, msg.Err)
	default:
		return m, nil
	}
	cmds := m.applyOutcome(out)
	if out.Changed && out.Phase == learning.Idle && m.activeScreen == screenKeys {
		cmds = append(cmds, loadKeysCmd(m.api, m.pageGen, m.requestTimeout))
	}
	return m, tea.Batch(cmds...)
}

// applyOutcome surfaces a learning transition and arms its poll timer.
func (m *Model) applyOutcome(out learning.Outcome) []tea.Cmd {
	if out.Stale {
		return nil
	}
	var cmds []tea.Cmd
	if out.Err != nil && !out.Changed {
		m.log.Warn().Err(out.Err).Msg("learning status check failed")
	}
	if out.Message != "" {
		m.store.AddLog(out.Message, out.Severity)
		cmds = append(cmds, m.setNotice(out.Message, out.Severity))
	}
	if out.Notify {
		m.notifier.Send(notify.Payload{Title: "Learning", Content: out.Message})
	}
	if out.Poll != nil {
		cmds = append(cmds, learnTickCmd(m.pollInterval, *out.Poll))
	}
	return cmds
}

func (m Model) triggerGate() (tea.Model, tea.Cmd) {
	token, ok := m.gate.Begin()
	if !ok {
		return m, m.setNotice("Gate is busy, wait a moment", events.SeverityWarning)
	}
	m.status = "Opening gate..."
	return m, gateCmd(m.api, token, m.requestTimeout)
}

func (m Model) onGateDone(msg gateDoneMsg) (tea.Model, tea.Cmd) {
	cooldown := m.gate.Done(msg.Token)
	cmds := make([]tea.Cmd, 0, 2)
	if msg.Err != nil {
		text := "Gate failed: " + device.Reason(msg.Err)
		m.store.AddLog(text, events.SeverityError)
		m.notifier.Send(notify.Payload{Title: "Gate", Content: text})
		cmds = append(cmds, m.setNotice(text, events.SeverityError))
		m.status = "Gate failed"
	} else {
		m.store.AddLog("Gate opened", events.SeveritySuccess)
		cmds = append(cmds, m.setNotice("Gate opened", events.SeveritySuccess))
		m.status = "Gate opened"
	}
	if cooldown > 0 {
		cmds = append(cmds, gateReleaseCmd(cooldown, msg.Token))
	}
	return m, tea.Batch(cmds...)
}

// setNotice shows text in the status line until it expires or is replaced.
func (m *Model) setNotice(text string, severity events.Severity) tea.Cmd {
	n := m.store.SetNotice(text, severity)
	return noticeExpiryCmd(m.noticeTTL, n.Seq)
}

// reportFailure logs a failed request and surfaces it as a notice.
func (m *Model) reportFailure(action string, err error) tea.Cmd {
	text := fmt.Sprintf("%s: %s", action, device.Reason(err))
	m.log.Warn().Err(err).Msg(action)
	m.store.AddLog(text, events.SeverityError)
	return m.setNotice(text, events.SeverityError)
}

func (m Model) quit() (tea.Model, tea.Cmd) {
	m.quitting = true
	m.learn.Detach()
	m.pageGen++
	if m.link != nil {
		if err := m.link.Close(); err != nil {
			m.log.Debug().Err(err).Msg("close push channel")
		}
	}
	if m.journal != nil {
		if err := m.journal.Close(); err != nil {
			m.log.Warn().Err(err).Msg("close journal")
		}
	}
	if m.mirror != nil {
		m.mirror.Close()
	}
	return m, tea.Quit
}
