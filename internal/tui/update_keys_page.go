package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"smartgate_go/internal/device"
	"smartgate_go/internal/events"
	"smartgate_go/internal/learning"
	tuiupdate "smartgate_go/internal/tui/update"
)

func (m Model) updateKeysPageKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "up", "k":
		m.keyIndex = tuiupdate.Wrap(m.keyIndex, -1, len(m.keys))
		return m, nil
	case "down", "j":
		m.keyIndex = tuiupdate.Wrap(m.keyIndex, 1, len(m.keys))
		return m, nil
	case "l":
		return m.toggleLearning()
	case "u":
		m.busy = true
		m.status = "Reloading keys..."
		return m, loadKeysCmd(m.api, m.pageGen, m.requestTimeout)
	}

	key, ok := m.selectedKey()
	if !ok {
		return m, nil
	}
	switch msg.String() {
	case "e", " ":
		return m.toggleKey(key)
	case "r":
		m.inputMode = inputModeKeyName
		m.input.EchoMode = textinput.EchoNormal
		m.input.Placeholder = "Key name"
		m.input.SetValue(key.Name)
		m.input.CursorEnd()
		m.input.Focus()
		m.status = "Rename key: Enter to save, Esc to cancel"
		return m, nil
	case "d", "delete":
		return m.askDelete(keyLabel(key))
	}
	return m, nil
}

func (m Model) selectedKey() (device.KeyRecord, bool) {
	if m.keyIndex < 0 || m.keyIndex >= len(m.keys) {
		return device.KeyRecord{}, false
	}
	return m.keys[m.keyIndex], true
}

func (m Model) toggleLearning() (tea.Model, tea.Cmd) {
	switch m.learn.Phase() {
	case learning.Idle:
		req, _ := m.learn.Start()
		m.status = "Starting learning mode..."
		return m, learnCmd(m.api, req, m.requestTimeout)
	case learning.Active:
		req, _ := m.learn.Stop()
		m.status = "Stopping learning mode..."
		return m, learnCmd(m.api, req, m.requestTimeout)
	default:
		return m, m.setNotice("Learning mode is changing, wait", events.SeverityWarning)
	}
}

// toggleKey patches the list before the device answers; a failure reloads.
func (m Model) toggleKey(key device.KeyRecord) (tea.Model, tea.Cmd) {
	enabled := !key.Enabled
	m.keys = append([]device.KeyRecord(nil), m.keys...)
	m.keys[m.keyIndex].Enabled = enabled
	upd := device.KeyUpdate{Code: key.Code, Enabled: &enabled}
	return m, mutateKeyCmd(m.pageGen, keyMutationToggle, key.Code, func(ctx context.Context) (device.Ack, error) {
		return m.api.UpdateKey(ctx, upd)
	}, m.requestTimeout)
}

func (m Model) renameSelectedKey(name string) (tea.Model, tea.Cmd) {
	key, ok := m.selectedKey()
	if !ok {
		return m, nil
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return m, m.setNotice("Key name cannot be empty", events.SeverityError)
	}
	m.keys = append([]device.KeyRecord(nil), m.keys...)
	m.keys[m.keyIndex].Name = name
	upd := device.KeyUpdate{Code: key.Code, Name: &name}
	return m, mutateKeyCmd(m.pageGen, keyMutationRename, key.Code, func(ctx context.Context) (device.Ack, error) {
		return m.api.UpdateKey(ctx, upd)
	}, m.requestTimeout)
}

func (m Model) deleteSelectedKey() (tea.Model, tea.Cmd) {
	key, ok := m.selectedKey()
	if !ok {
		return m, nil
	}
	m.keys = append(append([]device.KeyRecord(nil), m.keys[:m.keyIndex]...), m.keys[m.keyIndex+1:]...)
	m.keyIndex = tuiupdate.ClampInt(m.keyIndex, 0, len(m.keys)-1)
	m.status = "Deleting " + keyLabel(key) + "..."
	return m, mutateKeyCmd(m.pageGen, keyMutationDelete, key.Code, func(ctx context.Context) (device.Ack, error) {
		return m.api.DeleteKey(ctx, key.Code)
	}, m.requestTimeout)
}

func (m Model) onKeysLoaded(msg keysLoadedMsg) (tea.Model, tea.Cmd) {
	if msg.Err == nil {
		m.store.ConfirmKeys(len(msg.Keys))
	}
	if msg.Gen != m.pageGen || m.activeScreen != screenKeys {
		return m, nil
	}
	m.busy = false
	if msg.Err != nil {
		m.status = "Keys unavailable"
		return m, m.reportFailure("Could not load keys", msg.Err)
	}
	m.keys = msg.Keys
	m.keyIndex = tuiupdate.ClampInt(m.keyIndex, 0, len(m.keys)-1)
	m.status = fmt.Sprintf("%d key(s)", len(m.keys))
	return m, nil
}

// onKeyMutated applies confirmed count changes on any page; list repair
// only happens while the page that issued the change is still open.
func (m Model) onKeyMutated(msg keyMutatedMsg) (tea.Model, tea.Cmd) {
	current := msg.Gen == m.pageGen && m.activeScreen == screenKeys
	if msg.Err != nil {
		cmd := m.reportFailure(keyMutationLabel(msg.Op)+" failed", msg.Err)
		if !current {
			return m, cmd
		}
		return m, tea.Batch(cmd, loadKeysCmd(m.api, m.pageGen, m.requestTimeout))
	}

	switch msg.Op {
	case keyMutationDelete:
		m.store.AdjustKeys(-1, msg.Ack.Stamp)
		m.store.AddLog(fmt.Sprintf("Key %d deleted", msg.Code), events.SeverityWarning)
		return m, m.setNotice("Key deleted", events.SeveritySuccess)
	case keyMutationRename:
		return m, m.setNotice("Key renamed", events.SeveritySuccess)
	default:
		return m, nil
	}
}

func keyMutationLabel(op keyMutation) string {
	switch op {
	case keyMutationDelete:
		return "Delete key"
	case keyMutationRename:
		return "Rename key"
	default:
		return "Update key"
	}
}

func keyLabel(k device.KeyRecord) string {
	if strings.TrimSpace(k.Name) != "" {
		return k.Name
	}
	return fmt.Sprintf("key %d", k.Code)
}
