package tui

import (
	tea "github.com/charmbracelet/bubbletea"

	"smartgate_go/internal/events"
	tuiupdate "smartgate_go/internal/tui/update"
)

func (m Model) updateKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.confirmDelete {
		return m.updateConfirm(msg)
	}

	switch msg.String() {
	case "ctrl+c", "q":
		return m.quit()
	case "m":
		return m.openScreen(screenHome)
	case "0", "b", "backspace":
		if m.activeScreen != screenHome {
			next, cmd := m.openScreen(screenHome)
			next.status = "Back to home"
			return next, cmd
		}
		m.status = "Home"
		return m, nil
	case "g":
		return m.triggerGate()
	}

	switch m.activeScreen {
	case screenHome:
		return m.updateHomeKeys(msg)
	case screenKeys:
		return m.updateKeysPageKeys(msg)
	case screenPhones:
		return m.updatePhoneKeys(msg)
	case screenWiFi:
		return m.updateWiFiKeys(msg)
	case screenRadio:
		return m.updateRadioKeys(msg)
	case screenLogs:
		return m.updateLogKeys(msg)
	case screenHelp:
		return m.updateHelpKeys(msg)
	default:
		return m, nil
	}
}

// openScreen switches pages. Leaving the keys page detaches the learning
// session so its timers and in-flight answers are dropped.
func (m Model) openScreen(s screen) (Model, tea.Cmd) {
	if m.activeScreen == screenKeys && s != screenKeys {
		m.learn.Detach()
	}
	m.activeScreen = s
	m.pageGen++
	m.confirmDelete = false
	m.busy = false

	switch s {
	case screenHome:
		m.status = "Home"
		return m, nil
	case screenKeys:
		m.status = "Keys"
		m.busy = true
		cmds := []tea.Cmd{loadKeysCmd(m.api, m.pageGen, m.requestTimeout)}
		if req, ok := m.learn.Observe(); ok {
			cmds = append(cmds, learnCmd(m.api, req, m.requestTimeout))
		}
		return m, tea.Batch(cmds...)
	case screenPhones:
		m.status = "Phones"
		m.busy = true
		return m, loadPhonesCmd(m.api, m.pageGen, m.requestTimeout)
	case screenWiFi:
		m.status = "Scanning WiFi..."
		m.busy = true
		return m, scanWiFiCmd(m.api, m.pageGen, m.requestTimeout)
	case screenRadio:
		m.status = "Radio"
		m.busy = true
		m.radioDirty = false
		return m, loadRadioCmd(m.api, m.pageGen, m.requestTimeout)
	case screenLogs:
		m.status = "Logs"
		m.logScroll = 0
		return m, nil
	case screenHelp:
		m.status = "Help"
		return m, nil
	}
	return m, nil
}

func (m Model) updateHomeKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "up", "k":
		m.homeIndex = tuiupdate.Wrap(m.homeIndex, -1, len(homeMenu))
		return m, nil
	case "down", "j":
		m.homeIndex = tuiupdate.Wrap(m.homeIndex, 1, len(homeMenu))
		return m, nil
	case "enter":
		return m.runHomeAction(m.homeIndex)
	}

	if idx, ok := tuiupdate.ParseDigit(msg.String()); ok && idx >= 1 && idx <= len(homeMenu) {
		m.homeIndex = idx - 1
		return m.runHomeAction(m.homeIndex)
	}
	return m, nil
}

func (m Model) runHomeAction(index int) (tea.Model, tea.Cmd) {
	switch index {
	case 0:
		return m.triggerGate()
	case 1:
		return m.openScreen(screenKeys)
	case 2:
		return m.openScreen(screenPhones)
	case 3:
		return m.openScreen(screenWiFi)
	case 4:
		return m.openScreen(screenRadio)
	case 5:
		return m.openScreen(screenLogs)
	case 6:
		return m.openScreen(screenHelp)
	}
	return m, nil
}

func (m Model) updateLogKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	maxScroll := tuiupdate.MaxScroll(len(m.store.Logs()), m.logViewSize())

	switch msg.String() {
	case "up", "k":
		if m.logScroll < maxScroll {
			m.logScroll++
		}
	case "down", "j":
		if m.logScroll > 0 {
			m.logScroll--
		}
	case "c":
		m.store.ClearLogs()
		if m.journal != nil {
			m.journal.Clear()
		}
		m.logScroll = 0
		m.status = "Logs cleared"
	}
	return m, nil
}

func (m Model) updateHelpKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "enter" {
		return m.openScreen(screenHome)
	}
	return m, nil
}

// updateConfirm resolves a pending delete: y confirms, anything else cancels.
func (m Model) updateConfirm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	m.confirmDelete = false
	if msg.String() != "y" {
		m.status = "Delete canceled"
		return m, nil
	}
	switch m.activeScreen {
	case screenKeys:
		return m.deleteSelectedKey()
	case screenPhones:
		return m.deleteSelectedPhone()
	}
	return m, nil
}

func (m Model) askDelete(label string) (tea.Model, tea.Cmd) {
	m.confirmDelete = true
	m.status = "Delete " + label + "? [y] confirm, any key cancels"
	return m, m.setNotice("Delete "+label+"?", events.SeverityWarning)
}
