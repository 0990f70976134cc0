package tui

import (
	tea "github.com/charmbracelet/bubbletea"
)

func (m Model) updateInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		return m.quit()
	case "esc":
		m.closeInput()
		m.status = "Canceled"
		return m, nil
	case "enter":
		mode := m.inputMode
		value := m.input.Value()
		m.closeInput()
		switch mode {
		case inputModePhoneNumber:
			return m.addPhone(value)
		case inputModeKeyName:
			return m.renameSelectedKey(value)
		case inputModeWiFiPassword:
			return m.connectWiFi(value)
		case inputModeRadioField:
			return m.setRadioField(value)
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) closeInput() {
	m.inputMode = inputModeNone
	m.input.Blur()
	m.input.SetValue("")
}
