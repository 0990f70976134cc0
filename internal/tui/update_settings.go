package tui

import (
	"fmt"
	"strconv"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"smartgate_go/internal/bands"
	"smartgate_go/internal/device"
	"smartgate_go/internal/events"
	"smartgate_go/internal/notify"
	tuiupdate "smartgate_go/internal/tui/update"
)

func (m Model) updateWiFiKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "up", "k":
		m.wifiIndex = tuiupdate.Wrap(m.wifiIndex, -1, len(m.networks))
		return m, nil
	case "down", "j":
		m.wifiIndex = tuiupdate.Wrap(m.wifiIndex, 1, len(m.networks))
		return m, nil
	case "s", "u":
		m.busy = true
		m.status = "Scanning WiFi..."
		return m, scanWiFiCmd(m.api, m.pageGen, m.requestTimeout)
	case "enter":
		if m.wifiIndex < 0 || m.wifiIndex >= len(m.networks) {
			return m, nil
		}
		network := m.networks[m.wifiIndex]
		m.wifiSSID = network.SSID
		if network.Open() {
			return m.connectWiFi("")
		}
		m.inputMode = inputModeWiFiPassword
		m.input.EchoMode = textinput.EchoPassword
		m.input.Placeholder = "Password"
		m.input.SetValue("")
		m.input.Focus()
		m.status = "Password for " + network.SSID + ": Enter to connect, Esc to cancel"
		return m, nil
	}
	return m, nil
}

func (m Model) connectWiFi(password string) (tea.Model, tea.Cmd) {
	m.busy = true
	m.status = "Connecting to " + m.wifiSSID + "..."
	return m, connectWiFiCmd(m.api, m.pageGen, m.wifiSSID, password, m.requestTimeout)
}

func (m Model) onWiFiScanned(msg wifiScannedMsg) (tea.Model, tea.Cmd) {
	if msg.Gen != m.pageGen || m.activeScreen != screenWiFi {
		return m, nil
	}
	m.busy = false
	if msg.Err != nil {
		m.status = "Scan failed"
		return m, m.reportFailure("WiFi scan failed", msg.Err)
	}
	m.networks = msg.Networks
	m.wifiIndex = tuiupdate.ClampInt(m.wifiIndex, 0, len(m.networks)-1)
	m.status = fmt.Sprintf("%d network(s) found", len(m.networks))
	return m, nil
}

// onWiFiConnected reports the join result even if the page was left, since
// the device may have moved networks.
func (m Model) onWiFiConnected(msg wifiConnectedMsg) (tea.Model, tea.Cmd) {
	if msg.Gen == m.pageGen {
		m.busy = false
	}
	if msg.Err != nil {
		return m, m.reportFailure("WiFi connect failed", msg.Err)
	}
	if !msg.Result.Success {
		reason := msg.Result.Error
		if reason == "" {
			reason = "device refused"
		}
		text := "WiFi connect to " + msg.SSID + " failed: " + reason
		m.store.AddLog(text, events.SeverityError)
		m.status = "WiFi connect failed"
		return m, m.setNotice(text, events.SeverityError)
	}
	text := "Connected to " + msg.SSID
	if msg.Result.IP != "" {
		text += ", IP " + msg.Result.IP
	}
	m.status = text
	m.notifier.Send(notify.Payload{Title: "WiFi", Content: text})
	return m, m.setNotice(text, events.SeveritySuccess)
}

func (m Model) updateRadioKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "up", "k":
		m.radioIndex = tuiupdate.Wrap(m.radioIndex, -1, len(radioFields))
		return m, nil
	case "down", "j":
		m.radioIndex = tuiupdate.Wrap(m.radioIndex, 1, len(radioFields))
		return m, nil
	case "enter":
		m.inputMode = inputModeRadioField
		m.input.EchoMode = textinput.EchoNormal
		m.input.Placeholder = radioFields[m.radioIndex]
		m.input.SetValue(radioFieldValue(m.radio, m.radioIndex))
		m.input.CursorEnd()
		m.input.Focus()
		m.status = "Edit " + radioFields[m.radioIndex] + ": Enter to set, Esc to cancel"
		return m, nil
	case "p":
		band := bands.Next(m.radio.Frequency)
		m.radio.Frequency = band.Frequency
		m.radioIndex = 0
		m.radioDirty = true
		m.status = "Preset " + band.Name + ", press w to save"
		return m, nil
	case "x":
		m.radio = device.DefaultRadioConfig()
		m.radioDirty = true
		m.status = "Defaults loaded, press w to save"
		return m, nil
	case "w":
		if err := m.radio.Validate(); err != nil {
			return m, m.setNotice(err.Error(), events.SeverityError)
		}
		m.busy = true
		m.status = "Saving radio settings..."
		return m, saveRadioCmd(m.api, m.pageGen, m.radio, m.requestTimeout)
	case "u":
		m.busy = true
		m.radioDirty = false
		m.status = "Reloading radio settings..."
		return m, loadRadioCmd(m.api, m.pageGen, m.requestTimeout)
	}
	return m, nil
}

func (m Model) setRadioField(raw string) (tea.Model, tea.Cmd) {
	v, err := tuiupdate.ParseRadioField(raw)
	if err != nil {
		return m, m.setNotice(err.Error(), events.SeverityError)
	}
	switch m.radioIndex {
	case 0:
		m.radio.Frequency = v
	case 1:
		m.radio.BitRate = v
	case 2:
		m.radio.FrequencyDeviation = v
	case 3:
		m.radio.RxBandwidth = v
	case 4:
		m.radio.OutputPower = int(v)
	}
	m.radioDirty = true
	m.status = radioFields[m.radioIndex] + " set, press w to save"
	return m, nil
}

func radioFieldValue(cfg device.RadioConfig, index int) string {
	switch index {
	case 0:
		return strconv.FormatFloat(cfg.Frequency, 'f', -1, 64)
	case 1:
		return strconv.FormatFloat(cfg.BitRate, 'f', -1, 64)
	case 2:
		return strconv.FormatFloat(cfg.FrequencyDeviation, 'f', -1, 64)
	case 3:
		return strconv.FormatFloat(cfg.RxBandwidth, 'f', -1, 64)
	case 4:
		return strconv.Itoa(cfg.OutputPower)
	}
	return ""
}

func (m Model) onRadioLoaded(msg radioLoadedMsg) (tea.Model, tea.Cmd) {
	if msg.Gen != m.pageGen || m.activeScreen != screenRadio {
		return m, nil
	}
	m.busy = false
	if msg.Err != nil {
		m.status = "Radio settings unavailable, showing defaults"
		return m, m.reportFailure("Could not load radio settings", msg.Err)
	}
	m.radio = msg.Config
	m.radioDirty = false
	m.status = "Radio settings loaded"
	return m, nil
}

func (m Model) onRadioSaved(msg radioSavedMsg) (tea.Model, tea.Cmd) {
	current := msg.Gen == m.pageGen && m.activeScreen == screenRadio
	if current {
		m.busy = false
	}
	if msg.Err != nil {
		return m, m.reportFailure("Saving radio settings failed", msg.Err)
	}
	if current {
		rssi := m.radio.RSSI
		m.radio = msg.Config
		m.radio.RSSI = rssi
		m.radioDirty = false
		m.status = "Radio settings saved"
	}
	m.store.AddLog(fmt.Sprintf("Radio set to %.2f MHz", msg.Config.Frequency), events.SeveritySuccess)
	return m, m.setNotice("Radio settings saved", events.SeveritySuccess)
}
