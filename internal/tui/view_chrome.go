package tui

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"

	"smartgate_go/internal/events"
	tuiupdate "smartgate_go/internal/tui/update"
)

func (m Model) tabsLine() string {
	tabs := []struct {
		name   string
		screen screen
	}{
		{name: "Home", screen: screenHome},
		{name: "Keys", screen: screenKeys},
		{name: "Phones", screen: screenPhones},
		{name: "WiFi", screen: screenWiFi},
		{name: "Radio", screen: screenRadio},
		{name: "Logs", screen: screenLogs},
		{name: "Help", screen: screenHelp},
	}

	parts := make([]string, 0, len(tabs))
	for _, tab := range tabs {
		if tab.screen == m.activeScreen {
			parts = append(parts, activeTabStyle.Render(tab.name))
		} else {
			parts = append(parts, tabStyle.Render(tab.name))
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, parts...)
}

// metaLine summarizes the device; link and learning state are badges.
func (m Model) metaLine() string {
	wifi := "WiFi " + string(m.store.WifiStatus())
	if snap, ok := m.store.Wifi(); ok {
		wifi = fmt.Sprintf("WiFi %s %s %s", snap.SSID, tuiupdate.SignalBars(snap.RSSI), snap.IP)
	}
	return fmt.Sprintf("%s | Keys %s | Phones %s",
		wifi, countText(m.store.KeyCount()), countText(m.store.PhoneCount()))
}

func (m Model) footerLines() []string {
	if m.inputMode != inputModeNone {
		return []string{
			"> " + m.input.View(),
			"Keys: [Enter] Confirm  [Esc] Cancel",
		}
	}
	if m.confirmDelete {
		return []string{"Keys: [y] Delete  [any key] Cancel"}
	}

	switch m.activeScreen {
	case screenHome:
		return []string{"Keys: [1..7] Open  [Enter] Open  [g] Gate  [q] Exit"}
	case screenKeys:
		return []string{"Keys: [l] Learn on/off  [e] Enable  [r] Rename  [d] Delete  [u] Reload  [0/b] Back"}
	case screenPhones:
		return []string{"Keys: [a] Add  [s] SMS  [c] Call  [d] Delete  [u] Reload  [0/b] Back"}
	case screenWiFi:
		return []string{"Keys: [Enter] Connect  [s] Scan  [0/b] Back"}
	case screenRadio:
		return []string{"Keys: [Enter] Edit  [p] Preset  [w] Save  [x] Defaults  [u] Reload  [0/b] Back"}
	case screenLogs:
		return []string{"Keys: [Up/Down] Scroll  [c] Clear  [0/b] Back"}
	case screenHelp:
		return []string{"Keys: [0/b] Back  [m] Home  [q] Exit"}
	default:
		return []string{"Keys: [0/b] Back  [q] Exit"}
	}
}

// statusLine prefers the live notice over the navigation status.
func (m Model) statusLine() (string, events.Severity) {
	if n, ok := m.store.Notice(); ok {
		return severityTag(n.Severity) + " " + n.Text, n.Severity
	}
	if m.busy {
		return m.spin.View() + " " + m.status, events.SeverityInfo
	}
	return m.status, events.SeverityInfo
}

func severityTag(sev events.Severity) string {
	switch sev {
	case events.SeveritySuccess:
		return "[OK]"
	case events.SeverityWarning:
		return "[WARN]"
	case events.SeverityError:
		return "[ERR]"
	default:
		return "[INFO ]"
	}
}

func countText(n int, known bool) string {
	if !known {
		return "?"
	}
	return fmt.Sprintf("%d", n)
}
