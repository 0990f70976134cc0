package tui

import (
	"fmt"

	"smartgate_go/internal/bands"
	"smartgate_go/internal/learning"
	tuiupdate "smartgate_go/internal/tui/update"
)

func (m Model) homePageLines() []string {
	lines := []string{"Home"}
	lines = append(lines, "Main Menu")
	for i, item := range homeMenu {
		prefix := "  "
		if i == m.homeIndex {
			prefix = "▶ "
		}
		lines = append(lines, fmt.Sprintf("%s%d. %s", prefix, i+1, item.Label))
	}
	lines = append(lines, "")
	selected := homeMenu[m.homeIndex]
	lines = append(lines, "Selected: "+selected.Label)
	lines = append(lines, selected.Desc)

	recent := m.store.RecentKeys()
	lines = append(lines, "", "Recent Keys")
	if len(recent) == 0 {
		return append(lines, "No key received yet")
	}
	limit := tuiupdate.ClampInt(len(recent), 0, m.recentViewSize())
	for _, k := range recent[:limit] {
		lines = append(lines, fmt.Sprintf("%s  %d  %d bit  proto %d", formatShortTime(k.ReceivedAt), k.Code, k.BitLength, k.Protocol))
	}
	return lines
}

func (m Model) keysPageLines() []string {
	lines := []string{"Keys"}
	switch m.learn.Phase() {
	case learning.Active:
		since := ""
		if sess, ok := m.learn.Session(); ok {
			since = " since " + formatShortTime(sess.StartedAt)
			if sess.Adopted {
				since += " (started on device)"
			}
		}
		lines = append(lines, "Learning: "+m.spin.View()+" ON, press the remote button"+since)
	case learning.Starting, learning.Stopping:
		lines = append(lines, "Learning: "+m.spin.View()+" "+m.learn.Phase().String()+"...")
	default:
		lines = append(lines, "Learning: off")
	}

	if len(m.keys) == 0 {
		if m.busy {
			return append(lines, "", "Loading...")
		}
		return append(lines, "", "No keys stored", "Press l to learn one")
	}

	start, end := tuiupdate.ListWindow(m.keyIndex, len(m.keys), m.listViewSize())
	lines = append(lines, "", "Stored Keys")
	for i := start; i < end; i++ {
		k := m.keys[i]
		prefix := "  "
		if i == m.keyIndex {
			prefix = "▶ "
		}
		lines = append(lines, fmt.Sprintf("%s%d. %-16s %10d  %s", prefix, i+1, trimText(keyLabel(k), 16), k.Code, onOff(k.Enabled)))
	}

	if k, ok := m.selectedKey(); ok {
		lines = append(lines, "")
		lines = append(lines, fmt.Sprintf("Selected: %s  code %d (0x%X)", keyLabel(k), k.Code, k.Code))
		if k.BitLength > 0 {
			lines = append(lines, fmt.Sprintf("Signal: %d bit, protocol %d", k.BitLength, k.Protocol))
		}
	}
	return lines
}

func (m Model) phonesPageLines() []string {
	lines := []string{"Phones"}
	if len(m.phones) == 0 {
		if m.busy {
			return append(lines, "Loading...")
		}
		return append(lines, "No phone numbers", "Press a to add one")
	}

	start, end := tuiupdate.ListWindow(m.phoneIndex, len(m.phones), m.listViewSize())
	lines = append(lines, "Allowed Numbers")
	for i := start; i < end; i++ {
		p := m.phones[i]
		prefix := "  "
		if i == m.phoneIndex {
			prefix = "▶ "
		}
		lines = append(lines, fmt.Sprintf("%s%d. %-14s SMS %-3s  Call %s", prefix, i+1, p.Number, onOff(p.SMSEnabled), onOff(p.CallEnabled)))
	}
	return lines
}

func (m Model) wifiPageLines() []string {
	lines := []string{"WiFi"}
	if snap, ok := m.store.Wifi(); ok {
		lines = append(lines, fmt.Sprintf("Connected: %s  IP %s  %d dBm", snap.SSID, snap.IP, snap.RSSI))
	} else {
		lines = append(lines, "Status: "+string(m.store.WifiStatus()))
	}

	if len(m.networks) == 0 {
		if m.busy {
			return append(lines, "", "Scanning...")
		}
		return append(lines, "", "No networks found", "Press s to scan")
	}

	start, end := tuiupdate.ListWindow(m.wifiIndex, len(m.networks), m.listViewSize())
	lines = append(lines, "", "Networks")
	for i := start; i < end; i++ {
		n := m.networks[i]
		prefix := "  "
		if i == m.wifiIndex {
			prefix = "▶ "
		}
		lock := "locked"
		if n.Open() {
			lock = "open"
		}
		lines = append(lines, fmt.Sprintf("%s%-24s %s %4d dBm  %s", prefix, trimText(n.SSID, 24), tuiupdate.SignalBars(n.RSSI), n.RSSI, lock))
	}
	return lines
}

func (m Model) radioPageLines() []string {
	lines := []string{"Radio"}
	state := "saved"
	if m.radioDirty {
		state = "unsaved changes"
	}
	lines = append(lines, "CC1101 receiver ("+state+")", "Band: "+bands.Label(m.radio.Frequency), "")
	for i, name := range radioFields {
		prefix := "  "
		if i == m.radioIndex {
			prefix = "▶ "
		}
		lines = append(lines, fmt.Sprintf("%s%-20s %s", prefix, name, radioFieldValue(m.radio, i)))
	}
	if m.radio.RSSI != 0 {
		lines = append(lines, "", fmt.Sprintf("Current RSSI: %d dBm", m.radio.RSSI))
	}
	return lines
}

func (m Model) logsPageLines() []string {
	lines := []string{"Logs"}
	logs := m.store.Logs()
	if len(logs) == 0 {
		return append(lines, "No logs yet")
	}

	lines = append(lines, "")
	for _, e := range m.visibleLogs(m.logViewSize()) {
		lines = append(lines, fmt.Sprintf("%s %s %s", formatShortTime(e.At), severityTag(e.Severity), e.Message))
	}
	lines = append(lines, "")
	lines = append(lines, fmt.Sprintf("Total:%d  Scroll:%d", len(logs), m.logScroll))
	return lines
}

func (m Model) helpPageLines() []string {
	return []string{
		"Help",
		"",
		"Recommended flow:",
		"1) Home -> Keys",
		"2) l starts learning mode",
		"3) Press the remote button near the gate",
		"4) The new key shows up and learning ends",
		"5) g opens the gate from any page",
		"",
		"Global keys: q quit, m home, b back, g gate",
		"Move keys: j/k or up/down",
		"Select key: enter",
	}
}
