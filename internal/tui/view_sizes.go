package tui

import "smartgate_go/internal/state"

func (m Model) listViewSize() int {
	if m.height <= 0 {
		return 8
	}
	size := m.height - 18
	if size < 4 {
		size = 4
	}
	if size > 14 {
		size = 14
	}
	return size
}

func (m Model) recentViewSize() int {
	if m.height <= 0 {
		return 5
	}
	size := m.height - 26
	if size < 2 {
		size = 2
	}
	if size > 10 {
		size = 10
	}
	return size
}

func (m Model) logViewSize() int {
	if m.height <= 0 {
		return 12
	}
	size := m.height - 10
	if size < 6 {
		size = 6
	}
	if size > 24 {
		size = 24
	}
	return size
}

// visibleLogs returns one screen of the console, oldest at the top.
// logScroll counts rows scrolled back from the newest entry.
func (m Model) visibleLogs(limit int) []state.LogEntry {
	logs := m.store.Logs()
	if len(logs) == 0 || limit <= 0 {
		return nil
	}

	start := m.logScroll
	if start > len(logs) {
		start = len(logs)
	}
	end := start + limit
	if end > len(logs) {
		end = len(logs)
	}

	window := logs[start:end]
	out := make([]state.LogEntry, len(window))
	for i, e := range window {
		out[len(window)-1-i] = e
	}
	return out
}
