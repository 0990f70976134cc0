package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	tuiupdate "smartgate_go/internal/tui/update"
)

const backHomeLine = "◀ 0. Back to Home"

func (m Model) View() string {
	width := m.frameWidth()
	header := frameStyle.Width(width).Render(strings.Join(m.headerRows(), "\n"))
	footer := frameStyle.Width(width).Render(m.footerBlock(width))

	page := m.pageLines()
	body := fitPageBody(page[1:], m.pageBudget(lipgloss.Height(header), lipgloss.Height(footer)))
	rows := make([]string, 0, len(body)+1)
	rows = append(rows, pageTitleStyle.Render(strings.ToUpper(page[0])))
	for _, line := range body {
		rows = append(rows, rowStyle(line).Render(trimText(line, width-2)))
	}
	panel := frameStyle.Width(width).Render(strings.Join(rows, "\n"))

	return lipgloss.JoinVertical(lipgloss.Left, header, panel, footer)
}

// headerRows is the title with link and learning badges, the tabs, the
// device summary and the status line coloured by severity.
func (m Model) headerRows() []string {
	badges := []string{titleStyle.Render("SmartGate Control Panel"), linkBadge(m.store.Connection())}
	if b := learnBadge(m.learn.Phase()); b != "" {
		badges = append(badges, b)
	}
	text, sev := m.statusLine()
	return []string{
		strings.Join(badges, " "),
		m.tabsLine(),
		metaStyle.Render(m.metaLine()),
		severityStyle(sev).Render(text),
	}
}

func (m Model) footerBlock(width int) string {
	lines := m.footerLines()
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		style := hintStyle
		if strings.HasPrefix(line, "> ") {
			style = promptStyle
		}
		out = append(out, style.Render(trimText(line, width-2)))
	}
	return strings.Join(out, "\n")
}

// pageBudget is the number of body rows that fit between header and footer.
func (m Model) pageBudget(headerHeight, footerHeight int) int {
	height := m.height
	if height <= 0 {
		height = 24
	}
	// Frame borders plus the page title row.
	return height - headerHeight - footerHeight - 3
}

// fitPageBody keeps the selected row in view and the back line pinned to
// the bottom when the page is taller than budget.
func fitPageBody(lines []string, budget int) []string {
	if budget < 3 {
		budget = 3
	}
	if len(lines) <= budget {
		return lines
	}

	var tail []string
	if lines[len(lines)-1] == backHomeLine {
		tail = []string{backHomeLine}
		lines = lines[:len(lines)-1]
		budget--
	}
	cursor := 0
	for i, line := range lines {
		if strings.HasPrefix(line, "▶ ") {
			cursor = i
			break
		}
	}
	start, end := tuiupdate.ListWindow(cursor, len(lines), budget-1)
	out := make([]string, 0, budget+len(tail))
	out = append(out, lines[start:end]...)
	out = append(out, fmt.Sprintf("... %d more line(s)", len(lines)-(end-start)))
	return append(out, tail...)
}

func (m Model) pageLines() []string {
	var lines []string
	switch m.activeScreen {
	case screenHome:
		lines = m.homePageLines()
	case screenKeys:
		lines = m.keysPageLines()
	case screenPhones:
		lines = m.phonesPageLines()
	case screenWiFi:
		lines = m.wifiPageLines()
	case screenRadio:
		lines = m.radioPageLines()
	case screenLogs:
		lines = m.logsPageLines()
	case screenHelp:
		lines = m.helpPageLines()
	default:
		lines = []string{"Unknown page"}
	}
	return append(lines, "", backHomeLine)
}

func (m Model) frameWidth() int {
	if m.width <= 0 {
		return 78
	}
	return tuiupdate.ClampInt(m.width-2, 36, 120)
}
