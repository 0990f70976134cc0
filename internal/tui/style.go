package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"smartgate_go/internal/events"
	"smartgate_go/internal/learning"
	"smartgate_go/internal/push"
)

var (
	frameStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1)

	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("255")).
			Bold(true)

	pageTitleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("252")).
			Underline(true).
			Bold(true)

	badgeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("0")).
			Padding(0, 1).
			Bold(true)

	tabStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245")).
			Padding(0, 1)

	activeTabStyle = tabStyle.
			Foreground(lipgloss.Color("0")).
			Background(lipgloss.Color("250")).
			Bold(true)

	metaStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("250"))

	bodyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("252"))

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("0")).
			Background(lipgloss.Color("255")).
			Bold(true)

	learningRowStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("213")).
				Bold(true)

	hintStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245"))

	promptStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("255")).
			Bold(true)
)

var linkColors = map[push.State]lipgloss.Color{
	push.Connected:    "42",
	push.Connecting:   "221",
	push.Disconnected: "203",
}

var severityColors = map[events.Severity]lipgloss.Color{
	events.SeverityInfo:    "252",
	events.SeveritySuccess: "42",
	events.SeverityWarning: "221",
	events.SeverityError:   "203",
}

func linkBadge(st push.State) string {
	label := "GATE OFFLINE"
	switch st {
	case push.Connected:
		label = "GATE ONLINE"
	case push.Connecting:
		label = "GATE CONNECTING"
	}
	return badgeStyle.Background(linkColors[st]).Render(label)
}

// learnBadge is empty while the controller is idle.
func learnBadge(p learning.Phase) string {
	if p == learning.Idle {
		return ""
	}
	return badgeStyle.Background(lipgloss.Color("213")).Render("LEARN " + strings.ToUpper(p.String()))
}

func severityStyle(sev events.Severity) lipgloss.Style {
	c, ok := severityColors[sev]
	if !ok {
		c = severityColors[events.SeverityInfo]
	}
	return lipgloss.NewStyle().Foreground(c).Bold(sev != events.SeverityInfo)
}

// rowStyle styles a page body line by its leading marker.
func rowStyle(line string) lipgloss.Style {
	switch {
	case strings.HasPrefix(line, "▶ "):
		return selectedStyle
	case line == backHomeLine:
		return hintStyle
	case strings.HasPrefix(line, "Learning: ") && line != "Learning: off":
		return learningRowStyle
	default:
		return bodyStyle
	}
}
