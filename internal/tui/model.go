package tui

import (
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"smartgate_go/internal/device"
	"smartgate_go/internal/gate"
	"smartgate_go/internal/learning"
	"smartgate_go/internal/notify"
	"smartgate_go/internal/state"
)

const (
	defaultRequestTimeout = 12 * time.Second
	defaultPollInterval   = 2 * time.Second
	defaultNoticeTTL      = 4 * time.Second
)

func NewModel(deps Deps) Model {
	in := textinput.New()
	in.CharLimit = 64
	in.Width = 40

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	store := deps.Store
	if store == nil {
		store = state.NewStore()
	}
	notifier := deps.Notifier
	if notifier == nil {
		notifier = notify.Nop{}
	}

	m := Model{
		api:            deps.Device,
		link:           deps.Link,
		store:          store,
		dispatch:       state.NewDispatcher(store, deps.Logger),
		learn:          learning.NewController(),
		gate:           gate.NewDebouncer(deps.GateCooldown),
		notifier:       notifier,
		mirror:         deps.Mirror,
		journal:        deps.Journal,
		log:            deps.Logger,
		requestTimeout: orDuration(deps.RequestTimeout, defaultRequestTimeout),
		pollInterval:   orDuration(deps.PollInterval, defaultPollInterval),
		noticeTTL:      orDuration(deps.NoticeTTL, defaultNoticeTTL),
		deviceLabel:    deps.DeviceLabel,
		activeScreen:   screenHome,
		status:         "Ready",
		input:          in,
		spin:           sp,
		radio:          device.DefaultRadioConfig(),
	}
	if m.deviceLabel == "" && m.link != nil {
		m.deviceLabel = m.link.URL()
	}
	return m
}

// Init opens the push channel and pulls the authoritative counts.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{m.spin.Tick}
	if m.link != nil {
		cmds = append(cmds, connectCmd(m.link), waitPushCmd(m.link.Messages()))
	}
	if m.api != nil {
		cmds = append(cmds, loadStatsCmd(m.api, m.requestTimeout))
	}
	return tea.Batch(cmds...)
}

func orDuration(v, fallback time.Duration) time.Duration {
	if v <= 0 {
		return fallback
	}
	return v
}
