package tui

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"smartgate_go/internal/config"
	"smartgate_go/internal/device"
	"smartgate_go/internal/journal"
	"smartgate_go/internal/logging"
	"smartgate_go/internal/mirror"
	"smartgate_go/internal/notify"
	"smartgate_go/internal/push"
	"smartgate_go/internal/state"
)

// Run wires the panel for cfg and blocks until the operator quits.
func Run(ctx context.Context, cfg config.Config) error {
	logger := logging.Component("tui")

	resolveCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	host := cfg.ResolveHost(resolveCtx)
	cancel()
	logger.Info().Str("host", host).Msg("device host resolved")

	storeOpts := []state.Option{}
	var jrnl Journal
	var restoreLogs []state.LogEntry
	var restoreKeys []state.RecentKey
	if cfg.JournalPath != "" {
		j, err := journal.Open(ctx, cfg.JournalPath, logging.Component("journal"))
		if err != nil {
			logger.Warn().Err(err).Msg("journal disabled")
		} else {
			restoreLogs, err = j.LoadLogs(ctx, state.LogCapacity)
			if err != nil {
				logger.Warn().Err(err).Msg("restore console")
			}
			restoreKeys, err = j.LoadRecentKeys(ctx, state.RecentKeyCapacity)
			if err != nil {
				logger.Warn().Err(err).Msg("restore recent keys")
			}
			storeOpts = append(storeOpts, state.WithRecorder(j))
			jrnl = j
		}
	}
	store := state.NewStore(storeOpts...)
	store.Restore(restoreLogs, restoreKeys)

	var notifier notify.Sender = notify.Nop{}
	if cfg.DesktopNotify {
		notifier = notify.NewDesktop(logging.Component("notify"))
	}

	var mir EventMirror
	if cfg.MQTTBroker != "" {
		mm, err := mirror.Connect(mirror.Options{
			Broker:   cfg.MQTTBroker,
			ClientID: cfg.MQTTClientID,
			Prefix:   cfg.MQTTTopicPrefix,
			Device:   host,
		}, logging.Component("mirror"))
		if err != nil {
			logger.Warn().Err(err).Msg("mqtt mirror disabled")
		} else {
			mir = mm
		}
	}

	link := push.NewChannel(cfg.PushURL(host),
		push.WithBackoff(cfg.ReconnectDelay),
		push.WithIdleTimeout(cfg.PushIdleTimeout),
		push.WithLogger(logging.Component("push")),
	)

	model := NewModel(Deps{
		Device:         device.New(cfg.BaseURL(host), cfg.RequestTimeout),
		Link:           link,
		Store:          store,
		Notifier:       notifier,
		Mirror:         mir,
		Journal:        jrnl,
		Logger:         logger,
		RequestTimeout: cfg.RequestTimeout,
		PollInterval:   cfg.LearnPollInterval,
		GateCooldown:   cfg.GateCooldown,
		DeviceLabel:    host,
	})

	program := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
	final, err := program.Run()
	if m, ok := final.(Model); ok && !m.quitting {
		// Interrupted from outside the loop; release what quit would have.
		_, _ = m.quit()
	}
	return err
}
