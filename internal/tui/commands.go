package tui

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"smartgate_go/internal/device"
	"smartgate_go/internal/learning"
	"smartgate_go/internal/push"
)

func connectCmd(link Link) tea.Cmd {
	return func() tea.Msg {
		_ = link.Connect()
		return nil
	}
}

func waitPushCmd(ch <-chan push.Message) tea.Cmd {
	return func() tea.Msg {
		msg, ok := <-ch
		if !ok {
			return pushClosedMsg{}
		}
		return pushMsg{Msg: msg}
	}
}

func loadStatsCmd(api DeviceAPI, timeout time.Duration) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		var msg statsLoadedMsg
		msg.Phones, msg.PhonesErr = api.Phones(ctx)
		msg.Keys, msg.KeysErr = api.Keys(ctx)
		return msg
	}
}

// learnCmd performs the device call req asks for.
func learnCmd(api DeviceAPI, req learning.Request, timeout time.Duration) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		msg := learnResultMsg{Req: req}
		switch req.Op {
		case learning.OpStart:
			_, msg.Err = api.StartLearning(ctx)
		case learning.OpStop:
			_, msg.Err = api.StopLearning(ctx)
		default:
			msg.Status, msg.Err = api.LearnStatus(ctx)
		}
		return msg
	}
}

func learnTickCmd(d time.Duration, tick learning.Tick) tea.Cmd {
	return tea.Tick(d, func(time.Time) tea.Msg {
		return learnTickMsg{Tick: tick}
	})
}

func gateCmd(api DeviceAPI, token uint64, timeout time.Duration) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		ack, err := api.TriggerGate(ctx)
		return gateDoneMsg{Token: token, Ack: ack, Err: err}
	}
}

func gateReleaseCmd(d time.Duration, token uint64) tea.Cmd {
	return tea.Tick(d, func(time.Time) tea.Msg {
		return gateReleaseMsg{Token: token}
	})
}

func noticeExpiryCmd(d time.Duration, seq uint64) tea.Cmd {
	return tea.Tick(d, func(time.Time) tea.Msg {
		return noticeExpiredMsg{Seq: seq}
	})
}

func loadKeysCmd(api DeviceAPI, gen uint64, timeout time.Duration) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		keys, err := api.Keys(ctx)
		return keysLoadedMsg{Gen: gen, Keys: keys, Err: err}
	}
}

func mutateKeyCmd(gen uint64, op keyMutation, code uint64, call func(context.Context) (device.Ack, error), timeout time.Duration) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		ack, err := call(ctx)
		return keyMutatedMsg{Gen: gen, Op: op, Code: code, Ack: ack, Err: err}
	}
}

func loadPhonesCmd(api DeviceAPI, gen uint64, timeout time.Duration) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		phones, err := api.Phones(ctx)
		return phonesLoadedMsg{Gen: gen, Phones: phones, Err: err}
	}
}

func addPhoneCmd(api DeviceAPI, gen uint64, number string, timeout time.Duration) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		rec, ack, err := api.AddPhone(ctx, number)
		return phoneMutatedMsg{Gen: gen, Op: phoneMutationAdd, ID: number, Record: rec, Ack: ack, Err: err}
	}
}

func mutatePhoneCmd(gen uint64, op phoneMutation, id string, call func(context.Context) (device.Ack, error), timeout time.Duration) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		ack, err := call(ctx)
		return phoneMutatedMsg{Gen: gen, Op: op, ID: id, Ack: ack, Err: err}
	}
}

func scanWiFiCmd(api DeviceAPI, gen uint64, timeout time.Duration) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		nets, err := api.ScanWiFi(ctx)
		return wifiScannedMsg{Gen: gen, Networks: nets, Err: err}
	}
}

func connectWiFiCmd(api DeviceAPI, gen uint64, ssid, password string, timeout time.Duration) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		res, err := api.ConnectWiFi(ctx, ssid, password)
		return wifiConnectedMsg{Gen: gen, SSID: ssid, Result: res, Err: err}
	}
}

func loadRadioCmd(api DeviceAPI, gen uint64, timeout time.Duration) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		cfg, err := api.RadioConfig(ctx)
		return radioLoadedMsg{Gen: gen, Config: cfg, Err: err}
	}
}

func saveRadioCmd(api DeviceAPI, gen uint64, cfg device.RadioConfig, timeout time.Duration) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		saved, _, err := api.ApplyRadioSettings(ctx, cfg)
		return radioSavedMsg{Gen: gen, Config: saved, Err: err}
	}
}
