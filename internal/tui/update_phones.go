package tui

import (
	"context"
	"fmt"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"smartgate_go/internal/device"
	"smartgate_go/internal/events"
	tuiupdate "smartgate_go/internal/tui/update"
)

func (m Model) updatePhoneKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "up", "k":
		m.phoneIndex = tuiupdate.Wrap(m.phoneIndex, -1, len(m.phones))
		return m, nil
	case "down", "j":
		m.phoneIndex = tuiupdate.Wrap(m.phoneIndex, 1, len(m.phones))
		return m, nil
	case "a":
		m.inputMode = inputModePhoneNumber
		m.input.EchoMode = textinput.EchoNormal
		m.input.Placeholder = "(999) 000-11-22"
		m.input.SetValue("")
		m.input.Focus()
		m.status = "New number after " + device.PhonePrefix + ": Enter to add, Esc to cancel"
		return m, nil
	case "u":
		m.busy = true
		m.status = "Reloading phones..."
		return m, loadPhonesCmd(m.api, m.pageGen, m.requestTimeout)
	}

	phone, ok := m.selectedPhone()
	if !ok {
		return m, nil
	}
	switch msg.String() {
	case "s":
		return m.togglePhone(phone, phoneMutationToggleSMS)
	case "c":
		return m.togglePhone(phone, phoneMutationToggleCall)
	case "d", "delete":
		return m.askDelete(phone.Number)
	}
	return m, nil
}

func (m Model) selectedPhone() (device.PhoneRecord, bool) {
	if m.phoneIndex < 0 || m.phoneIndex >= len(m.phones) {
		return device.PhoneRecord{}, false
	}
	return m.phones[m.phoneIndex], true
}

func (m Model) addPhone(raw string) (tea.Model, tea.Cmd) {
	number, err := device.NormalizePhone(raw)
	if err != nil {
		return m, m.setNotice(err.Error(), events.SeverityError)
	}
	for _, p := range m.phones {
		if p.Number == number {
			return m, m.setNotice(number+" is already listed", events.SeverityWarning)
		}
	}
	m.status = "Adding " + number + "..."
	return m, addPhoneCmd(m.api, m.pageGen, number, m.requestTimeout)
}

func (m Model) togglePhone(phone device.PhoneRecord, op phoneMutation) (tea.Model, tea.Cmd) {
	m.phones = append([]device.PhoneRecord(nil), m.phones...)
	upd := device.PhoneUpdate{ID: phone.ID}
	if op == phoneMutationToggleSMS {
		v := !phone.SMSEnabled
		m.phones[m.phoneIndex].SMSEnabled = v
		upd.SMSEnabled = &v
	} else {
		v := !phone.CallEnabled
		m.phones[m.phoneIndex].CallEnabled = v
		upd.CallEnabled = &v
	}
	return m, mutatePhoneCmd(m.pageGen, op, phone.ID, func(ctx context.Context) (device.Ack, error) {
		return m.api.UpdatePhone(ctx, upd)
	}, m.requestTimeout)
}

func (m Model) deleteSelectedPhone() (tea.Model, tea.Cmd) {
	phone, ok := m.selectedPhone()
	if !ok {
		return m, nil
	}
	m.phones = append(append([]device.PhoneRecord(nil), m.phones[:m.phoneIndex]...), m.phones[m.phoneIndex+1:]...)
	m.phoneIndex = tuiupdate.ClampInt(m.phoneIndex, 0, len(m.phones)-1)
	m.status = "Deleting " + phone.Number + "..."
	return m, mutatePhoneCmd(m.pageGen, phoneMutationDelete, phone.ID, func(ctx context.Context) (device.Ack, error) {
		return m.api.DeletePhone(ctx, phone.ID)
	}, m.requestTimeout)
}

func (m Model) onPhonesLoaded(msg phonesLoadedMsg) (tea.Model, tea.Cmd) {
	if msg.Err == nil {
		m.store.ConfirmPhones(len(msg.Phones))
	}
	if msg.Gen != m.pageGen || m.activeScreen != screenPhones {
		return m, nil
	}
	m.busy = false
	if msg.Err != nil {
		m.status = "Phones unavailable"
		return m, m.reportFailure("Could not load phones", msg.Err)
	}
	m.phones = msg.Phones
	m.phoneIndex = tuiupdate.ClampInt(m.phoneIndex, 0, len(m.phones)-1)
	m.status = fmt.Sprintf("%d phone(s)", len(m.phones))
	return m, nil
}

func (m Model) onPhoneMutated(msg phoneMutatedMsg) (tea.Model, tea.Cmd) {
	current := msg.Gen == m.pageGen && m.activeScreen == screenPhones
	if msg.Err != nil {
		cmd := m.reportFailure(phoneMutationLabel(msg.Op)+" failed", msg.Err)
		if !current {
			return m, cmd
		}
		return m, tea.Batch(cmd, loadPhonesCmd(m.api, m.pageGen, m.requestTimeout))
	}

	switch msg.Op {
	case phoneMutationAdd:
		m.store.AdjustPhones(1, msg.Ack.Stamp)
		m.store.AddLog("Phone "+msg.ID+" added", events.SeveritySuccess)
		if current {
			rec := msg.Record
			if rec.ID == "" {
				rec = device.PhoneRecord{ID: msg.ID, Number: msg.ID, SMSEnabled: true, CallEnabled: true}
			}
			m.phones = append(append([]device.PhoneRecord(nil), m.phones...), rec)
			m.phoneIndex = len(m.phones) - 1
			m.status = fmt.Sprintf("%d phone(s)", len(m.phones))
		}
		return m, m.setNotice("Phone added", events.SeveritySuccess)
	case phoneMutationDelete:
		m.store.AdjustPhones(-1, msg.Ack.Stamp)
		m.store.AddLog("Phone "+msg.ID+" deleted", events.SeverityWarning)
		return m, m.setNotice("Phone deleted", events.SeveritySuccess)
	default:
		return m, nil
	}
}

func phoneMutationLabel(op phoneMutation) string {
	switch op {
	case phoneMutationAdd:
		return "Add phone"
	case phoneMutationDelete:
		return "Delete phone"
	case phoneMutationToggleSMS:
		return "SMS toggle"
	default:
		return "Call toggle"
	}
}
