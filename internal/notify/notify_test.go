package notify

import (
	"errors"
	"testing"

	"github.com/rs/zerolog"
)

func TestDesktopPrefixesTitle(t *testing.T) {
	var gotTitle, gotBody string
	d := NewDesktop(zerolog.Nop())
	d.notify = func(title, message string) error {
		gotTitle, gotBody = title, message
		return nil
	}
	d.Send(Payload{Title: "Key", Content: "Key received: 42"})
	if gotTitle != "SmartGate - Key" || gotBody != "Key received: 42" {
		t.Fatalf("unexpected notification %q / %q", gotTitle, gotBody)
	}
}

func TestDesktopSwallowsErrors(t *testing.T) {
	d := NewDesktop(zerolog.Nop())
	calls := 0
	d.notify = func(string, string) error {
		calls++
		return errors.New("no dbus")
	}
	d.Send(Payload{Content: "x"})
	if calls != 1 {
		t.Fatalf("expected one attempt, got %d", calls)
	}
}
