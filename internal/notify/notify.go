package notify

import (
	"github.com/gen2brain/beeep"
	"github.com/rs/zerolog"
)

const appName = "SmartGate"

// Payload is one operator-facing notification.
type Payload struct {
	Title   string
	Content string
}

// Sender delivers notifications. Failures are the sender's concern.
type Sender interface {
	Send(p Payload)
}

// Desktop shows native notifications through beeep.
type Desktop struct {
	log    zerolog.Logger
	notify func(title, message string) error
}

func NewDesktop(logger zerolog.Logger) *Desktop {
	return &Desktop{
		log:    logger,
		notify: func(title, message string) error {
			return beeep.Notify(title, message, "")
		},
	}
}

func (d *Desktop) Send(p Payload) {
	title := appName
	if p.Title != "" {
		title = appName + " - " + p.Title
	}
	if err := d.notify(title, p.Content); err != nil {
		d.log.Warn().Err(err).Str("title", title).Msg("desktop notification failed")
	}
}

// Nop drops every notification.
type Nop struct{}

func (Nop) Send(Payload) {}
