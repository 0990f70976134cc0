package state

import (
	"errors"

	"github.com/rs/zerolog"

	"smartgate_go/internal/events"
)

// Dispatcher decodes push frames and applies them to a Store in arrival
// order. Bad frames are logged and dropped.
type Dispatcher struct {
	store *Store
	log   zerolog.Logger
}

func NewDispatcher(store *Store, logger zerolog.Logger) *Dispatcher {
	return &Dispatcher{store: store, log: logger}
}

// Dispatch reports the decoded event and its effect; ok is false when the
// frame was dropped.
func (d *Dispatcher) Dispatch(raw []byte) (events.Event, Effect, bool) {
	ev, err := events.Decode(raw)
	if err != nil {
		var unknown *events.UnknownEventError
		if errors.As(err, &unknown) {
			d.log.Info().Str("event", unknown.Kind).Msg("unknown push event dropped")
		} else {
			d.log.Debug().Err(err).Msg("malformed push frame dropped")
		}
		return nil, Effect{}, false
	}
	eff := d.store.Apply(ev)
	if eff.Stale {
		d.log.Debug().Str("event", string(ev.Kind())).Msg("stale count ignored")
	}
	return ev, eff, true
}
