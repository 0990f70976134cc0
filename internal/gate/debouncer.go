package gate

import "time"

// Debouncer admits one gate pulse at a time and holds the next one back for
// a cool-down after each result, whatever the result was.
type Debouncer struct {
	cooldown time.Duration
	token    uint64
	pending  bool
	cooling  bool
}

func NewDebouncer(cooldown time.Duration) *Debouncer {
	if cooldown < 0 {
		cooldown = 0
	}
	return &Debouncer{cooldown: cooldown}
}

// Begin reports whether a trigger may be sent now.
func (d *Debouncer) Begin() (uint64, bool) {
	if d.pending || d.cooling {
		return 0, false
	}
	d.token++
	d.pending = true
	return d.token, true
}

// Done marks the request finished and returns how long to wait before
// calling Release. Zero means the debouncer is already free.
func (d *Debouncer) Done(token uint64) time.Duration {
	if token != d.token || !d.pending {
		return 0
	}
	d.pending = false
	if d.cooldown == 0 {
		return 0
	}
	d.cooling = true
	return d.cooldown
}

func (d *Debouncer) Release(token uint64) {
	if token == d.token && d.cooling {
		d.cooling = false
	}
}

func (d *Debouncer) Busy() bool {
	return d.pending || d.cooling
}

func (d *Debouncer) Pending() bool {
	return d.pending
}
