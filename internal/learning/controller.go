package learning

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"smartgate_go/internal/device"
	"smartgate_go/internal/events"
)

type Phase int

const (
	Idle Phase = iota
	Starting
	Active
	Stopping
)

func (p Phase) String() string {
	switch p {
	case Starting:
		return "starting"
	case Active:
		return "active"
	case Stopping:
		return "stopping"
	default:
		return "idle"
	}
}

type Op int

const (
	OpStart Op = iota + 1
	OpPoll
	OpStop
	OpObserve
)

// Request is one device call the controller wants made. Its result must be
// handed back with the same Request so stale answers can be recognized.
type Request struct {
	Gen     uint64
	Op      Op
	Session string
}

// Tick is a poll timer firing for generation Gen.
type Tick struct {
	Gen uint64
}

type Source int

const (
	SourcePush Source = iota + 1
	SourcePoll
)

func (s Source) String() string {
	if s == SourcePush {
		return "push"
	}
	return "poll"
}

type Reason int

const (
	ReasonKeyAdded Reason = iota + 1
	ReasonDeviceEnded
)

// Signal says learning is over. Push and poll paths deliver the same type.
type Signal struct {
	Source  Source
	Reason  Reason
	KeyName string
}

type Session struct {
	ID        string
	StartedAt time.Time
	// Adopted is set when the session was found running on the device
	// rather than started here.
	Adopted bool
}

// Outcome tells the caller what to surface and whether to arm a poll.
type Outcome struct {
	Stale    bool
	Changed  bool
	Phase    Phase
	Message  string
	Severity events.Severity
	Notify   bool
	Poll     *Tick
	Err      error
}

type Option func(*Controller)

func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

func WithIDs(next func() string) Option {
	return func(c *Controller) { c.newID = next }
}

// Controller is the learning-mode state machine. It performs no I/O: callers
// execute the Requests it returns and feed results back. Every transition
// bumps the generation, which invalidates outstanding requests and ticks.
type Controller struct {
	phase   Phase
	gen     uint64
	session *Session
	now     func() time.Time
	newID   func() string
}

func NewController(opts ...Option) *Controller {
	c := &Controller{
		now:   time.Now,
		newID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Controller) Phase() Phase { return c.phase }

func (c *Controller) Gen() uint64 { return c.gen }

func (c *Controller) Session() (Session, bool) {
	if c.session == nil {
		return Session{}, false
	}
	return *c.session, true
}

func (c *Controller) transition(p Phase) {
	c.phase = p
	c.gen++
	if p == Idle {
		c.session = nil
	}
}

func (c *Controller) request(op Op) Request {
	req := Request{Gen: c.gen, Op: op}
	if c.session != nil {
		req.Session = c.session.ID
	}
	return req
}

func (c *Controller) stale(req Request, want Phase) bool {
	return req.Gen != c.gen || c.phase != want
}

// Start asks for a start request. Only valid from Idle.
func (c *Controller) Start() (Request, bool) {
	if c.phase != Idle {
		return Request{}, false
	}
	c.transition(Starting)
	return c.request(OpStart), true
}

// StartDone enters Active on success. A failed start returns to Idle.
func (c *Controller) StartDone(req Request, err error) Outcome {
	if req.Op != OpStart || c.stale(req, Starting) {
		return Outcome{Stale: true, Phase: c.phase}
	}
	if err != nil {
		c.transition(Idle)
		return Outcome{
			Changed:  true,
			Phase:    Idle,
			Message:  "Could not start learning: " + device.Reason(err),
			Severity: events.SeverityError,
			Notify:   true,
			Err:      err,
		}
	}
	c.transition(Active)
	c.session = &Session{ID: c.newID(), StartedAt: c.now()}
	return Outcome{
		Changed:  true,
		Phase:    Active,
		Message:  "Learning mode on: press the remote button",
		Severity: events.SeverityInfo,
		Notify:   true,
		Poll:     &Tick{Gen: c.gen},
	}
}

// PollDue turns a tick into a status request when it is still current.
func (c *Controller) PollDue(t Tick) (Request, bool) {
	if t.Gen != c.gen || c.phase != Active {
		return Request{}, false
	}
	return c.request(OpPoll), true
}

// PollDone handles a status answer. A failed poll keeps the session and
// retries on the next tick.
func (c *Controller) PollDone(req Request, status device.LearnStatus, err error) Outcome {
	if req.Op != OpPoll || c.stale(req, Active) {
		return Outcome{Stale: true, Phase: c.phase}
	}
	if err != nil {
		return Outcome{Phase: Active, Poll: &Tick{Gen: c.gen}, Err: err}
	}
	if !status.LearningMode {
		return c.Complete(Signal{Source: SourcePoll, Reason: ReasonDeviceEnded})
	}
	return Outcome{Phase: Active, Poll: &Tick{Gen: c.gen}}
}

// Stop asks for a stop request. Only valid from Active.
func (c *Controller) Stop() (Request, bool) {
	if c.phase != Active {
		return Request{}, false
	}
	c.transition(Stopping)
	return c.request(OpStop), true
}

// StopDone always ends in Idle: a lost answer cannot be told apart from an
// ignored stop.
func (c *Controller) StopDone(req Request, err error) Outcome {
	if req.Op != OpStop || c.stale(req, Stopping) {
		return Outcome{Stale: true, Phase: c.phase}
	}
	c.transition(Idle)
	out := Outcome{
		Changed:  true,
		Phase:    Idle,
		Message:  "Learning mode stopped",
		Severity: events.SeverityWarning,
		Notify:   true,
		Err:      err,
	}
	if err != nil {
		out.Message = "Learning stopped locally, device did not confirm: " + device.Reason(err)
	}
	return out
}

// Complete applies a completion signal from either path. Once the controller
// is Idle further signals are no-ops.
func (c *Controller) Complete(sig Signal) Outcome {
	if c.phase == Idle {
		return Outcome{Phase: Idle}
	}
	c.transition(Idle)
	out := Outcome{Changed: true, Phase: Idle, Severity: events.SeverityInfo}
	switch sig.Reason {
	case ReasonKeyAdded:
		name := sig.KeyName
		if name == "" {
			name = "new key"
		}
		out.Message = fmt.Sprintf("Learning complete (%s): %s saved", sig.Source, name)
		out.Severity = events.SeveritySuccess
	default:
		out.Message = "Learning mode ended on device"
	}
	return out
}

// Detach forgets any local session and invalidates in-flight requests and
// ticks. Used when the keys page closes and on shutdown.
func (c *Controller) Detach() {
	c.transition(Idle)
}

// Observe asks for a one-shot status check. Only valid from Idle.
func (c *Controller) Observe() (Request, bool) {
	if c.phase != Idle {
		return Request{}, false
	}
	return c.request(OpObserve), true
}

// ObserveDone adopts a session the device reports as running.
func (c *Controller) ObserveDone(req Request, status device.LearnStatus, err error) Outcome {
	if req.Op != OpObserve || c.stale(req, Idle) {
		return Outcome{Stale: true, Phase: c.phase}
	}
	if err != nil || !status.LearningMode {
		return Outcome{Phase: Idle, Err: err}
	}
	c.transition(Active)
	c.session = &Session{ID: c.newID(), StartedAt: c.now(), Adopted: true}
	return Outcome{
		Changed:  true,
		Phase:    Active,
		Message:  "Device is already in learning mode",
		Severity: events.SeverityInfo,
		Poll:     &Tick{Gen: c.gen},
	}
}
