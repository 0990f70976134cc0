package tui

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/rs/zerolog"

	"smartgate_go/internal/device"
	"smartgate_go/internal/events"
	"smartgate_go/internal/gate"
	"smartgate_go/internal/learning"
	"smartgate_go/internal/notify"
	"smartgate_go/internal/push"
	"smartgate_go/internal/state"
)

type screen int

const (
	screenHome screen = iota
	screenKeys
	screenPhones
	screenWiFi
	screenRadio
	screenLogs
	screenHelp
)

type inputMode int

const (
	inputModeNone inputMode = iota
	inputModePhoneNumber
	inputModeKeyName
	inputModeWiFiPassword
	inputModeRadioField
)

type menuItem struct {
	Label string
	Desc  string
}

var homeMenu = []menuItem{
	{Label: "Open Gate", Desc: "Send one gate pulse"},
	{Label: "Keys", Desc: "Remotes, learning mode"},
	{Label: "Phones", Desc: "Numbers allowed to open by call/SMS"},
	{Label: "WiFi", Desc: "Scan and join a network"},
	{Label: "Radio", Desc: "CC1101 receiver settings"},
	{Label: "Logs", Desc: "Device console"},
	{Label: "Help", Desc: "Show key guide"},
}

// radioFields are the editable CC1101 values in page order.
var radioFields = []string{"Frequency (MHz)", "Bit rate (kBaud)", "Deviation (kHz)", "RX bandwidth (kHz)", "Output power (dBm)"}

// DeviceAPI is the command surface the panel drives.
type DeviceAPI interface {
	Phones(ctx context.Context) ([]device.PhoneRecord, error)
	AddPhone(ctx context.Context, number string) (device.PhoneRecord, device.Ack, error)
	DeletePhone(ctx context.Context, id string) (device.Ack, error)
	UpdatePhone(ctx context.Context, upd device.PhoneUpdate) (device.Ack, error)
	Keys(ctx context.Context) ([]device.KeyRecord, error)
	DeleteKey(ctx context.Context, code uint64) (device.Ack, error)
	UpdateKey(ctx context.Context, upd device.KeyUpdate) (device.Ack, error)
	LearnStatus(ctx context.Context) (device.LearnStatus, error)
	StartLearning(ctx context.Context) (device.Ack, error)
	StopLearning(ctx context.Context) (device.Ack, error)
	TriggerGate(ctx context.Context) (device.Ack, error)
	ScanWiFi(ctx context.Context) ([]device.WiFiNetwork, error)
	ConnectWiFi(ctx context.Context, ssid, password string) (device.WiFiConnectResult, error)
	RadioConfig(ctx context.Context) (device.RadioConfig, error)
	ApplyRadioSettings(ctx context.Context, cfg device.RadioConfig) (device.RadioConfig, device.Ack, error)
}

// Link is the push channel as seen by the panel.
type Link interface {
	URL() string
	Messages() <-chan push.Message
	Connect() error
	Close() error
}

// EventMirror republishes dispatched events.
type EventMirror interface {
	PublishEvent(ev events.Event) error
	PublishLink(st push.State) error
	Close()
}

// Journal persists the console. Clear drops the stored history.
type Journal interface {
	Clear()
	Close() error
}

// Deps wires the panel to its collaborators. Mirror and Journal may be nil.
type Deps struct {
	Device   DeviceAPI
	Link     Link
	Store    *state.Store
	Notifier notify.Sender
	Mirror   EventMirror
	Journal  Journal
	Logger   zerolog.Logger

	RequestTimeout time.Duration
	PollInterval   time.Duration
	GateCooldown   time.Duration
	NoticeTTL      time.Duration
	DeviceLabel    string
}

type pushMsg struct {
	Msg push.Message
}

type pushClosedMsg struct{}

type statsLoadedMsg struct {
	Phones    []device.PhoneRecord
	PhonesErr error
	Keys      []device.KeyRecord
	KeysErr   error
}

type learnResultMsg struct {
	Req    learning.Request
	Status device.LearnStatus
	Err    error
}

type learnTickMsg struct {
	Tick learning.Tick
}

type gateDoneMsg struct {
	Token uint64
	Ack   device.Ack
	Err   error
}

type gateReleaseMsg struct {
	Token uint64
}

type noticeExpiredMsg struct {
	Seq uint64
}

// Page results carry the page generation they were issued under; results
// for a page that has since been left or reloaded only touch counts.
type keysLoadedMsg struct {
	Gen  uint64
	Keys []device.KeyRecord
	Err  error
}

type keyMutation int

const (
	keyMutationDelete keyMutation = iota + 1
	keyMutationToggle
	keyMutationRename
)

type keyMutatedMsg struct {
	Gen  uint64
	Op   keyMutation
	Code uint64
	Ack  device.Ack
	Err  error
}

type phonesLoadedMsg struct {
	Gen    uint64
	Phones []device.PhoneRecord
	Err    error
}

type phoneMutation int

const (
	phoneMutationAdd phoneMutation = iota + 1
	phoneMutationDelete
	phoneMutationToggleSMS
	phoneMutationToggleCall
)

type phoneMutatedMsg struct {
	Gen    uint64
	Op     phoneMutation
	ID     string
	Record device.PhoneRecord
	Ack    device.Ack
	Err    error
}

type wifiScannedMsg struct {
	Gen      uint64
	Networks []device.WiFiNetwork
	Err      error
}

type wifiConnectedMsg struct {
	Gen    uint64
	SSID   string
	Result device.WiFiConnectResult
	Err    error
}

type radioLoadedMsg struct {
	Gen    uint64
	Config device.RadioConfig
	Err    error
}

type radioSavedMsg struct {
	Gen    uint64
	Config device.RadioConfig
	Err    error
}

// Model is the app state. Update is the only writer of everything it points
// to.
type Model struct {
	api      DeviceAPI
	link     Link
	store    *state.Store
	dispatch *state.Dispatcher
	learn    *learning.Controller
	gate     *gate.Debouncer
	notifier notify.Sender
	mirror   EventMirror
	journal  Journal
	log      zerolog.Logger

	requestTimeout time.Duration
	pollInterval   time.Duration
	noticeTTL      time.Duration
	deviceLabel    string

	activeScreen screen
	pageGen      uint64
	homeIndex    int
	logScroll    int
	status       string

	input     textinput.Model
	inputMode inputMode
	spin      spinner.Model
	busy      bool

	keys          []device.KeyRecord
	keyIndex      int
	confirmDelete bool

	phones     []device.PhoneRecord
	phoneIndex int

	networks  []device.WiFiNetwork
	wifiIndex int
	wifiSSID  string

	radio      device.RadioConfig
	radioIndex int
	radioDirty bool

	quitting bool
	width    int
	height   int
}
