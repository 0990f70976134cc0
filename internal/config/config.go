package config

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DefaultHost         = "smartgate.local"
	DefaultFallbackHost = "192.168.4.1"
)

// Config is the panel configuration. Values come from an optional YAML file
// and are then overridden by environment variables.
type Config struct {
	DeviceHost   string `yaml:"device_host"`
	FallbackHost string `yaml:"fallback_host"`
	HTTPPort     int    `yaml:"http_port"`
	PushPort     int    `yaml:"push_port"`
	PushPath     string `yaml:"push_path"`

	RequestTimeout    time.Duration `yaml:"request_timeout"`
	ReconnectDelay    time.Duration `yaml:"reconnect_delay"`
	PushIdleTimeout   time.Duration `yaml:"push_idle_timeout"`
	LearnPollInterval time.Duration `yaml:"learn_poll_interval"`
	GateCooldown      time.Duration `yaml:"gate_cooldown"`

	LogLevel    string `yaml:"log_level"`
	LogFile     string `yaml:"log_file"`
	JournalPath string `yaml:"journal_path"`

	DesktopNotify bool `yaml:"desktop_notify"`

	MQTTBroker      string `yaml:"mqtt_broker"`
	MQTTClientID    string `yaml:"mqtt_client_id"`
	MQTTTopicPrefix string `yaml:"mqtt_topic_prefix"`

	SimAutostart bool   `yaml:"sim_autostart"`
	SimHTTPAddr  string `yaml:"sim_http_addr"`
	SimPushAddr  string `yaml:"sim_push_addr"`
}

// Default returns the settings used for a device in its factory state.
func Default() Config {
	return Config{
		DeviceHost:        DefaultHost,
		FallbackHost:      DefaultFallbackHost,
		HTTPPort:          80,
		PushPort:          81,
		PushPath:          "/",
		RequestTimeout:    12 * time.Second,
		ReconnectDelay:    3 * time.Second,
		LearnPollInterval: 2 * time.Second,
		GateCooldown:      time.Second,
		LogLevel:          "info",
		LogFile:           "logs/smartgate-tui.log",
		JournalPath:       "smartgate-journal.db",
		MQTTClientID:      "smartgate-panel",
		MQTTTopicPrefix:   "smartgate",
		SimHTTPAddr:       "127.0.0.1:8080",
		SimPushAddr:       "127.0.0.1:8081",
	}
}

// Load reads path (when it exists) and applies environment overrides.
func Load(path string) (Config, error) {
	cfg := Default()
	if err := loadFile(path, &cfg); err != nil {
		return Config{}, err
	}
	applyEnv(&cfg)
	normalize(&cfg)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config) {
	cfg.DeviceHost = envOr("SMARTGATE_HOST", cfg.DeviceHost)
	cfg.FallbackHost = envOr("SMARTGATE_FALLBACK_HOST", cfg.FallbackHost)
	cfg.HTTPPort = envInt("SMARTGATE_HTTP_PORT", cfg.HTTPPort)
	cfg.PushPort = envInt("SMARTGATE_PUSH_PORT", cfg.PushPort)
	cfg.PushPath = envOr("SMARTGATE_PUSH_PATH", cfg.PushPath)

	cfg.RequestTimeout = envDurationMS("SMARTGATE_HTTP_TIMEOUT_MS", cfg.RequestTimeout)
	cfg.ReconnectDelay = envDurationMS("PUSH_RECONNECT_MS", cfg.ReconnectDelay)
	cfg.PushIdleTimeout = envDurationSec("PUSH_IDLE_TIMEOUT_SEC", cfg.PushIdleTimeout)
	cfg.LearnPollInterval = envDurationMS("LEARN_POLL_MS", cfg.LearnPollInterval)
	cfg.GateCooldown = envDurationMS("GATE_COOLDOWN_MS", cfg.GateCooldown)

	cfg.LogLevel = strings.ToLower(envOr("LOG_LEVEL", cfg.LogLevel))
	cfg.LogFile = envOr("LOG_FILE", cfg.LogFile)
	cfg.JournalPath = envOr("JOURNAL_PATH", cfg.JournalPath)
	cfg.DesktopNotify = envBool("DESKTOP_NOTIFY", cfg.DesktopNotify)

	cfg.MQTTBroker = envOr("MQTT_BROKER", cfg.MQTTBroker)
	cfg.MQTTClientID = envOr("MQTT_CLIENT_ID", cfg.MQTTClientID)
	cfg.MQTTTopicPrefix = envOr("MQTT_TOPIC_PREFIX", cfg.MQTTTopicPrefix)

	cfg.SimAutostart = envBool("SIM_AUTOSTART", cfg.SimAutostart)
	cfg.SimHTTPAddr = envOr("SIM_HTTP_ADDR", cfg.SimHTTPAddr)
	cfg.SimPushAddr = envOr("SIM_PUSH_ADDR", cfg.SimPushAddr)
}

func normalize(cfg *Config) {
	cfg.DeviceHost = strings.TrimSpace(cfg.DeviceHost)
	cfg.FallbackHost = strings.TrimSpace(cfg.FallbackHost)
	if cfg.DeviceHost == "" {
		cfg.DeviceHost = cfg.FallbackHost
	}
	if !strings.HasPrefix(cfg.PushPath, "/") {
		cfg.PushPath = "/" + cfg.PushPath
	}
	if cfg.RequestTimeout < time.Second {
		cfg.RequestTimeout = time.Second
	}
	if cfg.ReconnectDelay < 100*time.Millisecond {
		cfg.ReconnectDelay = 3 * time.Second
	}
	if cfg.PushIdleTimeout < 0 {
		cfg.PushIdleTimeout = 0
	}
	if cfg.LearnPollInterval < 250*time.Millisecond {
		cfg.LearnPollInterval = 2 * time.Second
	}
	if cfg.GateCooldown < 0 {
		cfg.GateCooldown = 0
	}
	cfg.MQTTTopicPrefix = strings.Trim(strings.TrimSpace(cfg.MQTTTopicPrefix), "/")
	if cfg.MQTTTopicPrefix == "" {
		cfg.MQTTTopicPrefix = "smartgate"
	}
}

// Validate reports settings that cannot produce a working panel.
func (c Config) Validate() error {
	if c.DeviceHost == "" {
		return fmt.Errorf("device host is required (SMARTGATE_HOST)")
	}
	if c.HTTPPort <= 0 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid http port %d", c.HTTPPort)
	}
	if c.PushPort <= 0 || c.PushPort > 65535 {
		return fmt.Errorf("invalid push port %d", c.PushPort)
	}
	if c.HTTPPort == c.PushPort {
		return fmt.Errorf("push port must differ from http port (%d)", c.PushPort)
	}
	return nil
}

// ResolveHost keeps the configured host when it resolves and falls back to
// the access-point address otherwise.
func (c Config) ResolveHost(ctx context.Context) string {
	if c.FallbackHost == "" || c.DeviceHost == c.FallbackHost {
		return c.DeviceHost
	}
	if net.ParseIP(c.DeviceHost) != nil {
		return c.DeviceHost
	}
	if _, err := net.DefaultResolver.LookupHost(ctx, c.DeviceHost); err != nil {
		return c.FallbackHost
	}
	return c.DeviceHost
}

// BaseURL is the command surface root for host.
func (c Config) BaseURL(host string) string {
	u := url.URL{Scheme: "http", Host: hostPort(host, c.HTTPPort, 80)}
	return u.String()
}

// PushURL is the push channel endpoint for host.
func (c Config) PushURL(host string) string {
	u := url.URL{Scheme: "ws", Host: hostPort(host, c.PushPort, 0), Path: c.PushPath}
	return u.String()
}

// UseSimulator points the panel at the local simulator addresses.
func (c *Config) UseSimulator() error {
	httpHost, httpPort, err := splitAddr(c.SimHTTPAddr)
	if err != nil {
		return fmt.Errorf("sim http addr: %w", err)
	}
	_, pushPort, err := splitAddr(c.SimPushAddr)
	if err != nil {
		return fmt.Errorf("sim push addr: %w", err)
	}
	c.DeviceHost = httpHost
	c.FallbackHost = httpHost
	c.HTTPPort = httpPort
	c.PushPort = pushPort
	return c.Validate()
}

func splitAddr(addr string) (string, int, error) {
	host, portText, err := net.SplitHostPort(strings.TrimSpace(addr))
	if err != nil {
		return "", 0, err
	}
	if host == "" {
		host = "127.0.0.1"
	}
	port, err := strconv.Atoi(portText)
	if err != nil {
		return "", 0, err
	}
	return host, port, nil
}

func hostPort(host string, port, implicit int) string {
	if port == implicit {
		return host
	}
	return net.JoinHostPort(host, strconv.Itoa(port))
}

func envOr(key, fallback string) string {
	val := strings.TrimSpace(os.Getenv(key))
	if val == "" {
		return fallback
	}
	return val
}

func envInt(key string, fallback int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}

func envBool(key string, fallback bool) bool {
	raw := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	switch raw {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func envDurationSec(key string, fallback time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return time.Duration(n) * time.Second
}

func envDurationMS(key string, fallback time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return time.Duration(n) * time.Millisecond
}
