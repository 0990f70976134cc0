package device

import (
	"fmt"
	"strings"
)

// Ack is the common part of a mutating response.
type Ack struct {
	Success bool
	Error   string
	// Stamp is the device uptime in ms when the mutation was applied, or 0
	// when the firmware does not report one.
	Stamp int64
}

type PhoneRecord struct {
	ID          string `json:"id"`
	Number      string `json:"number"`
	SMSEnabled  bool   `json:"smsEnabled"`
	CallEnabled bool   `json:"callEnabled"`
}

type KeyRecord struct {
	Code      uint64 `json:"code"`
	Name      string `json:"name"`
	Enabled   bool   `json:"enabled"`
	BitLength int    `json:"bitLength"`
	Protocol  int    `json:"protocol"`
	Timestamp int64  `json:"timestamp"`
}

type LearnStatus struct {
	LearningMode bool `json:"learningMode"`
}

type WiFiNetwork struct {
	SSID       string `json:"ssid"`
	RSSI       int    `json:"rssi"`
	Encryption int    `json:"encryption"`
}

// Open reports a network without encryption (ESP32 auth mode 0).
func (n WiFiNetwork) Open() bool {
	return n.Encryption == 0
}

type WiFiConnectResult struct {
	Success bool   `json:"success"`
	IP      string `json:"ip"`
	Error   string `json:"error"`
}

// RadioConfig holds CC1101 tuning. Units: MHz, kBaud, kHz, kHz, dBm.
type RadioConfig struct {
	Frequency          float64 `json:"frequency"`
	BitRate            float64 `json:"bitRate"`
	FrequencyDeviation float64 `json:"frequencyDeviation"`
	RxBandwidth        float64 `json:"rxBandwidth"`
	OutputPower        int     `json:"outputPower"`
	RSSI               int     `json:"rssi,omitempty"`
}

// DefaultRadioConfig is the firmware factory tuning.
func DefaultRadioConfig() RadioConfig {
	return RadioConfig{
		Frequency:          433.92,
		BitRate:            3.79,
		FrequencyDeviation: 5.2,
		RxBandwidth:        58.0,
		OutputPower:        10,
	}
}

// Validate checks the ranges the CC1101 accepts.
func (r RadioConfig) Validate() error {
	switch {
	case r.Frequency < 300 || r.Frequency > 928:
		return fmt.Errorf("frequency %.2f MHz out of range 300-928", r.Frequency)
	case r.BitRate < 0.6 || r.BitRate > 500:
		return fmt.Errorf("bit rate %.2f kBaud out of range 0.6-500", r.BitRate)
	case r.FrequencyDeviation < 1.5 || r.FrequencyDeviation > 380:
		return fmt.Errorf("deviation %.2f kHz out of range 1.5-380", r.FrequencyDeviation)
	case r.RxBandwidth < 58 || r.RxBandwidth > 812:
		return fmt.Errorf("rx bandwidth %.1f kHz out of range 58-812", r.RxBandwidth)
	case r.OutputPower < -30 || r.OutputPower > 12:
		return fmt.Errorf("output power %d dBm out of range -30..12", r.OutputPower)
	}
	return nil
}

// PhoneUpdate patches one flag of a phone record; nil fields are not sent.
type PhoneUpdate struct {
	ID          string `json:"id"`
	SMSEnabled  *bool  `json:"smsEnabled,omitempty"`
	CallEnabled *bool  `json:"callEnabled,omitempty"`
}

// KeyUpdate patches a key record; nil fields are not sent.
type KeyUpdate struct {
	Code    uint64  `json:"code"`
	Name    *string `json:"name,omitempty"`
	Enabled *bool   `json:"enabled,omitempty"`
}

// PhonePrefix is prepended to the ten national digits.
const PhonePrefix = "+7"

// NormalizePhone strips everything but digits and requires exactly ten of
// them. The result carries PhonePrefix.
func NormalizePhone(input string) (string, error) {
	var b strings.Builder
	for _, r := range input {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	if digits == "" {
		return "", fmt.Errorf("enter a phone number")
	}
	if len(digits) != 10 {
		return "", fmt.Errorf("number must have 10 digits, got %d", len(digits))
	}
	return PhonePrefix + digits, nil
}
