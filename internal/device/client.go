package device

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Client calls the device command surface. It keeps no state between calls:
// no retries, no queue.
type Client struct {
	baseURL string
	http    *http.Client
}

func New(baseURL string, timeout time.Duration) *Client {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	return &Client{
		baseURL: baseURL,
		http: &http.Client{
			Timeout: timeout,
		},
	}
}

func (c *Client) BaseURL() string {
	return c.baseURL
}

type ackEnvelope struct {
	Success *bool  `json:"success"`
	Error   string `json:"error"`
	Message string `json:"message"`
	TS      int64  `json:"ts"`
}

// Call sends body as JSON and decodes the response into out when out is not
// nil. Failure is detected both from the HTTP status and from an embedded
// {success:false, error} field.
func (c *Client) Call(ctx context.Context, method, endpoint string, body, out any) (Ack, error) {
	fail := func(kind ErrorKind, status int, msg string, err error) (Ack, error) {
		return Ack{}, &RequestError{Kind: kind, Method: method, Endpoint: endpoint, Status: status, Message: msg, Err: err}
	}

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return Ack{}, fmt.Errorf("encode %s body: %w", endpoint, err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, reader)
	if err != nil {
		return Ack{}, fmt.Errorf("build %s request: %w", endpoint, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fail(KindNetwork, 0, "", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return fail(KindNetwork, resp.StatusCode, "", err)
	}
	trimmed := bytes.TrimSpace(respBody)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := compactBody(respBody)
		var env ackEnvelope
		if json.Unmarshal(trimmed, &env) == nil && env.Error != "" {
			msg = env.Error
		}
		return fail(KindServer, resp.StatusCode, msg, ErrServer)
	}

	ack := Ack{Success: true}
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var env ackEnvelope
		if err := json.Unmarshal(trimmed, &env); err != nil {
			return fail(KindParse, resp.StatusCode, "", err)
		}
		ack.Stamp = env.TS
		if env.Success != nil && !*env.Success {
			msg := env.Error
			if msg == "" {
				msg = env.Message
			}
			if msg == "" {
				msg = "request rejected"
			}
			return fail(KindServer, resp.StatusCode, msg, ErrServer)
		}
	}

	if out != nil {
		if len(trimmed) == 0 {
			return fail(KindParse, resp.StatusCode, "", io.ErrUnexpectedEOF)
		}
		if err := json.Unmarshal(trimmed, out); err != nil {
			return fail(KindParse, resp.StatusCode, "", err)
		}
	}
	return ack, nil
}

func (c *Client) Phones(ctx context.Context) ([]PhoneRecord, error) {
	var out []PhoneRecord
	if _, err := c.Call(ctx, http.MethodGet, "/api/phones", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// AddPhone registers number with SMS and call triggers enabled.
func (c *Client) AddPhone(ctx context.Context, number string) (PhoneRecord, Ack, error) {
	req := PhoneRecord{Number: number, SMSEnabled: true, CallEnabled: true}
	body := struct {
		Number      string `json:"number"`
		SMSEnabled  bool   `json:"smsEnabled"`
		CallEnabled bool   `json:"callEnabled"`
	}{req.Number, req.SMSEnabled, req.CallEnabled}

	var out PhoneRecord
	ack, err := c.Call(ctx, http.MethodPost, "/api/phones", body, &out)
	if err != nil {
		return PhoneRecord{}, Ack{}, err
	}
	if out.Number == "" {
		out = req
	}
	if out.ID == "" {
		out.ID = out.Number
	}
	return out, ack, nil
}

func (c *Client) DeletePhone(ctx context.Context, id string) (Ack, error) {
	return c.Call(ctx, http.MethodPost, "/api/phones/delete", map[string]string{"id": id}, nil)
}

func (c *Client) UpdatePhone(ctx context.Context, upd PhoneUpdate) (Ack, error) {
	return c.Call(ctx, http.MethodPut, "/api/phones/update", upd, nil)
}

func (c *Client) Keys(ctx context.Context) ([]KeyRecord, error) {
	var out []KeyRecord
	if _, err := c.Call(ctx, http.MethodGet, "/api/keys", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) DeleteKey(ctx context.Context, code uint64) (Ack, error) {
	return c.Call(ctx, http.MethodPost, "/api/keys/delete", map[string]uint64{"code": code}, nil)
}

func (c *Client) UpdateKey(ctx context.Context, upd KeyUpdate) (Ack, error) {
	return c.Call(ctx, http.MethodPut, "/api/keys/update", upd, nil)
}

func (c *Client) LearnStatus(ctx context.Context) (LearnStatus, error) {
	var out LearnStatus
	if _, err := c.Call(ctx, http.MethodGet, "/api/keys/status", nil, &out); err != nil {
		return LearnStatus{}, err
	}
	return out, nil
}

func (c *Client) StartLearning(ctx context.Context) (Ack, error) {
	return c.Call(ctx, http.MethodPost, "/api/keys/learn", nil, nil)
}

func (c *Client) StopLearning(ctx context.Context) (Ack, error) {
	return c.Call(ctx, http.MethodPost, "/api/keys/stop", nil, nil)
}

func (c *Client) TriggerGate(ctx context.Context) (Ack, error) {
	return c.Call(ctx, http.MethodPost, "/api/gate/trigger", nil, nil)
}

func (c *Client) ScanWiFi(ctx context.Context) ([]WiFiNetwork, error) {
	var out []WiFiNetwork
	if _, err := c.Call(ctx, http.MethodGet, "/api/wifi/scan", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) ConnectWiFi(ctx context.Context, ssid, password string) (WiFiConnectResult, error) {
	body := map[string]string{"ssid": ssid, "password": password}
	var out WiFiConnectResult
	if _, err := c.Call(ctx, http.MethodPost, "/api/wifi/connect", body, &out); err != nil {
		return WiFiConnectResult{}, err
	}
	return out, nil
}

// RadioConfig reads the CC1101 tuning; fields the device omits keep their
// factory defaults.
func (c *Client) RadioConfig(ctx context.Context) (RadioConfig, error) {
	out := DefaultRadioConfig()
	if _, err := c.Call(ctx, http.MethodGet, "/api/cc1101/config", nil, &out); err != nil {
		return RadioConfig{}, err
	}
	return out, nil
}

// ApplyRadioSettings writes cfg and returns the values the device accepted.
func (c *Client) ApplyRadioSettings(ctx context.Context, cfg RadioConfig) (RadioConfig, Ack, error) {
	if err := cfg.Validate(); err != nil {
		return RadioConfig{}, Ack{}, err
	}
	out := cfg
	ack, err := c.Call(ctx, http.MethodPost, "/api/cc1101/settings", cfg, &out)
	if err != nil {
		return RadioConfig{}, Ack{}, err
	}
	return out, ack, nil
}

func compactBody(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > 320 {
		return s[:320] + "..."
	}
	return s
}
