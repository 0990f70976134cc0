package device

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestCallDetectsEmbeddedFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success":false,"error":"key not found"}`))
	}))
	defer srv.Close()

	client := New(srv.URL, 2*time.Second)
	_, err := client.DeleteKey(context.Background(), 0xA1B2)
	if !errors.Is(err, ErrServer) {
		t.Fatalf("expected server error, got %v", err)
	}
	var reqErr *RequestError
	if !errors.As(err, &reqErr) || reqErr.Message != "key not found" || reqErr.Endpoint != "/api/keys/delete" {
		t.Fatalf("unexpected request error: %#v", reqErr)
	}
	if Reason(err) != "key not found" {
		t.Fatalf("unexpected reason: %q", Reason(err))
	}
}

func TestCallDetectsHTTPStatusFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "busy", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client := New(srv.URL, 2*time.Second)
	_, err := client.TriggerGate(context.Background())
	var reqErr *RequestError
	if !errors.As(err, &reqErr) || reqErr.Kind != KindServer || reqErr.Status != http.StatusServiceUnavailable {
		t.Fatalf("expected HTTP 503 server error, got %v", err)
	}
	if !strings.Contains(err.Error(), "busy") {
		t.Fatalf("expected body in error text, got %q", err.Error())
	}
}

func TestCallParseError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html>captive portal</html>`))
	}))
	defer srv.Close()

	client := New(srv.URL, 2*time.Second)
	_, err := client.Keys(context.Background())
	if !errors.Is(err, ErrParse) {
		t.Fatalf("expected parse error, got %v", err)
	}
}

func TestCallNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	client := New(url, 2*time.Second)
	_, err := client.Phones(context.Background())
	if !errors.Is(err, ErrNetwork) {
		t.Fatalf("expected network error, got %v", err)
	}
	if Reason(err) != "device unreachable" {
		t.Fatalf("unexpected reason: %q", Reason(err))
	}
}

func TestCallHonorsCallerContext(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	client := New(srv.URL, time.Minute)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := client.LearnStatus(ctx)
	if !errors.Is(err, ErrNetwork) || !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected network error wrapping deadline, got %v", err)
	}
}

func TestAckCarriesStamp(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"success":true,"ts":90210}`))
	}))
	defer srv.Close()

	ack, err := New(srv.URL, time.Second).DeletePhone(context.Background(), "+79990001122")
	if err != nil {
		t.Fatalf("delete phone: %v", err)
	}
	if !ack.Success || ack.Stamp != 90210 {
		t.Fatalf("unexpected ack: %+v", ack)
	}
}

func TestTypedRequestsUseDeviceShapes(t *testing.T) {
	type seen struct {
		method string
		path   string
		body   map[string]any
	}
	var (
		mu  sync.Mutex
		got []seen
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		mu.Lock()
		got = append(got, seen{r.Method, r.URL.Path, body})
		mu.Unlock()
		switch r.URL.Path {
		case "/api/phones":
			_, _ = w.Write([]byte(`{"id":"+79990001122","number":"+79990001122","smsEnabled":true,"callEnabled":true}`))
		case "/api/cc1101/config":
			_, _ = w.Write([]byte(`{"frequency":868.3,"rssi":-71}`))
		default:
			_, _ = w.Write([]byte(`{"success":true}`))
		}
	}))
	defer srv.Close()

	ctx := context.Background()
	client := New(srv.URL, time.Second)
	rec, _, err := client.AddPhone(ctx, "+79990001122")
	if err != nil || rec.ID != "+79990001122" || !rec.SMSEnabled {
		t.Fatalf("add phone: %+v err=%v", rec, err)
	}
	off := false
	if _, err := client.UpdatePhone(ctx, PhoneUpdate{ID: rec.ID, CallEnabled: &off}); err != nil {
		t.Fatalf("update phone: %v", err)
	}
	name := "Garage"
	if _, err := client.UpdateKey(ctx, KeyUpdate{Code: 5592405, Name: &name}); err != nil {
		t.Fatalf("update key: %v", err)
	}
	cfg, err := client.RadioConfig(ctx)
	if err != nil {
		t.Fatalf("radio config: %v", err)
	}
	if cfg.Frequency != 868.3 || cfg.BitRate != 3.79 || cfg.RSSI != -71 {
		t.Fatalf("expected device values over defaults, got %+v", cfg)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 4 {
		t.Fatalf("expected 4 requests, got %d", len(got))
	}
	if got[0].method != http.MethodPost || got[0].body["number"] != "+79990001122" || got[0].body["callEnabled"] != true {
		t.Fatalf("unexpected add body: %+v", got[0])
	}
	if got[1].method != http.MethodPut || got[1].path != "/api/phones/update" {
		t.Fatalf("unexpected update route: %+v", got[1])
	}
	if _, ok := got[1].body["smsEnabled"]; ok {
		t.Fatalf("unset flag must not be sent: %+v", got[1].body)
	}
	if got[2].body["name"] != "Garage" || got[2].body["code"] != float64(5592405) {
		t.Fatalf("unexpected key update body: %+v", got[2].body)
	}
}

func TestNormalizePhone(t *testing.T) {
	got, err := NormalizePhone("(999) 000-11-22")
	if err != nil || got != "+79990001122" {
		t.Fatalf("got %q err=%v", got, err)
	}
	if _, err := NormalizePhone("12345"); err == nil {
		t.Fatalf("expected error for short number")
	}
	if _, err := NormalizePhone(""); err == nil {
		t.Fatalf("expected error for empty number")
	}
}

func TestRadioConfigValidate(t *testing.T) {
	if err := DefaultRadioConfig().Validate(); err != nil {
		t.Fatalf("defaults must validate: %v", err)
	}
	bad := DefaultRadioConfig()
	bad.OutputPower = 20
	if err := bad.Validate(); err == nil {
		t.Fatalf("expected output power error")
	}
}
