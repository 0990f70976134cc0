package devicesim

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"smartgate_go/internal/device"
	"smartgate_go/internal/events"
)

// Server exposes a Device over the same HTTP command surface and push
// endpoint as the firmware.
type Server struct {
	dev      *Device
	hub      *Hub
	log      zerolog.Logger
	httpAddr string
	pushAddr string
	api      *http.Server
	push     *http.Server
}

func New(httpAddr, pushAddr string, dev *Device, logger zerolog.Logger) *Server {
	s := &Server{
		dev:      dev,
		hub:      NewHub(logger),
		log:      logger,
		httpAddr: httpAddr,
		pushAddr: pushAddr,
	}
	s.api = &http.Server{Addr: httpAddr, Handler: s.Routes(), ReadHeaderTimeout: 5 * time.Second}
	s.push = &http.Server{Addr: pushAddr, Handler: s.PushHandler(), ReadHeaderTimeout: 5 * time.Second}
	return s
}

func (s *Server) Device() *Device { return s.dev }
func (s *Server) Hub() *Hub       { return s.hub }

// Routes is the command surface.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.requestLog)

	r.Get("/health", s.handleHealth)
	r.Route("/api", func(r chi.Router) {
		r.Get("/phones", s.handlePhones)
		r.Post("/phones", s.handleAddPhone)
		r.Post("/phones/delete", s.handleDeletePhone)
		r.Put("/phones/update", s.handleUpdatePhone)

		r.Get("/keys", s.handleKeys)
		r.Post("/keys/delete", s.handleDeleteKey)
		r.Put("/keys/update", s.handleUpdateKey)
		r.Get("/keys/status", s.handleLearnStatus)
		r.Post("/keys/learn", s.handleLearnStart)
		r.Post("/keys/stop", s.handleLearnStop)

		r.Post("/gate/trigger", s.handleGateTrigger)

		r.Get("/wifi/scan", s.handleWiFiScan)
		r.Post("/wifi/connect", s.handleWiFiConnect)

		r.Get("/cc1101/config", s.handleRadioConfig)
		r.Post("/cc1101/settings", s.handleRadioSettings)
	})
	r.Route("/sim", func(r chi.Router) {
		r.Post("/press", s.handlePress)
		r.Post("/drop", s.handleDrop)
		r.Post("/raw", s.handleRaw)
	})
	return r
}

// PushHandler serves the websocket endpoint.
func (s *Server) PushHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.hub.Serve(w, r, s.dev.Snapshot())
	})
}

func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 2)
	serve := func(name string, srv *http.Server) {
		s.log.Info().Str("addr", srv.Addr).Msgf("%s listening", name)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("%s: %w", name, err)
		}
	}
	go serve("api", s.api)
	go serve("push", s.push)

	select {
	case <-ctx.Done():
		s.hub.DropAll()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return errors.Join(s.api.Shutdown(shutdownCtx), s.push.Shutdown(shutdownCtx))
	case err := <-errCh:
		_ = s.api.Close()
		_ = s.push.Close()
		return err
	}
}

func (s *Server) requestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("took", time.Since(start)).
			Msg("request")
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":           true,
		"service":      "smartgate-sim",
		"push_clients": s.hub.ClientCount(),
	})
}

func (s *Server) handlePhones(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.dev.Phones())
}

func (s *Server) handleAddPhone(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Number      string `json:"number"`
		SMSEnabled  bool   `json:"smsEnabled"`
		CallEnabled bool   `json:"callEnabled"`
	}
	if !decodeBody(w, r, &payload) {
		return
	}
	rec, ts, evs, err := s.dev.AddPhone(strings.TrimSpace(payload.Number), payload.SMSEnabled, payload.CallEnabled)
	if err != nil {
		writeFailure(w, err)
		return
	}
	s.hub.Broadcast(evs...)
	writeJSON(w, http.StatusOK, map[string]any{
		"success":     true,
		"ts":          ts,
		"id":          rec.ID,
		"number":      rec.Number,
		"smsEnabled":  rec.SMSEnabled,
		"callEnabled": rec.CallEnabled,
	})
}

func (s *Server) handleDeletePhone(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		ID string `json:"id"`
	}
	if !decodeBody(w, r, &payload) {
		return
	}
	ts, evs, err := s.dev.DeletePhone(payload.ID)
	if err != nil {
		writeFailure(w, err)
		return
	}
	s.hub.Broadcast(evs...)
	writeAck(w, ts)
}

func (s *Server) handleUpdatePhone(w http.ResponseWriter, r *http.Request) {
	var payload device.PhoneUpdate
	if !decodeBody(w, r, &payload) {
		return
	}
	ts, err := s.dev.UpdatePhone(payload)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeAck(w, ts)
}

func (s *Server) handleKeys(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.dev.Keys())
}

func (s *Server) handleDeleteKey(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Code uint64 `json:"code"`
	}
	if !decodeBody(w, r, &payload) {
		return
	}
	ts, evs, err := s.dev.DeleteKey(payload.Code)
	if err != nil {
		writeFailure(w, err)
		return
	}
	s.hub.Broadcast(evs...)
	writeAck(w, ts)
}

func (s *Server) handleUpdateKey(w http.ResponseWriter, r *http.Request) {
	var payload device.KeyUpdate
	if !decodeBody(w, r, &payload) {
		return
	}
	ts, err := s.dev.UpdateKey(payload)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeAck(w, ts)
}

func (s *Server) handleLearnStatus(w http.ResponseWriter, _ *http.Request) {
	learning, evs := s.dev.Learning()
	s.hub.Broadcast(evs...)
	writeJSON(w, http.StatusOK, device.LearnStatus{LearningMode: learning})
}

func (s *Server) handleLearnStart(w http.ResponseWriter, _ *http.Request) {
	s.hub.Broadcast(s.dev.StartLearning()...)
	writeAck(w, 0)
}

func (s *Server) handleLearnStop(w http.ResponseWriter, _ *http.Request) {
	s.hub.Broadcast(s.dev.StopLearning()...)
	writeAck(w, 0)
}

func (s *Server) handleGateTrigger(w http.ResponseWriter, _ *http.Request) {
	ts, evs := s.dev.TriggerGate()
	s.hub.Broadcast(evs...)
	writeAck(w, ts)
}

func (s *Server) handleWiFiScan(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.dev.Networks())
}

func (s *Server) handleWiFiConnect(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		SSID     string `json:"ssid"`
		Password string `json:"password"`
	}
	if !decodeBody(w, r, &payload) {
		return
	}
	res, evs := s.dev.ConnectWiFi(payload.SSID, payload.Password)
	s.hub.Broadcast(evs...)
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleRadioConfig(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.dev.Radio())
}

func (s *Server) handleRadioSettings(w http.ResponseWriter, r *http.Request) {
	var payload device.RadioConfig
	if !decodeBody(w, r, &payload) {
		return
	}
	cfg, evs, err := s.dev.ApplyRadio(payload)
	if err != nil {
		writeJSON(w, http.StatusOK, map[string]any{"success": false, "error": err.Error()})
		return
	}
	s.hub.Broadcast(evs...)
	writeJSON(w, http.StatusOK, map[string]any{
		"success":            true,
		"frequency":          cfg.Frequency,
		"bitRate":            cfg.BitRate,
		"frequencyDeviation": cfg.FrequencyDeviation,
		"rxBandwidth":        cfg.RxBandwidth,
		"outputPower":        cfg.OutputPower,
	})
}

// handlePress simulates a remote button: /sim/press?code=123&bits=24&protocol=1.
func (s *Server) handlePress(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	code, err := strconv.ParseUint(q.Get("code"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "error": "invalid code"})
		return
	}
	bits := queryInt(q.Get("bits"), 24)
	protocol := queryInt(q.Get("protocol"), 1)
	evs := s.dev.Receive(code, bits, protocol)
	s.hub.Broadcast(evs...)
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "events": len(evs)})
}

func (s *Server) handleDrop(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "dropped": s.hub.DropAll()})
}

func (s *Server) handleRaw(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(io.LimitReader(r.Body, 64<<10))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "error": "read body"})
		return
	}
	s.hub.BroadcastRaw(raw)
	writeAck(w, 0)
}

// Press injects a remote press without going through HTTP.
func (s *Server) Press(code uint64, bits, protocol int) {
	s.hub.Broadcast(s.dev.Receive(code, bits, protocol)...)
}

// Emit broadcasts arbitrary events, used to drive the panel in demos.
func (s *Server) Emit(evs ...events.Event) {
	s.hub.Broadcast(evs...)
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "error": "invalid json"})
		return false
	}
	return true
}

func writeAck(w http.ResponseWriter, ts int64) {
	payload := map[string]any{"success": true}
	if ts > 0 {
		payload["ts"] = ts
	}
	writeJSON(w, http.StatusOK, payload)
}

// writeFailure mixes both failure styles the firmware uses: lookups fail
// with an HTTP status, validation with {success:false} on 200.
func writeFailure(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, errNotFound):
		writeJSON(w, http.StatusNotFound, map[string]any{"success": false, "error": "not found"})
	case errors.Is(err, errDuplicate):
		writeJSON(w, http.StatusConflict, map[string]any{"success": false, "error": "already exists"})
	default:
		writeJSON(w, http.StatusOK, map[string]any{"success": false, "error": err.Error()})
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func queryInt(raw string, fallback int) int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return fallback
	}
	return n
}
