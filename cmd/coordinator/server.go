package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/andreweacott/radiotherm-coordinator/pkg/logger"
	"github.com/andreweacott/radiotherm-coordinator/pkg/radiotherm"
	"github.com/andreweacott/radiotherm-coordinator/pkg/thermostat"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// DeviceRegistry is the part of thermostat.Registry the server needs.
type DeviceRegistry interface {
	Get(host string) (*thermostat.DeviceRecord, bool)
	Records() []*thermostat.DeviceRecord
}

// Server serves metrics, health, state and control endpoints.
type Server struct {
	devices        DeviceRegistry
	gatherer       prometheus.Gatherer
	log            *logger.Logger
	requestTimeout time.Duration
}

func NewServer(devices DeviceRegistry, gatherer prometheus.Gatherer, log *logger.Logger, requestTimeout time.Duration) *Server {
	if log == nil {
		log = logger.Discard()
	}
	return &Server{
		devices:        devices,
		gatherer:       gatherer,
		log:            log,
		requestTimeout: requestTimeout,
	}
}

// Handler returns the HTTP routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
		Timeout:           s.requestTimeout,
	}))
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("GET /state", s.handleState)
	mux.HandleFunc("POST /hold", s.handleHold)
	mux.HandleFunc("POST /target", s.handleTarget)
	mux.HandleFunc("POST /mode", s.handleMode)
	mux.HandleFunc("POST /fan", s.handleFan)
	return mux
}

// Run starts the HTTP server and shuts it down gracefully when ctx is done.
func (s *Server) Run(ctx context.Context, port int) error {
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      s.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: s.requestTimeout + 5*time.Second,
		IdleTimeout:  65 * time.Second,
	}

	// Start server in background
	serverErrors := make(chan error, 1)
	go func() {
		s.log.Info("Starting HTTP server", "address", server.Addr, "port", port)
		serverErrors <- server.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil

	case <-ctx.Done():
		s.log.Info("Shutting down HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("HTTP server shutdown error: %w", err)
		}

		s.log.Info("HTTP server stopped")
		return nil
	}
}

type healthResponse struct {
	Status    string `json:"status"`
	Devices   int    `json:"devices"`
	Available int    `json:"available"`
}

// handleHealth reports ok while every configured device answered its last poll.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	records := s.devices.Records()
	resp := healthResponse{Status: "ok", Devices: len(records)}
	for _, rec := range records {
		if rec.Coordinator.LastUpdateSuccess() {
			resp.Available++
		}
	}
	if resp.Available < resp.Devices {
		resp.Status = "degraded"
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Has("host") {
		rec, ok := s.devices.Get(r.URL.Query().Get("host"))
		if !ok {
			writeError(w, http.StatusNotFound, errors.New("unknown host"))
			return
		}
		state, ok := rec.State()
		if !ok {
			writeError(w, http.StatusServiceUnavailable, thermostat.ErrNoData)
			return
		}
		writeJSON(w, http.StatusOK, state)
		return
	}

	states := make([]thermostat.State, 0)
	for _, rec := range s.devices.Records() {
		if state, ok := rec.State(); ok {
			states = append(states, state)
		}
	}
	writeJSON(w, http.StatusOK, states)
}

// Command payload format: {"value": ...}
type valueRequest[T any] struct {
	Value *T `json:"value"`
}

func decodeValue[T any](w http.ResponseWriter, r *http.Request) (T, error) {
	var zero T
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1024))
	dec.DisallowUnknownFields()
	var req valueRequest[T]
	if err := dec.Decode(&req); err != nil {
		return zero, fmt.Errorf("invalid body: %w", err)
	}
	if req.Value == nil {
		return zero, errors.New("missing field 'value'")
	}
	return *req.Value, nil
}

func (s *Server) handleHold(w http.ResponseWriter, r *http.Request) {
	hold, err := decodeValue[bool](w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	s.control(w, r, "hold", func(ctx context.Context, rec *thermostat.DeviceRecord) error {
		return thermostat.SetHold(ctx, rec, hold)
	})
}

func (s *Server) handleTarget(w http.ResponseWriter, r *http.Request) {
	temp, err := decodeValue[float64](w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	s.control(w, r, "target", func(ctx context.Context, rec *thermostat.DeviceRecord) error {
		return thermostat.SetTargetTemperature(ctx, rec, temp)
	})
}

func (s *Server) handleMode(w http.ResponseWriter, r *http.Request) {
	value, err := decodeValue[string](w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	mode, err := radiotherm.ParseMode(value)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	s.control(w, r, "mode", func(ctx context.Context, rec *thermostat.DeviceRecord) error {
		return thermostat.SetMode(ctx, rec, mode)
	})
}

func (s *Server) handleFan(w http.ResponseWriter, r *http.Request) {
	value, err := decodeValue[string](w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	fan, err := radiotherm.ParseFanMode(value)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	s.control(w, r, "fan", func(ctx context.Context, rec *thermostat.DeviceRecord) error {
		return thermostat.SetFanMode(ctx, rec, fan)
	})
}

// control resolves the target device and runs one write against it. The
// write schedules the delayed refresh, so the response carries no new state.
func (s *Server) control(w http.ResponseWriter, r *http.Request, command string, apply func(context.Context, *thermostat.DeviceRecord) error) {
	rec, status, err := s.resolve(r)
	if err != nil {
		writeError(w, status, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.requestTimeout)
	defer cancel()

	log := s.log.WithDevice(rec.InitData.Name, rec.Coordinator.Host).With("command", command)
	if err := apply(ctx, rec); err != nil {
		log.Warn("command failed", "error", err)
		writeError(w, commandStatus(err), err)
		return
	}
	log.Info("command applied")
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

// resolve picks the device named by ?host=, or the only device when there is one.
func (s *Server) resolve(r *http.Request) (*thermostat.DeviceRecord, int, error) {
	if host := r.URL.Query().Get("host"); host != "" {
		rec, ok := s.devices.Get(host)
		if !ok {
			return nil, http.StatusNotFound, fmt.Errorf("unknown host %q", host)
		}
		return rec, 0, nil
	}

	records := s.devices.Records()
	switch len(records) {
	case 0:
		return nil, http.StatusServiceUnavailable, errors.New("no devices ready")
	case 1:
		return records[0], 0, nil
	default:
		return nil, http.StatusBadRequest, errors.New("host query parameter is required with several devices")
	}
}

func commandStatus(err error) int {
	switch {
	case errors.Is(err, thermostat.ErrTargetNotSettable):
		return http.StatusConflict
	case errors.Is(err, thermostat.ErrNoData), errors.Is(err, radiotherm.ErrCircuitOpen):
		return http.StatusServiceUnavailable
	case radiotherm.Classify(err) == radiotherm.KindTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusBadGateway
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
