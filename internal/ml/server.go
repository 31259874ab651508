package ml

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"sustainai/internal/features"

	"github.com/rs/zerolog/log"
)

const maxRequestBody = 1 << 20

// RequestObserver records per-route HTTP outcomes.
type RequestObserver interface {
	HTTPRequestObserve(route string, status int, seconds float64)
}

// ServerConfig contains configuration for the model server
type ServerConfig struct {
	Port           int
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	RequestTimeout time.Duration
}

// DefaultServerConfig returns the settings used when none are given.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Port:           8080,
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   10 * time.Second,
		RequestTimeout: 5 * time.Second,
	}
}

// ModelServer provides HTTP API for model predictions
type ModelServer struct {
	predictor Predictor
	observer  RequestObserver
	handler   http.Handler
	server    *http.Server
}

// PredictionRequest carries one set of process parameters. Every field is
// required; pointers tell an absent field apart from zero.
type PredictionRequest struct {
	Temperature *float64 `json:"temperature"`
	Pressure    *float64 `json:"pressure"`
	Time        *float64 `json:"time"`
	Humidity    *float64 `json:"humidity"`
	PH          *float64 `json:"pH"`
	RequestID   string   `json:"request_id,omitempty"`
}

// Vector converts the request, reporting the first absent field in
// canonical order as invalid input.
func (r PredictionRequest) Vector() (features.Vector, error) {
	fields := []struct {
		name features.Name
		val  *float64
	}{
		{features.Temperature, r.Temperature},
		{features.Pressure, r.Pressure},
		{features.Time, r.Time},
		{features.Humidity, r.Humidity},
		{features.PH, r.PH},
	}
	for _, f := range fields {
		if f.val == nil {
			return features.Vector{}, &features.InputError{Field: f.name, Reason: "field is required"}
		}
	}
	return features.Vector{
		Temperature: *r.Temperature,
		Pressure:    *r.Pressure,
		Time:        *r.Time,
		Humidity:    *r.Humidity,
		PH:          *r.PH,
	}, nil
}

// PredictionResponse represents the prediction result
type PredictionResponse struct {
	Score        float64   `json:"score"`
	RequestID    string    `json:"request_id,omitempty"`
	ModelVersion string    `json:"model_version"`
	Latency      float64   `json:"latency_ms"`
	Timestamp    time.Time `json:"timestamp"`
}

// ImportancesResponse lists feature importances in the requested order.
type ImportancesResponse struct {
	Order        string       `json:"order"`
	Importances  []Importance `json:"importances"`
	ModelVersion string       `json:"model_version"`
}

// HealthResponse reports engine readiness.
type HealthResponse struct {
	Status       string `json:"status"`
	ModelLoaded  bool   `json:"model_loaded"`
	ModelVersion string `json:"model_version,omitempty"`
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
	Field string `json:"field,omitempty"`
}

// NewModelServer creates a new HTTP server for model serving. observer may
// be nil.
func NewModelServer(predictor Predictor, observer RequestObserver, cfg ServerConfig) *ModelServer {
	ms := &ModelServer{
		predictor: predictor,
		observer:  observer,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/predict", ms.observe("/predict", ms.handlePredict))
	mux.HandleFunc("/importances", ms.observe("/importances", ms.handleImportances))
	mux.HandleFunc("/health", ms.observe("/health", ms.handleHealth))
	mux.HandleFunc("/model/info", ms.observe("/model/info", ms.handleModelInfo))

	ms.handler = mux
	if cfg.RequestTimeout > 0 {
		ms.handler = http.TimeoutHandler(mux, cfg.RequestTimeout, `{"error":"request timed out","kind":"internal"}`)
	}

	ms.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      ms.handler,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	return ms
}

// Handler exposes the routes, e.g. for httptest.
func (ms *ModelServer) Handler() http.Handler {
	return ms.handler
}

// Addr is the configured listen address.
func (ms *ModelServer) Addr() string {
	return ms.server.Addr
}

// Start begins serving HTTP requests. It returns nil after Shutdown.
func (ms *ModelServer) Start() error {
	log.Info().Str("addr", ms.server.Addr).Msg("Starting model server")
	if err := ms.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the server
func (ms *ModelServer) Shutdown(ctx context.Context) error {
	return ms.server.Shutdown(ctx)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (ms *ModelServer) observe(route string, next http.HandlerFunc) http.HandlerFunc {
	if ms.observer == nil {
		return next
	}
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next(rec, r)
		ms.observer.HTTPRequestObserve(route, rec.status, time.Since(start).Seconds())
	}
}

func (ms *ModelServer) handlePredict(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w, http.MethodPost)
		return
	}

	start := time.Now()

	var req PredictionRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error: fmt.Sprintf("invalid request: %v", err),
			Kind:  ErrorKind(ErrInvalidInput),
		})
		return
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error: "invalid request: body must contain a single JSON object",
			Kind:  ErrorKind(ErrInvalidInput),
		})
		return
	}

	vec, err := req.Vector()
	if err != nil {
		writeError(w, err)
		return
	}

	score, err := ms.predictor.Predict(vec)
	if err != nil {
		writeError(w, err)
		return
	}

	var version string
	if info, err := ms.predictor.Info(); err == nil {
		version = info.Version
	}

	writeJSON(w, http.StatusOK, PredictionResponse{
		Score:        score,
		RequestID:    req.RequestID,
		ModelVersion: version,
		Latency:      float64(time.Since(start).Microseconds()) / 1000,
		Timestamp:    time.Now().UTC(),
	})
}

func (ms *ModelServer) handleImportances(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w, http.MethodGet)
		return
	}

	order := r.URL.Query().Get("order")
	switch order {
	case "":
		order = "canonical"
	case "canonical", "ranked":
	default:
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error: fmt.Sprintf("unknown order %q (expected canonical or ranked)", order),
			Kind:  ErrorKind(ErrInvalidInput),
		})
		return
	}

	report, err := ms.predictor.FeatureImportances()
	if err != nil {
		writeError(w, err)
		return
	}
	if order == "ranked" {
		report = report.Ranked()
	}

	var version string
	if info, err := ms.predictor.Info(); err == nil {
		version = info.Version
	}

	writeJSON(w, http.StatusOK, ImportancesResponse{
		Order:        order,
		Importances:  report.Items,
		ModelVersion: version,
	})
}

func (ms *ModelServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w, http.MethodGet)
		return
	}

	if !ms.predictor.Ready() {
		writeJSON(w, http.StatusServiceUnavailable, HealthResponse{Status: Unready.String()})
		return
	}

	resp := HealthResponse{Status: Ready.String(), ModelLoaded: true}
	if info, err := ms.predictor.Info(); err == nil {
		resp.ModelVersion = info.Version
	}
	writeJSON(w, http.StatusOK, resp)
}

func (ms *ModelServer) handleModelInfo(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w, http.MethodGet)
		return
	}

	info, err := ms.predictor.Info()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func writeMethodNotAllowed(w http.ResponseWriter, allowed string) {
	w.Header().Set("Allow", allowed)
	writeJSON(w, http.StatusMethodNotAllowed, ErrorResponse{Error: "method not allowed", Kind: "method_not_allowed"})
}

func writeError(w http.ResponseWriter, err error) {
	resp := ErrorResponse{Error: err.Error(), Kind: ErrorKind(err)}

	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, ErrInvalidInput):
		status = http.StatusBadRequest
		var inErr *features.InputError
		if errors.As(err, &inErr) {
			resp.Field = string(inErr.Field)
		}
	case errors.Is(err, ErrModelNotLoaded):
		status = http.StatusServiceUnavailable
	default:
		log.Error().Err(err).Msg("Request failed")
	}
	writeJSON(w, status, resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn().Err(err).Msg("Failed to encode response")
	}
}
