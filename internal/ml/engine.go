package ml

import (
	"fmt"
	"math"
	"sync/atomic"
	"time"

	"sustainai/internal/features"

	"github.com/rs/zerolog/log"
)

// MetricsInterface defines metrics methods needed by the engine
type MetricsInterface interface {
	MLPredictionsInc()
	MLFailuresInc()
	MLInvalidInputsInc()
	MLLatencyObserve(float64)
	MLModelAgeSet(float64)
	MLPredictionScoresObserve(float64)
	MLModelReadySet(bool)
}

// State is the engine lifecycle position.
type State int

const (
	Unready State = iota
	Ready
)

func (s State) String() string {
	switch s {
	case Unready:
		return "unready"
	case Ready:
		return "ready"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// binding is what a Ready engine holds. It is never mutated after Bind.
type binding struct {
	handle      Handle
	info        ModelInfo
	importances Report
	boundAt     time.Time
}

// Engine answers predictions and importance queries against one model that
// is bound exactly once. All methods are safe for concurrent use and reads
// take no locks.
type Engine struct {
	bound        atomic.Pointer[binding]
	metrics      MetricsInterface
	strictDomain bool
	format       Format
}

// Option configures an Engine.
type Option func(*Engine)

// WithMetrics attaches a metrics sink. A nil sink disables metrics.
func WithMetrics(m MetricsInterface) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithStrictDomain also rejects finite inputs outside the recommended
// feature ranges.
func WithStrictDomain(strict bool) Option {
	return func(e *Engine) { e.strictDomain = strict }
}

// WithFormat overrides extension-based format detection in Load.
func WithFormat(f Format) Option {
	return func(e *Engine) { e.format = f }
}

// NewEngine returns an Unready engine.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{format: FormatAuto}
	for _, opt := range opts {
		opt(e)
	}
	if e.metrics != nil {
		e.metrics.MLModelReadySet(false)
	}
	return e
}

// Load reads the artifact at path and binds it. A failed load leaves the
// engine Unready.
func (e *Engine) Load(path string) error {
	if e.Ready() {
		return ErrAlreadyLoaded
	}
	h, err := LoadFormat(path, e.format)
	if err != nil {
		return err
	}
	return e.Bind(h)
}

// Bind moves the engine from Unready to Ready. Only the first call wins;
// later calls return ErrAlreadyLoaded and leave the bound model in place.
func (e *Engine) Bind(h Handle) error {
	if h == nil {
		return fmt.Errorf("bind: nil model handle")
	}
	if n := h.NumFeatures(); n != features.Count {
		return fmt.Errorf("bind: %w: model expects %d features, expected %d", ErrSchemaMismatch, n, features.Count)
	}
	weights := h.Importances()
	if len(weights) != features.Count {
		return fmt.Errorf("bind: %w: model reports %d importances, expected %d", ErrSchemaMismatch, len(weights), features.Count)
	}

	b := &binding{
		handle:      h,
		info:        h.Info(),
		importances: newReport(weights),
		boundAt:     time.Now(),
	}
	if !e.bound.CompareAndSwap(nil, b) {
		return ErrAlreadyLoaded
	}

	if e.metrics != nil {
		e.metrics.MLModelReadySet(true)
		e.metrics.MLModelAgeSet(b.modelAge().Seconds())
	}
	log.Info().
		Str("format", string(b.info.Format)).
		Str("version", b.info.Version).
		Int("trees", b.info.NumTrees).
		Msg("Engine ready")
	return nil
}

// Ready reports whether a model is bound.
func (e *Engine) Ready() bool {
	return e.bound.Load() != nil
}

// State returns the current lifecycle state.
func (e *Engine) State() State {
	if e.Ready() {
		return Ready
	}
	return Unready
}

// Info describes the bound model.
func (e *Engine) Info() (ModelInfo, error) {
	b := e.bound.Load()
	if b == nil {
		return ModelInfo{}, ErrModelNotLoaded
	}
	info := b.info
	info.Features = append([]string(nil), b.info.Features...)
	return info, nil
}

// Predict scores v. ErrModelNotLoaded takes precedence over input
// validation. Identical inputs always yield identical scores.
func (e *Engine) Predict(v features.Vector) (float64, error) {
	start := time.Now()

	b := e.bound.Load()
	if b == nil {
		e.failure()
		return 0, ErrModelNotLoaded
	}

	validate := v.Validate
	if e.strictDomain {
		validate = v.ValidateDomain
	}
	if err := validate(); err != nil {
		if e.metrics != nil {
			e.metrics.MLInvalidInputsInc()
		}
		return 0, err
	}

	score := b.handle.PredictValues(v.Values())
	if math.IsNaN(score) || math.IsInf(score, 0) {
		log.Warn().Float64("score", score).Msg("Model returned a non-finite score")
	}

	if e.metrics != nil {
		e.metrics.MLPredictionsInc()
		e.metrics.MLLatencyObserve(time.Since(start).Seconds())
		e.metrics.MLPredictionScoresObserve(score)
		e.metrics.MLModelAgeSet(b.modelAge().Seconds())
	}
	log.Debug().
		Float64("score", score).
		Dur("latency", time.Since(start)).
		Msg("Prediction made")
	return score, nil
}

// FeatureImportances returns the bound model's importances in canonical
// feature order. Repeated calls return equal reports.
func (e *Engine) FeatureImportances() (Report, error) {
	b := e.bound.Load()
	if b == nil {
		e.failure()
		return Report{}, ErrModelNotLoaded
	}
	return b.importances.clone(), nil
}

func (e *Engine) failure() {
	if e.metrics != nil {
		e.metrics.MLFailuresInc()
	}
}

// modelAge prefers the training timestamp and falls back to the artifact
// modification time, then to the bind time.
func (b *binding) modelAge() time.Duration {
	switch {
	case !b.info.TrainedAt.IsZero():
		return time.Since(b.info.TrainedAt)
	case !b.info.ArtifactModTime.IsZero():
		return time.Since(b.info.ArtifactModTime)
	default:
		return time.Since(b.boundAt)
	}
}

var _ Predictor = (*Engine)(nil)
