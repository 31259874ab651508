// Package ml serves the pre-trained process-efficiency model. It loads a
// tree-ensemble artifact from disk, binds it to an Engine exactly once and
// answers predictions and feature-importance queries against it.
//
// The package supports self-describing JSON/msgpack ensemble bundles as well
// as native XGBoost binary and LightGBM text models, and reports load and
// request failures as typed errors.
package ml

import (
	"time"

	"sustainai/internal/features"
)

// Handle is a loaded tree ensemble. Implementations are immutable after
// construction and safe for concurrent use.
type Handle interface {
	// PredictValues scores one row given in canonical feature order.
	PredictValues(values []float64) float64

	// Importances returns one non-negative weight per feature in canonical
	// order. The slice is a copy owned by the caller.
	Importances() []float64

	// NumFeatures is the input width the ensemble was trained on.
	NumFeatures() int

	// Info describes the loaded model.
	Info() ModelInfo
}

// Predictor is the request-facing surface of an Engine.
type Predictor interface {
	// Predict scores one set of process parameters.
	Predict(v features.Vector) (float64, error)

	// FeatureImportances returns the model's static importances in
	// canonical feature order.
	FeatureImportances() (Report, error)

	// Info describes the bound model.
	Info() (ModelInfo, error)

	// Ready reports whether a model is bound.
	Ready() bool
}

// ModelInfo contains information about the loaded model. It never carries
// the artifact path.
type ModelInfo struct {
	Format           Format    `json:"format"`
	Objective        string    `json:"objective,omitempty"`
	Version          string    `json:"version"`
	TrainedAt        time.Time `json:"trained_at"`
	Features         []string  `json:"features"`
	NumTrees         int       `json:"num_trees"`
	TrainingRows     int       `json:"training_rows,omitempty"`
	ValidationR2     float64   `json:"validation_r2,omitempty"`
	ImportanceSource string    `json:"importance_source"`
	SHA256           string    `json:"sha256"`
	ArtifactModTime  time.Time `json:"artifact_mod_time"`
}
