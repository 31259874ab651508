package ml

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// artifactMetadata is the optional training provenance stored with a model.
type artifactMetadata struct {
	Version      string    `json:"version" msgpack:"version"`
	TrainedAt    time.Time `json:"trained_at" msgpack:"trained_at"`
	TrainingRows int       `json:"training_rows" msgpack:"training_rows"`
	ValidationR2 float64   `json:"validation_r2" msgpack:"validation_r2"`
}

// sidecar is the "<model>.metadata.json" file exported next to native
// XGBoost/LightGBM models, which cannot carry feature names or importances.
type sidecar struct {
	Features           []string  `json:"features"`
	FeatureImportances []float64 `json:"feature_importances"`
	artifactMetadata
}

// sidecarPath derives the metadata file name: "model.bin.gz" -> "model.metadata.json".
func sidecarPath(modelPath string) string {
	p := trimCompressionExt(modelPath)
	return strings.TrimSuffix(p, filepath.Ext(p)) + ".metadata.json"
}

func trimCompressionExt(p string) string {
	ext := filepath.Ext(p)
	if ext == ".gz" || ext == ".gzip" {
		return strings.TrimSuffix(p, ext)
	}
	return p
}

// loadSidecar reads the metadata file of modelPath. A missing file yields
// (nil, nil).
func loadSidecar(modelPath string) (*sidecar, error) {
	path := sidecarPath(modelPath)
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			log.Warn().Str("metadata_path", path).Msg("Model metadata file not found")
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read model metadata %s: %w", path, err)
	}
	var sc sidecar
	if err := json.Unmarshal(data, &sc); err != nil {
		return nil, fmt.Errorf("failed to parse model metadata %s: %w", path, err)
	}
	return &sc, nil
}

// checkImportances validates explicit importance weights against the model width.
func checkImportances(weights []float64, width int) error {
	if len(weights) != width {
		return schemaErrorf("expected %d feature importances, got %d", width, len(weights))
	}
	for i, w := range weights {
		if math.IsNaN(w) || math.IsInf(w, 0) || w < 0 {
			return corruptErrorf("feature importance %d is invalid: %v", i, w)
		}
	}
	return nil
}
