package ml

import (
	"bufio"
	"bytes"
	"fmt"

	"sustainai/internal/features"

	"github.com/dmitryikh/leaves"
)

// leavesModel wraps a native XGBoost or LightGBM ensemble decoded by leaves.
// Native files carry no column names or importances, so both come from the
// metadata sidecar.
type leavesModel struct {
	ensemble    *leaves.Ensemble
	importances []float64
	info        ModelInfo
}

func (m *leavesModel) PredictValues(values []float64) float64 {
	return m.ensemble.PredictSingle(values, 0)
}

func (m *leavesModel) Importances() []float64 {
	out := make([]float64, len(m.importances))
	copy(out, m.importances)
	return out
}

func (m *leavesModel) NumFeatures() int {
	return m.ensemble.NFeatures()
}

func (m *leavesModel) Info() ModelInfo {
	info := m.info
	info.Features = append([]string(nil), m.info.Features...)
	return info
}

// decodeLeaves parses a native model. The leaves readers index straight into
// the file contents, so malformed input can panic; that is reported as
// corruption.
func decodeLeaves(data []byte, format Format) (ens *leaves.Ensemble, err error) {
	defer func() {
		if r := recover(); r != nil {
			ens = nil
			err = corruptErrorf("failed to decode %s model: %v", format, r)
		}
	}()

	rd := bufio.NewReader(bytes.NewReader(data))
	switch format {
	case FormatXGBoost:
		ens, err = leaves.XGEnsembleFromReader(rd, true)
	case FormatLightGBM:
		ens, err = leaves.LGEnsembleFromReader(rd, true)
	default:
		return nil, corruptErrorf("format %s is not a native model format", format)
	}
	if err != nil {
		return nil, corruptErrorf("failed to decode %s model: %w", format, err)
	}
	return ens, nil
}

func newLeavesModel(ens *leaves.Ensemble, format Format, sc *sidecar) (*leavesModel, error) {
	if n := ens.NOutputGroups(); n != 1 {
		return nil, schemaErrorf("model has %d output groups, expected a single regression output", n)
	}
	if n := ens.NFeatures(); n != features.Count {
		return nil, schemaErrorf("model expects %d features, expected %d", n, features.Count)
	}
	names, weights, err := sidecarSchema(sc, format)
	if err != nil {
		return nil, err
	}

	return &leavesModel{
		ensemble:    ens,
		importances: weights,
		info: ModelInfo{
			Format:           format,
			Objective:        ens.Name(),
			Version:          sc.Version,
			TrainedAt:        sc.TrainedAt,
			Features:         names,
			NumTrees:         ens.NEstimators(),
			TrainingRows:     sc.TrainingRows,
			ValidationR2:     sc.ValidationR2,
			ImportanceSource: "metadata",
		},
	}, nil
}

// sidecarSchema extracts column names and importances from the metadata of a
// native model. Both are required: the model file alone cannot show that its
// columns are in canonical order.
func sidecarSchema(sc *sidecar, format Format) ([]string, []float64, error) {
	if sc == nil {
		return nil, nil, corruptErrorf("native %s models need a metadata file with features and feature importances", format)
	}

	names := sc.Features
	if names == nil {
		return nil, nil, corruptErrorf("metadata has no features")
	}
	if err := checkFeatureNames(names); err != nil {
		return nil, nil, fmt.Errorf("metadata: %w", err)
	}
	if sc.FeatureImportances == nil {
		return nil, nil, corruptErrorf("metadata has no feature_importances")
	}
	if err := checkImportances(sc.FeatureImportances, len(names)); err != nil {
		return nil, nil, fmt.Errorf("metadata: %w", err)
	}
	return append([]string(nil), names...), append([]float64(nil), sc.FeatureImportances...), nil
}
