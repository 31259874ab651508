package main

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"

	"sustainai/internal/ml"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testModel = "../../internal/ml/testdata/efficiency_model.json"

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append([]string{"--log-level", "error"}, args...))
	err := root.Execute()
	return out.String(), err
}

func TestPredictCommand(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want float64
	}{
		{"defaults", nil, 24.75},
		{"hot and humid", []string{"--temperature", "150", "--pressure", "70", "--time", "5", "--humidity", "30"}, 32.25},
		{"cold and acidic", []string{"--temperature", "50", "--pressure", "10", "--time", "2", "--humidity", "80", "--pH", "3"}, 8.25},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := run(t, append([]string{"predict", "--model", testModel}, tt.args...)...)
			require.NoError(t, err)

			var resp ml.PredictionResponse
			require.NoError(t, json.Unmarshal([]byte(out), &resp))
			assert.InDelta(t, tt.want, resp.Score, 1e-9)
			assert.Equal(t, "2024.06.1", resp.ModelVersion)
		})
	}
}

func TestPredictCommandErrors(t *testing.T) {
	_, err := run(t, "predict", "--model", "does/not/exist.json")
	assert.ErrorIs(t, err, ml.ErrArtifactNotFound)

	_, err = run(t, "predict", "--model", testModel, "--strict-domain", "--temperature", "500")
	assert.ErrorIs(t, err, ml.ErrInvalidInput)

	_, err = run(t, "predict", "--model", testModel, "--format", "onnx")
	assert.Error(t, err)
}

func TestImportancesCommand(t *testing.T) {
	out, err := run(t, "importances", "--model", testModel, "--ranked")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 6)
	assert.Equal(t, []string{"FEATURE", "WEIGHT"}, strings.Fields(lines[0]))
	assert.Equal(t, []string{"temperature", "0.4000"}, strings.Fields(lines[1]))
	assert.Equal(t, []string{"time", "0.3000"}, strings.Fields(lines[2]))

	out, err = run(t, "importances", "--model", testModel, "--json")
	require.NoError(t, err)

	var resp ml.ImportancesResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "canonical", resp.Order)
	require.Len(t, resp.Importances, 5)
	assert.Equal(t, "pressure", string(resp.Importances[1].Feature))
	assert.InDelta(t, 0.1, resp.Importances[1].Weight, 1e-9)
}

func TestInspectCommand(t *testing.T) {
	out, err := run(t, "inspect", "--model", testModel)
	require.NoError(t, err)

	var info ml.ModelInfo
	require.NoError(t, json.Unmarshal([]byte(out), &info))
	assert.Equal(t, "2024.06.1", info.Version)
	assert.Equal(t, 3, info.NumTrees)
	assert.Len(t, info.SHA256, 64)
}

func TestQueryCommand(t *testing.T) {
	engine := ml.NewEngine()
	require.NoError(t, engine.Load(testModel))
	srv := httptest.NewServer(ml.NewModelServer(engine, nil, ml.DefaultServerConfig()).Handler())
	defer srv.Close()

	out, err := run(t, "query", "--server", srv.URL, "predict", "--temperature", "150", "--pressure", "70", "--time", "5", "--humidity", "30")
	require.NoError(t, err)
	var resp ml.PredictionResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.InDelta(t, 32.25, resp.Score, 1e-9)

	out, err = run(t, "query", "--server", srv.URL, "health")
	require.NoError(t, err)
	var health ml.HealthResponse
	require.NoError(t, json.Unmarshal([]byte(out), &health))
	assert.True(t, health.ModelLoaded)
}

func TestQueryCommandUnready(t *testing.T) {
	srv := httptest.NewServer(ml.NewModelServer(ml.NewEngine(), nil, ml.DefaultServerConfig()).Handler())
	defer srv.Close()

	_, err := run(t, "query", "--server", srv.URL, "importances")
	assert.ErrorIs(t, err, ml.ErrModelNotLoaded)
}

func TestVersionCommand(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "sustainai dev\n", out)
}
