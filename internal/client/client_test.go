package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"sustainai/internal/features"
	"sustainai/internal/ml"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testModelPath = "../ml/testdata/efficiency_model.json"

var baseline = features.Vector{Temperature: 100, Pressure: 50, Time: 12, Humidity: 50, PH: 7}

func newServer(t *testing.T, loaded bool, opts ...ml.Option) *Client {
	t.Helper()
	e := ml.NewEngine(opts...)
	if loaded {
		require.NoError(t, e.Load(testModelPath))
	}
	srv := httptest.NewServer(ml.NewModelServer(e, nil, ml.DefaultServerConfig()).Handler())
	t.Cleanup(srv.Close)
	return New(srv.URL+"/", 2*time.Second)
}

func TestClient_Predict(t *testing.T) {
	c := newServer(t, true)

	resp, err := c.Predict(context.Background(), baseline)
	require.NoError(t, err)
	assert.InDelta(t, 24.75, resp.Score, 1e-9)
	assert.Equal(t, "2024.06.1", resp.ModelVersion)
}

func TestClient_PredictZeroValuesAreSent(t *testing.T) {
	c := newServer(t, true)

	// zero is a legitimate reading and must not be dropped as "missing"
	resp, err := c.Predict(context.Background(), features.Vector{})
	require.NoError(t, err)
	// temperature 0 < 120, time 0 < 10, pressure 0 < 60, pH 0 < 6.5
	assert.InDelta(t, 0.5+10-2.5+0.25, resp.Score, 1e-9)
}

func TestClient_RemoteErrorsMapToSentinels(t *testing.T) {
	c := newServer(t, true, ml.WithStrictDomain(true))

	_, err := c.Predict(context.Background(), features.Vector{Temperature: 100, Pressure: 50, Time: 12, Humidity: 50, PH: 15})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ml.ErrInvalidInput))

	var re *RemoteError
	require.True(t, errors.As(err, &re))
	assert.Equal(t, http.StatusBadRequest, re.Status)
	assert.Equal(t, "invalid_input", re.Kind)
	assert.Equal(t, "pH", re.Field)
}

func TestClient_Unready(t *testing.T) {
	c := newServer(t, false)
	ctx := context.Background()

	_, err := c.Predict(ctx, baseline)
	assert.ErrorIs(t, err, ml.ErrModelNotLoaded)

	_, err = c.Importances(ctx, false)
	assert.ErrorIs(t, err, ml.ErrModelNotLoaded)

	_, err = c.Info(ctx)
	assert.ErrorIs(t, err, ml.ErrModelNotLoaded)

	health, err := c.Health(ctx)
	require.NoError(t, err)
	assert.Equal(t, "unready", health.Status)
	assert.False(t, health.ModelLoaded)
}

func TestClient_ImportancesAndInfo(t *testing.T) {
	c := newServer(t, true)
	ctx := context.Background()

	canonical, err := c.Importances(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, "canonical", canonical.Order)
	require.Len(t, canonical.Importances, features.Count)
	assert.Equal(t, features.Temperature, canonical.Importances[0].Feature)
	assert.Equal(t, features.Pressure, canonical.Importances[1].Feature)

	ranked, err := c.Importances(ctx, true)
	require.NoError(t, err)
	assert.Equal(t, "ranked", ranked.Order)
	assert.Equal(t, features.Time, ranked.Importances[1].Feature)

	info, err := c.Info(ctx)
	require.NoError(t, err)
	assert.Equal(t, ml.FormatBundle, info.Format)
	assert.Equal(t, 3, info.NumTrees)

	health, err := c.Health(ctx)
	require.NoError(t, err)
	assert.Equal(t, "ready", health.Status)
}

func TestClient_UnexpectedResponses(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream exploded", http.StatusBadGateway)
	}))
	t.Cleanup(srv.Close)
	c := New(srv.URL, time.Second)

	_, err := c.Predict(context.Background(), baseline)
	require.Error(t, err)
	var re *RemoteError
	require.True(t, errors.As(err, &re))
	assert.Equal(t, http.StatusBadGateway, re.Status)
	assert.Contains(t, re.Message, "upstream exploded")
	assert.Nil(t, errors.Unwrap(err))

	_, err = c.Health(context.Background())
	assert.Error(t, err)
}

func TestClient_ConnectionFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := New(url, time.Second).Predict(context.Background(), baseline)
	require.Error(t, err)
	var re *RemoteError
	assert.False(t, errors.As(err, &re))
}
