// Package client talks to a running model server over HTTP.
package client

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"sustainai/internal/features"
	"sustainai/internal/ml"

	"github.com/go-resty/resty/v2"
)

type Client struct {
	base string
	rest *resty.Client
}

func New(base string, timeout time.Duration) *Client {
	r := resty.New()
	if timeout > 0 {
		r.SetTimeout(timeout)
	} else {
		r.SetTimeout(5 * time.Second) // default fallback
	}
	r.SetHeader("Accept", "application/json")
	return &Client{base: strings.TrimRight(base, "/"), rest: r}
}

// RemoteError is a failure reported by the server. It unwraps to the
// matching ml sentinel, so errors.Is(err, ml.ErrInvalidInput) works across
// the wire.
type RemoteError struct {
	Status  int
	Kind    string
	Field   string
	Message string
}

func (e *RemoteError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server: status %d (%s)", e.Status, e.Kind)
	}
	return fmt.Sprintf("server: status %d (%s): %s", e.Status, e.Kind, e.Message)
}

func (e *RemoteError) Unwrap() error {
	return ml.KindError(e.Kind)
}

func remoteError(resp *resty.Response) error {
	re := &RemoteError{Status: resp.StatusCode()}
	if body, ok := resp.Error().(*ml.ErrorResponse); ok && body != nil {
		re.Kind = body.Kind
		re.Field = body.Field
		re.Message = body.Error
	}
	if re.Message == "" {
		re.Message = strings.TrimSpace(resp.String())
	}
	return re
}

// Predict scores v on the server.
func (c *Client) Predict(ctx context.Context, v features.Vector) (ml.PredictionResponse, error) {
	req := ml.PredictionRequest{
		Temperature: &v.Temperature,
		Pressure:    &v.Pressure,
		Time:        &v.Time,
		Humidity:    &v.Humidity,
		PH:          &v.PH,
	}

	var out ml.PredictionResponse
	resp, err := c.rest.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&out).
		SetError(&ml.ErrorResponse{}).
		Post(c.base + "/predict")
	if err != nil {
		return ml.PredictionResponse{}, fmt.Errorf("request failed: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return ml.PredictionResponse{}, remoteError(resp)
	}
	return out, nil
}

// Importances fetches the model's feature importances, ranked by weight
// when ranked is set.
func (c *Client) Importances(ctx context.Context, ranked bool) (ml.ImportancesResponse, error) {
	order := "canonical"
	if ranked {
		order = "ranked"
	}

	var out ml.ImportancesResponse
	resp, err := c.rest.R().
		SetContext(ctx).
		SetQueryParam("order", order).
		SetResult(&out).
		SetError(&ml.ErrorResponse{}).
		Get(c.base + "/importances")
	if err != nil {
		return ml.ImportancesResponse{}, fmt.Errorf("request failed: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return ml.ImportancesResponse{}, remoteError(resp)
	}
	return out, nil
}

// Info fetches the description of the served model.
func (c *Client) Info(ctx context.Context) (ml.ModelInfo, error) {
	var out ml.ModelInfo
	resp, err := c.rest.R().
		SetContext(ctx).
		SetResult(&out).
		SetError(&ml.ErrorResponse{}).
		Get(c.base + "/model/info")
	if err != nil {
		return ml.ModelInfo{}, fmt.Errorf("request failed: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return ml.ModelInfo{}, remoteError(resp)
	}
	return out, nil
}

// Health reports the server's readiness. An unready server is not an
// error; the returned status says so.
func (c *Client) Health(ctx context.Context) (ml.HealthResponse, error) {
	var out ml.HealthResponse
	resp, err := c.rest.R().
		SetContext(ctx).
		SetResult(&out).
		SetError(&out).
		Get(c.base + "/health")
	if err != nil {
		return ml.HealthResponse{}, fmt.Errorf("request failed: %w", err)
	}
	switch resp.StatusCode() {
	case http.StatusOK, http.StatusServiceUnavailable:
		return out, nil
	default:
		return ml.HealthResponse{}, fmt.Errorf("API error: status %d, body: %s", resp.StatusCode(), resp.String())
	}
}
