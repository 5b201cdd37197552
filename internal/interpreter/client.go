package interpreter

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"tcav-panel/pkg/api"
	"time"

	"github.com/go-resty/resty/v2"
)

// Client talks to the model-serving / interpretation service.
type Client struct {
	client *resty.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		client: resty.New().
			SetBaseURL(baseURL).
			SetTimeout(timeout).
			SetHeader("Accept", "application/json"),
	}
}

type interpretBody struct {
	Inputs []api.IndexedInput `json:"inputs"`
	Config api.TCAVConfig     `json:"config"`
}

func (c *Client) ModelSpec(ctx context.Context, model string) (api.ModelSpec, error) {
	res, err := c.client.R().
		SetContext(ctx).
		SetQueryParam("model", model).
		Get("/get_model_spec")
	if err != nil {
		slog.Error("unable to fetch model spec", "model", model, "error", err)
		return api.ModelSpec{}, fmt.Errorf("error fetching spec for model '%s': %w", model, err)
	}

	if !res.IsSuccess() {
		slog.Error("interpretation service returned error", "status_code", res.StatusCode(), "body", res.String())
		return api.ModelSpec{}, fmt.Errorf("error fetching spec for model '%s': status %d: %s", model, res.StatusCode(), res.String())
	}

	var spec api.ModelSpec
	if err := json.Unmarshal(res.Body(), &spec); err != nil {
		slog.Error("error parsing model spec", "model", model, "error", err)
		return api.ModelSpec{}, fmt.Errorf("error parsing spec for model '%s': %w", model, err)
	}
	if spec.Model == "" {
		spec.Model = model
	}

	return spec, nil
}

// Interpret runs one interpretation method over the given inputs.
func (c *Client) Interpret(ctx context.Context, req api.InterpretRequest) ([]api.TCAVResult, error) {
	slog.Info(req.Description, "model", req.Model, "dataset", req.Dataset, "method", req.Method, "inputs", len(req.Inputs))

	res, err := c.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetQueryParams(map[string]string{
			"model":        req.Model,
			"dataset_name": req.Dataset,
			"interpreter":  req.Method,
		}).
		SetBody(interpretBody{Inputs: req.Inputs, Config: req.Config}).
		Post("/get_interpretations")
	if err != nil {
		slog.Error("unable to reach interpretation service", "method", req.Method, "error", err)
		return nil, fmt.Errorf("error requesting %s interpretation: %w", req.Method, err)
	}

	if !res.IsSuccess() {
		slog.Error("interpretation service returned error", "status_code", res.StatusCode(), "body", res.String())
		return nil, fmt.Errorf("error requesting %s interpretation: status %d: %s", req.Method, res.StatusCode(), res.String())
	}

	var results []api.TCAVResult
	if err := json.Unmarshal(res.Body(), &results); err != nil {
		slog.Error("error parsing interpretation response", "method", req.Method, "error", err)
		return nil, fmt.Errorf("error parsing %s interpretation response: %w", req.Method, err)
	}

	return results, nil
}
