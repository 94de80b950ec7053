package external

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"floodcast/internal/artifacts"
	"floodcast/internal/types"
)

// maxErrorBody caps how much of an error response is kept for diagnostics.
const maxErrorBody = 4 << 10

// InferenceClientConfig configures an InferenceClient.
type InferenceClientConfig struct {
	BaseURL    string
	MaxRetries int
	Logger     *slog.Logger
}

// InferenceClient talks to a TensorFlow-Serving compatible REST endpoint:
// model status at GET /v1/models/{name}, inference at
// POST /v1/models/{name}:predict.
type InferenceClient struct {
	base    *BaseClient
	baseURL string
	logger  *slog.Logger
}

// NewInferenceClient creates an InferenceClient. The http client's timeout
// bounds each attempt.
func NewInferenceClient(httpClient *http.Client, cfg InferenceClientConfig) *InferenceClient {
	policy := DefaultRetryPolicy()
	policy.MaxRetries = cfg.MaxRetries
	return NewInferenceClientWithBase(NewBaseClient(httpClient, "inference", policy, "floodcast/1.0"), cfg)
}

// NewInferenceClientWithBase uses a pre-built BaseClient.
func NewInferenceClientWithBase(base *BaseClient, cfg InferenceClientConfig) *InferenceClient {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &InferenceClient{
		base:    base,
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		logger:  logger,
	}
}

type modelStatusResponse struct {
	ModelVersionStatus []struct {
		Version string `json:"version"`
		State   string `json:"state"`
	} `json:"model_version_status"`
}

type predictRequest struct {
	Instances [][][]float64 `json:"instances"`
}

type predictResponse struct {
	Predictions json.RawMessage `json:"predictions"`
	Error       string          `json:"error,omitempty"`
}

// LoadModel checks that name has an AVAILABLE version on the server and
// returns a handle bound to it.
func (c *InferenceClient) LoadModel(ctx context.Context, name string) (artifacts.Predictor, error) {
	endpoint := fmt.Sprintf("%s/v1/models/%s", c.baseURL, url.PathEscape(name))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalUnexpected, "failed to build model status request", err)
	}

	resp, err := c.base.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, c.errorFromResponse(resp, "model status")
	}

	var status modelStatusResponse
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return nil, types.NewAppError(types.ErrCodeUpstreamInference, "failed to decode model status", err)
	}
	for _, v := range status.ModelVersionStatus {
		if strings.EqualFold(v.State, "AVAILABLE") {
			c.logger.InfoContext(ctx, "served model available", "model", name, "version", v.Version)
			return &RemoteModel{client: c, name: name}, nil
		}
	}
	return nil, types.NewAppErrorWithDetails(types.ErrCodeModelLoadFailed,
		"served model has no available version", nil, map[string]any{"model": name})
}

// RemoteModel is a served model bound to one name.
type RemoteModel struct {
	client *InferenceClient
	name   string
}

// Name returns the served model name.
func (m *RemoteModel) Name() string { return m.name }

// Predict sends one window as a single instance and returns the flattened
// output of that instance.
func (m *RemoteModel) Predict(ctx context.Context, window [][]float64) ([]float64, error) {
	return m.client.predict(ctx, m.name, window)
}

func (c *InferenceClient) predict(ctx context.Context, name string, window [][]float64) ([]float64, error) {
	body, err := json.Marshal(predictRequest{Instances: [][][]float64{window}})
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalUnexpected, "failed to encode inference request", err)
	}

	endpoint := fmt.Sprintf("%s/v1/models/%s:predict", c.baseURL, url.PathEscape(name))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalUnexpected, "failed to build inference request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.base.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, c.errorFromResponse(resp, "predict")
	}

	var out predictResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, types.NewAppError(types.ErrCodeUpstreamInference, "failed to decode inference response", err)
	}
	if out.Error != "" {
		return nil, types.NewAppError(types.ErrCodeUpstreamInference, out.Error, nil)
	}

	values, err := firstInstance(out.Predictions)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeUpstreamInference, "unexpected predictions shape", err)
	}
	if len(values) == 0 {
		return nil, types.NewAppError(types.ErrCodeUpstreamInference, "model returned no predictions", nil)
	}

	c.logger.DebugContext(ctx, "inference completed",
		"model", name,
		"outputs", len(values),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return values, nil
}

func (c *InferenceClient) errorFromResponse(resp *http.Response, op string) *types.AppError {
	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	code := types.ErrCodeUpstreamInference
	if resp.StatusCode == http.StatusNotFound {
		code = types.ErrCodeModelLoadFailed
	}
	return types.NewAppErrorWithDetails(code,
		fmt.Sprintf("inference %s returned %d", op, resp.StatusCode), nil,
		map[string]any{"status": resp.StatusCode, "body": string(snippet)})
}

// firstInstance extracts the output of the first instance and flattens it.
// Servers return either [[v...]] / [[[v]...]] per instance, or a flat list
// when the batch dimension was squeezed.
func firstInstance(raw json.RawMessage) ([]float64, error) {
	var decoded any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, err
	}
	list, ok := decoded.([]any)
	if !ok {
		return nil, fmt.Errorf("predictions is %T, want array", decoded)
	}
	if len(list) == 0 {
		return nil, nil
	}
	target := any(list)
	if _, nested := list[0].([]any); nested {
		target = list[0]
	}
	var out []float64
	if err := flattenInto(&out, target); err != nil {
		return nil, err
	}
	return out, nil
}

func flattenInto(dst *[]float64, v any) error {
	switch x := v.(type) {
	case float64:
		*dst = append(*dst, x)
	case []any:
		for _, e := range x {
			if err := flattenInto(dst, e); err != nil {
				return err
			}
		}
	default:
		return fmt.Errorf("unexpected %T in predictions", v)
	}
	return nil
}
