package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/google/uuid"

	"github.com/evalforge/evalforge/api/internal/config"
	"github.com/evalforge/evalforge/api/internal/domain"
)

// HTTPEvaluatorClient calls the evaluator execution engine over HTTP.
// The engine owns sandboxing, prompt rendering and model access; this
// client only speaks the run request/response shape.
type HTTPEvaluatorClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewHTTPEvaluatorClient creates an evaluator engine client
func NewHTTPEvaluatorClient(cfg config.EvalConfig) *HTTPEvaluatorClient {
	return &HTTPEvaluatorClient{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		client:  &http.Client{Timeout: cfg.Timeout},
	}
}

type evaluatorRunRequest struct {
	EvaluatorVersionID string `json:"evaluatorVersionId"`
	InputData          any    `json:"inputData"`
}

// Run invokes one evaluator version with the given input data
func (c *HTTPEvaluatorClient) Run(ctx context.Context, evaluatorVersionID uuid.UUID, inputData any) (*domain.EvaluatorOutput, error) {
	body, err := json.Marshal(evaluatorRunRequest{
		EvaluatorVersionID: evaluatorVersionID.String(),
		InputData:          inputData,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal evaluator request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/evaluators/run", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build evaluator request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("evaluator call failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read evaluator response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("evaluator engine returned %d: %s", resp.StatusCode, truncate(string(raw), 200))
	}

	var out domain.EvaluatorOutput
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("failed to decode evaluator response: %w", err)
	}
	if out.Raw == "" {
		out.Raw = string(raw)
	}
	return &out, nil
}

// HTTPTargetInvoker calls the target gateway over HTTP. The gateway
// dispatches api/model/prompt targets internally; this client passes
// the spec and input fields through.
type HTTPTargetInvoker struct {
	baseURL string
	client  *http.Client
}

// NewHTTPTargetInvoker creates a target gateway client
func NewHTTPTargetInvoker(cfg config.TargetConfig) *HTTPTargetInvoker {
	return &HTTPTargetInvoker{
		baseURL: cfg.BaseURL,
		client:  &http.Client{Timeout: cfg.Timeout},
	}
}

type targetInvokeRequest struct {
	Target      domain.TargetSpec `json:"target"`
	InputFields map[string]string `json:"inputFields"`
}

type targetInvokeResponse struct {
	Output string `json:"output"`
	Error  string `json:"error,omitempty"`
}

// Invoke calls the configured target with the extracted input fields
func (c *HTTPTargetInvoker) Invoke(ctx context.Context, spec domain.TargetSpec, inputFields map[string]string) (string, error) {
	body, err := json.Marshal(targetInvokeRequest{Target: spec, InputFields: inputFields})
	if err != nil {
		return "", fmt.Errorf("failed to marshal target request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/targets/invoke", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to build target request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("target call failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read target response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("target gateway returned %d: %s", resp.StatusCode, truncate(string(raw), 200))
	}

	var out targetInvokeResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", fmt.Errorf("failed to decode target response: %w", err)
	}
	if out.Error != "" {
		return out.Output, fmt.Errorf("target returned error: %s", out.Error)
	}
	return out.Output, nil
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
