package classify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ppiankov/taxaformer/internal/model"
	"github.com/ppiankov/taxaformer/internal/util"
)

// HTTPClassifier calls a remote model service over JSON
type HTTPClassifier struct {
	baseURL    string
	httpClient *http.Client
	config     Config
}

// Model service API structures
type classifyRequest struct {
	ID       string `json:"id"`
	Sequence string `json:"sequence"`
	Model    string `json:"model,omitempty"`
}

type serviceError struct {
	Error string `json:"error"`
}

// maxResponseBytes bounds a single classification response
const maxResponseBytes = 1 << 20

// NewHTTPClassifier creates a new model service classifier
func NewHTTPClassifier(config Config) (*HTTPClassifier, error) {
	if config.BaseURL == "" {
		return nil, fmt.Errorf("http classifier requires a base URL")
	}

	timeout := time.Duration(config.Timeout) * time.Second
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	return &HTTPClassifier{
		baseURL: strings.TrimSuffix(config.BaseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				Proxy: util.NewProxyFunc(config.HTTPProxy, config.HTTPSProxy, config.NoProxy),
			},
		},
		config: config,
	}, nil
}

// Name returns the provider name
func (c *HTTPClassifier) Name() string {
	return "http"
}

// IsAvailable checks the service health endpoint
func (c *HTTPClassifier) IsAvailable(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return false
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer func() { _ = resp.Body.Close() }()

	return resp.StatusCode == http.StatusOK
}

// Classify sends one record to the model service
func (c *HTTPClassifier) Classify(ctx context.Context, rec model.SequenceRecord) (model.Classification, error) {
	apiReq := classifyRequest{
		ID:       rec.ID,
		Sequence: rec.Sequence,
		Model:    c.config.Model,
	}

	result, err := c.makeRequest(ctx, apiReq)
	if err != nil {
		return model.Classification{}, fmt.Errorf("model service error: %w", err)
	}
	return result, nil
}

// makeRequest makes an HTTP request to the model service
func (c *HTTPClassifier) makeRequest(ctx context.Context, apiReq classifyRequest) (model.Classification, error) {
	body, err := json.Marshal(apiReq)
	if err != nil {
		return model.Classification{}, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/classify", bytes.NewReader(body))
	if err != nil {
		return model.Classification{}, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.config.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	}

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return model.Classification{}, fmt.Errorf("execute request: %w", err)
	}
	defer func() { _ = httpResp.Body.Close() }()

	respBody, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseBytes))
	if err != nil {
		return model.Classification{}, fmt.Errorf("read response: %w", err)
	}

	if httpResp.StatusCode != http.StatusOK {
		var apiErr serviceError
		if err := json.Unmarshal(respBody, &apiErr); err == nil && apiErr.Error != "" {
			return model.Classification{}, fmt.Errorf("API error (%d): %s", httpResp.StatusCode, apiErr.Error)
		}
		return model.Classification{}, fmt.Errorf("API error (%d): %s", httpResp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	result, err := decodeClassification(respBody)
	if err != nil {
		return model.Classification{}, fmt.Errorf("unmarshal response: %w", err)
	}
	return result, nil
}
