package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"appforge/internal/faults"
	"appforge/internal/logging"
)

// OpenAIClient implements Client for the OpenAI chat completions API.
// Configured as the fast code model.
type OpenAIClient struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
}

// OpenAIConfig holds configuration for the OpenAI adapter.
type OpenAIConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

// DefaultOpenAIConfig returns sensible defaults.
func DefaultOpenAIConfig(apiKey string) OpenAIConfig {
	return OpenAIConfig{
		APIKey:  apiKey,
		BaseURL: "https://api.openai.com/v1",
		Model:   "gpt-4o-mini",
		Timeout: 120 * time.Second,
	}
}

// NewOpenAIClient creates a new OpenAI adapter with default config.
func NewOpenAIClient(apiKey string) *OpenAIClient {
	return NewOpenAIClientWithConfig(DefaultOpenAIConfig(apiKey))
}

// NewOpenAIClientWithConfig creates a new OpenAI adapter.
func NewOpenAIClientWithConfig(cfg OpenAIConfig) *OpenAIClient {
	return &OpenAIClient{
		apiKey:  cfg.APIKey,
		baseURL: cfg.BaseURL,
		model:   cfg.Model,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIRequest struct {
	Model       string          `json:"model"`
	Messages    []openAIMessage `json:"messages"`
	MaxTokens   int             `json:"max_tokens,omitempty"`
	Temperature float64         `json:"temperature"`
}

type openAIResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// Name returns the provider identifier.
func (c *OpenAIClient) Name() string { return "openai" }

// Available reports whether credentials are configured.
func (c *OpenAIClient) Available() bool { return c.apiKey != "" }

// Meta returns static capability metadata.
func (c *OpenAIClient) Meta() Meta {
	return Meta{
		Model:             c.model,
		MaxContext:        128000,
		SupportsStreaming: true,
		SupportsVision:    false,
	}
}

// SetModel changes the model used for completions.
func (c *OpenAIClient) SetModel(model string) { c.model = model }

// Complete sends one completion request.
func (c *OpenAIClient) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.httpClient.Timeout)
		defer cancel()
	}

	start := time.Now()
	logging.LLMDebug("[openai] Complete: model=%s system_len=%d prompt_len=%d",
		c.model, len(req.System), len(req.Prompt))

	if c.apiKey == "" {
		return "", faults.Wrap(faults.ErrProviderUnavailable, "openai: API key not configured")
	}
	if len(req.Image) > 0 {
		return "", faults.Wrap(faults.ErrProviderFatal, "openai adapter configured without vision support")
	}

	system := req.System
	if strings.TrimSpace(system) == "" {
		system = defaultSystemPrompt
	}

	reqBody := openAIRequest{
		Model: c.model,
		Messages: []openAIMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: req.Prompt},
		},
		MaxTokens:   maxTokensOrDefault(req.MaxTokens),
		Temperature: req.Temperature,
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", faults.Wrap(faults.ErrProviderFatal, "openai: marshal request: %v", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/chat/completions", bytes.NewReader(jsonData))
	if err != nil {
		return "", faults.Wrap(faults.ErrProviderFatal, "openai: create request: %v", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		logging.LLMError("[openai] request failed after %v: %v", time.Since(start), err)
		return "", faults.Wrap(faults.ErrProviderTransient, "openai: %v", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", faults.Wrap(faults.ErrProviderTransient, "openai: read response: %v", err)
	}

	if resp.StatusCode != http.StatusOK {
		logging.LLMError("[openai] status %d", resp.StatusCode)
		return "", classifyStatus(resp.StatusCode, string(body))
	}

	var parsed openAIResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", faults.Wrap(faults.ErrProviderFatal, "openai: parse response: %v", err)
	}
	if parsed.Error != nil {
		return "", faults.Wrap(faults.ErrProviderFatal, "openai: API error: %s", parsed.Error.Message)
	}
	if len(parsed.Choices) == 0 {
		return "", faults.Wrap(faults.ErrProviderFatal, "openai: no completion returned")
	}

	out := strings.TrimSpace(parsed.Choices[0].Message.Content)
	logging.LLM("[openai] completed in %v response_len=%d", time.Since(start), len(out))
	return out, nil
}

var _ Client = (*OpenAIClient)(nil)
