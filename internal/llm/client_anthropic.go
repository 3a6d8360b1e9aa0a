package llm

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"appforge/internal/faults"
	"appforge/internal/logging"
)

// AnthropicClient implements Client for the Anthropic Messages API.
// It is the reasoning-specialist adapter and supports vision input.
type AnthropicClient struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
}

// AnthropicConfig holds configuration for the Anthropic adapter.
type AnthropicConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

// DefaultAnthropicConfig returns sensible defaults.
func DefaultAnthropicConfig(apiKey string) AnthropicConfig {
	return AnthropicConfig{
		APIKey:  apiKey,
		BaseURL: "https://api.anthropic.com/v1",
		Model:   "claude-sonnet-4-5-20250514",
		Timeout: 120 * time.Second,
	}
}

// NewAnthropicClient creates a new Anthropic adapter with default config.
func NewAnthropicClient(apiKey string) *AnthropicClient {
	return NewAnthropicClientWithConfig(DefaultAnthropicConfig(apiKey))
}

// NewAnthropicClientWithConfig creates a new Anthropic adapter.
func NewAnthropicClientWithConfig(cfg AnthropicConfig) *AnthropicClient {
	return &AnthropicClient{
		apiKey:  cfg.APIKey,
		baseURL: cfg.BaseURL,
		model:   cfg.Model,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

type anthropicContentBlock struct {
	Type   string                `json:"type"`
	Text   string                `json:"text,omitempty"`
	Source *anthropicImageSource `json:"source,omitempty"`
}

type anthropicImageSource struct {
	Type      string `json:"type"`
	MediaType string `json:"media_type"`
	Data      string `json:"data"`
}

type anthropicMessage struct {
	Role    string                  `json:"role"`
	Content []anthropicContentBlock `json:"content"`
}

type anthropicRequest struct {
	Model       string             `json:"model"`
	MaxTokens   int                `json:"max_tokens"`
	System      string             `json:"system,omitempty"`
	Messages    []anthropicMessage `json:"messages"`
	Temperature float64            `json:"temperature"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
	Error      *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Name returns the provider identifier.
func (c *AnthropicClient) Name() string { return "anthropic" }

// Available reports whether credentials are configured.
func (c *AnthropicClient) Available() bool { return c.apiKey != "" }

// Meta returns static capability metadata.
func (c *AnthropicClient) Meta() Meta {
	return Meta{
		Model:             c.model,
		MaxContext:        200000,
		SupportsStreaming: true,
		SupportsVision:    true,
	}
}

// SetModel changes the model used for completions.
func (c *AnthropicClient) SetModel(model string) { c.model = model }

// Complete sends one completion request. No internal retry; transient and
// fatal failures are distinguished for the router.
func (c *AnthropicClient) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.httpClient.Timeout)
		defer cancel()
	}

	start := time.Now()
	logging.LLMDebug("[anthropic] Complete: model=%s system_len=%d prompt_len=%d image=%v",
		c.model, len(req.System), len(req.Prompt), len(req.Image) > 0)

	if c.apiKey == "" {
		return "", faults.Wrap(faults.ErrProviderUnavailable, "anthropic: API key not configured")
	}

	system := req.System
	if strings.TrimSpace(system) == "" {
		system = defaultSystemPrompt
	}

	content := []anthropicContentBlock{}
	if len(req.Image) > 0 {
		mime := req.ImageMIME
		if mime == "" {
			mime = "image/png"
		}
		content = append(content, anthropicContentBlock{
			Type: "image",
			Source: &anthropicImageSource{
				Type:      "base64",
				MediaType: mime,
				Data:      base64.StdEncoding.EncodeToString(req.Image),
			},
		})
	}
	content = append(content, anthropicContentBlock{Type: "text", Text: req.Prompt})

	reqBody := anthropicRequest{
		Model:       c.model,
		MaxTokens:   maxTokensOrDefault(req.MaxTokens),
		System:      system,
		Messages:    []anthropicMessage{{Role: "user", Content: content}},
		Temperature: req.Temperature,
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", faults.Wrap(faults.ErrProviderFatal, "anthropic: marshal request: %v", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/messages", bytes.NewReader(jsonData))
	if err != nil {
		return "", faults.Wrap(faults.ErrProviderFatal, "anthropic: create request: %v", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", c.apiKey)
	httpReq.Header.Set("anthropic-version", "2023-06-01")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		logging.LLMError("[anthropic] request failed after %v: %v", time.Since(start), err)
		return "", faults.Wrap(faults.ErrProviderTransient, "anthropic: %v", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", faults.Wrap(faults.ErrProviderTransient, "anthropic: read response: %v", err)
	}

	if resp.StatusCode != http.StatusOK {
		logging.LLMError("[anthropic] status %d", resp.StatusCode)
		return "", classifyStatus(resp.StatusCode, string(body))
	}

	var parsed anthropicResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", faults.Wrap(faults.ErrProviderFatal, "anthropic: parse response: %v", err)
	}
	if parsed.Error != nil {
		return "", faults.Wrap(faults.ErrProviderFatal, "anthropic: API error: %s", parsed.Error.Message)
	}
	if len(parsed.Content) == 0 {
		return "", faults.Wrap(faults.ErrProviderFatal, "anthropic: no completion returned")
	}

	var result strings.Builder
	for _, block := range parsed.Content {
		if block.Type == "text" {
			result.WriteString(block.Text)
		}
	}

	out := strings.TrimSpace(result.String())
	logging.LLM("[anthropic] completed in %v response_len=%d", time.Since(start), len(out))
	return out, nil
}

var _ Client = (*AnthropicClient)(nil)
