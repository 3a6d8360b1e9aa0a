package llm

import (
	"context"
	"strings"
	"time"

	"appforge/internal/faults"
	"appforge/internal/logging"

	"google.golang.org/genai"
)

// GeminiClient implements Client through the Google GenAI SDK. Configured as
// the UI/text-quality model; supports vision input.
type GeminiClient struct {
	client  *genai.Client
	model   string
	timeout time.Duration
}

// NewGeminiClient creates a new Gemini adapter. The SDK client is lazily
// unusable without a key, so an empty apiKey yields an unavailable adapter.
func NewGeminiClient(apiKey, model string, timeout time.Duration) (*GeminiClient, error) {
	if model == "" {
		model = "gemini-2.0-flash"
	}
	if timeout <= 0 {
		timeout = 120 * time.Second
	}

	c := &GeminiClient{model: model, timeout: timeout}
	if apiKey == "" {
		return c, nil
	}

	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{APIKey: apiKey})
	if err != nil {
		return nil, faults.Wrap(faults.ErrProviderFatal, "gemini: create client: %v", err)
	}
	c.client = client
	return c, nil
}

// Name returns the provider identifier.
func (c *GeminiClient) Name() string { return "gemini" }

// Available reports whether credentials are configured.
func (c *GeminiClient) Available() bool { return c.client != nil }

// Meta returns static capability metadata.
func (c *GeminiClient) Meta() Meta {
	return Meta{
		Model:             c.model,
		MaxContext:        1000000,
		SupportsStreaming: true,
		SupportsVision:    true,
	}
}

// Complete sends one completion request via the GenAI SDK.
func (c *GeminiClient) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	if c.client == nil {
		return "", faults.Wrap(faults.ErrProviderUnavailable, "gemini: API key not configured")
	}

	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	start := time.Now()
	logging.LLMDebug("[gemini] Complete: model=%s prompt_len=%d image=%v",
		c.model, len(req.Prompt), len(req.Image) > 0)

	parts := []*genai.Part{genai.NewPartFromText(req.Prompt)}
	if len(req.Image) > 0 {
		mime := req.ImageMIME
		if mime == "" {
			mime = "image/png"
		}
		parts = append(parts, genai.NewPartFromBytes(req.Image, mime))
	}
	contents := []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}

	system := req.System
	if strings.TrimSpace(system) == "" {
		system = defaultSystemPrompt
	}

	temp := float32(req.Temperature)
	cfg := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(system, genai.RoleUser),
		Temperature:       &temp,
	}
	if req.MaxTokens > 0 {
		cfg.MaxOutputTokens = int32(req.MaxTokens)
	}

	result, err := c.client.Models.GenerateContent(ctx, c.model, contents, cfg)
	if err != nil {
		if ctx.Err() != nil {
			return "", faults.Wrap(faults.ErrProviderTransient, "gemini: %v", err)
		}
		logging.LLMError("[gemini] request failed after %v: %v", time.Since(start), err)
		return "", faults.Wrap(faults.ErrProviderTransient, "gemini: %v", err)
	}

	out := strings.TrimSpace(result.Text())
	if out == "" {
		return "", faults.Wrap(faults.ErrProviderFatal, "gemini: no completion returned")
	}

	logging.LLM("[gemini] completed in %v response_len=%d", time.Since(start), len(out))
	return out, nil
}

var _ Client = (*GeminiClient)(nil)
