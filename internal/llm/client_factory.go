package llm

import (
	"time"

	"appforge/internal/config"
	"appforge/internal/logging"
)

// NewClientsFromConfig constructs every adapter whose credentials are
// present. Unconfigured adapters are still returned (Available()==false) so
// the router's availability predicate owns the decision.
func NewClientsFromConfig(cfg config.LLMConfig) ([]Client, error) {
	timeout := config.Duration(cfg.Timeout, 120*time.Second)

	anthropic := NewAnthropicClientWithConfig(AnthropicConfig{
		APIKey:  cfg.AnthropicAPIKey,
		BaseURL: DefaultAnthropicConfig("").BaseURL,
		Model:   modelOr(cfg.AnthropicModel, DefaultAnthropicConfig("").Model),
		Timeout: timeout,
	})

	openai := NewOpenAIClientWithConfig(OpenAIConfig{
		APIKey:  cfg.OpenAIAPIKey,
		BaseURL: DefaultOpenAIConfig("").BaseURL,
		Model:   modelOr(cfg.OpenAIModel, DefaultOpenAIConfig("").Model),
		Timeout: timeout,
	})

	gemini, err := NewGeminiClient(cfg.GeminiAPIKey, cfg.GeminiModel, timeout)
	if err != nil {
		return nil, err
	}

	clients := []Client{anthropic, openai, gemini}
	for _, c := range clients {
		logging.LLMDebug("adapter %s: available=%v model=%s vision=%v",
			c.Name(), c.Available(), c.Meta().Model, c.Meta().SupportsVision)
	}
	return clients, nil
}

func modelOr(model, def string) string {
	if model != "" {
		return model
	}
	return def
}
