package config

import (
	"os"
	"strconv"
)

// ApplyEnvOverrides applies recognized environment variables on top of the
// loaded config. Provider API keys enable their adapters; APPFORGE_* keys
// tune the preview subsystem, the embedding provider and debug mode.
func (c *Config) ApplyEnvOverrides() {
	if v := os.Getenv("ANTHROPIC_API_KEY"); v != "" {
		c.LLM.AnthropicAPIKey = v
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		c.LLM.OpenAIAPIKey = v
	}
	if v := os.Getenv("GEMINI_API_KEY"); v != "" {
		c.LLM.GeminiAPIKey = v
		if c.Embedding.GenAIAPIKey == "" {
			c.Embedding.GenAIAPIKey = v
		}
	}

	if v := os.Getenv("APPFORGE_PREVIEW_PORT_START"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Preview.PortRangeStart = n
		}
	}
	if v := os.Getenv("APPFORGE_PREVIEW_PORT_END"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Preview.PortRangeEnd = n
		}
	}
	if v := os.Getenv("APPFORGE_PREVIEW_EXPIRY"); v != "" {
		c.Preview.ExpiryAge = v
	}
	if v := os.Getenv("APPFORGE_PREVIEW_IDLE"); v != "" {
		c.Preview.IdleTimeout = v
	}
	if v := os.Getenv("APPFORGE_PREVIEW_POLL"); v != "" {
		c.Preview.PollInterval = v
	}
	if v := os.Getenv("APPFORGE_PREVIEW_MEMORY"); v != "" {
		c.Preview.ServiceMemory = v
	}
	if v := os.Getenv("APPFORGE_PREVIEW_CPUS"); v != "" {
		c.Preview.ServiceCPUs = v
	}
	if v := os.Getenv("APPFORGE_DEBUG"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Logging.DebugMode = b
		}
	}
	if v := os.Getenv("APPFORGE_EMBEDDING_PROVIDER"); v != "" {
		c.Embedding.Provider = v
	}
}
