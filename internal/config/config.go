// Package config holds all appforge configuration. Config is loaded from
// .appforge/config.yaml with DefaultConfig as the baseline; environment
// variables override individual keys (see env.go).
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all appforge configuration.
type Config struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`

	// Workspace root; state lives under <workspace>/.appforge.
	Workspace string `yaml:"workspace"`

	LLM        LLMConfig        `yaml:"llm"`
	Embedding  EmbeddingConfig  `yaml:"embedding"`
	Memory     MemoryConfig     `yaml:"memory"`
	Preview    PreviewConfig    `yaml:"preview"`
	Validation ValidationConfig `yaml:"validation"`
	Logging    LoggingConfig    `yaml:"logging"`
	Limits     LimitsConfig     `yaml:"limits"`
}

// LLMConfig configures the provider adapters and the router.
type LLMConfig struct {
	AnthropicAPIKey string `yaml:"anthropic_api_key"`
	OpenAIAPIKey    string `yaml:"openai_api_key"`
	GeminiAPIKey    string `yaml:"gemini_api_key"`

	AnthropicModel string `yaml:"anthropic_model"`
	OpenAIModel    string `yaml:"openai_model"`
	GeminiModel    string `yaml:"gemini_model"`

	Timeout string `yaml:"timeout"` // per-call upper bound

	// Circuit breaker thresholds.
	FailureThreshold int    `yaml:"failure_threshold"`
	ReprobeInterval  string `yaml:"reprobe_interval"`
}

// EmbeddingConfig selects the embedding backend for project memory.
type EmbeddingConfig struct {
	// Provider: "genai", "ollama" or "local".
	Provider       string `yaml:"provider"`
	OllamaEndpoint string `yaml:"ollama_endpoint"`
	OllamaModel    string `yaml:"ollama_model"`
	GenAIAPIKey    string `yaml:"genai_api_key"`
	GenAIModel     string `yaml:"genai_model"`
}

// MemoryConfig configures the per-project vector store.
type MemoryConfig struct {
	// Directory holding one SQLite database per project.
	Dir string `yaml:"dir"`
	// ContextBudget caps assembled generation context, in bytes.
	ContextBudget int `yaml:"context_budget"`
}

// PreviewConfig configures the container sandbox and watcher.
type PreviewConfig struct {
	PortRangeStart int    `yaml:"port_range_start"`
	PortRangeEnd   int    `yaml:"port_range_end"`
	MaxActive      int    `yaml:"max_active"`
	ExpiryAge      string `yaml:"expiry_age"`
	IdleTimeout    string `yaml:"idle_timeout"`
	PollInterval   string `yaml:"poll_interval"`
	BuildTimeout   string `yaml:"build_timeout"`
	ServiceMemory  string `yaml:"service_memory"` // docker --memory for services
	StaticMemory   string `yaml:"static_memory"`  // docker --memory for static sites
	ServiceCPUs    string `yaml:"service_cpus"`
	NetworkName    string `yaml:"network_name"`
	WorkDir        string `yaml:"work_dir"` // per-project export dirs
}

// ValidationConfig configures the validation pipeline.
type ValidationConfig struct {
	ValidatorTimeout  string `yaml:"validator_timeout"`
	TestTimeout       string `yaml:"test_timeout"`
	MaxRepairAttempts int    `yaml:"max_repair_attempts"`
}

// LoggingConfig mirrors the logging package's expectations.
type LoggingConfig struct {
	DebugMode  bool            `yaml:"debug_mode"`
	Level      string          `yaml:"level"`
	Categories map[string]bool `yaml:"categories"`
}

// LimitsConfig holds system-wide resource ceilings.
type LimitsConfig struct {
	LLMTimeout       string `yaml:"llm_timeout"`
	EmbeddingTimeout string `yaml:"embedding_timeout"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Name:      "appforge",
		Version:   "0.4.0",
		Workspace: ".",

		LLM: LLMConfig{
			AnthropicModel:   "claude-sonnet-4-5-20250514",
			OpenAIModel:      "gpt-4o-mini",
			GeminiModel:      "gemini-2.0-flash",
			Timeout:          "120s",
			FailureThreshold: 3,
			ReprobeInterval:  "60s",
		},

		Embedding: EmbeddingConfig{
			Provider:       "local",
			OllamaEndpoint: "http://localhost:11434",
			OllamaModel:    "all-minilm",
			GenAIModel:     "gemini-embedding-001",
		},

		Memory: MemoryConfig{
			Dir:           ".appforge/memory",
			ContextBudget: 4096,
		},

		Preview: PreviewConfig{
			PortRangeStart: 8100,
			PortRangeEnd:   8200,
			MaxActive:      10,
			ExpiryAge:      "1h",
			IdleTimeout:    "30m",
			PollInterval:   "2s",
			BuildTimeout:   "120s",
			ServiceMemory:  "512m",
			StaticMemory:   "256m",
			ServiceCPUs:    "0.5",
			NetworkName:    "appforge-previews",
			WorkDir:        ".appforge/previews",
		},

		Validation: ValidationConfig{
			ValidatorTimeout:  "60s",
			TestTimeout:       "120s",
			MaxRepairAttempts: 3,
		},

		Logging: LoggingConfig{
			Level: "info",
		},

		Limits: LimitsConfig{
			LLMTimeout:       "120s",
			EmbeddingTimeout: "30s",
		},
	}
}

// Load reads the config file at path, applies defaults for missing keys,
// then applies environment overrides. A missing file yields defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.ApplyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyEnvOverrides()
	return cfg, nil
}

// DefaultPath returns the default config location under the workspace.
func DefaultPath(workspace string) string {
	return filepath.Join(workspace, ".appforge", "config.yaml")
}

// Save writes the config as YAML, creating parent directories.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// Duration parses a duration field, falling back to def on empty or bad input.
func Duration(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return def
	}
	return d
}
