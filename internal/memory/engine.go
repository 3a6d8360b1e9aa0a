// Package memory implements the per-project vector store of code,
// decisions, preferences and constraints, and the embedding engines that
// power its semantic search.
package memory

import (
	"context"
	"fmt"
	"math"

	"appforge/internal/logging"
)

// Dimensions is the fixed embedding width every engine must produce.
const Dimensions = 384

// Engine generates vector embeddings for text.
type Engine interface {
	// Embed generates an embedding for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for multiple texts.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the embedding width.
	Dimensions() int

	// Name returns the engine name.
	Name() string
}

// EngineConfig selects and tunes the embedding backend.
type EngineConfig struct {
	// Provider: "genai", "ollama" or "local".
	Provider       string
	OllamaEndpoint string
	OllamaModel    string
	GenAIAPIKey    string
	GenAIModel     string
}

// NewEngine creates an embedding engine from configuration. The "local"
// provider is a deterministic offline fallback with the same dimensionality.
func NewEngine(cfg EngineConfig) (Engine, error) {
	logging.Embedding("creating embedding engine provider=%s", cfg.Provider)

	switch cfg.Provider {
	case "ollama":
		return NewOllamaEngine(cfg.OllamaEndpoint, cfg.OllamaModel), nil
	case "genai":
		return NewGenAIEngine(cfg.GenAIAPIKey, cfg.GenAIModel)
	case "local", "":
		return NewLocalEngine(), nil
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s (use genai, ollama or local)", cfg.Provider)
	}
}

// CosineSimilarity computes similarity between two vectors: 1 identical,
// 0 orthogonal. A dimension mismatch is an error, zero vectors score 0.
func CosineSimilarity(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("vectors must have the same length: %d != %d", len(a), len(b))
	}

	var dot, magA, magB float64
	for i := 0; i < len(a); i++ {
		dot += float64(a[i]) * float64(b[i])
		magA += float64(a[i]) * float64(a[i])
		magB += float64(b[i]) * float64(b[i])
	}
	if magA == 0 || magB == 0 {
		return 0, nil
	}
	return dot / (math.Sqrt(magA) * math.Sqrt(magB)), nil
}
