// Package llm provides uniform async text completion over multiple provider
// backends, and the health-aware router that picks a provider per task type.
package llm

import (
	"context"
	"net/http"

	"appforge/internal/faults"
)

const defaultSystemPrompt = "You are appforge, an application generator. Respond in English. Ground answers only in the provided context. Follow the requested output format exactly."

// TaskType classifies what a caller needs a model for.
type TaskType string

const (
	TaskReasoning TaskType = "reasoning"
	TaskCode      TaskType = "code"
	TaskUIText    TaskType = "ui_text"
)

// CompletionRequest carries one completion call's inputs.
type CompletionRequest struct {
	System      string
	Prompt      string
	MaxTokens   int
	Temperature float64

	// Image holds optional reference-image bytes. Only vision-capable
	// adapters accept a request with Image set.
	Image     []byte
	ImageMIME string
}

// Meta describes a provider's capabilities.
type Meta struct {
	Model             string
	MaxContext        int
	SupportsStreaming bool
	SupportsVision    bool
}

// Client is the uniform provider capability. Adapters do not retry
// internally; the router records outcomes and the orchestrator decides on
// fallback.
type Client interface {
	// Name returns the stable provider identifier ("anthropic", ...).
	Name() string

	// Available reports whether credentials are configured.
	Available() bool

	// Meta returns static capability metadata.
	Meta() Meta

	// Complete produces a completion or fails with a faults.Provider* error.
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}

// classifyStatus maps an HTTP status class to the fault taxonomy.
// Timeouts and transport errors are classified at the call site.
func classifyStatus(code int, body string) error {
	switch {
	case code == http.StatusTooManyRequests,
		code == http.StatusRequestTimeout,
		code >= 500:
		return faults.Wrap(faults.ErrProviderTransient, "status %d: %s", code, truncate(body, 200))
	default:
		return faults.Wrap(faults.ErrProviderFatal, "status %d: %s", code, truncate(body, 200))
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

func maxTokensOrDefault(n int) int {
	if n <= 0 {
		return 8192
	}
	return n
}
