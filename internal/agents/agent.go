// Package agents defines the role-specialised agents that turn an
// AgentContext into file artifacts. An agent is a value composed of a role,
// a task binding, a system prompt and prompt/fallback closures; there is no
// inheritance hierarchy.
package agents

import (
	"context"
	"fmt"
	"time"

	"appforge/internal/faults"
	"appforge/internal/llm"
	"appforge/internal/logging"
	"appforge/internal/manifest"
	"appforge/internal/validation"
)

// Role identifies an agent's specialisation.
type Role string

const (
	RoleCore    Role = "CORE"
	RoleArch    Role = "ARCH"
	RoleBackend Role = "BACKEND"
	RoleUIX     Role = "UIX"
	RoleDebug   Role = "DEBUG"
	RoleQuality Role = "QUALITY"
	RoleTest    Role = "TEST"
	RoleEdit    Role = "EDIT"
)

// Artifacts is a proposed filepath-to-content mapping from one agent run.
type Artifacts map[string]string

// Message is the result of one agent execution.
type Message struct {
	Role       Role      `json:"role"`
	Content    string    `json:"content"`
	Reasoning  string    `json:"reasoning"`
	Confidence float64   `json:"confidence"`
	Artifacts  Artifacts `json:"artifacts"`
}

// Context is the transient state one request accumulates while its agents
// run. Owned by the orchestrator for the duration of the request.
type Context struct {
	ProjectName string
	ProjectID   string
	Spec        string
	Image       []byte
	ImageMIME   string

	// Files holds the current VFS contents plus artifacts from agents that
	// already ran this request.
	Files map[string]string

	// Manifest is set once the Core agent has produced a plan.
	Manifest *manifest.ProjectManifest

	// Issues carries validation output for the Debug/Quality repair agents.
	Issues []validation.Issue

	// Instruction is the natural-language edit request (Edit agent only).
	Instruction string

	// MemoryContext is pre-fetched project memory prepended to prompts.
	MemoryContext string

	// Messages accumulates the messages of agents already run.
	Messages []*Message
}

// Agent is a role-specialised LLM client. Specialist behaviour is composed
// from this shared base by providing the prompt builder and task binding.
type Agent struct {
	Role         Role
	Task         llm.TaskType
	SystemPrompt string

	// BuildPrompt renders the user prompt from the accumulated context.
	BuildPrompt func(*Context) string

	// Fallback produces template artifacts when the provider fails or the
	// output contract cannot be recovered. Nil means no fallback.
	Fallback func(*Context) Artifacts
}

// Execute runs the agent against a provider and parses the strict JSON
// artifact contract, recovering through the tolerant extractor first.
func (a *Agent) Execute(ctx context.Context, client llm.Client, ac *Context) (*Message, error) {
	if client == nil {
		return a.fallbackMessage(ac, "no provider available"),
			faults.Wrap(faults.ErrProviderUnavailable, "no provider for %s", a.Role)
	}

	start := time.Now()
	prompt := a.BuildPrompt(ac)
	logging.AgentsDebug("%s: prompt_len=%d files=%d", a.Role, len(prompt), len(ac.Files))

	req := llm.CompletionRequest{
		System:      a.SystemPrompt,
		Prompt:      prompt,
		MaxTokens:   8192,
		Temperature: 0.1,
	}
	if len(ac.Image) > 0 && (a.Role == RoleCore || a.Role == RoleUIX || a.Role == RoleEdit) {
		req.Image = ac.Image
		req.ImageMIME = ac.ImageMIME
	}

	raw, err := client.Complete(ctx, req)
	if err != nil {
		logging.Agents("%s: provider %s failed: %v", a.Role, client.Name(), err)
		return a.fallbackMessage(ac, fmt.Sprintf("provider failure: %v", err)), err
	}

	outcome := ExtractArtifacts(raw)
	switch outcome.Kind {
	case ExtractOK:
		msg := &Message{
			Role:       a.Role,
			Content:    fmt.Sprintf("%s produced %d artifacts", a.Role, len(outcome.Artifacts)),
			Reasoning:  outcome.Commentary,
			Confidence: 0.9,
			Artifacts:  outcome.Artifacts,
		}
		logging.Agents("%s: %d artifacts in %v", a.Role, len(msg.Artifacts), time.Since(start))
		return msg, nil
	default:
		logging.Agents("%s: artifact contract violated (%s), using fallback", a.Role, outcome.Reason)
		return a.fallbackMessage(ac, outcome.Reason), nil
	}
}

func (a *Agent) fallbackMessage(ac *Context, reason string) *Message {
	msg := &Message{
		Role:       a.Role,
		Content:    fmt.Sprintf("%s fell back to role template", a.Role),
		Reasoning:  reason,
		Confidence: 0.3,
		Artifacts:  Artifacts{},
	}
	if a.Fallback != nil {
		msg.Artifacts = a.Fallback(ac)
	}
	return msg
}
