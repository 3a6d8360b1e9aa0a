package agents

import (
	"context"
	"encoding/json"
	"fmt"

	"appforge/internal/llm"
	"appforge/internal/logging"
	"appforge/internal/manifest"
)

// NewArchAgent refines the manifest into an architecture spec artifact.
// Fails soft: the fallback passes the manifest through unchanged.
func NewArchAgent() *Agent {
	return &Agent{
		Role:         RoleArch,
		Task:         llm.TaskReasoning,
		SystemPrompt: archSystemPrompt,
		BuildPrompt: func(ac *Context) string {
			return withMemory(ac, fmt.Sprintf(
				"Project: %s\nManifest:\n%s\n\nProduce the architecture spec as the artifact %q.",
				ac.ProjectName, manifestJSON(ac), "architecture.json"))
		},
		Fallback: func(ac *Context) Artifacts {
			return Artifacts{"architecture.json": manifestJSON(ac)}
		},
	}
}

// NewBackendAgent emits the backend artifacts.
func NewBackendAgent() *Agent {
	return &Agent{
		Role:         RoleBackend,
		Task:         llm.TaskCode,
		SystemPrompt: backendSystemPrompt,
		BuildPrompt: func(ac *Context) string {
			return withMemory(ac, fmt.Sprintf(
				"Project: %s\nSpec: %s\nManifest:\n%s\n\nExisting artifacts:\n%s",
				ac.ProjectName, ac.Spec, manifestJSON(ac), renderFiles(ac.Files, 2000)))
		},
		Fallback: backendTemplate,
	}
}

// NewUIXAgent emits the frontend artifacts.
func NewUIXAgent() *Agent {
	return &Agent{
		Role:         RoleUIX,
		Task:         llm.TaskCode,
		SystemPrompt: uixSystemPrompt,
		BuildPrompt: func(ac *Context) string {
			return withMemory(ac, fmt.Sprintf(
				"Project: %s\nSpec: %s\nManifest:\n%s\n\nBackend artifacts so far:\n%s",
				ac.ProjectName, ac.Spec, manifestJSON(ac), renderFiles(ac.Files, 2000)))
		},
		Fallback: uixTemplate,
	}
}

// NewDebugAgent revises artifacts targeted at validation errors.
func NewDebugAgent() *Agent {
	return &Agent{
		Role:         RoleDebug,
		Task:         llm.TaskCode,
		SystemPrompt: debugSystemPrompt,
		BuildPrompt: func(ac *Context) string {
			return fmt.Sprintf(
				"Validation errors:\n%s\nCurrent files:\n%s",
				renderIssues(ac.Issues), renderFiles(filesForIssues(ac), 4000))
		},
	}
}

// NewQualityAgent proposes fixes for style/security/format findings.
func NewQualityAgent() *Agent {
	return &Agent{
		Role:         RoleQuality,
		Task:         llm.TaskCode,
		SystemPrompt: qualitySystemPrompt,
		BuildPrompt: func(ac *Context) string {
			return fmt.Sprintf(
				"Findings:\n%s\nCurrent files:\n%s",
				renderIssues(ac.Issues), renderFiles(filesForIssues(ac), 4000))
		},
	}
}

// NewTestAgent generates test files for the backend and frontend.
func NewTestAgent() *Agent {
	return &Agent{
		Role:         RoleTest,
		Task:         llm.TaskCode,
		SystemPrompt: testSystemPrompt,
		BuildPrompt: func(ac *Context) string {
			return fmt.Sprintf(
				"Manifest:\n%s\nGenerated files:\n%s",
				manifestJSON(ac), renderFiles(ac.Files, 2000))
		},
		Fallback: testTemplate,
	}
}

// NewEditAgent proposes new contents for only the files an instruction
// touches. No fallback: a failed edit is surfaced to the caller.
func NewEditAgent() *Agent {
	return &Agent{
		Role:         RoleEdit,
		Task:         llm.TaskCode,
		SystemPrompt: editSystemPrompt,
		BuildPrompt: func(ac *Context) string {
			return withMemory(ac, fmt.Sprintf(
				"Instruction: %s\n\nCurrent files:\n%s",
				ac.Instruction, renderFiles(ac.Files, 6000)))
		},
	}
}

// SpecialistFor returns the agent for a manifest role, in fixed pipeline
// order semantics owned by the orchestrator.
func SpecialistFor(role manifest.AgentRole) *Agent {
	switch role {
	case manifest.RoleArch:
		return NewArchAgent()
	case manifest.RoleBackend:
		return NewBackendAgent()
	case manifest.RoleUIX:
		return NewUIXAgent()
	case manifest.RoleDebug:
		return NewDebugAgent()
	case manifest.RoleQuality:
		return NewQualityAgent()
	case manifest.RoleTest:
		return NewTestAgent()
	default:
		return nil
	}
}

// filesForIssues narrows the context to the files implicated in issues,
// falling back to everything when issues carry no file references.
func filesForIssues(ac *Context) map[string]string {
	implicated := map[string]bool{}
	for _, issue := range ac.Issues {
		if issue.File != "" {
			implicated[issue.File] = true
		}
	}
	if len(implicated) == 0 {
		return ac.Files
	}
	out := make(map[string]string, len(implicated))
	for path := range implicated {
		if content, ok := ac.Files[path]; ok {
			out[path] = content
		}
	}
	return out
}

// CoreResult is the tagged outcome of the Core agent's manifest parse.
type CoreResult struct {
	Manifest    *manifest.ProjectManifest
	Message     *Message
	UsedDefault bool
}

// ExecuteCore runs the Core planning agent. Invalid LLM output substitutes
// the default manifest with reduced confidence; a nil client goes straight
// to the default path.
func ExecuteCore(ctx context.Context, client llm.Client, ac *Context) *CoreResult {
	fallback := func(reason string) *CoreResult {
		m := manifest.DefaultManifest(ac.ProjectName, ac.Spec)
		return &CoreResult{
			Manifest: m,
			Message: &Message{
				Role:       RoleCore,
				Content:    "core agent substituted the default manifest",
				Reasoning:  reason,
				Confidence: 0.4,
			},
			UsedDefault: true,
		}
	}

	if client == nil {
		return fallback("no provider available for planning")
	}

	prompt := withMemory(ac, fmt.Sprintf("Project name: %s\nRequest: %s", ac.ProjectName, ac.Spec))
	req := llm.CompletionRequest{
		System:      coreSystemPrompt,
		Prompt:      prompt,
		MaxTokens:   4096,
		Temperature: 0.1,
		Image:       ac.Image,
		ImageMIME:   ac.ImageMIME,
	}

	raw, err := client.Complete(ctx, req)
	if err != nil {
		return fallback(fmt.Sprintf("provider failure: %v", err))
	}

	m, reason := parseManifest(raw)
	if m == nil {
		logging.Agents("CORE: manifest rejected (%s), substituting default", reason)
		return fallback(reason)
	}

	return &CoreResult{
		Manifest: m,
		Message: &Message{
			Role:       RoleCore,
			Content:    fmt.Sprintf("planned %s app with %d features", m.AppType, len(m.Features)),
			Confidence: 0.9,
		},
	}
}

// parseManifest extracts and strictly validates a manifest from raw output.
func parseManifest(raw string) (*manifest.ProjectManifest, string) {
	body, _ := stripFences(raw)
	candidates := findJSONCandidates(body)
	if len(candidates) == 0 {
		if rebalanced, ok := rebalanceBraces(body); ok {
			candidates = findJSONCandidates(rebalanced)
		}
	}
	if len(candidates) == 0 {
		return nil, "no JSON object in core output"
	}

	best := candidates[0]
	for _, c := range candidates[1:] {
		if len(c) > len(best) {
			best = c
		}
	}

	var m manifest.ProjectManifest
	if err := json.Unmarshal([]byte(best), &m); err != nil {
		return nil, fmt.Sprintf("manifest parse: %v", err)
	}
	if err := m.Validate(); err != nil {
		return nil, fmt.Sprintf("manifest invalid: %v", err)
	}
	return &m, ""
}
