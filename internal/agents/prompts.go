package agents

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"appforge/internal/validation"
)

const artifactContract = `Respond with a single JSON object mapping file paths to complete file contents, for example:
{"backend/main.py": "...", "frontend/src/App.jsx": "..."}
Emit complete files, never fragments or diffs. No prose outside the JSON.`

const coreSystemPrompt = `You are the planning agent of an application generator.
Analyse the user's request and produce a single JSON project manifest with the fields:
analysis, app_type (one of: crud, ecommerce, dashboard, social, todo, blog, auth, booking, api),
features (non-empty list), tech_stack {backend, frontend, styling, database, auth},
models (names start uppercase), endpoints (paths start with "/"),
files_to_generate (must include backend entry, dependency manifest, frontend entry component,
frontend package manifest, HTML entry, bundler config, frontend bootstrap),
integrations, agents_needed (subset of ARCH, BACKEND, UIX, DEBUG, QUALITY, TEST), priority.
Respond with the JSON object only.`

const archSystemPrompt = `You are the architecture agent of an application generator.
Refine the project manifest into an architecture spec: endpoints with request/response models,
data models with field types, a per-file purpose map, and scaling notes when relevant.
` + artifactContract

const backendSystemPrompt = `You are the backend agent of an application generator.
Generate a complete, runnable backend: entry module, dependency manifest, routes and models.
Match the manifest's tech stack exactly. Include error handling and CORS for the dev frontend.
` + artifactContract

const uixSystemPrompt = `You are the frontend agent of an application generator.
Generate a complete single-page frontend: component tree, bundler config, HTML entry and styles.
Call the backend endpoints from the manifest. Keep the design clean and responsive.
` + artifactContract

const debugSystemPrompt = `You are the debug agent of an application generator.
You receive validation errors for generated files. Re-emit corrected versions of only the
failing files. Preserve all behavior that is not implicated in an error.
` + artifactContract

const qualitySystemPrompt = `You are the quality agent of an application generator.
You receive style, security and formatting findings. Re-emit fixed versions of only the
affected files. Do not change behavior.
` + artifactContract

const testSystemPrompt = `You are the test agent of an application generator.
Generate unit and integration test files for the generated backend and frontend, using the
conventional test tooling of each stack.
` + artifactContract

const editSystemPrompt = `You are the edit agent of an application builder.
You receive the current project files and a change instruction. Propose new contents for only
the files that must change. Apply the minimal change that satisfies the instruction.
` + artifactContract

func renderFiles(files map[string]string, limit int) string {
	paths := make([]string, 0, len(files))
	for p := range files {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	var b strings.Builder
	for _, p := range paths {
		content := files[p]
		if limit > 0 && len(content) > limit {
			content = content[:limit] + "\n... (truncated)"
		}
		fmt.Fprintf(&b, "=== %s ===\n%s\n\n", p, content)
	}
	return b.String()
}

func renderIssues(issues []validation.Issue) string {
	var b strings.Builder
	for _, issue := range issues {
		loc := issue.File
		if issue.Line > 0 {
			loc = fmt.Sprintf("%s:%d", issue.File, issue.Line)
		}
		fmt.Fprintf(&b, "- [%s] %s: %s (%s)\n", issue.Severity, loc, issue.Message, issue.Validator)
	}
	return b.String()
}

func manifestJSON(ac *Context) string {
	if ac.Manifest == nil {
		return "{}"
	}
	data, err := json.MarshalIndent(ac.Manifest, "", "  ")
	if err != nil {
		return "{}"
	}
	return string(data)
}

func withMemory(ac *Context, prompt string) string {
	if ac.MemoryContext == "" {
		return prompt
	}
	return "Project memory:\n" + ac.MemoryContext + "\n\n" + prompt
}
