package memory

import (
	"context"
	"fmt"
	"strings"

	"appforge/internal/logging"
)

// defaultContextBudget caps assembled context to protect the LLM window.
const defaultContextBudget = 4096

// ContextForGeneration assembles project memory relevant to a new spec: the
// decisions most similar to the spec (ranked by similarity, not by age),
// matching preferences, similar code and active constraints, concatenated under delimited section headers and capped to
// budget bytes. Returns "" when the project has no memory yet.
func (s *Store) ContextForGeneration(ctx context.Context, projectID, newSpec string, budget int) (string, error) {
	if budget <= 0 {
		budget = defaultContextBudget
	}

	count, err := s.Count(ctx, projectID)
	if err != nil || count == 0 {
		return "", err
	}

	var b strings.Builder

	decisions, err := s.SearchDecisions(ctx, projectID, newSpec, 3)
	if err != nil {
		return "", err
	}
	if len(decisions) > 0 {
		b.WriteString("=== Prior decisions ===\n")
		for _, m := range decisions {
			fmt.Fprintf(&b, "- %s: %s\n", m.Record.Title, firstSentence(m.Record.Content))
		}
		b.WriteString("\n")
	}

	preferences, err := s.SearchPreferences(ctx, projectID, newSpec, 5)
	if err != nil {
		return "", err
	}
	if len(preferences) > 0 {
		b.WriteString("=== User preferences ===\n")
		for _, m := range preferences {
			fmt.Fprintf(&b, "- %s.%s = %s\n", m.Record.Category, m.Record.Key, m.Record.Value)
		}
		b.WriteString("\n")
	}

	snippets, err := s.SearchCode(ctx, projectID, newSpec, 3, "")
	if err != nil {
		return "", err
	}
	if len(snippets) > 0 {
		b.WriteString("=== Related code ===\n")
		for _, m := range snippets {
			snippet := m.Record.Content
			if len(snippet) > 600 {
				snippet = snippet[:600] + "\n..."
			}
			fmt.Fprintf(&b, "--- %s ---\n%s\n", m.Record.Title, snippet)
		}
		b.WriteString("\n")
	}

	constraints, err := s.SearchConstraints(ctx, projectID, newSpec, 5)
	if err != nil {
		return "", err
	}
	if len(constraints) > 0 {
		b.WriteString("=== Constraints ===\n")
		for _, m := range constraints {
			fmt.Fprintf(&b, "- [%s] %s\n", m.Record.Severity, m.Record.Content)
		}
	}

	out := strings.TrimSpace(b.String())
	if len(out) > budget {
		out = out[:budget]
	}
	logging.MemoryDebug("assembled %d bytes of context for %s", len(out), projectID)
	return out, nil
}

func firstSentence(s string) string {
	if i := strings.IndexAny(s, ".\n"); i > 0 && i < 200 {
		return s[:i+1]
	}
	if len(s) > 200 {
		return s[:200]
	}
	return s
}
