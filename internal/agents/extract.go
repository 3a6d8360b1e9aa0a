package agents

import (
	"encoding/json"
	"strings"
)

// ExtractKind tags the outcome of artifact extraction.
type ExtractKind string

const (
	ExtractOK      ExtractKind = "ok"
	ExtractRetry   ExtractKind = "retry"
	ExtractInvalid ExtractKind = "invalid"
)

// ExtractOutcome is the tagged result of parsing an agent's raw output.
type ExtractOutcome struct {
	Kind       ExtractKind
	Artifacts  Artifacts
	Commentary string // leading prose stripped before the JSON payload
	Reason     string // set for retry/invalid
}

// ExtractArtifacts recovers the {filepath: content} contract from raw LLM
// output. It accepts fenced blocks, strips leading commentary, scans for
// top-level JSON object candidates and re-balances braces once before
// giving up. Validation is strict: every value must be a string.
func ExtractArtifacts(raw string) ExtractOutcome {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ExtractOutcome{Kind: ExtractRetry, Reason: "empty completion"}
	}

	body, commentary := stripFences(trimmed)

	candidates := findJSONCandidates(body)
	if len(candidates) == 0 {
		// One brace re-balance attempt: the model may have truncated the
		// closing braces of an otherwise valid object.
		if rebalanced, ok := rebalanceBraces(body); ok {
			candidates = findJSONCandidates(rebalanced)
		}
	}
	if len(candidates) == 0 {
		return ExtractOutcome{Kind: ExtractInvalid, Reason: "no JSON object found"}
	}

	// Prefer the largest candidate; agents sometimes emit a small example
	// object inside their commentary.
	best := candidates[0]
	for _, c := range candidates[1:] {
		if len(c) > len(best) {
			best = c
		}
	}

	artifacts, err := parseArtifactObject(best)
	if err != nil {
		return ExtractOutcome{Kind: ExtractInvalid, Reason: err.Error()}
	}
	if len(artifacts) == 0 {
		return ExtractOutcome{Kind: ExtractRetry, Reason: "artifact object is empty"}
	}
	return ExtractOutcome{Kind: ExtractOK, Artifacts: artifacts, Commentary: commentary}
}

// parseArtifactObject strictly parses one JSON object into Artifacts,
// rejecting non-string values rather than coercing them.
func parseArtifactObject(s string) (Artifacts, error) {
	var generic map[string]json.RawMessage
	if err := json.Unmarshal([]byte(s), &generic); err != nil {
		return nil, err
	}
	out := make(Artifacts, len(generic))
	for path, rawValue := range generic {
		var content string
		if err := json.Unmarshal(rawValue, &content); err != nil {
			return nil, &nonStringValueError{path: path}
		}
		out[path] = content
	}
	return out, nil
}

type nonStringValueError struct{ path string }

func (e *nonStringValueError) Error() string {
	return "non-string artifact value for " + e.path
}

// stripFences removes markdown code fences and returns any prose that
// preceded the first fence as commentary.
func stripFences(s string) (body, commentary string) {
	idx := strings.Index(s, "```")
	if idx < 0 {
		return s, ""
	}
	commentary = strings.TrimSpace(s[:idx])

	rest := s[idx+3:]
	// Drop an optional language tag on the fence line.
	if nl := strings.IndexByte(rest, '\n'); nl >= 0 {
		firstLine := strings.TrimSpace(rest[:nl])
		if len(firstLine) <= 10 && !strings.ContainsAny(firstLine, "{}") {
			rest = rest[nl+1:]
		}
	}
	if end := strings.Index(rest, "```"); end >= 0 {
		rest = rest[:end]
	}
	return strings.TrimSpace(rest), commentary
}

// findJSONCandidates scans for top-level JSON object candidates with a
// byte-level state machine that tracks string and escape state. ASCII
// delimiter bytes never occur inside UTF-8 multi-byte sequences, so byte
// iteration is safe.
func findJSONCandidates(s string) []string {
	var candidates []string
	var depth int
	start := -1
	var inString, escape bool

	for i := 0; i < len(s); i++ {
		b := s[i]

		if escape {
			escape = false
			continue
		}
		if inString {
			if b == '\\' {
				escape = true
			} else if b == '"' {
				inString = false
			}
			continue
		}

		switch b {
		case '"':
			inString = true
		case '{':
			if depth == 0 {
				start = i
			}
			depth++
		case '}':
			if depth > 0 {
				depth--
				if depth == 0 && start != -1 {
					candidates = append(candidates, s[start:i+1])
					start = -1
				}
			}
		}
	}
	return candidates
}

// rebalanceBraces appends the missing closing braces when the input has an
// unterminated top-level object. Applied at most once.
func rebalanceBraces(s string) (string, bool) {
	var depth int
	var inString, escape bool
	opened := false

	for i := 0; i < len(s); i++ {
		b := s[i]
		if escape {
			escape = false
			continue
		}
		if inString {
			if b == '\\' {
				escape = true
			} else if b == '"' {
				inString = false
			}
			continue
		}
		switch b {
		case '"':
			inString = true
		case '{':
			depth++
			opened = true
		case '}':
			depth--
		}
	}

	if !opened || depth <= 0 || depth > 4 || inString {
		return "", false
	}
	return s + strings.Repeat("}", depth), true
}
