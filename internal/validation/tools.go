package validation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"appforge/internal/logging"
)

// ToolValidator shells out to an external checker over a materialized copy
// of the file set. Registered only when its binary is on PATH.
type ToolValidator struct {
	name    string
	binary  string
	args    []string
	exts    []string
	fixable bool
	parse   func(dir string, stdout, stderr string, exitCode int) []Issue
}

func (v *ToolValidator) Name() string         { return v.name }
func (v *ToolValidator) Extensions() []string { return v.exts }

func (v *ToolValidator) Validate(ctx context.Context, files map[string]string) Result {
	res := Result{Passed: true}

	dir, err := os.MkdirTemp("", "appforge-validate-*")
	if err != nil {
		res.Passed = false
		res.Issues = []Issue{{
			Validator: v.name, Severity: SeverityError,
			Message: fmt.Sprintf("temp dir: %v", err),
		}}
		return res
	}
	defer os.RemoveAll(dir)

	for path, content := range files {
		full := filepath.Join(dir, filepath.FromSlash(path))
		if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
			continue
		}
		_ = os.WriteFile(full, []byte(content), 0o644)
	}

	args := append(append([]string{}, v.args...), ".")
	cmd := exec.CommandContext(ctx, v.binary, args...)
	cmd.Dir = dir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err = cmd.Run()
	exitCode := 0
	if exitErr, ok := err.(*exec.ExitError); ok {
		exitCode = exitErr.ExitCode()
	} else if err != nil {
		logging.ValidateDebug("%s: run failed: %v", v.name, err)
		res.Skipped = true
		return res
	}

	res.Issues = v.parse(dir, stdout.String(), stderr.String(), exitCode)
	for _, issue := range res.Issues {
		if issue.Severity == SeverityError {
			res.Passed = false
		}
	}
	if exitCode != 0 && len(res.Issues) == 0 {
		// Tool failed without parseable findings; keep the pipeline honest.
		res.Passed = false
		res.Issues = append(res.Issues, Issue{
			Validator: v.name,
			Severity:  SeverityError,
			Message:   firstNonEmptyLine(stderr.String(), stdout.String()),
		})
	}
	return res
}

// availableToolValidators probes PATH and returns only runnable tools.
func availableToolValidators() []Validator {
	var out []Validator
	for _, v := range toolValidatorCatalog() {
		if _, err := exec.LookPath(v.binary); err == nil {
			out = append(out, v)
		} else {
			logging.ValidateDebug("tool %s (%s) not on PATH, skipping", v.name, v.binary)
		}
	}
	return out
}

func toolValidatorCatalog() []*ToolValidator {
	return []*ToolValidator{
		{
			name:   "ruff",
			binary: "ruff",
			args:   []string{"check", "--output-format", "json"},
			exts:   []string{".py"},
			parse:  parseRuffJSON,
		},
		{
			name:   "bandit",
			binary: "bandit",
			args:   []string{"-r", "-f", "json", "-q"},
			exts:   []string{".py"},
			parse:  parseBanditJSON,
		},
		{
			name:    "black",
			binary:  "black",
			args:    []string{"--check", "--quiet"},
			exts:    []string{".py"},
			fixable: true,
			parse:   parseBlackCheck,
		},
		{
			name:   "eslint",
			binary: "eslint",
			args:   []string{"--format", "json"},
			exts:   []string{".js", ".jsx"},
			parse:  parseESLintJSON,
		},
		{
			name:    "prettier",
			binary:  "prettier",
			args:    []string{"--check"},
			exts:    []string{".js", ".jsx", ".css", ".html"},
			fixable: true,
			parse:   parsePrettierCheck,
		},
		{
			name:   "tsc",
			binary: "tsc",
			args:   []string{"--noEmit", "--pretty", "false"},
			exts:   []string{".ts", ".tsx"},
			parse:  parseTscOutput,
		},
	}
}

func parseRuffJSON(dir, stdout, _ string, _ int) []Issue {
	var findings []struct {
		Code     string `json:"code"`
		Message  string `json:"message"`
		Filename string `json:"filename"`
		Location struct {
			Row    int `json:"row"`
			Column int `json:"column"`
		} `json:"location"`
		Fix *struct{} `json:"fix"`
	}
	if err := json.Unmarshal([]byte(stdout), &findings); err != nil {
		return nil
	}
	var out []Issue
	for _, f := range findings {
		out = append(out, Issue{
			Validator: "ruff",
			Severity:  SeverityWarning,
			File:      relPath(dir, f.Filename),
			Line:      f.Location.Row,
			Column:    f.Location.Column,
			Message:   fmt.Sprintf("%s %s", f.Code, f.Message),
			Fixable:   f.Fix != nil,
		})
	}
	return out
}

func parseBanditJSON(dir, stdout, _ string, _ int) []Issue {
	var report struct {
		Results []struct {
			Filename    string `json:"filename"`
			LineNumber  int    `json:"line_number"`
			IssueText   string `json:"issue_text"`
			Severity    string `json:"issue_severity"`
			TestID      string `json:"test_id"`
		} `json:"results"`
	}
	if err := json.Unmarshal([]byte(stdout), &report); err != nil {
		return nil
	}
	var out []Issue
	for _, r := range report.Results {
		severity := SeverityInfo
		switch strings.ToUpper(r.Severity) {
		case "HIGH":
			severity = SeverityError
		case "MEDIUM":
			severity = SeverityWarning
		}
		out = append(out, Issue{
			Validator: "bandit",
			Severity:  severity,
			File:      relPath(dir, r.Filename),
			Line:      r.LineNumber,
			Message:   fmt.Sprintf("%s %s", r.TestID, r.IssueText),
		})
	}
	return out
}

func parseBlackCheck(dir, _, stderr string, exitCode int) []Issue {
	if exitCode == 0 {
		return nil
	}
	var out []Issue
	for _, line := range strings.Split(stderr, "\n") {
		if rest, found := strings.CutPrefix(line, "would reformat "); found {
			out = append(out, Issue{
				Validator: "black",
				Severity:  SeverityWarning,
				File:      relPath(dir, strings.TrimSpace(rest)),
				Message:   "file is not black-formatted",
				Fixable:   true,
			})
		}
	}
	return out
}

func parseESLintJSON(dir, stdout, _ string, _ int) []Issue {
	var reports []struct {
		FilePath string `json:"filePath"`
		Messages []struct {
			RuleID   string `json:"ruleId"`
			Severity int    `json:"severity"`
			Message  string `json:"message"`
			Line     int    `json:"line"`
			Column   int    `json:"column"`
			Fix      *struct{} `json:"fix"`
		} `json:"messages"`
	}
	if err := json.Unmarshal([]byte(stdout), &reports); err != nil {
		return nil
	}
	var out []Issue
	for _, r := range reports {
		for _, m := range r.Messages {
			severity := SeverityWarning
			if m.Severity >= 2 {
				severity = SeverityError
			}
			out = append(out, Issue{
				Validator: "eslint",
				Severity:  severity,
				File:      relPath(dir, r.FilePath),
				Line:      m.Line,
				Column:    m.Column,
				Message:   fmt.Sprintf("%s (%s)", m.Message, m.RuleID),
				Fixable:   m.Fix != nil,
			})
		}
	}
	return out
}

func parsePrettierCheck(dir, stdout, _ string, exitCode int) []Issue {
	if exitCode == 0 {
		return nil
	}
	var out []Issue
	for _, line := range strings.Split(stdout, "\n") {
		line = strings.TrimSpace(strings.TrimPrefix(line, "[warn]"))
		if line == "" || strings.HasPrefix(line, "Code style issues") {
			continue
		}
		out = append(out, Issue{
			Validator: "prettier",
			Severity:  SeverityWarning,
			File:      filepath.ToSlash(line),
			Message:   "file is not prettier-formatted",
			Fixable:   true,
		})
	}
	return out
}

func parseTscOutput(dir, stdout, _ string, _ int) []Issue {
	var out []Issue
	for _, line := range strings.Split(stdout, "\n") {
		// file.ts(12,5): error TS2304: message
		open := strings.Index(line, "(")
		closeIdx := strings.Index(line, "):")
		if open <= 0 || closeIdx <= open {
			continue
		}
		var row, col int
		_, _ = fmt.Sscanf(line[open+1:closeIdx], "%d,%d", &row, &col)
		rest := strings.TrimSpace(line[closeIdx+2:])
		severity := SeverityWarning
		if strings.HasPrefix(rest, "error") {
			severity = SeverityError
		}
		out = append(out, Issue{
			Validator: "tsc",
			Severity:  severity,
			File:      filepath.ToSlash(line[:open]),
			Line:      row,
			Column:    col,
			Message:   rest,
		})
	}
	return out
}

func relPath(dir, path string) string {
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return filepath.ToSlash(path)
	}
	return filepath.ToSlash(rel)
}

func firstNonEmptyLine(candidates ...string) string {
	for _, c := range candidates {
		for _, line := range strings.Split(c, "\n") {
			if s := strings.TrimSpace(line); s != "" {
				return s
			}
		}
	}
	return "tool reported failure without output"
}
