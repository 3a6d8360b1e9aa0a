// Package validation runs the pluggable static/security/format/test checks
// that gate VFS commits, and renders Error-severity findings into repair
// directives for the Quality and Debug agents.
package validation

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"appforge/internal/logging"

	"golang.org/x/sync/errgroup"
)

// Severity classifies a validation issue.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// Issue is one finding from one validator.
type Issue struct {
	Validator string   `json:"validator"`
	Severity  Severity `json:"severity"`
	File      string   `json:"file,omitempty"`
	Line      int      `json:"line,omitempty"`
	Column    int      `json:"column,omitempty"`
	Message   string   `json:"message"`
	Fixable   bool     `json:"fixable"`
}

// Result aggregates one validator's findings.
type Result struct {
	Validator string        `json:"validator"`
	Passed    bool          `json:"passed"`
	Issues    []Issue       `json:"issues"`
	Elapsed   time.Duration `json:"elapsed"`
	Skipped   bool          `json:"skipped"` // external tool missing
}

// Report is the merged outcome of one pipeline run.
type Report struct {
	Passed  bool          `json:"passed"`
	Results []Result      `json:"results"`
	Tests   *TestResult   `json:"tests,omitempty"`
	Elapsed time.Duration `json:"elapsed"`
}

// Errors returns all Error-severity issues across validators.
func (r *Report) Errors() []Issue {
	var out []Issue
	for _, res := range r.Results {
		for _, issue := range res.Issues {
			if issue.Severity == SeverityError {
				out = append(out, issue)
			}
		}
	}
	return out
}

// AllIssues returns every issue across validators.
func (r *Report) AllIssues() []Issue {
	var out []Issue
	for _, res := range r.Results {
		out = append(out, res.Issues...)
	}
	return out
}

// Validator is one pluggable check over a file set.
type Validator interface {
	Name() string
	// Extensions returns the file extensions this validator applies to
	// (with dot, lowercase). Empty means all files.
	Extensions() []string
	Validate(ctx context.Context, files map[string]string) Result
}

// Pipeline is the validator registry plus execution policy.
type Pipeline struct {
	mu         sync.RWMutex
	validators []Validator

	perValidatorTimeout time.Duration
	testRunner          *TestRunner
}

// NewPipeline creates a pipeline with the bundled validators registered.
// External tool validators register themselves only when their binary is
// found on PATH.
func NewPipeline(perValidatorTimeout, testTimeout time.Duration) *Pipeline {
	if perValidatorTimeout <= 0 {
		perValidatorTimeout = 60 * time.Second
	}
	p := &Pipeline{
		perValidatorTimeout: perValidatorTimeout,
		testRunner:          NewTestRunner(testTimeout),
	}

	p.Register(&PythonSyntaxValidator{})
	p.Register(&JSONValidator{})
	for _, v := range availableToolValidators() {
		p.Register(v)
	}
	return p
}

// NewBundledPipeline returns a pipeline with only the parser-based
// validators and no test adjunct, for callers whose results must not depend
// on host tooling.
func NewBundledPipeline(perValidatorTimeout time.Duration) *Pipeline {
	if perValidatorTimeout <= 0 {
		perValidatorTimeout = 60 * time.Second
	}
	p := &Pipeline{perValidatorTimeout: perValidatorTimeout}
	p.Register(&PythonSyntaxValidator{})
	p.Register(&JSONValidator{})
	return p
}

// Register adds a validator to the registry.
func (p *Pipeline) Register(v Validator) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.validators = append(p.validators, v)
	logging.ValidateDebug("registered validator %s", v.Name())
}

// Validators returns the registered validator names.
func (p *Pipeline) Validators() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	names := make([]string, 0, len(p.validators))
	for _, v := range p.validators {
		names = append(names, v.Name())
	}
	sort.Strings(names)
	return names
}

func applies(v Validator, files map[string]string) bool {
	exts := v.Extensions()
	if len(exts) == 0 {
		return true
	}
	for path := range files {
		ext := strings.ToLower(filepath.Ext(path))
		for _, want := range exts {
			if ext == want {
				return true
			}
		}
	}
	return false
}

// filtered returns only the files a validator applies to.
func filtered(v Validator, files map[string]string) map[string]string {
	exts := v.Extensions()
	if len(exts) == 0 {
		return files
	}
	out := map[string]string{}
	for path, content := range files {
		ext := strings.ToLower(filepath.Ext(path))
		for _, want := range exts {
			if ext == want {
				out[path] = content
			}
		}
	}
	return out
}

// Run executes every applicable validator concurrently with a per-validator
// timeout, then runs the test adjunct when test files are present. Results
// merge deterministically by validator name.
func (p *Pipeline) Run(ctx context.Context, files map[string]string) *Report {
	start := time.Now()

	p.mu.RLock()
	applicable := make([]Validator, 0, len(p.validators))
	for _, v := range p.validators {
		if applies(v, files) {
			applicable = append(applicable, v)
		}
	}
	p.mu.RUnlock()

	logging.Validate("running %d validators over %d files", len(applicable), len(files))

	results := make([]Result, len(applicable))
	g, gctx := errgroup.WithContext(ctx)
	for i, v := range applicable {
		g.Go(func() error {
			vctx, cancel := context.WithTimeout(gctx, p.perValidatorTimeout)
			defer cancel()

			vStart := time.Now()
			res := v.Validate(vctx, filtered(v, files))
			res.Validator = v.Name()
			res.Elapsed = time.Since(vStart)

			if vctx.Err() == context.DeadlineExceeded {
				res.Passed = false
				res.Issues = append(res.Issues, Issue{
					Validator: v.Name(),
					Severity:  SeverityError,
					Message:   fmt.Sprintf("validator timed out after %v", p.perValidatorTimeout),
				})
			}
			results[i] = res
			return nil
		})
	}
	_ = g.Wait()

	sort.Slice(results, func(i, j int) bool {
		return results[i].Validator < results[j].Validator
	})

	report := &Report{Passed: true, Results: results}
	for _, res := range results {
		if !res.Passed && !res.Skipped {
			report.Passed = false
		}
	}

	if p.testRunner != nil && p.testRunner.HasTests(files) {
		tr := p.testRunner.Run(ctx, files)
		report.Tests = tr
		if tr.Failed > 0 {
			report.Passed = false
		}
	}

	report.Elapsed = time.Since(start)
	logging.Validate("pipeline passed=%v issues=%d in %v",
		report.Passed, len(report.AllIssues()), report.Elapsed)
	return report
}

// RepairDirective renders Error issues into the instruction text handed to
// the Quality/Debug agents in the auto-fix loop.
func RepairDirective(issues []Issue) string {
	var b strings.Builder
	b.WriteString("Fix the following validation errors. Re-emit only the affected files, complete and corrected:\n")
	for _, issue := range issues {
		loc := issue.File
		if issue.Line > 0 {
			loc = fmt.Sprintf("%s line %d", issue.File, issue.Line)
		}
		fmt.Fprintf(&b, "- %s: %s (%s)\n", loc, issue.Message, issue.Validator)
	}
	return b.String()
}
