package validation

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPipeline() *Pipeline {
	// Bundled validators only, so results do not depend on host tooling.
	return NewBundledPipeline(10 * time.Second)
}

func TestSyntaxErrorDetected(t *testing.T) {
	p := newTestPipeline()
	files := map[string]string{
		"good.py": "def f():\n    return 1\n",
		"bad.py":  "def g(:\n",
	}

	report := p.Run(context.Background(), files)
	require.False(t, report.Passed)

	errs := report.Errors()
	require.Len(t, errs, 1)
	assert.Equal(t, "bad.py", errs[0].File)
	assert.Equal(t, "python-syntax", errs[0].Validator)
}

func TestCleanFilesPass(t *testing.T) {
	p := newTestPipeline()
	files := map[string]string{
		"app.py":       "x = 1\n",
		"package.json": `{"name": "x"}`,
	}
	report := p.Run(context.Background(), files)
	assert.True(t, report.Passed)
	assert.Empty(t, report.Errors())
}

func TestJSONValidator(t *testing.T) {
	p := newTestPipeline()
	files := map[string]string{
		"ok.json":  `{"a": [1, 2]}`,
		"bad.json": `{"a": [1, 2}`,
	}
	report := p.Run(context.Background(), files)
	require.False(t, report.Passed)

	errs := report.Errors()
	require.Len(t, errs, 1)
	assert.Equal(t, "bad.json", errs[0].File)
	assert.Equal(t, "json-structure", errs[0].Validator)
}

func TestValidatorsOnlySeeApplicableFiles(t *testing.T) {
	p := newTestPipeline()
	// A .txt file that is invalid Python and invalid JSON must not fail.
	report := p.Run(context.Background(), map[string]string{"notes.txt": "def (:"})
	assert.True(t, report.Passed)
}

func TestDeterministicResults(t *testing.T) {
	p := newTestPipeline()
	files := map[string]string{
		"a.py":    "def f(:\n",
		"b.json":  "{bad",
		"c.py":    "ok = True\n",
		"d.json":  `{"fine": 1}`,
		"main.py": "def g(\n",
		"e.json":  "[1,",
	}

	first := p.Run(context.Background(), files)
	for i := 0; i < 5; i++ {
		again := p.Run(context.Background(), files)
		require.Equal(t, first.Passed, again.Passed)
		require.Equal(t, len(first.Results), len(again.Results))
		for j := range first.Results {
			assert.Equal(t, first.Results[j].Validator, again.Results[j].Validator)
			assert.Equal(t, len(first.Results[j].Issues), len(again.Results[j].Issues))
		}
	}
}

func TestSyntaxIssueHasPosition(t *testing.T) {
	v := &PythonSyntaxValidator{}
	res := v.Validate(context.Background(), map[string]string{
		"m.py": "def ok():\n    pass\n\ndef broken(:\n",
	})
	require.False(t, res.Passed)
	require.Len(t, res.Issues, 1)
	assert.Greater(t, res.Issues[0].Line, 1)
}

func TestRepairDirective(t *testing.T) {
	directive := RepairDirective([]Issue{
		{Validator: "python-syntax", Severity: SeverityError, File: "bad.py", Line: 3, Message: "syntax error"},
	})
	assert.True(t, strings.Contains(directive, "bad.py line 3"))
	assert.True(t, strings.Contains(directive, "python-syntax"))
}

func TestHasTests(t *testing.T) {
	r := NewTestRunner(0)
	assert.True(t, r.HasTests(map[string]string{"backend/test_main.py": ""}))
	assert.True(t, r.HasTests(map[string]string{"backend/api_test.py": ""}))
	assert.False(t, r.HasTests(map[string]string{"backend/main.py": ""}))
}

func TestPytestSummaryParsing(t *testing.T) {
	out := "....F\n3 passed, 1 failed, 2 skipped in 0.12s\n"
	matches := pytestCount.FindAllStringSubmatch(out, -1)
	require.Len(t, matches, 3)
	assert.Equal(t, []string{"3", "passed"}, matches[0][1:])
	assert.Equal(t, []string{"1", "failed"}, matches[1][1:])
	assert.Equal(t, []string{"2", "skipped"}, matches[2][1:])
}
