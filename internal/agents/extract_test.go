package agents

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractPlainObject(t *testing.T) {
	out := ExtractArtifacts(`{"main.py": "print(1)"}`)
	require.Equal(t, ExtractOK, out.Kind)
	assert.Equal(t, "print(1)", out.Artifacts["main.py"])
}

func TestExtractFencedWithCommentary(t *testing.T) {
	raw := "Here are the generated files:\n```json\n{\"a.py\": \"x = 1\"}\n```"
	out := ExtractArtifacts(raw)
	require.Equal(t, ExtractOK, out.Kind)
	assert.Equal(t, "x = 1", out.Artifacts["a.py"])
	assert.Equal(t, "Here are the generated files:", out.Commentary)
}

func TestExtractPrefersLargestCandidate(t *testing.T) {
	raw := `The format is {"example": "short"} and the result is
{"backend/main.py": "a much longer piece of content that is the real artifact payload"}`
	out := ExtractArtifacts(raw)
	require.Equal(t, ExtractOK, out.Kind)
	_, hasReal := out.Artifacts["backend/main.py"]
	assert.True(t, hasReal)
}

func TestExtractRebalancesTruncatedBraces(t *testing.T) {
	raw := `{"a.py": "content", "b.py": "more content"`
	out := ExtractArtifacts(raw)
	require.Equal(t, ExtractOK, out.Kind)
	assert.Len(t, out.Artifacts, 2)
}

func TestExtractEscapedBracesInsideStrings(t *testing.T) {
	raw := `{"app.js": "function f() { return \"}\" }"}`
	out := ExtractArtifacts(raw)
	require.Equal(t, ExtractOK, out.Kind)
	assert.Contains(t, out.Artifacts["app.js"], "}")
}

func TestExtractRejectsNonStringValues(t *testing.T) {
	out := ExtractArtifacts(`{"a.py": 42}`)
	assert.Equal(t, ExtractInvalid, out.Kind)
}

func TestExtractNoJSON(t *testing.T) {
	out := ExtractArtifacts("I could not generate the files, sorry.")
	assert.Equal(t, ExtractInvalid, out.Kind)
}

func TestExtractEmptyCompletion(t *testing.T) {
	out := ExtractArtifacts("   ")
	assert.Equal(t, ExtractRetry, out.Kind)
}

func TestExtractEmptyObjectIsRetry(t *testing.T) {
	out := ExtractArtifacts(`{}`)
	assert.Equal(t, ExtractRetry, out.Kind)
}

func TestFindJSONCandidatesNested(t *testing.T) {
	cands := findJSONCandidates(`prefix {"a": {"b": 1}} suffix {"c": 2}`)
	require.Len(t, cands, 2)
	assert.Equal(t, `{"a": {"b": 1}}`, cands[0])
	assert.Equal(t, `{"c": 2}`, cands[1])
}
