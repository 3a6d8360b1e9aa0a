package agents

import (
	"context"
	"testing"

	"appforge/internal/faults"
	"appforge/internal/llm"
	"appforge/internal/manifest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scriptedClient struct {
	reply string
	err   error
}

func (c *scriptedClient) Name() string    { return "scripted" }
func (c *scriptedClient) Available() bool { return true }
func (c *scriptedClient) Meta() llm.Meta  { return llm.Meta{SupportsVision: true} }
func (c *scriptedClient) Complete(ctx context.Context, req llm.CompletionRequest) (string, error) {
	return c.reply, c.err
}

func TestExecuteParsesArtifacts(t *testing.T) {
	agent := NewBackendAgent()
	ac := &Context{ProjectName: "X", Files: map[string]string{}}
	client := &scriptedClient{reply: `{"backend/main.py": "app = 1"}`}

	msg, err := agent.Execute(context.Background(), client, ac)
	require.NoError(t, err)
	assert.Equal(t, RoleBackend, msg.Role)
	assert.Equal(t, "app = 1", msg.Artifacts["backend/main.py"])
	assert.Greater(t, msg.Confidence, 0.5)
}

func TestExecuteFallsBackOnGarbage(t *testing.T) {
	agent := NewBackendAgent()
	ac := &Context{ProjectName: "X", Files: map[string]string{}}
	client := &scriptedClient{reply: "sorry, no JSON today"}

	msg, err := agent.Execute(context.Background(), client, ac)
	require.NoError(t, err)
	assert.Less(t, msg.Confidence, 0.5)
	// Backend fallback template covers the backend entry.
	assert.Contains(t, msg.Artifacts, "backend/main.py")
	assert.Contains(t, msg.Artifacts, "backend/requirements.txt")
}

func TestExecuteReturnsProviderError(t *testing.T) {
	agent := NewUIXAgent()
	ac := &Context{ProjectName: "X", Files: map[string]string{}}
	client := &scriptedClient{err: faults.Wrap(faults.ErrProviderTransient, "boom")}

	msg, err := agent.Execute(context.Background(), client, ac)
	require.Error(t, err)
	// Even on error the fallback artifacts are available to the caller.
	assert.Contains(t, msg.Artifacts, "frontend/src/App.jsx")
}

func TestArchFallbackPassesManifestThrough(t *testing.T) {
	agent := NewArchAgent()
	m := manifest.DefaultManifest("X", "a todo list")
	ac := &Context{ProjectName: "X", Manifest: m, Files: map[string]string{}}
	client := &scriptedClient{reply: "not json"}

	msg, err := agent.Execute(context.Background(), client, ac)
	require.NoError(t, err)
	assert.Contains(t, msg.Artifacts["architecture.json"], `"app_type"`)
}

func TestEditAgentHasNoFallback(t *testing.T) {
	agent := NewEditAgent()
	ac := &Context{Instruction: "make it red", Files: map[string]string{"a.css": "x"}}
	client := &scriptedClient{reply: "no artifacts here"}

	msg, err := agent.Execute(context.Background(), client, ac)
	require.NoError(t, err)
	assert.Empty(t, msg.Artifacts)
}

func TestExecuteCoreValidManifest(t *testing.T) {
	m := manifest.DefaultManifest("TodoApp", "a todo list")
	data := manifestJSON(&Context{Manifest: m})
	client := &scriptedClient{reply: "```json\n" + data + "\n```"}

	res := ExecuteCore(context.Background(), client, &Context{ProjectName: "TodoApp", Spec: "a todo list"})
	require.False(t, res.UsedDefault)
	assert.Equal(t, manifest.AppTodo, res.Manifest.AppType)
}

func TestExecuteCoreMalformedJSONUsesDefault(t *testing.T) {
	client := &scriptedClient{reply: "{{{ totally broken"}
	res := ExecuteCore(context.Background(), client, &Context{ProjectName: "TodoApp", Spec: "a todo list"})

	require.True(t, res.UsedDefault)
	assert.Equal(t, manifest.AppTodo, res.Manifest.AppType)
	assert.GreaterOrEqual(t, len(res.Manifest.Features), 3)
	assert.NoError(t, res.Manifest.Validate())
	assert.Less(t, res.Message.Confidence, 0.5)
}

func TestExecuteCoreRejectsInvalidManifest(t *testing.T) {
	// Valid JSON, but schema-invalid (empty features).
	client := &scriptedClient{reply: `{"app_type": "todo", "features": []}`}
	res := ExecuteCore(context.Background(), client, &Context{ProjectName: "X", Spec: "a todo list"})
	assert.True(t, res.UsedDefault)
}

func TestExecuteCoreNilClient(t *testing.T) {
	res := ExecuteCore(context.Background(), nil, &Context{ProjectName: "X", Spec: "blog"})
	assert.True(t, res.UsedDefault)
	assert.Equal(t, manifest.AppBlog, res.Manifest.AppType)
}

func TestSpecialistForCoversAllRoles(t *testing.T) {
	roles := []manifest.AgentRole{
		manifest.RoleArch, manifest.RoleBackend, manifest.RoleUIX,
		manifest.RoleDebug, manifest.RoleQuality, manifest.RoleTest,
	}
	for _, role := range roles {
		require.NotNil(t, SpecialistFor(role), "role %s", role)
	}
	assert.Nil(t, SpecialistFor(manifest.AgentRole("NOPE")))
}
