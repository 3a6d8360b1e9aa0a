package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"appforge/internal/config"
	"appforge/internal/faults"
	"appforge/internal/llm"
	"appforge/internal/manifest"
	"appforge/internal/memory"
	"appforge/internal/validation"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockClient implements llm.Client with scripted replies per call.
type mockClient struct {
	name    string
	vision  bool
	replies []string
	calls   int
	err     error
}

func (c *mockClient) Name() string    { return c.name }
func (c *mockClient) Available() bool { return true }
func (c *mockClient) Meta() llm.Meta  { return llm.Meta{SupportsVision: c.vision} }

func (c *mockClient) Complete(ctx context.Context, req llm.CompletionRequest) (string, error) {
	if c.err != nil {
		return "", c.err
	}
	if len(c.replies) == 0 {
		return "", faults.Wrap(faults.ErrProviderFatal, "no scripted reply")
	}
	reply := c.replies[min(c.calls, len(c.replies)-1)]
	c.calls++
	return reply, nil
}

func newTestOrchestrator(t *testing.T, clients ...llm.Client) *Orchestrator {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Workspace = t.TempDir()

	router := llm.NewRouter(clients, 3, time.Minute)
	pipeline := validation.NewBundledPipeline(10 * time.Second)

	store, err := memory.NewStore(t.TempDir(), memory.NewLocalEngine())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	return New(cfg, router, pipeline, store, nil, NewRegistry(""))
}

func TestGenerateWithMalformedLLMOutputUsesDefaultManifest(t *testing.T) {
	// Scenario: every provider returns malformed JSON; generation must
	// still complete from the default manifest and role templates.
	mock := &mockClient{name: "anthropic", vision: true, replies: []string{"%%% not json %%%"}}
	o := newTestOrchestrator(t, mock)

	project := o.registry.Create("proj-1", "TodoApp", "a todo list")
	err := o.Generate(context.Background(), project, GenerateRequest{
		ProjectName: "TodoApp",
		Spec:        "a todo list",
	})
	require.NoError(t, err)

	status, _ := project.Status()
	assert.Equal(t, StatusReady, status)

	history := project.VFS().GetHistory()
	require.Len(t, history, 1)
	assert.Equal(t, "Initial generation: TodoApp", history[0].Message)

	// The role templates cover the full required file set.
	files := project.VFS().Files()
	for _, required := range manifest.RequiredFiles() {
		_, ok := files[required]
		assert.True(t, ok, "missing %s", required)
	}
}

func TestGenerateUsesScriptedManifest(t *testing.T) {
	m := manifest.DefaultManifest("Api", "rest api")
	m.AgentsNeeded = []manifest.AgentRole{manifest.RoleBackend}
	manifestReply := mustJSON(t, m)

	mock := &mockClient{name: "anthropic", vision: true, replies: []string{
		manifestReply,
		`{"backend/main.py": "app = 'scripted'\n", "backend/requirements.txt": "fastapi\n"}`,
	}}
	o := newTestOrchestrator(t, mock)

	project := o.registry.Create("proj-2", "Api", "rest api")
	require.NoError(t, o.Generate(context.Background(), project, GenerateRequest{
		ProjectName: "Api", Spec: "rest api",
	}))

	content, ok := project.VFS().ReadFile("backend/main.py")
	require.True(t, ok)
	assert.Equal(t, "app = 'scripted'\n", content)
	// UIX was not in agents_needed, so no frontend artifacts were produced.
	_, hasFrontend := project.VFS().ReadFile("frontend/src/App.jsx")
	assert.False(t, hasFrontend)
}

func TestGenerateRepairLoopFixesSyntaxError(t *testing.T) {
	m := manifest.DefaultManifest("Fix", "app")
	m.AgentsNeeded = []manifest.AgentRole{manifest.RoleBackend, manifest.RoleDebug}

	mock := &mockClient{name: "anthropic", vision: true, replies: []string{
		mustJSON(t, m),
		`{"backend/main.py": "def broken(:\n", "backend/requirements.txt": "fastapi\n"}`,
		`{"backend/main.py": "def fixed():\n    return 1\n"}`,
	}}
	o := newTestOrchestrator(t, mock)

	project := o.registry.Create("proj-3", "Fix", "app")
	require.NoError(t, o.Generate(context.Background(), project, GenerateRequest{
		ProjectName: "Fix", Spec: "app",
	}))

	content, _ := project.VFS().ReadFile("backend/main.py")
	assert.Contains(t, content, "def fixed()")
	history := project.VFS().GetHistory()
	require.Len(t, history, 1)
	assert.NotContains(t, history[0].Message, "unresolved")
}

func TestGenerateRepairExhaustionCommitsWithWarnings(t *testing.T) {
	m := manifest.DefaultManifest("Stuck", "app")
	m.AgentsNeeded = []manifest.AgentRole{manifest.RoleBackend, manifest.RoleDebug}

	// The debug agent keeps re-emitting the same broken file.
	mock := &mockClient{name: "anthropic", vision: true, replies: []string{
		mustJSON(t, m),
		`{"backend/main.py": "def broken(:\n", "backend/requirements.txt": "fastapi\n"}`,
		`{"backend/main.py": "def broken(:\n"}`,
	}}
	o := newTestOrchestrator(t, mock)

	project := o.registry.Create("proj-4", "Stuck", "app")
	require.NoError(t, o.Generate(context.Background(), project, GenerateRequest{
		ProjectName: "Stuck", Spec: "app",
	}))

	status, _ := project.Status()
	assert.Equal(t, StatusReady, status)
	history := project.VFS().GetHistory()
	require.Len(t, history, 1)
	assert.Contains(t, history[0].Message, "unresolved validation issues")
}

func TestGenerateCancelledDoesNotCommit(t *testing.T) {
	mock := &mockClient{name: "anthropic", vision: true, replies: []string{"junk"}}
	o := newTestOrchestrator(t, mock)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	project := o.registry.Create("proj-5", "X", "app")
	err := o.Generate(ctx, project, GenerateRequest{ProjectName: "X", Spec: "app"})
	require.Error(t, err)
	assert.Empty(t, project.VFS().GetHistory())
}

func TestEditAppliesMinimalPatch(t *testing.T) {
	editReply := `{"backend/main.py": "def calculate(x):\n    return x * 3\n"}`
	mock := &mockClient{name: "openai", replies: []string{editReply}}
	o := newTestOrchestrator(t, mock)

	project := o.registry.Create("proj-6", "Calc", "calculator")
	project.VFS().WriteFile("backend/main.py", "def calculate(x):\n    return x * 2\n")
	_, err := project.VFS().Commit("v1")
	require.NoError(t, err)

	changed, err := o.Edit(context.Background(), EditRequest{
		ProjectID:   "proj-6",
		Instruction: "multiply by three instead",
	})
	require.NoError(t, err)
	require.Contains(t, changed, "backend/main.py")
	assert.Equal(t, "def calculate(x):\n    return x * 3\n", changed["backend/main.py"])

	// The edit produced a second commit.
	assert.Len(t, project.VFS().GetHistory(), 2)
}

func TestEditUnknownProject(t *testing.T) {
	o := newTestOrchestrator(t, &mockClient{name: "openai", replies: []string{"{}"}})
	_, err := o.Edit(context.Background(), EditRequest{ProjectID: "ghost", Instruction: "x"})
	assert.True(t, errors.Is(err, faults.ErrProjectNotFound))
}

func TestEditNoProviderReRaises(t *testing.T) {
	o := newTestOrchestrator(t) // no providers at all
	project := o.registry.Create("proj-7", "X", "app")
	project.VFS().WriteFile("a.py", "x = 1\n")
	_, _ = project.VFS().Commit("v1")

	_, err := o.Edit(context.Background(), EditRequest{ProjectID: "proj-7", Instruction: "change"})
	assert.True(t, errors.Is(err, faults.ErrProviderUnavailable))
}

func TestStartGenerateIsAsync(t *testing.T) {
	mock := &mockClient{name: "anthropic", vision: true, replies: []string{"junk"}}
	o := newTestOrchestrator(t, mock)

	projectID := o.StartGenerate(GenerateRequest{ProjectName: "Async", Spec: "a todo list"})
	require.NotEmpty(t, projectID)

	deadline := time.After(10 * time.Second)
	for {
		status, _, err := o.GetStatus(projectID)
		require.NoError(t, err)
		if status == StatusReady {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("generation did not reach ready, status=%s", status)
		case <-time.After(20 * time.Millisecond):
		}
	}

	files, err := o.GetFiles(projectID)
	require.NoError(t, err)
	assert.Contains(t, files, "backend/main.py")
}

func TestRouterStatsUpdatedThroughPipeline(t *testing.T) {
	mock := &mockClient{name: "anthropic", vision: true, replies: []string{"junk"}}
	o := newTestOrchestrator(t, mock)

	project := o.registry.Create("proj-8", "X", "a todo list")
	require.NoError(t, o.Generate(context.Background(), project, GenerateRequest{
		ProjectName: "X", Spec: "a todo list",
	}))

	stats := o.router.Stats()["anthropic"]
	assert.Greater(t, stats.Attempts, 0)
}

func mustJSON(t *testing.T, m *manifest.ProjectManifest) string {
	t.Helper()
	data, err := json.Marshal(m)
	require.NoError(t, err)
	return string(data)
}
