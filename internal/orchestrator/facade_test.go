package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"appforge/internal/config"
	"appforge/internal/llm"
	"appforge/internal/memory"
	"appforge/internal/preview"
	"appforge/internal/validation"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubRuntime satisfies preview.ContainerRuntime without a docker daemon.
type stubRuntime struct {
	mu     sync.Mutex
	nextID int
}

func (s *stubRuntime) Available() bool                                      { return true }
func (s *stubRuntime) EnsureNetwork(ctx context.Context, name string) error { return nil }
func (s *stubRuntime) BuildImage(ctx context.Context, dir, tag string) (string, error) {
	return "ok", nil
}
func (s *stubRuntime) RunContainer(ctx context.Context, spec preview.RunSpec) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	return fmt.Sprintf("c%d", s.nextID), nil
}
func (s *stubRuntime) StopContainer(ctx context.Context, id string) error   { return nil }
func (s *stubRuntime) RemoveContainer(ctx context.Context, id string) error { return nil }
func (s *stubRuntime) RemoveImage(ctx context.Context, tag string) error    { return nil }
func (s *stubRuntime) Logs(ctx context.Context, id string, n int) (string, error) {
	return "uvicorn running\n", nil
}

func newPreviewOrchestrator(t *testing.T) *Orchestrator {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Workspace = t.TempDir()
	cfg.Preview.WorkDir = t.TempDir()
	cfg.Preview.PollInterval = "10ms"
	cfg.Preview.BuildTimeout = "5s"

	manager := preview.NewManager(cfg.Preview, &stubRuntime{})
	manager.SetHealthProbe(func(ctx context.Context, url string, budget time.Duration) error {
		return nil
	})
	t.Cleanup(manager.Close)

	store, err := memory.NewStore(t.TempDir(), memory.NewLocalEngine())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	router := llm.NewRouter(nil, 3, time.Minute)
	pipeline := validation.NewBundledPipeline(10 * time.Second)
	return New(cfg, router, pipeline, store, manager, NewRegistry(""))
}

func TestPreviewCreateCommitReload(t *testing.T) {
	o := newPreviewOrchestrator(t)
	ctx := context.Background()

	project := o.registry.Create("prev-1", "App", "app")
	project.VFS().WriteFile("backend/main.py", "app = 1\n")
	project.VFS().WriteFile("backend/requirements.txt", "fastapi\n")
	_, err := project.VFS().Commit("initial")
	require.NoError(t, err)

	info, err := o.CreatePreview(ctx, "prev-1", nil)
	require.NoError(t, err)
	assert.Equal(t, preview.StatusRunning, info.Status)
	assert.GreaterOrEqual(t, info.Port, 8100)

	events := o.SubscribePreviewEvents()

	// A new commit must trigger exactly one rebuild and one reload event.
	project.VFS().WriteFile("backend/main.py", "app = 2\n")
	commitID, err := project.VFS().Commit("change entry")
	require.NoError(t, err)

	deadline := time.After(5 * time.Second)
	for {
		select {
		case e := <-events:
			if e.Kind == preview.EventReload {
				assert.Equal(t, commitID, e.CommitID)
				assert.Equal(t, "prev-1", e.ProjectID)
				return
			}
		case <-deadline:
			t.Fatal("no reload event observed")
		}
	}
}

func TestPreviewStatusAndLogs(t *testing.T) {
	o := newPreviewOrchestrator(t)
	ctx := context.Background()

	project := o.registry.Create("prev-2", "App", "app")
	project.VFS().WriteFile("backend/requirements.txt", "fastapi\n")
	project.VFS().WriteFile("backend/main.py", "app = 1\n")
	_, _ = project.VFS().Commit("initial")

	_, err := o.CreatePreview(ctx, "prev-2", nil)
	require.NoError(t, err)

	info, ok := o.PreviewStatus("prev-2")
	require.True(t, ok)
	assert.Equal(t, preview.TypePythonService, info.Type)

	lines, err := o.PreviewLogs(ctx, "prev-2", 10)
	require.NoError(t, err)
	assert.NotEmpty(t, lines)

	require.NoError(t, o.StopPreview(ctx, "prev-2"))
	require.NoError(t, o.StopPreview(ctx, "prev-2")) // idempotent
}

func TestDeleteProjectTearsDown(t *testing.T) {
	o := newPreviewOrchestrator(t)
	ctx := context.Background()

	project := o.registry.Create("prev-3", "App", "app")
	project.VFS().WriteFile("backend/requirements.txt", "fastapi\n")
	_, _ = project.VFS().Commit("initial")

	require.NoError(t, o.memory.StoreDecision(ctx, "prev-3", "t", "r"))
	require.NoError(t, o.DeleteProject(ctx, "prev-3"))

	_, err := o.registry.Get("prev-3")
	assert.Error(t, err)
}
