package orchestrator

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"appforge/internal/config"
	"appforge/internal/llm"
	"appforge/internal/logging"
	"appforge/internal/memory"
	"appforge/internal/preview"
	"appforge/internal/validation"
)

// Bootstrap wires a complete engine from configuration: adapters, router,
// validation pipeline, memory store, preview manager and project registry.
func Bootstrap(cfg *config.Config) (*Orchestrator, error) {
	clients, err := llm.NewClientsFromConfig(cfg.LLM)
	if err != nil {
		return nil, err
	}
	router := llm.NewRouter(clients,
		cfg.LLM.FailureThreshold,
		config.Duration(cfg.LLM.ReprobeInterval, 0))

	pipeline := validation.NewPipeline(
		config.Duration(cfg.Validation.ValidatorTimeout, 0),
		config.Duration(cfg.Validation.TestTimeout, 0))

	engine, err := memory.NewEngine(memory.EngineConfig{
		Provider:       cfg.Embedding.Provider,
		OllamaEndpoint: cfg.Embedding.OllamaEndpoint,
		OllamaModel:    cfg.Embedding.OllamaModel,
		GenAIAPIKey:    cfg.Embedding.GenAIAPIKey,
		GenAIModel:     cfg.Embedding.GenAIModel,
	})
	if err != nil {
		return nil, err
	}
	memDir := filepath.Join(cfg.Workspace, cfg.Memory.Dir)
	store, err := memory.NewStore(memDir, engine)
	if err != nil {
		return nil, err
	}

	previewCfg := cfg.Preview
	previewCfg.WorkDir = filepath.Join(cfg.Workspace, previewCfg.WorkDir)
	previews := preview.NewManager(previewCfg, preview.NewDockerRuntime())

	snapshotDir := filepath.Join(cfg.Workspace, ".appforge", "vfs")
	registry := NewRegistry(snapshotDir)

	logging.Get(logging.CategoryBoot).Info("engine wired: %d adapters, validators=%v",
		len(clients), pipeline.Validators())
	return New(cfg, router, pipeline, store, previews, registry), nil
}

// GetStatus reports a project's generation state.
func (o *Orchestrator) GetStatus(projectID string) (ProjectStatus, string, error) {
	project, err := o.registry.Get(projectID)
	if err != nil {
		return "", "", err
	}
	status, errText := project.Status()
	return status, errText, nil
}

// GetFiles returns a project's files as of its latest commit.
func (o *Orchestrator) GetFiles(projectID string) (map[string]string, error) {
	project, err := o.registry.Get(projectID)
	if err != nil {
		return nil, err
	}
	v := project.VFS()
	if id := v.CurrentCommitID(); id != "" {
		if snapshot, ok := v.CommitSnapshot(id); ok {
			return snapshot, nil
		}
	}
	return v.Files(), nil
}

// CreatePreview builds a containerised preview for a project and starts the
// commit watcher over its VFS. An explicit file mapping overrides the VFS
// contents for the initial build.
func (o *Orchestrator) CreatePreview(ctx context.Context, projectID string, files map[string]string) (*preview.Info, error) {
	project, err := o.registry.Get(projectID)
	if err != nil {
		return nil, err
	}
	if files == nil {
		files = project.VFS().Files()
	}

	info, err := o.previews.Create(ctx, projectID, files)
	if err != nil {
		return nil, err
	}
	if err := o.previews.Watch(projectID, project.VFS()); err != nil {
		logging.Orch("watcher start failed for %s: %v", projectID, err)
	}

	// Deep probe: load the page headlessly and surface console errors.
	// Skipped when no local browser exists.
	if checker, ok := preview.NewSmokeChecker(); ok {
		url := info.URL
		go func() {
			sctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if consoleErrors, err := checker.Check(sctx, url); err == nil && len(consoleErrors) > 0 {
				logging.Orch("smoke check for %s: %d console errors, first: %s",
					projectID, len(consoleErrors), consoleErrors[0])
			}
		}()
	}
	return info, nil
}

// SyncWorkdir exports the project tree to dir and imports out-of-band edits
// made there back into the VFS as commits, which the preview watcher turns
// into reloads. The returned function stops the sync.
func (o *Orchestrator) SyncWorkdir(projectID, dir string) (func(), error) {
	project, err := o.registry.Get(projectID)
	if err != nil {
		return nil, err
	}
	if err := project.VFS().ExportToDisk(dir); err != nil {
		return nil, err
	}

	sync, err := preview.NewWorkdirSync(dir, func(changed []string) {
		project.mu.Lock()
		defer project.mu.Unlock()
		for _, rel := range changed {
			data, err := os.ReadFile(filepath.Join(dir, filepath.FromSlash(rel)))
			if err != nil {
				if os.IsNotExist(err) {
					_ = project.vfs.DeleteFile(rel)
				}
				continue
			}
			project.vfs.WriteFile(rel, string(data))
		}
		if _, err := project.vfs.Commit(fmt.Sprintf("Workdir sync: %d files", len(changed))); err != nil {
			logging.Orch("workdir sync commit failed for %s: %v", projectID, err)
		}
	})
	if err != nil {
		return nil, err
	}
	logging.Orch("workdir sync active for %s at %s", projectID, dir)
	return sync.Close, nil
}

// PreviewStatus returns the environment snapshot for a project.
func (o *Orchestrator) PreviewStatus(projectID string) (preview.Info, bool) {
	return o.previews.StatusOf(projectID)
}

// PreviewLogs returns recent preview log lines.
func (o *Orchestrator) PreviewLogs(ctx context.Context, projectID string, n int) ([]string, error) {
	return o.previews.LogsOf(ctx, projectID, n)
}

// UpdatePreview rebuilds a preview, from explicit files or the VFS.
func (o *Orchestrator) UpdatePreview(ctx context.Context, projectID string, files map[string]string) error {
	if files == nil {
		project, err := o.registry.Get(projectID)
		if err != nil {
			return err
		}
		files = project.VFS().Files()
	}
	return o.previews.Update(ctx, projectID, files)
}

// StopPreview tears down a project's preview. Idempotent.
func (o *Orchestrator) StopPreview(ctx context.Context, projectID string) error {
	return o.previews.Stop(ctx, projectID)
}

// SubscribePreviewEvents streams reload events, one per observed commit.
func (o *Orchestrator) SubscribePreviewEvents() <-chan preview.Event {
	return o.previews.Subscribe()
}

// DeleteProject tears down a project: preview, memory collection, registry
// entry and snapshot.
func (o *Orchestrator) DeleteProject(ctx context.Context, projectID string) error {
	_ = o.previews.Stop(ctx, projectID)
	if o.memory != nil {
		if err := o.memory.DeleteProject(projectID); err != nil {
			return err
		}
	}
	o.registry.Delete(projectID)
	logging.Orch("deleted project %s", projectID)
	return nil
}

// Close shuts the engine down: previews and watchers first, then memory,
// then VFS snapshots.
func (o *Orchestrator) Close() {
	o.previews.Close()
	if o.memory != nil {
		_ = o.memory.Close()
	}
	o.registry.Close()
	logging.Shutdown()
}
