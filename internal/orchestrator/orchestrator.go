// Package orchestrator sequences the agents, mediates the validation repair
// loop, owns the project registry and exposes the engine's external
// operations (generate, edit, preview, memory).
package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"appforge/internal/agents"
	"appforge/internal/astpatch"
	"appforge/internal/config"
	"appforge/internal/faults"
	"appforge/internal/llm"
	"appforge/internal/logging"
	"appforge/internal/manifest"
	"appforge/internal/memory"
	"appforge/internal/preview"
	"appforge/internal/validation"

	"github.com/google/uuid"
)

// specialistOrder is the fixed execution order for manifest agents.
var specialistOrder = []manifest.AgentRole{
	manifest.RoleArch,
	manifest.RoleBackend,
	manifest.RoleUIX,
	manifest.RoleTest,
	manifest.RoleQuality,
	manifest.RoleDebug,
}

// Orchestrator wires the router, agents, VFS registry, validation pipeline,
// preview manager and project memory into the generate/edit pipelines.
type Orchestrator struct {
	cfg      *config.Config
	router   *llm.Router
	pipeline *validation.Pipeline
	memory   *memory.Store
	previews *preview.Manager
	registry *Registry

	maxRepairAttempts int
}

// New wires an orchestrator from its collaborators.
func New(cfg *config.Config, router *llm.Router, pipeline *validation.Pipeline,
	mem *memory.Store, previews *preview.Manager, registry *Registry) *Orchestrator {
	attempts := cfg.Validation.MaxRepairAttempts
	if attempts <= 0 {
		attempts = 3
	}
	return &Orchestrator{
		cfg:               cfg,
		router:            router,
		pipeline:          pipeline,
		memory:            mem,
		previews:          previews,
		registry:          registry,
		maxRepairAttempts: attempts,
	}
}

// Registry exposes the project registry to the CLI layer.
func (o *Orchestrator) Registry() *Registry { return o.registry }

// Previews exposes the preview manager to the CLI layer.
func (o *Orchestrator) Previews() *preview.Manager { return o.previews }

// GenerateRequest is the input of the generate pipeline.
type GenerateRequest struct {
	ProjectName string
	Spec        string
	Image       []byte
	ImageMIME   string
}

// StartGenerate registers a project and runs the generate pipeline in the
// background, returning the project id immediately. Progress is observable
// through GetStatus.
func (o *Orchestrator) StartGenerate(req GenerateRequest) string {
	projectID := uuid.NewString()[:8]
	project := o.registry.Create(projectID, req.ProjectName, req.Spec)
	project.setStatus(StatusPending, "")

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Minute)
		defer cancel()
		if err := o.Generate(ctx, project, req); err != nil {
			project.setStatus(StatusFailed, err.Error())
		}
	}()
	return projectID
}

// Generate runs the full generation pipeline synchronously. The project's
// advisory lock is held for the write-then-commit section only.
func (o *Orchestrator) Generate(ctx context.Context, project *Project, req GenerateRequest) error {
	project.setStatus(StatusGenerating, "")
	logging.Orch("generate %s (%s): %q", project.ID, req.ProjectName, firstLine(req.Spec))

	memoryContext := ""
	if o.memory != nil {
		if mc, err := o.memory.ContextForGeneration(ctx, project.ID, req.Spec, o.cfg.Memory.ContextBudget); err == nil {
			memoryContext = mc
		}
	}

	ac := &agents.Context{
		ProjectName:   req.ProjectName,
		ProjectID:     project.ID,
		Spec:          req.Spec,
		Image:         req.Image,
		ImageMIME:     req.ImageMIME,
		Files:         project.VFS().Files(),
		MemoryContext: memoryContext,
	}

	// A missing router decision for planning is fatal only when an image needs
	// a vision-capable provider; otherwise ExecuteCore runs without a client
	// and falls back to the default manifest.
	hasImage := len(req.Image) > 0
	coreClient, err := o.selectClient(llm.TaskReasoning, hasImage)
	if err != nil && hasImage {
		return err
	}

	core := agents.ExecuteCore(ctx, coreClient, ac)
	ac.Manifest = core.Manifest
	ac.Messages = append(ac.Messages, core.Message)

	for _, role := range specialistOrder {
		if err := ctx.Err(); err != nil {
			return err // cancelled: no commit, VFS stays at prior state
		}
		if !roleRequested(core.Manifest, role) {
			continue
		}
		// Debug/Quality without issues have nothing to act on up front;
		// they participate through the repair loop below.
		if role == manifest.RoleDebug || role == manifest.RoleQuality {
			continue
		}
		o.runSpecialist(ctx, role, ac, hasImage)
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	report := o.repairLoop(ctx, ac)

	// Merge and commit under the project's advisory lock.
	project.mu.Lock()
	for path, content := range ac.Files {
		project.vfs.WriteFile(path, content)
	}
	message := fmt.Sprintf("Initial generation: %s", req.ProjectName)
	if report != nil && !report.Passed {
		message += fmt.Sprintf(" (with %d unresolved validation issues)", len(report.Errors()))
	}
	commitID, err := project.vfs.Commit(message)
	project.mu.Unlock()
	if err != nil {
		return err
	}

	o.storeMemory(ctx, project.ID, core.Manifest, ac.Files)
	project.setStatus(StatusReady, "")
	logging.Orch("generate %s done: commit %s, %d files", project.ID, commitID, len(ac.Files))
	return nil
}

// runSpecialist executes one specialist agent and folds its artifacts into
// the accumulated context. The agent's declared task binding always wins
// over any router default for the role.
func (o *Orchestrator) runSpecialist(ctx context.Context, role manifest.AgentRole, ac *agents.Context, hasImage bool) {
	agent := agents.SpecialistFor(role)
	if agent == nil {
		return
	}

	needVision := hasImage && agent.Role == agents.RoleUIX
	client, err := o.selectClient(agent.Task, needVision)
	if err != nil {
		logging.Orch("%s: no provider (%v), using role template", role, err)
		client = nil
	}

	msg, execErr := agent.Execute(ctx, client, ac)
	if execErr != nil && len(msg.Artifacts) == 0 {
		logging.Orch("%s: failed with no artifacts: %v", role, execErr)
		return
	}
	for path, content := range msg.Artifacts {
		ac.Files[path] = content
	}
	ac.Messages = append(ac.Messages, msg)
}

// repairLoop validates the accumulated artifacts and feeds Error issues to
// the Quality/Debug agents, bounded by maxRepairAttempts. Exhaustion is
// reported, not fatal.
func (o *Orchestrator) repairLoop(ctx context.Context, ac *agents.Context) *validation.Report {
	if o.pipeline == nil {
		return nil
	}

	report := o.pipeline.Run(ctx, ac.Files)
	for attempt := 1; !report.Passed && attempt <= o.maxRepairAttempts; attempt++ {
		errorIssues := report.Errors()
		if len(errorIssues) == 0 {
			break // test failures only; nothing auto-fixable
		}
		logging.Orch("repair attempt %d/%d: %d errors", attempt, o.maxRepairAttempts, len(errorIssues))

		ac.Issues = errorIssues
		ac.Instruction = validation.RepairDirective(errorIssues)
		o.runSpecialist(ctx, manifest.RoleDebug, ac, false)
		o.runSpecialist(ctx, manifest.RoleQuality, ac, false)

		if ctx.Err() != nil {
			return report
		}
		report = o.pipeline.Run(ctx, ac.Files)
	}

	if !report.Passed {
		logging.Orch("repair exhausted: committing with %d unresolved errors", len(report.Errors()))
	}
	return report
}

// EditRequest is the input of the edit pipeline.
type EditRequest struct {
	ProjectID   string
	Files       map[string]string // optional; loaded from the VFS when nil
	Instruction string
	Image       []byte
	ImageMIME   string
}

// Edit applies a natural-language change: the Edit agent proposes new
// contents, the AST patcher reduces them to minimal structure-preserving
// diffs, and the result is committed. Returns the changed files.
func (o *Orchestrator) Edit(ctx context.Context, req EditRequest) (map[string]string, error) {
	project, err := o.registry.Get(req.ProjectID)
	if err != nil {
		return nil, err
	}

	files := req.Files
	if files == nil {
		files = project.VFS().Files()
	}

	memoryContext := ""
	if o.memory != nil {
		if mc, err := o.memory.ContextForGeneration(ctx, project.ID, req.Instruction, o.cfg.Memory.ContextBudget); err == nil {
			memoryContext = mc
		}
	}

	ac := &agents.Context{
		ProjectName:   project.Name,
		ProjectID:     project.ID,
		Files:         files,
		Instruction:   req.Instruction,
		Image:         req.Image,
		ImageMIME:     req.ImageMIME,
		MemoryContext: memoryContext,
	}

	client, err := o.selectClient(llm.TaskCode, len(req.Image) > 0)
	if err != nil {
		return nil, err // edit has no template fallback: re-raise
	}

	agent := agents.NewEditAgent()
	msg, execErr := agent.Execute(ctx, client, ac)
	if execErr != nil {
		return nil, execErr
	}
	if len(msg.Artifacts) == 0 {
		return nil, faults.Wrap(faults.ErrSchemaInvalid, "edit agent proposed no changes")
	}

	changed := make(map[string]string, len(msg.Artifacts))
	project.mu.Lock()
	for path, proposed := range msg.Artifacts {
		newContent := proposed
		if old, ok := project.vfs.ReadFile(path); ok && astpatch.Supported(path) {
			patch := astpatch.GeneratePatch(old, proposed, path)
			newContent = astpatch.Apply(old, path, patch)
			logging.OrchDebug("edit %s: applied %s patch", path, patch.Kind)
		}
		project.vfs.WriteFile(path, newContent)
		changed[path] = newContent
	}
	commitID, err := project.vfs.Commit(fmt.Sprintf("Edit: %s", firstLine(req.Instruction)))
	project.mu.Unlock()
	if err != nil {
		return nil, err
	}

	// Re-validation after an edit is non-blocking: log findings, never roll
	// the commit back.
	if o.pipeline != nil {
		go func() {
			vctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
			defer cancel()
			report := o.pipeline.Run(vctx, project.VFS().Files())
			if !report.Passed {
				logging.Orch("post-edit validation found %d errors in %s", len(report.Errors()), project.ID)
			}
		}()
	}

	logging.Orch("edit %s: commit %s, %d files changed", project.ID, commitID, len(changed))
	return changed, nil
}

// selectClient resolves a provider for a task and wraps it so every
// invocation reports latency and outcome back to the router.
func (o *Orchestrator) selectClient(task llm.TaskType, needVision bool) (llm.Client, error) {
	client, err := o.router.Select(task, needVision)
	if err != nil {
		return nil, err
	}
	return &reportingClient{Client: client, router: o.router}, nil
}

// reportingClient decorates a provider with router statistics updates.
type reportingClient struct {
	llm.Client
	router *llm.Router
}

func (c *reportingClient) Complete(ctx context.Context, req llm.CompletionRequest) (string, error) {
	start := time.Now()
	out, err := c.Client.Complete(ctx, req)
	c.router.Report(c.Client.Name(), err == nil, time.Since(start))
	return out, err
}

// storeMemory records generated code and the key planning decisions.
func (o *Orchestrator) storeMemory(ctx context.Context, projectID string, m *manifest.ProjectManifest, files map[string]string) {
	if o.memory == nil {
		return
	}

	for path, content := range files {
		language := languageOf(path)
		if language == "" {
			continue
		}
		if err := o.memory.StoreCode(ctx, projectID, path, content, language); err != nil {
			logging.OrchDebug("memory store code %s: %v", path, err)
		}
	}

	if m != nil {
		decision := fmt.Sprintf("backend=%s frontend=%s styling=%s",
			m.TechStack.Backend, m.TechStack.Frontend, m.TechStack.Styling)
		if err := o.memory.StoreDecision(ctx, projectID, "Tech stack", decision); err != nil {
			logging.OrchDebug("memory store decision: %v", err)
		}
		if m.Analysis != "" {
			_ = o.memory.StoreDecision(ctx, projectID, "Plan analysis", m.Analysis)
		}
	}
}

func roleRequested(m *manifest.ProjectManifest, role manifest.AgentRole) bool {
	for _, r := range m.AgentsNeeded {
		if r == role {
			return true
		}
	}
	return false
}

func languageOf(path string) string {
	switch {
	case strings.HasSuffix(path, ".py"):
		return "python"
	case strings.HasSuffix(path, ".js"), strings.HasSuffix(path, ".jsx"):
		return "javascript"
	case strings.HasSuffix(path, ".ts"), strings.HasSuffix(path, ".tsx"):
		return "typescript"
	default:
		return ""
	}
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	if len(s) > 120 {
		s = s[:120]
	}
	return s
}
