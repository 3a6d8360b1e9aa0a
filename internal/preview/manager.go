package preview

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"appforge/internal/config"
	"appforge/internal/faults"
	"appforge/internal/logging"

	"github.com/google/uuid"
)

// Status is a preview environment's lifecycle state.
type Status string

const (
	StatusCreating Status = "creating"
	StatusRunning  Status = "running"
	StatusStopped  Status = "stopped"
	StatusError    Status = "error"
)

// Environment is one live preview. Exclusively owned by the Manager.
type Environment struct {
	ProjectID    string      `json:"project_id"`
	PreviewID    string      `json:"preview_id"`
	Type         ProjectType `json:"type"`
	Status       Status      `json:"status"`
	Port         int         `json:"port"`
	URL          string      `json:"url"`
	ContainerID  string      `json:"container_id,omitempty"`
	ImageTag     string      `json:"image_tag,omitempty"`
	CreatedAt    time.Time   `json:"created_at"`
	LastAccessed time.Time   `json:"last_accessed"`
	Error        string      `json:"error,omitempty"`

	workDir string
	logs    *logRing
}

// Info is the externally visible snapshot of an environment.
type Info struct {
	ProjectID    string      `json:"project_id"`
	PreviewID    string      `json:"preview_id"`
	Type         ProjectType `json:"type"`
	Status       Status      `json:"status"`
	URL          string      `json:"url"`
	Port         int         `json:"port"`
	CreatedAt    time.Time   `json:"created_at"`
	LastAccessed time.Time   `json:"last_accessed"`
	Error        string      `json:"error,omitempty"`
}

// Manager owns all preview environments, the port pool, the reaper and the
// commit watchers.
type Manager struct {
	cfg     config.PreviewConfig
	runtime ContainerRuntime
	bus     *EventBus

	mu       sync.Mutex
	envs     map[string]*Environment // keyed by project id
	ports    map[int]bool
	watchers map[string]chan struct{}

	// healthProbe is swappable for tests; defaults to an HTTP GET poll.
	healthProbe func(ctx context.Context, url string, budget time.Duration) error

	stopReaper chan struct{}
	reaperDone chan struct{}
	wg         sync.WaitGroup
}

// NewManager creates the preview manager and starts its reaper loop.
func NewManager(cfg config.PreviewConfig, runtime ContainerRuntime) *Manager {
	m := &Manager{
		cfg:         cfg,
		runtime:     runtime,
		bus:         NewEventBus(),
		envs:        make(map[string]*Environment),
		ports:       make(map[int]bool),
		watchers:    make(map[string]chan struct{}),
		healthProbe: httpHealthProbe,
		stopReaper:  make(chan struct{}),
		reaperDone:  make(chan struct{}),
	}
	go m.reaperLoop()
	return m
}

// Available reports whether the container runtime is usable. When false,
// Create fails with ErrPreviewBuildFailed, so no preview can exist.
func (m *Manager) Available() bool { return m.runtime.Available() }

// SetHealthProbe replaces the readiness probe. Used with fake runtimes that
// have no real port to poll.
func (m *Manager) SetHealthProbe(probe func(ctx context.Context, url string, budget time.Duration) error) {
	m.healthProbe = probe
}

// Subscribe returns a channel of preview lifecycle events.
func (m *Manager) Subscribe() <-chan Event { return m.bus.Subscribe() }

// Unsubscribe releases an event subscription.
func (m *Manager) Unsubscribe(ch <-chan Event) { m.bus.Unsubscribe(ch) }

// Create builds and starts a preview for the project's files. An existing
// preview for the project is replaced.
func (m *Manager) Create(ctx context.Context, projectID string, files map[string]string) (*Info, error) {
	if !m.runtime.Available() {
		return nil, faults.Wrap(faults.ErrPreviewBuildFailed, "container runtime unavailable")
	}

	projectType := Detect(files)
	if projectType == TypeUnknown {
		return nil, faults.Wrap(faults.ErrPreviewBuildFailed, "no recognizable project signature")
	}

	m.mu.Lock()
	if _, ok := m.envs[projectID]; ok {
		m.mu.Unlock()
		if err := m.Stop(ctx, projectID); err != nil {
			logging.PreviewError("replacing preview for %s: stop failed: %v", projectID, err)
		}
		m.mu.Lock()
	}

	active := 0
	for _, env := range m.envs {
		if env.Status == StatusRunning || env.Status == StatusCreating {
			active++
		}
	}
	if m.cfg.MaxActive > 0 && active >= m.cfg.MaxActive {
		m.mu.Unlock()
		return nil, faults.Wrap(faults.ErrResourceExhausted, "active preview ceiling reached (%d)", m.cfg.MaxActive)
	}

	port, err := m.allocPortLocked()
	if err != nil {
		m.mu.Unlock()
		return nil, err
	}

	env := &Environment{
		ProjectID:    projectID,
		PreviewID:    newPreviewID(),
		Type:         projectType,
		Status:       StatusCreating,
		Port:         port,
		URL:          fmt.Sprintf("http://localhost:%d", port),
		CreatedAt:    time.Now(),
		LastAccessed: time.Now(),
		workDir:      filepath.Join(m.cfg.WorkDir, projectID),
		logs:         newLogRing(200),
	}
	m.envs[projectID] = env
	m.mu.Unlock()

	logging.Preview("creating %s preview %s for %s on port %d",
		projectType, env.PreviewID, projectID, port)

	if err := m.buildAndStart(ctx, env, files); err != nil {
		m.setError(env, err)
		return nil, err
	}

	m.mu.Lock()
	env.Status = StatusRunning
	info := env.info()
	m.mu.Unlock()

	logging.Preview("preview %s running at %s", env.PreviewID, env.URL)
	return &info, nil
}

// buildAndStart materialises the tree, synthesises the container
// definition, builds, runs and health-probes it.
func (m *Manager) buildAndStart(ctx context.Context, env *Environment, files map[string]string) error {
	buildBudget := config.Duration(m.cfg.BuildTimeout, 120*time.Second)
	buildCtx, cancel := context.WithTimeout(ctx, buildBudget)
	defer cancel()

	if err := os.RemoveAll(env.workDir); err != nil {
		return faults.Wrap(faults.ErrPreviewBuildFailed, "clean workdir: %v", err)
	}
	for path, content := range files {
		full := filepath.Join(env.workDir, filepath.FromSlash(path))
		if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
			return faults.Wrap(faults.ErrPreviewBuildFailed, "workdir: %v", err)
		}
		if err := os.WriteFile(full, []byte(content), 0o644); err != nil {
			return faults.Wrap(faults.ErrPreviewBuildFailed, "workdir: %v", err)
		}
	}

	spec, err := Synthesize(env.Type, files, m.cfg.ServiceMemory, m.cfg.StaticMemory, m.cfg.ServiceCPUs)
	if err != nil {
		return faults.WrapErr(faults.ErrPreviewBuildFailed, err)
	}
	if err := os.WriteFile(filepath.Join(env.workDir, "Dockerfile"), []byte(spec.Dockerfile), 0o644); err != nil {
		return faults.Wrap(faults.ErrPreviewBuildFailed, "write dockerfile: %v", err)
	}

	if err := m.runtime.EnsureNetwork(buildCtx, m.cfg.NetworkName); err != nil {
		return faults.Wrap(faults.ErrPreviewBuildFailed, "network: %v", err)
	}

	tag := fmt.Sprintf("appforge-preview-%s:%s", env.ProjectID, env.PreviewID)
	buildOut, err := m.runtime.BuildImage(buildCtx, env.workDir, tag)
	env.logs.append(buildOut)
	if err != nil {
		return faults.Wrap(faults.ErrPreviewBuildFailed, "image build: %v", err)
	}
	env.ImageTag = tag

	containerID, err := m.runtime.RunContainer(buildCtx, RunSpec{
		Image:         tag,
		Name:          fmt.Sprintf("appforge-%s-%s", env.ProjectID, env.PreviewID),
		HostPort:      env.Port,
		ContainerPort: spec.ContainerPort,
		Network:       m.cfg.NetworkName,
		Memory:        spec.Memory,
		CPUs:          spec.CPUs,
	})
	if err != nil {
		return faults.Wrap(faults.ErrPreviewBuildFailed, "container start: %v", err)
	}
	env.ContainerID = containerID

	if err := m.healthProbe(buildCtx, env.URL, buildBudget); err != nil {
		_ = m.runtime.RemoveContainer(context.Background(), containerID)
		return faults.Wrap(faults.ErrPreviewBuildFailed, "health probe: %v", err)
	}
	return nil
}

// Update rebuilds a project's preview with new files, keeping the port and
// preview id. The old container is removed first so the replacement can
// bind the same host port: no container serves the preview while the
// rebuild runs, and none after a failed rebuild, which leaves the
// environment in the error state.
func (m *Manager) Update(ctx context.Context, projectID string, files map[string]string) error {
	m.mu.Lock()
	env, ok := m.envs[projectID]
	if !ok {
		m.mu.Unlock()
		return faults.Wrap(faults.ErrProjectNotFound, "no preview for project %s", projectID)
	}
	oldContainer := env.ContainerID
	oldImage := env.ImageTag
	env.LastAccessed = time.Now()
	m.mu.Unlock()

	// The old container must release the host port before the replacement
	// binds it.
	if oldContainer != "" {
		if err := m.runtime.RemoveContainer(ctx, oldContainer); err != nil {
			logging.PreviewError("remove old container for %s: %v", projectID, err)
		}
	}

	if err := m.buildAndStart(ctx, env, files); err != nil {
		m.setError(env, err)
		m.bus.Publish(Event{
			Kind: EventError, ProjectID: projectID, PreviewID: env.PreviewID,
			Message: err.Error(),
		})
		return err
	}
	if oldImage != "" && oldImage != env.ImageTag {
		_ = m.runtime.RemoveImage(context.Background(), oldImage)
	}

	m.mu.Lock()
	env.Status = StatusRunning
	env.LastAccessed = time.Now()
	m.mu.Unlock()

	logging.Preview("preview %s rebuilt for %s", env.PreviewID, projectID)
	return nil
}

// Stop tears down a project's preview. Idempotent: stopping a project with
// no preview is a no-op.
func (m *Manager) Stop(ctx context.Context, projectID string) error {
	m.mu.Lock()
	env, ok := m.envs[projectID]
	if !ok {
		m.mu.Unlock()
		return nil
	}
	delete(m.envs, projectID)
	if stop, watching := m.watchers[projectID]; watching {
		close(stop)
		delete(m.watchers, projectID)
	}
	m.releasePortLocked(env.Port)
	m.mu.Unlock()

	if env.ContainerID != "" {
		if err := m.runtime.RemoveContainer(ctx, env.ContainerID); err != nil {
			logging.PreviewError("remove container %s: %v", env.ContainerID, err)
		}
	}
	if env.ImageTag != "" {
		_ = m.runtime.RemoveImage(ctx, env.ImageTag)
	}
	if env.workDir != "" {
		_ = os.RemoveAll(env.workDir)
	}

	env.Status = StatusStopped
	m.bus.Publish(Event{Kind: EventStopped, ProjectID: projectID, PreviewID: env.PreviewID})
	logging.Preview("preview %s stopped", env.PreviewID)
	return nil
}

// StatusOf returns the environment snapshot for a project and touches its
// last-accessed time.
func (m *Manager) StatusOf(projectID string) (Info, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	env, ok := m.envs[projectID]
	if !ok {
		return Info{}, false
	}
	env.LastAccessed = time.Now()
	return env.info(), true
}

// LogsOf returns the most recent log lines for a project's preview,
// refreshed from the container when possible.
func (m *Manager) LogsOf(ctx context.Context, projectID string, n int) ([]string, error) {
	m.mu.Lock()
	env, ok := m.envs[projectID]
	if !ok {
		m.mu.Unlock()
		return nil, faults.Wrap(faults.ErrProjectNotFound, "no preview for project %s", projectID)
	}
	containerID := env.ContainerID
	env.LastAccessed = time.Now()
	m.mu.Unlock()

	if containerID != "" {
		if out, err := m.runtime.Logs(ctx, containerID, n); err == nil {
			env.logs.append(out)
		}
	}
	return env.logs.tail(n), nil
}

// Close stops the reaper, all watchers and all previews.
func (m *Manager) Close() {
	close(m.stopReaper)
	<-m.reaperDone

	m.mu.Lock()
	ids := make([]string, 0, len(m.envs))
	for id := range m.envs {
		ids = append(ids, id)
	}
	m.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	for _, id := range ids {
		_ = m.Stop(ctx, id)
	}
	m.wg.Wait()
	m.bus.Close()
}

func (m *Manager) setError(env *Environment, err error) {
	m.mu.Lock()
	env.Status = StatusError
	env.Error = err.Error()
	m.mu.Unlock()
	logging.PreviewError("preview %s: %v", env.PreviewID, err)
}

func (env *Environment) info() Info {
	return Info{
		ProjectID:    env.ProjectID,
		PreviewID:    env.PreviewID,
		Type:         env.Type,
		Status:       env.Status,
		URL:          env.URL,
		Port:         env.Port,
		CreatedAt:    env.CreatedAt,
		LastAccessed: env.LastAccessed,
		Error:        env.Error,
	}
}

// allocPortLocked finds a free port in the configured range. Caller holds
// m.mu, which doubles as the process-wide port allocation lock.
func (m *Manager) allocPortLocked() (int, error) {
	for port := m.cfg.PortRangeStart; port <= m.cfg.PortRangeEnd; port++ {
		if !m.ports[port] {
			m.ports[port] = true
			return port, nil
		}
	}
	return 0, faults.Wrap(faults.ErrResourceExhausted,
		"no free preview ports in %d-%d", m.cfg.PortRangeStart, m.cfg.PortRangeEnd)
}

func (m *Manager) releasePortLocked(port int) {
	delete(m.ports, port)
}

// reaperLoop removes environments past the hard age or idle limits.
func (m *Manager) reaperLoop() {
	defer close(m.reaperDone)

	maxAge := config.Duration(m.cfg.ExpiryAge, time.Hour)
	maxIdle := config.Duration(m.cfg.IdleTimeout, 30*time.Minute)

	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-m.stopReaper:
			return
		case <-ticker.C:
			m.reapOnce(maxAge, maxIdle)
		}
	}
}

func (m *Manager) reapOnce(maxAge, maxIdle time.Duration) {
	now := time.Now()

	m.mu.Lock()
	var expired []string
	for id, env := range m.envs {
		if now.Sub(env.CreatedAt) > maxAge || now.Sub(env.LastAccessed) > maxIdle {
			expired = append(expired, id)
		}
	}
	m.mu.Unlock()

	for _, id := range expired {
		logging.Preview("reaping expired preview for %s", id)
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		_ = m.Stop(ctx, id)
		cancel()
	}
}

func newPreviewID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}

// httpHealthProbe polls the URL until it answers or the budget elapses.
func httpHealthProbe(ctx context.Context, url string, budget time.Duration) error {
	client := &http.Client{Timeout: 2 * time.Second}
	deadline := time.Now().Add(budget)

	for time.Now().Before(deadline) {
		if err := ctx.Err(); err != nil {
			return err
		}
		resp, err := client.Get(url)
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode < 500 {
				return nil
			}
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(500 * time.Millisecond):
		}
	}
	return fmt.Errorf("no healthy response within %v", budget)
}

// logRing is a fixed-size ring buffer of log lines.
type logRing struct {
	mu    sync.Mutex
	lines []string
	max   int
}

func newLogRing(max int) *logRing {
	return &logRing{max: max}
}

func (r *logRing) append(chunk string) {
	if chunk == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, line := range strings.Split(strings.TrimRight(chunk, "\n"), "\n") {
		r.lines = append(r.lines, line)
	}
	if len(r.lines) > r.max {
		r.lines = r.lines[len(r.lines)-r.max:]
	}
}

func (r *logRing) tail(n int) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if n <= 0 || n > len(r.lines) {
		n = len(r.lines)
	}
	out := make([]string, n)
	copy(out, r.lines[len(r.lines)-n:])
	return out
}
