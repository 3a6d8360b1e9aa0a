package orchestrator

import (
	"os"
	"path/filepath"
	"sync"
	"time"

	"appforge/internal/faults"
	"appforge/internal/logging"
	"appforge/internal/vfs"
)

// ProjectStatus is the externally visible generation state.
type ProjectStatus string

const (
	StatusPending    ProjectStatus = "pending"
	StatusGenerating ProjectStatus = "generating"
	StatusReady      ProjectStatus = "ready"
	StatusFailed     ProjectStatus = "failed"
)

// Project is one registered project: its VFS, status and the advisory lock
// serializing write-then-commit sequences.
type Project struct {
	ID        string
	Name      string
	Spec      string
	CreatedAt time.Time

	mu     sync.Mutex // advisory lock: one writer per project
	status ProjectStatus
	err    string
	vfs    *vfs.VFS
}

// VFS returns the project's file system.
func (p *Project) VFS() *vfs.VFS { return p.vfs }

// Status returns the current status and, when failed, the error text.
func (p *Project) Status() (ProjectStatus, string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status, p.err
}

func (p *Project) setStatus(status ProjectStatus, errText string) {
	p.mu.Lock()
	p.status = status
	p.err = errText
	p.mu.Unlock()
}

// Registry is the supervised project registry: explicit create, lookup,
// close and delete; no module-level state beyond the registry handle held
// by its owner.
type Registry struct {
	mu       sync.RWMutex
	projects map[string]*Project

	// snapshotDir holds optional VFS persistence; empty disables it.
	snapshotDir string
}

// NewRegistry creates a registry. When snapshotDir is non-empty, project
// VFS state is saved there on Close and restored on Create for known ids.
func NewRegistry(snapshotDir string) *Registry {
	return &Registry{
		projects:    make(map[string]*Project),
		snapshotDir: snapshotDir,
	}
}

// Create registers a project, restoring a saved VFS snapshot when present.
func (r *Registry) Create(id, name, spec string) *Project {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.projects[id]; ok {
		return existing
	}

	p := &Project{
		ID:        id,
		Name:      name,
		Spec:      spec,
		CreatedAt: time.Now(),
		status:    StatusPending,
		vfs:       vfs.New(id),
	}

	if r.snapshotDir != "" {
		path := filepath.Join(r.snapshotDir, id+".json")
		if restored, err := vfs.LoadSnapshot(path); err == nil {
			p.vfs = restored
			p.status = StatusReady
			logging.Orch("restored VFS snapshot for %s", id)
		}
	}

	r.projects[id] = p
	return p
}

// Get looks up a project.
func (r *Registry) Get(id string) (*Project, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.projects[id]
	if !ok {
		return nil, faults.Wrap(faults.ErrProjectNotFound, "project %s", id)
	}
	return p, nil
}

// List returns all registered projects.
func (r *Registry) List() []*Project {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Project, 0, len(r.projects))
	for _, p := range r.projects {
		out = append(out, p)
	}
	return out
}

// Delete removes a project and its snapshot file.
func (r *Registry) Delete(id string) {
	r.mu.Lock()
	delete(r.projects, id)
	r.mu.Unlock()

	if r.snapshotDir != "" {
		_ = os.Remove(filepath.Join(r.snapshotDir, id+".json"))
	}
}

// Close persists every project's VFS when snapshots are enabled.
func (r *Registry) Close() {
	if r.snapshotDir == "" {
		return
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	for id, p := range r.projects {
		path := filepath.Join(r.snapshotDir, id+".json")
		if err := p.vfs.SaveSnapshot(path); err != nil {
			logging.Orch("snapshot save failed for %s: %v", id, err)
		}
	}
}
