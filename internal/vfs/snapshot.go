package vfs

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"appforge/internal/logging"
)

// persistedState is the JSON shape of a saved VFS. Commit ids are stored
// verbatim so they stay stable across restore.
type persistedState struct {
	ProjectID     string               `json:"project_id"`
	Tree          map[string]*FileNode `json:"tree"`
	Commits       []*Commit            `json:"commits"`
	CurrentCommit string               `json:"current_commit"`
	CurrentBranch string               `json:"current_branch"`
	Branches      map[string]string    `json:"branches"`
}

// SaveSnapshot writes the full VFS state (tree, history, branches) as JSON.
func (v *VFS) SaveSnapshot(path string) error {
	v.mu.RLock()
	state := persistedState{
		ProjectID:     v.projectID,
		Tree:          v.tree,
		Commits:       v.commits,
		CurrentCommit: v.currentCommit,
		CurrentBranch: v.currentBranch,
		Branches:      v.branches,
	}
	data, err := json.MarshalIndent(&state, "", "  ")
	v.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("marshal vfs state: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create snapshot dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	logging.VFS("saved snapshot for %s (%d commits)", v.projectID, len(state.Commits))
	return nil
}

// LoadSnapshot restores a VFS previously saved with SaveSnapshot.
func LoadSnapshot(path string) (*VFS, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}

	var state persistedState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("parse snapshot: %w", err)
	}

	v := New(state.ProjectID)
	v.tree = state.Tree
	if v.tree == nil {
		v.tree = make(map[string]*FileNode)
	}
	v.commits = state.Commits
	v.currentCommit = state.CurrentCommit
	if state.CurrentBranch != "" {
		v.currentBranch = state.CurrentBranch
	}
	if state.Branches != nil {
		v.branches = state.Branches
	}
	logging.VFS("restored snapshot for %s (%d commits)", v.projectID, len(v.commits))
	return v, nil
}
