package preview

import (
	"context"
	"time"

	"appforge/internal/config"
	"appforge/internal/faults"
	"appforge/internal/logging"
)

// CommitSource is what a watcher polls. The VFS satisfies it; the watcher
// deliberately holds no reference to the preview environment itself and
// asks the manager to act on the project id.
type CommitSource interface {
	CurrentCommitID() string
	Files() map[string]string
}

// Watch starts the commit watcher for a project with a live preview: a
// cooperative loop that polls the source at the configured interval and
// triggers exactly one rebuild per newly observed commit id. The watcher
// stops when the preview stops or the manager closes.
func (m *Manager) Watch(projectID string, source CommitSource) error {
	m.mu.Lock()
	if _, ok := m.envs[projectID]; !ok {
		m.mu.Unlock()
		return faults.Wrap(faults.ErrProjectNotFound, "no preview for project %s", projectID)
	}
	if _, running := m.watchers[projectID]; running {
		m.mu.Unlock()
		return nil
	}
	stop := make(chan struct{})
	m.watchers[projectID] = stop
	m.mu.Unlock()

	interval := config.Duration(m.cfg.PollInterval, 2*time.Second)
	lastSeen := source.CurrentCommitID()

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		logging.Watcher("watching %s (interval %v, at commit %s)", projectID, interval, lastSeen)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-stop:
				logging.Watcher("watcher for %s stopped", projectID)
				return
			case <-ticker.C:
				current := source.CurrentCommitID()
				if current == "" || current == lastSeen {
					continue
				}
				lastSeen = current
				m.rebuildForCommit(projectID, current, source)
			}
		}
	}()
	return nil
}

// rebuildForCommit performs the one rebuild a new commit earns, emitting a
// reload event on success. Failures are logged, and Update emits an error
// event; Update has already removed the old container by then, so no
// container serves the preview after a failed rebuild.
func (m *Manager) rebuildForCommit(projectID, commitID string, source CommitSource) {
	logging.Watcher("commit %s observed for %s, rebuilding", commitID, projectID)

	ctx, cancel := context.WithTimeout(context.Background(),
		config.Duration(m.cfg.BuildTimeout, 120*time.Second)+30*time.Second)
	defer cancel()

	if err := m.Update(ctx, projectID, source.Files()); err != nil {
		logging.WatcherDebug("rebuild for %s failed: %v", projectID, err)
		return
	}

	m.mu.Lock()
	previewID := ""
	if env, ok := m.envs[projectID]; ok {
		env.LastAccessed = time.Now()
		previewID = env.PreviewID
	}
	m.mu.Unlock()

	m.bus.Publish(Event{
		Kind:      EventReload,
		ProjectID: projectID,
		PreviewID: previewID,
		CommitID:  commitID,
	})
}
