package preview

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"appforge/internal/logging"

	"github.com/fsnotify/fsnotify"
)

// WorkdirSync watches an exported working directory for out-of-band edits
// (a user touching the preview tree directly) and reports changed files
// through a callback, debounced so editor write bursts arrive as one
// notification.
type WorkdirSync struct {
	dir      string
	onChange func(changed []string)

	watcher *fsnotify.Watcher
	stop    chan struct{}
	done    chan struct{}
}

// NewWorkdirSync creates a sync watcher over dir. Callbacks receive paths
// relative to dir with forward slashes.
func NewWorkdirSync(dir string, onChange func(changed []string)) (*WorkdirSync, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	s := &WorkdirSync{
		dir:      dir,
		onChange: onChange,
		watcher:  watcher,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}

	if err := s.addRecursive(dir); err != nil {
		watcher.Close()
		return nil, err
	}

	go s.loop()
	return s, nil
}

func (s *WorkdirSync) addRecursive(root string) error {
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			if info.Name() == "node_modules" || strings.HasPrefix(info.Name(), ".") && path != root {
				return filepath.SkipDir
			}
			return s.watcher.Add(path)
		}
		return nil
	})
}

func (s *WorkdirSync) loop() {
	defer close(s.done)

	const debounce = 300 * time.Millisecond
	pending := map[string]bool{}
	var timer *time.Timer
	var timerC <-chan time.Time

	flush := func() {
		if len(pending) == 0 {
			return
		}
		changed := make([]string, 0, len(pending))
		for p := range pending {
			changed = append(changed, p)
		}
		pending = map[string]bool{}
		logging.WatcherDebug("workdir sync: %d files changed under %s", len(changed), s.dir)
		s.onChange(changed)
	}

	for {
		select {
		case <-s.stop:
			s.watcher.Close()
			return
		case event, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
				if event.Op&fsnotify.Create != 0 {
					_ = s.watcher.Add(event.Name)
				}
				continue
			}
			rel, err := filepath.Rel(s.dir, event.Name)
			if err != nil {
				continue
			}
			if filepath.Base(rel) == "Dockerfile" {
				continue // our own synthesis artifact
			}
			pending[filepath.ToSlash(rel)] = true

			if timer == nil {
				timer = time.NewTimer(debounce)
			} else {
				timer.Reset(debounce)
			}
			timerC = timer.C
		case <-timerC:
			timerC = nil
			flush()
		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			logging.WatcherDebug("workdir sync error: %v", err)
		}
	}
}

// Close stops the watcher and waits for the loop to exit.
func (s *WorkdirSync) Close() {
	close(s.stop)
	<-s.done
}
