package preview

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

// fakeSource is a controllable CommitSource.
type fakeSource struct {
	mu     sync.Mutex
	commit string
	files  map[string]string
}

func (s *fakeSource) CurrentCommitID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.commit
}

func (s *fakeSource) Files() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.files
}

func (s *fakeSource) advance(commit string, files map[string]string) {
	s.mu.Lock()
	s.commit = commit
	s.files = files
	s.mu.Unlock()
}

func waitForEvent(t *testing.T, ch <-chan Event, kind EventKind, timeout time.Duration) Event {
	t.Helper()
	deadline := time.After(timeout)
	for {
		select {
		case e := <-ch:
			if e.Kind == kind {
				return e
			}
		case <-deadline:
			t.Fatalf("no %s event within %v", kind, timeout)
		}
	}
}

func TestWatcherTriggersExactlyOneRebuildPerCommit(t *testing.T) {
	rt := newFakeRuntime()
	m := newTestManager(t, rt)
	ctx := context.Background()

	src := &fakeSource{commit: "aaaa0000", files: pythonFiles()}
	_, err := m.Create(ctx, "p1", src.Files())
	require.NoError(t, err)
	buildsAfterCreate := rt.builds.Load()

	events := m.Subscribe()
	require.NoError(t, m.Watch("p1", src))

	changed := pythonFiles()
	changed["backend/main.py"] = "app = 2\n"
	src.advance("bbbb1111", changed)

	e := waitForEvent(t, events, EventReload, 5*time.Second)
	assert.Equal(t, "bbbb1111", e.CommitID)
	assert.Equal(t, "p1", e.ProjectID)

	// No further rebuilds without a new commit.
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, buildsAfterCreate+1, rt.builds.Load())
}

func TestWatcherSequentialCommits(t *testing.T) {
	rt := newFakeRuntime()
	m := newTestManager(t, rt)
	ctx := context.Background()

	src := &fakeSource{commit: "c0", files: pythonFiles()}
	_, err := m.Create(ctx, "p1", src.Files())
	require.NoError(t, err)

	events := m.Subscribe()
	require.NoError(t, m.Watch("p1", src))

	src.advance("c1", pythonFiles())
	first := waitForEvent(t, events, EventReload, 5*time.Second)
	assert.Equal(t, "c1", first.CommitID)

	src.advance("c2", pythonFiles())
	second := waitForEvent(t, events, EventReload, 5*time.Second)
	assert.Equal(t, "c2", second.CommitID)
	assert.Greater(t, second.Seq, first.Seq)
}

func TestWatchUnknownProject(t *testing.T) {
	m := newTestManager(t, newFakeRuntime())
	err := m.Watch("ghost", &fakeSource{})
	assert.Error(t, err)
}

func TestWatchIdempotent(t *testing.T) {
	m := newTestManager(t, newFakeRuntime())
	src := &fakeSource{commit: "c0", files: pythonFiles()}
	_, err := m.Create(context.Background(), "p1", src.Files())
	require.NoError(t, err)

	require.NoError(t, m.Watch("p1", src))
	require.NoError(t, m.Watch("p1", src))
}

func TestWatcherStopsWithPreview(t *testing.T) {
	defer goleak.VerifyNone(t)

	rt := newFakeRuntime()
	m := NewManager(testConfig(t), rt)
	m.healthProbe = func(ctx context.Context, url string, budget time.Duration) error { return nil }

	src := &fakeSource{commit: "c0", files: pythonFiles()}
	_, err := m.Create(context.Background(), "p1", src.Files())
	require.NoError(t, err)
	require.NoError(t, m.Watch("p1", src))

	require.NoError(t, m.Stop(context.Background(), "p1"))
	m.Close()
}

func TestEventBusDropsWhenFull(t *testing.T) {
	bus := NewEventBus()
	defer bus.Close()

	ch := bus.Subscribe()
	for i := 0; i < 200; i++ {
		bus.Publish(Event{Kind: EventReload, ProjectID: "p"})
	}
	// Channel buffer is 64; the rest were dropped, none blocked.
	assert.Equal(t, 64, len(ch))
}

func TestEventBusUnsubscribe(t *testing.T) {
	bus := NewEventBus()
	defer bus.Close()

	ch := bus.Subscribe()
	bus.Unsubscribe(ch)

	// Closed after unsubscribe.
	_, open := <-ch
	assert.False(t, open)
}
