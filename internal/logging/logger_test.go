package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDisabledIsNoop(t *testing.T) {
	ws := t.TempDir()
	if err := Initialize(ws, Settings{DebugMode: false}); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	Get(CategoryVFS).Info("should not appear")
	if _, err := os.Stat(filepath.Join(ws, ".appforge", "logs")); !os.IsNotExist(err) {
		t.Fatalf("logs directory should not exist in production mode")
	}
}

func TestCategoryFileCreated(t *testing.T) {
	ws := t.TempDir()
	if err := Initialize(ws, Settings{DebugMode: true, Level: "debug"}); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	defer Shutdown()

	Get(CategoryVFS).Info("commit %s recorded", "abcd1234")
	Shutdown()

	data, err := os.ReadFile(filepath.Join(ws, ".appforge", "logs", "vfs.log"))
	if err != nil {
		t.Fatalf("read vfs.log: %v", err)
	}
	if !strings.Contains(string(data), "commit abcd1234 recorded") {
		t.Fatalf("vfs.log missing entry, got: %s", data)
	}
}

func TestCategoryFilter(t *testing.T) {
	ws := t.TempDir()
	err := Initialize(ws, Settings{
		DebugMode:  true,
		Level:      "debug",
		Categories: map[string]bool{"router": false},
	})
	if err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	defer Shutdown()

	Router("selection happened")
	if _, err := os.Stat(filepath.Join(ws, ".appforge", "logs", "router.log")); !os.IsNotExist(err) {
		t.Fatalf("router.log should not exist when category disabled")
	}
}

func TestTimerDoesNotPanicWhenDisabled(t *testing.T) {
	if err := Initialize(t.TempDir(), Settings{}); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	timer := StartTimer(CategoryMemory, "op")
	timer.Stop()
	timer.Stop()
}
