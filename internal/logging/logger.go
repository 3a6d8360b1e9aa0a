// Package logging provides categorized, debug-gated file logging for
// appforge, built on zap. Logs are written to .appforge/logs/ with one file
// per category. When debug mode is off nothing is written.
package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Category identifies a log stream / subsystem.
type Category string

const (
	CategoryBoot         Category = "boot"         // startup and wiring
	CategoryRouter       Category = "router"       // provider selection decisions
	CategoryLLM          Category = "llm"          // provider API calls
	CategoryAgents       Category = "agents"       // agent execution and artifacts
	CategoryOrchestrator Category = "orchestrator" // pipeline sequencing
	CategoryVFS          Category = "vfs"          // tree mutations and commits
	CategoryPatch        Category = "patch"        // AST patch generation/apply
	CategoryValidation   Category = "validation"   // validator runs and repair loop
	CategoryPreview      Category = "preview"      // container lifecycle
	CategoryWatcher      Category = "watcher"      // commit polling and reloads
	CategoryMemory       Category = "memory"       // vector store operations
	CategoryEmbedding    Category = "embedding"    // embedding engine calls
)

// Settings controls logger construction. Mirrors config.LoggingConfig so the
// config package does not need to be imported here.
type Settings struct {
	DebugMode  bool
	Level      string
	Categories map[string]bool
}

// Logger is a category-bound sugared zap logger. The zero value is a no-op.
type Logger struct {
	sugar *zap.SugaredLogger
}

var (
	mu       sync.RWMutex
	loggers  = make(map[Category]*Logger)
	settings Settings
	logsDir  string
	nop      = &Logger{}
)

// Initialize sets up the logging directory for the workspace. A no-op when
// debug mode is disabled.
func Initialize(workspace string, s Settings) error {
	mu.Lock()
	defer mu.Unlock()

	settings = s
	for c, l := range loggers {
		if l.sugar != nil {
			_ = l.sugar.Sync()
		}
		delete(loggers, c)
	}

	if !s.DebugMode {
		logsDir = ""
		return nil
	}

	logsDir = filepath.Join(workspace, ".appforge", "logs")
	if err := os.MkdirAll(logsDir, 0o755); err != nil {
		return fmt.Errorf("failed to create logs directory: %w", err)
	}

	boot := getLocked(CategoryBoot)
	boot.Info("=== appforge logging initialized ===")
	boot.Info("workspace: %s", workspace)
	boot.Info("level: %s", s.Level)
	return nil
}

// IsDebugMode reports whether debug logging is enabled.
func IsDebugMode() bool {
	mu.RLock()
	defer mu.RUnlock()
	return settings.DebugMode
}

func categoryEnabled(c Category) bool {
	if !settings.DebugMode || logsDir == "" {
		return false
	}
	if settings.Categories == nil {
		return true
	}
	enabled, ok := settings.Categories[string(c)]
	if !ok {
		return true
	}
	return enabled
}

func zapLevel(s string) zapcore.Level {
	switch s {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// Get returns (or creates) the logger for a category. Returns a no-op logger
// when debug mode or the category is disabled.
func Get(c Category) *Logger {
	mu.RLock()
	if l, ok := loggers[c]; ok {
		mu.RUnlock()
		return l
	}
	mu.RUnlock()

	mu.Lock()
	defer mu.Unlock()
	return getLocked(c)
}

func getLocked(c Category) *Logger {
	if l, ok := loggers[c]; ok {
		return l
	}
	if !categoryEnabled(c) {
		loggers[c] = nop
		return nop
	}

	path := filepath.Join(logsDir, string(c)+".log")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		fmt.Fprintf(os.Stderr, "[logging] cannot open %s: %v\n", path, err)
		loggers[c] = nop
		return nop
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encCfg),
		zapcore.Lock(zapcore.AddSync(f)),
		zapLevel(settings.Level),
	)

	l := &Logger{sugar: zap.New(core).Sugar().Named(string(c))}
	loggers[c] = l
	return l
}

// Debug logs at debug level with printf formatting.
func (l *Logger) Debug(format string, args ...interface{}) {
	if l == nil || l.sugar == nil {
		return
	}
	l.sugar.Debugf(format, args...)
}

// Info logs at info level with printf formatting.
func (l *Logger) Info(format string, args ...interface{}) {
	if l == nil || l.sugar == nil {
		return
	}
	l.sugar.Infof(format, args...)
}

// Warn logs at warn level with printf formatting.
func (l *Logger) Warn(format string, args ...interface{}) {
	if l == nil || l.sugar == nil {
		return
	}
	l.sugar.Warnf(format, args...)
}

// Error logs at error level with printf formatting.
func (l *Logger) Error(format string, args ...interface{}) {
	if l == nil || l.sugar == nil {
		return
	}
	l.sugar.Errorf(format, args...)
}

// Timer measures an operation's duration and logs it on Stop.
type Timer struct {
	category Category
	op       string
	start    time.Time
	stopped  bool
}

// StartTimer begins timing an operation in a category.
func StartTimer(c Category, op string) *Timer {
	return &Timer{category: c, op: op, start: time.Now()}
}

// Stop logs the elapsed time at debug level. Safe to call more than once.
func (t *Timer) Stop() {
	if t == nil || t.stopped {
		return
	}
	t.stopped = true
	Get(t.category).Debug("%s completed in %v", t.op, time.Since(t.start))
}

// Shutdown flushes all open category loggers.
func Shutdown() {
	mu.Lock()
	defer mu.Unlock()
	for _, l := range loggers {
		if l.sugar != nil {
			_ = l.sugar.Sync()
		}
	}
}
