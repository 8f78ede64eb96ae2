// Package logging provides categorized zap loggers for screenpilot.
// Each subsystem gets a named child of one shared base logger; until
// Init is called every category logs to a no-op logger, so library code
// never has to nil-check.
package logging

import (
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Category identifies a subsystem for log routing.
type Category string

const (
	CategoryVision  Category = "vision"  // OCR line reconstruction
	CategoryFusion  Category = "fusion"  // Treasure map fusion
	CategoryResolve Category = "resolve" // Symbolic target resolution
	CategoryCodex   Category = "codex"   // Reliability checks and conversion
	CategoryReplay  Category = "replay"  // Execution guard and replay loop
	CategoryStore   Category = "store"   // SQLite persistence
	CategoryWatch   Category = "watch"   // Session ingest watcher
)

var (
	mu      sync.RWMutex
	base    = zap.NewNop()
	loggers = make(map[Category]*zap.Logger)
)

// Init installs the shared base logger. verbose lowers the level to debug.
func Init(verbose bool) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if verbose {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	l, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	SetBase(l)
	return l, nil
}

// SetBase replaces the base logger. Mainly used by tests to inject
// an observed core.
func SetBase(l *zap.Logger) {
	mu.Lock()
	defer mu.Unlock()
	base = l
	loggers = make(map[Category]*zap.Logger)
}

// Get returns the logger for a category, creating it on first use.
func Get(c Category) *zap.Logger {
	mu.RLock()
	if l, ok := loggers[c]; ok {
		mu.RUnlock()
		return l
	}
	mu.RUnlock()

	mu.Lock()
	defer mu.Unlock()
	if l, ok := loggers[c]; ok {
		return l
	}
	l := base.Named(string(c))
	loggers[c] = l
	return l
}

// Sync flushes the base logger. Safe to call with the no-op logger.
func Sync() {
	mu.RLock()
	defer mu.RUnlock()
	_ = base.Sync()
}
