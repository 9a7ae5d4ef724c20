// Package logging provides categorized, config-driven logging for ctxwrap.
// Every category is a named child of one zap logger; categories can be
// switched off individually from the configuration file.
package logging

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Category represents a log category/system
type Category string

const (
	CategoryBoot      Category = "boot"      // Startup, config loading
	CategoryTransform Category = "transform" // Directive parsing and source rewriting
	CategoryOverlay   Category = "overlay"   // Package discovery, overlay writing
	CategoryWatch     Category = "watch"     // File watching and rebuilds
	CategoryCLI       Category = "cli"       // Command dispatch
)

// Config mirrors config.LoggingConfig to avoid an import cycle.
type Config struct {
	Level      string
	Format     string // "console" or "json"
	File       string // empty means stderr
	Categories map[string]bool
}

// Logger is a category logger with a printf-style API.
type Logger struct {
	category Category
	sugar    *zap.SugaredLogger
}

var (
	mu         sync.RWMutex
	base       = zap.NewNop()
	categories map[string]bool
	loggers    = make(map[Category]*Logger)
)

// Initialize builds the root logger from cfg and replaces any previous one.
func Initialize(cfg Config) error {
	level := zapcore.InfoLevel
	if cfg.Level != "" {
		parsed, err := zapcore.ParseLevel(cfg.Level)
		if err != nil {
			return fmt.Errorf("logging: %w", err)
		}
		level = parsed
	}

	zcfg := zap.NewProductionConfig()
	zcfg.Level = zap.NewAtomicLevelAt(level)
	zcfg.Sampling = nil
	zcfg.DisableStacktrace = true
	switch cfg.Format {
	case "", "console":
		zcfg.Encoding = "console"
		zcfg.EncoderConfig = zap.NewDevelopmentEncoderConfig()
	case "json":
		zcfg.Encoding = "json"
	default:
		return fmt.Errorf("logging: unknown format %q", cfg.Format)
	}
	if cfg.File != "" {
		zcfg.OutputPaths = []string{cfg.File}
	} else {
		zcfg.OutputPaths = []string{"stderr"}
	}

	l, err := zcfg.Build()
	if err != nil {
		return fmt.Errorf("logging: build logger: %w", err)
	}
	install(l, cfg.Categories)

	Get(CategoryBoot).Debug("logging initialized: level=%s format=%s", level, zcfg.Encoding)
	return nil
}

// SetBase installs l as the root logger with every category enabled.
// A nil l restores the no-op logger.
func SetBase(l *zap.Logger) {
	if l == nil {
		l = zap.NewNop()
	}
	install(l, nil)
}

func install(l *zap.Logger, cats map[string]bool) {
	mu.Lock()
	defer mu.Unlock()
	base = l
	categories = cats
	loggers = make(map[Category]*Logger)
}

// Base returns the root zap logger.
func Base() *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return base
}

// IsCategoryEnabled returns whether a specific category is enabled.
// Categories absent from the configuration are enabled.
func IsCategoryEnabled(category Category) bool {
	mu.RLock()
	defer mu.RUnlock()
	enabled, ok := categories[string(category)]
	return !ok || enabled
}

// Get returns (or creates) the logger for the given category.
func Get(category Category) *Logger {
	mu.RLock()
	if l, ok := loggers[category]; ok {
		mu.RUnlock()
		return l
	}
	mu.RUnlock()

	mu.Lock()
	defer mu.Unlock()
	if l, ok := loggers[category]; ok {
		return l
	}

	z := zap.NewNop()
	if enabled, ok := categories[string(category)]; !ok || enabled {
		z = base.Named(string(category))
	}
	l := &Logger{category: category, sugar: z.Sugar()}
	loggers[category] = l
	return l
}

// Debug logs a debug message
func (l *Logger) Debug(format string, args ...interface{}) {
	l.sugar.Debugf(format, args...)
}

// Info logs an informational message
func (l *Logger) Info(format string, args ...interface{}) {
	l.sugar.Infof(format, args...)
}

// Warn logs a warning message
func (l *Logger) Warn(format string, args ...interface{}) {
	l.sugar.Warnf(format, args...)
}

// Error logs an error message
func (l *Logger) Error(format string, args ...interface{}) {
	l.sugar.Errorf(format, args...)
}

// With returns a logger that adds the given key-value pairs to every entry.
func (l *Logger) With(keysAndValues ...interface{}) *Logger {
	return &Logger{category: l.category, sugar: l.sugar.With(keysAndValues...)}
}

// Sync flushes buffered entries.
func Sync() error {
	return Base().Sync()
}

// =============================================================================
// CONVENIENCE FUNCTIONS - Quick logging without getting a logger first
// =============================================================================

// Boot logs to the boot category
func Boot(format string, args ...interface{}) {
	Get(CategoryBoot).Info(format, args...)
}

// BootDebug logs debug to the boot category
func BootDebug(format string, args ...interface{}) {
	Get(CategoryBoot).Debug(format, args...)
}

// BootWarn logs warning to the boot category
func BootWarn(format string, args ...interface{}) {
	Get(CategoryBoot).Warn(format, args...)
}

// Transform logs to the transform category
func Transform(format string, args ...interface{}) {
	Get(CategoryTransform).Info(format, args...)
}

// TransformDebug logs debug to the transform category
func TransformDebug(format string, args ...interface{}) {
	Get(CategoryTransform).Debug(format, args...)
}

// TransformWarn logs warning to the transform category
func TransformWarn(format string, args ...interface{}) {
	Get(CategoryTransform).Warn(format, args...)
}

// Overlay logs to the overlay category
func Overlay(format string, args ...interface{}) {
	Get(CategoryOverlay).Info(format, args...)
}

// OverlayDebug logs debug to the overlay category
func OverlayDebug(format string, args ...interface{}) {
	Get(CategoryOverlay).Debug(format, args...)
}

// OverlayError logs error to the overlay category
func OverlayError(format string, args ...interface{}) {
	Get(CategoryOverlay).Error(format, args...)
}

// Watch logs to the watch category
func Watch(format string, args ...interface{}) {
	Get(CategoryWatch).Info(format, args...)
}

// WatchDebug logs debug to the watch category
func WatchDebug(format string, args ...interface{}) {
	Get(CategoryWatch).Debug(format, args...)
}

// WatchError logs error to the watch category
func WatchError(format string, args ...interface{}) {
	Get(CategoryWatch).Error(format, args...)
}

// CLIDebug logs debug to the cli category
func CLIDebug(format string, args ...interface{}) {
	Get(CategoryCLI).Debug(format, args...)
}

// Timer helps measure operation duration
type Timer struct {
	category Category
	op       string
	start    time.Time
}

// StartTimer begins timing an operation
func StartTimer(category Category, operation string) *Timer {
	return &Timer{
		category: category,
		op:       operation,
		start:    time.Now(),
	}
}

// Stop ends the timer and logs the duration
func (t *Timer) Stop() time.Duration {
	elapsed := time.Since(t.start)
	Get(t.category).Debug("%s completed in %v", t.op, elapsed)
	return elapsed
}

// StopWithInfo ends the timer and logs at info level
func (t *Timer) StopWithInfo() time.Duration {
	elapsed := time.Since(t.start)
	Get(t.category).Info("%s completed in %v", t.op, elapsed)
	return elapsed
}

// StopWithThreshold logs warning if duration exceeds threshold
func (t *Timer) StopWithThreshold(threshold time.Duration) time.Duration {
	elapsed := time.Since(t.start)
	if elapsed > threshold {
		Get(t.category).Warn("%s took %v (threshold: %v)", t.op, elapsed, threshold)
	} else {
		Get(t.category).Debug("%s completed in %v", t.op, elapsed)
	}
	return elapsed
}
