// Package logging provides categorized logging for toolsmith on top of zap.
// Each subsystem logs through its own Category so output can be filtered per
// area. Until Initialize or Attach is called every logger is a no-op.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Category represents a log category/system
type Category string

const (
	CategoryBoot      Category = "boot"      // Startup, config loading
	CategoryAPI       Category = "api"       // LLM API calls
	CategoryTools     Category = "tools"     // Auxiliary lookup tools
	CategoryToolgen   Category = "toolgen"   // Parsing, formatting, generation strategies
	CategoryOuroboros Category = "ouroboros" // Iteration controller
	CategoryTactile   Category = "tactile"   // Execution adapter
	CategoryStore     Category = "store"     // Iteration journal
	CategoryMCP       Category = "mcp"       // MCP server
)

// Options mirrors config.LoggingConfig to avoid an import cycle.
type Options struct {
	// Dir receives toolsmith.log when set.
	Dir string
	// Level is one of debug, info, warn, error.
	Level string
	// JSON selects the JSON encoder for the log file.
	JSON bool
	// Verbose mirrors every entry to Stderr in console format.
	Verbose bool
	Stderr  io.Writer
	// Categories disables individual categories when mapped to false.
	Categories map[string]bool
}

// Logger is a category-scoped sugared zap logger.
type Logger struct {
	category Category
	sugar    *zap.SugaredLogger
}

var (
	mu         sync.RWMutex
	base       *zap.Logger
	categories map[string]bool
	loggers    = make(map[Category]*Logger)
	logFile    *os.File
)

// Initialize builds the root zap logger from opts.
// Calling it again replaces the previous configuration.
func Initialize(opts Options) error {
	level, err := zapcore.ParseLevel(defaultString(opts.Level, "info"))
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", opts.Level, err)
	}

	var cores []zapcore.Core
	var file *os.File
	if opts.Dir != "" {
		if err := os.MkdirAll(opts.Dir, 0755); err != nil {
			return fmt.Errorf("failed to create logs directory: %w", err)
		}
		file, err = os.OpenFile(filepath.Join(opts.Dir, "toolsmith.log"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
		encCfg := zap.NewProductionEncoderConfig()
		encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
		var enc zapcore.Encoder
		if opts.JSON {
			enc = zapcore.NewJSONEncoder(encCfg)
		} else {
			enc = zapcore.NewConsoleEncoder(encCfg)
		}
		cores = append(cores, zapcore.NewCore(enc, zapcore.AddSync(file), level))
	}
	if opts.Verbose {
		w := opts.Stderr
		if w == nil {
			w = os.Stderr
		}
		encCfg := zap.NewDevelopmentEncoderConfig()
		encCfg.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05.000")
		cores = append(cores, zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), zapcore.AddSync(w), zapcore.DebugLevel))
	}

	var root *zap.Logger
	if len(cores) == 0 {
		root = zap.NewNop()
	} else {
		root = zap.New(zapcore.NewTee(cores...))
	}

	mu.Lock()
	closeLocked()
	base = root
	logFile = file
	categories = opts.Categories
	mu.Unlock()

	Get(CategoryBoot).Debug("logging initialized (level=%s dir=%q verbose=%v)", level, opts.Dir, opts.Verbose)
	return nil
}

// Attach routes all categories through an existing zap logger.
func Attach(l *zap.Logger) {
	mu.Lock()
	defer mu.Unlock()
	closeLocked()
	base = l
	categories = nil
}

// Reset returns the package to its uninitialized no-op state.
func Reset() {
	mu.Lock()
	defer mu.Unlock()
	closeLocked()
	base = nil
	categories = nil
}

func closeLocked() {
	if base != nil {
		_ = base.Sync()
	}
	if logFile != nil {
		logFile.Close()
		logFile = nil
	}
	loggers = make(map[Category]*Logger)
}

// Sync flushes buffered entries.
func Sync() {
	mu.RLock()
	defer mu.RUnlock()
	if base != nil {
		_ = base.Sync()
	}
}

// IsCategoryEnabled reports whether entries for category are written.
func IsCategoryEnabled(category Category) bool {
	mu.RLock()
	defer mu.RUnlock()
	if base == nil {
		return false
	}
	enabled, ok := categories[string(category)]
	return !ok || enabled
}

// Get returns (or creates) a logger for the given category.
// Returns a no-op logger if logging is not initialized or the category is disabled.
func Get(category Category) *Logger {
	if !IsCategoryEnabled(category) {
		return &Logger{category: category}
	}

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
	if base == nil {
		return &Logger{category: category}
	}
	l := &Logger{
		category: category,
		sugar:    base.Named(string(category)).Sugar(),
	}
	loggers[category] = l
	return l
}

// Category returns the category the logger writes to.
func (l *Logger) Category() Category { return l.category }

func (l *Logger) Debug(format string, args ...interface{}) {
	if l.sugar == nil {
		return
	}
	l.sugar.Debugf(format, args...)
}

func (l *Logger) Info(format string, args ...interface{}) {
	if l.sugar == nil {
		return
	}
	l.sugar.Infof(format, args...)
}

func (l *Logger) Warn(format string, args ...interface{}) {
	if l.sugar == nil {
		return
	}
	l.sugar.Warnf(format, args...)
}

func (l *Logger) Error(format string, args ...interface{}) {
	if l.sugar == nil {
		return
	}
	l.sugar.Errorf(format, args...)
}

// With returns a child logger carrying structured key/value pairs.
func (l *Logger) With(keysAndValues ...interface{}) *Logger {
	if l.sugar == nil {
		return l
	}
	return &Logger{category: l.category, sugar: l.sugar.With(keysAndValues...)}
}

// WithRequestID returns a request-scoped logger.
func WithRequestID(category Category, requestID string) *Logger {
	return Get(category).With("req", requestID)
}

func defaultString(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

// =============================================================================
// CONVENIENCE FUNCTIONS - Quick logging without getting a logger first
// =============================================================================

func Boot(format string, args ...interface{})      { Get(CategoryBoot).Info(format, args...) }
func BootDebug(format string, args ...interface{}) { Get(CategoryBoot).Debug(format, args...) }
func BootWarn(format string, args ...interface{})  { Get(CategoryBoot).Warn(format, args...) }

func API(format string, args ...interface{})      { Get(CategoryAPI).Info(format, args...) }
func APIDebug(format string, args ...interface{}) { Get(CategoryAPI).Debug(format, args...) }
func APIWarn(format string, args ...interface{})  { Get(CategoryAPI).Warn(format, args...) }
func APIError(format string, args ...interface{}) { Get(CategoryAPI).Error(format, args...) }

func Tools(format string, args ...interface{})      { Get(CategoryTools).Info(format, args...) }
func ToolsDebug(format string, args ...interface{}) { Get(CategoryTools).Debug(format, args...) }
func ToolsWarn(format string, args ...interface{})  { Get(CategoryTools).Warn(format, args...) }

func Toolgen(format string, args ...interface{})      { Get(CategoryToolgen).Info(format, args...) }
func ToolgenDebug(format string, args ...interface{}) { Get(CategoryToolgen).Debug(format, args...) }
func ToolgenWarn(format string, args ...interface{})  { Get(CategoryToolgen).Warn(format, args...) }

func Ouroboros(format string, args ...interface{})      { Get(CategoryOuroboros).Info(format, args...) }
func OuroborosDebug(format string, args ...interface{}) { Get(CategoryOuroboros).Debug(format, args...) }
func OuroborosWarn(format string, args ...interface{})  { Get(CategoryOuroboros).Warn(format, args...) }
func OuroborosError(format string, args ...interface{}) { Get(CategoryOuroboros).Error(format, args...) }

func Tactile(format string, args ...interface{})      { Get(CategoryTactile).Info(format, args...) }
func TactileDebug(format string, args ...interface{}) { Get(CategoryTactile).Debug(format, args...) }
func TactileWarn(format string, args ...interface{})  { Get(CategoryTactile).Warn(format, args...) }
func TactileError(format string, args ...interface{}) { Get(CategoryTactile).Error(format, args...) }

func Store(format string, args ...interface{})      { Get(CategoryStore).Info(format, args...) }
func StoreDebug(format string, args ...interface{}) { Get(CategoryStore).Debug(format, args...) }
func StoreWarn(format string, args ...interface{})  { Get(CategoryStore).Warn(format, args...) }

func MCP(format string, args ...interface{})      { Get(CategoryMCP).Info(format, args...) }
func MCPDebug(format string, args ...interface{}) { Get(CategoryMCP).Debug(format, args...) }
func MCPWarn(format string, args ...interface{})  { Get(CategoryMCP).Warn(format, args...) }

// =============================================================================
// TIMING HELPERS
// =============================================================================

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

// Stop ends the timer and logs the duration at debug level.
func (t *Timer) Stop() time.Duration {
	elapsed := time.Since(t.start)
	Get(t.category).Debug("%s completed in %v", t.op, elapsed)
	return elapsed
}

// StopWithThreshold logs a warning if duration exceeds threshold.
func (t *Timer) StopWithThreshold(threshold time.Duration) time.Duration {
	elapsed := time.Since(t.start)
	if elapsed > threshold {
		Get(t.category).Warn("%s took %v (threshold: %v)", t.op, elapsed, threshold)
	} else {
		Get(t.category).Debug("%s completed in %v", t.op, elapsed)
	}
	return elapsed
}
