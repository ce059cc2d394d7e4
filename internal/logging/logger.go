// Package logging provides config-driven categorized file-based logging for
// codewiki. Logs are written to .codewiki/logs/ with separate files per
// category. Logging is controlled by the logging section of
// .codewiki/config.yaml - when debug_mode is false, no logs are written.
package logging

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// Category represents a log category/system.
type Category string

const (
	CategoryBoot      Category = "boot"      // Startup, config loading
	CategoryPipeline  Category = "pipeline"  // Stage sequencing, progress
	CategoryScanner   Category = "scanner"   // Filesystem scan, gitignore
	CategoryCompress  Category = "compress"  // Source compressors
	CategoryDeps      Category = "deps"      // Dependency analysis
	CategoryAPI       Category = "api"       // LLM API calls
	CategoryTemplate  Category = "template"  // Prompt template loading
	CategoryStore     Category = "store"     // Wiki persistence
	CategoryVector    Category = "vector"    // Vector store operations
	CategoryEmbedding Category = "embedding" // Embedding engine
	CategoryTools     Category = "tools"     // Native function plugins
	CategoryWatch     Category = "watch"     // File change watcher
)

// loggingConfig mirrors the logging section of config.Config to avoid a
// circular import on the config package.
type loggingConfig struct {
	DebugMode  bool            `yaml:"debug_mode"`
	Categories map[string]bool `yaml:"categories"`
	Level      string          `yaml:"level"`
}

type configFile struct {
	Logging loggingConfig `yaml:"logging"`
}

// Logger wraps a standard logger with category and file output.
type Logger struct {
	category Category
	logger   *log.Logger
	file     *os.File
}

var (
	loggers   = make(map[Category]*Logger)
	loggersMu sync.RWMutex
	logsDir   string
	workspace string
	config    loggingConfig
	configMu  sync.RWMutex
	logLevel  int
)

// Log levels.
const (
	LevelDebug = 0
	LevelInfo  = 1
	LevelWarn  = 2
	LevelError = 3
)

// Initialize sets up the logging directory and loads config.
// Should be called once at startup with the workspace path.
func Initialize(ws string) error {
	if ws == "" {
		return fmt.Errorf("workspace path required")
	}

	workspace = ws
	logsDir = filepath.Join(workspace, ".codewiki", "logs")

	if err := loadConfig(); err != nil {
		fmt.Fprintf(os.Stderr, "[logging] Warning: could not load config: %v\n", err)
		config.DebugMode = false
	}

	if !config.DebugMode {
		return nil // Silent no-op in production mode
	}

	if err := os.MkdirAll(logsDir, 0755); err != nil {
		return fmt.Errorf("failed to create logs directory: %w", err)
	}

	boot := Get(CategoryBoot)
	boot.Info("=== codewiki logging initialized ===")
	boot.Info("Workspace: %s", workspace)
	boot.Info("Log level: %s", config.Level)
	return nil
}

func loadConfig() error {
	configMu.Lock()
	defer configMu.Unlock()

	configPath := filepath.Join(workspace, ".codewiki", "config.yaml")
	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			// No config = production mode (no logging)
			config.DebugMode = false
			return nil
		}
		return err
	}

	var cf configFile
	if err := yaml.Unmarshal(data, &cf); err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}
	config = cf.Logging

	switch config.Level {
	case "debug":
		logLevel = LevelDebug
	case "warn", "warning":
		logLevel = LevelWarn
	case "error":
		logLevel = LevelError
	default:
		logLevel = LevelInfo
	}
	return nil
}

// IsDebugMode returns whether debug logging is enabled.
func IsDebugMode() bool {
	configMu.RLock()
	defer configMu.RUnlock()
	return config.DebugMode
}

// IsCategoryEnabled returns whether a specific category is enabled.
func IsCategoryEnabled(category Category) bool {
	configMu.RLock()
	defer configMu.RUnlock()

	if !config.DebugMode {
		return false
	}
	if config.Categories == nil {
		return true
	}
	enabled, exists := config.Categories[string(category)]
	if !exists {
		return true
	}
	return enabled
}

// Get returns (or creates) a logger for the given category.
// Returns a no-op logger if debug mode is disabled or the category is off.
func Get(category Category) *Logger {
	if !IsCategoryEnabled(category) || logsDir == "" {
		return &Logger{category: category}
	}

	loggersMu.RLock()
	if l, ok := loggers[category]; ok {
		loggersMu.RUnlock()
		return l
	}
	loggersMu.RUnlock()

	loggersMu.Lock()
	defer loggersMu.Unlock()
	if l, ok := loggers[category]; ok {
		return l
	}

	date := time.Now().Format("2006-01-02")
	logPath := filepath.Join(logsDir, fmt.Sprintf("%s_%s.log", date, category))
	file, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		fmt.Fprintf(os.Stderr, "[logging] Warning: could not open log file %s: %v\n", logPath, err)
		return &Logger{category: category}
	}

	l := &Logger{
		category: category,
		file:     file,
		logger:   log.New(file, "", log.Ldate|log.Ltime|log.Lmicroseconds),
	}
	loggers[category] = l
	return l
}

// Debug logs a debug message.
func (l *Logger) Debug(format string, args ...interface{}) {
	if l.logger == nil || logLevel > LevelDebug {
		return
	}
	l.logger.Printf("[DEBUG] %s", fmt.Sprintf(format, args...))
}

// Info logs an informational message.
func (l *Logger) Info(format string, args ...interface{}) {
	if l.logger == nil || logLevel > LevelInfo {
		return
	}
	l.logger.Printf("[INFO] %s", fmt.Sprintf(format, args...))
}

// Warn logs a warning message.
func (l *Logger) Warn(format string, args ...interface{}) {
	if l.logger == nil || logLevel > LevelWarn {
		return
	}
	l.logger.Printf("[WARN] %s", fmt.Sprintf(format, args...))
}

// Error logs an error message (always logged if the logger exists).
func (l *Logger) Error(format string, args ...interface{}) {
	if l.logger == nil {
		return
	}
	l.logger.Printf("[ERROR] %s", fmt.Sprintf(format, args...))
}

// CloseAll closes all open log files (call at shutdown).
func CloseAll() {
	loggersMu.Lock()
	defer loggersMu.Unlock()
	for _, l := range loggers {
		if l.file != nil {
			l.file.Close()
		}
	}
	loggers = make(map[Category]*Logger)
}

// Convenience functions. No-ops when the category is disabled.

func Boot(format string, args ...interface{})     { Get(CategoryBoot).Info(format, args...) }
func Pipeline(format string, args ...interface{}) { Get(CategoryPipeline).Info(format, args...) }
func PipelineDebug(format string, args ...interface{}) {
	Get(CategoryPipeline).Debug(format, args...)
}
func Scanner(format string, args ...interface{})      { Get(CategoryScanner).Info(format, args...) }
func ScannerDebug(format string, args ...interface{}) { Get(CategoryScanner).Debug(format, args...) }
func Compress(format string, args ...interface{})     { Get(CategoryCompress).Debug(format, args...) }
func Deps(format string, args ...interface{})         { Get(CategoryDeps).Info(format, args...) }
func DepsDebug(format string, args ...interface{})    { Get(CategoryDeps).Debug(format, args...) }
func API(format string, args ...interface{})          { Get(CategoryAPI).Info(format, args...) }
func APIDebug(format string, args ...interface{})     { Get(CategoryAPI).Debug(format, args...) }
func Template(format string, args ...interface{})     { Get(CategoryTemplate).Debug(format, args...) }
func Store(format string, args ...interface{})        { Get(CategoryStore).Info(format, args...) }
func StoreDebug(format string, args ...interface{})   { Get(CategoryStore).Debug(format, args...) }
func Vector(format string, args ...interface{})       { Get(CategoryVector).Info(format, args...) }
func VectorDebug(format string, args ...interface{})  { Get(CategoryVector).Debug(format, args...) }
func Embedding(format string, args ...interface{})    { Get(CategoryEmbedding).Info(format, args...) }
func Tools(format string, args ...interface{})        { Get(CategoryTools).Info(format, args...) }
func Watch(format string, args ...interface{})        { Get(CategoryWatch).Info(format, args...) }

func PipelineError(format string, args ...interface{}) {
	Get(CategoryPipeline).Error(format, args...)
}
func APIError(format string, args ...interface{})    { Get(CategoryAPI).Error(format, args...) }
func APIWarn(format string, args ...interface{})     { Get(CategoryAPI).Warn(format, args...) }
func StoreError(format string, args ...interface{})  { Get(CategoryStore).Error(format, args...) }
func VectorError(format string, args ...interface{}) { Get(CategoryVector).Error(format, args...) }
func ToolsError(format string, args ...interface{})  { Get(CategoryTools).Error(format, args...) }

// Timer helps measure operation duration.
type Timer struct {
	category Category
	op       string
	start    time.Time
}

// StartTimer begins timing an operation.
func StartTimer(category Category, operation string) *Timer {
	return &Timer{category: category, op: operation, start: time.Now()}
}

// Stop ends the timer and logs the duration at debug level.
func (t *Timer) Stop() time.Duration {
	elapsed := time.Since(t.start)
	Get(t.category).Debug("%s completed in %v", t.op, elapsed)
	return elapsed
}

// StopWithThreshold logs a warning if the duration exceeds threshold.
func (t *Timer) StopWithThreshold(threshold time.Duration) time.Duration {
	elapsed := time.Since(t.start)
	if elapsed > threshold {
		Get(t.category).Warn("%s took %v (threshold: %v)", t.op, elapsed, threshold)
	} else {
		Get(t.category).Debug("%s completed in %v", t.op, elapsed)
	}
	return elapsed
}
