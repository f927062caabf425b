// Package logging provides config-driven categorized file-based logging for linkforge.
// Logs are written to .forge/logs/ with separate files per category.
// Logging is controlled by debug_mode in .forge/config.json - when false, no logs are written.
package logging

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Category represents a log category/system
type Category string

const (
	// Core system categories
	CategoryBoot   Category = "boot"   // Boot/initialization
	CategoryConfig Category = "config" // Config loading, env overrides, hot reload
	CategoryStore  Category = "store"  // Persistent store operations

	// Campaign categories
	CategoryCampaignCreation Category = "campaign_creation" // Campaign creation and validation
	CategoryCampaignUpdate   Category = "campaign_update"   // Campaign persistence and status transitions
	CategoryRotation         Category = "platform_rotation" // Platform rotation loop decisions
	CategoryScheduler        Category = "scheduler"         // Cycle scheduling, continuations

	// Platform categories
	CategoryHealth  Category = "platform_health" // Health counters, cooldowns, recovery
	CategoryPublish Category = "publish"         // Publish adapter calls, link verification

	// Provider categories
	CategoryProvider Category = "provider" // Content provider chain attempts
)

// loggingConfig mirrors the relevant parts of config.LoggingConfig
// to avoid circular imports
type loggingConfig struct {
	DebugMode  bool            `json:"debug_mode"`
	Categories map[string]bool `json:"categories"`
	Level      string          `json:"level"`
	JSONFormat bool            `json:"json_format"`
}

// configFile structure for reading .forge/config.json
type configFile struct {
	Logging loggingConfig `json:"logging"`
}

// StructuredLogEntry represents a JSON log entry
type StructuredLogEntry struct {
	Timestamp int64                  `json:"ts"`  // Unix milliseconds
	Category  string                 `json:"cat"` // Log category
	Level     string                 `json:"lvl"` // debug/info/warn/error/critical
	Message   string                 `json:"msg"` // Log message
	Fields    map[string]interface{} `json:"fields,omitempty"`
}

// Logger wraps a standard logger with category and file output
type Logger struct {
	category Category
	logger   *log.Logger
	file     *os.File
}

var (
	loggers      = make(map[Category]*Logger)
	loggersMu    sync.RWMutex
	logsDir      string
	workspace    string
	config       loggingConfig
	configLoaded bool
	configMu     sync.RWMutex
	logLevel     int
)

// Log levels
const (
	LevelDebug    = 0
	LevelInfo     = 1
	LevelWarn     = 2
	LevelError    = 3
	LevelCritical = 4
)

// Initialize sets up the logging directory and loads config.
// Should be called once at startup with the workspace path.
func Initialize(ws string) error {
	if ws == "" {
		return fmt.Errorf("workspace path required")
	}

	workspace = ws
	logsDir = filepath.Join(workspace, ".forge", "logs")

	// Load config first to check if debug mode is enabled
	if err := loadConfig(); err != nil {
		fmt.Fprintf(os.Stderr, "[logging] Warning: could not load config: %v\n", err)
		config.DebugMode = false
	}

	// Only create logs directory if debug mode is enabled
	if !config.DebugMode {
		return nil // Silent no-op in production mode
	}

	if err := os.MkdirAll(logsDir, 0755); err != nil {
		return fmt.Errorf("failed to create logs directory: %w", err)
	}

	bootLogger := Get(CategoryBoot)
	bootLogger.Info("=== linkforge Logging System Initialized ===")
	bootLogger.Info("Workspace: %s", workspace)
	bootLogger.Info("Logs directory: %s", logsDir)
	bootLogger.Info("Log level: %s", config.Level)

	return nil
}

// loadConfig reads the logging config from .forge/config.json
func loadConfig() error {
	configMu.Lock()
	defer configMu.Unlock()

	configPath := filepath.Join(workspace, ".forge", "config.json")
	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			// No config = production mode (no logging)
			config.DebugMode = false
			configLoaded = true
			return nil
		}
		return err
	}

	var cf configFile
	if err := json.Unmarshal(data, &cf); err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}

	config = cf.Logging
	configLoaded = true
	logLevel = parseLevel(config.Level)

	return nil
}

func parseLevel(level string) int {
	switch level {
	case "debug":
		return LevelDebug
	case "info", "":
		return LevelInfo
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	case "critical":
		return LevelCritical
	default:
		return LevelInfo
	}
}

// ReloadConfig reloads the config from disk.
// Call this if config changes at runtime (the config watcher does).
func ReloadConfig() error {
	return loadConfig()
}

// IsDebugMode returns whether debug logging is enabled
func IsDebugMode() bool {
	configMu.RLock()
	defer configMu.RUnlock()
	return config.DebugMode
}

// IsCategoryEnabled returns whether a specific category is enabled
func IsCategoryEnabled(category Category) bool {
	configMu.RLock()
	defer configMu.RUnlock()

	if !config.DebugMode {
		return false
	}

	if config.Categories == nil {
		return true // All enabled by default in debug mode
	}

	enabled, exists := config.Categories[string(category)]
	if !exists {
		return true // Enable by default if not specified
	}
	return enabled
}

// Get returns (or creates) a logger for the given category.
// Returns a no-op logger if debug mode is disabled or category is disabled.
func Get(category Category) *Logger {
	if !IsCategoryEnabled(category) {
		return &Logger{category: category}
	}

	if logsDir == "" {
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

	// Double-check after acquiring write lock
	if l, ok := loggers[category]; ok {
		return l
	}

	// Create log file with date prefix for easy rotation
	date := time.Now().Format("2006-01-02")
	filename := fmt.Sprintf("%s_%s.log", date, category)
	logPath := filepath.Join(logsDir, filename)

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

// logJSON writes a structured JSON log entry
func (l *Logger) logJSON(level, msg string) {
	entry := StructuredLogEntry{
		Timestamp: time.Now().UnixMilli(),
		Category:  string(l.category),
		Level:     level,
		Message:   msg,
	}
	data, err := json.Marshal(entry)
	if err != nil {
		l.logger.Printf("[%s] %s", level, msg) // Fallback to text
		return
	}
	l.logger.Printf("%s", data)
}

func (l *Logger) log(level int, name, msg string) {
	if l.logger == nil || logLevel > level {
		return
	}
	if config.JSONFormat {
		l.logJSON(name, msg)
	} else {
		l.logger.Printf("[%s] %s", name, msg)
	}
}

// Debug logs a debug message (only if level <= debug)
func (l *Logger) Debug(format string, args ...interface{}) {
	l.log(LevelDebug, "DEBUG", fmt.Sprintf(format, args...))
}

// Info logs an informational message (only if level <= info)
func (l *Logger) Info(format string, args ...interface{}) {
	l.log(LevelInfo, "INFO", fmt.Sprintf(format, args...))
}

// Warn logs a warning message (only if level <= warn)
func (l *Logger) Warn(format string, args ...interface{}) {
	l.log(LevelWarn, "WARN", fmt.Sprintf(format, args...))
}

// Error logs an error message (only if level <= error)
func (l *Logger) Error(format string, args ...interface{}) {
	l.log(LevelError, "ERROR", fmt.Sprintf(format, args...))
}

// Critical logs a critical message. Critical messages are never filtered
// while the category itself is enabled.
func (l *Logger) Critical(format string, args ...interface{}) {
	l.log(LevelCritical, "CRITICAL", fmt.Sprintf(format, args...))
}

// Close closes all open log files. Call on shutdown.
func Close() {
	loggersMu.Lock()
	defer loggersMu.Unlock()

	for _, l := range loggers {
		if l.file != nil {
			l.file.Close()
		}
	}
	loggers = make(map[Category]*Logger)
}

// --- Convenience functions for common categories ---

// Boot logs to the boot category
func Boot(format string, args ...interface{}) {
	Get(CategoryBoot).Info(format, args...)
}

// BootDebug logs debug to the boot category
func BootDebug(format string, args ...interface{}) {
	Get(CategoryBoot).Debug(format, args...)
}

// Creation logs to the campaign_creation category
func Creation(format string, args ...interface{}) {
	Get(CategoryCampaignCreation).Info(format, args...)
}

// CreationDebug logs debug to the campaign_creation category
func CreationDebug(format string, args ...interface{}) {
	Get(CategoryCampaignCreation).Debug(format, args...)
}

// Update logs to the campaign_update category
func Update(format string, args ...interface{}) {
	Get(CategoryCampaignUpdate).Info(format, args...)
}

// UpdateDebug logs debug to the campaign_update category
func UpdateDebug(format string, args ...interface{}) {
	Get(CategoryCampaignUpdate).Debug(format, args...)
}

// Rotation logs to the platform_rotation category
func Rotation(format string, args ...interface{}) {
	Get(CategoryRotation).Info(format, args...)
}

// RotationDebug logs debug to the platform_rotation category
func RotationDebug(format string, args ...interface{}) {
	Get(CategoryRotation).Debug(format, args...)
}

// Health logs to the platform_health category
func Health(format string, args ...interface{}) {
	Get(CategoryHealth).Info(format, args...)
}

// HealthDebug logs debug to the platform_health category
func HealthDebug(format string, args ...interface{}) {
	Get(CategoryHealth).Debug(format, args...)
}

// Provider logs to the provider category
func Provider(format string, args ...interface{}) {
	Get(CategoryProvider).Info(format, args...)
}

// ProviderDebug logs debug to the provider category
func ProviderDebug(format string, args ...interface{}) {
	Get(CategoryProvider).Debug(format, args...)
}

// Publish logs to the publish category
func Publish(format string, args ...interface{}) {
	Get(CategoryPublish).Info(format, args...)
}

// PublishDebug logs debug to the publish category
func PublishDebug(format string, args ...interface{}) {
	Get(CategoryPublish).Debug(format, args...)
}

// Store logs to the store category
func Store(format string, args ...interface{}) {
	Get(CategoryStore).Info(format, args...)
}

// StoreDebug logs debug to the store category
func StoreDebug(format string, args ...interface{}) {
	Get(CategoryStore).Debug(format, args...)
}

// Scheduler logs to the scheduler category
func Scheduler(format string, args ...interface{}) {
	Get(CategoryScheduler).Info(format, args...)
}

// SchedulerDebug logs debug to the scheduler category
func SchedulerDebug(format string, args ...interface{}) {
	Get(CategoryScheduler).Debug(format, args...)
}

// --- Timing helper ---

// Timer tracks operation duration for performance logging
type Timer struct {
	category  Category
	operation string
	start     time.Time
}

// StartTimer begins timing an operation
func StartTimer(category Category, operation string) *Timer {
	return &Timer{
		category:  category,
		operation: operation,
		start:     time.Now(),
	}
}

// Stop logs the elapsed time for the operation
func (t *Timer) Stop() {
	elapsed := time.Since(t.start)
	Get(t.category).Debug("%s took %v", t.operation, elapsed)
}
