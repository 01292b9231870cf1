// Package logx provides structured logging with an in-memory buffer for the web UI.
package logx

import (
	"fmt"
	"log"
	"os"
	"strings"
	"sync"
	"time"
)

type Logger struct {
	source string
	logger *log.Logger
}

type Level string

const (
	LevelDebug Level = "DEBUG"
	LevelInfo  Level = "INFO"
	LevelWarn  Level = "WARN"
	LevelError Level = "ERROR"
)

// DebugConfig controls debug logging behavior.
type DebugConfig struct {
	Enabled bool
	Domains map[string]bool // Which domains to enable debug for (nil = all)
}

// Entry represents a structured log entry for the web UI and the log API.
type Entry struct {
	Timestamp  string `json:"timestamp"`
	Source     string `json:"source"`
	Level      string `json:"level"`
	Message    string `json:"message"`
	Persona    string `json:"persona,omitempty"`
	WorkItemID string `json:"work_item_id,omitempty"`
	Project    string `json:"project,omitempty"`
}

// buffer stores recent log entries for the web UI.
type buffer struct {
	entries []Entry
	mutex   sync.RWMutex
	maxSize int
}

//nolint:gochecknoglobals // Intentional global state for process-wide log capture
var (
	debugConfig = &DebugConfig{}
	debugMutex  sync.RWMutex

	logBuffer = &buffer{
		entries: make([]Entry, 0),
		maxSize: 1000, // Keep last 1000 log entries
	}
)

func init() { //nolint:gochecknoinits // Required for env var initialization
	initDebugFromEnv()
}

func initDebugFromEnv() {
	debugMutex.Lock()
	defer debugMutex.Unlock()

	if debug := os.Getenv("DEBUG"); debug == "1" || strings.EqualFold(debug, "true") {
		debugConfig.Enabled = true
	}

	// Parse domain filtering from DEBUG_DOMAINS=dispatch,queue,webui
	if domains := os.Getenv("DEBUG_DOMAINS"); domains != "" {
		debugConfig.Domains = make(map[string]bool)
		for _, domain := range strings.Split(domains, ",") {
			debugConfig.Domains[strings.TrimSpace(domain)] = true
		}
	}
}

func NewLogger(source string) *Logger {
	return &Logger{
		source: source,
		logger: log.New(os.Stderr, "", 0), // Log to stderr for CLI compatibility
	}
}

// SetDebug configures global debug logging.
func SetDebug(enabled bool, domains []string) {
	debugMutex.Lock()
	defer debugMutex.Unlock()

	debugConfig.Enabled = enabled
	if len(domains) == 0 {
		debugConfig.Domains = nil // Enable all domains
	} else {
		debugConfig.Domains = make(map[string]bool)
		for _, domain := range domains {
			debugConfig.Domains[strings.TrimSpace(domain)] = true
		}
	}
}

// IsDebugEnabled returns whether debug logging is enabled.
func IsDebugEnabled() bool {
	debugMutex.RLock()
	defer debugMutex.RUnlock()
	return debugConfig.Enabled
}

// IsDebugEnabledForDomain returns whether debug logging is enabled for a domain.
func IsDebugEnabledForDomain(domain string) bool {
	debugMutex.RLock()
	defer debugMutex.RUnlock()

	if !debugConfig.Enabled {
		return false
	}
	if debugConfig.Domains == nil {
		return true
	}
	return debugConfig.Domains[domain]
}

func (b *buffer) add(entry *Entry) {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	b.entries = append(b.entries, *entry)
	if len(b.entries) > b.maxSize {
		b.entries = b.entries[len(b.entries)-b.maxSize:]
	}
}

func (b *buffer) get(source string, since time.Time) []Entry {
	b.mutex.RLock()
	defer b.mutex.RUnlock()

	filtered := make([]Entry, 0, len(b.entries))
	for i := range b.entries {
		entry := &b.entries[i]
		if source != "" && !strings.EqualFold(entry.Source, source) {
			continue
		}
		if !since.IsZero() {
			entryTime, err := time.Parse(timestampFormat, entry.Timestamp)
			if err != nil || entryTime.Before(since) {
				continue
			}
		}
		filtered = append(filtered, *entry)
	}
	return filtered
}

const timestampFormat = "2006-01-02T15:04:05.000Z"

// RecentEntries returns buffered log entries for the web UI, optionally
// filtered by source and timestamp.
func RecentEntries(source string, since time.Time) []Entry {
	return logBuffer.get(source, since)
}

// Capture adds a fully structured entry to the in-memory buffer and echoes it
// to stderr. Used by the dispatcher's event sink for persona activity.
func Capture(level Level, source, message, persona, workItemID, project string) {
	timestamp := time.Now().UTC().Format(timestampFormat)
	entry := Entry{
		Timestamp:  timestamp,
		Source:     source,
		Level:      string(level),
		Message:    message,
		Persona:    persona,
		WorkItemID: workItemID,
		Project:    project,
	}
	logBuffer.add(&entry)
	log.New(os.Stderr, "", 0).Printf("[%s] [%s] %s: %s", timestamp, source, level, message)
}

func (l *Logger) log(level Level, format string, args ...any) {
	timestamp := time.Now().UTC().Format(timestampFormat)
	message := fmt.Sprintf(format, args...)
	l.logger.Printf("[%s] [%s] %s: %s", timestamp, l.source, level, message)

	logBuffer.add(&Entry{
		Timestamp: timestamp,
		Source:    l.source,
		Level:     string(level),
		Message:   message,
	})
}

func (l *Logger) Debug(format string, args ...any) {
	if !IsDebugEnabledForDomain(l.source) {
		return
	}
	l.log(LevelDebug, format, args...)
}

func (l *Logger) Info(format string, args ...any) {
	l.log(LevelInfo, format, args...)
}

func (l *Logger) Warn(format string, args ...any) {
	l.log(LevelWarn, format, args...)
}

func (l *Logger) Error(format string, args ...any) {
	l.log(LevelError, format, args...)
}

func (l *Logger) GetSource() string {
	return l.source
}

func (l *Logger) WithSource(source string) *Logger {
	return &Logger{
		source: source,
		logger: l.logger,
	}
}

// Global logging functions for convenience.
//
//nolint:gochecknoglobals // Package-level default logger
var defaultLogger = NewLogger("system")

func Debugf(format string, args ...any) {
	defaultLogger.Debug(format, args...)
}

func Infof(format string, args ...any) {
	defaultLogger.Info(format, args...)
}

func Warnf(format string, args ...any) {
	defaultLogger.Warn(format, args...)
}

// Errorf logs and returns the formatted error.
// Use this when you need both logging and error returning:
//
//	err := logx.Errorf("setup failed: %w", err).
func Errorf(format string, args ...any) error {
	err := fmt.Errorf(format, args...)
	defaultLogger.Error("%s", err.Error())
	return err
}

// Wrap logs msg + ": " + err.Error() and returns fmt.Errorf("%s: %w", msg, err).
// Use this when you need both logging and error wrapping:
//
//	if err != nil { return logx.Wrap(err, "db open") }.
func Wrap(err error, msg string) error {
	if err == nil {
		return nil
	}
	wrappedErr := fmt.Errorf("%s: %w", msg, err)
	defaultLogger.Error("%s", wrappedErr.Error())
	return wrappedErr
}
