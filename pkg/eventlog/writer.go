// Package eventlog records dispatch lifecycle events to daily rotated JSONL files.
package eventlog

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Event kinds written by the dispatcher.
const (
	KindEnqueued  = "enqueued"
	KindAssigned  = "assigned"
	KindRequeued  = "requeued"
	KindCompleted = "completed"
	KindFailed    = "failed"
	KindPollError = "poll_error"
)

// Event is one dispatch lifecycle record.
type Event struct {
	Timestamp time.Time `json:"timestamp"`
	Kind      string    `json:"kind"`
	ItemID    string    `json:"item_id,omitempty"`
	PersonaID string    `json:"persona_id,omitempty"`
	Project   string    `json:"project,omitempty"`
	Detail    string    `json:"detail,omitempty"`
}

// Writer handles structured logging of dispatch events to daily rotated
// JSONL log files.
type Writer struct {
	logDir      string
	currentFile *os.File
	currentDate string
	mu          sync.Mutex
}

// NewWriter creates an event log writer with daily rotation in the given
// directory.
func NewWriter(logDir string) (*Writer, error) {
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	writer := &Writer{logDir: logDir}

	if err := writer.rotateIfNeeded(); err != nil {
		return nil, fmt.Errorf("failed to initialize log file: %w", err)
	}

	return writer, nil
}

// WriteEvent appends an event to the current log file with automatic rotation.
func (w *Writer) WriteEvent(event *Event) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.rotateIfNeeded(); err != nil {
		return fmt.Errorf("failed to rotate log file: %w", err)
	}

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	jsonData, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to serialize event: %w", err)
	}

	if _, err := w.currentFile.Write(jsonData); err != nil {
		return fmt.Errorf("failed to write event: %w", err)
	}
	if _, err := w.currentFile.WriteString("\n"); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	if err := w.currentFile.Sync(); err != nil {
		return fmt.Errorf("failed to sync file: %w", err)
	}

	return nil
}

func (w *Writer) rotateIfNeeded() error {
	newDate := time.Now().Format("2006-01-02")

	if w.currentFile == nil || w.currentDate != newDate {
		return w.rotate(newDate)
	}
	return nil
}

func (w *Writer) rotate(newDate string) error {
	if w.currentFile != nil {
		if err := w.currentFile.Close(); err != nil {
			return fmt.Errorf("failed to close current log file: %w", err)
		}
	}

	filename := fmt.Sprintf("events-%s.jsonl", newDate)
	path := filepath.Join(w.logDir, filename)

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open log file %s: %w", path, err)
	}

	w.currentFile = file
	w.currentDate = newDate

	return nil
}

// Close closes the current log file.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.currentFile != nil {
		err := w.currentFile.Close()
		w.currentFile = nil
		if err != nil {
			return fmt.Errorf("failed to close event log file: %w", err)
		}
	}
	return nil
}

// GetCurrentLogFile returns the path of the currently active log file.
func (w *Writer) GetCurrentLogFile() string {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.currentFile == nil {
		return ""
	}
	return filepath.Join(w.logDir, fmt.Sprintf("events-%s.jsonl", w.currentDate))
}

// ReadEvents reads and parses events from a specific log file.
func ReadEvents(logFilePath string) ([]*Event, error) {
	data, err := os.ReadFile(logFilePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read log file: %w", err)
	}

	var events []*Event
	line := []byte{}
	for _, b := range data {
		if b == '\n' {
			if len(line) > 0 {
				event := &Event{}
				if err := json.Unmarshal(line, event); err != nil {
					return nil, fmt.Errorf("failed to parse event: %w", err)
				}
				events = append(events, event)
				line = []byte{}
			}
		} else {
			line = append(line, b)
		}
	}
	if len(line) > 0 {
		event := &Event{}
		if err := json.Unmarshal(line, event); err != nil {
			return nil, fmt.Errorf("failed to parse final event: %w", err)
		}
		events = append(events, event)
	}

	return events, nil
}

// ListLogFiles returns all event log files in the log directory.
func ListLogFiles(logDir string) ([]string, error) {
	files, err := filepath.Glob(filepath.Join(logDir, "events-*.jsonl"))
	if err != nil {
		return nil, fmt.Errorf("failed to list log files: %w", err)
	}
	return files, nil
}
