package dispatch

import (
	"aifactory/pkg/logx"
	"aifactory/pkg/persistence"
)

// EventSink receives factory activity records. Implementations must never
// block the dispatch loop and must never return an error; a sink failure is
// the sink's problem, not the loop's.
type EventSink interface {
	Log(level logx.Level, message, persona, itemID, project string)
}

// logSink is the default sink: it captures the entry in the in-memory log
// buffer and, when the database is initialized, mirrors it to the
// factory_logs table.
type logSink struct{}

// NewLogSink returns the default event sink.
func NewLogSink() EventSink {
	return &logSink{}
}

func (s *logSink) Log(level logx.Level, message, persona, itemID, project string) {
	logx.Capture(level, "factory", message, persona, itemID, project)

	if !persistence.IsInitialized() {
		return
	}
	// Best effort. Losing a log row must not disturb dispatching.
	_ = persistence.Ops().InsertLog(&persistence.LogRecord{
		Level:       string(level),
		Message:     message,
		PersonaName: persona,
		WorkItemID:  itemID,
		Project:     project,
	})
}

// nopSink discards everything. Useful in tests.
type nopSink struct{}

// NewNopSink returns a sink that drops all entries.
func NewNopSink() EventSink {
	return &nopSink{}
}

func (s *nopSink) Log(_ logx.Level, _, _, _, _ string) {}
