// Package activitylog writes a structured JSONL trail of one pipeline
// run: malformed lines skipped, epoch boundaries recorded, scrollback
// eviction, sections detected, and coarse session state changes. One
// JSON object per line, append-only, safe to call on a disabled logger.
package activitylog

import (
	"encoding/json"
	"os"
	"sync"
	"time"
)

// Logger appends structured events to a JSONL file. A disabled or nil
// Logger is always safe to call; its methods become no-ops.
type Logger struct {
	mu        sync.Mutex
	file      *os.File
	enabled   bool
	actor     string
	sessionID string
}

// New creates a Logger that appends to path when enabled is true. When
// enabled is false, no file is created and every method is a no-op.
func New(enabled bool, path, actor, sessionID string) *Logger {
	l := &Logger{enabled: enabled, actor: actor, sessionID: sessionID}
	if !enabled {
		return l
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		// Degrade to disabled rather than fail the pipeline run over telemetry.
		l.enabled = false
		return l
	}
	l.file = f
	return l
}

// Nop returns a disabled Logger, for callers that receive a nil *Logger
// and want a safe default rather than checking for nil everywhere.
func Nop() *Logger {
	return &Logger{}
}

// Close closes the underlying file, if any.
func (l *Logger) Close() error {
	if l == nil || l.file == nil {
		return nil
	}
	return l.file.Close()
}

// MalformedLine records that one or more NDJSON event lines were skipped
// because they failed to parse. line is the line number of the stream
// position by the time the skip was noticed; count is how many lines
// were skipped since the previous report.
func (l *Logger) MalformedLine(line, count int) {
	l.write(map[string]any{
		"event": "malformed_line",
		"line":  line,
		"count": count,
	})
}

// EpochBoundary records a primary-buffer screen clear that opened a new
// scrollback epoch during replay.
func (l *Logger) EpochBoundary(eventIndex, rawLineCount int) {
	l.write(map[string]any{
		"event":          "epoch_boundary",
		"event_index":    eventIndex,
		"raw_line_count": rawLineCount,
	})
}

// ScrollbackEviction records that the capped scrollback buffer trimmed
// lines from the front during this run.
func (l *Logger) ScrollbackEviction(evictedLines int) {
	l.write(map[string]any{
		"event":         "scrollback_eviction",
		"evicted_lines": evictedLines,
	})
}

// SectionDetected records one fold-anchor boundary the section detector
// produced, after merging and capping.
func (l *Logger) SectionDetected(label string, signals []string, eventIndex int) {
	l.write(map[string]any{
		"event":       "section_detected",
		"label":       label,
		"signals":     signals,
		"event_index": eventIndex,
	})
}

// StateChange records a coarse session-status transition (e.g. for
// repository.Status transitions: pending -> processing -> completed/failed).
func (l *Logger) StateChange(from, to string) {
	l.write(map[string]any{
		"event": "state_change",
		"from":  from,
		"to":    to,
	})
}

func (l *Logger) write(fields map[string]any) {
	if l == nil || !l.enabled || l.file == nil {
		return
	}
	fields["ts"] = time.Now().UTC().Format(time.RFC3339Nano)
	fields["actor"] = l.actor
	fields["session_id"] = l.sessionID

	data, err := json.Marshal(fields)
	if err != nil {
		return
	}
	data = append(data, '\n')

	l.mu.Lock()
	defer l.mu.Unlock()
	_, _ = l.file.Write(data)
}
