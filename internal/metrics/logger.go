// Package metrics provides JSONL event logging for indexing runs.
package metrics

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Event names written to the log.
const (
	EventFileIndexed  = "file_indexed"
	EventParseError   = "parse_error"
	EventScopeFlushed = "scope_flushed"
	EventIndexUpdate  = "index_update"
	EventError        = "error"
)

// Logger writes metrics events to JSONL file. A nil *Logger discards
// events.
type Logger struct {
	file *os.File
	mu   sync.Mutex
}

// NewLogger creates a new metrics logger.
func NewLogger(path string) (*Logger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, err
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, err
	}

	return &Logger{file: file}, nil
}

// Close closes the log file.
func (l *Logger) Close() error {
	if l == nil {
		return nil
	}
	return l.file.Close()
}

func (l *Logger) log(event string, data map[string]any) {
	if l == nil {
		return
	}

	e := map[string]any{
		"ts":    time.Now().UTC().Format(time.RFC3339),
		"event": event,
	}
	for k, v := range data {
		e[k] = v
	}
	line, _ := json.Marshal(e)
	line = append(line, '\n')

	l.mu.Lock()
	defer l.mu.Unlock()
	_, _ = l.file.Write(line)
}

// LogFileIndexed logs a file whose top-level nodes reached the index.
func (l *Logger) LogFileIndexed(path string, symbols int) {
	l.log(EventFileIndexed, map[string]any{
		"path":    path,
		"symbols": symbols,
	})
}

// LogParseError logs a file that was skipped because it did not parse.
func (l *Logger) LogParseError(path, message string) {
	l.log(EventParseError, map[string]any{
		"path":    path,
		"message": message,
	})
}

// LogScopeFlushed logs the assembly of one symbol-index scope.
func (l *Logger) LogScopeFlushed(scope string, rows, chunks int) {
	l.log(EventScopeFlushed, map[string]any{
		"scope":  scope,
		"rows":   rows,
		"chunks": chunks,
	})
}

// LogIndexUpdate logs a completed indexing run.
func (l *Logger) LogIndexUpdate(repo string, files, chunksStored int) {
	l.log(EventIndexUpdate, map[string]any{
		"repo":          repo,
		"files":         files,
		"chunks_stored": chunksStored,
	})
}

// LogError logs an error event.
func (l *Logger) LogError(operation, message string) {
	l.log(EventError, map[string]any{
		"operation": operation,
		"message":   message,
	})
}
