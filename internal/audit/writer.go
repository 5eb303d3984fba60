package audit

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Writer appends records. Appends are serialized so concurrent
// validations never interleave within one JSONL line.
type Writer interface {
	Append(r Record) error
	Close() error
}

// Rotation bounds the log file size; zero values disable rotation
type Rotation struct {
	MaxSizeMB  int
	MaxBackups int
}

// fileWriter writes one JSON object per line
type fileWriter struct {
	mu     sync.Mutex
	writer io.Writer
	closer io.Closer
}

// NewWriter opens (or creates) an append-only JSONL log at path.
// With rotation configured the file is size-capped via lumberjack;
// rotated segments are renamed, never rewritten.
func NewWriter(path string, rotation Rotation) (Writer, error) {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create audit log directory: %w", err)
		}
	}

	if rotation.MaxSizeMB > 0 {
		lj := &lumberjack.Logger{
			Filename:   path,
			MaxSize:    rotation.MaxSizeMB,
			MaxBackups: rotation.MaxBackups,
		}
		return &fileWriter{writer: lj, closer: lj}, nil
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit log: %w", err)
	}
	return &fileWriter{writer: f, closer: f}, nil
}

// NewWriterTo wraps an arbitrary writer, for tests
func NewWriterTo(w io.Writer) Writer {
	return &fileWriter{writer: w}
}

func (w *fileWriter) Append(r Record) error {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("failed to marshal audit record: %w", err)
	}
	data = append(data, '\n')

	w.mu.Lock()
	defer w.mu.Unlock()
	if _, err := w.writer.Write(data); err != nil {
		return fmt.Errorf("failed to append audit record: %w", err)
	}
	return nil
}

func (w *fileWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closer != nil {
		return w.closer.Close()
	}
	return nil
}
