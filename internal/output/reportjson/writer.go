package reportjson

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"escrowtrace/pkg/models"
)

// Writer appends session reports to a local file as JSON lines.
type Writer struct {
	mu      sync.Mutex
	file    *os.File
	encoder *json.Encoder
}

// NewWriter creates the output file, creating parent directories as
// needed. An existing file is appended to.
func NewWriter(path string) (*Writer, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create output directory: %w", err)
		}
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("open output file: %w", err)
	}

	return &Writer{file: f, encoder: json.NewEncoder(f)}, nil
}

// WriteBatch writes each report as one JSON line.
func (w *Writer) WriteBatch(reports []*models.SessionReport) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	for _, report := range reports {
		if err := w.encoder.Encode(report); err != nil {
			return fmt.Errorf("encode report %s: %w", report.TraceID, err)
		}
	}
	return nil
}

// Close flushes and closes the output file.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.file.Close()
}
