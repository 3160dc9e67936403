package reporthttp

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"escrowtrace/pkg/models"
)

// Config controls the HTTP report sink.
type Config struct {
	URL     string
	Timeout time.Duration
	Headers map[string]string
}

// Writer POSTs report batches as a JSON array to a remote endpoint.
type Writer struct {
	cfg    Config
	client *http.Client
}

// NewWriter validates the config and builds the HTTP client.
func NewWriter(cfg Config) (*Writer, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("http output url is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}

	return &Writer{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

// WriteBatch sends the batch in a single request. Any non-2xx status is
// an error.
func (w *Writer) WriteBatch(reports []*models.SessionReport) error {
	if len(reports) == 0 {
		return nil
	}

	payload, err := json.Marshal(reports)
	if err != nil {
		return fmt.Errorf("marshal report batch: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, w.cfg.URL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range w.cfg.Headers {
		req.Header.Set(k, v)
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("post report batch: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("report endpoint returned %s", resp.Status)
	}
	return nil
}

// Close is a no-op; the HTTP client holds no resources worth releasing.
func (w *Writer) Close() error {
	return nil
}
