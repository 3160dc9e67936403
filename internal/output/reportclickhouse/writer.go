package reportclickhouse

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"escrowtrace/pkg/models"
)

// Config controls the ClickHouse report sink.
type Config struct {
	URL      string
	Database string
	Table    string
	Username string
	Password string
	Timeout  time.Duration
	Headers  map[string]string
}

// Writer inserts report rows over the ClickHouse HTTP interface using
// JSONEachRow format.
type Writer struct {
	cfg       Config
	client    *http.Client
	insertURL string
}

// NewWriter validates the config and precomputes the insert URL.
func NewWriter(cfg Config) (*Writer, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("clickhouse url is required")
	}
	if cfg.Table == "" {
		return nil, fmt.Errorf("clickhouse table is required")
	}
	if cfg.Database == "" {
		cfg.Database = "default"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}

	query := url.Values{}
	query.Set("query", fmt.Sprintf("INSERT INTO %s.%s FORMAT JSONEachRow", cfg.Database, cfg.Table))

	return &Writer{
		cfg:       cfg,
		client:    &http.Client{Timeout: cfg.Timeout},
		insertURL: cfg.URL + "/?" + query.Encode(),
	}, nil
}

// WriteBatch inserts the batch as newline-delimited JSON rows.
func (w *Writer) WriteBatch(reports []*models.SessionReport) error {
	if len(reports) == 0 {
		return nil
	}

	var body bytes.Buffer
	enc := json.NewEncoder(&body)
	for _, report := range reports {
		if err := enc.Encode(report); err != nil {
			return fmt.Errorf("encode report %s: %w", report.TraceID, err)
		}
	}

	req, err := http.NewRequest(http.MethodPost, w.insertURL, &body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-ndjson")
	if w.cfg.Username != "" {
		req.SetBasicAuth(w.cfg.Username, w.cfg.Password)
	}
	for k, v := range w.cfg.Headers {
		req.Header.Set(k, v)
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("insert report batch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("clickhouse returned %s: %s", resp.Status, bytes.TrimSpace(msg))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// Close is a no-op.
func (w *Writer) Close() error {
	return nil
}
