package reportjson

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"escrowtrace/pkg/models"
)

func TestWriterAppendsOneLinePerReport(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "reports.jsonl")

	w, err := NewWriter(path)
	if err != nil {
		t.Fatalf("new writer: %v", err)
	}

	batch := []*models.SessionReport{
		{TraceID: "t-1", EventCount: 3, Severity: "none"},
		{TraceID: "t-2", EventCount: 5, Severity: "high"},
	}
	if err := w.WriteBatch(batch); err != nil {
		t.Fatalf("write batch: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open output: %v", err)
	}
	defer f.Close()

	var got []models.SessionReport
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var report models.SessionReport
		if err := json.Unmarshal(scanner.Bytes(), &report); err != nil {
			t.Fatalf("decode line: %v", err)
		}
		got = append(got, report)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(got))
	}
	if got[0].TraceID != "t-1" || got[1].Severity != "high" {
		t.Fatalf("unexpected reports: %+v", got)
	}
}
