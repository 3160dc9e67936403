package analyzer

import (
	"errors"
	"testing"

	"escrowtrace/pkg/models"
)

func TestBuildTimelineAnchorsAtFirstEvent(t *testing.T) {
	session := &models.Session{
		TraceID: "t-1",
		Events: []*models.Event{
			{TimestampMS: 5000, Type: models.EventRPCCallStart, Role: models.RoleBuyer},
			{TimestampMS: 5120, Type: models.EventRPCCallEnd, Role: models.RoleBuyer},
			{TimestampMS: 5500, Type: models.EventSnapshotFinal, Role: models.RoleBuyer},
		},
	}

	entries, warnings, err := BuildTimeline(session)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(warnings) != 0 {
		t.Fatalf("expected no warnings, got %v", warnings)
	}
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
	if entries[0].RelativeMS != 0 {
		t.Fatalf("expected first offset 0, got %d", entries[0].RelativeMS)
	}
	if entries[1].RelativeMS != 120 || entries[2].RelativeMS != 500 {
		t.Fatalf("unexpected offsets: %d, %d", entries[1].RelativeMS, entries[2].RelativeMS)
	}
	for i, entry := range entries {
		if entry.Index != i {
			t.Fatalf("expected entry index %d, got %d", i, entry.Index)
		}
	}
}

func TestBuildTimelineEmptySession(t *testing.T) {
	_, _, err := BuildTimeline(&models.Session{TraceID: "t-1"})
	if !errors.Is(err, ErrEmptySession) {
		t.Fatalf("expected ErrEmptySession, got %v", err)
	}
}

func TestBuildTimelineUnsortedInputWarnsButProceeds(t *testing.T) {
	session := &models.Session{
		TraceID: "t-1",
		Events: []*models.Event{
			{TimestampMS: 2000, Type: models.EventCustom},
			{TimestampMS: 1500, Type: models.EventCustom},
			{TimestampMS: 2500, Type: models.EventCustom},
		},
	}

	entries, warnings, err := BuildTimeline(session)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
	if entries[1].RelativeMS != -500 {
		t.Fatalf("expected negative offset -500, got %d", entries[1].RelativeMS)
	}
	if len(warnings) != 1 || warnings[0].Index != 1 {
		t.Fatalf("unexpected warnings: %v", warnings)
	}
}
