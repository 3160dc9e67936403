package analyzer

import (
	"testing"

	"escrowtrace/pkg/models"
)

func TestExtractAnomaliesCollectsErrorAndPollutionEvents(t *testing.T) {
	session := &models.Session{
		TraceID: "t-1",
		Events: []*models.Event{
			{TimestampMS: 1000, Type: models.EventRPCCallStart, Role: models.RoleBuyer, RPC: &models.RPCDetails{Method: "refresh"}},
			{TimestampMS: 1100, Type: models.EventRPCCallError, Role: models.RoleBuyer, RPC: &models.RPCDetails{Method: "refresh"}},
			{TimestampMS: 1200, Type: models.EventCachePollution, Role: models.RoleVendor, Pollution: &models.PollutionDetails{Reason: "stale multisig info"}},
			{TimestampMS: 1300, Type: models.EventErrorFinal, Role: models.RoleBuyer, Error: &models.ErrorDetails{Message: "round 2 failed", Context: map[string]interface{}{"round": 2}}},
		},
	}

	records := ExtractAnomalies(session)
	if len(records) != 3 {
		t.Fatalf("expected 3 anomaly records, got %d", len(records))
	}

	if records[0].EventType != models.EventRPCCallError || records[0].Method != "refresh" || records[0].EventIndex != 1 {
		t.Fatalf("unexpected rpc error record: %+v", records[0])
	}
	if records[1].EventType != models.EventCachePollution || records[1].Reason != "stale multisig info" {
		t.Fatalf("unexpected pollution record: %+v", records[1])
	}
	if records[2].EventType != models.EventErrorFinal || records[2].Error != "round 2 failed" {
		t.Fatalf("unexpected final error record: %+v", records[2])
	}
	if records[2].Context["round"].(int) != 2 {
		t.Fatalf("unexpected error context: %+v", records[2].Context)
	}
}

func TestExtractAnomaliesCleanSession(t *testing.T) {
	session := &models.Session{
		TraceID: "t-1",
		Events: []*models.Event{
			{TimestampMS: 1000, Type: models.EventRPCCallEnd, Role: models.RoleBuyer, RPC: &models.RPCDetails{Method: "refresh", Success: true}},
			{TimestampMS: 1100, Type: models.EventSnapshotFinal, Role: models.RoleBuyer, Snapshot: &models.SnapshotDetails{IsMultisig: true}},
		},
	}

	if records := ExtractAnomalies(session); len(records) != 0 {
		t.Fatalf("expected no anomalies, got %+v", records)
	}
}

func TestExtractAnomaliesTolerateMissingPayload(t *testing.T) {
	session := &models.Session{
		TraceID: "t-1",
		Events: []*models.Event{
			{TimestampMS: 1000, Type: models.EventErrorFinal, Role: models.RoleBuyer},
		},
	}

	records := ExtractAnomalies(session)
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	if records[0].Error != "" {
		t.Fatalf("expected empty message without payload, got %q", records[0].Error)
	}
}
